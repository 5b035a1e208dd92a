/*
Package config loads the recognized configuration surface (spec.md §3,
§6) from the `configuration` collection on every request, per
SPEC_FULL.md §7's "configuration is fetched per request" rule: the
document store is the single source of truth, so an operator's change
to MonthlyCap/TotalCap/CertificateValidityMonths/WeekendDays takes
effect on the next request with no redeploy and no in-process cache to
invalidate. TimeZone is loaded too, but no caller reads the loaded
value: the clock and calendar keep the zone cmd/server sets at startup.
*/
package config

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/docstore"
)

// Collection holds one document per recognized key, id = key name,
// value under the "value" field (spec.md §6).
const Collection = "configuration"

// Load builds a coc.Config from the configuration collection, falling
// back to coc.DefaultConfig()'s value for any key that is absent or
// fails to parse. Unrecognized keys are ignored (spec.md §6) simply by
// never being read.
func Load(ctx context.Context, docs docstore.Store) (coc.Config, error) {
	cfg := coc.DefaultConfig()

	doc, err := docs.GetMany(ctx, Collection, 32)
	if err != nil {
		return cfg, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}

	byKey := make(map[string]docstore.Doc, len(doc))
	for _, d := range doc {
		if id, ok := d["id"].(string); ok {
			byKey[id] = d
		}
	}

	if d, ok := byKey[coc.ConfigKeyWeekendDays]; ok {
		if days, ok := toIntSlice(d["value"]); ok {
			cfg.WeekendDays = days
		}
	}
	if d, ok := byKey[coc.ConfigKeyMonthlyCap]; ok {
		if h, ok := toHours(d["value"]); ok {
			cfg.MonthlyCap = h
		}
	}
	if d, ok := byKey[coc.ConfigKeyTotalCap]; ok {
		if h, ok := toHours(d["value"]); ok {
			cfg.TotalCap = h
		}
	}
	if d, ok := byKey[coc.ConfigKeyCertificateValidityMonths]; ok {
		if months, ok := toInt(d["value"]); ok {
			cfg.CertificateValidityMonths = months
		}
	}
	if d, ok := byKey[coc.ConfigKeyTimeZone]; ok {
		if tz, ok := d["value"].(string); ok && tz != "" {
			cfg.TimeZone = tz
		}
	}

	return cfg, nil
}

func toIntSlice(v any) ([]int, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := toInt(item)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	}
	return 0, false
}

func toHours(v any) (coc.Hours, bool) {
	s, ok := v.(string)
	if !ok {
		return coc.Hours{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return coc.Hours{}, false
	}
	return coc.NewHoursFromDecimal(d), true
}

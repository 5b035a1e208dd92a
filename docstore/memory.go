package docstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/cocrecords/coc-engine/coc"
)

// Memory is an in-memory Store, used by unit tests and the property
// tests in spec.md §8 (L1, L2, Q1). Grounded on
// generic/store/memory.go's mutex-guarded map-of-slices pattern,
// generalized from a single transactions table to arbitrary named
// collections of documents. mu guards every method, including reads:
// coll() lazily creates a collection's map even on a read path, so a
// plain read would itself be a concurrent map write. spec.md §4.4
// requires the identifier generator (MaxID) and by extension the
// store to stay safe under concurrent writers.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]Doc
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]Doc)}
}

func (m *Memory) coll(name string) map[string]Doc {
	c, ok := m.collections[name]
	if !ok {
		c = make(map[string]Doc)
		m.collections[name] = c
	}
	return c
}

func cloneDoc(d Doc) Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

func (m *Memory) Get(_ context.Context, collection, id string) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.coll(collection)[id]
	if !ok {
		return nil, nil
	}
	return cloneDoc(doc), nil
}

func (m *Memory) GetMany(_ context.Context, collection string, max int) ([]Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	out := make([]Doc, 0, len(c))
	for _, doc := range c {
		out = append(out, cloneDoc(doc))
		if len(out) >= max {
			break
		}
	}
	sortByID(out)
	return out, nil
}

func compareValues(a, b any, op Op) bool {
	switch av := a.(type) {
	case int:
		bv, ok := toInt(b)
		if !ok {
			return false
		}
		return compareOrdered(int64(av), bv, op)
	case int64:
		bv, ok := toInt(b)
		if !ok {
			return false
		}
		return compareOrdered(av, bv, op)
	case float64:
		bv, ok := toFloat(b)
		if !ok {
			return false
		}
		return compareOrdered(av, bv, op)
	case string:
		bv, ok := b.(string)
		if !ok {
			return false
		}
		return compareOrdered(av, bv, op)
	case coc.Date:
		bv, ok := b.(coc.Date)
		if !ok {
			return false
		}
		return compareDate(av, bv, op)
	default:
		if op == OpEqual {
			return a == b
		}
		if op == OpNotEqual {
			return a != b
		}
		return false
	}
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func compareOrdered[T int64 | float64 | string](a, b T, op Op) bool {
	switch op {
	case OpEqual:
		return a == b
	case OpNotEqual:
		return a != b
	case OpLess:
		return a < b
	case OpLessEqual:
		return a <= b
	case OpGreater:
		return a > b
	case OpGreaterEqual:
		return a >= b
	}
	return false
}

func compareDate(a, b coc.Date, op Op) bool {
	switch op {
	case OpEqual:
		return a.Equal(b)
	case OpNotEqual:
		return !a.Equal(b)
	case OpLess:
		return a.Before(b)
	case OpLessEqual:
		return a.BeforeOrEqual(b)
	case OpGreater:
		return a.After(b)
	case OpGreaterEqual:
		return a.AfterOrEqual(b)
	}
	return false
}

func (m *Memory) Where(_ context.Context, collection, field string, op Op, value any) ([]Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	var out []Doc
	for _, doc := range c {
		fv, ok := doc[field]
		if !ok {
			continue
		}
		if compareValues(fv, value, op) {
			out = append(out, cloneDoc(doc))
		}
	}
	sortByID(out)
	return out, nil
}

func (m *Memory) Match(_ context.Context, collection string, criteria Doc) ([]Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	var out []Doc
	for _, doc := range c {
		match := true
		for field, want := range criteria {
			got, ok := doc[field]
			if !ok || !compareValues(got, want, OpEqual) {
				match = false
				break
			}
		}
		if match {
			out = append(out, cloneDoc(doc))
		}
	}
	sortByID(out)
	return out, nil
}

func sortByID(docs []Doc) {
	sort.Slice(docs, func(i, j int) bool {
		return fmt.Sprint(docs[i]["id"]) < fmt.Sprint(docs[j]["id"])
	})
}

func (m *Memory) Create(_ context.Context, collection, id string, fields Doc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	if _, exists := c[id]; exists {
		return coc.NewError(coc.KindAlreadyExists, fmt.Sprintf("%s/%s already exists", collection, id))
	}
	doc := cloneDoc(fields)
	doc["id"] = id
	c[id] = doc
	return nil
}

func (m *Memory) Update(_ context.Context, collection, id string, patch Doc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	doc, ok := c[id]
	if !ok {
		return coc.NewError(coc.KindNotFound, fmt.Sprintf("%s/%s not found", collection, id))
	}
	merged := cloneDoc(doc)
	for k, v := range patch {
		merged[k] = v
	}
	c[id] = merged
	return nil
}

func (m *Memory) Upsert(_ context.Context, collection, id string, fields Doc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := cloneDoc(fields)
	doc["id"] = id
	m.coll(collection)[id] = doc
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.coll(collection), id)
	return nil
}

func (m *Memory) DeleteMany(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	for _, id := range ids {
		delete(c, id)
	}
	return nil
}

func (m *Memory) MaxID(_ context.Context, collection, idField string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coll(collection)
	var max int64
	for _, doc := range c {
		v, ok := doc[idField]
		if !ok {
			continue
		}
		var n int64
		switch x := v.(type) {
		case int64:
			n = x
		case int:
			n = int64(x)
		case string:
			parsed, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				continue
			}
			n = parsed
		default:
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

// BatchWrite applies every op atomically under mu, so concurrent
// BatchWrite calls serialize and never interleave their staged copies.
// Atomicity within one call is achieved by staging onto a shadow copy
// and swapping only on success — mirroring generic/store/memory.go's
// TxMemory snapshot/restore pattern.
func (m *Memory) BatchWrite(_ context.Context, ops []WriteOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	staged := make(map[string]map[string]Doc, len(m.collections))
	for name, c := range m.collections {
		cp := make(map[string]Doc, len(c))
		for id, doc := range c {
			cp[id] = cloneDoc(doc)
		}
		staged[name] = cp
	}
	get := func(collection string) map[string]Doc {
		c, ok := staged[collection]
		if !ok {
			c = make(map[string]Doc)
			staged[collection] = c
		}
		return c
	}

	for _, op := range ops {
		c := get(op.Collection)
		switch op.Kind {
		case WriteCreate:
			if _, exists := c[op.ID]; exists {
				return coc.NewError(coc.KindAlreadyExists, fmt.Sprintf("%s/%s already exists", op.Collection, op.ID))
			}
			doc := cloneDoc(op.Fields)
			doc["id"] = op.ID
			c[op.ID] = doc
		case WriteUpdate:
			doc, ok := c[op.ID]
			if !ok {
				return coc.NewError(coc.KindNotFound, fmt.Sprintf("%s/%s not found", op.Collection, op.ID))
			}
			merged := cloneDoc(doc)
			for k, v := range op.Fields {
				merged[k] = v
			}
			c[op.ID] = merged
		case WriteUpsert:
			doc := cloneDoc(op.Fields)
			doc["id"] = op.ID
			c[op.ID] = doc
		case WriteDelete:
			delete(c, op.ID)
		default:
			return coc.NewError(coc.KindInternal, fmt.Sprintf("unknown write kind %q", op.Kind))
		}
	}

	m.collections = staged
	return nil
}

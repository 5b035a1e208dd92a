package coc

// Config is the recognized configuration surface (spec.md §3, §6).
// Unrecognized keys in the configuration collection are ignored;
// recognized keys missing from the store fall back to these defaults.
type Config struct {
	WeekendDays               []int // 0=Sunday..6=Saturday
	MonthlyCap                Hours
	TotalCap                  Hours
	CertificateValidityMonths int
	TimeZone                  string
}

// DefaultConfig returns the spec.md §3 defaults.
func DefaultConfig() Config {
	return Config{
		WeekendDays:               []int{0, 6},
		MonthlyCap:                NewHours(40.0),
		TotalCap:                  NewHours(120.0),
		CertificateValidityMonths: 12,
		TimeZone:                  "Asia/Manila",
	}
}

// Configuration key names, used as document ids in the `configuration`
// collection (spec.md §6).
const (
	ConfigKeyWeekendDays               = "WeekendDays"
	ConfigKeyMonthlyCap                = "MonthlyCap"
	ConfigKeyTotalCap                  = "TotalCap"
	ConfigKeyCertificateValidityMonths = "CertificateValidityMonths"
	ConfigKeyTimeZone                  = "TimeZone"
)

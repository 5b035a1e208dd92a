/*
Package coc holds the domain types shared across the compensatory overtime
credit engine: employees, overtime logs, credit batches, ledger entries,
holidays and configuration (spec.md §3).

All monetary-like quantities are credit-hours, represented with
decimal.Decimal rather than float64 so that rounding (§4.2) and balance
reconstruction (§4.6 L1) never drift.
*/
package coc

import (
	"time"

	"github.com/shopspring/decimal"
)

// Hours is a non-negative-by-convention quantity of compensatory credit
// hours. Signed use (ledger deltas) is allowed; callers decide the sign.
type Hours struct {
	Value decimal.Decimal
}

func NewHours(v float64) Hours          { return Hours{Value: decimal.NewFromFloat(v)} }
func NewHoursFromDecimal(d decimal.Decimal) Hours { return Hours{Value: d} }
func ZeroHours() Hours                  { return Hours{Value: decimal.Zero} }

// MustParseHours parses a decimal string, returning zero on failure.
// Grounded on generic.MustParseDecimal.
func MustParseHours(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (h Hours) Add(o Hours) Hours    { return Hours{Value: h.Value.Add(o.Value)} }
func (h Hours) Sub(o Hours) Hours    { return Hours{Value: h.Value.Sub(o.Value)} }
func (h Hours) Neg() Hours           { return Hours{Value: h.Value.Neg()} }
func (h Hours) IsZero() bool         { return h.Value.IsZero() }
func (h Hours) IsNegative() bool     { return h.Value.IsNegative() }
func (h Hours) IsPositive() bool     { return h.Value.IsPositive() }
func (h Hours) GreaterThan(o Hours) bool { return h.Value.GreaterThan(o.Value) }
func (h Hours) LessThan(o Hours) bool    { return h.Value.LessThan(o.Value) }
func (h Hours) Min(o Hours) Hours {
	if h.LessThan(o) {
		return h
	}
	return o
}
func (h Hours) Float64() float64 {
	f, _ := h.Value.Float64()
	return f
}
func (h Hours) String() string { return h.Value.StringFixed(1) }

// Round rounds to one decimal place, half-away-from-zero (spec.md §4.2).
func (h Hours) Round() Hours {
	return Hours{Value: h.Value.Round(1)}
}

// Date is a civil date (no time-of-day) in the configured time zone.
// Comparisons never fall back to UTC-day equivalence (spec.md §4.1).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date { return Date{Year: year, Month: month, Day: day} }

func DateFromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) Weekday(loc *time.Location) time.Weekday { return d.Time(loc).Weekday() }

func (d Date) Before(o Date) bool {
	return d.Time(time.UTC).Before(o.Time(time.UTC))
}

func (d Date) After(o Date) bool { return d.Time(time.UTC).After(o.Time(time.UTC)) }

func (d Date) Equal(o Date) bool { return d == o }

func (d Date) BeforeOrEqual(o Date) bool { return d.Before(o) || d.Equal(o) }
func (d Date) AfterOrEqual(o Date) bool  { return d.After(o) || d.Equal(o) }

func (d Date) AddDays(n int, loc *time.Location) Date {
	return DateFromTime(d.Time(loc).AddDate(0, 0, n))
}

func (d Date) AddMonths(n int, loc *time.Location) Date {
	return DateFromTime(d.Time(loc).AddDate(0, n, 0))
}

// ISO formats the date as an ISO-8601 calendar date (spec.md §6).
func (d Date) ISO() string {
	return d.Time(time.UTC).Format("2006-01-02")
}

// ParseDate parses an ISO-8601 calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return DateFromTime(t), nil
}

// MarshalJSON renders Date as its ISO-8601 string (spec.md §6 wire format).
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.ISO() + `"`), nil
}

// UnmarshalJSON parses Date from its ISO-8601 string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthName returns the English full month name (spec.md §6).
func MonthName(m time.Month) string { return monthNames[m-1] }

// DayType classifies a date for accrual purposes (spec.md §4.1).
type DayType string

const (
	Weekday DayType = "Weekday"
	Weekend DayType = "Weekend"
	Holiday DayType = "Holiday"
)

// LogStatus is the lifecycle state of an Overtime Log (spec.md §3).
type LogStatus string

const (
	LogUncertified LogStatus = "Uncertified"
	LogActive      LogStatus = "Active"
	LogUsed        LogStatus = "Used"
	LogExpired     LogStatus = "Expired"
)

// BatchStatus is the lifecycle state of a Credit Batch (spec.md §3).
type BatchStatus string

const (
	BatchActive  BatchStatus = "Active"
	BatchUsed    BatchStatus = "Used"
	BatchExpired BatchStatus = "Expired"
)

// SourceType distinguishes certification-produced batches from
// pre-system historical imports (spec.md §3, §9 glossary).
type SourceType string

const (
	SourceMonthlyCertificate SourceType = "MonthlyCertificate"
	SourceHistoricalImport   SourceType = "HistoricalImport"
)

// TxType is the kind of ledger movement (spec.md §3).
type TxType string

const (
	TxCredit     TxType = "Credit"
	TxDebit      TxType = "Debit"
	TxAdjustment TxType = "Adjustment"
	TxExpiration TxType = "Expiration"
)

// EmployeeStatus mirrors the soft-delete lifecycle (spec.md §3).
type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "Active"
	EmployeeInactive EmployeeStatus = "Inactive"
)

// Employee is the stable HR record overtime logs, batches and ledger
// entries reference. Employee is never removed; soft-delete flips
// Status to Inactive (spec.md §3).
type Employee struct {
	ID       string
	First    string
	Middle   string
	Last     string
	Status   EmployeeStatus
	Position string
	Office   string
	Email    string
}

func (e Employee) FullName() string {
	name := e.First
	if e.Middle != "" {
		name += " " + e.Middle
	}
	if e.Last != "" {
		name += " " + e.Last
	}
	return name
}

// OvertimeLog is a single day's overtime entry (spec.md §3).
type OvertimeLog struct {
	LogID      string
	EmployeeID string
	MonthName  string
	Year       int
	DateWorked Date
	DayType    DayType
	AMIn       string
	AMOut      string
	PMIn       string
	PMOut      string
	COCEarned  Hours
	Status     LogStatus
	LoggedBy   string
	LoggedAt   time.Time
	ValidUntil *Date
	BatchID    string // set once certified; mirrors the funding Credit Batch's lifecycle
}

// CreditBatch is an immutable-except-for-consumption record of certified
// credits with an expiration (spec.md §3).
type CreditBatch struct {
	BatchID             string
	EmployeeID          string
	EarnedMonth         string
	EarnedYear          int
	OriginalHours       Hours
	RemainingHours      Hours
	UsedHours           Hours
	Status              BatchStatus
	DateOfIssuance      Date
	ValidUntil          Date
	SourceType          SourceType
	SourceCertificateID string
	Notes               string
}

// LedgerEntry is one append-only row of the signed-hours journal
// (spec.md §3).
type LedgerEntry struct {
	TransactionID   string
	EmployeeID      string
	TransactionType TxType
	Hours           Hours // signed
	BatchID         string
	ReferenceID     string
	Notes           string
	TransactionDate Date
	PerformedBy     string
}

// Holiday is a configured non-working, accrual-rate-changing date
// (spec.md §3).
type Holiday struct {
	HolidayID string
	Name      string
	Date      Date
	Year      int
	Type      string // "Regular" or "Special"
}

const (
	HolidayRegular = "Regular"
	HolidaySpecial = "Special"
)

// Certificate is the period-lock record a certification produces
// (spec.md §4.5 step 7, §4.3 step 4). It is not itemized in spec.md §3
// but is required by the Validation Cascade and Certification Engine.
type Certificate struct {
	CertificateID  string
	EmployeeID     string
	MonthName      string
	Year           int
	DateOfIssuance Date
	ValidUntil     Date
	BatchID        string
	TotalHours     Hours
	IssuedBy       string
}

// Balance is the aggregate view C6.balance and C7 queries return
// (spec.md §4.6, §4.7).
type Balance struct {
	Active       Hours
	Uncertified  Hours
	TotalEarned  Hours
	Used         Hours
	Expired      Hours
}

/*
Package query implements the Query & Aggregation Layer (spec.md §4.7,
C7): read-side views composed from the Overtime Log Store, the Credit
Batch & Ledger, and the Document-Store Adapter. No query here loads a
full collection and filters in Go; every predicate is pushed down to
the store (spec.md §4.7 "forbidden to load-then-filter", §8 property
Q1), mirroring api/handlers.go's GetBalance, which answers a read with
one or two targeted store calls (GetAssignmentsByEntity plus a ranged
ledger read) instead of scanning every transaction.
*/
package query

import (
	"context"
	"sort"

	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/creditledger"
	"github.com/cocrecords/coc-engine/docstore"
	"github.com/cocrecords/coc-engine/overtimelog"
)

// Layer answers the read-side views spec.md §4.7 defines.
type Layer struct {
	Docs   docstore.Store
	Logs   *overtimelog.Store
	Ledger *creditledger.Ledger
}

func New(docs docstore.Store, logs *overtimelog.Store, ledger *creditledger.Ledger) *Layer {
	return &Layer{Docs: docs, Logs: logs, Ledger: ledger}
}

// LedgerLine is one row of an employee's combined activity, used for
// the detailed ledger view (batches and debits interleaved by date).
type LedgerLine struct {
	Date    coc.Date
	Kind    string // "batch" or "transaction"
	Batch   *coc.CreditBatch
	Entry   *coc.LedgerEntry
}

// EmployeeLedger returns an employee's combined batch and transaction
// history, sorted by date descending, in exactly two store queries
// (batches-by-employee, entries-by-employee; spec.md §4.7 "detailed
// ledger ... no more than two store queries").
func (q *Layer) EmployeeLedger(ctx context.Context, employeeID string) ([]LedgerLine, error) {
	batchDocs, err := q.Docs.Where(ctx, creditledger.BatchCollection, "employeeId", docstore.OpEqual, employeeID)
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	entryDocs, err := q.Docs.Where(ctx, creditledger.LedgerCollection, "employeeId", docstore.OpEqual, employeeID)
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}

	lines := make([]LedgerLine, 0, len(batchDocs)+len(entryDocs))
	for _, doc := range batchDocs {
		b := batchFromDoc(doc)
		lines = append(lines, LedgerLine{Date: b.DateOfIssuance, Kind: "batch", Batch: &b})
	}
	for _, doc := range entryDocs {
		e := entryFromDoc(doc)
		lines = append(lines, LedgerLine{Date: e.TransactionDate, Kind: "transaction", Entry: &e})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Date.After(lines[j].Date) })
	return lines, nil
}

// UncertifiedStats is the global snapshot of uncertified work still
// awaiting a certify call (spec.md §4.7).
type UncertifiedStats struct {
	TotalLogs  int
	TotalHours coc.Hours
}

// GlobalUncertifiedStats aggregates over every Uncertified log in one
// store query (spec.md §4.7 "global" aggregation).
func (q *Layer) GlobalUncertifiedStats(ctx context.Context) (UncertifiedStats, error) {
	docs, err := q.Docs.Where(ctx, overtimelog.Collection, "status", docstore.OpEqual, string(coc.LogUncertified))
	if err != nil {
		return UncertifiedStats{}, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	stats := UncertifiedStats{TotalLogs: len(docs)}
	for _, doc := range docs {
		stats.TotalHours = stats.TotalHours.Add(coc.NewHoursFromDecimal(coc.MustParseHours(strVal(doc["cocEarned"]))))
	}
	return stats, nil
}

// UncertifiedLogWithName pairs an Overtime Log with its employee's
// display name, resolved via a single in-memory join (spec.md §4.7
// "one logs query plus one active-employees query, joined in memory").
type UncertifiedLogWithName struct {
	Log          coc.OvertimeLog
	EmployeeName string
}

// UncertifiedLogsWithEmployeeNames fetches every Uncertified log and
// every Active employee, then joins them in Go — exactly two store
// queries, never N+1 (spec.md §8 property Q1).
func (q *Layer) UncertifiedLogsWithEmployeeNames(ctx context.Context) ([]UncertifiedLogWithName, error) {
	logs, err := q.Logs.QueryByStatus(ctx, coc.LogUncertified)
	if err != nil {
		return nil, err
	}
	empDocs, err := q.Docs.Where(ctx, "employees", "status", docstore.OpEqual, string(coc.EmployeeActive))
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	names := make(map[string]string, len(empDocs))
	for _, doc := range empDocs {
		e := coc.Employee{First: strVal(doc["first"]), Middle: strVal(doc["middle"]), Last: strVal(doc["last"])}
		names[strVal(doc["id"])] = e.FullName()
	}

	out := make([]UncertifiedLogWithName, 0, len(logs))
	for _, log := range logs {
		out = append(out, UncertifiedLogWithName{Log: log, EmployeeName: names[log.EmployeeID]})
	}
	return out, nil
}

// CertifiedMonthsFor returns the months of year that already have a
// certificate for employeeID, via one Match on indexed fields.
func (q *Layer) CertifiedMonthsFor(ctx context.Context, employeeID string, year int) ([]string, error) {
	docs, err := q.Docs.Match(ctx, "certificates", docstore.Doc{"employeeId": employeeID, "year": year})
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	months := make([]string, 0, len(docs))
	for _, doc := range docs {
		months = append(months, strVal(doc["monthName"]))
	}
	return months, nil
}

// ProgressAgainstCaps reports how much of an employee's monthly and
// total caps are in use for the given period (spec.md §4.7 "progress"
// view: monthly-total, monthly-cap, active+uncertified, total-cap,
// remainings), reusing the same totals the Validation Cascade's cap
// checks compute.
type ProgressAgainstCaps struct {
	MonthHours            coc.Hours
	ActivePlusUncertified coc.Hours
	MonthlyCap            coc.Hours
	TotalCap              coc.Hours
	MonthlyCapRemaining   coc.Hours
	TotalCapRemaining     coc.Hours
}

func (q *Layer) ProgressAgainstCaps(ctx context.Context, employeeID, monthName string, year int, cfg coc.Config) (ProgressAgainstCaps, error) {
	monthTotal, err := q.Logs.QueryUncertifiedMonthTotal(ctx, employeeID, monthName, year)
	if err != nil {
		return ProgressAgainstCaps{}, err
	}
	balance, err := q.Ledger.Balance(ctx, employeeID, coc.ZeroHours())
	if err != nil {
		return ProgressAgainstCaps{}, err
	}
	logs, err := q.Logs.QueryByEmployee(ctx, employeeID)
	if err != nil {
		return ProgressAgainstCaps{}, err
	}
	uncertifiedTotal := coc.ZeroHours()
	for _, log := range logs {
		if log.Status == coc.LogUncertified {
			uncertifiedTotal = uncertifiedTotal.Add(log.COCEarned)
		}
		// Active logs of the period count toward the month, as in the
		// cascade's monthly-cap step.
		if log.Status == coc.LogActive && log.MonthName == monthName && log.Year == year {
			monthTotal = monthTotal.Add(log.COCEarned)
		}
	}
	combined := balance.Active.Add(uncertifiedTotal)

	monthlyCapRemaining := cfg.MonthlyCap.Sub(monthTotal)
	if monthlyCapRemaining.IsNegative() {
		monthlyCapRemaining = coc.ZeroHours()
	}
	totalCapRemaining := cfg.TotalCap.Sub(combined)
	if totalCapRemaining.IsNegative() {
		totalCapRemaining = coc.ZeroHours()
	}

	return ProgressAgainstCaps{
		MonthHours:            monthTotal,
		ActivePlusUncertified: combined,
		MonthlyCap:            cfg.MonthlyCap,
		TotalCap:              cfg.TotalCap,
		MonthlyCapRemaining:   monthlyCapRemaining,
		TotalCapRemaining:     totalCapRemaining,
	}, nil
}

func strVal(v any) string {
	s, _ := v.(string)
	return s
}

func batchFromDoc(doc docstore.Doc) coc.CreditBatch {
	b := coc.CreditBatch{
		BatchID:        strVal(doc["batchId"]),
		EmployeeID:     strVal(doc["employeeId"]),
		EarnedMonth:    strVal(doc["earnedMonth"]),
		OriginalHours:  coc.NewHoursFromDecimal(coc.MustParseHours(strVal(doc["originalHours"]))),
		RemainingHours: coc.NewHoursFromDecimal(coc.MustParseHours(strVal(doc["remainingHours"]))),
		UsedHours:      coc.NewHoursFromDecimal(coc.MustParseHours(strVal(doc["usedHours"]))),
		Status:         coc.BatchStatus(strVal(doc["status"])),
	}
	if d, ok := doc["dateOfIssuance"].(coc.Date); ok {
		b.DateOfIssuance = d
	}
	if d, ok := doc["validUntil"].(coc.Date); ok {
		b.ValidUntil = d
	}
	return b
}

func entryFromDoc(doc docstore.Doc) coc.LedgerEntry {
	e := coc.LedgerEntry{
		TransactionID:   strVal(doc["transactionId"]),
		EmployeeID:      strVal(doc["employeeId"]),
		TransactionType: coc.TxType(strVal(doc["transactionType"])),
		Hours:           coc.NewHoursFromDecimal(coc.MustParseHours(strVal(doc["hours"]))),
		BatchID:         strVal(doc["batchId"]),
	}
	if d, ok := doc["transactionDate"].(coc.Date); ok {
		e.TransactionDate = d
	}
	return e
}

/*
Package validation implements the Validation Cascade (spec.md §4.3,
C3): duplicate detection, monthly cap, total-balance cap, and period
locks for a batch overtime write.

Grounded on timeoff/ledger.go's day-uniqueness wrapper
(DuplicateDayError, dedup against both existing and in-flight entries)
and generic/projection.go's cap-checking shape (Timeline.Validate),
generalized into the cascade's eight short-circuiting steps.
*/
package validation

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cocrecords/coc-engine/accrual"
	"github.com/cocrecords/coc-engine/calendar"
	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/config"
	"github.com/cocrecords/coc-engine/creditledger"
	"github.com/cocrecords/coc-engine/docstore"
	"github.com/cocrecords/coc-engine/overtimelog"
)

// EntryInput is one requested log entry within a batch write.
type EntryInput struct {
	Date coc.Date
	AMIn, AMOut, PMIn, PMOut string
}

// BatchInput is the write path's unit of work (spec.md §4.3).
type BatchInput struct {
	EmployeeID string
	MonthName  string
	Year       int
	Entries    []EntryInput
	LoggedBy   string
}

// SkippedDuplicate records a non-fatal duplicate skip (spec.md §4.3
// step 6, §7 "duplicates in a batch write are not errors").
type SkippedDuplicate struct {
	Date coc.Date
}

// Result is the aggregate outcome of a successful batch write.
type Result struct {
	EntriesLogged     int
	TotalCreditHours  coc.Hours
	SkippedDuplicates []SkippedDuplicate
	LogIDs            []string
}

// Cascade wires together the Calendar Service, the Accrual Rule
// Engine, the Overtime Log Store, and the Credit Batch & Ledger to
// implement the eight validation steps.
type Cascade struct {
	Docs     docstore.Store
	Logs     *overtimelog.Store
	Ledger   *creditledger.Ledger
	Calendar *calendar.Service
}

func New(docs docstore.Store, logs *overtimelog.Store, ledger *creditledger.Ledger, cal *calendar.Service) *Cascade {
	return &Cascade{Docs: docs, Logs: logs, Ledger: ledger, Calendar: cal}
}

// Submit runs the full cascade for a batch write (spec.md §4.3).
// Caps and the weekend-day set are loaded fresh from the configuration
// collection on every call (spec.md §7 "configuration is fetched per
// request"), so an operator's change takes effect with no redeploy.
func (c *Cascade) Submit(ctx context.Context, in BatchInput) (*Result, error) {
	cfg, err := config.Load(ctx, c.Docs)
	if err != nil {
		return nil, err
	}
	c.Calendar.SetWeekendDays(cfg.WeekendDays)

	// 1. Schema.
	if in.EmployeeID == "" || in.MonthName == "" || in.Year == 0 {
		return nil, coc.NewSubError(coc.KindValidation, coc.SubMissingField, "employee-id, month, and year are required")
	}
	if len(in.Entries) == 0 {
		return nil, coc.NewSubError(coc.KindValidation, coc.SubMissingField, "entries must be non-empty")
	}

	// 2. Employee exists (any status).
	empDoc, err := c.Docs.Get(ctx, "employees", in.EmployeeID)
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	if empDoc == nil {
		return nil, coc.NewError(coc.KindNotFound, "employee not found")
	}

	// 3. Period lock - historical import.
	historical, err := c.Docs.Match(ctx, creditledger.BatchCollection, docstore.Doc{
		"employeeId": in.EmployeeID, "earnedMonth": in.MonthName, "earnedYear": in.Year,
		"sourceType": string(coc.SourceHistoricalImport),
	})
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	if len(historical) > 0 {
		return nil, coc.NewSubError(coc.KindPeriodLocked, coc.LockHistorical, "period has a historical-import batch")
	}

	// 4. Period lock - certified.
	certs, err := c.Docs.Match(ctx, "certificates", docstore.Doc{
		"employeeId": in.EmployeeID, "monthName": in.MonthName, "year": in.Year,
	})
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	if len(certs) > 0 {
		return nil, coc.NewSubError(coc.KindPeriodLocked, coc.LockCertified, "period already certified")
	}

	// 5. Pre-fetch: existing dates, holidays for year, weekend-days.
	existingLogs, err := c.Logs.QueryByPeriod(ctx, in.EmployeeID, in.MonthName, in.Year)
	if err != nil {
		return nil, err
	}
	existingDates := make(map[coc.Date]bool, len(existingLogs))
	for _, log := range existingLogs {
		existingDates[log.DateWorked] = true
	}

	holidayDocs, err := c.Docs.Where(ctx, "holidays", "year", docstore.OpEqual, in.Year)
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	holidays := make([]coc.Holiday, 0, len(holidayDocs))
	for _, doc := range holidayDocs {
		h := coc.Holiday{HolidayID: str(doc["id"]), Name: str(doc["name"]), Year: in.Year}
		if d, ok := doc["date"].(coc.Date); ok {
			h.Date = d
		}
		holidays = append(holidays, h)
	}
	holidaySet := calendar.BuildHolidaySet(holidays)

	// 6. Per-entry.
	var accepted []coc.OvertimeLog
	var skipped []SkippedDuplicate
	batchTotal := coc.ZeroHours()
	seenInBatch := make(map[coc.Date]bool)

	for _, entry := range in.Entries {
		if entry.Date.Year != in.Year || int(entry.Date.Month) != monthIndex(in.MonthName) {
			return nil, coc.NewSubError(coc.KindValidation, coc.SubMonthMismatch,
				fmt.Sprintf("entry date %s is not within %s %d", entry.Date.ISO(), in.MonthName, in.Year))
		}
		if existingDates[entry.Date] || seenInBatch[entry.Date] {
			skipped = append(skipped, SkippedDuplicate{Date: entry.Date})
			continue
		}
		seenInBatch[entry.Date] = true

		dayType := c.Calendar.DayType(entry.Date, holidaySet)
		earned := accrual.Compute(dayType, entry.AMIn, entry.AMOut, entry.PMIn, entry.PMOut)
		batchTotal = batchTotal.Add(earned)

		accepted = append(accepted, coc.OvertimeLog{
			EmployeeID: in.EmployeeID,
			MonthName:  in.MonthName,
			Year:       in.Year,
			DateWorked: entry.Date,
			DayType:    dayType,
			AMIn:       entry.AMIn,
			AMOut:      entry.AMOut,
			PMIn:       entry.PMIn,
			PMOut:      entry.PMOut,
			COCEarned:  earned,
			Status:     coc.LogUncertified,
			LoggedBy:   in.LoggedBy,
		})
	}

	if len(accepted) == 0 {
		return nil, coc.NewError(coc.KindValidation, "nothing to do: every entry was a duplicate")
	}

	// 7. Monthly cap.
	existingMonthTotal, err := c.Logs.QueryUncertifiedMonthTotal(ctx, in.EmployeeID, in.MonthName, in.Year)
	if err != nil {
		return nil, err
	}
	// "All non-terminal logs" (spec.md §4.3 step 7): Uncertified is
	// already in existingMonthTotal above; Active is the only other
	// non-terminal status (spec.md §3's lifecycle makes Used and
	// Expired terminal, so neither should permanently occupy the
	// month's cap).
	for _, log := range existingLogs {
		if log.Status == coc.LogActive {
			existingMonthTotal = existingMonthTotal.Add(log.COCEarned)
		}
	}
	newTotal := existingMonthTotal.Add(batchTotal)
	if newTotal.GreaterThan(cfg.MonthlyCap) {
		return nil, coc.NewCapError(coc.KindCapMonthly, "monthly cap exceeded", existingMonthTotal, batchTotal, cfg.MonthlyCap)
	}

	// 8. Total cap.
	activeCredits, uncertifiedCredits, err := c.totalCapInputs(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	totalAfter := activeCredits.Add(uncertifiedCredits).Add(batchTotal)
	if totalAfter.GreaterThan(cfg.TotalCap) {
		return nil, coc.NewCapError(coc.KindCapTotal, "total cap exceeded", activeCredits.Add(uncertifiedCredits), batchTotal, cfg.TotalCap)
	}

	// Persist atomically (spec.md §5 batch-write protocol). All logs in
	// this write share a correlation id so a recovery scan can tell
	// they landed in one commit.
	correlationID := uuid.NewString()
	// NextLogID reserves nothing, so the entries take consecutive ids
	// starting from the one it returns.
	firstID, err := c.Logs.NextLogID(ctx)
	if err != nil {
		return nil, err
	}
	var nextID int64
	if _, err := fmt.Sscan(firstID, &nextID); err != nil {
		return nil, coc.NewError(coc.KindInternal, "non-numeric log id "+firstID)
	}
	ops := make([]docstore.WriteOp, 0, len(accepted))
	logIDs := make([]string, 0, len(accepted))
	for i := range accepted {
		id := fmt.Sprintf("%d", nextID+int64(i))
		accepted[i].LogID = id
		logIDs = append(logIDs, id)
		fields := overtimelog.ToDoc(accepted[i])
		fields["correlationId"] = correlationID
		ops = append(ops, docstore.WriteOp{
			Kind: docstore.WriteCreate, Collection: overtimelog.Collection, ID: id, Fields: fields,
		})
	}
	if err := c.Docs.BatchWrite(ctx, ops); err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}

	return &Result{
		EntriesLogged:     len(accepted),
		TotalCreditHours:  batchTotal,
		SkippedDuplicates: skipped,
		LogIDs:            logIDs,
	}, nil
}

// totalCapInputs sums active batch remaining-hours and uncertified log
// hours across the employee's entire history (spec.md §4.3 step 8).
func (c *Cascade) totalCapInputs(ctx context.Context, employeeID string) (active, uncertified coc.Hours, err error) {
	balance, err := c.Ledger.Balance(ctx, employeeID, coc.ZeroHours())
	if err != nil {
		return coc.ZeroHours(), coc.ZeroHours(), err
	}
	logs, err := c.Logs.QueryByEmployee(ctx, employeeID)
	if err != nil {
		return coc.ZeroHours(), coc.ZeroHours(), err
	}
	uncertifiedTotal := coc.ZeroHours()
	for _, log := range logs {
		if log.Status == coc.LogUncertified {
			uncertifiedTotal = uncertifiedTotal.Add(log.COCEarned)
		}
	}
	return balance.Active, uncertifiedTotal, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

var monthIndexByName = map[string]int{
	"January": 1, "February": 2, "March": 3, "April": 4, "May": 5, "June": 6,
	"July": 7, "August": 8, "September": 9, "October": 10, "November": 11, "December": 12,
}

func monthIndex(name string) int { return monthIndexByName[name] }

/*
Package overtimelog implements the Overtime Log Store (spec.md §4.4,
C4): persistence, lifecycle status, and employee/month/year/status
queries for Overtime Log records.

Grounded on store/sqlite/sqlite.go's indexed-equality-query style for
its `transactions` table (employeeId/month/year lookups with no
load-then-filter), rebuilt on top of the docstore.Store adapter (C8)
instead of hand-rolled SQL so every query here is also exercised by
the sqlite and in-memory docstore backends.
*/
package overtimelog

import (
	"context"
	"fmt"

	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/docstore"
)

const Collection = "overtimeLogs"

// Store persists Overtime Logs via a docstore.Store.
type Store struct {
	docs docstore.Store
}

func New(docs docstore.Store) *Store { return &Store{docs: docs} }

// ToDoc renders a log as a document; exported so the validation
// cascade can build atomic create ops without re-deriving the field
// mapping.
func ToDoc(log coc.OvertimeLog) docstore.Doc { return toDoc(log) }

func toDoc(log coc.OvertimeLog) docstore.Doc {
	doc := docstore.Doc{
		"logId":      log.LogID,
		"employeeId": log.EmployeeID,
		"monthName":  log.MonthName,
		"year":       log.Year,
		"dateWorked": log.DateWorked,
		"dayType":    string(log.DayType),
		"amIn":       log.AMIn,
		"amOut":      log.AMOut,
		"pmIn":       log.PMIn,
		"pmOut":      log.PMOut,
		"cocEarned":  log.COCEarned.Value.String(),
		"status":     string(log.Status),
		"loggedBy":   log.LoggedBy,
		"loggedAt":   log.LoggedAt,
	}
	if log.ValidUntil != nil {
		doc["validUntil"] = *log.ValidUntil
	}
	if log.BatchID != "" {
		doc["batchId"] = log.BatchID
	}
	return doc
}

func fromDoc(doc docstore.Doc) (coc.OvertimeLog, error) {
	log := coc.OvertimeLog{
		LogID:      str(doc["logId"]),
		EmployeeID: str(doc["employeeId"]),
		MonthName:  str(doc["monthName"]),
		Year:       toInt(doc["year"]),
		DayType:    coc.DayType(str(doc["dayType"])),
		AMIn:       str(doc["amIn"]),
		AMOut:      str(doc["amOut"]),
		PMIn:       str(doc["pmIn"]),
		PMOut:      str(doc["pmOut"]),
		Status:     coc.LogStatus(str(doc["status"])),
		LoggedBy:   str(doc["loggedBy"]),
		BatchID:    str(doc["batchId"]),
	}
	log.COCEarned = coc.NewHoursFromDecimal(coc.MustParseHours(str(doc["cocEarned"])))
	if dw, ok := doc["dateWorked"].(coc.Date); ok {
		log.DateWorked = dw
	}
	if vu, ok := doc["validUntil"]; ok {
		if d, ok := vu.(coc.Date); ok {
			log.ValidUntil = &d
		}
	}
	return log, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func toInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	}
	return 0
}

// NextLogID returns one more than the largest stored logId (spec.md
// §4.4 monotonic identifier generator). It reserves nothing: calls with
// no write in between return the same id.
func (s *Store) NextLogID(ctx context.Context) (string, error) {
	next, err := s.docs.MaxID(ctx, Collection, "logId")
	if err != nil {
		return "", coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return fmt.Sprintf("%d", next), nil
}

// CreateMany persists the given logs. Callers are expected to have
// already assigned ids via NextLogID and to call this as part of the
// §5 batch-write protocol; this helper itself is not atomic across
// entries and is used by validation.Cascade via docstore.WriteOp
// batches for that guarantee.
func (s *Store) CreateMany(ctx context.Context, logs []coc.OvertimeLog) error {
	for _, log := range logs {
		if err := s.docs.Create(ctx, Collection, log.LogID, toDoc(log)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, logID string) (*coc.OvertimeLog, error) {
	doc, err := s.docs.Get(ctx, Collection, logID)
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	if doc == nil {
		return nil, nil
	}
	log, err := fromDoc(doc)
	if err != nil {
		return nil, coc.NewError(coc.KindInternal, err.Error())
	}
	return &log, nil
}

func (s *Store) Update(ctx context.Context, logID string, patch docstore.Doc) error {
	return s.docs.Update(ctx, Collection, logID, patch)
}

// Delete removes a log, but only while it is still Uncertified
// (spec.md §4.4; deleting a certified log is a PreconditionFailed per
// §7).
func (s *Store) Delete(ctx context.Context, logID string) error {
	log, err := s.Get(ctx, logID)
	if err != nil {
		return err
	}
	if log == nil {
		return coc.NewError(coc.KindNotFound, "log not found")
	}
	if log.Status != coc.LogUncertified {
		return coc.NewError(coc.KindPreconditionFailed, "cannot delete a certified log")
	}
	return s.docs.Delete(ctx, Collection, logID)
}

func (s *Store) QueryByEmployee(ctx context.Context, employeeID string) ([]coc.OvertimeLog, error) {
	docs, err := s.docs.Where(ctx, Collection, "employeeId", docstore.OpEqual, employeeID)
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return docsToLogs(docs)
}

// QueryByPeriod is the equality query on three indexed fields
// (employeeId, monthName, year) spec.md §4.4 requires.
func (s *Store) QueryByPeriod(ctx context.Context, employeeID, monthName string, year int) ([]coc.OvertimeLog, error) {
	docs, err := s.docs.Match(ctx, Collection, docstore.Doc{
		"employeeId": employeeID, "monthName": monthName, "year": year,
	})
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return docsToLogs(docs)
}

func (s *Store) QueryByStatus(ctx context.Context, status coc.LogStatus) ([]coc.OvertimeLog, error) {
	docs, err := s.docs.Where(ctx, Collection, "status", docstore.OpEqual, string(status))
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return docsToLogs(docs)
}

// QueryByBatch returns the logs a Credit Batch was funded by, used to
// mirror the batch's Used/Expired transitions onto its constituent
// logs (spec.md §4.4 lifecycle summary: a log moves to Used when
// debited, to Expired by sweep, following its batch).
func (s *Store) QueryByBatch(ctx context.Context, batchID string) ([]coc.OvertimeLog, error) {
	docs, err := s.docs.Where(ctx, Collection, "batchId", docstore.OpEqual, batchID)
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return docsToLogs(docs)
}

// QueryUncertifiedMonthTotal sums coc-earned for every Uncertified log
// in the period. The monthly-cap check (spec.md §4.3 step 7) and the
// progress view add the period's Active logs to it.
func (s *Store) QueryUncertifiedMonthTotal(ctx context.Context, employeeID, monthName string, year int) (coc.Hours, error) {
	logs, err := s.QueryByPeriod(ctx, employeeID, monthName, year)
	if err != nil {
		return coc.ZeroHours(), err
	}
	total := coc.ZeroHours()
	for _, log := range logs {
		if log.Status == coc.LogUncertified {
			total = total.Add(log.COCEarned)
		}
	}
	return total, nil
}

func docsToLogs(docs []docstore.Doc) ([]coc.OvertimeLog, error) {
	out := make([]coc.OvertimeLog, 0, len(docs))
	for _, doc := range docs {
		log, err := fromDoc(doc)
		if err != nil {
			return nil, coc.NewError(coc.KindInternal, err.Error())
		}
		out = append(out, log)
	}
	return out, nil
}

/*
Package creditledger implements the Credit Batch & Ledger component
(spec.md §4.6, C6): the double-entry-style record of all credit
movements, balance reconstruction, and the expiration sweep.

Grounded on generic/ledger.go's append-only Ledger interface
(Append/AppendBatch/BalanceAt, never Update/Delete) and
generic/assignment.go's ConsumptionDistributor, whose priority-ordered
draining is generalized here from an integer priority field to the
FIFO-by-valid-until-then-earned-date order spec.md §4.6 requires.
*/
package creditledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/docstore"
	"github.com/cocrecords/coc-engine/overtimelog"
)

const (
	BatchCollection  = "creditBatches"
	LedgerCollection = "ledger"
	LockCollection   = "locks"
)

// Ledger is the persistence and business-rule layer for credit batches
// and the signed-hours ledger.
type Ledger struct {
	docs docstore.Store
	logs *overtimelog.Store
}

func New(docs docstore.Store, logs *overtimelog.Store) *Ledger { return &Ledger{docs: docs, logs: logs} }

// logStatusOps returns WriteOps mirroring newStatus onto every log
// funded by batchID (spec.md §4.4 lifecycle summary: a log follows its
// funding batch to Used when debited, to Expired by sweep).
func (l *Ledger) logStatusOps(ctx context.Context, batchID string, newStatus coc.LogStatus) ([]docstore.WriteOp, error) {
	logs, err := l.logs.QueryByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	ops := make([]docstore.WriteOp, 0, len(logs))
	for _, log := range logs {
		ops = append(ops, docstore.WriteOp{
			Kind: docstore.WriteUpdate, Collection: overtimelog.Collection, ID: log.LogID,
			Fields: docstore.Doc{"status": string(newStatus)},
		})
	}
	return ops, nil
}

// --- batch <-> doc -----------------------------------------------------

func batchToDoc(b coc.CreditBatch) docstore.Doc {
	return docstore.Doc{
		"batchId":             b.BatchID,
		"employeeId":          b.EmployeeID,
		"earnedMonth":         b.EarnedMonth,
		"earnedYear":          b.EarnedYear,
		"originalHours":       b.OriginalHours.Value.String(),
		"remainingHours":      b.RemainingHours.Value.String(),
		"usedHours":           b.UsedHours.Value.String(),
		"status":              string(b.Status),
		"dateOfIssuance":      b.DateOfIssuance,
		"validUntil":          b.ValidUntil,
		"sourceType":          string(b.SourceType),
		"sourceCertificateId": b.SourceCertificateID,
		"notes":               b.Notes,
	}
}

func batchFromDoc(doc docstore.Doc) coc.CreditBatch {
	b := coc.CreditBatch{
		BatchID:             str(doc["batchId"]),
		EmployeeID:          str(doc["employeeId"]),
		EarnedMonth:         str(doc["earnedMonth"]),
		EarnedYear:          toInt(doc["earnedYear"]),
		OriginalHours:       coc.NewHoursFromDecimal(coc.MustParseHours(str(doc["originalHours"]))),
		RemainingHours:      coc.NewHoursFromDecimal(coc.MustParseHours(str(doc["remainingHours"]))),
		UsedHours:           coc.NewHoursFromDecimal(coc.MustParseHours(str(doc["usedHours"]))),
		Status:              coc.BatchStatus(str(doc["status"])),
		SourceType:          coc.SourceType(str(doc["sourceType"])),
		SourceCertificateID: str(doc["sourceCertificateId"]),
		Notes:               str(doc["notes"]),
	}
	if d, ok := doc["dateOfIssuance"].(coc.Date); ok {
		b.DateOfIssuance = d
	}
	if d, ok := doc["validUntil"].(coc.Date); ok {
		b.ValidUntil = d
	}
	return b
}

func entryToDoc(e coc.LedgerEntry) docstore.Doc {
	return docstore.Doc{
		"transactionId":   e.TransactionID,
		"employeeId":      e.EmployeeID,
		"transactionType": string(e.TransactionType),
		"hours":           e.Hours.Value.String(),
		"batchId":         e.BatchID,
		"referenceId":     e.ReferenceID,
		"notes":           e.Notes,
		"transactionDate": e.TransactionDate,
		"performedBy":     e.PerformedBy,
	}
}

func entryFromDoc(doc docstore.Doc) coc.LedgerEntry {
	e := coc.LedgerEntry{
		TransactionID:   str(doc["transactionId"]),
		EmployeeID:      str(doc["employeeId"]),
		TransactionType: coc.TxType(str(doc["transactionType"])),
		Hours:           coc.NewHoursFromDecimal(coc.MustParseHours(str(doc["hours"]))),
		BatchID:         str(doc["batchId"]),
		ReferenceID:     str(doc["referenceId"]),
		Notes:           str(doc["notes"]),
		PerformedBy:     str(doc["performedBy"]),
	}
	if d, ok := doc["transactionDate"].(coc.Date); ok {
		e.TransactionDate = d
	}
	return e
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

// --- batch & ledger operations (spec.md §4.6) ---------------------------

// CreateBatch persists a new batch. Never overwrites an existing one.
func (l *Ledger) CreateBatch(ctx context.Context, b coc.CreditBatch) error {
	return l.docs.Create(ctx, BatchCollection, b.BatchID, batchToDoc(b))
}

func (l *Ledger) GetBatch(ctx context.Context, batchID string) (*coc.CreditBatch, error) {
	doc, err := l.docs.Get(ctx, BatchCollection, batchID)
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	if doc == nil {
		return nil, nil
	}
	b := batchFromDoc(doc)
	return &b, nil
}

// ActiveBatches returns every Active batch for employeeID, ordered
// valid-until ascending then date-of-issuance (a stand-in for
// earned-date — the certificate's issuance date — when earned-month
// alone does not disambiguate two certificates, spec.md §4.6 FIFO
// ordering).
func (l *Ledger) ActiveBatches(ctx context.Context, employeeID string) ([]coc.CreditBatch, error) {
	docs, err := l.docs.Match(ctx, BatchCollection, docstore.Doc{
		"employeeId": employeeID, "status": string(coc.BatchActive),
	})
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	batches := make([]coc.CreditBatch, 0, len(docs))
	for _, doc := range docs {
		batches = append(batches, batchFromDoc(doc))
	}
	sort.Slice(batches, func(i, j int) bool {
		if !batches[i].ValidUntil.Equal(batches[j].ValidUntil) {
			return batches[i].ValidUntil.Before(batches[j].ValidUntil)
		}
		return batches[i].DateOfIssuance.Before(batches[j].DateOfIssuance)
	})
	return batches, nil
}

// Allocation is one batch touched by a debit.
type Allocation struct {
	BatchID        string
	HoursConsumed  coc.Hours
}

// Debit consumes hours FIFO across employeeID's Active batches, ordered
// by valid-until ascending then earned-date ascending (spec.md §4.6).
// Each batch is debited up to its remaining-hours; when remaining
// reaches 0 the batch becomes Used. One Ledger Entry is emitted per
// batch touched. Callers must serialize debits per employee-id
// (spec.md §5) — see WithEmployeeLock.
func (l *Ledger) Debit(ctx context.Context, employeeID string, amount coc.Hours, referenceID, performedBy string, today coc.Date) ([]Allocation, error) {
	batches, err := l.ActiveBatches(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	remaining := amount
	var allocations []Allocation
	var ops []docstore.WriteOp
	correlationID := uuid.NewString()

	for _, batch := range batches {
		if remaining.IsZero() || remaining.IsNegative() {
			break
		}
		if batch.RemainingHours.IsZero() {
			continue
		}
		consume := remaining.Min(batch.RemainingHours)

		newRemaining := batch.RemainingHours.Sub(consume)
		newUsed := batch.UsedHours.Add(consume)
		newStatus := batch.Status
		if newRemaining.IsZero() {
			newStatus = coc.BatchUsed
		}

		ops = append(ops, docstore.WriteOp{
			Kind:       docstore.WriteUpdate,
			Collection: BatchCollection,
			ID:         batch.BatchID,
			Fields: docstore.Doc{
				"remainingHours": newRemaining.Value.String(),
				"usedHours":      newUsed.Value.String(),
				"status":         string(newStatus),
				"correlationId":  correlationID,
			},
		})

		entry := coc.LedgerEntry{
			TransactionID:   fmt.Sprintf("debit-%s-%s", referenceID, batch.BatchID),
			EmployeeID:      employeeID,
			TransactionType: coc.TxDebit,
			Hours:           consume.Neg(),
			BatchID:         batch.BatchID,
			ReferenceID:     referenceID,
			TransactionDate: today,
			PerformedBy:     performedBy,
		}
		entryFields := entryToDoc(entry)
		entryFields["correlationId"] = correlationID
		ops = append(ops, docstore.WriteOp{
			Kind: docstore.WriteCreate, Collection: LedgerCollection, ID: entry.TransactionID, Fields: entryFields,
		})

		if newStatus == coc.BatchUsed {
			logOps, err := l.logStatusOps(ctx, batch.BatchID, coc.LogUsed)
			if err != nil {
				return nil, err
			}
			ops = append(ops, logOps...)
		}

		allocations = append(allocations, Allocation{BatchID: batch.BatchID, HoursConsumed: consume})
		remaining = remaining.Sub(consume)
	}

	if remaining.IsPositive() {
		return nil, coc.NewError(coc.KindPreconditionFailed, "insufficient active credit balance for debit")
	}

	if len(ops) > 0 {
		if err := l.docs.BatchWrite(ctx, ops); err != nil {
			return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
		}
	}
	return allocations, nil
}

// ExpireSweep expires every Active batch whose valid-until is before
// asOf, emitting an Expiration ledger entry for each with nonzero
// remaining-hours (spec.md §4.6, §8 property E1). remaining-hours is
// preserved on the record for audit; the active-balance computation
// excludes Expired batches regardless of remaining-hours.
func (l *Ledger) ExpireSweep(ctx context.Context, asOf coc.Date, performedBy string) error {
	docs, err := l.docs.Where(ctx, BatchCollection, "status", docstore.OpEqual, string(coc.BatchActive))
	if err != nil {
		return coc.NewError(coc.KindStoreUnavailable, err.Error())
	}

	var ops []docstore.WriteOp
	for _, doc := range docs {
		batch := batchFromDoc(doc)
		if !batch.ValidUntil.Before(asOf) {
			continue
		}
		ops = append(ops, docstore.WriteOp{
			Kind: docstore.WriteUpdate, Collection: BatchCollection, ID: batch.BatchID,
			Fields: docstore.Doc{"status": string(coc.BatchExpired)},
		})
		if batch.RemainingHours.IsPositive() {
			entry := coc.LedgerEntry{
				TransactionID:   fmt.Sprintf("expire-%s", batch.BatchID),
				EmployeeID:      batch.EmployeeID,
				TransactionType: coc.TxExpiration,
				Hours:           batch.RemainingHours.Neg(),
				BatchID:         batch.BatchID,
				TransactionDate: asOf,
				PerformedBy:     performedBy,
			}
			ops = append(ops, docstore.WriteOp{
				Kind: docstore.WriteCreate, Collection: LedgerCollection, ID: entry.TransactionID, Fields: entryToDoc(entry),
			})
		}

		logOps, err := l.logStatusOps(ctx, batch.BatchID, coc.LogExpired)
		if err != nil {
			return err
		}
		ops = append(ops, logOps...)
	}

	if len(ops) == 0 {
		return nil
	}
	if err := l.docs.BatchWrite(ctx, ops); err != nil {
		return coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	return nil
}

// Balance returns the aggregate view spec.md §4.6 defines.
func (l *Ledger) Balance(ctx context.Context, employeeID string, uncertifiedTotal coc.Hours) (coc.Balance, error) {
	docs, err := l.docs.Where(ctx, BatchCollection, "employeeId", docstore.OpEqual, employeeID)
	if err != nil {
		return coc.Balance{}, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}

	balance := coc.Balance{Uncertified: uncertifiedTotal}
	for _, doc := range docs {
		batch := batchFromDoc(doc)
		balance.TotalEarned = balance.TotalEarned.Add(batch.OriginalHours)
		balance.Used = balance.Used.Add(batch.UsedHours)
		switch batch.Status {
		case coc.BatchActive:
			balance.Active = balance.Active.Add(batch.RemainingHours)
		case coc.BatchExpired:
			balance.Expired = balance.Expired.Add(batch.RemainingHours)
		}
	}
	return balance, nil
}

// --- per-employee advisory lock (spec.md §5) ----------------------------

// WithEmployeeLock acquires a compare-and-set advisory lock document
// for employeeID, runs fn, and always releases the lock. Required
// because the document store has no native multi-document
// transactions or row locks (spec.md §5: "Debit must be serialized per
// employee-id...acquisition is via compare-and-set on a per-employee
// lock document").
func (l *Ledger) WithEmployeeLock(ctx context.Context, employeeID, holder string, fn func(context.Context) error) error {
	lockID := "employee-" + employeeID
	if err := l.docs.Create(ctx, LockCollection, lockID, docstore.Doc{"holder": holder}); err != nil {
		return coc.NewError(coc.KindStoreUnavailable, "could not acquire employee lock, try again")
	}
	defer l.docs.Delete(ctx, LockCollection, lockID)
	return fn(ctx)
}

/*
Package certification implements the Certification Engine (spec.md
§4.5, C5): transitioning uncertified logs to an Active credit batch
with expiration, as a single atomic commit.

Grounded on timeoff/request.go's RequestService.ApproveRequest
(Store.WithTx transactional envelope around a multi-step state
transition) and generic/snapshot.go's PeriodManager.ClosePeriod
staging (compute everything first, then persist in one shot);
generalized from "approve a time-off request" to the seven-step
certify algorithm spec.md §4.5 defines.
*/
package certification

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/config"
	"github.com/cocrecords/coc-engine/docstore"
	"github.com/cocrecords/coc-engine/overtimelog"

	"context"
)

const CertificateCollection = "certificates"

// Input is the Certify operation's request (spec.md §4.5).
type Input struct {
	EmployeeID     string
	MonthName      string
	Year           int
	DateOfIssuance coc.Date
	IssuedBy       string
}

// Engine certifies uncertified logs into credit batches.
type Engine struct {
	Docs docstore.Store
	Logs *overtimelog.Store
}

func New(docs docstore.Store, logs *overtimelog.Store) *Engine {
	return &Engine{Docs: docs, Logs: logs}
}

// Certify runs the certification algorithm (spec.md §4.5). Steps 4-7
// are staged in Go first and committed via one BatchWrite call so they
// are observable as a single commit: either all four artifacts (logs
// Active, batch, ledger credit, certificate) exist, or none do
// (spec.md §8 property C1).
func (e *Engine) Certify(ctx context.Context, today coc.Date, in Input) (*coc.Certificate, error) {
	if in.DateOfIssuance.After(today) {
		return nil, coc.NewError(coc.KindPreconditionFailed, "date-of-issuance cannot be in the future")
	}

	cfg, err := config.Load(ctx, e.Docs)
	if err != nil {
		return nil, err
	}

	existing, err := e.Docs.Match(ctx, CertificateCollection, docstore.Doc{
		"employeeId": in.EmployeeID, "monthName": in.MonthName, "year": in.Year,
	})
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}
	if len(existing) > 0 {
		return nil, coc.NewError(coc.KindAlreadyExists, "already certified for this period")
	}

	uncertified, err := e.Logs.QueryByPeriod(ctx, in.EmployeeID, in.MonthName, in.Year)
	if err != nil {
		return nil, err
	}
	var toCertify []coc.OvertimeLog
	for _, log := range uncertified {
		if log.Status == coc.LogUncertified {
			toCertify = append(toCertify, log)
		}
	}
	if len(toCertify) == 0 {
		return nil, coc.NewError(coc.KindPreconditionFailed, "no uncertified logs for this period")
	}

	// 1. valid-until = issuance + CertificateValidityMonths - 1 day.
	validUntil := in.DateOfIssuance.AddMonths(cfg.CertificateValidityMonths, nil).AddDays(-1, nil)

	// 3. total-hours.
	total := coc.ZeroHours()
	for _, log := range toCertify {
		total = total.Add(log.COCEarned)
	}

	batchID := fmt.Sprintf("batch-%s-%s-%d", in.EmployeeID, in.MonthName, in.Year)
	certificateID := fmt.Sprintf("cert-%s-%s-%d", in.EmployeeID, in.MonthName, in.Year)
	ledgerEntryID := fmt.Sprintf("credit-%s", certificateID)

	// Every document written by this commit carries the same
	// correlation id, so a crash between the log update and the
	// certificate create is detectable by a recovery scan joining on
	// it (spec.md §5).
	correlationID := uuid.NewString()

	var ops []docstore.WriteOp

	// 4. logs -> Active, shared valid-until, tagged with the batch that
	// will fund them so later debit/expire transitions can find them.
	for _, log := range toCertify {
		ops = append(ops, docstore.WriteOp{
			Kind: docstore.WriteUpdate, Collection: overtimelog.Collection, ID: log.LogID,
			Fields: docstore.Doc{
				"status": string(coc.LogActive), "validUntil": validUntil,
				"batchId": batchID, "correlationId": correlationID,
			},
		})
	}

	// 5. batch.
	batch := coc.CreditBatch{
		BatchID:             batchID,
		EmployeeID:          in.EmployeeID,
		EarnedMonth:         in.MonthName,
		EarnedYear:          in.Year,
		OriginalHours:       total,
		RemainingHours:      total,
		UsedHours:           coc.ZeroHours(),
		Status:              coc.BatchActive,
		DateOfIssuance:      in.DateOfIssuance,
		ValidUntil:          validUntil,
		SourceType:          coc.SourceMonthlyCertificate,
		SourceCertificateID: certificateID,
	}
	batchFields := batchToDoc(batch)
	batchFields["correlationId"] = correlationID
	ops = append(ops, docstore.WriteOp{
		Kind: docstore.WriteCreate, Collection: "creditBatches", ID: batchID, Fields: batchFields,
	})

	// 6. ledger credit entry.
	entry := coc.LedgerEntry{
		TransactionID:   ledgerEntryID,
		EmployeeID:      in.EmployeeID,
		TransactionType: coc.TxCredit,
		Hours:           total,
		BatchID:         batchID,
		TransactionDate: in.DateOfIssuance,
		PerformedBy:     in.IssuedBy,
	}
	entryFields := entryToDoc(entry)
	entryFields["correlationId"] = correlationID
	ops = append(ops, docstore.WriteOp{
		Kind: docstore.WriteCreate, Collection: "ledger", ID: ledgerEntryID, Fields: entryFields,
	})

	// 7. certificate record.
	cert := coc.Certificate{
		CertificateID:  certificateID,
		EmployeeID:     in.EmployeeID,
		MonthName:      in.MonthName,
		Year:           in.Year,
		DateOfIssuance: in.DateOfIssuance,
		ValidUntil:     validUntil,
		BatchID:        batchID,
		TotalHours:     total,
		IssuedBy:       in.IssuedBy,
	}
	certFields := certificateToDoc(cert)
	certFields["correlationId"] = correlationID
	ops = append(ops, docstore.WriteOp{
		Kind: docstore.WriteCreate, Collection: CertificateCollection, ID: certificateID, Fields: certFields,
	})

	if err := e.Docs.BatchWrite(ctx, ops); err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}

	return &cert, nil
}

// IncompleteCertifications finds correlation ids shared by Active logs
// with no matching certificate record, i.e. certification commits that
// crashed after step 4 but before step 7 completed (spec.md §5). Each
// returned id identifies a batch of writes an operator should inspect
// and finish or roll back by hand; re-running Certify does not complete
// it, since the period's logs are no longer Uncertified and Certify
// then fails with PreconditionFailed.
func (e *Engine) IncompleteCertifications(ctx context.Context) ([]string, error) {
	activeLogs, err := e.Docs.Where(ctx, overtimelog.Collection, "status", docstore.OpEqual, string(coc.LogActive))
	if err != nil {
		return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
	}

	seen := make(map[string]bool)
	var incomplete []string
	for _, doc := range activeLogs {
		correlationID, _ := doc["correlationId"].(string)
		if correlationID == "" || seen[correlationID] {
			continue
		}
		seen[correlationID] = true

		certs, err := e.Docs.Where(ctx, CertificateCollection, "correlationId", docstore.OpEqual, correlationID)
		if err != nil {
			return nil, coc.NewError(coc.KindStoreUnavailable, err.Error())
		}
		if len(certs) == 0 {
			incomplete = append(incomplete, correlationID)
		}
	}
	return incomplete, nil
}

func batchToDoc(b coc.CreditBatch) docstore.Doc {
	return docstore.Doc{
		"batchId": b.BatchID, "employeeId": b.EmployeeID, "earnedMonth": b.EarnedMonth, "earnedYear": b.EarnedYear,
		"originalHours": b.OriginalHours.Value.String(), "remainingHours": b.RemainingHours.Value.String(),
		"usedHours": b.UsedHours.Value.String(), "status": string(b.Status),
		"dateOfIssuance": b.DateOfIssuance, "validUntil": b.ValidUntil,
		"sourceType": string(b.SourceType), "sourceCertificateId": b.SourceCertificateID, "notes": b.Notes,
	}
}

func entryToDoc(e coc.LedgerEntry) docstore.Doc {
	return docstore.Doc{
		"transactionId": e.TransactionID, "employeeId": e.EmployeeID, "transactionType": string(e.TransactionType),
		"hours": e.Hours.Value.String(), "batchId": e.BatchID, "referenceId": e.ReferenceID,
		"notes": e.Notes, "transactionDate": e.TransactionDate, "performedBy": e.PerformedBy,
	}
}

func certificateToDoc(c coc.Certificate) docstore.Doc {
	return docstore.Doc{
		"certificateId": c.CertificateID, "employeeId": c.EmployeeID, "monthName": c.MonthName, "year": c.Year,
		"dateOfIssuance": c.DateOfIssuance, "validUntil": c.ValidUntil, "batchId": c.BatchID,
		"totalHours": c.TotalHours.Value.String(), "issuedBy": c.IssuedBy,
	}
}

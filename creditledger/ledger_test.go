package creditledger

import (
	"context"
	"testing"
	"time"

	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/docstore"
	"github.com/cocrecords/coc-engine/overtimelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatch(id, employeeID string, remaining, original float64, validUntil coc.Date) coc.CreditBatch {
	return coc.CreditBatch{
		BatchID:        id,
		EmployeeID:     employeeID,
		EarnedMonth:    "January",
		EarnedYear:     2025,
		OriginalHours:  coc.NewHours(original),
		RemainingHours: coc.NewHours(remaining),
		UsedHours:      coc.NewHours(original - remaining),
		Status:         coc.BatchActive,
		DateOfIssuance: coc.NewDate(2025, time.February, 1),
		ValidUntil:     validUntil,
		SourceType:     coc.SourceMonthlyCertificate,
	}
}

// Scenario 6: FIFO debit with mixed expiries (spec.md §8).
func TestDebit_FIFOByValidUntil(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	ledger := New(docs, overtimelog.New(docs))

	b1 := newBatch("B1", "e1", 5.0, 5.0, coc.NewDate(2026, time.January, 31))
	b2 := newBatch("B2", "e1", 4.0, 4.0, coc.NewDate(2026, time.June, 30))
	require.NoError(t, ledger.CreateBatch(ctx, b1))
	require.NoError(t, ledger.CreateBatch(ctx, b2))

	allocs, err := ledger.Debit(ctx, "e1", coc.NewHours(7.0), "req-1", "admin", coc.NewDate(2025, time.July, 1))
	require.NoError(t, err)
	require.Len(t, allocs, 2)
	assert.Equal(t, "B1", allocs[0].BatchID)
	assert.True(t, allocs[0].HoursConsumed.Value.Equal(coc.NewHours(5.0).Value))
	assert.Equal(t, "B2", allocs[1].BatchID)
	assert.True(t, allocs[1].HoursConsumed.Value.Equal(coc.NewHours(2.0).Value))

	got1, _ := ledger.GetBatch(ctx, "B1")
	assert.Equal(t, coc.BatchUsed, got1.Status)
	assert.True(t, got1.RemainingHours.IsZero())

	got2, _ := ledger.GetBatch(ctx, "B2")
	assert.Equal(t, coc.BatchActive, got2.Status)
	assert.True(t, got2.RemainingHours.Value.Equal(coc.NewHours(2.0).Value))
}

func TestDebit_InsufficientBalance(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	ledger := New(docs, overtimelog.New(docs))
	require.NoError(t, ledger.CreateBatch(ctx, newBatch("B1", "e1", 2.0, 2.0, coc.NewDate(2026, time.January, 31))))

	_, err := ledger.Debit(ctx, "e1", coc.NewHours(5.0), "req-1", "admin", coc.NewDate(2025, time.July, 1))
	require.Error(t, err)

	got, _ := ledger.GetBatch(ctx, "B1")
	assert.True(t, got.RemainingHours.Value.Equal(coc.NewHours(2.0).Value), "failed debit must not partially consume")
}

// E1: expire-sweep leaves no Active batch with valid-until < t, and
// emits an Expiration entry equal to the forfeited amount negated.
func TestExpireSweep(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	ledger := New(docs, overtimelog.New(docs))
	require.NoError(t, ledger.CreateBatch(ctx, newBatch("B1", "e1", 3.0, 5.0, coc.NewDate(2025, time.January, 31))))

	require.NoError(t, ledger.ExpireSweep(ctx, coc.NewDate(2025, time.July, 1), "system"))

	got, _ := ledger.GetBatch(ctx, "B1")
	assert.Equal(t, coc.BatchExpired, got.Status)
	assert.True(t, got.RemainingHours.Value.Equal(coc.NewHours(3.0).Value), "remaining-hours preserved for audit")

	entryDoc, err := docs.Get(ctx, LedgerCollection, "expire-B1")
	require.NoError(t, err)
	require.NotNil(t, entryDoc)
	entry := entryFromDoc(entryDoc)
	assert.Equal(t, coc.TxExpiration, entry.TransactionType)
	assert.True(t, entry.Hours.Value.Equal(coc.NewHours(-3.0).Value))

	balance, err := ledger.Balance(ctx, "e1", coc.ZeroHours())
	require.NoError(t, err)
	assert.True(t, balance.Active.IsZero(), "expired batch must not contribute to active balance")
}

// A log mirrors the lifecycle of the batch that funded it: Used once
// its batch is fully debited (the sweep case is
// TestExpireSweep_PropagatesLogStatus below).
func TestDebit_PropagatesLogStatus(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	logs := overtimelog.New(docs)
	ledger := New(docs, logs)

	require.NoError(t, ledger.CreateBatch(ctx, newBatch("B1", "e1", 3.0, 3.0, coc.NewDate(2025, time.January, 31))))
	require.NoError(t, docs.Create(ctx, overtimelog.Collection, "L1", docstore.Doc{
		"logId": "L1", "employeeId": "e1", "monthName": "December", "year": 2024,
		"dateWorked": coc.NewDate(2024, time.December, 2), "dayType": "Weekday",
		"cocEarned": "3", "status": "Active", "batchId": "B1",
	}))

	_, err := ledger.Debit(ctx, "e1", coc.NewHours(3.0), "req-1", "admin", coc.NewDate(2025, time.January, 1))
	require.NoError(t, err)

	log, err := logs.Get(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, coc.LogUsed, log.Status)
}

func TestExpireSweep_PropagatesLogStatus(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	logs := overtimelog.New(docs)
	ledger := New(docs, logs)

	require.NoError(t, ledger.CreateBatch(ctx, newBatch("B1", "e1", 3.0, 5.0, coc.NewDate(2025, time.January, 31))))
	require.NoError(t, docs.Create(ctx, overtimelog.Collection, "L1", docstore.Doc{
		"logId": "L1", "employeeId": "e1", "monthName": "December", "year": 2024,
		"dateWorked": coc.NewDate(2024, time.December, 2), "dayType": "Weekday",
		"cocEarned": "5", "status": "Active", "batchId": "B1",
	}))

	require.NoError(t, ledger.ExpireSweep(ctx, coc.NewDate(2025, time.July, 1), "system"))

	log, err := logs.Get(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, coc.LogExpired, log.Status)
}

// L1: active-balance from batches equals the sum of signed ledger
// hours for non-expired batches.
func TestBalance_MatchesLedgerSum(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	ledger := New(docs, overtimelog.New(docs))
	require.NoError(t, ledger.CreateBatch(ctx, newBatch("B1", "e1", 10.0, 10.0, coc.NewDate(2026, time.January, 31))))
	require.NoError(t, docs.Create(ctx, LedgerCollection, "credit-B1", entryToDoc(coc.LedgerEntry{
		TransactionID: "credit-B1", EmployeeID: "e1", TransactionType: coc.TxCredit,
		Hours: coc.NewHours(10.0), BatchID: "B1", TransactionDate: coc.NewDate(2025, time.February, 1),
	})))

	_, err := ledger.Debit(ctx, "e1", coc.NewHours(4.0), "req-1", "admin", coc.NewDate(2025, time.July, 1))
	require.NoError(t, err)

	balance, err := ledger.Balance(ctx, "e1", coc.ZeroHours())
	require.NoError(t, err)
	assert.True(t, balance.Active.Value.Equal(coc.NewHours(6.0).Value))

	entries, err := docs.Where(ctx, LedgerCollection, "employeeId", docstore.OpEqual, "e1")
	require.NoError(t, err)
	ledgerSum := coc.ZeroHours()
	for _, doc := range entries {
		ledgerSum = ledgerSum.Add(entryFromDoc(doc).Hours)
	}
	assert.True(t, balance.Active.Value.Equal(ledgerSum.Value))
}

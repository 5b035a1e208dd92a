package query

import (
	"context"
	"testing"
	"time"

	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/creditledger"
	"github.com/cocrecords/coc-engine/docstore"
	"github.com/cocrecords/coc-engine/overtimelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLayer(t *testing.T) (*Layer, docstore.Store) {
	t.Helper()
	docs := docstore.NewMemory()
	logs := overtimelog.New(docs)
	return New(docs, logs, creditledger.New(docs, logs)), docs
}

func TestEmployeeLedger_CombinesBatchesAndEntries(t *testing.T) {
	layer, docs := newLayer(t)
	ctx := context.Background()
	ledger := creditledger.New(docs, overtimelog.New(docs))

	require.NoError(t, ledger.CreateBatch(ctx, coc.CreditBatch{
		BatchID: "B1", EmployeeID: "e1", OriginalHours: coc.NewHours(5.0), RemainingHours: coc.NewHours(5.0),
		Status: coc.BatchActive, DateOfIssuance: coc.NewDate(2025, time.March, 1), ValidUntil: coc.NewDate(2026, time.March, 1),
	}))
	_, err := ledger.Debit(ctx, "e1", coc.NewHours(2.0), "ref-1", "admin", coc.NewDate(2025, time.April, 1))
	require.NoError(t, err)

	lines, err := layer.EmployeeLedger(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.Equal(t, "transaction", lines[0].Kind, "most recent activity first")
}

func TestGlobalUncertifiedStats(t *testing.T) {
	layer, docs := newLayer(t)
	ctx := context.Background()
	require.NoError(t, docs.Create(ctx, overtimelog.Collection, "1", overtimelog.ToDoc(coc.OvertimeLog{
		LogID: "1", EmployeeID: "e1", COCEarned: coc.NewHours(1.5), Status: coc.LogUncertified,
	})))
	require.NoError(t, docs.Create(ctx, overtimelog.Collection, "2", overtimelog.ToDoc(coc.OvertimeLog{
		LogID: "2", EmployeeID: "e2", COCEarned: coc.NewHours(2.0), Status: coc.LogUncertified,
	})))
	require.NoError(t, docs.Create(ctx, overtimelog.Collection, "3", overtimelog.ToDoc(coc.OvertimeLog{
		LogID: "3", EmployeeID: "e2", COCEarned: coc.NewHours(9.0), Status: coc.LogActive,
	})))

	stats, err := layer.GlobalUncertifiedStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalLogs)
	assert.True(t, stats.TotalHours.Value.Equal(coc.NewHours(3.5).Value))
}

func TestUncertifiedLogsWithEmployeeNames_Joins(t *testing.T) {
	layer, docs := newLayer(t)
	ctx := context.Background()
	require.NoError(t, docs.Create(ctx, "employees", "e1", docstore.Doc{
		"id": "e1", "first": "Ana", "last": "Cruz", "status": "Active",
	}))
	require.NoError(t, docs.Create(ctx, overtimelog.Collection, "1", overtimelog.ToDoc(coc.OvertimeLog{
		LogID: "1", EmployeeID: "e1", COCEarned: coc.NewHours(1.5), Status: coc.LogUncertified,
	})))

	rows, err := layer.UncertifiedLogsWithEmployeeNames(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ana Cruz", rows[0].EmployeeName)
}

func TestCertifiedMonthsFor(t *testing.T) {
	layer, docs := newLayer(t)
	ctx := context.Background()
	require.NoError(t, docs.Create(ctx, "certificates", "c1", docstore.Doc{
		"employeeId": "e1", "monthName": "March", "year": 2025,
	}))
	require.NoError(t, docs.Create(ctx, "certificates", "c2", docstore.Doc{
		"employeeId": "e1", "monthName": "April", "year": 2025,
	}))

	months, err := layer.CertifiedMonthsFor(ctx, "e1", 2025)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"March", "April"}, months)
}

func TestProgressAgainstCaps(t *testing.T) {
	layer, docs := newLayer(t)
	ctx := context.Background()
	require.NoError(t, docs.Create(ctx, overtimelog.Collection, "1", overtimelog.ToDoc(coc.OvertimeLog{
		LogID: "1", EmployeeID: "e1", MonthName: "March", Year: 2025,
		COCEarned: coc.NewHours(10.0), Status: coc.LogUncertified,
	})))

	progress, err := layer.ProgressAgainstCaps(ctx, "e1", "March", 2025, coc.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, progress.MonthHours.Value.Equal(coc.NewHours(10.0).Value))
	assert.True(t, progress.MonthlyCap.Value.Equal(coc.NewHours(40.0).Value))
	assert.True(t, progress.MonthlyCapRemaining.Value.Equal(coc.NewHours(30.0).Value))
}

// Uncertified hours must count toward the total-cap figure and its
// remaining headroom alongside active (certified) balance.
func TestProgressAgainstCaps_CombinesActiveAndUncertified(t *testing.T) {
	layer, docs := newLayer(t)
	ctx := context.Background()
	ledger := creditledger.New(docs, overtimelog.New(docs))
	require.NoError(t, ledger.CreateBatch(ctx, coc.CreditBatch{
		BatchID: "B1", EmployeeID: "e1", OriginalHours: coc.NewHours(20.0), RemainingHours: coc.NewHours(20.0),
		Status: coc.BatchActive, DateOfIssuance: coc.NewDate(2025, time.February, 1), ValidUntil: coc.NewDate(2026, time.February, 1),
	}))
	require.NoError(t, docs.Create(ctx, overtimelog.Collection, "1", overtimelog.ToDoc(coc.OvertimeLog{
		LogID: "1", EmployeeID: "e1", MonthName: "March", Year: 2025,
		COCEarned: coc.NewHours(5.0), Status: coc.LogUncertified,
	})))

	progress, err := layer.ProgressAgainstCaps(ctx, "e1", "March", 2025, coc.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, progress.ActivePlusUncertified.Value.Equal(coc.NewHours(25.0).Value))
	assert.True(t, progress.TotalCapRemaining.Value.Equal(coc.NewHours(95.0).Value))
}

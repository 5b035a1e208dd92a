package certification

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

func newEngine(t *testing.T) (*Engine, docstore.Store, *overtimelog.Store) {
	t.Helper()
	docs := docstore.NewMemory()
	logs := overtimelog.New(docs)
	return New(docs, logs), docs, logs
}

func seedUncertifiedLog(t *testing.T, docs docstore.Store, logs *overtimelog.Store, id string, hours float64) {
	t.Helper()
	require.NoError(t, docs.Create(context.Background(), overtimelog.Collection, id, overtimelog.ToDoc(coc.OvertimeLog{
		LogID: id, EmployeeID: "e1", MonthName: "March", Year: 2025,
		DateWorked: coc.NewDate(2025, time.March, 10), DayType: coc.Weekday,
		COCEarned: coc.NewHours(hours), Status: coc.LogUncertified,
	})))
}

// Scenario 5 / property C2: valid-until is issuance + 12 months - 1 day,
// and every certified log shares that same valid-until.
func TestCertify_ValidUntilConsistency(t *testing.T) {
	engine, docs, logs := newEngine(t)
	ctx := context.Background()
	seedUncertifiedLog(t, docs, logs, "1", 1.5)
	seedUncertifiedLog(t, docs, logs, "2", 2.0)

	today := coc.NewDate(2025, time.April, 1)
	cert, err := engine.Certify(ctx, today, Input{
		EmployeeID: "e1", MonthName: "March", Year: 2025,
		DateOfIssuance: coc.NewDate(2025, time.April, 1), IssuedBy: "admin",
	})
	require.NoError(t, err)

	wantValidUntil := coc.NewDate(2026, time.March, 31)
	assert.True(t, cert.ValidUntil.Equal(wantValidUntil))
	assert.True(t, cert.TotalHours.Value.Equal(coc.NewHours(3.5).Value))

	log1, err := logs.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, coc.LogActive, log1.Status)
	require.NotNil(t, log1.ValidUntil)
	assert.True(t, log1.ValidUntil.Equal(wantValidUntil))

	log2, err := logs.Get(ctx, "2")
	require.NoError(t, err)
	assert.True(t, log2.ValidUntil.Equal(wantValidUntil))

	batchDoc, err := docs.Get(ctx, "creditBatches", cert.BatchID)
	require.NoError(t, err)
	require.NotNil(t, batchDoc)

	entryDoc, err := docs.Get(ctx, "ledger", "credit-"+cert.CertificateID)
	require.NoError(t, err)
	require.NotNil(t, entryDoc)
}

// A second call for the same period fails with AlreadyExists and
// writes nothing: the first commit's ledger credit stays the only one.
func TestCertify_Idempotent(t *testing.T) {
	engine, docs, logs := newEngine(t)
	ctx := context.Background()
	seedUncertifiedLog(t, docs, logs, "1", 1.5)

	today := coc.NewDate(2025, time.April, 1)
	in := Input{EmployeeID: "e1", MonthName: "March", Year: 2025, DateOfIssuance: today, IssuedBy: "admin"}

	_, err := engine.Certify(ctx, today, in)
	require.NoError(t, err)

	_, err = engine.Certify(ctx, today, in)
	require.Error(t, err)
	var cocErr *coc.Error
	require.ErrorAs(t, err, &cocErr)
	assert.Equal(t, coc.KindAlreadyExists, cocErr.Kind)

	credits, err := docs.Where(ctx, "ledger", "employeeId", docstore.OpEqual, "e1")
	require.NoError(t, err)
	assert.Len(t, credits, 1, "a rejected repeat must not write a second ledger credit")
}

func TestCertify_NoUncertifiedLogsFails(t *testing.T) {
	engine, _, _ := newEngine(t)
	ctx := context.Background()
	today := coc.NewDate(2025, time.April, 1)

	_, err := engine.Certify(ctx, today, Input{
		EmployeeID: "e1", MonthName: "March", Year: 2025, DateOfIssuance: today, IssuedBy: "admin",
	})
	require.Error(t, err)
	var cocErr *coc.Error
	require.ErrorAs(t, err, &cocErr)
	assert.Equal(t, coc.KindPreconditionFailed, cocErr.Kind)
}

func TestCertify_FutureIssuanceRejected(t *testing.T) {
	engine, docs, logs := newEngine(t)
	ctx := context.Background()
	seedUncertifiedLog(t, docs, logs, "1", 1.5)

	today := coc.NewDate(2025, time.April, 1)
	_, err := engine.Certify(ctx, today, Input{
		EmployeeID: "e1", MonthName: "March", Year: 2025,
		DateOfIssuance: coc.NewDate(2025, time.April, 2), IssuedBy: "admin",
	})
	require.Error(t, err)
	var cocErr *coc.Error
	require.ErrorAs(t, err, &cocErr)
	assert.Equal(t, coc.KindPreconditionFailed, cocErr.Kind)
}

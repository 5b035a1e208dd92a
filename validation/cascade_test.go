package validation

import (
	"context"
	"testing"
	"time"

	"github.com/cocrecords/coc-engine/calendar"
	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/creditledger"
	"github.com/cocrecords/coc-engine/docstore"
	"github.com/cocrecords/coc-engine/overtimelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCascade(t *testing.T) (*Cascade, docstore.Store) {
	t.Helper()
	docs := docstore.NewMemory()
	require.NoError(t, docs.Create(context.Background(), "employees", "e1", docstore.Doc{"status": "Active"}))
	logs := overtimelog.New(docs)
	cascade := New(docs, logs, creditledger.New(docs, logs), calendar.New([]int{0, 6}, time.UTC))
	return cascade, docs
}

// Scenario 1: weekday single session (spec.md §8).
func TestSubmit_WeekdaySingleSession(t *testing.T) {
	cascade, _ := newCascade(t)
	result, err := cascade.Submit(context.Background(), BatchInput{
		EmployeeID: "e1", MonthName: "March", Year: 2025,
		Entries: []EntryInput{{
			Date: coc.NewDate(2025, time.March, 10),
			AMIn: "8:00 AM", AMOut: "12:00 PM", PMIn: "1:00 PM", PMOut: "6:30 PM",
		}},
		LoggedBy: "admin",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.EntriesLogged)
	assert.True(t, result.TotalCreditHours.Value.Equal(coc.NewHours(1.5).Value))
}

// V2: duplicate-idempotence — same date twice yields one persisted log.
func TestSubmit_DuplicateWithinBatchIsSkipped(t *testing.T) {
	cascade, _ := newCascade(t)
	entry := EntryInput{Date: coc.NewDate(2025, time.March, 10), AMIn: "8:00 AM", AMOut: "12:00 PM"}
	result, err := cascade.Submit(context.Background(), BatchInput{
		EmployeeID: "e1", MonthName: "March", Year: 2025,
		Entries: []EntryInput{entry, entry},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.EntriesLogged)
	assert.Len(t, result.SkippedDuplicates, 1)
}

// Scenario 4: monthly cap rejection — zero logs persisted.
func TestSubmit_MonthlyCapExceeded(t *testing.T) {
	cascade, docs := newCascade(t)
	ctx := context.Background()

	require.NoError(t, docs.Create(ctx, overtimelog.Collection, "1", overtimelog.ToDoc(coc.OvertimeLog{
		LogID: "1", EmployeeID: "e1", MonthName: "March", Year: 2025,
		DateWorked: coc.NewDate(2025, time.March, 1), DayType: coc.Weekend,
		COCEarned: coc.NewHours(38.0), Status: coc.LogUncertified,
	})))

	_, err := cascade.Submit(ctx, BatchInput{
		EmployeeID: "e1", MonthName: "March", Year: 2025,
		Entries: []EntryInput{{
			Date: coc.NewDate(2025, time.March, 15), AMIn: "8:00 AM", AMOut: "12:00 PM", PMIn: "1:00 PM", PMOut: "3:00 PM",
		}},
	})
	require.Error(t, err)
	var cocErr *coc.Error
	require.ErrorAs(t, err, &cocErr)
	assert.Equal(t, coc.KindCapMonthly, cocErr.Kind)

	logs, _ := overtimelog.New(docs).QueryByPeriod(ctx, "e1", "March", 2025)
	assert.Len(t, logs, 1, "post-state must equal pre-state on rejection")
}

// Used logs are terminal (spec.md §3's lifecycle chain ends any log at
// Used or Expired) and must not keep occupying their month's cap.
func TestSubmit_UsedLogsDoNotCountAgainstMonthlyCap(t *testing.T) {
	cascade, docs := newCascade(t)
	ctx := context.Background()

	require.NoError(t, docs.Create(ctx, overtimelog.Collection, "1", overtimelog.ToDoc(coc.OvertimeLog{
		LogID: "1", EmployeeID: "e1", MonthName: "March", Year: 2025,
		DateWorked: coc.NewDate(2025, time.March, 1), DayType: coc.Weekend,
		COCEarned: coc.NewHours(38.0), Status: coc.LogUsed,
	})))

	result, err := cascade.Submit(ctx, BatchInput{
		EmployeeID: "e1", MonthName: "March", Year: 2025,
		Entries: []EntryInput{{
			Date: coc.NewDate(2025, time.March, 15), AMIn: "8:00 AM", AMOut: "12:00 PM", PMIn: "1:00 PM", PMOut: "3:00 PM",
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.EntriesLogged)
}

// V3: period-lock — a certified period rejects all writes.
func TestSubmit_PeriodLockedCertified(t *testing.T) {
	cascade, docs := newCascade(t)
	ctx := context.Background()
	require.NoError(t, docs.Create(ctx, "certificates", "c1", docstore.Doc{
		"employeeId": "e1", "monthName": "March", "year": 2025,
	}))

	_, err := cascade.Submit(ctx, BatchInput{
		EmployeeID: "e1", MonthName: "March", Year: 2025,
		Entries: []EntryInput{{Date: coc.NewDate(2025, time.March, 10)}},
	})
	require.Error(t, err)
	var cocErr *coc.Error
	require.ErrorAs(t, err, &cocErr)
	assert.Equal(t, coc.KindPeriodLocked, cocErr.Kind)
	assert.Equal(t, coc.LockCertified, cocErr.Subkind)
}

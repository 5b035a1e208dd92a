package overtimelog

import (
	"context"
	"testing"
	"time"

	"github.com/cocrecords/coc-engine/coc"
	"github.com/cocrecords/coc-engine/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(id, employeeID string, year int) coc.OvertimeLog {
	return coc.OvertimeLog{
		LogID:      id,
		EmployeeID: employeeID,
		MonthName:  "March",
		Year:       year,
		DateWorked: coc.NewDate(year, time.March, 10),
		DayType:    coc.Weekday,
		COCEarned:  coc.NewHours(1.5),
		Status:     coc.LogUncertified,
		LoggedBy:   "admin",
	}
}

func TestStore_CreateGetQuery(t *testing.T) {
	ctx := context.Background()
	store := New(docstore.NewMemory())

	require.NoError(t, store.CreateMany(ctx, []coc.OvertimeLog{
		newTestLog("1", "e1", 2025),
		newTestLog("2", "e1", 2024),
	}))

	got, err := store.Get(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "e1", got.EmployeeID)
	assert.True(t, got.COCEarned.Value.Equal(coc.NewHours(1.5).Value))

	byPeriod, err := store.QueryByPeriod(ctx, "e1", "March", 2025)
	require.NoError(t, err)
	assert.Len(t, byPeriod, 1)

	total, err := store.QueryUncertifiedMonthTotal(ctx, "e1", "March", 2025)
	require.NoError(t, err)
	assert.True(t, total.Value.Equal(coc.NewHours(1.5).Value))
}

func TestStore_DeleteOnlyUncertified(t *testing.T) {
	ctx := context.Background()
	store := New(docstore.NewMemory())
	log := newTestLog("1", "e1", 2025)
	log.Status = coc.LogActive
	require.NoError(t, store.CreateMany(ctx, []coc.OvertimeLog{log}))

	err := store.Delete(ctx, "1")
	require.Error(t, err)
	var cocErr *coc.Error
	require.ErrorAs(t, err, &cocErr)
	assert.Equal(t, coc.KindPreconditionFailed, cocErr.Kind)
}

func TestStore_NextLogIDMonotonic(t *testing.T) {
	ctx := context.Background()
	store := New(docstore.NewMemory())
	id1, err := store.NextLogID(ctx)
	require.NoError(t, err)
	require.NoError(t, store.CreateMany(ctx, []coc.OvertimeLog{newTestLog(id1, "e1", 2025)}))

	// toDoc stores logId as the id string, which MaxID parses, so the
	// next id is one past the stored one.
	id2, err := store.NextLogID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1", id1)
	assert.Equal(t, "2", id2)
}

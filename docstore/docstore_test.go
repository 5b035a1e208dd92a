package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Create(ctx, "employees", "e1", Doc{"status": "Active", "name": "Jane"}))

	got, err := m.Get(ctx, "employees", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", got["name"])

	err = m.Create(ctx, "employees", "e1", Doc{"status": "Active"})
	require.Error(t, err)

	require.NoError(t, m.Update(ctx, "employees", "e1", Doc{"status": "Inactive"}))
	got, _ = m.Get(ctx, "employees", "e1")
	assert.Equal(t, "Inactive", got["status"])
	assert.Equal(t, "Jane", got["name"])
}

func TestMemory_WhereAndMatch(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, "overtimeLogs", "1", Doc{"employeeId": "e1", "year": 2025, "month": 3}))
	require.NoError(t, m.Create(ctx, "overtimeLogs", "2", Doc{"employeeId": "e1", "year": 2024, "month": 3}))
	require.NoError(t, m.Create(ctx, "overtimeLogs", "3", Doc{"employeeId": "e2", "year": 2025, "month": 3}))

	res, err := m.Where(ctx, "overtimeLogs", "year", OpGreaterEqual, 2025)
	require.NoError(t, err)
	assert.Len(t, res, 2)

	res, err = m.Match(ctx, "overtimeLogs", Doc{"employeeId": "e1", "year": 2025})
	require.NoError(t, err)
	assert.Len(t, res, 1)
	assert.Equal(t, "1", res[0]["id"])
}

func TestMemory_MaxID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, "overtimeLogs", "5", Doc{"logId": int64(5)}))
	require.NoError(t, m.Create(ctx, "overtimeLogs", "9", Doc{"logId": int64(9)}))

	next, err := m.MaxID(ctx, "overtimeLogs", "logId")
	require.NoError(t, err)
	assert.Equal(t, int64(10), next)
}

func TestMemory_BatchWriteAtomicity(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Create(ctx, "employees", "e1", Doc{"status": "Active"}))

	err := m.BatchWrite(ctx, []WriteOp{
		{Kind: WriteUpdate, Collection: "employees", ID: "e1", Fields: Doc{"status": "Inactive"}},
		{Kind: WriteCreate, Collection: "employees", ID: "e1", Fields: Doc{"status": "duplicate"}}, // fails: already exists
	})
	require.Error(t, err)

	got, _ := m.Get(ctx, "employees", "e1")
	assert.Equal(t, "Active", got["status"], "failed batch must leave pre-state untouched")
}

package qvalue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanwatts07/drift-agents/internal/storage"
)

func TestUpdateClampsToUnitInterval(t *testing.T) {
	require.InDelta(t, 0.65, Update(0.5, 0.3, 1.0), 1e-9)
	require.Equal(t, 0.0, Update(0.1, 1.0, -5))
	require.Equal(t, 1.0, Update(0.9, 1.0, 5))
}

func TestCreditAssignPositive(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.InsertMemory(ctx, storage.Memory{ID: id, Type: storage.MemoryActive, QValue: 0.5}))
	}
	ids, _ := json.Marshal([]string{"a", "b", "c"})
	require.NoError(t, store.KVSet(ctx, wakeRetrievedKey, ids))

	eng := New(store)
	applied, err := eng.CreditAssign(ctx, "sess-1", true)
	require.NoError(t, err)
	require.Equal(t, 3, applied)

	for _, id := range []string{"a", "b", "c"} {
		m, ok, err := store.GetMemory(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		require.Greater(t, m.QValue, 0.5)
	}

	_, ok, err := store.KVGet(ctx, wakeRetrievedKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCreditAssignDeadEnd(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	require.NoError(t, store.InsertMemory(ctx, storage.Memory{ID: "a", Type: storage.MemoryActive, QValue: 0.5}))
	ids, _ := json.Marshal([]string{"a"})
	require.NoError(t, store.KVSet(ctx, wakeRetrievedKey, ids))

	eng := New(store)
	_, err := eng.CreditAssign(ctx, "sess-1", false)
	require.NoError(t, err)

	m, _, err := store.GetMemory(ctx, "a")
	require.NoError(t, err)
	require.LessOrEqual(t, m.QValue, 0.5)
}

func TestComputeStatsCountsBuckets(t *testing.T) {
	st := ComputeStats([]storage.Memory{
		{QValue: 0.5}, {QValue: 0.8}, {QValue: 0.2},
	})
	require.Equal(t, 3, st.Count)
	require.Equal(t, 2, st.Trained)
	require.Equal(t, 1, st.HighQ)
	require.Equal(t, 1, st.LowQ)
}

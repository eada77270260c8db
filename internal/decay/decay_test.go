package decay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanwatts07/drift-agents/internal/config"
	"github.com/alanwatts07/drift-agents/internal/storage"
)

func defaultCfg() config.DecayConfig {
	return config.DecayConfig{Gamma: 0.95, FreshnessFloor: 0.1, PromotionRecallMin: 3}
}

func TestRunDecaysFreshnessForAllActive(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	require.NoError(t, store.InsertMemory(ctx, storage.Memory{ID: "a", Type: storage.MemoryActive, Freshness: 1.0}))

	_, err := Run(ctx, store, defaultCfg(), nil)
	require.NoError(t, err)

	m, _, _ := store.GetMemory(ctx, "a")
	require.InDelta(t, 0.95, m.Freshness, 1e-9)
}

func TestRunArchivesLowFreshnessZeroRecall(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	require.NoError(t, store.InsertMemory(ctx, storage.Memory{ID: "a", Type: storage.MemoryActive, Freshness: 0.05, RecallCount: 0}))

	res, err := Run(ctx, store, defaultCfg(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Archived)

	m, _, _ := store.GetMemory(ctx, "a")
	require.Equal(t, storage.MemoryArchive, m.Type)
}

func TestRunPromotesHighRecallToCore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	require.NoError(t, store.InsertMemory(ctx, storage.Memory{ID: "a", Type: storage.MemoryActive, Freshness: 0.9, RecallCount: 5}))

	res, err := Run(ctx, store, defaultCfg(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Promoted)

	m, _, _ := store.GetMemory(ctx, "a")
	require.Equal(t, storage.MemoryCore, m.Type)
}

func TestRunSkipsSessionsSinceRecallIncrementForRecalledThisSession(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	require.NoError(t, store.InsertMemory(ctx, storage.Memory{ID: "a", Type: storage.MemoryActive, Freshness: 0.9, SessionsSinceRecall: 0}))

	_, err := Run(ctx, store, defaultCfg(), map[string]bool{"a": true})
	require.NoError(t, err)

	m, _, _ := store.GetMemory(ctx, "a")
	require.Equal(t, 0, m.SessionsSinceRecall)
}

package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanwatts07/drift-agents/internal/storage"
	"github.com/alanwatts07/drift-agents/internal/storage/qdrantindex"
)

func TestAssembleWakeEmptyNamespace(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	eng := New(store, nil)

	p, err := eng.AssembleWake(ctx, "test", time.Now())
	require.NoError(t, err)
	require.Contains(t, p.Text, "No memories yet")
	require.Empty(t, p.RecalledIDs)
}

func TestAssembleWakeCreditsSurfacedMemoriesAndPersistsKV(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	require.NoError(t, store.InsertMemory(ctx, storage.Memory{ID: "m1", Type: storage.MemoryActive, Content: "recent work", QValue: 0.5}))
	require.NoError(t, store.InsertMemory(ctx, storage.Memory{ID: "m2", Type: storage.MemoryCore, Content: "core fact", QValue: 0.5}))

	eng := New(store, nil)
	p, err := eng.AssembleWake(ctx, "test", time.Now())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"m1", "m2"}, p.RecalledIDs)

	m1, _, _ := store.GetMemory(ctx, "m1")
	require.Equal(t, 1, m1.RecallCount)
	require.Equal(t, 0, m1.SessionsSinceRecall)
	require.NotNil(t, m1.LastRecalled)

	raw, ok, err := store.KVGet(ctx, wakeRetrievedKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, string(raw), "m1")
}

func TestSearchCompositeScoreWithZeroLambdaMatchesSimilarityOrder(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	require.NoError(t, store.InsertMemory(ctx, storage.Memory{ID: "a", Type: storage.MemoryActive, Content: "alpha", QValue: 0.9}))
	require.NoError(t, store.InsertMemory(ctx, storage.Memory{ID: "b", Type: storage.MemoryActive, Content: "beta", QValue: 0.1}))
	require.NoError(t, store.UpsertEmbedding(ctx, storage.Embedding{MemoryID: "a", Vector: []float32{1, 0}}))
	require.NoError(t, store.UpsertEmbedding(ctx, storage.Embedding{MemoryID: "b", Vector: []float32{0.9, 0.1}}))

	eng := New(store, &fakeEmbedder{vec: []float32{1, 0}})
	eng.Lambda = 0
	results, err := eng.Search(ctx, "alpha")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "a", results[0].Memory.ID)
}

type fakeEmbedder struct{ vec []float32 }

func (f *fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = f.vec
	}
	return out, nil
}

type fakeSharedIndex struct{ hits []qdrantindex.Result }

func (f *fakeSharedIndex) Search(_ context.Context, _ []float32, limit int) ([]qdrantindex.Result, error) {
	if limit > 0 && limit < len(f.hits) {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func TestSearchSharedRanksByIndexScoreAndResolvesContent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("agent-a")
	require.NoError(t, store.SharedInsert(ctx, storage.SharedMemory{ID: "s1", Content: "outage in payments api", CreatedBy: "agent-b"}))
	require.NoError(t, store.SharedInsert(ctx, storage.SharedMemory{ID: "s2", Content: "unrelated chit chat", CreatedBy: "agent-b"}))

	eng := New(store, &fakeEmbedder{vec: []float32{1, 0}})
	eng.SharedIndex = &fakeSharedIndex{hits: []qdrantindex.Result{{ID: "s1", Score: 0.9}}}

	results, err := eng.SearchShared(ctx, "payments outage", 8)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "s1", results[0].ID)
	require.Equal(t, 0.9, results[0].Score)
	require.Equal(t, "agent-b", results[0].CreatedBy)
}

func TestSearchSharedRequiresIndex(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("agent-a")
	eng := New(store, &fakeEmbedder{vec: []float32{1, 0}})

	_, err := eng.SearchShared(ctx, "anything", 8)
	require.Error(t, err)
}

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanwatts07/drift-agents/internal/storage"
)

func TestExtractEdgesSkipsNewMemoryItself(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	m := storage.Memory{ID: "a", Type: storage.MemoryActive, Content: "the database migration finished successfully"}
	require.NoError(t, store.InsertMemory(ctx, m))

	eng := New(store)
	require.NoError(t, eng.ExtractEdges(ctx, m))

	edges, err := store.ListTypedEdges(ctx, "a")
	require.NoError(t, err)
	require.Empty(t, edges)
}

func TestExtractEdgesFindsOverlap(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	existing := storage.Memory{ID: "a", Type: storage.MemoryActive, Content: "database migration finished successfully today"}
	require.NoError(t, store.InsertMemory(ctx, existing))

	newMem := storage.Memory{ID: "b", Type: storage.MemoryActive, Content: "database migration required manual cleanup today"}
	require.NoError(t, store.InsertMemory(ctx, newMem))

	eng := New(store)
	require.NoError(t, eng.ExtractEdges(ctx, newMem))

	edges, err := store.ListTypedEdges(ctx, "b")
	require.NoError(t, err)
	require.NotEmpty(t, edges)
}

func TestCategorizeLessonDefaultsToHeuristic(t *testing.T) {
	require.Equal(t, CategoryHeuristic, CategorizeLesson("always double-check assumptions"))
	require.Equal(t, CategoryTechnical, CategorizeLesson("the API endpoint returns 500 under load"))
}

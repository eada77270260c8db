package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInsertMemoryThenListIncludesIt(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore("test")
	m := Memory{ID: "abc12345", Type: MemoryActive, Content: "hello world", QValue: 0.5, Freshness: 1}
	require.NoError(t, s.InsertMemory(ctx, m))

	list, err := s.ListMemories(ctx, MemoryActive, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, m.ID, list[0].ID)
}

func TestUpsertEmbeddingThenSearchSimilarFindsOnlyMember(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore("test")
	m := Memory{ID: "abc12345", Type: MemoryActive, Content: "hello"}
	require.NoError(t, s.InsertMemory(ctx, m))
	vec := []float32{1, 0, 0}
	require.NoError(t, s.UpsertEmbedding(ctx, Embedding{MemoryID: m.ID, Vector: vec}))

	results, err := s.SearchSimilar(ctx, vec, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, m.ID, results[0].Memory.ID)
}

func TestIncrementCoOccurrenceIsSymmetric(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore("test")
	require.NoError(t, s.IncrementCoOccurrence(ctx, "a", "b"))
	require.NoError(t, s.IncrementCoOccurrence(ctx, "a", "b"))

	ab, err := s.ListCoOccurrences(ctx, "a")
	require.NoError(t, err)
	require.Len(t, ab, 1)
	require.Equal(t, 2, ab[0].Count)

	ba, err := s.ListCoOccurrences(ctx, "b")
	require.NoError(t, err)
	require.Len(t, ba, 1)
	require.Equal(t, ab[0].Count, ba[0].Count)
}

func TestIncrementCoOccurrenceRejectsSelfPair(t *testing.T) {
	s := NewMemStore("test")
	err := s.IncrementCoOccurrence(context.Background(), "a", "a")
	require.Error(t, err)
}

func TestKVSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore("test")
	_, ok, err := s.KVGet(ctx, ".wake_retrieved_ids")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.KVSet(ctx, ".wake_retrieved_ids", []byte(`["a","b"]`)))
	v, ok, err := s.KVGet(ctx, ".wake_retrieved_ids")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `["a","b"]`, string(v))

	require.NoError(t, s.KVDelete(ctx, ".wake_retrieved_ids"))
	_, ok, err = s.KVGet(ctx, ".wake_retrieved_ids")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSharedInsertDeduplicatesByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore("agent-a")
	m := SharedMemory{ID: "dup1", Content: "x", CreatedBy: "agent-a"}
	require.NoError(t, s.SharedInsert(ctx, m))
	require.NoError(t, s.SharedInsert(ctx, m))

	others, err := s.SharedListExcept(ctx, "agent-b", 10)
	require.NoError(t, err)
	require.Len(t, others, 1)
}

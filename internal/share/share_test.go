package share

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanwatts07/drift-agents/internal/storage"
)

// fakeEmbedder returns a fixed-width zero vector per input, enough to
// exercise the indexing path without a real embedding endpoint.
type fakeEmbedder struct{ calls int }

func (f *fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeIndex records every Upsert call in place of a real qdrantindex.Index.
type fakeIndex struct {
	ids []string
}

func (f *fakeIndex) Upsert(_ context.Context, id string, _ []float32, _ string) error {
	f.ids = append(f.ids, id)
	return nil
}

func TestShareBlocksOpinionContentRegardlessOfWhitelist(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("agent-a")
	eng := New(store, "agent-a", nil)

	memories := []storage.Memory{
		{ID: "m1", Content: `I voted CON on the API endpoint proposal`, Tags: []string{"thread"}},
	}
	n, err := eng.Share(ctx, memories, time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, n)

	shared, err := store.SharedListExcept(ctx, "nobody", 10)
	require.NoError(t, err)
	require.Empty(t, shared)
}

func TestSharePassesPlatformMechanicsLesson(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("agent-a")
	eng := New(store, "agent-a", nil)

	memories := []storage.Memory{
		{ID: "m1", Content: "API endpoint X returns 500 under load", Tags: []string{"lesson"}},
	}
	n, err := eng.Share(ctx, memories, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	shared, err := store.SharedListExcept(ctx, "nobody", 10)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	require.Equal(t, "agent-a", shared[0].CreatedBy)
	require.Contains(t, shared[0].Tags, "from-agent-a")
}

func TestShareRejectsContentWithNoWhitelistMatch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("agent-a")
	eng := New(store, "agent-a", nil)

	memories := []storage.Memory{
		{ID: "m1", Content: "Had a quiet day, nothing notable happened", Tags: []string{"thread"}},
	}
	n, err := eng.Share(ctx, memories, time.Now())
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestShareMatchesKnownNamespaceMention(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("agent-a")
	eng := New(store, "agent-a", []string{"agent-b"})

	memories := []storage.Memory{
		{ID: "m1", Content: "Coordinated with agent-b on the handoff", Tags: []string{"thread"}},
	}
	n, err := eng.Share(ctx, memories, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestShareUpdatesRegistryEvenWhenNothingShared(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("agent-a")
	eng := New(store, "agent-a", nil)

	_, err := eng.Share(ctx, nil, time.Now())
	require.NoError(t, err)
}

func TestShareIndexesEligibleMemoriesWhenConfigured(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("agent-a")
	eng := New(store, "agent-a", nil)
	idx := &fakeIndex{}
	emb := &fakeEmbedder{}
	eng.Index = idx
	eng.Embedder = emb

	memories := []storage.Memory{
		{ID: "m1", Content: "API endpoint X returns 500 under load", Tags: []string{"lesson"}},
	}
	n, err := eng.Share(ctx, memories, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, emb.calls)
	require.Equal(t, []string{"m1"}, idx.ids)
}

func TestShareSkipsIndexingWithoutConfiguredIndex(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("agent-a")
	eng := New(store, "agent-a", nil)

	memories := []storage.Memory{
		{ID: "m1", Content: "API endpoint X returns 500 under load", Tags: []string{"lesson"}},
	}
	n, err := eng.Share(ctx, memories, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

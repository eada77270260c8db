package narrative

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanwatts07/drift-agents/internal/llm"
	"github.com/alanwatts07/drift-agents/internal/storage"
)

type fakeProvider struct {
	text string
	err  error
}

func (f *fakeProvider) Complete(ctx context.Context, msgs []llm.Message, maxTokens int, temperature float64) (string, error) {
	return f.text, f.err
}

func TestParagraphEmptyStoreReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	g := New(store, &fakeProvider{text: "ignored"}, "model")
	require.Equal(t, "", g.Paragraph(ctx, time.Now()))
}

func TestParagraphGeneratesFromMemories(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	require.NoError(t, store.InsertMemory(ctx, storage.Memory{ID: "a", Type: storage.MemoryCore, Content: "shipped v1"}))

	g := New(store, &fakeProvider{text: "I have been shipping steadily."}, "model")
	out := g.Paragraph(ctx, time.Now())
	require.Equal(t, "I have been shipping steadily.", out)
}

func TestParagraphFailurePreservesPreviousCache(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("test")
	require.NoError(t, store.InsertMemory(ctx, storage.Memory{ID: "a", Type: storage.MemoryCore, Content: "shipped v1"}))

	g := New(store, &fakeProvider{text: "ok narrative"}, "model")
	first := g.Paragraph(ctx, time.Now())
	require.NotEmpty(t, first)

	g.LLM = &fakeProvider{err: context.DeadlineExceeded}
	g.cachedAt = time.Time{} // force regeneration attempt
	second := g.Paragraph(ctx, time.Now())
	require.Equal(t, first, second)
}

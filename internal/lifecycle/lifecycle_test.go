package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanwatts07/drift-agents/internal/affect"
	"github.com/alanwatts07/drift-agents/internal/config"
	"github.com/alanwatts07/drift-agents/internal/llm"
	"github.com/alanwatts07/drift-agents/internal/storage"
)

type fakeProvider struct{ text string }

func (f *fakeProvider) Complete(ctx context.Context, msgs []llm.Message, maxTokens int, temperature float64) (string, error) {
	return f.text, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func decayCfg() config.DecayConfig {
	return config.DecayConfig{Gamma: 0.95, FreshnessFloor: 0.1, PromotionRecallMin: 3}
}

func TestWakeOnEmptyStoreProducesNoMemoriesPreamble(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("agent-a")
	orch := New(store, "agent-a", nil, &fakeProvider{}, "model", fakeEmbedder{}, decayCfg(), nil)

	res, err := orch.Wake(ctx, time.Now())
	require.NoError(t, err)
	require.Contains(t, res.Preamble, "No memories yet.")
}

func TestSleepIngestsSummaryAndReportsMemoriesCreated(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("agent-a")
	orch := New(store, "agent-a", nil, &fakeProvider{}, "model", fakeEmbedder{}, decayCfg(), nil)

	summarizer := &fakeProvider{text: `{"threads":[{"name":"refactor-auth","summary":"done","status":"completed"}],"lessons":["API endpoint X returns 500 under load"],"facts":["deploy uses blue/green"]}`}

	res, err := orch.Sleep(ctx, []byte("raw transcript text here"), summarizer, "model", nil, time.Now())
	require.NoError(t, err)
	require.Equal(t, 3, res.MemoriesCreated)
	require.Equal(t, 2, res.Shared)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Total)
}

func TestSleepWithoutSummarizerFallsBackToRawIngest(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore("agent-a")
	orch := New(store, "agent-a", nil, &fakeProvider{}, "model", fakeEmbedder{}, decayCfg(), nil)

	res, err := orch.Sleep(ctx, []byte("a plain transcript with no structured summary"), nil, "", []affect.Event{{Kind: affect.EventMemoryStored}}, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, res.MemoriesCreated)
}

// Package narrative produces a short identity/trajectory paragraph from
// high-importance and core memories (C11).
package narrative

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alanwatts07/drift-agents/internal/llm"
	"github.com/alanwatts07/drift-agents/internal/observability"
	"github.com/alanwatts07/drift-agents/internal/storage"
)

// CacheTTL is how long a cached narrative remains valid before
// regeneration is attempted on the next request.
const CacheTTL = 24 * time.Hour

// Backend is the subset of storage.Backend narrative needs.
type Backend interface {
	ListMemories(ctx context.Context, memType storage.MemoryType, limit int) ([]storage.Memory, error)
}

// Generator produces and caches the self-narrative paragraph.
type Generator struct {
	Store Backend
	LLM   llm.Provider
	Model string

	cached    string
	cachedAt  time.Time
}

func New(store Backend, provider llm.Provider, model string) *Generator {
	return &Generator{Store: store, LLM: provider, Model: model}
}

// Paragraph returns the cached narrative if still fresh, else regenerates
// it from core and high-importance memories. Failure returns "" (spec
// §4.11); the previous cached value, if any, is preserved.
func (g *Generator) Paragraph(ctx context.Context, now time.Time) string {
	if g.cached != "" && now.Sub(g.cachedAt) < CacheTTL {
		return g.cached
	}

	log := observability.LoggerWithTrace(ctx)
	source, err := g.sourceMemories(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("narrative_source_lookup_failed")
		return g.cached
	}
	if len(source) == 0 {
		return g.cached
	}

	if g.LLM == nil {
		return g.cached
	}

	prompt := buildPrompt(source)
	text, err := g.LLM.Complete(ctx, []llm.Message{
		{Role: "system", Content: "You write a brief first-person identity/progress paragraph from a list of memories. Keep it under 120 words."},
		{Role: "user", Content: prompt},
	}, 300, 0.4)
	if err != nil {
		log.Warn().Err(err).Msg("narrative_generation_failed")
		return g.cached
	}

	g.cached = strings.TrimSpace(text)
	g.cachedAt = now
	return g.cached
}

func (g *Generator) sourceMemories(ctx context.Context) ([]storage.Memory, error) {
	core, err := g.Store.ListMemories(ctx, storage.MemoryCore, 10)
	if err != nil {
		return nil, fmt.Errorf("list core memories: %w", err)
	}
	active, err := g.Store.ListMemories(ctx, storage.MemoryActive, 0)
	if err != nil {
		return nil, fmt.Errorf("list active memories: %w", err)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Importance > active[j].Importance })
	top := 10
	if len(active) > top {
		active = active[:top]
	}
	return append(core, active...), nil
}

func buildPrompt(memories []storage.Memory) string {
	var sb strings.Builder
	sb.WriteString("Memories:\n")
	for _, m := range memories {
		sb.WriteString("- " + m.Content + "\n")
	}
	return sb.String()
}

// Package retrieval assembles the wake preamble and serves hybrid
// semantic + full-text search with composite Q-value re-ranking (C6).
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alanwatts07/drift-agents/internal/llm"
	"github.com/alanwatts07/drift-agents/internal/observability"
	"github.com/alanwatts07/drift-agents/internal/qvalue"
	"github.com/alanwatts07/drift-agents/internal/storage"
	"github.com/alanwatts07/drift-agents/internal/storage/qdrantindex"
)

const wakeRetrievedKey = ".wake_retrieved_ids"

// sharedPoolScanLimit bounds how much of the SHARED pool SearchShared
// fetches to resolve index hits' content; well above any realistic pool
// size for the single-process deployment this system targets.
const sharedPoolScanLimit = 10000

// Backend is the subset of storage.Backend retrieval needs.
type Backend interface {
	ListMemories(ctx context.Context, memType storage.MemoryType, limit int) ([]storage.Memory, error)
	UpdateMemory(ctx context.Context, m storage.Memory) error
	SearchSimilar(ctx context.Context, vec []float32, limit int) ([]storage.ScoredMemory, error)
	SearchFulltext(ctx context.Context, query string, limit int) ([]storage.ScoredMemory, error)
	GetStats(ctx context.Context) (storage.Stats, error)
	GetMood(ctx context.Context) (storage.Mood, error)
	SharedListExcept(ctx context.Context, namespace string, limit int) ([]storage.SharedMemory, error)
	KVSet(ctx context.Context, key string, value json.RawMessage) error
}

// Engine assembles preambles and serves composite-scored search.
type Engine struct {
	Store    Backend
	Embedder llm.Embedder
	Lambda   float64

	// SharedIndex backs SearchShared; nil disables cross-namespace
	// semantic search over the SHARED pool without affecting anything else.
	SharedIndex SharedSemanticIndex

	// NarrativeParagraph and GoalsParagraph are optional preamble sections
	// supplied by internal/narrative and internal/goals; left empty, they
	// are omitted from the preamble.
	NarrativeParagraph func(ctx context.Context) string
	GoalsParagraph     func(ctx context.Context) string
}

func New(store Backend, embedder llm.Embedder) *Engine {
	return &Engine{Store: store, Embedder: embedder, Lambda: qvalue.DefaultLambda}
}

// Preamble is the structured result of wake's preamble assembly.
type Preamble struct {
	Text         string
	RecalledIDs  []string
}

// AssembleWake builds the wake preamble in the fixed order from spec §4.6:
// recent active, core, high-emotion lessons, Q-value summary, narrative,
// goals, shared memories, stats footer. Every surfaced memory is
// atomically credited (recall_count+=1, sessions_since_recall=0,
// last_recalled=now) and the deduplicated id list is written to
// `.wake_retrieved_ids`.
func (e *Engine) AssembleWake(ctx context.Context, namespace string, now time.Time) (Preamble, error) {
	log := observability.LoggerWithTrace(ctx)
	var sb strings.Builder
	var surfaced []storage.Memory
	seen := map[string]bool{}

	addAll := func(ms []storage.Memory) {
		for _, m := range ms {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			surfaced = append(surfaced, m)
		}
	}

	recent, err := e.Store.ListMemories(ctx, storage.MemoryActive, 5)
	if err != nil {
		return Preamble{}, fmt.Errorf("list recent active memories: %w", err)
	}
	core, err := e.Store.ListMemories(ctx, storage.MemoryCore, 3)
	if err != nil {
		return Preamble{}, fmt.Errorf("list core memories: %w", err)
	}

	allActive, err := e.Store.ListMemories(ctx, storage.MemoryActive, 0)
	if err != nil {
		return Preamble{}, fmt.Errorf("list active memories for lessons: %w", err)
	}
	var lessonMemories []storage.Memory
	for _, m := range allActive {
		if m.HasTag("lesson") {
			lessonMemories = append(lessonMemories, m)
		}
	}
	sort.Slice(lessonMemories, func(i, j int) bool {
		return lessonMemories[i].EmotionalWeight > lessonMemories[j].EmotionalWeight
	})
	if len(lessonMemories) > 3 {
		lessonMemories = lessonMemories[:3]
	}

	if len(recent) == 0 && len(core) == 0 {
		sb.WriteString("No memories yet.\n\n")
	} else {
		sb.WriteString("## Recent Activity\n")
		for _, m := range recent {
			sb.WriteString("- " + m.Content + "\n")
		}
		sb.WriteString("\n## Core Memories\n")
		for _, m := range core {
			sb.WriteString("- " + m.Content + "\n")
		}
		if len(lessonMemories) > 0 {
			sb.WriteString("\n## Key Lessons\n")
			for _, m := range lessonMemories {
				sb.WriteString("- " + m.Content + "\n")
			}
		}
		sb.WriteString("\n")
	}

	addAll(recent)
	addAll(core)
	addAll(lessonMemories)

	if qline := qValueSummaryLine(surfaced); qline != "" {
		sb.WriteString(qline + "\n\n")
	}

	if e.NarrativeParagraph != nil {
		if p := strings.TrimSpace(e.NarrativeParagraph(ctx)); p != "" {
			sb.WriteString(p + "\n\n")
		}
	}
	if e.GoalsParagraph != nil {
		if p := strings.TrimSpace(e.GoalsParagraph(ctx)); p != "" {
			sb.WriteString(p + "\n\n")
		}
	}

	shared, err := e.Store.SharedListExcept(ctx, namespace, 3)
	if err != nil {
		log.Warn().Err(err).Msg("wake_shared_lookup_failed")
	} else if len(shared) > 0 {
		sb.WriteString("## From Other Agents\n")
		for _, s := range shared {
			sb.WriteString(fmt.Sprintf("- [%s] %s\n", s.CreatedBy, s.Content))
		}
		sb.WriteString("\n")
	}

	stats, err := e.Store.GetStats(ctx)
	if err != nil {
		return Preamble{}, fmt.Errorf("get stats: %w", err)
	}
	sb.WriteString(statsFooter(stats, now))

	ids := make([]string, 0, len(surfaced))
	for i := range surfaced {
		surfaced[i].RecallCount++
		surfaced[i].SessionsSinceRecall = 0
		surfaced[i].LastRecalled = &now
		if err := e.Store.UpdateMemory(ctx, surfaced[i]); err != nil {
			log.Warn().Err(err).Str("memory_id", surfaced[i].ID).Msg("wake_credit_update_failed")
			continue
		}
		ids = append(ids, surfaced[i].ID)
	}

	payload, _ := json.Marshal(ids)
	if err := e.Store.KVSet(ctx, wakeRetrievedKey, payload); err != nil {
		return Preamble{}, fmt.Errorf("persist wake retrieved ids: %w", err)
	}

	return Preamble{Text: sb.String(), RecalledIDs: ids}, nil
}

func qValueSummaryLine(memories []storage.Memory) string {
	trained := 0
	for _, m := range memories {
		if m.QValue != 0.5 {
			trained++
		}
	}
	if trained == 0 {
		return ""
	}
	st := qvalue.ComputeStats(memories)
	return fmt.Sprintf("## Q-Value Summary\navg=%.2f trained=%d high=%d low=%d",
		st.Average, st.Trained, st.HighQ, st.LowQ)
}

func statsFooter(stats storage.Stats, now time.Time) string {
	since := "unknown"
	if stats.LastSessionEndedAt != nil {
		since = humanDuration(now.Sub(*stats.LastSessionEndedAt))
	}
	return fmt.Sprintf("## Stats\ntotal=%d core=%d active=%d since_last_session=%s sessions=%d\n",
		stats.Total, stats.CoreCount, stats.ActiveCount, since, stats.SessionCount)
}

func humanDuration(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

// Search combines semantic (top 10) and full-text (top 5) results,
// deduplicating by memory id (keeping the semantic score), then re-ranks by
// the composite score score = (1-lambda)*similarity + lambda*q_value.
// Returns the top 8.
func (e *Engine) Search(ctx context.Context, query string) ([]storage.ScoredMemory, error) {
	log := observability.LoggerWithTrace(ctx)
	lambda := e.Lambda

	var semantic []storage.ScoredMemory
	if e.Embedder != nil {
		vecs, err := e.Embedder.Embed(ctx, []string{query})
		if err != nil {
			log.Warn().Err(err).Msg("search_embed_failed")
		} else if len(vecs) > 0 {
			semantic, err = e.Store.SearchSimilar(ctx, vecs[0], 10)
			if err != nil {
				log.Warn().Err(err).Msg("search_similar_failed")
				semantic = nil
			}
		}
	}

	fulltext, err := e.Store.SearchFulltext(ctx, query, 5)
	if err != nil {
		return nil, fmt.Errorf("search fulltext: %w", err)
	}

	byID := map[string]storage.ScoredMemory{}
	order := []string{}
	for _, s := range semantic {
		byID[s.Memory.ID] = s
		order = append(order, s.Memory.ID)
	}
	for _, s := range fulltext {
		if _, exists := byID[s.Memory.ID]; exists {
			continue
		}
		byID[s.Memory.ID] = s
		order = append(order, s.Memory.ID)
	}

	composite := make([]storage.ScoredMemory, 0, len(order))
	for _, id := range order {
		s := byID[id]
		score := (1-lambda)*s.Score + lambda*s.Memory.QValue
		composite = append(composite, storage.ScoredMemory{Memory: s.Memory, Score: score})
	}
	sort.Slice(composite, func(i, j int) bool { return composite[i].Score > composite[j].Score })
	if len(composite) > 8 {
		composite = composite[:8]
	}
	return composite, nil
}

// SharedSemanticIndex is the cross-namespace vector index over the SHARED
// pool, satisfied by internal/storage/qdrantindex.Index. Optional: nil
// means SearchShared falls back to an error rather than a degraded result,
// since semantic shared search has no full-text equivalent to fall back to.
type SharedSemanticIndex interface {
	Search(ctx context.Context, vec []float32, limit int) ([]qdrantindex.Result, error)
}

// ScoredShared pairs a SHARED memory with its semantic-search score.
type ScoredShared struct {
	storage.SharedMemory
	Score float64
}

// SearchShared embeds query and ranks the cross-namespace SHARED pool by
// cosine similarity via SharedIndex, resolving each hit's content from
// SharedListExcept. It is the `driftmemd search --shared` path; unlike
// Search it has no full-text fallback, so a nil SharedIndex or Embedder is
// an error rather than a silent degrade.
func (e *Engine) SearchShared(ctx context.Context, query string, limit int) ([]ScoredShared, error) {
	if e.SharedIndex == nil {
		return nil, fmt.Errorf("shared semantic search: no index configured")
	}
	if e.Embedder == nil {
		return nil, fmt.Errorf("shared semantic search: no embedder configured")
	}
	vecs, err := e.Embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		return nil, fmt.Errorf("shared semantic search: embed query: %w", err)
	}
	hits, err := e.SharedIndex.Search(ctx, vecs[0], limit)
	if err != nil {
		return nil, fmt.Errorf("shared semantic search: %w", err)
	}

	pool, err := e.Store.SharedListExcept(ctx, "", sharedPoolScanLimit)
	if err != nil {
		return nil, fmt.Errorf("shared semantic search: list pool: %w", err)
	}
	byID := make(map[string]storage.SharedMemory, len(pool))
	for _, m := range pool {
		byID[m.ID] = m
	}

	out := make([]ScoredShared, 0, len(hits))
	for _, h := range hits {
		m, ok := byID[h.ID]
		if !ok {
			continue
		}
		out = append(out, ScoredShared{SharedMemory: m, Score: h.Score})
	}
	return out, nil
}

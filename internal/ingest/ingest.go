// Package ingest creates memory entities from a parsed session record:
// tags/weights, embeddings, and symmetric co-occurrence links (C5).
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/alanwatts07/drift-agents/internal/idgen"
	"github.com/alanwatts07/drift-agents/internal/llm"
	"github.com/alanwatts07/drift-agents/internal/observability"
	"github.com/alanwatts07/drift-agents/internal/sessionparser"
	"github.com/alanwatts07/drift-agents/internal/storage"
)

// Backend is the subset of storage.Backend ingest needs.
type Backend interface {
	InsertMemory(ctx context.Context, m storage.Memory) error
	UpsertEmbedding(ctx context.Context, e storage.Embedding) error
	IncrementCoOccurrence(ctx context.Context, a, b string) error
}

// Ingester wires a storage backend and an embedder together.
type Ingester struct {
	Store    Backend
	Embedder llm.Embedder
}

func New(store Backend, embedder llm.Embedder) *Ingester {
	return &Ingester{Store: store, Embedder: embedder}
}

// Ingest stores every usable item of rec as a Memory, embeds each, and
// links every unordered pair of newly created ids with a symmetric
// co-occurrence increment. If rec is empty, a single raw-fallback memory is
// stored from extractedText instead. Returns the ids of memories created.
func (ing *Ingester) Ingest(ctx context.Context, rec sessionparser.Record, extractedText string, sessionDate time.Time) ([]string, error) {
	log := observability.LoggerWithTrace(ctx)
	date := sessionDate.Format("2006-01-02")

	var created []string

	if rec.Empty() {
		id, err := ing.insertRawFallback(ctx, extractedText)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	}

	for _, th := range rec.Threads {
		id, err := ing.insertThread(ctx, th, date)
		if err != nil {
			return created, fmt.Errorf("insert thread memory: %w", err)
		}
		created = append(created, id)
	}
	for _, l := range rec.Lessons {
		id, err := ing.insertTagged(ctx, fmt.Sprintf("[Session %s] Lesson: %s", date, l),
			[]string{"session-summary", "lesson", "session-" + date, "heuristic"}, 0.6, 0.6)
		if err != nil {
			return created, fmt.Errorf("insert lesson memory: %w", err)
		}
		created = append(created, id)
	}
	for _, f := range rec.Facts {
		id, err := ing.insertTagged(ctx, fmt.Sprintf("[Session %s] Fact: %s", date, f),
			[]string{"session-summary", "key-fact", "session-" + date, "procedural"}, 0.5, 0.5)
		if err != nil {
			return created, fmt.Errorf("insert fact memory: %w", err)
		}
		created = append(created, id)
	}

	if err := ing.linkCoOccurrences(ctx, created); err != nil {
		log.Warn().Err(err).Msg("ingest_cooccurrence_link_failed")
	}

	return created, nil
}

func (ing *Ingester) insertThread(ctx context.Context, th sessionparser.Thread, date string) (string, error) {
	var weight float64
	switch th.Status {
	case sessionparser.ThreadCompleted:
		weight = 0.65
	case sessionparser.ThreadBlocked:
		weight = 0.3
	default:
		weight = 0.5
	}
	content := fmt.Sprintf("[Session %s] Thread %q (%s): %s", date, th.Name, th.Status, th.Summary)
	tags := []string{"session-summary", "thread", "session-" + date, "thread-" + string(th.Status)}
	return ing.insertTagged(ctx, content, tags, weight, 0.5)
}

func (ing *Ingester) insertTagged(ctx context.Context, content string, tags []string, weight, importance float64) (string, error) {
	log := observability.LoggerWithTrace(ctx)
	id := idgen.Memory()
	m := storage.Memory{
		ID:              id,
		Type:            storage.MemoryActive,
		Content:         content,
		Tags:            tags,
		EmotionalWeight: weight,
		Importance:      importance,
		Freshness:       1.0,
		QValue:          0.5,
		Created:         time.Now().UTC(),
	}
	if err := ing.Store.InsertMemory(ctx, m); err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}

	if ing.Embedder != nil {
		vecs, err := ing.Embedder.Embed(ctx, []string{content})
		if err != nil {
			log.Warn().Err(err).Str("memory_id", id).Msg("ingest_embed_failed")
		} else if len(vecs) > 0 {
			preview := content
			if len(preview) > 200 {
				preview = preview[:200]
			}
			if err := ing.Store.UpsertEmbedding(ctx, storage.Embedding{MemoryID: id, Vector: vecs[0], Preview: preview}); err != nil {
				log.Warn().Err(err).Str("memory_id", id).Msg("ingest_upsert_embedding_failed")
			}
		}
	}
	return id, nil
}

func (ing *Ingester) insertRawFallback(ctx context.Context, text string) (string, error) {
	head := firstN(text, 500)
	tail := lastN(text, 500)
	content := head + "\n... [elided] ...\n" + tail
	return ing.insertTagged(ctx, content, []string{"raw-excerpt"}, 0.3, 0.3)
}

func firstN(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func lastN(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func (ing *Ingester) linkCoOccurrences(ctx context.Context, ids []string) error {
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if err := ing.Store.IncrementCoOccurrence(ctx, ids[i], ids[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

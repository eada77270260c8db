// Package share copies a filtered subset of a namespace's memories into the
// cross-agent SHARED channel after ingest (C13).
package share

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alanwatts07/drift-agents/internal/llm"
	"github.com/alanwatts07/drift-agents/internal/observability"
	"github.com/alanwatts07/drift-agents/internal/storage"
)

// opinionVocabulary is the mandatory block filter. It is static and
// auditable by design (spec §7.1): implementations must not learn or mutate
// it at runtime. Any content matching a word here is excluded from SHARED
// regardless of the whitelist.
var opinionVocabulary = []string{
	"i voted", "i vote", "voted for", "voted against", "voted con", "voted pro",
	"my opinion", "i believe", "i think", "i feel that", "in my view",
	"i judge", "i conclude", "my verdict", "my assessment is",
	"i disagree", "i agree", "i'd argue", "i would argue",
	"better than", "worse than", "should be fired", "should be promoted",
}

// platformWhitelist gates general memories into SHARED: platform-mechanics
// terms, or a mention of another known namespace.
var platformWhitelist = []string{
	"platform", "api", "endpoint", "config", "configuration", "bug",
	"deploy", "deployment", "outage", "schema", "migration", "rate limit",
	"timeout", "credential", "token", "build", "ci", "pipeline",
}

// lessonWhitelist is the narrower whitelist applied to lesson memories,
// restricted to tooling/platform categories per spec §4.13.
var lessonWhitelist = []string{
	"platform", "api", "endpoint", "config", "configuration", "bug",
	"deploy", "deployment", "schema", "migration", "tool", "tooling",
	"build", "ci", "pipeline",
}

// Backend is the subset of storage.Backend share needs.
type Backend interface {
	SharedInsert(ctx context.Context, m storage.SharedMemory) error
	SharedUpsertRegistry(ctx context.Context, reg storage.AgentRegistration) error
}

// SemanticIndex is the cross-namespace vector index newly shared memories
// are pushed into, satisfied by internal/storage/qdrantindex.Index.
// It is optional: Engine works without one and simply skips indexing.
type SemanticIndex interface {
	Upsert(ctx context.Context, id string, vector []float32, namespace string) error
}

// Engine copies filtered memories into the SHARED namespace.
type Engine struct {
	Store           Backend
	Namespace       string
	KnownNamespaces []string

	// Index and Embedder, if both set, push every newly shared memory's
	// embedding into the cross-namespace semantic index. Either may be nil,
	// in which case Share behaves exactly as it did before the index existed.
	Index    SemanticIndex
	Embedder llm.Embedder
}

func New(store Backend, namespace string, knownNamespaces []string) *Engine {
	return &Engine{Store: store, Namespace: namespace, KnownNamespaces: knownNamespaces}
}

// Share evaluates newly ingested memories and copies whichever pass the
// block filter and the appropriate whitelist into SHARED, then updates this
// namespace's last-active registration. It never returns an error for a
// single rejected memory; SharedInsert failures are collected and returned
// together so the caller's failure boundary can log-and-continue.
func (e *Engine) Share(ctx context.Context, memories []storage.Memory, now time.Time) (int, error) {
	var shared int
	var errs []error
	for _, m := range memories {
		if !e.eligible(m) {
			continue
		}
		row := storage.SharedMemory{
			ID:              m.ID,
			Content:         m.Content,
			CreatedBy:       e.Namespace,
			Tags:            []string{"cross-agent", "session-" + now.Format("2006-01-02"), "from-" + e.Namespace},
			EmotionalWeight: m.EmotionalWeight,
			Importance:      m.Importance,
			Created:         now,
		}
		if err := e.Store.SharedInsert(ctx, row); err != nil {
			errs = append(errs, fmt.Errorf("share memory %s: %w", m.ID, err))
			continue
		}
		shared++
		e.indexForSearch(ctx, row)
	}

	if err := e.Store.SharedUpsertRegistry(ctx, storage.AgentRegistration{Namespace: e.Namespace, LastActive: now}); err != nil {
		errs = append(errs, fmt.Errorf("update agent registry: %w", err))
	}

	if len(errs) > 0 {
		return shared, fmt.Errorf("share: %d error(s), first: %w", len(errs), errs[0])
	}
	return shared, nil
}

// indexForSearch pushes row's embedding into the cross-namespace semantic
// index. Indexing is advisory, matching the rest of sleep's sub-phases: a
// failure here never rejects the share itself, it only logs.
func (e *Engine) indexForSearch(ctx context.Context, row storage.SharedMemory) {
	if e.Index == nil || e.Embedder == nil {
		return
	}
	vecs, err := e.Embedder.Embed(ctx, []string{row.Content})
	if err != nil || len(vecs) == 0 {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Str("shared_id", row.ID).Msg("shared_index_embed_failed")
		return
	}
	if err := e.Index.Upsert(ctx, row.ID, vecs[0], e.Namespace); err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Str("shared_id", row.ID).Msg("shared_index_upsert_failed")
	}
}

// eligible applies the block filter first, then the content-appropriate
// whitelist.
func (e *Engine) eligible(m storage.Memory) bool {
	lower := strings.ToLower(m.Content)

	for _, word := range opinionVocabulary {
		if strings.Contains(lower, word) {
			return false
		}
	}

	whitelist := platformWhitelist
	if m.HasTag("lesson") {
		whitelist = lessonWhitelist
	}

	for _, word := range whitelist {
		if strings.Contains(lower, word) {
			return true
		}
	}

	for _, ns := range e.KnownNamespaces {
		if ns == "" || ns == e.Namespace {
			continue
		}
		if strings.Contains(lower, strings.ToLower(ns)) {
			return true
		}
	}

	return false
}

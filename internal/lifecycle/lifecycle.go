// Package lifecycle orchestrates wake and sleep: the sequencing, the
// per-namespace concurrency guard, and the failure-boundary discipline
// spec §7 requires (only storage-layer failures during core ingest are
// fatal; every advisory sub-phase logs and continues).
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alanwatts07/drift-agents/internal/affect"
	"github.com/alanwatts07/drift-agents/internal/config"
	"github.com/alanwatts07/drift-agents/internal/decay"
	"github.com/alanwatts07/drift-agents/internal/goals"
	"github.com/alanwatts07/drift-agents/internal/graph"
	"github.com/alanwatts07/drift-agents/internal/ingest"
	"github.com/alanwatts07/drift-agents/internal/llm"
	"github.com/alanwatts07/drift-agents/internal/narrative"
	"github.com/alanwatts07/drift-agents/internal/observability"
	"github.com/alanwatts07/drift-agents/internal/qvalue"
	"github.com/alanwatts07/drift-agents/internal/retrieval"
	"github.com/alanwatts07/drift-agents/internal/sessionparser"
	"github.com/alanwatts07/drift-agents/internal/share"
	"github.com/alanwatts07/drift-agents/internal/storage"
	"github.com/alanwatts07/drift-agents/internal/storage/qdrantindex"
	"github.com/alanwatts07/drift-agents/internal/transcript"
)

// namespaceLocks guarantees only one wake and only one sleep run
// concurrently for a given namespace within this process, per spec §7's
// single-threaded-cooperative-per-namespace process model.
var (
	namespaceLocksMu sync.Mutex
	namespaceLocks   = map[string]*sync.Mutex{}
)

func lockFor(namespace string) *sync.Mutex {
	namespaceLocksMu.Lock()
	defer namespaceLocksMu.Unlock()
	m, ok := namespaceLocks[namespace]
	if !ok {
		m = &sync.Mutex{}
		namespaceLocks[namespace] = m
	}
	return m
}

// Orchestrator wires every cognitive component against one storage.Backend
// for one namespace.
type Orchestrator struct {
	Store           storage.Backend
	Namespace       string
	KnownNamespaces []string

	Retrieval  *retrieval.Engine
	QValue     *qvalue.Engine
	Ingest     *ingest.Ingester
	Graph      *graph.Engine
	Goals      *goals.Engine
	Narrative  *narrative.Generator
	Share      *share.Engine
	DecayCfg   config.DecayConfig
}

// New builds an Orchestrator with every component wired to store. provider
// and model back the self-narrative generator; embedder backs ingest and
// retrieval's semantic search. The sleep-time summariser is supplied
// per-call to Sleep instead, since it may run on a distinct model.
// sharedIndex is the optional cross-namespace semantic index over the
// SHARED pool (nil disables it, see internal/storage/qdrantindex).
func New(store storage.Backend, namespace string, knownNamespaces []string, provider llm.Provider, narrativeModel string, embedder llm.Embedder, decayCfg config.DecayConfig, sharedIndex *qdrantindex.Index) *Orchestrator {
	ret := retrieval.New(store, embedder)
	nar := narrative.New(store, provider, narrativeModel)
	gl := goals.New(store)
	ret.NarrativeParagraph = func(ctx context.Context) string { return nar.Paragraph(ctx, time.Now()) }
	ret.GoalsParagraph = func(ctx context.Context) string { return activeGoalsParagraph(ctx, store) }

	shareEngine := share.New(store, namespace, knownNamespaces)
	if sharedIndex != nil {
		ret.SharedIndex = sharedIndex
		shareEngine.Index = sharedIndex
		shareEngine.Embedder = embedder
	}

	return &Orchestrator{
		Store:           store,
		Namespace:       namespace,
		KnownNamespaces: knownNamespaces,
		Retrieval:       ret,
		QValue:          qvalue.New(store),
		Ingest:          ingest.New(store, embedder),
		Graph:           graph.New(store),
		Goals:           gl,
		Narrative:       nar,
		Share:           shareEngine,
		DecayCfg:        decayCfg,
	}
}

// wakeRetrievedKey mirrors the literal internal/retrieval and
// internal/qvalue both use for the KV slot holding the ids surfaced at the
// last wake; decay reads it before qvalue's credit-assign phase clears it,
// so its recall-exempt set reflects this session's wake.
const wakeRetrievedKey = ".wake_retrieved_ids"

func recalledIDSet(ctx context.Context, store storage.Backend) map[string]bool {
	raw, ok, err := store.KVGet(ctx, wakeRetrievedKey)
	if err != nil || !ok {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func activeGoalsParagraph(ctx context.Context, store storage.Backend) string {
	active, err := store.ListGoals(ctx, storage.GoalActive)
	if err != nil || len(active) == 0 {
		return ""
	}
	out := "## Active Goals\n"
	for _, g := range active {
		out += "- " + g.Text + "\n"
	}
	return out
}

// guard runs fn and, on error, logs it as a non-fatal advisory-phase
// failure rather than propagating it, per spec §7.
func guard(ctx context.Context, phase string, fn func() error) {
	if err := fn(); err != nil {
		observability.LoggerWithTrace(ctx).Warn().Err(err).Str("phase", phase).Msg("lifecycle_phase_failed")
	}
}

// WakeResult is returned to the caller (cmd/driftmemd) for printing.
type WakeResult struct {
	Preamble string
}

// Wake assembles the preamble (C1->C6), reports Q-stats, initialises mood
// if absent (both backends report an absent mood as the zero Mood), and
// appends goal/narrative sections. Only the preamble
// assembly's own storage errors are fatal; the optional sections already
// degrade internally inside retrieval.Engine.
func (o *Orchestrator) Wake(ctx context.Context, now time.Time) (WakeResult, error) {
	lock := lockFor(o.Namespace)
	lock.Lock()
	defer lock.Unlock()

	guard(ctx, "mood_init", func() error {
		mood, err := o.Store.GetMood(ctx)
		if err != nil {
			return err
		}
		if mood != (storage.Mood{}) {
			return nil
		}
		return o.Store.SetMood(ctx, storage.Mood{Valence: 0, Arousal: 0.3})
	})

	preamble, err := o.Retrieval.AssembleWake(ctx, o.Namespace, now)
	if err != nil {
		return WakeResult{}, fmt.Errorf("assemble wake preamble: %w", err)
	}

	if _, err := o.Store.StartSession(ctx); err != nil {
		return WakeResult{}, fmt.Errorf("start session: %w", err)
	}

	return WakeResult{Preamble: preamble.Text}, nil
}

// SleepResult summarises one sleep pass for status reporting and the
// cmd/driftmemd exit-code contract (spec §6: sleep exits 0 iff new
// memories were stored).
type SleepResult struct {
	MemoriesCreated int
	GoalsCreated    int
	Shared          int
}

// Sleep runs the full consolidation pipeline in the fixed order from spec
// §2: extract -> summarise -> parse -> ingest -> Q-update -> affect ->
// KG/lessons -> goals -> decay -> share. Only a storage-layer failure
// during core ingest is fatal; every other sub-phase is wrapped in guard.
func (o *Orchestrator) Sleep(ctx context.Context, raw []byte, summarizer llm.Provider, summarizerModel string, events []affect.Event, now time.Time) (SleepResult, error) {
	lock := lockFor(o.Namespace)
	lock.Lock()
	defer lock.Unlock()

	extracted := transcript.Extract(raw, transcript.DefaultMaxChars)
	sampled := transcript.ProportionalSample(extracted, transcript.DefaultMaxChars)

	summary := sampled
	if summarizer != nil {
		if out, err := summarizer.Complete(ctx, []llm.Message{
			{Role: "system", Content: "Summarise this session transcript into threads, lessons, and facts as JSON: {\"threads\":[{\"name\":\"\",\"summary\":\"\",\"status\":\"\"}],\"lessons\":[\"\"],\"facts\":[\"\"]}."},
			{Role: "user", Content: sampled},
		}, 1000, 0.2); err == nil {
			summary = out
		} else {
			observability.LoggerWithTrace(ctx).Warn().Err(err).Msg("sleep_summarize_failed")
		}
	}

	rec := sessionparser.Parse(summary)

	createdIDs, err := o.Ingest.Ingest(ctx, rec, sampled, now)
	if err != nil {
		return SleepResult{}, fmt.Errorf("ingest session: %w", err)
	}

	sess, ok, err := o.Store.OpenSession(ctx)
	sessionID := ""
	if err == nil && ok {
		sessionID = sess.ID
	}

	recalledThisSession := recalledIDSet(ctx, o.Store)

	guard(ctx, "qvalue_credit_assign", func() error {
		_, err := o.QValue.CreditAssign(ctx, sessionID, len(createdIDs) > 0)
		return err
	})

	guard(ctx, "affect", func() error {
		mood, err := o.Store.GetMood(ctx)
		if err != nil {
			return err
		}
		mood = affect.Apply(mood, events)
		return o.Store.SetMood(ctx, mood)
	})

	var createdMemories []storage.Memory
	for _, id := range createdIDs {
		m, found, err := o.Store.GetMemory(ctx, id)
		if err != nil || !found {
			continue
		}
		createdMemories = append(createdMemories, m)
	}

	guard(ctx, "knowledge_graph", func() error {
		for _, m := range createdMemories {
			if err := o.Graph.ExtractEdges(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	guard(ctx, "lessons", func() error {
		for _, l := range rec.Lessons {
			if err := o.Graph.StoreLesson(ctx, l, sampled); err != nil {
				return err
			}
		}
		return nil
	})

	var completedThreadNames []string
	var blockedThreads []sessionparser.Thread
	for _, th := range rec.Threads {
		switch th.Status {
		case sessionparser.ThreadCompleted:
			completedThreadNames = append(completedThreadNames, th.Name)
		case sessionparser.ThreadBlocked:
			blockedThreads = append(blockedThreads, th)
		}
	}

	goalsCreated := 0
	guard(ctx, "goals", func() error {
		if err := o.Goals.EvaluateGoals(ctx, now, completedThreadNames); err != nil {
			return err
		}
		n, err := o.Goals.GenerateGoals(ctx, blockedThreads)
		goalsCreated = n
		return err
	})

	guard(ctx, "decay", func() error {
		_, err := decay.Run(ctx, o.Store, o.DecayCfg, recalledThisSession)
		return err
	})

	shared := 0
	guard(ctx, "share", func() error {
		n, err := o.Share.Share(ctx, createdMemories, now)
		shared = n
		return err
	})

	if sessionID != "" {
		guard(ctx, "end_session", func() error { return o.Store.EndSession(ctx, sessionID) })
	}

	return SleepResult{MemoriesCreated: len(createdIDs), GoalsCreated: goalsCreated, Shared: shared}, nil
}

// driftmemd is the single entrypoint for the wake/sleep memory
// consolidation pipeline.
//
// Usage:
//
//	driftmemd wake <agent>
//	driftmemd sleep <agent> <transcript-path>
//	driftmemd status <agent>
//	driftmemd search <agent> <query>
//
// Exit codes: wake/status/search exit 0 on success; sleep exits 0 iff the
// sleep pass stored at least one new memory. Misconfiguration, a missing
// transcript path, and storage-layer failures during core ingest are fatal
// (non-zero exit, message on stderr); every other sub-phase degrades and is
// logged instead.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alanwatts07/drift-agents/internal/config"
	"github.com/alanwatts07/drift-agents/internal/embedding"
	"github.com/alanwatts07/drift-agents/internal/lifecycle"
	"github.com/alanwatts07/drift-agents/internal/llm"
	"github.com/alanwatts07/drift-agents/internal/llm/anthropic"
	"github.com/alanwatts07/drift-agents/internal/observability"
	"github.com/alanwatts07/drift-agents/internal/retrieval"
	"github.com/alanwatts07/drift-agents/internal/storage"
	"github.com/alanwatts07/drift-agents/internal/storage/qdrantindex"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	agent := os.Args[2]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	namespace := config.ResolveNamespace(agent)
	if namespace == "" {
		fmt.Fprintln(os.Stderr, "error: agent name required")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := storage.NewPool(ctx, cfg.DB.DSN())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: connect to storage: "+err.Error())
		os.Exit(1)
	}
	defer pool.Close()

	if err := storage.EnsureSchema(ctx, pool, namespace); err != nil {
		fmt.Fprintln(os.Stderr, "error: ensure schema: "+err.Error())
		os.Exit(1)
	}
	store := storage.New(pool, namespace)

	provider, err := buildProvider(cfg.LLM)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
	summarizer, err := buildProvider(cfg.Summarizer)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
	embedder := embedding.New(cfg.Embedding)

	sharedIndex, err := buildSharedIndex(ctx, cfg.Qdrant)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: shared semantic index disabled: "+err.Error())
	}
	if sharedIndex != nil {
		defer sharedIndex.Close()
	}

	orch := lifecycle.New(store, namespace, nil, provider, cfg.LLM.Model, embedder, cfg.Decay, sharedIndex)

	switch cmd {
	case "wake":
		runWake(ctx, orch)
	case "sleep":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "error: sleep requires a transcript path")
			os.Exit(1)
		}
		runSleep(ctx, orch, summarizer, cfg.Summarizer.Model, os.Args[3])
	case "status":
		runStatus(ctx, store)
	case "search":
		if len(os.Args) < 4 {
			fmt.Fprintln(os.Stderr, "error: search requires a query")
			os.Exit(1)
		}
		if len(os.Args) >= 5 && os.Args[4] == "--shared" {
			runSearchShared(ctx, orch.Retrieval, os.Args[3])
			return
		}
		runSearch(ctx, store, embedder, os.Args[3])
	default:
		usage()
		os.Exit(2)
	}
}

// buildSharedIndex connects the optional cross-namespace semantic index
// over the SHARED pool. A missing QDRANT_DSN disables it with no error;
// a configured DSN that fails to connect is reported but non-fatal, since
// it only degrades `search --shared`, not wake/sleep.
func buildSharedIndex(ctx context.Context, cfg config.QdrantConfig) (*qdrantindex.Index, error) {
	if cfg.DSN == "" {
		return nil, nil
	}
	return qdrantindex.New(ctx, cfg.DSN, cfg.Collection, cfg.Dimension)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: driftmemd wake|sleep|status|search <agent> [args...]")
	fmt.Fprintln(os.Stderr, "       driftmemd search <agent> <query> [--shared]  (--shared requires QDRANT_DSN)")
}

func runWake(ctx context.Context, orch *lifecycle.Orchestrator) {
	res, err := orch.Wake(ctx, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
	fmt.Println(res.Preamble)
}

func runSleep(ctx context.Context, orch *lifecycle.Orchestrator, summarizer llm.Provider, summarizerModel, transcriptPath string) {
	raw, err := os.ReadFile(transcriptPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: read transcript: "+err.Error())
		os.Exit(1)
	}

	res, err := orch.Sleep(ctx, raw, summarizer, summarizerModel, nil, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
	fmt.Printf("memories created: %d, goals created: %d, shared: %d\n", res.MemoriesCreated, res.GoalsCreated, res.Shared)
	if res.MemoriesCreated == 0 {
		os.Exit(1)
	}
}

func runStatus(ctx context.Context, store storage.Backend) {
	stats, err := store.GetStats(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
	fmt.Printf("namespace=%s total=%d core=%d active=%d archive=%d sessions=%d\n",
		store.Namespace(), stats.Total, stats.CoreCount, stats.ActiveCount, stats.ArchiveCount, stats.SessionCount)
}

func runSearch(ctx context.Context, store storage.Backend, embedder llm.Embedder, query string) {
	eng := retrieval.New(store, embedder)
	results, err := eng.Search(ctx, query)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
	for _, r := range results {
		fmt.Printf("%.3f  %s\n", r.Score, r.Memory.Content)
	}
}

// runSearchShared serves `driftmemd search <agent> <query> --shared`,
// ranking the cross-namespace SHARED pool by semantic similarity via the
// Qdrant-backed index instead of this namespace's own memories.
func runSearchShared(ctx context.Context, eng *retrieval.Engine, query string) {
	results, err := eng.SearchShared(ctx, query, 8)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: "+err.Error())
		os.Exit(1)
	}
	for _, r := range results {
		fmt.Printf("%.3f  [%s] %s\n", r.Score, r.CreatedBy, r.Content)
	}
}

func buildProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(cfg.APIKey, cfg.Model, cfg.BaseURL, nil), nil
	case "openai":
		return llm.NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}
}

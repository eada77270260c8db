// Package decay runs the freshness-decay and core-promotion maintenance
// pass at the tail of sleep (C12).
package decay

import (
	"context"
	"fmt"

	"github.com/alanwatts07/drift-agents/internal/config"
	"github.com/alanwatts07/drift-agents/internal/storage"
)

// Backend is the subset of storage.Backend decay/promotion needs.
type Backend interface {
	ListAllActive(ctx context.Context) ([]storage.Memory, error)
	UpdateMemory(ctx context.Context, m storage.Memory) error
}

// Result summarises one maintenance pass for logging/status reporting.
type Result struct {
	Decayed   int
	Archived  int
	Promoted  int
}

// Run applies freshness decay (freshness *= cfg.Gamma) to every active
// memory unconditionally, increments sessions_since_recall for memories
// not recalled this session (recalledThisSession == false for that id),
// then archives active memories with recall_count == 0 whose freshness has
// fallen below cfg.FreshnessFloor, and promotes active memories whose
// recall_count meets cfg.PromotionRecallMin to core. Core memories are
// never demoted.
func Run(ctx context.Context, store Backend, cfg config.DecayConfig, recalledThisSession map[string]bool) (Result, error) {
	active, err := store.ListAllActive(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list active memories: %w", err)
	}

	var res Result
	for _, m := range active {
		m.Freshness *= cfg.Gamma
		if m.Freshness < 0 {
			m.Freshness = 0
		}
		if !recalledThisSession[m.ID] {
			m.SessionsSinceRecall++
		}

		switch {
		case m.RecallCount >= cfg.PromotionRecallMin:
			m.Type = storage.MemoryCore
			res.Promoted++
		case m.Freshness < cfg.FreshnessFloor && m.RecallCount == 0:
			m.Type = storage.MemoryArchive
			res.Archived++
		default:
			res.Decayed++
		}

		if err := store.UpdateMemory(ctx, m); err != nil {
			return res, fmt.Errorf("update memory %s: %w", m.ID, err)
		}
	}
	return res, nil
}

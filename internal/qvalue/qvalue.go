// Package qvalue implements the per-memory reinforcement signal (C7): a
// fixed-step update rule applied to memories recalled at the previous wake,
// credited or penalised by whether the intervening sleep produced new
// memories.
package qvalue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanwatts07/drift-agents/internal/storage"
)

const (
	// DefaultAlpha is the suggested learning rate from spec §4.7.
	DefaultAlpha = 0.3
	// DefaultLambda is the suggested composite-score blend weight from §4.6.
	DefaultLambda = 0.3

	RewardDownstream = 0.7
	RewardDeadEnd     = 0.1

	RewardSourceDownstream = "downstream"
	RewardSourceDeadEnd    = "dead_end"

	wakeRetrievedKey = ".wake_retrieved_ids"
)

// Engine applies the reinforcement update rule against a storage.Backend.
type Engine struct {
	Store Backend
	Alpha float64
	Lambda float64
}

// Backend is the subset of storage.Backend the Q-value engine needs.
type Backend interface {
	GetMemory(ctx context.Context, id string) (storage.Memory, bool, error)
	UpdateMemory(ctx context.Context, m storage.Memory) error
	InsertQHistory(ctx context.Context, h storage.QValueHistory) error
	KVGet(ctx context.Context, key string) (json.RawMessage, bool, error)
	KVDelete(ctx context.Context, key string) error
}

func New(store Backend) *Engine {
	return &Engine{Store: store, Alpha: DefaultAlpha, Lambda: DefaultLambda}
}

// Update applies q' = clamp(q + alpha*(reward-q), 0, 1).
func Update(q, alpha, reward float64) float64 {
	v := q + alpha*(reward-q)
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return v
}

// CreditAssign reads the ids surfaced at the last wake from KV and applies
// RewardDownstream to each if newMemoriesCreated, else RewardDeadEnd. The KV
// slot is cleared afterwards regardless of outcome, per spec §4.7.
func (e *Engine) CreditAssign(ctx context.Context, sessionID string, newMemoriesCreated bool) (int, error) {
	raw, ok, err := e.Store.KVGet(ctx, wakeRetrievedKey)
	if err != nil {
		return 0, fmt.Errorf("read wake retrieved ids: %w", err)
	}
	if !ok {
		return 0, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return 0, fmt.Errorf("decode wake retrieved ids: %w", err)
	}

	reward := RewardDeadEnd
	source := RewardSourceDeadEnd
	if newMemoriesCreated {
		reward = RewardDownstream
		source = RewardSourceDownstream
	}

	applied := 0
	for _, id := range ids {
		m, found, err := e.Store.GetMemory(ctx, id)
		if err != nil || !found {
			continue
		}
		oldQ := m.QValue
		m.QValue = Update(oldQ, e.alpha(), reward)
		if err := e.Store.UpdateMemory(ctx, m); err != nil {
			return applied, fmt.Errorf("update q for %s: %w", id, err)
		}
		hist := storage.QValueHistory{
			MemoryID:     id,
			SessionID:    sessionID,
			OldQ:         oldQ,
			NewQ:         m.QValue,
			Reward:       reward,
			RewardSource: source,
			Created:      time.Now().UTC(),
		}
		if err := e.Store.InsertQHistory(ctx, hist); err != nil {
			return applied, fmt.Errorf("record q history for %s: %w", id, err)
		}
		applied++
	}

	if err := e.Store.KVDelete(ctx, wakeRetrievedKey); err != nil {
		return applied, fmt.Errorf("clear wake retrieved ids: %w", err)
	}
	return applied, nil
}

func (e *Engine) alpha() float64 {
	if e.Alpha <= 0 {
		return DefaultAlpha
	}
	return e.Alpha
}

func (e *Engine) lambda() float64 {
	if e.Lambda < 0 {
		return DefaultLambda
	}
	return e.Lambda
}

// GetLambda returns the composite-score blend weight (DefaultLambda when
// Lambda is negative).
func (e *Engine) GetLambda() float64 { return e.lambda() }

// Stats reports the aggregate Q-value picture used by the wake preamble.
type Stats struct {
	Average  float64
	Trained  int
	HighQ    int
	LowQ     int
	Count    int
}

// ComputeStats summarises a set of memories' Q-values (average, trained
// count, high/low buckets) for the wake preamble's Q-value summary line.
func ComputeStats(memories []storage.Memory) Stats {
	var st Stats
	var total float64
	for _, m := range memories {
		total += m.QValue
		st.Count++
		if m.QValue != 0.5 {
			st.Trained++
		}
		if m.QValue >= 0.7 {
			st.HighQ++
		}
		if m.QValue <= 0.3 {
			st.LowQ++
		}
	}
	if st.Count > 0 {
		st.Average = total / float64(st.Count)
	}
	return st
}

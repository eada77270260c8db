// Package goals implements the active/completed/abandoned goal lifecycle,
// evaluated and regenerated each sleep (C10).
package goals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alanwatts07/drift-agents/internal/sessionparser"
	"github.com/alanwatts07/drift-agents/internal/storage"
)

// Backend is the subset of storage.Backend the goal generator needs.
type Backend interface {
	ListGoals(ctx context.Context, status storage.GoalStatus) ([]storage.Goal, error)
	InsertGoal(ctx context.Context, g storage.Goal) error
	UpdateGoal(ctx context.Context, g storage.Goal) error
}

// staleAfter is how long an active goal may go unevaluated before it is
// considered abandoned.
const staleAfter = 30 * 24 * time.Hour

// maxNewGoalsPerSleep bounds how many goals generate_goals proposes in one
// sleep, matching spec §4.10's "small number".
const maxNewGoalsPerSleep = 3

// Engine evaluates and generates goals against a storage backend.
type Engine struct {
	Store Backend
}

func New(store Backend) *Engine {
	return &Engine{Store: store}
}

// EvaluateGoals transitions existing goals: an active goal whose text
// contains the name of a thread completed this session is marked completed;
// other active goals older than staleAfter are abandoned.
func (e *Engine) EvaluateGoals(ctx context.Context, now time.Time, completedThreadNames []string) error {
	active, err := e.Store.ListGoals(ctx, storage.GoalActive)
	if err != nil {
		return fmt.Errorf("list active goals: %w", err)
	}
	for _, g := range active {
		if matchesAny(g.Text, completedThreadNames) {
			g.Status = storage.GoalCompleted
			g.EvaluatedAt = &now
			if err := e.Store.UpdateGoal(ctx, g); err != nil {
				return fmt.Errorf("complete goal %s: %w", g.ID, err)
			}
			continue
		}
		if now.Sub(g.Created) > staleAfter {
			g.Status = storage.GoalAbandoned
			g.EvaluatedAt = &now
			if err := e.Store.UpdateGoal(ctx, g); err != nil {
				return fmt.Errorf("abandon goal %s: %w", g.ID, err)
			}
		}
	}
	return nil
}

// GenerateGoals proposes up to maxNewGoalsPerSleep new goals from blocked
// threads, committing only those not already represented by an active
// goal with matching text.
func (e *Engine) GenerateGoals(ctx context.Context, blockedThreads []sessionparser.Thread) (int, error) {
	active, err := e.Store.ListGoals(ctx, storage.GoalActive)
	if err != nil {
		return 0, fmt.Errorf("list active goals: %w", err)
	}
	existing := map[string]bool{}
	for _, g := range active {
		existing[strings.ToLower(strings.TrimSpace(g.Text))] = true
	}

	created := 0
	for _, th := range blockedThreads {
		if created >= maxNewGoalsPerSleep {
			break
		}
		text := fmt.Sprintf("Resolve: %s", th.Name)
		key := strings.ToLower(strings.TrimSpace(text))
		if existing[key] {
			continue
		}
		if err := e.Store.InsertGoal(ctx, storage.Goal{Text: text, Status: storage.GoalActive}); err != nil {
			return created, fmt.Errorf("insert goal: %w", err)
		}
		existing[key] = true
		created++
	}
	return created, nil
}

func matchesAny(text string, names []string) bool {
	lt := strings.ToLower(text)
	for _, n := range names {
		if n != "" && strings.Contains(lt, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// Package graph builds typed edges between memories and categorises
// extracted lessons into the lessons table (C9).
package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/alanwatts07/drift-agents/internal/storage"
)

// Predicate is the fixed vocabulary of qualitative relations spec §3 names.
type Predicate string

const (
	PredicateSupports    Predicate = "supports"
	PredicateContradicts Predicate = "contradicts"
	PredicateRefines     Predicate = "refines"
)

// LessonCategory is the fixed categorisation vocabulary for the lessons
// table.
type LessonCategory string

const (
	CategoryHeuristic  LessonCategory = "heuristic"
	CategoryTechnical  LessonCategory = "technical"
	CategoryProcess    LessonCategory = "process"
	CategoryBehavioral LessonCategory = "behavioral"
)

// Backend is the subset of storage.Backend the knowledge graph needs.
type Backend interface {
	ListAllActive(ctx context.Context) ([]storage.Memory, error)
	InsertTypedEdge(ctx context.Context, e storage.TypedEdge) error
	InsertLesson(ctx context.Context, l storage.Lesson) error
}

// Engine extracts edges and stores categorised lessons.
type Engine struct {
	Store Backend
}

func New(store Backend) *Engine {
	return &Engine{Store: store}
}

// ExtractEdges compares a newly created memory's content against existing
// active memories and emits typed edges where a simple lexical signal
// suggests a relation. Failures are the caller's responsibility to log and
// continue past (spec §4.9 marks this phase non-fatal).
func (e *Engine) ExtractEdges(ctx context.Context, newMemory storage.Memory) error {
	existing, err := e.Store.ListAllActive(ctx)
	if err != nil {
		return fmt.Errorf("list active memories: %w", err)
	}

	for _, other := range existing {
		if other.ID == newMemory.ID {
			continue
		}
		pred, conf, ok := classifyRelation(newMemory.Content, other.Content)
		if !ok {
			continue
		}
		edge := storage.TypedEdge{
			SubjectMemoryID: newMemory.ID,
			Predicate:       string(pred),
			ObjectMemoryID:  other.ID,
			Confidence:      conf,
		}
		if err := e.Store.InsertTypedEdge(ctx, edge); err != nil {
			return fmt.Errorf("insert typed edge: %w", err)
		}
	}
	return nil
}

// classifyRelation is a lightweight lexical heuristic: an explicit negation
// ("not <word>") of the other text's first significant word suggests
// `contradicts`, three or more shared significant words suggest `refines`,
// and one or two shared significant words suggest `supports`.
func classifyRelation(a, b string) (Predicate, float64, bool) {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if strings.Contains(la, "not "+firstSignificantWord(lb)) || strings.Contains(lb, "not "+firstSignificantWord(la)) {
		return PredicateContradicts, 0.5, true
	}
	overlap := sharedWordCount(la, lb)
	if overlap == 0 {
		return "", 0, false
	}
	if overlap >= 3 {
		return PredicateRefines, 0.6, true
	}
	return PredicateSupports, 0.4, true
}

func firstSignificantWord(s string) string {
	for _, w := range strings.Fields(s) {
		if len(w) > 4 {
			return w
		}
	}
	return ""
}

func sharedWordCount(a, b string) int {
	set := map[string]bool{}
	for _, w := range strings.Fields(a) {
		if len(w) > 4 {
			set[w] = true
		}
	}
	count := 0
	for _, w := range strings.Fields(b) {
		if len(w) > 4 && set[w] {
			count++
		}
	}
	return count
}

// CategorizeLesson maps a lesson's free text to a fixed category using a
// keyword heuristic, defaulting to CategoryHeuristic.
func CategorizeLesson(text string) LessonCategory {
	l := strings.ToLower(text)
	switch {
	case strings.Contains(l, "process") || strings.Contains(l, "workflow"):
		return CategoryProcess
	case strings.Contains(l, "bug") || strings.Contains(l, "code") || strings.Contains(l, "api") || strings.Contains(l, "config"):
		return CategoryTechnical
	case strings.Contains(l, "communicat") || strings.Contains(l, "team"):
		return CategoryBehavioral
	default:
		return CategoryHeuristic
	}
}

// StoreLesson categorises and inserts l as a lessons-table row with
// source="session" and confidence 0.7, per spec §4.9.
func (e *Engine) StoreLesson(ctx context.Context, text, evidence string) error {
	l := storage.Lesson{
		Category:   string(CategorizeLesson(text)),
		Text:       text,
		Evidence:   evidence,
		Source:     "session",
		Confidence: 0.7,
	}
	if err := e.Store.InsertLesson(ctx, l); err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"encoding/json"
)

// Backend is the namespaced relational adapter every cognitive component
// depends on. PGStore implements it against Postgres/pgvector; MemStore
// implements it in-memory for tests that do not need a live database.
type Backend interface {
	InsertMemory(ctx context.Context, m Memory) error
	GetMemory(ctx context.Context, id string) (Memory, bool, error)
	ListMemories(ctx context.Context, memType MemoryType, limit int) ([]Memory, error)
	ListAllActive(ctx context.Context) ([]Memory, error)
	UpdateMemory(ctx context.Context, m Memory) error

	UpsertEmbedding(ctx context.Context, e Embedding) error
	SearchSimilar(ctx context.Context, vec []float32, limit int) ([]ScoredMemory, error)
	SearchFulltext(ctx context.Context, query string, limit int) ([]ScoredMemory, error)

	StartSession(ctx context.Context) (Session, error)
	EndSession(ctx context.Context, id string) error
	OpenSession(ctx context.Context) (Session, bool, error)
	SessionCount(ctx context.Context) (int, error)

	GetStats(ctx context.Context) (Stats, error)

	KVGet(ctx context.Context, key string) (json.RawMessage, bool, error)
	KVSet(ctx context.Context, key string, value json.RawMessage) error
	KVDelete(ctx context.Context, key string) error

	IncrementCoOccurrence(ctx context.Context, a, b string) error
	ListCoOccurrences(ctx context.Context, memoryID string) ([]CoOccurrence, error)

	InsertTypedEdge(ctx context.Context, e TypedEdge) error
	ListTypedEdges(ctx context.Context, subjectID string) ([]TypedEdge, error)

	InsertLesson(ctx context.Context, l Lesson) error
	ListLessons(ctx context.Context, limit int) ([]Lesson, error)

	InsertQHistory(ctx context.Context, h QValueHistory) error

	InsertGoal(ctx context.Context, g Goal) error
	ListGoals(ctx context.Context, status GoalStatus) ([]Goal, error)
	UpdateGoal(ctx context.Context, g Goal) error

	GetMood(ctx context.Context) (Mood, error)
	SetMood(ctx context.Context, m Mood) error

	SharedInsert(ctx context.Context, m SharedMemory) error
	SharedListExcept(ctx context.Context, namespace string, limit int) ([]SharedMemory, error)
	SharedUpsertRegistry(ctx context.Context, reg AgentRegistration) error

	// Namespace returns the schema/namespace this backend is scoped to.
	Namespace() string
}

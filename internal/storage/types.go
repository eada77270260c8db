// Package storage implements the namespaced relational adapter (C1):
// memories, embeddings, sessions, co-occurrence/typed edges, lessons,
// goals, mood, and the KV slot, plus the cross-agent SHARED tables.
package storage

import "time"

// MemoryType is the tier a Memory belongs to.
type MemoryType string

const (
	MemoryCore    MemoryType = "core"
	MemoryActive  MemoryType = "active"
	MemoryArchive MemoryType = "archive"
)

// Memory is the fundamental retrievable unit.
type Memory struct {
	ID                   string
	Type                 MemoryType
	Content              string
	Tags                 []string
	EmotionalWeight      float64
	Importance           float64
	Freshness            float64
	QValue               float64
	RecallCount          int
	SessionsSinceRecall  int
	LastRecalled         *time.Time
	Created              time.Time
	Entities             []string
}

// HasTag reports whether m carries the given tag.
func (m Memory) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ScoredMemory pairs a Memory with a retrieval score (similarity, rank, or
// the composite score computed by internal/retrieval).
type ScoredMemory struct {
	Memory Memory
	Score  float64
}

// Embedding is the fixed-dimensional vector attached to a memory.
type Embedding struct {
	MemoryID string
	Vector   []float32
	Preview  string
}

// CoOccurrence counts how many sessions memory_id and other_id were both
// surfaced in retrieval/ingest together. Symmetric pairs are stored as two
// rows by the adapter.
type CoOccurrence struct {
	MemoryID string
	OtherID  string
	Count    int
}

// TypedEdge is a qualitative relation between two memories.
type TypedEdge struct {
	ID              string
	SubjectMemoryID string
	Predicate       string
	ObjectMemoryID  string
	Confidence      float64
	Created         time.Time
}

// Session brackets one wake/sleep episode for a namespace.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   *time.Time
}

// QValueHistory is an append-only row recording one Q-value update.
type QValueHistory struct {
	ID            string
	MemoryID      string
	SessionID     string
	OldQ          float64
	NewQ          float64
	Reward        float64
	RewardSource  string
	Created       time.Time
}

// Lesson is a categorised, evidenced takeaway.
type Lesson struct {
	ID         string
	Category   string
	Text       string
	Evidence   string
	Source     string
	Confidence float64
	Created    time.Time
}

// GoalStatus is the lifecycle state of a Goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalAbandoned GoalStatus = "abandoned"
)

// Goal is a single active/completed/abandoned objective.
type Goal struct {
	ID          string
	Text        string
	Status      GoalStatus
	Created     time.Time
	EvaluatedAt *time.Time
}

// Mood is the two-dimensional affect state persisted per namespace.
type Mood struct {
	Valence float64
	Arousal float64
}

// Stats summarises a namespace for the `status` command and wake footer.
type Stats struct {
	Total             int
	CoreCount         int
	ActiveCount       int
	ArchiveCount      int
	SessionCount      int
	LastSessionEndedAt *time.Time
}

// SharedMemory is a row in the cross-namespace SHARED table.
type SharedMemory struct {
	ID              string
	Content         string
	CreatedBy       string
	Tags            []string
	EmotionalWeight float64
	Importance      float64
	Created         time.Time
}

// AgentRegistration is a row in the SHARED agent registry.
type AgentRegistration struct {
	Namespace  string
	LastActive time.Time
}

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Backend used by package tests that exercise
// retrieval/ingest/decay logic without a live Postgres instance. It
// approximates PGStore's similarity and fulltext search closely enough for
// the testable properties in spec §8, trading the real tsvector/pgvector
// engines for a cosine/substring approximation.
type MemStore struct {
	mu        sync.Mutex
	namespace string

	memories   map[string]Memory
	embeddings map[string]Embedding
	coocc      map[[2]string]int
	edges      []TypedEdge
	sessions   map[string]Session
	qhistory   []QValueHistory
	lessons    []Lesson
	goals      map[string]Goal
	mood       Mood
	kv         map[string]json.RawMessage

	shared         map[string]SharedMemory
	sharedRegistry map[string]AgentRegistration
}

// NewMemStore returns an empty in-memory Backend for namespace.
func NewMemStore(namespace string) *MemStore {
	return &MemStore{
		namespace:      namespace,
		memories:       map[string]Memory{},
		embeddings:     map[string]Embedding{},
		coocc:          map[[2]string]int{},
		sessions:       map[string]Session{},
		goals:          map[string]Goal{},
		kv:             map[string]json.RawMessage{},
		shared:         map[string]SharedMemory{},
		sharedRegistry: map[string]AgentRegistration{},
	}
}

func (s *MemStore) Namespace() string { return s.namespace }

func (s *MemStore) InsertMemory(_ context.Context, m Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.memories[m.ID]; exists {
		return fmt.Errorf("memory %s already exists", m.ID)
	}
	if m.Created.IsZero() {
		m.Created = time.Now().UTC()
	}
	s.memories[m.ID] = m
	return nil
}

func (s *MemStore) GetMemory(_ context.Context, id string) (Memory, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[id]
	return m, ok, nil
}

func (s *MemStore) ListMemories(_ context.Context, memType MemoryType, limit int) ([]Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Memory
	for _, m := range s.memories {
		if m.Type == memType {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) ListAllActive(ctx context.Context) ([]Memory, error) {
	return s.ListMemories(ctx, MemoryActive, 0)
}

func (s *MemStore) UpdateMemory(_ context.Context, m Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.memories[m.ID]
	if !ok {
		return fmt.Errorf("memory %s not found", m.ID)
	}
	m.Created = existing.Created
	s.memories[m.ID] = m
	return nil
}

func (s *MemStore) UpsertEmbedding(_ context.Context, e Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.memories[e.MemoryID]; !ok {
		return fmt.Errorf("memory %s not found", e.MemoryID)
	}
	s.embeddings[e.MemoryID] = e
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func (s *MemStore) SearchSimilar(_ context.Context, vec []float32, limit int) ([]ScoredMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ScoredMemory
	for id, e := range s.embeddings {
		m, ok := s.memories[id]
		if !ok {
			continue
		}
		out = append(out, ScoredMemory{Memory: m, Score: cosine(vec, e.Vector)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) SearchFulltext(_ context.Context, query string, limit int) ([]ScoredMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(query))
	var out []ScoredMemory
	for _, m := range s.memories {
		lc := strings.ToLower(m.Content)
		if q == "" || strings.Contains(lc, q) {
			score := 0.0
			if q != "" {
				score = float64(strings.Count(lc, q))
			}
			out = append(out, ScoredMemory{Memory: m, Score: score})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) StartSession(_ context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := Session{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *MemStore) EndSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	now := time.Now().UTC()
	sess.EndedAt = &now
	s.sessions[id] = sess
	return nil
}

func (s *MemStore) OpenSession(_ context.Context) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best Session
	found := false
	for _, sess := range s.sessions {
		if sess.EndedAt == nil && (!found || sess.StartedAt.After(best.StartedAt)) {
			best, found = sess, true
		}
	}
	return best, found, nil
}

func (s *MemStore) SessionCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions), nil
}

func (s *MemStore) GetStats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats Stats
	var lastEnded *time.Time
	for _, m := range s.memories {
		stats.Total++
		switch m.Type {
		case MemoryCore:
			stats.CoreCount++
		case MemoryActive:
			stats.ActiveCount++
		case MemoryArchive:
			stats.ArchiveCount++
		}
	}
	for _, sess := range s.sessions {
		if sess.EndedAt != nil && (lastEnded == nil || sess.EndedAt.After(*lastEnded)) {
			lastEnded = sess.EndedAt
		}
	}
	stats.SessionCount = len(s.sessions)
	stats.LastSessionEndedAt = lastEnded
	return stats, nil
}

func (s *MemStore) KVGet(_ context.Context, key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.kv[key]
	return v, ok, nil
}

func (s *MemStore) KVSet(_ context.Context, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

func (s *MemStore) KVDelete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

func (s *MemStore) IncrementCoOccurrence(_ context.Context, a, b string) error {
	if a == b {
		return fmt.Errorf("co-occurrence requires distinct memory ids")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coocc[[2]string{a, b}]++
	s.coocc[[2]string{b, a}]++
	return nil
}

func (s *MemStore) ListCoOccurrences(_ context.Context, memoryID string) ([]CoOccurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []CoOccurrence
	for pair, count := range s.coocc {
		if pair[0] == memoryID {
			out = append(out, CoOccurrence{MemoryID: pair[0], OtherID: pair[1], Count: count})
		}
	}
	return out, nil
}

func (s *MemStore) InsertTypedEdge(_ context.Context, e TypedEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Created.IsZero() {
		e.Created = time.Now().UTC()
	}
	s.edges = append(s.edges, e)
	return nil
}

func (s *MemStore) ListTypedEdges(_ context.Context, subjectID string) ([]TypedEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TypedEdge
	for _, e := range s.edges {
		if e.SubjectMemoryID == subjectID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemStore) InsertLesson(_ context.Context, l Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Created.IsZero() {
		l.Created = time.Now().UTC()
	}
	s.lessons = append(s.lessons, l)
	return nil
}

func (s *MemStore) ListLessons(_ context.Context, limit int) ([]Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Lesson, len(s.lessons))
	copy(out, s.lessons)
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) InsertQHistory(_ context.Context, h QValueHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.Created.IsZero() {
		h.Created = time.Now().UTC()
	}
	s.qhistory = append(s.qhistory, h)
	return nil
}

func (s *MemStore) InsertGoal(_ context.Context, g Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Created.IsZero() {
		g.Created = time.Now().UTC()
	}
	s.goals[g.ID] = g
	return nil
}

func (s *MemStore) ListGoals(_ context.Context, status GoalStatus) ([]Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Goal
	for _, g := range s.goals {
		if g.Status == status {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}

func (s *MemStore) UpdateGoal(_ context.Context, g Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[g.ID]; !ok {
		return fmt.Errorf("goal %s not found", g.ID)
	}
	s.goals[g.ID] = g
	return nil
}

func (s *MemStore) GetMood(_ context.Context) (Mood, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mood, nil
}

func (s *MemStore) SetMood(_ context.Context, m Mood) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mood = m
	return nil
}

func (s *MemStore) SharedInsert(_ context.Context, m SharedMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, exists := s.shared[m.ID]; exists {
		return nil
	}
	if m.Created.IsZero() {
		m.Created = time.Now().UTC()
	}
	s.shared[m.ID] = m
	return nil
}

func (s *MemStore) SharedListExcept(_ context.Context, namespace string, limit int) ([]SharedMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SharedMemory
	for _, m := range s.shared {
		if m.CreatedBy != namespace {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) SharedUpsertRegistry(_ context.Context, reg AgentRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sharedRegistry[reg.Namespace] = reg
	return nil
}

var _ Backend = (*MemStore)(nil)

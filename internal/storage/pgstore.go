package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func newUUID() string { return uuid.NewString() }

// PGStore is the Postgres/pgvector-backed Backend implementation, scoped to
// one namespace (Postgres schema) at construction. It holds no mutable
// namespace state itself — switching namespace means constructing a new
// PGStore via WithNamespace, per the spec's "explicit reset" requirement
// rather than a package-level global.
type PGStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// New returns a PGStore scoped to namespace. Callers should run
// EnsureSchema once per namespace before first use.
func New(pool *pgxpool.Pool, namespace string) *PGStore {
	return &PGStore{pool: pool, namespace: namespace}
}

// WithNamespace returns a copy of s scoped to a different namespace,
// sharing the same underlying pool.
func (s *PGStore) WithNamespace(namespace string) *PGStore {
	return &PGStore{pool: s.pool, namespace: namespace}
}

func (s *PGStore) Namespace() string { return s.namespace }

func pgxIdentSchema(namespace string) string {
	return pgx.Identifier{namespace}.Sanitize()
}

// table returns the schema-qualified, sanitized name of a namespace table.
func (s *PGStore) table(name string) string {
	return pgx.Identifier{s.namespace, name}.Sanitize()
}

func tagsToSlice(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func (s *PGStore) InsertMemory(ctx context.Context, m Memory) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, type, content, tags, emotional_weight, importance,
		freshness, q_value, recall_count, sessions_since_recall, last_recalled, created, entities)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`, s.table("memories"))
	created := m.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, q, m.ID, string(m.Type), m.Content, tagsToSlice(m.Tags),
		m.EmotionalWeight, m.Importance, m.Freshness, m.QValue, m.RecallCount,
		m.SessionsSinceRecall, m.LastRecalled, created, tagsToSlice(m.Entities))
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

func scanMemory(row pgx.Row) (Memory, error) {
	var m Memory
	var typ string
	if err := row.Scan(&m.ID, &typ, &m.Content, &m.Tags, &m.EmotionalWeight, &m.Importance,
		&m.Freshness, &m.QValue, &m.RecallCount, &m.SessionsSinceRecall, &m.LastRecalled,
		&m.Created, &m.Entities); err != nil {
		return Memory{}, err
	}
	m.Type = MemoryType(typ)
	return m, nil
}

const memoryCols = `id, type, content, tags, emotional_weight, importance, freshness, q_value,
	recall_count, sessions_since_recall, last_recalled, created, entities`

func (s *PGStore) GetMemory(ctx context.Context, id string) (Memory, bool, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1`, memoryCols, s.table("memories"))
	m, err := scanMemory(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Memory{}, false, nil
	}
	if err != nil {
		return Memory{}, false, fmt.Errorf("get memory: %w", err)
	}
	return m, true, nil
}

func (s *PGStore) ListMemories(ctx context.Context, memType MemoryType, limit int) ([]Memory, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE type=$1 ORDER BY created DESC LIMIT $2`,
		memoryCols, s.table("memories"))
	// limit <= 0 means no limit, as in MemStore; LIMIT NULL returns all rows.
	var lim any = limit
	if limit <= 0 {
		lim = nil
	}
	rows, err := s.pool.Query(ctx, q, string(memType), lim)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()
	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PGStore) ListAllActive(ctx context.Context) ([]Memory, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE type='active'`, memoryCols, s.table("memories"))
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list active memories: %w", err)
	}
	defer rows.Close()
	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateMemory(ctx context.Context, m Memory) error {
	q := fmt.Sprintf(`UPDATE %s SET type=$2, content=$3, tags=$4, emotional_weight=$5,
		importance=$6, freshness=$7, q_value=$8, recall_count=$9, sessions_since_recall=$10,
		last_recalled=$11, entities=$12 WHERE id=$1`, s.table("memories"))
	_, err := s.pool.Exec(ctx, q, m.ID, string(m.Type), m.Content, tagsToSlice(m.Tags),
		m.EmotionalWeight, m.Importance, m.Freshness, m.QValue, m.RecallCount,
		m.SessionsSinceRecall, m.LastRecalled, tagsToSlice(m.Entities))
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}
	return nil
}

func (s *PGStore) UpsertEmbedding(ctx context.Context, e Embedding) error {
	q := fmt.Sprintf(`INSERT INTO %s (memory_id, vector, preview) VALUES ($1, $2::vector, $3)
		ON CONFLICT (memory_id) DO UPDATE SET vector=EXCLUDED.vector, preview=EXCLUDED.preview`,
		s.table("text_embeddings"))
	_, err := s.pool.Exec(ctx, q, e.MemoryID, encodeVector(e.Vector), e.Preview)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

func (s *PGStore) SearchSimilar(ctx context.Context, vec []float32, limit int) ([]ScoredMemory, error) {
	q := fmt.Sprintf(`SELECT %s, 1 - (e.vector <=> $1::vector) AS sim
		FROM %s m JOIN %s e ON e.memory_id = m.id
		ORDER BY e.vector <=> $1::vector ASC LIMIT $2`,
		prefixCols("m", memoryCols), s.table("memories"), s.table("text_embeddings"))
	rows, err := s.pool.Query(ctx, q, encodeVector(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	defer rows.Close()
	var out []ScoredMemory
	for rows.Next() {
		var m Memory
		var typ string
		var score float64
		if err := rows.Scan(&m.ID, &typ, &m.Content, &m.Tags, &m.EmotionalWeight, &m.Importance,
			&m.Freshness, &m.QValue, &m.RecallCount, &m.SessionsSinceRecall, &m.LastRecalled,
			&m.Created, &m.Entities, &score); err != nil {
			return nil, fmt.Errorf("scan similar: %w", err)
		}
		m.Type = MemoryType(typ)
		out = append(out, ScoredMemory{Memory: m, Score: score})
	}
	return out, rows.Err()
}

func (s *PGStore) SearchFulltext(ctx context.Context, query string, limit int) ([]ScoredMemory, error) {
	q := fmt.Sprintf(`SELECT %s, ts_rank(content_tsv, plainto_tsquery('english', $1)) AS rank
		FROM %s WHERE content_tsv @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC LIMIT $2`, memoryCols, s.table("memories"))
	rows, err := s.pool.Query(ctx, q, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search fulltext: %w", err)
	}
	defer rows.Close()
	var out []ScoredMemory
	for rows.Next() {
		var m Memory
		var typ string
		var rank float64
		if err := rows.Scan(&m.ID, &typ, &m.Content, &m.Tags, &m.EmotionalWeight, &m.Importance,
			&m.Freshness, &m.QValue, &m.RecallCount, &m.SessionsSinceRecall, &m.LastRecalled,
			&m.Created, &m.Entities, &rank); err != nil {
			return nil, fmt.Errorf("scan fulltext: %w", err)
		}
		m.Type = MemoryType(typ)
		out = append(out, ScoredMemory{Memory: m, Score: rank})
	}
	return out, rows.Err()
}

// prefixCols prefixes every column in a flat ", "-joined column list with
// alias, so a join query can disambiguate against the joined table.
func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(out, ", ")
}

func (s *PGStore) StartSession(ctx context.Context) (Session, error) {
	sess := Session{ID: newUUID(), StartedAt: time.Now().UTC()}
	q := fmt.Sprintf(`INSERT INTO %s (id, started_at) VALUES ($1,$2)`, s.table("sessions"))
	if _, err := s.pool.Exec(ctx, q, sess.ID, sess.StartedAt); err != nil {
		return Session{}, fmt.Errorf("start session: %w", err)
	}
	return sess, nil
}

func (s *PGStore) EndSession(ctx context.Context, id string) error {
	q := fmt.Sprintf(`UPDATE %s SET ended_at=now() WHERE id=$1`, s.table("sessions"))
	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (s *PGStore) OpenSession(ctx context.Context) (Session, bool, error) {
	q := fmt.Sprintf(`SELECT id, started_at, ended_at FROM %s WHERE ended_at IS NULL
		ORDER BY started_at DESC LIMIT 1`, s.table("sessions"))
	var sess Session
	err := s.pool.QueryRow(ctx, q).Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("open session: %w", err)
	}
	return sess, true, nil
}

func (s *PGStore) SessionCount(ctx context.Context) (int, error) {
	q := fmt.Sprintf(`SELECT count(*) FROM %s`, s.table("sessions"))
	var n int
	if err := s.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("session count: %w", err)
	}
	return n, nil
}

func (s *PGStore) GetStats(ctx context.Context) (Stats, error) {
	var stats Stats
	q := fmt.Sprintf(`SELECT
		count(*) FILTER (WHERE true),
		count(*) FILTER (WHERE type='core'),
		count(*) FILTER (WHERE type='active'),
		count(*) FILTER (WHERE type='archive')
		FROM %s`, s.table("memories"))
	if err := s.pool.QueryRow(ctx, q).Scan(&stats.Total, &stats.CoreCount, &stats.ActiveCount, &stats.ArchiveCount); err != nil {
		return Stats{}, fmt.Errorf("get stats: %w", err)
	}
	n, err := s.SessionCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats.SessionCount = n

	sq := fmt.Sprintf(`SELECT max(ended_at) FROM %s WHERE ended_at IS NOT NULL`, s.table("sessions"))
	var last *time.Time
	if err := s.pool.QueryRow(ctx, sq).Scan(&last); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Stats{}, fmt.Errorf("get last session: %w", err)
	}
	stats.LastSessionEndedAt = last
	return stats, nil
}

func (s *PGStore) KVGet(ctx context.Context, key string) (json.RawMessage, bool, error) {
	q := fmt.Sprintf(`SELECT json_value FROM %s WHERE key=$1`, s.table("kv_store"))
	var raw json.RawMessage
	err := s.pool.QueryRow(ctx, q, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get: %w", err)
	}
	return raw, true, nil
}

func (s *PGStore) KVSet(ctx context.Context, key string, value json.RawMessage) error {
	q := fmt.Sprintf(`INSERT INTO %s (key, json_value) VALUES ($1,$2)
		ON CONFLICT (key) DO UPDATE SET json_value=EXCLUDED.json_value`, s.table("kv_store"))
	if _, err := s.pool.Exec(ctx, q, key, value); err != nil {
		return fmt.Errorf("kv set: %w", err)
	}
	return nil
}

func (s *PGStore) KVDelete(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE key=$1`, s.table("kv_store"))
	if _, err := s.pool.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("kv delete: %w", err)
	}
	return nil
}

// IncrementCoOccurrence increments both directed rows of the symmetric pair
// (a,b) within a single transaction, per the spec's atomicity requirement.
func (s *PGStore) IncrementCoOccurrence(ctx context.Context, a, b string) error {
	if a == b {
		return fmt.Errorf("co-occurrence requires distinct memory ids")
	}
	q := fmt.Sprintf(`INSERT INTO %s (memory_id, other_id, count) VALUES ($1,$2,1)
		ON CONFLICT (memory_id, other_id) DO UPDATE SET count = %s.count + 1`,
		s.table("co_occurrences"), s.table("co_occurrences"))
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin co-occurrence tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, q, a, b); err != nil {
		return fmt.Errorf("increment co-occurrence (%s,%s): %w", a, b, err)
	}
	if _, err := tx.Exec(ctx, q, b, a); err != nil {
		return fmt.Errorf("increment co-occurrence (%s,%s): %w", b, a, err)
	}
	return tx.Commit(ctx)
}

func (s *PGStore) ListCoOccurrences(ctx context.Context, memoryID string) ([]CoOccurrence, error) {
	q := fmt.Sprintf(`SELECT memory_id, other_id, count FROM %s WHERE memory_id=$1`, s.table("co_occurrences"))
	rows, err := s.pool.Query(ctx, q, memoryID)
	if err != nil {
		return nil, fmt.Errorf("list co-occurrences: %w", err)
	}
	defer rows.Close()
	var out []CoOccurrence
	for rows.Next() {
		var c CoOccurrence
		if err := rows.Scan(&c.MemoryID, &c.OtherID, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) InsertTypedEdge(ctx context.Context, e TypedEdge) error {
	if e.ID == "" {
		e.ID = newUUID()
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, subject_memory_id, predicate, object_memory_id, confidence)
		VALUES ($1,$2,$3,$4,$5)`, s.table("typed_edges"))
	_, err := s.pool.Exec(ctx, q, e.ID, e.SubjectMemoryID, e.Predicate, e.ObjectMemoryID, e.Confidence)
	if err != nil {
		return fmt.Errorf("insert typed edge: %w", err)
	}
	return nil
}

func (s *PGStore) ListTypedEdges(ctx context.Context, subjectID string) ([]TypedEdge, error) {
	q := fmt.Sprintf(`SELECT id, subject_memory_id, predicate, object_memory_id, confidence, created
		FROM %s WHERE subject_memory_id=$1`, s.table("typed_edges"))
	rows, err := s.pool.Query(ctx, q, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list typed edges: %w", err)
	}
	defer rows.Close()
	var out []TypedEdge
	for rows.Next() {
		var e TypedEdge
		if err := rows.Scan(&e.ID, &e.SubjectMemoryID, &e.Predicate, &e.ObjectMemoryID, &e.Confidence, &e.Created); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) InsertLesson(ctx context.Context, l Lesson) error {
	if l.ID == "" {
		l.ID = newUUID()
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, category, text, evidence, source, confidence)
		VALUES ($1,$2,$3,$4,$5,$6)`, s.table("lessons"))
	_, err := s.pool.Exec(ctx, q, l.ID, l.Category, l.Text, l.Evidence, l.Source, l.Confidence)
	if err != nil {
		return fmt.Errorf("insert lesson: %w", err)
	}
	return nil
}

func (s *PGStore) ListLessons(ctx context.Context, limit int) ([]Lesson, error) {
	q := fmt.Sprintf(`SELECT id, category, text, evidence, source, confidence, created
		FROM %s ORDER BY created DESC LIMIT $1`, s.table("lessons"))
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	defer rows.Close()
	var out []Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.Category, &l.Text, &l.Evidence, &l.Source, &l.Confidence, &l.Created); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PGStore) InsertQHistory(ctx context.Context, h QValueHistory) error {
	if h.ID == "" {
		h.ID = newUUID()
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, memory_id, session_id, old_q, new_q, reward, reward_source)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`, s.table("q_value_history"))
	_, err := s.pool.Exec(ctx, q, h.ID, h.MemoryID, h.SessionID, h.OldQ, h.NewQ, h.Reward, h.RewardSource)
	if err != nil {
		return fmt.Errorf("insert q history: %w", err)
	}
	return nil
}

func (s *PGStore) InsertGoal(ctx context.Context, g Goal) error {
	if g.ID == "" {
		g.ID = newUUID()
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, text, status) VALUES ($1,$2,$3)`, s.table("goals"))
	_, err := s.pool.Exec(ctx, q, g.ID, g.Text, string(g.Status))
	if err != nil {
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

func (s *PGStore) ListGoals(ctx context.Context, status GoalStatus) ([]Goal, error) {
	q := fmt.Sprintf(`SELECT id, text, status, created, evaluated_at FROM %s WHERE status=$1
		ORDER BY created DESC`, s.table("goals"))
	rows, err := s.pool.Query(ctx, q, string(status))
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()
	var out []Goal
	for rows.Next() {
		var g Goal
		var st string
		if err := rows.Scan(&g.ID, &g.Text, &st, &g.Created, &g.EvaluatedAt); err != nil {
			return nil, err
		}
		g.Status = GoalStatus(st)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateGoal(ctx context.Context, g Goal) error {
	q := fmt.Sprintf(`UPDATE %s SET text=$2, status=$3, evaluated_at=$4 WHERE id=$1`, s.table("goals"))
	_, err := s.pool.Exec(ctx, q, g.ID, g.Text, string(g.Status), g.EvaluatedAt)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	return nil
}

func (s *PGStore) GetMood(ctx context.Context) (Mood, error) {
	q := fmt.Sprintf(`SELECT valence, arousal FROM %s WHERE id = true`, s.table("mood"))
	var m Mood
	err := s.pool.QueryRow(ctx, q).Scan(&m.Valence, &m.Arousal)
	if errors.Is(err, pgx.ErrNoRows) {
		return Mood{}, nil
	}
	if err != nil {
		return Mood{}, fmt.Errorf("get mood: %w", err)
	}
	return m, nil
}

func (s *PGStore) SetMood(ctx context.Context, m Mood) error {
	q := fmt.Sprintf(`INSERT INTO %s (id, valence, arousal) VALUES (true, $1, $2)
		ON CONFLICT (id) DO UPDATE SET valence=EXCLUDED.valence, arousal=EXCLUDED.arousal`, s.table("mood"))
	_, err := s.pool.Exec(ctx, q, m.Valence, m.Arousal)
	if err != nil {
		return fmt.Errorf("set mood: %w", err)
	}
	return nil
}

func (s *PGStore) SharedInsert(ctx context.Context, m SharedMemory) error {
	if m.ID == "" {
		m.ID = newUUID()
	}
	q := `INSERT INTO shared.shared_memories (id, content, created_by, tags, emotional_weight, importance)
		VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING`
	_, err := s.pool.Exec(ctx, q, m.ID, m.Content, m.CreatedBy, tagsToSlice(m.Tags), m.EmotionalWeight, m.Importance)
	if err != nil {
		return fmt.Errorf("shared insert: %w", err)
	}
	return nil
}

func (s *PGStore) SharedListExcept(ctx context.Context, namespace string, limit int) ([]SharedMemory, error) {
	q := `SELECT id, content, created_by, tags, emotional_weight, importance, created
		FROM shared.shared_memories WHERE created_by <> $1 ORDER BY created DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, q, namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("shared list: %w", err)
	}
	defer rows.Close()
	var out []SharedMemory
	for rows.Next() {
		var m SharedMemory
		if err := rows.Scan(&m.ID, &m.Content, &m.CreatedBy, &m.Tags, &m.EmotionalWeight, &m.Importance, &m.Created); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PGStore) SharedUpsertRegistry(ctx context.Context, reg AgentRegistration) error {
	q := `INSERT INTO shared.shared_agent_registry (namespace, last_active) VALUES ($1,$2)
		ON CONFLICT (namespace) DO UPDATE SET last_active=EXCLUDED.last_active`
	_, err := s.pool.Exec(ctx, q, reg.Namespace, reg.LastActive)
	if err != nil {
		return fmt.Errorf("shared registry upsert: %w", err)
	}
	return nil
}

var _ Backend = (*PGStore)(nil)

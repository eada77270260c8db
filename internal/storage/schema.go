package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const embeddingDim = 1536

// EnsureSchema creates the namespace's schema and tables if they do not
// already exist, and the fixed `shared` schema alongside it. It is safe to
// call on every process start; all statements are idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, namespace string) error {
	schema := pgxIdentSchema(namespace)

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"CREATE EXTENSION IF NOT EXISTS pg_trgm",
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.memories (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			content TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			emotional_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			importance DOUBLE PRECISION NOT NULL DEFAULT 0,
			freshness DOUBLE PRECISION NOT NULL DEFAULT 1,
			q_value DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			recall_count INTEGER NOT NULL DEFAULT 0,
			sessions_since_recall INTEGER NOT NULL DEFAULT 0,
			last_recalled TIMESTAMPTZ,
			created TIMESTAMPTZ NOT NULL DEFAULT now(),
			entities TEXT[] NOT NULL DEFAULT '{}',
			content_tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
		)`, schema),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS memories_content_tsv_idx ON %s.memories USING GIN (content_tsv)", schema),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS memories_content_trgm_idx ON %s.memories USING GIN (content gin_trgm_ops)", schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.text_embeddings (
			memory_id TEXT PRIMARY KEY REFERENCES %s.memories(id) ON DELETE CASCADE,
			vector vector(%d) NOT NULL,
			preview TEXT
		)`, schema, schema, embeddingDim),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS text_embeddings_vector_idx ON %s.text_embeddings USING ivfflat (vector vector_cosine_ops)", schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.co_occurrences (
			memory_id TEXT NOT NULL,
			other_id TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (memory_id, other_id)
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.typed_edges (
			id TEXT PRIMARY KEY,
			subject_memory_id TEXT NOT NULL,
			predicate TEXT NOT NULL,
			object_memory_id TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			created TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.sessions (
			id TEXT PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			ended_at TIMESTAMPTZ
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.q_value_history (
			id TEXT PRIMARY KEY,
			memory_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			old_q DOUBLE PRECISION NOT NULL,
			new_q DOUBLE PRECISION NOT NULL,
			reward DOUBLE PRECISION NOT NULL,
			reward_source TEXT NOT NULL,
			created TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.lessons (
			id TEXT PRIMARY KEY,
			category TEXT NOT NULL,
			text TEXT NOT NULL,
			evidence TEXT,
			source TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			created TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.goals (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			status TEXT NOT NULL,
			created TIMESTAMPTZ NOT NULL DEFAULT now(),
			evaluated_at TIMESTAMPTZ
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.mood (
			id BOOLEAN PRIMARY KEY DEFAULT true CHECK (id),
			valence DOUBLE PRECISION NOT NULL DEFAULT 0,
			arousal DOUBLE PRECISION NOT NULL DEFAULT 0
		)`, schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.kv_store (
			key TEXT PRIMARY KEY,
			json_value JSONB NOT NULL
		)`, schema),
		"CREATE SCHEMA IF NOT EXISTS shared",
		`CREATE TABLE IF NOT EXISTS shared.shared_memories (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			created_by TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			emotional_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			importance DOUBLE PRECISION NOT NULL DEFAULT 0,
			created TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS shared.shared_agent_registry (
			namespace TEXT PRIMARY KEY,
			last_active TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Package config loads drift-agents configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DBConfig describes how to reach the shared Postgres instance. Every agent
// namespace lives in its own schema within the same database.
type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// LLMConfig describes the completion/summariser provider.
type LLMConfig struct {
	Provider  string // "anthropic" or "openai"
	Model     string
	APIKey    string
	BaseURL   string
}

// EmbeddingConfig describes the embedding endpoint: an Ollama host and the
// model passed to its native /api/embeddings call.
type EmbeddingConfig struct {
	Host  string
	Model string
}

// DecayConfig carries the Open-Question constants chosen for decay/promotion.
type DecayConfig struct {
	Gamma               float64
	FreshnessFloor      float64
	PromotionRecallMin  int
}

// QdrantConfig points at the optional cross-namespace semantic index over
// the SHARED memory pool. DSN empty means the index is disabled: Share
// skips indexing, and SearchShared returns an error.
type QdrantConfig struct {
	DSN        string
	Collection string
	Dimension  int
}

type Config struct {
	DB         DBConfig
	Namespace  string
	LLM        LLMConfig
	Summarizer LLMConfig
	Embedding  EmbeddingConfig
	Decay      DecayConfig
	Qdrant     QdrantConfig
	LogLevel   string
	LogPath    string
}

// agentSchemas mirrors the original memory_wrapper.py AGENT_SCHEMAS table:
// most agent names map directly to their schema, aliases are added here as
// the need arises.
var agentSchemas = map[string]string{}

// ResolveNamespace maps a CLI agent argument to a storage namespace/schema
// name, the way memory_wrapper.py's setup_env does.
func ResolveNamespace(agent string) string {
	if schema, ok := agentSchemas[agent]; ok {
		return schema
	}
	return agent
}

// Load reads configuration from the environment (optionally via a .env file
// in the working directory, overriding pre-existing OS environment values
// the same way the teacher's loader does).
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{}
	cfg.DB.Host = strings.TrimSpace(os.Getenv("DRIFT_DB_HOST"))
	cfg.DB.Name = strings.TrimSpace(os.Getenv("DRIFT_DB_NAME"))
	cfg.DB.User = strings.TrimSpace(os.Getenv("DRIFT_DB_USER"))
	cfg.DB.Password = strings.TrimSpace(os.Getenv("DRIFT_DB_PASSWORD"))

	var missing []string
	if cfg.DB.Host == "" {
		missing = append(missing, "DRIFT_DB_HOST")
	}
	if cfg.DB.Name == "" {
		missing = append(missing, "DRIFT_DB_NAME")
	}
	if cfg.DB.User == "" {
		missing = append(missing, "DRIFT_DB_USER")
	}
	if cfg.DB.Password == "" {
		missing = append(missing, "DRIFT_DB_PASSWORD")
	}
	rawPort := strings.TrimSpace(os.Getenv("DRIFT_DB_PORT"))
	if rawPort == "" {
		missing = append(missing, "DRIFT_DB_PORT")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return Config{}, fmt.Errorf("DRIFT_DB_PORT: %w", err)
	}
	cfg.DB.Port = port

	cfg.Namespace = strings.TrimSpace(os.Getenv("DRIFT_DB_SCHEMA"))

	cfg.LLM.Provider = strings.ToLower(firstNonEmpty(os.Getenv("COMPLETION_PROVIDER"), "anthropic"))
	switch cfg.LLM.Provider {
	case "anthropic":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		cfg.LLM.Model = firstNonEmpty(os.Getenv("ANTHROPIC_MODEL"), "claude-3-7-sonnet-latest")
		cfg.LLM.BaseURL = os.Getenv("ANTHROPIC_BASE_URL")
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		cfg.LLM.Model = firstNonEmpty(os.Getenv("OPENAI_MODEL"), "gpt-4o-mini")
		cfg.LLM.BaseURL = os.Getenv("OPENAI_BASE_URL")
	default:
		return Config{}, fmt.Errorf("COMPLETION_PROVIDER must be anthropic or openai, got %q", cfg.LLM.Provider)
	}
	// The summariser may run on a distinct, usually cheaper, model; absence of
	// its env vars degrades gracefully by reusing the completion provider.
	cfg.Summarizer = cfg.LLM
	if m := strings.TrimSpace(os.Getenv("OLLAMA_SUMMARIZE_MODEL")); m != "" {
		cfg.Summarizer.Model = m
	}

	cfg.Embedding.Host = strings.TrimSpace(os.Getenv("OLLAMA_HOST"))
	cfg.Embedding.Model = strings.TrimSpace(os.Getenv("OLLAMA_EMBED_MODEL"))

	cfg.Qdrant.DSN = strings.TrimSpace(os.Getenv("QDRANT_DSN"))
	cfg.Qdrant.Collection = firstNonEmpty(os.Getenv("QDRANT_COLLECTION"), "shared_memories")
	dim, err := parseIntDefault(os.Getenv("QDRANT_DIMENSION"), 0)
	if err != nil {
		return Config{}, fmt.Errorf("QDRANT_DIMENSION: %w", err)
	}
	cfg.Qdrant.Dimension = dim

	cfg.Decay.Gamma = parseFloatDefault(os.Getenv("DECAY_GAMMA"), 0.95)
	cfg.Decay.FreshnessFloor = parseFloatDefault(os.Getenv("DECAY_FRESHNESS_FLOOR"), 0.1)
	promo, err := parseIntDefault(os.Getenv("DECAY_PROMOTION_RECALL_MIN"), 3)
	if err != nil {
		return Config{}, fmt.Errorf("DECAY_PROMOTION_RECALL_MIN: %w", err)
	}
	cfg.Decay.PromotionRecallMin = promo

	cfg.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	cfg.LogPath = strings.TrimSpace(os.Getenv("LOG_PATH"))

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseIntDefault(v string, def int) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func parseFloatDefault(v string, def float64) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

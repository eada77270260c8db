package config

import "testing"

func TestResolveNamespacePassthrough(t *testing.T) {
	if got := ResolveNamespace("max"); got != "max" {
		t.Fatalf("ResolveNamespace(max) = %q, want max", got)
	}
}

func TestDSNFormat(t *testing.T) {
	d := DBConfig{Host: "localhost", Port: 5433, Name: "agent_memory", User: "drift_admin", Password: "pw"}
	want := "postgres://drift_admin:pw@localhost:5433/agent_memory?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}

// setFullDBEnv sets every required DB variable to a valid value; tests that
// check a single missing variable unset just that one afterwards.
func setFullDBEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DRIFT_DB_HOST", "localhost")
	t.Setenv("DRIFT_DB_NAME", "agent_memory")
	t.Setenv("DRIFT_DB_PORT", "5432")
	t.Setenv("DRIFT_DB_USER", "drift_admin")
	t.Setenv("DRIFT_DB_PASSWORD", "pw")
	t.Setenv("ANTHROPIC_API_KEY", "x")
}

func TestLoadRequiresDBCredentials(t *testing.T) {
	setFullDBEnv(t)
	t.Setenv("DRIFT_DB_USER", "")
	t.Setenv("DRIFT_DB_PASSWORD", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DB credentials are missing")
	}
}

func TestLoadRequiresDBHost(t *testing.T) {
	setFullDBEnv(t)
	t.Setenv("DRIFT_DB_HOST", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DRIFT_DB_HOST is missing")
	}
}

func TestLoadRequiresDBName(t *testing.T) {
	setFullDBEnv(t)
	t.Setenv("DRIFT_DB_NAME", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DRIFT_DB_NAME is missing")
	}
}

func TestLoadRequiresDBPort(t *testing.T) {
	setFullDBEnv(t)
	t.Setenv("DRIFT_DB_PORT", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DRIFT_DB_PORT is missing")
	}
}

func TestLoadRejectsNonNumericDBPort(t *testing.T) {
	setFullDBEnv(t)
	t.Setenv("DRIFT_DB_PORT", "not-a-port")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when DRIFT_DB_PORT is not numeric")
	}
}

func TestLoadDefaultsSummarizerToCompletionModel(t *testing.T) {
	setFullDBEnv(t)
	t.Setenv("DRIFT_DB_SCHEMA", "max")
	t.Setenv("COMPLETION_PROVIDER", "anthropic")
	t.Setenv("OLLAMA_SUMMARIZE_MODEL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Summarizer.Model != cfg.LLM.Model {
		t.Fatalf("summarizer model %q should default to completion model %q", cfg.Summarizer.Model, cfg.LLM.Model)
	}
	if cfg.Namespace != "max" {
		t.Fatalf("namespace = %q, want max", cfg.Namespace)
	}
}

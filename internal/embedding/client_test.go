package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanwatts07/drift-agents/internal/config"
)

func TestEmbedSendsPromptAndModel(t *testing.T) {
	var gotReq embedReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(embedResp{Embedding: []float32{0.1, 0.2}})
	}))
	defer srv.Close()

	c := New(config.EmbeddingConfig{Host: srv.URL, Model: "qwen3-embedding:0.6b"})
	vecs, err := c.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 2 {
		t.Fatalf("unexpected vectors: %+v", vecs)
	}
	if gotReq.Prompt != "hello" || gotReq.Model != "qwen3-embedding:0.6b" {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
}

func TestEmbedMultipleInputsSequential(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(embedResp{Embedding: []float32{float32(calls)}})
	}))
	defer srv.Close()

	c := New(config.EmbeddingConfig{Host: srv.URL, Model: "m"})
	vecs, err := c.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Embed error: %v", err)
	}
	if len(vecs) != 3 || calls != 3 {
		t.Fatalf("expected 3 sequential calls, got %d results / %d calls", len(vecs), calls)
	}
}

func TestEmbedRequiresConfig(t *testing.T) {
	c := New(config.EmbeddingConfig{})
	if _, err := c.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected error when embedding endpoint is not configured")
	}
}

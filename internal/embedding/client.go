// Package embedding calls an Ollama-compatible embeddings endpoint, grounded
// on OLLAMA_HOST/OLLAMA_EMBED_MODEL from the original memory_wrapper.py.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanwatts07/drift-agents/internal/config"
)

type embedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResp struct {
	Embedding []float32 `json:"embedding"`
}

// Client implements llm.Embedder against Ollama's /api/embeddings endpoint.
type Client struct {
	host  string
	model string
	http  *http.Client
}

func New(cfg config.EmbeddingConfig) *Client {
	return &Client{host: strings.TrimSuffix(cfg.Host, "/"), model: cfg.Model, http: http.DefaultClient}
}

// Embed returns one embedding per input. Ollama's embeddings API is
// single-prompt, so inputs are embedded sequentially.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if c.host == "" || c.model == "" {
		return nil, fmt.Errorf("embedding endpoint not configured")
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs")
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		vec, err := c.embedOne(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("embed input %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (c *Client) embedOne(ctx context.Context, input string) ([]float32, error) {
	reqBody, _ := json.Marshal(embedReq{Model: c.model, Prompt: input})
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, c.host+"/api/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings error: %s: %s", resp.Status, string(b))
	}
	var er embedResp
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(er.Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return er.Embedding, nil
}

// CheckReachability verifies the embedding endpoint responds to a trivial
// request before a wake/sleep run commits to using it.
func CheckReachability(ctx context.Context, cfg config.EmbeddingConfig) error {
	c := New(cfg)
	_, err := c.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embedding endpoint reachability check failed: %w", err)
	}
	return nil
}

package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/alanwatts07/drift-agents/internal/llm"
)

func minimalUsage() sdk.Usage {
	return sdk.Usage{}
}

func TestCompleteReturnsText(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		defer r.Body.Close()
		w.Header().Set("Content-Type", "application/json")
		resp := sdk.Message{
			ID:         "msg_1",
			Type:       constant.Message("message"),
			Role:       constant.Assistant("assistant"),
			Model:      sdk.ModelClaude3_7SonnetLatest,
			StopReason: sdk.StopReasonEndTurn,
			Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "hello"}},
			Usage:      minimalUsage(),
		}
		b, _ := json.Marshal(resp)
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)

	client := New("k", "m", srv.URL, srv.Client())
	out, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, 256, 0.2)
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if out != "hello" {
		t.Fatalf("unexpected content %q", out)
	}
	if gotPath != "/v1/messages" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestCompleteDefaultsMaxTokens(t *testing.T) {
	var reqBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&reqBody)
		w.Header().Set("Content-Type", "application/json")
		resp := sdk.Message{
			Type:    constant.Message("message"),
			Role:    constant.Assistant("assistant"),
			Model:   sdk.ModelClaude3_7SonnetLatest,
			Content: []sdk.ContentBlockUnion{{Type: "text", Text: "ok"}},
			Usage:   minimalUsage(),
		}
		b, _ := json.Marshal(resp)
		_, _ = w.Write(b)
	}))
	t.Cleanup(srv.Close)

	client := New("k", "", srv.URL, srv.Client())
	if _, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, 0, 0); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if mt, ok := reqBody["max_tokens"].(float64); !ok || int64(mt) != defaultMaxTokens {
		t.Fatalf("expected default max_tokens %d, got %#v", defaultMaxTokens, reqBody["max_tokens"])
	}
}

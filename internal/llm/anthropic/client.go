// Package anthropic adapts the Anthropic Go SDK to the llm.Provider
// interface used for summarisation and self-narrative completions.
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/alanwatts07/drift-agents/internal/llm"
	"github.com/alanwatts07/drift-agents/internal/observability"
)

const defaultMaxTokens int64 = 1024

type Client struct {
	sdk   sdk.Client
	model string
}

// New builds an Anthropic-backed llm.Provider. apiKey/model/baseURL come
// from config.LLMConfig; a nil httpClient falls back to http.DefaultClient.
func New(apiKey, model, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(baseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = "claude-3-7-sonnet-latest"
	}
	return &Client{sdk: sdk.NewClient(opts...), model: model}
}

// Complete sends msgs as a single non-streaming Messages.New call and
// returns the concatenated text content of the reply.
func (c *Client) Complete(ctx context.Context, msgs []llm.Message, maxTokens int, temperature float64) (string, error) {
	sys, converted, err := adaptMessages(msgs)
	if err != nil {
		return "", err
	}

	mt := int64(maxTokens)
	if mt <= 0 {
		mt = defaultMaxTokens
	}
	params := sdk.MessageNewParams{
		Model:     sdk.F(c.model),
		Messages:  sdk.F(converted),
		MaxTokens: sdk.F(mt),
	}
	if len(sys) > 0 {
		params.System = sdk.F(sys)
	}

	log := observability.LoggerWithTrace(ctx)
	start := time.Now()
	resp, err := c.sdk.Messages.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		evt := log.Error().Err(err).Str("model", c.model).Dur("duration", dur)
		if b, merr := json.Marshal(msgs); merr == nil {
			evt = evt.RawJSON("request", observability.RedactJSON(b))
		}
		evt.Msg("anthropic_complete_error")
		return "", err
	}
	evt := log.Debug().Str("model", c.model).Dur("duration", dur)
	if b, merr := json.Marshal(resp); merr == nil {
		evt = evt.RawJSON("response", observability.RedactJSON(b))
	}
	evt.Msg("anthropic_complete_ok")
	return textContent(resp), nil
}

func adaptMessages(msgs []llm.Message) ([]sdk.TextBlockParam, []sdk.MessageParam, error) {
	var system []sdk.TextBlockParam
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		content := strings.TrimSpace(m.Content)
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "system":
			if content != "" {
				system = append(system, sdk.NewTextBlock(m.Content))
			}
		case "user":
			if content != "" {
				out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
			}
		case "assistant":
			if content != "" {
				out = append(out, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
			}
		default:
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}
	return system, out, nil
}

func textContent(resp *sdk.Message) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(sdk.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return sb.String()
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"

	"github.com/alanwatts07/drift-agents/internal/observability"
)

// OpenAIProvider adapts the OpenAI Go SDK to llm.Provider. Ollama's
// OpenAI-compatible /v1/chat/completions endpoint is reachable through the
// same client by pointing BaseURL at the Ollama host.
type OpenAIProvider struct {
	client openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{client: openai.NewClient(opts...), model: model}
}

func (p *OpenAIProvider) Complete(ctx context.Context, msgs []Message, maxTokens int, temperature float64) (string, error) {
	var newMsgs []openai.ChatCompletionMessageParamUnion
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			newMsgs = append(newMsgs, openai.SystemMessage(m.Content))
		case "assistant":
			newMsgs = append(newMsgs, openai.AssistantMessage(m.Content))
		default:
			newMsgs = append(newMsgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		Messages:    newMsgs,
		Temperature: param.NewOpt(temperature),
		MaxTokens:   param.NewOpt(int64(maxTokens)),
	}

	log := observability.LoggerWithTrace(ctx)
	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		evt := log.Error().Err(err).Str("model", p.model).Dur("duration", dur)
		if b, merr := json.Marshal(newMsgs); merr == nil {
			evt = evt.RawJSON("request", observability.RedactJSON(b))
		}
		evt.Msg("openai_complete_error")
		return "", err
	}
	if len(resp.Choices) == 0 {
		log.Error().Str("model", p.model).Dur("duration", dur).Msg("openai_complete_no_choices")
		return "", fmt.Errorf("no choices returned")
	}
	evt := log.Debug().Str("model", p.model).Dur("duration", dur)
	if b, merr := json.Marshal(resp); merr == nil {
		evt = evt.RawJSON("response", observability.RedactJSON(b))
	}
	evt.Msg("openai_complete_ok")
	return resp.Choices[0].Message.Content, nil
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend speaks the Chat Completions API. It serves OpenAI and every
// OpenAI-compatible endpoint (xAI, DeepSeek, OpenRouter, Perplexity).
type OpenAIBackend struct {
	client    *openai.Client
	id        string
	model     string
	maxTokens int
}

func newOpenAIBackend(cfg BackendConfig, secret string, opts FactoryOptions) (Backend, error) {
	return NewOpenAIBackend(cfg, secret, opts.HTTPClient), nil
}

func NewOpenAIBackend(cfg BackendConfig, apiKey string, httpClient *http.Client) *OpenAIBackend {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(RequestTimeout),
	}
	if base := openAIBaseURL(cfg.URL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(httpClient))
	}
	client := openai.NewClient(reqOpts...)
	return &OpenAIBackend{
		client:    &client,
		id:        cfg.ID,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// openAIBaseURL turns a configured endpoint into the SDK base URL. Configs
// often carry the full completions path.
func openAIBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = strings.TrimRight(raw, "/")
	raw = strings.TrimSuffix(raw, "/chat/completions")
	return raw + "/"
}

func (b *OpenAIBackend) Name() string {
	return fmt.Sprintf("%s (%s)", b.id, b.model)
}

func (b *OpenAIBackend) params(messages []ChatMessage, temperature float64) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(b.model),
		Messages:    buildOpenAIMessages(messages),
		Temperature: openai.Float(temperature),
	}
	if b.maxTokens > 0 {
		if FixedTemperature(b.model) {
			params.MaxCompletionTokens = openai.Int(int64(b.maxTokens))
		} else {
			params.MaxTokens = openai.Int(int64(b.maxTokens))
		}
	}
	return params
}

func buildOpenAIMessages(messages []ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func (b *OpenAIBackend) Send(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, b.params(messages, temperature))
	if err != nil {
		return "", classify(err, openAIStatus)
	}
	if len(resp.Choices) == 0 {
		return "", NewError(KindInvalidResponse, "no choices in response", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *OpenAIBackend) SendStreaming(ctx context.Context, messages []ChatMessage, temperature float64) (Stream, error) {
	params := b.params(messages, temperature)
	return newChunkStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		stream := b.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()
		for stream.Next() {
			c := stream.Current()
			if len(c.Choices) == 0 {
				continue
			}
			if !emit(c.Choices[0].Delta.Content) {
				return nil
			}
		}
		if err := stream.Err(); err != nil {
			return classify(err, openAIStatus)
		}
		return nil
	}), nil
}

func (b *OpenAIBackend) ListModels(ctx context.Context) ([]string, error) {
	iter := b.client.Models.ListAutoPaging(ctx)
	var models []string
	for iter.Next() {
		models = append(models, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err, openAIStatus)
	}
	return models, nil
}

func openAIStatus(err error) (int, bool) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicBackend implements Backend using the Anthropic Messages API.
type AnthropicBackend struct {
	client    *anthropic.Client
	id        string
	model     string
	maxTokens int64
}

func newAnthropicBackend(cfg BackendConfig, secret string, opts FactoryOptions) (Backend, error) {
	return NewAnthropicBackend(cfg, secret, opts.HTTPClient), nil
}

func NewAnthropicBackend(cfg BackendConfig, apiKey string, httpClient *http.Client) *AnthropicBackend {
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(RequestTimeout),
	}
	if base := anthropicBaseURL(cfg.URL); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	if httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(httpClient))
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	client := anthropic.NewClient(reqOpts...)
	return &AnthropicBackend{
		client:    &client,
		id:        cfg.ID,
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

func anthropicBaseURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return ""
	}
	raw = strings.TrimSuffix(raw, "/v1/messages")
	return raw + "/"
}

func (b *AnthropicBackend) Name() string {
	return fmt.Sprintf("%s (%s)", b.id, b.model)
}

// params lifts system entries into the system prompt and merges
// consecutive turns of the same role, which the API rejects.
func (b *AnthropicBackend) params(messages []ChatMessage, temperature float64) anthropic.MessageNewParams {
	var system []string
	var turns []anthropic.MessageParam
	var lastRole Role
	var pending []string

	flush := func() {
		if len(pending) == 0 {
			return
		}
		block := anthropic.NewTextBlock(strings.Join(pending, "\n\n"))
		if lastRole == RoleAssistant {
			turns = append(turns, anthropic.NewAssistantMessage(block))
		} else {
			turns = append(turns, anthropic.NewUserMessage(block))
		}
		pending = nil
	}

	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		role := m.Role
		if role != RoleAssistant {
			role = RoleUser
		}
		if role != lastRole {
			flush()
			lastRole = role
		}
		pending = append(pending, m.Content)
	}
	flush()

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   b.maxTokens,
		Messages:    turns,
		Temperature: anthropic.Float(temperature),
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	return params
}

func (b *AnthropicBackend) Send(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	msg, err := b.client.Messages.New(ctx, b.params(messages, temperature))
	if err != nil {
		return "", classify(err, anthropicStatus)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", NewError(KindInvalidResponse, "no text content in response", nil)
	}
	return sb.String(), nil
}

func (b *AnthropicBackend) SendStreaming(ctx context.Context, messages []ChatMessage, temperature float64) (Stream, error) {
	params := b.params(messages, temperature)
	return newChunkStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		stream := b.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()
		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok {
				if !emit(text.Text) {
					return nil
				}
			}
		}
		if err := stream.Err(); err != nil {
			return classify(err, anthropicStatus)
		}
		return nil
	}), nil
}

func (b *AnthropicBackend) ListModels(ctx context.Context) ([]string, error) {
	iter := b.client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})
	var models []string
	for iter.Next() {
		models = append(models, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err, anthropicStatus)
	}
	return models, nil
}

func anthropicStatus(err error) (int, bool) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// GeminiBackend implements Backend using the Gemini API through genai.
type GeminiBackend struct {
	cfg        BackendConfig
	apiKey     string
	httpClient *http.Client

	once      sync.Once
	client    *genai.Client
	clientErr error
}

func newGeminiBackend(cfg BackendConfig, secret string, opts FactoryOptions) (Backend, error) {
	return NewGeminiBackend(cfg, secret, opts.HTTPClient), nil
}

func NewGeminiBackend(cfg BackendConfig, apiKey string, httpClient *http.Client) *GeminiBackend {
	return &GeminiBackend{cfg: cfg, apiKey: apiKey, httpClient: httpClient}
}

func (b *GeminiBackend) Name() string {
	return fmt.Sprintf("%s (%s)", b.cfg.ID, b.cfg.Model)
}

// genaiClient builds the SDK client on first use; genai.NewClient takes a
// context and validates credentials eagerly.
func (b *GeminiBackend) genaiClient(ctx context.Context) (*genai.Client, error) {
	b.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:     b.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: b.httpClient,
		}
		if base := geminiBaseURL(b.cfg.URL); base != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: base}
		}
		b.client, b.clientErr = genai.NewClient(ctx, cc)
	})
	if b.clientErr != nil {
		return nil, NewError(KindUnauthorized, "gemini client", b.clientErr)
	}
	return b.client, nil
}

func geminiBaseURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return ""
	}
	if i := strings.Index(raw, "/v1beta"); i >= 0 {
		raw = raw[:i]
	}
	return raw + "/"
}

func (b *GeminiBackend) request(messages []ChatMessage, temperature float64) ([]*genai.Content, *genai.GenerateContentConfig) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if b.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = int32(b.cfg.MaxTokens)
	}
	if len(system) > 0 {
		config.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return contents, config
}

func (b *GeminiBackend) Send(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	client, err := b.genaiClient(ctx)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	contents, config := b.request(messages, temperature)
	resp, err := client.Models.GenerateContent(ctx, b.cfg.Model, contents, config)
	if err != nil {
		return "", classify(err, geminiStatus)
	}
	text := resp.Text()
	if text == "" {
		return "", NewError(KindInvalidResponse, "no text in response", nil)
	}
	return text, nil
}

func (b *GeminiBackend) SendStreaming(ctx context.Context, messages []ChatMessage, temperature float64) (Stream, error) {
	client, err := b.genaiClient(ctx)
	if err != nil {
		return nil, err
	}
	contents, config := b.request(messages, temperature)
	return newChunkStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		for resp, err := range client.Models.GenerateContentStream(ctx, b.cfg.Model, contents, config) {
			if err != nil {
				return classify(err, geminiStatus)
			}
			if !emit(resp.Text()) {
				return nil
			}
		}
		return nil
	}), nil
}

func (b *GeminiBackend) ListModels(ctx context.Context) ([]string, error) {
	client, err := b.genaiClient(ctx)
	if err != nil {
		return nil, err
	}
	var models []string
	for m, err := range client.Models.All(ctx) {
		if err != nil {
			return nil, classify(err, geminiStatus)
		}
		models = append(models, strings.TrimPrefix(m.Name, "models/"))
	}
	return models, nil
}

func geminiStatus(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code, true
	}
	return 0, false
}

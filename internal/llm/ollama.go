package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaBackend calls the native Ollama REST API.
//   - POST /api/chat  chat completion, NDJSON when streaming
//   - GET  /api/tags  installed models
type OllamaBackend struct {
	id         string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func newOllamaBackend(cfg BackendConfig, _ string, opts FactoryOptions) (Backend, error) {
	return NewOllamaBackend(cfg, opts.HTTPClient), nil
}

func NewOllamaBackend(cfg BackendConfig, httpClient *http.Client) *OllamaBackend {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: RequestTimeout}
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	base = strings.TrimSuffix(base, "/api/chat")
	if base == "" {
		base = defaultOllamaURL
	}
	return &OllamaBackend{
		id:         cfg.ID,
		baseURL:    base,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		httpClient: httpClient,
	}
}

func (b *OllamaBackend) Name() string {
	return fmt.Sprintf("%s (%s)", b.id, b.model)
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []ChatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ChatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (b *OllamaBackend) chatBody(messages []ChatMessage, temperature float64, stream bool) ([]byte, error) {
	opts := map[string]any{"temperature": temperature}
	if b.maxTokens > 0 {
		opts["num_predict"] = b.maxTokens
	}
	return json.Marshal(ollamaChatRequest{
		Model:    b.model,
		Messages: messages,
		Stream:   stream,
		Options:  opts,
	})
}

func (b *OllamaBackend) Send(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	body, err := b.chatBody(messages, temperature, false)
	if err != nil {
		return "", err
	}
	respBody, err := b.do(ctx, http.MethodPost, "/api/chat", body)
	if err != nil {
		return "", err
	}
	defer respBody.Close()

	var out ollamaChatResponse
	if err := json.NewDecoder(respBody).Decode(&out); err != nil {
		return "", NewError(KindDecodeFailure, "chat response", err)
	}
	if out.Error != "" {
		return "", NewError(KindInvalidResponse, out.Error, nil)
	}
	return out.Message.Content, nil
}

func (b *OllamaBackend) SendStreaming(ctx context.Context, messages []ChatMessage, temperature float64) (Stream, error) {
	body, err := b.chatBody(messages, temperature, true)
	if err != nil {
		return nil, err
	}
	return newChunkStream(ctx, func(ctx context.Context, emit func(string) bool) error {
		respBody, err := b.do(ctx, http.MethodPost, "/api/chat", body)
		if err != nil {
			return err
		}
		defer respBody.Close()

		dec := json.NewDecoder(respBody)
		for {
			var line ollamaChatResponse
			if err := dec.Decode(&line); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				if ctx.Err() != nil {
					return nil
				}
				return NewError(KindDecodeFailure, "stream chunk", err)
			}
			if line.Error != "" {
				return NewError(KindInvalidResponse, line.Error, nil)
			}
			if !emit(line.Message.Content) {
				return nil
			}
			if line.Done {
				return nil
			}
		}
	}), nil
}

func (b *OllamaBackend) ListModels(ctx context.Context) ([]string, error) {
	respBody, err := b.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}
	defer respBody.Close()

	var tags ollamaTagsResponse
	if err := json.NewDecoder(respBody).Decode(&tags); err != nil {
		return nil, NewError(KindDecodeFailure, "tags response", err)
	}
	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// do sends a request to baseURL+path and returns the body of a 200 response.
func (b *OllamaBackend) do(ctx context.Context, method, path string, body []byte) (io.ReadCloser, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, classify(err, nil)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, ErrorFromStatus(resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return resp.Body, nil
}

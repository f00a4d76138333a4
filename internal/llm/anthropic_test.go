package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                                      "",
		"https://api.anthropic.com":             "https://api.anthropic.com/",
		"https://api.anthropic.com/v1/messages": "https://api.anthropic.com/",
		"https://proxy.example.com/anthropic/":  "https://proxy.example.com/anthropic/",
	}
	for in, want := range cases {
		if got := anthropicBaseURL(in); got != want {
			t.Errorf("anthropicBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAnthropicSend(t *testing.T) {
	var body struct {
		System    []struct{ Text string } `json:"system"`
		MaxTokens int                     `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "sk-ant" {
			t.Errorf("x-api-key = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-latest","content":[{"type":"text","text":"Hi!"}],"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer srv.Close()

	b := NewAnthropicBackend(BackendConfig{ID: "claude", URL: srv.URL, Model: "claude-3-5-sonnet-latest"}, "sk-ant", srv.Client())
	got, err := b.Send(context.Background(), []ChatMessage{
		{Role: RoleSystem, Content: "Be brief."},
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleUser, Content: "Are you there?"},
	}, 0.7)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != "Hi!" {
		t.Fatalf("Send = %q, want Hi!", got)
	}
	if len(body.System) != 1 || body.System[0].Text != "Be brief." {
		t.Errorf("system = %+v", body.System)
	}
	if body.MaxTokens != defaultAnthropicMaxTokens {
		t.Errorf("max_tokens = %d", body.MaxTokens)
	}
	if len(body.Messages) != 1 || body.Messages[0].Role != "user" {
		t.Fatalf("consecutive user turns should merge: %+v", body.Messages)
	}
	if text := body.Messages[0].Content[0].Text; text != "Hello\n\nAre you there?" {
		t.Errorf("merged text = %q", text)
	}
}

func TestAnthropicStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		event := func(name, data string) {
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
		}
		event("message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-latest","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":1,"output_tokens":1}}}`)
		event("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
		for _, piece := range []string{"Hel", "lo", " world"} {
			event("content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, piece))
		}
		event("content_block_stop", `{"type":"content_block_stop","index":0}`)
		event("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":3}}`)
		event("message_stop", `{"type":"message_stop"}`)
	}))
	defer srv.Close()

	b := NewAnthropicBackend(BackendConfig{ID: "claude", URL: srv.URL, Model: "claude-3-5-sonnet-latest"}, "sk-ant", srv.Client())
	s, err := b.SendStreaming(context.Background(), []ChatMessage{{Role: RoleUser, Content: "Hello"}}, 0.7)
	if err != nil {
		t.Fatalf("SendStreaming: %v", err)
	}
	defer s.Close()
	got, err := collect(t, s)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if got != "Hello world" {
		t.Fatalf("stream = %q", got)
	}
}

func TestAnthropicRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	b := NewAnthropicBackend(BackendConfig{ID: "claude", URL: srv.URL, Model: "claude-3-5-sonnet-latest"}, "sk-ant", srv.Client())
	_, err := b.Send(context.Background(), []ChatMessage{{Role: RoleUser, Content: "Hello"}}, 0.7)
	if !IsKind(err, KindRateLimited) {
		t.Fatalf("err = %v, want rate limited", err)
	}
}

func TestAnthropicListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"claude-3-5-haiku-latest","type":"model","display_name":"Haiku","created_at":"2024-10-22T00:00:00Z"}],"has_more":false,"first_id":"claude-3-5-haiku-latest","last_id":"claude-3-5-haiku-latest"}`))
	}))
	defer srv.Close()

	b := NewAnthropicBackend(BackendConfig{ID: "claude", URL: srv.URL, Model: "x"}, "sk-ant", srv.Client())
	models, err := b.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 1 || models[0] != "claude-3-5-haiku-latest" {
		t.Fatalf("models = %v", models)
	}
}

package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIBaseURL(t *testing.T) {
	cases := map[string]string{
		"":                                           "",
		"https://api.openai.com/v1/chat/completions": "https://api.openai.com/v1/",
		"https://api.x.ai/v1/":                       "https://api.x.ai/v1/",
		"https://openrouter.ai/api/v1":               "https://openrouter.ai/api/v1/",
	}
	for in, want := range cases {
		if got := openAIBaseURL(in); got != want {
			t.Errorf("openAIBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenAISend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"Hi!"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(BackendConfig{ID: "openai", URL: srv.URL + "/v1/chat/completions", Model: "gpt-4o"}, "sk-test", srv.Client())
	got, err := b.Send(context.Background(), []ChatMessage{{Role: RoleUser, Content: "Hello"}}, 0.7)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != "Hi!" {
		t.Fatalf("Send = %q, want Hi!", got)
	}
}

func TestOpenAIStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, piece := range []string{"Hel", "lo", " world"} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"gpt-4o\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", piece)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	b := NewOpenAIBackend(BackendConfig{ID: "openai", URL: srv.URL + "/v1", Model: "gpt-4o"}, "sk-test", srv.Client())
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

func TestOpenAIUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(BackendConfig{ID: "openai", URL: srv.URL + "/v1", Model: "gpt-4o"}, "bad", srv.Client())
	_, err := b.Send(context.Background(), []ChatMessage{{Role: RoleUser, Content: "Hello"}}, 0.7)
	if !IsKind(err, KindUnauthorized) {
		t.Fatalf("err = %v, want unauthorized", err)
	}
}

package llm

import (
	"context"
	"time"
)

// Role identifies the author of a chat turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one role/content pair sent to a backend.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Backend type tags. The tag selects the adapter in a Registry.
const (
	TypeChatGPT      = "chatgpt"
	TypeOllama       = "ollama"
	TypeClaude       = "claude"
	TypeXAI          = "xai"
	TypeGemini       = "gemini"
	TypePerplexity   = "perplexity"
	TypeDeepSeek     = "deepseek"
	TypeOpenRouter   = "openrouter"
	TypeGoogleSearch = "googlesearch"
	TypeBrave        = "brave"
	TypeExa          = "exa"
	TypeDuckDuckGo   = "duckduckgo"
)

// RequestTimeout bounds every backend call.
const RequestTimeout = 180 * time.Second

// BackendConfig describes one configured backend. Read-only once built.
type BackendConfig struct {
	ID        string
	Type      string
	URL       string
	SecretRef string // key into the secret store, defaults to ID
	Model     string
	MaxTokens int
}

// SecretKey returns the key used to look up this backend's credential.
func (c BackendConfig) SecretKey() string {
	if c.SecretRef != "" {
		return c.SecretRef
	}
	return c.ID
}

// IsSearch reports whether the backend type is a web search engine rather
// than a language model.
func IsSearch(backendType string) bool {
	switch backendType {
	case TypeGoogleSearch, TypeBrave, TypeExa, TypeDuckDuckGo:
		return true
	}
	return false
}

// Backend is the capability every provider adapter implements.
type Backend interface {
	Name() string
	ListModels(ctx context.Context) ([]string, error)
	Send(ctx context.Context, messages []ChatMessage, temperature float64) (string, error)
	SendStreaming(ctx context.Context, messages []ChatMessage, temperature float64) (Stream, error)
}

// Stream yields text chunks in order. Recv returns io.EOF after the last
// chunk. Close releases the underlying connection and may be called at any
// time.
type Stream interface {
	Recv() (string, error)
	Close() error
}

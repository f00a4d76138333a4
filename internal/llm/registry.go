package llm

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// SecretStore resolves the credential for a backend. A missing secret is not
// an error; the backend is built with an empty credential.
type SecretStore interface {
	Get(key string) (string, bool)
}

// FactoryOptions are shared by every adapter constructor.
type FactoryOptions struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Factory builds a Backend from its configuration and resolved secret.
type Factory func(cfg BackendConfig, secret string, opts FactoryOptions) (Backend, error)

// Registry maps backend type tags to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry with every built-in adapter.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range []string{TypeChatGPT, TypeXAI, TypePerplexity, TypeDeepSeek, TypeOpenRouter} {
		r.Register(t, newOpenAIBackend)
	}
	r.Register(TypeClaude, newAnthropicBackend)
	r.Register(TypeGemini, newGeminiBackend)
	r.Register(TypeOllama, newOllamaBackend)
	for _, t := range []string{TypeGoogleSearch, TypeBrave, TypeExa, TypeDuckDuckGo} {
		r.Register(t, newSearchBackend)
	}
	return r
}

func (r *Registry) Register(backendType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backendType] = f
}

// Types returns the registered type tags, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) New(cfg BackendConfig, secret string, opts FactoryOptions) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, NewError(KindUnsupported, fmt.Sprintf("backend type %q", cfg.Type), nil)
	}
	return f(cfg, secret, opts)
}

// llmPreference orders LLM-capable types when no explicit backend is chosen.
var llmPreference = map[string]int{
	TypeChatGPT:    0,
	TypeClaude:     1,
	TypeGemini:     2,
	TypePerplexity: 3,
}

// Directory is the set of configured backends. Backends are built lazily and
// cached by id.
type Directory struct {
	registry *Registry
	secrets  SecretStore
	opts     FactoryOptions

	mu       sync.Mutex
	configs  map[string]BackendConfig
	backends map[string]Backend
}

func NewDirectory(registry *Registry, secrets SecretStore, opts FactoryOptions, configs ...BackendConfig) *Directory {
	if registry == nil {
		registry = DefaultRegistry()
	}
	d := &Directory{
		registry: registry,
		secrets:  secrets,
		opts:     opts,
		configs:  make(map[string]BackendConfig),
		backends: make(map[string]Backend),
	}
	for _, cfg := range configs {
		d.configs[cfg.ID] = cfg
	}
	return d
}

// Add registers (or replaces) a backend config and, optionally, a prebuilt
// backend for its configured model. A nil backend defers construction to the
// registry.
func (d *Directory) Add(cfg BackendConfig, b Backend) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.configs[cfg.ID] = cfg
	for key := range d.backends {
		if strings.HasPrefix(key, cfg.ID+"\x00") {
			delete(d.backends, key)
		}
	}
	if b != nil {
		d.backends[cfg.ID+"\x00"+cfg.Model] = b
	}
}

func (d *Directory) Config(id string) (BackendConfig, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg, ok := d.configs[id]
	return cfg, ok
}

// Configs returns every config sorted by id.
func (d *Directory) Configs() []BackendConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]BackendConfig, 0, len(d.configs))
	for _, cfg := range d.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Backend returns the backend for id, building it on first use. A non-empty
// model overrides the configured one.
func (d *Directory) Backend(id, model string) (Backend, BackendConfig, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg, ok := d.configs[id]
	if !ok {
		return nil, BackendConfig{}, NewError(KindNoBackendConfigured, fmt.Sprintf("backend %q", id), nil)
	}
	if model != "" {
		cfg.Model = model
	}
	key := cfg.ID + "\x00" + cfg.Model
	if b, ok := d.backends[key]; ok {
		return b, cfg, nil
	}
	secret := ""
	if d.secrets != nil {
		secret, _ = d.secrets.Get(cfg.SecretKey())
	}
	b, err := d.registry.New(cfg, secret, d.opts)
	if err != nil {
		return nil, cfg, err
	}
	d.backends[key] = b
	return b, cfg, nil
}

// IsLLM reports whether id names a configured language-model backend.
func (d *Directory) IsLLM(id string) bool {
	cfg, ok := d.Config(id)
	return ok && !IsSearch(cfg.Type)
}

// PreferredLLM returns the first LLM-capable config by type preference,
// then by id.
func (d *Directory) PreferredLLM() (BackendConfig, bool) {
	var candidates []BackendConfig
	for _, cfg := range d.Configs() {
		if !IsSearch(cfg.Type) {
			candidates = append(candidates, cfg)
		}
	}
	if len(candidates) == 0 {
		return BackendConfig{}, false
	}
	rank := func(t string) int {
		if r, ok := llmPreference[t]; ok {
			return r
		}
		return len(llmPreference)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return rank(candidates[i].Type) < rank(candidates[j].Type)
	})
	return candidates[0], true
}

// SearchConfig returns the configured search backend. When several exist the
// lowest id wins.
func (d *Directory) SearchConfig() (BackendConfig, bool) {
	for _, cfg := range d.Configs() {
		if IsSearch(cfg.Type) {
			return cfg, true
		}
	}
	return BackendConfig{}, false
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/samsaffron/term-chat/internal/llm"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultSystemMessage is used when neither the config nor a conversation
// provides one.
const DefaultSystemMessage = "You are Large Language Model. Answer as concisely as possible. Your answers should be informative, helpful and engaging."

type Config struct {
	DefaultBackend string                   `mapstructure:"default_backend" yaml:"default_backend"`
	SystemMessage  string                   `mapstructure:"system_message" yaml:"system_message"`
	Temperature    float64                  `mapstructure:"temperature" yaml:"temperature"`
	ContextSize    int                      `mapstructure:"context_size" yaml:"context_size"`
	Stream         bool                     `mapstructure:"stream" yaml:"stream"`
	UpdateInterval time.Duration            `mapstructure:"update_interval" yaml:"update_interval"`
	SaveAttempts   int                      `mapstructure:"save_attempts" yaml:"save_attempts"`
	Search         SearchConfig             `mapstructure:"search" yaml:"search"`
	Backends       map[string]BackendConfig `mapstructure:"backends" yaml:"backends"`
	Persistence    PersistenceConfig        `mapstructure:"persistence" yaml:"persistence"`
	Pricing        PricingConfig            `mapstructure:"pricing" yaml:"pricing,omitempty"`
	Log            LogConfig                `mapstructure:"log" yaml:"log"`
}

type SearchConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// BackendConfig is one entry under backends. The map key is the backend id.
type BackendConfig struct {
	Type      string `mapstructure:"type" yaml:"type"`
	URL       string `mapstructure:"url" yaml:"url,omitempty"`
	Model     string `mapstructure:"model" yaml:"model,omitempty"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens,omitempty"`
}

type PersistenceConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path,omitempty"`
}

// PricingConfig overrides the built-in per-model prices, in dollars per
// million tokens.
type PricingConfig struct {
	Input  map[string]float64 `mapstructure:"input" yaml:"input,omitempty"`
	Output map[string]float64 `mapstructure:"output" yaml:"output,omitempty"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// TypeDefaults holds the values a backend entry inherits from its type.
type TypeDefaults struct {
	URL       string
	Model     string
	MaxTokens int
}

var typeDefaults = map[string]TypeDefaults{
	llm.TypeChatGPT:      {URL: "https://api.openai.com/v1/chat/completions", Model: "gpt-4o"},
	llm.TypeOllama:       {URL: "http://localhost:11434", Model: "llama3"},
	llm.TypeClaude:       {URL: "https://api.anthropic.com", Model: "claude-3-5-sonnet-latest", MaxTokens: 4096},
	llm.TypeXAI:          {URL: "https://api.x.ai/v1/chat/completions", Model: "grok-2-latest"},
	llm.TypeGemini:       {URL: "https://generativelanguage.googleapis.com", Model: "gemini-1.5-flash"},
	llm.TypePerplexity:   {URL: "https://api.perplexity.ai/chat/completions", Model: "sonar"},
	llm.TypeDeepSeek:     {URL: "https://api.deepseek.com/chat/completions", Model: "deepseek-chat"},
	llm.TypeOpenRouter:   {URL: "https://openrouter.ai/api/v1/chat/completions", Model: "openai/gpt-4o"},
	llm.TypeGoogleSearch: {URL: "https://www.googleapis.com/customsearch/v1"},
	llm.TypeBrave:        {URL: "https://api.search.brave.com/res/v1/web/search", Model: "brave"},
	llm.TypeExa:          {URL: "https://api.exa.ai/search", Model: "exa"},
	llm.TypeDuckDuckGo:   {URL: "https://lite.duckduckgo.com/lite/", Model: "duckduckgo"},
}

// DefaultsFor returns the built-in defaults for a backend type.
func DefaultsFor(backendType string) (TypeDefaults, bool) {
	d, ok := typeDefaults[backendType]
	return d, ok
}

// KnownTypes returns every backend type with built-in defaults, sorted.
func KnownTypes() []string {
	types := make([]string, 0, len(typeDefaults))
	for t := range typeDefaults {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("system_message", DefaultSystemMessage)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("context_size", 10)
	v.SetDefault("stream", true)
	v.SetDefault("update_interval", 200*time.Millisecond)
	v.SetDefault("save_attempts", 3)
	v.SetDefault("search.enabled", true)
	v.SetDefault("persistence.enabled", true)
	v.SetDefault("log.level", "info")
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TERM_CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		dir, err := GetConfigDir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.SystemMessage == "" {
		c.SystemMessage = DefaultSystemMessage
	}
	if c.ContextSize < 1 {
		c.ContextSize = 1
	}
	if c.SaveAttempts < 1 {
		c.SaveAttempts = 1
	}
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = 200 * time.Millisecond
	}
	if c.Backends == nil {
		c.Backends = map[string]BackendConfig{}
	}
	for id, b := range c.Backends {
		b.Type = strings.ToLower(strings.TrimSpace(b.Type))
		if b.Type == "" {
			b.Type = inferType(id)
		}
		c.Backends[id] = b
	}
}

// inferType maps a backend id that names a known type onto that type.
func inferType(id string) string {
	id = strings.ToLower(id)
	if _, ok := typeDefaults[id]; ok {
		return id
	}
	switch id {
	case "openai":
		return llm.TypeChatGPT
	case "anthropic":
		return llm.TypeClaude
	case "google":
		return llm.TypeGoogleSearch
	}
	return ""
}

// ApplyOverrides applies CLI overrides. An empty value leaves the field alone.
func (c *Config) ApplyOverrides(backend, model string) {
	if backend != "" {
		c.DefaultBackend = backend
	}
	if model == "" {
		return
	}
	id := c.DefaultBackend
	b, ok := c.Backends[id]
	if !ok {
		return
	}
	b.Model = model
	c.Backends[id] = b
}

// BackendConfigs resolves every backend entry into the form the llm package
// consumes. URL and model fall back to the per-type defaults and values run
// through ResolveValue. The resolved API key is returned keyed by backend id.
func (c *Config) BackendConfigs() ([]llm.BackendConfig, map[string]string, error) {
	ids := make([]string, 0, len(c.Backends))
	for id := range c.Backends {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	configs := make([]llm.BackendConfig, 0, len(ids))
	secrets := make(map[string]string)
	for _, id := range ids {
		b := c.Backends[id]
		if b.Type == "" {
			return nil, nil, fmt.Errorf("backend %q: missing type", id)
		}
		def := typeDefaults[b.Type]

		url, err := ResolveValue(b.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("backend %q url: %w", id, err)
		}
		if url == "" {
			url = def.URL
		}
		model, err := ResolveValue(b.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("backend %q model: %w", id, err)
		}
		if model == "" {
			model = def.Model
		}
		key, err := ResolveValue(b.APIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("backend %q api_key: %w", id, err)
		}
		if key != "" {
			secrets[id] = key
		}
		maxTokens := b.MaxTokens
		if maxTokens == 0 {
			maxTokens = def.MaxTokens
		}

		configs = append(configs, llm.BackendConfig{
			ID:        id,
			Type:      b.Type,
			URL:       url,
			Model:     model,
			MaxTokens: maxTokens,
		})
	}
	return configs, secrets, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/term-chat, falling back to
// ~/.config/term-chat.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "term-chat"), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes the config to path as YAML, or to the default location when
// path is empty.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/samsaffron/term-chat/internal/llm"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, DefaultSystemMessage, cfg.SystemMessage)
	require.Equal(t, 0.7, cfg.Temperature)
	require.Equal(t, 10, cfg.ContextSize)
	require.True(t, cfg.Stream)
	require.Equal(t, 200*time.Millisecond, cfg.UpdateInterval)
	require.Equal(t, 3, cfg.SaveAttempts)
	require.True(t, cfg.Search.Enabled)
	require.True(t, cfg.Persistence.Enabled)
	require.Equal(t, "info", cfg.Log.Level)
	require.Empty(t, cfg.Backends)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
default_backend: openai
temperature: 0.3
context_size: 4
update_interval: 50ms
backends:
  openai:
    model: gpt-4o-mini
    api_key: sk-test
  search:
    type: googlesearch
    model: my-cx
pricing:
  input:
    gpt-4o-mini: 0.15
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "openai", cfg.DefaultBackend)
	require.Equal(t, 0.3, cfg.Temperature)
	require.Equal(t, 4, cfg.ContextSize)
	require.Equal(t, 50*time.Millisecond, cfg.UpdateInterval)
	require.Equal(t, llm.TypeChatGPT, cfg.Backends["openai"].Type)
	require.Equal(t, llm.TypeGoogleSearch, cfg.Backends["search"].Type)
	require.Equal(t, 0.15, cfg.Pricing.Input["gpt-4o-mini"])
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "backends: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TERM_CHAT_CONTEXT_SIZE", "7")
	cfg, err := Load(writeConfig(t, "context_size: 3\n"))
	require.NoError(t, err)
	require.Equal(t, 7, cfg.ContextSize)
}

func TestNormalizeClamps(t *testing.T) {
	cfg := &Config{ContextSize: 0, SaveAttempts: -2}
	cfg.normalize()
	require.Equal(t, 1, cfg.ContextSize)
	require.Equal(t, 1, cfg.SaveAttempts)
	require.Equal(t, 200*time.Millisecond, cfg.UpdateInterval)
	require.Equal(t, DefaultSystemMessage, cfg.SystemMessage)
}

func TestApplyOverrides(t *testing.T) {
	cfg := &Config{
		DefaultBackend: "claude",
		Backends: map[string]BackendConfig{
			"claude": {Type: llm.TypeClaude, Model: "claude-3-5-sonnet-latest"},
			"openai": {Type: llm.TypeChatGPT, Model: "gpt-4o"},
		},
	}

	cfg.ApplyOverrides("openai", "gpt-4o-mini")
	require.Equal(t, "openai", cfg.DefaultBackend)
	require.Equal(t, "gpt-4o-mini", cfg.Backends["openai"].Model)
	require.Equal(t, "claude-3-5-sonnet-latest", cfg.Backends["claude"].Model)

	cfg.ApplyOverrides("", "gpt-4.1")
	require.Equal(t, "openai", cfg.DefaultBackend)
	require.Equal(t, "gpt-4.1", cfg.Backends["openai"].Model)

	cfg.ApplyOverrides("unknown", "x")
	require.Equal(t, "unknown", cfg.DefaultBackend)
	require.Len(t, cfg.Backends, 2)
}

func TestInferType(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"openai", llm.TypeChatGPT},
		{"anthropic", llm.TypeClaude},
		{"claude", llm.TypeClaude},
		{"google", llm.TypeGoogleSearch},
		{"Ollama", llm.TypeOllama},
		{"duckduckgo", llm.TypeDuckDuckGo},
		{"custom", ""},
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			require.Equal(t, tc.want, inferType(tc.id))
		})
	}
}

func TestBackendConfigs(t *testing.T) {
	t.Setenv("TERM_CHAT_TEST_KEY", "sk-from-env")
	cfg := &Config{Backends: map[string]BackendConfig{
		"openai": {Type: llm.TypeChatGPT, APIKey: "$TERM_CHAT_TEST_KEY"},
		"local":  {Type: llm.TypeOllama, URL: "http://gpu:11434", Model: "qwen2"},
		"claude": {Type: llm.TypeClaude},
	}}

	configs, secrets, err := cfg.BackendConfigs()
	require.NoError(t, err)
	require.Len(t, configs, 3)

	require.Equal(t, "claude", configs[0].ID)
	require.Equal(t, "https://api.anthropic.com", configs[0].URL)
	require.Equal(t, 4096, configs[0].MaxTokens)

	require.Equal(t, "local", configs[1].ID)
	require.Equal(t, "http://gpu:11434", configs[1].URL)
	require.Equal(t, "qwen2", configs[1].Model)

	require.Equal(t, "openai", configs[2].ID)
	require.Equal(t, "gpt-4o", configs[2].Model)
	require.Equal(t, map[string]string{"openai": "sk-from-env"}, secrets)
}

func TestBackendConfigsMissingType(t *testing.T) {
	cfg := &Config{Backends: map[string]BackendConfig{"mystery": {}}}
	_, _, err := cfg.BackendConfigs()
	require.ErrorContains(t, err, "mystery")
}

func TestKnownTypesCoverRegistry(t *testing.T) {
	require.Equal(t, llm.DefaultRegistry().Types(), KnownTypes())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{
		DefaultBackend: "openai",
		SystemMessage:  "Be brief.",
		Temperature:    0.5,
		ContextSize:    6,
		Stream:         false,
		UpdateInterval: 150 * time.Millisecond,
		SaveAttempts:   2,
		Backends: map[string]BackendConfig{
			"openai": {Type: llm.TypeChatGPT, Model: "gpt-4o"},
		},
		Persistence: PersistenceConfig{Enabled: true},
		Log:         LogConfig{Level: "debug"},
	}
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Be brief.", loaded.SystemMessage)
	require.Equal(t, 0.5, loaded.Temperature)
	require.Equal(t, 6, loaded.ContextSize)
	require.False(t, loaded.Stream)
	require.Equal(t, 150*time.Millisecond, loaded.UpdateInterval)
	require.Equal(t, "gpt-4o", loaded.Backends["openai"].Model)
	require.Equal(t, "debug", loaded.Log.Level)
}

func TestGetConfigPathUsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	path, err := GetConfigPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "term-chat", "config.yaml"), path)
	require.False(t, Exists())
}

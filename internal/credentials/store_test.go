package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/samsaffron/term-chat/internal/llm"
	"github.com/stretchr/testify/require"
)

var (
	_ llm.SecretStore = (*FileStore)(nil)
	_ llm.SecretStore = StaticStore(nil)
	_ llm.SecretStore = Chain(nil)
)

func TestFileStoreRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	store, err := NewFileStore("")
	require.NoError(t, err)

	_, ok := store.Get("openai")
	require.False(t, ok, "expected no credentials initially")

	require.NoError(t, store.Set("openai", "sk-test-123"))
	require.NoError(t, store.Set("claude", "sk-ant-456"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewFileStore(store.Path())
	require.NoError(t, err)
	v, ok := reopened.Get("openai")
	require.True(t, ok)
	require.Equal(t, "sk-test-123", v)

	keys, err := reopened.Keys()
	require.NoError(t, err)
	require.Equal(t, []string{"claude", "openai"}, keys)

	require.NoError(t, reopened.Delete("openai"))
	require.NoError(t, reopened.Delete("openai"))
	_, ok = reopened.Get("openai")
	require.False(t, ok)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, ok := store.Get("openai")
	require.False(t, ok)
	require.Error(t, store.Set("openai", "x"))
}

func TestStaticStoreIgnoresEmpty(t *testing.T) {
	s := StaticStore{"openai": "sk", "blank": ""}
	v, ok := s.Get("openai")
	require.True(t, ok)
	require.Equal(t, "sk", v)
	_, ok = s.Get("blank")
	require.False(t, ok)
}

func TestChainOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	file, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, file.Set("openai", "from-file"))
	require.NoError(t, file.Set("exa", "exa-file"))

	chain := Chain{StaticStore{"openai": "from-config"}, nil, file}

	v, ok := chain.Get("openai")
	require.True(t, ok)
	require.Equal(t, "from-config", v)

	v, ok = chain.Get("exa")
	require.True(t, ok)
	require.Equal(t, "exa-file", v)

	_, ok = chain.Get("missing")
	require.False(t, ok)
}

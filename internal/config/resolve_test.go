package config

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func stubCommand(t *testing.T, fn func(name string, args ...string) ([]byte, error)) {
	t.Helper()
	orig := runCommand
	runCommand = func(_ context.Context, name string, args ...string) ([]byte, error) {
		return fn(name, args...)
	}
	t.Cleanup(func() { runCommand = orig })
}

func TestResolveValueLiteralAndEnv(t *testing.T) {
	t.Setenv("TERM_CHAT_RESOLVE", "secret")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  plain  ", "plain"},
		{"$TERM_CHAT_RESOLVE", "secret"},
		{"${TERM_CHAT_RESOLVE}", "secret"},
		{"Bearer ${TERM_CHAT_RESOLVE}", "Bearer secret"},
		{"$TERM_CHAT_UNSET_VALUE", ""},
	}
	for _, tc := range tests {
		got, err := ResolveValue(tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestResolveValueCommand(t *testing.T) {
	stubCommand(t, func(name string, args ...string) ([]byte, error) {
		require.Equal(t, "sh", name)
		require.Equal(t, []string{"-c", "pass show openai"}, args)
		return []byte("sk-123\n"), nil
	})

	got, err := ResolveValue("$(pass show openai)")
	require.NoError(t, err)
	require.Equal(t, "sk-123", got)
}

func TestResolveValueCommandFailure(t *testing.T) {
	stubCommand(t, func(string, ...string) ([]byte, error) {
		return nil, errors.New("boom")
	})

	_, err := ResolveValue("$(false)")
	require.ErrorContains(t, err, "command failed")
}

func TestResolveValueOnePassword(t *testing.T) {
	stubCommand(t, func(name string, args ...string) ([]byte, error) {
		require.Equal(t, "op", name)
		require.Equal(t, "op://Work/OpenAI/key --account team.1password.com", strings.Join(args[1:], " "))
		return []byte("sk-op\n"), nil
	})

	got, err := ResolveValue("op://Work/OpenAI/key?account=team.1password.com")
	require.NoError(t, err)
	require.Equal(t, "sk-op", got)
}

func TestResolveValueSRV(t *testing.T) {
	orig := lookupSRV
	t.Cleanup(func() { lookupSRV = orig })
	lookupSRV = func(_ context.Context, service, proto, name string) (string, []*net.SRV, error) {
		require.Equal(t, "_llm._tcp.example.com", name)
		return "", []*net.SRV{{Target: "gpu1.example.com.", Port: 8443}}, nil
	}

	got, err := ResolveValue("srv://_llm._tcp.example.com/v1/chat/completions")
	require.NoError(t, err)
	require.Equal(t, "https://gpu1.example.com:8443/v1/chat/completions", got)

	lookupSRV = func(context.Context, string, string, string) (string, []*net.SRV, error) {
		return "", nil, nil
	}
	_, err = ResolveValue("srv://_llm._tcp.example.com/v1")
	require.ErrorContains(t, err, "no SRV records")

	_, err = ResolveValue("srv:///v1")
	require.ErrorContains(t, err, "missing host")
}

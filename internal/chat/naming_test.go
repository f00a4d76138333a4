package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeChatName(t *testing.T) {
	cases := map[string]string{
		"Some reasoning...\n**🚀 Project Kickoff**": "🚀 Project Kickoff",
		"**📚 Reading List** and more **ignored**":  "📚 Reading List",
		"Thinking\n\n🍕 Pizza Night\n\n":              "🍕 Pizza Night",
		"  🐹 Go Questions  ":                         "🐹 Go Questions",
		"":                                          "",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeChatName(in), "input %q", in)
	}
}

func TestGenerateChatName(t *testing.T) {
	h := newHarness(t, 0)
	backend := h.addLLM("openai").AddTextResponse("Some reasoning...\n**🚀 Project Kickoff**")
	conv := newConversation("openai", "gpt-4o", "Let's plan the project kickoff")
	conv.appendMessage("Sure, here is a plan.", false, false)

	name, err := h.orch.GenerateChatName(context.Background(), conv, false)
	require.NoError(t, err)
	require.Equal(t, "🚀 Project Kickoff", name)
	require.Equal(t, name, conv.Name())
	require.Len(t, conv.Messages(), 2, "naming must not add messages")
	require.Equal(t, name, h.store.last(t).Name)
	require.Equal(t, 1, h.notifier.count(ChangeName))

	req, _ := backend.LastRequest()
	require.InDelta(t, 0.6, req.Temperature, 1e-9)
	require.Len(t, req.Messages, 4, "system, two history entries, instruction")
	require.Contains(t, req.Messages[3].Content, "Start chat name with one appropriate emoji")

	// Already named: skipped without calling the backend.
	name, err = h.orch.GenerateChatName(context.Background(), conv, false)
	require.NoError(t, err)
	require.Equal(t, "🚀 Project Kickoff", name)
	require.Equal(t, 1, backend.RequestCount())
}

func TestGenerateChatNameErrorKeepsName(t *testing.T) {
	h := newHarness(t, 0)
	h.addLLM("openai").AddError(errors.New("boom"))
	conv := newConversation("openai", "gpt-4o", "hi")
	conv.SetName("Old")

	name, err := h.orch.GenerateChatName(context.Background(), conv, true)
	require.Error(t, err)
	require.Equal(t, "Old", name)
	require.Equal(t, "Old", conv.Name())
	require.Len(t, conv.Messages(), 1)
}

func TestGenerateChatNameSkipsSearchBackends(t *testing.T) {
	h := newHarness(t, 0)
	search := h.addSearch("google")
	conv := newConversation("google", "cx", "hi")

	name, err := h.orch.GenerateChatName(context.Background(), conv, true)
	require.NoError(t, err)
	require.Empty(t, name)
	require.Zero(t, search.RequestCount())
}

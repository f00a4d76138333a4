package chat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samsaffron/term-chat/internal/llm"
)

func TestConversationOwnMessagesAreImmutable(t *testing.T) {
	c := NewConversation(Settings{Model: "gpt-4o"})
	own := c.AddUserMessage("hello")
	require.False(t, c.updateMessage(own.Sequence, "changed", false))
	require.Equal(t, "hello", c.Messages()[0].Body)

	reply := c.appendMessage("draft", false, true)
	require.True(t, c.updateMessage(reply.Sequence, "final", false))
	msgs := c.Messages()
	require.Equal(t, "final", msgs[1].Body)
	require.False(t, msgs[1].Waiting)
	require.Greater(t, msgs[1].Sequence, msgs[0].Sequence)
}

func TestRestoreContinuesSequence(t *testing.T) {
	c := NewConversation(Settings{ID: "abc", Name: "Chat", Model: "gpt-4o", BackendID: "openai"})
	c.AddUserMessage("one")
	c.appendMessage("two", false, true)
	c.appendRequestMessage(llm.ChatMessage{Role: llm.RoleAssistant, Content: "two"})

	restored := Restore(c.Snapshot())
	require.Equal(t, "abc", restored.ID())
	require.Equal(t, "Chat", restored.Name())
	require.False(t, restored.Messages()[1].Waiting)
	require.Len(t, restored.RequestBuffer(), 1)

	next := restored.AddUserMessage("three")
	require.Equal(t, 2, next.Sequence)
}

func TestSnapshotIsIndependent(t *testing.T) {
	c := NewConversation(Settings{})
	c.AddUserMessage("a")
	snap := c.Snapshot()
	c.AddUserMessage("b")
	require.Len(t, snap.Messages, 1)
	require.NotEmpty(t, c.ID())
}

func TestMessageLookupBySequence(t *testing.T) {
	c := NewConversation(Settings{})
	m := c.AddUserMessage("first")

	got, ok := c.Message(m.Sequence)
	require.True(t, ok)
	require.Equal(t, "first", got.Body)

	_, ok = c.Message(m.Sequence + 10)
	require.False(t, ok)
}

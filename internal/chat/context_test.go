package chat

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samsaffron/term-chat/internal/llm"
)

func conversationWith(model string, bodies ...string) *Conversation {
	c := NewConversation(Settings{ID: "c1", SystemMessage: "be helpful", Model: model, BackendID: "openai", Temperature: 0.7})
	for i, b := range bodies {
		if i%2 == 0 {
			c.AddUserMessage(b)
		} else {
			c.appendMessage(b, false, false)
		}
	}
	return c
}

func TestBuildContextBounds(t *testing.T) {
	bodies := make([]string, 9)
	for i := range bodies {
		bodies[i] = fmt.Sprintf("m%d", i)
	}
	snap := conversationWith("gpt-4o", bodies...).Snapshot()

	for _, n := range []int{1, 3, 9, 20} {
		got := BuildContext(snap, "new question", n)
		hist := min(n, len(bodies))
		require.Len(t, got, 1+hist+1, "n=%d", n)
		require.Equal(t, llm.RoleSystem, got[0].Role)
		require.Equal(t, "be helpful", got[0].Content)
		require.Equal(t, llm.ChatMessage{Role: llm.RoleUser, Content: "new question"}, got[len(got)-1])
		require.Equal(t, bodies[len(bodies)-hist], got[1].Content)
	}
}

func TestBuildContextClampsContextSize(t *testing.T) {
	snap := conversationWith("gpt-4o", "a", "b", "c").Snapshot()
	got := BuildContext(snap, "", 0)
	require.Len(t, got, 2)
	require.Equal(t, "c", got[1].Content)
	require.Equal(t, llm.RoleUser, got[1].Role)
}

func TestBuildContextNoSystemRole(t *testing.T) {
	snap := conversationWith("o1-mini", "hello").Snapshot()
	got := BuildContext(snap, "", 5)
	for _, m := range got {
		require.NotEqual(t, llm.RoleSystem, m.Role)
	}
	require.Equal(t, llm.ChatMessage{Role: llm.RoleUser, Content: "Take this message as the system message: be helpful"}, got[0])
}

func TestBuildContextDoesNotDuplicateLastUserMessage(t *testing.T) {
	c := conversationWith("gpt-4o", "hi", "hello!")
	c.AddUserMessage("how are you?")
	snap := c.Snapshot()

	once := BuildContext(snap, "how are you?", 10)
	require.Len(t, once, 4)
	require.Equal(t, "how are you?", once[3].Content)

	again := BuildContext(snap, "how are you?", 10)
	require.Equal(t, once, again)
}

func TestBuildContextOrdersByTimestamp(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{
		SystemMessage: "sys",
		Model:         "gpt-4o",
		Messages: []Message{
			{Sequence: 0, Body: "late", Own: true, CreatedAt: base.Add(2 * time.Minute)},
			{Sequence: 1, Body: "early", Own: true, CreatedAt: base},
			{Sequence: 2, Body: "tie-a", Own: false, CreatedAt: base.Add(time.Minute)},
			{Sequence: 3, Body: "tie-b", Own: false, CreatedAt: base.Add(time.Minute)},
		},
	}
	got := BuildContext(snap, "", 4)
	var bodies []string
	for _, m := range got[1:] {
		bodies = append(bodies, m.Content)
	}
	require.Equal(t, []string{"early", "tie-a", "tie-b", "late"}, bodies)
	require.Equal(t, llm.RoleAssistant, got[2].Role)
}

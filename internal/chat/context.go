package chat

import "github.com/samsaffron/term-chat/internal/llm"

// systemRoleWrapper introduces the system instruction for models that have
// no system role.
const systemRoleWrapper = "Take this message as the system message: "

// BuildContext assembles the payload for one request: the system instruction,
// the contextSize most recent messages and, when it differs from the last
// entry, newMessage. A contextSize below 1 is treated as 1. The result is
// never empty.
func BuildContext(s Snapshot, newMessage string, contextSize int) []llm.ChatMessage {
	if contextSize < 1 {
		contextSize = 1
	}

	history := s.lastMessages(contextSize)
	out := make([]llm.ChatMessage, 0, len(history)+2)
	if llm.SupportsSystemRole(s.Model) {
		out = append(out, llm.ChatMessage{Role: llm.RoleSystem, Content: s.SystemMessage})
	} else {
		out = append(out, llm.ChatMessage{Role: llm.RoleUser, Content: systemRoleWrapper + s.SystemMessage})
	}

	for _, m := range history {
		role := llm.RoleAssistant
		if m.Own {
			role = llm.RoleUser
		}
		out = append(out, llm.ChatMessage{Role: role, Content: m.Body})
	}

	if newMessage != "" && out[len(out)-1].Content != newMessage {
		out = append(out, llm.ChatMessage{Role: llm.RoleUser, Content: newMessage})
	}
	return out
}

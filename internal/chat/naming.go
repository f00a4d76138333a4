package chat

import (
	"context"
	"regexp"
	"strings"

	"github.com/samsaffron/term-chat/internal/llm"
)

const (
	chatNameInstruction = "Return a short chat name as summary for this chat based on the previous message content and system message if it's not default. " +
		"Start chat name with one appropriate emoji. Don't answer to my message, just generate a name."
	chatNameTemperature = 0.6
	chatNameContextSize = 3
)

var boldSpan = regexp.MustCompile(`\*\*(.+?)\*\*`)

// SanitizeChatName extracts a title from a model reply: the first bold span
// if there is one, otherwise the last non-blank line.
func SanitizeChatName(raw string) string {
	if m := boldSpan.FindString(raw); m != "" {
		return strings.Trim(m, "*")
	}
	lines := strings.Split(raw, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return strings.TrimSpace(raw)
}

// GenerateChatName asks the conversation's backend for a short title and
// stores it. Conversations that already have a name are skipped unless force
// is set. No message is ever added to the conversation.
func (o *Orchestrator) GenerateChatName(ctx context.Context, conv *Conversation, force bool) (string, error) {
	snap := conv.Snapshot()
	if (!force && snap.Name != "") || len(snap.Messages) == 0 {
		return snap.Name, nil
	}
	if !o.dir.IsLLM(snap.BackendID) {
		return snap.Name, nil
	}

	backend, cfg, err := o.dir.Backend(snap.BackendID, snap.Model)
	if err != nil {
		o.logger.Warn("chat name generation failed", "conversation", snap.ID, "error", err)
		return snap.Name, err
	}
	messages := BuildContext(snap, chatNameInstruction, chatNameContextSize)
	raw, err := backend.Send(ctx, messages, llm.EffectiveTemperature(cfg.Model, chatNameTemperature))
	if err != nil {
		o.logger.Warn("chat name generation failed", "conversation", snap.ID, "error", err)
		return snap.Name, err
	}

	name := SanitizeChatName(raw)
	if name == "" {
		return snap.Name, nil
	}
	conv.SetName(name)
	o.notify(snap.ID, ChangeName, -1)
	o.recordUsage(cfg, messages, raw)
	if err := o.saveWithRetry(context.WithoutCancel(ctx), conv); err != nil {
		o.logger.Warn("saving chat name failed", "conversation", snap.ID, "error", err)
	}
	return name, nil
}

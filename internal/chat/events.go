package chat

// TopicConversationChanged is the Notifier topic for every Change.
const TopicConversationChanged = "conversation.changed"

// ChangeKind says what part of a conversation changed.
type ChangeKind int

const (
	ChangeMessageAdded ChangeKind = iota
	ChangeMessageUpdated
	ChangeWaiting
	ChangeName
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeMessageAdded:
		return "message_added"
	case ChangeMessageUpdated:
		return "message_updated"
	case ChangeWaiting:
		return "waiting"
	case ChangeName:
		return "name"
	default:
		return "unknown"
	}
}

// Change is published after every mutation the orchestrator makes.
// Sequence is -1 when the change is not about a single message.
type Change struct {
	ConversationID string
	Kind           ChangeKind
	Sequence       int
}

func (o *Orchestrator) notify(conversationID string, kind ChangeKind, seq int) {
	if o.notifier == nil {
		return
	}
	o.notifier.Publish(TopicConversationChanged, Change{ConversationID: conversationID, Kind: kind, Sequence: seq})
}

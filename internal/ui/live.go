package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/samsaffron/term-chat/internal/chat"
	"github.com/samsaffron/term-chat/internal/eventbus"
)

// LiveView prints a conversation's replies as they change. It reads the
// current message body on every change, so dropped or late events only
// delay output.
type LiveView struct {
	out    io.Writer
	styles *Styles
	conv   *chat.Conversation
	label  string

	mu      sync.Mutex
	seq     int
	printed string
	open    bool
}

// NewLiveView renders replies of conv to out. label prefixes each reply.
func NewLiveView(out io.Writer, styles *Styles, conv *chat.Conversation, label string) *LiveView {
	return &LiveView{out: out, styles: styles, conv: conv, label: label, seq: -1}
}

// Run applies events from sub until ctx is done or the channel closes.
func (v *LiveView) Run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if ch, ok := evt.Payload.(chat.Change); ok {
				v.Apply(ch)
			}
		}
	}
}

// Apply renders a single change.
func (v *LiveView) Apply(ch chat.Change) {
	if ch.ConversationID != v.conv.ID() {
		return
	}
	if ch.Kind != chat.ChangeMessageAdded && ch.Kind != chat.ChangeMessageUpdated {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.syncLocked(ch.Sequence)
}

// Finish prints whatever remains of the reply with seq and ends the line.
func (v *LiveView) Finish(seq int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if seq >= 0 {
		v.syncLocked(seq)
	}
	if v.open {
		fmt.Fprintln(v.out)
		v.open = false
	}
}

func (v *LiveView) syncLocked(seq int) {
	msg, ok := v.conv.Message(seq)
	if !ok || msg.Own {
		return
	}
	if seq != v.seq {
		if v.open {
			fmt.Fprintln(v.out)
		}
		v.seq = seq
		v.printed = ""
		v.open = true
		if v.label != "" {
			fmt.Fprintf(v.out, "%s ", v.styles.Assistant.Render(v.label))
		}
	}

	body := msg.Body
	switch {
	case body == v.printed:
	case strings.HasPrefix(body, v.printed):
		io.WriteString(v.out, body[len(v.printed):])
	default:
		// Placeholder replaced: start the reply over on a fresh line.
		fmt.Fprintln(v.out)
		if v.label != "" {
			fmt.Fprintf(v.out, "%s ", v.styles.Assistant.Render(v.label))
		}
		io.WriteString(v.out, body)
	}
	v.printed = body
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/samsaffron/term-chat/internal/chat"
	"github.com/samsaffron/term-chat/internal/exitcode"
	"github.com/samsaffron/term-chat/internal/llm"
	"github.com/samsaffron/term-chat/internal/ui"
	"golang.org/x/term"
)

const assistantLabel = "🤖"

type turnOptions struct {
	contextSize   int
	stream        bool
	disableSearch bool
}

func (a *app) turnOptions(contextSize int, noStream, noSearch bool) turnOptions {
	if contextSize <= 0 {
		contextSize = a.cfg.ContextSize
	}
	return turnOptions{
		contextSize:   contextSize,
		stream:        a.cfg.Stream && !noStream,
		disableSearch: noSearch,
	}
}

// runTurn sends text and renders the reply to out. On a terminal a streamed
// reply is drawn live from change events; otherwise it is printed once
// settled, rendered as markdown when color is on.
func (a *app) runTurn(ctx context.Context, conv *chat.Conversation, text string, opts turnOptions, out io.Writer, live bool, styles *ui.Styles) (chat.Result, error) {
	var (
		view *ui.LiveView
		done chan struct{}
	)
	viewCtx, stopView := context.WithCancel(context.Background())
	defer stopView()

	if live && opts.stream {
		sub := a.bus.Subscribe(chat.TopicConversationChanged)
		defer sub.Unsubscribe()
		view = ui.NewLiveView(out, styles, conv, assistantLabel)
		done = make(chan struct{})
		go func() {
			defer close(done)
			view.Run(viewCtx, sub.C())
		}()
	}

	res, err := a.orch.Generate(ctx, conv, chat.Request{
		Text:          text,
		ContextSize:   opts.contextSize,
		Stream:        opts.stream,
		DisableSearch: opts.disableSearch,
	})

	if view != nil {
		stopView()
		<-done
		view.Finish(res.Sequence)
	} else if res.Sequence >= 0 {
		if msg, ok := conv.Message(res.Sequence); ok && msg.Body != "" {
			if live {
				fmt.Fprintf(out, "%s ", styles.Assistant.Render(assistantLabel))
			}
			fmt.Fprintln(out, settledBody(msg.Body, styles))
		}
	}

	if res.Outcome == chat.Cancelled {
		return res, exitcode.Cancel()
	}
	return res, err
}

// describeError turns a generation error into a one-line message.
func describeError(err error) string {
	switch {
	case errors.Is(err, chat.ErrGenerationInProgress):
		return "a reply is still being generated"
	case errors.Is(err, chat.ErrPersist):
		return "reply received but saving the conversation failed: " + err.Error()
	}
	switch llm.KindOf(err) {
	case llm.KindUnauthorized:
		return "the backend rejected the credentials (check api_key): " + err.Error()
	case llm.KindRateLimited:
		return "rate limited by the backend, try again shortly"
	case llm.KindNetworkFailure:
		return "could not reach the backend: " + err.Error()
	case llm.KindNoBackendConfigured:
		return "no backend configured: " + err.Error()
	}
	return err.Error()
}

// settledBody formats a finished message for printing.
func settledBody(body string, styles *ui.Styles) string {
	if !styles.Color() {
		return body
	}
	return ui.RenderMarkdown(body, styles, terminalWidth())
}

func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func stdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/samsaffron/term-chat/internal/chat"
	"github.com/samsaffron/term-chat/internal/exitcode"
	"github.com/samsaffron/term-chat/internal/session"
	"github.com/samsaffron/term-chat/internal/ui"
	"github.com/spf13/cobra"
)

var (
	chatResume   string
	chatContext  int
	chatNoStream bool
	chatNoSearch bool
)

const chatHelp = `Start a line-oriented chat with the configured backend.

Keys:
  Enter   - Send message
  Ctrl+C  - Cancel the reply being generated
  Ctrl+D  - Exit

Slash commands:
  /help                   - Show help
  /name                   - Regenerate the chat name
  /backend <id> [model]   - Switch backend for the next messages
  /new                    - Start a new conversation
  /quit                   - Exit chat`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long:  chatHelp,
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatResume, "resume", "r", "", "Resume a saved conversation by id or id prefix")
	chatCmd.Flags().IntVarP(&chatContext, "context", "c", 0, "Number of previous messages sent as context (default from config)")
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "Wait for whole replies instead of streaming")
	chatCmd.Flags().BoolVar(&chatNoSearch, "no-search", false, "Never augment with web search")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	var conv *chat.Conversation
	if chatResume != "" {
		snap, err := a.store.Load(ctx, chatResume)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return exitcode.Missing(fmt.Sprintf("conversation %q not found", chatResume))
			}
			return err
		}
		conv = chat.Restore(snap)
	} else {
		conv, err = a.newConversation(-1)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	live := stdoutIsTerminal()
	r := &repl{
		app:    a,
		conv:   conv,
		out:    out,
		live:   live,
		styles: ui.NewStyles(out, ui.ColorEnabled(live)),
		opts:   a.turnOptions(chatContext, chatNoStream, chatNoSearch),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			r.interrupt()
		}
	}()

	return r.run(ctx, stdin)
}

// repl is the interactive loop behind the chat command.
type repl struct {
	app *app

	mu   sync.Mutex
	conv *chat.Conversation

	out    io.Writer
	live   bool
	styles *ui.Styles
	opts   turnOptions
}

func (r *repl) printHeader() {
	title := r.conv.Name()
	if title == "" {
		title = "New chat"
	}
	fmt.Fprintf(r.out, "%s %s\n", r.styles.Title.Render(title),
		r.styles.Muted.Render(fmt.Sprintf("(%s, %s %s)", session.ShortID(r.conv.ID()), r.conv.BackendID(), r.conv.Model())))
	for _, m := range r.conv.Messages() {
		if m.Own {
			fmt.Fprintf(r.out, "%s %s\n", r.styles.User.Render(ui.UserPrompt), m.Body)
		} else {
			fmt.Fprintf(r.out, "%s %s\n", r.styles.Assistant.Render(assistantLabel), m.Body)
		}
	}
	fmt.Fprintln(r.out, r.styles.Muted.Render("Type /help for commands, Ctrl+D to exit."))
}

func (r *repl) prompt() {
	fmt.Fprintf(r.out, "%s ", r.styles.User.Render(ui.UserPrompt))
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	r.printHeader()
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		r.prompt()
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				return nil
			}
			continue
		}
		r.send(ctx, line)
	}
}

func (r *repl) current() *chat.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conv
}

// interrupt cancels the reply in flight, if any.
func (r *repl) interrupt() {
	if r.app.orch.Cancel(r.current().ID()) {
		return
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.styles.Muted.Render("(nothing to cancel, use /quit or Ctrl+D to exit)"))
	r.prompt()
}

func (r *repl) send(ctx context.Context, text string) {
	res, err := r.app.runTurn(ctx, r.conv, text, r.opts, r.out, r.live, r.styles)
	switch {
	case res.Outcome == chat.Cancelled:
		fmt.Fprintln(r.out, r.styles.Warning.Render("(cancelled)"))
		return
	case err != nil:
		fmt.Fprintln(r.out, r.styles.FormatResult(false, describeError(err)))
		return
	}
	if r.conv.Name() == "" {
		if name, err := r.app.orch.GenerateChatName(ctx, r.conv, false); err == nil && name != "" {
			fmt.Fprintln(r.out, r.styles.Muted.Render("Chat name: "+name))
		}
	}
}

// command handles a slash command and reports whether the loop should end.
func (r *repl) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true
	case "/help", "/?":
		fmt.Fprintln(r.out, chatHelp)
	case "/name":
		name, err := r.app.orch.GenerateChatName(ctx, r.conv, true)
		if err != nil {
			fmt.Fprintln(r.out, r.styles.FormatResult(false, describeError(err)))
			break
		}
		if name == "" {
			fmt.Fprintln(r.out, r.styles.Muted.Render("No name generated."))
			break
		}
		fmt.Fprintln(r.out, r.styles.FormatResult(true, "Chat name: "+name))
	case "/backend":
		if len(fields) < 2 {
			fmt.Fprintf(r.out, "Backend: %s (%s)\n", r.conv.BackendID(), r.conv.Model())
			break
		}
		bc, ok := r.app.dir.Config(fields[1])
		if !ok {
			fmt.Fprintln(r.out, r.styles.FormatResult(false, fmt.Sprintf("backend %q is not configured", fields[1])))
			break
		}
		model := bc.Model
		if len(fields) > 2 {
			model = fields[2]
		}
		r.conv.SetBackend(bc.ID, model)
		fmt.Fprintln(r.out, r.styles.FormatResult(true, fmt.Sprintf("Using %s (%s)", bc.ID, model)))
	case "/new":
		conv, err := r.app.newConversation(-1)
		if err != nil {
			fmt.Fprintln(r.out, r.styles.FormatResult(false, err.Error()))
			break
		}
		r.mu.Lock()
		r.conv = conv
		r.mu.Unlock()
		r.printHeader()
	default:
		fmt.Fprintln(r.out, r.styles.FormatResult(false, "unknown command "+fields[0]+", try /help"))
	}
	return false
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/samsaffron/term-chat/internal/exitcode"
	"github.com/samsaffron/term-chat/internal/session"
	"github.com/samsaffron/term-chat/internal/ui"
	"github.com/spf13/cobra"
)

var (
	askContext     int
	askNoStream    bool
	askNoSearch    bool
	askTemperature float64
	askNoName      bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question",
	Long: `Ask a single question and print the reply.

Questions containing a search trigger ("search for", "google", "find
information", ...) are answered from web results when a search backend is
configured.

Examples:
  term-chat ask "explain the CAP theorem"
  term-chat ask "search for go 1.25 release notes"
  term-chat ask --backend local --model qwen2 "hello"
  echo "summarize this" | term-chat ask -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askContext, "context", "c", 0, "Number of previous messages sent as context (default from config)")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "Wait for the whole reply instead of streaming")
	askCmd.Flags().BoolVar(&askNoSearch, "no-search", false, "Never augment with web search")
	askCmd.Flags().Float64VarP(&askTemperature, "temperature", "t", -1, "Sampling temperature (default from config)")
	askCmd.Flags().BoolVar(&askNoName, "no-name", false, "Skip generating a chat name")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question, err := readQuestion(args)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	conv, err := a.newConversation(askTemperature)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	live := stdoutIsTerminal()
	styles := ui.NewStyles(out, ui.ColorEnabled(live))

	opts := a.turnOptions(askContext, askNoStream, askNoSearch)
	if _, err := a.runTurn(ctx, conv, question, opts, out, live, styles); err != nil {
		if _, ok := err.(exitcode.ExitError); ok {
			return err
		}
		return exitcode.Failed(describeError(err))
	}

	if !askNoName && a.cfg.Persistence.Enabled {
		if _, err := a.orch.GenerateChatName(context.WithoutCancel(ctx), conv, false); err != nil {
			a.log.Debug("chat name skipped", "error", err)
		}
		a.log.Info("conversation saved", "id", session.ShortID(conv.ID()), "name", conv.Name())
	}
	return nil
}

// readQuestion joins args, reading stdin when the only argument is "-".
func readQuestion(args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := readAllStdin()
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		args = []string{string(data)}
	}
	q := strings.TrimSpace(strings.Join(args, " "))
	if q == "" {
		return "", fmt.Errorf("question is empty")
	}
	return q, nil
}

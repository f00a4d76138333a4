package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/samsaffron/term-chat/internal/config"
	"github.com/samsaffron/term-chat/internal/exitcode"
	"github.com/samsaffron/term-chat/internal/llm"
	"github.com/samsaffron/term-chat/internal/ui"
	"github.com/spf13/cobra"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List and test configured backends",
	Long: `List the backends from the config file, or send a test message.

Examples:
  term-chat backends
  term-chat backends test openai
  term-chat backends test local --model qwen2
  term-chat backends types`,
	RunE: runBackendsList,
}

var backendsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured backends",
	Args:  cobra.NoArgs,
	RunE:  runBackendsList,
}

var backendsTestCmd = &cobra.Command{
	Use:   "test [id]",
	Short: "Send a test message to a backend",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBackendsTest,
}

var backendsTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List supported backend types and their defaults",
	Args:  cobra.NoArgs,
	RunE:  runBackendsTypes,
}

func init() {
	backendsCmd.AddCommand(backendsListCmd)
	backendsCmd.AddCommand(backendsTestCmd)
	backendsCmd.AddCommand(backendsTypesCmd)
	rootCmd.AddCommand(backendsCmd)
}

func runBackendsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	configs := a.dir.Configs()
	if len(configs) == 0 {
		fmt.Fprintf(out, "No backends configured. Add one under backends: in %s\n", describeConfigPath())
		return nil
	}

	def, _ := resolveBackend(a.cfg, a.dir)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tTYPE\tMODEL\tURL")
	for _, bc := range configs {
		marker := ""
		if bc.ID == def.ID {
			marker = "*"
		}
		kind := bc.Type
		if llm.IsSearch(bc.Type) {
			kind += " (search)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, bc.ID, kind, bc.Model, bc.URL)
	}
	return w.Flush()
}

func runBackendsTest(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if len(args) == 1 {
		a.cfg.DefaultBackend = args[0]
	}
	bc, err := resolveBackend(a.cfg, a.dir)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), llm.RequestTimeout)
	defer cancel()

	out := cmd.OutOrStdout()
	styles := ui.NewStyles(out, ui.ColorEnabled(stdoutIsTerminal()))
	start := time.Now()
	reply, err := a.orch.TestBackend(ctx, bc.ID, modelFlag)
	if err != nil {
		fmt.Fprintln(out, styles.FormatResult(false, fmt.Sprintf("%s: %s", bc.ID, describeError(err))))
		return exitcode.ExitError{Code: exitcode.Error}
	}
	fmt.Fprintln(out, styles.FormatResult(true, fmt.Sprintf("%s answered in %s", bc.ID, time.Since(start).Round(time.Millisecond))))
	fmt.Fprintln(out, styles.Muted.Render(ui.Truncate(reply, 200)))
	return nil
}

func runBackendsTypes(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tDEFAULT MODEL\tDEFAULT URL")
	for _, t := range config.KnownTypes() {
		d, _ := config.DefaultsFor(t)
		fmt.Fprintf(w, "%s\t%s\t%s\n", t, d.Model, d.URL)
	}
	return w.Flush()
}

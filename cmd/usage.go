package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/samsaffron/term-chat/internal/usage"
	"github.com/spf13/cobra"
)

var usageDays int

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show estimated token usage and cost",
	Long: `Show estimated token usage and cost per backend and model.

Token counts are estimated from message length. Prices come from the
built-in table unless overridden under pricing: in the config.

Examples:
  term-chat usage            # last 30 days
  term-chat usage --days 1   # today only
  term-chat usage --days 0   # everything`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().IntVar(&usageDays, "days", 30, "Number of days to include, 0 for all")
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	logger := usage.NewLogger("")

	var since time.Time
	if usageDays > 0 {
		since = time.Now().AddDate(0, 0, -(usageDays - 1))
	}
	res := logger.Load(since, time.Time{})
	for _, err := range res.Errors {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
	}

	out := cmd.OutOrStdout()
	totals := usage.Summarize(res.Entries)
	if len(totals) == 0 {
		fmt.Fprintf(out, "No usage recorded in %s\n", logger.Dir())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "BACKEND\tMODEL\tREQUESTS\tINPUT\tOUTPUT\tCOST\t")
	var cost float64
	var requests int
	for _, t := range totals {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t$%.4f\t\n", t.BackendID, t.Model, t.Requests, t.InputTokens, t.OutputTokens, t.CostUSD)
		cost += t.CostUSD
		requests += t.Requests
	}
	fmt.Fprintf(w, "total\t\t%d\t\t\t$%.4f\t\n", requests, cost)
	return w.Flush()
}

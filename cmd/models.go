package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samsaffron/term-chat/internal/exitcode"
	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models from a backend",
	Long: `List available models from a backend.

This queries the backend's models API. Search backends report their
engine name.

Examples:
  term-chat models                  # models of the default backend
  term-chat models --backend claude # models of a specific backend
  term-chat models --json           # output as JSON`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	bc, err := resolveBackend(a.cfg, a.dir)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()

	models, err := a.orch.ListModels(ctx, bc.ID)
	if err != nil {
		return exitcode.Failed(fmt.Sprintf("failed to list models for %s: %s", bc.ID, describeError(err)))
	}

	out := cmd.OutOrStdout()
	if modelsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Backend string   `json:"backend"`
			Models  []string `json:"models"`
		}{bc.ID, models})
	}

	if len(models) == 0 {
		fmt.Fprintf(out, "No models reported by %s.\n", bc.ID)
		return nil
	}
	fmt.Fprintf(out, "Models from %s (%s):\n\n", bc.ID, bc.Type)
	for _, m := range models {
		marker := "  "
		if m == bc.Model {
			marker = "* "
		}
		fmt.Fprintf(out, "%s%s\n", marker, m)
	}
	return nil
}

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/samsaffron/term-chat/internal/credentials"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Store API keys outside the config file",
	Long: `Store backend API keys in $XDG_CONFIG_HOME/term-chat/credentials.json
(owner read/write only). A key in the config file takes precedence.

Examples:
  term-chat auth set openai      # prompts for the key
  echo "$KEY" | term-chat auth set exa
  term-chat auth list
  term-chat auth delete openai`,
}

var authSetCmd = &cobra.Command{
	Use:   "set <backend-id>",
	Short: "Store a key for a backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthSet,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete <backend-id>",
	Short: "Remove a stored key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthDelete,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backends with a stored key",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

func init() {
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authDeleteCmd)
	authCmd.AddCommand(authListCmd)
	rootCmd.AddCommand(authCmd)
}

func readSecret(prompt string) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewFileStore("")
	if err != nil {
		return err
	}
	key, err := readSecret(fmt.Sprintf("API key for %s: ", args[0]))
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	if key == "" {
		return fmt.Errorf("key is empty")
	}
	if err := store.Set(args[0], key); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored key for %s in %s\n", args[0], store.Path())
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewFileStore("")
	if err != nil {
		return err
	}
	if err := store.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed key for %s\n", args[0])
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewFileStore("")
	if err != nil {
		return err
	}
	keys, err := store.Keys()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(keys) == 0 {
		fmt.Fprintln(out, "No stored keys.")
		return nil
	}
	for _, k := range keys {
		fmt.Fprintln(out, k)
	}
	return nil
}

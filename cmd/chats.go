package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samsaffron/term-chat/internal/exitcode"
	"github.com/samsaffron/term-chat/internal/session"
	"github.com/samsaffron/term-chat/internal/ui"
	"github.com/spf13/cobra"
)

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Manage saved conversations",
	Long: `List, search, show, rename, delete, and export saved conversations.

Examples:
  term-chat chats                        # List recent conversations
  term-chat chats list --backend openai
  term-chat chats search "kubernetes"
  term-chat chats show <id>
  term-chat chats rename <id> "Release planning"
  term-chat chats delete <id>
  term-chat chats export <id> [path.md]`,
	RunE: runChatsList,
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	Args:  cobra.NoArgs,
	RunE:  runChatsList,
}

var chatsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search message text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runChatsSearch,
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsShow,
}

var chatsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runChatsRename,
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsDelete,
}

var chatsExportCmd = &cobra.Command{
	Use:   "export <id> [path]",
	Short: "Export a conversation as markdown",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runChatsExport,
}

// Flags
var (
	chatsBackend      string
	chatsLimit        int
	chatsJSON         bool
	chatsExportSystem bool
)

func init() {
	chatsListCmd.Flags().StringVar(&chatsBackend, "backend-id", "", "Filter by backend id")
	chatsListCmd.Flags().IntVar(&chatsLimit, "limit", 20, "Maximum number of conversations to list")
	chatsCmd.Flags().AddFlagSet(chatsListCmd.Flags())

	chatsShowCmd.Flags().BoolVar(&chatsJSON, "json", false, "Output as JSON")
	chatsExportCmd.Flags().BoolVar(&chatsExportSystem, "system", false, "Include the system message")

	chatsCmd.AddCommand(chatsListCmd)
	chatsCmd.AddCommand(chatsSearchCmd)
	chatsCmd.AddCommand(chatsShowCmd)
	chatsCmd.AddCommand(chatsRenameCmd)
	chatsCmd.AddCommand(chatsDeleteCmd)
	chatsCmd.AddCommand(chatsExportCmd)

	rootCmd.AddCommand(chatsCmd)
}

func getChatStore() (session.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Persistence.Enabled {
		return nil, fmt.Errorf("conversation storage is disabled in config")
	}
	return session.NewStore(session.Config{Enabled: true, Path: cfg.Persistence.Path})
}

func notFound(id string, err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return exitcode.Missing(fmt.Sprintf("conversation '%s' not found", id))
	}
	return err
}

func runChatsList(cmd *cobra.Command, args []string) error {
	store, err := getChatStore()
	if err != nil {
		return err
	}
	defer store.Close()

	summaries, err := store.List(cmd.Context(), session.ListOptions{
		BackendID: chatsBackend,
		Limit:     chatsLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No conversations found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBACKEND\tMSGS\tUPDATED\tNAME")
	for _, s := range summaries {
		name := s.Name
		if name == "" {
			name = "(unnamed)"
		}
		if len([]rune(name)) > 40 {
			name = string([]rune(name)[:37]) + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", session.ShortID(s.ID), s.BackendID, s.MessageCount, formatRelativeTime(s.UpdatedAt), name)
	}
	return w.Flush()
}

func runChatsSearch(cmd *cobra.Command, args []string) error {
	store, err := getChatStore()
	if err != nil {
		return err
	}
	defer store.Close()

	query := strings.Join(args, " ")
	results, err := store.Search(cmd.Context(), query, 20)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "No results found for '%s'\n", query)
		return nil
	}

	fmt.Fprintf(out, "Found %d matches for '%s':\n\n", len(results), query)
	for _, r := range results {
		name := r.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(out, "%s %s\n", session.ShortID(r.ConversationID), name)
		fmt.Fprintf(out, "  %s\n\n", r.Snippet)
	}
	return nil
}

func runChatsShow(cmd *cobra.Command, args []string) error {
	store, err := getChatStore()
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Load(cmd.Context(), args[0])
	if err != nil {
		return notFound(args[0], err)
	}

	out := cmd.OutOrStdout()
	if chatsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintf(out, "Conversation: %s\n", snap.ID)
	if snap.Name != "" {
		fmt.Fprintf(out, "Name: %s\n", snap.Name)
	}
	fmt.Fprintf(out, "Backend: %s\n", snap.BackendID)
	fmt.Fprintf(out, "Model: %s\n", snap.Model)
	fmt.Fprintf(out, "Temperature: %.1f\n", snap.Temperature)
	fmt.Fprintf(out, "Created: %s\n", snap.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Updated: %s\n", snap.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Messages: %d\n\n", len(snap.Messages))

	styles := ui.NewStyles(out, ui.ColorEnabled(stdoutIsTerminal()))
	for _, m := range snap.Messages {
		role := assistantLabel
		if m.Own {
			role = ui.UserPrompt
		}
		fmt.Fprintf(out, "%s %s\n\n", role, settledBody(m.Body, styles))
	}
	return nil
}

func runChatsRename(cmd *cobra.Command, args []string) error {
	store, err := getChatStore()
	if err != nil {
		return err
	}
	defer store.Close()

	name := strings.TrimSpace(strings.Join(args[1:], " "))
	if err := store.Rename(cmd.Context(), args[0], name); err != nil {
		return notFound(args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", args[0], name)
	return nil
}

func runChatsDelete(cmd *cobra.Command, args []string) error {
	store, err := getChatStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return notFound(args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted conversation: %s\n", args[0])
	return nil
}

func runChatsExport(cmd *cobra.Command, args []string) error {
	store, err := getChatStore()
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Load(cmd.Context(), args[0])
	if err != nil {
		return notFound(args[0], err)
	}

	outputPath := exportPath(snap.Name, snap.ID)
	if len(args) > 1 {
		outputPath = args[1]
	}

	md := session.ExportToMarkdown(snap, session.ExportOptions{IncludeSystem: chatsExportSystem})
	if outputPath == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), md)
		return err
	}
	if err := os.WriteFile(outputPath, []byte(md), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d messages to %s\n", len(snap.Messages), outputPath)
	return nil
}

// exportPath derives a file name from the conversation name, falling back
// to the short id.
func exportPath(name, id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
				b.WriteByte('-')
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = session.ShortID(id)
	}
	return slug + ".md"
}

// formatRelativeTime returns a human-readable relative time string
func formatRelativeTime(t time.Time) string {
	dur := time.Since(t)
	switch {
	case dur < time.Minute:
		return "just now"
	case dur < time.Hour:
		return fmt.Sprintf("%dm ago", int(dur.Minutes()))
	case dur < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(dur.Hours()))
	case dur < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(dur.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

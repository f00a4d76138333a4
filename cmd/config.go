package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samsaffron/term-chat/internal/config"
	"github.com/samsaffron/term-chat/internal/llm"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create the configuration file",
	Long: `Show the effective configuration, print its path, or write a starter file.

Examples:
  term-chat config           # show effective config (secrets masked)
  term-chat config path
  term-chat config init      # write a starter config with an OpenAI backend`,
	RunE: runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), describeConfigPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	masked := *cfg
	masked.Backends = make(map[string]config.BackendConfig, len(cfg.Backends))
	for id, b := range cfg.Backends {
		b.APIKey = maskSecret(b.APIKey)
		masked.Backends[id] = b
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(&masked)
}

// maskSecret hides literal keys but keeps references such as $VAR or
// op:// readable.
func maskSecret(v string) string {
	switch {
	case v == "":
		return ""
	case strings.HasPrefix(v, "$"), strings.HasPrefix(v, "op://"), strings.HasPrefix(v, "srv://"):
		return v
	case len(v) <= 8:
		return "****"
	default:
		return v[:4] + "****" + v[len(v)-4:]
	}
}

// starterConfig is what config init writes.
func starterConfig() *config.Config {
	return &config.Config{
		DefaultBackend: "openai",
		SystemMessage:  config.DefaultSystemMessage,
		Temperature:    0.7,
		ContextSize:    10,
		Stream:         true,
		UpdateInterval: 200 * time.Millisecond,
		SaveAttempts:   3,
		Search:         config.SearchConfig{Enabled: true},
		Backends: map[string]config.BackendConfig{
			"openai": {Type: llm.TypeChatGPT, Model: "gpt-4o", APIKey: "$OPENAI_API_KEY"},
			"web":    {Type: llm.TypeDuckDuckGo},
		},
		Persistence: config.PersistenceConfig{Enabled: true},
		Log:         config.LogConfig{Level: "info"},
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Save(starterConfig(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

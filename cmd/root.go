package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/samsaffron/term-chat/internal/exitcode"
	"github.com/samsaffron/term-chat/internal/pprof"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	backendFlag  string
	modelFlag    string
	logLevelFlag string
	pprofPort    int

	profiler *pprof.Server
)

var rootCmd = &cobra.Command{
	Use:   "term-chat",
	Short: "Chat with language models from the terminal",
	Long: `term-chat talks to OpenAI-compatible, Anthropic, Gemini and Ollama
backends, optionally augmenting questions with web search results.

Examples:
  term-chat ask "what is a goroutine"
  term-chat ask "search for the latest Go release" --backend openai
  term-chat chat
  term-chat chat --resume 3f2a9c1d
  term-chat chats list
  term-chat models --backend local`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	CompletionOptions:  cobra.CompletionOptions{DisableDefaultCmd: true},
	PersistentPreRunE:  startProfiler,
	PersistentPostRunE: func(*cobra.Command, []string) error { return stopProfiler() },
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/term-chat/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&backendFlag, "backend", "b", "", "Backend id from the config")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "Model override for the backend")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().IntVar(&pprofPort, "pprof", -1, "Serve pprof on this localhost port while running (0 picks a free port)")
	rootCmd.PersistentFlags().Lookup("pprof").NoOptDefVal = "0"
}

func startProfiler(cmd *cobra.Command, args []string) error {
	if pprofPort < 0 {
		return nil
	}
	profiler = pprof.NewServer(nil)
	port, err := profiler.Start(pprofPort)
	if err != nil {
		profiler = nil
		return err
	}
	pprof.PrintUsage(cmd.ErrOrStderr(), port)
	return nil
}

func stopProfiler() error {
	if profiler == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := profiler.Stop(ctx)
	profiler = nil
	return err
}

// Execute runs the root command and exits with the code carried by the
// returned error.
func Execute() {
	err := rootCmd.Execute()
	// PostRun is skipped when a command fails.
	_ = stopProfiler()
	os.Exit(exitCodeFor(err))
}

func exitCodeFor(err error) int {
	if err == nil {
		return exitcode.Success
	}
	var exitErr exitcode.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Code != exitcode.Cancelled && exitErr.Message != "" {
			fmt.Fprintln(os.Stderr, "Error:", exitErr.Message)
		}
		return exitErr.Code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitcode.Error
}

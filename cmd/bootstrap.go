package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/samsaffron/term-chat/internal/chat"
	"github.com/samsaffron/term-chat/internal/config"
	"github.com/samsaffron/term-chat/internal/credentials"
	"github.com/samsaffron/term-chat/internal/eventbus"
	"github.com/samsaffron/term-chat/internal/exitcode"
	"github.com/samsaffron/term-chat/internal/llm"
	"github.com/samsaffron/term-chat/internal/session"
	"github.com/samsaffron/term-chat/internal/usage"
)

// app is everything a command needs, built from config.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	secrets *credentials.FileStore
	dir     *llm.Directory
	store   session.Store
	bus     *eventbus.Bus
	tracker *usage.Tracker
	orch    *chat.Orchestrator

	closers []io.Closer
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ApplyOverrides(backendFlag, modelFlag)
	return cfg, nil
}

// newApp loads config and wires every component. Callers must call close.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	level := cfg.Log.Level
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	logger, closer, err := newLogger(level, cfg.Log.File)
	if err != nil {
		return nil, err
	}
	a.log = logger
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	configs, resolved, err := cfg.BackendConfigs()
	if err != nil {
		a.close()
		return nil, err
	}
	a.secrets, err = credentials.NewFileStore("")
	if err != nil {
		a.close()
		return nil, err
	}
	secrets := credentials.Chain{credentials.StaticStore(resolved), a.secrets}
	a.dir = llm.NewDirectory(llm.DefaultRegistry(), secrets, llm.FactoryOptions{Logger: logger}, configs...)

	a.store, err = session.NewStore(session.Config{
		Enabled: cfg.Persistence.Enabled,
		Path:    cfg.Persistence.Path,
	})
	if err != nil {
		logger.Warn("conversation storage unavailable, continuing without it", "error", err)
		a.store = &session.NoopStore{}
	}
	a.closers = append(a.closers, a.store)

	a.bus = eventbus.New()
	a.tracker = usage.NewTracker(usage.NewPricing(cfg.Pricing.Input, cfg.Pricing.Output), usage.NewLogger(""), logger)
	a.orch = chat.NewOrchestrator(chat.Options{
		Directory:      a.dir,
		Store:          a.store,
		Notifier:       a.bus,
		Usage:          a.tracker,
		Logger:         logger,
		UpdateInterval: cfg.UpdateInterval,
		SaveAttempts:   cfg.SaveAttempts,
		SearchDisabled: !cfg.Search.Enabled,
	})
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
	a.closers = nil
}

// newLogger builds a text slog logger writing to file, or stderr when file
// is empty.
func newLogger(level, file string) (*slog.Logger, io.Closer, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q", level)
		}
	} else {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if file == "" {
		// stderr only shows warnings unless debug is requested.
		if lvl == slog.LevelInfo {
			opts.Level = slog.LevelWarn
		}
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, opts)), f, nil
}

// resolveBackend picks the backend for a new conversation: the explicit id,
// then the configured default, then the preferred LLM, then any search
// engine.
func resolveBackend(cfg *config.Config, dir *llm.Directory) (llm.BackendConfig, error) {
	if id := cfg.DefaultBackend; id != "" {
		bc, ok := dir.Config(id)
		if !ok {
			return llm.BackendConfig{}, exitcode.NoBackend(fmt.Sprintf("backend %q is not configured", id))
		}
		return bc, nil
	}
	if bc, ok := dir.PreferredLLM(); ok {
		return bc, nil
	}
	if bc, ok := dir.SearchConfig(); ok {
		return bc, nil
	}
	return llm.BackendConfig{}, exitcode.NoBackend("no backend configured, add one under backends: in " + describeConfigPath())
}

func describeConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p, err := config.GetConfigPath(); err == nil {
		return p
	}
	return "config.yaml"
}

// newConversation starts a conversation on the resolved backend.
func (a *app) newConversation(temperature float64) (*chat.Conversation, error) {
	bc, err := resolveBackend(a.cfg, a.dir)
	if err != nil {
		return nil, err
	}
	if temperature < 0 {
		temperature = a.cfg.Temperature
	}
	return chat.NewConversation(chat.Settings{
		SystemMessage: a.cfg.SystemMessage,
		BackendID:     bc.ID,
		Model:         bc.Model,
		Temperature:   temperature,
	}), nil
}

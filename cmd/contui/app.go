package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vinayprograms/contui/internal/agent"
	"github.com/vinayprograms/contui/internal/config"
	"github.com/vinayprograms/contui/internal/executor"
	"github.com/vinayprograms/contui/internal/llm"
	"github.com/vinayprograms/contui/internal/logging"
	"github.com/vinayprograms/contui/internal/sandbox"
	"github.com/vinayprograms/contui/internal/session"
	"github.com/vinayprograms/contui/internal/telemetry"
)

// app holds everything a chat or run command needs.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	orch    *agent.Orchestrator
	workDir string
	closers []io.Closer
}

// loadConfig reads the config file (or defaults), overlays the environment
// and validates the result.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openLogger opens the configured log file. Logs never go to the terminal
// because the TUI owns it.
func openLogger(cfg *config.Config) (*logging.Logger, io.Closer, error) {
	path := cfg.LogPath()
	if path == "" {
		return logging.Discard(), nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logger, closer, err := logging.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	return logger, closer, nil
}

func newApp(configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg}

	logger, closer, err := openLogger(cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.logger = logger

	a.workDir, err = os.Getwd()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	scope, err := sandbox.NewWithRoots(cfg.AllowedDirs()...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("sandbox: %w", err)
	}
	logger.Info("sandbox ready", map[string]interface{}{"roots": scope.Roots()})

	exec := executor.New(scope,
		executor.WithLogger(logger.WithComponent("executor")),
		executor.WithWorkDir(a.workDir),
		executor.WithMaxOutput(cfg.Agent.MaxOutputBytes),
	)

	stepTimeout, _ := cfg.StepTimeout()
	backoff, _ := cfg.RetryBackoff()
	provider, err := llm.NewGemini(llm.GeminiConfig{
		APIKey:      cfg.GetAPIKey(),
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		MaxAttempts: cfg.LLM.MaxRetries,
		Backoff:     backoff,
		Logger:      logger.WithComponent("llm"),
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := agent.Options{
		MaxSteps:        cfg.Agent.MaxSteps,
		StepTimeout:     stepTimeout,
		ContextTurns:    cfg.Agent.ContextTurns,
		SystemPrompt:    cfg.LLM.SystemPrompt,
		Temperature:     cfg.LLM.Temperature,
		MaxOutputTokens: cfg.LLM.MaxTokens,
		Logger:          logger.WithComponent("agent"),
	}
	if cfg.Storage.PersistSessions {
		store, err := session.NewFileStore(cfg.SessionDir())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("session store: %w", err)
		}
		opts.Recorder = session.NewRecorder(store, logger.WithComponent("session"))
		opts.History = priorHistory(store, cfg.Agent.ContextTurns, logger)
	}
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Setup(context.Background(), telemetry.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, telemetry.Closer{Shutdown: shutdown})
		logger.Info("tracing enabled", map[string]interface{}{
			"service":  cfg.Telemetry.ServiceName,
			"endpoint": cfg.Telemetry.Endpoint,
		})
	}

	a.orch = agent.New(provider, exec, opts)
	return a, nil
}

// priorHistory reloads the conversation context from earlier transcripts.
// contextTurns counts messages, two per exchange.
func priorHistory(store *session.FileStore, contextTurns int, logger *logging.Logger) []llm.Message {
	turns, err := store.RecentTurns((contextTurns + 1) / 2)
	if err != nil {
		logger.Warn("previous sessions unavailable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	msgs := make([]llm.Message, 0, 2*len(turns))
	for _, t := range turns {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: t.Request},
			llm.Message{Role: llm.RoleModel, Content: t.Response},
		)
	}
	if len(turns) > 0 {
		logger.Info("conversation restored", map[string]interface{}{"exchanges": len(turns)})
	}
	return msgs
}

// Close stops the orchestrator and flushes the log.
func (a *app) Close() {
	if a.orch != nil {
		a.orch.Close()
	}
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
}

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/vinayprograms/contui/internal/config"
	"github.com/vinayprograms/contui/internal/replay"
	"github.com/vinayprograms/contui/internal/session"
)

// Run prints the session timeline.
func (r *ReplayCmd) Run(cli *CLI) error {
	path, err := r.resolve(cli.Config)
	if err != nil {
		return err
	}
	sess, err := session.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if err := replay.New(os.Stdout, r.Verbose).Replay(sess); err != nil {
		return err
	}
	if r.Stats {
		replay.PrintStats(os.Stdout, replay.ComputeStats(sess))
	}
	return nil
}

// resolve treats the argument as a path when it exists, otherwise as a
// session id in the configured session directory. Replay never needs an
// API key, so the config is not validated.
func (r *ReplayCmd) resolve(configPath string) (string, error) {
	if _, err := os.Stat(r.Session); err == nil {
		return r.Session, nil
	}
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return "", err
	}
	store, err := session.NewFileStore(cfg.SessionDir())
	if err != nil {
		return "", err
	}
	path := store.Path(r.Session)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("session %q not found (looked in %s)", r.Session, cfg.SessionDir())
	}
	return path, nil
}

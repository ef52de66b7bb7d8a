package main

import (
	"context"

	"github.com/vinayprograms/contui/internal/ui"
	"github.com/vinayprograms/contui/internal/watch"
)

// Run launches the terminal UI.
func (c *ChatCmd) Run(cli *CLI) error {
	a, err := newApp(cli.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes <-chan struct{}
	if !c.NoWatch {
		poll, _ := a.cfg.PollInterval()
		logger := a.logger.WithComponent("watch")
		w, err := watch.New(a.workDir, poll, logger)
		if err != nil {
			logger.Warn("directory watch disabled", map[string]interface{}{"error": err.Error()})
		} else {
			changes = w.Changes()
			go func() {
				if err := w.Run(ctx); err != nil {
					logger.Error("watch stopped", map[string]interface{}{"error": err.Error()})
				}
			}()
		}
	}

	m := ui.New(a.orch, a.orch.Events(), changes, ui.Options{
		Title:     "contui · " + a.cfg.LLM.Model,
		WrapWidth: a.cfg.UI.WrapWidth,
	})
	return ui.Run(m)
}

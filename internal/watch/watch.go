// Package watch reports changes to the working directory.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vinayprograms/contui/internal/logging"
)

// Watcher coalesces filesystem events in one directory into change
// notifications, at most one per debounce interval.
type Watcher struct {
	fs       *fsnotify.Watcher
	dir      string
	debounce time.Duration
	changes  chan struct{}
	logger   *logging.Logger
}

// New watches dir (not recursively).
func New(dir string, debounce time.Duration, logger *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{
		fs:       fw,
		dir:      dir,
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		logger:   logger.WithComponent("watch"),
	}, nil
}

// Changes delivers a value after each burst of activity. Pending
// notifications collapse into one.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run forwards events until ctx ends, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	defer close(w.changes)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ignored(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", map[string]interface{}{"error": err.Error()})
		case <-fire:
			timer, fire = nil, nil
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

// ignored filters editor swap files and bare chmods.
func ignored(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return true
	}
	base := filepath.Base(ev.Name)
	return strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".tmp")
}

package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestWatcher_ReportsChange(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		os.WriteFile(filepath.Join(dir, "f.txt"), []byte{byte(i)}, 0o644)
	}

	select {
	case <-w.Changes():
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("run: %v", err)
	}
	for range w.Changes() {
	}
}

func TestNew_MissingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope"), 0, nil); err == nil {
		t.Error("expected error for missing dir")
	}
}

func TestIgnored(t *testing.T) {
	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: "a.go", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "a.go", Op: fsnotify.Chmod}, true},
		{fsnotify.Event{Name: ".a.go.swp", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "x.jsonl.tmp", Op: fsnotify.Create}, true},
	}
	for _, tt := range tests {
		if got := ignored(tt.ev); got != tt.want {
			t.Errorf("ignored(%v) = %v, want %v", tt.ev, got, tt.want)
		}
	}
}

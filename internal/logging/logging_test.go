package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug entry should be filtered at INFO")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("info entry missing")
	}

	buf.Reset()
	l.SetLevel(LevelError)
	l.Warn("warned")
	if buf.Len() != 0 {
		t.Errorf("expected nothing below ERROR, got %q", buf.String())
	}
}

func TestLogger_ComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf).WithComponent("agent").WithSession("s-1")

	l.Info("step_start", map[string]interface{}{"step": 2, "b": "x y"})
	line := buf.String()

	if !strings.HasPrefix(line, "INFO ") {
		t.Errorf("line should start with level, got %q", line)
	}
	if !strings.Contains(line, "[agent] step_start") {
		t.Errorf("component missing: %q", line)
	}
	if !strings.Contains(line, ` b="x y" session=s-1 step=2`) {
		t.Errorf("fields not sorted or quoted: %q", line)
	}
}

func TestLogger_DerivedSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	root := NewWithWriter(&buf)
	child := root.WithComponent("exec")

	root.SetLevel(LevelDebug)
	child.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("child should observe parent level change")
	}
}

func TestLogger_ConcurrentWritesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.WithComponent("w").Info("tick", map[string]interface{}{"k": "v"})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.HasSuffix(line, "tick k=v") {
			t.Errorf("interleaved line: %q", line)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"WARNING": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Info("nothing")
}

// Package logging provides structured, component-scoped logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel maps a config string onto a Level. Unknown values yield LevelInfo.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// sink is shared by a logger and every logger derived from it, so that
// writes from different components never interleave.
type sink struct {
	mu       sync.Mutex
	output   io.Writer
	minLevel Level
}

// Logger writes one line per entry:
// LEVEL TIMESTAMP [component] message key=value ...
type Logger struct {
	sink      *sink
	component string
	sessionID string
}

// New creates a Logger writing to stderr. Stdout belongs to the terminal UI.
func New() *Logger {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter creates a Logger writing to w.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{sink: &sink{output: w, minLevel: LevelInfo}}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard)
}

// OpenFile creates a Logger appending to path, creating parent directories
// as needed. The returned closer releases the file.
func OpenFile(path string) (*Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return NewWithWriter(f), f, nil
}

// WithComponent returns a logger tagged with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{sink: l.sink, component: component, sessionID: l.sessionID}
}

// WithSession returns a logger that stamps every entry with session=id.
func (l *Logger) WithSession(id string) *Logger {
	return &Logger{sink: l.sink, component: l.component, sessionID: id}
}

// SetLevel sets the minimum log level for this logger and its derivatives.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.minLevel = level
	l.sink.mu.Unlock()
}

// SetOutput replaces the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.output = w
	l.sink.mu.Unlock()
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields renders key=value pairs in key order.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		v := fmt.Sprintf("%v", fields[k])
		if strings.ContainsAny(v, " \t\n\"") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %s=%s", k, v)
	}
	return b.String()
}

func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if l == nil || l.sink == nil {
		return
	}
	merged := map[string]interface{}{}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	if l.sessionID != "" {
		merged["session"] = l.sessionID
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, formatFields(merged))
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, formatFields(merged))
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if levelPriority[level] < levelPriority[l.sink.minLevel] {
		return
	}
	l.sink.output.Write([]byte(line))
}

// StepStart logs the start of an agent step.
func (l *Logger) StepStart(step int) {
	l.Info("step_start", map[string]interface{}{
		"step": step,
	})
}

// StepComplete logs the end of an agent step.
func (l *Logger) StepComplete(step int, duration time.Duration, actions int) {
	l.Info("step_complete", map[string]interface{}{
		"step":     step,
		"duration": duration.String(),
		"actions":  actions,
	})
}

// ActionResult logs the outcome of one executed action. Content is never
// logged, only the kind and target.
func (l *Logger) ActionResult(kind, target string, success bool, errKind string) {
	fields := map[string]interface{}{
		"action":  kind,
		"target":  target,
		"success": success,
	}
	if success {
		l.Debug("action_result", fields)
		return
	}
	fields["error_kind"] = errKind
	l.Warn("action_failed", fields)
}

// SessionEnd logs the terminal state of an agent session.
func (l *Logger) SessionEnd(state string, steps int, duration time.Duration) {
	l.Info("session_end", map[string]interface{}{
		"state":    state,
		"steps":    steps,
		"duration": duration.String(),
	})
}

// SecurityWarning logs a sandbox or confirmation related warning.
func (l *Logger) SecurityWarning(msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["security"] = true
	l.Warn(msg, fields)
}

// Package replay renders saved session transcripts as a timeline.
package replay

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/contui/internal/session"
)

// Replayer formats session events.
type Replayer struct {
	output         io.Writer
	verbosity      int // 0=normal, 1=show content (-v), 2=full content (-vv)
	maxContentSize int // 0 = unlimited
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithMaxContentSize limits how much of each Content field is shown.
func WithMaxContentSize(size int) ReplayerOption {
	return func(r *Replayer) {
		r.maxContentSize = size
	}
}

// New creates a Replayer.
func New(output io.Writer, verbosity int, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		output:         output,
		verbosity:      verbosity,
		maxContentSize: 50 * 1024,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplayFile loads a transcript from path and replays it.
func (r *Replayer) ReplayFile(path string) error {
	sess, err := session.LoadFile(path)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	return r.Replay(sess)
}

// Replay writes the header, timeline and outcome of sess.
func (r *Replayer) Replay(sess *session.Session) error {
	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("SESSION"), valueStyle.Render(sess.ID))
	fmt.Fprintln(r.output, divider)
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Request:"), valueStyle.Render(truncateContent(sess.Request, 200)))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Status: "), statusStyle(sess.Status).Render(statusLabel(sess.Status)))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Created:"), valueStyle.Render(sess.CreatedAt.Format(time.RFC3339)))
	fmt.Fprintln(r.output)

	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TIMELINE"), dimStyle.Render(fmt.Sprintf("(%d events)", len(sess.Events))))
	fmt.Fprintln(r.output, divider)
	for i := range sess.Events {
		r.formatEvent(i+1, &sess.Events[i])
	}

	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, divider)
	switch sess.Status {
	case session.StatusFinished:
		fmt.Fprintln(r.output, successStyle.Render("FINISHED"))
	case session.StatusExhausted:
		fmt.Fprintln(r.output, warnStyle.Render("STEP LIMIT REACHED"))
	case session.StatusFailed:
		fmt.Fprintf(r.output, "%s %s\n", errorStyle.Render("FAILED:"), valueStyle.Render(sess.Error))
	case session.StatusCancelled:
		fmt.Fprintln(r.output, warnStyle.Render("CANCELLED"))
	default:
		fmt.Fprintln(r.output, warnStyle.Render("RUNNING"))
	}
	if r.verbosity >= 1 && sess.Result != "" {
		fmt.Fprintln(r.output)
		fmt.Fprintln(r.output, r.clip(sess.Result))
	}
	fmt.Fprintln(r.output)
	return nil
}

func statusLabel(status string) string {
	if status == "" {
		return session.StatusRunning
	}
	return status
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case session.StatusFinished:
		return successStyle
	case session.StatusFailed:
		return errorStyle
	default:
		return warnStyle
	}
}

func (r *Replayer) formatEvent(seq int, event *session.Event) {
	ts := timeStyle.Render(event.Timestamp.Format("15:04:05"))
	seqNum := seqStyle.Render(fmt.Sprintf("%d", seq))
	line := func(label string, style lipgloss.Style, rest string) {
		fmt.Fprintf(r.output, "%s │ %s │ %s%s\n", seqNum, ts, style.Render(label), rest)
	}

	switch event.Type {
	case session.EventStepStart:
		fmt.Fprintln(r.output)
		line(fmt.Sprintf("STEP %d", event.Step), flowStyle, "")

	case session.EventStepEnd:
		line("STEP END", flowStyle, " "+dimStyle.Render(fmt.Sprintf("(%s)", formatDuration(event.DurationMs))))

	case session.EventUser:
		line("PROMPT", modelStyle, " "+dimStyle.Render(fmt.Sprintf("(%d bytes)", len(event.Content))))
		r.printContent(event.Content)

	case session.EventAssistant:
		line("RESPONSE", modelStyle, " "+dimStyle.Render(fmt.Sprintf("(%d bytes)", len(event.Content))))
		r.printContent(event.Content)

	case session.EventCommandConfirm:
		verdict := errorStyle.Render("rejected")
		if event.Success != nil && *event.Success {
			verdict = successStyle.Render("approved")
		}
		line("CONFIRM", confirmStyle, " "+valueStyle.Render(event.Target)+" "+verdict)

	case session.EventActionResult:
		mark := successStyle.Render("✓")
		if event.Success != nil && !*event.Success {
			mark = errorStyle.Render("✗")
		}
		rest := " " + valueStyle.Render(truncateContent(event.Target, 80)) + " " + mark
		line(strings.ToUpper(event.Action), actionStyle, rest)
		if event.Error != "" {
			fmt.Fprintf(r.output, "      │          │   %s\n", errorStyle.Render(event.Error))
		}

	case session.EventSessionEnd:
		fmt.Fprintln(r.output)
		line("SESSION END", flowStyle, " "+statusStyle(event.Content).Render(event.Content))

	default:
		line(strings.ToUpper(event.Type), dimStyle, "")
	}
}

// printContent shows model traffic at -v and above. -v shows the first
// lines only.
func (r *Replayer) printContent(content string) {
	if r.verbosity < 1 || content == "" {
		return
	}
	lines := strings.Split(r.clip(content), "\n")
	maxLines := len(lines)
	if r.verbosity == 1 && maxLines > 10 {
		maxLines = 10
	}
	for _, l := range lines[:maxLines] {
		fmt.Fprintf(r.output, "      │          │   %s\n", dimStyle.Render(l))
	}
	if remaining := len(lines) - maxLines; remaining > 0 {
		fmt.Fprintf(r.output, "      │          │   %s\n", dimStyle.Render(fmt.Sprintf("... (%d more lines)", remaining)))
	}
}

func (r *Replayer) clip(s string) string {
	if r.maxContentSize > 0 && len(s) > r.maxContentSize {
		return s[:r.maxContentSize] + fmt.Sprintf("\n... [truncated, %d bytes total]", len(s))
	}
	return s
}

// truncateContent shortens s to a single line of at most n bytes.
func truncateContent(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

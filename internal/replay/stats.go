package replay

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/contui/internal/session"
)

// Stats holds aggregate figures for a session.
type Stats struct {
	TotalDurationMs int64
	Steps           int
	StepTotalMs     int64
	StepAvgMs       int64

	// Per action kind
	Actions  map[string]int
	Failures map[string]int

	CommandsApproved int
	CommandsRejected int
}

// ComputeStats aggregates session events.
func ComputeStats(sess *session.Session) *Stats {
	stats := &Stats{
		Actions:  make(map[string]int),
		Failures: make(map[string]int),
	}

	var first, last time.Time
	for _, event := range sess.Events {
		if first.IsZero() || event.Timestamp.Before(first) {
			first = event.Timestamp
		}
		if last.IsZero() || event.Timestamp.After(last) {
			last = event.Timestamp
		}

		switch event.Type {
		case session.EventStepEnd:
			stats.Steps++
			stats.StepTotalMs += event.DurationMs
		case session.EventActionResult:
			stats.Actions[event.Action]++
			if event.Success != nil && !*event.Success {
				stats.Failures[event.Action]++
			}
		case session.EventCommandConfirm:
			if event.Success != nil && *event.Success {
				stats.CommandsApproved++
			} else {
				stats.CommandsRejected++
			}
		}
	}

	if !first.IsZero() {
		stats.TotalDurationMs = last.Sub(first).Milliseconds()
	}
	if stats.Steps > 0 {
		stats.StepAvgMs = stats.StepTotalMs / int64(stats.Steps)
	}
	return stats
}

// PrintStats writes a summary of stats to w.
func PrintStats(w io.Writer, stats *Stats) {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("STATISTICS"))
	fmt.Fprintln(w, divider)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Total duration:"), valueStyle.Render(formatDuration(stats.TotalDurationMs)))
	fmt.Fprintf(w, "%s %s %s\n",
		labelStyle.Render("Steps:"),
		valueStyle.Render(fmt.Sprintf("%d", stats.Steps)),
		labelStyle.Render(fmt.Sprintf("(avg %s)", formatDuration(stats.StepAvgMs))))

	if len(stats.Actions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Actions:"))
		kinds := make([]string, 0, len(stats.Actions))
		for k := range stats.Actions {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			rest := ""
			if n := stats.Failures[k]; n > 0 {
				rest = " " + errorStyle.Render(fmt.Sprintf("(%d failed)", n))
			}
			fmt.Fprintf(w, "  %s %s%s\n", labelStyle.Render(k+":"), valueStyle.Render(fmt.Sprintf("%d", stats.Actions[k])), rest)
		}
	}

	if stats.CommandsApproved+stats.CommandsRejected > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Commands:"),
			valueStyle.Render(fmt.Sprintf("%d approved, %d rejected", stats.CommandsApproved, stats.CommandsRejected)))
	}
	fmt.Fprintln(w)
}

// formatDuration formats milliseconds as human-readable duration.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.2fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm%ds", mins, secs)
}

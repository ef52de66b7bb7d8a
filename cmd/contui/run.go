package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/contui/internal/agent"
)

var (
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	promptStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
)

// errStepLimit is returned when a headless run ends without a finish signal.
var errStepLimit = errors.New("step limit reached before the task finished")

// Run sends the prompt and prints events until the session ends.
func (r *RunCmd) Run(cli *CLI) error {
	a, err := newApp(cli.Config)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if !a.orch.Submit(r.Prompt) {
		return errors.New("prompt is empty")
	}
	in := bufio.NewReader(os.Stdin)
	confirm := func(cmd string) bool {
		if r.Yes {
			fmt.Fprintf(os.Stdout, "%s\n", progressStyle.Render("approved: "+cmd))
			return true
		}
		return askYesNo(in, os.Stdout, cmd)
	}
	return follow(ctx, a.orch, os.Stdout, confirm)
}

// sessionControl is the part of the orchestrator a headless run needs.
type sessionControl interface {
	Events() <-chan agent.Event
	ConfirmCommand(approve bool) bool
	Cancel() bool
}

// follow prints events until the first session ends. An interrupt cancels
// the session and waits for its error event.
func follow(ctx context.Context, s sessionControl, out io.Writer, confirm func(string) bool) error {
	done := ctx.Done()
	for {
		select {
		case <-done:
			done = nil
			s.Cancel()
		case ev, ok := <-s.Events():
			if !ok {
				return nil
			}
			if ev.Type == agent.EventConfirmCommand {
				s.ConfirmCommand(confirm(ev.Command))
				continue
			}
			printEvent(out, ev)
			switch {
			case ev.Type == agent.EventFinal:
				return nil
			case ev.Type == agent.EventError:
				return errors.New(ev.Text)
			case ev.Type == agent.EventProgress && ev.Warning:
				return errStepLimit
			}
		}
	}
}

func printEvent(out io.Writer, ev agent.Event) {
	switch ev.Type {
	case agent.EventProgress:
		if ev.Warning {
			fmt.Fprintln(out, warnStyle.Render("Step limit reached. Last response:"))
			fmt.Fprintln(out, ev.Text)
			return
		}
		fmt.Fprintln(out, progressStyle.Render(ev.Text))
	case agent.EventFinal:
		fmt.Fprintln(out, ev.Text)
	case agent.EventError:
		fmt.Fprintln(out, errorStyle.Render("error: "+ev.Text))
	case agent.EventDirectoryChanged:
		fmt.Fprintln(out, progressStyle.Render("(files changed)"))
	}
}

// askYesNo prompts for approval of cmd. Anything but y/yes, including EOF,
// is a rejection.
func askYesNo(in *bufio.Reader, out io.Writer, cmd string) bool {
	fmt.Fprintf(out, "%s\n  %s\n%s ", promptStyle.Render("The assistant wants to run:"), cmd, promptStyle.Render("Run it? [y/N]"))
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

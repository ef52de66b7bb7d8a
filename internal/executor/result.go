package executor

import (
	"fmt"
	"strings"

	"github.com/vinayprograms/contui/internal/action"
)

// Result is the outcome of one action. Err is nil exactly when Success is
// true; Detail is only meaningful on success.
type Result struct {
	Action  action.Kind
	Target  string
	Success bool
	Detail  string
	Err     *Error
	// Silent results are kept out of the follow-up prompt.
	Silent bool
}

func succeed(a action.Action, detail string) Result {
	return Result{Action: a.Kind(), Target: a.Target(), Success: true, Detail: detail}
}

func failed(a action.Action, err *Error) Result {
	return Result{Action: a.Kind(), Target: a.Target(), Err: err}
}

// ErrorKind returns the failure kind, or "" on success.
func (r Result) ErrorKind() ErrorKind {
	if r.Err == nil {
		return ""
	}
	return r.Err.Kind
}

// Header is a one-line summary such as "[create_file a.txt] ok".
func (r Result) Header() string {
	label := string(r.Action)
	if r.Target != "" {
		label += " " + r.Target
	}
	if r.Success {
		return fmt.Sprintf("[%s] ok", label)
	}
	return fmt.Sprintf("[%s] failed (%s)", label, r.Err.Kind)
}

// String renders the header followed by the detail or error message.
func (r Result) String() string {
	var b strings.Builder
	b.WriteString(r.Header())
	body := r.Detail
	if !r.Success {
		body = r.Err.Message
	}
	if body != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(body, "\n"))
	}
	return b.String()
}

// FormatResults renders results for the model. Silent results contribute
// only their header.
func FormatResults(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Silent {
			parts = append(parts, r.Header())
			continue
		}
		parts = append(parts, r.String())
	}
	return strings.Join(parts, "\n\n")
}

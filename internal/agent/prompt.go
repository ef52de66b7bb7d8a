package agent

import (
	"strings"

	"github.com/vinayprograms/contui/internal/executor"
	"github.com/vinayprograms/contui/internal/llm"
)

// ContinueInstruction is appended to every prompt so the model states
// whether more work remains.
const ContinueInstruction = "\n\n---\n" +
	"When you reply, say explicitly whether more actions are needed. " +
	"End with a line `" + llm.StatusContinue + "` if you still have work to do, " +
	"or `" + llm.StatusDone + "` once the task is complete."

// DefaultSystemPrompt teaches the model the action block protocol.
const DefaultSystemPrompt = `You are a coding assistant working in the user's terminal.
You act on the user's files by writing fenced blocks. Use exactly these forms:

` + "```" + `create_file:path/to/file
file content
` + "```" + `

` + "```" + `edit_file:path/to/file
---OLD---
exact text to replace
---NEW---
replacement text
` + "```" + `

` + "```" + `append_file:path/to/file
text to append
` + "```" + `

` + "```" + `read_file:path/to/file` + "```" + `

` + "```" + `list_directory:path` + "```" + `

` + "```" + `show_diff` + "```" + `

` + "```" + `execute_command
shell command (the user must approve it)
` + "```" + `

Use execute_command_silent instead of execute_command when the output is not needed.
Files are never overwritten by create_file; edit_file replaces every occurrence of the old text.
Results of your actions are sent back to you in the next message.`

// FoldResults builds the follow-up prompt after actions ran.
func FoldResults(request string, results []executor.Result) string {
	var b strings.Builder
	b.WriteString("Original request:\n")
	b.WriteString(request)
	b.WriteString("\n\nResults of the actions you requested:\n\n")
	b.WriteString(executor.FormatResults(results))
	b.WriteString("\n\nContinue the task using these results.")
	return b.String()
}

// visibleResults drops silent results for display.
func visibleResults(results []executor.Result) []executor.Result {
	out := make([]executor.Result, 0, len(results))
	for _, r := range results {
		if !r.Silent {
			out = append(out, r)
		}
	}
	return out
}

package llm

import (
	"regexp"
	"strings"
)

// Status markers the model is asked to end each reply with.
const (
	StatusDone     = "STATUS: DONE"
	StatusContinue = "STATUS: CONTINUE"
)

var statusLine = regexp.MustCompile(`(?im)^\W*status\s*:\s*(done|continue)\b`)

// Phrases treated as a finish signal when no status marker is present.
var finishPhrases = []string{
	"task complete",
	"task is complete",
	"task has been completed",
	"no further action",
	"nothing more to do",
	"all done",
	"タスク完了",
	"作業は完了",
	"何もする必要はありません",
}

// IsFinished reports whether a model response declares the task complete.
// The last status marker wins; without one, known completion phrases are
// accepted.
func IsFinished(text string) bool {
	if m := statusLine.FindAllStringSubmatch(text, -1); len(m) > 0 {
		return strings.EqualFold(m[len(m)-1][1], "done")
	}
	lower := strings.ToLower(text)
	for _, p := range finishPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

package agent

import (
	"fmt"
	"regexp"
	"strings"
)

var fileRef = regexp.MustCompile(`@file:(\S+)`)

// FileReferences returns the distinct @file:path references in msg, in
// order of appearance.
func FileReferences(msg string) []string {
	var paths []string
	seen := make(map[string]bool)
	for _, m := range fileRef.FindAllStringSubmatch(msg, -1) {
		p := strings.TrimRight(m[1], ".,;:!?)")
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths
}

// ExpandFileReferences appends the contents of every @file:path reference
// to msg. read is expected to enforce the sandbox; unreadable files are
// noted instead of failing the message.
func ExpandFileReferences(msg string, read func(path string) (string, error)) string {
	paths := FileReferences(msg)
	if len(paths) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for _, p := range paths {
		content, err := read(p)
		if err != nil {
			fmt.Fprintf(&b, "\n\n--- @file:%s (unavailable: %v) ---", p, err)
			continue
		}
		fmt.Fprintf(&b, "\n\n--- @file:%s ---\n%s\n--- end of %s ---", p, strings.TrimRight(content, "\n"), p)
	}
	return b.String()
}

package action

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const fence = "```"

// Separator lines inside an edit_file body.
const (
	SeparatorOld = "---OLD---"
	SeparatorNew = "---NEW---"
)

var (
	// ErrNoBlock means the text contains no block of the requested kind.
	ErrNoBlock = errors.New("no block found")
	// ErrEmptyArgument means a block was found but its filename, path or
	// command is empty.
	ErrEmptyArgument = errors.New("empty argument")
	// ErrUnterminated means a block opened but never closed.
	ErrUnterminated = errors.New("missing closing fence")
	// ErrMalformedEdit means an edit_file body lacks its separators.
	ErrMalformedEdit = errors.New("edit body needs " + SeparatorOld + " and " + SeparatorNew + " lines")
	// ErrEmptyOldText means an edit_file block has nothing to search for.
	ErrEmptyOldText = errors.New("edit old text is empty")
)

// Diagnostic describes a block that was recognised but could not become an
// action. Diagnostics are reported back to the model rather than dropped.
type Diagnostic struct {
	Kind   Kind
	Line   int // 1-based line of the opening fence
	Target string
	Err    error
}

func (d Diagnostic) Error() string {
	if d.Target != "" {
		return fmt.Sprintf("line %d: %s %s: %v", d.Line, d.Kind, d.Target, d.Err)
	}
	return fmt.Sprintf("line %d: %s: %v", d.Line, d.Kind, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Result holds everything found in one model response, in order of appearance.
type Result struct {
	Actions     []Action
	Diagnostics []Diagnostic
}

// Empty reports whether the text contained no recognised blocks at all.
func (r Result) Empty() bool {
	return len(r.Actions) == 0 && len(r.Diagnostics) == 0
}

// inline read/list directives may appear anywhere in the text outside
// blocks, including across a line break
var (
	inlineDirective = regexp.MustCompile("(?s)```(read_file|list_directory):(.*?)```")
	inlineOpener    = regexp.MustCompile("```(?:read_file|list_directory):")
)

// Parse scans text for action blocks. It is pure and never fails; problems
// are returned as diagnostics.
//
// Block actions (create_file, edit_file, append_file, execute_command and
// execute_command_silent) open with a line starting with the fence and the
// tag, and run until a line that is only the fence. read_file and
// list_directory are accepted both inline and in block form. Any mention of
// a show_diff fence yields a single ShowDiff. Ordinary code blocks are
// skipped so that examples inside them are not executed.
func Parse(text string) Result {
	p := &parser{lines: strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")}
	for i := 0; i < len(p.lines); i++ {
		i = p.line(i)
	}
	p.flush()
	return p.res
}

type parser struct {
	lines   []string
	res     Result
	sawDiff bool

	// text outside blocks not yet scanned for inline directives
	free   []string
	freeAt int
}

// line handles the line at i and returns the index of the last line consumed.
func (p *parser) line(i int) int {
	raw := p.lines[i]
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, fence) {
		p.addFree(raw, i)
		return i
	}
	tag, arg, closed := splitMarker(trimmed[len(fence):])
	kind := Kind(tag)

	// a fence that closes an inline directive opened on an earlier line
	if !isBlockKind(kind) && p.openInline() {
		p.addFree(raw, i)
		return i
	}

	switch kind {
	case KindCreateFile, KindEditFile, KindAppendFile, KindExecute, KindExecuteSilent:
		p.flush()
		return p.block(kind, arg, closed, i)
	case KindReadFile, KindListDirectory:
		if closed {
			p.addFree(raw, i)
			return i
		}
		p.flush()
		return p.pathBlock(kind, arg, i)
	case KindShowDiff:
		if closed {
			p.addFree(raw, i)
			return i
		}
		p.flush()
		p.addDiff()
		if i+1 < len(p.lines) && isFence(p.lines[i+1]) {
			return i + 1
		}
		return i
	default:
		if closed {
			p.addFree(raw, i)
			return i
		}
		// ordinary code block: skip it when it is closed
		if j := p.closing(i); j >= 0 {
			p.flush()
			return j
		}
		p.addFree(raw, i)
		return i
	}
}

func isBlockKind(k Kind) bool {
	switch k {
	case KindCreateFile, KindEditFile, KindAppendFile, KindExecute, KindExecuteSilent:
		return true
	}
	return false
}

// splitMarker splits the text after an opening fence into tag and argument.
// closed reports a fence later on the same line.
func splitMarker(rest string) (tag, arg string, closed bool) {
	if idx := strings.Index(rest, fence); idx >= 0 {
		rest = rest[:idx]
		closed = true
	}
	tag = rest
	if c := strings.IndexByte(rest, ':'); c >= 0 {
		tag, arg = rest[:c], rest[c+1:]
	}
	return strings.TrimSpace(tag), strings.TrimSpace(arg), closed
}

func isFence(line string) bool {
	return strings.TrimSpace(line) == fence
}

// closing returns the index of the first bare fence after i, or -1.
func (p *parser) closing(i int) int {
	for j := i + 1; j < len(p.lines); j++ {
		if isFence(p.lines[j]) {
			return j
		}
	}
	return -1
}

func (p *parser) diag(kind Kind, i int, target string, err error) {
	p.res.Diagnostics = append(p.res.Diagnostics, Diagnostic{Kind: kind, Line: i + 1, Target: target, Err: err})
}

func (p *parser) add(a Action) {
	p.res.Actions = append(p.res.Actions, a)
}

func (p *parser) addDiff() {
	if !p.sawDiff {
		p.sawDiff = true
		p.add(ShowDiff{})
	}
}

func (p *parser) block(kind Kind, arg string, closed bool, i int) int {
	end := i
	var body []string
	if !closed {
		end = p.closing(i)
		if end < 0 {
			p.diag(kind, i, arg, ErrUnterminated)
			return len(p.lines) - 1
		}
		body = p.lines[i+1 : end]
	}
	content := strings.Join(body, "\n")

	switch kind {
	case KindCreateFile, KindAppendFile:
		if arg == "" {
			p.diag(kind, i, "", ErrEmptyArgument)
			break
		}
		if kind == KindCreateFile {
			p.add(CreateFile{Filename: arg, Content: content})
		} else {
			p.add(AppendFile{Filename: arg, Content: content})
		}
	case KindEditFile:
		if arg == "" {
			p.diag(kind, i, "", ErrEmptyArgument)
			break
		}
		oldText, newText, ok := splitEdit(body)
		switch {
		case !ok:
			p.diag(kind, i, arg, ErrMalformedEdit)
		case oldText == "":
			p.diag(kind, i, arg, ErrEmptyOldText)
		default:
			p.add(EditFile{Filename: arg, OldText: oldText, NewText: newText})
		}
	case KindExecute, KindExecuteSilent:
		cmd := strings.TrimSpace(content)
		if cmd == "" {
			cmd = arg
		}
		if cmd == "" {
			p.diag(kind, i, "", ErrEmptyArgument)
			break
		}
		p.add(ExecuteCommand{Command: cmd, Silent: kind == KindExecuteSilent})
	}
	return end
}

// splitEdit divides an edit body at its separator lines. Lines before
// ---OLD--- are ignored.
func splitEdit(body []string) (oldText, newText string, ok bool) {
	oldAt, newAt := -1, -1
	for k, line := range body {
		switch strings.TrimSpace(line) {
		case SeparatorOld:
			if oldAt < 0 {
				oldAt = k
			}
		case SeparatorNew:
			if oldAt >= 0 && newAt < 0 {
				newAt = k
			}
		}
	}
	if oldAt < 0 || newAt < 0 {
		return "", "", false
	}
	return strings.Join(body[oldAt+1:newAt], "\n"), strings.Join(body[newAt+1:], "\n"), true
}

// pathBlock handles read_file/list_directory written across lines. The path
// is taken from the opening line, or else from the first non-blank body line.
func (p *parser) pathBlock(kind Kind, arg string, i int) int {
	end := p.closing(i)
	if end < 0 {
		p.diag(kind, i, arg, ErrUnterminated)
		return i
	}
	target := arg
	if target == "" {
		for _, line := range p.lines[i+1 : end] {
			if t := strings.TrimSpace(line); t != "" {
				target = t
				break
			}
		}
	}
	if target == "" {
		p.diag(kind, i, "", ErrEmptyArgument)
		return end
	}
	p.add(pathAction(kind, target))
	return end
}

func (p *parser) addFree(line string, i int) {
	if len(p.free) == 0 {
		p.freeAt = i
	}
	p.free = append(p.free, line)
}

// openInline reports whether the pending free text ends inside an inline
// directive whose closing fence has not been seen yet.
func (p *parser) openInline() bool {
	if len(p.free) == 0 {
		return false
	}
	text := strings.Join(p.free, "\n")
	locs := inlineOpener.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return false
	}
	// directives pair up left to right; look at what is left after the
	// last complete one
	rest := text
	if m := inlineDirective.FindAllStringIndex(text, -1); len(m) > 0 {
		rest = text[m[len(m)-1][1]:]
	}
	return inlineOpener.MatchString(rest)
}

// flush scans the pending free text for inline directives and show_diff
// mentions, in order of appearance.
func (p *parser) flush() {
	if len(p.free) == 0 {
		return
	}
	text := strings.Join(p.free, "\n")
	start := p.freeAt
	p.free = nil

	diffAt := strings.Index(text, fence+string(KindShowDiff))
	for _, m := range inlineDirective.FindAllStringSubmatchIndex(text, -1) {
		if diffAt >= 0 && diffAt < m[0] {
			p.addDiff()
		}
		kind := Kind(text[m[2]:m[3]])
		target := strings.TrimSpace(text[m[4]:m[5]])
		line := start + strings.Count(text[:m[0]], "\n")
		if target == "" {
			p.diag(kind, line, "", ErrEmptyArgument)
			continue
		}
		p.add(pathAction(kind, target))
	}
	if diffAt >= 0 {
		p.addDiff()
	}
}

func pathAction(kind Kind, target string) Action {
	if kind == KindListDirectory {
		return ListDirectory{Path: target}
	}
	return ReadFile{Filename: target}
}

// Extract returns the actions of one kind. It fails with ErrNoBlock when no
// such block exists, and with ErrEmptyArgument when blocks exist but none
// carries an argument.
func Extract(text string, kind Kind) ([]Action, error) {
	res := Parse(text)
	var out []Action
	for _, a := range res.Actions {
		if a.Kind() == kind {
			out = append(out, a)
		}
	}
	if len(out) > 0 {
		return out, nil
	}
	for _, d := range res.Diagnostics {
		if d.Kind == kind && errors.Is(d.Err, ErrEmptyArgument) {
			return nil, fmt.Errorf("%s: %w", kind, ErrEmptyArgument)
		}
	}
	return nil, fmt.Errorf("%s: %w", kind, ErrNoBlock)
}

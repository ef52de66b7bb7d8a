// Package action defines the fenced-block protocol a model uses to ask for
// work, and parses model text into typed actions.
package action

// Kind names an action variant. Values match the fence tags.
type Kind string

const (
	KindCreateFile    Kind = "create_file"
	KindReadFile      Kind = "read_file"
	KindEditFile      Kind = "edit_file"
	KindAppendFile    Kind = "append_file"
	KindListDirectory Kind = "list_directory"
	KindShowDiff      Kind = "show_diff"
	KindExecute       Kind = "execute_command"
	KindExecuteSilent Kind = "execute_command_silent"
)

// Action is one parsed request. The set of implementations is closed.
type Action interface {
	Kind() Kind
	// Target is the filename, path or command the action operates on.
	Target() string
	isAction()
}

// CreateFile writes Content to a new file. Existing files are never
// overwritten; a numbered sibling is created instead.
type CreateFile struct {
	Filename string
	Content  string
}

// ReadFile returns a file's contents.
type ReadFile struct {
	Filename string
}

// EditFile replaces every occurrence of OldText with NewText.
type EditFile struct {
	Filename string
	OldText  string
	NewText  string
}

// AppendFile appends Content to an existing file.
type AppendFile struct {
	Filename string
	Content  string
}

// ListDirectory lists the entries of Path.
type ListDirectory struct {
	Path string
}

// ShowDiff reports uncommitted changes in the working tree.
type ShowDiff struct{}

// ExecuteCommand runs a shell command once the user approves it. Silent
// commands still run; their output is kept out of the follow-up prompt.
type ExecuteCommand struct {
	Command string
	Silent  bool
}

func (CreateFile) Kind() Kind    { return KindCreateFile }
func (ReadFile) Kind() Kind      { return KindReadFile }
func (EditFile) Kind() Kind      { return KindEditFile }
func (AppendFile) Kind() Kind    { return KindAppendFile }
func (ListDirectory) Kind() Kind { return KindListDirectory }
func (ShowDiff) Kind() Kind      { return KindShowDiff }

func (c ExecuteCommand) Kind() Kind {
	if c.Silent {
		return KindExecuteSilent
	}
	return KindExecute
}

func (a CreateFile) Target() string     { return a.Filename }
func (a ReadFile) Target() string       { return a.Filename }
func (a EditFile) Target() string       { return a.Filename }
func (a AppendFile) Target() string     { return a.Filename }
func (a ListDirectory) Target() string  { return a.Path }
func (ShowDiff) Target() string         { return "" }
func (a ExecuteCommand) Target() string { return a.Command }

func (CreateFile) isAction()     {}
func (ReadFile) isAction()       {}
func (EditFile) isAction()       {}
func (AppendFile) isAction()     {}
func (ListDirectory) isAction()  {}
func (ShowDiff) isAction()       {}
func (ExecuteCommand) isAction() {}

package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vinayprograms/contui/internal/action"
)

// parsedAction is the printable form of an action.
type parsedAction struct {
	Kind    string `yaml:"kind"`
	Target  string `yaml:"target,omitempty"`
	Content string `yaml:"content,omitempty"`
	OldText string `yaml:"old_text,omitempty"`
	NewText string `yaml:"new_text,omitempty"`
}

type parsedDiagnostic struct {
	Kind   string `yaml:"kind"`
	Line   int    `yaml:"line"`
	Target string `yaml:"target,omitempty"`
	Error  string `yaml:"error"`
}

type parsedOutput struct {
	Actions     []parsedAction     `yaml:"actions"`
	Diagnostics []parsedDiagnostic `yaml:"diagnostics,omitempty"`
}

// Run parses the file (or stdin) and prints what was found.
func (p *ParseCmd) Run() error {
	var data []byte
	var err error
	if p.File == "" || p.File == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(p.File)
	}
	if err != nil {
		return err
	}
	return writeParsed(os.Stdout, action.Parse(string(data)), p.Format)
}

func describe(a action.Action) parsedAction {
	out := parsedAction{Kind: string(a.Kind()), Target: a.Target()}
	switch v := a.(type) {
	case action.CreateFile:
		out.Content = v.Content
	case action.AppendFile:
		out.Content = v.Content
	case action.EditFile:
		out.OldText = v.OldText
		out.NewText = v.NewText
	}
	return out
}

func toOutput(res action.Result) parsedOutput {
	out := parsedOutput{Actions: make([]parsedAction, 0, len(res.Actions))}
	for _, a := range res.Actions {
		out.Actions = append(out.Actions, describe(a))
	}
	for _, d := range res.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, parsedDiagnostic{
			Kind:   string(d.Kind),
			Line:   d.Line,
			Target: d.Target,
			Error:  d.Err.Error(),
		})
	}
	return out
}

func writeParsed(w io.Writer, res action.Result, format string) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toOutput(res)); err != nil {
			return err
		}
		return enc.Close()
	}

	if res.Empty() {
		fmt.Fprintln(w, "no actions found")
		return nil
	}
	for i, a := range res.Actions {
		p := describe(a)
		line := fmt.Sprintf("%d. %s", i+1, p.Kind)
		if p.Target != "" {
			line += " " + p.Target
		}
		switch {
		case p.Content != "":
			line += fmt.Sprintf(" (%d bytes)", len(p.Content))
		case p.Kind == string(action.KindEditFile):
			line += fmt.Sprintf(" (%d -> %d bytes)", len(p.OldText), len(p.NewText))
		}
		fmt.Fprintln(w, line)
	}
	for _, d := range res.Diagnostics {
		fmt.Fprintf(w, "! %s\n", d.Error())
	}
	return nil
}

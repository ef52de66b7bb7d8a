package executor

import (
	"context"

	"github.com/vinayprograms/contui/internal/action"
)

// Confirmer decides whether a command may run. It blocks until the user
// answers or ctx ends.
type Confirmer interface {
	Confirm(ctx context.Context, cmd action.ExecuteCommand) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, cmd action.ExecuteCommand) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, cmd action.ExecuteCommand) (bool, error) {
	return f(ctx, cmd)
}

// Outcome is what one model response produced.
type Outcome struct {
	Parsed  action.Result
	Results []Result
	// Mutated is set when a file was written or a command ran.
	Mutated bool
}

// Found reports whether the response contained any recognised block.
func (o Outcome) Found() bool {
	return !o.Parsed.Empty()
}

// Pipeline parses a model response and executes what it asks for, in order.
type Pipeline struct {
	exec *Executor
}

// NewPipeline creates a pipeline over exec.
func NewPipeline(exec *Executor) *Pipeline {
	return &Pipeline{exec: exec}
}

// Run parses text and executes each action. Diagnostics become ParseError
// results ahead of the actions. Commands are put to confirm; a nil confirm
// rejects them. Run only returns an error when ctx ends or the confirmer
// fails, in which case the results so far are returned with it.
func (p *Pipeline) Run(ctx context.Context, text string, confirm Confirmer) (Outcome, error) {
	out := Outcome{Parsed: action.Parse(text)}

	for _, d := range out.Parsed.Diagnostics {
		out.Results = append(out.Results, Result{
			Action: d.Kind,
			Target: d.Target,
			Err:    &Error{Kind: KindParse, Message: d.Error(), Err: d.Err},
		})
	}

	for _, a := range out.Parsed.Actions {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		cmd, isCmd := a.(action.ExecuteCommand)
		if !isCmd {
			res := p.exec.Execute(ctx, a)
			out.Results = append(out.Results, res)
			if res.Success && mutates(a) {
				out.Mutated = true
			}
			continue
		}

		approved := false
		if confirm != nil {
			ok, err := confirm.Confirm(ctx, cmd)
			if err != nil {
				return out, err
			}
			approved = ok
		}
		if !approved {
			res := failed(cmd, newError(KindRejected, "user declined to run the command"))
			res.Silent = cmd.Silent
			out.Results = append(out.Results, res)
			continue
		}
		res, _ := p.exec.RunCommand(ctx, cmd)
		out.Results = append(out.Results, res)
		out.Mutated = true
	}
	return out, nil
}

func mutates(a action.Action) bool {
	switch a.(type) {
	case action.CreateFile, action.EditFile, action.AppendFile:
		return true
	}
	return false
}

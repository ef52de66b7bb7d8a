package executor

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/vinayprograms/contui/internal/sandbox"
)

// ErrorKind classifies a failed action. Every kind is reported back to the
// model; none of them ends the agent session.
type ErrorKind string

const (
	KindParse            ErrorKind = "parse_error"
	KindSandboxDenied    ErrorKind = "sandbox_denied"
	KindNotFound         ErrorKind = "not_found"
	KindPermissionDenied ErrorKind = "permission_denied"
	KindIO               ErrorKind = "io_error"
	KindNoMatch          ErrorKind = "no_match"
	KindCommandFailed    ErrorKind = "command_failed"
	KindRejected         ErrorKind = "rejected"
)

// Error is the failure half of a Result.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// wrapError classifies err by the sentinel it wraps.
func wrapError(op string, err error) *Error {
	kind := KindIO
	switch {
	case errors.Is(err, sandbox.ErrDenied):
		kind = KindSandboxDenied
	case errors.Is(err, fs.ErrNotExist):
		kind = KindNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = KindPermissionDenied
	}
	return &Error{Kind: kind, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
}

package agent

import "errors"

// EventType identifies what an Event carries.
type EventType string

const (
	EventProgress         EventType = "progress"
	EventFinal            EventType = "final_response"
	EventError            EventType = "error"
	EventConfirmCommand   EventType = "request_command_confirmation"
	EventDirectoryChanged EventType = "directory_changed"
)

// Event is sent from a running session to the UI. Events of one session
// arrive in order.
type Event struct {
	Type      EventType
	SessionID string
	Step      int
	Text      string
	// Command is set on EventConfirmCommand.
	Command string
	// Warning marks the progress event sent when the step limit is hit;
	// its Text is the last model response.
	Warning bool
	// Failure is set on EventError.
	Failure FailureKind
}

// State is the lifecycle position of a session.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateFinished  State = "finished"
	StateExhausted State = "exhausted"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// FailureKind says why a session failed.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureTransport FailureKind = "transport"
	FailureEmpty     FailureKind = "empty_response"
	FailureCancelled FailureKind = "cancelled"
)

var (
	// ErrTimeout is returned when one model call exceeds the step timeout.
	ErrTimeout = errors.New("model request timed out")
	// ErrEmptyResponse is returned when the model answers with blank text.
	ErrEmptyResponse = errors.New("model returned an empty response")
)

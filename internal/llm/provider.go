// Package llm talks to the language model that drives the agent.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// ChatRequest is a single generation request.
type ChatRequest struct {
	System          string
	Messages        []Message
	Temperature     float64
	MaxOutputTokens int
}

// ChatResponse carries the candidate texts returned by the model.
type ChatResponse struct {
	Candidates []string
}

// Text returns the first non-empty candidate.
func (r *ChatResponse) Text() string {
	if r == nil {
		return ""
	}
	for _, c := range r.Candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

// Provider generates model responses.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
}

// ErrNoCandidates is returned when a successful response carries no text.
var ErrNoCandidates = errors.New("model returned no candidates")

// TransportError reports a non-2xx response that survived the retry policy.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error // underlying provider error, if any
}

func (e *TransportError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	if body == "" {
		return fmt.Sprintf("model request failed: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("model request failed: HTTP %d: %s", e.StatusCode, body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimited reports whether the failure was an HTTP 429.
func (e *TransportError) RateLimited() bool {
	return e.StatusCode == 429
}

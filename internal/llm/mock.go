package llm

import (
	"context"
	"sync"
)

// MockProvider is a scripted Provider for tests. Queued responses are
// returned in order; once exhausted the default response repeats.
type MockProvider struct {
	mu        sync.Mutex
	queue     []mockReply
	response  string
	err       error
	requests  []ChatRequest
	blockTill bool
}

type mockReply struct {
	text string
	err  error
}

// NewMockProvider returns a mock that answers with an empty string.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Name returns "mock".
func (m *MockProvider) Name() string { return "mock" }

// SetResponse sets the default response text.
func (m *MockProvider) SetResponse(text string) {
	m.mu.Lock()
	m.response = text
	m.err = nil
	m.mu.Unlock()
}

// SetError makes every unqueued call fail with err.
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// QueueResponse appends a one-shot response.
func (m *MockProvider) QueueResponse(text string) {
	m.mu.Lock()
	m.queue = append(m.queue, mockReply{text: text})
	m.mu.Unlock()
}

// QueueError appends a one-shot failure.
func (m *MockProvider) QueueError(err error) {
	m.mu.Lock()
	m.queue = append(m.queue, mockReply{err: err})
	m.mu.Unlock()
}

// BlockUntilCancelled makes every call wait for ctx to end.
func (m *MockProvider) BlockUntilCancelled() {
	m.mu.Lock()
	m.blockTill = true
	m.mu.Unlock()
}

// Chat records req and returns the next scripted reply.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	block := m.blockTill
	reply := mockReply{text: m.response, err: m.err}
	if len(m.queue) > 0 {
		reply = m.queue[0]
		m.queue = m.queue[1:]
	}
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reply.err != nil {
		return nil, reply.err
	}
	return &ChatResponse{Candidates: []string{reply.text}}, nil
}

// LastRequest returns the most recent request, or a zero value.
func (m *MockProvider) LastRequest() ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ChatRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// Calls returns how many requests were made.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

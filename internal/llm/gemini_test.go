package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"charm.land/fantasy"
)

// scriptedModel replays results in order and records each call.
type scriptedModel struct {
	results []func() (*fantasy.Response, error)
	calls   []fantasy.Call
}

func (m *scriptedModel) Generate(ctx context.Context, call fantasy.Call) (*fantasy.Response, error) {
	m.calls = append(m.calls, call)
	i := len(m.calls) - 1
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	return m.results[i]()
}

func textResponse(text string) func() (*fantasy.Response, error) {
	return func() (*fantasy.Response, error) {
		resp := &fantasy.Response{}
		resp.Content = append(resp.Content, fantasy.TextContent{Text: text})
		return resp, nil
	}
}

func statusError(code int, msg string) func() (*fantasy.Response, error) {
	return func() (*fantasy.Response, error) {
		return nil, &fantasy.ProviderError{StatusCode: code, Message: msg}
	}
}

func newTestClient(model *scriptedModel, sleeps *[]time.Duration) *GeminiClient {
	c := newGemini(model, GeminiConfig{})
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return c
}

func TestGemini_Success(t *testing.T) {
	model := &scriptedModel{results: []func() (*fantasy.Response, error){textResponse("hello world")}}
	var sleeps []time.Duration
	c := newTestClient(model, &sleeps)

	resp, err := c.Chat(context.Background(), ChatRequest{
		System:          "sys",
		Messages:        []Message{{Role: RoleUser, Content: "hi"}, {Role: RoleModel, Content: "yo"}, {Content: "again"}},
		Temperature:     0.7,
		MaxOutputTokens: 1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != "hello world" {
		t.Errorf("unexpected text %q", resp.Text())
	}

	call := model.calls[0]
	if len(call.Prompt) != 4 {
		t.Fatalf("expected system + 3 messages, got %d", len(call.Prompt))
	}
	wantRoles := []fantasy.MessageRole{
		fantasy.MessageRoleSystem,
		fantasy.MessageRoleUser,
		fantasy.MessageRoleAssistant,
		fantasy.MessageRoleUser,
	}
	for i, want := range wantRoles {
		if call.Prompt[i].Role != want {
			t.Errorf("prompt[%d] role = %q, want %q", i, call.Prompt[i].Role, want)
		}
	}
	if call.Temperature == nil || *call.Temperature != 0.7 {
		t.Errorf("temperature not sent: %v", call.Temperature)
	}
	if call.MaxOutputTokens == nil || *call.MaxOutputTokens != 1000 {
		t.Errorf("max tokens not sent: %v", call.MaxOutputTokens)
	}
	if len(sleeps) != 0 {
		t.Errorf("no sleeps expected, got %v", sleeps)
	}
}

func TestGemini_RetriesRateLimit(t *testing.T) {
	model := &scriptedModel{results: []func() (*fantasy.Response, error){
		statusError(429, "slow down"),
		statusError(429, "slow down"),
		textResponse("hello world"),
	}}
	var sleeps []time.Duration
	c := newTestClient(model, &sleeps)

	resp, err := c.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if resp.Text() != "hello world" {
		t.Errorf("unexpected text %q", resp.Text())
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeps) != 2 || sleeps[0] != want[0] || sleeps[1] != want[1] {
		t.Errorf("expected sleeps %v, got %v", want, sleeps)
	}
}

func TestGemini_RateLimitExhausted(t *testing.T) {
	model := &scriptedModel{results: []func() (*fantasy.Response, error){statusError(429, "slow down")}}
	var sleeps []time.Duration
	c := newTestClient(model, &sleeps)

	_, err := c.Chat(context.Background(), ChatRequest{})

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !te.RateLimited() || te.Body != "slow down" {
		t.Errorf("unexpected error %+v", te)
	}
	var pe *fantasy.ProviderError
	if !errors.As(err, &pe) {
		t.Error("provider error should stay reachable through Unwrap")
	}
	if len(model.calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(model.calls))
	}
	if len(sleeps) != 2 {
		t.Errorf("expected 2 sleeps, got %v", sleeps)
	}
}

func TestGemini_ServerErrorNotRetried(t *testing.T) {
	model := &scriptedModel{results: []func() (*fantasy.Response, error){statusError(500, "boom")}}
	var sleeps []time.Duration
	c := newTestClient(model, &sleeps)

	_, err := c.Chat(context.Background(), ChatRequest{})

	var te *TransportError
	if !errors.As(err, &te) || te.StatusCode != 500 {
		t.Fatalf("expected 500 TransportError, got %v", err)
	}
	if len(model.calls) != 1 {
		t.Errorf("5xx must not be retried, got %d calls", len(model.calls))
	}
}

func TestGemini_NetworkErrorNotRetried(t *testing.T) {
	netErr := errors.New("connection refused")
	model := &scriptedModel{results: []func() (*fantasy.Response, error){
		func() (*fantasy.Response, error) { return nil, netErr },
	}}
	var sleeps []time.Duration
	c := newTestClient(model, &sleeps)

	_, err := c.Chat(context.Background(), ChatRequest{})
	if !errors.Is(err, netErr) {
		t.Errorf("expected wrapped network error, got %v", err)
	}
	var te *TransportError
	if errors.As(err, &te) {
		t.Error("errors without a status are not transport errors")
	}
	if len(model.calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(model.calls))
	}
}

func TestGemini_SleepHonoursCancel(t *testing.T) {
	model := &scriptedModel{results: []func() (*fantasy.Response, error){statusError(429, "")}}
	c := newGemini(model, GeminiConfig{Backoff: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Chat(ctx, ChatRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestConvertResponse_NoText(t *testing.T) {
	if _, err := convertResponse(&fantasy.Response{}); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("expected ErrNoCandidates, got %v", err)
	}
	if _, err := convertResponse(nil); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("expected ErrNoCandidates for nil response, got %v", err)
	}
}

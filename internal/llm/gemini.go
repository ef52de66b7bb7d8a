package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/google"

	"github.com/vinayprograms/contui/internal/logging"
)

const (
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
)

// GeminiConfig configures a GeminiClient.
type GeminiConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxAttempts int           // total attempts when rate limited
	Backoff     time.Duration // attempt N waits N*Backoff
	Logger      *logging.Logger
}

// generator is the part of fantasy.LanguageModel the client uses.
type generator interface {
	Generate(ctx context.Context, call fantasy.Call) (*fantasy.Response, error)
}

// GeminiClient sends chat requests to Gemini through fantasy's google
// provider.
type GeminiClient struct {
	model       generator
	maxAttempts int
	backoff     time.Duration
	logger      *logging.Logger

	// sleep waits between rate-limited attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGemini creates a client from cfg, filling defaults.
func NewGemini(cfg GeminiConfig) (*GeminiClient, error) {
	opts := []google.Option{google.WithGeminiAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, google.WithBaseURL(cfg.BaseURL))
	}
	provider, err := google.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini provider: %w", err)
	}
	model, err := provider.LanguageModel(context.Background(), cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to get model %s: %w", cfg.Model, err)
	}
	return newGemini(model, cfg), nil
}

func newGemini(model generator, cfg GeminiConfig) *GeminiClient {
	c := &GeminiClient{
		model:       model,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		logger:      cfg.Logger,
		sleep:       sleepContext,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	c.logger = c.logger.WithComponent("llm")
	return c
}

// Name returns the provider name.
func (c *GeminiClient) Name() string { return "gemini" }

func buildCall(req ChatRequest) fantasy.Call {
	var prompt fantasy.Prompt
	if req.System != "" {
		prompt = append(prompt, fantasy.NewSystemMessage(req.System))
	}
	for _, m := range req.Messages {
		if m.Role == RoleModel {
			prompt = append(prompt, fantasy.Message{
				Role:    fantasy.MessageRoleAssistant,
				Content: []fantasy.MessagePart{fantasy.TextPart{Text: m.Content}},
			})
			continue
		}
		prompt = append(prompt, fantasy.NewUserMessage(m.Content))
	}

	temperature := req.Temperature
	call := fantasy.Call{
		Prompt:      prompt,
		Temperature: &temperature,
	}
	if req.MaxOutputTokens > 0 {
		maxTokens := int64(req.MaxOutputTokens)
		call.MaxOutputTokens = &maxTokens
	}
	return call
}

// Chat sends req, retrying rate-limited (429) attempts with linear backoff.
// Other provider failures return immediately as a *TransportError.
func (c *GeminiClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	call := buildCall(req)

	for attempt := 1; ; attempt++ {
		start := time.Now()
		resp, err := c.model.Generate(ctx, call)
		if err == nil {
			c.logger.Debug("model_response", map[string]interface{}{
				"attempt":  attempt,
				"duration": time.Since(start).String(),
			})
			return convertResponse(resp)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		terr := classify(err)
		if terr == nil {
			return nil, fmt.Errorf("model request: %w", err)
		}
		if terr.RateLimited() && attempt < c.maxAttempts {
			wait := time.Duration(attempt) * c.backoff
			c.logger.Warn("rate_limited", map[string]interface{}{
				"attempt": attempt,
				"wait":    wait.String(),
			})
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}
		return nil, terr
	}
}

// classify turns a provider error carrying an HTTP status into a
// *TransportError. Errors without a status return nil.
func classify(err error) *TransportError {
	var pe *fantasy.ProviderError
	if !errors.As(err, &pe) || pe.StatusCode == 0 {
		return nil
	}
	body := pe.Message
	if body == "" {
		body = string(pe.ResponseBody)
	}
	return &TransportError{StatusCode: pe.StatusCode, Body: body, Err: err}
}

// convertResponse collects the text content of the response.
func convertResponse(resp *fantasy.Response) (*ChatResponse, error) {
	if resp == nil {
		return nil, ErrNoCandidates
	}
	var b strings.Builder
	for _, content := range resp.Content {
		switch c := content.(type) {
		case fantasy.TextContent:
			b.WriteString(c.Text)
		case *fantasy.TextContent:
			b.WriteString(c.Text)
		}
	}
	if b.Len() == 0 {
		if reason := string(resp.FinishReason); reason != "" && reason != "stop" {
			return nil, fmt.Errorf("%w: finish reason %s", ErrNoCandidates, reason)
		}
		return nil, ErrNoCandidates
	}
	return &ChatResponse{Candidates: []string{b.String()}}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

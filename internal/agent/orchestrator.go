// Package agent runs the step loop that turns a user request into model
// calls and executed actions.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/contui/internal/action"
	"github.com/vinayprograms/contui/internal/executor"
	"github.com/vinayprograms/contui/internal/llm"
	"github.com/vinayprograms/contui/internal/logging"
	"github.com/vinayprograms/contui/internal/session"
)

const (
	defaultMaxSteps     = 10
	defaultStepTimeout  = 30 * time.Second
	defaultContextTurns = 10
	eventBuffer         = 256
)

// Recorder persists session transcripts. *session.Recorder implements it.
type Recorder interface {
	Begin(id, request string) error
	Add(id string, ev session.Event)
	End(id, status, result, errMsg string) error
}

// Options configures an Orchestrator. Zero values take defaults.
type Options struct {
	MaxSteps        int // capped at 10
	StepTimeout     time.Duration // per model call
	ContextTurns    int           // prior messages sent with each request
	SystemPrompt    string
	Temperature     float64
	MaxOutputTokens int
	Logger          *logging.Logger
	Recorder        Recorder
	// History seeds the conversation context, e.g. from earlier transcripts.
	History []llm.Message
	// IsFinished decides whether a response ends the session.
	IsFinished func(string) bool
}

// Orchestrator owns at most one running session and a FIFO of messages
// submitted while it runs.
type Orchestrator struct {
	provider llm.Provider
	exec     *executor.Executor
	pipeline *executor.Pipeline
	opts     Options
	logger   *logging.Logger
	tracer   trace.Tracer

	events chan Event
	done   chan struct{}
	base   context.Context
	stop   context.CancelFunc

	sendMu     sync.RWMutex
	sendClosed bool

	mu      sync.Mutex
	active  *run
	pending []string
	history []llm.Message
	closed  bool
	wg      sync.WaitGroup
}

// run is one session.
type run struct {
	id      string
	request string
	ctx     context.Context
	cancel  context.CancelFunc
	step    atomic.Int32

	confirm  chan bool
	awaiting atomic.Bool
}

// New creates an orchestrator. Events are read from Events().
func New(provider llm.Provider, exec *executor.Executor, opts Options) *Orchestrator {
	if opts.MaxSteps <= 0 || opts.MaxSteps > defaultMaxSteps {
		opts.MaxSteps = defaultMaxSteps
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = defaultStepTimeout
	}
	if opts.ContextTurns < 0 {
		opts.ContextTurns = 0
	} else if opts.ContextTurns == 0 {
		opts.ContextTurns = defaultContextTurns
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.IsFinished == nil {
		opts.IsFinished = llm.IsFinished
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	base, stop := context.WithCancel(context.Background())
	history := opts.History
	if n := len(history) - opts.ContextTurns; n > 0 {
		history = history[n:]
	}
	opts.History = nil
	return &Orchestrator{
		provider: provider,
		exec:     exec,
		pipeline: executor.NewPipeline(exec),
		opts:     opts,
		logger:   opts.Logger.WithComponent("agent"),
		tracer:   otel.Tracer(tracerName),
		events:   make(chan Event, eventBuffer),
		done:     make(chan struct{}),
		base:     base,
		stop:     stop,
		history:  append([]llm.Message(nil), history...),
	}
}

// Events returns the channel sessions report on. It is closed by Close.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Submit starts a session for msg, or queues msg when one is running.
// Blank messages are ignored and report false.
func (o *Orchestrator) Submit(msg string) bool {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	if o.active != nil {
		o.pending = append(o.pending, msg)
		o.logger.Info("message_queued", map[string]interface{}{"pending": len(o.pending)})
		return true
	}
	o.startLocked(msg)
	return true
}

// Send starts a session for msg immediately, abandoning any running
// session without waiting for it. Queued messages stay queued.
func (o *Orchestrator) Send(msg string) bool {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return false
	}
	if o.active != nil {
		o.logger.Info("session_preempted", map[string]interface{}{"session": o.active.id})
		o.active.cancel()
		o.active = nil
	}
	o.startLocked(msg)
	return true
}

// Cancel aborts the running session and reports whether there was one.
// The next queued message, if any, starts afterwards. Cancel never blocks
// on the events channel.
func (o *Orchestrator) Cancel() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := o.active
	if r == nil || o.closed {
		return false
	}
	r.cancel()
	o.active = nil
	o.post(Event{
		Type:      EventError,
		SessionID: r.id,
		Step:      int(r.step.Load()),
		Text:      "Session cancelled.",
		Failure:   FailureCancelled,
	})
	o.startNextLocked()
	return true
}

// ConfirmCommand answers the pending command confirmation. It reports
// false when no confirmation is outstanding.
func (o *Orchestrator) ConfirmCommand(approve bool) bool {
	o.mu.Lock()
	r := o.active
	o.mu.Unlock()
	if r == nil || !r.awaiting.Load() {
		return false
	}
	select {
	case r.confirm <- approve:
		return true
	default:
		return false
	}
}

// Running reports whether a session is active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil
}

// Pending returns a copy of the queued messages.
func (o *Orchestrator) Pending() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.pending...)
}

// ClearHistory forgets the conversation context.
func (o *Orchestrator) ClearHistory() {
	o.mu.Lock()
	o.history = nil
	o.mu.Unlock()
}

// Close cancels everything, waits for session goroutines and closes the
// events channel.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	if o.active != nil {
		o.active.cancel()
		o.active = nil
	}
	o.pending = nil
	o.mu.Unlock()

	o.stop()
	close(o.done)
	o.wg.Wait()

	o.sendMu.Lock()
	o.sendClosed = true
	close(o.events)
	o.sendMu.Unlock()
}

func (o *Orchestrator) startLocked(msg string) {
	ctx, cancel := context.WithCancel(o.base)
	r := &run{
		id:      uuid.NewString(),
		request: msg,
		ctx:     ctx,
		cancel:  cancel,
		confirm: make(chan bool, 1),
	}
	o.active = r
	history := append([]llm.Message(nil), o.history...)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(r, history)
	}()
}

// startNextLocked starts the head of the queue. Dequeue and start share one
// critical section so a concurrent Submit cannot overtake queued messages.
func (o *Orchestrator) startNextLocked() {
	if o.closed || o.active != nil || len(o.pending) == 0 {
		return
	}
	next := o.pending[0]
	o.pending = o.pending[1:]
	o.startLocked(next)
}

// finish retires r. Only the current session dequeues the next message;
// an abandoned one has already been replaced.
func (o *Orchestrator) finish(r *run, state State, result string) {
	r.cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active != r {
		return
	}
	o.active = nil
	if state == StateFinished || state == StateExhausted {
		o.rememberLocked(r.request, result)
	}
	o.startNextLocked()
}

func (o *Orchestrator) rememberLocked(request, response string) {
	o.history = append(o.history,
		llm.Message{Role: llm.RoleUser, Content: request},
		llm.Message{Role: llm.RoleModel, Content: response},
	)
	if n := len(o.history) - o.opts.ContextTurns; n > 0 {
		o.history = append([]llm.Message(nil), o.history[n:]...)
	}
}

// emit sends an event for r unless r has been abandoned.
func (o *Orchestrator) emit(r *run, ev Event) {
	if r.ctx.Err() != nil {
		return
	}
	ev.SessionID = r.id
	o.send(r.ctx, ev)
}

// post queues ev without blocking the caller. When the buffer is full a
// goroutine delivers it instead. Callers hold o.mu with the orchestrator open.
func (o *Orchestrator) post(ev Event) {
	o.sendMu.RLock()
	defer o.sendMu.RUnlock()
	if o.sendClosed {
		return
	}
	select {
	case o.events <- ev:
		return
	default:
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.send(o.base, ev)
	}()
}

func (o *Orchestrator) send(ctx context.Context, ev Event) {
	o.sendMu.RLock()
	defer o.sendMu.RUnlock()
	if o.sendClosed {
		return
	}
	select {
	case o.events <- ev:
	case <-ctx.Done():
	case <-o.done:
	}
}

func (o *Orchestrator) record(r *run, ev session.Event) {
	if o.opts.Recorder != nil {
		o.opts.Recorder.Add(r.id, ev)
	}
}

func (o *Orchestrator) run(r *run, history []llm.Message) {
	start := time.Now()
	logger := o.logger.WithSession(r.id)
	ctx, span := o.startSessionSpan(r.ctx, r.id)

	if o.opts.Recorder != nil {
		if err := o.opts.Recorder.Begin(r.id, r.request); err != nil {
			logger.Warn("transcript unavailable", map[string]interface{}{"error": err.Error()})
		}
	}

	prompt := ExpandFileReferences(r.request, func(path string) (string, error) {
		res := o.exec.Execute(ctx, action.ReadFile{Filename: path})
		if !res.Success {
			return "", res.Err
		}
		return res.Detail, nil
	})

	state, result, err := o.loop(ctx, r, prompt, history, logger)

	steps := int(r.step.Load())
	endSessionSpan(span, state, steps, err)
	logger.SessionEnd(string(state), steps, time.Since(start))
	if o.opts.Recorder != nil {
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		if rerr := o.opts.Recorder.End(r.id, string(state), result, errMsg); rerr != nil {
			logger.Warn("transcript close failed", map[string]interface{}{"error": rerr.Error()})
		}
	}
	o.finish(r, state, result)
}

// loop runs steps until the model signals completion, a call fails, the
// session is cancelled or the step limit is reached.
func (o *Orchestrator) loop(ctx context.Context, r *run, prompt string, history []llm.Message, logger *logging.Logger) (State, string, error) {
	current := prompt
	var last string

	for step := 1; step <= o.opts.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return StateCancelled, last, err
		}
		r.step.Store(int32(step))
		stepStart := time.Now()
		logger.StepStart(step)
		o.record(r, session.Event{Type: session.EventStepStart, Step: step})
		stepCtx, span := o.startStepSpan(ctx, step)

		o.emit(r, Event{Type: EventProgress, Step: step, Text: fmt.Sprintf("Step %d: querying model...", step)})
		resp, err := o.ask(stepCtx, r, step, current, history)
		if err != nil {
			endStepSpan(span, 0, err)
			return o.fail(r, step, err)
		}
		o.emit(r, Event{Type: EventProgress, Step: step, Text: fmt.Sprintf("Step %d: model response\n%s", step, resp)})

		out, err := o.pipeline.Run(stepCtx, resp, o.confirmer(r, step))
		for _, res := range out.Results {
			o.recordResult(r, step, res)
		}
		if err != nil {
			endStepSpan(span, len(out.Results), err)
			return StateCancelled, last, err
		}
		if out.Mutated {
			o.emit(r, Event{Type: EventDirectoryChanged, Step: step})
		}

		if out.Found() {
			if shown := visibleResults(out.Results); len(shown) > 0 {
				o.emit(r, Event{Type: EventProgress, Step: step, Text: fmt.Sprintf("Step %d: action results\n%s", step, executor.FormatResults(shown))})
			}
			resp, err = o.ask(stepCtx, r, step, FoldResults(r.request, out.Results), history)
			if err != nil {
				endStepSpan(span, len(out.Results), err)
				return o.fail(r, step, err)
			}
			o.emit(r, Event{Type: EventProgress, Step: step, Text: fmt.Sprintf("Step %d: follow-up response\n%s", step, resp)})
		}

		last = resp
		endStepSpan(span, len(out.Results), nil)
		logger.StepComplete(step, time.Since(stepStart), len(out.Results))
		o.record(r, session.Event{Type: session.EventStepEnd, Step: step, DurationMs: time.Since(stepStart).Milliseconds()})

		if o.opts.IsFinished(resp) {
			o.emit(r, Event{Type: EventFinal, Step: step, Text: resp})
			return StateFinished, resp, nil
		}
		current = resp
	}

	logger.Warn("step limit reached", map[string]interface{}{"max_steps": o.opts.MaxSteps})
	o.emit(r, Event{Type: EventProgress, Step: o.opts.MaxSteps, Text: last, Warning: true})
	return StateExhausted, last, nil
}

// fail reports a terminal model call error. Cancellation is not reported
// here; Cancel and Send already account for it.
func (o *Orchestrator) fail(r *run, step int, err error) (State, string, error) {
	if r.ctx.Err() != nil {
		return StateCancelled, "", err
	}
	kind := FailureTransport
	switch {
	case errors.Is(err, ErrTimeout):
		kind = FailureTimeout
	case errors.Is(err, ErrEmptyResponse):
		kind = FailureEmpty
	}
	o.logger.WithSession(r.id).Error("model call failed", map[string]interface{}{
		"step":    step,
		"failure": string(kind),
		"error":   err.Error(),
	})
	o.emit(r, Event{Type: EventError, Step: step, Text: fmt.Sprintf("Step %d: %v", step, err), Failure: kind})
	return StateFailed, "", err
}

// ask makes one model call bounded by the step timeout.
func (o *Orchestrator) ask(ctx context.Context, r *run, step int, prompt string, history []llm.Message) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.StepTimeout)
	defer cancel()
	callCtx, span := o.startModelSpan(callCtx, step)

	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: prompt + ContinueInstruction})
	o.record(r, session.Event{Type: session.EventUser, Step: step, Content: prompt})

	resp, err := o.provider.Chat(callCtx, llm.ChatRequest{
		System:          o.opts.SystemPrompt,
		Messages:        msgs,
		Temperature:     o.opts.Temperature,
		MaxOutputTokens: o.opts.MaxOutputTokens,
	})
	if err != nil {
		switch {
		case ctx.Err() != nil:
			err = ctx.Err()
		case errors.Is(callCtx.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("%w after %s", ErrTimeout, o.opts.StepTimeout)
		}
		endModelSpan(span, 0, err)
		return "", err
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		endModelSpan(span, 0, ErrEmptyResponse)
		return "", ErrEmptyResponse
	}
	endModelSpan(span, len(text), nil)
	o.record(r, session.Event{Type: session.EventAssistant, Step: step, Content: text})
	return text, nil
}

// confirmer asks the UI about each command and waits for ConfirmCommand.
func (o *Orchestrator) confirmer(r *run, step int) executor.Confirmer {
	return executor.ConfirmFunc(func(ctx context.Context, cmd action.ExecuteCommand) (bool, error) {
		select {
		case <-r.confirm:
		default:
		}
		r.awaiting.Store(true)
		defer r.awaiting.Store(false)

		o.emit(r, Event{
			Type:    EventConfirmCommand,
			Step:    step,
			Command: cmd.Command,
			Text:    fmt.Sprintf("Run command? %s", cmd.Command),
		})
		select {
		case ok := <-r.confirm:
			o.record(r, session.Event{Type: session.EventCommandConfirm, Step: step, Target: cmd.Command, Success: session.Bool(ok)})
			return ok, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	})
}

func (o *Orchestrator) recordResult(r *run, step int, res executor.Result) {
	ev := session.Event{
		Type:    session.EventActionResult,
		Step:    step,
		Action:  string(res.Action),
		Target:  res.Target,
		Success: session.Bool(res.Success),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	o.record(r, ev)
}

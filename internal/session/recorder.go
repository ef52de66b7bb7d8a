package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/vinayprograms/contui/internal/logging"
)

// Recorder tracks live sessions and writes each one through to a Store
// after every change, so a crash leaves a readable transcript.
type Recorder struct {
	store  Store
	logger *logging.Logger

	mu   sync.Mutex
	live map[string]*Session
}

// NewRecorder creates a recorder over store.
func NewRecorder(store Store, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Recorder{
		store:  store,
		logger: logger.WithComponent("session"),
		live:   make(map[string]*Session),
	}
}

// Begin opens a transcript for id.
func (r *Recorder) Begin(id, request string) error {
	now := time.Now()
	sess := &Session{
		ID:        id,
		Request:   request,
		Status:    StatusRunning,
		Events:    []Event{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.mu.Lock()
	r.live[id] = sess
	r.mu.Unlock()
	return r.store.Save(sess)
}

// Add appends an event to a live transcript. Unknown ids are ignored.
// Persistence failures are logged, not returned, so they never stop the
// agent.
func (r *Recorder) Add(id string, ev Event) {
	sess := r.get(id)
	if sess == nil {
		return
	}
	sess.AddEvent(ev)
	if err := r.store.Save(sess); err != nil {
		r.logger.Warn("transcript save failed", map[string]interface{}{"session": id, "error": err.Error()})
	}
}

// End writes the footer and forgets the session.
func (r *Recorder) End(id, status, result, errMsg string) error {
	sess := r.get(id)
	if sess == nil {
		return fmt.Errorf("session %s not open", id)
	}
	sess.AddEvent(Event{Type: EventSessionEnd, Content: status})

	sess.mu.Lock()
	sess.Status = status
	sess.Result = result
	sess.Error = errMsg
	sess.UpdatedAt = time.Now()
	sess.mu.Unlock()

	r.mu.Lock()
	delete(r.live, id)
	r.mu.Unlock()
	return r.store.Save(sess)
}

func (r *Recorder) get(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[id]
}

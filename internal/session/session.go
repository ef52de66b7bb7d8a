// Package session persists a JSONL transcript of each agent session.
package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Status values written to the footer.
const (
	StatusRunning   = "running"
	StatusFinished  = "finished"
	StatusExhausted = "exhausted"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Event types.
const (
	EventUser           = "user"      // prompt sent to the model
	EventAssistant      = "assistant" // model response
	EventStepStart      = "step_start"
	EventStepEnd        = "step_end"
	EventActionResult   = "action_result"
	EventCommandConfirm = "command_confirm"
	EventSessionEnd     = "session_end"
)

// Session is the transcript of one agent session.
type Session struct {
	ID        string    `json:"id"`
	Request   string    `json:"request"`
	Status    string    `json:"status"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Events    []Event   `json:"events"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	seqCounter uint64
	mu         sync.Mutex
}

// Event is a single transcript entry.
type Event struct {
	SeqID     uint64    `json:"seq"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Step    int    `json:"step,omitempty"`
	Action  string `json:"action,omitempty"` // action kind for action_result
	Target  string `json:"target,omitempty"` // file, directory or command
	Content string `json:"content,omitempty"`

	Success    *bool  `json:"success,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// Bool returns a pointer for Event.Success.
func Bool(b bool) *bool { return &b }

func (s *Session) nextSeqID() uint64 {
	return atomic.AddUint64(&s.seqCounter, 1)
}

// AddEvent appends event with the next sequence number and returns it.
func (s *Session) AddEvent(event Event) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	event.SeqID = s.nextSeqID()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.Events = append(s.Events, event)
	s.UpdatedAt = time.Now()
	return event.SeqID
}

// Store persists sessions.
type Store interface {
	Save(sess *Session) error
	Load(id string) (*Session, error)
}

// JSONL record types.
const (
	RecordTypeHeader = "header"
	RecordTypeEvent  = "event"
	RecordTypeFooter = "footer"
)

// JSONLRecord is one line of a transcript file.
type JSONLRecord struct {
	RecordType string `json:"_type"`

	// header
	ID        string    `json:"id,omitempty"`
	Request   string    `json:"request,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	// event
	*Event `json:",omitempty"`

	// footer
	Status    string    `json:"status,omitempty"`
	Result    string    `json:"result,omitempty"`
	Failure   string    `json:"failure,omitempty"` // distinct from Event.Error
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FileStore keeps one <id>.jsonl file per session in dir.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the transcript file for id.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+".jsonl")
}

// Save rewrites the session file: header, events, footer.
func (s *FileStore) Save(sess *Session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	tmp := s.Path(sess.ID) + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	w := bufio.NewWriter(f)

	records := make([]JSONLRecord, 0, len(sess.Events)+2)
	records = append(records, JSONLRecord{
		RecordType: RecordTypeHeader,
		ID:         sess.ID,
		Request:    sess.Request,
		CreatedAt:  sess.CreatedAt,
	})
	for i := range sess.Events {
		evt := sess.Events[i]
		records = append(records, JSONLRecord{RecordType: RecordTypeEvent, Event: &evt})
	}
	records = append(records, JSONLRecord{
		RecordType: RecordTypeFooter,
		Status:     sess.Status,
		Result:     sess.Result,
		Failure:    sess.Error,
		UpdatedAt:  sess.UpdatedAt,
	})

	for _, rec := range records {
		if err = writeLine(w, rec); err != nil {
			break
		}
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, s.Path(sess.ID))
}

func writeLine(w io.Writer, record JSONLRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Load reads a session back from disk.
func (s *FileStore) Load(id string) (*Session, error) {
	return LoadFile(s.Path(id))
}

// Turn is one remembered exchange: the request and the response that ended
// its session.
type Turn struct {
	Request  string
	Response string
}

// List loads every transcript in the store, oldest first. Files that cannot
// be parsed are skipped.
func (s *FileStore) List() ([]*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}
	var sessions []*Session
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		sess, err := LoadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// RecentTurns returns up to limit exchanges from the most recent finished or
// exhausted sessions, oldest first. Failed, cancelled and still-running
// sessions contribute nothing.
func (s *FileStore) RecentTurns(limit int) ([]Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	sessions, err := s.List()
	if err != nil {
		return nil, err
	}
	var turns []Turn
	for i := len(sessions) - 1; i >= 0 && len(turns) < limit; i-- {
		sess := sessions[i]
		if sess.Status != StatusFinished && sess.Status != StatusExhausted {
			continue
		}
		turns = append(turns, Turn{Request: sess.Request, Response: sess.Result})
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// LoadFile reads a transcript from an explicit path.
func LoadFile(path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sess := &Session{Events: []Event{}}
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			if perr := parseLine(bytes.TrimSpace(line), sess); perr != nil {
				return nil, perr
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading JSONL: %w", err)
		}
	}

	if len(sess.Events) > 0 {
		sess.seqCounter = sess.Events[len(sess.Events)-1].SeqID
	}
	return sess, nil
}

func parseLine(line []byte, sess *Session) error {
	var record JSONLRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return fmt.Errorf("failed to parse JSONL line: %w", err)
	}
	switch record.RecordType {
	case RecordTypeHeader:
		sess.ID = record.ID
		sess.Request = record.Request
		sess.CreatedAt = record.CreatedAt
	case RecordTypeEvent:
		if record.Event != nil {
			sess.Events = append(sess.Events, *record.Event)
		}
	case RecordTypeFooter:
		sess.Status = record.Status
		sess.Result = record.Result
		sess.Error = record.Failure
		sess.UpdatedAt = record.UpdatedAt
	}
	return nil
}

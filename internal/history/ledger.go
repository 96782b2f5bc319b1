// Package history keeps the capped ledger of past dispatch attempts and the
// exact payloads that produced them, so any attempt can be retried verbatim.
package history

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/memoir/internal/dispatch"
	"github.com/jackzampolin/memoir/internal/types"
)

// DefaultLimit is the number of entries kept when no limit is configured.
const DefaultLimit = 10

// ErrNotFound is returned for an unknown or evicted entry id.
var ErrNotFound = errors.New("history entry not found")

// Status is the recorded state of a dispatch attempt.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Entry is one dispatch attempt.
type Entry struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	SubjectTitle string           `json:"subject_title"`
	Kind         types.Kind       `json:"kind"`
	Status       Status           `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Payload      dispatch.Request `json:"payload"`
	RetryCount   int              `json:"retry_count"`
}

// StatusFor maps a dispatch outcome to a ledger status. Video the client gave
// up on is pending because the engine may still finish.
func StatusFor(kind types.Kind, err error) Status {
	switch {
	case err == nil:
		return StatusComplete
	case kind == types.KindVideo && dispatch.MayStillSucceed(err):
		return StatusPending
	default:
		return StatusError
	}
}

// Config configures a Ledger.
type Config struct {
	Limit  int
	Logger *slog.Logger
}

// Ledger is a FIFO-capped list of entries, newest first. Eviction ignores
// status: a pending entry is dropped like any other once it is the oldest.
type Ledger struct {
	mu      sync.RWMutex
	entries []Entry
	limit   int
	logger  *slog.Logger
}

// New creates an empty ledger.
func New(cfg Config) *Ledger {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Ledger{limit: cfg.Limit, logger: cfg.Logger}
}

// Record appends an entry for a finished dispatch and returns it.
func (l *Ledger) Record(kind types.Kind, subjectTitle string, payload dispatch.Request, err error) Entry {
	entry := Entry{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		SubjectTitle: subjectTitle,
		Kind:         kind,
		Status:       StatusFor(kind, err),
		Payload:      payload,
	}
	if err != nil {
		entry.ErrorMessage = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]Entry, 0, l.limit)
	next = append(next, entry)
	next = append(next, l.entries...)
	if len(next) > l.limit {
		for _, dropped := range next[l.limit:] {
			l.logger.Debug("history entry evicted", "entry_id", dropped.ID, "status", dropped.Status)
		}
		next = next[:l.limit]
	}
	l.entries = next

	l.logger.Info("history entry recorded", "entry_id", entry.ID, "kind", kind, "status", entry.Status)
	return entry
}

// BeginRetry marks entry id as pending and bumps its retry count.
// The returned entry's Payload is the one to resend.
func (l *Ledger) BeginRetry(id string) (Entry, error) {
	return l.update(id, func(e *Entry) {
		e.RetryCount++
		e.Status = StatusPending
		e.ErrorMessage = ""
	})
}

// FinishRetry overwrites entry id's status with the retry outcome.
// The entry keeps its position; a retry never adds an entry.
func (l *Ledger) FinishRetry(id string, err error) (Entry, error) {
	return l.update(id, func(e *Entry) {
		e.Status = StatusFor(e.Kind, err)
		e.ErrorMessage = ""
		if err != nil {
			e.ErrorMessage = err.Error()
		}
	})
}

func (l *Ledger) update(id string, apply func(*Entry)) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, entry := range l.entries {
		if entry.ID != id {
			continue
		}
		apply(&entry)
		next := make([]Entry, len(l.entries))
		copy(next, l.entries)
		next[i] = entry
		l.entries = next
		return entry, nil
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Get returns entry id.
func (l *Ledger) Get(id string) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, entry := range l.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Entries returns a copy of the ledger, newest first.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Entry(nil), l.entries...)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Restore replaces the ledger with previously persisted entries.
// Entries beyond the limit are dropped from the oldest end.
func (l *Ledger) Restore(entries []Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(entries) > l.limit {
		entries = entries[:l.limit]
	}
	l.entries = append([]Entry(nil), entries...)
}

// SetLimit changes the cap, evicting the oldest entries if needed.
func (l *Ledger) SetLimit(limit int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limit = limit
	if len(l.entries) > limit {
		l.entries = append([]Entry(nil), l.entries[:limit]...)
	}
}

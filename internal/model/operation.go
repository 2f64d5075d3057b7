package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewTraceID mints a fresh Operation trace id (§3).
func NewTraceID() string {
	return uuid.NewString()
}

// LogEntry is one line of an Operation's append-only log. ID is a
// ULID rather than a bare timestamp so that the /library/operation
// poll endpoint's "ticks" cursor (see SPEC_FULL.md) can do a cheap
// lexical comparison instead of parsing and comparing timestamps.
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

func newLogEntry(message string) LogEntry {
	now := time.Now()
	// DefaultEntropy is monotonic within a millisecond, so entries
	// logged in quick succession still sort in the order they were made.
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return LogEntry{ID: id.String(), Timestamp: now, Message: message}
}

// Operation is a unit of orchestrated work, addressable by trace id
// and pollable while it remains in the process-wide Operations map
// (§3). Its log buffer has its own mutex, separate from the
// registry's, so appending a line never takes the registry lock.
type Operation struct {
	TraceID                 string          `json:"trace_id"`
	Status                  OperationStatus `json:"status"`
	Message                 string          `json:"message"`
	StartedAt               time.Time       `json:"started_at"`
	EndedAt                 *time.Time      `json:"ended_at,omitempty"`
	WaitBeforeNextOperation *time.Duration  `json:"wait_before_next_operation,omitempty"`
	WaitBeforeNextTrace     *time.Duration  `json:"wait_before_next_trace,omitempty"`

	logMu sync.Mutex
	logs  []LogEntry
}

// NewOperation creates a fresh Ongoing Operation with its own trace id.
func NewOperation() *Operation {
	return &Operation{
		TraceID:   NewTraceID(),
		Status:    StatusOngoing,
		StartedAt: time.Now(),
	}
}

// Log appends a timestamped line to the Operation's log buffer.
func (o *Operation) Log(message string) LogEntry {
	entry := newLogEntry(message)
	o.logMu.Lock()
	o.logs = append(o.logs, entry)
	o.logMu.Unlock()
	return entry
}

// Logs returns a snapshot of the Operation's log buffer. If sinceID
// is non-empty, only entries whose ID sorts at or after sinceID are
// returned (the "ticks" cursor).
func (o *Operation) Logs(sinceID string) []LogEntry {
	o.logMu.Lock()
	defer o.logMu.Unlock()
	if sinceID == "" {
		out := make([]LogEntry, len(o.logs))
		copy(out, o.logs)
		return out
	}
	var out []LogEntry
	for _, entry := range o.logs {
		if entry.ID >= sinceID {
			out = append(out, entry)
		}
	}
	return out
}

// Finish transitions the Operation to a terminal status. Identity
// (TraceID) is preserved so callers already holding a pointer to this
// Operation see the final state without a lookup.
func (o *Operation) Finish(status OperationStatus, message string) {
	o.Status = status
	o.Message = message
	now := time.Now()
	o.EndedAt = &now
}

// IsTerminal reports whether the Operation has finished (any
// non-Ongoing status).
func (o *Operation) IsTerminal() bool {
	return o.Status != StatusOngoing
}

// Equal implements identity-by-trace-id equality (§3).
func (o *Operation) Equal(other *Operation) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.TraceID == other.TraceID
}

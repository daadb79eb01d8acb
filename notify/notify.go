// Package notify collects the warnings and informational events a
// decode or encode pass produces alongside its result. Recoverable
// trouble (a skipped object, a dangling reference, a tolerated checksum
// mismatch) lands here instead of aborting the pass; hard failures are
// returned as errors and mirrored into the log with SeverityError.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	json "github.com/goccy/go-json"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Code classifies an event for programmatic filtering.
type Code string

const (
	CodeChecksumMismatch  Code = "checksum-mismatch"
	CodeDanglingReference Code = "dangling-reference"
	CodeUnknownObjectType Code = "unknown-object-type"
	CodeDuplicateHandle   Code = "duplicate-handle"
	CodeFieldDropped      Code = "field-dropped"
	CodeSectionMissing    Code = "section-missing"
	CodeMalformedSection  Code = "malformed-section"
	CodeDecodeFailed      Code = "decode-failed"
	CodeEncodeFailed      Code = "encode-failed"
)

// Event is one diagnostic observation. Handle is zero and Section empty
// when the event is not scoped to an object or a section.
type Event struct {
	Severity Severity `json:"severity"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	Handle   uint64   `json:"handle,omitempty"`
	Section  string   `json:"section,omitempty"`
	Err      error    `json:"-"`
}

func (e Event) String() string {
	s := fmt.Sprintf("%s [%s] %s", e.Severity, e.Code, e.Message)
	if e.Handle != 0 {
		s += fmt.Sprintf(" (handle %X)", e.Handle)
	}
	if e.Section != "" {
		s += fmt.Sprintf(" (section %s)", e.Section)
	}
	return s
}

// Sink receives events as they are recorded. Implementations must be
// safe for concurrent use; the extraction phase emits from several
// goroutines when workers are configured.
type Sink interface {
	Emit(Event)
}

// Log is an ordered accumulation of events. The zero value is ready to
// use. All methods are safe for concurrent use.
type Log struct {
	mu     sync.Mutex
	events []Event
	sink   Sink
}

// NewLog returns a log that additionally forwards every event to sink.
// A nil sink is allowed.
func NewLog(sink Sink) *Log {
	return &Log{sink: sink}
}

func (l *Log) Add(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	sink := l.sink
	l.mu.Unlock()
	if sink != nil {
		sink.Emit(e)
	}
}

func (l *Log) Info(code Code, format string, args ...any) {
	l.Add(Event{Severity: SeverityInfo, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (l *Log) Warn(code Code, format string, args ...any) {
	l.Add(Event{Severity: SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Error records the event accompanying a returned hard failure.
func (l *Log) Error(code Code, err error, format string, args ...any) {
	l.Add(Event{Severity: SeverityError, Code: code, Message: fmt.Sprintf(format, args...), Err: err})
}

// Events returns a copy of the recorded events in order.
func (l *Log) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Warnings returns the recorded events of SeverityWarning or higher.
func (l *Log) Warnings() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Severity >= SeverityWarning {
			out = append(out, e)
		}
	}
	return out
}

func (l *Log) HasWarnings() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.Severity >= SeverityWarning {
			return true
		}
	}
	return false
}

// Filter returns the recorded events carrying the given code.
func (l *Log) Filter(code Code) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, e := range l.events {
		if e.Code == code {
			out = append(out, e)
		}
	}
	return out
}

// WriteJSON dumps the log as a JSON array, one object per event.
func (l *Log) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l.Events())
}

// SlogSink bridges events to a structured logger. Warnings map to
// slog's Warn level, errors to Error, everything else to Info.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(e Event) {
	if s.Logger == nil {
		return
	}
	attrs := []any{slog.String("code", string(e.Code))}
	if e.Handle != 0 {
		attrs = append(attrs, slog.String("handle", fmt.Sprintf("%X", e.Handle)))
	}
	if e.Section != "" {
		attrs = append(attrs, slog.String("section", e.Section))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.Any("err", e.Err))
	}
	switch e.Severity {
	case SeverityWarning:
		s.Logger.Warn(e.Message, attrs...)
	case SeverityError:
		s.Logger.Error(e.Message, attrs...)
	default:
		s.Logger.Info(e.Message, attrs...)
	}
}

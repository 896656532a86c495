package logging

// audit.go implements the audit trail: an append-only text stream with one
// line per table operation.
//
// Line format:
//
//	IDRUN=<int>, Operazione=<name>, Stato=<OK|VUOTO>, <key=value...>, Data=<YYYY-MM-DD HH:MM:SS>
//
// Stato is omitted when an event carries no status. Data is the wall-clock
// time at which the line was written.

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// AuditTimeLayout is the layout of the trailing Data field.
const AuditTimeLayout = "2006-01-02 15:04:05"

// Audit statuses.
const (
	StatusOK    = "OK"
	StatusEmpty = "VUOTO"
)

// AuditField is one key=value pair of an audit line. Keys may contain spaces.
type AuditField struct {
	Key   string
	Value any
}

// AuditEvent describes one audited operation.
type AuditEvent struct {
	RunID     int
	Operation string
	Status    string // optional
	Fields    []AuditField
}

// AuditLog writes audit events to a sink. A nil *AuditLog discards events.
// Safe for concurrent use.
type AuditLog struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time
}

// OpenAuditLog opens (or creates) the audit file at path in append mode.
// The caller owns the returned log and must Close it at shutdown.
func OpenAuditLog(path string) (*AuditLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	return &AuditLog{w: f, closer: f, now: time.Now}, nil
}

// NewAuditLog wraps an arbitrary writer. Close does not close w.
func NewAuditLog(w io.Writer) *AuditLog {
	return &AuditLog{w: w, now: time.Now}
}

// WithClock replaces the clock used for the Data field.
func (a *AuditLog) WithClock(now func() time.Time) *AuditLog {
	if a != nil && now != nil {
		a.mu.Lock()
		a.now = now
		a.mu.Unlock()
	}
	return a
}

// Log appends one event.
func (a *AuditLog) Log(e AuditEvent) error {
	if a == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.w == nil {
		return fmt.Errorf("audit log is closed")
	}

	line := FormatAuditEvent(e, a.now())
	if _, err := io.WriteString(a.w, line+"\n"); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// Close flushes and releases the sink. Further Log calls fail.
func (a *AuditLog) Close() error {
	if a == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if f, ok := a.w.(*os.File); ok {
		err = f.Sync()
	}
	if a.closer != nil {
		if cerr := a.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	a.w = nil
	a.closer = nil
	return err
}

// FormatAuditEvent renders e as a single audit line (without newline).
func FormatAuditEvent(e AuditEvent, at time.Time) string {
	parts := make([]string, 0, len(e.Fields)+4)
	parts = append(parts,
		fmt.Sprintf("IDRUN=%d", e.RunID),
		"Operazione="+e.Operation,
	)
	if e.Status != "" {
		parts = append(parts, "Stato="+e.Status)
	}
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Key, f.Value))
	}
	parts = append(parts, "Data="+at.Format(AuditTimeLayout))
	return strings.Join(parts, ", ")
}

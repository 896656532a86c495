package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JonMunkholm/dipendenti/internal/logging"
	"github.com/google/uuid"
)

// DefaultShowLimit is the number of rows Show renders by default.
const DefaultShowLimit = 20

// SessionOptions configures a Session. Zero values select defaults.
type SessionOptions struct {
	Audit     *logging.AuditLog // Audit trail sink; nil discards events
	Logger    *slog.Logger      // Diagnostic logger; defaults to slog.Default()
	Now       func() time.Time  // Clock for DINS stamps; defaults to time.Now
	ShowLimit int               // Rows rendered by Show
	Validator *RowValidator     // Predicates; defaults to DefaultValidator()

	MaxConcurrentRuns int           // Parallel Process calls allowed through Limiter
	MaxWait           time.Duration // How long Process waits for a slot
}

// Session is the process-wide execution context for ingestion and
// classification. Create it once at startup and Close it at shutdown;
// Close flushes the audit trail.
type Session struct {
	id        uuid.UUID
	audit     *logging.AuditLog
	logger    *slog.Logger
	now       func() time.Time
	showLimit int
	validator *RowValidator
	limiter   *RunLimiter
}

// NewSession creates a session.
func NewSession(opts SessionOptions) *Session {
	id := uuid.New()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	showLimit := opts.ShowLimit
	if showLimit <= 0 {
		showLimit = DefaultShowLimit
	}
	validator := opts.Validator
	if validator == nil {
		validator = DefaultValidator()
	}

	return &Session{
		id:        id,
		audit:     opts.Audit,
		logger:    logger.With("session_id", id.String()),
		now:       now,
		showLimit: showLimit,
		validator: validator,
		limiter:   NewRunLimiter(opts.MaxConcurrentRuns, opts.MaxWait),
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Now returns the current time under the session clock.
func (s *Session) Now() time.Time { return s.now() }

// Limiter returns the limiter bounding concurrent Process calls.
func (s *Session) Limiter() *RunLimiter { return s.limiter }

// Close releases the audit sink.
func (s *Session) Close() error {
	if err := s.audit.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// today is the current date under the session clock.
func (s *Session) today() time.Time {
	return Today(s.now())
}

// record writes an audit event, logging (not failing) on sink errors.
func (s *Session) record(e logging.AuditEvent) {
	if err := s.audit.Log(e); err != nil {
		s.logger.Warn("audit write failed", "operation", e.Operation, "idrun", e.RunID, "error", err)
	}
}

// Show renders t to w and records the operation. A nil table prints
// "DataFrame vuoto." and is recorded with status VUOTO.
func (s *Session) Show(w io.Writer, t *Table) error {
	if t == nil {
		if _, err := fmt.Fprintln(w, "DataFrame vuoto."); err != nil {
			return err
		}
		s.record(logging.AuditEvent{Operation: OpShow, Status: logging.StatusEmpty})
		return nil
	}

	if err := Render(w, t, s.showLimit); err != nil {
		return fmt.Errorf("show run %d: %w", t.RunID(), err)
	}
	s.record(logging.AuditEvent{
		RunID:     t.RunID(),
		Operation: OpShow,
		Status:    logging.StatusOK,
		Fields:    []logging.AuditField{{Key: "Righe", Value: t.Count()}},
	})
	return nil
}

// Frame hands t out for ad-hoc querying and records the access. A nil
// table is recorded with status VUOTO and returned as is.
func (s *Session) Frame(t *Table) *Table {
	if t == nil {
		s.record(logging.AuditEvent{Operation: OpFrame, Status: logging.StatusEmpty})
		return nil
	}
	s.record(logging.AuditEvent{RunID: t.RunID(), Operation: OpFrame, Status: logging.StatusOK})
	return t
}

// Process loads one source and classifies it, holding a limiter slot for
// the duration.
func (s *Session) Process(ctx context.Context, r io.Reader, source string, runID int) (*Run, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("process run %d: %w", runID, err)
	}
	defer s.limiter.Release()

	raw, err := s.LoadReader(ctx, r, source, runID)
	if err != nil {
		return nil, err
	}
	accepted, rejected, err := s.Classify(ctx, raw)
	if err != nil {
		return nil, err
	}

	return &Run{
		ID:          runID,
		Source:      source,
		Raw:         raw,
		Accepted:    accepted,
		Rejected:    rejected,
		ProcessedAt: s.now(),
	}, nil
}

package web

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/JonMunkholm/dipendenti/internal/logging"
	"github.com/JonMunkholm/dipendenti/internal/store"
	"github.com/JonMunkholm/dipendenti/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// maxMultipartMemory is the part of a multipart upload kept in memory.
const maxMultipartMemory = 32 << 20

// runSummary describes a processed run.
type runSummary struct {
	ID          int               `json:"idrun"`
	Source      string            `json:"source"`
	Total       int               `json:"total"`
	Accepted    int               `json:"accepted"`
	Rejected    int               `json:"rejected"`
	ProcessedAt time.Time         `json:"processed_at"`
	Persisted   *store.SaveResult `json:"persisted,omitempty"`
}

func newRunSummary(run *core.Run) runSummary {
	return runSummary{
		ID:          run.ID,
		Source:      run.Source,
		Total:       run.Raw.Count(),
		Accepted:    run.Accepted.Count(),
		Rejected:    run.Rejected.Count(),
		ProcessedAt: run.ProcessedAt,
	}
}

// handleListRuns lists every run of the session.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.runs.All()

	if wantsHTML(r) {
		rows := make([]templates.RunRow, len(runs))
		for i, run := range runs {
			rows[i] = templates.RunRow{
				ID:       run.ID,
				Source:   run.Source,
				Total:    run.Raw.Count(),
				Accepted: run.Accepted.Count(),
				Rejected: run.Rejected.Count(),
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.RunsPage(rows).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render failed", "error", err)
		}
		return
	}

	out := make([]runSummary, len(runs))
	for i, run := range runs {
		out[i] = newRunSummary(run)
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleCreateRun loads and classifies the uploaded CSV as a new run.
//
// The body is either the raw CSV or a multipart form with a "file" part.
// Without an {idrun} parameter the next free id is used.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var runID int
	if chi.URLParam(r, "idrun") != "" {
		id, err := runIDParam(r)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if err := s.runs.ReserveID(id); err != nil {
			s.respondError(w, r, err)
			return
		}
		runID = id
	} else {
		runID = s.runs.Reserve()
	}
	defer s.runs.Release(runID)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Runs.MaxFileSize)
	body, source, err := uploadBody(r, runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer body.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Runs.Timeout)
	defer cancel()

	logger := logging.WithFields(ctx, "idrun", runID, "source", source)
	start := time.Now()

	run, err := s.session.Process(ctx, body, source, runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.runs.Add(run); err != nil {
		s.respondError(w, r, err)
		return
	}

	summary := newRunSummary(run)
	if s.store != nil {
		res, err := s.store.SaveRun(ctx, s.session.ID(), run)
		if err != nil {
			s.runs.Remove(run.ID)
			s.respondError(w, r, err)
			return
		}
		summary.Persisted = &res
	}

	logger.Info("run created",
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, r, http.StatusCreated, summary)
}

// uploadBody returns the CSV stream of r and a name for it.
func uploadBody(r *http.Request, runID int) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, "", fmt.Errorf("parse upload: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", badRequest("missing file part")
		}
		return file, header.Filename, nil
	}

	source := r.URL.Query().Get("source")
	if source == "" {
		source = fmt.Sprintf("upload-%d.csv", runID)
	}
	return r.Body, source, nil
}

// handlePreview reports how the uploaded CSV would be classified without
// registering a run.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	runID := 0
	if raw := r.URL.Query().Get("idrun"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, r, badRequest("invalid run id %q", raw))
			return
		}
		runID = id
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Runs.MaxFileSize)
	body, source, err := uploadBody(r, runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer body.Close()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Runs.Timeout)
	defer cancel()

	raw, err := s.session.LoadReader(ctx, body, source, runID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	preview, err := s.session.Preview(ctx, raw)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, preview)
}

// handleGetRun returns the summary of one run.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.lookupRun(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newRunSummary(run))
}

// handleRunTable serves one partition of a run.
func (s *Server) handleRunTable(kind tableKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := s.lookupRun(r)
		if err != nil {
			s.respondError(w, r, err)
			return
		}

		t := run.Accepted
		if kind == kindRejected {
			t = run.Rejected
		}
		if t, err = query(r, t, kind); err != nil {
			s.respondError(w, r, err)
			return
		}

		s.respondTable(w, r, fmt.Sprintf("Run %d: %s", run.ID, kind), t)
	}
}

// handleUnion serves the union of one partition across every run.
func (s *Server) handleUnion(kind tableKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			t   *core.Table
			err error
		)
		if kind == kindAccepted {
			t, err = s.runs.AcceptedUnion()
		} else {
			t, err = s.runs.RejectedUnion()
		}
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if t, err = query(r, t, kind); err != nil {
			s.respondError(w, r, err)
			return
		}

		s.respondTable(w, r, "All runs: "+kind.String(), t)
	}
}

func (s *Server) lookupRun(r *http.Request) (*core.Run, error) {
	id, err := runIDParam(r)
	if err != nil {
		return nil, err
	}
	run, ok := s.runs.Get(id)
	if !ok {
		return nil, fmt.Errorf("run %d: %w", id, core.ErrRunNotFound)
	}
	return run, nil
}

// healthResponse reports the server state.
type healthResponse struct {
	Status    string                `json:"status"`
	SessionID string                `json:"session_id"`
	Runs      int                   `json:"runs"`
	Limiter   core.RunLimiterStatus `json:"limiter"`
	Store     *store.Stats          `json:"store,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// handleHealth reports liveness plus storage reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		SessionID: s.session.ID().String(),
		Runs:      s.runs.Count(),
		Limiter:   s.session.Limiter().Status(),
	}

	status := http.StatusOK
	if s.store != nil {
		stats, err := s.store.Stats(r.Context())
		if err != nil {
			logging.FromContext(r.Context()).Warn("store unreachable", "error", err)
			resp.Status = "degraded"
			resp.Error = core.MapError(err).Message
			status = http.StatusServiceUnavailable
		} else {
			resp.Store = &stats
		}
	}

	writeJSON(w, r, status, resp)
}

// Package api serves the operator HTTP API over the import queue.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/place-import/internal/model"
	"github.com/sells-group/place-import/internal/photos"
	"github.com/sells-group/place-import/internal/pipeline"
	"github.com/sells-group/place-import/internal/queue"
	"github.com/sells-group/place-import/internal/source"
)

// Candidater lists resolver candidates for an item.
type Candidater interface {
	Candidates(ctx context.Context, index int) ([]model.PlaceCandidate, error)
}

// ApproveService completes ready items.
type ApproveService interface {
	Approve(ctx context.Context, index int, sel model.OperatorSelections, dryRun bool, progress photos.ProgressFunc) (*model.CatalogRecord, error)
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	machine    *queue.Machine
	candidates Candidater
	approver   ApproveService
	metrics    http.Handler
	origins    []string
	wake       func()
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithAllowedOrigins sets the CORS origins. The default allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithWake sets the function called after any action that may let the
// orchestrator make progress.
func WithWake(fn func()) Option {
	return func(s *Server) { s.wake = fn }
}

// NewServer creates a Server.
func NewServer(m *queue.Machine, candidates Candidater, approver ApproveService, opts ...Option) *Server {
	s := &Server{
		machine:    m,
		candidates: candidates,
		approver:   approver,
		origins:    []string{"*"},
		wake:       func() {},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}),
		chimiddleware.RequestID,
		requestLogger,
		chimiddleware.Recoverer,
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.getState)
		r.Post("/batch", s.loadBatch)
		r.Post("/reset", s.reset)
		r.Post("/processing/pause", s.setProcessing(false))
		r.Post("/processing/resume", s.setProcessing(true))
		r.Get("/report", s.report)

		r.Route("/items/{index}", func(r chi.Router) {
			r.Get("/", s.getItem)
			r.Get("/candidates", s.listCandidates)
			r.Post("/approve", s.approve)
			r.Post("/skip", s.skip)
			r.Post("/retry", s.retry)
			r.Post("/review", s.review)
		})
	})
	return r
}

func (s *Server) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.machine.State())
}

type loadResponse struct {
	Shape   source.Shape      `json:"shape"`
	Loaded  int               `json:"loaded"`
	Skipped int               `json:"skipped"`
	Errors  []source.RowError `json:"errors"`
}

// loadBatch replaces the session with rows from a CSV request body. The
// delimiter and comment query parameters select a non-default dialect.
func (s *Server) loadBatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := source.ParseCSVOptions(q.Get("delimiter"), q.Get("comment"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := source.ReadCSV(r.Context(), http.MaxBytesReader(w, r.Body, 10<<20), opts)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := s.machine.Dispatch(r.Context(), queue.LoadBatch{Rows: res.Rows}); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	errs := res.Errors
	if errs == nil {
		errs = []source.RowError{}
	}
	writeJSON(w, http.StatusOK, loadResponse{
		Shape:   res.Shape,
		Loaded:  len(res.Rows),
		Skipped: res.Skipped,
		Errors:  errs,
	})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, queue.Reset{})
}

func (s *Server) setProcessing(on bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, queue.SetProcessing{On: on})
	}
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	rows := pipeline.BuildReport(s.machine.State())
	name := "import-report-" + time.Now().UTC().Format("20060102-150405")

	var err error
	switch r.URL.Query().Get("format") {
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.xlsx"`)
		err = pipeline.WriteReportXLSX(w, rows)
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`.csv"`)
		err = pipeline.WriteReportCSV(w, rows)
	default:
		writeError(w, http.StatusBadRequest, errors.New("format must be csv or xlsx"))
		return
	}
	if err != nil {
		zap.L().Error("api: write report", zap.Error(err))
	}
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.index(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.machine.State().Items[idx])
}

func (s *Server) listCandidates(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.index(w, r)
	if !ok {
		return
	}
	candidates, err := s.candidates.Candidates(r.Context(), idx)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if candidates == nil {
		candidates = []model.PlaceCandidate{}
	}
	writeJSON(w, http.StatusOK, candidates)
}

type approveRequest struct {
	model.OperatorSelections
	DryRun bool `json:"dry_run"`
}

func (s *Server) approve(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.index(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if !decode(w, r, &req) {
		return
	}

	progress := func(current, total int) {
		zap.L().Debug("api: photo progress", zap.Int("index", idx), zap.Int("current", current), zap.Int("total", total))
	}
	rec, err := s.approver.Approve(r.Context(), idx, req.OperatorSelections, req.DryRun, progress)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.wake()
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) skip(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.index(w, r)
	if !ok {
		return
	}
	if err := pipeline.SkipItem(r.Context(), s.machine, idx); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.wake()
	writeJSON(w, http.StatusOK, s.machine.State())
}

func (s *Server) retry(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.index(w, r)
	if !ok {
		return
	}
	var req struct {
		PlaceID string `json:"place_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, queue.Retry{Index: idx, PlaceID: req.PlaceID})
}

func (s *Server) review(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.index(w, r)
	if !ok {
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.dispatch(w, r, queue.MarkReview{Index: idx, Note: req.Note})
}

// dispatch applies a, wakes the orchestrator and writes the new state.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, a queue.Action) {
	st, err := s.machine.Dispatch(r.Context(), a)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.wake()
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("index must be an integer"))
		return 0, false
	}
	if n := len(s.machine.State().Items); idx < 0 || idx >= n {
		writeError(w, http.StatusNotFound, queue.ErrIndexOutOfRange)
		return 0, false
	}
	return idx, true
}

// decode reads an optional JSON body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, queue.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrInvalidTransition), errors.Is(err, queue.ErrStaleSession):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrIncompleteSelections):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// requestLogger logs each request once it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		switch {
		case ww.Status() >= 500:
			zap.L().Error("api: request completed", fields...)
		case ww.Status() >= 400:
			zap.L().Warn("api: request completed", fields...)
		default:
			zap.L().Debug("api: request completed", fields...)
		}
	})
}

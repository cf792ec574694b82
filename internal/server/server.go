// Package server exposes a compiled job over HTTP.
//
//	POST /transform       CSV body in, transformed CSV out
//	POST /transform.json  CSV body in, {run_id, columns, records, decode_errors, stats} out
//	GET  /healthz         liveness
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"csvtransform/internal/job"
	"csvtransform/internal/logging"
	"csvtransform/pkg/csvtransform"
	"csvtransform/pkg/records"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultMaxBodyBytes caps request bodies when Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 32 << 20

// Options configures a Server.
type Options struct {
	// MaxBodyBytes limits the CSV body size.
	MaxBodyBytes int64
	Logger       logrus.FieldLogger
}

// Server is the HTTP front end for one job.
type Server struct {
	plan    *job.Plan
	log     logrus.FieldLogger
	maxBody int64
	router  *chi.Mux
	server  *http.Server
}

// New creates a Server for plan.
func New(plan *job.Plan, opts Options) *Server {
	s := &Server{
		plan:    plan,
		log:     opts.Logger,
		maxBody: opts.MaxBodyBytes,
		router:  chi.NewRouter(),
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/transform", s.handleTransform)
	s.router.Post("/transform.json", s.handleTransformJSON)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithFields(logrus.Fields{"addr": addr, "job": s.plan.Name}).Info("server listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// requestLogger logs one line per request with its status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.FromContext(r.Context(), s.log).WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).Truncate(time.Microsecond),
		}).Info("http request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	runID, res, ok := s.run(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("X-Run-ID", runID)
	_, _ = io.WriteString(w, res.Text)
}

// DecodeError is the JSON form of a decode problem.
type DecodeError struct {
	Line    int    `json:"line"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stats is the JSON form of csvtransform.Stats.
type Stats struct {
	Decoded      int   `json:"decoded"`
	Emitted      int   `json:"emitted"`
	DecodeErrors int   `json:"decode_errors"`
	DurationMS   int64 `json:"duration_ms"`
}

// TransformResponse is the body of POST /transform.json. Records hold only
// the final columns, in order.
type TransformResponse struct {
	RunID        string            `json:"run_id"`
	Columns      []string          `json:"columns"`
	Records      []*records.Record `json:"records"`
	DecodeErrors []DecodeError     `json:"decode_errors"`
	Stats        Stats             `json:"stats"`
}

func (s *Server) handleTransformJSON(w http.ResponseWriter, r *http.Request) {
	runID, res, ok := s.run(w, r)
	if !ok {
		return
	}
	w.Header().Set("X-Run-ID", runID)
	writeJSON(w, s.log, newTransformResponse(runID, res))
}

func newTransformResponse(runID string, res *csvtransform.Result) TransformResponse {
	resp := TransformResponse{
		RunID:        runID,
		Columns:      res.Columns,
		Records:      make([]*records.Record, len(res.Records)),
		DecodeErrors: make([]DecodeError, len(res.DecodeErrors)),
		Stats: Stats{
			Decoded:      res.Stats.Decoded,
			Emitted:      res.Stats.Emitted,
			DecodeErrors: res.Stats.DecodeErrors,
			DurationMS:   res.Stats.Duration.Milliseconds(),
		},
	}
	if resp.Columns == nil {
		resp.Columns = []string{}
	}
	for i, rec := range res.Records {
		out := records.New()
		for _, c := range res.Columns {
			out.Set(c, rec.String(c))
		}
		resp.Records[i] = out
	}
	for i, e := range res.DecodeErrors {
		resp.DecodeErrors[i] = DecodeError{Line: e.Line, Code: e.Code, Message: e.Message}
	}
	return resp
}

// run reads the CSV body and runs the job on it. On failure it has already
// written the error response.
func (s *Server) run(w http.ResponseWriter, r *http.Request) (string, *csvtransform.Result, bool) {
	runID := uuid.NewString()
	log := logging.FromContext(r.Context(), s.log).WithField("run_id", runID)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, log, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return "", nil, false
		}
		writeError(w, log, http.StatusBadRequest, "read body: "+err.Error())
		return "", nil, false
	}

	res, err := s.plan.Run(string(body), log)
	if err != nil {
		var rowErr *csvtransform.RowError
		if errors.As(err, &rowErr) {
			writeError(w, log, http.StatusUnprocessableEntity, err.Error())
			return "", nil, false
		}
		writeError(w, log, http.StatusInternalServerError, err.Error())
		return "", nil, false
	}
	log.WithFields(logrus.Fields{
		"decoded": res.Stats.Decoded,
		"emitted": res.Stats.Emitted,
	}).Debug("transform completed")
	return runID, res, true
}

// writeError writes a JSON error body and logs it.
func writeError(w http.ResponseWriter, log logrus.FieldLogger, status int, message string) {
	log.WithField("status", status).Warn(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, log logrus.FieldLogger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("json encode error")
	}
}

// Package server exposes the aggregation views over HTTP. Routing uses
// method and wildcard patterns on the standard mux; every response is
// JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"appboard/internal/aggregate"
	"appboard/internal/domain"
)

const (
	defaultRange           = "24h"
	defaultProjectionRange = "30d"
	shutdownTimeout        = 10 * time.Second
)

// Server wires HTTP endpoints to the aggregation service.
type Server struct {
	mux    *http.ServeMux
	svc    *aggregate.Service
	logger *slog.Logger
}

// New assembles the routes.
func New(svc *aggregate.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mux:    http.NewServeMux(),
		svc:    svc,
		logger: logger,
	}
	s.register()
	return s
}

// ServeHTTP delegates to the underlying mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.mux.ServeHTTP(w, req)
}

func (s *Server) register() {
	s.mux.HandleFunc("GET /healthz", s.audit(s.handleHealthz))
	s.mux.HandleFunc("GET /api/apps", s.audit(s.handleApps))
	s.mux.HandleFunc("GET /api/apps/{app}/summary", s.audit(s.handleSummary))
	s.mux.HandleFunc("GET /api/apps/{app}/series/{domain}", s.audit(s.handleSeries))
	s.mux.HandleFunc("GET /api/apps/{app}/breakdown/{domain}", s.audit(s.handleBreakdown))
	s.mux.HandleFunc("GET /api/apps/{app}/projection", s.audit(s.handleProjection))
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

type appInfo struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Domains []domain.Domain `json:"domains"`
}

func (s *Server) handleApps(w http.ResponseWriter, req *http.Request) {
	profiles := s.svc.Applications()
	apps := make([]appInfo, len(profiles))
	for i, p := range profiles {
		apps[i] = appInfo{ID: p.ID, Name: p.Name, Domains: p.Domains()}
	}
	writeJSON(w, http.StatusOK, map[string]any{"apps": apps})
}

func (s *Server) handleSummary(w http.ResponseWriter, req *http.Request) {
	snap, err := s.svc.GetAggregatedSnapshot(req.Context(), req.PathValue("app"), rangeParam(req, defaultRange))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSeries(w http.ResponseWriter, req *http.Request) {
	d, err := domain.ParseDomain(req.PathValue("domain"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.svc.GetTimeSeries(req.Context(), req.PathValue("app"), d, rangeParam(req, defaultRange))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, req *http.Request) {
	d, err := domain.ParseDomain(req.PathValue("domain"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.svc.GetBreakdown(req.Context(), req.PathValue("app"), d, rangeParam(req, defaultRange))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleProjection(w http.ResponseWriter, req *http.Request) {
	view, err := s.svc.GetProjection(req.Context(), req.PathValue("app"), rangeParam(req, defaultProjectionRange))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHealthz(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func rangeParam(req *http.Request, fallback string) string {
	if v := req.URL.Query().Get("range"); v != "" {
		return v
	}
	return fallback
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownApplication):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// audit logs one line per request with the response status and timing.
func (s *Server) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			s.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			s.logger.Warn("http_request", fields...)
		default:
			s.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// writeJSON writes a JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Package api implements the Recap HTTP API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nugget/recap/internal/buildinfo"
	"github.com/nugget/recap/internal/connwatch"
	"github.com/nugget/recap/internal/llm"
	"github.com/nugget/recap/internal/recap"
	"github.com/nugget/recap/internal/session"
	"github.com/nugget/recap/internal/usage"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Service is the recap pipeline as the API uses it. *recap.Service
// implements it.
type Service interface {
	Summarize(ctx context.Context, req recap.SummaryRequest) (*recap.Summary, error)
	VideoInfo(ctx context.Context, rawURL string) (recap.Info, error)
	Ask(ctx context.Context, conv *recap.Conversation, rawURL, question string, callback llm.StreamCallback) (*recap.Answer, error)
}

// HealthReporter reports the last known state of each model backend.
// *connwatch.Manager implements it.
type HealthReporter interface {
	Status() map[string]connwatch.Status
}

// UsageReporter aggregates recorded token usage. *usage.Store
// implements it.
type UsageReporter interface {
	Report(ctx context.Context, start, end time.Time) (*usage.Report, error)
}

// Server is the HTTP API server.
type Server struct {
	address  string
	port     int
	svc      Service
	sessions *session.Store[recap.Conversation]
	health   HealthReporter
	usage    UsageReporter
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates a new API server.
func NewServer(address string, port int, svc Service, sessions *session.Store[recap.Conversation], logger *slog.Logger) *Server {
	return &Server{
		address:  address,
		port:     port,
		svc:      svc,
		sessions: sessions,
		logger:   logger,
	}
}

// SetHealth configures the backend states reported by GET /health.
func (s *Server) SetHealth(h HealthReporter) {
	s.health = h
}

// SetUsage enables GET /v1/usage.
func (s *Server) SetUsage(u UsageReporter) {
	s.usage = u
}

// Handler returns the routed handler, wrapped with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Sessions
	mux.HandleFunc("POST /v1/sessions", s.handleSessionCreate)
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleSessionDelete)

	// Video endpoints
	mux.HandleFunc("POST /v1/summarize", s.handleSummarize)
	mux.HandleFunc("POST /v1/video_info", s.handleVideoInfo)
	mux.HandleFunc("POST /v1/qa", s.handleQA)
	mux.HandleFunc("GET /v1/qa/stream", s.handleQAStream)

	// Health endpoints
	mux.HandleFunc("GET /v1/usage", s.handleUsage)
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.withLogging(mux)
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      10 * time.Minute, // map-reduce summaries of long videos
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if s.logger.Enabled(r.Context(), llm.LevelTrace) && r.Body != nil {
			if body, err := captureBody(r); err == nil && len(body) > 0 {
				s.logger.Log(r.Context(), llm.LevelTrace, "request body", "path", r.URL.Path, "body", string(body))
			}
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "Recap",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "healthy",
		"sessions": s.sessions.Len(),
	}
	code := http.StatusOK
	if s.health != nil {
		backends := s.health.Status()
		for _, st := range backends {
			if !st.Ready {
				resp["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		resp["backends"] = backends
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, resp, s.logger)
}

// defaultUsageWindow is the report window when ?window is absent.
const defaultUsageWindow = 24 * time.Hour

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		s.errorResponse(w, http.StatusNotFound, "usage tracking is disabled (no data_dir)")
		return
	}
	window := defaultUsageWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			s.errorResponse(w, http.StatusBadRequest, "window must be a positive duration such as 24h")
			return
		}
		window = d
	}

	end := time.Now()
	rep, err := s.usage.Report(r.Context(), end.Add(-window), end)
	if err != nil {
		s.logger.Error("usage report failed", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "usage report failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, rep, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    errorType(code),
			"code":    code,
		},
	}, s.logger)
}

func errorType(code int) string {
	switch {
	case code == http.StatusNotFound:
		return "not_found_error"
	case code == http.StatusUnprocessableEntity:
		return "unprocessable_video_error"
	case code < 500:
		return "invalid_request_error"
	default:
		return "upstream_error"
	}
}

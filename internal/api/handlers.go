package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nugget/recap/internal/align"
	"github.com/nugget/recap/internal/chapters"
	"github.com/nugget/recap/internal/httpkit"
	"github.com/nugget/recap/internal/media"
	"github.com/nugget/recap/internal/prompts"
	"github.com/nugget/recap/internal/recap"
	"github.com/nugget/recap/internal/retrieval"
	"github.com/nugget/recap/internal/session"
	"github.com/nugget/recap/internal/timecode"
	"github.com/nugget/recap/internal/usage"
)

// maxRequestBytes bounds JSON request bodies.
const maxRequestBytes = 1 << 20

// SummarizeRequest is the body of POST /v1/summarize.
type SummarizeRequest struct {
	URL    string `json:"url"`
	Focus  string `json:"focus,omitempty"`
	Detail string `json:"detail,omitempty"` // summary (default) or brief
	Format string `json:"format,omitempty"` // markdown (default) or html
}

// SummarizeResponse is the reply to POST /v1/summarize.
type SummarizeResponse struct {
	*recap.Summary
	HTML string `json:"html,omitempty"`
}

// VideoInfoRequest is the body of POST /v1/video_info.
type VideoInfoRequest struct {
	URL string `json:"url"`
}

// QARequest is the body of POST /v1/qa and each websocket message on
// /v1/qa/stream. SessionID is taken from the query string on the
// websocket.
type QARequest struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	Question  string `json:"question"`
}

// SessionResponse is the reply to POST /v1/sessions.
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(v); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.Create()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, SessionResponse{SessionID: id}, s.logger)
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(r.PathValue("id")) {
		s.errorResponse(w, http.StatusNotFound, session.ErrNotFound.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req SummarizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.errorResponse(w, http.StatusBadRequest, "url is required")
		return
	}
	switch req.Detail {
	case "", prompts.DetailSummary, prompts.DetailBrief:
	default:
		s.errorResponse(w, http.StatusBadRequest, "detail must be summary or brief")
		return
	}
	switch req.Format {
	case "", "markdown", "html":
	default:
		s.errorResponse(w, http.StatusBadRequest, "format must be markdown or html")
		return
	}

	sum, err := s.svc.Summarize(r.Context(), recap.SummaryRequest{
		URL:    req.URL,
		Focus:  req.Focus,
		Detail: req.Detail,
	})
	if err != nil {
		s.failure(w, "summarize", req.URL, err)
		return
	}

	resp := SummarizeResponse{Summary: sum}
	if req.Format == "html" {
		html, err := renderHTML(sum.Summary)
		if err != nil {
			s.logger.Error("markdown render failed", "url", req.URL, "error", err)
			s.errorResponse(w, http.StatusInternalServerError, "render failed")
			return
		}
		resp.HTML = html
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp, s.logger)
}

func (s *Server) handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	var req VideoInfoRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.errorResponse(w, http.StatusBadRequest, "url is required")
		return
	}

	info, err := s.svc.VideoInfo(r.Context(), req.URL)
	if err != nil {
		s.failure(w, "video info", req.URL, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, info, s.logger)
}

func (s *Server) handleQA(w http.ResponseWriter, r *http.Request) {
	var req QARequest
	if !s.decode(w, r, &req) {
		return
	}
	if msg := validateQA(req); msg != "" {
		s.errorResponse(w, http.StatusBadRequest, msg)
		return
	}

	ans, err := s.ask(r.Context(), req, nil)
	if err != nil {
		s.failure(w, "qa", req.URL, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ans, s.logger)
}

func validateQA(req QARequest) string {
	switch {
	case req.SessionID == "":
		return "session_id is required"
	case strings.TrimSpace(req.URL) == "":
		return "url is required"
	case strings.TrimSpace(req.Question) == "":
		return "question is required"
	}
	return ""
}

// ask runs one question under the session's lock.
func (s *Server) ask(ctx context.Context, req QARequest, callback func(string)) (*recap.Answer, error) {
	var ans *recap.Answer
	ctx = usage.WithSession(ctx, req.SessionID)
	err := s.sessions.With(req.SessionID, func(conv *recap.Conversation) error {
		var err error
		ans, err = s.svc.Ask(ctx, conv, req.URL, req.Question, callback)
		return err
	})
	return ans, err
}

// failure logs err and writes the matching error response.
func (s *Server) failure(w http.ResponseWriter, op, url string, err error) {
	code := statusFor(err)
	if code >= 500 {
		s.logger.Error(op+" failed", "url", url, "error", err)
	} else {
		s.logger.Warn(op+" rejected", "url", url, "status", code, "error", err)
	}
	s.errorResponse(w, code, err.Error())
}

// statusFor maps pipeline errors to HTTP status codes: a video whose
// transcript or chapters cannot be used is 422, a failing dependency is
// 502.
func statusFor(err error) int {
	var se *httpkit.StatusError
	switch {
	case errors.Is(err, chapters.ErrChapterParse),
		errors.Is(err, timecode.ErrInvalidTimeFormat),
		errors.Is(err, align.ErrEmptyTranscript),
		errors.Is(err, media.ErrNoTranscript),
		errors.Is(err, recap.ErrNoContent),
		errors.Is(err, retrieval.ErrEmptyIndex):
		return http.StatusUnprocessableEntity
	case errors.Is(err, media.ErrInvalidURL),
		errors.Is(err, recap.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, recap.ErrNoEmbedder):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &se):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

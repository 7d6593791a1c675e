package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// streamWriteTimeout bounds each websocket frame write.
const streamWriteTimeout = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Stream message types sent to the client.
const (
	msgToken  = "token"
	msgAnswer = "answer"
	msgError  = "error"
)

// streamMessage is one server-to-client websocket frame.
type streamMessage struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	Answer any    `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   int    `json:"code,omitempty"`
}

// handleQAStream answers questions over a websocket. The session is named
// by the session_id query parameter; each client message is a QARequest
// (session_id ignored). Answer tokens are sent as they are generated,
// followed by the complete answer.
func (s *Server) handleQAStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.errorResponse(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if !s.sessions.Exists(sessionID) {
		s.errorResponse(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("session_id", sessionID)
	logger.Debug("qa stream opened")

	send := func(m streamMessage) error {
		if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(m)
	}

	for {
		var req QARequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("qa stream closed")
			} else if !errors.Is(err, websocket.ErrCloseSent) {
				logger.Debug("qa stream read failed", "error", err)
			}
			return
		}
		req.SessionID = sessionID
		if msg := validateQA(req); msg != "" {
			if err := send(streamMessage{Type: msgError, Error: msg, Code: http.StatusBadRequest}); err != nil {
				return
			}
			continue
		}

		var writeErr error
		ans, err := s.ask(r.Context(), req, func(token string) {
			if writeErr == nil {
				writeErr = send(streamMessage{Type: msgToken, Token: token})
			}
		})
		if writeErr != nil {
			logger.Debug("qa stream write failed", "error", writeErr)
			return
		}
		if err != nil {
			code := statusFor(err)
			logger.Warn("qa stream question failed", "url", req.URL, "status", code, "error", err)
			if err := send(streamMessage{Type: msgError, Error: err.Error(), Code: code}); err != nil {
				return
			}
			continue
		}
		if err := send(streamMessage{Type: msgAnswer, Answer: ans}); err != nil {
			logger.Debug("qa stream write failed", "error", err)
			return
		}
	}
}

package server

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apperrors "calbot/internal/errors"
)

// wsInbound is a client frame on the session stream.
type wsInbound struct {
	Message string `json:"message"`
}

// wsOutbound is a server frame on the session stream.
type wsOutbound struct {
	Type      string   `json:"type"` // "reply" or "error"
	SessionID string   `json:"session_id,omitempty"`
	Content   string   `json:"content,omitempty"`
	ToolsUsed []string `json:"tools_used,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// handleWebSocket runs a chat conversation over a WebSocket. Each
// inbound frame is one user turn; the reply frame arrives when the
// turn completes.
func (s *Server) handleWebSocket(c *gin.Context) {
	sessionID := c.Param("id")

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()
	s.logger.Debug("WebSocket opened for session %s", sessionID)

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("WebSocket read failed for session %s: %v", sessionID, err)
			}
			return
		}
		if in.Message == "" {
			if err := conn.WriteJSON(wsOutbound{Type: "error", Error: "message is required"}); err != nil {
				return
			}
			continue
		}

		reply, err := s.agent.HandleMessage(c.Request.Context(), sessionID, in.Message)
		if err != nil {
			out := wsOutbound{Type: "error", Error: apperrors.FormatForUser(err)}
			if writeErr := conn.WriteJSON(out); writeErr != nil {
				return
			}
			continue
		}
		// First turn on an empty session ID pins the created session.
		sessionID = reply.SessionID

		out := wsOutbound{
			Type:      "reply",
			SessionID: reply.SessionID,
			Content:   reply.Content,
			ToolsUsed: reply.ToolsUsed,
		}
		if err := conn.WriteJSON(out); err != nil {
			return
		}
	}
}

package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "calbot/internal/errors"
	"calbot/internal/session"
)

// APIResponse is the envelope every JSON endpoint uses.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		chatTurnsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "message is required"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		chatTurnsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, APIResponse{Success: false, Error: "message is required"})
		return
	}

	reply, err := s.agent.HandleMessage(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		status := http.StatusBadGateway
		outcome := "upstream_permanent"
		if apperrors.IsTransient(err) {
			status = http.StatusServiceUnavailable
			outcome = "upstream_transient"
		}
		chatTurnsTotal.WithLabelValues(outcome).Inc()
		s.logger.Error("Chat turn failed: %v", err)
		c.JSON(status, APIResponse{Success: false, Error: apperrors.FormatForUser(err)})
		return
	}

	chatTurnsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: reply})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: gin.H{
		"status":   "ok",
		"uptime":   time.Since(s.startTime).String(),
		"sessions": s.sessions.Len(),
	}})
}

func (s *Server) handleGetTools(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: gin.H{
		"tools": s.registry.List(),
	}})
}

func (s *Server) handleGetMessages(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, APIResponse{Success: false, Error: "session not found"})
		return
	}

	turns := sess.Turns()
	messages := make([]session.Turn, 0, len(turns))
	for _, turn := range turns {
		// Tool plumbing stays internal; clients only see the dialogue.
		if turn.Role == "user" || (turn.Role == "assistant" && turn.Content != "") {
			messages = append(messages, turn)
		}
	}
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: gin.H{
		"session_id": sess.ID,
		"messages":   messages,
	}})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.sessions.Get(id); err != nil {
		c.JSON(http.StatusNotFound, APIResponse{Success: false, Error: "session not found"})
		return
	}
	s.sessions.Delete(id)
	c.JSON(http.StatusOK, APIResponse{Success: true})
}

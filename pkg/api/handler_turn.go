package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parietal-ai/parietal/pkg/turn"
)

// CreateTurnRequest is the request body for POST /api/turns.
type CreateTurnRequest struct {
	Message string `json:"message" binding:"required"`
}

// CreateTurn handles POST /api/turns. The response is an NDJSON stream of
// turn events, ending with the turn_end event. A turn already in flight
// yields 409.
func (s *Server) CreateTurn(c *gin.Context) {
	var req CreateTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stream, err := s.engine.RunTurn(c.Request.Context(), req.Message)
	if err != nil {
		if errors.Is(err, turn.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": "a turn is already running"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	encoder := json.NewEncoder(c.Writer)
	for ev := range stream {
		if err := encoder.Encode(ev); err != nil {
			// Client went away; drain the stream so the turn finishes.
			s.logger.Warn("Turn event stream write failed", "error", err)
			for range stream {
			}
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

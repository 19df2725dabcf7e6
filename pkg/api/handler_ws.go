package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/parietal-ai/parietal/pkg/turn"
)

const wsWriteTimeout = 10 * time.Second

// wsRequest is one client frame: a message to run as a turn.
type wsRequest struct {
	Message string `json:"message"`
}

// wsError is the frame sent when a request cannot start a turn.
type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// HandleWS upgrades GET /ws and serves turns over the socket. Each client
// frame starts one turn; the turn's events are written back as JSON frames
// in order. The connection survives busy rejections.
func (s *Server) HandleWS(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: s.allowedWSOrigins,
	})
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := c.Request.Context()
	for {
		var req wsRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}
		if req.Message == "" {
			if err := s.writeWS(ctx, conn, wsError{Type: "error", Error: "message is required"}); err != nil {
				return
			}
			continue
		}

		stream, err := s.engine.RunTurn(ctx, req.Message)
		if err != nil {
			msg := err.Error()
			if errors.Is(err, turn.ErrBusy) {
				msg = "a turn is already running"
			}
			if err := s.writeWS(ctx, conn, wsError{Type: "error", Error: msg}); err != nil {
				return
			}
			continue
		}

		for ev := range stream {
			if err := s.writeWS(ctx, conn, ev); err != nil {
				// Client went away; let the turn finish.
				for range stream {
				}
				return
			}
		}
	}
}

func (s *Server) writeWS(ctx context.Context, conn *websocket.Conn, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, raw)
}

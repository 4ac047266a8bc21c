package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/analysis"
	"github.com/abbasKakoolvand/OKR-analyze/internal/scoring"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
)

// WebSocketHandler runs scoring passes on request and streams one message
// per processed cell.
type WebSocketHandler struct {
	runner Runner
	okrs   OKRSource
}

func NewWebSocketHandler(runner Runner, okrs OKRSource) *WebSocketHandler {
	return &WebSocketHandler{
		runner: runner,
		okrs:   okrs,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string   `json:"type"`
			KRCodes []string `json:"kr_codes"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "run" {
			continue
		}

		if err := h.streamRun(c, msg.KRCodes); err != nil {
			logger.Error("Failed to stream scoring run", zap.Error(err))
			h.sendError(c, err.Error())
		}
	}
}

func (h *WebSocketHandler) streamRun(c *websocket.Conn, codes []string) error {
	krs, err := h.okrs.KeyResults()
	if err != nil {
		return err
	}
	krs, err = analysis.SelectKeyResults(krs, codes)
	if err != nil {
		return err
	}

	if err := c.WriteJSON(map[string]interface{}{"type": "status", "content": "Scoring started"}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writeErr error
	report, err := h.runner.RunAll(ctx, krs, func(res scoring.CellResult) {
		if writeErr != nil {
			return
		}
		if writeErr = c.WriteJSON(map[string]interface{}{"type": "cell", "cell": res}); writeErr != nil {
			// The client is gone; stop scoring further cells.
			cancel()
		}
	})
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":        "complete",
		"counts":      report.Counts,
		"started_at":  report.StartedAt,
		"finished_at": report.FinishedAt,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	if err := c.WriteJSON(msg); err != nil {
		logger.Debug("Failed to send WebSocket error", zap.Error(err))
	}
}

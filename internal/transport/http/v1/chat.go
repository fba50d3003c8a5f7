package v1

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/chatengine/internal/domain"
)

// Chat answers one message.
// POST /api/chat
func (h *Handler) Chat(c echo.Context) error {
	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, domain.ChatResponse{Error: "Invalid JSON"})
	}

	reply, err := h.engine.Handle(c.Request().Context(), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyMessage):
			return c.JSON(http.StatusBadRequest, domain.ChatResponse{Error: "Empty message"})
		case errors.Is(err, domain.ErrMessageTooLong):
			return c.JSON(http.StatusBadRequest, domain.ChatResponse{Error: "Message too long"})
		case domain.IsValidation(err):
			return c.JSON(http.StatusBadRequest, domain.ChatResponse{Error: err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, domain.ChatResponse{Error: "Server busy"})
		}
	}

	return c.JSON(http.StatusOK, domain.ChatResponse{OK: true, Reply: reply})
}

// History lists recent turns.
// GET /api/history?limit=30
func (h *Handler) History(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	turns := h.engine.History(limit)
	if turns == nil {
		turns = []domain.Turn{}
	}
	return c.JSON(http.StatusOK, domain.HistoryResponse{OK: true, Messages: turns})
}

// Clear wipes the transcript.
// POST /api/clear
func (h *Handler) Clear(c echo.Context) error {
	h.engine.Clear(c.Request().Context())
	return c.JSON(http.StatusOK, domain.ClearResponse{OK: true, Message: "Cleared"})
}

// Status reports the transcript size and local time.
// GET /api/status
func (h *Handler) Status(c echo.Context) error {
	status := h.engine.Status()
	local := status.NowLocal.Format(time.TimeOnly)
	return c.JSON(http.StatusOK, domain.StatusResponse{
		OK:            true,
		Status:        "online",
		MessagesCount: status.TurnCount,
		LocalTime:     local,
		VietnamTime:   local,
		PendingTasks:  status.PendingTasks,
		LastOutcome:   string(status.LastOutcome),
	})
}

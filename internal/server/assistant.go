package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/faranic/advisor/internal/assistant"
)

// AssistantHandler exposes the property Q&A assistant over HTTP.
type AssistantHandler struct {
	Assistant *assistant.Assistant
}

type assistantRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type assistantResponse struct {
	SessionID string          `json:"session_id"`
	Reply     assistant.Reply `json:"reply"`
}

func (h *AssistantHandler) Register(g *echo.Group) {
	g.POST("/messages", h.postMessage)
	g.POST("/messages/stream", h.postMessageStream)
}

func (h *AssistantHandler) postMessage(c echo.Context) error {
	var req assistantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply, err := h.Assistant.Respond(c.Request().Context(), req.SessionID, req.Message, nil, nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, assistantResponse{SessionID: req.SessionID, Reply: reply})
}

func (h *AssistantHandler) postMessageStream(c echo.Context) error {
	var req assistantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	stream := newSSEStream(c)
	_ = stream.Send("session", map[string]string{"session_id": req.SessionID})

	reply, err := h.Assistant.Respond(c.Request().Context(), req.SessionID, req.Message,
		func(delta string) {
			_ = stream.Send("delta", map[string]string{"delta": delta})
		},
		func(step string) {
			_ = stream.Send("step", map[string]string{"step": step})
		})
	if err != nil {
		return stream.Send("error", map[string]string{"error": err.Error()})
	}

	if err := stream.Send("message", reply); err != nil {
		return err
	}
	return stream.Send("done", map[string]string{})
}

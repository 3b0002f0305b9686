package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// sseStream writes server-sent events over an echo response.
type sseStream struct {
	c echo.Context
}

func newSSEStream(c echo.Context) *sseStream {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)
	return &sseStream{c: c}
}

// Send emits one named event with a JSON payload and flushes it out.
func (s *sseStream) Send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.c.Response(), "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.c.Response().Flush()
	return nil
}

package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/faranic/advisor/internal/agent"
	"github.com/faranic/advisor/internal/conversation"
	"github.com/faranic/advisor/internal/store"
)

// ResearchHandler exposes the clarify/research chat over HTTP.
type ResearchHandler struct {
	Controller *conversation.Controller
	Store      *store.Store
	Sessions   conversation.Repository
	Logger     *log.Logger
}

type researchRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type researchResponse struct {
	SessionID string                 `json:"session_id"`
	Messages  []conversation.Message `json:"messages"`
}

func (h *ResearchHandler) Register(g *echo.Group) {
	g.POST("/messages", h.postMessage)
	g.POST("/messages/stream", h.postMessageStream)
	g.GET("/sessions/:id/history", h.getHistory)
	g.GET("/sessions/:id/reports", h.listReports)
	g.GET("/reports/:id", h.getReport)
}

func (h *ResearchHandler) postMessage(c echo.Context) error {
	var req researchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	msgs, err := h.Controller.HandleMessage(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.persist(c, req, msgs)
	return c.JSON(http.StatusOK, researchResponse{SessionID: req.SessionID, Messages: msgs})
}

func (h *ResearchHandler) postMessageStream(c echo.Context) error {
	var req researchRequest
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

	msgs, err := h.Controller.HandleMessageStream(c.Request().Context(), req.SessionID, req.Message,
		func(step, detail string) {
			_ = stream.Send("step", map[string]string{"step": step, "detail": detail})
		})
	if err != nil {
		return stream.Send("error", map[string]string{"error": err.Error()})
	}

	h.persist(c, req, msgs)
	for _, msg := range msgs {
		if err := stream.Send("message", msg); err != nil {
			return err
		}
	}
	return stream.Send("done", map[string]string{})
}

// persist mirrors the turn into postgres. Durable storage is best effort:
// a down database must not fail a chat turn that already completed.
func (h *ResearchHandler) persist(c echo.Context, req researchRequest, msgs []conversation.Message) {
	if h.Store == nil {
		return
	}
	ctx := c.Request().Context()

	all := append([]conversation.Message{{Role: conversation.RoleUser, Content: req.Message}}, msgs...)
	if err := h.Store.SaveMessages(ctx, req.SessionID, all...); err != nil {
		h.Logger.Printf("persist messages for %s: %v", req.SessionID, err)
	}

	report := reportFromMessages(msgs)
	if report == nil {
		return
	}
	if _, err := h.Store.SaveReport(ctx, req.SessionID, req.Message, *report); err != nil {
		h.Logger.Printf("persist report for %s: %v", req.SessionID, err)
	}
}

// reportFromMessages reassembles the turn's report from the messages that
// carry it, so persistence does not depend on the session state still being
// readable after the turn.
func reportFromMessages(msgs []conversation.Message) *agent.ReportData {
	var report *agent.ReportData
	for _, msg := range msgs {
		if msg.Report == "" {
			continue
		}
		report = &agent.ReportData{
			ShortSummary:   strings.TrimPrefix(msg.Content, conversation.SummaryPrefix),
			MarkdownReport: msg.Report,
		}
	}
	if report == nil {
		return nil
	}
	for _, msg := range msgs {
		if len(msg.FollowUps) > 0 {
			report.FollowUpQuestions = msg.FollowUps
		}
	}
	return report
}

func (h *ResearchHandler) getHistory(c echo.Context) error {
	msgs, err := h.Sessions.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (h *ResearchHandler) listReports(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	recs, err := h.Store.ListReports(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"reports": recs})
}

func (h *ResearchHandler) getReport(c echo.Context) error {
	rec, err := h.Store.GetReport(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrReportNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

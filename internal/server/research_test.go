package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/faranic/advisor/internal/agent"
	"github.com/faranic/advisor/internal/conversation"
	"github.com/faranic/advisor/internal/research"
	"github.com/faranic/advisor/internal/store"
)

type fixedClarifier struct {
	result agent.ClarificationResult
}

func (f fixedClarifier) Once(context.Context, string) (agent.ClarificationResult, error) {
	return f.result, nil
}

type fixedRunner struct {
	report *agent.ReportData
}

func (f fixedRunner) Run(_ context.Context, _ string, onProgress research.ProgressFunc) (*agent.ReportData, error) {
	if onProgress != nil {
		onProgress("searching", "Searching... 1/1 completed")
	}
	return f.report, nil
}

func newTestHandler() *ResearchHandler {
	repo := conversation.NewMemoryRepository()
	ctrl := conversation.NewController(
		fixedClarifier{result: agent.ClarificationResult{ClarifiedQuery: "q"}},
		fixedRunner{report: &agent.ReportData{
			ShortSummary:      "summary",
			MarkdownReport:    "# report",
			FollowUpQuestions: []string{"next?"},
		}},
		repo,
		nil,
	)
	return &ResearchHandler{
		Controller: ctrl,
		Sessions:   repo,
		Logger:     log.Default(),
	}
}

func TestPostMessage(t *testing.T) {
	h := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/research/messages",
		strings.NewReader(`{"message":"house prices in Region 13"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.postMessage(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp researchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionID == "" {
		t.Fatal("expected generated session id")
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("expected summary + follow-ups, got %+v", resp.Messages)
	}
	if !strings.HasPrefix(resp.Messages[0].Content, "### Research Complete") {
		t.Fatalf("unexpected first message: %q", resp.Messages[0].Content)
	}
}

// The report row is assembled from the turn's own messages, not from the
// session state, so it survives an eviction between turn and persist.
func TestPostMessagePersistsReportFromMessages(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	h := newTestHandler()
	h.Store = &store.Store{DB: db}

	mock.ExpectBegin()
	for i := 0; i < 3; i++ {
		mock.ExpectExec("INSERT INTO messages").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO reports").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "house prices", "summary", "# report", []byte(`["next?"]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/research/messages",
		strings.NewReader(`{"message":"house prices"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.postMessage(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestPostMessageRequiresBody(t *testing.T) {
	h := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/research/messages", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.postMessage(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestPostMessageStreamEmitsSteps(t *testing.T) {
	h := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/research/messages/stream",
		strings.NewReader(`{"session_id":"s1","message":"q"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.postMessageStream(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	body := rec.Body.String()
	for _, want := range []string{"event: session", "event: step", "event: message", "event: done"} {
		if !strings.Contains(body, want) {
			t.Fatalf("stream missing %q:\n%s", want, body)
		}
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

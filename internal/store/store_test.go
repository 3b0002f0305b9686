package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/faranic/advisor/internal/agent"
	"github.com/faranic/advisor/internal/conversation"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return &Store{DB: db}, mock
}

func TestSaveReport(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO reports").
		WithArgs(sqlmock.AnyArg(), "s1", "q", "short", "# body", []byte(`["f1","f2"]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := s.SaveReport(context.Background(), "s1", "q", agent.ReportData{
		ShortSummary:      "short",
		MarkdownReport:    "# body",
		FollowUpQuestions: []string{"f1", "f2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated report id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestGetReport(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "session_id", "query", "short_summary", "markdown_report", "follow_up_questions", "created_at"}).
		AddRow("r1", "s1", "q", "short", "# body", []byte(`["f1"]`), now)
	mock.ExpectQuery("SELECT (.+) FROM reports WHERE id=").
		WithArgs("r1").
		WillReturnRows(rows)

	rec, err := s.GetReport(context.Background(), "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ShortSummary != "short" || len(rec.FollowUpQuestions) != 1 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestGetReportNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM reports WHERE id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "query", "short_summary", "markdown_report", "follow_up_questions", "created_at"}))

	_, err := s.GetReport(context.Background(), "missing")
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestSaveMessages(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), "s1", "user", "hello", []byte("null")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO messages").
		WithArgs(sqlmock.AnyArg(), "s1", "assistant", "hi", []byte(`["step"]`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.SaveMessages(context.Background(), "s1",
		conversation.Message{Role: conversation.RoleUser, Content: "hello"},
		conversation.Message{Role: conversation.RoleAssistant, Content: "hi", Steps: []string{"step"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestHistory(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"role", "content", "steps"}).
		AddRow("user", "hello", []byte("[]")).
		AddRow("assistant", "hi", []byte(`["step"]`))
	mock.ExpectQuery("SELECT role, content, steps FROM messages").
		WithArgs("s1").
		WillReturnRows(rows)

	msgs, err := s.History(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Steps[0] != "step" {
		t.Fatalf("unexpected history: %+v", msgs)
	}
}

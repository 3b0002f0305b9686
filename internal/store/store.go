package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/faranic/advisor/internal/agent"
	"github.com/faranic/advisor/internal/conversation"
)

// ErrReportNotFound is returned when a report id does not exist.
var ErrReportNotFound = errors.New("report not found")

type Store struct {
	DB *sql.DB
}

// ReportRecord is a persisted research report.
type ReportRecord struct {
	ID                string
	SessionID         string
	Query             string
	ShortSummary      string
	MarkdownReport    string
	FollowUpQuestions []string
	CreatedAt         time.Time
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// SaveReport persists a finished report and returns its id.
func (s *Store) SaveReport(ctx context.Context, sessionID, query string, report agent.ReportData) (string, error) {
	id := uuid.NewString()
	followUps, err := json.Marshal(report.FollowUpQuestions)
	if err != nil {
		return "", fmt.Errorf("encode follow ups: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
        INSERT INTO reports (id, session_id, query, short_summary, markdown_report, follow_up_questions)
        VALUES ($1,$2,$3,$4,$5,$6)`,
		id, sessionID, query, report.ShortSummary, report.MarkdownReport, followUps)
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

// GetReport loads one report by id.
func (s *Store) GetReport(ctx context.Context, id string) (ReportRecord, error) {
	var rec ReportRecord
	var followUps []byte
	err := s.DB.QueryRowContext(ctx, `
        SELECT id, session_id, query, short_summary, markdown_report, follow_up_questions, created_at
        FROM reports WHERE id=$1`, id).
		Scan(&rec.ID, &rec.SessionID, &rec.Query, &rec.ShortSummary, &rec.MarkdownReport, &followUps, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReportRecord{}, ErrReportNotFound
		}
		return ReportRecord{}, fmt.Errorf("select report: %w", err)
	}
	if err := json.Unmarshal(followUps, &rec.FollowUpQuestions); err != nil {
		return ReportRecord{}, fmt.Errorf("decode follow ups: %w", err)
	}
	return rec, nil
}

// ListReports returns the most recent reports for a session, newest first.
func (s *Store) ListReports(ctx context.Context, sessionID string, limit int) ([]ReportRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
        SELECT id, session_id, query, short_summary, markdown_report, follow_up_questions, created_at
        FROM reports WHERE session_id=$1 ORDER BY created_at DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("select reports: %w", err)
	}
	defer rows.Close()

	var out []ReportRecord
	for rows.Next() {
		var rec ReportRecord
		var followUps []byte
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Query, &rec.ShortSummary, &rec.MarkdownReport, &followUps, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if err := json.Unmarshal(followUps, &rec.FollowUpQuestions); err != nil {
			return nil, fmt.Errorf("decode follow ups: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveMessages appends chat messages to the durable transcript.
func (s *Store) SaveMessages(ctx context.Context, sessionID string, msgs ...conversation.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, msg := range msgs {
		steps, err := json.Marshal(msg.Steps)
		if err != nil {
			return fmt.Errorf("encode steps: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO messages (id, session_id, role, content, steps)
            VALUES ($1,$2,$3,$4,$5)`,
			uuid.NewString(), sessionID, string(msg.Role), msg.Content, steps); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// History returns the stored transcript for a session in insertion order.
func (s *Store) History(ctx context.Context, sessionID string) ([]conversation.Message, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT role, content, steps FROM messages
        WHERE session_id=$1 ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var out []conversation.Message
	for rows.Next() {
		var msg conversation.Message
		var role string
		var steps []byte
		if err := rows.Scan(&role, &msg.Content, &steps); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = conversation.Role(role)
		if err := json.Unmarshal(steps, &msg.Steps); err != nil {
			return nil, fmt.Errorf("decode steps: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

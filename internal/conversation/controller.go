package conversation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/faranic/advisor/internal/agent"
	"github.com/faranic/advisor/internal/research"
)

const (
	// WaitMessage is returned verbatim while a research run is in flight.
	WaitMessage = "Please wait while I finish the research…"

	// SummaryPrefix opens the assistant message that carries a finished
	// report's short summary.
	SummaryPrefix = "### Research Complete\n\n**Summary:** "

	failureMessage = "Sorry, something went wrong while working on that. Please try your question again."
)

// QueryClarifier issues a single clarification pass over a prompt.
type QueryClarifier interface {
	Once(ctx context.Context, prompt string) (agent.ClarificationResult, error)
}

// ResearchRunner runs the full plan/search/write cycle for a query.
type ResearchRunner interface {
	Run(ctx context.Context, query string, onProgress research.ProgressFunc) (*agent.ReportData, error)
}

// Controller drives the clarify/research state machine for chat sessions.
// One instance serves all sessions; per-session busy tracking rejects
// messages that arrive while a research run is still in flight.
type Controller struct {
	clarifier QueryClarifier
	runner    ResearchRunner
	repo      Repository
	logger    *log.Logger

	// KeepSummaries is how many recent report summaries are carried as
	// context into the next research run.
	KeepSummaries int

	mu       sync.Mutex
	inflight map[string]bool
}

func NewController(clar QueryClarifier, runner ResearchRunner, repo Repository, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		clarifier:     clar,
		runner:        runner,
		repo:          repo,
		logger:        logger,
		KeepSummaries: 3,
		inflight:      map[string]bool{},
	}
}

// HandleMessage processes one user turn and returns the assistant messages
// produced by it. Run failures are absorbed here: the caller always gets
// renderable messages, and the session is reset so the next turn can proceed.
func (c *Controller) HandleMessage(ctx context.Context, sessionID, text string) ([]Message, error) {
	return c.HandleMessageStream(ctx, sessionID, text, nil)
}

// HandleMessageStream is HandleMessage with live progress reporting for
// transports that stream step updates to the client. onProgress may be nil.
func (c *Controller) HandleMessageStream(ctx context.Context, sessionID, text string, onProgress research.ProgressFunc) ([]Message, error) {
	st, err := c.repo.LoadState(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("conversation: load state: %w", err)
	}

	if st.Phase == PhaseResearch {
		return []Message{{Role: RoleAssistant, Content: WaitMessage}}, nil
	}
	if !c.acquire(sessionID) {
		return []Message{{Role: RoleAssistant, Content: WaitMessage}}, nil
	}
	defer c.release(sessionID)

	if err := c.repo.AppendMessages(ctx, sessionID, Message{Role: RoleUser, Content: text}); err != nil {
		return nil, fmt.Errorf("conversation: append message: %w", err)
	}

	var out []Message
	switch st.Phase {
	case PhaseClarify:
		out, err = c.handleClarifyAnswer(ctx, sessionID, &st, text, onProgress)
	default:
		out, err = c.handleNewQuery(ctx, sessionID, &st, text, onProgress)
	}
	if err != nil {
		return nil, err
	}

	if err := c.repo.AppendMessages(ctx, sessionID, out...); err != nil {
		return nil, fmt.Errorf("conversation: append message: %w", err)
	}
	return out, nil
}

func (c *Controller) handleNewQuery(ctx context.Context, sessionID string, st *State, text string, onProgress research.ProgressFunc) ([]Message, error) {
	st.InitialQuery = text

	clar, err := c.clarifier.Once(ctx, text)
	if err != nil {
		c.logger.Printf("[CONV] session %s: clarifier failed: %v", sessionID, err)
		return c.failTurn(ctx, sessionID, st)
	}

	if clar.NeedsClarification && len(clar.ClarificationQuestions) > 0 {
		st.Phase = PhaseClarify
		st.Pending = &clar
		if err := c.repo.SaveState(ctx, sessionID, *st); err != nil {
			return nil, fmt.Errorf("conversation: save state: %w", err)
		}
		return []Message{{
			Role:    RoleAssistant,
			Content: strings.Join(clar.Questions(), "\n"),
		}}, nil
	}

	return c.runResearch(ctx, sessionID, st, clar.ResolvedQuery(text), onProgress)
}

// handleClarifyAnswer combines the pending query with the user's answers and
// re-runs the clarifier once. Research starts regardless of whether the model
// still wants clarification: a session never asks twice for the same query.
func (c *Controller) handleClarifyAnswer(ctx context.Context, sessionID string, st *State, text string, onProgress research.ProgressFunc) ([]Message, error) {
	combined := fmt.Sprintf("Original query: %s\n\nUser clarifications:\n%s", st.InitialQuery, text)
	st.Pending = nil

	clar, err := c.clarifier.Once(ctx, combined)
	if err != nil {
		c.logger.Printf("[CONV] session %s: clarifier failed: %v", sessionID, err)
		return c.failTurn(ctx, sessionID, st)
	}

	return c.runResearch(ctx, sessionID, st, clar.ResolvedQuery(combined), onProgress)
}

func (c *Controller) runResearch(ctx context.Context, sessionID string, st *State, query string, onProgress research.ProgressFunc) ([]Message, error) {
	st.Phase = PhaseResearch
	if err := c.repo.SaveState(ctx, sessionID, *st); err != nil {
		return nil, fmt.Errorf("conversation: save state: %w", err)
	}

	effective := query
	if len(st.ContextSummaries) > 0 {
		prior := strings.Join(lastN(st.ContextSummaries, c.KeepSummaries), "\n---\n")
		effective = fmt.Sprintf("Previous context:\n%s\n\nCurrent query: %s", prior, query)
	}

	var steps []string
	report, err := c.runner.Run(ctx, effective, func(step, detail string) {
		steps = append(steps, detail)
		if onProgress != nil {
			onProgress(step, detail)
		}
	})
	if err != nil {
		c.logger.Printf("[CONV] session %s: research failed: %v", sessionID, err)
		return c.failTurn(ctx, sessionID, st)
	}

	st.ContextSummaries = lastN(append(st.ContextSummaries, report.ShortSummary), c.KeepSummaries)
	st.LastReport = report
	st.Phase = PhaseWaitingQuery
	if err := c.repo.SaveState(ctx, sessionID, *st); err != nil {
		return nil, fmt.Errorf("conversation: save state: %w", err)
	}

	msgs := []Message{{
		Role:    RoleAssistant,
		Content: SummaryPrefix + report.ShortSummary,
		Steps:   steps,
		Report:  report.MarkdownReport,
	}}
	if len(report.FollowUpQuestions) > 0 {
		msgs = append(msgs, Message{
			Role:      RoleAssistant,
			Content:   strings.Join(report.FollowUpQuestions, "\n\n"),
			FollowUps: report.FollowUpQuestions,
		})
	}
	return msgs, nil
}

// failTurn resets the session to waiting_query and produces the generic
// failure message so the chat stays usable after an error.
func (c *Controller) failTurn(ctx context.Context, sessionID string, st *State) ([]Message, error) {
	st.Phase = PhaseWaitingQuery
	st.Pending = nil
	if err := c.repo.SaveState(ctx, sessionID, *st); err != nil {
		return nil, fmt.Errorf("conversation: save state: %w", err)
	}
	return []Message{{Role: RoleAssistant, Content: failureMessage}}, nil
}

func (c *Controller) acquire(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[sessionID] {
		return false
	}
	c.inflight[sessionID] = true
	return true
}

func (c *Controller) release(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, sessionID)
}

func lastN(s []string, n int) []string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

package conversation

import "github.com/faranic/advisor/internal/agent"

// Phase is where a session sits in the clarify/research cycle.
type Phase string

const (
	PhaseWaitingQuery Phase = "waiting_query"
	PhaseClarify      Phase = "clarify"
	PhaseResearch     Phase = "research"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat entry. Steps carries the progress log of the research
// run that produced the message; Report carries the full markdown report so
// the UI can render it alongside the summary message.
type Message struct {
	Role      Role     `json:"role"`
	Content   string   `json:"content"`
	Steps     []string `json:"steps,omitempty"`
	Report    string   `json:"report,omitempty"`
	FollowUps []string `json:"follow_ups,omitempty"`
}

// State is the per-session conversation state persisted between turns.
type State struct {
	Phase            Phase                      `json:"phase"`
	InitialQuery     string                     `json:"initial_query,omitempty"`
	Pending          *agent.ClarificationResult `json:"pending_clarification,omitempty"`
	ContextSummaries []string                   `json:"context_summaries,omitempty"`
	LastReport       *agent.ReportData          `json:"last_report,omitempty"`
}

// NewState returns the initial state for a fresh session.
func NewState() State {
	return State{Phase: PhaseWaitingQuery}
}

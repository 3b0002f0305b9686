package agent

import "fmt"

// ClarificationQuestion is one follow-up question produced by the clarifier.
type ClarificationQuestion struct {
	Question string `json:"question" jsonschema_description:"A specific follow-up question to clarify the user's intent."`
	Reason   string `json:"reason" jsonschema_description:"Why this question is important for effective research."`
}

// ClarificationResult is the clarifier's structured verdict on a query.
// Immutable once returned.
type ClarificationResult struct {
	NeedsClarification     bool                    `json:"needs_clarification" jsonschema_description:"Whether the query needs clarification before proceeding with research."`
	ClarifiedQuery         string                  `json:"clarified_query" jsonschema_description:"If no clarification is needed, an improved version of the original query."`
	ClarificationQuestions []ClarificationQuestion `json:"clarification_questions" jsonschema_description:"Questions to ask the user if clarification is needed."`
	Reasoning              string                  `json:"reasoning" jsonschema_description:"Explanation of the analysis and decision."`
}

// ResolvedQuery returns the effective query when no clarification is needed.
// An empty ClarifiedQuery falls back to the original query.
func (r ClarificationResult) ResolvedQuery(original string) string {
	if r.ClarifiedQuery != "" {
		return r.ClarifiedQuery
	}
	return original
}

// Questions returns the question texts in plan order.
func (r ClarificationResult) Questions() []string {
	out := make([]string, len(r.ClarificationQuestions))
	for i, q := range r.ClarificationQuestions {
		out[i] = q.Question
	}
	return out
}

// WebSearchItem is one planned search, consumed exactly once by the search stage.
type WebSearchItem struct {
	Reason string `json:"reason" jsonschema_description:"Your reasoning for why this search is important to the query."`
	Query  string `json:"query" jsonschema_description:"The search term to use for the web search."`
}

// WebSearchPlan is the planner's ordered list of searches.
type WebSearchPlan struct {
	Searches []WebSearchItem `json:"searches" jsonschema_description:"A list of web searches to perform to best answer the query."`
}

// ReportData is the terminal artifact of one research cycle.
type ReportData struct {
	ShortSummary      string   `json:"short_summary" jsonschema_description:"A short 2-3 sentence summary of the findings."`
	MarkdownReport    string   `json:"markdown_report" jsonschema_description:"The final report."`
	FollowUpQuestions []string `json:"follow_up_questions" jsonschema_description:"Suggested topics to research further."`
}

// Output coerces a runner final output into the stage's declared schema type.
// The runtime validates model output against the role's schema, but the Go
// value still crosses an `any` boundary; this is the single checked narrowing
// point, never a silent cast.
func Output[T any](v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected agent output type %T", v)
	}
	return t, nil
}

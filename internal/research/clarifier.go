package research

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/faranic/advisor/internal/agent"
	"github.com/faranic/advisor/internal/telemetry"
)

// AnswerFunc collects one answer per clarifying question, order preserved.
type AnswerFunc func(questions []agent.ClarificationQuestion) ([]string, error)

// Clarifier resolves a raw user query into a research-ready one, asking the
// user bounded rounds of follow-up questions when needed.
type Clarifier struct {
	invoker   agent.Invoker
	registry  *agent.Registry
	logger    *log.Logger
	telemetry *telemetry.Telemetry

	// MaxRounds bounds the question/answer loop. Exhausting it is not an
	// error: the last assembled prompt is used verbatim as the resolved
	// query.
	MaxRounds int
}

// NewClarifier builds a clarifier stage.
func NewClarifier(inv agent.Invoker, reg *agent.Registry, logger *log.Logger, tele *telemetry.Telemetry, maxRounds int) *Clarifier {
	if maxRounds <= 0 {
		maxRounds = 3
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Clarifier{invoker: inv, registry: reg, logger: logger, telemetry: tele, MaxRounds: maxRounds}
}

// BuildPrompt combines the original query with collected answers so the
// clarifying agent has the full exchange: "Answer N:" labels keep the pairing
// unambiguous for the model.
func BuildPrompt(originalQuery string, answers []string) string {
	if len(answers) == 0 {
		return originalQuery
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Original query: %s", originalQuery)
	for i, ans := range answers {
		fmt.Fprintf(&sb, "\nAnswer %d: %s", i+1, ans)
	}
	return sb.String()
}

// Once runs a single clarifier invocation over the given prompt. An
// unexpected output shape is non-fatal: it degrades to "no clarification
// needed" with an empty clarified query, so callers fall back to the raw
// prompt. Call failures propagate.
func (c *Clarifier) Once(ctx context.Context, prompt string) (agent.ClarificationResult, error) {
	start := time.Now()
	res, err := c.invoker.Invoke(ctx, c.registry.Clarifier, prompt)
	if c.telemetry != nil {
		c.telemetry.RecordStage("clarify", time.Since(start), err)
	}
	if err != nil {
		return agent.ClarificationResult{}, fmt.Errorf("clarifier: %w", err)
	}

	out, err := agent.Output[agent.ClarificationResult](res.Output)
	if err != nil {
		c.logger.Printf("clarifier returned unexpected output, using query unchanged: %v", err)
		return agent.ClarificationResult{NeedsClarification: false}, nil
	}
	return out, nil
}

// Resolve runs the bounded clarification loop. collect is called once per
// round that still needs clarification, and must return one answer per
// question in the same order. After MaxRounds the last assembled prompt is
// returned verbatim - a degraded but deterministic fallback, not a failure.
func (c *Clarifier) Resolve(ctx context.Context, originalQuery string, collect AnswerFunc) (string, error) {
	var answers []string
	prompt := originalQuery

	for round := 1; round <= c.MaxRounds; round++ {
		prompt = BuildPrompt(originalQuery, answers)

		res, err := c.Once(ctx, prompt)
		if err != nil {
			return "", err
		}

		if !res.NeedsClarification || len(res.ClarificationQuestions) == 0 {
			return res.ResolvedQuery(originalQuery), nil
		}

		// No collector means no way to gather answers; fall through to
		// the assembled-prompt fallback instead of panicking.
		if round == c.MaxRounds || collect == nil {
			break
		}

		got, err := collect(res.ClarificationQuestions)
		if err != nil {
			return "", fmt.Errorf("collecting clarification answers: %w", err)
		}
		answers = append(answers, got...)
	}

	c.logger.Printf("clarification unresolved, proceeding with assembled prompt")
	return prompt, nil
}

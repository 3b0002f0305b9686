package research

import (
	"context"
	"errors"
	"testing"

	"github.com/nlpodyssey/openai-agents-go/agents"

	"github.com/faranic/advisor/internal/agent"
)

// sequenceInvoker replays scripted clarifier outputs one call at a time.
type sequenceInvoker struct {
	outputs []any
	errs    []error
	calls   int
	prompts []string
}

func (s *sequenceInvoker) Invoke(_ context.Context, _ *agents.Agent, input string) (*agent.Result, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, input)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return &agent.Result{Output: s.outputs[i]}, nil
}

func (s *sequenceInvoker) InvokeStreamed(ctx context.Context, role *agents.Agent, input string, _ func(agent.Event)) (*agent.Result, error) {
	return s.Invoke(ctx, role, input)
}

func needsMore(questions ...string) agent.ClarificationResult {
	res := agent.ClarificationResult{NeedsClarification: true}
	for _, q := range questions {
		res.ClarificationQuestions = append(res.ClarificationQuestions, agent.ClarificationQuestion{Question: q})
	}
	return res
}

func TestBuildPrompt(t *testing.T) {
	if got := BuildPrompt("best areas", nil); got != "best areas" {
		t.Fatalf("unexpected prompt without answers: %q", got)
	}

	got := BuildPrompt("best areas", []string{"Tehran", "under 2B"})
	want := "Original query: best areas\nAnswer 1: Tehran\nAnswer 2: under 2B"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestResolveReturnsClarifiedQueryEarly(t *testing.T) {
	inv := &sequenceInvoker{outputs: []any{
		agent.ClarificationResult{NeedsClarification: false, ClarifiedQuery: "apartment prices in Tehran, 2026"},
	}}
	c := NewClarifier(inv, &agent.Registry{}, nil, nil, 3)

	got, err := c.Resolve(context.Background(), "apartment prices", func([]agent.ClarificationQuestion) ([]string, error) {
		t.Fatal("collect called although no clarification was needed")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "apartment prices in Tehran, 2026" {
		t.Fatalf("unexpected resolved query: %q", got)
	}
}

func TestResolveFallsBackToOriginalOnEmptyClarifiedQuery(t *testing.T) {
	inv := &sequenceInvoker{outputs: []any{
		agent.ClarificationResult{NeedsClarification: false},
	}}
	c := NewClarifier(inv, &agent.Registry{}, nil, nil, 3)

	got, err := c.Resolve(context.Background(), "apartment prices", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "apartment prices" {
		t.Fatalf("unexpected resolved query: %q", got)
	}
}

func TestResolveTerminatesAfterMaxRounds(t *testing.T) {
	inv := &sequenceInvoker{outputs: []any{
		needsMore("which city?"),
		needsMore("which year?"),
		needsMore("what budget?"),
	}}
	c := NewClarifier(inv, &agent.Registry{}, nil, nil, 3)

	collects := 0
	got, err := c.Resolve(context.Background(), "best areas", func(qs []agent.ClarificationQuestion) ([]string, error) {
		collects++
		answers := make([]string, len(qs))
		for i := range qs {
			answers[i] = "answer"
		}
		return answers, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inv.calls != 3 {
		t.Fatalf("expected 3 clarifier rounds, got %d", inv.calls)
	}
	if collects != 2 {
		t.Fatalf("expected answers collected on 2 rounds, got %d", collects)
	}
	want := BuildPrompt("best areas", []string{"answer", "answer"})
	if got != want {
		t.Fatalf("exhausted loop returned %q, want assembled prompt %q", got, want)
	}
}

func TestResolveWithoutCollectorFallsBack(t *testing.T) {
	inv := &sequenceInvoker{outputs: []any{needsMore("which city?")}}
	c := NewClarifier(inv, &agent.Registry{}, nil, nil, 3)

	got, err := c.Resolve(context.Background(), "best areas", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "best areas" {
		t.Fatalf("expected fallback to original query, got %q", got)
	}
	if inv.calls != 1 {
		t.Fatalf("expected a single round without a collector, got %d", inv.calls)
	}
}

func TestOnceDegradesOnUnexpectedOutput(t *testing.T) {
	inv := &sequenceInvoker{outputs: []any{"free text, not a verdict"}}
	c := NewClarifier(inv, &agent.Registry{}, nil, nil, 3)

	res, err := c.Once(context.Background(), "query")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.NeedsClarification {
		t.Fatal("degraded result must not request clarification")
	}
	if res.ResolvedQuery("query") != "query" {
		t.Fatal("degraded result must fall back to the raw query")
	}
}

func TestOncePropagatesInvokeErrors(t *testing.T) {
	inv := &sequenceInvoker{outputs: []any{nil}, errs: []error{errors.New("model down")}}
	c := NewClarifier(inv, &agent.Registry{}, nil, nil, 3)

	if _, err := c.Once(context.Background(), "query"); err == nil {
		t.Fatal("expected error")
	}
}

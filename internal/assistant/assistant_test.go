package assistant

import (
	"context"
	"strings"
	"testing"

	"github.com/nlpodyssey/openai-agents-go/agents"

	"github.com/faranic/advisor/internal/agent"
)

type scriptedInvoker struct {
	events []agent.Event
	output any
}

func (s *scriptedInvoker) Invoke(context.Context, *agents.Agent, string) (*agent.Result, error) {
	return &agent.Result{Output: s.output}, nil
}

func (s *scriptedInvoker) InvokeStreamed(_ context.Context, _ *agents.Agent, _ string, onEvent func(agent.Event)) (*agent.Result, error) {
	res := &agent.Result{Output: s.output}
	for _, e := range s.events {
		if e.Handover != nil {
			res.Handovers = append(res.Handovers, *e.Handover)
		}
		onEvent(e)
	}
	return res, nil
}

func factoryFor(inv agent.Invoker) InvokerFactory {
	return func(context.Context, string) (agent.Invoker, error) { return inv, nil }
}

func TestDisabledAssistantReturnsCannedReply(t *testing.T) {
	a := New(&agent.Registry{}, factoryFor(nil), nil, false)

	reply, err := a.Respond(context.Background(), "s1", "hello", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reply.Content, "No API key provided") {
		t.Fatalf("unexpected placeholder: %q", reply.Content)
	}
	if len(reply.Steps) != 0 {
		t.Fatalf("placeholder reply must have no steps: %+v", reply.Steps)
	}
}

func TestStreamedReplyCollectsDeltasAndSteps(t *testing.T) {
	inv := &scriptedInvoker{
		events: []agent.Event{
			{Handover: &agent.Handover{From: "Triage Agent", To: "Knowledge Assistant"}},
			{Delta: "The best "},
			{Delta: "time is autumn."},
		},
		output: "The best time is autumn.",
	}
	a := New(&agent.Registry{}, factoryFor(inv), nil, true)

	var deltas, steps []string
	reply, err := a.Respond(context.Background(), "s1", "when to buy?",
		func(d string) { deltas = append(deltas, d) },
		func(s string) { steps = append(steps, s) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reply.Content != "The best time is autumn." {
		t.Fatalf("unexpected content: %q", reply.Content)
	}
	if len(deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %+v", deltas)
	}
	if len(steps) != 1 || steps[0] != "🔄 Handover **Triage Agent** -> **Knowledge Assistant**" {
		t.Fatalf("unexpected steps: %+v", steps)
	}
	if len(reply.Steps) != 1 {
		t.Fatalf("steps missing from reply: %+v", reply)
	}
}

func TestNonStreamingReplyUsesFinalOutput(t *testing.T) {
	inv := &scriptedInvoker{output: "final answer"}
	a := New(&agent.Registry{}, factoryFor(inv), nil, true)
	a.Streaming = false

	reply, err := a.Respond(context.Background(), "s1", "q", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Content != "final answer" {
		t.Fatalf("unexpected content: %q", reply.Content)
	}
}

package agent

import (
	"context"

	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/memory"
)

// Handover records control passing from one agent role to another mid-run.
type Handover struct {
	From string
	To   string
}

// Event is a translated runtime stream event. Exactly one field is set.
type Event struct {
	Delta    string    // token delta, when non-empty
	Handover *Handover // set when control moved between roles
}

// Result is what a completed run yields back to a stage.
type Result struct {
	Output    any
	Handovers []Handover
}

// Invoker abstracts the runtime's runner so stages can be exercised with
// stubs. The real implementation delegates to the external agent runtime.
type Invoker interface {
	Invoke(ctx context.Context, role *agents.Agent, input string) (*Result, error)
	InvokeStreamed(ctx context.Context, role *agents.Agent, input string, onEvent func(Event)) (*Result, error)
}

// RuntimeInvoker runs roles through the external agent runtime, optionally
// persisting conversation history in a runtime session.
type RuntimeInvoker struct {
	runner agents.Runner
}

// NewInvoker builds a RuntimeInvoker. session may be nil (stateless runs);
// groupID links the runs of one conversation in tracing.
func NewInvoker(session memory.Session, workflow, groupID string) *RuntimeInvoker {
	return &RuntimeInvoker{
		runner: agents.Runner{
			Config: agents.RunConfig{
				Session:      session,
				WorkflowName: workflow,
				GroupID:      groupID,
			},
		},
	}
}

func (inv *RuntimeInvoker) Invoke(ctx context.Context, role *agents.Agent, input string) (*Result, error) {
	run, err := inv.runner.Run(ctx, role, input)
	if err != nil {
		return nil, err
	}
	res := &Result{Output: run.FinalOutput}
	for _, item := range run.NewItems {
		if h, ok := item.(agents.HandoffOutputItem); ok {
			res.Handovers = append(res.Handovers, Handover{
				From: h.SourceAgent.Name,
				To:   h.TargetAgent.Name,
			})
		}
	}
	return res, nil
}

func (inv *RuntimeInvoker) InvokeStreamed(ctx context.Context, role *agents.Agent, input string, onEvent func(Event)) (*Result, error) {
	run, err := inv.runner.RunStreamed(ctx, role, input)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	current := role.Name
	err = run.StreamEvents(func(ev agents.StreamEvent) error {
		switch e := ev.(type) {
		case agents.RawResponsesStreamEvent:
			if e.Data.Type == "response.output_text.delta" && onEvent != nil {
				onEvent(Event{Delta: e.Data.Delta})
			}
		case agents.AgentUpdatedStreamEvent:
			if e.NewAgent != nil && e.NewAgent.Name != current {
				h := Handover{From: current, To: e.NewAgent.Name}
				res.Handovers = append(res.Handovers, h)
				if onEvent != nil {
					onEvent(Event{Handover: &h})
				}
				current = e.NewAgent.Name
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Output = run.FinalOutput()
	return res, nil
}

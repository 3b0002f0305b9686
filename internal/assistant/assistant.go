package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/faranic/advisor/internal/agent"
)

// missingKeyReply mirrors the demo behaviour when no provider credential is
// configured: the assistant stays up and answers with a canned line instead
// of failing the request.
const missingKeyReply = "No API key provided, so here's a default joke: Why did the coffee file a police report? It got mugged."

// Reply is one assistant answer plus the handover steps taken to produce it.
type Reply struct {
	Content string   `json:"content"`
	Steps   []string `json:"steps,omitempty"`
}

// DeltaFunc receives streamed answer fragments as they arrive.
type DeltaFunc func(delta string)

// StepFunc receives handover step lines as they happen.
type StepFunc func(step string)

// InvokerFactory builds a runtime invoker bound to a session, so each chat
// session carries its own conversation memory.
type InvokerFactory func(ctx context.Context, sessionID string) (agent.Invoker, error)

// Assistant fronts the triage agent and its knowledge/live-research handoffs
// for the property Q&A chat.
type Assistant struct {
	registry *agent.Registry
	invokers InvokerFactory
	logger   *log.Logger

	// Enabled is false when no provider credential is configured; replies
	// then degrade to a canned placeholder.
	Enabled bool

	// Streaming selects between token streaming and one-shot responses.
	Streaming bool
}

func New(reg *agent.Registry, invokers InvokerFactory, logger *log.Logger, enabled bool) *Assistant {
	if logger == nil {
		logger = log.Default()
	}
	return &Assistant{
		registry:  reg,
		invokers:  invokers,
		logger:    logger,
		Enabled:   enabled,
		Streaming: true,
	}
}

// Respond answers one user message. onDelta and onStep may be nil; they are
// only called on the streaming path.
func (a *Assistant) Respond(ctx context.Context, sessionID, text string, onDelta DeltaFunc, onStep StepFunc) (Reply, error) {
	if !a.Enabled {
		return Reply{Content: missingKeyReply}, nil
	}
	if onDelta == nil {
		onDelta = func(string) {}
	}
	if onStep == nil {
		onStep = func(string) {}
	}

	inv, err := a.invokers(ctx, sessionID)
	if err != nil {
		return Reply{}, fmt.Errorf("assistant: session invoker: %w", err)
	}

	if !a.Streaming {
		res, err := inv.Invoke(ctx, a.registry.Triage, text)
		if err != nil {
			return Reply{}, fmt.Errorf("assistant: %w", err)
		}
		reply := Reply{Content: fmt.Sprint(res.Output)}
		for _, h := range res.Handovers {
			reply.Steps = append(reply.Steps, handoverStep(h))
		}
		return reply, nil
	}

	var content strings.Builder
	var steps []string
	res, err := inv.InvokeStreamed(ctx, a.registry.Triage, text, func(e agent.Event) {
		if e.Delta != "" {
			content.WriteString(e.Delta)
			onDelta(e.Delta)
		}
		if e.Handover != nil {
			step := handoverStep(*e.Handover)
			steps = append(steps, step)
			a.logger.Printf("[ASSIST] session %s: handover %s -> %s", sessionID, e.Handover.From, e.Handover.To)
			onStep(step)
		}
	})
	if err != nil {
		return Reply{}, fmt.Errorf("assistant: %w", err)
	}

	reply := Reply{Content: content.String(), Steps: steps}
	if reply.Content == "" {
		reply.Content = fmt.Sprint(res.Output)
	}
	return reply, nil
}

func handoverStep(h agent.Handover) string {
	return fmt.Sprintf("🔄 Handover **%s** -> **%s**", h.From, h.To)
}

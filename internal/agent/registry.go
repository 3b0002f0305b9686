package agent

import (
	"github.com/nlpodyssey/openai-agents-go/agents"
	"github.com/nlpodyssey/openai-agents-go/agents/extensions/handoff_prompt"
	"github.com/nlpodyssey/openai-agents-go/tracing"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/faranic/advisor/config"
)

// Registry holds the declarative agent roles. Each role is a bundle of
// instructions, model choice, optional output schema and tools; everything
// else (model invocation, tool execution, streaming) belongs to the runtime.
type Registry struct {
	Clarifier *agents.Agent
	Planner   *agents.Agent
	Search    *agents.Agent
	Writer    *agents.Agent

	// Real-estate assistant: triage entry point with handoffs to the
	// knowledge-base and live-research agents.
	Triage *agents.Agent
}

// NewRegistry builds the agent roles from configuration.
func NewRegistry(cfg *config.Config) *Registry {
	clarifier := agents.New("ClarifyingAgent").
		WithInstructions(ClarifyingPrompt).
		WithModel(cfg.Models.Clarifier).
		WithOutputType(agents.OutputType[ClarificationResult]())

	planner := agents.New("PlannerAgent").
		WithInstructions(PlannerPrompt).
		WithModel(cfg.Models.Planner).
		WithOutputType(agents.OutputType[WebSearchPlan]())

	search := agents.New("SearchAgent").
		WithInstructions(SearchPrompt).
		WithModel(cfg.Models.Search).
		WithTools(agents.WebSearchTool{})

	writer := agents.New("WriterAgent").
		WithInstructions(WriterPrompt).
		WithModel(cfg.Models.Writer).
		WithOutputType(agents.OutputType[ReportData]())

	knowledge := agents.New("KnowledgeBaseAgent").
		WithInstructions(KnowledgePrompt).
		WithModel(cfg.Models.Knowledge)
	if len(cfg.Assistant.VectorStoreIDs) > 0 {
		knowledge = knowledge.WithTools(agents.FileSearchTool{
			VectorStoreIDs:       cfg.Assistant.VectorStoreIDs,
			MaxNumResults:        param.NewOpt(cfg.Assistant.MaxKBResults),
			IncludeSearchResults: true,
		})
	}

	liveResearch := agents.New("ResearchAgent").
		WithInstructions(LiveResearchPrompt).
		WithModel(cfg.Models.Research)

	triage := agents.New("RealEstateTriageAgent").
		WithInstructions(handoff_prompt.PromptWithHandoffInstructions(TriagePrompt)).
		WithModel(cfg.Models.Triage).
		WithAgentHandoffs(knowledge, liveResearch)

	return &Registry{
		Clarifier: clarifier,
		Planner:   planner,
		Search:    search,
		Writer:    writer,
		Triage:    triage,
	}
}

// ConfigureProvider points the runtime's default client at the configured
// provider. A missing API key leaves the runtime unconfigured; callers must
// degrade to placeholder replies instead of invoking it.
func ConfigureProvider(cfg config.ProviderConfig) {
	if cfg.APIKey == "" {
		return
	}

	baseURL := param.Opt[string]{}
	if cfg.BaseURL != "" {
		baseURL = param.NewOpt(cfg.BaseURL)
	}
	client := agents.NewOpenaiClient(baseURL, param.NewOpt(cfg.APIKey))
	agents.SetDefaultOpenaiClient(client, false)

	if cfg.UseChatCompletions || cfg.Name != "openai" {
		// Non-OpenAI providers only speak the chat completions API, and
		// their traces cannot be uploaded anywhere useful.
		agents.SetDefaultOpenaiAPI(agents.OpenaiAPITypeChatCompletions)
		tracing.SetTracingDisabled(true)
	}
}

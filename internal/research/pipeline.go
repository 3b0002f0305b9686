package research

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/faranic/advisor/internal/agent"
	"github.com/faranic/advisor/internal/telemetry"
)

// ProgressFunc receives human-readable step updates for UI feedback. It must
// not block: updates are advisory and never gate stage completion.
type ProgressFunc func(step, detail string)

// writerStatuses are the canned messages shown while the writer streams.
var writerStatuses = []string{
	"Thinking about report...",
	"Planning report structure...",
	"Writing outline...",
	"Creating sections...",
	"Cleaning up formatting...",
	"Finalizing report...",
	"Finishing report...",
}

// Pipeline runs the plan -> search -> write sequence over an already
// resolved query. Stages execute strictly in order; the only intra-turn
// parallelism is the search fan-out.
type Pipeline struct {
	invoker   agent.Invoker
	registry  *agent.Registry
	logger    *log.Logger
	telemetry *telemetry.Telemetry

	// StatusTick is how long the writer streams before advancing to the
	// next canned status message.
	StatusTick time.Duration
}

// NewPipeline builds a research pipeline.
func NewPipeline(inv agent.Invoker, reg *agent.Registry, logger *log.Logger, tele *telemetry.Telemetry) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		invoker:    inv,
		registry:   reg,
		logger:     logger,
		telemetry:  tele,
		StatusTick: 5 * time.Second,
	}
}

// Run executes one full research cycle and returns the report. Planner and
// writer failures are fatal for the turn; individual search failures are not.
// onProgress may be nil.
func (p *Pipeline) Run(ctx context.Context, query string, onProgress ProgressFunc) (*agent.ReportData, error) {
	if onProgress == nil {
		onProgress = func(string, string) {}
	}
	start := time.Now()

	plan, err := p.planSearches(ctx, query, onProgress)
	if err != nil {
		p.recordRun(start, query, 0, 0, err)
		return nil, err
	}

	summaries, failed := p.performSearches(ctx, plan, onProgress)

	report, err := p.writeReport(ctx, query, summaries, onProgress)
	p.recordRun(start, query, len(plan.Searches), failed, err)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (p *Pipeline) planSearches(ctx context.Context, query string, progress ProgressFunc) (agent.WebSearchPlan, error) {
	progress("planning", "Planning web searches...")

	start := time.Now()
	res, err := p.invoker.Invoke(ctx, p.registry.Planner, "Query: "+query)
	if p.telemetry != nil {
		p.telemetry.RecordStage("plan", time.Since(start), err)
	}
	if err != nil {
		return agent.WebSearchPlan{}, fmt.Errorf("planner: %w", err)
	}

	plan, err := agent.Output[agent.WebSearchPlan](res.Output)
	if err != nil {
		return agent.WebSearchPlan{}, fmt.Errorf("planner: %w", err)
	}

	progress("planning", fmt.Sprintf("Planned %d searches", len(plan.Searches)))
	return plan, nil
}

// performSearches fans out one search per plan item and gathers summaries in
// completion order. Every item is dispatched exactly once; an item's failure
// drops its summary but still counts toward the progress counter. The
// returned slice may therefore be shorter than the plan, down to empty.
func (p *Pipeline) performSearches(ctx context.Context, plan agent.WebSearchPlan, progress ProgressFunc) ([]string, int) {
	total := len(plan.Searches)
	if total == 0 {
		return nil, 0
	}
	progress("searching", "Searching...")

	start := time.Now()
	results := make(chan string, total)

	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0

	wg.Add(total)
	for _, item := range plan.Searches {
		go func(item agent.WebSearchItem) {
			defer wg.Done()

			summary, err := p.search(ctx, item)
			if p.telemetry != nil {
				p.telemetry.RecordSearch(err == nil)
			}
			if err != nil {
				p.logger.Printf("search %q failed: %v", item.Query, err)
			} else {
				results <- summary
			}

			// Progress delivery is serialized under mu: consumers
			// (step collectors, SSE writers) are not safe for
			// concurrent calls. Only the searches run in parallel.
			mu.Lock()
			completed++
			progress("searching", fmt.Sprintf("Searching... %d/%d completed", completed, total))
			mu.Unlock()
		}(item)
	}

	wg.Wait()
	close(results)

	summaries := make([]string, 0, total)
	for s := range results {
		summaries = append(summaries, s)
	}
	if p.telemetry != nil {
		p.telemetry.RecordStage("search", time.Since(start), nil)
	}
	return summaries, total - len(summaries)
}

func (p *Pipeline) search(ctx context.Context, item agent.WebSearchItem) (string, error) {
	input := fmt.Sprintf("Search term: %s\nReason for searching: %s", item.Query, item.Reason)
	res, err := p.invoker.Invoke(ctx, p.registry.Search, input)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", res.Output), nil
}

// writeReport runs the writer in streaming mode. The deltas themselves are
// discarded; the stream only paces the canned status display. Only the final
// structured report matters.
func (p *Pipeline) writeReport(ctx context.Context, query string, summaries []string, progress ProgressFunc) (*agent.ReportData, error) {
	progress("writing", writerStatuses[0])

	input := fmt.Sprintf("Original query: %s\nSummarized search results: %s", query, strings.Join(summaries, "\n\n"))

	tick := p.StatusTick
	if tick <= 0 {
		tick = 5 * time.Second
	}
	lastUpdate := time.Now()
	next := 1

	start := time.Now()
	res, err := p.invoker.InvokeStreamed(ctx, p.registry.Writer, input, func(agent.Event) {
		if time.Since(lastUpdate) > tick && next < len(writerStatuses) {
			progress("writing", writerStatuses[next])
			next++
			lastUpdate = time.Now()
		}
	})
	if p.telemetry != nil {
		p.telemetry.RecordStage("write", time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}

	report, err := agent.Output[agent.ReportData](res.Output)
	if err != nil {
		return nil, fmt.Errorf("writer: %w", err)
	}

	progress("writing", "Report complete")
	return &report, nil
}

func (p *Pipeline) recordRun(start time.Time, query string, searches, failed int, err error) {
	if p.telemetry == nil {
		return
	}
	event := telemetry.RunEvent{
		Query:          query,
		StartTime:      start,
		EndTime:        time.Now(),
		ProcessingTime: time.Since(start),
		Success:        err == nil,
		SearchesTotal:  searches,
		SearchesFailed: failed,
	}
	if err != nil {
		event.Error = err.Error()
	}
	p.telemetry.RecordRunEvent(context.Background(), event)
}

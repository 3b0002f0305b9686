package telemetry

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/faranic/advisor/config"
)

// Telemetry provides monitoring for pipeline runs: prometheus metrics plus an
// in-memory tally used for periodic summary logs.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	mu      sync.RWMutex
	metrics Metrics
}

// Metrics holds aggregate counters mirrored into prometheus.
type Metrics struct {
	TotalRuns             int64
	SuccessfulRuns        int64
	FailedRuns            int64
	AverageProcessingTime time.Duration

	StageExecutions map[string]int64
	StageFailures   map[string]int64

	SearchesDispatched int64
	SearchesFailed     int64
}

// RunEvent represents a single research run.
type RunEvent struct {
	ID             string
	SessionID      string
	Query          string
	StartTime      time.Time
	EndTime        time.Time
	ProcessingTime time.Duration
	Success        bool
	Error          string
	SearchesTotal  int
	SearchesFailed int
}

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_runs_total",
		Help: "Research runs by outcome.",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "advisor_run_duration_seconds",
		Help:    "End-to-end research run duration.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "advisor_stage_duration_seconds",
		Help:    "Per-stage duration.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"stage"})

	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_stage_failures_total",
		Help: "Stage invocations that returned an error.",
	}, []string{"stage"})

	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_searches_total",
		Help: "Individual search-item outcomes within the search stage.",
	}, []string{"result"})
)

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	logger := log.New(os.Stdout, "[TELEMETRY] ", log.LstdFlags)
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			logger.SetOutput(f)
		} else {
			logger.Printf("failed to open log file %s: %v", cfg.LogFile, err)
		}
	}

	t := &Telemetry{
		config: cfg,
		logger: logger,
		metrics: Metrics{
			StageExecutions: make(map[string]int64),
			StageFailures:   make(map[string]int64),
		},
	}

	if cfg.Enabled && cfg.PeriodicLogs {
		go t.periodicLogging()
	}

	return t
}

// RecordRunEvent records a completed research run.
func (t *Telemetry) RecordRunEvent(_ context.Context, event RunEvent) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	t.metrics.TotalRuns++
	if event.Success {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
	}
	// Running average keeps the summary log cheap.
	n := t.metrics.TotalRuns
	t.metrics.AverageProcessingTime = time.Duration(
		(int64(t.metrics.AverageProcessingTime)*(n-1) + int64(event.ProcessingTime)) / n,
	)
	t.metrics.SearchesDispatched += int64(event.SearchesTotal)
	t.metrics.SearchesFailed += int64(event.SearchesFailed)
	t.mu.Unlock()

	outcome := "success"
	if !event.Success {
		outcome = "failure"
	}
	runsTotal.WithLabelValues(outcome).Inc()
	runDuration.Observe(event.ProcessingTime.Seconds())

	if !event.Success {
		t.logger.Printf("run %s failed after %s: %s", event.ID, event.ProcessingTime, event.Error)
	}
}

// RecordStage records one stage invocation.
func (t *Telemetry) RecordStage(stage string, d time.Duration, err error) {
	if !t.config.Enabled {
		return
	}

	t.mu.Lock()
	t.metrics.StageExecutions[stage]++
	if err != nil {
		t.metrics.StageFailures[stage]++
	}
	t.mu.Unlock()

	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		stageFailures.WithLabelValues(stage).Inc()
	}
}

// RecordSearch records one search-item outcome within the search stage.
func (t *Telemetry) RecordSearch(ok bool) {
	if !t.config.Enabled {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	searchesTotal.WithLabelValues(result).Inc()
}

// Snapshot returns a copy of the aggregate metrics.
func (t *Telemetry) Snapshot() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	m := t.metrics
	m.StageExecutions = make(map[string]int64, len(t.metrics.StageExecutions))
	for k, v := range t.metrics.StageExecutions {
		m.StageExecutions[k] = v
	}
	m.StageFailures = make(map[string]int64, len(t.metrics.StageFailures))
	for k, v := range t.metrics.StageFailures {
		m.StageFailures[k] = v
	}
	return m
}

func (t *Telemetry) periodicLogging() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m := t.Snapshot()
		t.logger.Printf("runs=%d ok=%d failed=%d avg=%s searches=%d search_failures=%d",
			m.TotalRuns, m.SuccessfulRuns, m.FailedRuns, m.AverageProcessingTime,
			m.SearchesDispatched, m.SearchesFailed)
	}
}

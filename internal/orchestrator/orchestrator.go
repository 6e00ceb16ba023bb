package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leakscope/backend/internal/metrics"
	"github.com/leakscope/backend/internal/pipeline"
	"github.com/leakscope/backend/internal/storage/models"
	"github.com/leakscope/backend/pkg/config"
	"github.com/leakscope/backend/pkg/logger"
)

var (
	// ErrRunInProgress rejects a trigger that arrives while a run is
	// already executing. The trigger is dropped, not queued.
	ErrRunInProgress = errors.New("a triage run is already in progress")

	ErrNoSources = errors.New("no sources configured")
)

const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunStore persists the audit row for each finished run.
type RunStore interface {
	InsertTriageRun(run *models.TriageRun) error
}

// RunReport aggregates all per-source results of one run. Per-source errors
// are recorded here, never raised.
type RunReport struct {
	ID           string
	Status       string
	StartedAt    time.Time
	Duration     time.Duration
	Found        int
	Confirmed    int
	NeedsReview  int
	Rejected     int
	SourceErrors int
	Results      []pipeline.SourceResult
}

type Orchestrator struct {
	pipeline      *pipeline.Pipeline
	sources       []config.SourceConfig
	sourceTimeout time.Duration
	store         RunStore

	running    atomic.Bool
	mu         sync.Mutex
	lastReport *RunReport
}

func New(p *pipeline.Pipeline, sources []config.SourceConfig, sourceTimeout time.Duration, store RunStore) *Orchestrator {
	return &Orchestrator{
		pipeline:      p,
		sources:       sources,
		sourceTimeout: sourceTimeout,
		store:         store,
	}
}

// Run executes one triage pass over all configured sources, one concurrent
// unit per source. At most one run executes at a time.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	if len(o.sources) == 0 {
		return nil, ErrNoSources
	}

	if !o.running.CompareAndSwap(false, true) {
		metrics.RunsRejected.Inc()
		logger.Warn("Trigger rejected, run already in progress")
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)

	report := &RunReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Results:   make([]pipeline.SourceResult, len(o.sources)),
	}

	logger.Info("Triage run started",
		zap.String("run_id", report.ID),
		zap.Int("sources", len(o.sources)),
	)

	var wg sync.WaitGroup
	for i, src := range o.sources {
		wg.Add(1)
		go func(i int, src config.SourceConfig) {
			defer wg.Done()
			report.Results[i] = o.runSource(ctx, src)
		}(i, src)
	}
	wg.Wait()

	report.Duration = time.Since(report.StartedAt)
	report.Status = RunStatusCompleted

	for _, result := range report.Results {
		report.Found += result.Found
		report.Confirmed += result.Confirmed
		report.NeedsReview += result.NeedsReview
		report.Rejected += result.Rejected
		if result.Err != nil {
			report.SourceErrors++
			metrics.SourceFailures.WithLabelValues(result.Source).Inc()
			logger.Error("Source unit failed",
				zap.String("run_id", report.ID),
				zap.String("source", result.Source),
				zap.Error(result.Err),
			)
		}
	}

	metrics.RunDuration.Observe(report.Duration.Seconds())

	o.mu.Lock()
	o.lastReport = report
	o.mu.Unlock()

	o.recordRun(report)

	logger.Info("Triage run finished",
		zap.String("run_id", report.ID),
		zap.Int("found", report.Found),
		zap.Int("source_errors", report.SourceErrors),
		zap.Duration("duration", report.Duration),
	)

	return report, nil
}

// Running reports whether a run is currently executing.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// LastReport returns the most recent finished run, or nil.
func (o *Orchestrator) LastReport() *RunReport {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastReport
}

func (o *Orchestrator) runSource(ctx context.Context, src config.SourceConfig) (result pipeline.SourceResult) {
	defer func() {
		if r := recover(); r != nil {
			result = pipeline.SourceResult{
				Source: src.ID,
				Err:    errors.New("source unit panicked"),
			}
			logger.Error("Source unit panicked",
				zap.String("source", src.ID),
				zap.Any("panic", r),
			)
		}
	}()

	srcCtx := ctx
	if o.sourceTimeout > 0 {
		var cancel context.CancelFunc
		srcCtx, cancel = context.WithTimeout(ctx, o.sourceTimeout)
		defer cancel()
	}

	return o.pipeline.Process(srcCtx, src)
}

func (o *Orchestrator) recordRun(report *RunReport) {
	if o.store == nil {
		return
	}

	err := o.store.InsertTriageRun(&models.TriageRun{
		ID:           report.ID,
		Status:       report.Status,
		Sources:      len(report.Results),
		Found:        report.Found,
		Confirmed:    report.Confirmed,
		NeedsReview:  report.NeedsReview,
		Rejected:     report.Rejected,
		SourceErrors: report.SourceErrors,
		StartedAt:    report.StartedAt,
		DurationMS:   report.Duration.Milliseconds(),
	})
	if err != nil {
		logger.Warn("Failed to record triage run", zap.Error(err), zap.String("run_id", report.ID))
	}
}

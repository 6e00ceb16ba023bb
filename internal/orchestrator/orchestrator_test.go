package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leakscope/backend/internal/archive"
	"github.com/leakscope/backend/internal/collector"
	"github.com/leakscope/backend/internal/dedup"
	"github.com/leakscope/backend/internal/normalize"
	"github.com/leakscope/backend/internal/pipeline"
	"github.com/leakscope/backend/internal/scoring"
	"github.com/leakscope/backend/internal/signals"
	"github.com/leakscope/backend/internal/storage/models"
	"github.com/leakscope/backend/pkg/config"
)

type fakeCollector struct {
	records map[string][]collector.RawRecord
	failing map[string]bool

	// blockOpen, when set, holds every Open call until released. Used to
	// keep a run in flight while a second trigger arrives.
	blockOpen chan struct{}
}

func (f *fakeCollector) Open(ctx context.Context, src config.SourceConfig) (collector.Stream, error) {
	if f.blockOpen != nil {
		select {
		case <-f.blockOpen:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.failing[src.ID] {
		return nil, errors.New("collector endpoint unreachable")
	}
	return &sliceStream{records: f.records[src.ID]}, nil
}

type sliceStream struct {
	records []collector.RawRecord
	pos     int
}

func (s *sliceStream) Next(ctx context.Context) (collector.RawRecord, error) {
	if s.pos >= len(s.records) {
		return nil, collector.ErrEndOfStream
	}
	record := s.records[s.pos]
	s.pos++
	return record, nil
}

type fakeIncidentStore struct {
	mu        sync.Mutex
	incidents []models.Incident
}

func (f *fakeIncidentStore) InsertIncidents(incidents []models.Incident) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.incidents = append(f.incidents, incidents...)
	return nil
}

func (f *fakeIncidentStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.incidents)
}

type fakeRunStore struct {
	mu   sync.Mutex
	runs []models.TriageRun
}

func (f *fakeRunStore) InsertTriageRun(run *models.TriageRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *run)
	return nil
}

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, text string) (scoring.Classification, error) {
	return scoring.Classification{IsLeak: true, Probability: 0.9}, nil
}

var leakRecord = collector.RawRecord{
	"content": "Обнаружена утечка: пароли пользователей Газета.Ru",
	"url":     "https://www.gazeta.ru/news/leak",
}

func newTestOrchestrator(t *testing.T, col collector.Collector, sources []config.SourceConfig, runs RunStore) (*Orchestrator, *fakeIncidentStore) {
	t.Helper()
	base := t.TempDir()
	store := &fakeIncidentStore{}

	p := pipeline.New(
		col,
		normalize.NewNormalizer(),
		signals.NewExtractor(),
		scoring.NewScorer(stubClassifier{}, []string{"gazeta.ru"}),
		dedup.NewRouter(0.85, 0.5),
		dedup.NewMemorySeenSet(),
		archive.NewWriter(filepath.Join(base, "processed"), filepath.Join(base, "review")),
		store,
	)
	return New(p, sources, 5*time.Second, runs), store
}

func TestRun_SourceFailureIsContained(t *testing.T) {
	col := &fakeCollector{
		records: map[string][]collector.RawRecord{"web": {leakRecord}},
		failing: map[string]bool{"tg": true},
	}
	sources := []config.SourceConfig{
		{ID: "web", Path: "/data/web.json"},
		{ID: "tg", Path: "/data/tg.json"},
	}
	runs := &fakeRunStore{}
	orch, store := newTestOrchestrator(t, col, sources, runs)

	report, err := orch.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, report.Status)
	assert.Equal(t, 1, report.SourceErrors)
	assert.Equal(t, 1, report.Found)
	assert.Equal(t, 1, report.Confirmed)
	assert.Equal(t, 1, store.count())

	// Exactly the failing source carries an error.
	require.Len(t, report.Results, 2)
	byID := map[string]pipeline.SourceResult{}
	for _, r := range report.Results {
		byID[r.Source] = r
	}
	assert.NoError(t, byID["web"].Err)
	assert.Error(t, byID["tg"].Err)

	// The audit row reflects the finished run.
	require.Len(t, runs.runs, 1)
	assert.Equal(t, report.ID, runs.runs[0].ID)
	assert.Equal(t, 2, runs.runs[0].Sources)
	assert.Equal(t, 1, runs.runs[0].SourceErrors)
}

func TestRun_ConcurrentTriggerRejected(t *testing.T) {
	release := make(chan struct{})
	col := &fakeCollector{
		records:   map[string][]collector.RawRecord{"web": {leakRecord}},
		blockOpen: release,
	}
	sources := []config.SourceConfig{{ID: "web", Path: "/data/web.json"}}
	orch, _ := newTestOrchestrator(t, col, sources, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := orch.Run(context.Background())
		assert.NoError(t, err)
	}()

	require.Eventually(t, orch.Running, time.Second, time.Millisecond)

	_, err := orch.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	<-done

	// The guard clears once the run finishes.
	assert.False(t, orch.Running())
	report, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, report.Status)
}

func TestRun_NoSources(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &fakeCollector{}, nil, nil)

	report, err := orch.Run(context.Background())

	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrNoSources)
}

func TestRun_LastReport(t *testing.T) {
	col := &fakeCollector{records: map[string][]collector.RawRecord{"web": {leakRecord}}}
	sources := []config.SourceConfig{{ID: "web", Path: "/data/web.json"}}
	orch, _ := newTestOrchestrator(t, col, sources, nil)

	assert.Nil(t, orch.LastReport())

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	last := orch.LastReport()
	require.NotNil(t, last)
	assert.Equal(t, report.ID, last.ID)
}

func TestRun_SourceTimeout(t *testing.T) {
	col := &fakeCollector{
		records:   map[string][]collector.RawRecord{"web": {leakRecord}},
		blockOpen: make(chan struct{}),
	}
	sources := []config.SourceConfig{{ID: "web", Path: "/data/web.json"}}
	store := &fakeIncidentStore{}

	base := t.TempDir()
	p := pipeline.New(
		col,
		normalize.NewNormalizer(),
		signals.NewExtractor(),
		scoring.NewScorer(stubClassifier{}, []string{"gazeta.ru"}),
		dedup.NewRouter(0.85, 0.5),
		dedup.NewMemorySeenSet(),
		archive.NewWriter(filepath.Join(base, "processed"), filepath.Join(base, "review")),
		store,
	)
	orch := New(p, sources, 20*time.Millisecond, nil)

	report, err := orch.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, RunStatusCompleted, report.Status)
	assert.Equal(t, 1, report.SourceErrors)
	assert.Equal(t, 0, store.count())
}

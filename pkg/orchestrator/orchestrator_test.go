package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engineerrors "github.com/ducminhle1904/dna-evolution/internal/errors"
	"github.com/ducminhle1904/dna-evolution/internal/monitoring"
	"github.com/ducminhle1904/dna-evolution/pkg/config"
	"github.com/ducminhle1904/dna-evolution/pkg/data"
	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
	"github.com/ducminhle1904/dna-evolution/pkg/validation"
)

func testConfig(t *testing.T) *config.EngineConfig {
	t.Helper()
	dir := t.TempDir()

	cfg := config.NewDefaultEngineConfig()
	cfg.CheckpointDir = filepath.Join(dir, "checkpoints")
	cfg.StrategyDir = filepath.Join(dir, "strategies")
	cfg.LogDir = filepath.Join(dir, "logs")
	cfg.ReportDir = filepath.Join(dir, "reports")
	cfg.MinPartitionEvents = 100
	cfg.WarmStart = false
	cfg.Optimization.PopulationSize = 10
	cfg.Optimization.Generations = 3
	cfg.Optimization.CheckpointInterval = 1
	cfg.Gate.TopN = 3
	cfg.Gate.BootstrapSamples = 50
	cfg.Gate.MonteCarloPaths = 50
	cfg.Gate.RescueAttempts = 2
	return cfg
}

// testLedger has two eligible partitions and one below the threshold
func testLedger() []types.Event {
	events := data.GenerateSyntheticEvents(400, []string{"ENG", "ITA"}, 7)
	for _, ev := range data.GenerateSyntheticEvents(20, []string{"TINY"}, 8) {
		ev.ID = "tiny-" + ev.ID
		events = append(events, ev)
	}
	return events
}

func newTestOrchestrator(cfg *config.EngineConfig) (*DefaultOrchestrator, strategy.Store) {
	store := strategy.NewFileStore(cfg.StrategyDir)
	source := data.NewCachedSource(data.NewStaticSource(testLedger()))
	return NewOrchestrator(cfg, types.DefaultGeneSchema(), source, store), store
}

func TestDiscover(t *testing.T) {
	o, _ := newTestOrchestrator(testConfig(t))

	d, err := o.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ENG", "ITA"}, d.Eligible)
	require.Len(t, d.Skipped, 1)
	assert.Equal(t, "TINY", d.Skipped[0].Partition)
	assert.Equal(t, 20, d.Skipped[0].Admissible)
	assert.Equal(t, 100, d.Skipped[0].Need)
}

func TestJobs_SeedsFollowEligibleOrder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Optimization.Seed = 100
	o, _ := newTestOrchestrator(cfg)
	d := &Discovery{Eligible: []string{"ENG", "ITA"}}

	jobs := o.jobs(d, false)
	require.Len(t, jobs, 3)
	assert.Equal(t, PartitionJob{Partition: "ENG", Index: 0, Seed: 100}, jobs[0])
	assert.Equal(t, PartitionJob{Partition: "ITA", Index: 1, Seed: 101}, jobs[1])
	assert.Equal(t, PartitionJob{Partition: types.GlobalPartition, Index: 2, Seed: 102}, jobs[2])

	o.SelectPartition("ITA")
	jobs = o.jobs(d, true)
	require.Len(t, jobs, 1)
	assert.Equal(t, PartitionJob{Partition: "ITA", Index: 1, Seed: 101, Resume: true}, jobs[0])

	// an ineligible selection falls back to the global run
	o.SelectPartition("TINY")
	jobs = o.jobs(d, false)
	require.Len(t, jobs, 1)
	assert.Equal(t, types.GlobalPartition, jobs[0].Partition)
}

func TestRunAll_ProducesDocumentPerPartition(t *testing.T) {
	cfg := testConfig(t)
	o, store := newTestOrchestrator(cfg)

	report, err := o.RunAll(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Empty(t, report.Failed())
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "TINY", report.Skipped[0].Partition)
	_, ok := report.Result("TINY")
	assert.False(t, ok)

	for _, res := range report.Results {
		require.NoError(t, res.Error, res.Partition)
		require.NotNil(t, res.Document, res.Partition)
		assert.Contains(t, []string{monitoring.StatusActive, monitoring.StatusInactive}, res.Status)
		assert.Equal(t, 3, res.Generations)
		assert.False(t, res.Resumed)

		doc := res.Document
		assert.Equal(t, res.Partition, doc.Partition)
		assert.Equal(t, validation.ModeHoldout, doc.ValidationMode)
		assert.NotEmpty(t, doc.DNA)
		assert.NotEmpty(t, doc.StressTest)
		assert.LessOrEqual(t, len(doc.StressTest), cfg.Gate.TopN)
		assert.Len(t, doc.History, 3)
		assert.Equal(t, doc.EventCounts.Admissible, doc.EventCounts.Search+doc.EventCounts.Validation)
		require.NotNil(t, doc.ValidationSummary)
		if !doc.Active {
			assert.NotEmpty(t, doc.FailureReason)
		}

		saved, err := store.Latest(context.Background(), res.Partition)
		require.NoError(t, err)
		assert.Equal(t, doc.RunID, saved.RunID)
	}

	global, ok := report.Result(types.GlobalPartition)
	require.True(t, ok)
	assert.Equal(t, 420, global.Document.EventCounts.Admissible)
	assert.Len(t, report.Comparison, 3)
	assert.Equal(t, types.GlobalPartition, report.Comparison[2].Partition)
}

func TestRunAll_AuditsSkippedPartitions(t *testing.T) {
	cfg := testConfig(t)
	o, _ := newTestOrchestrator(cfg)

	_, err := o.RunAll(context.Background())
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(cfg.LogDir, "_global_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), `"skipped":"TINY"`)
}

func TestRunAll_ParallelMatchesSequential(t *testing.T) {
	seqCfg := testConfig(t)
	seq, _ := newTestOrchestrator(seqCfg)
	seqReport, err := seq.RunAll(context.Background())
	require.NoError(t, err)

	parCfg := testConfig(t)
	parCfg.Parallel = true
	parCfg.MaxWorkers = 3
	par, _ := newTestOrchestrator(parCfg)
	parReport, err := par.RunAll(context.Background())
	require.NoError(t, err)

	require.Len(t, parReport.Results, len(seqReport.Results))
	for i, want := range seqReport.Results {
		got := parReport.Results[i]
		assert.Equal(t, want.Partition, got.Partition)
		require.NotNil(t, got.Document)
		assert.Equal(t, want.Document.DNA, got.Document.DNA, want.Partition)
		assert.Equal(t, want.Document.Active, got.Document.Active, want.Partition)
		assert.Equal(t, want.Document.Method, got.Document.Method, want.Partition)
		assert.Equal(t, want.Document.ValidationFitness, got.Document.ValidationFitness, want.Partition)
	}
}

func TestRunAll_ResumesFromCheckpoint(t *testing.T) {
	cfg := testConfig(t)
	o, _ := newTestOrchestrator(cfg)
	o.SelectPartition("ENG")

	first, err := o.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Results, 1)
	assert.False(t, first.Results[0].Resumed)

	cfg.Resume = true
	second, err := o.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, second.Results, 1)
	res := second.Results[0]
	assert.True(t, res.Resumed)
	assert.Equal(t, 6, res.Generations)
	require.NotNil(t, res.Document)
	assert.Len(t, res.Document.History, 6)
}

func TestRunAll_ResumeWithoutCheckpointStartsFresh(t *testing.T) {
	cfg := testConfig(t)
	cfg.Resume = true
	o, _ := newTestOrchestrator(cfg)
	o.SelectPartition("ITA")

	report, err := o.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].Resumed)
	assert.Equal(t, 3, report.Results[0].Generations)
}

func TestRunAll_ExpandingMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Validation.Mode = validation.ModeExpanding
	cfg.Validation.Folds = 3
	o, _ := newTestOrchestrator(cfg)
	o.SelectPartition("ENG")

	report, err := o.RunAll(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	doc := report.Results[0].Document
	require.NotNil(t, doc)
	assert.Equal(t, validation.ModeExpanding, doc.ValidationMode)
	assert.Positive(t, doc.EventCounts.Folds)
	assert.Len(t, doc.ValidationSummary.Folds, doc.EventCounts.Folds)
}

func TestRunAll_WarmStartFromPreviousDocument(t *testing.T) {
	cfg := testConfig(t)
	o, store := newTestOrchestrator(cfg)
	o.SelectPartition("ENG")

	_, err := o.RunAll(context.Background())
	require.NoError(t, err)
	prev, err := store.Latest(context.Background(), "ENG")
	require.NoError(t, err)

	cfg.WarmStart = true
	report, err := o.RunAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report.Results[0].Document)
	assert.NotEqual(t, prev.RunID, report.Results[0].Document.RunID)
}

func TestPartitionRunner_CancelledContext(t *testing.T) {
	cfg := testConfig(t)
	source := data.NewStaticSource(testLedger())
	runner := NewDefaultPartitionRunner(cfg, types.DefaultGeneSchema(), source, strategy.NewFileStore(cfg.StrategyDir))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := runner.Run(ctx, PartitionJob{Partition: "ENG", Seed: 1})
	assert.Equal(t, monitoring.StatusInterrupted, res.Status)
	assert.Nil(t, res.Document)
	assert.True(t, engineerrors.HasCategory(res.Error, engineerrors.ErrorCategoryInterrupted))
}

func TestPartitionRunner_InsufficientEvents(t *testing.T) {
	cfg := testConfig(t)
	source := data.NewStaticSource(testLedger())
	runner := NewDefaultPartitionRunner(cfg, types.DefaultGeneSchema(), source, strategy.NewFileStore(cfg.StrategyDir))

	res := runner.Run(context.Background(), PartitionJob{Partition: "TINY", Seed: 1})
	assert.Equal(t, monitoring.StatusSkipped, res.Status)
	assert.True(t, engineerrors.HasCategory(res.Error, engineerrors.ErrorCategoryDataInsufficient))
	assert.Nil(t, res.Document)
}

// fakeRunner records jobs and fails the partitions listed in fail
type fakeRunner struct {
	mu     sync.Mutex
	jobs   []PartitionJob
	fail   map[string]bool
	onCall func(calls int)
}

func (f *fakeRunner) Run(_ context.Context, job PartitionJob) *PartitionResult {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	calls := len(f.jobs)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(calls)
	}
	if f.fail[job.Partition] {
		return &PartitionResult{
			Partition: job.Partition,
			Status:    monitoring.StatusFailed,
			Error:     engineerrors.NewStorageError("fake", "save", errors.New("disk full")),
		}
	}
	doc := strategy.NewDocument(job.Partition, types.DefaultGeneSchema())
	doc.FailureReason = "fake"
	return &PartitionResult{Partition: job.Partition, Status: monitoring.StatusInactive, Document: doc}
}

func TestRunAll_OneFailureDoesNotStopOthers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Parallel = true
	runner := &fakeRunner{fail: map[string]bool{"ENG": true}}
	source := data.NewStaticSource(testLedger())
	o := NewOrchestratorWithComponents(cfg, types.DefaultGeneSchema(), source, runner)

	report, err := o.RunAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, runner.jobs, 3)
	assert.Equal(t, []string{"ENG"}, report.Failed())
	assert.Len(t, report.Documents(), 2)

	stats := o.ErrorStats()
	assert.Equal(t, 1, stats.TotalErrors)
	assert.Equal(t, 1, stats.ErrorsByCategory[engineerrors.ErrorCategoryStorage])
}

func TestWatch_RunsCyclesUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &fakeRunner{}
	// three jobs per cycle: ENG, ITA, global
	runner.onCall = func(calls int) {
		if calls == 6 {
			cancel()
		}
	}
	o := NewOrchestratorWithComponents(cfg, types.DefaultGeneSchema(), data.NewStaticSource(testLedger()), runner)

	done := make(chan error, 1)
	go func() { done <- o.Watch(ctx, 10*time.Millisecond) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.GreaterOrEqual(t, len(runner.jobs), 6)
	for _, job := range runner.jobs[:3] {
		assert.False(t, job.Resume, job.Partition)
	}
	for _, job := range runner.jobs[3:6] {
		assert.True(t, job.Resume, job.Partition)
	}
	assert.GreaterOrEqual(t, o.Health().Status().Cycles, 2)
}

func TestWatch_RejectsNonPositiveInterval(t *testing.T) {
	o, _ := newTestOrchestrator(testConfig(t))
	err := o.Watch(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, engineerrors.HasCategory(err, engineerrors.ErrorCategoryConfiguration))
}

func TestWorkflows(t *testing.T) {
	cfg := testConfig(t)
	runner := &fakeRunner{}
	o := NewOrchestratorWithComponents(cfg, types.DefaultGeneSchema(), data.NewStaticSource(testLedger()), runner)

	single := NewSingleRunWorkflow(o)
	assert.Equal(t, WorkflowTypeSingle, single.GetWorkflowType())
	report, err := single.Execute(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Results, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	watch := NewWatchWorkflow(o, time.Minute)
	assert.Equal(t, WorkflowTypeWatch, watch.GetWorkflowType())
	report, err = watch.Execute(ctx)
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestErrorCategory(t *testing.T) {
	assert.Equal(t, "storage", errorCategory(engineerrors.NewStorageError("x", "y", errors.New("z"))))
	assert.Equal(t, "unknown", errorCategory(errors.New("plain")))
	assert.True(t, strings.Contains(dnaKey([]float64{0.5, 1}), ","))
}

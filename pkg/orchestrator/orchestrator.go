// Package orchestrator schedules evolution runs across partitions and keeps the
// strategy store fresh in watch mode.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	engineerrors "github.com/ducminhle1904/dna-evolution/internal/errors"
	"github.com/ducminhle1904/dna-evolution/internal/logger"
	"github.com/ducminhle1904/dna-evolution/internal/monitoring"
	"github.com/ducminhle1904/dna-evolution/pkg/config"
	"github.com/ducminhle1904/dna-evolution/pkg/data"
	"github.com/ducminhle1904/dna-evolution/pkg/reporting"
	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// AllPartitions selects every eligible partition
const AllPartitions = "all"

// cacheClearer is implemented by sources that memoize loaded events
type cacheClearer interface {
	ClearCache()
}

// DefaultOrchestrator implements the Orchestrator interface
type DefaultOrchestrator struct {
	cfg       *config.EngineConfig
	schema    *types.GeneSchema
	source    data.EventSource
	runner    PartitionRunner
	health    *monitoring.HealthChecker
	selection string

	mu         sync.Mutex
	errorStats *engineerrors.ErrorStats
}

// NewOrchestrator creates an orchestrator with the default partition runner
func NewOrchestrator(cfg *config.EngineConfig, schema *types.GeneSchema, source data.EventSource, store strategy.Store) *DefaultOrchestrator {
	return NewOrchestratorWithComponents(cfg, schema, source, NewDefaultPartitionRunner(cfg, schema, source, store))
}

// NewOrchestratorWithComponents creates an orchestrator with a custom partition runner
func NewOrchestratorWithComponents(cfg *config.EngineConfig, schema *types.GeneSchema, source data.EventSource, runner PartitionRunner) *DefaultOrchestrator {
	return &DefaultOrchestrator{
		cfg:        cfg,
		schema:     schema,
		source:     source,
		runner:     runner,
		health:     monitoring.NewHealthChecker(cfg.WatchInterval.D()),
		selection:  AllPartitions,
		errorStats: engineerrors.NewErrorStats(50),
	}
}

// SelectPartition limits runs to one partition key. AllPartitions restores the default.
func (o *DefaultOrchestrator) SelectPartition(partition string) {
	if partition == "" {
		partition = AllPartitions
	}
	o.selection = partition
}

// Health returns the checker updated after every watch cycle
func (o *DefaultOrchestrator) Health() *monitoring.HealthChecker {
	return o.health
}

// ErrorStats returns a snapshot of the faults seen so far
func (o *DefaultOrchestrator) ErrorStats() engineerrors.ErrorStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	snapshot := *o.errorStats
	snapshot.ErrorsByCategory = make(map[engineerrors.ErrorCategory]int, len(o.errorStats.ErrorsByCategory))
	for k, v := range o.errorStats.ErrorsByCategory {
		snapshot.ErrorsByCategory[k] = v
	}
	snapshot.RecentErrors = append([]*engineerrors.EngineError(nil), o.errorStats.RecentErrors...)
	return snapshot
}

// Discover lists partitions whose admissible event count reaches the threshold. The
// global partition is never listed; it always runs as the fallback.
func (o *DefaultOrchestrator) Discover(ctx context.Context) (*Discovery, error) {
	infos, err := o.source.Partitions(ctx)
	if err != nil {
		return nil, engineerrors.WrapError(err, engineerrors.ErrorCategoryStorage, runnerComponent, "discover")
	}

	d := &Discovery{}
	for _, info := range infos {
		if info.Key == types.GlobalPartition || info.Key == "" {
			continue
		}
		if info.AdmissibleEvents < o.cfg.MinPartitionEvents {
			d.Skipped = append(d.Skipped, SkippedPartition{
				Partition:  info.Key,
				Admissible: info.AdmissibleEvents,
				Need:       o.cfg.MinPartitionEvents,
			})
			continue
		}
		d.Eligible = append(d.Eligible, info.Key)
	}
	sort.Strings(d.Eligible)
	sort.Slice(d.Skipped, func(i, j int) bool { return d.Skipped[i].Partition < d.Skipped[j].Partition })

	log.Printf("🔍 Found %d eligible partitions, %d below %d admissible events", len(d.Eligible), len(d.Skipped), o.cfg.MinPartitionEvents)
	return d, nil
}

// jobs turns a discovery into the run list. Seeds depend only on the position in the
// full eligible list, so selecting one partition reproduces its seed from a full run.
func (o *DefaultOrchestrator) jobs(d *Discovery, resume bool) []PartitionJob {
	base := o.cfg.Optimization.Seed
	var jobs []PartitionJob
	for i, key := range d.Eligible {
		if o.selection != AllPartitions && o.selection != key {
			continue
		}
		jobs = append(jobs, PartitionJob{Partition: key, Index: i, Seed: base + uint64(i), Resume: resume})
	}

	runGlobal := o.selection == AllPartitions || o.selection == types.GlobalPartition || len(jobs) == 0
	if runGlobal {
		idx := len(d.Eligible)
		jobs = append(jobs, PartitionJob{Partition: types.GlobalPartition, Index: idx, Seed: base + uint64(idx), Resume: resume})
	}
	return jobs
}

// RunAll runs one cycle over the selected partitions
func (o *DefaultOrchestrator) RunAll(ctx context.Context) (*RunReport, error) {
	return o.runCycle(ctx, o.cfg.Resume)
}

func (o *DefaultOrchestrator) runCycle(ctx context.Context, resume bool) (*RunReport, error) {
	report := &RunReport{StartedAt: time.Now().UTC()}

	d, err := o.Discover(ctx)
	if err != nil {
		return nil, err
	}
	report.Skipped = d.Skipped
	o.auditSkips(d.Skipped)

	jobs := o.jobs(d, resume)
	workers := o.cfg.Workers(len(jobs))
	log.Printf("🚀 Running %d partitions with %d workers", len(jobs), workers)

	results := make([]PartitionResult, len(jobs))
	if workers <= 1 {
		for i, job := range jobs {
			results[i] = o.runJob(ctx, job)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		for i, job := range jobs {
			g.Go(func() error {
				results[i] = o.runJob(ctx, job)
				return nil
			})
		}
		_ = g.Wait()
	}

	report.Results = results
	report.Comparison = reporting.BuildComparison(report.Documents(), o.schema)
	report.FinishedAt = time.Now().UTC()

	log.Printf("📊 Cycle done in %s: %d active of %d documents, %d failed",
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
		reporting.ActiveCount(report.Comparison), len(report.Comparison), len(report.Failed()))
	return report, nil
}

func (o *DefaultOrchestrator) runJob(ctx context.Context, job PartitionJob) PartitionResult {
	log.Printf("🔄 Processing %s (seed %d)", job.Partition, job.Seed)
	res := o.runner.Run(ctx, job)
	if res == nil {
		res = &PartitionResult{Partition: job.Partition, Status: monitoring.StatusFailed, Error: fmt.Errorf("runner returned no result")}
	}

	switch res.Status {
	case monitoring.StatusFailed:
		log.Printf("❌ %s failed: %v", job.Partition, res.Error)
		o.mu.Lock()
		o.errorStats.RecordError(res.Error)
		o.mu.Unlock()
	case monitoring.StatusSkipped:
		log.Printf("⏭️ %s skipped: %v", job.Partition, res.Error)
	case monitoring.StatusInterrupted:
		log.Printf("⏸️ %s interrupted after %d generations", job.Partition, res.Generations)
	}
	return *res
}

// auditSkips writes discovery skips to the global partition's audit log
func (o *DefaultOrchestrator) auditSkips(skipped []SkippedPartition) {
	if len(skipped) == 0 {
		return
	}
	lg, err := logger.NewLogger(o.cfg.LogDir, types.GlobalPartition)
	if err != nil {
		log.Printf("⚠️ cannot open audit log for skips: %v", err)
		lg = logger.NewNopLogger()
	}
	defer lg.Close()

	for _, s := range skipped {
		lg.Skip(s.Partition, s.Admissible, s.Need)
		monitoring.RecordPartitionRun(s.Partition, monitoring.StatusSkipped, 0)
	}
}

// Watch runs a cycle immediately and then once per interval until ctx is cancelled.
// Later cycles always resume from checkpoints and reload events from the source.
func (o *DefaultOrchestrator) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return engineerrors.NewConfigurationError(runnerComponent, "watch", fmt.Sprintf("watch interval must be positive, got %s", interval))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for cycle := 1; ; cycle++ {
		log.Printf("⏱️ Watch cycle %d", cycle)
		if c, ok := o.source.(cacheClearer); ok {
			c.ClearCache()
		}

		report, err := o.runCycle(ctx, o.cfg.Resume || cycle > 1)
		if err != nil {
			log.Printf("❌ Watch cycle %d failed: %v", cycle, err)
			o.health.RecordCycle([]string{"discovery"})
		} else {
			o.health.RecordCycle(report.Failed())
		}

		select {
		case <-ctx.Done():
			log.Printf("🛑 Watch stopped after %d cycles", cycle)
			return nil
		case <-ticker.C:
		}
	}
}

var _ Orchestrator = (*DefaultOrchestrator)(nil)

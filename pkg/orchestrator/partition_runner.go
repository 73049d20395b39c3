package orchestrator

import (
	"context"
	stderrors "errors"
	"log"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ducminhle1904/dna-evolution/internal/backtest"
	engineerrors "github.com/ducminhle1904/dna-evolution/internal/errors"
	"github.com/ducminhle1904/dna-evolution/internal/logger"
	"github.com/ducminhle1904/dna-evolution/internal/monitoring"
	"github.com/ducminhle1904/dna-evolution/internal/state"
	"github.com/ducminhle1904/dna-evolution/pkg/config"
	"github.com/ducminhle1904/dna-evolution/pkg/data"
	"github.com/ducminhle1904/dna-evolution/pkg/optimization"
	"github.com/ducminhle1904/dna-evolution/pkg/robustness"
	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
	"github.com/ducminhle1904/dna-evolution/pkg/validation"
)

const runnerComponent = "orchestrator"

// candidatePoolFactor widens the pool re-scored on validation before the gate keeps its top N
const candidatePoolFactor = 2

// DefaultPartitionRunner runs load → plan → search → gate → persist for one partition
type DefaultPartitionRunner struct {
	cfg         *config.EngineConfig
	schema      *types.GeneSchema
	evaluator   *backtest.Evaluator
	source      data.EventSource
	checkpoints *state.Store
	store       strategy.Store
}

// NewDefaultPartitionRunner creates a runner sharing one source, checkpoint directory and
// strategy store across partitions
func NewDefaultPartitionRunner(cfg *config.EngineConfig, schema *types.GeneSchema, source data.EventSource, store strategy.Store) *DefaultPartitionRunner {
	return &DefaultPartitionRunner{
		cfg:         cfg,
		schema:      schema,
		evaluator:   backtest.NewEvaluator(schema, cfg.Evaluator),
		source:      source,
		checkpoints: state.NewStore(cfg.CheckpointDir, schema, nil),
		store:       store,
	}
}

// Run executes one partition. Faults are returned on the result, never panicked or
// propagated, so one partition cannot stop the others.
func (r *DefaultPartitionRunner) Run(ctx context.Context, job PartitionJob) *PartitionResult {
	start := time.Now()
	res := &PartitionResult{Partition: job.Partition}

	lg, err := logger.NewLogger(r.cfg.LogDir, job.Partition)
	if err != nil {
		log.Printf("⚠️ %s: audit log unavailable, continuing without it: %v", job.Partition, err)
		lg = logger.NewNopLogger()
	}
	defer lg.Close()

	doc, err := r.run(ctx, job, lg, res)
	res.Elapsed = time.Since(start)
	res.Document = doc

	switch {
	case err == nil && doc == nil:
		res.Status = monitoring.StatusInterrupted
	case err == nil && doc.Active:
		res.Status = monitoring.StatusActive
	case err == nil:
		res.Status = monitoring.StatusInactive
	case engineerrors.HasCategory(err, engineerrors.ErrorCategoryDataInsufficient):
		res.Status = monitoring.StatusSkipped
		res.Error = err
	case engineerrors.HasCategory(err, engineerrors.ErrorCategoryInterrupted):
		res.Status = monitoring.StatusInterrupted
		res.Error = err
	default:
		res.Status = monitoring.StatusFailed
		res.Error = err
		lg.LogError("partition run", err)
		monitoring.RecordError(errorCategory(err))
	}
	monitoring.RecordPartitionRun(job.Partition, res.Status, res.Elapsed)
	return res
}

func (r *DefaultPartitionRunner) run(ctx context.Context, job PartitionJob, lg *logger.Logger, res *PartitionResult) (*strategy.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, engineerrors.NewInterruptedError(runnerComponent, 0, err)
	}

	raw, err := r.source.LoadEvents(ctx, job.Partition)
	if err != nil {
		return nil, engineerrors.WrapError(err, engineerrors.ErrorCategoryStorage, runnerComponent, "load_events")
	}
	events := raw
	if r.cfg.Data.Lookback > 0 {
		events = data.NewDefaultEventFilter().FilterByPeriod(events, r.cfg.Data.Lookback.D())
	}
	events = data.SortEvents(data.FilterAdmissible(events))

	need := r.cfg.MinPartitionEvents
	if job.Partition == types.GlobalPartition {
		need = 2
	}
	if len(events) < need {
		lg.Skip(job.Partition, len(events), need)
		return nil, engineerrors.NewDataInsufficientError(runnerComponent, job.Partition, len(events), need)
	}

	plan, err := validation.BuildPlan(events, r.cfg.Validation)
	if err != nil {
		lg.Skip(job.Partition, len(events), need)
		return nil, engineerrors.NewDataInsufficientError(runnerComponent, job.Partition, len(events), need).WithContext("plan", err.Error())
	}
	if len(plan.DroppedFolds) > 0 {
		lg.Warning("dropped folds %v: timestamp ties left them empty", plan.DroppedFolds)
	}
	period := r.cfg.Period()
	fe := validation.NewFoldEvaluator(r.evaluator, plan, period)
	lg.Info("plan %s: %d search events, %d validation events, %d folds, %d scoring batches",
		plan.Mode, len(plan.Search), len(plan.Validation), len(plan.Folds), fe.Batches())

	ga := r.newOptimizer(ctx, job, lg, fe)

	result, resumed, err := r.search(ctx, job, ga, lg)
	if err != nil {
		return nil, err
	}
	res.Resumed = resumed
	res.Generations = result.Generations
	if result.Interrupted {
		lg.Warning("interrupted at generation %d, checkpoint kept for resume", result.Generations)
		return nil, nil
	}

	valMatrix := backtest.NewEventMatrix(plan.Validation, period)
	candidates, err := r.candidates(result, valMatrix)
	if err != nil {
		return nil, err
	}

	gateCfg := r.cfg.Gate
	gateCfg.Seed = job.Seed
	gres, err := robustness.NewGate(job.Partition, gateCfg, r.schema, r.evaluator).Run(candidates, valMatrix)
	if err != nil {
		return nil, engineerrors.WrapError(err, engineerrors.ErrorCategoryNumeric, runnerComponent, "robustness_gate")
	}
	r.auditGate(job.Partition, lg, gres)

	doc := strategy.NewDocument(job.Partition, r.schema)
	doc.ValidationMode = plan.Mode
	doc.ApplyGate(r.schema, gres)
	doc.Generations = result.Generations
	doc.History = result.History
	doc.EventCounts = strategy.EventCounts{
		Total:      len(raw),
		Admissible: len(events),
		Search:     len(plan.Search),
		Validation: len(plan.Validation),
		Folds:      len(plan.Folds),
	}
	if len(doc.DNA) > 0 {
		summary, err := validation.Summarize(r.evaluator, doc.Vector(r.schema), plan, period)
		if err != nil {
			return nil, engineerrors.WrapError(err, engineerrors.ErrorCategoryNumeric, runnerComponent, "summarize")
		}
		doc.ValidationSummary = summary
		doc.TrainFitness = summary.Train
		doc.ValidationFitness = summary.Validation
	}
	if err := doc.Validate(); err != nil {
		return nil, engineerrors.WrapError(err, engineerrors.ErrorCategoryValidation, runnerComponent, "document")
	}

	// the search already finished; a late cancel must not lose its output
	if err := r.store.Save(context.WithoutCancel(ctx), doc); err != nil {
		return nil, engineerrors.WrapError(err, engineerrors.ErrorCategoryStorage, runnerComponent, "save_document")
	}
	lg.Document(doc.RunID, doc.Active, doc.Method, doc.FailureReason)
	log.Printf("✅ %s: %s strategy %s (%s), validation ROI %.4f", job.Partition, activeLabel(doc.Active), doc.RunID, doc.Method, doc.ValidationFitness.ROI)
	return doc, nil
}

func (r *DefaultPartitionRunner) newOptimizer(ctx context.Context, job PartitionJob, lg *logger.Logger, fe *validation.FoldEvaluator) *optimization.GeneticOptimizer {
	optCfg := r.cfg.Optimization
	optCfg.Seed = job.Seed

	ga := optimization.NewGeneticOptimizer(job.Partition, optCfg, r.schema, fe)
	ga.SetCheckpointer(r.checkpoints.WithLogger(lg))
	ga.SetObserver(newRunObserver(job.Partition, lg))

	if r.cfg.WarmStart {
		prev, err := r.store.Latest(ctx, job.Partition)
		switch {
		case err == nil:
			seeds := prev.EnsembleVectors(r.schema)
			ga.SetWarmStart(seeds...)
			lg.Info("warm start from run %s with %d seeds", prev.RunID, len(seeds))
		case !strategy.IsNotFound(err):
			lg.Warning("cannot read previous strategy for warm start: %v", err)
		}
	}
	return ga
}

// search resumes from a checkpoint when asked and one exists, else starts fresh
func (r *DefaultPartitionRunner) search(ctx context.Context, job PartitionJob, ga *optimization.GeneticOptimizer, lg *logger.Logger) (*optimization.Result, bool, error) {
	if job.Resume && !r.checkpoints.Exists(job.Partition) {
		lg.Info("no checkpoint found, starting fresh")
	} else if job.Resume {
		st, err := r.checkpoints.WithLogger(lg).Load(job.Partition)
		switch {
		case err == nil:
			lg.Info("resuming at generation %d of %d", st.Generation, st.Budget)
			result, err := ga.Resume(ctx, st)
			if err != nil {
				return nil, true, wrapSearchError(err)
			}
			return result, true, nil
		case stderrors.Is(err, state.ErrNoCheckpoint):
			lg.Info("no checkpoint found, starting fresh")
		default:
			return nil, false, err
		}
	}

	result, err := ga.Optimize(ctx)
	if err != nil {
		return nil, false, wrapSearchError(err)
	}
	return result, false, nil
}

// candidates re-scores the best searched DNA on the validation segment. The gate ranks
// by the returned fitness.
func (r *DefaultPartitionRunner) candidates(result *optimization.Result, valMatrix *backtest.EventMatrix) ([]robustness.Candidate, error) {
	var pool [][]float64
	seen := make(map[string]bool)
	add := func(dna []float64) {
		key := dnaKey(dna)
		if len(dna) == 0 || seen[key] {
			return
		}
		seen[key] = true
		pool = append(pool, dna)
	}

	add(result.BestDNA)
	if result.Population != nil {
		for _, ind := range result.Population.Top(candidatePoolFactor * r.cfg.Gate.TopN) {
			add(ind.DNA)
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}

	pop := mat.NewDense(len(pool), r.schema.Len(), nil)
	for i, dna := range pool {
		pop.SetRow(i, dna)
	}
	eval, err := r.evaluator.Evaluate(pop, valMatrix)
	if err != nil {
		return nil, engineerrors.WrapError(err, engineerrors.ErrorCategoryNumeric, runnerComponent, "score_candidates")
	}

	out := make([]robustness.Candidate, len(pool))
	for i, dna := range pool {
		out[i] = robustness.Candidate{DNA: append([]float64(nil), dna...), Fitness: eval.Fitness[i]}
	}
	return out, nil
}

func (r *DefaultPartitionRunner) auditGate(partition string, lg *logger.Logger, gres *robustness.GateResult) {
	for _, rep := range gres.Candidates {
		if rep.Rescue != nil {
			lg.Rescue(rep.Rank, rep.Rescue.Attempts, rep.Rescue.Scale, rep.Rescue.Succeeded)
		}
		switch {
		case rep.Passed && rep.Rescue != nil && rep.Rescue.Succeeded:
			monitoring.RecordGateOutcome(partition, monitoring.OutcomeRescued)
		case rep.Passed:
			monitoring.RecordGateOutcome(partition, monitoring.OutcomePassed)
		default:
			lg.GateFailure(rep.Rank, rep.Bootstrap.PPositive, rep.MonteCarlo.RuinProbability, rep.Reason)
			monitoring.RecordGateOutcome(partition, monitoring.OutcomeFailed)
		}
	}
}

func wrapSearchError(err error) error {
	var engineErr *engineerrors.EngineError
	if stderrors.As(err, &engineErr) {
		return err
	}
	return engineerrors.WrapError(err, engineerrors.ErrorCategoryNumeric, runnerComponent, "search")
}

func errorCategory(err error) string {
	var engineErr *engineerrors.EngineError
	if stderrors.As(err, &engineErr) {
		return strings.ToLower(string(engineErr.Category))
	}
	return "unknown"
}

func dnaKey(dna []float64) string {
	var b strings.Builder
	for i, v := range dna {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

// runObserver fans search progress out to the audit log and metrics
type runObserver struct {
	partition string
	lg        *logger.Logger
}

func newRunObserver(partition string, lg *logger.Logger) *runObserver {
	return &runObserver{partition: partition, lg: lg}
}

func (o *runObserver) OnGeneration(stats optimization.GenerationStats) {
	o.lg.Generation(stats.Generation, stats.Best, stats.Mean, stats.MutationRate, stats.Radiation)
	monitoring.RecordGeneration(o.partition, stats.Best, stats.MutationRate)
}

func (o *runObserver) OnRadiation(generation int, mutationRate float64) {
	o.lg.Radiation(generation, mutationRate)
	monitoring.RecordRadiation(o.partition)
}

func (o *runObserver) OnCheckpoint(generation int, reason string) {
	o.lg.Checkpoint(generation, reason)
	monitoring.RecordCheckpoint(o.partition, reason)
}

var _ PartitionRunner = (*DefaultPartitionRunner)(nil)

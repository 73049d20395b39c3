package optimization

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand/v2"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

const (
	// ProgressReportInterval is how often a console progress line is printed
	ProgressReportInterval = 5
	// improvementEpsilon is the margin a new best must clear to reset stagnation
	improvementEpsilon = 1e-9
)

// Checkpoint reasons
const (
	CheckpointInterval  = "interval"
	CheckpointInterrupt = "interrupt"
	CheckpointComplete  = "complete"
)

// GeneticOptimizer runs the generational search for one partition.
// It is single-threaded; an instance must not be shared between partitions.
type GeneticOptimizer struct {
	config       OptimizationConfig
	schema       *types.GeneSchema
	evaluator    FitnessEvaluator
	operator     *GeneticOperator
	checkpointer Checkpointer
	observer     Observer
	partition    string
	warmStart    [][]float64

	pcg *rand.PCG
	rng *rand.Rand
}

// NewGeneticOptimizer creates an optimizer seeded from config.Seed
func NewGeneticOptimizer(partition string, config OptimizationConfig, schema *types.GeneSchema, evaluator FitnessEvaluator) *GeneticOptimizer {
	pcg := rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)
	return &GeneticOptimizer{
		config:    config,
		schema:    schema,
		evaluator: evaluator,
		operator:  NewGeneticOperator(schema, config.CrossoverMode, config.MutationScale),
		observer:  nopObserver{},
		partition: partition,
		pcg:       pcg,
		rng:       rand.New(pcg),
	}
}

// SetCheckpointer installs the checkpoint sink
func (o *GeneticOptimizer) SetCheckpointer(c Checkpointer) {
	o.checkpointer = c
}

// SetObserver installs the progress observer
func (o *GeneticOptimizer) SetObserver(obs Observer) {
	if obs == nil {
		obs = nopObserver{}
	}
	o.observer = obs
}

// SetWarmStart places the given DNA at the head of the initial population. Vectors are
// clipped; extra vectors beyond the population size are ignored.
func (o *GeneticOptimizer) SetWarmStart(dna ...[]float64) {
	o.warmStart = o.warmStart[:0]
	for _, d := range dna {
		if len(d) != o.schema.Len() {
			log.Printf("⚠️ %s: ignoring warm-start vector with %d genes", o.partition, len(d))
			continue
		}
		v := append([]float64(nil), d...)
		o.schema.Clip(v)
		o.warmStart = append(o.warmStart, v)
	}
}

// Validate checks the GA configuration
func (c OptimizationConfig) Validate() error {
	if c.PopulationSize < 2 {
		return fmt.Errorf("population size must be at least 2, got: %d", c.PopulationSize)
	}
	if c.Generations < 1 {
		return fmt.Errorf("generations must be positive, got: %d", c.Generations)
	}
	if c.EliteFraction < 0 || c.EliteFraction >= 1 {
		return fmt.Errorf("elite fraction must be in [0,1), got: %.3f", c.EliteFraction)
	}
	if c.TournamentSize < 1 {
		return fmt.Errorf("tournament size must be positive, got: %d", c.TournamentSize)
	}
	if c.CrossoverRate < 0 || c.CrossoverRate > 1 {
		return fmt.Errorf("crossover rate must be in [0,1], got: %.3f", c.CrossoverRate)
	}
	if c.CrossoverMode != "" && c.CrossoverMode != CrossoverBlend && c.CrossoverMode != CrossoverUniform {
		return fmt.Errorf("crossover mode must be %s or %s, got: %s", CrossoverBlend, CrossoverUniform, c.CrossoverMode)
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("mutation rate must be in [0,1], got: %.3f", c.MutationRate)
	}
	if c.MutationScale <= 0 {
		return fmt.Errorf("mutation scale must be positive, got: %.3f", c.MutationScale)
	}
	if c.StagnationLimit < 1 {
		return fmt.Errorf("stagnation limit must be positive, got: %d", c.StagnationLimit)
	}
	if c.RadiationMultiplier < 1 {
		return fmt.Errorf("radiation multiplier must be at least 1, got: %.3f", c.RadiationMultiplier)
	}
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("checkpoint interval must be non-negative, got: %d", c.CheckpointInterval)
	}
	return nil
}

// InitializePopulation samples the initial population uniformly within the bounds
func (o *GeneticOptimizer) InitializePopulation() *Population {
	individuals := make([]*Individual, o.config.PopulationSize)
	for i := range individuals {
		individuals[i] = o.operator.RandomIndividual(o.rng)
		if i < len(o.warmStart) {
			individuals[i] = NewIndividual(o.warmStart[i])
		}
	}
	return NewPopulation(individuals)
}

// Optimize runs a fresh search for the configured generation budget
func (o *GeneticOptimizer) Optimize(ctx context.Context) (*Result, error) {
	pop := o.InitializePopulation()
	state := &SearchState{
		Partition:     o.partition,
		SchemaVersion: o.schema.Version,
		GeneNames:     o.schema.Names(),
		Budget:        o.config.Generations,
		Population:    pop.Matrix(),
		BestFitness:   math.Inf(-1),
		Seed:          o.config.Seed,
	}
	return o.run(ctx, state)
}

// Resume continues a search from a saved state, restoring its RNG stream. A completed
// state is extended by another generation budget and restarts its best-so-far tracking.
func (o *GeneticOptimizer) Resume(ctx context.Context, state *SearchState) (*Result, error) {
	if state == nil || state.Population == nil {
		return nil, fmt.Errorf("resume %s: empty state", o.partition)
	}
	if _, g := state.Population.Dims(); g != o.schema.Len() {
		return nil, fmt.Errorf("resume %s: population has %d genes, schema expects %d", o.partition, g, o.schema.Len())
	}
	if len(state.RNGState) > 0 {
		if err := o.pcg.UnmarshalBinary(state.RNGState); err != nil {
			return nil, fmt.Errorf("resume %s: restore rng: %w", o.partition, err)
		}
	}

	st := *state
	st.History = append([]GenerationStats(nil), state.History...)
	st.SchemaVersion = o.schema.Version
	st.GeneNames = o.schema.Names()
	if st.Budget <= 0 {
		st.Budget = o.config.Generations
	}
	extended := st.Completed || st.Generation >= st.Budget
	if extended {
		st.Budget = st.Generation + o.config.Generations
		st.Completed = false
	}
	// a finished run is extended on a fresh event load; its best score is not comparable
	if extended || len(st.BestDNA) == 0 {
		st.BestFitness = math.Inf(-1)
		st.BestDNA = nil
		st.Stagnation = 0
	}

	log.Printf("🔁 Resuming %s at generation %d/%d", o.partition, st.Generation, st.Budget)
	return o.run(ctx, &st)
}

// run drives Evaluate → Select → Recombine → Mutate until the budget is spent or ctx is
// cancelled. Cancellation is only observed between generations.
func (o *GeneticOptimizer) run(ctx context.Context, st *SearchState) (*Result, error) {
	var evaluated *Population

	for st.Generation < st.Budget {
		if err := ctx.Err(); err != nil {
			if saveErr := o.checkpoint(st, CheckpointInterrupt); saveErr != nil {
				return nil, saveErr
			}
			log.Printf("⏸️ %s interrupted at generation %d", o.partition, st.Generation)
			return o.result(st, evaluated, true), nil
		}

		pop := PopulationFromMatrix(st.Population)
		fitness, err := o.evaluator.EvaluatePopulation(st.Population)
		if err != nil {
			return nil, fmt.Errorf("evaluate generation %d: %w", st.Generation, err)
		}
		if err := pop.SetFitness(fitness); err != nil {
			return nil, err
		}

		best := pop.GetBest()
		if best.Fitness > st.BestFitness+improvementEpsilon {
			st.BestFitness = best.Fitness
			st.BestDNA = append([]float64(nil), best.DNA...)
			st.Stagnation = 0
		} else {
			st.Stagnation++
		}

		rate := o.config.MutationRate
		radiation := false
		if st.Stagnation >= o.config.StagnationLimit {
			rate = math.Min(1, rate*o.config.RadiationMultiplier)
			radiation = true
			st.Stagnation = 0
			o.observer.OnRadiation(st.Generation, rate)
		}

		stats := GenerationStats{
			Generation:   st.Generation,
			Best:         best.Fitness,
			Mean:         pop.AverageFitness(),
			MutationRate: rate,
			Radiation:    radiation,
		}
		st.History = append(st.History, stats)
		o.observer.OnGeneration(stats)
		if st.Generation%ProgressReportInterval == 0 {
			log.Printf("🧬 %s gen %d: best %.4f, mean %.4f", o.partition, st.Generation, stats.Best, stats.Mean)
		}

		next := o.CreateNextGeneration(pop, rate)
		evaluated = pop
		st.Population = next.Matrix()
		st.Generation++

		if st.Generation < st.Budget && o.config.CheckpointInterval > 0 && st.Generation%o.config.CheckpointInterval == 0 {
			if err := o.checkpoint(st, CheckpointInterval); err != nil {
				return nil, err
			}
		}
	}

	st.Completed = true
	if err := o.checkpoint(st, CheckpointComplete); err != nil {
		return nil, err
	}
	log.Printf("✅ GA %s → best fitness %.4f after %d generations", o.partition, st.BestFitness, st.Generation)
	return o.result(st, evaluated, false), nil
}

// CreateNextGeneration keeps the elite unchanged and fills the rest with tournament
// selection, crossover and mutation at the given rate
func (o *GeneticOptimizer) CreateNextGeneration(pop *Population, mutationRate float64) *Population {
	size := pop.Size()
	eliteSize := int(math.Round(o.config.EliteFraction * float64(size)))
	if o.config.EliteFraction > 0 && eliteSize == 0 {
		eliteSize = 1
	}

	next := make([]*Individual, 0, size)
	next = append(next, pop.GetElite(eliteSize)...)

	for len(next) < size {
		parent1 := o.operator.Select(pop, o.config.TournamentSize, o.rng)
		parent2 := o.operator.Select(pop, o.config.TournamentSize, o.rng)

		child := o.operator.Crossover(parent1, parent2, o.config.CrossoverRate, o.rng)
		o.operator.Mutate(child, mutationRate, o.rng)
		next = append(next, child)
	}
	return NewPopulation(next)
}

func (o *GeneticOptimizer) checkpoint(st *SearchState, reason string) error {
	if o.checkpointer == nil {
		return nil
	}
	rngState, err := o.pcg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("checkpoint %s: marshal rng: %w", o.partition, err)
	}
	st.RNGState = rngState
	if err := o.checkpointer.Save(st); err != nil {
		return fmt.Errorf("checkpoint %s at generation %d: %w", o.partition, st.Generation, err)
	}
	o.observer.OnCheckpoint(st.Generation, reason)
	return nil
}

func (o *GeneticOptimizer) result(st *SearchState, evaluated *Population, interrupted bool) *Result {
	res := &Result{
		BestDNA:     append([]float64(nil), st.BestDNA...),
		BestFitness: st.BestFitness,
		History:     st.History,
		Generations: st.Generation,
		Interrupted: interrupted,
		State:       st,
	}
	if evaluated != nil {
		evaluated.SortByFitness()
		res.Population = evaluated
	}
	return res
}

// RNGState returns the serialized state of the optimizer's random stream
func (o *GeneticOptimizer) RNGState() ([]byte, error) {
	return o.pcg.MarshalBinary()
}

type nopObserver struct{}

func (nopObserver) OnGeneration(GenerationStats) {}
func (nopObserver) OnRadiation(int, float64) {}
func (nopObserver) OnCheckpoint(int, string) {}

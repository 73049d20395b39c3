// Package optimization provides the genetic search over betting-strategy DNA
package optimization

import (
	"gonum.org/v1/gonum/mat"
)

// FitnessEvaluator scores a whole (P×G) population in one call
type FitnessEvaluator interface {
	EvaluatePopulation(population *mat.Dense) ([]float64, error)
}

// Checkpointer persists loop state. It is only ever called between generations.
type Checkpointer interface {
	Save(state *SearchState) error
}

// Observer receives progress events from the search loop
type Observer interface {
	OnGeneration(stats GenerationStats)
	OnRadiation(generation int, mutationRate float64)
	OnCheckpoint(generation int, reason string)
}

// Crossover modes
const (
	CrossoverBlend   = "blend"
	CrossoverUniform = "uniform"
)

// OptimizationConfig holds the configuration for the genetic algorithm
type OptimizationConfig struct {
	PopulationSize      int     `json:"population_size" yaml:"population_size"`
	Generations         int     `json:"generations" yaml:"generations"`
	EliteFraction       float64 `json:"elite_fraction" yaml:"elite_fraction"`
	TournamentSize      int     `json:"tournament_size" yaml:"tournament_size"`
	CrossoverRate       float64 `json:"crossover_rate" yaml:"crossover_rate"`
	CrossoverMode       string  `json:"crossover_mode" yaml:"crossover_mode"`
	MutationRate        float64 `json:"mutation_rate" yaml:"mutation_rate"`
	MutationScale       float64 `json:"mutation_scale" yaml:"mutation_scale"`
	StagnationLimit     int     `json:"stagnation_limit" yaml:"stagnation_limit"`
	RadiationMultiplier float64 `json:"radiation_multiplier" yaml:"radiation_multiplier"`
	CheckpointInterval  int     `json:"checkpoint_interval" yaml:"checkpoint_interval"`
	Seed                uint64  `json:"seed" yaml:"seed"`
}

// GenerationStats is one entry of the fitness history
type GenerationStats struct {
	Generation   int     `json:"generation"`
	Best         float64 `json:"best"`
	Mean         float64 `json:"mean"`
	MutationRate float64 `json:"mutation_rate"`
	Radiation    bool    `json:"radiation,omitempty"`
}

// SearchState is everything needed to continue a run. Population holds the
// generation-th population, not yet evaluated.
type SearchState struct {
	Partition     string
	SchemaVersion int
	GeneNames     []string
	Generation    int
	Budget        int
	Completed     bool
	Population    *mat.Dense
	History       []GenerationStats
	BestFitness   float64
	BestDNA       []float64
	Stagnation    int
	Seed          uint64
	RNGState      []byte
}

// Result is the outcome of a search
type Result struct {
	BestDNA     []float64
	BestFitness float64
	Population  *Population // last evaluated generation, best first
	History     []GenerationStats
	Generations int
	Interrupted bool
	State       *SearchState
}

package optimization

import (
	"math/rand/v2"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// GeneticOperator implements selection, recombination and mutation over a gene schema.
// Every operator that produces DNA clips it into bounds before returning.
type GeneticOperator struct {
	schema *types.GeneSchema
	mode   string
	scale  float64
}

// NewGeneticOperator creates an operator for the schema
func NewGeneticOperator(schema *types.GeneSchema, crossoverMode string, mutationScale float64) *GeneticOperator {
	if crossoverMode == "" {
		crossoverMode = CrossoverBlend
	}
	return &GeneticOperator{schema: schema, mode: crossoverMode, scale: mutationScale}
}

// Select chooses an individual using tournament selection
func (op *GeneticOperator) Select(population *Population, tournamentSize int, rng *rand.Rand) *Individual {
	individuals := population.Individuals()
	if len(individuals) == 0 {
		return nil
	}

	best := individuals[rng.IntN(len(individuals))]
	for i := 1; i < tournamentSize; i++ {
		candidate := individuals[rng.IntN(len(individuals))]
		if candidate.Fitness > best.Fitness {
			best = candidate
		}
	}
	return best
}

// Crossover creates a child from two parents. Below the crossover rate the child is a copy of parent1.
func (op *GeneticOperator) Crossover(parent1, parent2 *Individual, rate float64, rng *rand.Rand) *Individual {
	child := NewIndividual(parent1.DNA)
	if rng.Float64() >= rate {
		return child
	}

	for g := range child.DNA {
		switch op.mode {
		case CrossoverUniform:
			if rng.Float64() < 0.5 {
				child.DNA[g] = parent2.DNA[g]
			}
		default:
			lambda := rng.Float64()
			child.DNA[g] = lambda*parent1.DNA[g] + (1-lambda)*parent2.DNA[g]
		}
	}
	op.schema.Clip(child.DNA)
	return child
}

// Mutate perturbs each gene with probability rate by a Gaussian step scaled to the gene's width
func (op *GeneticOperator) Mutate(individual *Individual, rate float64, rng *rand.Rand) {
	for g, gene := range op.schema.Genes {
		if rng.Float64() < rate {
			individual.DNA[g] += rng.NormFloat64() * op.scale * gene.Width()
		}
	}
	op.schema.Clip(individual.DNA)
	individual.Reset()
}

// RandomIndividual samples a fresh individual uniformly inside the bounds
func (op *GeneticOperator) RandomIndividual(rng *rand.Rand) *Individual {
	return &Individual{DNA: op.schema.RandomDNA(rng)}
}

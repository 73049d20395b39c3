package optimization

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Population is an ordered, fixed-size collection of individuals
type Population struct {
	individuals []*Individual
}

// NewPopulation creates a new population with the given individuals
func NewPopulation(individuals []*Individual) *Population {
	return &Population{individuals: individuals}
}

// PopulationFromMatrix builds a population from the rows of a (P×G) matrix
func PopulationFromMatrix(m *mat.Dense) *Population {
	p, _ := m.Dims()
	individuals := make([]*Individual, p)
	for i := 0; i < p; i++ {
		individuals[i] = NewIndividual(m.RawRowView(i))
	}
	return NewPopulation(individuals)
}

// Individuals returns all individuals in the population
func (p *Population) Individuals() []*Individual {
	return p.individuals
}

// Size returns the number of individuals in the population
func (p *Population) Size() int {
	return len(p.individuals)
}

// Matrix lays the population out as a (P×G) matrix, one row per individual
func (p *Population) Matrix() *mat.Dense {
	if len(p.individuals) == 0 {
		return nil
	}
	g := len(p.individuals[0].DNA)
	data := make([]float64, 0, len(p.individuals)*g)
	for _, ind := range p.individuals {
		data = append(data, ind.DNA...)
	}
	return mat.NewDense(len(p.individuals), g, data)
}

// SetFitness assigns an evaluated fitness vector in population order
func (p *Population) SetFitness(fitness []float64) error {
	if len(fitness) != len(p.individuals) {
		return fmt.Errorf("fitness vector has %d entries, population has %d", len(fitness), len(p.individuals))
	}
	for i, f := range fitness {
		p.individuals[i].Fitness = f
	}
	return nil
}

// GetBest returns the individual with the highest fitness; ties keep the earliest
func (p *Population) GetBest() *Individual {
	if len(p.individuals) == 0 {
		return nil
	}

	best := p.individuals[0]
	for _, individual := range p.individuals[1:] {
		if individual.Fitness > best.Fitness {
			best = individual
		}
	}
	return best
}

// SortByFitness sorts the population by fitness in descending order (best first).
// The sort is stable so equal-fitness order is reproducible.
func (p *Population) SortByFitness() {
	sort.SliceStable(p.individuals, func(i, j int) bool {
		return p.individuals[i].Fitness > p.individuals[j].Fitness
	})
}

// AverageFitness calculates the average fitness of all individuals
func (p *Population) AverageFitness() float64 {
	if len(p.individuals) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, individual := range p.individuals {
		sum += individual.Fitness
	}
	return sum / float64(len(p.individuals))
}

// GetElite returns copies of the top n individuals by fitness
func (p *Population) GetElite(n int) []*Individual {
	sorted := make([]*Individual, len(p.individuals))
	copy(sorted, p.individuals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Fitness > sorted[j].Fitness
	})
	if n > len(sorted) {
		n = len(sorted)
	}

	elite := make([]*Individual, n)
	for i := 0; i < n; i++ {
		elite[i] = sorted[i].Copy()
	}
	return elite
}

// Top returns the first n individuals after sorting, sharing storage with the population
func (p *Population) Top(n int) []*Individual {
	p.SortByFitness()
	if n > len(p.individuals) {
		n = len(p.individuals)
	}
	return p.individuals[:n]
}

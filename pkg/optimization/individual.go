package optimization

// Individual is one candidate DNA with its last evaluated fitness
type Individual struct {
	DNA     []float64
	Fitness float64
}

// NewIndividual creates an individual owning a copy of dna
func NewIndividual(dna []float64) *Individual {
	return &Individual{DNA: append([]float64(nil), dna...)}
}

// Copy creates a deep copy of this individual
func (i *Individual) Copy() *Individual {
	return &Individual{
		DNA:     append([]float64(nil), i.DNA...),
		Fitness: i.Fitness,
	}
}

// Reset clears the fitness for re-evaluation
func (i *Individual) Reset() {
	i.Fitness = 0.0
}

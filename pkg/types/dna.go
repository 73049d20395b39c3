package types

import (
	"fmt"
	"math/rand/v2"
)

// Gene families
const (
	FamilyAdmission = "admission"
	FamilySignal    = "signal"
	FamilyRisk      = "risk"
)

// Gene names of the current schema
const (
	GeneMinEdge          = "min_edge"
	GeneMinConfidence    = "min_confidence"
	GeneMomentumWeight   = "momentum_weight"
	GeneSharpWeight      = "sharp_weight"
	GeneRestWeight       = "rest_weight"
	GeneKellyFraction    = "kelly_fraction"
	GeneMaxStake         = "max_stake"
	GeneH2HWeight        = "h2h_weight"
	GeneBayesTrust       = "bayes_trust"
	GeneHomeVenueBias    = "home_venue_bias"
	GeneAwayVenueBias    = "away_venue_bias"
	GeneDrawThreshold    = "draw_threshold"
	GeneVolatilityBuffer = "volatility_buffer"
)

// Gene indexes of the current schema. Schema v1 is the first seven.
const (
	IdxMinEdge = iota
	IdxMinConfidence
	IdxMomentumWeight
	IdxSharpWeight
	IdxRestWeight
	IdxKellyFraction
	IdxMaxStake
	IdxH2HWeight
	IdxBayesTrust
	IdxHomeVenueBias
	IdxAwayVenueBias
	IdxDrawThreshold
	IdxVolatilityBuffer
)

// CurrentSchemaVersion is the gene schema produced by this build
const CurrentSchemaVersion = 2

// GeneRange is one gene with its closed bounding interval
type GeneRange struct {
	Name   string  `json:"name"`
	Family string  `json:"family"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Midpoint returns the neutral default used for padding and missing genes
func (g GeneRange) Midpoint() float64 {
	return (g.Min + g.Max) / 2
}

// Width returns the size of the legal interval
func (g GeneRange) Width() float64 {
	return g.Max - g.Min
}

// Clip clamps v into the gene's interval
func (g GeneRange) Clip(v float64) float64 {
	if v < g.Min {
		return g.Min
	}
	if v > g.Max {
		return g.Max
	}
	return v
}

// GeneSchema is the ordered gene layout of a DNA vector
type GeneSchema struct {
	Version int
	Genes   []GeneRange
}

var schemaV2Genes = []GeneRange{
	{Name: GeneMinEdge, Family: FamilyAdmission, Min: 0.0, Max: 0.15},
	{Name: GeneMinConfidence, Family: FamilyAdmission, Min: 0.35, Max: 0.80},
	{Name: GeneMomentumWeight, Family: FamilySignal, Min: 0.0, Max: 1.0},
	{Name: GeneSharpWeight, Family: FamilySignal, Min: 0.0, Max: 1.0},
	{Name: GeneRestWeight, Family: FamilySignal, Min: 0.0, Max: 1.0},
	{Name: GeneKellyFraction, Family: FamilyRisk, Min: 0.05, Max: 0.50},
	{Name: GeneMaxStake, Family: FamilyRisk, Min: 0.005, Max: 0.10},
	{Name: GeneH2HWeight, Family: FamilySignal, Min: 0.0, Max: 1.0},
	{Name: GeneBayesTrust, Family: FamilySignal, Min: 0.0, Max: 1.0},
	{Name: GeneHomeVenueBias, Family: FamilySignal, Min: 0.80, Max: 1.20},
	{Name: GeneAwayVenueBias, Family: FamilySignal, Min: 0.80, Max: 1.20},
	{Name: GeneDrawThreshold, Family: FamilySignal, Min: 0.30, Max: 0.90},
	{Name: GeneVolatilityBuffer, Family: FamilyRisk, Min: 0.0, Max: 0.10},
}

// DefaultGeneSchema returns the current 13-gene schema
func DefaultGeneSchema() *GeneSchema {
	genes := make([]GeneRange, len(schemaV2Genes))
	copy(genes, schemaV2Genes)
	return &GeneSchema{Version: CurrentSchemaVersion, Genes: genes}
}

// SchemaForVersion returns the schema layout a given version used.
func SchemaForVersion(version int) (*GeneSchema, error) {
	switch version {
	case 1:
		genes := make([]GeneRange, 7)
		copy(genes, schemaV2Genes[:7])
		return &GeneSchema{Version: 1, Genes: genes}, nil
	case 2:
		return DefaultGeneSchema(), nil
	default:
		return nil, fmt.Errorf("unknown gene schema version %d", version)
	}
}

// Len returns the number of genes
func (s *GeneSchema) Len() int {
	return len(s.Genes)
}

// Names returns the gene names in vector order
func (s *GeneSchema) Names() []string {
	names := make([]string, len(s.Genes))
	for i, g := range s.Genes {
		names[i] = g.Name
	}
	return names
}

// Index returns the position of the named gene, or -1
func (s *GeneSchema) Index(name string) int {
	for i, g := range s.Genes {
		if g.Name == name {
			return i
		}
	}
	return -1
}

// Midpoints returns a DNA vector holding every gene's neutral default
func (s *GeneSchema) Midpoints() []float64 {
	dna := make([]float64, len(s.Genes))
	for i, g := range s.Genes {
		dna[i] = g.Midpoint()
	}
	return dna
}

// Clip clamps every gene of dna into its bound in place. Extra trailing values are left untouched.
func (s *GeneSchema) Clip(dna []float64) {
	for i := 0; i < len(dna) && i < len(s.Genes); i++ {
		dna[i] = s.Genes[i].Clip(dna[i])
	}
}

// InBounds reports whether every gene lies in its closed interval
func (s *GeneSchema) InBounds(dna []float64) bool {
	if len(dna) != len(s.Genes) {
		return false
	}
	for i, g := range s.Genes {
		if dna[i] < g.Min || dna[i] > g.Max {
			return false
		}
	}
	return true
}

// Pad returns dna extended to the schema width with midpoints for the missing genes.
// A vector wider than the schema is an error, never truncated.
func (s *GeneSchema) Pad(dna []float64) ([]float64, error) {
	if len(dna) > len(s.Genes) {
		return nil, fmt.Errorf("dna has %d genes, schema v%d has %d", len(dna), s.Version, len(s.Genes))
	}
	out := make([]float64, len(s.Genes))
	copy(out, dna)
	for i := len(dna); i < len(s.Genes); i++ {
		out[i] = s.Genes[i].Midpoint()
	}
	return out, nil
}

// RandomDNA samples every gene uniformly within its bound
func (s *GeneSchema) RandomDNA(rng *rand.Rand) []float64 {
	dna := make([]float64, len(s.Genes))
	for i, g := range s.Genes {
		dna[i] = g.Min + rng.Float64()*g.Width()
	}
	return dna
}

// ToMap renders a DNA vector as name -> value
func (s *GeneSchema) ToMap(dna []float64) map[string]float64 {
	m := make(map[string]float64, len(s.Genes))
	for i := 0; i < len(dna) && i < len(s.Genes); i++ {
		m[s.Genes[i].Name] = dna[i]
	}
	return m
}

// FromMap builds a DNA vector from name -> value, using midpoints for absent genes.
func (s *GeneSchema) FromMap(m map[string]float64) []float64 {
	dna := make([]float64, len(s.Genes))
	for i, g := range s.Genes {
		if v, ok := m[g.Name]; ok {
			dna[i] = g.Clip(v)
		} else {
			dna[i] = g.Midpoint()
		}
	}
	return dna
}

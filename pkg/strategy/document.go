// Package strategy holds the deployable output of an evolution run and its persistence.
package strategy

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ducminhle1904/dna-evolution/internal/backtest"
	"github.com/ducminhle1904/dna-evolution/pkg/optimization"
	"github.com/ducminhle1904/dna-evolution/pkg/robustness"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
	"github.com/ducminhle1904/dna-evolution/pkg/validation"
)

// EngineVersion is stamped on every document
const EngineVersion = "1.0.0"

// EventCounts records how the partition's events were used
type EventCounts struct {
	Total      int `json:"total"`
	Admissible int `json:"admissible"`
	Search     int `json:"search"`
	Validation int `json:"validation"`
	Folds      int `json:"folds,omitempty"`
}

// Document is the strategy handed to the staking side. Consumers read genes by name and must
// treat any gene absent from an older document as its midpoint.
type Document struct {
	SchemaVersion     int                            `json:"schema_version"`
	EngineVersion     string                         `json:"engine_version"`
	RunID             string                         `json:"run_id"`
	Partition         string                         `json:"partition"`
	CreatedAt         time.Time                      `json:"created_at"`
	ValidationMode    validation.Mode                `json:"validation_mode"`
	Method            string                         `json:"method"`
	Active            bool                           `json:"active"`
	FailureReason     string                         `json:"failure_reason,omitempty"`
	GeneNames         []string                       `json:"gene_names"`
	DNA               map[string]float64             `json:"dna"`
	Ensemble          []map[string]float64           `json:"ensemble,omitempty"`
	TrainFitness      backtest.FitnessRecord         `json:"train_fitness"`
	ValidationFitness backtest.FitnessRecord         `json:"validation_fitness"`
	ValidationSummary *validation.ValidationSummary  `json:"validation_summary,omitempty"`
	StressTest        []robustness.CandidateReport   `json:"stress_test"`
	Generations       int                            `json:"generations"`
	History           []optimization.GenerationStats `json:"history,omitempty"`
	EventCounts       EventCounts                    `json:"event_counts"`
}

// NewDocument starts an inactive document for a partition with a fresh run ID
func NewDocument(partition string, schema *types.GeneSchema) *Document {
	return &Document{
		SchemaVersion: schema.Version,
		EngineVersion: EngineVersion,
		RunID:         uuid.NewString(),
		Partition:     partition,
		CreatedAt:     time.Now().UTC(),
		Method:        robustness.MethodNone,
		GeneNames:     schema.Names(),
		DNA:           map[string]float64{},
	}
}

// ApplyGate copies the gate verdict onto the document. The primary DNA is the best survivor,
// or the best tested candidate when nothing survived.
func (d *Document) ApplyGate(schema *types.GeneSchema, res *robustness.GateResult) {
	d.StressTest = res.Candidates
	d.Method = res.Ensemble.Method
	d.Active = res.Active()
	d.FailureReason = res.FailureReason

	d.Ensemble = nil
	for _, m := range res.Ensemble.Members {
		d.Ensemble = append(d.Ensemble, schema.ToMap(m))
	}
	switch {
	case len(res.Ensemble.Members) > 0:
		d.DNA = schema.ToMap(res.Ensemble.Members[0])
	case len(res.Candidates) > 0:
		d.DNA = schema.ToMap(res.Candidates[0].DNA)
	}
}

// Vector returns the primary DNA in schema order, filling absent genes with midpoints
func (d *Document) Vector(schema *types.GeneSchema) []float64 {
	return schema.FromMap(d.DNA)
}

// EnsembleVectors returns every ensemble member in schema order. A document without an
// explicit ensemble deploys its primary DNA alone.
func (d *Document) EnsembleVectors(schema *types.GeneSchema) [][]float64 {
	if len(d.Ensemble) == 0 {
		if len(d.DNA) == 0 {
			return nil
		}
		return [][]float64{d.Vector(schema)}
	}
	out := make([][]float64, len(d.Ensemble))
	for i, m := range d.Ensemble {
		out[i] = schema.FromMap(m)
	}
	return out
}

// RecommendStake sizes a bet on an upcoming event as the median of the ensemble's stakes
func (d *Document) RecommendStake(evaluator *backtest.Evaluator, schema *types.GeneSchema, event types.Event) (float64, error) {
	if !d.Active {
		return 0, fmt.Errorf("strategy for %s is inactive: %s", d.Partition, d.FailureReason)
	}
	return robustness.NewEnsemble(d.EnsembleVectors(schema)).RecommendStake(evaluator, event)
}

// Validate checks the fields every consumer relies on
func (d *Document) Validate() error {
	if d.Partition == "" {
		return fmt.Errorf("document has no partition")
	}
	if _, err := uuid.Parse(d.RunID); err != nil {
		return fmt.Errorf("document run id %q: %w", d.RunID, err)
	}
	if !d.Active && d.FailureReason == "" {
		return fmt.Errorf("inactive document for %s has no failure reason", d.Partition)
	}
	if d.Active && len(d.DNA) == 0 {
		return fmt.Errorf("active document for %s has no dna", d.Partition)
	}
	return nil
}

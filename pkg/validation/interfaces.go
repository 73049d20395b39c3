// Package validation provides leakage-safe temporal splits for the genetic search.
package validation

import (
	"fmt"
	"time"

	"github.com/ducminhle1904/dna-evolution/internal/backtest"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// Mode selects how search fitness is computed
type Mode string

const (
	// ModeHoldout scores candidates on one chronological train split (fast path)
	ModeHoldout Mode = "holdout"
	// ModeExpanding scores candidates by their worst expanding-window fold (deep path)
	ModeExpanding Mode = "expanding"
)

// ParseMode accepts holdout/expanding and the fast/deep aliases
func ParseMode(s string) (Mode, error) {
	switch s {
	case "holdout", "fast", "":
		return ModeHoldout, nil
	case "expanding", "deep":
		return ModeExpanding, nil
	default:
		return "", fmt.Errorf("unknown validation mode %q (want fast|deep)", s)
	}
}

// DataSplitter defines the interface for splitting events into train/validation sets
type DataSplitter interface {
	SplitByRatio(events []types.Event, ratio float64) ([]types.Event, []types.Event)
	CreateExpandingFolds(events []types.Event, chunks int) ([]FoldSplit, []int)
}

// ValidationConfig holds the configuration for temporal validation
type ValidationConfig struct {
	Mode         Mode    `json:"mode" yaml:"mode"`
	HoldoutRatio float64 `json:"holdout_ratio" yaml:"holdout_ratio"`
	Folds        int     `json:"folds" yaml:"folds"`
}

// DefaultValidationConfig returns the 80/20 holdout with 5 chunks for deep mode
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{Mode: ModeHoldout, HoldoutRatio: 0.8, Folds: 5}
}

// Validate checks the validation configuration
func (c ValidationConfig) Validate() error {
	if c.Mode != ModeHoldout && c.Mode != ModeExpanding {
		return fmt.Errorf("validation mode must be %s or %s, got: %s", ModeHoldout, ModeExpanding, c.Mode)
	}
	if c.HoldoutRatio <= 0 || c.HoldoutRatio >= 1 {
		return fmt.Errorf("holdout ratio must be in (0,1), got: %.3f", c.HoldoutRatio)
	}
	if c.Mode == ModeExpanding && c.Folds < 2 {
		return fmt.Errorf("expanding mode needs at least 2 chunks, got: %d", c.Folds)
	}
	return nil
}

// FoldSplit is one (train, validation) pair. Every train timestamp is strictly earlier
// than every validation timestamp.
type FoldSplit struct {
	Index           int
	Train           []types.Event
	Validation      []types.Event
	TrainStart      time.Time
	TrainEnd        time.Time
	ValidationStart time.Time
	ValidationEnd   time.Time
}

// Plan is the full temporal layout of one partition run
type Plan struct {
	Mode Mode
	// Search is what the GA sees; Validation is held back for ranking and the robustness gate
	Search     []types.Event
	Validation []types.Event
	Folds      []FoldSplit
	// DroppedFolds lists fold indexes removed because a timestamp tie emptied them
	DroppedFolds []int
}

// FoldRecord is the best candidate's score on one fold
type FoldRecord struct {
	Index  int                    `json:"index"`
	Events int                    `json:"events"`
	Record backtest.FitnessRecord `json:"record"`
}

// ValidationSummary compares in-sample and out-of-sample performance of one DNA
type ValidationSummary struct {
	Mode              Mode                   `json:"mode"`
	Train             backtest.FitnessRecord `json:"train"`
	Validation        backtest.FitnessRecord `json:"validation"`
	Folds             []FoldRecord           `json:"folds,omitempty"`
	ReturnDegradation float64                `json:"return_degradation"`
	OverfittingRisk   string                 `json:"overfitting_risk"`
}

// Package robustness stress-tests evolved candidates before they are deployed.
package robustness

import (
	"fmt"
)

// Ensemble methods recorded on a strategy document
const (
	MethodEnsembleMedian = "ensemble_median"
	MethodSingle         = "single"
	MethodNone           = "none"
)

// GateConfig holds the thresholds of the robustness gate
type GateConfig struct {
	TopN               int     `json:"top_n" yaml:"top_n"`
	BootstrapSamples   int     `json:"bootstrap_samples" yaml:"bootstrap_samples"`
	BootstrapThreshold float64 `json:"bootstrap_threshold" yaml:"bootstrap_threshold"`
	MonteCarloPaths    int     `json:"monte_carlo_paths" yaml:"monte_carlo_paths"`
	Bankroll           float64 `json:"bankroll" yaml:"bankroll"`
	RuinLevel          float64 `json:"ruin_level" yaml:"ruin_level"`
	RuinThreshold      float64 `json:"ruin_threshold" yaml:"ruin_threshold"`
	RescueAttempts     int     `json:"rescue_attempts" yaml:"rescue_attempts"`
	RescueFactor       float64 `json:"rescue_factor" yaml:"rescue_factor"`
	Seed               uint64  `json:"seed" yaml:"seed"`
}

// DefaultGateConfig returns the production thresholds
func DefaultGateConfig() GateConfig {
	return GateConfig{
		TopN:               5,
		BootstrapSamples:   2000,
		BootstrapThreshold: 0.90,
		MonteCarloPaths:    10000,
		Bankroll:           1.0,
		RuinLevel:          0.5,
		RuinThreshold:      0.05,
		RescueAttempts:     5,
		RescueFactor:       0.7,
		Seed:               42,
	}
}

// Validate checks the gate configuration
func (c GateConfig) Validate() error {
	if c.TopN < 1 {
		return fmt.Errorf("top-n must be positive, got: %d", c.TopN)
	}
	if c.BootstrapSamples < 1 {
		return fmt.Errorf("bootstrap samples must be positive, got: %d", c.BootstrapSamples)
	}
	if c.BootstrapThreshold < 0 || c.BootstrapThreshold >= 1 {
		return fmt.Errorf("bootstrap threshold must be in [0,1), got: %.3f", c.BootstrapThreshold)
	}
	if c.MonteCarloPaths < 1 {
		return fmt.Errorf("monte carlo paths must be positive, got: %d", c.MonteCarloPaths)
	}
	if c.Bankroll <= 0 {
		return fmt.Errorf("bankroll must be positive, got: %.3f", c.Bankroll)
	}
	if c.RuinLevel < 0 || c.RuinLevel >= c.Bankroll {
		return fmt.Errorf("ruin level must be in [0, bankroll), got: %.3f", c.RuinLevel)
	}
	if c.RuinThreshold <= 0 || c.RuinThreshold > 1 {
		return fmt.Errorf("ruin threshold must be in (0,1], got: %.3f", c.RuinThreshold)
	}
	if c.RescueAttempts < 0 {
		return fmt.Errorf("rescue attempts must be non-negative, got: %d", c.RescueAttempts)
	}
	if c.RescueFactor <= 0 || c.RescueFactor >= 1 {
		return fmt.Errorf("rescue factor must be in (0,1), got: %.3f", c.RescueFactor)
	}
	return nil
}

// BootstrapResult summarises ROI over resampled validation sets
type BootstrapResult struct {
	Samples   int     `json:"samples"`
	MeanROI   float64 `json:"mean_roi"`
	CILower   float64 `json:"ci_lower"`
	CIUpper   float64 `json:"ci_upper"`
	PPositive float64 `json:"p_positive"`
}

// MonteCarloResult summarises shuffled bankroll paths
type MonteCarloResult struct {
	Paths           int     `json:"paths"`
	Bets            int     `json:"bets"`
	RuinProbability float64 `json:"ruin_probability"`
	DrawdownP50     float64 `json:"drawdown_p50"`
	DrawdownP95     float64 `json:"drawdown_p95"`
	DrawdownP99     float64 `json:"drawdown_p99"`
	MedianFinal     float64 `json:"median_final_bankroll"`
}

// RescueResult records an adaptive stake reduction
type RescueResult struct {
	Attempts  int     `json:"attempts"`
	Scale     float64 `json:"scale"`
	Succeeded bool    `json:"succeeded"`
}

// CandidateReport is the gate verdict on one candidate
type CandidateReport struct {
	Rank              int              `json:"rank"`
	DNA               []float64        `json:"dna"`
	ValidationFitness float64          `json:"validation_fitness"`
	Bootstrap         BootstrapResult  `json:"bootstrap"`
	MonteCarlo        MonteCarloResult `json:"monte_carlo"`
	Rescue            *RescueResult    `json:"rescue,omitempty"`
	Passed            bool             `json:"passed"`
	Reason            string           `json:"reason,omitempty"`
}

// Candidate is a DNA ranked by its validation fitness
type Candidate struct {
	DNA     []float64
	Fitness float64
}

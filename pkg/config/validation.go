package config

import (
	"fmt"
)

// Validate performs comprehensive validation on the engine configuration
func (c *EngineConfig) Validate() error {
	if err := c.Optimization.Validate(); err != nil {
		return fmt.Errorf("optimization: %w", err)
	}
	if err := c.Validation.Validate(); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("gate: %w", err)
	}
	if err := c.Evaluator.Validate(); err != nil {
		return fmt.Errorf("evaluator: %w", err)
	}

	if !c.Data.Configured() {
		return fmt.Errorf("no event source configured: set events_csv, postgres_dsn or synthetic_events")
	}
	if c.Data.SyntheticEvents < 0 {
		return fmt.Errorf("synthetic events must be non-negative, got: %d", c.Data.SyntheticEvents)
	}
	if c.Data.Lookback < 0 {
		return fmt.Errorf("lookback must be non-negative, got: %s", c.Data.Lookback)
	}

	if c.MinPartitionEvents <= 0 {
		return fmt.Errorf("min partition events must be positive, got: %d", c.MinPartitionEvents)
	}
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max workers must be non-negative, got: %d", c.MaxWorkers)
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("watch interval must be positive, got: %s", c.WatchInterval)
	}
	if c.PeriodLength < 0 {
		return fmt.Errorf("period length must be non-negative, got: %s", c.PeriodLength)
	}

	for name, dir := range map[string]string{
		"checkpoint_dir": c.CheckpointDir,
		"strategy_dir":   c.StrategyDir,
		"log_dir":        c.LogDir,
	} {
		if dir == "" {
			return fmt.Errorf("%s must be set", name)
		}
	}
	return nil
}

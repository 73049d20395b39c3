package optimization

// GetDefaultOptimizationConfig returns the default optimization configuration
func GetDefaultOptimizationConfig() OptimizationConfig {
	return OptimizationConfig{
		PopulationSize:      50,
		Generations:         30,
		EliteFraction:       0.1,
		TournamentSize:      3,
		CrossoverRate:       0.8,
		MutationRate:        0.1,
		MutationScale:       0.1,
		StagnationLimit:     5,
		RadiationMultiplier: 4.0,
		CheckpointInterval:  5,
		Seed:                42,
	}
}

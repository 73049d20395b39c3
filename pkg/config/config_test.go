package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/dna-evolution/pkg/validation"
)

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestNewDefaultEngineConfig(t *testing.T) {
	cfg := NewDefaultEngineConfig()
	assert.Equal(t, 50, cfg.Optimization.PopulationSize)
	assert.Equal(t, 30, cfg.Optimization.Generations)
	assert.Equal(t, validation.ModeHoldout, cfg.Validation.Mode)
	assert.Equal(t, 0.90, cfg.Gate.BootstrapThreshold)
	assert.Equal(t, 0.5, cfg.Evaluator.Weights.ROI)
	assert.Equal(t, DefaultMinPartitionEvents, cfg.MinPartitionEvents)
	assert.Equal(t, 7*24*time.Hour, cfg.Period())

	// defaults lack an event source
	assert.Error(t, cfg.Validate())
	cfg.Data.SyntheticEvents = 500
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	body := `
optimization:
  population_size: 80
  generations: 12
validation:
  mode: expanding
  folds: 4
gate:
  top_n: 3
data:
  events_csv: ledger.csv
  lookback: 365d
watch_interval: 90m
parallel: true
max_workers: 2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := NewEngineConfigManagerWithEnv(envOf(nil)).LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Optimization.PopulationSize)
	assert.Equal(t, 12, cfg.Optimization.Generations)
	// untouched fields keep their defaults
	assert.Equal(t, 3, cfg.Optimization.TournamentSize)
	assert.Equal(t, validation.ModeExpanding, cfg.Validation.Mode)
	assert.Equal(t, 4, cfg.Validation.Folds)
	assert.Equal(t, 0.8, cfg.Validation.HoldoutRatio)
	assert.Equal(t, 3, cfg.Gate.TopN)
	assert.Equal(t, "ledger.csv", cfg.Data.EventsCSV)
	assert.Equal(t, 365*24*time.Hour, cfg.Data.Lookback.D())
	assert.Equal(t, 90*time.Minute, cfg.WatchInterval.D())
	assert.True(t, cfg.Parallel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.json")
	body := `{"optimization": {"seed": 7}, "data": {"synthetic_events": 1000, "query_timeout": 5}, "watch_interval": "2h"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := NewEngineConfigManagerWithEnv(envOf(nil)).LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cfg.Optimization.Seed)
	assert.Equal(t, 1000, cfg.Data.SyntheticEvents)
	assert.Equal(t, 5*time.Second, cfg.Data.QueryTimeout.D())
	assert.Equal(t, 2*time.Hour, cfg.WatchInterval.D())
	assert.Equal(t, 5*time.Second, cfg.DatabaseConfig().QueryTimeout)
}

func TestLoadConfig_Errors(t *testing.T) {
	m := NewEngineConfigManagerWithEnv(envOf(nil))
	_, err := m.LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "engine.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0644))
	_, err = m.LoadConfig(path)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "engine.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"watch_interval": "soon"}`), 0644))
	_, err = m.LoadConfig(bad)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	m := NewEngineConfigManagerWithEnv(envOf(map[string]string{
		"EVOLVE_GENERATIONS":    "60",
		"EVOLVE_SEED":           "99",
		"EVOLVE_MODE":           "deep",
		"EVOLVE_PG_DSN":         "postgres://localhost/ledger",
		"EVOLVE_WATCH_INTERVAL": "1d",
		"EVOLVE_PARALLEL":       "true",
		"EVOLVE_WORKERS":        "8",
	}))
	cfg, err := m.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Optimization.Generations)
	assert.Equal(t, uint64(99), cfg.Optimization.Seed)
	assert.Equal(t, uint64(99), cfg.Gate.Seed)
	assert.Equal(t, validation.ModeExpanding, cfg.Validation.Mode)
	assert.Equal(t, "postgres://localhost/ledger", cfg.Data.PostgresDSN)
	assert.Equal(t, 24*time.Hour, cfg.WatchInterval.D())
	assert.True(t, cfg.Parallel)
	assert.Equal(t, 8, cfg.MaxWorkers)

	_, err = NewEngineConfigManagerWithEnv(envOf(map[string]string{"EVOLVE_GENERATIONS": "many"})).LoadConfig("")
	assert.Error(t, err)
	_, err = NewEngineConfigManagerWithEnv(envOf(map[string]string{"EVOLVE_MODE": "slow"})).LoadConfig("")
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "absent.env"), false))
	assert.Error(t, LoadEnvFile(filepath.Join(dir, "absent.env"), true))

	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("EVOLVE_TEST_ONLY_VAR=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("EVOLVE_TEST_ONLY_VAR") })
	require.NoError(t, LoadEnvFile(path, true))
	assert.Equal(t, "from-dotenv", os.Getenv("EVOLVE_TEST_ONLY_VAR"))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	m := NewEngineConfigManagerWithEnv(envOf(nil))
	cfg := NewDefaultEngineConfig()
	cfg.Data.EventsCSV = "ledger.csv"
	cfg.WatchInterval = Duration(3 * time.Hour)

	for _, name := range []string{"out/engine.json", "out/engine.yaml"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, m.SaveConfig(cfg, path))
		loaded, err := m.LoadConfig(path)
		require.NoError(t, err, name)
		assert.Equal(t, cfg, loaded, name)
	}
}

func TestDuration_Encoding(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"45s"`), &d))
	assert.Equal(t, 45*time.Second, d.D())
	require.NoError(t, json.Unmarshal([]byte(`1.5`), &d))
	assert.Equal(t, 1500*time.Millisecond, d.D())

	var holder struct {
		Every Duration `yaml:"every"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("every: 30d"), &holder))
	assert.Equal(t, 30*24*time.Hour, holder.Every.D())
	require.NoError(t, yaml.Unmarshal([]byte("every: 10"), &holder))
	assert.Equal(t, 10*time.Second, holder.Every.D())

	out, err := json.Marshal(Duration(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, `"1m0s"`, string(out))
}

func TestValidate(t *testing.T) {
	base := func() *EngineConfig {
		cfg := NewDefaultEngineConfig()
		cfg.Data.EventsCSV = "ledger.csv"
		return cfg
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*EngineConfig){
		"population":     func(c *EngineConfig) { c.Optimization.PopulationSize = 1 },
		"holdout":        func(c *EngineConfig) { c.Validation.HoldoutRatio = 1 },
		"gate":           func(c *EngineConfig) { c.Gate.BootstrapThreshold = 1.5 },
		"weights":        func(c *EngineConfig) { c.Evaluator.Weights.ROI = -1 },
		"min events":     func(c *EngineConfig) { c.MinPartitionEvents = 0 },
		"workers":        func(c *EngineConfig) { c.MaxWorkers = -1 },
		"watch":          func(c *EngineConfig) { c.WatchInterval = 0 },
		"checkpoint dir": func(c *EngineConfig) { c.CheckpointDir = "" },
	}
	for name, mutate := range cases {
		cfg := base()
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestWorkers(t *testing.T) {
	cfg := NewDefaultEngineConfig()
	assert.Equal(t, 1, cfg.Workers(10))
	cfg.Parallel = true
	cfg.MaxWorkers = 4
	assert.Equal(t, 4, cfg.Workers(10))
	assert.Equal(t, 3, cfg.Workers(3))
	cfg.MaxWorkers = 0
	assert.Equal(t, 6, cfg.Workers(6))
	assert.Equal(t, 1, cfg.Workers(0))
}

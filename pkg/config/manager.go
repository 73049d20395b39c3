package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ducminhle1904/dna-evolution/pkg/validation"
)

// EngineConfigManager implements ConfigManager for the evolution engine
type EngineConfigManager struct {
	lookup func(string) (string, bool)
}

// NewEngineConfigManager creates a manager that reads overrides from the process environment
func NewEngineConfigManager() *EngineConfigManager {
	return &EngineConfigManager{lookup: os.LookupEnv}
}

// NewEngineConfigManagerWithEnv creates a manager with a custom environment lookup
func NewEngineConfigManagerWithEnv(lookup func(string) (string, bool)) *EngineConfigManager {
	return &EngineConfigManager{lookup: lookup}
}

// LoadEnvFile loads a .env file into the process environment. A missing default
// file is not an error; a missing explicit file is.
func LoadEnvFile(path string, explicit bool) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	log.Printf("🔑 Loaded environment from %s", path)
	return nil
}

// LoadConfig starts from defaults, overlays the config file when given, then applies
// EVOLVE_* environment overrides. The result is not validated; callers validate after
// applying their own flag overrides.
func (m *EngineConfigManager) LoadConfig(configFile string) (*EngineConfig, error) {
	cfg := NewDefaultEngineConfig()

	if configFile != "" {
		if err := m.loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	if err := m.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	return cfg, nil
}

// loadFromFile decodes JSON or YAML on top of cfg
func (m *EngineConfigManager) loadFromFile(configFile string, cfg *EngineConfig) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("could not read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("could not parse YAML config: %w", err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("could not parse JSON config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(configFile))
	}
	return nil
}

// ApplyEnv overlays EVOLVE_* variables onto cfg
func (m *EngineConfigManager) ApplyEnv(cfg *EngineConfig) error {
	str := func(name string, dst *string) {
		if v, ok := m.lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := m.lookup(EnvPrefix + name)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("EVENTS_CSV", &cfg.Data.EventsCSV)
	str("PG_DSN", &cfg.Data.PostgresDSN)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("CHECKPOINT_DIR", &cfg.CheckpointDir)
	str("STRATEGY_DIR", &cfg.StrategyDir)
	str("LOG_DIR", &cfg.LogDir)
	str("REPORT_DIR", &cfg.ReportDir)
	str("METRICS_ADDR", &cfg.MetricsAddr)

	for name, dst := range map[string]*int{
		"GENERATIONS":          &cfg.Optimization.Generations,
		"POPULATION":           &cfg.Optimization.PopulationSize,
		"MIN_PARTITION_EVENTS": &cfg.MinPartitionEvents,
		"WORKERS":              &cfg.MaxWorkers,
		"SYNTHETIC_EVENTS":     &cfg.Data.SyntheticEvents,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}

	if v, ok := m.lookup(EnvPrefix + "SEED"); ok && v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSEED: %w", EnvPrefix, err)
		}
		cfg.Optimization.Seed = seed
		cfg.Gate.Seed = seed
	}
	if v, ok := m.lookup(EnvPrefix + "MODE"); ok && v != "" {
		mode, err := validation.ParseMode(v)
		if err != nil {
			return err
		}
		cfg.Validation.Mode = mode
	}
	if v, ok := m.lookup(EnvPrefix + "WATCH_INTERVAL"); ok && v != "" {
		if err := cfg.WatchInterval.parse(v); err != nil {
			return fmt.Errorf("%sWATCH_INTERVAL: %w", EnvPrefix, err)
		}
	}
	if v, ok := m.lookup(EnvPrefix + "PARALLEL"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sPARALLEL: %w", EnvPrefix, err)
		}
		cfg.Parallel = b
	}
	return nil
}

// SaveConfig saves configuration to file
func (m *EngineConfigManager) SaveConfig(cfg *EngineConfig, path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return os.WriteFile(path, data, 0644)
}

package config

import (
	"time"

	"github.com/ducminhle1904/dna-evolution/internal/backtest"
	"github.com/ducminhle1904/dna-evolution/internal/database"
	"github.com/ducminhle1904/dna-evolution/pkg/optimization"
	"github.com/ducminhle1904/dna-evolution/pkg/robustness"
	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
	"github.com/ducminhle1904/dna-evolution/pkg/validation"
)

// DataSourceConfig selects where resolved events come from. The first configured
// backend wins in the order Postgres, CSV, synthetic.
type DataSourceConfig struct {
	EventsCSV       string   `json:"events_csv,omitempty" yaml:"events_csv,omitempty"`
	PostgresDSN     string   `json:"postgres_dsn,omitempty" yaml:"postgres_dsn,omitempty"`
	QueryTimeout    Duration `json:"query_timeout" yaml:"query_timeout"`
	SyntheticEvents int      `json:"synthetic_events,omitempty" yaml:"synthetic_events,omitempty"`
	SyntheticSeed   uint64   `json:"synthetic_seed,omitempty" yaml:"synthetic_seed,omitempty"`
	Partitions      []string `json:"partitions,omitempty" yaml:"partitions,omitempty"`
	Lookback        Duration `json:"lookback,omitempty" yaml:"lookback,omitempty"`
}

// Configured reports whether any backend is set
func (c DataSourceConfig) Configured() bool {
	return c.PostgresDSN != "" || c.EventsCSV != "" || c.SyntheticEvents > 0
}

// RedisConfig enables the shared strategy cache when Addr is set
type RedisConfig struct {
	Addr     string   `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string   `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int      `json:"db" yaml:"db"`
	TTL      Duration `json:"ttl" yaml:"ttl"`
}

// EngineConfig is the full configuration of an evolution run
type EngineConfig struct {
	Optimization optimization.OptimizationConfig `json:"optimization" yaml:"optimization"`
	Validation   validation.ValidationConfig     `json:"validation" yaml:"validation"`
	Gate         robustness.GateConfig           `json:"gate" yaml:"gate"`
	Evaluator    backtest.EvaluatorConfig        `json:"evaluator" yaml:"evaluator"`
	Data         DataSourceConfig                `json:"data" yaml:"data"`
	Redis        RedisConfig                     `json:"redis" yaml:"redis"`

	PeriodLength       Duration `json:"period_length" yaml:"period_length"`
	MinPartitionEvents int      `json:"min_partition_events" yaml:"min_partition_events"`
	Parallel           bool     `json:"parallel" yaml:"parallel"`
	MaxWorkers         int      `json:"max_workers" yaml:"max_workers"`
	Resume             bool     `json:"resume" yaml:"resume"`
	WarmStart          bool     `json:"warm_start" yaml:"warm_start"`
	WatchInterval      Duration `json:"watch_interval" yaml:"watch_interval"`
	MetricsAddr        string   `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`

	CheckpointDir string `json:"checkpoint_dir" yaml:"checkpoint_dir"`
	StrategyDir   string `json:"strategy_dir" yaml:"strategy_dir"`
	LogDir        string `json:"log_dir" yaml:"log_dir"`
	ReportDir     string `json:"report_dir" yaml:"report_dir"`
}

// NewDefaultEngineConfig returns a configuration with every default filled in.
// No event source is configured.
func NewDefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		Optimization: optimization.GetDefaultOptimizationConfig(),
		Validation:   validation.DefaultValidationConfig(),
		Gate:         robustness.DefaultGateConfig(),
		Evaluator:    backtest.DefaultEvaluatorConfig(),
		Data: DataSourceConfig{
			QueryTimeout: Duration(DefaultQueryTimeout),
		},
		Redis: RedisConfig{
			TTL: Duration(strategy.DefaultCacheTTL),
		},
		PeriodLength:       Duration(backtest.DefaultPeriodLength),
		MinPartitionEvents: DefaultMinPartitionEvents,
		MaxWorkers:         4,
		WarmStart:          true,
		WatchInterval:      Duration(DefaultWatchInterval),
		CheckpointDir:      DefaultCheckpointDir,
		StrategyDir:        DefaultStrategyDir,
		LogDir:             DefaultLogDir,
		ReportDir:          DefaultReportDir,
	}
}

// DatabaseConfig returns the pool settings for the configured DSN
func (c *EngineConfig) DatabaseConfig() database.Config {
	db := database.DefaultConfig()
	db.DSN = c.Data.PostgresDSN
	if c.Data.QueryTimeout > 0 {
		db.QueryTimeout = c.Data.QueryTimeout.D()
	}
	return db
}

// Workers returns the effective worker count of a parallel run
func (c *EngineConfig) Workers(partitions int) int {
	if !c.Parallel {
		return 1
	}
	w := c.MaxWorkers
	if w <= 0 || w > partitions {
		w = partitions
	}
	if w < 1 {
		w = 1
	}
	return w
}

// Period returns the consistency bucketing period
func (c *EngineConfig) Period() time.Duration {
	if c.PeriodLength <= 0 {
		return backtest.DefaultPeriodLength
	}
	return c.PeriodLength.D()
}

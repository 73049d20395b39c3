package main

import (
	"flag"
	"fmt"

	"github.com/ducminhle1904/dna-evolution/cmd/common"
	"github.com/ducminhle1904/dna-evolution/pkg/config"
	"github.com/ducminhle1904/dna-evolution/pkg/data"
	"github.com/ducminhle1904/dna-evolution/pkg/orchestrator"
	"github.com/ducminhle1904/dna-evolution/pkg/validation"
)

// EvolveFlags holds all command line flags for the evolve command. Only flags
// passed explicitly override the configuration file.
type EvolveFlags struct {
	Common *common.CommonFlags

	// Selection and scheduling
	Partition *string
	Mode      *string
	Parallel  *bool
	Workers   *int
	Resume    *bool
	Watch     *bool
	Interval  *string

	// Event source
	EventsCSV *string
	PGDSN     *string
	RedisAddr *string
	Synthetic *int

	// Search
	Seed        *uint64
	Generations *int
	Population  *int

	// Output
	MetricsAddr *string
	ReportXLSX  *bool

	set map[string]bool
}

// NewEvolveFlags registers every evolve flag on fs
func NewEvolveFlags(fs *flag.FlagSet) *EvolveFlags {
	return &EvolveFlags{
		Common: common.RegisterCommonFlags(fs),

		Partition: fs.String("partition", orchestrator.AllPartitions, "Partition key to evolve, or 'all'"),
		Mode:      fs.String("mode", "fast", "Validation mode: fast (holdout) or deep (expanding folds)"),
		Parallel:  fs.Bool("parallel", false, "Run partitions concurrently"),
		Workers:   fs.Int("workers", 4, "Maximum concurrent partition runs"),
		Resume:    fs.Bool("resume", false, "Resume partitions from their checkpoints"),
		Watch:     fs.Bool("watch", false, "Re-run every interval until interrupted"),
		Interval:  fs.String("interval", "6h", "Watch interval (6h, 1d, 90m)"),

		EventsCSV: fs.String("events-csv", "", "Resolved event ledger CSV"),
		PGDSN:     fs.String("pg-dsn", "", "Postgres DSN for the event ledger and strategy store"),
		RedisAddr: fs.String("redis-addr", "", "Redis address for the strategy cache"),
		Synthetic: fs.Int("synthetic", 0, "Generate a synthetic ledger with this many events"),

		Seed:        fs.Uint64("seed", 42, "Base random seed"),
		Generations: fs.Int("generations", 30, "Generation budget per partition"),
		Population:  fs.Int("population", 50, "Population size"),

		MetricsAddr: fs.String("metrics-addr", "", "Serve /metrics and /health on this address"),
		ReportXLSX:  fs.Bool("report-xlsx", true, "Write the Excel comparison workbook"),
	}
}

// Parse parses args and remembers which flags were given
func (f *EvolveFlags) Parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f.validate()
}

// IsSet reports whether the flag was passed on the command line
func (f *EvolveFlags) IsSet(name string) bool {
	return f.set[name]
}

func (f *EvolveFlags) validate() error {
	v := common.NewFlagValidator()
	v.ValidateChoice("mode", *f.Mode, []string{"fast", "deep", string(validation.ModeHoldout), string(validation.ModeExpanding)})
	v.ValidateInt("workers", *f.Workers, 1, 256)
	v.ValidateInt("generations", *f.Generations, 1, 100000)
	v.ValidateInt("population", *f.Population, 2, 100000)
	v.ValidateInt("synthetic", *f.Synthetic, 0, 10000000)
	v.ValidateFile("events-csv", *f.EventsCSV, false)
	if _, ok := data.ParseTrailingPeriod(*f.Interval); !ok {
		v.AddError(fmt.Sprintf("invalid interval format: %s (use 6h, 1d, 90m)", *f.Interval))
	}
	return v.GetError()
}

// Apply copies explicitly passed flags onto cfg
func (f *EvolveFlags) Apply(cfg *config.EngineConfig) error {
	if f.IsSet("mode") {
		mode, err := validation.ParseMode(*f.Mode)
		if err != nil {
			return err
		}
		cfg.Validation.Mode = mode
	}
	if f.IsSet("parallel") {
		cfg.Parallel = *f.Parallel
	}
	if f.IsSet("workers") {
		cfg.MaxWorkers = *f.Workers
	}
	if f.IsSet("resume") {
		cfg.Resume = *f.Resume
	}
	if f.IsSet("interval") {
		d, _ := data.ParseTrailingPeriod(*f.Interval)
		cfg.WatchInterval = config.Duration(d)
	}
	if f.IsSet("events-csv") {
		cfg.Data.EventsCSV = *f.EventsCSV
	}
	if f.IsSet("pg-dsn") {
		cfg.Data.PostgresDSN = *f.PGDSN
	}
	if f.IsSet("redis-addr") {
		cfg.Redis.Addr = *f.RedisAddr
	}
	if f.IsSet("synthetic") {
		cfg.Data.SyntheticEvents = *f.Synthetic
	}
	if f.IsSet("seed") {
		cfg.Optimization.Seed = *f.Seed
		cfg.Gate.Seed = *f.Seed
		cfg.Data.SyntheticSeed = *f.Seed
	}
	if f.IsSet("generations") {
		cfg.Optimization.Generations = *f.Generations
	}
	if f.IsSet("population") {
		cfg.Optimization.PopulationSize = *f.Population
	}
	if f.IsSet("metrics-addr") {
		cfg.MetricsAddr = *f.MetricsAddr
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ducminhle1904/dna-evolution/cmd/common"
	"github.com/ducminhle1904/dna-evolution/pkg/config"
	"github.com/ducminhle1904/dna-evolution/pkg/orchestrator"
	"github.com/ducminhle1904/dna-evolution/pkg/reporting"
	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
	"github.com/ducminhle1904/dna-evolution/pkg/validation"
)

const AppName = "DNA Evolution"

func main() {
	fs := flag.NewFlagSet("evolve", flag.ExitOnError)
	flags := NewEvolveFlags(fs)
	if err := flags.Parse(fs, os.Args[1:]); err != nil {
		log.Fatalf("❌ Flag validation error: %v", err)
	}

	if common.CheckHelpAndVersion(AppName, fs, flags.Common, usage()) {
		return
	}

	common.Header(fmt.Sprintf("%s v%s", AppName, common.ProjectVersion))
	if err := run(fs, flags); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func usage() *common.UsageFormatter {
	return common.NewUsageFormatter(AppName, "Evolves per-partition staking strategies from a resolved event ledger").
		AddExample("evolve -synthetic 4000 -generations 20", "Smoke run on a synthetic ledger").
		AddExample("evolve -config engine.yaml -mode deep -parallel -workers 8", "Evolve every partition concurrently with expanding folds").
		AddExample("evolve -pg-dsn $PG_DSN -redis-addr localhost:6379 -watch -interval 6h", "Keep strategies fresh from Postgres").
		AddExample("evolve -events-csv ledger.csv -partition ENG -resume", "Resume one partition from its checkpoint")
}

func run(fs *flag.FlagSet, flags *EvolveFlags) error {
	if err := config.LoadEnvFile(*flags.Common.EnvFile, common.EnvFileExplicit(fs)); err != nil {
		return err
	}
	cfg, err := config.NewEngineConfigManager().LoadConfig(*flags.Common.ConfigFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := flags.Apply(cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer comps.Close()

	schema := types.DefaultGeneSchema()
	orch := orchestrator.NewOrchestrator(cfg, schema, comps.source, comps.store)
	orch.SelectPartition(*flags.Partition)

	if cfg.MetricsAddr != "" {
		serve(ctx, newStatusServer(cfg.MetricsAddr, orch.Health()))
	}

	if *flags.Watch {
		log.Printf("👀 Watching every %s, press Ctrl+C to stop", cfg.WatchInterval)
		_, err := orchestrator.NewWatchWorkflow(orch, cfg.WatchInterval.D()).Execute(ctx)
		return err
	}

	report, err := orchestrator.NewSingleRunWorkflow(orch).Execute(ctx)
	if err != nil {
		return err
	}
	return printReport(cfg, schema, report, *flags.ReportXLSX)
}

func printReport(cfg *config.EngineConfig, schema *types.GeneSchema, report *orchestrator.RunReport, xlsx bool) error {
	console := reporting.NewDefaultConsoleReporter()
	for _, doc := range report.Documents() {
		console.PrintGateReport(os.Stdout, doc.Partition, doc.StressTest)
	}
	printValidation(os.Stdout, report.Documents())
	for _, s := range report.Skipped {
		fmt.Printf("⏭️  %s skipped: %d admissible events, need %d\n", s.Partition, s.Admissible, s.Need)
	}

	manager := reporting.NewReportingManager(reporting.ReportingConfig{
		EnableConsole:   true,
		EnableFiles:     true,
		OutputDirectory: cfg.ReportDir,
		CSVEnabled:      true,
		ExcelEnabled:    xlsx,
	}, os.Stdout)
	if _, err := manager.ReportDocuments(report.Documents(), schema); err != nil {
		return fmt.Errorf("failed to write reports: %w", err)
	}

	for _, doc := range report.Documents() {
		path := filepath.Join(reporting.DefaultOutputDir(cfg.ReportDir, doc.Partition), "strategy.json")
		if err := reporting.WriteDocumentJSON(doc, path); err != nil {
			return err
		}
	}

	if failed := report.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d partitions failed: %v", len(failed), failed)
	}
	return nil
}

// printValidation writes the temporal validation summary of every partition that has one
func printValidation(w io.Writer, docs []*strategy.Document) {
	for _, doc := range docs {
		if doc.ValidationSummary != nil {
			validation.PrintSummary(w, doc.Partition, doc.ValidationSummary)
		}
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ducminhle1904/dna-evolution/cmd/common"
	"github.com/ducminhle1904/dna-evolution/internal/database"
	"github.com/ducminhle1904/dna-evolution/pkg/config"
	"github.com/ducminhle1904/dna-evolution/pkg/reporting"
	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

const AppName = "Strategy Report"

func main() {
	fs := flag.NewFlagSet("strategy-report", flag.ExitOnError)
	cf := common.RegisterCommonFlags(fs)
	strategyDir := fs.String("strategy-dir", "", "Directory of strategy documents (defaults to the configured one)")
	pgDSN := fs.String("pg-dsn", "", "Read documents from Postgres instead of files")
	partition := fs.String("partition", "", "Print one partition's latest document as JSON")
	out := fs.String("out", "", "Write the comparison to a .csv or .xlsx file")
	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("❌ %v", err)
	}

	formatter := common.NewUsageFormatter(AppName, "Compares the latest strategy document of every partition").
		AddExample("strategy-report", "Print the comparison tables").
		AddExample("strategy-report -out results/comparison.xlsx", "Export the comparison workbook").
		AddExample("strategy-report -partition ENG", "Show one partition's document")
	if common.CheckHelpAndVersion(AppName, fs, cf, formatter) {
		return
	}

	if err := config.LoadEnvFile(*cf.EnvFile, common.EnvFileExplicit(fs)); err != nil {
		log.Fatalf("❌ %v", err)
	}
	cfg, err := config.NewEngineConfigManager().LoadConfig(*cf.ConfigFile)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	if *strategyDir != "" {
		cfg.StrategyDir = *strategyDir
	}
	if *pgDSN != "" {
		cfg.Data.PostgresDSN = *pgDSN
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer closeStore()

	if *partition != "" {
		doc, err := store.Latest(ctx, *partition)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		reporting.PrintDocumentJSON(doc)
		return
	}

	docs, err := loadDocuments(ctx, store)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if err := writeComparison(os.Stdout, docs, types.DefaultGeneSchema(), *out); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.EngineConfig) (strategy.Store, func(), error) {
	if cfg.Data.PostgresDSN == "" {
		return strategy.NewFileStore(cfg.StrategyDir), func() {}, nil
	}
	db, err := database.Open(ctx, cfg.DatabaseConfig())
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Printf("⚠️ closing database: %v", err)
		}
	}
	return strategy.NewPostgresStore(db, cfg.Data.QueryTimeout.D()), closeDB, nil
}

// loadDocuments returns the latest document of every stored partition
func loadDocuments(ctx context.Context, store strategy.Store) ([]*strategy.Document, error) {
	partitions, err := store.Partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	docs := make([]*strategy.Document, 0, len(partitions))
	for _, p := range partitions {
		doc, err := store.Latest(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func writeComparison(w io.Writer, docs []*strategy.Document, schema *types.GeneSchema, out string) error {
	if len(docs) == 0 {
		return fmt.Errorf("no strategy documents found")
	}
	reporter := reporting.NewDefaultReporter()
	rows := reporting.BuildComparison(docs, schema)
	names := schema.Names()
	reporter.PrintComparison(w, rows, names)

	if out == "" {
		return nil
	}
	var err error
	if strings.EqualFold(filepath.Ext(out), ".xlsx") {
		err = reporter.WriteComparisonXLSX(docs, rows, names, out)
	} else {
		err = reporter.WriteComparisonCSV(rows, names, out)
	}
	if err != nil {
		return err
	}
	log.Printf("📁 Comparison written: %s", out)
	return nil
}

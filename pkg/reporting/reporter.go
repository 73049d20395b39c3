package reporting

import (
	"io"
	"log"
	"path/filepath"

	"github.com/ducminhle1904/dna-evolution/pkg/robustness"
	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// DefaultReporter implements the complete Reporter interface
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	paths   *DefaultPathManager
}

// NewDefaultReporter creates a new default reporter with all functionality
func NewDefaultReporter() *DefaultReporter {
	return &DefaultReporter{
		console: NewDefaultConsoleReporter(),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		paths:   NewDefaultPathManager(),
	}
}

// Console output methods
func (r *DefaultReporter) PrintComparison(w io.Writer, rows []ComparisonRow, geneNames []string) {
	r.console.PrintComparison(w, rows, geneNames)
}

func (r *DefaultReporter) PrintGateReport(w io.Writer, partition string, reports []robustness.CandidateReport) {
	r.console.PrintGateReport(w, partition, reports)
}

// File output methods
func (r *DefaultReporter) WriteComparisonCSV(rows []ComparisonRow, geneNames []string, path string) error {
	return r.csv.WriteComparisonCSV(rows, geneNames, path)
}

func (r *DefaultReporter) WriteComparisonXLSX(docs []*strategy.Document, rows []ComparisonRow, geneNames []string, path string) error {
	return r.excel.WriteComparisonXLSX(docs, rows, geneNames, path)
}

func (r *DefaultReporter) WriteDocumentJSON(doc *strategy.Document, path string) error {
	return WriteDocumentJSON(doc, path)
}

// Path management methods
func (r *DefaultReporter) GetDefaultOutputDir(root, partition string) string {
	return r.paths.GetDefaultOutputDir(root, partition)
}

func (r *DefaultReporter) EnsureDirectoryExists(path string) error {
	return r.paths.EnsureDirectoryExists(path)
}

// ReportingManager provides a high-level interface for all reporting needs
type ReportingManager struct {
	reporter *DefaultReporter
	config   ReportingConfig
	out      io.Writer
}

// NewReportingManager creates a new reporting manager with configuration
func NewReportingManager(config ReportingConfig, out io.Writer) *ReportingManager {
	return &ReportingManager{
		reporter: NewDefaultReporter(),
		config:   config,
		out:      out,
	}
}

// ReportDocuments outputs the cross-partition comparison according to configuration
// and returns the paths of the files written
func (m *ReportingManager) ReportDocuments(docs []*strategy.Document, schema *types.GeneSchema) ([]string, error) {
	rows := BuildComparison(docs, schema)
	names := schema.Names()

	// Console output
	if m.config.EnableConsole {
		m.reporter.PrintComparison(m.out, rows, names)
	}

	var written []string
	if !m.config.EnableFiles {
		return written, nil
	}
	outputDir := m.reporter.GetDefaultOutputDir(m.config.OutputDirectory, "")

	if m.config.CSVEnabled {
		csvPath := filepath.Join(outputDir, "comparison.csv")
		if err := m.reporter.WriteComparisonCSV(rows, names, csvPath); err != nil {
			return written, err
		}
		written = append(written, csvPath)
	}

	if m.config.ExcelEnabled {
		xlsxPath := filepath.Join(outputDir, "comparison.xlsx")
		if err := m.reporter.WriteComparisonXLSX(docs, rows, names, xlsxPath); err != nil {
			return written, err
		}
		written = append(written, xlsxPath)
	}

	for _, p := range written {
		log.Printf("📁 Report written: %s", p)
	}
	return written, nil
}

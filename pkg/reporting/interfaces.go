// Package reporting renders strategy documents and cross-partition comparisons
package reporting

import (
	"io"

	"github.com/ducminhle1904/dna-evolution/pkg/robustness"
	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
)

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	PrintComparison(w io.Writer, rows []ComparisonRow, geneNames []string)
	PrintGateReport(w io.Writer, partition string, reports []robustness.CandidateReport)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteComparisonCSV(rows []ComparisonRow, geneNames []string, path string) error
	WriteComparisonXLSX(docs []*strategy.Document, rows []ComparisonRow, geneNames []string, path string) error
	WriteDocumentJSON(doc *strategy.Document, path string) error
}

// PathManager defines interface for output path management
type PathManager interface {
	GetDefaultOutputDir(root, partition string) string
	EnsureDirectoryExists(path string) error
}

// Reporter combines all reporting interfaces
type Reporter interface {
	ConsoleReporter
	FileReporter
	PathManager
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle   int
	NumberStyle   int
	PercentStyle  int
	BaseStyle     int
	ActiveStyle   int
	InactiveStyle int
}

// ReportingConfig holds configuration for reporting
type ReportingConfig struct {
	EnableConsole   bool
	EnableFiles     bool
	OutputDirectory string
	ExcelEnabled    bool
	CSVEnabled      bool
}

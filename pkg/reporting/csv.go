package reporting

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

// WriteComparisonCSV writes one line per partition with status and gene values.
// A .xlsx path is delegated to the Excel writer without stress test detail.
func (r *DefaultCSVReporter) WriteComparisonCSV(rows []ComparisonRow, geneNames []string, path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return WriteComparisonXLSX(nil, rows, geneNames, path)
	}

	// Ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{"Partition", "Active", "Method", "Generations", "Train_Fitness", "Validation_Fitness", "Validation_ROI", "Validation_Bets", "Failure_Reason"}
	header = append(header, geneNames...)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			row.Partition,
			strconv.FormatBool(row.Active),
			row.Method,
			strconv.Itoa(row.Generations),
			strconv.FormatFloat(row.TrainFitness, 'f', 6, 64),
			strconv.FormatFloat(row.ValidationFitness, 'f', 6, 64),
			strconv.FormatFloat(row.ValidationROI, 'f', 6, 64),
			strconv.Itoa(row.ValidationBets),
			row.FailureReason,
		}
		for g := range geneNames {
			if g < len(row.Genes) {
				record = append(record, strconv.FormatFloat(row.Genes[g], 'f', 6, 64))
			} else {
				record = append(record, "")
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

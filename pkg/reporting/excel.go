package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
)

// Workbook sheet names
const (
	SummarySheet    = "Summary"
	GenesSheet      = "Genes"
	StressTestSheet = "Stress Test"
)

// DefaultExcelReporter implements Excel output functionality
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteComparisonXLSX writes the comparison workbook: a summary sheet, a gene sheet with
// one row per partition and a stress test sheet with every gate candidate
func (r *DefaultExcelReporter) WriteComparisonXLSX(docs []*strategy.Document, rows []ComparisonRow, geneNames []string, path string) error {
	// Ensure directory exists before creating file
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName(fx.GetSheetName(0), SummarySheet)
	if _, err := fx.NewSheet(GenesSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(StressTestSheet); err != nil {
		return err
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, rows, styles); err != nil {
		return err
	}
	if err := r.writeGenesSheet(fx, rows, geneNames, styles); err != nil {
		return err
	}
	if err := r.writeStressTestSheet(fx, docs, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

// createExcelStyles creates all Excel styles
func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	// Header style - Dark slate background with white text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	styles.NumberStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    4, // #,##0.00
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    10, // 0.00%
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    border,
	})
	if err != nil {
		return styles, err
	}

	styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: border})
	if err != nil {
		return styles, err
	}

	styles.ActiveStyle, err = fx.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E6FFE6"}, Pattern: 1},
		Border: border,
	})
	if err != nil {
		return styles, err
	}

	styles.InactiveStyle, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Color: "FF0000"},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFE6E6"}, Pattern: 1},
		Border: border,
	})
	return styles, err
}

func (r *DefaultExcelReporter) writeHeader(fx *excelize.File, sheet string, headers []string, styles ExcelStyles) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", last, styles.HeaderStyle); err != nil {
		return err
	}
	return fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (r *DefaultExcelReporter) writeRow(fx *excelize.File, sheet string, row int, values []interface{}, style int) error {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(values), row)
	return fx.SetCellStyle(sheet, first, last, style)
}

func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, rows []ComparisonRow, styles ExcelStyles) error {
	headers := []string{"Partition", "Active", "Method", "Generations", "Train_Fitness", "Validation_Fitness", "Validation_ROI", "Validation_Bets", "Failure_Reason", "Run_ID"}
	if err := r.writeHeader(fx, SummarySheet, headers, styles); err != nil {
		return err
	}
	for i, row := range rows {
		style := styles.ActiveStyle
		if !row.Active {
			style = styles.InactiveStyle
		}
		values := []interface{}{
			row.Partition, row.Active, row.Method, row.Generations,
			row.TrainFitness, row.ValidationFitness, row.ValidationROI, row.ValidationBets,
			row.FailureReason, row.RunID,
		}
		if err := r.writeRow(fx, SummarySheet, i+2, values, style); err != nil {
			return err
		}
		roiCell, _ := excelize.CoordinatesToCellName(7, i+2)
		if err := fx.SetCellStyle(SummarySheet, roiCell, roiCell, styles.PercentStyle); err != nil {
			return err
		}
	}
	fx.SetColWidth(SummarySheet, "A", "A", 18)
	fx.SetColWidth(SummarySheet, "I", "I", 60)
	fx.SetColWidth(SummarySheet, "J", "J", 38)
	return nil
}

func (r *DefaultExcelReporter) writeGenesSheet(fx *excelize.File, rows []ComparisonRow, geneNames []string, styles ExcelStyles) error {
	headers := append([]string{"Partition"}, geneNames...)
	if err := r.writeHeader(fx, GenesSheet, headers, styles); err != nil {
		return err
	}
	for i, row := range rows {
		values := []interface{}{row.Partition}
		for g := range geneNames {
			if g < len(row.Genes) {
				values = append(values, row.Genes[g])
			} else {
				values = append(values, "")
			}
		}
		if err := r.writeRow(fx, GenesSheet, i+2, values, styles.BaseStyle); err != nil {
			return err
		}
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	fx.SetColWidth(GenesSheet, "A", last, 18)
	return nil
}

func (r *DefaultExcelReporter) writeStressTestSheet(fx *excelize.File, docs []*strategy.Document, styles ExcelStyles) error {
	headers := []string{"Partition", "Rank", "Validation_Fitness", "P_Positive", "ROI_CI_Low", "ROI_CI_High", "Ruin_Probability", "Drawdown_P50", "Drawdown_P95", "Drawdown_P99", "Median_Final", "Rescue_Attempts", "Rescue_Scale", "Passed", "Reason"}
	if err := r.writeHeader(fx, StressTestSheet, headers, styles); err != nil {
		return err
	}
	row := 2
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		for _, rep := range doc.StressTest {
			attempts, scale := 0, 1.0
			if rep.Rescue != nil {
				attempts, scale = rep.Rescue.Attempts, rep.Rescue.Scale
			}
			style := styles.ActiveStyle
			if !rep.Passed {
				style = styles.InactiveStyle
			}
			values := []interface{}{
				doc.Partition, rep.Rank, rep.ValidationFitness,
				rep.Bootstrap.PPositive, rep.Bootstrap.CILower, rep.Bootstrap.CIUpper,
				rep.MonteCarlo.RuinProbability, rep.MonteCarlo.DrawdownP50, rep.MonteCarlo.DrawdownP95, rep.MonteCarlo.DrawdownP99,
				rep.MonteCarlo.MedianFinal, attempts, scale, rep.Passed, rep.Reason,
			}
			if err := r.writeRow(fx, StressTestSheet, row, values, style); err != nil {
				return err
			}
			row++
		}
	}
	fx.SetColWidth(StressTestSheet, "A", "A", 18)
	fx.SetColWidth(StressTestSheet, "O", "O", 60)
	return nil
}

// Package-level convenience function
func WriteComparisonXLSX(docs []*strategy.Document, rows []ComparisonRow, geneNames []string, path string) error {
	return NewDefaultExcelReporter().WriteComparisonXLSX(docs, rows, geneNames, path)
}

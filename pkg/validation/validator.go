package validation

import (
	"fmt"
	"io"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ducminhle1904/dna-evolution/internal/backtest"
)

// Overfitting risk levels
const (
	RiskLow      = "LOW"
	RiskModerate = "MODERATE"
	RiskHigh     = "HIGH"
)

// FoldEvaluator scores a population on one or more event batches and keeps, per candidate,
// the worst score. With a single batch it is a plain holdout evaluator.
type FoldEvaluator struct {
	evaluator *backtest.Evaluator
	batches   []*backtest.EventMatrix
}

// NewFoldEvaluator builds the search-time evaluator for a plan. Holdout mode scores the whole
// search segment; expanding mode scores each fold's validation chunk.
func NewFoldEvaluator(evaluator *backtest.Evaluator, plan *Plan, period time.Duration) *FoldEvaluator {
	fe := &FoldEvaluator{evaluator: evaluator}
	if plan.Mode == ModeExpanding && len(plan.Folds) > 0 {
		for _, fold := range plan.Folds {
			fe.batches = append(fe.batches, backtest.NewEventMatrix(fold.Validation, period))
		}
	} else {
		fe.batches = append(fe.batches, backtest.NewEventMatrix(plan.Search, period))
	}
	return fe
}

// Batches returns how many event batches every candidate is scored on
func (fe *FoldEvaluator) Batches() int {
	return len(fe.batches)
}

// EvaluatePopulation implements optimization.FitnessEvaluator
func (fe *FoldEvaluator) EvaluatePopulation(population *mat.Dense) ([]float64, error) {
	var worst []float64
	for i, batch := range fe.batches {
		eval, err := fe.evaluator.Evaluate(population, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", i, err)
		}
		if worst == nil {
			worst = append([]float64(nil), eval.Fitness...)
			continue
		}
		for j, f := range eval.Fitness {
			worst[j] = math.Min(worst[j], f)
		}
	}
	return worst, nil
}

// Summarize scores one DNA in-sample (search segment) and out-of-sample (validation segment)
// and, in expanding mode, on every fold.
func Summarize(evaluator *backtest.Evaluator, dna []float64, plan *Plan, period time.Duration) (*ValidationSummary, error) {
	row := mat.NewDense(1, len(dna), append([]float64(nil), dna...))

	train, err := evaluator.Evaluate(row, backtest.NewEventMatrix(plan.Search, period))
	if err != nil {
		return nil, fmt.Errorf("failed to score search segment: %w", err)
	}
	val, err := evaluator.Evaluate(row, backtest.NewEventMatrix(plan.Validation, period))
	if err != nil {
		return nil, fmt.Errorf("failed to score validation segment: %w", err)
	}

	summary := &ValidationSummary{
		Mode:       plan.Mode,
		Train:      train.Records[0],
		Validation: val.Records[0],
	}
	for _, fold := range plan.Folds {
		eval, err := evaluator.Evaluate(row, backtest.NewEventMatrix(fold.Validation, period))
		if err != nil {
			return nil, fmt.Errorf("failed to score fold %d: %w", fold.Index, err)
		}
		summary.Folds = append(summary.Folds, FoldRecord{
			Index:  fold.Index,
			Events: len(fold.Validation),
			Record: eval.Records[0],
		})
	}

	summary.ReturnDegradation = ReturnDegradation(summary.Train.ROI, summary.Validation.ROI)
	summary.OverfittingRisk = OverfittingRisk(summary.ReturnDegradation)
	return summary, nil
}

// ReturnDegradation is the percentage drop from train ROI to validation ROI
func ReturnDegradation(trainROI, validationROI float64) float64 {
	return (trainROI - validationROI) / math.Max(0.01, math.Abs(trainROI)) * 100
}

// OverfittingRisk classifies a return degradation
func OverfittingRisk(degradation float64) string {
	switch {
	case degradation > 30:
		return RiskHigh
	case degradation > 15:
		return RiskModerate
	default:
		return RiskLow
	}
}

// PrintSummary writes the validation summary for one partition
func PrintSummary(w io.Writer, partition string, summary *ValidationSummary) {
	fmt.Fprintf(w, "\n📈 ================ VALIDATION %s (%s) ================\n", partition, summary.Mode)
	printRecord(w, "SEARCH (in-sample)", summary.Train)
	printRecord(w, "VALIDATION (out-of-sample)", summary.Validation)

	if len(summary.Folds) > 0 {
		fitness := make([]float64, len(summary.Folds))
		for i, f := range summary.Folds {
			fitness[i] = f.Record.Fitness
		}
		mean, std := stat.MeanStdDev(fitness, nil)
		if len(fitness) < 2 {
			std = 0
		}
		fmt.Fprintf(w, "\nFOLDS (%d):\n", len(summary.Folds))
		for _, f := range summary.Folds {
			fmt.Fprintf(w, "  Fold %d: %4d events  fitness %.4f  roi %.2f%%  bets %d\n",
				f.Index, f.Events, f.Record.Fitness, f.Record.ROI*100, f.Record.Bets)
		}
		fmt.Fprintf(w, "  Fitness: %.4f ± %.4f\n", mean, std)
	}

	fmt.Fprintf(w, "\n📊 ANALYSIS:\n")
	fmt.Fprintf(w, "  Return Degradation: %.1f%%\n", summary.ReturnDegradation)
	switch summary.OverfittingRisk {
	case RiskHigh:
		fmt.Fprintf(w, "  ⚠️  HIGH OVERFITTING RISK - Strategy may not generalize well\n")
	case RiskModerate:
		fmt.Fprintf(w, "  ⚠️  MODERATE OVERFITTING - Some performance degradation\n")
	default:
		fmt.Fprintf(w, "  ✅ ROBUST STRATEGY - Good generalization across time periods\n")
	}
}

func printRecord(w io.Writer, title string, r backtest.FitnessRecord) {
	fmt.Fprintf(w, "%s:\n", title)
	fmt.Fprintf(w, "  Fitness:   %.4f\n", r.Fitness)
	fmt.Fprintf(w, "  ROI:       %.2f%%\n", r.ROI*100)
	fmt.Fprintf(w, "  Drawdown:  %.2f%%\n", r.Drawdown*100)
	fmt.Fprintf(w, "  Sharpe:    %.2f\n", r.Consistency)
	fmt.Fprintf(w, "  Bets:      %d\n", r.Bets)
}

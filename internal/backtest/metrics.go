package backtest

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ROI returns total profit over total staked, 0 when nothing was staked
func ROI(profit, staked float64) float64 {
	if staked <= 0 {
		return 0
	}
	return profit / staked
}

// MaxDrawdown returns the worst (peak - current)/max(peak, 1) over the running cumulative
// profit of a chronological P&L sequence. The running peak starts at zero; the result is in [0,1].
func MaxDrawdown(pnl []float64) float64 {
	if len(pnl) == 0 {
		return 0
	}
	cum := floats.CumSum(make([]float64, len(pnl)), pnl)

	peak := 0.0
	worst := 0.0
	for _, c := range cum {
		if c > peak {
			peak = c
		}
		dd := (peak - c) / math.Max(peak, 1)
		if dd > worst {
			worst = dd
		}
	}
	return math.Min(worst, 1)
}

// PeriodSharpe returns mean/std of per-period ROI over periods that had any stake.
// Fewer than two such periods or a degenerate spread yield 0. The ratio is clamped to ±limit.
func PeriodSharpe(periodProfit, periodStake []float64, limit float64) float64 {
	returns := make([]float64, 0, len(periodProfit))
	for k := range periodProfit {
		if periodStake[k] > 0 {
			returns = append(returns, periodProfit[k]/periodStake[k])
		}
	}
	if len(returns) < 2 {
		return 0
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if std < 1e-9 || math.IsNaN(std) {
		return 0
	}
	return clamp(mean/std, -limit, limit)
}

// BetCountPenalty is a sigmoid that approaches weight far below minBets and 0 far above it.
func BetCountPenalty(bets, minBets int, weight float64) float64 {
	if weight == 0 || minBets <= 0 {
		return 0
	}
	scale := math.Max(1, 0.1*float64(minBets))
	return weight / (1 + math.Exp((float64(bets)-float64(minBets))/scale))
}

// CombineFitness folds a record into the scalar score, floored at the configured floor.
// A record with no bets is exactly the floor.
func CombineFitness(rec FitnessRecord, cfg EvaluatorConfig) float64 {
	if rec.Bets == 0 {
		return cfg.FitnessFloor
	}
	f := cfg.Weights.ROI*rec.ROI +
		cfg.Weights.Consistency*rec.Consistency -
		cfg.Weights.Drawdown*rec.Drawdown -
		rec.Penalty
	if math.IsNaN(f) || f < cfg.FitnessFloor {
		return cfg.FitnessFloor
	}
	return f
}

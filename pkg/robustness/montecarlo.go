package robustness

import (
	"math"
	"math/rand/v2"

	"github.com/montanaflynn/stats"
)

// MonteCarlo shuffles the order of realized per-bet profits across many paths, accumulating a
// bankroll in stake units. A path is ruined the first time its bankroll falls to ruinLevel or below.
func MonteCarlo(profits []float64, paths int, bankroll, ruinLevel float64, rng *rand.Rand) MonteCarloResult {
	res := MonteCarloResult{Paths: paths, Bets: len(profits), MedianFinal: bankroll}
	if paths < 1 || len(profits) == 0 {
		return res
	}

	order := append([]float64(nil), profits...)
	drawdowns := make([]float64, paths)
	finals := make([]float64, paths)
	ruined := 0

	for k := 0; k < paths; k++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		b, peak, worst := bankroll, bankroll, 0.0
		hitRuin := false
		for _, pnl := range order {
			b += pnl
			if b > peak {
				peak = b
			}
			if dd := (peak - b) / peak; dd > worst {
				worst = dd
			}
			if b <= ruinLevel {
				hitRuin = true
			}
		}
		if hitRuin {
			ruined++
		}
		drawdowns[k] = math.Min(worst, 1)
		finals[k] = b
	}

	res.RuinProbability = float64(ruined) / float64(paths)
	res.DrawdownP50 = percentile(drawdowns, 50)
	res.DrawdownP95 = percentile(drawdowns, 95)
	res.DrawdownP99 = percentile(drawdowns, 99)
	res.MedianFinal, _ = stats.Median(finals)
	return res
}

// MonteCarloPasses reports whether the ruin probability is strictly below the threshold
func MonteCarloPasses(res MonteCarloResult, threshold float64) bool {
	return res.RuinProbability < threshold
}

func percentile(values []float64, pct float64) float64 {
	if len(values) == 1 {
		return values[0]
	}
	v, err := stats.Percentile(values, pct)
	if err != nil {
		// too few values to rank this low; fall back to the minimum
		v, _ = stats.Min(values)
	}
	return v
}

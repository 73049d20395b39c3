package robustness

import (
	"math/rand/v2"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// Resampler fills idx with one resample of event indices. b is the resample number.
type Resampler func(b int, idx []int)

// SeededResampler draws indices uniformly with replacement from [0, n). Two resamplers built
// from the same seed produce the same index sets, so every candidate (and every rescue
// attempt) is judged on identical resamples.
func SeededResampler(seed uint64, n int) Resampler {
	rng := rand.New(rand.NewPCG(seed, seed^0x94d049bb133111eb))
	return func(_ int, idx []int) {
		for i := range idx {
			idx[i] = rng.IntN(n)
		}
	}
}

// Bootstrap resamples the event columns of (P×N) stake and profit matrices and reports per
// row the ROI distribution. A resample with nothing staked has ROI 0 and does not count as positive.
func Bootstrap(stakes, profits *mat.Dense, samples int, resample Resampler) []BootstrapResult {
	if stakes == nil || profits == nil {
		return nil
	}
	p, n := stakes.Dims()
	results := make([]BootstrapResult, p)
	if n == 0 || samples < 1 {
		return results
	}

	rois := make([][]float64, p)
	for i := range rois {
		rois[i] = make([]float64, samples)
	}
	staked := make([]float64, p)
	won := make([]float64, p)
	idx := make([]int, n)

	for b := 0; b < samples; b++ {
		resample(b, idx)
		for i := 0; i < p; i++ {
			staked[i], won[i] = 0, 0
			srow := stakes.RawRowView(i)
			prow := profits.RawRowView(i)
			for _, j := range idx {
				staked[i] += srow[j]
				won[i] += prow[j]
			}
			if staked[i] > 0 {
				rois[i][b] = won[i] / staked[i]
			}
		}
	}

	for i := range results {
		results[i] = summarizeBootstrap(rois[i])
	}
	return results
}

func summarizeBootstrap(rois []float64) BootstrapResult {
	res := BootstrapResult{Samples: len(rois)}
	positive := 0
	for _, r := range rois {
		if r > 0 {
			positive++
		}
	}
	res.PPositive = float64(positive) / float64(len(rois))
	res.MeanROI, _ = stats.Mean(rois)
	res.CILower = percentile(rois, 2.5)
	res.CIUpper = percentile(rois, 97.5)
	return res
}

// BootstrapPasses reports whether a candidate clears the bootstrap gate. The comparison is
// strict: a p_positive equal to the threshold fails.
func BootstrapPasses(res BootstrapResult, threshold float64) bool {
	return res.PPositive > threshold
}

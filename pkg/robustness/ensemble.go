package robustness

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"github.com/ducminhle1904/dna-evolution/internal/backtest"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// Ensemble is the deployable set of gate survivors, best validation fitness first
type Ensemble struct {
	Method  string
	Members [][]float64
}

// NewEnsemble picks the method from the survivor count
func NewEnsemble(members [][]float64) *Ensemble {
	e := &Ensemble{Members: members}
	switch {
	case len(members) >= 2:
		e.Method = MethodEnsembleMedian
	case len(members) == 1:
		e.Method = MethodSingle
	default:
		e.Method = MethodNone
	}
	return e
}

// Size returns the number of members
func (e *Ensemble) Size() int {
	return len(e.Members)
}

// RecommendStake returns the median of the members' stakes on one event. An event no member
// admits gets a zero stake.
func (e *Ensemble) RecommendStake(evaluator *backtest.Evaluator, event types.Event) (float64, error) {
	if len(e.Members) == 0 {
		return 0, fmt.Errorf("ensemble has no members")
	}

	g := len(e.Members[0])
	data := make([]float64, 0, len(e.Members)*g)
	for i, m := range e.Members {
		if len(m) != g {
			return 0, fmt.Errorf("ensemble member %d has %d genes, expected %d", i, len(m), g)
		}
		data = append(data, m...)
	}

	stakes, err := evaluator.StakesFor(mat.NewDense(len(e.Members), g, data), event)
	if err != nil {
		return 0, err
	}
	return stats.Median(stakes)
}

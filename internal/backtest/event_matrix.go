package backtest

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// DefaultPeriodLength buckets realized returns for the consistency ratio
const DefaultPeriodLength = 7 * 24 * time.Hour

// EventMatrix holds the (1×N) event-feature rows the evaluator broadcasts against.
// It is built once per event batch and is read-only afterwards.
type EventMatrix struct {
	events []types.Event

	modelProb   *mat.VecDense
	implied     *mat.VecDense
	odds        *mat.VecDense
	returns     *mat.VecDense // odds-1 on a win, -1 on a loss, per unit stake
	momentum    *mat.VecDense
	sharp       *mat.VecDense // flag × magnitude
	rest        *mat.VecDense
	h2h         *mat.VecDense
	clusterWin  *mat.VecDense
	clusterConf *mat.VecDense
	isHome      *mat.VecDense
	isAway      *mat.VecDense
	isDraw      *mat.VecDense
	admissible  []bool

	// periods is the (N×W) indicator matrix mapping events to return periods
	periods *mat.Dense
}

// NewEventMatrix lays out the event batch as feature rows. Events must already be in
// chronological order; the matrix keeps that order.
func NewEventMatrix(events []types.Event, period time.Duration) *EventMatrix {
	return newEventMatrix(events, period, types.Event.Admissible)
}

// NewPricingMatrix lays out upcoming events for stake sizing. Unresolved events are admitted;
// their realized returns are meaningless.
func NewPricingMatrix(events []types.Event) *EventMatrix {
	return newEventMatrix(events, DefaultPeriodLength, types.Event.Priceable)
}

func newEventMatrix(events []types.Event, period time.Duration, admit func(types.Event) bool) *EventMatrix {
	if period <= 0 {
		period = DefaultPeriodLength
	}
	n := len(events)
	em := &EventMatrix{events: events, admissible: make([]bool, n)}
	if n == 0 {
		return em
	}

	col := func() []float64 { return make([]float64, n) }
	modelProb, implied, odds, returns := col(), col(), col(), col()
	momentum, sharp, rest, h2h := col(), col(), col(), col()
	clusterWin, clusterConf := col(), col()
	isHome, isAway, isDraw := col(), col(), col()

	start := events[0].Timestamp
	periodIdx := make([]int, n)
	maxPeriod := 0

	for j, ev := range events {
		p := 0
		if d := ev.Timestamp.Sub(start); d > 0 {
			p = int(d / period)
		}
		periodIdx[j] = p
		if p > maxPeriod {
			maxPeriod = p
		}

		// masked events keep zero features so a bad row cannot poison the products
		em.admissible[j] = admit(ev)
		if !em.admissible[j] {
			implied[j] = clampImplied(0)
			continue
		}

		o := ev.DecimalOdds()
		modelProb[j] = ev.ModelProb
		implied[j] = clampImplied(ev.ImpliedProb)
		odds[j] = o
		if ev.Won() {
			returns[j] = o - 1
		} else {
			returns[j] = -1
		}
		momentum[j] = ev.MomentumGap
		if ev.SharpFlag {
			sharp[j] = ev.SharpMagnitude
		}
		rest[j] = ev.RestAdvantage
		h2h[j] = ev.H2HWeight
		clusterWin[j] = ev.ClusterWinRate
		clusterConf[j] = ev.ClusterConfidence
		switch ev.PickSide {
		case types.SideHome:
			isHome[j] = 1
		case types.SideAway:
			isAway[j] = 1
		case types.SideDraw:
			isDraw[j] = 1
		}
	}

	em.modelProb = mat.NewVecDense(n, modelProb)
	em.implied = mat.NewVecDense(n, implied)
	em.odds = mat.NewVecDense(n, odds)
	em.returns = mat.NewVecDense(n, returns)
	em.momentum = mat.NewVecDense(n, momentum)
	em.sharp = mat.NewVecDense(n, sharp)
	em.rest = mat.NewVecDense(n, rest)
	em.h2h = mat.NewVecDense(n, h2h)
	em.clusterWin = mat.NewVecDense(n, clusterWin)
	em.clusterConf = mat.NewVecDense(n, clusterConf)
	em.isHome = mat.NewVecDense(n, isHome)
	em.isAway = mat.NewVecDense(n, isAway)
	em.isDraw = mat.NewVecDense(n, isDraw)

	em.periods = mat.NewDense(n, maxPeriod+1, nil)
	for j, p := range periodIdx {
		em.periods.Set(j, p, 1)
	}
	return em
}

// Len returns the number of events N
func (em *EventMatrix) Len() int {
	return len(em.events)
}

// Events returns the underlying chronological event slice
func (em *EventMatrix) Events() []types.Event {
	return em.events
}

// Periods returns the number of return periods W
func (em *EventMatrix) Periods() int {
	if em.periods == nil {
		return 0
	}
	_, w := em.periods.Dims()
	return w
}

// clampImplied keeps the implied probability away from 0 and 1 so no denominator blows up.
func clampImplied(p float64) float64 {
	const eps = 1e-6
	if p < eps {
		return eps
	}
	if p > 1-eps {
		return 1 - eps
	}
	return p
}

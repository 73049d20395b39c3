package backtest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// Confidence pipeline constants
const (
	momentumScale = 0.10
	sharpScale    = 0.08
	restScale     = 0.05
	h2hScale      = 0.05
	h2hBonusCap   = 0.05
	bayesBlendCap = 0.75
	minConfidence = 0.01
	maxConfidence = 0.99
	minPayout     = 1e-6
)

// FitnessWeights are the non-negative weights of the combined fitness score
type FitnessWeights struct {
	ROI         float64 `json:"roi" yaml:"roi"`
	Consistency float64 `json:"consistency" yaml:"consistency"`
	Drawdown    float64 `json:"drawdown" yaml:"drawdown"`
}

// EvaluatorConfig controls how raw P&L is folded into fitness
type EvaluatorConfig struct {
	Weights       FitnessWeights `json:"weights" yaml:"weights"`
	MinBets       int            `json:"min_bets" yaml:"min_bets"`
	PenaltyWeight float64        `json:"penalty_weight" yaml:"penalty_weight"`
	FitnessFloor  float64        `json:"fitness_floor" yaml:"fitness_floor"`
	SharpeClamp   float64        `json:"sharpe_clamp" yaml:"sharpe_clamp"`
}

// DefaultEvaluatorConfig returns the default fitness configuration
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Weights:       FitnessWeights{ROI: 0.5, Consistency: 0.3, Drawdown: 0.2},
		MinBets:       30,
		PenaltyWeight: 1.0,
		FitnessFloor:  -2.0,
		SharpeClamp:   3.0,
	}
}

// Validate checks the fitness configuration
func (c EvaluatorConfig) Validate() error {
	if c.Weights.ROI < 0 || c.Weights.Consistency < 0 || c.Weights.Drawdown < 0 {
		return fmt.Errorf("fitness weights must be non-negative, got: %+v", c.Weights)
	}
	if c.MinBets < 0 {
		return fmt.Errorf("min bets must be non-negative, got: %d", c.MinBets)
	}
	if c.PenaltyWeight < 0 {
		return fmt.Errorf("penalty weight must be non-negative, got: %.4f", c.PenaltyWeight)
	}
	if c.SharpeClamp <= 0 {
		return fmt.Errorf("sharpe clamp must be positive, got: %.4f", c.SharpeClamp)
	}
	return nil
}

// FitnessRecord is the per-candidate breakdown of one evaluation
type FitnessRecord struct {
	ROI         float64 `json:"roi"`
	Consistency float64 `json:"consistency"`
	Drawdown    float64 `json:"drawdown"`
	Penalty     float64 `json:"penalty"`
	Fitness     float64 `json:"fitness"`
	Bets        int     `json:"bets"`
	TotalStaked float64 `json:"total_staked"`
	TotalProfit float64 `json:"total_profit"`
}

// Evaluation is the result of scoring a population against an event batch.
// Confidence, Stakes and Profits are (P×N) and nil when the batch is empty.
type Evaluation struct {
	Confidence *mat.Dense
	Stakes     *mat.Dense
	Profits    *mat.Dense
	Records    []FitnessRecord
	Fitness    []float64
}

// Evaluator scores whole populations in one broadcasted computation
type Evaluator struct {
	schema *types.GeneSchema
	config EvaluatorConfig
}

// NewEvaluator creates an evaluator for the given gene schema
func NewEvaluator(schema *types.GeneSchema, config EvaluatorConfig) *Evaluator {
	return &Evaluator{schema: schema, config: config}
}

// Config returns the fitness configuration
func (e *Evaluator) Config() EvaluatorConfig {
	return e.config
}

// Evaluate scores a (P×G) population against the event batch. Every gene must already be
// inside its bound; callers clip after every operator.
func (e *Evaluator) Evaluate(population *mat.Dense, events *EventMatrix) (*Evaluation, error) {
	if population == nil {
		return nil, fmt.Errorf("population is nil")
	}
	p, g := population.Dims()
	if g != e.schema.Len() {
		return nil, fmt.Errorf("population has %d genes, schema v%d expects %d", g, e.schema.Version, e.schema.Len())
	}

	n := events.Len()
	if n == 0 {
		return e.emptyEvaluation(p), nil
	}

	gene := func(idx int) *mat.VecDense {
		return mat.NewVecDense(p, mat.Col(nil, idx, population))
	}
	onesP := ones(p)

	// 1. base confidence
	var conf, tmp mat.Dense
	conf.Outer(1, onesP, events.modelProb)
	tmp.Outer(momentumScale, gene(types.IdxMomentumWeight), events.momentum)
	conf.Add(&conf, &tmp)
	tmp.Outer(sharpScale, gene(types.IdxSharpWeight), events.sharp)
	conf.Add(&conf, &tmp)
	tmp.Outer(restScale, gene(types.IdxRestWeight), events.rest)
	conf.Add(&conf, &tmp)

	// 2. venue bias, draws stay neutral
	var venue mat.Dense
	venue.Outer(1, gene(types.IdxHomeVenueBias), events.isHome)
	tmp.Outer(1, gene(types.IdxAwayVenueBias), events.isAway)
	venue.Add(&venue, &tmp)
	tmp.Outer(1, onesP, events.isDraw)
	venue.Add(&venue, &tmp)
	conf.MulElem(&conf, &venue)

	// 3. bounded head-to-head bonus
	tmp.Outer(h2hScale, gene(types.IdxH2HWeight), events.h2h)
	tmp.Apply(func(_, _ int, v float64) float64 {
		return clamp(v, -h2hBonusCap, h2hBonusCap)
	}, &tmp)
	conf.Add(&conf, &tmp)

	// 4. Bayesian blend toward the cluster win-rate
	var blend, pull mat.Dense
	blend.Outer(1, gene(types.IdxBayesTrust), events.clusterConf)
	blend.Apply(func(_, _ int, v float64) float64 {
		return clamp(v, 0, bayesBlendCap)
	}, &blend)
	pull.Outer(1, onesP, events.clusterWin)
	pull.Sub(&pull, &conf)
	pull.MulElem(&blend, &pull)
	conf.Add(&conf, &pull)

	// 5. clip
	conf.Apply(func(_, _ int, v float64) float64 {
		return clamp(v, minConfidence, maxConfidence)
	}, &conf)

	minEdge := gene(types.IdxMinEdge).RawVector().Data
	minConf := gene(types.IdxMinConfidence).RawVector().Data
	drawThreshold := gene(types.IdxDrawThreshold).RawVector().Data
	buffer := gene(types.IdxVolatilityBuffer).RawVector().Data
	kellyFraction := gene(types.IdxKellyFraction).RawVector().Data
	maxStake := gene(types.IdxMaxStake).RawVector().Data
	implied := events.implied.RawVector().Data
	odds := events.odds.RawVector().Data
	isDraw := events.isDraw.RawVector().Data

	// 6-8. admission mask, draw gate on the clipped confidence, then Kelly sizing
	var stakes mat.Dense
	stakes.Apply(func(i, j int, c float64) float64 {
		if !events.admissible[j] {
			return 0
		}
		edge := c - implied[j]
		if edge < minEdge[i] || c < minConf[i] {
			return 0
		}
		if isDraw[j] == 1 && c < drawThreshold[i] {
			return 0
		}
		eff := math.Max(0, edge-buffer[i])
		prob := implied[j] + eff
		kelly := math.Max(0, (prob*odds[j]-1)/math.Max(odds[j]-1, minPayout))
		return math.Min(kellyFraction[i]*kelly, maxStake[i])
	}, &conf)

	// 9. realized profit
	var profits mat.Dense
	tmp.Outer(1, onesP, events.returns)
	profits.MulElem(&stakes, &tmp)

	records := e.summarize(&stakes, &profits, events)
	fitness := make([]float64, p)
	for i := range records {
		fitness[i] = records[i].Fitness
	}

	return &Evaluation{
		Confidence: &conf,
		Stakes:     &stakes,
		Profits:    &profits,
		Records:    records,
		Fitness:    fitness,
	}, nil
}

// StakesFor returns the stake every member of population would place on one event. The
// event need not be resolved.
func (e *Evaluator) StakesFor(population *mat.Dense, event types.Event) ([]float64, error) {
	eval, err := e.Evaluate(population, NewPricingMatrix([]types.Event{event}))
	if err != nil {
		return nil, err
	}
	p, _ := population.Dims()
	if eval.Stakes == nil {
		return make([]float64, p), nil
	}
	return mat.Col(nil, 0, eval.Stakes), nil
}

// summarize reduces the (P×N) stake and profit matrices into fitness records
func (e *Evaluator) summarize(stakes, profits *mat.Dense, events *EventMatrix) []FitnessRecord {
	p, n := stakes.Dims()
	onesN := ones(n)

	var staked, profit, bets mat.VecDense
	staked.MulVec(stakes, onesN)
	profit.MulVec(profits, onesN)

	var placed mat.Dense
	placed.Apply(func(_, _ int, v float64) float64 {
		if v > 0 {
			return 1
		}
		return 0
	}, stakes)
	bets.MulVec(&placed, onesN)

	var periodProfit, periodStake mat.Dense
	periodProfit.Mul(profits, events.periods)
	periodStake.Mul(stakes, events.periods)

	records := make([]FitnessRecord, p)
	for i := 0; i < p; i++ {
		rec := FitnessRecord{
			Bets:        int(math.Round(bets.AtVec(i))),
			TotalStaked: staked.AtVec(i),
			TotalProfit: profit.AtVec(i),
		}
		rec.ROI = ROI(rec.TotalProfit, rec.TotalStaked)
		rec.Drawdown = MaxDrawdown(profits.RawRowView(i))
		rec.Consistency = PeriodSharpe(periodProfit.RawRowView(i), periodStake.RawRowView(i), e.config.SharpeClamp)
		rec.Penalty = BetCountPenalty(rec.Bets, e.config.MinBets, e.config.PenaltyWeight)
		rec.Fitness = CombineFitness(rec, e.config)
		records[i] = rec
	}
	return records
}

func (e *Evaluator) emptyEvaluation(p int) *Evaluation {
	records := make([]FitnessRecord, p)
	fitness := make([]float64, p)
	for i := range records {
		records[i].Penalty = BetCountPenalty(0, e.config.MinBets, e.config.PenaltyWeight)
		records[i].Fitness = e.config.FitnessFloor
		fitness[i] = e.config.FitnessFloor
	}
	return &Evaluation{Records: records, Fitness: fitness}
}

func ones(n int) *mat.VecDense {
	data := make([]float64, n)
	for i := range data {
		data[i] = 1
	}
	return mat.NewVecDense(n, data)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

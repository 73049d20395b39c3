package robustness

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ducminhle1904/dna-evolution/internal/backtest"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// GateResult is the outcome of stress-testing one partition's top candidates
type GateResult struct {
	Candidates    []CandidateReport
	Ensemble      *Ensemble
	FailureReason string
}

// Active reports whether at least one candidate survived
func (r *GateResult) Active() bool {
	return r.Ensemble != nil && r.Ensemble.Size() > 0
}

// Gate runs bootstrap and Monte Carlo stress tests on candidates scored on validation events
type Gate struct {
	config    GateConfig
	schema    *types.GeneSchema
	evaluator *backtest.Evaluator
	partition string
}

// NewGate creates a gate for one partition
func NewGate(partition string, config GateConfig, schema *types.GeneSchema, evaluator *backtest.Evaluator) *Gate {
	return &Gate{config: config, schema: schema, evaluator: evaluator, partition: partition}
}

// Run ranks candidates by validation fitness, keeps the top N and stress-tests each one.
// A candidate that fails only Monte Carlo gets an adaptive stake rescue.
func (g *Gate) Run(candidates []Candidate, validation *backtest.EventMatrix) (*GateResult, error) {
	ranked := append([]Candidate(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Fitness > ranked[j].Fitness })
	if len(ranked) > g.config.TopN {
		ranked = ranked[:g.config.TopN]
	}
	if len(ranked) == 0 {
		return &GateResult{Ensemble: NewEnsemble(nil), FailureReason: "no candidates to test"}, nil
	}

	pop := mat.NewDense(len(ranked), g.schema.Len(), nil)
	for i, c := range ranked {
		if len(c.DNA) != g.schema.Len() {
			return nil, fmt.Errorf("candidate %d has %d genes, schema expects %d", i, len(c.DNA), g.schema.Len())
		}
		pop.SetRow(i, c.DNA)
	}
	eval, err := g.evaluator.Evaluate(pop, validation)
	if err != nil {
		return nil, fmt.Errorf("gate %s: evaluate candidates: %w", g.partition, err)
	}

	boots := g.bootstrap(eval, validation.Len())
	rng := rand.New(rand.NewPCG(g.config.Seed, g.config.Seed^0xbf58476d1ce4e5b9))

	result := &GateResult{}
	for i, c := range ranked {
		rep := CandidateReport{
			Rank:              i + 1,
			DNA:               append([]float64(nil), c.DNA...),
			ValidationFitness: eval.Fitness[i],
			Bootstrap:         boots[i],
			MonteCarlo:        g.monteCarlo(realizedProfits(eval, i), rng),
		}
		g.judge(&rep, validation, rng)
		result.Candidates = append(result.Candidates, rep)
	}

	// rescued members may have moved in fitness; deploy best first
	var passed []CandidateReport
	for _, rep := range result.Candidates {
		if rep.Passed {
			passed = append(passed, rep)
		}
	}
	sort.SliceStable(passed, func(i, j int) bool { return passed[i].ValidationFitness > passed[j].ValidationFitness })
	survivors := make([][]float64, len(passed))
	for i, rep := range passed {
		survivors[i] = rep.DNA
	}

	result.Ensemble = NewEnsemble(survivors)
	if !result.Active() {
		result.FailureReason = failureReason(result.Candidates, g.config)
		log.Printf("🛑 %s: no candidate survived the robustness gate: %s", g.partition, result.FailureReason)
	} else {
		log.Printf("🛡️ %s: %d/%d candidates survived, method %s", g.partition, len(survivors), len(ranked), result.Ensemble.Method)
	}
	return result, nil
}

func (g *Gate) judge(rep *CandidateReport, validation *backtest.EventMatrix, rng *rand.Rand) {
	bootOK := BootstrapPasses(rep.Bootstrap, g.config.BootstrapThreshold)
	mcOK := MonteCarloPasses(rep.MonteCarlo, g.config.RuinThreshold)

	switch {
	case bootOK && mcOK:
		rep.Passed = true
	case !bootOK:
		rep.Reason = fmt.Sprintf("bootstrap p_positive %.3f <= %.2f", rep.Bootstrap.PPositive, g.config.BootstrapThreshold)
		log.Printf("⚠️ %s candidate %d rejected: %s", g.partition, rep.Rank, rep.Reason)
	default:
		g.rescue(rep, validation, rng)
	}
}

// rescue shrinks kelly_fraction and max_stake until the candidate clears both gates or
// the attempt budget runs out.
func (g *Gate) rescue(rep *CandidateReport, validation *backtest.EventMatrix, rng *rand.Rand) {
	original := rep.MonteCarlo.RuinProbability
	res := &RescueResult{Scale: 1}
	rep.Rescue = res

	dna := append([]float64(nil), rep.DNA...)
	for res.Attempts < g.config.RescueAttempts {
		res.Attempts++
		res.Scale *= g.config.RescueFactor
		dna[types.IdxKellyFraction] = rep.DNA[types.IdxKellyFraction] * res.Scale
		dna[types.IdxMaxStake] = rep.DNA[types.IdxMaxStake] * res.Scale
		g.schema.Clip(dna)

		eval, err := g.evaluator.Evaluate(mat.NewDense(1, len(dna), dna), validation)
		if err != nil {
			break
		}
		boot := g.bootstrap(eval, validation.Len())[0]
		mc := g.monteCarlo(realizedProfits(eval, 0), rng)
		log.Printf("🩹 %s candidate %d rescue %d: scale %.3f, ruin %.4f, p_positive %.3f",
			g.partition, rep.Rank, res.Attempts, res.Scale, mc.RuinProbability, boot.PPositive)

		if BootstrapPasses(boot, g.config.BootstrapThreshold) && MonteCarloPasses(mc, g.config.RuinThreshold) {
			res.Succeeded = true
			rep.Passed = true
			rep.DNA = append([]float64(nil), dna...)
			rep.ValidationFitness = eval.Fitness[0]
			rep.Bootstrap = boot
			rep.MonteCarlo = mc
			return
		}
	}

	rep.Reason = fmt.Sprintf("monte carlo ruin %.4f >= %.2f after %d rescue attempts", original, g.config.RuinThreshold, res.Attempts)
	log.Printf("⚠️ %s candidate %d rejected: %s", g.partition, rep.Rank, rep.Reason)
}

func (g *Gate) bootstrap(eval *backtest.Evaluation, n int) []BootstrapResult {
	if eval.Stakes == nil {
		return make([]BootstrapResult, len(eval.Fitness))
	}
	return Bootstrap(eval.Stakes, eval.Profits, g.config.BootstrapSamples, SeededResampler(g.config.Seed, n))
}

func (g *Gate) monteCarlo(profits []float64, rng *rand.Rand) MonteCarloResult {
	return MonteCarlo(profits, g.config.MonteCarloPaths, g.config.Bankroll, g.config.RuinLevel, rng)
}

// realizedProfits returns row i's profit on every admitted bet, in event order
func realizedProfits(eval *backtest.Evaluation, i int) []float64 {
	if eval.Stakes == nil {
		return nil
	}
	stakes := eval.Stakes.RawRowView(i)
	profits := eval.Profits.RawRowView(i)
	var out []float64
	for j, s := range stakes {
		if s > 0 {
			out = append(out, profits[j])
		}
	}
	return out
}

func failureReason(reports []CandidateReport, cfg GateConfig) string {
	bootFailed, mcFailed := 0, 0
	bestP, bestRuin := 0.0, math.Inf(1)
	for _, r := range reports {
		bestP = math.Max(bestP, r.Bootstrap.PPositive)
		if !BootstrapPasses(r.Bootstrap, cfg.BootstrapThreshold) {
			bootFailed++
			continue
		}
		mcFailed++
		bestRuin = math.Min(bestRuin, r.MonteCarlo.RuinProbability)
	}

	parts := []string{fmt.Sprintf("%d candidates tested", len(reports))}
	if bootFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed bootstrap (best p_positive %.3f, need > %.2f)", bootFailed, bestP, cfg.BootstrapThreshold))
	}
	if mcFailed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed monte carlo after rescue (best ruin %.4f, need < %.2f)", mcFailed, bestRuin, cfg.RuinThreshold))
	}
	return strings.Join(parts, "; ")
}

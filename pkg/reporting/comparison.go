package reporting

import (
	"sort"

	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// ComparisonRow is one partition's line of the cross-partition comparison
type ComparisonRow struct {
	Partition         string
	RunID             string
	Active            bool
	Method            string
	Generations       int
	TrainFitness      float64
	ValidationFitness float64
	ValidationROI     float64
	ValidationBets    int
	FailureReason     string
	Genes             []float64
}

// BuildComparison turns the latest documents into comparison rows ordered by partition,
// with the global fallback last. Genes absent from older documents read as midpoints.
func BuildComparison(docs []*strategy.Document, schema *types.GeneSchema) []ComparisonRow {
	rows := make([]ComparisonRow, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		rows = append(rows, ComparisonRow{
			Partition:         d.Partition,
			RunID:             d.RunID,
			Active:            d.Active,
			Method:            d.Method,
			Generations:       d.Generations,
			TrainFitness:      d.TrainFitness.Fitness,
			ValidationFitness: d.ValidationFitness.Fitness,
			ValidationROI:     d.ValidationFitness.ROI,
			ValidationBets:    d.ValidationFitness.Bets,
			FailureReason:     d.FailureReason,
			Genes:             d.Vector(schema),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		gi, gj := rows[i].Partition == types.GlobalPartition, rows[j].Partition == types.GlobalPartition
		if gi != gj {
			return gj
		}
		return rows[i].Partition < rows[j].Partition
	})
	return rows
}

// ActiveCount returns how many rows carry an active strategy
func ActiveCount(rows []ComparisonRow) int {
	n := 0
	for _, r := range rows {
		if r.Active {
			n++
		}
	}
	return n
}

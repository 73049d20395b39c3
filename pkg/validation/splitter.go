package validation

import (
	"fmt"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// DefaultDataSplitter implements the DataSplitter interface
type DefaultDataSplitter struct{}

// NewDefaultDataSplitter creates a new default data splitter
func NewDefaultDataSplitter() *DefaultDataSplitter {
	return &DefaultDataSplitter{}
}

// SplitByRatio splits chronologically sorted events into train/validation by ratio. The cut
// moves forward past timestamp ties so no validation event shares a timestamp with train.
func (s *DefaultDataSplitter) SplitByRatio(events []types.Event, ratio float64) ([]types.Event, []types.Event) {
	if ratio <= 0 || ratio >= 1 {
		return events, nil
	}

	n := int(float64(len(events)) * ratio)
	if n < 1 || n >= len(events) {
		return events, nil
	}
	n = advancePastTies(events, n, len(events))
	if n >= len(events) {
		return events, nil
	}
	return events[:n], events[n:]
}

// CreateExpandingFolds cuts events into k equal chunks and returns k-1 folds where fold i
// trains on chunks [0..i) and validates on chunk i. A fold whose validation chunk is emptied
// by the tie guard is dropped and its index returned.
func (s *DefaultDataSplitter) CreateExpandingFolds(events []types.Event, chunks int) ([]FoldSplit, []int) {
	if chunks < 2 || len(events) < chunks {
		return nil, nil
	}

	bounds := make([]int, chunks+1)
	for i := 0; i <= chunks; i++ {
		bounds[i] = i * len(events) / chunks
	}

	var folds []FoldSplit
	var dropped []int
	for i := 1; i < chunks; i++ {
		start := advancePastTies(events, bounds[i], bounds[i+1])
		if start >= bounds[i+1] {
			dropped = append(dropped, i)
			continue
		}

		train := events[:start]
		val := events[start:bounds[i+1]]
		folds = append(folds, FoldSplit{
			Index:           i,
			Train:           train,
			Validation:      val,
			TrainStart:      train[0].Timestamp,
			TrainEnd:        train[len(train)-1].Timestamp,
			ValidationStart: val[0].Timestamp,
			ValidationEnd:   val[len(val)-1].Timestamp,
		})
	}
	return folds, dropped
}

// BuildPlan holds back the validation tail and, in expanding mode, folds the search head.
func (s *DefaultDataSplitter) BuildPlan(events []types.Event, cfg ValidationConfig) (*Plan, error) {
	search, validation := s.SplitByRatio(events, cfg.HoldoutRatio)
	if len(validation) == 0 {
		return nil, fmt.Errorf("cannot hold back validation events from %d events at ratio %.2f", len(events), cfg.HoldoutRatio)
	}

	plan := &Plan{Mode: cfg.Mode, Search: search, Validation: validation}
	if cfg.Mode == ModeExpanding {
		plan.Folds, plan.DroppedFolds = s.CreateExpandingFolds(search, cfg.Folds)
		if len(plan.Folds) == 0 {
			return nil, fmt.Errorf("no usable expanding folds from %d search events with %d chunks", len(search), cfg.Folds)
		}
	}
	return plan, nil
}

// advancePastTies moves a cut forward while the event at the cut shares its timestamp with
// the event before it. limit caps the move.
func advancePastTies(events []types.Event, cut, limit int) int {
	for cut > 0 && cut < limit && events[cut].Timestamp.Equal(events[cut-1].Timestamp) {
		cut++
	}
	return cut
}

// Package-level convenience functions

// SplitByRatio is a convenience function that uses the default splitter
func SplitByRatio(events []types.Event, ratio float64) ([]types.Event, []types.Event) {
	return NewDefaultDataSplitter().SplitByRatio(events, ratio)
}

// CreateExpandingFolds is a convenience function that uses the default splitter
func CreateExpandingFolds(events []types.Event, chunks int) ([]FoldSplit, []int) {
	return NewDefaultDataSplitter().CreateExpandingFolds(events, chunks)
}

// BuildPlan is a convenience function that uses the default splitter
func BuildPlan(events []types.Event, cfg ValidationConfig) (*Plan, error) {
	return NewDefaultDataSplitter().BuildPlan(events, cfg)
}

package data

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// SyntheticStart is the timestamp of the first generated event
var SyntheticStart = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// GenerateSyntheticEvents builds a deterministic ledger with a planted edge: roughly half the
// events are priced below their true probability and carry correlated momentum and sharp signals.
// Partitions are assigned round-robin.
func GenerateSyntheticEvents(n int, partitions []string, seed uint64) []types.Event {
	if len(partitions) == 0 {
		partitions = []string{"SYN"}
	}
	rng := rand.New(rand.NewPCG(seed, seed+1))
	events := make([]types.Event, n)

	for i := 0; i < n; i++ {
		var side types.Side
		var trueP float64
		switch r := rng.Float64(); {
		case r < 0.45:
			side = types.SideHome
			trueP = 0.35 + 0.35*rng.Float64()
		case r < 0.80:
			side = types.SideAway
			trueP = 0.25 + 0.30*rng.Float64()
		default:
			side = types.SideDraw
			trueP = 0.22 + 0.11*rng.Float64()
		}

		value := rng.Float64() < 0.5
		var implied float64
		if value {
			implied = trueP * (0.80 + 0.12*rng.Float64())
		} else {
			implied = math.Min(0.95, trueP*(1.02+0.10*rng.Float64()))
		}

		momentum := clampUnit((trueP-implied)*4 + rng.NormFloat64()*0.3)
		ev := types.Event{
			ID:                fmt.Sprintf("syn-%06d", i),
			Partition:         partitions[i%len(partitions)],
			Timestamp:         SyntheticStart.Add(time.Duration(i) * 6 * time.Hour),
			PickSide:          side,
			ModelProb:         clampProb(trueP + rng.NormFloat64()*0.03),
			ImpliedProb:       implied,
			Odds:              1 / implied,
			MomentumGap:       momentum,
			SharpFlag:         value && rng.Float64() < 0.6,
			RestAdvantage:     clampUnit(rng.NormFloat64() * 0.5),
			H2HWeight:         clampUnit(rng.NormFloat64() * 0.5),
			ClusterWinRate:    clampProb(trueP + rng.NormFloat64()*0.05),
			ClusterConfidence: 0.2 + 0.7*rng.Float64(),
		}
		if ev.SharpFlag {
			ev.SharpMagnitude = 0.2 + 0.8*rng.Float64()
		}

		if rng.Float64() < trueP {
			ev.Outcome = side
		} else {
			ev.Outcome = otherSide(side, rng)
		}
		events[i] = ev
	}
	return events
}

// SyntheticSource serves a generated ledger through the EventSource interface
type SyntheticSource struct {
	events []types.Event
}

// NewSyntheticSource generates n events across the given partitions
func NewSyntheticSource(n int, partitions []string, seed uint64) *SyntheticSource {
	return &SyntheticSource{events: GenerateSyntheticEvents(n, partitions, seed)}
}

// NewStaticSource serves a fixed event slice
func NewStaticSource(events []types.Event) *SyntheticSource {
	return &SyntheticSource{events: events}
}

// GetName returns the name of the event source
func (s *SyntheticSource) GetName() string {
	return fmt.Sprintf("static ledger (%d events)", len(s.events))
}

// LoadEvents returns the partition's events in stable chronological order
func (s *SyntheticSource) LoadEvents(ctx context.Context, partition string) ([]types.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return SortEvents(FilterByPartition(s.events, partition)), nil
}

// Partitions lists every partition key with its counts
func (s *SyntheticSource) Partitions(ctx context.Context) ([]types.PartitionInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return SummarizePartitions(s.events), nil
}

func otherSide(side types.Side, rng *rand.Rand) types.Side {
	others := make([]types.Side, 0, 2)
	for _, s := range []types.Side{types.SideHome, types.SideDraw, types.SideAway} {
		if s != side {
			others = append(others, s)
		}
	}
	return others[rng.IntN(len(others))]
}

func clampProb(p float64) float64 {
	return math.Max(0.02, math.Min(0.98, p))
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

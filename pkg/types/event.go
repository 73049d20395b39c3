package types

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// GlobalPartition is the partition key of the unconditional fallback run over every event.
const GlobalPartition = "_global"

// Side is a pick side or a realized outcome class.
type Side int

const (
	SideUnknown Side = iota
	SideHome
	SideDraw
	SideAway
)

// String returns the ledger spelling of the side
func (s Side) String() string {
	switch s {
	case SideHome:
		return "home"
	case SideDraw:
		return "draw"
	case SideAway:
		return "away"
	default:
		return "unknown"
	}
}

// ParseSide accepts home/draw/away as well as the 1/X/2 shorthand.
func ParseSide(s string) Side {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "home", "h", "1", "first":
		return SideHome
	case "draw", "d", "x":
		return SideDraw
	case "away", "a", "2", "second":
		return SideAway
	default:
		return SideUnknown
	}
}

// Event is one resolved historical pick with its precomputed signal features.
// Events are immutable once loaded.
type Event struct {
	ID        string
	Partition string
	Timestamp time.Time

	PickSide Side
	Outcome  Side

	ModelProb   float64
	ImpliedProb float64
	Odds        float64

	MomentumGap    float64
	SharpFlag      bool
	SharpMagnitude float64
	RestAdvantage  float64
	H2HWeight      float64

	ClusterWinRate    float64
	ClusterConfidence float64
}

// Won reports whether the pick matched the realized outcome
func (e Event) Won() bool {
	return e.Outcome != SideUnknown && e.PickSide == e.Outcome
}

// Admissible reports whether the event can take part in evaluation at all.
func (e Event) Admissible() bool {
	return e.Outcome != SideUnknown && e.Priceable()
}

// Priceable reports whether a stake can be sized for the event, resolved or not.
func (e Event) Priceable() bool {
	if e.PickSide == SideUnknown || !e.Finite() {
		return false
	}
	if e.ImpliedProb <= 0 || e.ImpliedProb >= 1 {
		return false
	}
	return e.DecimalOdds() > 1
}

// Finite reports whether every numeric field is a finite number
func (e Event) Finite() bool {
	for _, v := range [...]float64{
		e.ModelProb, e.ImpliedProb, e.Odds,
		e.MomentumGap, e.SharpMagnitude, e.RestAdvantage, e.H2HWeight,
		e.ClusterWinRate, e.ClusterConfidence,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// DecimalOdds returns the payout odds, deriving them from the implied probability when absent.
func (e Event) DecimalOdds() float64 {
	if e.Odds > 0 {
		return e.Odds
	}
	p := e.ImpliedProb
	if p < 1e-6 {
		p = 1e-6
	}
	return 1 / p
}

// PartitionInfo describes one partition of the event universe.
type PartitionInfo struct {
	Key              string
	TotalEvents      int
	AdmissibleEvents int
	FirstEvent       time.Time
	LastEvent        time.Time
}

// SafeName maps a partition key onto a file-name token. Keys made only of letters, digits,
// '_', '-' and '.' are kept as they are; any other key, plus "." and "..", is rewritten and
// suffixed with '~' and a hash of the raw key, so distinct keys never share a path.
func SafeName(partition string) string {
	out := []byte(partition)
	changed := len(out) == 0 || partition == "." || partition == ".."
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-', c == '.':
		default:
			out[i] = '_'
			changed = true
		}
	}
	if !changed {
		return partition
	}
	return fmt.Sprintf("%s~%08x", strings.ReplaceAll(string(out), ".", "_"), uint32(xxhash.Sum64String(partition)))
}

package data

import (
	"context"
	"time"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// EventSource is read-only access to the ledger of resolved events
type EventSource interface {
	// LoadEvents returns the partition's events in stable chronological order.
	// types.GlobalPartition selects every event.
	LoadEvents(ctx context.Context, partition string) ([]types.Event, error)

	// Partitions lists every partition key with its event counts
	Partitions(ctx context.Context) ([]types.PartitionInfo, error)

	// GetName returns the name of the event source
	GetName() string
}

// EventCache interface for caching loaded events
type EventCache interface {
	// Get retrieves events from cache if available
	Get(key string) ([]types.Event, bool)

	// Set stores events in cache
	Set(key string, events []types.Event)

	// Clear removes all cached events
	Clear()

	// Size returns the number of cached entries
	Size() int
}

// EventFilter interface for filtering and ordering events
type EventFilter interface {
	// FilterByPeriod keeps the trailing period ending at the newest event
	FilterByPeriod(events []types.Event, period time.Duration) []types.Event

	// FilterByDateRange keeps events inside [start, end]
	FilterByDateRange(events []types.Event, start, end time.Time) []types.Event

	// ValidateTimeSequence ensures events are in chronological order
	ValidateTimeSequence(events []types.Event) error
}

// CSVColumnMapping names the ledger columns. Lookups are by header name, not position.
type CSVColumnMapping struct {
	ID                string
	Partition         string
	Timestamp         string
	PickSide          string
	Outcome           string
	ModelProb         string
	ImpliedProb       string
	Odds              string
	MomentumGap       string
	SharpFlag         string
	SharpMagnitude    string
	RestAdvantage     string
	H2HWeight         string
	ClusterWinRate    string
	ClusterConfidence string
	DateFormats       []string
}

// DefaultCSVFormat is the column layout written by WriteEventsCSV
var DefaultCSVFormat = CSVColumnMapping{
	ID:                "id",
	Partition:         "partition",
	Timestamp:         "timestamp",
	PickSide:          "pick_side",
	Outcome:           "outcome",
	ModelProb:         "model_prob",
	ImpliedProb:       "implied_prob",
	Odds:              "odds",
	MomentumGap:       "momentum_gap",
	SharpFlag:         "sharp_flag",
	SharpMagnitude:    "sharp_magnitude",
	RestAdvantage:     "rest_advantage",
	H2HWeight:         "h2h_weight",
	ClusterWinRate:    "cluster_win_rate",
	ClusterConfidence: "cluster_confidence",
	DateFormats:       []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"},
}

// header returns the ordered column names of the mapping
func (m CSVColumnMapping) header() []string {
	return []string{
		m.ID, m.Partition, m.Timestamp, m.PickSide, m.Outcome,
		m.ModelProb, m.ImpliedProb, m.Odds,
		m.MomentumGap, m.SharpFlag, m.SharpMagnitude, m.RestAdvantage, m.H2HWeight,
		m.ClusterWinRate, m.ClusterConfidence,
	}
}

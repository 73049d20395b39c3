package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sony/gobreaker"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

const selectEventsQuery = `
		SELECT id, partition_key, event_time, pick_side, outcome,
		       model_prob, implied_prob, odds,
		       momentum_gap, sharp_flag, sharp_magnitude, rest_advantage, h2h_weight,
		       cluster_win_rate, cluster_confidence
		FROM resolved_events
		WHERE ($1 = '' OR partition_key = $1)
		ORDER BY event_time, id`

// eventRow mirrors one resolved_events row
type eventRow struct {
	ID                string          `db:"id"`
	PartitionKey      string          `db:"partition_key"`
	EventTime         time.Time       `db:"event_time"`
	PickSide          string          `db:"pick_side"`
	Outcome           sql.NullString  `db:"outcome"`
	ModelProb         float64         `db:"model_prob"`
	ImpliedProb       float64         `db:"implied_prob"`
	Odds              sql.NullFloat64 `db:"odds"`
	MomentumGap       float64         `db:"momentum_gap"`
	SharpFlag         bool            `db:"sharp_flag"`
	SharpMagnitude    float64         `db:"sharp_magnitude"`
	RestAdvantage     float64         `db:"rest_advantage"`
	H2HWeight         float64         `db:"h2h_weight"`
	ClusterWinRate    float64         `db:"cluster_win_rate"`
	ClusterConfidence float64         `db:"cluster_confidence"`
}

// PostgresSource implements EventSource over the resolved_events table.
// Reads go through a circuit breaker so a failing database trips fast during watch cycles.
type PostgresSource struct {
	db      *sqlx.DB
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewPostgresSource creates a Postgres event source
func NewPostgresSource(db *sqlx.DB, timeout time.Duration) *PostgresSource {
	st := gobreaker.Settings{Name: "postgres-events"}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	return &PostgresSource{
		db:      db,
		timeout: timeout,
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// GetName returns the name of the event source
func (s *PostgresSource) GetName() string {
	return "Postgres resolved_events"
}

// LoadEvents loads one partition (or all, for the global key) in stable chronological order
func (s *PostgresSource) LoadEvents(ctx context.Context, partition string) ([]types.Event, error) {
	key := partition
	if key == types.GlobalPartition {
		key = ""
	}

	out, err := s.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		var rows []eventRow
		if err := s.db.SelectContext(ctx, &rows, selectEventsQuery, key); err != nil {
			return nil, fmt.Errorf("failed to query events for %s: %w", partition, err)
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}

	rows := out.([]eventRow)
	events := make([]types.Event, 0, len(rows))
	for _, r := range rows {
		ev := types.Event{
			ID:                r.ID,
			Partition:         r.PartitionKey,
			Timestamp:         r.EventTime.UTC(),
			PickSide:          types.ParseSide(r.PickSide),
			ModelProb:         r.ModelProb,
			ImpliedProb:       r.ImpliedProb,
			MomentumGap:       r.MomentumGap,
			SharpFlag:         r.SharpFlag,
			SharpMagnitude:    r.SharpMagnitude,
			RestAdvantage:     r.RestAdvantage,
			H2HWeight:         r.H2HWeight,
			ClusterWinRate:    r.ClusterWinRate,
			ClusterConfidence: r.ClusterConfidence,
		}
		if r.Outcome.Valid {
			ev.Outcome = types.ParseSide(r.Outcome.String)
		}
		if r.Odds.Valid {
			ev.Odds = r.Odds.Float64
		}
		events = append(events, ev)
	}
	// ties are ordered by id, same as the CSV path
	return SortEvents(events), nil
}

// Partitions lists every partition key with its counts. Admissibility is decided by
// types.Event.Admissible on the loaded rows so discovery and the runner always agree.
func (s *PostgresSource) Partitions(ctx context.Context) ([]types.PartitionInfo, error) {
	events, err := s.LoadEvents(ctx, types.GlobalPartition)
	if err != nil {
		return nil, err
	}
	return SummarizePartitions(events), nil
}

// BreakerState exposes the breaker state for logging
func (s *PostgresSource) BreakerState() string {
	return s.breaker.State().String()
}

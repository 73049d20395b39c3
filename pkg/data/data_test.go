package data

import (
	"bytes"
	"context"
	"math"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

const sampleLedger = `id,partition,timestamp,pick_side,outcome,model_prob,implied_prob,odds,momentum_gap,sharp_flag,sharp_magnitude,rest_advantage,h2h_weight,cluster_win_rate,cluster_confidence
b,ENG,2024-03-02T15:00:00Z,home,home,0.55,0.48,2.05,0.3,true,0.6,0.1,0.2,0.52,0.4
a,ENG,2024-03-02T15:00:00Z,draw,away,0.30,0.27,3.6,-0.1,false,0,0,0,0.28,0.3
c,ESP,2024-03-01 18:30:00,2,2,0.41,0.36,,0.2,1,0.4,-0.2,0.1,0.39,0.5
bad,ESP,not-a-date,home,home,0.5,0.5,2,0,0,0,0,0,0,0
d,ESP,2024-03-03,X,,0.3,0.3,3.2,0,0,0,0,0,0,0
`

// TestParseEventsCSV_SkipsBadRows tests parsing with a malformed row
func TestParseEventsCSV_SkipsBadRows(t *testing.T) {
	events, err := ParseEventsCSV(context.Background(), strings.NewReader(sampleLedger), DefaultCSVFormat)
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, "b", events[0].ID)
	assert.Equal(t, types.SideHome, events[0].PickSide)
	assert.True(t, events[0].SharpFlag)
	assert.Equal(t, types.SideAway, events[2].PickSide)
	assert.Equal(t, 0.0, events[2].Odds)
	assert.InDelta(t, 1/0.36, events[2].DecimalOdds(), 1e-12)
	assert.Equal(t, types.SideUnknown, events[3].Outcome)
	assert.False(t, events[3].Admissible())
}

// TestParseEventsCSV_MissingColumn tests rejection of a ledger without required columns
func TestParseEventsCSV_MissingColumn(t *testing.T) {
	_, err := ParseEventsCSV(context.Background(), strings.NewReader("id,timestamp\n1,2024-01-01\n"), DefaultCSVFormat)
	assert.Error(t, err)
}

// TestParseEventsCSV_RejectsNonFinite tests that NaN and Inf values are skipped like any bad row
func TestParseEventsCSV_RejectsNonFinite(t *testing.T) {
	ledger := `id,partition,timestamp,pick_side,outcome,model_prob,implied_prob,odds
ok,ENG,2024-03-02,home,home,0.55,0.48,2.05
nan,ENG,2024-03-03,home,home,NaN,0.48,2.05
inf,ENG,2024-03-04,away,home,0.4,0.35,+Inf
`
	events, err := ParseEventsCSV(context.Background(), strings.NewReader(ledger), DefaultCSVFormat)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].ID)
	assert.True(t, events[0].Admissible())
}

// TestSortEvents_StableTieBreak tests ordering by timestamp then id
func TestSortEvents_StableTieBreak(t *testing.T) {
	events, err := ParseEventsCSV(context.Background(), strings.NewReader(sampleLedger), DefaultCSVFormat)
	require.NoError(t, err)

	sorted := SortEvents(events)
	ids := make([]string, len(sorted))
	for i, ev := range sorted {
		ids[i] = ev.ID
	}
	assert.Equal(t, []string{"c", "a", "b", "d"}, ids)
	assert.NoError(t, NewDefaultEventFilter().ValidateTimeSequence(sorted))
	assert.Error(t, NewDefaultEventFilter().ValidateTimeSequence(events))
	// input untouched
	assert.Equal(t, "b", events[0].ID)
}

// TestWriteEventsCSV_ReadBack tests that a written ledger parses to the same events
func TestWriteEventsCSV_ReadBack(t *testing.T) {
	original := GenerateSyntheticEvents(25, []string{"ENG", "ESP"}, 7)

	var buf bytes.Buffer
	require.NoError(t, WriteEventsCSV(&buf, original))

	parsed, err := ParseEventsCSV(context.Background(), &buf, DefaultCSVFormat)
	require.NoError(t, err)
	require.Len(t, parsed, len(original))
	for i := range original {
		assert.Equal(t, original[i].ID, parsed[i].ID)
		assert.True(t, original[i].Timestamp.Equal(parsed[i].Timestamp))
		assert.Equal(t, original[i].PickSide, parsed[i].PickSide)
		assert.Equal(t, original[i].Outcome, parsed[i].Outcome)
		assert.Equal(t, original[i].ImpliedProb, parsed[i].ImpliedProb)
		assert.Equal(t, original[i].SharpFlag, parsed[i].SharpFlag)
	}
}

// TestCSVSource_Partitions tests partition discovery from a ledger file
func TestCSVSource_Partitions(t *testing.T) {
	path := t.TempDir() + "/ledger.csv"
	require.NoError(t, WriteEventsCSVFile(path, GenerateSyntheticEvents(30, []string{"ENG", "ESP", "ITA"}, 3)))

	src := NewCSVSource(path)
	infos, err := src.Partitions(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "ENG", infos[0].Key)
	assert.Equal(t, 10, infos[0].TotalEvents)

	eng, err := src.LoadEvents(context.Background(), "ENG")
	require.NoError(t, err)
	assert.Len(t, eng, 10)

	all, err := src.LoadEvents(context.Background(), types.GlobalPartition)
	require.NoError(t, err)
	assert.Len(t, all, 30)
}

// TestGenerateSyntheticEvents_Deterministic tests the generator is seed-stable
func TestGenerateSyntheticEvents_Deterministic(t *testing.T) {
	a := GenerateSyntheticEvents(200, nil, 11)
	b := GenerateSyntheticEvents(200, nil, 11)
	c := GenerateSyntheticEvents(200, nil, 12)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	for _, ev := range a {
		assert.True(t, ev.Admissible())
		assert.Equal(t, "SYN", ev.Partition)
	}
}

// TestCachedSource_Caching tests that loads are served from cache until cleared
func TestCachedSource_Caching(t *testing.T) {
	inner := &countingSource{SyntheticSource: NewSyntheticSource(20, []string{"A", "B"}, 1)}
	cached := NewCachedSource(inner)
	ctx := context.Background()

	_, err := cached.LoadEvents(ctx, "A")
	require.NoError(t, err)
	events, err := cached.LoadEvents(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, events, 10)
	assert.Equal(t, 1, inner.loads)
	assert.Equal(t, 1, cached.cache.Size())

	cached.ClearCache()
	_, err = cached.LoadEvents(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.loads)
}

// TestFilterByPeriod tests trailing-window filtering
func TestFilterByPeriod(t *testing.T) {
	events := SortEvents(GenerateSyntheticEvents(40, nil, 5)) // 6h apart
	filtered := NewDefaultEventFilter().FilterByPeriod(events, 24*time.Hour)
	assert.Len(t, filtered, 5)
	assert.Equal(t, events[len(events)-1].ID, filtered[len(filtered)-1].ID)
}

// TestParseTrailingPeriod tests period parsing
func TestParseTrailingPeriod(t *testing.T) {
	d, ok := ParseTrailingPeriod("90d")
	assert.True(t, ok)
	assert.Equal(t, 90*24*time.Hour, d)

	d, ok = ParseTrailingPeriod("168h")
	assert.True(t, ok)
	assert.Equal(t, 168*time.Hour, d)

	_, ok = ParseTrailingPeriod("soon")
	assert.False(t, ok)
}

// TestPostgresSource_LoadEvents tests row mapping with sqlmock
func TestPostgresSource_LoadEvents(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	ts := time.Date(2024, 5, 1, 19, 45, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "partition_key", "event_time", "pick_side", "outcome",
		"model_prob", "implied_prob", "odds",
		"momentum_gap", "sharp_flag", "sharp_magnitude", "rest_advantage", "h2h_weight",
		"cluster_win_rate", "cluster_confidence",
	}).
		AddRow("e2", "ENG", ts, "away", "away", 0.44, 0.38, nil, 0.2, true, 0.7, 0.0, 0.1, 0.41, 0.5).
		AddRow("e1", "ENG", ts, "home", nil, 0.51, 0.47, 2.1, 0.0, false, 0.0, 0.3, 0.0, 0.5, 0.2)

	mock.ExpectQuery(regexp.QuoteMeta("FROM resolved_events")).
		WithArgs("ENG").
		WillReturnRows(rows)

	src := NewPostgresSource(sqlx.NewDb(mockDB, "postgres"), 5*time.Second)
	events, err := src.LoadEvents(context.Background(), "ENG")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, types.SideUnknown, events[0].Outcome)
	assert.Equal(t, 2.1, events[0].Odds)
	assert.Equal(t, types.SideAway, events[1].Outcome)
	assert.Equal(t, 0.0, events[1].Odds)
	assert.True(t, events[1].SharpFlag)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresSource_GlobalPartition tests that the global key queries every partition
func TestPostgresSource_GlobalPartition(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM resolved_events")).
		WithArgs("").
		WillReturnRows(sqlmock.NewRows([]string{"id", "partition_key", "event_time", "pick_side", "outcome",
			"model_prob", "implied_prob", "odds", "momentum_gap", "sharp_flag", "sharp_magnitude",
			"rest_advantage", "h2h_weight", "cluster_win_rate", "cluster_confidence"}))

	src := NewPostgresSource(sqlx.NewDb(mockDB, "postgres"), 5*time.Second)
	events, err := src.LoadEvents(context.Background(), types.GlobalPartition)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var eventColumns = []string{
	"id", "partition_key", "event_time", "pick_side", "outcome",
	"model_prob", "implied_prob", "odds",
	"momentum_gap", "sharp_flag", "sharp_magnitude", "rest_advantage", "h2h_weight",
	"cluster_win_rate", "cluster_confidence",
}

// TestPostgresSource_Partitions tests that discovery counts admissible rows with the same
// rules the runner applies
func TestPostgresSource_Partitions(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	first := time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM resolved_events")).
		WithArgs("").
		WillReturnRows(sqlmock.NewRows(eventColumns).
			AddRow("e1", "ENG", first, "home", "home", 0.5, 0.45, 2.1, 0.0, false, 0.0, 0.0, 0.0, 0.5, 0.3).
			AddRow("e2", "ENG", last, "1", "X", 0.5, 0.45, 2.1, 0.0, false, 0.0, 0.0, 0.0, 0.5, 0.3).
			AddRow("e3", "ENG", last, "away", "away", 0.5, 0.45, 0.9, 0.0, false, 0.0, 0.0, 0.0, 0.5, 0.3).
			AddRow("e4", "NOR", first, "home", "home", math.NaN(), 0.45, 2.1, 0.0, false, 0.0, 0.0, 0.0, 0.5, 0.3).
			AddRow("e5", "NOR", last, "away", nil, 0.5, 0.45, 2.1, 0.0, false, 0.0, 0.0, 0.0, 0.5, 0.3))

	src := NewPostgresSource(sqlx.NewDb(mockDB, "postgres"), 5*time.Second)
	infos, err := src.Partitions(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "ENG", infos[0].Key)
	assert.Equal(t, 3, infos[0].TotalEvents)
	// shorthand sides count, odds at or below evens do not
	assert.Equal(t, 2, infos[0].AdmissibleEvents)
	assert.Equal(t, first, infos[0].FirstEvent)
	assert.Equal(t, last, infos[0].LastEvent)
	assert.Equal(t, "NOR", infos[1].Key)
	assert.Equal(t, 0, infos[1].AdmissibleEvents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgresSource_BreakerTrips tests that repeated failures open the breaker
func TestPostgresSource_BreakerTrips(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	for i := 0; i < 3; i++ {
		mock.ExpectQuery(regexp.QuoteMeta("FROM resolved_events")).WillReturnError(assert.AnError)
	}

	src := NewPostgresSource(sqlx.NewDb(mockDB, "postgres"), time.Second)
	for i := 0; i < 3; i++ {
		_, err := src.Partitions(context.Background())
		assert.Error(t, err)
	}
	assert.Equal(t, "open", src.BreakerState())

	// open breaker rejects without touching the database
	_, err = src.Partitions(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type countingSource struct {
	*SyntheticSource
	loads int
}

func (c *countingSource) LoadEvents(ctx context.Context, partition string) ([]types.Event, error) {
	c.loads++
	return c.SyntheticSource.LoadEvents(ctx, partition)
}

//go:build integration

package database_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ducminhle1904/dna-evolution/internal/database"
	"github.com/ducminhle1904/dna-evolution/pkg/data"
	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
	"github.com/ducminhle1904/dna-evolution/pkg/types"
)

// setupTestDB starts a PostgreSQL container and applies the sql/postgres migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("evolution"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := database.DefaultConfig()
	cfg.DSN = dsn
	db, err := database.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runMigrations(t, db)
	return db
}

func runMigrations(t *testing.T, db *sqlx.DB) {
	t.Helper()
	dir := filepath.Join(findProjectRoot(t), "sql", "postgres")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		script, err := os.ReadFile(filepath.Join(dir, f))
		require.NoError(t, err)
		_, err = db.Exec(string(script))
		require.NoError(t, err, "migration %s", f)
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

func insertEvents(t *testing.T, db *sqlx.DB, events []types.Event) {
	t.Helper()
	const q = `
		INSERT INTO resolved_events (id, partition_key, event_time, pick_side, outcome,
			model_prob, implied_prob, odds, momentum_gap, sharp_flag, sharp_magnitude,
			rest_advantage, h2h_weight, cluster_win_rate, cluster_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	for _, ev := range events {
		_, err := db.Exec(q, ev.ID, ev.Partition, ev.Timestamp, ev.PickSide.String(), ev.Outcome.String(),
			ev.ModelProb, ev.ImpliedProb, ev.Odds, ev.MomentumGap, ev.SharpFlag, ev.SharpMagnitude,
			ev.RestAdvantage, ev.H2HWeight, ev.ClusterWinRate, ev.ClusterConfidence)
		require.NoError(t, err)
	}
}

func TestPostgresEventSource(t *testing.T) {
	db := setupTestDB(t)
	events := data.GenerateSyntheticEvents(60, []string{"ENG", "ITA"}, 3)
	insertEvents(t, db, events)

	source := data.NewPostgresSource(db, 10*time.Second)
	ctx := context.Background()

	infos, err := source.Partitions(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "ENG", infos[0].Key)
	assert.Equal(t, 30, infos[0].TotalEvents)
	assert.Equal(t, 30, infos[0].AdmissibleEvents)

	eng, err := source.LoadEvents(ctx, "ENG")
	require.NoError(t, err)
	require.Len(t, eng, 30)
	assert.Equal(t, data.SortEvents(data.FilterByPartition(events, "ENG"))[0].ID, eng[0].ID)

	all, err := source.LoadEvents(ctx, types.GlobalPartition)
	require.NoError(t, err)
	assert.Len(t, all, 60)
	assert.Equal(t, "closed", source.BreakerState())
}

func TestPostgresStrategyStore(t *testing.T) {
	db := setupTestDB(t)
	store := strategy.NewPostgresStore(db, 10*time.Second)
	ctx := context.Background()
	schema := types.DefaultGeneSchema()

	first := strategy.NewDocument("ENG", schema)
	first.Active = true
	first.DNA = schema.ToMap(schema.Midpoints())
	require.NoError(t, store.Save(ctx, first))

	second := strategy.NewDocument("ENG", schema)
	second.Active = true
	second.DNA = schema.ToMap(schema.Midpoints())
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	require.NoError(t, store.Save(ctx, second))

	latest, err := store.Latest(ctx, "ENG")
	require.NoError(t, err)
	assert.Equal(t, second.RunID, latest.RunID)

	var active int
	require.NoError(t, db.Get(&active, `SELECT COUNT(*) FROM strategy_documents WHERE partition_key = 'ENG' AND active`))
	assert.Equal(t, 1, active)

	partitions, err := store.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ENG"}, partitions)

	_, err = store.Latest(ctx, "ITA")
	assert.True(t, strategy.IsNotFound(err))
}

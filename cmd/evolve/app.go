package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ducminhle1904/dna-evolution/internal/database"
	"github.com/ducminhle1904/dna-evolution/internal/monitoring"
	"github.com/ducminhle1904/dna-evolution/pkg/config"
	"github.com/ducminhle1904/dna-evolution/pkg/data"
	"github.com/ducminhle1904/dna-evolution/pkg/strategy"
)

// components are the long-lived resources of one process
type components struct {
	db     *sqlx.DB
	source *data.CachedSource
	store  strategy.Store
	redis  *strategy.RedisCache
}

// buildComponents opens the configured backends. Postgres serves both the ledger and
// the strategy store; without it documents go to the strategy directory.
func buildComponents(ctx context.Context, cfg *config.EngineConfig) (*components, error) {
	c := &components{}

	if cfg.Data.PostgresDSN != "" {
		db, err := database.Open(ctx, cfg.DatabaseConfig())
		if err != nil {
			return nil, err
		}
		c.db = db
	}

	source, err := data.NewEventSource(data.SourceConfig{
		CSVPath:         cfg.Data.EventsCSV,
		DB:              c.db,
		QueryTimeout:    cfg.Data.QueryTimeout.D(),
		SyntheticEvents: cfg.Data.SyntheticEvents,
		SyntheticSeed:   cfg.Data.SyntheticSeed,
		Partitions:      cfg.Data.Partitions,
	})
	if err != nil {
		c.Close()
		return nil, err
	}
	c.source = source
	log.Printf("📥 Event source: %s", source.GetName())

	var store strategy.Store = strategy.NewFileStore(cfg.StrategyDir)
	if c.db != nil {
		store = strategy.NewPostgresStore(c.db, cfg.Data.QueryTimeout.D())
	}

	if cfg.Redis.Addr != "" {
		rc, err := strategy.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL.D())
		if err != nil {
			log.Printf("⚠️ Redis unavailable, caching strategies in memory: %v", err)
			store = strategy.NewCachedStore(store, strategy.NewMemoryCache(cfg.Redis.TTL.D()))
		} else {
			c.redis = rc
			store = strategy.NewCachedStore(store, rc)
		}
	}
	c.store = store
	return c, nil
}

// Close releases every open backend
func (c *components) Close() {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Printf("⚠️ closing redis: %v", err)
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			log.Printf("⚠️ closing database: %v", err)
		}
	}
}

// newStatusServer exposes Prometheus metrics and loop health
func newStatusServer(addr string, health http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	mux.Handle("/health", health)
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// serve runs srv until ctx is done
func serve(ctx context.Context, srv *http.Server) {
	go func() {
		log.Printf("📡 Status server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ status server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️ status server shutdown: %v", err)
		}
	}()
}

package data

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// SourceConfig selects the ledger backend. The first configured backend wins in the
// order Postgres, CSV, synthetic.
type SourceConfig struct {
	CSVPath         string
	DB              *sqlx.DB
	QueryTimeout    time.Duration
	SyntheticEvents int
	SyntheticSeed   uint64
	Partitions      []string
}

// NewEventSource builds the configured source wrapped in a per-partition cache
func NewEventSource(cfg SourceConfig) (*CachedSource, error) {
	switch {
	case cfg.DB != nil:
		timeout := cfg.QueryTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		return NewCachedSource(NewPostgresSource(cfg.DB, timeout)), nil
	case cfg.CSVPath != "":
		return NewCachedSource(NewCSVSource(cfg.CSVPath)), nil
	case cfg.SyntheticEvents > 0:
		return NewCachedSource(NewSyntheticSource(cfg.SyntheticEvents, cfg.Partitions, cfg.SyntheticSeed)), nil
	default:
		return nil, fmt.Errorf("no event source configured: set a CSV ledger, a Postgres DSN or a synthetic event count")
	}
}

// ParseTrailingPeriod parses period strings like "90d", "365d" or raw durations like "168h"
func ParseTrailingPeriod(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if strings.HasSuffix(s, "days") {
		s = strings.TrimSuffix(s, "days") + "d"
	}
	if strings.HasSuffix(s, "d") {
		nStr := strings.TrimSuffix(s, "d")
		if nStr == "" {
			return 0, false
		}
		n, err := strconv.Atoi(nStr)
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}

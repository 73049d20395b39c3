package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.DSN)
	assert.Equal(t, 5, cfg.MaxOpenConns)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
}

func TestOpen_RequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DSN is required")
}

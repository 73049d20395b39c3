package strategy

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	engineerrors "github.com/ducminhle1904/dna-evolution/internal/errors"
)

// PostgresStore keeps documents in the strategy_documents table as JSONB. Saving an active
// document deactivates the partition's previous one in the same transaction.
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresStore creates a store on an open connection pool
func NewPostgresStore(db *sqlx.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

const (
	deactivateQuery = `UPDATE strategy_documents SET active = FALSE WHERE partition_key = $1 AND active`

	insertQuery = `INSERT INTO strategy_documents (run_id, partition_key, schema_version, active, method, document, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	latestQuery = `SELECT document FROM strategy_documents WHERE partition_key = $1 ORDER BY created_at DESC LIMIT 1`

	partitionsQuery = `SELECT DISTINCT partition_key FROM strategy_documents ORDER BY partition_key`
)

// Save inserts the document
func (s *PostgresStore) Save(ctx context.Context, doc *Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return engineerrors.NewStorageError("strategy", "save", fmt.Errorf("failed to marshal document: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return engineerrors.NewStorageError("strategy", "save", err)
	}
	defer tx.Rollback()

	if doc.Active {
		if _, err := tx.ExecContext(ctx, deactivateQuery, doc.Partition); err != nil {
			return engineerrors.NewStorageError("strategy", "save", fmt.Errorf("deactivate previous: %w", err))
		}
	}
	if _, err := tx.ExecContext(ctx, insertQuery,
		doc.RunID, doc.Partition, doc.SchemaVersion, doc.Active, doc.Method, body, doc.CreatedAt); err != nil {
		return engineerrors.NewStorageError("strategy", "save", fmt.Errorf("insert document: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return engineerrors.NewStorageError("strategy", "save", err)
	}
	return nil
}

// Latest returns the newest document of a partition
func (s *PostgresStore) Latest(ctx context.Context, partition string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var body []byte
	if err := s.db.GetContext(ctx, &body, latestQuery, partition); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, engineerrors.NewStorageError("strategy", "latest", err)
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, engineerrors.NewStorageError("strategy", "latest", fmt.Errorf("failed to parse document: %w", err))
	}
	return &doc, nil
}

// Partitions lists every partition with at least one document
func (s *PostgresStore) Partitions(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var out []string
	if err := s.db.SelectContext(ctx, &out, partitionsQuery); err != nil {
		return nil, engineerrors.NewStorageError("strategy", "partitions", err)
	}
	return out, nil
}

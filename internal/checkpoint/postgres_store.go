package checkpoint

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

//go:embed schema.sql
var schema string

// DB wraps a sql.DB connection pool. The checkpoint schema is embedded;
// InitSchema applies it to a fresh database, Connect does not.
type DB struct {
	*sql.DB
}

// Config holds database connection configuration.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns sensible pool-sizing defaults for a batch job
// that opens one connection pool per run.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// Connect opens the pool and verifies connectivity. It does not run
// InitSchema; callers decide when migrations happen.
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{DB: db}, nil
}

// InitSchema creates the checkpoint table if absent. Idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init checkpoint schema: %w", err)
	}
	return nil
}

// PostgresStore implements driven.Checkpointer for pipelines that run
// across ephemeral containers with no shared disk between them, an
// alternative backend to FSStore that the CLI selects when
// ENTROPYGUARD_CHECKPOINT_DATABASE_URL is set.
type PostgresStore struct {
	db *DB
}

var _ driven.Checkpointer = (*PostgresStore)(nil)

// NewPostgresStore wraps an already-connected pool.
func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save upserts the snapshot for key, overwriting any prior checkpoint at
// the same (input, config, stage) coordinate.
func (s *PostgresStore) Save(ctx context.Context, key driven.CheckpointKey, records []domain.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("checkpoint: marshal records: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entropyguard_checkpoints (input_fingerprint, config_fingerprint, stage, records, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (input_fingerprint, config_fingerprint, stage)
		DO UPDATE SET records = EXCLUDED.records, created_at = now()
	`, key.InputFingerprint, string(key.ConfigFingerprint), string(key.Stage), data)
	if err != nil {
		return fmt.Errorf("checkpoint: upsert: %w", err)
	}
	return nil
}

// Load returns domain.ErrNotFound if no row matches key exactly.
func (s *PostgresStore) Load(ctx context.Context, key driven.CheckpointKey) ([]domain.Record, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT records FROM entropyguard_checkpoints
		WHERE input_fingerprint = $1 AND config_fingerprint = $2 AND stage = $3
	`, key.InputFingerprint, string(key.ConfigFingerprint), string(key.Stage)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checkpoint %s/%s/%s: %w", key.InputFingerprint, key.ConfigFingerprint, key.Stage, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: query: %w", err)
	}
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("checkpoint: unmarshal records: %w", err)
	}
	return records, nil
}

// Ping reports whether the backing pool is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.DB.Close()
}

// Package postgres implements store.AgentStore on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agents-forge/forge/config"
	"github.com/agents-forge/forge/store"
)

// DBPool defines the interface for the database connection pool.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists agent records in a PostgreSQL table with JSONB columns.
type Store struct {
	pool      DBPool
	tableName string
}

var _ store.AgentStore = (*Store)(nil)

// Options configuration for the Postgres connection.
type Options struct {
	ConnString string
	TableName  string // Default "agents"
}

// New creates a Postgres-backed agent store and ensures the schema exists.
func New(ctx context.Context, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	s := NewWithPool(pool, opts.TableName)
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool creates a store with an existing pool. Useful for testing
// with mocks.
func NewWithPool(pool DBPool, tableName string) *Store {
	if tableName == "" {
		tableName = "agents"
	}
	return &Store{pool: pool, tableName: tableName}
}

// InitSchema creates the necessary table if it doesn't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			config JSONB NOT NULL,
			state JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, record *store.AgentRecord) error {
	configJSON, err := json.Marshal(record.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	stateJSON, err := json.Marshal(record.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, config, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			config = EXCLUDED.config,
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		record.ID,
		configJSON,
		stateJSON,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (*store.AgentRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, config, state, created_at, updated_at
		FROM %s
		WHERE id = $1
	`, s.tableName)

	var record store.AgentRecord
	var configJSON, stateJSON []byte

	err := s.pool.QueryRow(ctx, query, id).Scan(
		&record.ID,
		&configJSON,
		&stateJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}

	if err := decodeRecord(&record, configJSON, stateJSON); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) List(ctx context.Context) ([]*store.AgentRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, config, state, created_at, updated_at
		FROM %s
		ORDER BY created_at ASC
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var records []*store.AgentRecord
	for rows.Next() {
		var record store.AgentRecord
		var configJSON, stateJSON []byte

		err := rows.Scan(
			&record.ID,
			&configJSON,
			&stateJSON,
			&record.CreatedAt,
			&record.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent row: %w", err)
		}
		if err := decodeRecord(&record, configJSON, stateJSON); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agent rows: %w", err)
	}
	return records, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func decodeRecord(record *store.AgentRecord, configJSON, stateJSON []byte) error {
	record.Config = &config.AgentConfig{}
	if err := json.Unmarshal(configJSON, record.Config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(stateJSON) > 0 && string(stateJSON) != "null" {
		if err := json.Unmarshal(stateJSON, &record.State); err != nil {
			return fmt.Errorf("failed to unmarshal state: %w", err)
		}
	}
	return nil
}

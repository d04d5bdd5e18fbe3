// Package sqlite implements store.AgentStore on a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agents-forge/forge/config"
	"github.com/agents-forge/forge/store"
)

// Store persists agent records in a single SQLite table.
type Store struct {
	db        *sql.DB
	tableName string
}

var _ store.AgentStore = (*Store)(nil)

// Options configuration for the SQLite connection.
type Options struct {
	Path      string
	TableName string // Default "agents"
}

// New opens the database and ensures the schema exists.
func New(opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "agents"
	}

	s := &Store{db: db, tableName: tableName}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			config TEXT NOT NULL,
			state TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
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
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			config = excluded.config,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		string(configJSON),
		string(stateJSON),
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
		WHERE id = ?
	`, s.tableName)

	record, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}
	return record, nil
}

func (s *Store) List(ctx context.Context) ([]*store.AgentRecord, error) {
	query := fmt.Sprintf(`
		SELECT id, config, state, created_at, updated_at
		FROM %s
		ORDER BY created_at ASC
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var records []*store.AgentRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agent rows: %w", err)
	}
	return records, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*store.AgentRecord, error) {
	var record store.AgentRecord
	var configJSON, stateJSON string

	if err := row.Scan(&record.ID, &configJSON, &stateJSON, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}

	record.Config = &config.AgentConfig{}
	if err := json.Unmarshal([]byte(configJSON), record.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(stateJSON) > 0 && stateJSON != "null" {
		if err := json.Unmarshal([]byte(stateJSON), &record.State); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state: %w", err)
		}
	}
	return &record, nil
}

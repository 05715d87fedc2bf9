// Package postgres provides a PostgreSQL implementation of runhistory.Store.
// It uses pgx/v5 for connection pooling and JSONB for the InputsRequired field.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuroforge-dev/kernel/pkg/runhistory"
	"github.com/neuroforge-dev/kernel/pkg/task"
)

// Store is a PostgreSQL-backed runhistory.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements runhistory.Store at compile time.
var _ runhistory.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Save persists a completed run record.
func (s *Store) Save(ctx context.Context, rec *runhistory.RunRecord) error {
	var inputsRequiredJSON []byte
	var err error
	if rec.Result != nil && len(rec.Result.InputsRequired) > 0 {
		inputsRequiredJSON, err = json.Marshal(rec.Result.InputsRequired)
		if err != nil {
			return fmt.Errorf("marshaling inputs_required: %w", err)
		}
	}

	var language string
	var attempts, exitCode int
	var stdout, stderr string
	if rec.Result != nil {
		language = string(rec.Result.Language)
		attempts = rec.Result.Attempts
		exitCode = rec.Result.ExitCode
		stdout = rec.Result.Stdout
		stderr = rec.Result.Stderr
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO run_records (
			id, task_text, language, attempts,
			stdout, stderr, exit_code, inputs_required, error_text, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		rec.ID, rec.TaskText, language, attempts,
		stdout, stderr, exitCode, nullJSON(inputsRequiredJSON), rec.Err, rec.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return runhistory.ErrConflict
		}
		return fmt.Errorf("inserting run record: %w", err)
	}

	return nil
}

// Get retrieves a run record by ID.
func (s *Store) Get(ctx context.Context, id string) (*runhistory.RunRecord, error) {
	var rec runhistory.RunRecord
	var language, stdout, stderr, errorText string
	var attempts, exitCode int
	var inputsRequiredJSON *[]byte

	err := s.pool.QueryRow(ctx, `
		SELECT id, task_text, language, attempts,
		       stdout, stderr, exit_code, inputs_required, error_text, created_at
		FROM run_records
		WHERE id = $1
	`, id).Scan(
		&rec.ID, &rec.TaskText, &language, &attempts,
		&stdout, &stderr, &exitCode, &inputsRequiredJSON, &errorText, &rec.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, runhistory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run record: %w", err)
	}

	rec.Err = errorText

	var inputsRequired []string
	if inputsRequiredJSON != nil {
		if err := json.Unmarshal(*inputsRequiredJSON, &inputsRequired); err != nil {
			return nil, fmt.Errorf("unmarshaling inputs_required: %w", err)
		}
	}

	rec.Result = &task.DonePayload{
		Language:       task.Language(language),
		Attempts:       attempts,
		Stdout:         stdout,
		Stderr:         stderr,
		ExitCode:       exitCode,
		InputsRequired: inputsRequired,
	}

	return &rec, nil
}

// List returns up to limit run records, newest first. limit <= 0 means
// no limit (capped at 1000 to bound a single query's result set).
func (s *Store) List(ctx context.Context, limit int) ([]*runhistory.RunRecord, error) {
	if limit <= 0 {
		limit = 1000
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, task_text, language, attempts,
		       stdout, stderr, exit_code, inputs_required, error_text, created_at
		FROM run_records
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run records: %w", err)
	}
	defer rows.Close()

	var recs []*runhistory.RunRecord
	for rows.Next() {
		var rec runhistory.RunRecord
		var language, stdout, stderr, errorText string
		var attempts, exitCode int
		var inputsRequiredJSON *[]byte

		if err := rows.Scan(
			&rec.ID, &rec.TaskText, &language, &attempts,
			&stdout, &stderr, &exitCode, &inputsRequiredJSON, &errorText, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning run record: %w", err)
		}

		var inputsRequired []string
		if inputsRequiredJSON != nil {
			if err := json.Unmarshal(*inputsRequiredJSON, &inputsRequired); err != nil {
				return nil, fmt.Errorf("unmarshaling inputs_required: %w", err)
			}
		}

		rec.Err = errorText
		rec.Result = &task.DonePayload{
			Language:       task.Language(language),
			Attempts:       attempts,
			Stdout:         stdout,
			Stderr:         stderr,
			ExitCode:       exitCode,
			InputsRequired: inputsRequired,
		}

		recs = append(recs, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run records: %w", err)
	}

	return recs, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && contains(err.Error(), "23505")
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchString(s, substr)
}

func searchString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

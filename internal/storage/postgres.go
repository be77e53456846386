package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const maxOutputBytes = 65535

// DB is the PostgreSQL-backed Store.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB creates a new database connection pool and verifies connectivity.
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Info().Msg("connected to PostgreSQL")
	return &DB{pool: pool}, nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// Healthy checks database connectivity.
func (db *DB) Healthy(ctx context.Context) bool {
	return db.pool.Ping(ctx) == nil
}

func (db *DB) Insert(ctx context.Context, rec *ExecutionRecord) error {
	query := `
		INSERT INTO executions (id, code, language, submitter_id, status, output,
			error_output, execution_time_ms, memory_usage_bytes,
			sandbox_language, sandbox_version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := db.pool.Exec(ctx, query,
		rec.ID, rec.Code, rec.Language, rec.SubmitterID, rec.Status,
		truncateForDB(rec.Output, maxOutputBytes),
		truncateForDB(rec.ErrorOutput, maxOutputBytes),
		rec.ExecutionTimeMs, rec.MemoryUsageBytes,
		rec.SandboxLanguage, rec.SandboxVersion, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

func (db *DB) Get(ctx context.Context, id string) (*ExecutionRecord, error) {
	query := `
		SELECT id, code, language, submitter_id, status, output, error_output,
			execution_time_ms, memory_usage_bytes, sandbox_language,
			sandbox_version, created_at
		FROM executions WHERE id = $1`

	var rec ExecutionRecord
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.Code, &rec.Language, &rec.SubmitterID, &rec.Status,
		&rec.Output, &rec.ErrorOutput,
		&rec.ExecutionTimeMs, &rec.MemoryUsageBytes,
		&rec.SandboxLanguage, &rec.SandboxVersion, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying execution %s: %w", id, err)
	}
	return &rec, nil
}

func (db *DB) Update(ctx context.Context, rec *ExecutionRecord) error {
	query := `
		UPDATE executions
		SET status = $2, output = $3, error_output = $4, execution_time_ms = $5,
			memory_usage_bytes = $6, sandbox_language = $7, sandbox_version = $8
		WHERE id = $1`

	tag, err := db.pool.Exec(ctx, query,
		rec.ID, rec.Status,
		truncateForDB(rec.Output, maxOutputBytes),
		truncateForDB(rec.ErrorOutput, maxOutputBytes),
		rec.ExecutionTimeMs, rec.MemoryUsageBytes,
		rec.SandboxLanguage, rec.SandboxVersion,
	)
	if err != nil {
		return fmt.Errorf("updating execution %s: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) ListBySubmitter(ctx context.Context, submitterID string) ([]ExecutionRecord, error) {
	query := `
		SELECT id, code, language, submitter_id, status, output, error_output,
			execution_time_ms, memory_usage_bytes, sandbox_language,
			sandbox_version, created_at
		FROM executions
		WHERE submitter_id = $1 AND $1 <> ''
		ORDER BY created_at DESC`

	rows, err := db.pool.Query(ctx, query, submitterID)
	if err != nil {
		return nil, fmt.Errorf("querying executions for %s: %w", submitterID, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (db *DB) ListStalePending(ctx context.Context, before time.Time) ([]ExecutionRecord, error) {
	query := `
		SELECT id, code, language, submitter_id, status, output, error_output,
			execution_time_ms, memory_usage_bytes, sandbox_language,
			sandbox_version, created_at
		FROM executions
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC`

	rows, err := db.pool.Query(ctx, query, StatusPending, before)
	if err != nil {
		return nil, fmt.Errorf("querying stale pending executions: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]ExecutionRecord, error) {
	results := []ExecutionRecord{}
	for rows.Next() {
		var rec ExecutionRecord
		if err := rows.Scan(
			&rec.ID, &rec.Code, &rec.Language, &rec.SubmitterID, &rec.Status,
			&rec.Output, &rec.ErrorOutput,
			&rec.ExecutionTimeMs, &rec.MemoryUsageBytes,
			&rec.SandboxLanguage, &rec.SandboxVersion, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning execution row: %w", err)
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func truncateForDB(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

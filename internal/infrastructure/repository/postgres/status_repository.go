package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/docchatlabs/docchat/internal/core/domain"
)

// StatusRepository persists one row per ingestion request id; repeated writes
// overwrite the previous state.
type StatusRepository struct {
	db *sql.DB
}

func NewStatusRepository(db *sql.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *StatusRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingestion_statuses (
	request_id BIGINT PRIMARY KEY,
	file_name TEXT NOT NULL,
	original_file_name TEXT NOT NULL,
	state TEXT NOT NULL,
	total_pages INTEGER NOT NULL DEFAULT 0,
	error_detail TEXT,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingestion_statuses_state ON ingestion_statuses(state);
CREATE INDEX IF NOT EXISTS idx_ingestion_statuses_updated_at ON ingestion_statuses(updated_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *StatusRepository) Upsert(ctx context.Context, status domain.IngestionStatus) error {
	updatedAt := status.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingestion_statuses (
	request_id, file_name, original_file_name, state, total_pages, error_detail, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (request_id) DO UPDATE SET
	file_name = EXCLUDED.file_name,
	original_file_name = EXCLUDED.original_file_name,
	state = EXCLUDED.state,
	total_pages = EXCLUDED.total_pages,
	error_detail = EXCLUDED.error_detail,
	updated_at = EXCLUDED.updated_at
`,
		status.RequestID, status.FileName, status.OriginalFileName, string(status.State),
		status.TotalPages, status.ErrorDetail, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert ingestion status: %w", err)
	}
	return nil
}

func (r *StatusRepository) GetByRequestID(ctx context.Context, requestID int64) (domain.IngestionStatus, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT request_id, file_name, original_file_name, state, total_pages, error_detail, updated_at
FROM ingestion_statuses
WHERE request_id = $1
`, requestID)

	var status domain.IngestionStatus
	var state string
	var errorDetail sql.NullString

	err := row.Scan(
		&status.RequestID, &status.FileName, &status.OriginalFileName, &state,
		&status.TotalPages, &errorDetail, &status.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.IngestionStatus{}, domain.WrapError(domain.ErrNotFound, "postgres.GetByRequestID", fmt.Errorf("request %d", requestID))
		}
		return domain.IngestionStatus{}, fmt.Errorf("scan ingestion status: %w", err)
	}

	status.State = domain.IngestionState(state)
	status.ErrorDetail = errorDetail.String
	return status, nil
}

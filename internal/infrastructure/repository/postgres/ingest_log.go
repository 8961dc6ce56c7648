package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

// IngestLog is the operational audit trail of uploads and their state
// transitions. Queries never read it; losing it loses history, not
// answers.
type IngestLog struct {
	db *sql.DB
}

func NewIngestLog(db *sql.DB) *IngestLog {
	return &IngestLog{db: db}
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

func (r *IngestLog) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS ingest_runs (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	file_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	chunks_indexed INTEGER NOT NULL DEFAULT 0,
	error_message TEXT,
	uploaded_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_status ON ingest_runs(status);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_uploaded_at ON ingest_runs(uploaded_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *IngestLog) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO ingest_runs (id, filename, file_type, size_bytes, storage_path, status, chunks_indexed, error_message, uploaded_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, NULL, $7, $7)
`, doc.ID, doc.Filename, string(doc.FileType), doc.Size, doc.StoragePath, string(doc.Status), doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("create ingest run: %w", err)
	}
	return nil
}

func (r *IngestLog) UpdateStatus(ctx context.Context, id string, status domain.IngestStatus, chunksIndexed int, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE ingest_runs
SET status = $2, chunks_indexed = $3, error_message = NULLIF($4, ''), updated_at = $5
WHERE id = $1
`, id, string(status), chunksIndexed, errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update ingest run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update ingest run status rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update ingest run status: run %s not found", id)
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockID = int64(2026101901)

// Source reads the reference table from a reference_links table.
type Source struct {
	db *sql.DB
}

func NewSource(db *sql.DB) *Source {
	return &Source{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Source) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS reference_links (
	filename TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// FetchRows returns a header row followed by every filename/url pair.
func (s *Source) FetchRows(ctx context.Context) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT filename, url
FROM reference_links
ORDER BY filename`)
	if err != nil {
		return nil, fmt.Errorf("query reference links: %w", err)
	}
	defer rows.Close()

	out := [][]string{{"filename", "url"}}
	for rows.Next() {
		var filename, url string
		if err := rows.Scan(&filename, &url); err != nil {
			return nil, fmt.Errorf("scan reference link: %w", err)
		}
		out = append(out, []string{filename, url})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference links: %w", err)
	}
	return out, nil
}

// Upsert stores rows as filename/url pairs, skipping the header row and
// incomplete rows. Existing filenames get the new url. It returns the number
// of rows written.
func (s *Source) Upsert(ctx context.Context, rows [][]string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	written := 0
	for idx, row := range rows {
		if idx == 0 || len(row) < 2 {
			continue
		}
		filename, url := strings.TrimSpace(row[0]), strings.TrimSpace(row[1])
		if filename == "" || url == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO reference_links (filename, url, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (filename) DO UPDATE SET url = EXCLUDED.url, updated_at = now()`, filename, url); err != nil {
			return 0, fmt.Errorf("upsert reference link %q: %w", filename, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert tx: %w", err)
	}
	return written, nil
}

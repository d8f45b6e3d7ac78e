// Package postgres implements the durable storage backend on a PostgreSQL
// table of file records keyed by unique path, with a parent_path index for
// child lookups.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/muzaffar401/IDE/internal/logging"
	"github.com/muzaffar401/IDE/internal/metrics"
	"github.com/muzaffar401/IDE/internal/vfs"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	id           TEXT        NOT NULL,
	name         TEXT        NOT NULL,
	path         TEXT        PRIMARY KEY,
	content      TEXT,
	is_directory BOOLEAN     NOT NULL DEFAULT FALSE,
	parent_path  TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_files_parent_path ON files (parent_path);
`

// Backend is a PostgreSQL storage backend.
type Backend struct {
	db *sql.DB
}

// New opens the database, verifies connectivity and ensures the schema.
func New(databaseURL string) (*Backend, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", classify(err))
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", classify(err))
	}

	return &Backend{db: db}, nil
}

func (b *Backend) Name() string { return "postgres" }

// Close closes the database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Ping reports database reachability.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// UpdateConnectionMetrics updates the database connection gauge.
func (b *Backend) UpdateConnectionMetrics() {
	metrics.SetDBConnectionsOpen(b.db.Stats().OpenConnections)
}

const recordColumns = `id, name, path, content, is_directory, parent_path, created_at, updated_at`

func scanRecord(s interface{ Scan(...any) error }) (*vfs.FileRecord, error) {
	var r vfs.FileRecord
	var content, parentPath sql.NullString
	if err := s.Scan(&r.ID, &r.Name, &r.Path, &content, &r.IsDirectory,
		&parentPath, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if content.Valid {
		r.Content = &content.String
	}
	if parentPath.Valid {
		r.ParentPath = &parentPath.String
	}
	return &r, nil
}

func (b *Backend) List(ctx context.Context) ([]*vfs.FileRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list", time.Since(start)) }()

	rows, err := b.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM files ORDER BY path`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var recs []*vfs.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return recs, nil
}

func (b *Backend) Get(ctx context.Context, path string) (*vfs.FileRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get", time.Since(start)) }()

	rec, err := scanRecord(b.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM files WHERE path = $1`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", path, vfs.ErrNotFound)
	}
	if err != nil {
		return nil, classify(err)
	}
	return rec, nil
}

func (b *Backend) Create(ctx context.Context, rec *vfs.FileRecord) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create", time.Since(start)) }()

	var content, parentPath sql.NullString
	if rec.Content != nil {
		content = sql.NullString{String: *rec.Content, Valid: true}
	}
	if rec.ParentPath != nil {
		parentPath = sql.NullString{String: *rec.ParentPath, Valid: true}
	}

	_, err := b.db.ExecContext(ctx,
		`INSERT INTO files (id, name, path, content, is_directory, parent_path, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Name, rec.Path, content, rec.IsDirectory, parentPath,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return classify(err)
	}

	logging.Debug("inserted record",
		zap.String("path", rec.Path),
		zap.Bool("is_directory", rec.IsDirectory))
	return nil
}

func (b *Backend) Update(ctx context.Context, path string, upd vfs.Update) (*vfs.FileRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update", time.Since(start)) }()

	if upd.Content != nil {
		var isDir bool
		err := b.db.QueryRowContext(ctx,
			`SELECT is_directory FROM files WHERE path = $1`, path).Scan(&isDir)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", path, vfs.ErrNotFound)
		}
		if err != nil {
			return nil, classify(err)
		}
		if isDir {
			return nil, fmt.Errorf("%w: directory %s has no content", vfs.ErrInvalidInput, path)
		}
	}

	rec, err := scanRecord(b.db.QueryRowContext(ctx,
		`UPDATE files SET
			name = COALESCE($2, name),
			content = COALESCE($3, content),
			updated_at = NOW()
		 WHERE path = $1
		 RETURNING `+recordColumns,
		path, nullable(upd.Name), nullable(upd.Content)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", path, vfs.ErrNotFound)
	}
	if err != nil {
		return nil, classify(err)
	}
	return rec, nil
}

func (b *Backend) Delete(ctx context.Context, path string) (int, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete", time.Since(start)) }()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify(err)
	}
	defer tx.Rollback()

	var isDir bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_directory FROM files WHERE path = $1`, path).Scan(&isDir)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", path, vfs.ErrNotFound)
	}
	if err != nil {
		return 0, classify(err)
	}

	removed := int64(1)
	if isDir {
		// substr comparison instead of LIKE so paths containing % or _
		// cannot widen the match.
		res, err := tx.ExecContext(ctx,
			`DELETE FROM files
			 WHERE parent_path = $1 OR substr(path, 1, length($2)) = $2`,
			path, path+"/")
		if err != nil {
			return 0, classify(err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE path = $1`, path); err != nil {
		return 0, classify(err)
	}

	if err := tx.Commit(); err != nil {
		return 0, classify(err)
	}

	logging.Debug("deleted tree", zap.String("path", path), zap.Int64("records", removed))
	return int(removed), nil
}

func (b *Backend) Rename(ctx context.Context, oldPath, newPath string) (*vfs.FileRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("rename", time.Since(start)) }()

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	defer tx.Rollback()

	var isDir bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_directory FROM files WHERE path = $1`, oldPath).Scan(&isDir)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", oldPath, vfs.ErrNotFound)
	}
	if err != nil {
		return nil, classify(err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM files WHERE path = $1)`, newPath).Scan(&exists); err != nil {
		return nil, classify(err)
	}
	if exists {
		return nil, fmt.Errorf("%s: %w", newPath, vfs.ErrConflict)
	}

	if isDir {
		// Anchored prefix rewrite: replace exactly the first length(old)
		// characters, matched only on descendants.
		_, err := tx.ExecContext(ctx,
			`UPDATE files SET
				path = $2 || substr(path, length($1) + 1),
				parent_path = CASE
					WHEN parent_path = $1 THEN $2
					ELSE $2 || substr(parent_path, length($1) + 1)
				END,
				updated_at = NOW()
			 WHERE parent_path = $1 OR substr(path, 1, length($1) + 1) = $1 || '/'`,
			oldPath, newPath)
		if err != nil {
			return nil, classify(err)
		}
	}

	rec, err := scanRecord(tx.QueryRowContext(ctx,
		`UPDATE files SET
			path = $2,
			name = $3,
			parent_path = CASE WHEN $4 = '/' AND parent_path IS NULL THEN NULL ELSE $4 END,
			updated_at = NOW()
		 WHERE path = $1
		 RETURNING `+recordColumns,
		oldPath, newPath, basename(newPath), parentOf(newPath)))
	if err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}

	logging.Debug("renamed record",
		zap.String("old_path", oldPath),
		zap.String("new_path", newPath))
	return rec, nil
}

func (b *Backend) Search(ctx context.Context, query string) ([]*vfs.FileRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("search", time.Since(start)) }()

	// strpos instead of LIKE so % and _ in the query stay literal.
	rows, err := b.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM files
		 WHERE strpos(lower(name), lower($1)) > 0
			OR (NOT is_directory AND strpos(lower(coalesce(content, '')), lower($1)) > 0)
		 ORDER BY created_at, path`, query)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var recs []*vfs.FileRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return recs, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func basename(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func parentOf(path string) string {
	for i := len(path) - 1; i > 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "/"
}

// classify maps driver errors onto the store's taxonomy: unique violations
// become ErrConflict, connection-class failures become ErrStorageUnavailable
// (the only condition that triggers fallback).
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505": // unique_violation
			return fmt.Errorf("%w: %v", vfs.ErrConflict, err)
		case pqErr.Code.Class() == "08", // connection exceptions
			pqErr.Code.Class() == "53", // insufficient resources
			pqErr.Code.Class() == "57": // operator intervention (shutdown)
			return fmt.Errorf("%w: %v", vfs.ErrStorageUnavailable, err)
		default:
			return err
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", vfs.ErrStorageUnavailable, err)
	}
	return err
}

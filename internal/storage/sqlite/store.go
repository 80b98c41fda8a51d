// Package sqlite provides the SQLite-backed keyword asset table.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/zhouzirui/taleforge/internal/model/asset"
)

//go:embed schema.sql
var schema string

// AssetStore persists keyword to image mappings.
type AssetStore struct {
	sqlDB *sql.DB
}

// Open opens the database at path and creates the assets table if needed.
func Open(path string) (*AssetStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &AssetStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *AssetStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Lookup returns the entry stored for keyword. Rows with an unrecognised
// category are treated as missing.
func (s *AssetStore) Lookup(ctx context.Context, keyword string) (asset.Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return asset.Entry{}, false, err
	}
	if s == nil || s.sqlDB == nil {
		return asset.Entry{}, false, fmt.Errorf("storage is not configured")
	}

	var (
		category string
		entry    asset.Entry
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT keyword, category, filename FROM assets WHERE keyword = ? LIMIT 1`,
		strings.ToLower(keyword),
	).Scan(&entry.Keyword, &category, &entry.Filename)
	if errors.Is(err, sql.ErrNoRows) {
		return asset.Entry{}, false, nil
	}
	if err != nil {
		return asset.Entry{}, false, fmt.Errorf("lookup keyword %q: %w", keyword, err)
	}

	c, ok := asset.ParseCategory(category)
	if !ok {
		return asset.Entry{}, false, nil
	}
	entry.Category = c
	return entry, true, nil
}

// Insert writes entries in one transaction. Keywords already present keep
// their existing row. It reports how many rows were added.
func (s *AssetStore) Insert(ctx context.Context, entries []asset.Entry) (int, error) {
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO assets (keyword, category, filename) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	added := 0
	for _, e := range entries {
		keyword := strings.ToLower(strings.TrimSpace(e.Keyword))
		if keyword == "" || e.Filename == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, keyword, string(e.Category), e.Filename)
		if err != nil {
			return 0, fmt.Errorf("insert keyword %q: %w", keyword, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return added, nil
}

// Count reports the number of stored keywords.
func (s *AssetStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return n, nil
}

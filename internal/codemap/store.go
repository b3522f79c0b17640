package codemap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a requested entity doesn't exist.
var ErrNotFound = errors.New("not found")

// Store persists the symbol graph in SQLite. It lives beside the vector
// snapshot but shares nothing with it: symbol queries never touch chunk
// vectors and vice versa.
type Store struct {
	db        *sql.DB
	extractor *Extractor
}

// Open opens or creates the symbol database at dbPath and applies pending
// migrations.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single writer suits SQLite; WAL keeps readers unblocked.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db, extractor: NewExtractor()}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// IndexFile extracts relPath's symbols and replaces its previous records in
// one transaction.
func (s *Store) IndexFile(ctx context.Context, relPath, content string) (*FileMap, error) {
	fm := s.extractor.Extract(relPath, content)
	if err := s.replaceFile(ctx, fm); err != nil {
		return nil, err
	}
	return fm, nil
}

// RemoveFile drops a file and its symbols.
func (s *Store) RemoveFile(ctx context.Context, relPath string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE file_path = ?", relPath)
	return err
}

// PruneExcept drops every file not in keep, so the graph tracks deletions
// without per-file bookkeeping in the caller.
func (s *Store) PruneExcept(ctx context.Context, keep []string) error {
	keepSet := make(map[string]bool, len(keep))
	for _, p := range keep {
		keepSet[p] = true
	}

	rows, err := s.db.QueryContext(ctx, "SELECT file_path FROM files")
	if err != nil {
		return err
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return err
		}
		if !keepSet[p] {
			stale = append(stale, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, p := range stale {
		if err := s.RemoveFile(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) replaceFile(ctx context.Context, fm *FileMap) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE file_path = ?", fm.Path); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO files (file_path, updated_at) VALUES (?, CURRENT_TIMESTAMP)", fm.Path)
	if err != nil {
		return err
	}
	fileID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, sym := range fm.Symbols {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO symbols (file_id, name, kind, signature, line) VALUES (?, ?, ?, ?, ?)",
			fileID, sym.Name, string(sym.Kind), sym.Signature, sym.Line); err != nil {
			return err
		}
	}
	for _, imp := range fm.Imports {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO imports (file_id, import_path) VALUES (?, ?)", fileID, imp); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SearchSymbols finds symbols whose name contains the query,
// case-insensitively. An empty kind matches all kinds.
func (s *Store) SearchSymbols(ctx context.Context, query string, kind SymbolKind, limit int) ([]Symbol, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("symbol query cannot be empty")
	}
	if limit <= 0 {
		limit = 25
	}

	sqlQuery := `
		SELECT s.name, s.kind, s.signature, s.line, f.file_path
		FROM symbols s JOIN files f ON f.id = s.file_id
		WHERE s.name LIKE ? COLLATE NOCASE`
	args := []any{"%" + query + "%"}
	if kind != "" {
		sqlQuery += " AND s.kind = ?"
		args = append(args, string(kind))
	}
	sqlQuery += " ORDER BY s.name, f.file_path, s.line LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []Symbol
	for rows.Next() {
		var sym Symbol
		var kindStr string
		if err := rows.Scan(&sym.Name, &kindStr, &sym.Signature, &sym.Line, &sym.File); err != nil {
			return nil, err
		}
		sym.Kind = SymbolKind(kindStr)
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// FileOverview summarizes one file for the codebase map.
type FileOverview struct {
	Path    string
	Symbols []Symbol
	Imports []string
}

// Overview returns every indexed file with its symbols, ordered by path.
func (s *Store) Overview(ctx context.Context) ([]FileOverview, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, file_path FROM files ORDER BY file_path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type fileRow struct {
		id   int64
		path string
	}
	var files []fileRow
	for rows.Next() {
		var fr fileRow
		if err := rows.Scan(&fr.id, &fr.path); err != nil {
			return nil, err
		}
		files = append(files, fr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	overviews := make([]FileOverview, 0, len(files))
	for _, fr := range files {
		ov := FileOverview{Path: fr.path}

		symRows, err := s.db.QueryContext(ctx,
			"SELECT name, kind, signature, line FROM symbols WHERE file_id = ? ORDER BY line", fr.id)
		if err != nil {
			return nil, err
		}
		for symRows.Next() {
			var sym Symbol
			var kindStr string
			if err := symRows.Scan(&sym.Name, &kindStr, &sym.Signature, &sym.Line); err != nil {
				symRows.Close()
				return nil, err
			}
			sym.Kind = SymbolKind(kindStr)
			sym.File = fr.path
			ov.Symbols = append(ov.Symbols, sym)
		}
		symRows.Close()
		if err := symRows.Err(); err != nil {
			return nil, err
		}

		impRows, err := s.db.QueryContext(ctx,
			"SELECT import_path FROM imports WHERE file_id = ? ORDER BY id", fr.id)
		if err != nil {
			return nil, err
		}
		for impRows.Next() {
			var imp string
			if err := impRows.Scan(&imp); err != nil {
				impRows.Close()
				return nil, err
			}
			ov.Imports = append(ov.Imports, imp)
		}
		impRows.Close()
		if err := impRows.Err(); err != nil {
			return nil, err
		}

		overviews = append(overviews, ov)
	}
	return overviews, nil
}

// SymbolCount returns the total number of indexed symbols.
func (s *Store) SymbolCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols").Scan(&n)
	return n, err
}

// FileCount returns the number of files in the symbol graph.
func (s *Store) FileCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&n)
	return n, err
}

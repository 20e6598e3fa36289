// Package store provides database access for mailindex.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/wesm/mailindex/internal/fileutil"
)

//go:embed schema.sql schema_sqlite.sql
var schemaFS embed.FS

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store provides database operations for mailindex.
type Store struct {
	db            *sql.DB
	dbPath        string
	fts5Available bool // Whether FTS5 is available for full-text search
}

const defaultSQLiteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

// isSQLiteError checks if err is a sqlite3.Error with a message containing substr.
// Handles both value (sqlite3.Error) and pointer (*sqlite3.Error) forms.
func isSQLiteError(err error, substr string) bool {
	sqliteErr, ok := asSQLiteError(err)
	return ok && strings.Contains(sqliteErr.Error(), substr)
}

// isConstraint reports whether err is a constraint violation with the given
// extended code.
func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	sqliteErr, ok := asSQLiteError(err)
	return ok && sqliteErr.ExtendedCode == code
}

func asSQLiteError(err error) (sqlite3.Error, bool) {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr, true
	}
	var sqliteErrPtr *sqlite3.Error
	if errors.As(err, &sqliteErrPtr) && sqliteErrPtr != nil {
		return *sqliteErrPtr, true
	}
	return sqlite3.Error{}, false
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	if strings.HasPrefix(dbPath, "postgresql://") || strings.HasPrefix(dbPath, "postgres://") {
		return nil, fmt.Errorf("only SQLite databases are supported")
	}

	if err := fileutil.MkdirPrivate(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+defaultSQLiteParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := fileutil.ChmodPrivate(dbPath); err != nil && !os.IsNotExist(err) && !os.IsPermission(err) {
		db.Close()
		return nil, fmt.Errorf("restrict database permissions: %w", err)
	}

	return &Store{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// FTS5Available reports whether the full-text index was created.
func (s *Store) FTS5Available() bool {
	return s.fts5Available
}

// InitSchema creates all tables if they don't exist. The FTS5 index is
// optional: drivers built without FTS5 fall back to LIKE queries.
func (s *Store) InitSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("execute schema.sql: %w", err)
	}

	sqliteSchema, err := schemaFS.ReadFile("schema_sqlite.sql")
	if err != nil {
		return fmt.Errorf("read schema_sqlite.sql: %w", err)
	}
	if _, err := s.db.Exec(string(sqliteSchema)); err != nil {
		if isSQLiteError(err, "no such module: fts5") {
			s.fts5Available = false
			return nil
		}
		return fmt.Errorf("init fts5 schema: %w", err)
	}
	s.fts5Available = true
	return nil
}

// WithTx runs fn inside a transaction. If fn returns an error the
// transaction is rolled back; otherwise it is committed.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{tx: sqlTx}
	defer tx.close()

	if err := fn(tx); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Stats holds database statistics.
type Stats struct {
	MailCount      int64
	FolderCount    int64
	ReplyCount     int64 // Rows with a parent
	SyntheticCount int64 // Rows whose identifier was synthesized
	OrphanCount    int64 // Rows whose parent does not exist; always 0 after a run
	RunCount       int64
	DatabaseSize   int64
}

// GetStats returns statistics about the database.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	queries := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM mails", &stats.MailCount},
		{"SELECT COUNT(DISTINCT folder) FROM mails", &stats.FolderCount},
		{"SELECT COUNT(*) FROM mails WHERE parent IS NOT NULL", &stats.ReplyCount},
		{"SELECT COUNT(*) FROM mails WHERE synthetic_id = 1", &stats.SyntheticCount},
		{`SELECT COUNT(*) FROM mails m
		  WHERE m.parent IS NOT NULL
		    AND NOT EXISTS (SELECT 1 FROM mails p WHERE p.message_id = m.parent)`, &stats.OrphanCount},
		{"SELECT COUNT(*) FROM index_runs", &stats.RunCount},
	}

	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dest); err != nil {
			if isSQLiteError(err, "no such table") {
				continue
			}
			return nil, fmt.Errorf("get stats %q: %w", q.query, err)
		}
	}

	if info, err := os.Stat(s.dbPath); err == nil {
		stats.DatabaseSize = info.Size()
	}

	return stats, nil
}

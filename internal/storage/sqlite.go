package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores documents in a single table keyed by path.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database and creates the schema
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			path TEXT PRIMARY KEY,
			parent TEXT NOT NULL,
			value BLOB NOT NULL,
			version INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(parent)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

func (s *SQLite) Get(ctx context.Context, path string) (*Document, error) {
	if err := validPath(path); err != nil {
		return nil, err
	}

	doc := Document{Path: path}
	err := s.db.QueryRowContext(ctx,
		"SELECT value, version FROM documents WHERE path = ?",
		path,
	).Scan(&doc.Value, &doc.Version)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (s *SQLite) Set(ctx context.Context, path string, value []byte) error {
	if err := validPath(path); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (path, parent, value, version, updated_at)
		 VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT(path) DO UPDATE SET
			value = excluded.value,
			version = documents.version + 1,
			updated_at = excluded.updated_at`,
		path, Parent(path), value, time.Now().Unix(),
	)
	return err
}

func (s *SQLite) CompareAndSet(ctx context.Context, path string, version int64, value []byte) error {
	if err := validPath(path); err != nil {
		return err
	}

	var (
		result sql.Result
		err    error
	)
	now := time.Now().Unix()
	if version == 0 {
		result, err = s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO documents (path, parent, value, version, updated_at)
			 VALUES (?, ?, ?, 1, ?)`,
			path, Parent(path), value, now,
		)
	} else {
		result, err = s.db.ExecContext(ctx,
			`UPDATE documents SET value = ?, version = version + 1, updated_at = ?
			 WHERE path = ? AND version = ?`,
			value, now, path, version,
		)
	}
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *SQLite) Children(ctx context.Context, parent string) ([]Document, error) {
	if err := validPath(parent); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT path, value, version FROM documents WHERE parent = ?",
		parent,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Path, &d.Value, &d.Version); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortDocuments(docs)
	return docs, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

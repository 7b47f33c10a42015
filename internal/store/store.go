// Package store keeps the small amount of local state the client needs between
// invocations: backend session cookies and the space the CLI is working in.
//
// Entities (spaces, files) are never cached here; the backend is the only
// source of truth for them.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

const dbFileName = "state.sqlite"

// State is an open handle on <dir>/state.sqlite.
type State struct {
	Dir string

	db  *sql.DB
	log logrus.FieldLogger
}

// Open creates dir if needed, opens the database and applies migrations.
func Open(ctx context.Context, dir string, log logrus.FieldLogger) (*State, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("store: empty state dir")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, err
	}
	// WAL: the TUI and one-off CLI commands may run at the same time.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &State{Dir: dir, db: db, log: log}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			k TEXT PRIMARY KEY,
			v TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS cookies (
			host TEXT NOT NULL,
			path TEXT NOT NULL,
			name TEXT NOT NULL,
			origin TEXT NOT NULL,
			value TEXT NOT NULL,
			secure INTEGER NOT NULL DEFAULT 0,
			http_only INTEGER NOT NULL DEFAULT 0,
			expires_unix INTEGER,
			PRIMARY KEY(host, path, name)
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	return db.Close()
}

func currentSpaceKey(server string) string {
	return "current_space:" + strings.TrimRight(strings.TrimSpace(server), "/")
}

// CurrentSpace returns the space CLI commands default to for server.
func (s *State) CurrentSpace(ctx context.Context, server string) (int64, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT v FROM meta WHERE k = ?`, currentSpaceKey(server)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || id <= 0 {
		// Unreadable values are treated as unset.
		return 0, false, nil
	}
	return id, true, nil
}

func (s *State) SetCurrentSpace(ctx context.Context, server string, id int64) error {
	if id <= 0 {
		return s.ClearCurrentSpace(ctx, server)
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO meta(k, v) VALUES(?, ?)`, currentSpaceKey(server), strconv.FormatInt(id, 10))
	return err
}

func (s *State) ClearCurrentSpace(ctx context.Context, server string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM meta WHERE k = ?`, currentSpaceKey(server))
	return err
}

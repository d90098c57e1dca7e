// Package store provides the SQLite storage layer for storyweb.
//
// A single database file holds imported relationship payload snapshots
// (the JSON exports produced by the analysis backend) and the node
// positions captured from a live layout session, so a frame can be
// re-rendered offline long after the preview tab is gone.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.storyweb/storyweb.db"

// Snapshot is one imported relationship payload. Payload carries the
// raw JSON bytes; listing queries leave it nil.
type Snapshot struct {
	ID          int64
	Project     string
	Label       string
	Payload     []byte
	ContentHash string
	ImportedAt  time.Time
	Positions   int
}

// NodePosition is one captured node placement for a snapshot.
type NodePosition struct {
	EntityID int64
	X        float64
	Y        float64
	Radius   float64
}

// Stats holds observability counters about the store.
type Stats struct {
	SnapshotCount int64
	PositionCount int64
	DBSizeBytes   int64
}

// Config holds configuration for Open.
type Config struct {
	DBPath string
}

// Store is the SQLite-backed snapshot database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the snapshot database.
// Pass ":memory:" for in-memory databases (testing).
func Open(cfg Config) (*Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, dbPath: cfg.DBPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats returns store counters.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM snapshots").Scan(&stats.SnapshotCount); err != nil {
		return nil, fmt.Errorf("counting snapshots: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM node_positions").Scan(&stats.PositionCount); err != nil {
		return nil, fmt.Errorf("counting positions: %w", err)
	}
	if s.dbPath != ":memory:" {
		if info, err := os.Stat(s.dbPath); err == nil {
			stats.DBSizeBytes = info.Size()
		}
	}
	return stats, nil
}

// Vacuum runs VACUUM on the database. Manual only, never automatic.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

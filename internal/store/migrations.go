package store

import "fmt"

// migrate creates the schema if it does not exist.
func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project TEXT NOT NULL DEFAULT '',
			label TEXT NOT NULL DEFAULT '',
			payload BLOB NOT NULL,
			content_hash TEXT NOT NULL UNIQUE,
			imported_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_project ON snapshots(project)`,
		`CREATE TABLE IF NOT EXISTS node_positions (
			snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
			entity_id INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			radius REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (snapshot_id, entity_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}

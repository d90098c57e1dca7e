package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateSnapshot is returned by AddSnapshot when an identical
// payload has already been imported.
var ErrDuplicateSnapshot = errors.New("snapshot already imported")

// AddSnapshot stores a new payload snapshot. The payload is hashed and
// duplicate imports are rejected with ErrDuplicateSnapshot.
func (s *Store) AddSnapshot(ctx context.Context, project, label string, payload []byte) (*Snapshot, error) {
	sum := sha256.Sum256(payload)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, ErrDuplicateSnapshot
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (project, label, payload, content_hash, imported_at) VALUES (?, ?, ?, ?, ?)`,
		project, label, payload, hash, now)
	if err != nil {
		return nil, fmt.Errorf("inserting snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting snapshot id: %w", err)
	}

	return &Snapshot{
		ID:          id,
		Project:     project,
		Label:       label,
		Payload:     payload,
		ContentHash: hash,
		ImportedAt:  now,
	}, nil
}

// FindByHash returns the snapshot with the given content hash, or nil
// if none exists. The payload is not loaded.
func (s *Store) FindByHash(ctx context.Context, hash string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project, label, content_hash, imported_at FROM snapshots WHERE content_hash = ?`, hash)

	var snap Snapshot
	err := row.Scan(&snap.ID, &snap.Project, &snap.Label, &snap.ContentHash, &snap.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot by hash: %w", err)
	}
	return &snap, nil
}

// GetSnapshot returns a snapshot by ID including its payload, or nil if
// it does not exist.
func (s *Store) GetSnapshot(ctx context.Context, id int64) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project, label, payload, content_hash, imported_at FROM snapshots WHERE id = ?`, id)

	var snap Snapshot
	err := row.Scan(&snap.ID, &snap.Project, &snap.Label, &snap.Payload, &snap.ContentHash, &snap.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return &snap, nil
}

// LatestSnapshot returns the most recently imported snapshot including
// its payload, or nil if the store is empty. When project is non-empty
// only that project's snapshots are considered.
func (s *Store) LatestSnapshot(ctx context.Context, project string) (*Snapshot, error) {
	query := `SELECT id, project, label, payload, content_hash, imported_at FROM snapshots`
	args := []any{}
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY imported_at DESC, id DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)

	var snap Snapshot
	err := row.Scan(&snap.ID, &snap.Project, &snap.Label, &snap.Payload, &snap.ContentHash, &snap.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns snapshots ordered newest first, without
// payloads. Positions carries the captured position count per snapshot.
// When project is non-empty only that project's snapshots are listed.
func (s *Store) ListSnapshots(ctx context.Context, project string) ([]Snapshot, error) {
	query := `SELECT s.id, s.project, s.label, s.content_hash, s.imported_at,
		(SELECT COUNT(*) FROM node_positions p WHERE p.snapshot_id = s.id)
		FROM snapshots s`
	args := []any{}
	if project != "" {
		query += ` WHERE s.project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY s.imported_at DESC, s.id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Project, &snap.Label, &snap.ContentHash, &snap.ImportedAt, &snap.Positions); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// DeleteSnapshot removes a snapshot and its positions. Returns false if
// the snapshot did not exist.
func (s *Store) DeleteSnapshot(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking delete result: %w", err)
	}
	return n > 0, nil
}

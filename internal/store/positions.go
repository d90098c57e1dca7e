package store

import (
	"context"
	"fmt"
)

// SavePositions replaces the captured node positions for a snapshot.
func (s *Store) SavePositions(ctx context.Context, snapshotID int64, positions []NodePosition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM node_positions WHERE snapshot_id = ?`, snapshotID); err != nil {
		return fmt.Errorf("clearing positions: %w", err)
	}
	for _, p := range positions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO node_positions (snapshot_id, entity_id, x, y, radius) VALUES (?, ?, ?, ?, ?)`,
			snapshotID, p.EntityID, p.X, p.Y, p.Radius)
		if err != nil {
			return fmt.Errorf("inserting position for entity %d: %w", p.EntityID, err)
		}
	}
	return tx.Commit()
}

// Positions returns the captured node positions for a snapshot, ordered
// by entity ID.
func (s *Store) Positions(ctx context.Context, snapshotID int64) ([]NodePosition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, x, y, radius FROM node_positions WHERE snapshot_id = ? ORDER BY entity_id`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("querying positions: %w", err)
	}
	defer rows.Close()

	var positions []NodePosition
	for rows.Next() {
		var p NodePosition
		if err := rows.Scan(&p.EntityID, &p.X, &p.Y, &p.Radius); err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

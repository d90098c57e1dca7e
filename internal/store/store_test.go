package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// newTestStore creates an in-memory store for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// --- Database Initialization ---

func TestOpen(t *testing.T) {
	s, err := Open(Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer s.Close()

	// Verify tables exist by querying each
	tables := []string{"snapshots", "node_positions"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestWALMode(t *testing.T) {
	s := newTestStore(t)

	var mode string
	s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	// In-memory databases use "memory" journal mode, not WAL
	if mode != "memory" && mode != "wal" {
		t.Errorf("expected journal_mode 'wal' or 'memory', got %q", mode)
	}
}

// --- Snapshot CRUD ---

func TestAddSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"relations":[]}`)
	snap, err := s.AddSnapshot(ctx, "el-quijote", "chapter 1-10", payload)
	if err != nil {
		t.Fatalf("AddSnapshot failed: %v", err)
	}
	if snap.ID <= 0 {
		t.Fatalf("expected positive ID, got %d", snap.ID)
	}
	if snap.ContentHash == "" {
		t.Error("content hash not set")
	}
	if snap.ImportedAt.IsZero() {
		t.Error("expected non-zero imported_at")
	}
}

func TestAddSnapshot_Duplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"relations":[{"id":1}]}`)
	first, err := s.AddSnapshot(ctx, "p", "first", payload)
	if err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	// Second insert with identical payload must report the duplicate and
	// hand back the existing snapshot.
	second, err := s.AddSnapshot(ctx, "p", "second", payload)
	if !errors.Is(err, ErrDuplicateSnapshot) {
		t.Fatalf("expected ErrDuplicateSnapshot, got %v", err)
	}
	if second == nil || second.ID != first.ID {
		t.Errorf("expected existing snapshot %d back, got %+v", first.ID, second)
	}
}

func TestGetSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"relations":[{"id":7}]}`)
	snap, _ := s.AddSnapshot(ctx, "el-quijote", "full run", payload)

	got, err := s.GetSnapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if string(got.Payload) != string(payload) {
		t.Errorf("payload mismatch: %q != %q", got.Payload, payload)
	}
	if got.Project != "el-quijote" {
		t.Errorf("project mismatch: %q", got.Project)
	}
	if got.Label != "full run" {
		t.Errorf("label mismatch: %q", got.Label)
	}
}

func TestGetSnapshot_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetSnapshot(ctx, 99999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for nonexistent snapshot")
	}
}

func TestLatestSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		payload := []byte(fmt.Sprintf(`{"run":%d}`, i))
		if _, err := s.AddSnapshot(ctx, "p", fmt.Sprintf("run %d", i), payload); err != nil {
			t.Fatalf("AddSnapshot %d failed: %v", i, err)
		}
	}

	latest, err := s.LatestSnapshot(ctx, "")
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if latest == nil {
		t.Fatal("expected snapshot, got nil")
	}
	if latest.Label != "run 2" {
		t.Errorf("expected latest label 'run 2', got %q", latest.Label)
	}
	if len(latest.Payload) == 0 {
		t.Error("expected payload on latest snapshot")
	}
}

func TestLatestSnapshot_ProjectFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddSnapshot(ctx, "alpha", "a1", []byte(`{"p":"alpha"}`))
	s.AddSnapshot(ctx, "beta", "b1", []byte(`{"p":"beta"}`))

	latest, err := s.LatestSnapshot(ctx, "alpha")
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if latest == nil || latest.Project != "alpha" {
		t.Errorf("expected alpha snapshot, got %+v", latest)
	}
}

func TestLatestSnapshot_Empty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	latest, err := s.LatestSnapshot(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != nil {
		t.Error("expected nil for empty store")
	}
}

func TestListSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		s.AddSnapshot(ctx, "p", fmt.Sprintf("snap %d", i), []byte(fmt.Sprintf(`{"n":%d}`, i)))
	}

	snapshots, err := s.ListSnapshots(ctx, "")
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(snapshots) != 4 {
		t.Fatalf("expected 4 snapshots, got %d", len(snapshots))
	}
	// Newest first
	if snapshots[0].Label != "snap 3" {
		t.Errorf("expected newest first, got %q", snapshots[0].Label)
	}
	// Listing omits payloads
	for _, snap := range snapshots {
		if snap.Payload != nil {
			t.Errorf("snapshot %d: listing should not load payloads", snap.ID)
		}
	}
}

func TestDeleteSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, _ := s.AddSnapshot(ctx, "p", "doomed", []byte(`{"x":1}`))

	ok, err := s.DeleteSnapshot(ctx, snap.ID)
	if err != nil {
		t.Fatalf("DeleteSnapshot failed: %v", err)
	}
	if !ok {
		t.Error("expected delete to report success")
	}

	got, _ := s.GetSnapshot(ctx, snap.ID)
	if got != nil {
		t.Error("snapshot still retrievable after delete")
	}
}

func TestDeleteSnapshot_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.DeleteSnapshot(ctx, 99999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected false deleting nonexistent snapshot")
	}
}

// --- Node Positions ---

func TestSaveAndLoadPositions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, _ := s.AddSnapshot(ctx, "p", "layout run", []byte(`{"x":1}`))

	positions := []NodePosition{
		{EntityID: 3, X: 120.5, Y: 80.25, Radius: 22},
		{EntityID: 1, X: 40, Y: 60, Radius: 15},
		{EntityID: 2, X: 200, Y: 140, Radius: 45},
	}
	if err := s.SavePositions(ctx, snap.ID, positions); err != nil {
		t.Fatalf("SavePositions failed: %v", err)
	}

	got, err := s.Positions(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Positions failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(got))
	}
	// Ordered by entity ID
	if got[0].EntityID != 1 || got[1].EntityID != 2 || got[2].EntityID != 3 {
		t.Errorf("positions not ordered by entity ID: %+v", got)
	}
	if got[2].X != 120.5 || got[2].Y != 80.25 {
		t.Errorf("coordinates not preserved: %+v", got[2])
	}
}

func TestSavePositions_Replaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, _ := s.AddSnapshot(ctx, "p", "layout run", []byte(`{"x":1}`))

	s.SavePositions(ctx, snap.ID, []NodePosition{
		{EntityID: 1, X: 10, Y: 10, Radius: 15},
		{EntityID: 2, X: 20, Y: 20, Radius: 15},
	})
	// A second save replaces the first wholesale.
	s.SavePositions(ctx, snap.ID, []NodePosition{
		{EntityID: 1, X: 99, Y: 99, Radius: 30},
	})

	got, err := s.Positions(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Positions failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 position after replace, got %d", len(got))
	}
	if got[0].X != 99 || got[0].Radius != 30 {
		t.Errorf("replacement not applied: %+v", got[0])
	}
}

func TestDeleteSnapshot_CascadesPositions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, _ := s.AddSnapshot(ctx, "p", "cascade", []byte(`{"x":1}`))
	s.SavePositions(ctx, snap.ID, []NodePosition{{EntityID: 1, X: 1, Y: 2, Radius: 15}})

	s.DeleteSnapshot(ctx, snap.ID)

	got, err := s.Positions(ctx, snap.ID)
	if err != nil {
		t.Fatalf("Positions failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected positions deleted with snapshot, got %d", len(got))
	}
}

func TestListSnapshots_PositionCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap, _ := s.AddSnapshot(ctx, "p", "counted", []byte(`{"x":1}`))
	s.SavePositions(ctx, snap.ID, []NodePosition{
		{EntityID: 1, X: 1, Y: 1, Radius: 15},
		{EntityID: 2, X: 2, Y: 2, Radius: 15},
	})

	snapshots, err := s.ListSnapshots(ctx, "")
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	if snapshots[0].Positions != 2 {
		t.Errorf("expected 2 captured positions, got %d", snapshots[0].Positions)
	}
}

// --- Stats ---

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Empty store
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.SnapshotCount != 0 || stats.PositionCount != 0 {
		t.Error("expected zero counts for empty store")
	}

	snap, _ := s.AddSnapshot(ctx, "p", "s1", []byte(`{"a":1}`))
	s.AddSnapshot(ctx, "p", "s2", []byte(`{"a":2}`))
	s.SavePositions(ctx, snap.ID, []NodePosition{
		{EntityID: 1, X: 1, Y: 1, Radius: 15},
		{EntityID: 2, X: 2, Y: 2, Radius: 15},
		{EntityID: 3, X: 3, Y: 3, Radius: 15},
	})

	stats, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.SnapshotCount != 2 {
		t.Errorf("expected 2 snapshots, got %d", stats.SnapshotCount)
	}
	if stats.PositionCount != 3 {
		t.Errorf("expected 3 positions, got %d", stats.PositionCount)
	}
}

// --- Vacuum ---

func TestVacuum(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Just verify it doesn't error
	if err := s.Vacuum(ctx); err != nil {
		t.Fatalf("Vacuum failed: %v", err)
	}
}

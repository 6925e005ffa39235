package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bcwaterways/lakenet/internal/hydro"
)

// testStore creates a temporary checkpoint store and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.lakenet.db")
	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Open(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRows(regionID int, keys ...string) []hydro.LakeRow {
	rows := make([]hydro.LakeRow, len(keys))
	for i, key := range keys {
		rows[i] = hydro.LakeRow{
			RegionID:         regionID,
			LocalComponentID: i,
			WaterbodyKey:     key,
			WatershedGroup:   "SHUL",
		}
	}
	return rows
}

func testFrags(regionID int, n int) []FragmentRecord {
	frags := make([]FragmentRecord, n)
	for i := range frags {
		frags[i] = FragmentRecord{
			RegionID:         regionID,
			LocalComponentID: i,
			WatershedGroup:   "SHUL",
			WKB:              []byte{0x01, byte(i)},
		}
	}
	return frags
}

func TestAppendAndReadBack(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, 1, testRows(1, "A", "B"), testFrags(1, 1)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, 2, testRows(2, "C"), nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rows, err := s.LakeRows(ctx)
	if err != nil {
		t.Fatalf("LakeRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].WaterbodyKey != "A" || rows[2].RegionID != 2 {
		t.Errorf("unexpected order: %+v", rows)
	}

	frags, err := s.Fragments(ctx)
	if err != nil {
		t.Fatalf("Fragments: %v", err)
	}
	if len(frags) != 1 || frags[0].RegionID != 1 {
		t.Errorf("fragments = %+v", frags)
	}

	n, err := s.RegionsCompleted(ctx)
	if err != nil {
		t.Fatalf("RegionsCompleted: %v", err)
	}
	if n != 2 {
		t.Errorf("RegionsCompleted = %d, want 2", n)
	}
}

func TestAppendRejectsDuplicateRegion(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, 1, testRows(1, "A"), nil); err != nil {
		t.Fatalf("Append: %v", err)
	}
	err := s.Append(ctx, 1, testRows(1, "B"), nil)
	if !errors.Is(err, ErrRegionAlreadyCompleted) {
		t.Fatalf("err = %v, want ErrRegionAlreadyCompleted", err)
	}

	// The rejected append must leave no trace.
	rows, err := s.LakeRows(ctx)
	if err != nil {
		t.Fatalf("LakeRows: %v", err)
	}
	if len(rows) != 1 || rows[0].WaterbodyKey != "A" {
		t.Errorf("rows after rejected append = %+v", rows)
	}
}

func TestResumePoint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	order := []int{10, 20, 30}

	t.Run("empty store resumes at zero", func(t *testing.T) {
		t.Parallel()
		s := testStore(t)
		got, err := s.ResumePoint(ctx, order)
		if err != nil {
			t.Fatalf("ResumePoint: %v", err)
		}
		if got != 0 {
			t.Errorf("ResumePoint = %d, want 0", got)
		}
	})

	t.Run("resumes after the completed prefix", func(t *testing.T) {
		t.Parallel()
		s := testStore(t)
		if err := s.Append(ctx, 10, testRows(10, "A"), nil); err != nil {
			t.Fatalf("Append: %v", err)
		}
		got, err := s.ResumePoint(ctx, order)
		if err != nil {
			t.Fatalf("ResumePoint: %v", err)
		}
		if got != 1 {
			t.Errorf("ResumePoint = %d, want 1", got)
		}
	})

	t.Run("fully processed run resumes at len(order)", func(t *testing.T) {
		t.Parallel()
		s := testStore(t)
		for _, id := range order {
			if err := s.Append(ctx, id, testRows(id, "A"), nil); err != nil {
				t.Fatalf("Append(%d): %v", id, err)
			}
		}
		got, err := s.ResumePoint(ctx, order)
		if err != nil {
			t.Fatalf("ResumePoint: %v", err)
		}
		if got != len(order) {
			t.Errorf("ResumePoint = %d, want %d", got, len(order))
		}
	})

	t.Run("gap in coverage is rejected", func(t *testing.T) {
		t.Parallel()
		s := testStore(t)
		if err := s.Append(ctx, 30, testRows(30, "A"), nil); err != nil {
			t.Fatalf("Append: %v", err)
		}
		_, err := s.ResumePoint(ctx, order)
		if !errors.Is(err, ErrResumeGap) {
			t.Errorf("err = %v, want ErrResumeGap", err)
		}
	})

	t.Run("rows without completion mark are rejected", func(t *testing.T) {
		t.Parallel()
		s := testStore(t)
		// Simulate out-of-band mutation: rows exist, mark does not.
		if _, err := s.db.Exec(
			`INSERT INTO lake_rows (region_id, local_component_id, waterbody_key, watershed_group) VALUES (10, 0, 'A', 'SHUL')`); err != nil {
			t.Fatalf("insert: %v", err)
		}
		_, err := s.ResumePoint(ctx, order)
		if !errors.Is(err, ErrCorruptCheckpoint) {
			t.Errorf("err = %v, want ErrCorruptCheckpoint", err)
		}
	})
}

func TestReplaceNetworks(t *testing.T) {
	t.Parallel()
	s := testStore(t)
	ctx := context.Background()

	first := []hydro.NetworkRow{
		{GlobalNetworkID: 0, RegionID: 1, WaterbodyKey: "A", WatershedGroup: "SHUL"},
		{GlobalNetworkID: 1, RegionID: 2, WaterbodyKey: "B", WatershedGroup: "SHUL"},
	}
	if err := s.ReplaceNetworks(ctx, first); err != nil {
		t.Fatalf("ReplaceNetworks: %v", err)
	}

	// A second reconciliation replaces the table wholesale.
	second := []hydro.NetworkRow{
		{GlobalNetworkID: 0, RegionID: 1, WaterbodyKey: "A", WatershedGroup: "SHUL"},
	}
	if err := s.ReplaceNetworks(ctx, second); err != nil {
		t.Fatalf("ReplaceNetworks: %v", err)
	}

	got, err := s.Networks(ctx)
	if err != nil {
		t.Fatalf("Networks: %v", err)
	}
	if len(got) != 1 || got[0].WaterbodyKey != "A" {
		t.Errorf("networks = %+v", got)
	}
}

// Package store persists per-region results durably and provides the
// checkpoint/resume contract: a region is either fully recorded or absent.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/bcwaterways/lakenet/internal/hydro"
)

var (
	// ErrRegionAlreadyCompleted is returned when Append is called for a
	// region that already has a completion mark.
	ErrRegionAlreadyCompleted = errors.New("region already completed")

	// ErrCorruptCheckpoint indicates rows exist for a region with no
	// completion mark: a sign the database was mutated out of band, since
	// Append commits rows and mark in one transaction.
	ErrCorruptCheckpoint = errors.New("checkpoint rows present without a completion mark")

	// ErrResumeGap indicates the completed regions are not a prefix of
	// the run order, so resuming would silently skip coverage.
	ErrResumeGap = errors.New("completed regions are not contiguous with the run order")
)

// schema contains the DDL executed on first open. Using IF NOT EXISTS makes
// it safe to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS lake_rows (
    region_id          INTEGER NOT NULL,
    local_component_id INTEGER NOT NULL,
    waterbody_key      TEXT NOT NULL,
    watershed_group    TEXT NOT NULL,
    name               TEXT NOT NULL DEFAULT '',
    connection_count   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS fragments (
    region_id          INTEGER NOT NULL,
    local_component_id INTEGER NOT NULL,
    watershed_group    TEXT NOT NULL,
    geom               BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS completed (
    region_id    INTEGER PRIMARY KEY,
    completed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS networks (
    global_network_id INTEGER NOT NULL,
    region_id         INTEGER NOT NULL,
    waterbody_key     TEXT NOT NULL,
    watershed_group   TEXT NOT NULL,
    name              TEXT NOT NULL DEFAULT '',
    connection_count  INTEGER NOT NULL DEFAULT 0
);
`

// FragmentRecord is a boundary fragment with its geometry encoded as WKB,
// ready for storage.
type FragmentRecord struct {
	RegionID         int
	LocalComponentID int
	WatershedGroup   string
	WKB              []byte
}

// SQLiteStore implements the resumable checkpoint store on a local SQLite
// database in WAL mode.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the checkpoint database at path, enables WAL mode
// and busy timeout, and creates the schema tables if they do not exist.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// SQLite only supports a single writer; one connection avoids
	// SQLITE_BUSY contention between pooled connections.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path the store was opened with.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Append durably records one completed region: its lake rows, its boundary
// fragments, and the completion mark, in a single transaction. A crash
// mid-append leaves no trace of the region.
func (s *SQLiteStore) Append(ctx context.Context, regionID int, rows []hydro.LakeRow, frags []FragmentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin append region %d: %w", regionID, err)
	}
	defer tx.Rollback()

	var done int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM completed WHERE region_id = ?", regionID).Scan(&done); err != nil {
		return fmt.Errorf("store: check region %d: %w", regionID, err)
	}
	if done > 0 {
		return fmt.Errorf("store: region %d: %w", regionID, ErrRegionAlreadyCompleted)
	}

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lake_rows (region_id, local_component_id, waterbody_key, watershed_group, name, connection_count)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.RegionID, r.LocalComponentID, r.WaterbodyKey, r.WatershedGroup, r.Name, r.ConnectionCount); err != nil {
			return fmt.Errorf("store: insert lake row (region %d, key %s): %w", r.RegionID, r.WaterbodyKey, err)
		}
	}
	for _, f := range frags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO fragments (region_id, local_component_id, watershed_group, geom)
			 VALUES (?, ?, ?, ?)`,
			f.RegionID, f.LocalComponentID, f.WatershedGroup, f.WKB); err != nil {
			return fmt.Errorf("store: insert fragment (region %d, component %d): %w", f.RegionID, f.LocalComponentID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO completed (region_id, completed_at) VALUES (?, ?)",
		regionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("store: mark region %d complete: %w", regionID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit region %d: %w", regionID, err)
	}
	return nil
}

// ResumePoint returns the index into order of the first region without a
// completion mark; len(order) means the run is fully processed. It rejects
// two inconsistent states rather than resuming over them: rows without a
// completion mark (ErrCorruptCheckpoint) and completed regions that are not
// a prefix of the run order (ErrResumeGap).
func (s *SQLiteStore) ResumePoint(ctx context.Context, order []int) (int, error) {
	completed, err := s.completedSet(ctx)
	if err != nil {
		return 0, err
	}

	marked, err := s.regionsWithRows(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range marked {
		if !completed[id] {
			return 0, fmt.Errorf("store: region %d: %w", id, ErrCorruptCheckpoint)
		}
	}

	resume := len(order)
	for i, id := range order {
		if !completed[id] {
			resume = i
			break
		}
	}
	for _, id := range order[resume:] {
		if completed[id] {
			return 0, fmt.Errorf("store: region %d completed after an uncompleted region: %w", id, ErrResumeGap)
		}
	}
	return resume, nil
}

// RegionsCompleted returns how many regions carry a completion mark.
func (s *SQLiteStore) RegionsCompleted(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM completed").Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count completed: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) completedSet(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT region_id FROM completed")
	if err != nil {
		return nil, fmt.Errorf("store: query completed: %w", err)
	}
	defer rows.Close()
	set := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan completed: %w", err)
		}
		set[id] = true
	}
	return set, rows.Err()
}

func (s *SQLiteStore) regionsWithRows(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT region_id FROM lake_rows UNION SELECT DISTINCT region_id FROM fragments")
	if err != nil {
		return nil, fmt.Errorf("store: query row regions: %w", err)
	}
	defer rows.Close()
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan row regions: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LakeRows returns every per-lake checkpoint row, ordered deterministically.
func (s *SQLiteStore) LakeRows(ctx context.Context) ([]hydro.LakeRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region_id, local_component_id, waterbody_key, watershed_group, name, connection_count
		 FROM lake_rows ORDER BY region_id, local_component_id, waterbody_key`)
	if err != nil {
		return nil, fmt.Errorf("store: query lake rows: %w", err)
	}
	defer rows.Close()
	var out []hydro.LakeRow
	for rows.Next() {
		var r hydro.LakeRow
		if err := rows.Scan(&r.RegionID, &r.LocalComponentID, &r.WaterbodyKey, &r.WatershedGroup, &r.Name, &r.ConnectionCount); err != nil {
			return nil, fmt.Errorf("store: scan lake row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Fragments returns every stored boundary fragment.
func (s *SQLiteStore) Fragments(ctx context.Context) ([]FragmentRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region_id, local_component_id, watershed_group, geom
		 FROM fragments ORDER BY region_id, local_component_id`)
	if err != nil {
		return nil, fmt.Errorf("store: query fragments: %w", err)
	}
	defer rows.Close()
	var out []FragmentRecord
	for rows.Next() {
		var f FragmentRecord
		if err := rows.Scan(&f.RegionID, &f.LocalComponentID, &f.WatershedGroup, &f.WKB); err != nil {
			return nil, fmt.Errorf("store: scan fragment: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ReplaceNetworks atomically replaces the final output table.
func (s *SQLiteStore) ReplaceNetworks(ctx context.Context, networks []hydro.NetworkRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin replace networks: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM networks"); err != nil {
		return fmt.Errorf("store: clear networks: %w", err)
	}
	for _, n := range networks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO networks (global_network_id, region_id, waterbody_key, watershed_group, name, connection_count)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			n.GlobalNetworkID, n.RegionID, n.WaterbodyKey, n.WatershedGroup, n.Name, n.ConnectionCount); err != nil {
			return fmt.Errorf("store: insert network row (key %s): %w", n.WaterbodyKey, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit networks: %w", err)
	}
	return nil
}

// Networks returns the final output table, ordered for stable export.
func (s *SQLiteStore) Networks(ctx context.Context) ([]hydro.NetworkRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT global_network_id, region_id, waterbody_key, watershed_group, name, connection_count
		 FROM networks ORDER BY global_network_id, region_id, waterbody_key`)
	if err != nil {
		return nil, fmt.Errorf("store: query networks: %w", err)
	}
	defer rows.Close()
	var out []hydro.NetworkRow
	for rows.Next() {
		var n hydro.NetworkRow
		if err := rows.Scan(&n.GlobalNetworkID, &n.RegionID, &n.WaterbodyKey, &n.WatershedGroup, &n.Name, &n.ConnectionCount); err != nil {
			return nil, fmt.Errorf("store: scan network row: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

package provider

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/bcwaterways/lakenet/internal/geo"
	"github.com/bcwaterways/lakenet/internal/hydro"
)

// SQLiteSource reads regions, lakes, and rivers from a SQLite database with
// WKB geometry blobs (tables: regions, lakes, rivers). Spatial filtering is
// an envelope check followed by an exact intersection test through the
// engine; the feature tables are scanned per query, which is acceptable for
// a few hundred regions of features retrieved once each per run.
type SQLiteSource struct {
	db  *sql.DB
	eng geo.Engine
}

// OpenSQLiteSource opens the feature database at path read-only.
func OpenSQLiteSource(ctx context.Context, path string, eng geo.Engine) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("provider: open source: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("provider: ping source: %w", err)
	}
	return &SQLiteSource{db: db, eng: eng}, nil
}

// Close closes the underlying database.
func (s *SQLiteSource) Close() error { return s.db.Close() }

func (s *SQLiteSource) Regions(ctx context.Context) ([]hydro.Region, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT region_id, geom FROM regions ORDER BY region_id")
	if err != nil {
		return nil, fmt.Errorf("provider: query regions: %w", err)
	}
	defer rows.Close()

	var out []hydro.Region
	for rows.Next() {
		var id int
		var wkb []byte
		if err := rows.Scan(&id, &wkb); err != nil {
			return nil, fmt.Errorf("provider: scan region: %w", err)
		}
		g, err := s.eng.FromWKB(wkb)
		if err != nil {
			return nil, fmt.Errorf("provider: region %d geometry: %w", id, err)
		}
		out = append(out, hydro.Region{ID: id, Geom: g})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("provider: read regions: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *SQLiteSource) QueryLakes(ctx context.Context, reg hydro.Region) ([]hydro.Lake, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT waterbody_key, watershed_group, name, geom FROM lakes ORDER BY waterbody_key")
	if err != nil {
		return nil, fmt.Errorf("provider: query lakes: %w", err)
	}
	defer rows.Close()

	rb := reg.Geom.Bounds()
	var out []hydro.Lake
	for rows.Next() {
		var lake hydro.Lake
		var wkb []byte
		if err := rows.Scan(&lake.WaterbodyKey, &lake.WatershedGroup, &lake.Name, &wkb); err != nil {
			return nil, fmt.Errorf("provider: scan lake: %w", err)
		}
		g, err := s.eng.FromWKB(wkb)
		if err != nil {
			return nil, fmt.Errorf("provider: lake %s geometry: %w", lake.WaterbodyKey, err)
		}
		if !rb.Overlaps(g.Bounds()) {
			continue
		}
		hit, err := s.eng.Intersects(g, reg.Geom)
		if err != nil {
			return nil, fmt.Errorf("provider: lake %s intersection: %w", lake.WaterbodyKey, err)
		}
		if !hit {
			continue
		}
		lake.Geom = g
		out = append(out, lake)
	}
	return out, rows.Err()
}

func (s *SQLiteSource) QueryRivers(ctx context.Context, reg hydro.Region) ([]hydro.River, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT geom FROM rivers ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("provider: query rivers: %w", err)
	}
	defer rows.Close()

	rb := reg.Geom.Bounds()
	var out []hydro.River
	for rows.Next() {
		var wkb []byte
		if err := rows.Scan(&wkb); err != nil {
			return nil, fmt.Errorf("provider: scan river: %w", err)
		}
		g, err := s.eng.FromWKB(wkb)
		if err != nil {
			return nil, fmt.Errorf("provider: river geometry: %w", err)
		}
		if !rb.Overlaps(g.Bounds()) {
			continue
		}
		hit, err := s.eng.Intersects(g, reg.Geom)
		if err != nil {
			return nil, fmt.Errorf("provider: river intersection: %w", err)
		}
		if !hit {
			continue
		}
		out = append(out, hydro.River{Geom: g})
	}
	return out, rows.Err()
}

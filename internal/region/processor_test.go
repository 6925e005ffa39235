package region

import (
	"context"
	"testing"

	"github.com/bcwaterways/lakenet/internal/geo/geotest"
	"github.com/bcwaterways/lakenet/internal/hydro"
)

func testProcessor() *Processor {
	return NewProcessor(geotest.NewEngine(), DefaultTolerances())
}

func testRegion(id int) hydro.Region {
	return hydro.Region{ID: id, Geom: geotest.R(0, 0, 10000, 10000)}
}

func lake(key, name string, minX, minY, maxX, maxY float64) hydro.Lake {
	return hydro.Lake{
		WaterbodyKey:   key,
		WatershedGroup: "SHUL",
		Name:           name,
		Geom:           geotest.R(minX, minY, maxX, maxY),
	}
}

func river(minX, minY, maxX, maxY float64) hydro.River {
	return hydro.River{Geom: geotest.R(minX, minY, maxX, maxY)}
}

// rowByKey indexes result rows by waterbody key.
func rowByKey(t *testing.T, res *Result) map[string]hydro.LakeRow {
	t.Helper()
	out := make(map[string]hydro.LakeRow, len(res.Rows))
	for _, r := range res.Rows {
		if _, dup := out[r.WaterbodyKey]; dup {
			t.Fatalf("duplicate row for key %s", r.WaterbodyKey)
		}
		out[r.WaterbodyKey] = r
	}
	return out
}

func TestProcessorZeroRivers(t *testing.T) {
	t.Parallel()
	p := testProcessor()

	res, err := p.Process(context.Background(), testRegion(1), []hydro.Lake{
		lake("A", "", 100, 100, 200, 200),
		lake("B", "", 300, 300, 400, 400),
		lake("C", "", 150, 500, 250, 600),
	}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	// Every lake is its own singleton component with no connections.
	if len(res.Components) != 3 {
		t.Fatalf("got %d components, want 3", len(res.Components))
	}
	rows := rowByKey(t, res)
	seen := make(map[int]bool)
	for key, r := range rows {
		if r.ConnectionCount != 0 {
			t.Errorf("%s: ConnectionCount = %d, want 0", key, r.ConnectionCount)
		}
		if seen[r.LocalComponentID] {
			t.Errorf("%s: local id %d reused across singletons", key, r.LocalComponentID)
		}
		seen[r.LocalComponentID] = true
	}
	// Dense ids 0..2.
	for id := 0; id < 3; id++ {
		if !seen[id] {
			t.Errorf("local id %d missing from dense range", id)
		}
	}
}

func TestProcessorRiverConnectsLakes(t *testing.T) {
	t.Parallel()
	p := testProcessor()

	// The river spans the gap between A and B; C is far away.
	res, err := p.Process(context.Background(), testRegion(1), []hydro.Lake{
		lake("A", "", 100, 100, 200, 200),
		lake("B", "", 400, 100, 500, 200),
		lake("C", "", 5000, 5000, 5100, 5100),
	}, []hydro.River{
		river(195, 140, 405, 160),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	rows := rowByKey(t, res)
	if rows["A"].LocalComponentID != rows["B"].LocalComponentID {
		t.Errorf("A and B in different components: %d, %d", rows["A"].LocalComponentID, rows["B"].LocalComponentID)
	}
	if rows["C"].LocalComponentID == rows["A"].LocalComponentID {
		t.Error("C merged into A's component")
	}
	if len(res.Components) != 2 {
		t.Errorf("got %d components, want 2", len(res.Components))
	}
	for _, key := range []string{"A", "B"} {
		if rows[key].ConnectionCount != 1 {
			t.Errorf("%s: ConnectionCount = %d, want 1", key, rows[key].ConnectionCount)
		}
	}
	if rows["C"].ConnectionCount != 0 {
		t.Errorf("C: ConnectionCount = %d, want 0", rows["C"].ConnectionCount)
	}
}

func TestProcessorBufferBridgesSmallGaps(t *testing.T) {
	t.Parallel()
	p := testProcessor()

	// Lake and river end 8 units apart: lake buffer 3 + river buffer 7
	// closes the gap.
	res, err := p.Process(context.Background(), testRegion(1), []hydro.Lake{
		lake("A", "", 100, 100, 200, 200),
		lake("B", "", 500, 100, 600, 200),
	}, []hydro.River{
		river(208, 140, 492, 160),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	rows := rowByKey(t, res)
	if rows["A"].LocalComponentID != rows["B"].LocalComponentID {
		t.Error("gap under combined tolerance was not bridged")
	}
	if rows["A"].ConnectionCount != 1 || rows["B"].ConnectionCount != 1 {
		t.Errorf("ConnectionCounts = %d, %d, want 1, 1", rows["A"].ConnectionCount, rows["B"].ConnectionCount)
	}
}

func TestProcessorDistinctRiverCount(t *testing.T) {
	t.Parallel()
	p := testProcessor()

	// Two distinct rivers touch A; counting raw overlaps would also
	// find them via each other.
	res, err := p.Process(context.Background(), testRegion(1), []hydro.Lake{
		lake("A", "", 100, 100, 200, 200),
	}, []hydro.River{
		river(195, 110, 300, 130),
		river(195, 170, 300, 190),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	rows := rowByKey(t, res)
	if rows["A"].ConnectionCount != 2 {
		t.Errorf("ConnectionCount = %d, want 2", rows["A"].ConnectionCount)
	}
}

func TestProcessorRiverOnlyPiecesDropped(t *testing.T) {
	t.Parallel()
	p := testProcessor()

	res, err := p.Process(context.Background(), testRegion(1), []hydro.Lake{
		lake("A", "", 100, 100, 200, 200),
	}, []hydro.River{
		river(195, 140, 300, 160),    // touches A
		river(5000, 5000, 6000, 5020), // adjoins no lake
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Components) != 1 {
		t.Fatalf("got %d components, want 1 (river-only piece must be dropped)", len(res.Components))
	}
	if res.Components[0].LocalID != 0 {
		t.Errorf("LocalID = %d, want 0", res.Components[0].LocalID)
	}
}

func TestProcessorSliverFilter(t *testing.T) {
	t.Parallel()
	p := testProcessor()

	// A multi-part region: the main part and a sliver below the area
	// threshold. The sliver's lake must not survive processing.
	reg := hydro.Region{ID: 1, Geom: geotest.G(
		geotest.Rect{MinX: 0, MinY: 0, MaxX: 10000, MaxY: 10000},
		geotest.Rect{MinX: 20000, MinY: 20000, MaxX: 20100, MaxY: 20100},
	)}
	res, err := p.Process(context.Background(), reg, []hydro.Lake{
		lake("MAIN", "", 100, 100, 200, 200),
		lake("SLIVER", "", 20010, 20010, 20090, 20090),
	}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	rows := rowByKey(t, res)
	if _, ok := rows["SLIVER"]; ok {
		t.Error("lake on a sub-threshold sliver part survived")
	}
	if _, ok := rows["MAIN"]; !ok {
		t.Error("lake on the main part missing")
	}
}

func TestProcessorClipsStraddlingFeatures(t *testing.T) {
	t.Parallel()
	p := testProcessor()

	// A lake straddling the region edge is cropped, not discarded.
	res, err := p.Process(context.Background(), testRegion(1), []hydro.Lake{
		lake("EDGE", "", 9950, 100, 10050, 200),
	}, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(res.Rows))
	}
	// Clip to x<=10000, then buffer by 3.
	if b := res.Components[0].Geom.Bounds(); b.MaxX != 10003 {
		t.Errorf("component MaxX = %v, want 10003", b.MaxX)
	}
}

func TestProcessorDeterministicLocalIDs(t *testing.T) {
	t.Parallel()
	p := testProcessor()
	ctx := context.Background()

	lakes := []hydro.Lake{
		lake("A", "", 100, 100, 200, 200),
		lake("B", "", 300, 300, 400, 400),
	}
	reversed := []hydro.Lake{lakes[1], lakes[0]}

	res1, err := p.Process(ctx, testRegion(1), lakes, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	res2, err := p.Process(ctx, testRegion(1), reversed, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	a1, a2 := rowByKey(t, res1), rowByKey(t, res2)
	for _, key := range []string{"A", "B"} {
		if a1[key].LocalComponentID != a2[key].LocalComponentID {
			t.Errorf("%s: local id depends on input order: %d != %d", key, a1[key].LocalComponentID, a2[key].LocalComponentID)
		}
	}
}

func TestProcessorEmptyRegion(t *testing.T) {
	t.Parallel()
	p := testProcessor()

	res, err := p.Process(context.Background(), testRegion(1), nil, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Rows) != 0 || len(res.Components) != 0 {
		t.Errorf("expected empty result, got %d rows, %d components", len(res.Rows), len(res.Components))
	}
}

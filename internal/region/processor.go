// Package region computes local connected components of lake and river
// geometry within a single region, and clips them to the region's boundary
// band for cross-region linkage.
package region

import (
	"context"
	"fmt"
	"sort"

	"github.com/bcwaterways/lakenet/internal/geo"
	"github.com/bcwaterways/lakenet/internal/hydro"
)

// Tolerances are the calibration constants of the pipeline. They are map
// units (metres for the BC Albers source data) and deliberately approximate:
// buffering bridges small real-world gaps so visually-touching features are
// recognized as connected.
type Tolerances struct {
	// LakeBuffer expands lake geometry outward before the union step.
	LakeBuffer float64
	// RiverBuffer expands river geometry outward before the union step.
	// Larger than LakeBuffer because river centerlines sit further from
	// the shorelines they connect.
	RiverBuffer float64
	// BoundaryBand is the width of the strip along the region border kept
	// as cross-region linkage evidence.
	BoundaryBand float64
	// MinPartArea drops degenerate region parts (coastal slivers) below
	// this area before processing.
	MinPartArea float64
}

// DefaultTolerances returns the calibrated defaults.
func DefaultTolerances() Tolerances {
	return Tolerances{
		LakeBuffer:   3,
		RiverBuffer:  7,
		BoundaryBand: 1000,
		MinPartArea:  1_000_000,
	}
}

// Component is one connected piece of buffered lake+river geometry that
// contains at least one lake. LocalID is dense within the region only.
type Component struct {
	LocalID        int
	WatershedGroup string
	Geom           geo.Geometry
}

// Result is the outcome of processing one region.
type Result struct {
	Rows       []hydro.LakeRow
	Components []Component
}

// Processor computes local components for one region at a time.
//
// ConnectionCount semantics: the count of DISTINCT river features whose
// buffered geometry intersects the lake's buffered geometry, taken before
// the union step. Counting raw segments instead would over-count rivers the
// data source fragments into multiple pieces.
type Processor struct {
	eng geo.Engine
	tol Tolerances
}

// NewProcessor creates a Processor using the given engine and tolerances.
func NewProcessor(eng geo.Engine, tol Tolerances) *Processor {
	return &Processor{eng: eng, tol: tol}
}

// clipped pairs a lake with its buffered, region-clipped geometry.
type clipped struct {
	lake hydro.Lake
	geom geo.Geometry
}

// Process computes the local components of one region. Lakes and rivers are
// the features intersecting the region, as returned by the provider; they
// are cropped (not discarded) at the region edge.
func (p *Processor) Process(ctx context.Context, reg hydro.Region, lakes []hydro.Lake, rivers []hydro.River) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	usable, err := p.usableArea(reg)
	if err != nil {
		return nil, err
	}
	if usable.IsEmpty() {
		return &Result{}, nil
	}

	cls, err := p.clipLakes(reg.ID, usable, lakes)
	if err != nil {
		return nil, err
	}
	if len(cls) == 0 {
		return &Result{}, nil
	}

	riverGeoms, err := p.clipRivers(reg.ID, usable, rivers)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts, err := p.connectionCounts(cls, riverGeoms)
	if err != nil {
		return nil, fmt.Errorf("region %d: connection counts: %w", reg.ID, err)
	}

	// With no rivers there is nothing to union: every lake is its own
	// singleton component.
	if len(riverGeoms) == 0 {
		return p.singletons(reg.ID, cls), nil
	}

	return p.unionComponents(ctx, reg.ID, cls, riverGeoms, counts)
}

// usableArea drops region parts below the sliver threshold and reassembles
// the rest.
func (p *Processor) usableArea(reg hydro.Region) (geo.Geometry, error) {
	parts, err := p.eng.Parts(reg.Geom)
	if err != nil {
		return nil, fmt.Errorf("region %d: split region: %w", reg.ID, err)
	}
	kept := make([]geo.Geometry, 0, len(parts))
	for _, part := range parts {
		if part.Area() >= p.tol.MinPartArea {
			kept = append(kept, part)
		}
	}
	usable, err := p.eng.Union(kept)
	if err != nil {
		return nil, fmt.Errorf("region %d: reassemble region: %w", reg.ID, err)
	}
	return usable, nil
}

func (p *Processor) clipLakes(regionID int, usable geo.Geometry, lakes []hydro.Lake) ([]clipped, error) {
	out := make([]clipped, 0, len(lakes))
	for _, lake := range lakes {
		inter, err := p.eng.Intersection(lake.Geom, usable)
		if err != nil {
			return nil, fmt.Errorf("region %d: clip lake %s: %w", regionID, lake.WaterbodyKey, err)
		}
		if inter.IsEmpty() {
			continue
		}
		buf, err := p.eng.Buffer(inter, p.tol.LakeBuffer)
		if err != nil {
			return nil, fmt.Errorf("region %d: buffer lake %s: %w", regionID, lake.WaterbodyKey, err)
		}
		out = append(out, clipped{lake: lake, geom: buf})
	}
	return out, nil
}

func (p *Processor) clipRivers(regionID int, usable geo.Geometry, rivers []hydro.River) ([]geo.Geometry, error) {
	out := make([]geo.Geometry, 0, len(rivers))
	for i, river := range rivers {
		inter, err := p.eng.Intersection(river.Geom, usable)
		if err != nil {
			return nil, fmt.Errorf("region %d: clip river %d: %w", regionID, i, err)
		}
		if inter.IsEmpty() {
			continue
		}
		buf, err := p.eng.Buffer(inter, p.tol.RiverBuffer)
		if err != nil {
			return nil, fmt.Errorf("region %d: buffer river %d: %w", regionID, i, err)
		}
		out = append(out, buf)
	}
	return out, nil
}

// connectionCounts returns, per clipped lake, the number of distinct river
// features intersecting it.
func (p *Processor) connectionCounts(cls []clipped, rivers []geo.Geometry) ([]int, error) {
	counts := make([]int, len(cls))
	for i, cl := range cls {
		lb := cl.geom.Bounds()
		for _, river := range rivers {
			if !lb.Overlaps(river.Bounds()) {
				continue
			}
			hit, err := p.eng.Intersects(cl.geom, river)
			if err != nil {
				return nil, err
			}
			if hit {
				counts[i]++
			}
		}
	}
	return counts, nil
}

// singletons emits one component per lake for the zero-river fast path.
func (p *Processor) singletons(regionID int, cls []clipped) *Result {
	order := make([]int, len(cls))
	for i := range order {
		order[i] = i
	}
	sortByGeometry(order, func(i int) geo.Geometry { return cls[i].geom })

	res := &Result{
		Rows:       make([]hydro.LakeRow, 0, len(cls)),
		Components: make([]Component, 0, len(cls)),
	}
	for localID, idx := range order {
		cl := cls[idx]
		res.Components = append(res.Components, Component{
			LocalID:        localID,
			WatershedGroup: cl.lake.WatershedGroup,
			Geom:           cl.geom,
		})
		res.Rows = append(res.Rows, hydro.LakeRow{
			RegionID:         regionID,
			LocalComponentID: localID,
			WaterbodyKey:     cl.lake.WaterbodyKey,
			WatershedGroup:   cl.lake.WatershedGroup,
			Name:             cl.lake.Name,
			ConnectionCount:  0,
		})
	}
	return res
}

// unionComponents unions all buffered geometry, splits it into disjoint
// pieces, and keeps the pieces containing at least one lake.
func (p *Processor) unionComponents(ctx context.Context, regionID int, cls []clipped, rivers []geo.Geometry, counts []int) (*Result, error) {
	all := make([]geo.Geometry, 0, len(cls)+len(rivers))
	for _, cl := range cls {
		all = append(all, cl.geom)
	}
	all = append(all, rivers...)

	union, err := p.eng.Union(all)
	if err != nil {
		return nil, fmt.Errorf("region %d: union: %w", regionID, err)
	}
	pieces, err := p.eng.Parts(union)
	if err != nil {
		return nil, fmt.Errorf("region %d: split union: %w", regionID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Member lakes per piece. Pieces without lakes are river-only and
	// contribute no output.
	members := make([][]int, len(pieces))
	assigned := make([]int, len(cls))
	for i := range assigned {
		assigned[i] = -1
	}
	for pi, piece := range pieces {
		pb := piece.Bounds()
		for li, cl := range cls {
			if assigned[li] != -1 || !pb.Overlaps(cl.geom.Bounds()) {
				continue
			}
			hit, err := p.eng.Intersects(piece, cl.geom)
			if err != nil {
				return nil, fmt.Errorf("region %d: join lake %s: %w", regionID, cl.lake.WaterbodyKey, err)
			}
			if hit {
				members[pi] = append(members[pi], li)
				assigned[li] = pi
			}
		}
	}
	for li, pi := range assigned {
		if pi == -1 {
			return nil, fmt.Errorf("region %d: lake %s fell outside every union piece", regionID, cls[li].lake.WaterbodyKey)
		}
	}

	// Dense local ids over lake-bearing pieces, ordered by the piece's
	// envelope lower-left corner so numbering never depends on input
	// row order.
	kept := make([]int, 0, len(pieces))
	for pi := range pieces {
		if len(members[pi]) > 0 {
			kept = append(kept, pi)
		}
	}
	sortByGeometry(kept, func(pi int) geo.Geometry { return pieces[pi] })

	res := &Result{}
	for localID, pi := range kept {
		member := members[pi]
		sort.Slice(member, func(a, b int) bool {
			return cls[member[a]].lake.WaterbodyKey < cls[member[b]].lake.WaterbodyKey
		})
		res.Components = append(res.Components, Component{
			LocalID:        localID,
			WatershedGroup: cls[member[0]].lake.WatershedGroup,
			Geom:           pieces[pi],
		})
		for _, li := range member {
			cl := cls[li]
			res.Rows = append(res.Rows, hydro.LakeRow{
				RegionID:         regionID,
				LocalComponentID: localID,
				WaterbodyKey:     cl.lake.WaterbodyKey,
				WatershedGroup:   cl.lake.WatershedGroup,
				Name:             cl.lake.Name,
				ConnectionCount:  counts[li],
			})
		}
	}
	return res, nil
}

// sortByGeometry orders indices by the envelope lower-left corner of the
// geometry each index refers to.
func sortByGeometry(idx []int, geom func(int) geo.Geometry) {
	sort.Slice(idx, func(a, b int) bool {
		ba, bb := geom(idx[a]).Bounds(), geom(idx[b]).Bounds()
		if ba.MinX != bb.MinX {
			return ba.MinX < bb.MinX
		}
		return ba.MinY < bb.MinY
	})
}

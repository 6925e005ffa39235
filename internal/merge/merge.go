package merge

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/bcwaterways/lakenet/internal/geo"
	"github.com/bcwaterways/lakenet/internal/hydro"
)

// ErrUnknownComponent indicates a boundary fragment references a
// (region, local component) pair absent from the lake table. Ignoring it
// would silently corrupt the final partition, so it is surfaced instead.
var ErrUnknownComponent = errors.New("fragment references a component absent from the lake table")

// BoundaryEdges computes the equivalence edges implied by fragment overlap.
// Only pairs from different regions are tested: same-region adjacency was
// already resolved by that region's union step. An envelope check screens
// pairs before the exact intersection test.
func BoundaryEdges(ctx context.Context, eng geo.Engine, a *Assigner, frags []hydro.Fragment) ([][2]int64, error) {
	refs := make([]struct {
		gid    int64
		region int
		geom   geo.Geometry
		bounds geo.Box
	}, len(frags))
	for i, f := range frags {
		gid, ok := a.GlobalID(f.RegionID, f.LocalComponentID)
		if !ok {
			return nil, fmt.Errorf("merge: region %d component %d: %w", f.RegionID, f.LocalComponentID, ErrUnknownComponent)
		}
		refs[i].gid = gid
		refs[i].region = f.RegionID
		refs[i].geom = f.Geom
		refs[i].bounds = f.Geom.Bounds()
	}

	var edges [][2]int64
	for i := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(refs); j++ {
			if refs[i].region == refs[j].region {
				continue
			}
			if refs[i].gid == refs[j].gid || !refs[i].bounds.Overlaps(refs[j].bounds) {
				continue
			}
			hit, err := eng.Intersects(refs[i].geom, refs[j].geom)
			if err != nil {
				return nil, fmt.Errorf("merge: fragment overlap test: %w", err)
			}
			if hit {
				edges = append(edges, [2]int64{refs[i].gid, refs[j].gid})
			}
		}
	}
	return edges, nil
}

// IdentityEdges computes the equivalence edges implied by shared real-world
// identity: rows with identical non-empty (waterbody_key, name) denote the
// same lake even when region processing assigned them different components.
// Unnamed rows are excluded; a bare key is not a reliable identity for them.
func IdentityEdges(a *Assigner, rows []hydro.LakeRow) ([][2]int64, error) {
	type identity struct {
		key  string
		name string
	}
	groups := make(map[identity]map[int64]bool)
	for _, r := range rows {
		if r.Name == "" {
			continue
		}
		gid, ok := a.GlobalID(r.RegionID, r.LocalComponentID)
		if !ok {
			return nil, fmt.Errorf("merge: region %d component %d: %w", r.RegionID, r.LocalComponentID, ErrUnknownComponent)
		}
		id := identity{key: r.WaterbodyKey, name: r.Name}
		if groups[id] == nil {
			groups[id] = make(map[int64]bool)
		}
		groups[id][gid] = true
	}

	keys := make([]identity, 0, len(groups))
	for id := range groups {
		keys = append(keys, id)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].key != keys[j].key {
			return keys[i].key < keys[j].key
		}
		return keys[i].name < keys[j].name
	})

	var edges [][2]int64
	for _, id := range keys {
		gids := make([]int64, 0, len(groups[id]))
		for gid := range groups[id] {
			gids = append(gids, gid)
		}
		if len(gids) < 2 {
			continue
		}
		sort.Slice(gids, func(i, j int) bool { return gids[i] < gids[j] })
		for _, gid := range gids[1:] {
			edges = append(edges, [2]int64{gids[0], gid})
		}
	}
	return edges, nil
}

// Reconcile runs the full global reconciliation: assign global ids, gather
// boundary and identity edges into one union-find, and emit the final table
// with every row's id collapsed to its class minimum. Because both edge
// sources feed a single structure resolved once, the result is transitive
// across mixed chains (geometric then named, or the reverse), idempotent,
// and independent of edge order.
func Reconcile(ctx context.Context, eng geo.Engine, rows []hydro.LakeRow, frags []hydro.Fragment) ([]hydro.NetworkRow, error) {
	a := NewAssigner(rows)

	uf := NewUnionFind()
	for gid := int64(0); gid < a.Total(); gid++ {
		uf.Add(gid)
	}

	boundary, err := BoundaryEdges(ctx, eng, a, frags)
	if err != nil {
		return nil, err
	}
	identity, err := IdentityEdges(a, rows)
	if err != nil {
		return nil, err
	}
	for _, e := range boundary {
		uf.Union(e[0], e[1])
	}
	for _, e := range identity {
		uf.Union(e[0], e[1])
	}

	out := make([]hydro.NetworkRow, 0, len(rows))
	for _, r := range rows {
		gid, ok := a.GlobalID(r.RegionID, r.LocalComponentID)
		if !ok {
			return nil, fmt.Errorf("merge: region %d component %d: %w", r.RegionID, r.LocalComponentID, ErrUnknownComponent)
		}
		out = append(out, hydro.NetworkRow{
			GlobalNetworkID: uf.Find(gid),
			RegionID:        r.RegionID,
			WaterbodyKey:    r.WaterbodyKey,
			WatershedGroup:  r.WatershedGroup,
			Name:            r.Name,
			ConnectionCount: r.ConnectionCount,
		})
	}
	return out, nil
}

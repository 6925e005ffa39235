package merge

import (
	"sort"

	"github.com/bcwaterways/lakenet/internal/hydro"
)

// componentKey identifies a local component across the whole dataset.
type componentKey struct {
	regionID int
	localID  int
}

// Assigner maps region-scoped local component ids, which may have gaps and
// collide across regions, onto a dense global id space [0, Total()).
// Regions are offset in ascending region-id order by the cumulative count of
// distinct components in all prior regions; within a region, components rank
// by ascending local id. The assignment depends only on the set of
// (region, local id) pairs, never on row order.
type Assigner struct {
	ids   map[componentKey]int64
	total int64
}

// NewAssigner builds the global assignment from the complete per-lake table.
func NewAssigner(rows []hydro.LakeRow) *Assigner {
	locals := make(map[int]map[int]bool)
	for _, r := range rows {
		if locals[r.RegionID] == nil {
			locals[r.RegionID] = make(map[int]bool)
		}
		locals[r.RegionID][r.LocalComponentID] = true
	}

	regions := make([]int, 0, len(locals))
	for id := range locals {
		regions = append(regions, id)
	}
	sort.Ints(regions)

	a := &Assigner{ids: make(map[componentKey]int64)}
	for _, regionID := range regions {
		ids := make([]int, 0, len(locals[regionID]))
		for localID := range locals[regionID] {
			ids = append(ids, localID)
		}
		sort.Ints(ids)
		for rank, localID := range ids {
			a.ids[componentKey{regionID: regionID, localID: localID}] = a.total + int64(rank)
		}
		a.total += int64(len(ids))
	}
	return a
}

// GlobalID returns the global id for a local component, or false if the
// pair never appeared in the lake table.
func (a *Assigner) GlobalID(regionID, localID int) (int64, bool) {
	id, ok := a.ids[componentKey{regionID: regionID, localID: localID}]
	return id, ok
}

// Total returns the number of distinct components; global ids cover
// [0, Total()) contiguously.
func (a *Assigner) Total() int64 { return a.total }

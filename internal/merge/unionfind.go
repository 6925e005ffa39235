// Package merge converts region-scoped component ids into one global id
// space and collapses equivalence classes discovered from boundary-fragment
// overlap and shared named-lake identity.
package merge

import "sort"

// UnionFind partitions int64 ids into equivalence classes with path
// compression. The representative of a class is always its minimum member,
// which is enforced structurally: a union always attaches the root with the
// larger id under the root with the smaller id.
type UnionFind struct {
	parent map[int64]int64
}

// NewUnionFind creates an empty UnionFind.
func NewUnionFind() *UnionFind {
	return &UnionFind{parent: make(map[int64]int64)}
}

// Add inserts an id as its own singleton set. Adding an existing id is a
// no-op.
func (uf *UnionFind) Add(x int64) {
	if _, ok := uf.parent[x]; !ok {
		uf.parent[x] = x
	}
}

// Find returns the representative (minimum member) of the set containing x.
// Ids not yet added are auto-added as singletons.
func (uf *UnionFind) Find(x int64) int64 {
	if _, ok := uf.parent[x]; !ok {
		uf.parent[x] = x
		return x
	}
	if uf.parent[x] != x {
		uf.parent[x] = uf.Find(uf.parent[x]) // path compression
	}
	return uf.parent[x]
}

// Union merges the sets containing x and y. The smaller root becomes the
// parent, so roots remain class minima.
func (uf *UnionFind) Union(x, y int64) {
	rx, ry := uf.Find(x), uf.Find(y)
	switch {
	case rx == ry:
	case rx < ry:
		uf.parent[ry] = rx
	default:
		uf.parent[rx] = ry
	}
}

// Mapping returns the resolved id→representative mapping for every added
// id. Applying the mapping to already-mapped ids is a no-op: each
// representative maps to itself.
func (uf *UnionFind) Mapping() map[int64]int64 {
	out := make(map[int64]int64, len(uf.parent))
	ids := make([]int64, 0, len(uf.parent))
	for id := range uf.parent {
		ids = append(ids, id)
	}
	// Deterministic find order keeps compression layout reproducible.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		out[id] = uf.Find(id)
	}
	return out
}

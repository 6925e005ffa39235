// Package hydro holds the domain types shared across the pipeline.
package hydro

import "github.com/bcwaterways/lakenet/internal/geo"

// Region is one spatial partition of the study area. Regions are disjoint
// except for negligible boundary overlap and are processed in ascending ID
// order within a run.
type Region struct {
	ID   int
	Geom geo.Geometry
}

// Lake is a water body with a stable key. Name may be empty; a real-world
// lake split across regions appears once per region it touches.
type Lake struct {
	WaterbodyKey   string
	WatershedGroup string
	Name           string
	Geom           geo.Geometry
}

// River is a linear or areal connector feature. Rivers carry no identity
// and never appear in output.
type River struct {
	Geom geo.Geometry
}

// LakeRow is the per-lake checkpoint record produced for each region.
// LocalComponentID is dense within the region but not unique across regions.
type LakeRow struct {
	RegionID         int
	LocalComponentID int
	WaterbodyKey     string
	WatershedGroup   string
	Name             string
	ConnectionCount  int
}

// Fragment is the slice of a local component lying within the boundary band
// of its region. Fragments exist only to detect cross-region connections.
type Fragment struct {
	RegionID         int
	LocalComponentID int
	WatershedGroup   string
	Geom             geo.Geometry
}

// NetworkRow is one row of the final output table: a water body occurrence
// with its global network id after all merges.
type NetworkRow struct {
	GlobalNetworkID int64
	RegionID        int
	WaterbodyKey    string
	WatershedGroup  string
	Name            string
	ConnectionCount int
}

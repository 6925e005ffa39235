// Package provider supplies water-body features to the pipeline. The Source
// interface is the pipeline's only view of the spatial data; the SQLite
// implementation reads WKB feature tables prepared by an upstream import.
package provider

import (
	"context"

	"github.com/bcwaterways/lakenet/internal/hydro"
)

// Source enumerates the run's regions and returns the features intersecting
// each one. Features straddling a region border are returned for every
// region they touch; the processor crops them.
type Source interface {
	// Regions returns the fixed, ordered partition of the study area.
	Regions(ctx context.Context) ([]hydro.Region, error)

	// QueryLakes returns the lakes intersecting the region.
	QueryLakes(ctx context.Context, reg hydro.Region) ([]hydro.Lake, error)

	// QueryRivers returns the river features intersecting the region.
	QueryRivers(ctx context.Context, reg hydro.Region) ([]hydro.River, error)
}

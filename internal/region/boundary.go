package region

import (
	"fmt"

	"github.com/bcwaterways/lakenet/internal/geo"
	"github.com/bcwaterways/lakenet/internal/hydro"
)

// ExtractFragments clips each component to the band along the region's
// border. Only components near the border can continue into a neighboring
// region, so their band slices are the minimal evidence the cross-region
// merge needs; interior components contribute nothing.
func ExtractFragments(eng geo.Engine, reg hydro.Region, comps []Component, band float64) ([]hydro.Fragment, error) {
	eroded, err := eng.Buffer(reg.Geom, -band)
	if err != nil {
		return nil, fmt.Errorf("region %d: erode region: %w", reg.ID, err)
	}
	// If erosion swallowed the whole region, the difference below leaves
	// the region itself as the band.
	bandGeom, err := eng.Difference(reg.Geom, eroded)
	if err != nil {
		return nil, fmt.Errorf("region %d: boundary band: %w", reg.ID, err)
	}

	var frags []hydro.Fragment
	bb := bandGeom.Bounds()
	for _, comp := range comps {
		if bandGeom.IsEmpty() || !bb.Overlaps(comp.Geom.Bounds()) {
			continue
		}
		inter, err := eng.Intersection(comp.Geom, bandGeom)
		if err != nil {
			return nil, fmt.Errorf("region %d: clip component %d to band: %w", reg.ID, comp.LocalID, err)
		}
		if inter.IsEmpty() {
			continue
		}
		frags = append(frags, hydro.Fragment{
			RegionID:         reg.ID,
			LocalComponentID: comp.LocalID,
			WatershedGroup:   comp.WatershedGroup,
			Geom:             inter,
		})
	}
	return frags, nil
}

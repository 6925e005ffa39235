// Package geo defines the geometry engine interface the pipeline is written
// against. The production implementation wraps GEOS; tests use a pure-Go
// rectangle engine from the geotest subpackage.
package geo

// Box is an axis-aligned envelope.
type Box struct {
	MinX, MinY, MaxX, MaxY float64
}

// Overlaps reports whether two envelopes share any point. Touching edges
// count as overlap, matching the closed-set semantics of Intersects.
func (b Box) Overlaps(o Box) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX &&
		b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Geometry is an opaque polygonal geometry produced and consumed by an Engine.
// Geometries from different engines must not be mixed.
type Geometry interface {
	// Area returns the polygonal area in squared map units.
	Area() float64
	// IsEmpty reports whether the geometry contains no points.
	IsEmpty() bool
	// Bounds returns the envelope. Undefined for empty geometries.
	Bounds() Box
}

// Engine provides the spatial primitives the pipeline needs. All operations
// are pure: inputs are never mutated.
type Engine interface {
	// Buffer expands the geometry outward by dist map units. A negative
	// dist erodes inward; eroding past the geometry's width yields an
	// empty geometry.
	Buffer(g Geometry, dist float64) (Geometry, error)

	// Union merges any number of geometries into one. An empty input
	// yields an empty geometry.
	Union(gs []Geometry) (Geometry, error)

	// Parts splits a (possibly multi-part) geometry into its maximal
	// connected polygonal pieces.
	Parts(g Geometry) ([]Geometry, error)

	// Intersects reports whether a and b share any point.
	Intersects(a, b Geometry) (bool, error)

	// Intersection returns the shared portion of a and b.
	Intersection(a, b Geometry) (Geometry, error)

	// Difference returns the portion of a not covered by b.
	Difference(a, b Geometry) (Geometry, error)

	// FromWKB decodes a geometry from well-known binary.
	FromWKB(wkb []byte) (Geometry, error)

	// ToWKB encodes a geometry as well-known binary.
	ToWKB(g Geometry) ([]byte, error)
}

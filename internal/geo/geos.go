package geo

import (
	"fmt"
	"sync"

	"github.com/twpayne/go-geos"
)

// bufferQuadSegs is the number of segments used to approximate a quarter
// circle when buffering.
const bufferQuadSegs = 8

// GEOSEngine implements Engine on top of the GEOS library. GEOS reports
// failures by panicking through the context error handler, so every
// operation runs under a recover that converts panics into errors.
// A single mutex serializes access: a GEOS context is not safe for
// concurrent use.
type GEOSEngine struct {
	mu  sync.Mutex
	ctx *geos.Context
}

// NewGEOSEngine creates an engine with a fresh GEOS context.
func NewGEOSEngine() *GEOSEngine {
	return &GEOSEngine{ctx: geos.NewContext()}
}

type geosGeom struct {
	g *geos.Geom
}

func (g *geosGeom) Area() float64 { return g.g.Area() }
func (g *geosGeom) IsEmpty() bool { return g.g.IsEmpty() }

func (g *geosGeom) Bounds() Box {
	b := g.g.Bounds()
	return Box{MinX: b.MinX, MinY: b.MinY, MaxX: b.MaxX, MaxY: b.MaxY}
}

// unwrap extracts the underlying GEOS geometry, rejecting geometries that
// came from a different engine.
func unwrap(g Geometry) (*geos.Geom, error) {
	gg, ok := g.(*geosGeom)
	if !ok {
		return nil, fmt.Errorf("geo: geometry %T was not created by the GEOS engine", g)
	}
	return gg.g, nil
}

func (e *GEOSEngine) do(op string, f func()) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("geo: %s: %v", op, r)
		}
	}()
	f()
	return nil
}

func (e *GEOSEngine) Buffer(g Geometry, dist float64) (Geometry, error) {
	gg, err := unwrap(g)
	if err != nil {
		return nil, err
	}
	var out *geos.Geom
	if err := e.do("buffer", func() { out = gg.Buffer(dist, bufferQuadSegs) }); err != nil {
		return nil, err
	}
	return &geosGeom{g: out}, nil
}

// Union merges geometries with a divide-and-conquer cascade, which is far
// faster than a left fold for large inputs.
func (e *GEOSEngine) Union(gs []Geometry) (Geometry, error) {
	if len(gs) == 0 {
		var empty *geos.Geom
		if err := e.do("union", func() {
			g, werr := e.ctx.NewGeomFromWKT("POLYGON EMPTY")
			if werr != nil {
				panic(werr)
			}
			empty = g
		}); err != nil {
			return nil, err
		}
		return &geosGeom{g: empty}, nil
	}
	raw := make([]*geos.Geom, len(gs))
	for i, g := range gs {
		gg, err := unwrap(g)
		if err != nil {
			return nil, err
		}
		raw[i] = gg
	}
	var out *geos.Geom
	if err := e.do("union", func() { out = cascadedUnion(raw) }); err != nil {
		return nil, err
	}
	return &geosGeom{g: out}, nil
}

// cascadedUnion unions geometries pairwise over halves of the input.
// Must be called with the engine mutex held.
func cascadedUnion(gs []*geos.Geom) *geos.Geom {
	if len(gs) == 1 {
		return gs[0]
	}
	mid := len(gs) / 2
	return cascadedUnion(gs[:mid]).Union(cascadedUnion(gs[mid:]))
}

func (e *GEOSEngine) Parts(g Geometry) ([]Geometry, error) {
	gg, err := unwrap(g)
	if err != nil {
		return nil, err
	}
	var parts []Geometry
	if err := e.do("parts", func() {
		n := gg.NumGeometries()
		parts = make([]Geometry, 0, n)
		for i := 0; i < n; i++ {
			p := gg.Geometry(i)
			if p.IsEmpty() {
				continue
			}
			parts = append(parts, &geosGeom{g: p.Clone()})
		}
	}); err != nil {
		return nil, err
	}
	return parts, nil
}

func (e *GEOSEngine) Intersects(a, b Geometry) (bool, error) {
	ga, err := unwrap(a)
	if err != nil {
		return false, err
	}
	gb, err := unwrap(b)
	if err != nil {
		return false, err
	}
	var hit bool
	if err := e.do("intersects", func() { hit = ga.Intersects(gb) }); err != nil {
		return false, err
	}
	return hit, nil
}

func (e *GEOSEngine) Intersection(a, b Geometry) (Geometry, error) {
	return e.binary("intersection", a, b, func(x, y *geos.Geom) *geos.Geom { return x.Intersection(y) })
}

func (e *GEOSEngine) Difference(a, b Geometry) (Geometry, error) {
	return e.binary("difference", a, b, func(x, y *geos.Geom) *geos.Geom { return x.Difference(y) })
}

func (e *GEOSEngine) binary(op string, a, b Geometry, f func(x, y *geos.Geom) *geos.Geom) (Geometry, error) {
	ga, err := unwrap(a)
	if err != nil {
		return nil, err
	}
	gb, err := unwrap(b)
	if err != nil {
		return nil, err
	}
	var out *geos.Geom
	if err := e.do(op, func() { out = f(ga, gb) }); err != nil {
		return nil, err
	}
	return &geosGeom{g: out}, nil
}

func (e *GEOSEngine) FromWKB(wkb []byte) (Geometry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, err := e.ctx.NewGeomFromWKB(wkb)
	if err != nil {
		return nil, fmt.Errorf("geo: decode WKB: %w", err)
	}
	return &geosGeom{g: g}, nil
}

func (e *GEOSEngine) ToWKB(g Geometry) ([]byte, error) {
	gg, err := unwrap(g)
	if err != nil {
		return nil, err
	}
	var out []byte
	if err := e.do("encode WKB", func() { out = gg.ToWKB() }); err != nil {
		return nil, err
	}
	return out, nil
}

// Package geotest provides a pure-Go geo.Engine over unions of axis-aligned
// rectangles, so pipeline packages can be tested without GEOS. Area is the
// sum of member rectangle areas, which is exact whenever members do not
// overlap — tests construct geometries that way.
package geotest

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bcwaterways/lakenet/internal/geo"
)

// Rect is one axis-aligned rectangle.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

func (r Rect) valid() bool {
	return r.MaxX > r.MinX && r.MaxY > r.MinY
}

func (r Rect) area() float64 {
	return (r.MaxX - r.MinX) * (r.MaxY - r.MinY)
}

// overlaps uses closed intervals: rectangles sharing only an edge still
// count as touching, mirroring GEOS Intersects.
func (r Rect) overlaps(o Rect) bool {
	return r.MinX <= o.MaxX && o.MinX <= r.MaxX &&
		r.MinY <= o.MaxY && o.MinY <= r.MaxY
}

func (r Rect) clip(o Rect) (Rect, bool) {
	c := Rect{
		MinX: max(r.MinX, o.MinX),
		MinY: max(r.MinY, o.MinY),
		MaxX: min(r.MaxX, o.MaxX),
		MaxY: min(r.MaxY, o.MaxY),
	}
	return c, c.valid()
}

// Geom is a set of rectangles implementing geo.Geometry.
type Geom struct {
	rects []Rect
}

// G builds a geometry from rectangles, dropping degenerate ones.
func G(rects ...Rect) *Geom {
	g := &Geom{}
	for _, r := range rects {
		if r.valid() {
			g.rects = append(g.rects, r)
		}
	}
	return g
}

// R is shorthand for a single-rectangle geometry.
func R(minX, minY, maxX, maxY float64) *Geom {
	return G(Rect{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY})
}

func (g *Geom) Area() float64 {
	var a float64
	for _, r := range g.rects {
		a += r.area()
	}
	return a
}

func (g *Geom) IsEmpty() bool { return len(g.rects) == 0 }

func (g *Geom) Bounds() geo.Box {
	if len(g.rects) == 0 {
		return geo.Box{}
	}
	b := geo.Box{MinX: g.rects[0].MinX, MinY: g.rects[0].MinY, MaxX: g.rects[0].MaxX, MaxY: g.rects[0].MaxY}
	for _, r := range g.rects[1:] {
		b.MinX = min(b.MinX, r.MinX)
		b.MinY = min(b.MinY, r.MinY)
		b.MaxX = max(b.MaxX, r.MaxX)
		b.MaxY = max(b.MaxY, r.MaxY)
	}
	return b
}

// Engine implements geo.Engine over Geom values.
type Engine struct{}

// NewEngine returns a rectangle-set engine.
func NewEngine() *Engine { return &Engine{} }

func toGeom(g geo.Geometry) (*Geom, error) {
	rg, ok := g.(*Geom)
	if !ok {
		return nil, fmt.Errorf("geotest: geometry %T was not created by the rectangle engine", g)
	}
	return rg, nil
}

func (e *Engine) Buffer(g geo.Geometry, dist float64) (geo.Geometry, error) {
	rg, err := toGeom(g)
	if err != nil {
		return nil, err
	}
	out := &Geom{}
	for _, r := range rg.rects {
		b := Rect{MinX: r.MinX - dist, MinY: r.MinY - dist, MaxX: r.MaxX + dist, MaxY: r.MaxY + dist}
		if b.valid() {
			out.rects = append(out.rects, b)
		}
	}
	return out, nil
}

func (e *Engine) Union(gs []geo.Geometry) (geo.Geometry, error) {
	out := &Geom{}
	for _, g := range gs {
		rg, err := toGeom(g)
		if err != nil {
			return nil, err
		}
		out.rects = append(out.rects, rg.rects...)
	}
	return out, nil
}

// Parts groups member rectangles into connected clusters: two rectangles
// belong to the same part when a chain of overlaps links them.
func (e *Engine) Parts(g geo.Geometry) ([]geo.Geometry, error) {
	rg, err := toGeom(g)
	if err != nil {
		return nil, err
	}
	n := len(rg.rects)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if rg.rects[i].overlaps(rg.rects[j]) {
				parent[find(i)] = find(j)
			}
		}
	}
	groups := make(map[int]*Geom)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		root := find(i)
		if _, ok := groups[root]; !ok {
			groups[root] = &Geom{}
			order = append(order, root)
		}
		groups[root].rects = append(groups[root].rects, rg.rects[i])
	}
	parts := make([]geo.Geometry, 0, len(order))
	for _, root := range order {
		parts = append(parts, groups[root])
	}
	return parts, nil
}

func (e *Engine) Intersects(a, b geo.Geometry) (bool, error) {
	ra, err := toGeom(a)
	if err != nil {
		return false, err
	}
	rb, err := toGeom(b)
	if err != nil {
		return false, err
	}
	for _, x := range ra.rects {
		for _, y := range rb.rects {
			if x.overlaps(y) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (e *Engine) Intersection(a, b geo.Geometry) (geo.Geometry, error) {
	ra, err := toGeom(a)
	if err != nil {
		return nil, err
	}
	rb, err := toGeom(b)
	if err != nil {
		return nil, err
	}
	out := &Geom{}
	for _, x := range ra.rects {
		for _, y := range rb.rects {
			if c, ok := x.clip(y); ok {
				out.rects = append(out.rects, c)
			}
		}
	}
	return out, nil
}

func (e *Engine) Difference(a, b geo.Geometry) (geo.Geometry, error) {
	ra, err := toGeom(a)
	if err != nil {
		return nil, err
	}
	rb, err := toGeom(b)
	if err != nil {
		return nil, err
	}
	remaining := append([]Rect(nil), ra.rects...)
	for _, y := range rb.rects {
		var next []Rect
		for _, x := range remaining {
			next = append(next, subtract(x, y)...)
		}
		remaining = next
	}
	return &Geom{rects: remaining}, nil
}

// subtract returns r minus s as up to four rectangles.
func subtract(r, s Rect) []Rect {
	c, ok := r.clip(s)
	if !ok {
		return []Rect{r}
	}
	var out []Rect
	add := func(candidate Rect) {
		if candidate.valid() {
			out = append(out, candidate)
		}
	}
	add(Rect{MinX: r.MinX, MinY: r.MinY, MaxX: r.MaxX, MaxY: c.MinY}) // below
	add(Rect{MinX: r.MinX, MinY: c.MaxY, MaxX: r.MaxX, MaxY: r.MaxY}) // above
	add(Rect{MinX: r.MinX, MinY: c.MinY, MaxX: c.MinX, MaxY: c.MaxY}) // left
	add(Rect{MinX: c.MaxX, MinY: c.MinY, MaxX: r.MaxX, MaxY: c.MaxY}) // right
	return out
}

// ToWKB encodes the rectangle list as little-endian float64 quadruples.
// This is not real WKB; it only needs to round-trip through this engine.
func (e *Engine) ToWKB(g geo.Geometry) ([]byte, error) {
	rg, err := toGeom(g)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(rg.rects))); err != nil {
		return nil, fmt.Errorf("geotest: encode: %w", err)
	}
	for _, r := range rg.rects {
		for _, v := range [4]float64{r.MinX, r.MinY, r.MaxX, r.MaxY} {
			if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
				return nil, fmt.Errorf("geotest: encode: %w", err)
			}
		}
	}
	return buf.Bytes(), nil
}

func (e *Engine) FromWKB(wkb []byte) (geo.Geometry, error) {
	buf := bytes.NewReader(wkb)
	var n uint32
	if err := binary.Read(buf, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("geotest: decode: %w", err)
	}
	g := &Geom{rects: make([]Rect, 0, n)}
	for i := uint32(0); i < n; i++ {
		var v [4]float64
		for j := range v {
			if err := binary.Read(buf, binary.LittleEndian, &v[j]); err != nil {
				return nil, fmt.Errorf("geotest: decode: %w", err)
			}
		}
		g.rects = append(g.rects, Rect{MinX: v[0], MinY: v[1], MaxX: v[2], MaxY: v[3]})
	}
	return g, nil
}

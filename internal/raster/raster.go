// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package raster scan-converts destination quadrilaterals into per-row spans.
//
// Correct interior coverage is only guaranteed for convex quads with consistent
// winding. Non-convex or self-intersecting quads are not rejected, their span
// table may overestimate the interior.
package raster

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

// Largest absolute vertex coordinate accepted for rasterization
const MaxCoord = 1 << 20

// Returned for quads with a vertex beyond MaxCoord
var ErrCoordRange = errors.New("quad coordinate out of range")

// Four ordered vertices in destination space. Edges connect consecutive
// vertices, wrapping from the last to the first.
type Quad [4]image.Point

// Builds a quad from 8 integers x0,y0,x1,y1,x2,y2,x3,y3
func QuadFromInts(c [8]int) Quad {
	return Quad{{c[0], c[1]}, {c[2], c[3]}, {c[4], c[5]}, {c[6], c[7]}}
}

// Returns the quad as 8 integers x0,y0,x1,y1,x2,y2,x3,y3
func (q Quad) Ints() [8]int {
	return [8]int{q[0].X, q[0].Y, q[1].X, q[1].Y, q[2].X, q[2].Y, q[3].X, q[3].Y}
}

// Returns the axis-aligned rectangle with the given corners at its top left
// and bottom right pixel, in clockwise order starting top left
func RectQuad(r image.Rectangle) Quad {
	return Quad{{r.Min.X, r.Min.Y}, {r.Max.X - 1, r.Min.Y}, {r.Max.X - 1, r.Max.Y - 1}, {r.Min.X, r.Max.Y - 1}}
}

// Parses 8 comma-separated integers into a quad
func ParseQuad(s string) (q Quad, err error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == ' ' })
	if len(fields) != 8 {
		return q, fmt.Errorf("quad needs 8 coordinates, got %d", len(fields))
	}
	var c [8]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return q, fmt.Errorf("invalid coordinate '%s'", f)
		}
		c[i] = v
	}
	return QuadFromInts(c), nil
}

// Returns an error if any vertex lies beyond MaxCoord in x or y
func (q Quad) Check() error {
	for i, p := range q {
		if p.X < -MaxCoord || p.X > MaxCoord || p.Y < -MaxCoord || p.Y > MaxCoord {
			return fmt.Errorf("%w: vertex %d at %v, limit %d", ErrCoordRange, i, p, MaxCoord)
		}
	}
	return nil
}

func (q Quad) String() string {
	return fmt.Sprintf("[%v %v %v %v]", q[0], q[1], q[2], q[3])
}

// Returns the smallest rectangle containing all four vertices
func (q Quad) Bounds() image.Rectangle {
	r := image.Rectangle{q[0], q[0].Add(image.Point{1, 1})}
	for _, p := range q[1:] {
		r = r.Union(image.Rectangle{p, p.Add(image.Point{1, 1})})
	}
	return r
}

// An inclusive horizontal interval
type Span struct {
	Left  int
	Right int
}

// Number of pixels covered by the span
func (s Span) Len() int {
	return s.Right - s.Left + 1
}

// Per-row horizontal extent of a quad. Dense over the quad's vertical range,
// intersected with the requested row window, with rows never touched by an
// edge marked as absent.
type SpanTable struct {
	MinY        int
	spans       []Span
	touched     []bool
	rows        int
	clippedRows int
}

// Creates an empty table covering rows minY..maxY inclusive
func newSpanTable(minY, maxY int) *SpanTable {
	n := maxY - minY + 1
	if n < 0 {
		n = 0
	}
	return &SpanTable{
		MinY:    minY,
		spans:   make([]Span, n),
		touched: make([]bool, n),
	}
}

// Folds a lattice point into the table. Only ever widens a row's span.
// Points outside the table's rows are dropped.
func (t *SpanTable) add(x, y int) {
	i := y - t.MinY
	if i < 0 || i >= len(t.spans) {
		return
	}
	if !t.touched[i] {
		t.touched[i] = true
		t.spans[i] = Span{x, x}
		t.rows++
		return
	}
	if x < t.spans[i].Left {
		t.spans[i].Left = x
	}
	if x > t.spans[i].Right {
		t.spans[i].Right = x
	}
}

// Returns the span of row y, and whether that row is covered
func (t *SpanTable) Span(y int) (Span, bool) {
	i := y - t.MinY
	if i < 0 || i >= len(t.spans) || !t.touched[i] {
		return Span{}, false
	}
	return t.spans[i], true
}

// Returns true if (x,y) lies within the span of its row
func (t *SpanTable) Contains(x, y int) bool {
	s, ok := t.Span(y)
	return ok && x >= s.Left && x <= s.Right
}

// Number of rows covered
func (t *SpanTable) Rows() int {
	return t.rows
}

// Number of rows of the quad outside the table's row window
func (t *SpanTable) ClippedRows() int {
	return t.clippedRows
}

// Last row of the table's vertical range
func (t *SpanTable) MaxY() int {
	return t.MinY + len(t.spans) - 1
}

// Calls fn for each covered row, in ascending y
func (t *SpanTable) Each(fn func(y int, s Span)) {
	for i, ok := range t.touched {
		if ok {
			fn(t.MinY+i, t.spans[i])
		}
	}
}

// Total number of pixels covered by all spans
func (t *SpanTable) Area() int {
	area := 0
	t.Each(func(y int, s Span) { area += s.Len() })
	return area
}

// Rasterize the quad into a span table, by tracing each of its four edges and
// widening the span of every row an edge passes through.
func Rasterize(q Quad) (*SpanTable, error) {
	minY, maxY := yRange(q)
	return RasterizeRows(q, minY, maxY)
}

// Rasterize the quad into a span table restricted to rows lower..upper inclusive.
// The table is sized to the intersection of that window with the quad's rows.
func RasterizeRows(q Quad, lower, upper int) (*SpanTable, error) {
	if err := q.Check(); err != nil {
		return nil, err
	}
	minY, maxY := yRange(q)
	total := maxY - minY + 1
	if minY < lower {
		minY = lower
	}
	if maxY > upper {
		maxY = upper
	}
	t := newSpanTable(minY, maxY)
	t.clippedRows = total - len(t.spans)
	if len(t.spans) > 0 {
		Edges(q, t.add)
	}
	return t, nil
}

func yRange(q Quad) (minY, maxY int) {
	minY, maxY = q[0].Y, q[0].Y
	for _, p := range q[1:] {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return minY, maxY
}

// Calls fn for every lattice point on the outline of the quad. Vertices shared
// by two edges are reported twice.
func Edges(q Quad, fn func(x, y int)) {
	for i := 0; i < 4; i++ {
		a, b := q[i], q[(i+1)%4]
		Line(a.X, a.Y, b.X, b.Y, fn)
	}
}

// Traces the line from (x0,y0) to (x1,y1) inclusive with Bresenham's algorithm,
// calling fn for each lattice point. Steep lines swap the roles of x and y so that
// every line is walked one unit at a time along its major axis.
func Line(x0, y0, x1, y1 int, fn func(x, y int)) {
	steep := abs(y1-y0) > abs(x1-x0)
	if steep {
		x0, y0 = y0, x0
		x1, y1 = y1, x1
	}
	if x0 > x1 {
		x0, x1 = x1, x0
		y0, y1 = y1, y0
	}

	dx, dy := x1-x0, abs(y1-y0)
	yStep := 1
	if y1 < y0 {
		yStep = -1
	}

	d := 2*dy - dx
	y := y0
	for x := x0; x <= x1; x++ {
		if steep {
			fn(y, x)
		} else {
			fn(x, y)
		}
		if d > 0 {
			y += yStep
			d -= 2 * dx
		}
		d += 2 * dy
	}
}

func abs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

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

package raster

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/valyala/fastrand"
)

func rasterize(t *testing.T, q Quad) *SpanTable {
	st, err := Rasterize(q)
	if err != nil {
		t.Fatalf("rasterize %v: unexpected error %s", q, err)
	}
	return st
}

func TestRasterizeRectangle(t *testing.T) {
	st := rasterize(t, QuadFromInts([8]int{0, 0, 3, 0, 3, 3, 0, 3}))
	if st.Rows() != 4 || st.MinY != 0 || st.MaxY() != 3 {
		t.Fatalf("rows=%d minY=%d maxY=%d; want 4 0 3", st.Rows(), st.MinY, st.MaxY())
	}
	for y := 0; y <= 3; y++ {
		s, ok := st.Span(y)
		if !ok || s != (Span{0, 3}) {
			t.Errorf("span(%d)=%v,%v; want {0 3},true", y, s, ok)
		}
	}
	if _, ok := st.Span(4); ok {
		t.Errorf("span(4) present")
	}
	if _, ok := st.Span(-1); ok {
		t.Errorf("span(-1) present")
	}
	if st.Area() != 16 {
		t.Errorf("area=%d; want 16", st.Area())
	}
}

func TestRasterizeDiamond(t *testing.T) {
	st := rasterize(t, QuadFromInts([8]int{2, 0, 4, 2, 2, 4, 0, 2}))
	want := []Span{{2, 2}, {1, 3}, {0, 4}, {1, 3}, {2, 2}}
	for y, w := range want {
		if s, ok := st.Span(y); !ok || s != w {
			t.Errorf("span(%d)=%v; want %v", y, s, w)
		}
	}
	if st.Area() != 13 {
		t.Errorf("area=%d; want 13", st.Area())
	}
}

func TestRasterizeSteepAndShallowEdges(t *testing.T) {
	// tall thin quad with steep sides, and a wide flat one with shallow sides
	tall := rasterize(t, QuadFromInts([8]int{0, 0, 1, 0, 2, 9, 1, 9}))
	if tall.Rows() != 10 {
		t.Errorf("tall rows=%d; want 10", tall.Rows())
	}
	tall.Each(func(y int, s Span) {
		if s.Len() < 2 || s.Len() > 3 {
			t.Errorf("tall span(%d)=%v; want 2 or 3 pixels wide", y, s)
		}
	})

	flat := rasterize(t, QuadFromInts([8]int{0, 0, 9, 1, 9, 2, 0, 1}))
	if flat.Rows() != 3 {
		t.Errorf("flat rows=%d; want 3", flat.Rows())
	}
	if s, _ := flat.Span(1); s != (Span{0, 9}) {
		t.Errorf("flat span(1)=%v; want {0 9}", s)
	}
}

func TestRasterizeNegativeCoordinates(t *testing.T) {
	st := rasterize(t, QuadFromInts([8]int{-2, -1, 2, -1, 2, 1, -2, 1}))
	if st.MinY != -1 || st.Rows() != 3 {
		t.Fatalf("minY=%d rows=%d; want -1 3", st.MinY, st.Rows())
	}
	for y := -1; y <= 1; y++ {
		if s, _ := st.Span(y); s != (Span{-2, 2}) {
			t.Errorf("span(%d)=%v; want {-2 2}", y, s)
		}
	}
	if !st.Contains(-2, 0) || st.Contains(-3, 0) || st.Contains(0, 2) {
		t.Errorf("contains gave wrong result around negative edges")
	}
}

func TestRasterizeDegenerateQuads(t *testing.T) {
	point := rasterize(t, QuadFromInts([8]int{5, 5, 5, 5, 5, 5, 5, 5}))
	if s, ok := point.Span(5); point.Rows() != 1 || !ok || s != (Span{5, 5}) {
		t.Errorf("point: rows=%d span=%v; want 1 {5 5}", point.Rows(), s)
	}

	// triangle with a repeated vertex, hypotenuse from (4,0) to (0,4)
	tri := rasterize(t, QuadFromInts([8]int{0, 0, 4, 0, 0, 4, 0, 4}))
	for y := 0; y <= 4; y++ {
		if s, _ := tri.Span(y); s != (Span{0, 4 - y}) {
			t.Errorf("triangle span(%d)=%v; want {0 %d}", y, s, 4-y)
		}
	}

	line := rasterize(t, QuadFromInts([8]int{1, 3, 6, 3, 6, 3, 1, 3}))
	if s, _ := line.Span(3); line.Rows() != 1 || s != (Span{1, 6}) {
		t.Errorf("line: rows=%d span=%v; want 1 {1 6}", line.Rows(), s)
	}
}

func TestEachIsAscending(t *testing.T) {
	st := rasterize(t, QuadFromInts([8]int{3, 7, 8, 2, 12, 9, 4, 14}))
	prev, n := st.MinY-1, 0
	st.Each(func(y int, s Span) {
		if y != prev+1 {
			t.Errorf("row %d follows %d", y, prev)
		}
		if s.Left > s.Right {
			t.Errorf("span(%d)=%v inverted", y, s)
		}
		prev = y
		n++
	})
	if n != st.Rows() || prev != 14 {
		t.Errorf("visited %d rows up to %d; want %d up to 14", n, prev, st.Rows())
	}
}

func TestLineVisitsBothEndpointsInAllOctants(t *testing.T) {
	rng := fastrand.RNG{}
	for i := 0; i < 1000; i++ {
		x0, y0 := int(rng.Uint32n(41))-20, int(rng.Uint32n(41))-20
		x1, y1 := int(rng.Uint32n(41))-20, int(rng.Uint32n(41))-20

		var pts []image.Point
		Line(x0, y0, x1, y1, func(x, y int) { pts = append(pts, image.Point{x, y}) })

		major := abs(x1 - x0)
		if abs(y1-y0) > major {
			major = abs(y1 - y0)
		}
		if len(pts) != major+1 {
			t.Fatalf("line (%d,%d)-(%d,%d) has %d points; want %d", x0, y0, x1, y1, len(pts), major+1)
		}
		first, last := pts[0], pts[len(pts)-1]
		a, b := image.Point{x0, y0}, image.Point{x1, y1}
		if !(first == a && last == b) && !(first == b && last == a) {
			t.Fatalf("line (%d,%d)-(%d,%d) runs %v to %v", x0, y0, x1, y1, first, last)
		}
		for j := 1; j < len(pts); j++ {
			d := pts[j].Sub(pts[j-1])
			if abs(d.X) > 1 || abs(d.Y) > 1 {
				t.Fatalf("line (%d,%d)-(%d,%d) jumps from %v to %v", x0, y0, x1, y1, pts[j-1], pts[j])
			}
		}
	}
}

func TestEdgesCoverOutline(t *testing.T) {
	q := QuadFromInts([8]int{0, 0, 3, 0, 3, 3, 0, 3})
	seen := map[image.Point]bool{}
	Edges(q, func(x, y int) { seen[image.Point{x, y}] = true })
	if len(seen) != 12 {
		t.Errorf("outline has %d distinct points; want 12", len(seen))
	}
	if seen[image.Point{1, 1}] {
		t.Errorf("interior point on outline")
	}
}

func TestQuadHelpers(t *testing.T) {
	q, err := ParseQuad("0,0, 3,0, 3,3, 0,3")
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if q != RectQuad(image.Rect(0, 0, 4, 4)) {
		t.Errorf("parsed %v; want %v", q, RectQuad(image.Rect(0, 0, 4, 4)))
	}
	if q.Ints() != [8]int{0, 0, 3, 0, 3, 3, 0, 3} {
		t.Errorf("ints=%v", q.Ints())
	}
	if b := q.Bounds(); b != image.Rect(0, 0, 4, 4) {
		t.Errorf("bounds=%v; want %v", b, image.Rect(0, 0, 4, 4))
	}
	for _, s := range []string{"1,2,3", "a,0,3,0,3,3,0,3"} {
		if _, err := ParseQuad(s); err == nil {
			t.Errorf("ParseQuad(%q) expected error", s)
		}
	}
}

func TestRasterizeRowsClipsToWindow(t *testing.T) {
	q := QuadFromInts([8]int{-2, -5, 5, -5, 5, 20, -2, 20})
	st, err := RasterizeRows(q, 0, 3)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if st.MinY != 0 || st.MaxY() != 3 || st.Rows() != 4 {
		t.Errorf("minY=%d maxY=%d rows=%d; want 0 3 4", st.MinY, st.MaxY(), st.Rows())
	}
	if st.ClippedRows() != 22 {
		t.Errorf("clipped rows=%d; want 22", st.ClippedRows())
	}
	for y := 0; y <= 3; y++ {
		if s, ok := st.Span(y); !ok || s != (Span{-2, 5}) {
			t.Errorf("span(%d)=%v,%v; want {-2 5},true", y, s, ok)
		}
	}
	if _, ok := st.Span(-1); ok {
		t.Errorf("row above the window is present")
	}

	off, err := RasterizeRows(QuadFromInts([8]int{0, 10, 2, 10, 2, 12, 0, 12}), 0, 3)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if off.Rows() != 0 || off.ClippedRows() != 3 || off.Area() != 0 {
		t.Errorf("rows=%d clipped=%d area=%d; want 0 3 0", off.Rows(), off.ClippedRows(), off.Area())
	}
}

func TestRasterizeRejectsHugeCoordinates(t *testing.T) {
	tcs := [][8]int{
		{0, 0, 3, 0, 3, 1 << 62, 0, 1 << 62},
		{0, 0, MaxCoord + 1, 0, 3, 3, 0, 3},
		{-MaxCoord - 1, 0, 3, 0, 3, 3, 0, 3},
		{0, 0, 3, 0, 3, 3, 0, -1 << 62},
		{math.MinInt, 0, 3, 0, 3, 3, 0, 3},
	}
	for _, tc := range tcs {
		q := QuadFromInts(tc)
		if _, err := Rasterize(q); !errors.Is(err, ErrCoordRange) {
			t.Errorf("Rasterize(%v) err=%v; want ErrCoordRange", q, err)
		}
		if _, err := RasterizeRows(q, 0, 3); !errors.Is(err, ErrCoordRange) {
			t.Errorf("RasterizeRows(%v) err=%v; want ErrCoordRange", q, err)
		}
	}
	if _, err := Rasterize(QuadFromInts([8]int{-MaxCoord, 0, MaxCoord, 0, MaxCoord, 1, -MaxCoord, 1})); err != nil {
		t.Errorf("quad at the coordinate limit: unexpected error %s", err)
	}
}

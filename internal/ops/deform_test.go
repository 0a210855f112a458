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

package ops

import (
	"strings"
	"testing"

	"github.com/mlnoga/quadwarp/internal/composite"
	"github.com/mlnoga/quadwarp/internal/homography"
	"github.com/mlnoga/quadwarp/internal/rgb"
)

func TestParseHandles(t *testing.T) {
	hs, err := ParseHandles("16,16,22,16; 48,48,54,48")
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	want := []Handle{
		{homography.Point2D{X: 16, Y: 16}, homography.Point2D{X: 22, Y: 16}},
		{homography.Point2D{X: 48, Y: 48}, homography.Point2D{X: 54, Y: 48}},
	}
	if len(hs) != len(want) || hs[0] != want[0] || hs[1] != want[1] {
		t.Errorf("handles=%v; want %v", hs, want)
	}
	if _, err := ParseHandles("1,2,3,4,5,6"); err == nil {
		t.Errorf("expected error for incomplete handle")
	}
}

func TestDeformWithoutHandlesKeepsImage(t *testing.T) {
	c, log := testContext()
	src := rgb.NewImage(32, 32)
	src.ClearToColor(rgb.White)
	for y := 10; y < 20; y++ {
		for x := 8; x < 24; x++ {
			src.Set(x, y, rgb.Color{R: 200, G: 30, B: 40})
		}
	}
	src.ID = 2
	dst, err := NewOpDeform(nil, 8, 5).Apply(src, c)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if !dst.Equal(src) {
		t.Errorf("deform without handles changed the image")
	}
	if !strings.Contains(log.String(), "2: Deformed 32x32 image with 4 boxes and 0 handles") {
		t.Errorf("log=%q; want deform progress line", log.String())
	}
}

func TestDeformMovesContentWithHandles(t *testing.T) {
	c, _ := testContext()
	src := rgb.NewImage(64, 64)
	src.ClearToColor(rgb.White)
	for y := 20; y < 44; y++ {
		for x := 20; x < 44; x++ {
			src.Set(x, y, rgb.Black)
		}
	}
	hs, _ := ParseHandles("16,16,22,16,48,48,54,48")
	op := NewOpDeform(hs, 32, 200)
	op.Sampling = composite.Nearest
	dst, err := op.Apply(src, c)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if dst.At(22, 30) != rgb.White || dst.At(26, 30) != rgb.Black || dst.At(49, 43) != rgb.Black || dst.At(50, 30) != rgb.White {
		t.Errorf("content not shifted right by 6 pixels")
	}
}

func TestDeformErrors(t *testing.T) {
	c, _ := testContext()
	blank := rgb.NewImage(8, 8)
	blank.ClearToColor(rgb.White)
	if _, err := NewOpDeformDefault().Apply(blank, c); err == nil {
		t.Errorf("expected error for image without foreground")
	}

	src := blank.Copy()
	src.Set(4, 4, rgb.Black)
	op := NewOpDeform([]Handle{{From: homography.Point2D{X: 100, Y: 100}}}, 4, 1)
	if _, err := op.Apply(src, c); err == nil {
		t.Errorf("expected error for handle outside the grid")
	}
}

func TestDeformFromJSON(t *testing.T) {
	op, err := UnmarshalOperator([]byte(`{"type":"deform","boxSize":16,"handles":[{"from":{"x":1,"y":2},"to":{"x":3,"y":4}}]}`))
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	d, ok := op.(*OpDeform)
	if !ok {
		t.Fatalf("type=%T; want *OpDeform", op)
	}
	if d.BoxSize != 16 || d.Iterations != 100 || !d.UseMask || len(d.Handles) != 1 || d.Handles[0].To.Y != 4 || !d.IsActive() {
		t.Errorf("decoded %+v", d)
	}
}

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

package mask

import (
	"image"
	"testing"

	"github.com/mlnoga/quadwarp/internal/rgb"
)

func filled(w, h int, c rgb.Color) *rgb.Image {
	img := rgb.NewImage(w, h)
	img.ClearToColor(c)
	return img
}

func TestComputeSingleDarkPixel(t *testing.T) {
	img := filled(4, 4, rgb.White)
	img.Set(2, 2, rgb.Black)

	m, err := Compute(img, 5)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			want := x == 2 && y == 2
			if m.At(x, y) != want {
				t.Errorf("mask(%d,%d)=%v; want %v", x, y, m.At(x, y), want)
			}
		}
	}
	if fg, bg := m.Counts(); fg != 1 || bg != 15 {
		t.Errorf("counts=(%d,%d); want (1,15)", fg, bg)
	}
}

func TestComputeIsolatedPatchStaysForeground(t *testing.T) {
	// 7x7 white, with a red ring around a white centre at (3,3)
	img := filled(7, 7, rgb.White)
	for y := 2; y <= 4; y++ {
		for x := 2; x <= 4; x++ {
			if x != 3 || y != 3 {
				img.Set(x, y, rgb.Color{R: 255, G: 0, B: 0})
			}
		}
	}
	m, err := Compute(img, 0)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if !m.At(3, 3) {
		t.Errorf("isolated seed-colored centre was cleared")
	}
	for y := 2; y <= 4; y++ {
		for x := 2; x <= 4; x++ {
			if !m.At(x, y) {
				t.Errorf("mask(%d,%d)=false; want true", x, y)
			}
		}
	}
	if m.At(0, 0) || m.At(6, 6) || m.At(1, 3) {
		t.Errorf("connected background was not cleared")
	}
	if fg, _ := m.Counts(); fg != 9 {
		t.Errorf("foreground=%d; want 9", fg)
	}
}

func TestComputeToleranceIsInclusive(t *testing.T) {
	tcs := []struct {
		Pixel rgb.Color
		Tol   int
		Keep  bool
	}{
		{rgb.Color{R: 110, G: 100, B: 100}, 10, false},
		{rgb.Color{R: 111, G: 100, B: 100}, 10, true},
		{rgb.Color{R: 90, G: 90, B: 110}, 10, false},
		{rgb.Color{R: 100, G: 89, B: 100}, 10, true},
		{rgb.Color{R: 100, G: 100, B: 100}, 0, false},
		{rgb.Color{R: 101, G: 100, B: 100}, 0, true},
	}
	for _, tc := range tcs {
		img := filled(2, 1, rgb.Color{R: 100, G: 100, B: 100})
		img.Set(1, 0, tc.Pixel)
		m, err := Compute(img, tc.Tol)
		if err != nil {
			t.Fatalf("unexpected error %s", err)
		}
		if m.At(0, 0) {
			t.Errorf("seed pixel kept for tol=%d", tc.Tol)
		}
		if m.At(1, 0) != tc.Keep {
			t.Errorf("pixel %v tol=%d keep=%v; want %v", tc.Pixel, tc.Tol, m.At(1, 0), tc.Keep)
		}
	}
}

func TestComputeToleranceNearByteLimits(t *testing.T) {
	// seed near 255, bounds extend past the byte range without wrapping
	img := filled(3, 1, rgb.Color{R: 250, G: 250, B: 250})
	img.Set(1, 0, rgb.Color{R: 255, G: 255, B: 255})
	img.Set(2, 0, rgb.Color{R: 0, G: 0, B: 0})
	m, _ := Compute(img, 10)
	if m.At(1, 0) {
		t.Errorf("pixel within tolerance kept")
	}
	if !m.At(2, 0) {
		t.Errorf("black pixel cleared")
	}
}

func TestComputeNegativeToleranceKeepsEverything(t *testing.T) {
	img := filled(3, 3, rgb.White)
	m, _ := Compute(img, -1)
	if fg, bg := m.Counts(); fg != 9 || bg != 0 {
		t.Errorf("counts=(%d,%d); want (9,0)", fg, bg)
	}
}

func TestComputeDiagonalIsNotConnected(t *testing.T) {
	// background only reaches (2,2) via diagonal steps through the black cross
	img := filled(3, 3, rgb.Black)
	img.Set(0, 0, rgb.White)
	img.Set(1, 1, rgb.White)
	img.Set(2, 2, rgb.White)
	m, _ := Compute(img, 0)
	if m.At(0, 0) {
		t.Errorf("seed kept")
	}
	if !m.At(1, 1) || !m.At(2, 2) {
		t.Errorf("diagonal neighbours cleared")
	}
}

func TestComputeEmptyAndInvalid(t *testing.T) {
	m, err := Compute(rgb.NewImage(0, 0), 5)
	if err != nil || len(m.Data) != 0 {
		t.Errorf("empty image: mask=%v err=%v", m, err)
	}
	if _, err := ComputeBuffer(make([]byte, 10), 2, 2, 5); err == nil {
		t.Errorf("expected error for short buffer")
	}
}

func TestComputeBufferMatchesCompute(t *testing.T) {
	img := filled(5, 4, rgb.Color{R: 10, G: 20, B: 30})
	img.Set(3, 1, rgb.White)
	img.Set(0, 3, rgb.White)
	a, _ := Compute(img, 2)
	b, err := ComputeBuffer(img.Data, 5, 4, 2)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Errorf("data[%d]=%v; want %v", i, b.Data[i], a.Data[i])
		}
	}
}

func TestBounds(t *testing.T) {
	img := filled(6, 5, rgb.White)
	img.Set(1, 2, rgb.Black)
	img.Set(4, 3, rgb.Black)
	m, _ := Compute(img, 0)
	if b := m.Bounds(); b != image.Rect(1, 2, 5, 4) {
		t.Errorf("bounds=%v; want %v", b, image.Rect(1, 2, 5, 4))
	}
	allBackground, _ := Compute(filled(3, 3, rgb.White), 0)
	if b := allBackground.Bounds(); !b.Empty() {
		t.Errorf("bounds=%v; want empty", b)
	}
}

func TestToImageAndOverlay(t *testing.T) {
	img := filled(2, 1, rgb.White)
	img.Set(1, 0, rgb.Black)
	m, _ := Compute(img, 0)
	mi := m.ToImage()
	if mi.At(0, 0) != rgb.Black || mi.At(1, 0) != rgb.White {
		t.Errorf("mask image=%v %v; want black white", mi.At(0, 0), mi.At(1, 0))
	}
	ov, err := m.Overlay(img, rgb.Color{R: 255, G: 0, B: 0}, 1)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if ov.At(1, 0) != rgb.Black {
		t.Errorf("foreground pixel changed to %v", ov.At(1, 0))
	}
	if c := ov.At(0, 0); c.R < 250 || c.G > 5 || c.B > 5 {
		t.Errorf("background pixel=%v; want red", c)
	}
	if _, err := m.Overlay(filled(3, 3, rgb.White), rgb.Black, 1); err == nil {
		t.Errorf("expected error for mismatched overlay")
	}
}

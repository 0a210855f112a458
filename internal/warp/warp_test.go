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

package warp

import (
	"errors"
	"testing"

	"github.com/mlnoga/quadwarp/internal/composite"
	"github.com/mlnoga/quadwarp/internal/raster"
	"github.com/mlnoga/quadwarp/internal/rgb"
)

var identity = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

func TestBufferPipeline(t *testing.T) {
	// white 4x4 with a black pixel at (2,2), masked and warped onto a gray canvas
	src := make([]byte, 4*4*3)
	if err := ClearToColor(src, 4, 4, rgb.White); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	src[(2*4+2)*3], src[(2*4+2)*3+1], src[(2*4+2)*3+2] = 0, 0, 0

	m, err := ComputeMask(src, 4, 4, 5)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	for i, v := range m {
		if v != (i == 2*4+2) {
			t.Errorf("mask[%d]=%v", i, v)
		}
	}

	dst := make([]byte, len(src))
	if err := ClearToColor(dst, 4, 4, rgb.Color{R: 128, G: 128, B: 128}); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if err := Project(identity, src, m, dst, 4, 4, [8]int{0, 0, 3, 0, 3, 3, 0, 3}); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	for i := 0; i < 16; i++ {
		want := byte(128)
		if i == 2*4+2 {
			want = 0
		}
		if dst[i*3] != want || dst[i*3+1] != want || dst[i*3+2] != want {
			t.Errorf("pixel %d=%v; want %d", i, dst[i*3:i*3+3], want)
		}
	}

	if err := Project(identity, src, nil, dst, 4, 4, [8]int{0, 0, 3, 0, 3, 3, 0, 3}); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Fatalf("unmasked identity projection differs at byte %d", i)
		}
	}
}

func TestBufferLengthsAreValidated(t *testing.T) {
	good := make([]byte, 2*2*3)
	corners := [8]int{0, 0, 1, 0, 1, 1, 0, 1}
	if _, err := ComputeMask(make([]byte, 11), 2, 2, 0); !errors.Is(err, rgb.ErrBufferSize) {
		t.Errorf("err=%v; want ErrBufferSize", err)
	}
	if err := ClearToColor(make([]byte, 13), 2, 2, rgb.Black); !errors.Is(err, rgb.ErrBufferSize) {
		t.Errorf("err=%v; want ErrBufferSize", err)
	}
	if err := Project(identity, make([]byte, 3), nil, good, 2, 2, corners); !errors.Is(err, rgb.ErrBufferSize) {
		t.Errorf("err=%v; want ErrBufferSize", err)
	}
	if err := Project(identity, good, nil, make([]byte, 3), 2, 2, corners); !errors.Is(err, rgb.ErrBufferSize) {
		t.Errorf("err=%v; want ErrBufferSize", err)
	}
	if err := Project(identity, good, make([]bool, 3), make([]byte, 12), 2, 2, corners); !errors.Is(err, composite.ErrMaskMismatch) {
		t.Errorf("err=%v; want ErrMaskMismatch", err)
	}
}

func TestProjectWithConfigReportsStats(t *testing.T) {
	src, dst := make([]byte, 3*3*3), make([]byte, 3*3*3)
	cfg := composite.DefaultConfig()
	miss := rgb.Magenta
	cfg.MissColor = &miss
	// shifted right by two, so only the first column samples the source
	stats, err := ProjectWithConfig([9]float64{1, 0, 2, 0, 1, 0, 0, 0, 1}, src, nil, dst, 3, 3, [8]int{0, 0, 2, 0, 2, 2, 0, 2}, cfg)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if stats.Written != 3 || stats.OutOfBounds != 6 {
		t.Errorf("stats=%v; want 3 written 6 out of bounds", stats)
	}
	if dst[3] != 255 || dst[4] != 0 || dst[5] != 255 {
		t.Errorf("pixel (1,0)=%v; want magenta", dst[3:6])
	}
}

func TestProjectRejectsFarOutCorners(t *testing.T) {
	src := make([]byte, 4*4*3)
	dst := make([]byte, 4*4*3)
	err := Project(identity, src, nil, dst, 4, 4, [8]int{0, 0, 3, 0, 3, 1 << 62, 0, 1 << 62})
	if !errors.Is(err, raster.ErrCoordRange) {
		t.Errorf("err=%v; want ErrCoordRange", err)
	}
}

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

// Package warp exposes the quad warp on caller-owned interleaved RGB buffers.
// Buffers are width*height*3 bytes, row-major without padding. Source, mask
// and destination share the same dimensions. No buffer is retained after a call.
package warp

import (
	"fmt"

	"github.com/mlnoga/quadwarp/internal/composite"
	"github.com/mlnoga/quadwarp/internal/homography"
	"github.com/mlnoga/quadwarp/internal/mask"
	"github.com/mlnoga/quadwarp/internal/raster"
	"github.com/mlnoga/quadwarp/internal/rgb"
)

// Computes the foreground mask of a source buffer, true marking foreground.
// Indexed by y*width+x.
func ComputeMask(src []byte, width, height, tolerance int) ([]bool, error) {
	m, err := mask.ComputeBuffer(src, width, height, tolerance)
	if err != nil {
		return nil, err
	}
	return m.Data, nil
}

// Fills a buffer with a flat color
func ClearToColor(buf []byte, width, height int, color rgb.Color) error {
	return rgb.ClearToColor(buf, width, height, color)
}

// Projects the source buffer into the quad with the given corners x0,y0,..,x3,y3
// of the destination buffer, using bilinear sampling through the destination-to-source
// homography h. A nil mask samples everywhere.
func Project(h [9]float64, src []byte, mask []bool, dst []byte, width, height int, corners [8]int) error {
	_, err := ProjectWithConfig(h, src, mask, dst, width, height, corners, composite.DefaultConfig())
	return err
}

// Like Project, with explicit compositor settings. Returns pixel counts.
func ProjectWithConfig(h [9]float64, src []byte, maskData []bool, dst []byte, width, height int, corners [8]int, cfg composite.Config) (composite.Stats, error) {
	srcImg, err := rgb.NewImageFromBuffer(width, height, src)
	if err != nil {
		return composite.Stats{}, fmt.Errorf("source: %w", err)
	}
	dstImg, err := rgb.NewImageFromBuffer(width, height, dst)
	if err != nil {
		return composite.Stats{}, fmt.Errorf("destination: %w", err)
	}
	var m *mask.Mask
	if maskData != nil {
		if len(maskData) != width*height {
			return composite.Stats{}, fmt.Errorf("%w: have %d entries, want %dx%d", composite.ErrMaskMismatch, len(maskData), width, height)
		}
		m = &mask.Mask{Width: width, Height: height, Data: maskData}
	}
	return composite.Project(homography.Homography(h), srcImg, m, dstImg, raster.QuadFromInts(corners), cfg)
}

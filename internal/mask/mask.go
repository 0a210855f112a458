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

// Package mask separates the flat background around an image's content,
// as seen from the top left pixel, from its foreground.
package mask

import (
	"fmt"
	"image"

	"github.com/mlnoga/quadwarp/internal/pool"
	"github.com/mlnoga/quadwarp/internal/rgb"
)

// A foreground mask. True means keep (foreground), false means drop
// (background reachable from the seed pixel). Immutable once computed.
type Mask struct {
	Width  int
	Height int
	Data   []bool // indexed by y*Width+x
}

// Creates a new mask with all pixels marked foreground
func New(width, height int) *Mask {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	data := make([]bool, width*height)
	for i := range data {
		data[i] = true
	}
	return &Mask{Width: width, Height: height, Data: data}
}

// Returns true if the pixel at (x,y) is foreground. No bounds checks beyond the slice's own.
func (m *Mask) At(x, y int) bool {
	return m.Data[y*m.Width+x]
}

// Compute the foreground mask of the given image with the given per-channel tolerance
func Compute(img *rgb.Image, tolerance int) (*Mask, error) {
	if err := img.Check(); err != nil {
		return nil, err
	}
	return compute(img.Data, img.Width, img.Height, tolerance), nil
}

// Compute the foreground mask of the given width*height RGB buffer
func ComputeBuffer(data []byte, width, height, tolerance int) (*Mask, error) {
	if err := rgb.CheckBuffer(data, width, height); err != nil {
		return nil, err
	}
	return compute(data, width, height, tolerance), nil
}

// Breadth-first flood fill from the origin over 4-connected neighbors. A pixel is
// background iff all channels lie within [seed-tolerance, seed+tolerance]. Background
// pixels are cleared and their neighbors enqueued; other pixels bound the fill.
func compute(data []byte, width, height, tolerance int) *Mask {
	m := New(width, height)
	if width == 0 || height == 0 {
		return m
	}

	var lo, up [rgb.Channels]int
	for c := 0; c < rgb.Channels; c++ {
		lo[c] = int(data[c]) - tolerance
		up[c] = int(data[c]) + tolerance
	}

	// every pixel is enqueued at most once, so the queue never outgrows its buffer
	visited := pool.Bools.GetZeroed(width * height)
	defer pool.Bools.Put(visited)
	queue := pool.Ints.Get(width * height)[:0]
	defer pool.Ints.Put(queue)
	queue = append(queue, 0)
	visited[0] = true

	for head := 0; head < len(queue); head++ {
		i := queue[head]
		p := data[i*rgb.Channels : i*rgb.Channels+rgb.Channels]
		if !isBackground(p, &lo, &up) {
			continue // boundary: visited, stays foreground
		}
		m.Data[i] = false

		x, y := i%width, i/width
		if x > 0 && !visited[i-1] {
			visited[i-1] = true
			queue = append(queue, i-1)
		}
		if x+1 < width && !visited[i+1] {
			visited[i+1] = true
			queue = append(queue, i+1)
		}
		if y > 0 && !visited[i-width] {
			visited[i-width] = true
			queue = append(queue, i-width)
		}
		if y+1 < height && !visited[i+width] {
			visited[i+width] = true
			queue = append(queue, i+width)
		}
	}
	return m
}

func isBackground(p []byte, lo, up *[rgb.Channels]int) bool {
	for c := 0; c < rgb.Channels; c++ {
		v := int(p[c])
		if v < lo[c] || v > up[c] {
			return false
		}
	}
	return true
}

// Returns the number of foreground and background pixels
func (m *Mask) Counts() (foreground, background int) {
	for _, v := range m.Data {
		if v {
			foreground++
		} else {
			background++
		}
	}
	return foreground, background
}

// Returns the smallest rectangle containing all foreground pixels,
// or the empty rectangle if there are none.
func (m *Mask) Bounds() image.Rectangle {
	minX, minY, maxX, maxY := m.Width, m.Height, -1, -1
	for y := 0; y < m.Height; y++ {
		row := m.Data[y*m.Width : (y+1)*m.Width]
		for x, v := range row {
			if !v {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Renders the mask as an image, foreground white and background black
func (m *Mask) ToImage() *rgb.Image {
	img := rgb.NewImage(m.Width, m.Height)
	for i, v := range m.Data {
		if v {
			img.Data[i*rgb.Channels+0] = 255
			img.Data[i*rgb.Channels+1] = 255
			img.Data[i*rgb.Channels+2] = 255
		}
	}
	return img
}

// Renders the source image with background pixels tinted towards the given color
func (m *Mask) Overlay(src *rgb.Image, tint rgb.Color, strength float64) (*rgb.Image, error) {
	if src.Width != m.Width || src.Height != m.Height {
		return nil, fmt.Errorf("%d: mask %dx%d does not match image %s", src.ID, m.Width, m.Height, src.DimensionsToString())
	}
	res := src.Copy()
	for i, v := range m.Data {
		if v {
			continue
		}
		x, y := i%m.Width, i/m.Width
		res.Set(x, y, src.At(x, y).BlendLab(tint, strength))
	}
	return res, nil
}

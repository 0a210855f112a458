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

package rgb

import (
	"errors"
	"fmt"
	"image"
)

// Number of interleaved samples per pixel
const Channels = 3

// An 8-bit RGB image with interleaved samples, row-major, no padding.
// The buffer may be owned by the caller, see NewImageFromBuffer.
type Image struct {
	ID       int    // Sequential ID number, for log output
	FileName string // Original file name, if any, for log output

	Width  int    // Width in pixels
	Height int    // Height in pixels
	Data   []byte // Samples, len(Data)==Width*Height*Channels
}

// Returned when a buffer length does not match the given dimensions
var ErrBufferSize = errors.New("buffer size does not match image dimensions")

// Creates a new black image of the given size
func NewImage(width, height int) *Image {
	if width < 0 || height < 0 {
		width, height = 0, 0
	}
	return &Image{
		Width:  width,
		Height: height,
		Data:   make([]byte, width*height*Channels),
	}
}

// Wraps the given caller-owned buffer without copying
func NewImageFromBuffer(width, height int, data []byte) (*Image, error) {
	if err := CheckBuffer(data, width, height); err != nil {
		return nil, err
	}
	return &Image{Width: width, Height: height, Data: data}, nil
}

// Checks that a buffer holds exactly width*height RGB pixels
func CheckBuffer(data []byte, width, height int) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("invalid dimensions %dx%d", width, height)
	}
	if len(data) != width*height*Channels {
		return fmt.Errorf("%w: have %d bytes, want %dx%dx%d=%d", ErrBufferSize, len(data),
			width, height, Channels, width*height*Channels)
	}
	return nil
}

// Validates the buffer of an existing image
func (img *Image) Check() error {
	if img == nil {
		return errors.New("nil image")
	}
	if err := CheckBuffer(img.Data, img.Width, img.Height); err != nil {
		return fmt.Errorf("%d: %w", img.ID, err)
	}
	return nil
}

// Returns the image dimensions as a human-readable string
func (img *Image) DimensionsToString() string {
	return fmt.Sprintf("%dx%d", img.Width, img.Height)
}

func (img *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, img.Width, img.Height)
}

// Returns true if (x,y) lies within the image
func (img *Image) In(x, y int) bool {
	return x >= 0 && x < img.Width && y >= 0 && y < img.Height
}

// Returns the color at the given position. No bounds checks beyond the slice's own.
func (img *Image) At(x, y int) Color {
	i := (y*img.Width + x) * Channels
	return Color{img.Data[i], img.Data[i+1], img.Data[i+2]}
}

// Sets the color at the given position. No bounds checks beyond the slice's own.
func (img *Image) Set(x, y int, c Color) {
	i := (y*img.Width + x) * Channels
	img.Data[i], img.Data[i+1], img.Data[i+2] = c.R, c.G, c.B
}

// Returns the seed color of the image, i.e. the pixel at the origin.
// Returns black for empty images.
func (img *Image) Seed() Color {
	if len(img.Data) < Channels {
		return Color{}
	}
	return Color{img.Data[0], img.Data[1], img.Data[2]}
}

// Fills the image with a flat color
func (img *Image) ClearToColor(c Color) {
	fill(img.Data, c)
}

// Fills the given buffer of width*height RGB pixels with a flat color
func ClearToColor(data []byte, width, height int, c Color) error {
	if err := CheckBuffer(data, width, height); err != nil {
		return err
	}
	fill(data, c)
	return nil
}

func fill(data []byte, c Color) {
	if len(data) < Channels {
		return
	}
	data[0], data[1], data[2] = c.R, c.G, c.B
	// doubling copy, amortized O(n)
	for filled := Channels; filled < len(data); filled *= 2 {
		copy(data[filled:], data[:filled])
	}
}

// Returns a deep copy of the image
func (img *Image) Copy() *Image {
	res := *img
	res.Data = make([]byte, len(img.Data))
	copy(res.Data, img.Data)
	return &res
}

// Returns true if both images have the same dimensions and samples
func (img *Image) Equal(other *Image) bool {
	if img.Width != other.Width || img.Height != other.Height || len(img.Data) != len(other.Data) {
		return false
	}
	for i, v := range img.Data {
		if other.Data[i] != v {
			return false
		}
	}
	return true
}

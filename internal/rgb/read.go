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
	"bufio"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Reads an image from the file with the given name. Supports JPEG, PNG, TIFF and BMP.
func NewImageFromFile(fileName string, id int, logWriter io.Writer) (*Image, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Read(bufio.NewReader(f), id, logWriter)
	if err != nil {
		return nil, fmt.Errorf("%d: error reading %s: %w", id, fileName, err)
	}
	img.FileName = fileName
	return img, nil
}

// Decodes an image from the given reader, converting it to 8-bit RGB.
// Alpha is discarded, samples wider than 8 bits are truncated.
func Read(r io.Reader, id int, logWriter io.Writer) (*Image, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	img := FromImage(src)
	img.ID = id
	if o, ok := src.(interface{ Opaque() bool }); ok && !o.Opaque() && logWriter != nil {
		fmt.Fprintf(logWriter, "%d: Warning: discarding alpha channel of %s image\n", id, format)
	}
	return img, nil
}

// Converts a Go image into an 8-bit RGB image, with origin at the top left of its bounds
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	res := NewImage(b.Dx(), b.Dy())

	rgba, ok := src.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	}
	for y := 0; y < res.Height; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		out := res.Data[y*res.Width*Channels:]
		for x := 0; x < res.Width; x++ {
			o := x * 4
			out[x*Channels+0] = row[o+0]
			out[x*Channels+1] = row[o+1]
			out[x*Channels+2] = row[o+2]
		}
	}
	return res
}

// Reads only the dimensions of the image in the given file
func ReadConfig(fileName string) (width, height int, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return 0, 0, fmt.Errorf("error reading %s: %w", fileName, err)
	}
	return cfg.Width, cfg.Height, nil
}

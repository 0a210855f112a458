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
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// Output file formats, selected by file name suffix
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatTIFF
	FormatBMP
)

// Determines the output format from the file name suffix
func FormatFromFileName(fileName string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".png":
		return FormatPNG
	case ".tif", ".tiff":
		return FormatTIFF
	case ".bmp":
		return FormatBMP
	}
	return FormatUnknown
}

// Converts the image into a Go RGBA image with opaque alpha
func (img *Image) ToRGBA() *image.RGBA {
	res := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		in := img.Data[y*img.Width*Channels:]
		out := res.Pix[y*res.Stride:]
		for x := 0; x < img.Width; x++ {
			out[x*4+0] = in[x*Channels+0]
			out[x*4+1] = in[x*Channels+1]
			out[x*4+2] = in[x*Channels+2]
			out[x*4+3] = 255
		}
	}
	return res
}

// Write the image to a file, choosing the format from the suffix.
// Quality applies to JPEG only.
func (img *Image) WriteFile(fileName string, quality int) error {
	format := FormatFromFileName(fileName)
	if format == FormatUnknown {
		return fmt.Errorf("%d: unknown suffix for output file %s", img.ID, fileName)
	}

	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := img.Write(writer, format, quality); err != nil {
		return err
	}
	return writer.Flush()
}

// Write the image in the given format
func (img *Image) Write(writer io.Writer, format Format, quality int) error {
	rgba := img.ToRGBA()
	switch format {
	case FormatJPEG:
		return jpeg.Encode(writer, rgba, &jpeg.Options{Quality: quality})
	case FormatPNG:
		return png.Encode(writer, rgba)
	case FormatTIFF:
		return tiff.Encode(writer, rgba, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case FormatBMP:
		return bmp.Encode(writer, rgba)
	}
	return fmt.Errorf("%d: unsupported output format %d", img.ID, format)
}

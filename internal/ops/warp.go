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
	"fmt"
	"image"

	"github.com/mlnoga/quadwarp/internal/composite"
	"github.com/mlnoga/quadwarp/internal/homography"
	"github.com/mlnoga/quadwarp/internal/mask"
	"github.com/mlnoga/quadwarp/internal/raster"
	"github.com/mlnoga/quadwarp/internal/rgb"
)

// Color setting which selects the seed pixel of the source image
const SeedColor = "%seed"

// Parses a color setting. Empty means no color, SeedColor the seed pixel of the given image
func parseColorSetting(s string, img *rgb.Image) (*rgb.Color, error) {
	if s == "" {
		return nil, nil
	}
	if s == SeedColor {
		c := img.Seed()
		return &c, nil
	}
	c, err := rgb.ParseColor(s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Warps each input image into a quadrilateral of a new canvas. Takes n inputs, produces n outputs
type OpWarp struct {
	OpUnaryBase
	Width      int                    `json:"width"`      // canvas width, 0 for the source width
	Height     int                    `json:"height"`     // canvas height, 0 for the source height
	Corners    []int                  `json:"corners"`    // destination quad x0,y0,..,x3,y3, empty for the full canvas
	SrcCorners []int                  `json:"srcCorners"` // source quad x0,y0,..,x3,y3, empty for the full source
	SrcPoints  []homography.Point2D   `json:"srcPoints"`  // optional correspondences to fit, overriding the corners
	DstPoints  []homography.Point2D   `json:"dstPoints"`
	Homography []float64              `json:"homography"` // explicit destination-to-source coefficients, overriding all of the above
	UseMask    bool                   `json:"useMask"`
	Tolerance  int                    `json:"tolerance"`
	Sampling   composite.SamplingMode `json:"sampling"`
	Background string                 `json:"background"` // canvas color, SeedColor, or empty for black
	Miss       string                 `json:"miss"`       // color for pixels without a sample, empty leaves the canvas
	Workers    int                    `json:"workers"`    // 0 uses the context setting
	MaskFile   string                 `json:"maskFile"`   // saves the mask with this filename pattern, if set and masking
}

func init() { SetOperatorFactory(func() Operator { return NewOpWarpDefault() }) } // register the operator for JSON decoding

func NewOpWarpDefault() *OpWarp { return NewOpWarp(nil, nil, false, 5) }

func NewOpWarp(corners, srcCorners []int, useMask bool, tolerance int) *OpWarp {
	op := OpWarp{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "warp", Active: true}},
		Corners:     corners,
		SrcCorners:  srcCorners,
		UseMask:     useMask,
		Tolerance:   tolerance,
		Sampling:    composite.Bilinear,
		Background:  SeedColor,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func quadFromSlice(name string, c []int) (q raster.Quad, err error) {
	if len(c) != 8 {
		return q, fmt.Errorf("%s need 8 coordinates, got %d", name, len(c))
	}
	var a [8]int
	copy(a[:], c)
	return raster.QuadFromInts(a), nil
}

func quadPoints(q raster.Quad) (ps [4]homography.Point2D) {
	for i, p := range q {
		ps[i] = homography.Point2D{X: float64(p.X), Y: float64(p.Y)}
	}
	return ps
}

// Returns the destination quad on a canvas of the given size
func (op *OpWarp) DstQuad(width, height int) (raster.Quad, error) {
	if len(op.Corners) == 0 {
		return raster.RectQuad(image.Rect(0, 0, width, height)), nil
	}
	return quadFromSlice("corners", op.Corners)
}

// Returns the source quad within the given source image
func (op *OpWarp) SrcQuad(src *rgb.Image) (raster.Quad, error) {
	if len(op.SrcCorners) == 0 {
		return raster.RectQuad(src.Bounds()), nil
	}
	return quadFromSlice("srcCorners", op.SrcCorners)
}

// Determines the destination-to-source homography for the given source and destination quad
func (op *OpWarp) ResolveHomography(src *rgb.Image, dst raster.Quad) (h homography.Homography, residual float64, err error) {
	if len(op.Homography) > 0 {
		if len(op.Homography) != 9 {
			return h, 0, fmt.Errorf("homography needs 9 coefficients, got %d", len(op.Homography))
		}
		copy(h[:], op.Homography)
		return h, 0, nil
	}
	if len(op.SrcPoints) > 0 || len(op.DstPoints) > 0 {
		return homography.Fit(op.DstPoints, op.SrcPoints)
	}
	srcQuad, err := op.SrcQuad(src)
	if err != nil {
		return h, 0, err
	}
	if srcQuad == dst {
		return homography.Identity(), 0, nil
	}
	h, err = homography.ForCorners(quadPoints(srcQuad), quadPoints(dst))
	return h, 0, err
}

// Estimates the memory needed to warp the image in the given file, covering
// the source, its mask and the canvas. Returns 0 if the file cannot be read.
func (op *OpWarp) EstimateBytes(fileName string) int64 {
	width, height, err := rgb.ReadConfig(fileName)
	if err != nil {
		return 0
	}
	srcPixels := int64(width) * int64(height)
	dstPixels := srcPixels
	if op.Width > 0 && op.Height > 0 {
		dstPixels = int64(op.Width) * int64(op.Height)
	}
	bytes := (srcPixels + dstPixels) * rgb.Channels
	if op.UseMask {
		bytes += srcPixels * 2 // mask and visited flags
	}
	return bytes
}

func (op *OpWarp) Apply(src *rgb.Image, c *Context) (result *rgb.Image, err error) {
	width, height := op.Width, op.Height
	if width <= 0 {
		width = src.Width
	}
	if height <= 0 {
		height = src.Height
	}
	dstQuad, err := op.DstQuad(width, height)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", src.ID, err)
	}
	h, residual, err := op.ResolveHomography(src, dstQuad)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", src.ID, err)
	}
	if residual > 0 {
		fmt.Fprintf(c.Log, "%d: Fitted homography %v with residual %.3g\n", src.ID, h, residual)
	}

	bg, err := parseColorSetting(op.Background, src)
	if err != nil {
		return nil, fmt.Errorf("%d: background: %w", src.ID, err)
	}
	miss, err := parseColorSetting(op.Miss, src)
	if err != nil {
		return nil, fmt.Errorf("%d: miss color: %w", src.ID, err)
	}

	dst := rgb.NewImage(width, height)
	dst.ID, dst.FileName = src.ID, src.FileName
	if bg != nil {
		dst.ClearToColor(*bg)
	}

	var m *mask.Mask
	if op.UseMask {
		if m, err = mask.Compute(src, op.Tolerance); err != nil {
			return nil, err
		}
		fg, back := m.Counts()
		fmt.Fprintf(c.Log, "%d: Masked %d background pixels with tolerance %d, keeping %d\n", src.ID, back, op.Tolerance, fg)
		if op.MaskFile != "" {
			maskImg := m.ToImage()
			maskImg.ID = src.ID
			if _, err := NewOpSave(op.MaskFile).Apply(maskImg, c); err != nil {
				return nil, err
			}
		}
	}

	workers := op.Workers
	if workers <= 0 {
		workers = c.Workers
	}
	cfg := composite.Config{
		Sampling:   op.Sampling,
		MaskPolicy: composite.MaskForegroundOnly,
		MissColor:  miss,
		Workers:    workers,
	}
	stats, err := composite.Project(h, src, m, dst, dstQuad, cfg)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(c.Log, "%d: Warped %s image into quad %v of %s canvas, %v\n",
		src.ID, src.DimensionsToString(), dstQuad, dst.DimensionsToString(), stats)
	return dst, nil
}

// Replaces each input image with its foreground mask, or with the image
// tinted where the mask marks background. Takes n inputs, produces n outputs
type OpMask struct {
	OpUnaryBase
	Tolerance int     `json:"tolerance"`
	Overlay   string  `json:"overlay"`  // tint color for the background, empty to output the black and white mask
	Strength  float64 `json:"strength"` // blend factor of the tint, in [0,1]
}

func init() { SetOperatorFactory(func() Operator { return NewOpMaskDefault() }) } // register the operator for JSON decoding

func NewOpMaskDefault() *OpMask { return NewOpMask(5, "", 0.5) }

func NewOpMask(tolerance int, overlay string, strength float64) *OpMask {
	op := OpMask{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "mask", Active: true}},
		Tolerance:   tolerance,
		Overlay:     overlay,
		Strength:    strength,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func (op *OpMask) Apply(src *rgb.Image, c *Context) (result *rgb.Image, err error) {
	m, err := mask.Compute(src, op.Tolerance)
	if err != nil {
		return nil, err
	}
	fg, bg := m.Counts()
	fmt.Fprintf(c.Log, "%d: Foreground %d pixels within %v, background %d pixels with seed %v and tolerance %d\n",
		src.ID, fg, m.Bounds(), bg, src.Seed(), op.Tolerance)

	if op.Overlay == "" {
		result = m.ToImage()
	} else {
		tint, err := rgb.ParseColor(op.Overlay)
		if err != nil {
			return nil, fmt.Errorf("%d: overlay: %w", src.ID, err)
		}
		if result, err = m.Overlay(src, tint, op.Strength); err != nil {
			return nil, err
		}
	}
	result.ID, result.FileName = src.ID, src.FileName
	return result, nil
}

// Replaces each input image with a flat canvas. Takes n inputs, produces n outputs
type OpClear struct {
	OpUnaryBase
	Width  int    `json:"width"`  // 0 for the input width
	Height int    `json:"height"` // 0 for the input height
	Color  string `json:"color"`  // fill color, or SeedColor
}

func init() { SetOperatorFactory(func() Operator { return NewOpClearDefault() }) } // register the operator for JSON decoding

func NewOpClearDefault() *OpClear { return NewOpClear(0, 0, SeedColor) }

func NewOpClear(width, height int, color string) *OpClear {
	op := OpClear{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "clear", Active: true}},
		Width:       width,
		Height:      height,
		Color:       color,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func (op *OpClear) Apply(src *rgb.Image, c *Context) (result *rgb.Image, err error) {
	width, height := op.Width, op.Height
	if width <= 0 {
		width = src.Width
	}
	if height <= 0 {
		height = src.Height
	}
	color, err := parseColorSetting(op.Color, src)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", src.ID, err)
	}
	result = rgb.NewImage(width, height)
	result.ID, result.FileName = src.ID, src.FileName
	if color != nil {
		result.ClearToColor(*color)
	}
	fmt.Fprintf(c.Log, "%d: Cleared %s canvas to %v\n", src.ID, result.DimensionsToString(), color)
	return result, nil
}

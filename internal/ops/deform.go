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
	"errors"
	"fmt"

	"github.com/mlnoga/quadwarp/internal/composite"
	"github.com/mlnoga/quadwarp/internal/deform"
	"github.com/mlnoga/quadwarp/internal/homography"
	"github.com/mlnoga/quadwarp/internal/mask"
	"github.com/mlnoga/quadwarp/internal/rgb"
)

// Drags the image at From so that it lands on To
type Handle struct {
	From homography.Point2D `json:"from"`
	To   homography.Point2D `json:"to"`
}

// Parses handles from comma-separated coordinates fromX,fromY,toX,toY,...
func ParseHandles(s string) ([]Handle, error) {
	ps, err := homography.ParsePoints(s)
	if err != nil {
		return nil, err
	}
	if len(ps)%2 != 0 {
		return nil, errors.New("handles need four coordinates each")
	}
	hs := make([]Handle, len(ps)/2)
	for i := range hs {
		hs[i] = Handle{From: ps[2*i], To: ps[2*i+1]}
	}
	return hs, nil
}

// Bends each input image as rigidly as possible, so that its handles land on their targets.
// Takes n inputs, produces n outputs
type OpDeform struct {
	OpUnaryBase
	BoxSize    int                    `json:"boxSize"`    // edge length of the lattice boxes, 0 for the default
	Tolerance  int                    `json:"tolerance"`  // background tolerance for finding the foreground
	Handles    []Handle               `json:"handles"`
	Iterations int                    `json:"iterations"` // relaxation steps before projecting
	UseMask    bool                   `json:"useMask"`    // suppress background samples
	Sampling   composite.SamplingMode `json:"sampling"`
	Background string                 `json:"background"` // canvas color, SeedColor, or empty for black
	Miss       string                 `json:"miss"`
	Workers    int                    `json:"workers"`
}

func init() { SetOperatorFactory(func() Operator { return NewOpDeformDefault() }) } // register the operator for JSON decoding

func NewOpDeformDefault() *OpDeform { return NewOpDeform(nil, deform.DefaultBoxSize, 100) }

func NewOpDeform(handles []Handle, boxSize, iterations int) *OpDeform {
	op := OpDeform{
		OpUnaryBase: OpUnaryBase{OpBase: OpBase{Type: "deform", Active: true}},
		BoxSize:     boxSize,
		Tolerance:   5,
		Handles:     handles,
		Iterations:  iterations,
		UseMask:     true,
		Sampling:    composite.Bilinear,
		Background:  SeedColor,
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

func (op *OpDeform) Apply(src *rgb.Image, c *Context) (result *rgb.Image, err error) {
	m, err := mask.Compute(src, op.Tolerance)
	if err != nil {
		return nil, err
	}
	g, err := deform.NewGrid(m, op.BoxSize)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", src.ID, err)
	}
	for i, h := range op.Handles {
		id, err := g.AddHandle(h.From.X, h.From.Y)
		if err != nil {
			return nil, fmt.Errorf("%d: handle %d: %w", src.ID, i, err)
		}
		if err := g.MoveHandle(id, h.To.X, h.To.Y); err != nil {
			return nil, fmt.Errorf("%d: handle %d: %w", src.ID, i, err)
		}
	}
	for i := 0; i < op.Iterations; i++ {
		g.Regularize()
	}

	bg, err := parseColorSetting(op.Background, src)
	if err != nil {
		return nil, fmt.Errorf("%d: background: %w", src.ID, err)
	}
	miss, err := parseColorSetting(op.Miss, src)
	if err != nil {
		return nil, fmt.Errorf("%d: miss color: %w", src.ID, err)
	}
	result = rgb.NewImage(src.Width, src.Height)
	result.ID, result.FileName = src.ID, src.FileName
	if bg != nil {
		result.ClearToColor(*bg)
	}

	workers := op.Workers
	if workers <= 0 {
		workers = c.Workers
	}
	cfg := composite.Config{
		Sampling:   op.Sampling,
		MaskPolicy: composite.MaskNone,
		MissColor:  miss,
		Workers:    workers,
	}
	if op.UseMask {
		cfg.MaskPolicy = composite.MaskForegroundOnly
	}
	stats, err := g.Project(src, m, result, cfg)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(c.Log, "%d: Deformed %s image with %d boxes and %d handles over %d iterations, %v\n",
		src.ID, src.DimensionsToString(), g.NumBoxes(), len(op.Handles), op.Iterations, stats)
	return result, nil
}

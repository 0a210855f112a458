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

package homography

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// A 2-dimensional point with floating point coordinates.
type Point2D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (p Point2D) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y)
}

// A projective 2D transformation, stored as a row-major 3x3 matrix.
// By convention it maps destination pixel coordinates to homogeneous
// source coordinates. The perspective denominator is assumed to be
// non-zero over the sampled region, but this is not enforced.
type Homography [9]float64

// Returned when a homography cannot be solved for or inverted
var ErrSingular = errors.New("homography is singular")

func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Map applies the homography to the given point, including the perspective divide.
// A zero denominator yields non-finite coordinates, which callers must treat as no sample.
func (h *Homography) Map(x, y float64) (rx, ry float64) {
	rx = h[0]*x + h[1]*y + h[2]
	ry = h[3]*x + h[4]*y + h[5]
	rw := h[6]*x + h[7]*y + h[8]
	rx /= rw
	ry /= rw
	return rx, ry
}

// MapPoint is Map for a Point2D
func (h *Homography) MapPoint(p Point2D) Point2D {
	x, y := h.Map(p.X, p.Y)
	return Point2D{x, y}
}

// Returns true if all nine coefficients are finite
func (h *Homography) IsFinite() bool {
	for _, v := range h {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Normalize scales the homography so that the bottom right coefficient is one.
// Homographies are defined up to scale, so the mapping is unchanged.
// Leaves the homography as-is if that coefficient is zero.
func (h Homography) Normalize() Homography {
	if h[8] == 0 {
		return h
	}
	s := 1 / h[8]
	for i := range h {
		h[i] *= s
	}
	return h
}

// Compose returns the homography which applies g first, then h
func (h Homography) Compose(g Homography) Homography {
	var r Homography
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			sum := 0.0
			for k := 0; k < 3; k++ {
				sum += h[row*3+k] * g[k*3+col]
			}
			r[row*3+col] = sum
		}
	}
	return r
}

// Invert a homography. Returns ErrSingular if the matrix has no inverse.
func (h Homography) Invert() (Homography, error) {
	m := mat.NewDense(3, 3, h[:])
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Homography{}, fmt.Errorf("%w: %s", ErrSingular, err.Error())
	}
	var res Homography
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			res[row*3+col] = inv.At(row, col)
		}
	}
	if !res.IsFinite() {
		return Homography{}, ErrSingular
	}
	return res.Normalize(), nil
}

// Parses nine comma-separated coefficients in row-major order
func Parse(s string) (h Homography, err error) {
	vals, err := parseFloats(s)
	if err != nil {
		return h, err
	}
	if len(vals) != 9 {
		return h, fmt.Errorf("homography needs 9 coefficients, got %d", len(vals))
	}
	copy(h[:], vals)
	return h, nil
}

func (h Homography) String() string {
	return fmt.Sprintf("[%.6g %.6g %.6g; %.6g %.6g %.6g; %.6g %.6g %.6g]",
		h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7], h[8])
}

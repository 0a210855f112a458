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
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Calculate the homography which maps the four given points in the first coordinate
// system onto the four corresponding points in the second. Solves the 8x8 direct linear
// transform with the bottom right coefficient fixed at one.
func FromCorrespondences(from, to [4]Point2D) (Homography, error) {
	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		s, t := from[i], to[i]
		r := 2 * i
		a.Set(r, 0, s.X)
		a.Set(r, 1, s.Y)
		a.Set(r, 2, 1)
		a.Set(r, 6, -s.X*t.X)
		a.Set(r, 7, -s.Y*t.X)
		b.SetVec(r, t.X)

		a.Set(r+1, 3, s.X)
		a.Set(r+1, 4, s.Y)
		a.Set(r+1, 5, 1)
		a.Set(r+1, 6, -s.X*t.Y)
		a.Set(r+1, 7, -s.Y*t.Y)
		b.SetVec(r+1, t.Y)
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("%w: %s", ErrSingular, err.Error())
	}
	h := Homography{x.AtVec(0), x.AtVec(1), x.AtVec(2), x.AtVec(3), x.AtVec(4), x.AtVec(5), x.AtVec(6), x.AtVec(7), 1}
	if !h.IsFinite() {
		return Homography{}, ErrSingular
	}
	return h, nil
}

// ForCorners returns the destination-to-source homography which samples the source
// quadrilateral src into the destination quadrilateral dst.
func ForCorners(src, dst [4]Point2D) (Homography, error) {
	return FromCorrespondences(dst, src)
}

// Root mean square distance between the mapped from points and their to counterparts
func (h *Homography) Residual(from, to []Point2D) float64 {
	if len(from) == 0 || len(from) != len(to) {
		return math.NaN()
	}
	sum := 0.0
	for i, p := range from {
		q := h.MapPoint(p)
		dx, dy := q.X-to[i].X, q.Y-to[i].Y
		sum += dx*dx + dy*dy
	}
	return math.Sqrt(sum / float64(len(from)))
}

// Refine minimizes the reprojection error of the homography over all given
// correspondences, starting from h. Returns the refined homography and its residual.
// The result is never worse than the starting point.
func Refine(h Homography, from, to []Point2D) (Homography, float64, error) {
	if len(from) != len(to) {
		return h, 0, fmt.Errorf("have %d source and %d target points", len(from), len(to))
	}
	if len(from) < 4 {
		return h, 0, fmt.Errorf("need at least 4 correspondences, got %d", len(from))
	}
	h = h.Normalize()
	startResidual := h.Residual(from, to)

	x0 := make([]float64, 8)
	copy(x0, h[:8])
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			tr := Homography{x[0], x[1], x[2], x[3], x[4], x[5], x[6], x[7], 1}
			r := tr.Residual(from, to)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return math.MaxFloat64
			}
			return r
		},
	}
	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		return h, startResidual, nil
	}
	x := result.X
	refined := Homography{x[0], x[1], x[2], x[3], x[4], x[5], x[6], x[7], 1}
	if residual := refined.Residual(from, to); residual < startResidual {
		return refined, residual, nil
	}
	return h, startResidual, nil
}

// Fit calculates a homography from four or more correspondences. Seeds from the
// first four pairs, then refines over all of them if more are given.
func Fit(from, to []Point2D) (Homography, float64, error) {
	if len(from) != len(to) {
		return Homography{}, 0, fmt.Errorf("have %d source and %d target points", len(from), len(to))
	}
	if len(from) < 4 {
		return Homography{}, 0, fmt.Errorf("need at least 4 correspondences, got %d", len(from))
	}
	var f, t [4]Point2D
	copy(f[:], from[:4])
	copy(t[:], to[:4])
	h, err := FromCorrespondences(f, t)
	if err != nil {
		return Homography{}, 0, err
	}
	if len(from) == 4 {
		return h, h.Residual(from, to), nil
	}
	return Refine(h, from, to)
}

// Parses comma-separated x,y pairs into points
func ParsePoints(s string) ([]Point2D, error) {
	vals, err := parseFloats(s)
	if err != nil {
		return nil, err
	}
	if len(vals)%2 != 0 {
		return nil, errors.New("odd number of coordinates")
	}
	ps := make([]Point2D, len(vals)/2)
	for i := range ps {
		ps[i] = Point2D{vals[2*i], vals[2*i+1]}
	}
	return ps, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' || r == ' ' })
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number '%s'", f)
		}
		vals[i] = v
	}
	return vals, nil
}

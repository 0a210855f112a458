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

// Package deform bends an image as rigidly as possible. A lattice of square
// boxes covers the foreground. Handles pin lattice vertices to target positions;
// each iteration fits every box rigidly onto its vertices, weighted by proximity
// to the handles, and moves shared vertices to the average of their boxes.
// Boxes are then projected individually through their own homography.
package deform

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/mlnoga/quadwarp/internal/composite"
	"github.com/mlnoga/quadwarp/internal/homography"
	"github.com/mlnoga/quadwarp/internal/mask"
	"github.com/mlnoga/quadwarp/internal/raster"
	"github.com/mlnoga/quadwarp/internal/rgb"
)

// Default edge length of grid boxes in pixels
const DefaultBoxSize = 32

// Weight of a vertex under a handle. Weights fall off by BoxSize² per lattice step,
// and never below the default weight of one.
const HandleWeight = 100000

var (
	ErrNoForeground  = errors.New("mask has no foreground")
	ErrNoBox         = errors.New("point is not inside any grid box")
	ErrUnknownHandle = errors.New("unknown handle")
)

type vertex struct {
	rest   image.Point
	pos    homography.Point2D
	weight float64
	links  []corner // box corners sharing this vertex
}

type corner struct {
	box, i int
}

type box struct {
	vertices [4]int // top left, top right, bottom right, bottom left
	rigid    [4]homography.Point2D
	pc       homography.Point2D // weighted centroid of the rest corners
}

type handle struct {
	vertex int
	target homography.Point2D
	offset homography.Point2D // vertex position minus grab point
}

// A deformation lattice over the foreground of an image
type Grid struct {
	BoxSize  int
	vertices []vertex
	boxes    []box
	index    map[image.Point]int // vertex by rest position
	handles  map[int]*handle
	nextID   int
}

// Creates a grid of boxes of the given size over the foreground bounds of the mask,
// centered on the bounds. Boxes without any foreground pixel are left out.
// A box size <= 0 selects DefaultBoxSize.
func NewGrid(m *mask.Mask, boxSize int) (*Grid, error) {
	if boxSize <= 0 {
		boxSize = DefaultBoxSize
	}
	b := m.Bounds()
	if b.Empty() {
		return nil, ErrNoForeground
	}
	w, h := b.Dx(), b.Dy()
	nx, ny := (w+boxSize-1)/boxSize, (h+boxSize-1)/boxSize
	x0 := b.Min.X - (nx*boxSize-w)/2
	y0 := b.Min.Y - (ny*boxSize-h)/2

	g := &Grid{
		BoxSize: boxSize,
		index:   map[image.Point]int{},
		handles: map[int]*handle{},
	}
	for by := 0; by < ny; by++ {
		for bx := 0; bx < nx; bx++ {
			x, y := x0+bx*boxSize, y0+by*boxSize
			if hasForeground(m, image.Rect(x, y, x+boxSize, y+boxSize)) {
				g.addBox(x, y)
			}
		}
	}
	return g, nil
}

func hasForeground(m *mask.Mask, r image.Rectangle) bool {
	r = r.Intersect(image.Rect(0, 0, m.Width, m.Height))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.At(x, y) {
				return true
			}
		}
	}
	return false
}

func (g *Grid) addBox(x, y int) {
	s := g.BoxSize
	rest := [4]image.Point{{x, y}, {x + s, y}, {x + s, y + s}, {x, y + s}}
	b := box{}
	for i, p := range rest {
		v, ok := g.index[p]
		if !ok {
			v = len(g.vertices)
			g.vertices = append(g.vertices, vertex{rest: p, pos: toPoint(p), weight: 1})
			g.index[p] = v
		}
		g.vertices[v].links = append(g.vertices[v].links, corner{len(g.boxes), i})
		b.vertices[i] = v
		b.rigid[i] = toPoint(p)
	}
	g.boxes = append(g.boxes, b)
	g.sourceCentroid(len(g.boxes) - 1)
}

func toPoint(p image.Point) homography.Point2D {
	return homography.Point2D{X: float64(p.X), Y: float64(p.Y)}
}

// Number of boxes in the grid
func (g *Grid) NumBoxes() int { return len(g.boxes) }

// State of one lattice vertex
type Vertex struct {
	Rest   image.Point
	Pos    homography.Point2D
	Weight float64
}

// Returns the state of all lattice vertices, in order of creation
func (g *Grid) Vertices() []Vertex {
	res := make([]Vertex, len(g.vertices))
	for i, v := range g.vertices {
		res[i] = Vertex{Rest: v.rest, Pos: v.pos, Weight: v.weight}
	}
	return res
}

// Returns the current corners of each box, rounded to pixels
func (g *Grid) Quads() []raster.Quad {
	res := make([]raster.Quad, len(g.boxes))
	for i, b := range g.boxes {
		for j, v := range b.vertices {
			p := g.vertices[v].pos
			res[i][j] = image.Point{int(math.Round(p.X)), int(math.Round(p.Y))}
		}
	}
	return res
}

// Grabs the grid at (x,y), which must lie inside a box at rest. Pins the nearest
// corner of that box and returns the handle id.
func (g *Grid) AddHandle(x, y float64) (int, error) {
	s := float64(g.BoxSize)
	for _, b := range g.boxes {
		tl := g.vertices[b.vertices[0]].rest
		if x < float64(tl.X) || x > float64(tl.X)+s || y < float64(tl.Y) || y > float64(tl.Y)+s {
			continue
		}

		closest, minDist := -1, 0.0
		for _, v := range b.vertices {
			p := g.vertices[v].pos
			dist := math.Abs(p.X-x) + math.Abs(p.Y-y)
			if closest < 0 || dist < minDist {
				closest, minDist = v, dist
			}
		}
		pos := g.vertices[closest].pos
		id := g.nextID
		g.nextID++
		g.handles[id] = &handle{
			vertex: closest,
			target: pos,
			offset: homography.Point2D{X: pos.X - x, Y: pos.Y - y},
		}
		g.propagate(closest, HandleWeight)
		g.sourceCentroids()
		return id, nil
	}
	return 0, fmt.Errorf("%w: (%.1f, %.1f)", ErrNoBox, x, y)
}

// Drags the handle so that its grab point lands on (x,y)
func (g *Grid) MoveHandle(id int, x, y float64) error {
	h, ok := g.handles[id]
	if !ok {
		return fmt.Errorf("%w %d", ErrUnknownHandle, id)
	}
	h.target = homography.Point2D{X: x + h.offset.X, Y: y + h.offset.Y}
	return nil
}

// Releases the handle and recomputes the weights of the remaining ones
func (g *Grid) RemoveHandle(id int) error {
	if _, ok := g.handles[id]; !ok {
		return fmt.Errorf("%w %d", ErrUnknownHandle, id)
	}
	delete(g.handles, id)
	for i := range g.vertices {
		g.vertices[i].weight = 1
	}
	ids := make([]int, 0, len(g.handles))
	for id := range g.handles {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		g.propagate(g.handles[id].vertex, HandleWeight)
	}
	g.sourceCentroids()
	return nil
}

// Spreads the weight breadth-first over the lattice, losing BoxSize² per step.
// Each vertex keeps the largest weight it receives.
func (g *Grid) propagate(start int, weight float64) {
	s := g.BoxSize
	step := float64(s * s)
	dirs := [4]image.Point{{-s, 0}, {s, 0}, {0, -s}, {0, s}}

	visited := map[int]bool{start: true}
	queue := []int{start}
	weights := []float64{weight}
	for head := 0; head < len(queue); head++ {
		v, w := queue[head], weights[head]
		if w > g.vertices[v].weight {
			g.vertices[v].weight = w
		}
		for _, d := range dirs {
			n, ok := g.index[g.vertices[v].rest.Add(d)]
			if ok && !visited[n] {
				visited[n] = true
				queue = append(queue, n)
				weights = append(weights, w-step)
			}
		}
	}
}

func (g *Grid) sourceCentroids() {
	for i := range g.boxes {
		g.sourceCentroid(i)
	}
}

func (g *Grid) sourceCentroid(i int) {
	b := &g.boxes[i]
	var sum, x, y float64
	for _, vi := range b.vertices {
		v := &g.vertices[vi]
		sum += v.weight
		x += v.weight * float64(v.rest.X)
		y += v.weight * float64(v.rest.Y)
	}
	b.pc = homography.Point2D{X: x / sum, Y: y / sum}
}

// One relaxation step: pins handle vertices to their targets, fits each box
// rigidly onto its vertices, then moves every vertex to the average of the
// fitted corners it is shared by.
func (g *Grid) Regularize() {
	for _, h := range g.handles {
		g.vertices[h.vertex].pos = h.target
	}
	for i := range g.boxes {
		g.fit(&g.boxes[i])
	}
	for i := range g.vertices {
		v := &g.vertices[i]
		var x, y float64
		for _, l := range v.links {
			p := g.boxes[l.box].rigid[l.i]
			x += p.X
			y += p.Y
		}
		n := float64(len(v.links))
		v.pos = homography.Point2D{X: x / n, Y: y / n}
	}
}

// Weighted least squares rotation and translation of the rest corners onto the current vertices
func (g *Grid) fit(b *box) {
	var sum, qx, qy float64
	for _, vi := range b.vertices {
		v := &g.vertices[vi]
		sum += v.weight
		qx += v.weight * v.pos.X
		qy += v.weight * v.pos.Y
	}
	qc := homography.Point2D{X: qx / sum, Y: qy / sum}

	var cos, sin float64
	for _, vi := range b.vertices {
		v := &g.vertices[vi]
		px, py := float64(v.rest.X)-b.pc.X, float64(v.rest.Y)-b.pc.Y
		dx, dy := v.pos.X-qc.X, v.pos.Y-qc.Y
		cos += v.weight * (px*dx + py*dy)
		sin += v.weight * (px*dy - py*dx)
	}
	if norm := math.Hypot(cos, sin); norm > 0 {
		cos, sin = cos/norm, sin/norm
	} else {
		cos, sin = 1, 0
	}

	for i, vi := range b.vertices {
		v := &g.vertices[vi]
		px, py := float64(v.rest.X)-b.pc.X, float64(v.rest.Y)-b.pc.Y
		b.rigid[i] = homography.Point2D{X: cos*px - sin*py + qc.X, Y: sin*px + cos*py + qc.Y}
	}
}

// Projects every box of the source image into its current position on the destination.
// Boxes still at rest are copied through the identity.
func (g *Grid) Project(src *rgb.Image, m *mask.Mask, dst *rgb.Image, cfg composite.Config) (stats composite.Stats, err error) {
	for i, b := range g.boxes {
		var rest, cur [4]homography.Point2D
		atRest := true
		for j, vi := range b.vertices {
			v := &g.vertices[vi]
			rest[j], cur[j] = toPoint(v.rest), v.pos
			atRest = atRest && rest[j] == cur[j]
		}
		h := homography.Identity()
		if !atRest {
			if h, err = homography.ForCorners(rest, cur); err != nil {
				return stats, fmt.Errorf("%d: box %d: %w", src.ID, i, err)
			}
		}

		var q raster.Quad
		for j, p := range cur {
			q[j] = image.Point{int(math.Round(p.X)), int(math.Round(p.Y))}
		}
		s, err := composite.Project(h, src, m, dst, q, cfg)
		if err != nil {
			return stats, err
		}
		stats.Add(s)
	}
	return stats, nil
}

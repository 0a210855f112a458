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

// Package composite warps a source image into a quadrilateral of a destination
// image, sampling the source through a destination-to-source homography.
package composite

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/mlnoga/quadwarp/internal/homography"
	"github.com/mlnoga/quadwarp/internal/mask"
	"github.com/mlnoga/quadwarp/internal/raster"
	"github.com/mlnoga/quadwarp/internal/rgb"
)

// How source samples are reconstructed at fractional coordinates
type SamplingMode int

const (
	Bilinear SamplingMode = iota
	Nearest
)

var samplingModeNames = []string{"bilinear", "nearest"}

// Name of the mode, as used on the command line and in job files
func (s SamplingMode) String() string {
	if s < 0 || int(s) >= len(samplingModeNames) {
		return fmt.Sprintf("SamplingMode(%d)", int(s))
	}
	return samplingModeNames[s]
}

// Encodes the mode by name. Fails for unknown modes.
func (s SamplingMode) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(samplingModeNames) {
		return nil, fmt.Errorf("invalid sampling mode %d", int(s))
	}
	return []byte(samplingModeNames[s]), nil
}

// Decodes a mode name, ignoring case
func (s *SamplingMode) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	for i, n := range samplingModeNames {
		if n == name {
			*s = SamplingMode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown sampling mode '%s'", string(b))
}

// Whether a foreground mask suppresses samples
type MaskPolicy int

const (
	MaskForegroundOnly MaskPolicy = iota // sample only where the mask is true, if a mask is given
	MaskNone                             // ignore any given mask
)

var maskPolicyNames = []string{"foregroundOnly", "none"}

// Name of the policy, or MaskPolicy(n) for values out of range
func (p MaskPolicy) String() string {
	if p < 0 || int(p) >= len(maskPolicyNames) {
		return fmt.Sprintf("MaskPolicy(%d)", int(p))
	}
	return maskPolicyNames[p]
}

// Encodes the policy by name. Fails for unknown policies.
func (p MaskPolicy) MarshalText() ([]byte, error) {
	if p < 0 || int(p) >= len(maskPolicyNames) {
		return nil, fmt.Errorf("invalid mask policy %d", int(p))
	}
	return []byte(maskPolicyNames[p]), nil
}

// Parses a policy name, ignoring case
func (p *MaskPolicy) UnmarshalText(b []byte) error {
	name := strings.TrimSpace(string(b))
	for i, n := range maskPolicyNames {
		if strings.EqualFold(n, name) {
			*p = MaskPolicy(i)
			return nil
		}
	}
	return fmt.Errorf("unknown mask policy '%s'", string(b))
}

// Compositor settings. The zero value is bilinear sampling honoring
// any given mask, leaving misses untouched, on a single thread.
type Config struct {
	Sampling   SamplingMode `json:"sampling"   yaml:"sampling"`
	MaskPolicy MaskPolicy   `json:"maskPolicy" yaml:"maskPolicy"`
	MissColor  *rgb.Color   `json:"missColor"  yaml:"missColor"` // written where no sample is taken; nil leaves those pixels untouched
	Workers    int          `json:"workers"    yaml:"workers"`   // number of row bands processed concurrently, <=1 is sequential
}

// Bilinear sampling honoring the mask, on a single thread
func DefaultConfig() Config {
	return Config{Sampling: Bilinear, MaskPolicy: MaskForegroundOnly, Workers: 1}
}

// Pixel counts from one projection
type Stats struct {
	Covered     int // span pixels inside the destination
	Written     int // pixels written with a source sample
	OutOfBounds int // pixels whose sample fell outside the source, or was not finite
	Masked      int // pixels whose sample hit the source background
	Clipped     int // span pixels left or right of the destination
	ClippedRows int // quad rows above or below the destination
}

// Accumulates the counts of another projection
func (s *Stats) Add(o Stats) {
	s.Covered += o.Covered
	s.Written += o.Written
	s.OutOfBounds += o.OutOfBounds
	s.Masked += o.Masked
	s.Clipped += o.Clipped
	s.ClippedRows += o.ClippedRows
}

// Number of covered pixels that received no source sample
func (s Stats) Missed() int {
	return s.OutOfBounds + s.Masked
}

func (s Stats) String() string {
	pct := 0.0
	if s.Covered > 0 {
		pct = 100 * float64(s.Written) / float64(s.Covered)
	}
	return fmt.Sprintf("covered %d written %d (%.1f%%) out of bounds %d masked %d clipped %d pixels %d rows",
		s.Covered, s.Written, pct, s.OutOfBounds, s.Masked, s.Clipped, s.ClippedRows)
}

// Returned when a mask does not have the dimensions of its source image
var ErrMaskMismatch = errors.New("mask dimensions do not match source image")

// Project the source image into the given quad of the destination image.
// Every destination pixel (x,y) covered by the quad and inside the destination
// is mapped through h into the source. Accepted samples are written, rejected
// ones are left untouched or set to cfg.MissColor. The mask is optional.
func Project(h homography.Homography, src *rgb.Image, m *mask.Mask, dst *rgb.Image, corners raster.Quad, cfg Config) (Stats, error) {
	if src == nil || dst == nil {
		return Stats{}, errors.New("nil source or destination image")
	}
	if err := src.Check(); err != nil {
		return Stats{}, fmt.Errorf("source: %w", err)
	}
	if err := dst.Check(); err != nil {
		return Stats{}, fmt.Errorf("destination: %w", err)
	}
	if m != nil && (m.Width != src.Width || m.Height != src.Height || len(m.Data) != m.Width*m.Height) {
		return Stats{}, fmt.Errorf("%d: %w: mask %dx%d, source %s", src.ID, ErrMaskMismatch, m.Width, m.Height, src.DimensionsToString())
	}
	if cfg.Sampling != Bilinear && cfg.Sampling != Nearest {
		return Stats{}, fmt.Errorf("invalid sampling mode %d", int(cfg.Sampling))
	}

	p := &projector{
		h:    h,
		src:  src,
		dst:  dst,
		cfg:  cfg,
		maxX: float64(src.Width - 1),
		maxY: float64(src.Height - 1),
	}
	if m != nil && cfg.MaskPolicy == MaskForegroundOnly {
		p.mask = m
	}

	table, err := raster.RasterizeRows(corners, 0, dst.Height-1)
	if err != nil {
		return Stats{}, fmt.Errorf("%d: %w", src.ID, err)
	}
	stats := Stats{ClippedRows: table.ClippedRows()}
	lower, upper := table.MinY, table.MaxY()+1
	if lower >= upper {
		return stats, nil
	}

	workers := cfg.Workers
	if workers <= 1 || upper-lower < 2 {
		stats.Add(p.rows(table, lower, upper))
		return stats, nil
	}

	// split into 4 bands per worker, at least one row each
	numBands := 4 * workers
	if numBands > upper-lower {
		numBands = upper - lower
	}
	bandSize := (upper - lower + numBands - 1) / numBands
	sem := make(chan bool, workers)
	statsLock := sync.Mutex{}
	for bandLower := lower; bandLower < upper; bandLower += bandSize {
		bandUpper := bandLower + bandSize
		if bandUpper > upper {
			bandUpper = upper
		}

		sem <- true
		go func(bandLower, bandUpper int) {
			defer func() { <-sem }()
			bandStats := p.rows(table, bandLower, bandUpper)
			statsLock.Lock()
			stats.Add(bandStats)
			statsLock.Unlock()
		}(bandLower, bandUpper)
	}
	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}
	return stats, nil
}

// Shared read-only state of one projection
type projector struct {
	h    homography.Homography
	src  *rgb.Image
	mask *mask.Mask // nil if samples are not masked
	dst  *rgb.Image
	cfg  Config
	maxX float64 // largest valid source coordinate in x
	maxY float64 // largest valid source coordinate in y
}

// Projects destination rows [lower, upper), which must lie inside the destination
func (p *projector) rows(table *raster.SpanTable, lower, upper int) (stats Stats) {
	width := p.dst.Width
	for y := lower; y < upper; y++ {
		s, ok := table.Span(y)
		if !ok {
			continue
		}
		left, right := s.Left, s.Right
		if left < 0 {
			left = 0
		}
		if right > width-1 {
			right = width - 1
		}
		if left > right {
			stats.Clipped += s.Len()
			continue
		}
		stats.Clipped += s.Len() - (right - left + 1)
		stats.Covered += right - left + 1

		out := p.dst.Data[y*width*rgb.Channels:]
		for x := left; x <= right; x++ {
			o := out[x*rgb.Channels : x*rgb.Channels+rgb.Channels]
			rx, ry := p.h.Map(float64(x), float64(y))
			var hit bool
			if p.cfg.Sampling == Nearest {
				hit = p.nearest(rx, ry, o, &stats)
			} else {
				hit = p.bilinear(rx, ry, o, &stats)
			}
			if hit {
				stats.Written++
			} else if p.cfg.MissColor != nil {
				o[0], o[1], o[2] = p.cfg.MissColor.R, p.cfg.MissColor.G, p.cfg.MissColor.B
			}
		}
	}
	return stats
}

// Returns true if the source pixel nearest to (rx,ry) is background
func (p *projector) masked(rx, ry float64) bool {
	if p.mask == nil {
		return false
	}
	return !p.mask.At(int(math.Round(rx)), int(math.Round(ry)))
}

// Blends the four source pixels around (rx,ry) into out. The footprint must lie
// inside the source. A right or bottom neighbor with zero weight may lie on the
// last column or row. Comparisons fail for NaN, so non-finite coordinates miss.
func (p *projector) bilinear(rx, ry float64, out []byte, stats *Stats) bool {
	// rx == maxX is accepted, its right neighbor is clamped below and gets weight fx == 0
	if !(rx >= 0 && rx <= p.maxX && ry >= 0 && ry <= p.maxY) {
		stats.OutOfBounds++
		return false
	}
	if p.masked(rx, ry) {
		stats.Masked++
		return false
	}

	lft, top := int(rx), int(ry)
	fx, fy := rx-float64(lft), ry-float64(top)
	rgt, btm := lft+1, top+1
	if rgt >= p.src.Width {
		rgt = lft
	}
	if btm >= p.src.Height {
		btm = top
	}

	tl, tr := (1-fx)*(1-fy), fx*(1-fy)
	bl, br := (1-fx)*fy, fx*fy

	stride := p.src.Width * rgb.Channels
	d := p.src.Data
	iTL, iTR := top*stride+lft*rgb.Channels, top*stride+rgt*rgb.Channels
	iBL, iBR := btm*stride+lft*rgb.Channels, btm*stride+rgt*rgb.Channels
	for c := 0; c < rgb.Channels; c++ {
		sum := tl*float64(d[iTL+c]) + tr*float64(d[iTR+c]) + bl*float64(d[iBL+c]) + br*float64(d[iBR+c])
		out[c] = byte(int(sum) & 255)
	}
	return true
}

// Copies the source pixel nearest to (rx,ry) into out
func (p *projector) nearest(rx, ry float64, out []byte, stats *Stats) bool {
	nx, ny := math.Round(rx), math.Round(ry)
	if !(nx >= 0 && nx < float64(p.src.Width) && ny >= 0 && ny < float64(p.src.Height)) {
		stats.OutOfBounds++
		return false
	}
	if p.masked(rx, ry) {
		stats.Masked++
		return false
	}
	i := (int(ny)*p.src.Width + int(nx)) * rgb.Channels
	copy(out, p.src.Data[i:i+rgb.Channels])
	return true
}

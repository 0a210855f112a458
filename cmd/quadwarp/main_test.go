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

package main

import (
	"testing"

	"github.com/mlnoga/quadwarp/internal/homography"
)

func TestOutputPattern(t *testing.T) {
	tcs := []struct {
		In   string
		N    int
		Want string
	}{
		{"out.png", 1, "out.png"},
		{"out.png", 3, "out%d.png"},
		{"dir/out%02d.jpg", 3, "dir/out%02d.jpg"},
		{"out", 2, "out%d"},
	}
	for _, tc := range tcs {
		if got := outputPattern(tc.In, tc.N); got != tc.Want {
			t.Errorf("outputPattern(%q, %d)=%q; want %q", tc.In, tc.N, got, tc.Want)
		}
	}
}

func TestCoefficientsParseBack(t *testing.T) {
	h := homography.Homography{1, 0.5, -3, 0, 2, 4.25, 0.001, 0, 1}
	back, err := homography.Parse(coefficients(h))
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if back != h {
		t.Errorf("parsed %v; want %v", back, h)
	}
}

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

package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogAlsoToFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "run.log")
	if err := LogAlsoToFile(fileName); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	LogPrintf("%d: Warped %s\n", 1, "4x4")
	LogPrintln("second", "line")
	if err := LogSync(); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if err := LogClose(); err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	LogPrint("stdout only\n")

	b, err := os.ReadFile(fileName)
	if err != nil {
		t.Fatalf("unexpected error %s", err)
	}
	if got, want := string(b), "1: Warped 4x4\nsecond line\n"; got != want {
		t.Errorf("log file=%q; want %q", got, want)
	}
	if strings.Contains(string(b), "stdout only") {
		t.Errorf("closed log file still written")
	}
}

func TestLogAlsoToFileFailsForMissingDir(t *testing.T) {
	if err := LogAlsoToFile(filepath.Join(t.TempDir(), "missing", "run.log")); err == nil {
		t.Errorf("expected error for missing directory")
	}
	if err := LogSync(); err != nil {
		t.Errorf("sync without file: %s", err)
	}
}

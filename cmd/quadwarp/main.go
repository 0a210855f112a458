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
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"

	nl "github.com/mlnoga/quadwarp/internal"
	"github.com/mlnoga/quadwarp/internal/composite"
	"github.com/mlnoga/quadwarp/internal/deform"
	"github.com/mlnoga/quadwarp/internal/homography"
	"github.com/mlnoga/quadwarp/internal/ops"
	"github.com/mlnoga/quadwarp/internal/raster"
	"github.com/mlnoga/quadwarp/internal/rest"
	"github.com/mlnoga/quadwarp/internal/rgb"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out = flag.String("out", "out.png", "save output to `file`. Format by suffix: .jpg, .png, .tif or .bmp. With several inputs, %d is replaced by the input number")
var maskOut = flag.String("mask", "", "save the foreground mask of each input with given filename pattern, e.g. `mask%02d.png`")
var log = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of output file with .log")

var corners = flag.String("corners", "", "destination quad `x0,y0,x1,y1,x2,y2,x3,y3`, clockwise from top left. Empty for the full canvas")
var srcCorners = flag.String("srcCorners", "", "source quad `x0,y0,x1,y1,x2,y2,x3,y3` mapped onto the destination quad. Empty for the full source")
var srcPoints = flag.String("srcPoints", "", "source points `x0,y0,...` for fitting a homography from four or more correspondences")
var dstPoints = flag.String("dstPoints", "", "destination points `x0,y0,...` for fitting a homography from four or more correspondences")
var hom = flag.String("homography", "", "explicit destination-to-source homography `h0,...,h8`, overrides corners and points")

var useMask = flag.Bool("useMask", false, "suppress the background connected to the top left pixel of the source")
var tol = flag.Int("tol", 5, "per-channel tolerance for background detection")
var sampling = composite.Bilinear
var bg = flag.String("bg", ops.SeedColor, "canvas color as `#rrggbb` or r,g,b. `%seed` uses the top left pixel of the source, empty for black")
var miss = flag.String("miss", "", "color for covered pixels without a source sample, e.g. magenta for debugging. Empty leaves the canvas")
var overlay = flag.String("overlay", "", "mask command: tint background pixels of the source with this color instead of writing a black and white mask")
var strength = flag.Float64("strength", 0.5, "mask command: blend factor for the overlay tint in [0,1]")

var handles = flag.String("handles", "", "deform: handles `fromX,fromY,toX,toY;...` dragging the image at each from point onto its to point")
var boxSize = flag.Int("boxSize", deform.DefaultBoxSize, "deform: edge length of the lattice boxes in pixels")
var iterations = flag.Int("iterations", 100, "deform: relaxation steps before projecting")

var width = flag.Int("width", 0, "canvas width, 0=source width")
var height = flag.Int("height", 0, "canvas height, 0=source height")
var workers = flag.Int("workers", defaultWorkers(), "number of row bands to warp concurrently per image")
var quality = flag.Int("quality", 95, "JPEG output quality")

var addr = flag.String("addr", ":8080", "serve: listen on `address`")
var chroot = flag.String("chroot", "", "serve: change file system root to `directory` before serving (requires root)")
var setuid = flag.Int("setuid", -1, "serve: change user id before serving, -1=keep")

func init() {
	flag.TextVar(&sampling, "sampling", composite.Bilinear, "sampling mode, `bilinear` or nearest")
}

// Number of logical cores, as identified by the CPU
func defaultWorkers() int {
	if cpuid.CPU.LogicalCores > 0 {
		return cpuid.CPU.LogicalCores
	}
	return runtime.NumCPU()
}

func main() {
	logWriter := nl.LogWriter
	debug.SetGCPercent(10)
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(logWriter, `Quadwarp Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (warp|deform|mask|fit|job|serve|legal|version) (img0.png ... imgn.png)

Commands:
  warp    Warp input images into the destination quad of a new canvas
  deform  Bend input images as rigidly as possible along the given handles
  mask    Write the foreground mask of input images
  fit     Fit a homography to point correspondences and print it
  job     Run the operator sequence from a JSON or YAML job file
  serve   Serve the REST API
  legal   Show license and attribution information
  version Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *log == "%auto" {
		if *out != "" {
			*log = strings.TrimSuffix(strings.ReplaceAll(*out, "%", ""), filepath.Ext(*out)) + ".log"
		} else {
			*log = ""
		}
	}
	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}
	switch args[0] {
	case "warp", "deform", "mask", "job":
		if *log != "" {
			if err := nl.LogAlsoToFile(*log); err != nil {
				nl.LogFatalf("Unable to open logfile '%s': %s\n", *log, err)
			}
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	ctx := ops.NewContext(logWriter)
	ctx.Workers = *workers

	var err error
	switch args[0] {
	case "warp":
		err = cmdWarp(args[1:], ctx)

	case "deform":
		err = cmdDeform(args[1:], ctx)

	case "mask":
		err = cmdMask(args[1:], ctx)

	case "fit":
		err = cmdFit()

	case "job":
		err = cmdJob(args[1:], ctx)

	case "serve":
		if err = rest.MakeSandbox(*chroot, *setuid, logWriter); err == nil {
			err = rest.Serve(*addr)
		}

	case "legal":
		nl.LogPrint(legal)

	case "version":
		nl.LogPrintf("Version %s, %s %s/%s\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		nl.LogPrintf("CPU %s with %d physical and %d logical cores, AVX2 %v\n",
			cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, cpuid.CPU.AVX2())
		nl.LogPrintf("Memory %d MiB, using up to %d MiB for jobs\n", memory.TotalMemory()/1024/1024, ctx.JobMemoryMB)

	case "help", "?":
		flag.Usage()

	default:
		nl.LogPrintf("Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	elapsed := time.Since(start)
	nl.LogPrintf("\nDone after %v\n", elapsed)

	// Store memory profile if flagged
	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			nl.LogFatal("Could not create memory profile: ", err)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if err := pprof.Lookup("allocs").WriteTo(f, 0); err != nil {
			nl.LogFatal("Could not write allocation profile: ", err)
		}
	}

	if err != nil {
		nl.LogFatalf("Error: %s\n", err.Error())
	}
	nl.LogClose()
}

// Builds the warp operator from the command line flags
func warpFromFlags() (*ops.OpWarp, error) {
	op := ops.NewOpWarp(nil, nil, *useMask, *tol)
	op.Width, op.Height = *width, *height
	op.Sampling = sampling
	op.Background, op.Miss = *bg, *miss
	op.Workers = *workers
	if *useMask {
		op.MaskFile = *maskOut
	}

	if *corners != "" {
		q, err := raster.ParseQuad(*corners)
		if err != nil {
			return nil, fmt.Errorf("corners: %w", err)
		}
		c := q.Ints()
		op.Corners = c[:]
	}
	if *srcCorners != "" {
		q, err := raster.ParseQuad(*srcCorners)
		if err != nil {
			return nil, fmt.Errorf("srcCorners: %w", err)
		}
		c := q.Ints()
		op.SrcCorners = c[:]
	}
	if *srcPoints != "" || *dstPoints != "" {
		var err error
		if op.SrcPoints, err = homography.ParsePoints(*srcPoints); err != nil {
			return nil, fmt.Errorf("srcPoints: %w", err)
		}
		if op.DstPoints, err = homography.ParsePoints(*dstPoints); err != nil {
			return nil, fmt.Errorf("dstPoints: %w", err)
		}
	}
	if *hom != "" {
		h, err := homography.Parse(*hom)
		if err != nil {
			return nil, fmt.Errorf("homography: %w", err)
		}
		op.Homography = h[:]
	}
	return op, nil
}

// Returns the output pattern for the given number of inputs, inserting
// the image number before the suffix if several inputs share one output name
func outputPattern(fileName string, numInputs int) string {
	if numInputs <= 1 || strings.Contains(fileName, "%") {
		return fileName
	}
	ext := filepath.Ext(fileName)
	return strings.TrimSuffix(fileName, ext) + "%d" + ext
}

// Runs the load, process and save sequence on the files matching the given patterns
func runOnFiles(patterns []string, op ops.Operator, bytesPerJob func(fileName string) int64, ctx *ops.Context) error {
	load := ops.NewOpLoadMany(patterns)
	fileNames, err := load.FileNames(ctx)
	if err != nil {
		return err
	}
	if len(fileNames) == 0 {
		return fmt.Errorf("no input files matching %v", patterns)
	}
	save := ops.NewOpSave(outputPattern(*out, len(fileNames)))
	save.Quality = *quality

	maxJobs := ctx.MaxJobs(bytesPerJob(fileNames[0]))
	fmt.Fprintf(ctx.Log, "Processing %d files with up to %d concurrent jobs\n", len(fileNames), maxJobs)

	promises, err := ops.NewOpSequence(load, op, save).MakePromises(nil, ctx)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, maxJobs, true)
	return err
}

func cmdWarp(patterns []string, ctx *ops.Context) error {
	opWarp, err := warpFromFlags()
	if err != nil {
		return err
	}
	return runOnFiles(patterns, opWarp, opWarp.EstimateBytes, ctx)
}

func cmdDeform(patterns []string, ctx *ops.Context) error {
	hs, err := ops.ParseHandles(*handles)
	if err != nil {
		return fmt.Errorf("handles: %w", err)
	}
	opDeform := ops.NewOpDeform(hs, *boxSize, *iterations)
	opDeform.Tolerance = *tol
	opDeform.Sampling = sampling
	opDeform.Background, opDeform.Miss = *bg, *miss
	opDeform.Workers = *workers
	return runOnFiles(patterns, opDeform, deformBytes, ctx)
}

// Source, mask, visited flags and canvas of one deformation
func deformBytes(fileName string) int64 {
	width, height, err := rgb.ReadConfig(fileName)
	if err != nil {
		return 0
	}
	return int64(width) * int64(height) * (2*rgb.Channels + 2)
}

func cmdMask(patterns []string, ctx *ops.Context) error {
	opMask := ops.NewOpMask(*tol, *overlay, *strength)
	return runOnFiles(patterns, opMask, func(string) int64 { return 0 }, ctx)
}

func cmdJob(args []string, ctx *ops.Context) error {
	if len(args) != 1 {
		return fmt.Errorf("job needs exactly one job file, got %d arguments", len(args))
	}
	op, err := ops.LoadJob(args[0])
	if err != nil {
		return err
	}
	promises, err := op.MakePromises(nil, ctx)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, ctx.MaxThreads, true)
	return err
}

// Fits the destination-to-source homography to the given points or corners
func cmdFit() error {
	var from, to []homography.Point2D
	if *srcPoints != "" || *dstPoints != "" {
		var err error
		if to, err = homography.ParsePoints(*srcPoints); err != nil {
			return fmt.Errorf("srcPoints: %w", err)
		}
		if from, err = homography.ParsePoints(*dstPoints); err != nil {
			return fmt.Errorf("dstPoints: %w", err)
		}
	} else {
		src, err := raster.ParseQuad(*srcCorners)
		if err != nil {
			return fmt.Errorf("srcCorners: %w", err)
		}
		dst, err := raster.ParseQuad(*corners)
		if err != nil {
			return fmt.Errorf("corners: %w", err)
		}
		for i := range dst {
			from = append(from, homography.Point2D{X: float64(dst[i].X), Y: float64(dst[i].Y)})
			to = append(to, homography.Point2D{X: float64(src[i].X), Y: float64(src[i].Y)})
		}
	}

	h, residual, err := homography.Fit(from, to)
	if err != nil {
		return err
	}
	nl.LogPrintf("Homography %v from %d correspondences, residual %.4g\n", h, len(from), residual)
	nl.LogPrintf("-homography %s\n", coefficients(h))
	if inv, err := h.Invert(); err == nil {
		nl.LogPrintf("Inverse (source to destination) %v\n", inv)
	}
	return nil
}

func coefficients(h homography.Homography) string {
	s := make([]string, len(h))
	for i, v := range h {
		s[i] = fmt.Sprintf("%.10g", v)
	}
	return strings.Join(s, ",")
}

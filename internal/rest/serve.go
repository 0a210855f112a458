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

package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/mlnoga/quadwarp/internal/ops"
)

// Creates the router for the REST API
func NewRouter() *gin.Engine {
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/warp", postWarp)
			v1.POST("/sequence", postSequence)
		}
	}
	return r
}

// Listen and serve the REST API on the given address, e.g. ":8080"
func Serve(addr string) error {
	return NewRouter().Run(addr)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Serializes writes of concurrent jobs into the response, flushing after each
type syncWriter struct {
	mu sync.Mutex
	w  gin.ResponseWriter
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.w.Write(p)
	s.w.Flush()
	return n, err
}

// Starts a plain text progress stream
func startStream(c *gin.Context) *syncWriter {
	header := c.Writer.Header()
	header.Set("Content-Type", "text/plain")
	c.Writer.WriteHeader(http.StatusOK)
	return &syncWriter{w: c.Writer}
}

type postWarpArgs struct {
	FilePatterns []string    `json:"filePatterns"`
	Warp         *ops.OpWarp `json:"warp"`
	Save         *ops.OpSave `json:"save"`
}

func postWarp(c *gin.Context) {
	args := postWarpArgs{Warp: ops.NewOpWarpDefault(), Save: ops.NewOpSaveDefault()}
	if err := c.ShouldBindJSON(&args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if args.Save.FilePattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "save.filePattern is required"})
		return
	}

	logWriter := startStream(c)
	if err := printArgs(logWriter, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	ctx := ops.NewContext(logWriter)
	load := ops.NewOpLoadMany(args.FilePatterns)
	fileNames, err := load.FileNames(ctx)
	if err != nil {
		fmt.Fprintf(logWriter, "Error globbing filenames: %s\n", err.Error())
		return
	}
	maxJobs := ctx.MaxThreads
	if len(fileNames) > 0 {
		maxJobs = ctx.MaxJobs(args.Warp.EstimateBytes(fileNames[0]))
	}

	seq := ops.NewOpSequence(load, args.Warp, args.Save)
	if err := run(seq, maxJobs, ctx); err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	}
}

func postSequence(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	op, err := ops.UnmarshalOperator(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logWriter := startStream(c)
	if err := printArgs(logWriter, "Arguments:\n", "\n", op); err != nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}
	ctx := ops.NewContext(logWriter)
	if err := run(op, ctx.MaxThreads, ctx); err != nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	}
}

// Builds the promises of a zero-input operator and materializes them
func run(op ops.Operator, maxJobs int, ctx *ops.Context) error {
	promises, err := op.MakePromises(nil, ctx)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, maxJobs, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Log, "Done with %d images.\n", len(promises))
	return nil
}

// Copyright 2024 The sketchsolve Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sketchsolve loads a sketch (elements + constraints) from a JSON
// file and runs the constraint solver once, printing either the updated
// element coordinates or the structured failure. It mirrors the teacher's
// own single-purpose CLI entry point (main.go: read one input file, run
// one analysis, report pass/fail) without any of the MPI/profiling
// machinery that entry point needed and this one does not.
package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/cpmech/gosl/chk"
	"github.com/cpmech/gosl/io"

	"github.com/cpmech/sketchsolve/sketch"
	"github.com/cpmech/sketchsolve/solver"
)

// sketchFile is the on-disk shape this command reads: elements and
// constraints, with no sketch_id wrapper (that's an api-layer concern).
type sketchFile struct {
	Elements    sketch.ElementSet   `json:"elements"`
	Constraints []sketch.Constraint `json:"constraints"`
}

func main() {
	fnamepath, _ := io.ArgToFilename(0, "", ".json", true)
	verbose := io.ArgToBool(1, true)

	if verbose {
		io.PfWhite("\nsketchsolve -- parametric 2D sketch constraint solver\n\n")
		io.Pf("%v\n", io.ArgsTable(
			"filename path", "fnamepath", fnamepath,
		))
	}

	data, err := os.ReadFile(fnamepath)
	if err != nil {
		chk.Panic("cannot read sketch file %q:\n%v", fnamepath, err)
	}

	var file sketchFile
	if err := json.Unmarshal(data, &file); err != nil {
		chk.Panic("cannot parse sketch file %q:\n%v", fnamepath, err)
	}

	result := solver.Solve(context.Background(), file.Constraints, file.Elements)
	if !result.Success() {
		io.Pfred("solve failed: kind=%s constraints=%v\n%s\n", result.Err.Kind, result.Err.SortedConstraintIDs(), result.Err.Message)
		os.Exit(1)
	}

	io.Pfgreen("solved in %d iteration(s)\n", result.Iterations)
	out, err := json.MarshalIndent(result.UpdatedElements, "", "  ")
	if err != nil {
		chk.Panic("cannot encode result:\n%v", err)
	}
	io.Pf("%s\n", out)
}

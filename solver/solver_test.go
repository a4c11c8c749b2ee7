// Copyright 2024 The sketchsolve Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package solver

import (
	"context"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/sketchsolve/ana"
	"github.com/cpmech/sketchsolve/sketch"
)

func TestNoopSolveOnEmptyConstraints(tst *testing.T) {
	chk.PrintTitle("E0/universal-1: empty constraint set is a no-op")
	elements := sketch.ElementSet{"line1": {X1: 1, Y1: 2, X2: 3, Y2: 4}}
	result := Solve(context.Background(), nil, elements)
	if !result.Success() || result.Iterations != 0 {
		tst.Fatalf("expected a trivial success, got %+v", result)
	}
	chk.Vector(tst, "unchanged", 0, []float64{
		result.UpdatedElements["line1"].X1, result.UpdatedElements["line1"].Y1,
		result.UpdatedElements["line1"].X2, result.UpdatedElements["line1"].Y2,
	}, []float64{1, 2, 3, 4})
}

func TestE1LengthResize(tst *testing.T) {
	chk.PrintTitle("E1: length resize")
	elements := sketch.ElementSet{"line1": {X1: 0, Y1: 0, X2: 10, Y2: 0}}
	cs := []sketch.Constraint{{ID: "c1", Type: sketch.Length, ElementIDs: []string{"line1"}, Value: 20}}
	result := Solve(context.Background(), cs, elements)
	if !result.Success() {
		tst.Fatalf("expected success, got %+v", result.Err)
	}
	if result.Iterations < 1 {
		tst.Fatalf("expected at least one iteration, got %d", result.Iterations)
	}
	l := elements2length(result.UpdatedElements["line1"])
	chk.Scalar(tst, "length", Tolerance, l, 20)
}

func TestE2Horizontalize(tst *testing.T) {
	chk.PrintTitle("E2: horizontalize")
	elements := sketch.ElementSet{"line1": {X1: 0, Y1: 0, X2: 10, Y2: 5}}
	cs := []sketch.Constraint{{ID: "c1", Type: sketch.Horizontal, ElementIDs: []string{"line1"}}}
	result := Solve(context.Background(), cs, elements)
	if !result.Success() {
		tst.Fatalf("expected success, got %+v", result.Err)
	}
	e := result.UpdatedElements["line1"]
	if absf(e.Y2-e.Y1) > Tolerance {
		tst.Fatalf("expected |y2-y1| <= tolerance, got %g", e.Y2-e.Y1)
	}
}

func TestE3HorizontalAndLengthCombined(tst *testing.T) {
	chk.PrintTitle("E3: horizontal + length combined")
	elements := sketch.ElementSet{"line1": {X1: 0, Y1: 0, X2: 10, Y2: 5}}
	cs := []sketch.Constraint{
		{ID: "c1", Type: sketch.Horizontal, ElementIDs: []string{"line1"}},
		{ID: "c2", Type: sketch.Length, ElementIDs: []string{"line1"}, Value: 15},
	}
	result := Solve(context.Background(), cs, elements)
	if !result.Success() {
		tst.Fatalf("expected success, got %+v", result.Err)
	}
	e := result.UpdatedElements["line1"]
	if absf(e.Y2-e.Y1) > Tolerance {
		tst.Fatalf("expected |y2-y1| <= tolerance, got %g", e.Y2-e.Y1)
	}
	chk.Scalar(tst, "|x2-x1|", Tolerance, absf(e.X2-e.X1), 15)
}

func TestE4Perpendicular(tst *testing.T) {
	chk.PrintTitle("E4: perpendicular")
	elements := sketch.ElementSet{
		"line1": {X1: 0, Y1: 0, X2: 10, Y2: 0},
		"line2": {X1: 5, Y1: 0, X2: 10, Y2: 5},
	}
	cs := []sketch.Constraint{{ID: "c1", Type: sketch.Perpendicular, ElementIDs: []string{"line1", "line2"}}}
	result := Solve(context.Background(), cs, elements)
	if !result.Success() {
		tst.Fatalf("expected success, got %+v", result.Err)
	}
	a, b := result.UpdatedElements["line1"], result.UpdatedElements["line2"]
	dot := ana.DotProduct(a.X1, a.Y1, a.X2, a.Y2, b.X1, b.Y1, b.X2, b.Y2)
	if absf(dot) > 1e-2 {
		tst.Fatalf("expected dot product <= 1e-2, got %g", dot)
	}
}

func TestE5Parallel(tst *testing.T) {
	chk.PrintTitle("E5: parallel")
	elements := sketch.ElementSet{
		"line1": {X1: 0, Y1: 0, X2: 10, Y2: 0},
		"line2": {X1: 0, Y1: 5, X2: 10, Y2: 8},
	}
	cs := []sketch.Constraint{{ID: "c1", Type: sketch.Parallel, ElementIDs: []string{"line1", "line2"}}}
	result := Solve(context.Background(), cs, elements)
	if !result.Success() {
		tst.Fatalf("expected success, got %+v", result.Err)
	}
	a, b := result.UpdatedElements["line1"], result.UpdatedElements["line2"]
	cross := ana.CrossZ(a.X1, a.Y1, a.X2, a.Y2, b.X1, b.Y1, b.X2, b.Y2)
	if absf(cross) > 1e-2 {
		tst.Fatalf("expected cross product <= 1e-2, got %g", cross)
	}
}

func TestE6OverConstrainedRejection(tst *testing.T) {
	chk.PrintTitle("E6: over-constrained rejection")
	elements := sketch.ElementSet{"line1": {X1: 0, Y1: 0, X2: 10, Y2: 0}}
	cs := []sketch.Constraint{
		{ID: "c1", Type: sketch.Length, ElementIDs: []string{"line1"}, Value: 10},
		{ID: "c2", Type: sketch.Length, ElementIDs: []string{"line1"}, Value: 20},
	}
	result := Solve(context.Background(), cs, elements)
	if result.Success() {
		tst.Fatalf("expected failure, got success %+v", result)
	}
	if result.Err.Kind != sketch.OverConstrained && result.Err.Kind != sketch.Unsolvable {
		tst.Fatalf("expected over_constrained or unsolvable, got %s", result.Err.Kind)
	}
	ids := result.Err.SortedConstraintIDs()
	if !contains(ids, "c1") || !contains(ids, "c2") {
		tst.Fatalf("expected conflicting_constraints to cover {c1,c2}, got %v", ids)
	}
}

func TestZeroLengthLineUnderLengthConstraint(tst *testing.T) {
	chk.PrintTitle("boundary: zero-length line under a length constraint is unsolvable")
	elements := sketch.ElementSet{"line1": {X1: 5, Y1: 5, X2: 5, Y2: 5}}
	cs := []sketch.Constraint{{ID: "c1", Type: sketch.Length, ElementIDs: []string{"line1"}, Value: 10}}
	result := Solve(context.Background(), cs, elements)
	if result.Success() {
		tst.Fatalf("expected failure for a zero-length line, got success")
	}
	if result.Err.Kind != sketch.Unsolvable {
		tst.Fatalf("expected kind=unsolvable, got %s", result.Err.Kind)
	}
	if !contains(result.Err.SortedConstraintIDs(), "c1") {
		tst.Fatalf("expected c1 to be reported, got %v", result.Err.SortedConstraintIDs())
	}
}

func TestMissingElementConstraintIsSkipped(tst *testing.T) {
	chk.PrintTitle("boundary: a constraint referencing a missing element is skipped, not an error")
	elements := sketch.ElementSet{"line1": {X1: 0, Y1: 0, X2: 10, Y2: 0}}
	cs := []sketch.Constraint{{ID: "c1", Type: sketch.Length, ElementIDs: []string{"ghost"}, Value: 5}}
	result := Solve(context.Background(), cs, elements)
	if !result.Success() {
		tst.Fatalf("expected success (constraint silently skipped), got %+v", result.Err)
	}
}

func TestDuplicateConstraintsAreRedundantNotConflicting(tst *testing.T) {
	chk.PrintTitle("boundary: duplicate identical constraints are absorbed, not conflicting")
	elements := sketch.ElementSet{"line1": {X1: 0, Y1: 0, X2: 10, Y2: 0}}
	cs := []sketch.Constraint{
		{ID: "c1", Type: sketch.Length, ElementIDs: []string{"line1"}, Value: 20},
		{ID: "c2", Type: sketch.Length, ElementIDs: []string{"line1"}, Value: 20},
	}
	result := Solve(context.Background(), cs, elements)
	if !result.Success() {
		tst.Fatalf("expected success for duplicate identical constraints, got %+v", result.Err)
	}
}

func TestLongCoincidenceChainConvergesWithinIterationCap(tst *testing.T) {
	chk.PrintTitle("boundary: a 20-link coincidence chain converges within MaxIterations")
	elements := make(sketch.ElementSet)
	var cs []sketch.Constraint
	n := 20
	for i := 0; i < n; i++ {
		id := chainElementID(i)
		elements[id] = sketch.Element{X1: float64(i), Y1: 0, X2: float64(i) + 1, Y2: float64(i)}
		if i > 0 {
			prev := chainElementID(i - 1)
			cs = append(cs, sketch.Constraint{
				ID: chainConstraintID(i), Type: sketch.Coincident,
				ElementIDs: []string{prev, id}, PointIndices: []int{1, 0},
			})
		}
	}
	result := Solve(context.Background(), cs, elements)
	if !result.Success() {
		tst.Fatalf("expected the coincidence chain to converge, got %+v", result.Err)
	}
	if result.Iterations > MaxIterations {
		tst.Fatalf("expected convergence within %d iterations, took %d", MaxIterations, result.Iterations)
	}
}

func TestValidateConstraintAcceptsConsistentAddition(tst *testing.T) {
	chk.PrintTitle("validate_constraint accepts an addition that would solve")
	elements := sketch.ElementSet{"line1": {X1: 0, Y1: 0, X2: 10, Y2: 5}}
	ok, msg := ValidateConstraint(context.Background(), sketch.Constraint{ID: "c1", Type: sketch.Horizontal, ElementIDs: []string{"line1"}}, nil, elements)
	if !ok || msg != "" {
		tst.Fatalf("expected (true, \"\"), got (%v, %q)", ok, msg)
	}
}

func TestValidateConstraintRejectsConflictingAddition(tst *testing.T) {
	chk.PrintTitle("validate_constraint rejects an addition that would not solve")
	elements := sketch.ElementSet{"line1": {X1: 0, Y1: 0, X2: 10, Y2: 0}}
	existing := []sketch.Constraint{{ID: "c1", Type: sketch.Length, ElementIDs: []string{"line1"}, Value: 10}}
	ok, msg := ValidateConstraint(context.Background(), sketch.Constraint{ID: "c2", Type: sketch.Length, ElementIDs: []string{"line1"}, Value: 20}, existing, elements)
	if ok || msg == "" {
		tst.Fatalf("expected rejection with a message, got (%v, %q)", ok, msg)
	}
}

func TestSolveRespectsCancellation(tst *testing.T) {
	chk.PrintTitle("an already-cancelled context is reported as unsolvable, leaving inputs implied unchanged")
	elements := sketch.ElementSet{"line1": {X1: 0, Y1: 0, X2: 10, Y2: 5}}
	cs := []sketch.Constraint{{ID: "c1", Type: sketch.Horizontal, ElementIDs: []string{"line1"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := Solve(ctx, cs, elements)
	if result.Success() {
		tst.Fatalf("expected cancellation to prevent a successful solve")
	}
	if result.Err.Kind != sketch.Unsolvable {
		tst.Fatalf("expected kind=unsolvable, got %s", result.Err.Kind)
	}
}

func elements2length(e sketch.Element) float64 { return ana.Length(e.X1, e.Y1, e.X2, e.Y2) }

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func chainElementID(i int) string    { return "line" + itoa(i) }
func chainConstraintID(i int) string { return "c" + itoa(i) }

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := ""
	for i > 0 {
		digits = string(rune('0'+i%10)) + digits
		i /= 10
	}
	return digits
}

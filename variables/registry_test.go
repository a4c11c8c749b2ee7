// Copyright 2024 The sketchsolve Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package variables

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/cpmech/sketchsolve/equation"
	"github.com/cpmech/sketchsolve/sketch"
)

func TestCanonicalOrderIsLexicographic(tst *testing.T) {
	chk.PrintTitle("variable order is a lexicographic sort of canonical names")
	elements := sketch.ElementSet{
		"zline": {X1: 1, Y1: 2, X2: 3, Y2: 4},
		"aline": {X1: 5, Y1: 6, X2: 7, Y2: 8},
	}
	eqs := equation.Build([]sketch.Constraint{
		{ID: "c1", Type: sketch.Horizontal, ElementIDs: []string{"zline"}},
		{ID: "c2", Type: sketch.Vertical, ElementIDs: []string{"aline"}},
	}, elements)
	reg := Build(eqs)
	if reg.Len() != 8 {
		tst.Fatalf("expected 8 variables (2 elements x 4 fields), got %d", reg.Len())
	}
	for i := 1; i < reg.Len(); i++ {
		if reg.NameAt(i-1) >= reg.NameAt(i) {
			tst.Fatalf("names not strictly sorted at %d: %q >= %q", i, reg.NameAt(i-1), reg.NameAt(i))
		}
	}
	if reg.NameAt(0) != "aline_x1" {
		tst.Fatalf("expected first name to be %q, got %q", "aline_x1", reg.NameAt(0))
	}
}

func TestRegistryExcludesUnreferencedElements(tst *testing.T) {
	chk.PrintTitle("registry only covers elements the equation set touches")
	elements := sketch.ElementSet{
		"touched":   {X1: 0, Y1: 0, X2: 1, Y2: 1},
		"untouched": {X1: 9, Y1: 9, X2: 9, Y2: 9},
	}
	eqs := equation.Build([]sketch.Constraint{
		{ID: "c1", Type: sketch.Horizontal, ElementIDs: []string{"touched"}},
	}, elements)
	reg := Build(eqs)
	if reg.Len() != 4 {
		tst.Fatalf("expected 4 variables, got %d", reg.Len())
	}
	if reg.Index("untouched", "x1") != -1 {
		tst.Fatalf("expected untouched element to be absent from the registry")
	}
}

func TestAssignAndReconstructRoundTrip(tst *testing.T) {
	chk.PrintTitle("assign-to-vector then vector-to-elements round-trips unchanged values")
	elements := sketch.ElementSet{
		"line1": {X1: 1, Y1: 2, X2: 3, Y2: 4},
		"line2": {X1: -1, Y1: -2, X2: -3, Y2: -4},
	}
	eqs := equation.Build([]sketch.Constraint{
		{ID: "c", Type: sketch.Perpendicular, ElementIDs: []string{"line1", "line2"}},
	}, elements)
	reg := Build(eqs)
	vec := reg.AssignToVector(elements)
	back := reg.VectorToElements(vec, elements)
	for id, e := range elements {
		chk.Vector(tst, "round trip "+id, 1e-12, []float64{back[id].X1, back[id].Y1, back[id].X2, back[id].Y2}, []float64{e.X1, e.Y1, e.X2, e.Y2})
	}
}

func TestVectorToElementsRestrictsToSubset(tst *testing.T) {
	chk.PrintTitle("vector-to-elements only reconstructs the requested subset")
	elements := sketch.ElementSet{
		"a": {X1: 1, Y1: 1, X2: 2, Y2: 2},
		"b": {X1: 3, Y1: 3, X2: 4, Y2: 4},
	}
	eqs := equation.Build([]sketch.Constraint{{ID: "c", Type: sketch.Perpendicular, ElementIDs: []string{"a", "b"}}}, elements)
	reg := Build(eqs)
	vec := reg.AssignToVector(elements)
	out := reg.VectorToElements(vec, sketch.ElementSet{"a": elements["a"]})
	if len(out) != 1 {
		tst.Fatalf("expected output restricted to 1 element, got %d", len(out))
	}
	if _, ok := out["b"]; ok {
		tst.Fatalf("did not expect element %q in restricted output", "b")
	}
}

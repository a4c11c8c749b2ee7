// Copyright 2024 The sketchsolve Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package variables implements component B: it flattens element endpoint
// coordinates into named scalar variables ("{element_id}_{field}"), fixes
// a canonical (lexicographically sorted) variable order, and converts
// between that dense ordered vector and the caller's named element
// mapping.
//
// This mirrors the teacher's Node/Dof equation-numbering walk in
// fem/node.go and fem/domain.go — a string key earns an integer slot once,
// up front, and every iteration of the driver indexes numerically from
// then on. Unlike the teacher, whose equation numbers follow mesh
// traversal order, this registry's order is a sort of the variable names
// themselves: spec.md §3 requires that identical input produce identical
// Jacobian assembly regardless of how elements/constraints were presented.
package variables

import (
	"sort"

	"github.com/cpmech/sketchsolve/equation"
	"github.com/cpmech/sketchsolve/sketch"
)

var fields = [4]string{"x1", "y1", "x2", "y2"}

// Registry is the string name -> dense index mapping for one solve.
type Registry struct {
	names []string       // canonical order, names[i] lives at vector index i
	index map[string]int // name -> index
}

// Build constructs a registry covering exactly the element ids referenced
// by eqs, and no others (spec.md §3 invariant). Element ids that exist in
// the sketch but aren't touched by any equation never enter the variable
// vector.
func Build(eqs []equation.Equation) *Registry {
	elementIDs := make(map[string]bool)
	for _, eq := range eqs {
		for _, v := range eq.Vars() {
			elementIDs[v.ElementID] = true
		}
	}
	names := make([]string, 0, len(elementIDs)*4)
	for id := range elementIDs {
		for _, f := range fields {
			names = append(names, id+"_"+f)
		}
	}
	sort.Strings(names)

	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	return &Registry{names: names, index: index}
}

// Len returns the number of scalar variables (vector/Jacobian columns).
func (r *Registry) Len() int { return len(r.names) }

// NameAt returns the canonical variable name occupying index i.
func (r *Registry) NameAt(i int) string { return r.names[i] }

// Index returns the dense vector index for a given element id and field,
// or -1 if that variable isn't part of this registry (e.g. because no
// equation referenced it).
func (r *Registry) Index(elementID, field string) int {
	if idx, ok := r.index[elementID+"_"+field]; ok {
		return idx
	}
	return -1
}

// AssignToVector returns the dense vector of current values, in canonical
// order, read from the given element set.
func (r *Registry) AssignToVector(elements sketch.ElementSet) []float64 {
	vec := make([]float64, len(r.names))
	for i, name := range r.names {
		id, field := splitName(name)
		vec[i] = fieldValue(elements[id], field)
	}
	return vec
}

// VectorToElements reconstructs an element->coordinates mapping from vec,
// restricted to the element ids in subset. Fields of a subset element that
// aren't present in this registry (shouldn't happen for well-formed
// equation sets, but defensively) keep the value from base.
func (r *Registry) VectorToElements(vec []float64, subset sketch.ElementSet) sketch.ElementSet {
	out := make(sketch.ElementSet, len(subset))
	for id, base := range subset {
		e := base
		if i := r.Index(id, "x1"); i >= 0 {
			e.X1 = vec[i]
		}
		if i := r.Index(id, "y1"); i >= 0 {
			e.Y1 = vec[i]
		}
		if i := r.Index(id, "x2"); i >= 0 {
			e.X2 = vec[i]
		}
		if i := r.Index(id, "y2"); i >= 0 {
			e.Y2 = vec[i]
		}
		out[id] = e
	}
	return out
}

// Lookup adapts this registry and a live vector into an equation.Lookup
// closure, so equation.Evaluate can read "current" values during Newton
// iteration without knowing about vectors or maps.
func (r *Registry) Lookup(vec []float64) equation.Lookup {
	return func(elementID, field string) float64 {
		i := r.Index(elementID, field)
		if i < 0 {
			return 0
		}
		return vec[i]
	}
}

func splitName(name string) (elementID, field string) {
	// field is always exactly one of the 4 fixed 2-char suffixes, so the
	// split point is len(name)-3 ("_" + 2 chars).
	cut := len(name) - 3
	return name[:cut], name[cut+1:]
}

func fieldValue(e sketch.Element, field string) float64 {
	switch field {
	case "x1":
		return e.X1
	case "y1":
		return e.Y1
	case "x2":
		return e.X2
	case "y2":
		return e.Y2
	}
	return 0
}

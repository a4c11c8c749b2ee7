// Copyright 2024 The sketchsolve Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sketch implements the pure data model consumed and produced by
// the constraint solver: elements (line segments), constraints between
// them, and the result envelope returned by a solve.
package sketch

import "sort"

// ConstraintType identifies one of the six supported constraint kinds.
type ConstraintType string

// Supported constraint kinds (spec.md §3, §4.1).
const (
	Length        ConstraintType = "length"
	Horizontal    ConstraintType = "horizontal"
	Vertical      ConstraintType = "vertical"
	Coincident    ConstraintType = "coincident"
	Perpendicular ConstraintType = "perpendicular"
	Parallel      ConstraintType = "parallel"
)

// Element is a line segment in the sketch's 2D plane (millimetres),
// identified by a stable id. The solver never creates or destroys
// elements; it only produces updated coordinates for elements already
// present in its input.
type Element struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// ElementSet maps a stable element id to its current endpoint coordinates.
type ElementSet map[string]Element

// Clone returns a deep copy, so the copy and s can change independently
// (the api Store keeps a cloned copy of the elements it is seeded with).
func (s ElementSet) Clone() ElementSet {
	out := make(ElementSet, len(s))
	for id, e := range s {
		out[id] = e
	}
	return out
}

// Dx returns x2-x1.
func (e Element) Dx() float64 { return e.X2 - e.X1 }

// Dy returns y2-y1.
func (e Element) Dy() float64 { return e.Y2 - e.Y1 }

// Constraint is an immutable record of one algebraic relation that must
// hold between endpoint coordinates of one or two elements.
type Constraint struct {
	ID            string         `json:"id"`
	Type          ConstraintType `json:"type"`
	ElementIDs    []string       `json:"element_ids"`
	PointIndices  []int          `json:"point_indices,omitempty"` // only for Coincident; two values in {0,1}
	Value         float64        `json:"value,omitempty"`         // only for Length; target length in mm, > 0
	Satisfied     bool           `json:"satisfied"`
	Inferred      bool           `json:"inferred,omitempty"`
	Confirmed     bool           `json:"confirmed,omitempty"`
}

// arity returns the expected number of element_ids for this constraint's
// type, so the solver can skip ill-formed constraints at equation-build
// time (spec.md §4.3 step 2).
func (c Constraint) arity() int {
	switch c.Type {
	case Horizontal, Vertical, Length:
		return 1
	case Coincident, Perpendicular, Parallel:
		return 2
	default:
		return -1
	}
}

// WellFormed reports whether this constraint's element_ids (and, for
// Coincident, point_indices) match its type's arity and every referenced
// element id is present in elements. A constraint that fails this check is
// silently skipped rather than built into an equation (spec.md §3 invariants).
func (c Constraint) WellFormed(elements ElementSet) bool {
	n := c.arity()
	if n < 0 || len(c.ElementIDs) != n {
		return false
	}
	for _, id := range c.ElementIDs {
		if _, ok := elements[id]; !ok {
			return false
		}
	}
	if c.Type == Coincident {
		if len(c.PointIndices) != 2 {
			return false
		}
		for _, pi := range c.PointIndices {
			if pi != 0 && pi != 1 {
				return false
			}
		}
	}
	return true
}

// ErrorKind classifies why a solve failed to produce a consistent result
// (spec.md §7).
type ErrorKind string

const (
	OverConstrained ErrorKind = "over_constrained"
	Conflicting     ErrorKind = "conflicting"
	Unsolvable      ErrorKind = "unsolvable"
)

// SolveError is the structured failure spec.md §6/§7 requires: a
// machine-readable kind, every constraint id that participated in the
// failing equation system, and a short human-readable message. It
// implements the error interface but the solver never panics with it —
// it is always returned as a value.
type SolveError struct {
	Kind                  ErrorKind
	ConflictingConstraints []string
	Message               string
}

func (e *SolveError) Error() string {
	return e.Message
}

// SortedConstraintIDs returns the conflicting constraint ids deduplicated
// and sorted, so that error output is deterministic across runs.
func (e *SolveError) SortedConstraintIDs() []string {
	seen := make(map[string]bool, len(e.ConflictingConstraints))
	out := make([]string, 0, len(e.ConflictingConstraints))
	for _, id := range e.ConflictingConstraints {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Result is the outcome of a solve: either a successful new coordinate
// assignment or a structured error (never both).
type Result struct {
	UpdatedElements ElementSet
	Iterations      int
	Err             *SolveError
}

// Success reports whether this result represents a converged solve.
func (r Result) Success() bool { return r.Err == nil }

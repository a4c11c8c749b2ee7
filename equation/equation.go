// Copyright 2024 The sketchsolve Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package equation implements component A of the solver: for each
// supported constraint type, the scalar residual and its analytic partial
// derivatives (the Jacobian row) at a given variable assignment.
//
// Equations are first-class objects that own their variable-name bindings,
// built once per solve from the constraint list (see Build). This keeps
// "what equation this is" separate from "how Newton-Raphson drives it"
// (package solver) and avoids re-parsing constraints inside the iteration
// loop.
package equation

import (
	"math"

	"github.com/cpmech/sketchsolve/sketch"
)

// degenerateLength is the threshold below which a line is considered
// zero-length for the purposes of a length constraint's Jacobian
// (spec.md §4.1, §4.3 edge cases).
const degenerateLength = 1e-10

// Kind tags the closed set of scalar equation forms. There is no virtual
// dispatch here: Evaluate and Vars switch exhaustively over Kind.
type Kind int

const (
	KindLength Kind = iota
	KindHorizontal
	KindVertical
	KindCoincidentX
	KindCoincidentY
	KindPerpendicular
	KindParallel
)

// field names a single endpoint coordinate of a line element.
type field string

const (
	x1 field = "x1"
	y1 field = "y1"
	x2 field = "x2"
	y2 field = "y2"
)

// VarRef names one scalar variable: a single endpoint coordinate of one
// element. Name is the canonical "{element_id}_{field}" string the
// variable registry (package variables) indexes on.
type VarRef struct {
	ElementID string
	Field     string
}

// Name returns the canonical variable name for this reference.
func (v VarRef) Name() string { return v.ElementID + "_" + v.Field }

// Equation is one scalar residual equation contributed by a constraint.
// A Coincident constraint contributes two Equations (X and Y); every
// other supported type contributes exactly one.
type Equation struct {
	ConstraintID string
	Kind         Kind

	// element ids referenced, in the order the constraint declared them.
	elemA, elemB string

	// point indices, only meaningful for KindCoincidentX/Y: pa selects
	// start/end of elemA, pb selects start/end of elemB.
	pa, pb int

	// target length, only meaningful for KindLength.
	length float64
}

// Vars returns every variable this equation may have a nonzero partial
// derivative with respect to.
func (eq Equation) Vars() []VarRef {
	switch eq.Kind {
	case KindLength, KindHorizontal, KindVertical:
		return []VarRef{
			{eq.elemA, string(x1)}, {eq.elemA, string(y1)},
			{eq.elemA, string(x2)}, {eq.elemA, string(y2)},
		}
	case KindCoincidentX:
		return []VarRef{{eq.elemA, pointField(eq.pa, true)}, {eq.elemB, pointField(eq.pb, true)}}
	case KindCoincidentY:
		return []VarRef{{eq.elemA, pointField(eq.pa, false)}, {eq.elemB, pointField(eq.pb, false)}}
	case KindPerpendicular, KindParallel:
		return []VarRef{
			{eq.elemA, string(x1)}, {eq.elemA, string(y1)},
			{eq.elemA, string(x2)}, {eq.elemA, string(y2)},
			{eq.elemB, string(x1)}, {eq.elemB, string(y1)},
			{eq.elemB, string(x2)}, {eq.elemB, string(y2)},
		}
	}
	return nil
}

// pointField returns "x1"/"x2" (isX true) or "y1"/"y2" for point index 0/1.
func pointField(pointIndex int, isX bool) string {
	if pointIndex == 0 {
		if isX {
			return string(x1)
		}
		return string(y1)
	}
	if isX {
		return string(x2)
	}
	return string(y2)
}

// Lookup resolves a variable's current value. Implemented by the
// variables package's registry, injected here so equation stays ignorant
// of how values are stored (named map vs. dense vector).
type Lookup func(elementID, field string) float64

// Evaluate computes the residual and the map of nonzero partial
// derivatives (keyed by canonical variable name) at the assignment get
// provides. Derivatives not present in the returned map are zero.
func (eq Equation) Evaluate(get Lookup) (residual float64, jac map[string]float64) {
	switch eq.Kind {
	case KindLength:
		return eq.evalLength(get)
	case KindHorizontal:
		ay1 := get(eq.elemA, string(y1))
		ay2 := get(eq.elemA, string(y2))
		return ay2 - ay1, map[string]float64{
			eq.elemA + "_" + string(y1): -1,
			eq.elemA + "_" + string(y2): 1,
		}
	case KindVertical:
		ax1 := get(eq.elemA, string(x1))
		ax2 := get(eq.elemA, string(x2))
		return ax2 - ax1, map[string]float64{
			eq.elemA + "_" + string(x1): -1,
			eq.elemA + "_" + string(x2): 1,
		}
	case KindCoincidentX:
		return eq.evalCoincident(get, true)
	case KindCoincidentY:
		return eq.evalCoincident(get, false)
	case KindPerpendicular:
		return eq.evalPerpendicular(get)
	case KindParallel:
		return eq.evalParallel(get)
	}
	return 0, nil
}

func (eq Equation) evalLength(get Lookup) (float64, map[string]float64) {
	ax1, ay1 := get(eq.elemA, string(x1)), get(eq.elemA, string(y1))
	ax2, ay2 := get(eq.elemA, string(x2)), get(eq.elemA, string(y2))
	dax, day := ax2-ax1, ay2-ay1
	l := math.Sqrt(dax*dax + day*day)
	residual := l - eq.length
	if l < degenerateLength {
		// degenerate direction: no line to differentiate along.
		return residual, map[string]float64{}
	}
	return residual, map[string]float64{
		eq.elemA + "_" + string(x1): -dax / l,
		eq.elemA + "_" + string(y1): -day / l,
		eq.elemA + "_" + string(x2): dax / l,
		eq.elemA + "_" + string(y2): day / l,
	}
}

func (eq Equation) evalCoincident(get Lookup, isX bool) (float64, map[string]float64) {
	fa := pointField(eq.pa, isX)
	fb := pointField(eq.pb, isX)
	av := get(eq.elemA, fa)
	bv := get(eq.elemB, fb)
	return av - bv, map[string]float64{
		eq.elemA + "_" + fa: 1,
		eq.elemB + "_" + fb: -1,
	}
}

func (eq Equation) evalPerpendicular(get Lookup) (float64, map[string]float64) {
	dax, day := eq.dirA(get)
	dbx, dby := eq.dirB(get)
	residual := dax*dbx + day*dby
	return residual, map[string]float64{
		eq.elemA + "_" + string(x1): -dbx,
		eq.elemA + "_" + string(x2): dbx,
		eq.elemA + "_" + string(y1): -dby,
		eq.elemA + "_" + string(y2): dby,
		eq.elemB + "_" + string(x1): -dax,
		eq.elemB + "_" + string(x2): dax,
		eq.elemB + "_" + string(y1): -day,
		eq.elemB + "_" + string(y2): day,
	}
}

func (eq Equation) evalParallel(get Lookup) (float64, map[string]float64) {
	dax, day := eq.dirA(get)
	dbx, dby := eq.dirB(get)
	residual := dax*dby - day*dbx
	return residual, map[string]float64{
		eq.elemA + "_" + string(x1): -dby,
		eq.elemA + "_" + string(x2): dby,
		eq.elemA + "_" + string(y1): dbx,
		eq.elemA + "_" + string(y2): -dbx,
		eq.elemB + "_" + string(x1): day,
		eq.elemB + "_" + string(x2): -day,
		eq.elemB + "_" + string(y1): -dax,
		eq.elemB + "_" + string(y2): dax,
	}
}

func (eq Equation) dirA(get Lookup) (dx, dy float64) {
	return get(eq.elemA, string(x2)) - get(eq.elemA, string(x1)), get(eq.elemA, string(y2)) - get(eq.elemA, string(y1))
}

func (eq Equation) dirB(get Lookup) (dx, dy float64) {
	return get(eq.elemB, string(x2)) - get(eq.elemB, string(x1)), get(eq.elemB, string(y2)) - get(eq.elemB, string(y1))
}

// Build constructs the equation list from a constraint set. Constraints
// whose arity doesn't match their type, or that reference a missing
// element, are silently skipped (spec.md §3 invariants, §4.3 step 2) — they
// cannot become part of the equation system.
func Build(constraints []sketch.Constraint, elements sketch.ElementSet) []Equation {
	var eqs []Equation
	for _, c := range constraints {
		if !c.WellFormed(elements) {
			continue
		}
		switch c.Type {
		case sketch.Length:
			eqs = append(eqs, Equation{ConstraintID: c.ID, Kind: KindLength, elemA: c.ElementIDs[0], length: c.Value})
		case sketch.Horizontal:
			eqs = append(eqs, Equation{ConstraintID: c.ID, Kind: KindHorizontal, elemA: c.ElementIDs[0]})
		case sketch.Vertical:
			eqs = append(eqs, Equation{ConstraintID: c.ID, Kind: KindVertical, elemA: c.ElementIDs[0]})
		case sketch.Coincident:
			pa, pb := c.PointIndices[0], c.PointIndices[1]
			eqs = append(eqs,
				Equation{ConstraintID: c.ID, Kind: KindCoincidentX, elemA: c.ElementIDs[0], elemB: c.ElementIDs[1], pa: pa, pb: pb},
				Equation{ConstraintID: c.ID, Kind: KindCoincidentY, elemA: c.ElementIDs[0], elemB: c.ElementIDs[1], pa: pa, pb: pb},
			)
		case sketch.Perpendicular:
			eqs = append(eqs, Equation{ConstraintID: c.ID, Kind: KindPerpendicular, elemA: c.ElementIDs[0], elemB: c.ElementIDs[1]})
		case sketch.Parallel:
			eqs = append(eqs, Equation{ConstraintID: c.ID, Kind: KindParallel, elemA: c.ElementIDs[0], elemB: c.ElementIDs[1]})
		}
	}
	return eqs
}

// Copyright 2024 The sketchsolve Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package solver implements component C: the Newton-Raphson driver that
// iterates the equation set (package equation) over the variable registry
// (package variables) to a converged coordinate assignment, or reports a
// structured failure.
//
// The shape of the driver loop — evaluate residuals, assemble the
// Jacobian, solve the linearized system, apply the step, check
// convergence — follows the teacher's fem.SolverImplicit/run_iterations
// (fem/s_implicit.go) and its own dependency gosl/num.NlSolver. Unlike
// either, this driver never panics and holds no state across calls: every
// scratch vector/matrix is local to one Solve.
package solver

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/cpmech/sketchsolve/equation"
	"github.com/cpmech/sketchsolve/sketch"
	"github.com/cpmech/sketchsolve/variables"
)

// Tolerance is the single named convergence bound spec.md §9 calls for:
// the same value gates both the "already satisfied" fast path and the
// iteration loop's exit check.
const Tolerance = 1e-6

// MaxIterations is the Newton-Raphson iteration cap (spec.md §4.3).
const MaxIterations = 50

// svdRankThreshold is the relative-to-largest-singular-value cutoff below
// which a singular value is treated as numerically zero when judging the
// rank of the Jacobian.
const svdRankThreshold = 1e-10

// Solve is the solver's sole mutating-looking entry point; in truth it
// mutates nothing; it closes over its own equation list, registry, and
// scratch vector/matrix for the duration of the call (spec.md §5).
func Solve(ctx context.Context, constraints []sketch.Constraint, elements sketch.ElementSet) sketch.Result {
	if len(constraints) == 0 {
		return sketch.Result{UpdatedElements: elements.Clone(), Iterations: 0}
	}

	eqs := equation.Build(constraints, elements)
	if len(eqs) == 0 {
		// every constraint was ill-formed or referenced a missing element;
		// there is no equation system to violate.
		return sketch.Result{UpdatedElements: elements.Clone(), Iterations: 0}
	}

	reg := variables.Build(eqs)
	vec := reg.AssignToVector(elements)

	if maxAbs(evaluateResiduals(eqs, reg, vec)) <= Tolerance {
		return sketch.Result{UpdatedElements: mergeVector(elements, reg, vec), Iterations: 0}
	}

	var prevStepNorm float64
	for it := 0; it < MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return sketch.Result{Err: &sketch.SolveError{
				Kind:    sketch.Unsolvable,
				Message: "solve cancelled before convergence",
			}}
		}

		residuals, jac, degenerate := assemble(eqs, reg, vec)

		if len(degenerate) > 0 {
			return sketch.Result{Err: &sketch.SolveError{
				Kind:                    sketch.Unsolvable,
				ConflictingConstraints:  degenerate,
				Message:                 "degenerate geometry (zero-length line) prevents a length constraint from making progress",
			}}
		}

		delta, rank := leastSquaresStep(jac, residuals, reg.Len())

		if conflicting := inconsistentEquations(jac, residuals, rank, eqs); len(conflicting) > 0 {
			return sketch.Result{Err: &sketch.SolveError{
				Kind:                   sketch.OverConstrained,
				ConflictingConstraints: conflicting,
				Message:                "constraints contradict each other: no assignment satisfies all of them",
			}}
		}

		stepNorm := 0.0
		for i := range vec {
			vec[i] -= delta[i]
			stepNorm += delta[i] * delta[i]
		}
		stepNorm = math.Sqrt(stepNorm)

		newResiduals := evaluateResiduals(eqs, reg, vec)
		if maxAbs(newResiduals) <= Tolerance {
			return sketch.Result{UpdatedElements: mergeVector(elements, reg, vec), Iterations: it + 1}
		}

		if it > 0 && stepNorm < 1e-14 && prevStepNorm < 1e-14 {
			// stagnation: the step has stopped moving the assignment at
			// all but the residual is still outside tolerance.
			return sketch.Result{Err: &sketch.SolveError{
				Kind:                   sketch.Unsolvable,
				ConflictingConstraints: constraintIDs(eqs),
				Message:                "iteration stagnated before reaching tolerance",
			}}
		}
		prevStepNorm = stepNorm
	}

	return sketch.Result{Err: &sketch.SolveError{
		Kind:                   sketch.Unsolvable,
		ConflictingConstraints: constraintIDs(eqs),
		Message:                fmt.Sprintf("no solution found within %d iterations", MaxIterations),
	}}
}

// ValidateConstraint appends candidate to existingConstraints and runs
// Solve. It returns (true, "") iff the augmented system would solve, or
// (false, message) suitable for user display otherwise (spec.md §4.3
// "Validation mode").
func ValidateConstraint(ctx context.Context, candidate sketch.Constraint, existingConstraints []sketch.Constraint, elements sketch.ElementSet) (bool, string) {
	augmented := make([]sketch.Constraint, 0, len(existingConstraints)+1)
	augmented = append(augmented, existingConstraints...)
	augmented = append(augmented, candidate)
	result := Solve(ctx, augmented, elements)
	if result.Success() {
		return true, ""
	}
	return false, result.Err.Message
}

func evaluateResiduals(eqs []equation.Equation, reg *variables.Registry, vec []float64) []float64 {
	get := reg.Lookup(vec)
	out := make([]float64, len(eqs))
	for i, eq := range eqs {
		r, _ := eq.Evaluate(get)
		out[i] = r
	}
	return out
}

// assemble evaluates residuals and the dense Jacobian at vec, and reports
// the constraint ids of any equation whose row is entirely zero while its
// residual still exceeds Tolerance (the zero-length-line degeneracy,
// spec.md §4.1/§4.3).
func assemble(eqs []equation.Equation, reg *variables.Registry, vec []float64) (residuals []float64, jac *mat.Dense, degenerate []string) {
	get := reg.Lookup(vec)
	m, n := len(eqs), reg.Len()
	residuals = make([]float64, m)
	jac = mat.NewDense(m, n, nil)
	for i, eq := range eqs {
		r, partials := eq.Evaluate(get)
		residuals[i] = r
		nonzero := false
		for name, d := range partials {
			if d == 0 {
				continue
			}
			nonzero = true
			elementID, field := splitVarName(name)
			if col := reg.Index(elementID, field); col >= 0 {
				jac.Set(i, col, d)
			}
		}
		if !nonzero && math.Abs(r) > Tolerance {
			degenerate = append(degenerate, eq.ConstraintID)
		}
	}
	return residuals, jac, dedupeSorted(degenerate)
}

// splitVarName reverses equation.VarRef.Name's "{element_id}_{field}"
// convention; fields are always one of the four fixed 2-char suffixes.
func splitVarName(name string) (elementID, field string) {
	cut := len(name) - 3
	return name[:cut], name[cut+1:]
}

// leastSquaresStep solves J*delta = r in the minimum-norm least-squares
// sense via the (thin) SVD of J, which is the rank-revealing method
// spec.md §4.3 requires. It also returns the numerically effective rank
// of J, used by inconsistentEquations to detect over-constrained systems.
func leastSquaresStep(jac *mat.Dense, residuals []float64, nVars int) (delta []float64, rank int) {
	var svd mat.SVD
	svd.Factorize(jac, mat.SVDThin)

	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	k := len(values)
	rank = 0
	if k > 0 {
		maxSV := values[0]
		for _, s := range values {
			if s > svdRankThreshold*maxSV {
				rank++
			}
		}
	}

	r := mat.NewVecDense(len(residuals), residuals)
	utR := mat.NewVecDense(k, nil)
	utR.MulVec(u.T(), r)

	scaled := mat.NewVecDense(k, nil)
	for i := 0; i < k; i++ {
		if values[i] > svdRankThreshold*values[0] {
			scaled.SetVec(i, utR.AtVec(i)/values[i])
		}
	}

	out := mat.NewVecDense(nVars, nil)
	out.MulVec(&v, scaled)
	delta = make([]float64, nVars)
	for i := 0; i < nVars; i++ {
		delta[i] = out.AtVec(i)
	}
	return delta, rank
}

// inconsistentEquations detects the signature of an over-constrained
// system: the Jacobian is rank-deficient (rank < number of equations) and
// some component of the residual lies outside the subspace J's columns
// can reach, meaning no choice of step can ever drive it below Tolerance.
// It returns the sorted, deduplicated constraint ids of every equation
// whose unreachable residual component exceeds Tolerance.
func inconsistentEquations(jac *mat.Dense, residuals []float64, rank int, eqs []equation.Equation) []string {
	m, _ := jac.Dims()
	if rank >= m {
		return nil
	}

	var svd mat.SVD
	svd.Factorize(jac, mat.SVDThin)
	var u mat.Dense
	svd.UTo(&u)

	r := mat.NewVecDense(m, residuals)
	ur := mat.NewVecDense(rank, nil)
	uRank := u.Slice(0, m, 0, rank)
	ur.MulVec(uRank.T(), r)

	reachable := mat.NewVecDense(m, nil)
	reachable.MulVec(uRank, ur)

	// unreachable[i] is how much of equation i's residual lies outside the
	// subspace the rank-deficient Jacobian can ever reach; an equation is
	// part of the conflicting block iff this, not its raw residual, exceeds
	// Tolerance. Two identical-Jacobian-row equations with different
	// targets (e.g. two length constraints on the same line) both carry a
	// nonzero unreachable component even when one of them currently has a
	// zero residual, so both are reported, not just the one that happens
	// to be unsatisfied at the moment of detection.
	unreachablePerEq := make([]float64, m)
	maxUnreachable := 0.0
	for i := 0; i < m; i++ {
		d := math.Abs(r.AtVec(i) - reachable.AtVec(i))
		unreachablePerEq[i] = d
		if d > maxUnreachable {
			maxUnreachable = d
		}
	}
	if maxUnreachable <= Tolerance {
		return nil
	}

	var ids []string
	for i, eq := range eqs {
		if unreachablePerEq[i] > Tolerance {
			ids = append(ids, eq.ConstraintID)
		}
	}
	return dedupeSorted(ids)
}

func mergeVector(elements sketch.ElementSet, reg *variables.Registry, vec []float64) sketch.ElementSet {
	touched := make(sketch.ElementSet)
	for i := 0; i < reg.Len(); i++ {
		id, _ := splitVarName(reg.NameAt(i))
		if _, ok := touched[id]; !ok {
			touched[id] = elements[id]
		}
	}
	updated := reg.VectorToElements(vec, touched)
	out := elements.Clone()
	for id, e := range updated {
		out[id] = e
	}
	return out
}

func maxAbs(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		if a := math.Abs(x); a > m {
			m = a
		}
	}
	return m
}

func constraintIDs(eqs []equation.Equation) []string {
	ids := make([]string, 0, len(eqs))
	for _, eq := range eqs {
		ids = append(ids, eq.ConstraintID)
	}
	return dedupeSorted(ids)
}

func dedupeSorted(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

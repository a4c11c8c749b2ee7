// Copyright 2024 The sketchsolve Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package infer implements component D: given a newly drawn or modified
// line and the other lines already in its sketch, it proposes candidate
// constraints within fixed angle/distance thresholds. Inference is
// read-only — it never mutates a constraint list. Promotion to a real,
// persisted constraint always flows through package solver's Solve or
// ValidateConstraint, the only path that can reject an addition (spec.md
// §4.4).
package infer

import (
	"math"
	"sort"

	"github.com/cpmech/sketchsolve/sketch"
)

// Thresholds fixed by spec.md §4.4.
const (
	angleThreshold    = 2.0 * math.Pi / 180.0 // τ_angle = 2°
	distanceThreshold = 0.5                   // τ_dist, mm
	distanceEpsilon   = 1e-4                  // ε, mm: excludes exact overlaps (already coincident)
)

// Candidate is an inference result: a proposed constraint the caller may
// display as a "ghost" and, on user confirmation, re-submit through
// solver.Solve or solver.ValidateConstraint.
type Candidate struct {
	Type         sketch.ConstraintType `json:"type"`
	ElementIDs   []string              `json:"element_ids"`
	PointIndices []int                 `json:"point_indices,omitempty"`
	Confidence   float64               `json:"confidence"`
}

// Detect returns every candidate constraint implied by newLine against the
// other lines in the same sketch. sketchID identifies the sketch for the
// caller's own bookkeeping (e.g. routing or audit logging); the detector
// itself is stateless and does not use it to look anything up — there is
// no persistent, cross-call inference state (spec.md §5).
func Detect(newLineID string, newLine sketch.Element, otherLines sketch.ElementSet, sketchID string) []Candidate {
	_ = sketchID

	var out []Candidate
	norm := normalizeAngle(math.Atan2(newLine.Dy(), newLine.Dx()))

	if c, ok := axisCandidate(sketch.Horizontal, newLineID, norm, 0); ok {
		out = append(out, c)
	}
	if c, ok := axisCandidate(sketch.Vertical, newLineID, norm, math.Pi/2); ok {
		out = append(out, c)
	}

	otherIDs := make([]string, 0, len(otherLines))
	for id := range otherLines {
		otherIDs = append(otherIDs, id)
	}
	sort.Strings(otherIDs) // deterministic candidate order for identical input

	for _, otherID := range otherIDs {
		other := otherLines[otherID]
		out = append(out, angleCandidates(newLineID, otherID, norm, other)...)
		out = append(out, coincidentCandidates(newLineID, otherID, newLine, other)...)
	}
	return out
}

// normalizeAngle folds an angle in (-π, π] to [0, π), collapsing the
// 180°-ambiguous direction of an undirected line.
func normalizeAngle(a float64) float64 {
	n := math.Mod(a, math.Pi)
	if n < 0 {
		n += math.Pi
	}
	return n
}

// confidence implements the shared formula of spec.md §4.4:
// 1 - distance_from_ideal/threshold, clamped to [0,1].
func confidence(distanceFromIdeal, threshold float64) float64 {
	c := 1 - distanceFromIdeal/threshold
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func axisCandidate(typ sketch.ConstraintType, lineID string, norm, ideal float64) (Candidate, bool) {
	d := math.Abs(norm - ideal)
	if d > math.Pi/2 {
		d = math.Pi - d
	}
	if d >= angleThreshold {
		return Candidate{}, false
	}
	return Candidate{Type: typ, ElementIDs: []string{lineID}, Confidence: confidence(d, angleThreshold)}, true
}

func angleCandidates(newLineID, otherID string, newNorm float64, other sketch.Element) []Candidate {
	otherNorm := normalizeAngle(math.Atan2(other.Dy(), other.Dx()))
	diff := math.Abs(newNorm - otherNorm)
	if diff > math.Pi/2 {
		diff = math.Pi - diff
	}
	// diff is now in [0, π/2]: distance from 0 is "parallel", distance
	// from π/2 is "perpendicular".
	var out []Candidate
	if diff < angleThreshold {
		out = append(out, Candidate{
			Type:       sketch.Parallel,
			ElementIDs: []string{newLineID, otherID},
			Confidence: confidence(diff, angleThreshold),
		})
	}
	perpDist := math.Abs(diff - math.Pi/2)
	if perpDist < angleThreshold {
		out = append(out, Candidate{
			Type:       sketch.Perpendicular,
			ElementIDs: []string{newLineID, otherID},
			Confidence: confidence(perpDist, angleThreshold),
		})
	}
	return out
}

func coincidentCandidates(newLineID, otherID string, newLine, other sketch.Element) []Candidate {
	newPoints := [2][2]float64{{newLine.X1, newLine.Y1}, {newLine.X2, newLine.Y2}}
	otherPoints := [2][2]float64{{other.X1, other.Y1}, {other.X2, other.Y2}}

	var out []Candidate
	for ni, np := range newPoints {
		for oi, op := range otherPoints {
			d := math.Hypot(np[0]-op[0], np[1]-op[1])
			if d <= distanceEpsilon || d >= distanceThreshold {
				continue
			}
			out = append(out, Candidate{
				Type:         sketch.Coincident,
				ElementIDs:   []string{newLineID, otherID},
				PointIndices: []int{ni, oi},
				Confidence:   confidence(d, distanceThreshold),
			})
		}
	}
	return out
}

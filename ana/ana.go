// Copyright 2024 The sketchsolve Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ana implements analytical reference values used only by tests,
// to check the numerical solver's output against a closed-form
// expectation. This repurposes the teacher's own "ana" package (analytical
// solutions checked against gofem's numerical FE results, e.g.
// ana/pressurised_cylinder.go) for the much simpler closed forms this
// solver's six constraint types admit.
package ana

import "math"

// Length returns the Euclidean length of the segment (x1,y1)-(x2,y2).
func Length(x1, y1, x2, y2 float64) float64 {
	dx, dy := x2-x1, y2-y1
	return math.Hypot(dx, dy)
}

// DotProduct returns the dot product of the direction vectors of two
// segments, the quantity a perpendicular constraint drives to zero.
func DotProduct(ax1, ay1, ax2, ay2, bx1, by1, bx2, by2 float64) float64 {
	dax, day := ax2-ax1, ay2-ay1
	dbx, dby := bx2-bx1, by2-by1
	return dax*dbx + day*dby
}

// CrossZ returns the z-component of the cross product of the direction
// vectors of two segments, the quantity a parallel constraint drives to
// zero.
func CrossZ(ax1, ay1, ax2, ay2, bx1, by1, bx2, by2 float64) float64 {
	dax, day := ax2-ax1, ay2-ay1
	dbx, dby := bx2-bx1, by2-by1
	return dax*dby - day*dbx
}

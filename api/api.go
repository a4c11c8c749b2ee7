// Copyright 2024 The sketchsolve Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package api implements the thin HTTP wire layer spec.md §6 fixes for
// compatibility. It is the "surrounding service", not the core solver: it
// owns an in-memory per-sketch store (standing in for the out-of-scope
// session storage of spec.md §1), translates solver.Solve failures into
// the JSON error envelope spec.md §7 describes, including the rollback a
// caller must perform on failure, and reports solver.ValidateConstraint
// results as a plain valid/message body.
//
// No HTTP framework appears anywhere in the retrieved example pack, so
// this layer is built on net/http directly — see DESIGN.md for that
// standard-library justification.
package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/cpmech/sketchsolve/infer"
	"github.com/cpmech/sketchsolve/sketch"
	"github.com/cpmech/sketchsolve/solver"
)

// Store holds the elements and constraints of every sketch the service
// knows about. It is the caller-owned persistence spec.md §3 describes
// ("Lifecycles") — the solver itself never reaches into it directly.
type Store struct {
	mu       sync.RWMutex
	elements map[string]sketch.ElementSet
	cons     map[string][]sketch.Constraint
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		elements: make(map[string]sketch.ElementSet),
		cons:     make(map[string][]sketch.Constraint),
	}
}

// Seed registers a sketch's initial elements, with no constraints, so the
// fixed routes below have something to operate on. Intended for tests,
// not for production callers (who persist sketches by whatever means
// spec.md §1 places out of scope).
func (s *Store) Seed(sketchID string, elements sketch.ElementSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elements[sketchID] = elements.Clone()
	if _, ok := s.cons[sketchID]; !ok {
		s.cons[sketchID] = nil
	}
}

// Handler implements the four fixed routes of spec.md §6 over one Store.
type Handler struct {
	Store *Store
}

// NewHandler returns a Handler backed by store.
func NewHandler(store *Store) *Handler { return &Handler{Store: store} }

// Routes registers this handler's routes on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/constraints", h.create)
	mux.HandleFunc("PUT /api/v1/constraints/{id}", h.update)
	mux.HandleFunc("DELETE /api/v1/constraints/{id}", h.delete)
	mux.HandleFunc("POST /api/v1/constraints/validate", h.validate)
}

// createRequest is the body of POST /api/v1/constraints.
type createRequest struct {
	SketchID   string            `json:"sketch_id"`
	Constraint sketch.Constraint `json:"constraint"`
}

type errorEnvelope struct {
	Kind                   sketch.ErrorKind `json:"kind"`
	ConflictingConstraints []string         `json:"conflicting_constraints"`
	Message                string           `json:"message"`
}

type solveResponse struct {
	Success         bool              `json:"success"`
	Constraint      *sketch.Constraint `json:"constraint,omitempty"`
	UpdatedElements sketch.ElementSet  `json:"updated_elements,omitempty"`
	Iterations      int               `json:"iterations,omitempty"`
	Error           *errorEnvelope    `json:"error,omitempty"`
}

// create handles POST /api/v1/constraints: persists the new constraint and
// runs the solver; on success it returns the constraint record plus the
// updated element visualizations.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Constraint.Type == sketch.Length && req.Constraint.Value <= 0 {
		writeJSON(w, http.StatusBadRequest, solveResponse{Error: &errorEnvelope{
			Kind:    sketch.Unsolvable,
			Message: "length constraint value must be strictly positive",
		}})
		return
	}
	if req.Constraint.Type == sketch.Coincident && len(req.Constraint.PointIndices) != 2 {
		writeJSON(w, http.StatusBadRequest, solveResponse{Error: &errorEnvelope{
			Kind:    sketch.Unsolvable,
			Message: "coincident constraints require point_indices",
		}})
		return
	}

	h.Store.mu.Lock()
	defer h.Store.mu.Unlock()

	elements, ok := h.Store.elements[req.SketchID]
	if !ok {
		http.NotFound(w, r)
		return
	}
	before := h.Store.cons[req.SketchID]
	attempt := append(append([]sketch.Constraint(nil), before...), req.Constraint)

	result := solver.Solve(r.Context(), attempt, elements)
	if !result.Success() {
		// rollback: the pending addition never happened from the
		// persisted sketch's point of view (spec.md §7).
		writeJSON(w, http.StatusUnprocessableEntity, solveResponse{Error: toEnvelope(result.Err)})
		return
	}

	req.Constraint.Satisfied = true
	h.Store.cons[req.SketchID] = attempt
	h.Store.elements[req.SketchID] = result.UpdatedElements
	writeJSON(w, http.StatusOK, solveResponse{
		Success:         true,
		Constraint:      &req.Constraint,
		UpdatedElements: result.UpdatedElements,
		Iterations:      result.Iterations,
	})
}

// updateRequest is the body of PUT /api/v1/constraints/{id}.
type updateRequest struct {
	SketchID string  `json:"sketch_id"`
	Value    float64 `json:"value"`
}

// update handles PUT /api/v1/constraints/{id}: updates a length
// constraint's value and re-runs the solver, rolling back on failure.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Value <= 0 {
		writeJSON(w, http.StatusBadRequest, solveResponse{Error: &errorEnvelope{
			Kind:    sketch.Unsolvable,
			Message: "length constraint value must be strictly positive",
		}})
		return
	}

	h.Store.mu.Lock()
	defer h.Store.mu.Unlock()

	elements, ok := h.Store.elements[req.SketchID]
	if !ok {
		http.NotFound(w, r)
		return
	}
	before := h.Store.cons[req.SketchID]
	attempt := make([]sketch.Constraint, len(before))
	copy(attempt, before)
	found := false
	for i, c := range attempt {
		if c.ID == id {
			attempt[i].Value = req.Value
			found = true
			break
		}
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	result := solver.Solve(r.Context(), attempt, elements)
	if !result.Success() {
		// rollback: the stored constraint list is left exactly as it was
		// (before, with the old value), matching the solver's view.
		writeJSON(w, http.StatusUnprocessableEntity, solveResponse{Error: toEnvelope(result.Err)})
		return
	}

	h.Store.cons[req.SketchID] = attempt
	h.Store.elements[req.SketchID] = result.UpdatedElements
	writeJSON(w, http.StatusOK, solveResponse{
		Success:         true,
		UpdatedElements: result.UpdatedElements,
		Iterations:      result.Iterations,
	})
}

// delete handles DELETE /api/v1/constraints/{id}: removing constraints
// cannot introduce infeasibility, so no solve is needed (spec.md §6).
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sketchID := r.URL.Query().Get("sketch_id")

	h.Store.mu.Lock()
	defer h.Store.mu.Unlock()

	before, ok := h.Store.cons[sketchID]
	if !ok {
		http.NotFound(w, r)
		return
	}
	kept := make([]sketch.Constraint, 0, len(before))
	for _, c := range before {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	h.Store.cons[sketchID] = kept
	w.WriteHeader(http.StatusNoContent)
}

// validateRequest is the body of POST /api/v1/constraints/validate.
type validateRequest struct {
	SketchID   string            `json:"sketch_id"`
	Constraint sketch.Constraint `json:"constraint"`
}

type validateResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// validate handles POST /api/v1/constraints/validate: calls
// solver.ValidateConstraint without persisting anything.
func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decode(w, r, &req) {
		return
	}

	h.Store.mu.RLock()
	elements, ok := h.Store.elements[req.SketchID]
	existing := h.Store.cons[req.SketchID]
	h.Store.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	valid, message := solver.ValidateConstraint(r.Context(), req.Constraint, existing, elements)
	writeJSON(w, http.StatusOK, validateResponse{Valid: valid, Message: message})
}

// toEnvelope implements the API-layer distinction spec.md §7 draws between
// the core's generic over_constrained and the richer "conflicting" kind:
// the core always reports over_constrained; when it has narrowed the
// blame down to exactly one pre-existing constraint plus the new
// candidate, the API has enough context to call that out as a specific
// pairwise conflict rather than a generic over-constrained system.
func toEnvelope(err *sketch.SolveError) *errorEnvelope {
	kind := err.Kind
	conflicting := err.SortedConstraintIDs()
	if kind == sketch.OverConstrained && len(conflicting) == 2 {
		kind = sketch.Conflicting
	}
	return &errorEnvelope{Kind: kind, ConflictingConstraints: conflicting, Message: err.Message}
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, solveResponse{Error: &errorEnvelope{
			Kind:    sketch.Unsolvable,
			Message: "malformed request body: " + err.Error(),
		}})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// DetectRequest is the body of the (non-persisting) inference endpoint.
type DetectRequest struct {
	SketchID        string            `json:"sketch_id"`
	NewLineID       string            `json:"new_line_id"`
	NewLine         sketch.Element    `json:"new_line"`
	OtherLines      sketch.ElementSet `json:"other_lines"`
}

// Detect handles an additional, non-fixed convenience route exposing
// infer.Detect over HTTP; the wire routes spec.md §6 fixes for
// compatibility cover only the constraint CRUD+validate surface, so this
// one is registered separately by callers that want it.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if !decode(w, r, &req) {
		return
	}
	candidates := infer.Detect(req.NewLineID, req.NewLine, req.OtherLines, req.SketchID)
	writeJSON(w, http.StatusOK, candidates)
}

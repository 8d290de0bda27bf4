// Package models defines the JSON schema of a solve report, shared by the
// CLI (-json, -o) and the HTTP API.
package models

import "time"

// Status values of a SolveReport.
const (
	StatusConverged    = "converged"
	StatusNotConverged = "not_converged"
	StatusFailed       = "failed"
)

// SolveReport summarizes one eigenvalue solve.
type SolveReport struct {
	Problem    string  `json:"problem"`
	Solver     string  `json:"solver"`
	Status     string  `json:"status"`
	K          float64 `json:"k"`
	Iterations int     `json:"iterations"`

	// RelativeChange is the last |k_new − k|/|k_new|.
	RelativeChange float64 `json:"relative_change"`
	Tolerance      float64 `json:"tolerance"`
	Groups         int     `json:"groups"`
	Elements       int     `json:"elements"`
	Degrees        int     `json:"degrees_of_freedom"`

	// ReferenceK is the analytic eigenvalue when the problem has one.
	ReferenceK     float64        `json:"reference_k,omitempty"`
	ReferenceError float64        `json:"reference_error,omitempty"`
	Trace          []float64      `json:"trace,omitempty"`
	History        []float64      `json:"history,omitempty"`
	Profiles       []GroupProfile `json:"profiles,omitempty"`
	Duration       time.Duration  `json:"duration_ns"`
	Error          string         `json:"error,omitempty"`
}

// GroupProfile is a sampled group flux, normalized so that the largest
// sample over all groups is 1.
type GroupProfile struct {
	Group int       `json:"group"`
	X     []float64 `json:"x"`
	Flux  []float64 `json:"flux"`
}

// Converged reports whether the solve met its tolerance.
func (r *SolveReport) Converged() bool { return r.Status == StatusConverged }

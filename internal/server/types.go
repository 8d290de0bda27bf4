package server

import "github.com/agbru/keffcalc/pkg/models"

// SolveResponse is the JSON body of /solve. A solve that ran returns its
// report even when it did not converge; Error then says why.
type SolveResponse struct {
	*models.SolveReport
	// DurationText is the formatted request duration.
	DurationText string `json:"duration"`
}

// ErrorResponse represents the standardized JSON response for an API error.
type ErrorResponse struct {
	// Error is the HTTP status text.
	Error string `json:"error"`
	// Message is a descriptive error message.
	Message string `json:"message,omitempty"`
	// Field names the offending parameter of a validation error.
	Field string `json:"field,omitempty"`
}

// ProblemSummary describes one catalog problem in /problems.
type ProblemSummary struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Geometry    string  `json:"geometry"`
	Groups      int     `json:"groups"`
	ReferenceK  float64 `json:"reference_k,omitempty"`
}

// ParseError is a request parameter error with its HTTP status.
type ParseError struct {
	Field      string
	Message    string
	StatusCode int
}

func (e ParseError) Error() string {
	return e.Message
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/agbru/keffcalc/internal/cli"
	"github.com/agbru/keffcalc/internal/eigen"
	apperrors "github.com/agbru/keffcalc/internal/errors"
	"github.com/agbru/keffcalc/internal/problem"
	"github.com/agbru/keffcalc/internal/service"
	"github.com/agbru/keffcalc/pkg/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	body := map[string]any{
		"status":       "healthy",
		"timestamp":    time.Now().Unix(),
		"go":           runtime.Version(),
		"cpus":         runtime.NumCPU(),
		"cpu_features": cli.CPUFeatures(),
	}
	if c, ok := s.service.(cacheReporter); ok {
		body["instance_cache"] = c.CacheStats()
	}
	s.writeJSONResponse(w, http.StatusOK, body)
}

// cacheReporter is implemented by services that cache built problems.
type cacheReporter interface {
	CacheStats() service.CacheStats
}

func (s *Server) handleSolvers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]any{"solvers": s.service.Solvers()})
}

// handleProblems lists the problems the service knows, with a summary of
// each one found in the catalog.
func (s *Server) handleProblems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	names := s.service.Problems()
	summaries := make([]ProblemSummary, 0, len(names))
	for _, name := range names {
		sum := ProblemSummary{Name: name}
		if def, err := s.catalog.Get(name); err == nil {
			sum.Description = def.Description
			sum.Geometry = def.Geometry.String()
			sum.Groups = def.Groups
			sum.ReferenceK = def.ReferenceK
		}
		summaries = append(summaries, sum)
	}
	s.writeJSONResponse(w, http.StatusOK, map[string]any{"problems": summaries})
}

// handleProblem returns a catalog problem as a deck, in JSON or, with
// ?format=yaml, in the YAML form accepted by POST /solve.
func (s *Server) handleProblem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	def, err := s.catalog.Get(r.PathValue("name"))
	if err != nil {
		s.writeErrorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "yaml") {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		if err := problem.WriteDeck(w, def); err != nil {
			s.logger.Error("writing deck", err)
		}
		return
	}
	s.writeJSONResponse(w, http.StatusOK, def)
}

// handleSolve runs one solve. GET solves a catalog problem named by the
// query; POST solves the YAML deck in the body, with the same query
// parameters for the numerics.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, err := s.parseSolveParams(r)
	if err == nil && r.Method == http.MethodPost {
		var def problem.Definition
		def, err = problem.LoadDeck(http.MaxBytesReader(w, r.Body, s.securityConfig.MaxBodyBytes))
		if err != nil {
			err = ParseError{Field: "body", Message: "Invalid problem deck: " + err.Error(), StatusCode: http.StatusBadRequest}
		} else {
			req.Definition = &def
		}
	}
	if err != nil {
		s.writeParseError(w, err)
		return
	}

	label := req.Problem
	if req.Definition != nil {
		label = "deck"
	}
	req.Observers = append(req.Observers, eigen.NewMetricsObserver(label))

	ctx, cancel := context.WithTimeout(r.Context(), s.timeouts.RequestTimeout)
	defer cancel()

	start := time.Now()
	report, err := s.service.Solve(ctx, req)
	duration := time.Since(start)

	if report == nil {
		s.metrics.ObserveSolve(label, models.StatusFailed, duration)
		s.writeSolveError(w, err)
		return
	}
	s.metrics.ObserveSolve(label, report.Status, duration)
	if err != nil && report.Error == "" {
		report.Error = err.Error()
	}
	// An interrupted run still carries its partial report.
	status := http.StatusOK
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	s.writeJSONResponse(w, status, SolveResponse{SolveReport: report, DurationText: duration.String()})
}

// parseSolveParams reads the numeric parameters of a solve. Missing
// parameters fall back to the server configuration, then to the service
// defaults.
func (s *Server) parseSolveParams(r *http.Request) (service.Request, error) {
	q := r.URL.Query()
	req := service.Request{
		Problem:   q.Get("problem"),
		Solver:    strings.ToLower(q.Get("solver")),
		Tolerance: s.cfg.Tolerance,
	}
	if req.Solver == "" {
		req.Solver = s.cfg.Solver
	}
	if req.Problem == "" && r.Method == http.MethodGet {
		return req, ParseError{Field: "problem", Message: "Missing 'problem' parameter", StatusCode: http.StatusBadRequest}
	}

	floatParam := func(name string, dst *float64) error {
		if v := q.Get(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return ParseError{Field: name, Message: fmt.Sprintf("Invalid '%s' parameter: must be a number", name), StatusCode: http.StatusBadRequest}
			}
			*dst = f
		}
		return nil
	}
	intParam := func(name string, dst *int) error {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return ParseError{Field: name, Message: fmt.Sprintf("Invalid '%s' parameter: must be a non-negative integer", name), StatusCode: http.StatusBadRequest}
			}
			*dst = n
		}
		return nil
	}

	var flux float64
	hasFlux := q.Get("flux0") != ""
	for _, err := range []error{
		floatParam("tol", &req.Tolerance),
		floatParam("k0", &req.InitialK),
		floatParam("flux0", &flux),
		intParam("max_iter", &req.MaxIterations),
		intParam("refine", &req.Refinements),
		intParam("profile", &req.ProfilePoints),
	} {
		if err != nil {
			return req, err
		}
	}
	if hasFlux {
		req.InitialFlux = &flux
	}
	if v := q.Get("details"); v != "" {
		details, err := strconv.ParseBool(v)
		if err != nil {
			return req, ParseError{Field: "details", Message: "Invalid 'details' parameter: must be a boolean", StatusCode: http.StatusBadRequest}
		}
		req.Details = details
	}
	return req, nil
}

func (s *Server) writeParseError(w http.ResponseWriter, err error) {
	var parseErr ParseError
	if errors.As(err, &parseErr) {
		s.writeErrorResponseWithField(w, parseErr.StatusCode, parseErr.Message, parseErr.Field)
		return
	}
	s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
}

// writeSolveError maps an error that prevented a solve from running to an
// HTTP status.
func (s *Server) writeSolveError(w http.ResponseWriter, err error) {
	var validation apperrors.ValidationError
	switch {
	case errors.As(err, &validation):
		s.writeErrorResponseWithField(w, http.StatusBadRequest, validation.Error(), validation.Field)
	case errors.Is(err, service.ErrLimitExceeded):
		s.writeErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("%v. This limit prevents resource exhaustion.", err))
	case errors.Is(err, problem.ErrInvalidDefinition):
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "The solve exceeded the request timeout")
	default:
		s.writeErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encoding JSON response", err)
	}
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.writeErrorResponseWithField(w, statusCode, message, "")
}

func (s *Server) writeErrorResponseWithField(w http.ResponseWriter, statusCode int, message, field string) {
	s.writeJSONResponse(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Field:   field,
	})
}

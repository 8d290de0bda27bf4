// Package service runs single eigenvalue solves on behalf of the HTTP API
// and the CLI. It centralizes request defaults, resource limits, engine
// construction and report building.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/agbru/keffcalc/internal/eigen"
	apperrors "github.com/agbru/keffcalc/internal/errors"
	"github.com/agbru/keffcalc/internal/fem"
	"github.com/agbru/keffcalc/internal/linsolve"
	"github.com/agbru/keffcalc/internal/logging"
	"github.com/agbru/keffcalc/internal/problem"
	"github.com/agbru/keffcalc/pkg/models"
)

// ErrLimitExceeded is returned when a request asks for more work than the
// service allows.
var ErrLimitExceeded = errors.New("service: request exceeds configured limits")

// DefaultSolver is used when a request names none.
const DefaultSolver = "lu"

// Request describes one solve. Zero values select defaults.
type Request struct {
	// Problem is a catalog name. Ignored when Definition is set.
	Problem string
	// Definition is an inline problem, e.g. from a deck.
	Definition *problem.Definition
	Solver     string
	Tolerance  float64
	// MaxIterations bounds the run; 0 means the service cap, or unbounded
	// when the service has none.
	MaxIterations int
	InitialK      float64
	// InitialFlux is the uniform starting flux. A nil pointer means 1.
	InitialFlux *float64
	Refinements int
	// ProfilePoints is the number of flux samples per group in the report.
	ProfilePoints int
	// Details adds the relative-change trace and k history to the report.
	Details bool
	// Observers are attached to the engine for this solve only.
	Observers []eigen.IterationObserver
	// Index identifies the solve in observer notifications.
	Index int
}

// Limits bounds the work a single request may ask for. Zero fields are
// unlimited.
type Limits struct {
	MaxIterations  int
	MaxRefinements int
	// MaxDegrees bounds the size of the dense system.
	MaxDegrees int
}

// DefaultLimits are the limits of the HTTP API.
func DefaultLimits() Limits {
	return Limits{MaxIterations: 10_000, MaxRefinements: 6, MaxDegrees: 4_000}
}

// Service defines the interface of the solve service.
type Service interface {
	// Solve runs one eigenvalue problem to convergence.
	//
	// Parameters:
	//   - ctx: The context for cancellation.
	//   - req: The solve request.
	//
	// Returns:
	//   - *models.SolveReport: The report, also for failed runs once the
	//     engine was started.
	//   - error: A validation, limit or solve error.
	Solve(ctx context.Context, req Request) (*models.SolveReport, error)
	// Problems lists the catalog problem names.
	Problems() []string
	// Solvers lists the linear solver names.
	Solvers() []string
}

// SolveService implements Service on top of a problem catalog and a solver
// factory.
type SolveService struct {
	catalog   *problem.Catalog
	factory   *linsolve.Factory
	limits    Limits
	logger    logging.Logger
	instances *InstanceCache
}

var _ Service = (*SolveService)(nil)

// Option configures a SolveService.
type Option func(*SolveService)

// WithLogger sets the logger. The engine receives its zerolog logger when
// the adapter is zerolog-backed.
func WithLogger(logger logging.Logger) Option {
	return func(s *SolveService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInstanceCache replaces the cache of built catalog problems; size 0
// disables caching.
func WithInstanceCache(size int) Option {
	return func(s *SolveService) {
		if size <= 0 {
			s.instances = nil
			return
		}
		s.instances = NewInstanceCache(size)
	}
}

// NewSolveService creates a service.
//
// Parameters:
//   - catalog: The problems resolvable by name.
//   - factory: The linear solvers resolvable by name.
//   - limits: The per-request limits.
func NewSolveService(catalog *problem.Catalog, factory *linsolve.Factory, limits Limits, opts ...Option) *SolveService {
	s := &SolveService{
		catalog:   catalog,
		factory:   factory,
		limits:    limits,
		logger:    logging.NewDefaultLogger(),
		instances: NewInstanceCache(DefaultInstanceCacheSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Problems implements Service.
func (s *SolveService) Problems() []string { return s.catalog.List() }

// Solvers implements Service.
func (s *SolveService) Solvers() []string { return s.factory.List() }

// Limits returns the configured limits.
func (s *SolveService) Limits() Limits { return s.limits }

// CacheStats returns the activity of the instance cache, zero when caching
// is disabled.
func (s *SolveService) CacheStats() CacheStats {
	if s.instances == nil {
		return CacheStats{}
	}
	return s.instances.Stats()
}

// Solve implements Service.
func (s *SolveService) Solve(ctx context.Context, req Request) (*models.SolveReport, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	def := req.Definition
	build := problem.Build
	if def == nil {
		d, err := s.catalog.Get(req.Problem)
		if err != nil {
			return nil, apperrors.NewValidationError("problem", err.Error(), req.Problem)
		}
		def = &d
		// Decks are built per request; only catalog entries are cached.
		if s.instances != nil {
			build = s.instances.Build
		}
	}
	if err := s.checkSize(def, req.Refinements); err != nil {
		return nil, err
	}
	inst, err := build(*def, req.Refinements)
	if err != nil {
		return nil, err
	}
	solver, err := s.factory.Create(req.Solver)
	if err != nil {
		return nil, apperrors.NewValidationError("solver", err.Error(), req.Solver)
	}

	opts := []eigen.Option{eigen.WithIndex(req.Index)}
	if z, ok := s.logger.(*logging.ZerologAdapter); ok {
		opts = append(opts, eigen.WithLogger(z.Engine().With().Str("problem", def.Name).Logger()))
	}
	for _, o := range req.Observers {
		opts = append(opts, eigen.WithObserver(o))
	}
	engine, err := inst.NewEngine(solver, opts...)
	if err != nil {
		return nil, err
	}
	if err := engine.Initialize(inst.Guess(*req.InitialFlux), req.InitialK); err != nil {
		return nil, apperrors.NewValidationError("k0", err.Error(), req.InitialK)
	}

	start := time.Now()
	res, runErr := engine.Run(ctx, eigen.RunOptions{Tolerance: req.Tolerance, MaxIterations: req.MaxIterations})
	report := BuildReport(inst, solver.Name(), req, res, engine.Convergence(), runErr)
	report.Duration = time.Since(start)

	if runErr != nil {
		s.logger.Error("solve failed", runErr, logging.Problem(def.Name), logging.Solver(solver.Name()),
			logging.Int("iterations", res.Iterations))
		return report, apperrors.SolveError{Problem: def.Name, Solver: solver.Name(), Cause: runErr}
	}
	s.logger.Info("solve completed", logging.Problem(def.Name), logging.Solver(solver.Name()),
		logging.Eigenvalue(res.K), logging.Int("iterations", res.Iterations), logging.Duration("duration", report.Duration))
	return report, nil
}

func (s *SolveService) normalize(req Request) (Request, error) {
	if req.Solver == "" {
		req.Solver = DefaultSolver
	}
	if req.Tolerance == 0 {
		req.Tolerance = eigen.DefaultTolerance
	}
	if req.InitialK == 0 {
		req.InitialK = 1
	}
	if req.InitialFlux == nil {
		one := 1.0
		req.InitialFlux = &one
	}
	switch {
	case req.Problem == "" && req.Definition == nil:
		return req, apperrors.NewValidationError("problem", "a problem name or definition is required", nil)
	case !(req.Tolerance > 0) || math.IsInf(req.Tolerance, 0):
		return req, apperrors.NewValidationError("tol", "must be finite and positive", req.Tolerance)
	case !(req.InitialK > 0) || math.IsInf(req.InitialK, 0):
		return req, apperrors.NewValidationError("k0", "must be finite and positive", req.InitialK)
	case math.IsNaN(*req.InitialFlux) || math.IsInf(*req.InitialFlux, 0):
		return req, apperrors.NewValidationError("flux0", "must be finite", *req.InitialFlux)
	case req.MaxIterations < 0:
		return req, apperrors.NewValidationError("max_iter", "cannot be negative", req.MaxIterations)
	case req.Refinements < 0:
		return req, apperrors.NewValidationError("refine", "cannot be negative", req.Refinements)
	case req.ProfilePoints < 0:
		return req, apperrors.NewValidationError("profile", "cannot be negative", req.ProfilePoints)
	}
	if capIter := s.limits.MaxIterations; capIter > 0 {
		if req.MaxIterations > capIter {
			return req, fmt.Errorf("%w: %d iterations (max %d)", ErrLimitExceeded, req.MaxIterations, capIter)
		}
		if req.MaxIterations == 0 {
			req.MaxIterations = capIter
		}
	}
	if s.limits.MaxRefinements > 0 && req.Refinements > s.limits.MaxRefinements {
		return req, fmt.Errorf("%w: %d refinements (max %d)", ErrLimitExceeded, req.Refinements, s.limits.MaxRefinements)
	}
	return req, nil
}

// checkSize applies the refinement and size limits to def before anything
// is allocated for it.
func (s *SolveService) checkSize(def *problem.Definition, extra int) error {
	if refinements := def.Refinements + extra; s.limits.MaxRefinements > 0 && refinements > s.limits.MaxRefinements {
		return fmt.Errorf("%w: %d refinements (max %d)", ErrLimitExceeded, refinements, s.limits.MaxRefinements)
	}
	if degrees := def.EstimatedDegrees(extra); s.limits.MaxDegrees > 0 && degrees > float64(s.limits.MaxDegrees) {
		return fmt.Errorf("%w: %.0f degrees of freedom (max %d)", ErrLimitExceeded, degrees, s.limits.MaxDegrees)
	}
	return nil
}

// BuildReport converts an engine result into a report.
//
// Parameters:
//   - inst: The solved problem instance.
//   - solver: The linear solver name.
//   - req: The normalized request (tolerance, details, profile points).
//   - res: The engine result.
//   - conv: The final convergence state of the engine.
//   - runErr: The error returned by Run, if any.
func BuildReport(inst *problem.Instance, solver string, req Request, res eigen.Result, conv eigen.ConvergenceState, runErr error) *models.SolveReport {
	def := inst.Definition()
	report := &models.SolveReport{
		Problem:        def.Name,
		Solver:         solver,
		Status:         models.StatusConverged,
		K:              res.K,
		Iterations:     res.Iterations,
		RelativeChange: conv.RelativeChange,
		Tolerance:      req.Tolerance,
		Groups:         inst.Groups(),
		Elements:       inst.Mesh().NumElements(),
		Degrees:        inst.Degrees(),
	}
	if math.IsInf(report.RelativeChange, 0) {
		report.RelativeChange = 0
	}
	if def.ReferenceK > 0 {
		report.ReferenceK = def.ReferenceK
		report.ReferenceError = (res.K - def.ReferenceK) / def.ReferenceK
	}
	if req.Details {
		report.Trace = res.Trace
		report.History = res.History
	}
	switch {
	case runErr == nil:
	case errors.Is(runErr, eigen.ErrNonConvergence):
		report.Status = models.StatusNotConverged
		report.Error = runErr.Error()
	default:
		report.Status = models.StatusFailed
		report.Error = runErr.Error()
	}
	if req.ProfilePoints > 0 && res.Iterations > 0 {
		report.Profiles = Profiles(res.Fluxes, req.ProfilePoints)
	}
	return report
}

// Profiles samples each finite-element flux at n points and normalizes all
// groups by the largest absolute sample. Fields that are not finite-element
// solutions are skipped.
func Profiles(fluxes []eigen.Field, n int) []models.GroupProfile {
	profiles := make([]models.GroupProfile, 0, len(fluxes))
	peak := 0.0
	for g, f := range fluxes {
		sol, ok := f.(*fem.Solution)
		if !ok {
			continue
		}
		xs, values := sol.Sample(n)
		for _, v := range values {
			peak = math.Max(peak, math.Abs(v))
		}
		profiles = append(profiles, models.GroupProfile{Group: g + 1, X: xs, Flux: values})
	}
	if peak > 0 {
		for _, p := range profiles {
			for i := range p.Flux {
				p.Flux[i] /= peak
			}
		}
	}
	return profiles
}

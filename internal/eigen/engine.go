package eigen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/agbru/keffcalc/internal/physics"
)

// DefaultTolerance is the default stopping threshold on the relative change of k.
const DefaultTolerance = 1e-5

var (
	solvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keffcalc_solves_total",
			Help: "The total number of eigenvalue solves, by solver and outcome",
		},
		[]string{"solver", "status"},
	)
	solveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "keffcalc_solve_duration_seconds",
			Help: "The duration of eigenvalue solves in seconds",
		},
		[]string{"solver"},
	)
	iterationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keffcalc_iterations_total",
			Help: "The total number of committed power iterations",
		},
		[]string{"solver"},
	)
)

// State is the lifecycle state of an Engine.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateIterating
	StateConverged
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further steps are allowed.
func (s State) Terminal() bool { return s == StateConverged || s == StateFailed }

// ConvergenceState is the bookkeeping of the iteration after the last step.
type ConvergenceState struct {
	Iteration      int
	K              float64
	PreviousK      float64
	RelativeChange float64
}

// StepResult is the outcome of one iteration.
type StepResult struct {
	Iteration      int
	Fluxes         []Field
	K              float64
	RelativeChange float64
}

// RunOptions controls the stopping rule of Run.
type RunOptions struct {
	// Tolerance is the threshold on |k_new - k| / |k_new|.
	Tolerance float64
	// MaxIterations caps the total iteration count of the engine; 0 means unbounded.
	MaxIterations int
}

// Result is the state of an engine at the end of Run.
type Result struct {
	K          float64
	Fluxes     []Field
	Iterations int
	Trace      []float64
	History    []float64
	Converged  bool
}

// Setup gathers the collaborators of an Engine.
type Setup struct {
	Backend      Backend
	Solver       Solver
	Domain       Domain
	Data         FissionData
	ActiveRegion physics.RegionTag
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger receiving one record per iteration.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithObserver registers an iteration observer.
func WithObserver(observer IterationObserver) Option {
	return func(e *Engine) { e.subject.Register(observer) }
}

// WithSubject replaces the observer subject, so several engines can share
// the same set of observers.
func WithSubject(subject *IterationSubject) Option {
	return func(e *Engine) {
		if subject != nil {
			e.subject = subject
		}
	}
}

// WithIndex sets the solve index reported to observers.
func WithIndex(index int) Option {
	return func(e *Engine) { e.index = index }
}

// Engine drives the power iteration of one eigenproblem. It owns the
// eigenvalue estimate, the previous-iterate fluxes and the assembled system;
// an Engine must not be shared between goroutines. Independent problems
// need independent engines.
type Engine struct {
	backend    Backend
	solver     Solver
	domain     Domain
	data       FissionData
	active     physics.RegionTag
	integrator *RegionIntegrator

	state     State
	k         float64
	fluxes    []Field
	system    *LinearSystem
	assembled bool
	conv      ConvergenceState
	trace     []float64
	history   []float64

	subject *IterationSubject
	logger  zerolog.Logger
	index   int
}

// NewEngine creates an engine in the Uninitialized state.
//
// Parameters:
//   - setup: The backend, solver, domain, fission data and active region.
//   - opts: Optional logger, observers and solve index.
//
// Returns:
//   - *Engine: The engine.
//   - error: ErrInvalidOptions when a collaborator is missing.
func NewEngine(setup Setup, opts ...Option) (*Engine, error) {
	switch {
	case setup.Backend == nil:
		return nil, fmt.Errorf("%w: nil backend", ErrInvalidOptions)
	case setup.Solver == nil:
		return nil, fmt.Errorf("%w: nil solver", ErrInvalidOptions)
	case setup.Domain == nil:
		return nil, fmt.Errorf("%w: nil domain", ErrInvalidOptions)
	case setup.Data == nil:
		return nil, fmt.Errorf("%w: nil fission data", ErrInvalidOptions)
	case setup.Backend.Groups() < 1:
		return nil, fmt.Errorf("%w: backend has %d groups", ErrInvalidOptions, setup.Backend.Groups())
	}
	e := &Engine{
		backend:    setup.Backend,
		solver:     setup.Solver,
		domain:     setup.Domain,
		data:       setup.Data,
		active:     setup.ActiveRegion,
		integrator: NewRegionIntegrator(setup.Domain),
		subject:    NewIterationSubject(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Initialize seeds the iteration and moves the engine to Ready.
//
// Parameters:
//   - guess: One field per group. An all-zero or non-finite guess is
//     accepted here and is reported as a degenerate source by the first Step.
//   - k: The initial eigenvalue estimate; must be finite and positive.
//
// Returns:
//   - error: ErrInvalidGuess, or ErrTerminalState once the engine has finished.
func (e *Engine) Initialize(guess []Field, k float64) error {
	if e.state.Terminal() {
		return fmt.Errorf("%w: %s", ErrTerminalState, e.state)
	}
	if e.state != StateUninitialized {
		return fmt.Errorf("%w: engine already initialized", ErrInvalidGuess)
	}
	if len(guess) != e.backend.Groups() {
		return fmt.Errorf("%w: %d fields for %d groups", ErrInvalidGuess, len(guess), e.backend.Groups())
	}
	for g, f := range guess {
		if f == nil {
			return fmt.Errorf("%w: field of group %d is nil", ErrInvalidGuess, g)
		}
	}
	if !(k > 0) || math.IsInf(k, 0) {
		return fmt.Errorf("%w: initial eigenvalue %g must be finite and positive", ErrInvalidGuess, k)
	}
	e.fluxes = append([]Field(nil), guess...)
	e.k = k
	e.conv = ConvergenceState{K: k, PreviousK: k, RelativeChange: math.Inf(1)}
	e.state = StateReady
	return nil
}

// Step performs exactly one power iteration: assemble (the full system the
// first time, the right-hand side afterwards), solve, partition, and update
// k from the ratio of the new and previous fission integrals over the
// active region. Nothing is committed when a step fails.
//
// Parameters:
//   - ctx: Passed to the backend and the solver; Step itself is not cancellable.
//
// Returns:
//   - StepResult: The new fluxes, eigenvalue and relative change.
//   - error: *DegenerateSourceError, *SolverFailure, or a wrapped backend error.
func (e *Engine) Step(ctx context.Context) (StepResult, error) {
	switch {
	case e.state == StateUninitialized:
		return StepResult{}, ErrNotInitialized
	case e.state.Terminal():
		return StepResult{}, fmt.Errorf("%w: %s", ErrTerminalState, e.state)
	}
	iteration := e.conv.Iteration + 1

	prevIntegral := e.integrator.Integrate(NewFissionSource(e.data, e.domain, e.fluxes), e.active)
	if prevIntegral == 0 || math.IsNaN(prevIntegral) || math.IsInf(prevIntegral, 0) {
		e.state = StateFailed
		return StepResult{}, &DegenerateSourceError{Iteration: iteration, Region: e.active}
	}

	full := !e.assembled
	sys, err := e.backend.Assemble(ctx, e.fluxes, e.k, full)
	if err != nil {
		e.state = StateFailed
		return StepResult{}, fmt.Errorf("eigen: assembly failed at iteration %d: %w", iteration, err)
	}
	e.assembled = true

	x, err := e.solver.Solve(ctx, sys)
	if err != nil {
		e.state = StateFailed
		return StepResult{}, &SolverFailure{Iteration: iteration, Solver: e.solver.Name(), Cause: err}
	}
	fluxes, err := e.backend.Partition(x)
	if err != nil {
		e.state = StateFailed
		return StepResult{}, fmt.Errorf("eigen: partition failed at iteration %d: %w", iteration, err)
	}

	newIntegral := e.integrator.Integrate(NewFissionSource(e.data, e.domain, fluxes), e.active)
	newK := e.k * newIntegral / prevIntegral
	if math.IsNaN(newK) || math.IsInf(newK, 0) {
		e.state = StateFailed
		return StepResult{}, &SolverFailure{Iteration: iteration, Solver: e.solver.Name(), Cause: ErrNonFinite}
	}
	relChange := math.Abs(newK-e.k) / math.Abs(newK)

	e.system = sys
	e.conv = ConvergenceState{Iteration: iteration, K: newK, PreviousK: e.k, RelativeChange: relChange}
	e.fluxes = fluxes
	e.k = newK
	e.trace = append(e.trace, relChange)
	e.history = append(e.history, newK)
	e.state = StateIterating
	iterationsTotal.WithLabelValues(e.solver.Name()).Inc()

	e.logger.Info().
		Int("iteration", iteration).
		Float64("k", newK).
		Float64("rel_change", relChange).
		Msgf("Largest eigenvalue: %.8g, rel. difference from previous it.: %g", newK, relChange)
	e.subject.Notify(e.index, e.conv)

	return StepResult{Iteration: iteration, Fluxes: fluxes, K: newK, RelativeChange: relChange}, nil
}

// Run steps until the relative change of k falls below opts.Tolerance.
// Cancellation of ctx is honored between steps only. When opts.MaxIterations
// is reached first, a *NonConvergenceError is returned and the engine stays
// in the Iterating state so that a later Run can continue.
//
// Parameters:
//   - ctx: The context for cancellation and tracing.
//   - opts: The stopping rule.
//
// Returns:
//   - Result: The state reached, also on error.
//   - error: Step errors, *NonConvergenceError, or a wrapped context error.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (res Result, err error) {
	tracer := otel.Tracer("eigen")
	ctx, span := tracer.Start(ctx, "Engine.Run")
	defer span.End()

	start := time.Now()
	solver := e.solver.Name()
	defer func() {
		duration := time.Since(start).Seconds()
		status := runStatus(e.state, err)
		solvesTotal.WithLabelValues(solver, status).Inc()
		solveDuration.WithLabelValues(solver).Observe(duration)
		span.SetAttributes(
			attribute.String("solver", solver),
			attribute.Int("iterations", res.Iterations),
			attribute.Float64("k", res.K),
			attribute.String("status", status),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		}
		log.Debug().
			Str("solver", solver).
			Int("iterations", res.Iterations).
			Float64("k", res.K).
			Float64("duration", duration).
			Str("status", status).
			Msg("eigenvalue solve completed")
	}()

	if !(opts.Tolerance > 0) {
		return e.result(), fmt.Errorf("%w: tolerance %g must be positive", ErrInvalidOptions, opts.Tolerance)
	}
	if opts.MaxIterations < 0 {
		return e.result(), fmt.Errorf("%w: negative iteration budget %d", ErrInvalidOptions, opts.MaxIterations)
	}
	switch {
	case e.state == StateUninitialized:
		return e.result(), ErrNotInitialized
	case e.state.Terminal():
		return e.result(), fmt.Errorf("%w: %s", ErrTerminalState, e.state)
	}

	for {
		if cerr := ctx.Err(); cerr != nil {
			return e.result(), fmt.Errorf("eigen: run interrupted after %d iterations: %w", e.conv.Iteration, cerr)
		}
		if opts.MaxIterations > 0 && e.conv.Iteration >= opts.MaxIterations {
			return e.result(), &NonConvergenceError{
				Iterations:     e.conv.Iteration,
				Tolerance:      opts.Tolerance,
				RelativeChange: e.conv.RelativeChange,
				K:              e.k,
			}
		}
		step, serr := e.Step(ctx)
		if serr != nil {
			return e.result(), serr
		}
		if step.RelativeChange < opts.Tolerance {
			e.state = StateConverged
			return e.result(), nil
		}
	}
}

func runStatus(state State, err error) string {
	switch {
	case err == nil:
		return "converged"
	case state == StateFailed:
		return "failed"
	case isContextErr(err):
		return "canceled"
	default:
		return "incomplete"
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) result() Result {
	return Result{
		K:          e.k,
		Fluxes:     e.Fluxes(),
		Iterations: e.conv.Iteration,
		Trace:      e.Trace(),
		History:    e.History(),
		Converged:  e.state == StateConverged,
	}
}

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// K returns the current eigenvalue estimate.
func (e *Engine) K() float64 { return e.k }

// Groups returns the number of energy groups.
func (e *Engine) Groups() int { return e.backend.Groups() }

// Fluxes returns the latest group fluxes (the guess before the first step).
func (e *Engine) Fluxes() []Field { return append([]Field(nil), e.fluxes...) }

// Convergence returns the bookkeeping of the last step.
func (e *Engine) Convergence() ConvergenceState { return e.conv }

// Trace returns the relative change of k of every completed iteration.
func (e *Engine) Trace() []float64 { return append([]float64(nil), e.trace...) }

// History returns the eigenvalue estimate after every completed iteration.
func (e *Engine) History() []float64 { return append([]float64(nil), e.history...) }

// System returns the last assembled linear system, or nil before the first step.
func (e *Engine) System() *LinearSystem { return e.system }

// Integrator returns the region integrator bound to the engine's domain.
func (e *Engine) Integrator() *RegionIntegrator { return e.integrator }

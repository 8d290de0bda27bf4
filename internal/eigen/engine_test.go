package eigen

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gonum.org/v1/gonum/mat"

	"github.com/agbru/keffcalc/internal/physics"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles
// ─────────────────────────────────────────────────────────────────────────────

// lineDomain is a 1-D domain of unit elements with a constant weight.
type lineDomain struct {
	tags []physics.RegionTag
}

func (d lineDomain) NumElements() int               { return len(d.tags) }
func (d lineDomain) Region(e int) physics.RegionTag { return d.tags[e] }
func (d lineDomain) Map(e int, xi float64) (float64, float64) {
	return float64(e) + (xi+1)/2, 0.5
}
func (d lineDomain) Weight(float64) float64 { return 1 }
func (d lineDomain) WeightDegree() int      { return 0 }

// coreData gives every group ν·Σf = 1 in the "core" region only.
type coreData struct{}

func (coreData) NuSigmaF(tag physics.RegionTag, _ int) float64 {
	if tag == "core" {
		return 1
	}
	return 0
}

// algebraicBackend models G spatially constant group fluxes with a fixed
// loss matrix M and a production matrix F: M φ_new = F φ_prev / k.
// The dominant eigenvalue of M⁻¹F is the limit of the iteration.
type algebraicBackend struct {
	loss       *mat.Dense
	production *mat.Dense

	fullCalls  []bool
	matrices   []*mat.Dense
	failAssemb error
	system     *LinearSystem
}

func newAlgebraicBackend() *algebraicBackend {
	return &algebraicBackend{
		loss:       mat.NewDense(2, 2, []float64{2, 0, -0.5, 1}),
		production: mat.NewDense(2, 2, []float64{0.5, 0.25, 0.25, 0.5}),
	}
}

// dominant returns the largest eigenvalue of M⁻¹F for the default matrices.
func (b *algebraicBackend) dominant() float64 {
	// M⁻¹F = [[0.25, 0.125], [0.375, 0.5625]]
	tr, det := 0.8125, 0.25*0.5625-0.125*0.375
	return (tr + math.Sqrt(tr*tr-4*det)) / 2
}

func (b *algebraicBackend) Groups() int { return 2 }

func (b *algebraicBackend) Assemble(_ context.Context, prev []Field, k float64, full bool) (*LinearSystem, error) {
	b.fullCalls = append(b.fullCalls, full)
	if b.failAssemb != nil {
		return nil, b.failAssemb
	}
	if full {
		m := mat.DenseCopyOf(b.loss)
		gen := uint64(1)
		if b.system != nil {
			gen = b.system.Generation + 1
		}
		b.system = &LinearSystem{Matrix: m, Generation: gen}
	}
	phi := mat.NewVecDense(2, []float64{prev[0].Value(0, 0), prev[1].Value(0, 0)})
	rhs := mat.NewVecDense(2, nil)
	rhs.MulVec(b.production, phi)
	rhs.ScaleVec(1/k, rhs)
	b.system = &LinearSystem{Matrix: b.system.Matrix, RHS: rhs, Generation: b.system.Generation}
	b.matrices = append(b.matrices, b.system.Matrix)
	return b.system, nil
}

func (b *algebraicBackend) Partition(x []float64) ([]Field, error) {
	if len(x) != 2 {
		return nil, errors.New("wrong length")
	}
	return []Field{ConstantField(x[0]), ConstantField(x[1])}, nil
}

// denseSolver solves with a fresh LU factorization every call.
type denseSolver struct {
	calls  int
	failAt int
	err    error
	nan    bool
}

func (s *denseSolver) Name() string { return "dense" }

func (s *denseSolver) Solve(_ context.Context, sys *LinearSystem) ([]float64, error) {
	s.calls++
	if s.failAt > 0 && s.calls == s.failAt {
		return nil, s.err
	}
	var x mat.VecDense
	if err := x.SolveVec(sys.Matrix, sys.RHS); err != nil {
		return nil, err
	}
	if s.nan {
		return []float64{math.NaN(), 1}, nil
	}
	return x.RawVector().Data, nil
}

func newTestEngine(t *testing.T, backend Backend, solver Solver, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(Setup{
		Backend:      backend,
		Solver:       solver,
		Domain:       lineDomain{tags: []physics.RegionTag{"core", "reflector"}},
		Data:         coreData{},
		ActiveRegion: "core",
	}, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestNewEngine_Invalid(t *testing.T) {
	t.Parallel()

	base := Setup{
		Backend: newAlgebraicBackend(),
		Solver:  &denseSolver{},
		Domain:  lineDomain{tags: []physics.RegionTag{"core"}},
		Data:    coreData{},
	}
	tests := []struct {
		name   string
		mutate func(*Setup)
	}{
		{"nil backend", func(s *Setup) { s.Backend = nil }},
		{"nil solver", func(s *Setup) { s.Solver = nil }},
		{"nil domain", func(s *Setup) { s.Domain = nil }},
		{"nil data", func(s *Setup) { s.Data = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			setup := base
			tt.mutate(&setup)
			if _, err := NewEngine(setup); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("expected ErrInvalidOptions, got %v", err)
			}
		})
	}
}

func TestEngine_Initialize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		guess []Field
		k     float64
		ok    bool
	}{
		{"uniform", UniformGuess(2, 1), 1, true},
		{"zero guess accepted", UniformGuess(2, 0), 1, true},
		{"wrong group count", UniformGuess(3, 1), 1, false},
		{"nil field", []Field{ConstantField(1), nil}, 1, false},
		{"zero k", UniformGuess(2, 1), 0, false},
		{"negative k", UniformGuess(2, 1), -1, false},
		{"infinite k", UniformGuess(2, 1), math.Inf(1), false},
		{"NaN k", UniformGuess(2, 1), math.NaN(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newTestEngine(t, newAlgebraicBackend(), &denseSolver{})
			err := e.Initialize(tt.guess, tt.k)
			if tt.ok {
				if err != nil {
					t.Fatalf("Initialize: %v", err)
				}
				if e.State() != StateReady {
					t.Errorf("state = %s, want ready", e.State())
				}
				return
			}
			if !errors.Is(err, ErrInvalidGuess) {
				t.Errorf("expected ErrInvalidGuess, got %v", err)
			}
			if e.State() != StateUninitialized {
				t.Errorf("state = %s, want uninitialized", e.State())
			}
		})
	}
}

func TestEngine_StepBeforeInitialize(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, newAlgebraicBackend(), &denseSolver{})
	if _, err := e.Step(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if _, err := e.Run(context.Background(), RunOptions{Tolerance: 1e-6}); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized from Run, got %v", err)
	}
}

func TestEngine_RunConverges(t *testing.T) {
	t.Parallel()

	backend := newAlgebraicBackend()
	e := newTestEngine(t, backend, &denseSolver{})
	if err := e.Initialize(UniformGuess(2, 1), 1); err != nil {
		t.Fatal(err)
	}
	res, err := e.Run(context.Background(), RunOptions{Tolerance: 1e-10})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Converged || e.State() != StateConverged {
		t.Errorf("expected converged, state %s", e.State())
	}
	if want := backend.dominant(); math.Abs(res.K-want) > 1e-9 {
		t.Errorf("k = %.12g, want %.12g", res.K, want)
	}
	if len(res.Trace) != res.Iterations || len(res.History) != res.Iterations {
		t.Errorf("trace/history lengths %d/%d for %d iterations", len(res.Trace), len(res.History), res.Iterations)
	}
	if last := res.Trace[len(res.Trace)-1]; last >= 1e-10 {
		t.Errorf("last relative change %g is not below tolerance", last)
	}
	// Geometric convergence: the tail of the trace decreases.
	for i := 2; i < len(res.Trace); i++ {
		if res.Trace[i] > res.Trace[i-1] {
			t.Errorf("relative change increased at iteration %d: %g > %g", i+1, res.Trace[i], res.Trace[i-1])
		}
	}
}

func TestEngine_MatrixReuse(t *testing.T) {
	t.Parallel()

	backend := newAlgebraicBackend()
	e := newTestEngine(t, backend, &denseSolver{})
	if err := e.Initialize(UniformGuess(2, 1), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(context.Background(), RunOptions{Tolerance: 1e-12}); err != nil {
		t.Fatal(err)
	}
	if len(backend.fullCalls) < 3 {
		t.Fatalf("expected several assemblies, got %d", len(backend.fullCalls))
	}
	if !backend.fullCalls[0] {
		t.Error("first assembly must be full")
	}
	for i, full := range backend.fullCalls[1:] {
		if full {
			t.Errorf("assembly %d requested a full rebuild", i+2)
		}
	}
	first := backend.matrices[0]
	snapshot := mat.DenseCopyOf(first)
	for i, m := range backend.matrices {
		if m != first || !mat.Equal(m, snapshot) {
			t.Errorf("matrix of iteration %d differs from the first one", i+1)
		}
	}
	if e.System().Generation != 1 {
		t.Errorf("generation = %d, want 1", e.System().Generation)
	}
}

// namedSolver gives a denseSolver its own metrics label.
type namedSolver struct {
	*denseSolver
	name string
}

func (s namedSolver) Name() string { return s.name }

func TestEngine_DegenerateGuess(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value float64
	}{
		{name: "Zero", value: 0},
		{name: "NaN", value: math.NaN()},
		{name: "PositiveInf", value: math.Inf(1)},
		{name: "NegativeInf", value: math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend := newAlgebraicBackend()
			solver := namedSolver{denseSolver: &denseSolver{}, name: "degenerate-" + tt.name}
			e := newTestEngine(t, backend, solver)
			if err := e.Initialize(UniformGuess(2, tt.value), 1); err != nil {
				t.Fatal(err)
			}
			_, err := e.Step(context.Background())
			var degenerate *DegenerateSourceError
			if !errors.As(err, &degenerate) || !errors.Is(err, ErrDegenerateSource) {
				t.Fatalf("expected DegenerateSourceError, got %v", err)
			}
			if degenerate.Iteration != 1 || degenerate.Region != "core" {
				t.Errorf("unexpected error details %+v", degenerate)
			}
			if e.State() != StateFailed {
				t.Errorf("state = %s, want failed", e.State())
			}
			if len(backend.fullCalls) != 0 {
				t.Error("a degenerate source must be detected before assembly")
			}
			if n := testutil.ToFloat64(iterationsTotal.WithLabelValues(solver.Name())); n != 0 {
				t.Errorf("failed step counted as %g iterations", n)
			}
			if _, err := e.Step(context.Background()); !errors.Is(err, ErrTerminalState) {
				t.Errorf("expected ErrTerminalState, got %v", err)
			}
		})
	}
}

func TestEngine_CountsCommittedIterations(t *testing.T) {
	t.Parallel()

	solver := namedSolver{denseSolver: &denseSolver{failAt: 3, err: errors.New("breakdown")}, name: "counted"}
	e := newTestEngine(t, newAlgebraicBackend(), solver)
	if err := e.Initialize(UniformGuess(2, 1), 1); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		_, _ = e.Step(context.Background())
	}
	if n := testutil.ToFloat64(iterationsTotal.WithLabelValues("counted")); n != 2 {
		t.Errorf("iterations counter = %g, want 2", n)
	}
}

func TestEngine_SolverFailureKeepsLastState(t *testing.T) {
	t.Parallel()

	cause := errors.New("matrix is singular")
	solver := &denseSolver{failAt: 3, err: cause}
	e := newTestEngine(t, newAlgebraicBackend(), solver)
	if err := e.Initialize(UniformGuess(2, 1), 1); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := e.Step(ctx); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
	}
	k, fluxes, conv := e.K(), e.Fluxes(), e.Convergence()

	_, err := e.Step(ctx)
	var failure *SolverFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected SolverFailure, got %v", err)
	}
	if !errors.Is(err, cause) || !errors.Is(err, ErrSolverFailure) {
		t.Errorf("error chain lost its cause: %v", err)
	}
	if failure.Iteration != 3 || failure.Solver != "dense" {
		t.Errorf("unexpected failure details %+v", failure)
	}
	if e.State() != StateFailed {
		t.Errorf("state = %s, want failed", e.State())
	}
	if e.K() != k || e.Convergence() != conv {
		t.Error("failed step mutated the eigenvalue state")
	}
	got := e.Fluxes()
	for g := range fluxes {
		if got[g] != fluxes[g] {
			t.Errorf("failed step replaced flux of group %d", g)
		}
	}
}

func TestEngine_NonFiniteSolution(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, newAlgebraicBackend(), &denseSolver{nan: true})
	if err := e.Initialize(UniformGuess(2, 1), 1); err != nil {
		t.Fatal(err)
	}
	_, err := e.Step(context.Background())
	if !errors.Is(err, ErrSolverFailure) || !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected non-finite SolverFailure, got %v", err)
	}
	if e.K() != 1 {
		t.Errorf("k changed to %g", e.K())
	}
}

func TestEngine_AssemblyFailure(t *testing.T) {
	t.Parallel()

	backend := newAlgebraicBackend()
	backend.failAssemb = errors.New("boom")
	e := newTestEngine(t, backend, &denseSolver{})
	if err := e.Initialize(UniformGuess(2, 1), 1); err != nil {
		t.Fatal(err)
	}
	_, err := e.Run(context.Background(), RunOptions{Tolerance: 1e-6})
	if !errors.Is(err, backend.failAssemb) {
		t.Fatalf("expected assembly error, got %v", err)
	}
	if e.State() != StateFailed {
		t.Errorf("state = %s, want failed", e.State())
	}
}

func TestEngine_NonConvergenceIsResumable(t *testing.T) {
	t.Parallel()

	backend := newAlgebraicBackend()
	e := newTestEngine(t, backend, &denseSolver{})
	if err := e.Initialize(UniformGuess(2, 1), 1); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	res, err := e.Run(ctx, RunOptions{Tolerance: 1e-12, MaxIterations: 2})
	var nc *NonConvergenceError
	if !errors.As(err, &nc) || !errors.Is(err, ErrNonConvergence) {
		t.Fatalf("expected NonConvergenceError, got %v", err)
	}
	if nc.Iterations != 2 || res.Iterations != 2 {
		t.Errorf("iterations = %d/%d, want 2", nc.Iterations, res.Iterations)
	}
	if e.State() != StateIterating {
		t.Errorf("state = %s, want iterating", e.State())
	}

	res, err = e.Run(ctx, RunOptions{Tolerance: 1e-12})
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if res.Iterations <= 2 {
		t.Errorf("resumed run did not continue the count: %d", res.Iterations)
	}
	if math.Abs(res.K-backend.dominant()) > 1e-10 {
		t.Errorf("k = %.12g, want %.12g", res.K, backend.dominant())
	}
	if backend.fullCalls[2] {
		t.Error("resuming must not reassemble the matrix")
	}
}

func TestEngine_RunCanceled(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, newAlgebraicBackend(), &denseSolver{})
	if err := e.Initialize(UniformGuess(2, 1), 1); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Run(ctx, RunOptions{Tolerance: 1e-6})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.Iterations != 0 || e.State() != StateReady {
		t.Errorf("canceled run stepped: iterations %d, state %s", res.Iterations, e.State())
	}
}

func TestEngine_RunInvalidOptions(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, newAlgebraicBackend(), &denseSolver{})
	if err := e.Initialize(UniformGuess(2, 1), 1); err != nil {
		t.Fatal(err)
	}
	for _, opts := range []RunOptions{{Tolerance: 0}, {Tolerance: -1}, {Tolerance: 1e-6, MaxIterations: -1}} {
		if _, err := e.Run(context.Background(), opts); !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("opts %+v: expected ErrInvalidOptions, got %v", opts, err)
		}
	}
}

func TestEngine_ConvergedIsTerminal(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, newAlgebraicBackend(), &denseSolver{})
	if err := e.Initialize(UniformGuess(2, 1), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(context.Background(), RunOptions{Tolerance: 1e-6}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Step(context.Background()); !errors.Is(err, ErrTerminalState) {
		t.Errorf("Step: expected ErrTerminalState, got %v", err)
	}
	if _, err := e.Run(context.Background(), RunOptions{Tolerance: 1e-6}); !errors.Is(err, ErrTerminalState) {
		t.Errorf("Run: expected ErrTerminalState, got %v", err)
	}
	if err := e.Initialize(UniformGuess(2, 1), 1); !errors.Is(err, ErrTerminalState) {
		t.Errorf("Initialize: expected ErrTerminalState, got %v", err)
	}
}

func TestEngine_IdempotentRestart(t *testing.T) {
	t.Parallel()

	solve := func() Result {
		e := newTestEngine(t, newAlgebraicBackend(), &denseSolver{})
		if err := e.Initialize(UniformGuess(2, 0.7), 1.3); err != nil {
			t.Fatal(err)
		}
		res, err := e.Run(context.Background(), RunOptions{Tolerance: 1e-9})
		if err != nil {
			t.Fatal(err)
		}
		return res
	}
	a, b := solve(), solve()
	if a.K != b.K || a.Iterations != b.Iterations {
		t.Errorf("runs differ: k %v vs %v, iterations %d vs %d", a.K, b.K, a.Iterations, b.Iterations)
	}
	for g := range a.Fluxes {
		if a.Fluxes[g].Value(0, 0) != b.Fluxes[g].Value(0, 0) {
			t.Errorf("flux of group %d differs", g)
		}
	}
}

func TestEngine_NotifiesObservers(t *testing.T) {
	t.Parallel()

	observer := newRecordingObserver()
	e := newTestEngine(t, newAlgebraicBackend(), &denseSolver{}, WithObserver(observer), WithIndex(7))
	if err := e.Initialize(UniformGuess(2, 1), 1); err != nil {
		t.Fatal(err)
	}
	res, err := e.Run(context.Background(), RunOptions{Tolerance: 1e-8})
	if err != nil {
		t.Fatal(err)
	}
	states := observer.states[7]
	if len(states) != res.Iterations {
		t.Fatalf("observer saw %d updates for %d iterations", len(states), res.Iterations)
	}
	for i, s := range states {
		if s.Iteration != i+1 || s.K != res.History[i] || s.RelativeChange != res.Trace[i] {
			t.Errorf("update %d = %+v does not match history", i, s)
		}
	}
	if states[0].PreviousK != 1 {
		t.Errorf("first PreviousK = %g, want the seed", states[0].PreviousK)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateUninitialized: "uninitialized",
		StateReady:         "ready",
		StateIterating:     "iterating",
		StateConverged:     "converged",
		StateFailed:        "failed",
		State(42):          "State(42)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
	if StateIterating.Terminal() || !StateFailed.Terminal() || !StateConverged.Terminal() {
		t.Error("Terminal misclassifies states")
	}
}

package linsolve

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agbru/keffcalc/internal/eigen"
)

// Creator builds a fresh solver instance.
type Creator func() eigen.Solver

// Factory is a thread-safe registry of solver creators.
//
// Unlike a cache of shared instances, Create always returns a new solver:
// solvers keep per-system state (factorizations, warm starts) and each
// engine needs its own.
type Factory struct {
	mu       sync.RWMutex
	creators map[string]Creator
}

// NewFactory creates a factory with the standard solvers registered.
//
// Pre-registered solvers:
//   - "lu": direct LU factorization, reused across iterations
//   - "sor": successive over-relaxation with warm start
//
// Returns:
//   - *Factory: A new factory.
func NewFactory() *Factory {
	f := &Factory{creators: make(map[string]Creator)}
	_ = f.Register("lu", func() eigen.Solver { return NewLU() })
	_ = f.Register("sor", func() eigen.Solver { return NewSOR(DefaultSOROptions()) })
	return f
}

// Register adds or replaces a solver type.
//
// Parameters:
//   - name: The unique identifier of the solver.
//   - creator: The constructor, called once per Create.
//
// Returns:
//   - error: If the name is empty or the creator is nil.
func (f *Factory) Register(name string, creator Creator) error {
	if name == "" || creator == nil {
		return fmt.Errorf("linsolve: invalid registration %q", name)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[name] = creator
	return nil
}

// Create returns a new solver instance by name.
func (f *Factory) Create(name string) (eigen.Solver, error) {
	f.mu.RLock()
	creator, ok := f.creators[name]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown solver: %s", name)
	}
	return creator(), nil
}

// MustCreate is like Create but panics for unregistered names.
func (f *Factory) MustCreate(name string) eigen.Solver {
	s, err := f.Create(name)
	if err != nil {
		panic(fmt.Sprintf("linsolve: required solver not found: %s", name))
	}
	return s
}

// List returns the registered names in sorted order.
func (f *Factory) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.creators))
	for name := range f.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a solver is registered under name.
func (f *Factory) Has(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.creators[name]
	return ok
}

var globalFactory = NewFactory()

// GlobalFactory returns the process-wide factory.
func GlobalFactory() *Factory { return globalFactory }

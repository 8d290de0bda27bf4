// Package eigen implements the power-iteration k-eigenvalue solver.
// This file contains the Observer pattern implementation for iteration events.
package eigen

import (
	"math"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// Observer Pattern Interfaces
// ─────────────────────────────────────────────────────────────────────────────

// IterationObserver receives one notification per completed iteration.
type IterationObserver interface {
	// Update is called after each successful step.
	//
	// Parameters:
	//   - solveIndex: The identifier of the solve (for concurrent solves).
	//   - state: The convergence state after the step.
	Update(solveIndex int, state ConvergenceState)
}

// ProgressUpdate is a progress event of one solve, as consumed by the CLI.
type ProgressUpdate struct {
	// SolveIndex identifies the solve.
	SolveIndex int
	// Value is the normalized convergence progress (0.0 to 1.0).
	Value float64
	// Iteration is the iteration count.
	Iteration int
	// K is the current eigenvalue estimate.
	K float64
	// RelativeChange is the last relative change of k.
	RelativeChange float64
}

// ConvergenceProgress maps the relative-change history onto [0, 1] on a
// logarithmic scale between the first recorded change and the tolerance.
//
// Parameters:
//   - first: The relative change of the first iteration.
//   - current: The latest relative change.
//   - tolerance: The convergence tolerance.
//
// Returns:
//   - float64: 1 once current < tolerance; otherwise a value in [0, 0.99].
func ConvergenceProgress(first, current, tolerance float64) float64 {
	if current < tolerance {
		return 1
	}
	if first <= tolerance || current >= first || tolerance <= 0 {
		return 0
	}
	p := math.Log(first/current) / math.Log(first/tolerance)
	return math.Max(0, math.Min(p, 0.99))
}

// ─────────────────────────────────────────────────────────────────────────────
// Iteration Subject (Observable)
// ─────────────────────────────────────────────────────────────────────────────

// IterationSubject manages observer registration and notification.
// It is safe for concurrent use.
type IterationSubject struct {
	observers []IterationObserver
	mu        sync.RWMutex
}

// NewIterationSubject creates an empty subject.
func NewIterationSubject() *IterationSubject {
	return &IterationSubject{observers: make([]IterationObserver, 0)}
}

// Register adds an observer. Nil observers are ignored.
func (s *IterationSubject) Register(observer IterationObserver) {
	if observer == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, observer)
}

// Unregister removes an observer if present.
func (s *IterationSubject) Unregister(observer IterationObserver) {
	if observer == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.observers {
		if o == observer {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Notify forwards a state to all observers in registration order.
func (s *IterationSubject) Notify(solveIndex int, state ConvergenceState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, observer := range s.observers {
		observer.Update(solveIndex, state)
	}
}

// ObserverCount returns the number of registered observers.
func (s *IterationSubject) ObserverCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}

// Package eigen implements the power-iteration k-eigenvalue solver.
// This file contains concrete observer implementations for the Observer pattern.
package eigen

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ─────────────────────────────────────────────────────────────────────────────
// Channel Observer
// ─────────────────────────────────────────────────────────────────────────────

// ChannelObserver converts iteration events into ProgressUpdate values on a
// channel, for the CLI progress display.
type ChannelObserver struct {
	channel   chan<- ProgressUpdate
	tolerance float64
	mu        sync.Mutex
	first     map[int]float64
}

// NewChannelObserver creates an observer that sends updates to ch. Progress
// is measured against tolerance.
//
// Parameters:
//   - ch: The destination channel. If nil, updates are discarded.
//   - tolerance: The convergence tolerance of the observed solves.
//
// Returns:
//   - *ChannelObserver: A new observer that forwards to the channel.
func NewChannelObserver(ch chan<- ProgressUpdate, tolerance float64) *ChannelObserver {
	return &ChannelObserver{channel: ch, tolerance: tolerance, first: make(map[int]float64)}
}

// Update implements IterationObserver. Sends never block; when the channel
// is full the update is dropped and the display catches up on the next one.
func (o *ChannelObserver) Update(solveIndex int, state ConvergenceState) {
	if o.channel == nil {
		return
	}
	o.mu.Lock()
	first, ok := o.first[solveIndex]
	if !ok {
		first = state.RelativeChange
		o.first[solveIndex] = first
	}
	o.mu.Unlock()

	update := ProgressUpdate{
		SolveIndex:     solveIndex,
		Value:          ConvergenceProgress(first, state.RelativeChange, o.tolerance),
		Iteration:      state.Iteration,
		K:              state.K,
		RelativeChange: state.RelativeChange,
	}
	select {
	case o.channel <- update:
	default:
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Logging Observer
// ─────────────────────────────────────────────────────────────────────────────

// LoggingObserver logs iterations with zerolog, one record every `every`
// iterations per solve.
type LoggingObserver struct {
	logger zerolog.Logger
	every  int
}

// NewLoggingObserver creates a throttled logging observer. every <= 0 logs
// every iteration.
func NewLoggingObserver(logger zerolog.Logger, every int) *LoggingObserver {
	if every <= 0 {
		every = 1
	}
	return &LoggingObserver{logger: logger, every: every}
}

// Update implements IterationObserver.
func (o *LoggingObserver) Update(solveIndex int, state ConvergenceState) {
	if state.Iteration%o.every != 0 && state.Iteration != 1 {
		return
	}
	o.logger.Debug().
		Int("solve", solveIndex).
		Int("iteration", state.Iteration).
		Float64("k", state.K).
		Float64("rel_change", state.RelativeChange).
		Msg("power iteration")
}

// ─────────────────────────────────────────────────────────────────────────────
// Metrics Observer (Prometheus)
// ─────────────────────────────────────────────────────────────────────────────

var (
	keffGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "keffcalc_eigenvalue",
			Help: "Latest eigenvalue estimate per problem",
		},
		[]string{"problem"},
	)
	relativeChangeGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "keffcalc_relative_change",
			Help: "Latest relative change of the eigenvalue per problem",
		},
		[]string{"problem"},
	)
)

// MetricsObserver exports the eigenvalue and its relative change as
// Prometheus gauges labeled with a problem name. Concurrent solves of the
// same problem share the series; the last update wins. The series is
// created on the first update, so solves rejected before iterating leave
// no trace.
type MetricsObserver struct {
	problem string
}

// NewMetricsObserver creates an observer backed by the package gauges.
// problem should come from a bounded set of names.
func NewMetricsObserver(problem string) *MetricsObserver {
	return &MetricsObserver{problem: problem}
}

// Update implements IterationObserver.
func (o *MetricsObserver) Update(_ int, state ConvergenceState) {
	keffGauge.WithLabelValues(o.problem).Set(state.K)
	relativeChangeGauge.WithLabelValues(o.problem).Set(state.RelativeChange)
}

// ResetMetrics clears the gauges of every problem.
func ResetMetrics() {
	keffGauge.Reset()
	relativeChangeGauge.Reset()
}

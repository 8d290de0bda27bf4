package eigen

import (
	"bytes"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

// recordingObserver keeps every update it receives, per solve index.
type recordingObserver struct {
	mu     sync.Mutex
	states map[int][]ConvergenceState
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{states: make(map[int][]ConvergenceState)}
}

func (o *recordingObserver) Update(solveIndex int, state ConvergenceState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states[solveIndex] = append(o.states[solveIndex], state)
}

// ─────────────────────────────────────────────────────────────────────────────
// IterationSubject Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestIterationSubject_RegisterUnregister(t *testing.T) {
	t.Parallel()

	subject := NewIterationSubject()
	subject.Register(nil)
	if subject.ObserverCount() != 0 {
		t.Fatalf("registering nil should not add observer, got %d", subject.ObserverCount())
	}

	// Pointer observers with state, so Unregister can tell them apart.
	a, b := newRecordingObserver(), newRecordingObserver()
	subject.Register(a)
	subject.Register(b)
	if subject.ObserverCount() != 2 {
		t.Fatalf("expected 2 observers, got %d", subject.ObserverCount())
	}

	subject.Unregister(nil)
	subject.Unregister(a)
	if subject.ObserverCount() != 1 {
		t.Fatalf("expected 1 observer, got %d", subject.ObserverCount())
	}

	subject.Notify(3, ConvergenceState{Iteration: 1, K: 1.1})
	if len(a.states[3]) != 0 {
		t.Error("unregistered observer was notified")
	}
	if len(b.states[3]) != 1 || b.states[3][0].K != 1.1 {
		t.Errorf("registered observer got %+v", b.states[3])
	}
}

func TestIterationSubject_ConcurrentNotify(t *testing.T) {
	t.Parallel()

	subject := NewIterationSubject()
	observer := newRecordingObserver()
	subject.Register(observer)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			for it := 1; it <= 50; it++ {
				subject.Notify(index, ConvergenceState{Iteration: it})
			}
		}(i)
	}
	wg.Wait()
	for i := 0; i < 8; i++ {
		if len(observer.states[i]) != 50 {
			t.Errorf("solve %d: %d updates, want 50", i, len(observer.states[i]))
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestConvergenceProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                      string
		first, current, tolerance float64
		want                      float64
	}{
		{"converged", 1e-1, 1e-7, 1e-6, 1},
		{"start", 1e-1, 1e-1, 1e-6, 0},
		{"halfway on log scale", 1e-1, math.Pow(10, -3.5), 1e-6, 0.5},
		{"diverging", 1e-2, 1e-1, 1e-6, 0},
		{"first already below tolerance", 1e-7, 1e-6, 1e-6, 0},
		{"clamped below one", 1e-1, 1.0000001e-6, 1e-6, 0.99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ConvergenceProgress(tt.first, tt.current, tt.tolerance)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ConvergenceProgress(%g, %g, %g) = %g, want %g",
					tt.first, tt.current, tt.tolerance, got, tt.want)
			}
		})
	}
}

func TestChannelObserver(t *testing.T) {
	t.Parallel()

	ch := make(chan ProgressUpdate, 4)
	observer := NewChannelObserver(ch, 1e-6)
	observer.Update(2, ConvergenceState{Iteration: 1, K: 1.2, RelativeChange: 1e-1})
	observer.Update(2, ConvergenceState{Iteration: 2, K: 1.3, RelativeChange: 1e-7})

	first := <-ch
	if first.SolveIndex != 2 || first.Value != 0 || first.Iteration != 1 || first.K != 1.2 {
		t.Errorf("unexpected first update %+v", first)
	}
	last := <-ch
	if last.Value != 1 || last.RelativeChange != 1e-7 {
		t.Errorf("unexpected last update %+v", last)
	}
}

func TestChannelObserver_NeverBlocks(t *testing.T) {
	t.Parallel()

	ch := make(chan ProgressUpdate, 1)
	observer := NewChannelObserver(ch, 1e-6)
	for i := 1; i <= 10; i++ {
		observer.Update(0, ConvergenceState{Iteration: i, RelativeChange: 1})
	}
	if len(ch) != 1 {
		t.Errorf("channel holds %d updates, want 1", len(ch))
	}

	// A nil channel discards updates.
	NewChannelObserver(nil, 1e-6).Update(0, ConvergenceState{Iteration: 1})
}

func TestLoggingObserver_Throttles(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	observer := NewLoggingObserver(logger, 5)
	for i := 1; i <= 10; i++ {
		observer.Update(0, ConvergenceState{Iteration: i, K: 1})
	}
	// Iterations 1, 5 and 10.
	if n := strings.Count(buf.String(), "power iteration"); n != 3 {
		t.Errorf("logged %d records, want 3:\n%s", n, buf.String())
	}
}

func TestMetricsObserver(t *testing.T) {
	ResetMetrics()
	t.Cleanup(ResetMetrics)

	slab := NewMetricsObserver("bare-slab")
	sphere := NewMetricsObserver("bare-sphere")
	NewMetricsObserver("never-updated")
	if n := testutil.CollectAndCount(keffGauge); n != 0 {
		t.Errorf("observers created %d series before any update", n)
	}
	slab.Update(0, ConvergenceState{K: 1.25, RelativeChange: 0.5})
	sphere.Update(0, ConvergenceState{K: 0.9, RelativeChange: 0.1})
	slab.Update(3, ConvergenceState{K: 1.2, RelativeChange: 0.25})

	if got := testutil.ToFloat64(keffGauge.WithLabelValues("bare-slab")); got != 1.2 {
		t.Errorf("eigenvalue gauge = %g, want 1.2", got)
	}
	if got := testutil.ToFloat64(relativeChangeGauge.WithLabelValues("bare-slab")); got != 0.25 {
		t.Errorf("relative change gauge = %g, want 0.25", got)
	}
	if got := testutil.ToFloat64(keffGauge.WithLabelValues("bare-sphere")); got != 0.9 {
		t.Errorf("sphere eigenvalue gauge = %g, want 0.9", got)
	}
	ResetMetrics()
	if n := testutil.CollectAndCount(keffGauge); n != 0 {
		t.Errorf("ResetMetrics left %d series", n)
	}
}

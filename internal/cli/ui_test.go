package cli

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/briandowns/spinner"

	"github.com/agbru/keffcalc/internal/eigen"
	"github.com/agbru/keffcalc/internal/testutil"
	"github.com/agbru/keffcalc/internal/ui"
	"github.com/agbru/keffcalc/pkg/models"
)

type MockSpinner struct {
	mu      sync.Mutex
	started bool
	stopped bool
	suffix  string
}

func (m *MockSpinner) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
}

func (m *MockSpinner) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *MockSpinner) UpdateSuffix(suffix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suffix = suffix
}

func sampleReport() *models.SolveReport {
	return &models.SolveReport{
		Problem:        "bare-slab",
		Solver:         "lu",
		Status:         models.StatusConverged,
		K:              1.0125,
		Iterations:     4,
		RelativeChange: 2e-6,
		Tolerance:      1e-5,
		Groups:         1,
		Elements:       20,
		Degrees:        41,
		ReferenceK:     1.0124,
		ReferenceError: 9.9e-5,
		Trace:          []float64{1e-1, 1e-2, 1e-4, 2e-6},
		History:        []float64{1.1, 1.02, 1.0126, 1.0125},
		Profiles: []models.GroupProfile{
			{Group: 0, X: []float64{0, 0.5, 1}, Flux: []float64{0.1, 1, 0.1}},
		},
		Duration: 3 * time.Millisecond,
	}
}

func TestFormatExecutionDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "< 1µs"},
		{500 * time.Nanosecond, "0µs"},
		{10 * time.Microsecond, "10µs"},
		{10 * time.Millisecond, "10ms"},
		{2 * time.Second, "2s"},
	}

	for _, tt := range tests {
		if got := FormatExecutionDuration(tt.d); got != tt.expected {
			t.Errorf("FormatExecutionDuration(%v) = %s; want %s", tt.d, got, tt.expected)
		}
	}
}

func TestProgressBar(t *testing.T) {
	t.Parallel()
	tests := []struct {
		progress float64
		length   int
		want     string
	}{
		{0.0, 10, "░░░░░░░░░░"},
		{0.5, 10, "█████░░░░░"},
		{1.0, 10, "██████████"},
		{1.2, 10, "██████████"},
		{-0.1, 10, "░░░░░░░░░░"},
	}

	for _, tt := range tests {
		if got := progressBar(tt.progress, tt.length); got != tt.want {
			t.Errorf("progressBar(%f, %d) = %s; want %s", tt.progress, tt.length, got, tt.want)
		}
	}
}

func TestProgressState(t *testing.T) {
	t.Parallel()

	ps := NewProgressState(2)
	ps.Update(0, 0.5)
	ps.Update(5, 1) // ignored
	ps.Record(eigen.ProgressUpdate{SolveIndex: 1, Value: 0.25, Iteration: 3, K: 1.2})
	if got := ps.CalculateAverage(); got != 0.375 {
		t.Errorf("CalculateAverage() = %g, want 0.375", got)
	}
	if u := ps.Latest(1); u.Iteration != 3 || u.K != 1.2 {
		t.Errorf("Latest(1) = %+v", u)
	}
	if u := ps.Latest(-1); u.Iteration != 0 {
		t.Errorf("Latest(-1) = %+v", u)
	}
	if got := NewProgressState(0).CalculateAverage(); got != 0 {
		t.Errorf("empty average = %g", got)
	}
}

func TestReactivity(t *testing.T) {
	t.Parallel()
	if got := Reactivity(1); got != 0 {
		t.Errorf("Reactivity(1) = %g", got)
	}
	if got := Reactivity(2); got != 0.5 {
		t.Errorf("Reactivity(2) = %g", got)
	}
}

func TestDisplayResult(t *testing.T) {
	ui.InitTheme(true)
	defer ui.InitTheme(false)

	tests := []struct {
		name     string
		verbose  bool
		details  bool
		contains []string
		excludes []string
	}{
		{
			name:     "Summary",
			contains: []string{"Multiplication factor k : 1.01250000", "Iterations              : 4", "Reference k", "Reactivity"},
			excludes: []string{"Run details", "Group 0 flux"},
		},
		{
			name:     "Details",
			details:  true,
			contains: []string{"Run details", "Solve time              : 3ms", "1 groups, 20 elements, 41 unknowns", "Iteration   k"},
		},
		{
			name:     "Verbose",
			verbose:  true,
			contains: []string{"--- Group 0 flux ---", "▇▇▇▇▇▇▇▇▇▇"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			DisplayResult(sampleReport(), tt.verbose, tt.details, &buf)
			output := testutil.StripAnsiCodes(buf.String())
			for _, s := range tt.contains {
				if !strings.Contains(output, s) {
					t.Errorf("expected output to contain %q, got:\n%s", s, output)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(output, s) {
					t.Errorf("output should not contain %q", s)
				}
			}
		})
	}
}

func TestDisplayResult_LongTraceIsElided(t *testing.T) {
	ui.InitTheme(true)
	defer ui.InitTheme(false)

	report := sampleReport()
	report.Trace = make([]float64, 40)
	report.History = make([]float64, 40)
	for i := range report.Trace {
		report.Trace[i] = 1 / float64(i+1)
		report.History[i] = 1
	}
	var buf bytes.Buffer
	DisplayResult(report, false, true, &buf)
	output := buf.String()
	if !strings.Contains(output, "(28 iterations)") {
		t.Errorf("expected elision marker, got:\n%s", output)
	}
	if !strings.Contains(output, "       40   ") {
		t.Errorf("last iteration missing:\n%s", output)
	}
}

func TestRealSpinner(t *testing.T) {
	t.Parallel()
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(io.Discard))
	rs := &realSpinner{s}
	rs.Start()
	rs.UpdateSuffix(" test")
	rs.Stop()
}

func TestColors(t *testing.T) {
	ui.InitTheme(false)
	for _, fn := range []func() string{ColorReset, ColorRed, ColorGreen, ColorYellow, ColorBlue, ColorMagenta, ColorCyan, ColorBold, ColorUnderline} {
		_ = fn()
	}
	ui.InitTheme(true)
	defer ui.InitTheme(false)
	if ColorUnderline() != "" || ColorRed() != "" {
		t.Error("no-color theme should not emit escape codes")
	}
}

func TestDisplayProgress(t *testing.T) {
	originalNewSpinner := newSpinner
	defer func() { newSpinner = originalNewSpinner }()

	mockS := &MockSpinner{}
	newSpinner = func(options ...spinner.Option) Spinner {
		return mockS
	}

	var wg sync.WaitGroup
	wg.Add(1)
	progressChan := make(chan eigen.ProgressUpdate)
	var out bytes.Buffer

	go func() {
		progressChan <- eigen.ProgressUpdate{SolveIndex: 0, Value: 0.5, Iteration: 2, K: 1.1}
		time.Sleep(2 * ProgressRefreshRate)
		progressChan <- eigen.ProgressUpdate{SolveIndex: 0, Value: 1, Iteration: 5, K: 1.01}
		close(progressChan)
	}()

	DisplayProgress(&wg, progressChan, 1, &out)
	wg.Wait()

	mockS.mu.Lock()
	defer mockS.mu.Unlock()
	if !mockS.started || !mockS.stopped {
		t.Error("spinner should have started and stopped")
	}
	if !strings.Contains(mockS.suffix, " k=1.") {
		t.Errorf("suffix = %q", mockS.suffix)
	}
	if !strings.Contains(out.String(), "100.00%") {
		t.Errorf("final line = %q", out.String())
	}
}

func TestDisplayProgress_ZeroSolves(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	progressChan := make(chan eigen.ProgressUpdate, 1)
	progressChan <- eigen.ProgressUpdate{}
	close(progressChan)

	DisplayProgress(&wg, progressChan, 0, io.Discard)
	wg.Wait()
}

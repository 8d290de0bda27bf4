// Package cli renders the terminal side of keffcalc: the execution banner,
// the convergence progress display of concurrent solves and the final
// eigenvalue report.
package cli

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/agbru/keffcalc/internal/eigen"
	"github.com/agbru/keffcalc/internal/ui"
	"github.com/agbru/keffcalc/pkg/models"
)

const (
	// ProgressRefreshRate is the refresh period of the progress line.
	ProgressRefreshRate = 200 * time.Millisecond
	// ProgressBarWidth is the width in characters of the progress bar.
	ProgressBarWidth = 40
	// ProfileBarWidth is the width of a full-scale flux bar.
	ProfileBarWidth = 50
	// TraceRows is the number of trace rows printed before eliding.
	TraceRows = 12
)

// FormatExecutionDuration shows microseconds below a millisecond,
// milliseconds below a second, and the default representation otherwise.
func FormatExecutionDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "< 1µs"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

// Color functions delegate to the current ui theme.

func ColorReset() string     { return ui.ColorReset() }
func ColorRed() string       { return ui.ColorRed() }
func ColorGreen() string     { return ui.ColorGreen() }
func ColorYellow() string    { return ui.ColorYellow() }
func ColorBlue() string      { return ui.ColorBlue() }
func ColorMagenta() string   { return ui.ColorMagenta() }
func ColorCyan() string      { return ui.ColorCyan() }
func ColorBold() string      { return ui.ColorBold() }
func ColorUnderline() string { return ui.GetCurrentTheme().Underline }

// Spinner abstracts the terminal spinner so that DisplayProgress can be
// tested without a terminal.
type Spinner interface {
	Start()
	Stop()
	UpdateSuffix(suffix string)
}

type realSpinner struct {
	s *spinner.Spinner
}

func (rs *realSpinner) Start()                     { rs.s.Start() }
func (rs *realSpinner) Stop()                      { rs.s.Stop() }
func (rs *realSpinner) UpdateSuffix(suffix string) { rs.s.Suffix = suffix }

var newSpinner = func(options ...spinner.Option) Spinner {
	s := spinner.New(spinner.CharSets[11], ProgressRefreshRate, options...)
	return &realSpinner{s}
}

// ProgressState tracks the convergence progress of concurrent solves.
type ProgressState struct {
	progresses []float64
	latest     []eigen.ProgressUpdate
	numSolves  int
}

// NewProgressState creates a tracker for numSolves solves.
func NewProgressState(numSolves int) *ProgressState {
	return &ProgressState{
		progresses: make([]float64, numSolves),
		latest:     make([]eigen.ProgressUpdate, numSolves),
		numSolves:  numSolves,
	}
}

// Update records the progress of one solve. Out-of-range indices are
// ignored.
func (ps *ProgressState) Update(index int, value float64) {
	if index >= 0 && index < len(ps.progresses) {
		ps.progresses[index] = value
	}
}

// Record stores a full update, including the eigenvalue estimate.
func (ps *ProgressState) Record(update eigen.ProgressUpdate) {
	if update.SolveIndex >= 0 && update.SolveIndex < len(ps.latest) {
		ps.latest[update.SolveIndex] = update
	}
	ps.Update(update.SolveIndex, update.Value)
}

// Latest returns the last update of solve index.
func (ps *ProgressState) Latest(index int) eigen.ProgressUpdate {
	if index < 0 || index >= len(ps.latest) {
		return eigen.ProgressUpdate{}
	}
	return ps.latest[index]
}

// CalculateAverage returns the mean progress over all solves.
func (ps *ProgressState) CalculateAverage() float64 {
	if ps.numSolves == 0 {
		return 0
	}
	var total float64
	for _, p := range ps.progresses {
		total += p
	}
	return total / float64(ps.numSolves)
}

func progressBar(progress float64, length int) string {
	progress = math.Max(0, math.Min(progress, 1))
	count := int(progress * float64(length))
	var builder strings.Builder
	builder.Grow(length * 3)
	for i := 0; i < length; i++ {
		if i < count {
			builder.WriteRune('█')
		} else {
			builder.WriteRune('░')
		}
	}
	return builder.String()
}

// progressSuffix formats the spinner line. With a single solve it also
// shows the current eigenvalue estimate.
func progressSuffix(state *ProgressWithETA, numSolves int) string {
	avg := state.CalculateAverage()
	label := "Progress"
	if numSolves > 1 {
		label = "Avg progress"
	}
	line := fmt.Sprintf(" %s: %6.2f%% [%s] ETA: %s", label, avg*100, progressBar(avg, ProgressBarWidth), FormatETA(state.GetETA()))
	if numSolves == 1 {
		if u := state.Latest(0); u.Iteration > 0 {
			line += fmt.Sprintf("  it %d k=%.6f", u.Iteration, u.K)
		}
	}
	return line
}

// DisplayProgress renders a spinner with the aggregated convergence
// progress until progressChan is closed. It runs in its own goroutine and
// calls wg.Done on return.
//
// Parameters:
//   - wg: Signaled when the display routine is complete.
//   - progressChan: The channel receiving progress updates.
//   - numSolves: The number of solves contributing to the progress.
//   - out: The io.Writer to which the progress line is rendered.
func DisplayProgress(wg *sync.WaitGroup, progressChan <-chan eigen.ProgressUpdate, numSolves int, out io.Writer) {
	defer wg.Done()
	if numSolves <= 0 {
		for range progressChan {
		}
		return
	}

	state := NewProgressWithETA(numSolves)
	s := newSpinner(spinner.WithWriter(out))
	s.Start()
	spinnerStopped := false
	defer func() {
		if !spinnerStopped {
			s.Stop()
		}
	}()

	ticker := time.NewTicker(ProgressRefreshRate)
	defer ticker.Stop()

	for {
		select {
		case update, ok := <-progressChan:
			if !ok {
				s.Stop()
				spinnerStopped = true
				label := "Progress"
				if numSolves > 1 {
					label = "Avg progress"
				}
				fmt.Fprintf(out, "%s: %6.2f%% [%s]\n", label, state.CalculateAverage()*100, progressBar(state.CalculateAverage(), ProgressBarWidth))
				return
			}
			state.RecordWithETA(update)
		case <-ticker.C:
			s.UpdateSuffix(progressSuffix(state, numSolves))
		}
	}
}

// DisplayResult prints an eigenvalue report.
//
// Parameters:
//   - report: The report to print.
//   - verbose: Print the flux profile of each group.
//   - details: Print run metadata and the relative-change trace.
//   - out: The io.Writer for the output.
func DisplayResult(report *models.SolveReport, verbose, details bool, out io.Writer) {
	fmt.Fprintf(out, "\n%s--- Result ---%s\n", ColorBold(), ColorReset())
	fmt.Fprintf(out, "Multiplication factor k : %s%.8f%s\n", ColorGreen(), report.K, ColorReset())
	fmt.Fprintf(out, "Iterations              : %s%d%s (relative change %s%.3g%s, tolerance %g)\n",
		ColorCyan(), report.Iterations, ColorReset(),
		ui.ConvergenceColor(report.RelativeChange, report.Tolerance), report.RelativeChange, ColorReset(), report.Tolerance)
	if report.ReferenceK > 0 {
		fmt.Fprintf(out, "Reference k             : %s%.8f%s (relative error %s%+.2e%s)\n",
			ColorCyan(), report.ReferenceK, ColorReset(), ColorYellow(), report.ReferenceError, ColorReset())
	}
	fmt.Fprintf(out, "Reactivity              : %s%+.1f pcm%s\n", ColorMagenta(), Reactivity(report.K)*1e5, ColorReset())

	if details {
		fmt.Fprintf(out, "\n%s--- Run details ---%s\n", ColorBold(), ColorReset())
		fmt.Fprintf(out, "Solve time              : %s%s%s\n", ColorGreen(), FormatExecutionDuration(report.Duration), ColorReset())
		fmt.Fprintf(out, "Linear solver           : %s\n", report.Solver)
		fmt.Fprintf(out, "Discretization          : %d groups, %d elements, %d unknowns\n", report.Groups, report.Elements, report.Degrees)
		if len(report.Trace) > 0 {
			displayTrace(report, out)
		}
	}
	if verbose && len(report.Profiles) > 0 {
		displayProfiles(report.Profiles, out)
	}
}

// Reactivity returns (k−1)/k.
func Reactivity(k float64) float64 {
	if k == 0 {
		return math.Inf(-1)
	}
	return (k - 1) / k
}

func displayTrace(report *models.SolveReport, out io.Writer) {
	fmt.Fprintf(out, "\n%sIteration   k             rel. change%s\n", ColorUnderline(), ColorReset())
	n := len(report.Trace)
	for i := 0; i < n; i++ {
		if n > TraceRows && i == TraceRows/2 {
			fmt.Fprintf(out, "   ...      (%d iterations)\n", n-TraceRows)
			i = n - TraceRows/2
		}
		k := math.NaN()
		if i < len(report.History) {
			k = report.History[i]
		}
		fmt.Fprintf(out, "%9d   %.10f  %s%.3e%s\n", i+1, k,
			ui.ConvergenceColor(report.Trace[i], report.Tolerance), report.Trace[i], ColorReset())
	}
}

func displayProfiles(profiles []models.GroupProfile, out io.Writer) {
	for _, p := range profiles {
		fmt.Fprintf(out, "\n%s--- Group %d flux ---%s\n", ColorBold(), p.Group, ColorReset())
		for i := range p.X {
			width := int(math.Round(math.Max(0, p.Flux[i]) * ProfileBarWidth))
			fmt.Fprintf(out, "%9.3f  %.4f  %s%s%s\n", p.X[i], p.Flux[i], ColorBlue(), strings.Repeat("▇", width), ColorReset())
		}
	}
}

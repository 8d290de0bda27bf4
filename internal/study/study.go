// Package study runs mesh-refinement studies: the same problem solved at
// several uniform refinement levels, with the observed convergence order
// of the eigenvalue and its Richardson extrapolation.
package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agbru/keffcalc/internal/cli"
	"github.com/agbru/keffcalc/internal/eigen"
	apperrors "github.com/agbru/keffcalc/internal/errors"
	"github.com/agbru/keffcalc/internal/service"
	"github.com/agbru/keffcalc/pkg/models"
)

// ErrNoLevels is returned when a study has no refinement level.
var ErrNoLevels = errors.New("study: no refinement levels")

// Level is the outcome of one refinement level.
type Level struct {
	Refinements int                 `json:"refinements"`
	Report      *models.SolveReport `json:"report,omitempty"`
	Duration    time.Duration       `json:"duration_ns"`
	Error       string              `json:"error,omitempty"`
	err         error
}

// Err returns the solve error of the level, if any.
func (l Level) Err() error { return l.err }

// Report summarizes a study. Order and Extrapolated are zero unless three
// consecutive levels converged.
type Report struct {
	Problem string  `json:"problem"`
	Levels  []Level `json:"levels"`
	// Order is the observed convergence order of k, per mesh halving.
	Order float64 `json:"order,omitempty"`
	// Extrapolated is the Richardson extrapolation of k to zero mesh size.
	Extrapolated float64       `json:"extrapolated_k,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// Options configures a study run.
type Options struct {
	// OutputPath saves the report as JSON when not empty.
	OutputPath string
	// Parallel bounds the number of levels solved at once; 0 solves all
	// levels concurrently.
	Parallel int
}

// Run solves base once per refinement level, concurrently, and prints a
// summary table.
//
// Parameters:
//   - ctx: The context for managing cancellation and deadlines.
//   - svc: The solve service.
//   - base: The request shared by every level; Refinements is replaced.
//   - levels: The extra refinement levels, in increasing order.
//   - opts: Output and concurrency options.
//   - out: The io.Writer for progress and results.
//
// Returns:
//   - *Report: The study report, nil when no level could be run.
//   - int: The exit code (0 for success, non-zero for errors).
func Run(ctx context.Context, svc service.Service, base service.Request, levels []int, opts Options, out io.Writer) (*Report, int) {
	if len(levels) == 0 {
		fmt.Fprintf(out, "%sStudy error: %v%s\n", cli.ColorRed(), ErrNoLevels, cli.ColorReset())
		return nil, apperrors.ExitErrorConfig
	}
	levels = append([]int(nil), levels...)
	sort.Ints(levels)

	name := base.Problem
	if base.Definition != nil {
		name = base.Definition.Name
	}
	fmt.Fprintf(out, "--- Refinement Study: %s%s%s at levels %s ---\n",
		cli.ColorMagenta(), name, cli.ColorReset(), joinInts(levels))

	tol := base.Tolerance
	if tol <= 0 {
		tol = eigen.DefaultTolerance
	}
	progressChan := make(chan eigen.ProgressUpdate, len(levels)*5)
	observer := eigen.NewChannelObserver(progressChan, tol)
	var wg sync.WaitGroup
	wg.Add(1)
	go cli.DisplayProgress(&wg, progressChan, len(levels), out)

	start := time.Now()
	results := make([]Level, len(levels))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Parallel > 0 {
		g.SetLimit(opts.Parallel)
	}
	for i, refine := range levels {
		g.Go(func() error {
			req := base
			req.Refinements = refine
			req.Index = i
			req.Observers = append(append([]eigen.IterationObserver(nil), base.Observers...), observer)

			t0 := time.Now()
			rep, err := svc.Solve(gctx, req)
			results[i] = Level{Refinements: refine, Report: rep, Duration: time.Since(t0), err: err}
			if err != nil {
				results[i].Error = err.Error()
				if apperrors.IsContextError(err) {
					return err
				}
			}
			return nil
		})
	}
	waitErr := g.Wait()
	close(progressChan)
	wg.Wait()

	report := &Report{Problem: name, Levels: results, Duration: time.Since(start)}
	if waitErr != nil {
		fmt.Fprintf(out, "\n%sStudy interrupted.%s\n", cli.ColorYellow(), cli.ColorReset())
		return report, apperrors.HandleSolveError(waitErr, report.Duration, out, cli.CLIColorProvider{})
	}

	report.Order, report.Extrapolated = Richardson(results)
	printStudyResults(out, report)

	if opts.OutputPath != "" {
		if err := report.Save(opts.OutputPath); err != nil {
			fmt.Fprintf(out, "%sWarning: could not save study: %v%s\n", cli.ColorYellow(), err, cli.ColorReset())
		} else {
			fmt.Fprintf(out, "%sStudy saved to %s%s\n", cli.ColorGreen(), opts.OutputPath, cli.ColorReset())
		}
	}

	var firstErr error
	converged := 0
	for _, l := range results {
		if l.err == nil {
			converged++
		} else if firstErr == nil {
			firstErr = l.err
		}
	}
	if converged == 0 {
		fmt.Fprintf(out, "\n%sStudy failed: no level converged.%s\n", cli.ColorRed(), cli.ColorReset())
		return report, apperrors.HandleSolveError(firstErr, 0, out, cli.CLIColorProvider{})
	}
	return report, apperrors.ExitSuccess
}

// Richardson estimates the convergence order of k from the last three
// consecutive converged levels, and the extrapolated eigenvalue. Each
// refinement level halves the mesh size. Both results are 0 when no such
// triple exists or the differences do not decrease.
func Richardson(levels []Level) (order, extrapolated float64) {
	for i := len(levels) - 1; i >= 2; i-- {
		a, b, c := levels[i-2], levels[i-1], levels[i]
		if a.err != nil || b.err != nil || c.err != nil || a.Report == nil || b.Report == nil || c.Report == nil {
			continue
		}
		if b.Refinements != a.Refinements+1 || c.Refinements != b.Refinements+1 {
			continue
		}
		d1 := b.Report.K - a.Report.K
		d2 := c.Report.K - b.Report.K
		if d2 == 0 || math.Abs(d2) >= math.Abs(d1) {
			return 0, 0
		}
		order = math.Log2(math.Abs(d1 / d2))
		extrapolated = c.Report.K + d2/(math.Pow(2, order)-1)
		return order, extrapolated
	}
	return 0, 0
}

func printStudyResults(out io.Writer, report *Report) {
	fmt.Fprintf(out, "\n--- Study Summary ---\n")
	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "  Level\tElements\tUnknowns\tk\tΔk\tRef. error\tTime\n")
	fmt.Fprintf(tw, "  %s\n", strings.Repeat("─", 72))
	prev := math.NaN()
	for _, l := range report.Levels {
		if l.err != nil || l.Report == nil {
			fmt.Fprintf(tw, "  %d\t-\t-\t%sfailed%s\t-\t-\t%s\n", l.Refinements, cli.ColorRed(), cli.ColorReset(), cli.FormatExecutionDuration(l.Duration))
			prev = math.NaN()
			continue
		}
		r := l.Report
		delta, refErr := "-", "-"
		if !math.IsNaN(prev) {
			delta = fmt.Sprintf("%+.3e", r.K-prev)
		}
		if r.ReferenceK > 0 {
			refErr = fmt.Sprintf("%+.3e", r.ReferenceError)
		}
		fmt.Fprintf(tw, "  %s%d%s\t%d\t%d\t%s%.10f%s\t%s\t%s\t%s\n",
			cli.ColorCyan(), l.Refinements, cli.ColorReset(), r.Elements, r.Degrees,
			cli.ColorGreen(), r.K, cli.ColorReset(), delta, refErr, cli.FormatExecutionDuration(l.Duration))
		prev = r.K
	}
	_ = tw.Flush()

	if report.Order > 0 {
		fmt.Fprintf(out, "\nObserved order: %s%.2f%s, extrapolated k: %s%.10f%s\n",
			cli.ColorYellow(), report.Order, cli.ColorReset(), cli.ColorGreen(), report.Extrapolated, cli.ColorReset())
	}
}

// Save writes the report as indented JSON, creating parent directories.
func (r *Report) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal study: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write study: %w", err)
	}
	return nil
}

// Load reads a report saved by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse study: %w", err)
	}
	return &r, nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

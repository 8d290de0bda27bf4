// Package orchestration runs one solve per selected linear solver
// concurrently and compares their eigenvalues.
package orchestration

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agbru/keffcalc/internal/cli"
	"github.com/agbru/keffcalc/internal/config"
	"github.com/agbru/keffcalc/internal/eigen"
	apperrors "github.com/agbru/keffcalc/internal/errors"
	"github.com/agbru/keffcalc/internal/problem"
	"github.com/agbru/keffcalc/internal/service"
	"github.com/agbru/keffcalc/internal/ui"
	"github.com/agbru/keffcalc/pkg/models"
)

// SolveResult is the outcome of one solve of a comparison.
type SolveResult struct {
	// Solver is the linear solver name.
	Solver string
	// Report is the solve report. It may be set alongside Err when the
	// iteration stopped without converging.
	Report   *models.SolveReport
	Duration time.Duration
	Err      error
}

// ProgressBufferMultiplier defines the buffer size multiplier for the
// progress channel, per solve.
const ProgressBufferMultiplier = 5

// MismatchFactor scales the tolerance into the largest relative k
// difference accepted between two converged solves.
const MismatchFactor = 100

// RequestFromConfig builds the base request of a command-line run. def is
// the loaded deck, or nil to solve cfg.Problem from the catalog.
func RequestFromConfig(cfg config.AppConfig, def *problem.Definition) service.Request {
	flux := cfg.InitialFlux
	return service.Request{
		Problem:       cfg.Problem,
		Definition:    def,
		Solver:        cfg.Solver,
		Tolerance:     cfg.Tolerance,
		MaxIterations: cfg.MaxIterations,
		InitialK:      cfg.InitialK,
		InitialFlux:   &flux,
		Refinements:   cfg.Refine,
		ProfilePoints: cfg.Profile,
		Details:       cfg.Details,
	}
}

// ExecuteSolves solves the same problem with each linear solver
// concurrently while displaying their combined convergence progress.
//
// Parameters:
//   - ctx: The context for managing cancellation and deadlines.
//   - svc: The solve service.
//   - base: The request shared by every solve; Solver and Index are set per solve.
//   - solvers: The linear solver names.
//   - out: The io.Writer for displaying progress updates.
//
// Returns:
//   - []SolveResult: One result per solver, in the order of solvers.
func ExecuteSolves(ctx context.Context, svc service.Service, base service.Request, solvers []string, out io.Writer) []SolveResult {
	g, ctx := errgroup.WithContext(ctx)
	results := make([]SolveResult, len(solvers))
	progressChan := make(chan eigen.ProgressUpdate, len(solvers)*ProgressBufferMultiplier)

	tol := base.Tolerance
	if tol <= 0 {
		tol = eigen.DefaultTolerance
	}
	observer := eigen.NewChannelObserver(progressChan, tol)

	var displayWg sync.WaitGroup
	displayWg.Add(1)
	go cli.DisplayProgress(&displayWg, progressChan, len(solvers), out)

	for i, name := range solvers {
		idx, solver := i, name
		g.Go(func() error {
			req := base
			req.Solver = solver
			req.Index = idx
			req.Observers = append(append([]eigen.IterationObserver(nil), base.Observers...), observer)

			startTime := time.Now()
			report, err := svc.Solve(ctx, req)
			results[idx] = SolveResult{Solver: solver, Report: report, Duration: time.Since(startTime), Err: err}
			// Failures are reported per solver, never cancel the others.
			return nil
		})
	}

	_ = g.Wait()
	close(progressChan)
	displayWg.Wait()

	return results
}

// Consistent reports whether every converged eigenvalue lies within
// MismatchFactor·tol (relative) of the first one.
func Consistent(results []SolveResult, tol float64) bool {
	ref := math.NaN()
	for _, res := range results {
		if res.Err != nil || res.Report == nil {
			continue
		}
		if math.IsNaN(ref) {
			ref = res.Report.K
			continue
		}
		if math.Abs(res.Report.K-ref) > MismatchFactor*tol*math.Abs(ref) {
			return false
		}
	}
	return true
}

// AnalyzeComparisonResults sorts the results by duration, prints a summary
// table and checks the converged eigenvalues against each other.
//
// Parameters:
//   - results: The solve results to analyze.
//   - cfg: The application configuration.
//   - out: The io.Writer for the summary report.
//
// Returns:
//   - int: An exit code indicating success (0) or the type of failure.
func AnalyzeComparisonResults(results []SolveResult, cfg config.AppConfig, out io.Writer) int {
	sort.SliceStable(results, func(i, j int) bool {
		if (results[i].Err == nil) != (results[j].Err == nil) {
			return results[i].Err == nil
		}
		return results[i].Duration < results[j].Duration
	})

	var best *SolveResult
	var firstError error
	successCount := 0
	underline := ui.GetCurrentTheme().Underline

	fmt.Fprintf(out, "\n--- Comparison Summary ---\n")
	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "%sSolver%s\t%sDuration%s\t%sIterations%s\t%sk%s\t%sStatus%s\n",
		underline, ui.ColorReset(), underline, ui.ColorReset(), underline, ui.ColorReset(),
		underline, ui.ColorReset(), underline, ui.ColorReset())

	for i := range results {
		res := &results[i]
		var status string
		if res.Err != nil {
			status = fmt.Sprintf("%s❌ Failure (%v)%s", ui.ColorRed(), res.Err, ui.ColorReset())
			if firstError == nil {
				firstError = res.Err
			}
		} else {
			status = fmt.Sprintf("%s✅ Converged%s", ui.ColorGreen(), ui.ColorReset())
			successCount++
			if best == nil {
				best = res
			}
		}
		iterations, k := "-", "-"
		if res.Report != nil {
			iterations = fmt.Sprintf("%d", res.Report.Iterations)
			k = fmt.Sprintf("%.8f", res.Report.K)
		}
		fmt.Fprintf(tw, "%s%s%s\t%s%s%s\t%s\t%s\t%s\n",
			ui.ColorBlue(), res.Solver, ui.ColorReset(),
			ui.ColorYellow(), cli.FormatExecutionDuration(res.Duration), ui.ColorReset(),
			iterations, k, status)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(out, "Warning: failed to flush tabwriter: %v\n", err)
	}

	if successCount == 0 {
		fmt.Fprintf(out, "\nGlobal Status: Failure. No solver converged.\n")
		return apperrors.HandleSolveError(firstError, 0, out, cli.CLIColorProvider{})
	}

	if !Consistent(results, cfg.Tolerance) {
		fmt.Fprintf(out, "\nGlobal Status: CRITICAL ERROR! The linear solvers converged to different eigenvalues.\n")
		return apperrors.ExitErrorMismatch
	}

	fmt.Fprintf(out, "\nGlobal Status: Success. All converged eigenvalues are consistent.\n")
	cli.DisplayResult(best.Report, cfg.Verbose, cfg.Details, out)
	return apperrors.ExitSuccess
}

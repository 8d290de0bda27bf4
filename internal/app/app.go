package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/agbru/keffcalc/internal/cli"
	"github.com/agbru/keffcalc/internal/config"
	"github.com/agbru/keffcalc/internal/eigen"
	apperrors "github.com/agbru/keffcalc/internal/errors"
	"github.com/agbru/keffcalc/internal/linsolve"
	"github.com/agbru/keffcalc/internal/logging"
	"github.com/agbru/keffcalc/internal/orchestration"
	"github.com/agbru/keffcalc/internal/problem"
	"github.com/agbru/keffcalc/internal/server"
	"github.com/agbru/keffcalc/internal/service"
	"github.com/agbru/keffcalc/internal/study"
	"github.com/agbru/keffcalc/internal/ui"
	"github.com/agbru/keffcalc/pkg/models"
)

// Application represents the keffcalc application instance.
// It encapsulates the configuration and provides methods to run
// the application in its modes (solve, comparison, study, server).
type Application struct {
	// Config holds the parsed application configuration.
	Config config.AppConfig
	// Catalog resolves problem names.
	Catalog *problem.Catalog
	// Factory provides the linear solvers.
	Factory *linsolve.Factory
	// Service runs the solves. New builds one without request limits.
	Service service.Service
	// ErrWriter is the writer for error output (typically os.Stderr).
	ErrWriter io.Writer
	// Logger receives the iteration records of detailed runs. Nil disables
	// them.
	Logger *logging.ZerologAdapter
}

// DetailLogEvery is the iteration interval of the records logged with -d.
const DetailLogEvery = 10

// New creates a new Application instance by parsing command-line arguments.
// It validates the configuration and returns an error if parsing or validation fails.
//
// Parameters:
//   - args: The command-line arguments (typically os.Args).
//   - errWriter: The writer for error output.
//
// Returns:
//   - *Application: A new application instance.
//   - error: An error if configuration parsing or validation fails.
func New(args []string, errWriter io.Writer) (*Application, error) {
	factory := linsolve.GlobalFactory()
	catalog := problem.GlobalCatalog()

	// args[0] is program name, args[1:] are the actual arguments
	programName := "keffcalc"
	var cmdArgs []string
	if len(args) > 0 {
		programName = args[0]
		cmdArgs = args[1:]
	}

	cfg, err := config.ParseConfig(programName, cmdArgs, errWriter, factory.List())
	if err != nil {
		return nil, err
	}

	// The command line solves whatever the user asks for: no request limits.
	logger := logging.NewConsoleLogger(errWriter, cfg.Details)
	svc := service.NewSolveService(catalog, factory, service.Limits{}, service.WithLogger(logger))

	return &Application{
		Config:    cfg,
		Catalog:   catalog,
		Factory:   factory,
		Service:   svc,
		ErrWriter: errWriter,
		Logger:    logger,
	}, nil
}

// Run executes the application based on the configured mode.
// It dispatches to the appropriate handler (completion, list, server,
// study or solve).
//
// Parameters:
//   - ctx: The context for managing cancellation and timeouts.
//   - out: The writer for standard output.
//
// Returns:
//   - int: An exit code (0 for success, non-zero for errors).
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	if a.Config.Completion != "" {
		return a.runCompletion(out)
	}

	// Initialize CLI theme (respects --no-color flag and NO_COLOR env var)
	ui.InitTheme(a.Config.NoColor)

	if a.Config.List {
		return a.runList(out)
	}

	if a.Config.ServerMode {
		return a.runServer()
	}

	base, name, code := a.baseRequest()
	if code != apperrors.ExitSuccess {
		return code
	}

	if a.Config.Study != "" {
		return a.runStudy(ctx, base, out)
	}
	return a.runSolve(ctx, base, name, out)
}

// runCompletion generates shell completion scripts.
func (a *Application) runCompletion(out io.Writer) int {
	if err := cli.GenerateCompletion(out, a.Config.Completion, a.Catalog.List(), a.Factory.List()); err != nil {
		fmt.Fprintf(a.ErrWriter, "Error generating completion: %v\n", err)
		return apperrors.ExitErrorConfig
	}
	return apperrors.ExitSuccess
}

// runList prints the catalog problems and the linear solvers.
func (a *Application) runList(out io.Writer) int {
	fmt.Fprintf(out, "%sProblems:%s\n", cli.ColorBold(), cli.ColorReset())
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, def := range a.Catalog.All() {
		reference := "-"
		if def.ReferenceK > 0 {
			reference = fmt.Sprintf("%.8f", def.ReferenceK)
		}
		fmt.Fprintf(tw, "  %s%s%s\t%s\t%d groups\tk ref %s\t%s\n",
			cli.ColorMagenta(), def.Name, cli.ColorReset(), def.Geometry, def.Groups, reference, def.Description)
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "%sSolvers:%s\n", cli.ColorBold(), cli.ColorReset())
	for _, name := range a.Factory.List() {
		fmt.Fprintf(out, "  %s%s%s\n", cli.ColorBlue(), name, cli.ColorReset())
	}
	return apperrors.ExitSuccess
}

// runServer starts the HTTP server mode.
func (a *Application) runServer() int {
	svc := service.NewSolveService(a.Catalog, a.Factory, service.DefaultLimits(),
		service.WithLogger(logging.NewDefaultLogger()))
	srv := server.NewServer(svc, a.Config, server.WithCatalog(a.Catalog))
	if err := srv.Start(); err != nil {
		fmt.Fprintf(a.ErrWriter, "Server error: %v\n", err)
		return apperrors.ExitErrorGeneric
	}
	return apperrors.ExitSuccess
}

// baseRequest resolves the problem, from a deck when one is configured,
// and returns the request shared by every solve of the run.
func (a *Application) baseRequest() (service.Request, string, int) {
	var (
		def  *problem.Definition
		name = a.Config.Problem
	)
	if a.Config.Deck != "" {
		d, err := problem.LoadDeckFile(a.Config.Deck)
		if err != nil {
			fmt.Fprintf(a.ErrWriter, "Deck error: %v\n", err)
			return service.Request{}, "", apperrors.ExitErrorConfig
		}
		def, name = &d, d.Name
	}
	req := orchestration.RequestFromConfig(a.Config, def)
	if a.Config.Details && a.Logger != nil {
		req.Observers = append(req.Observers, eigen.NewLoggingObserver(a.Logger.Engine(), DetailLogEvery))
	}
	return req, name, apperrors.ExitSuccess
}

// runStudy runs a refinement study over the configured levels.
func (a *Application) runStudy(ctx context.Context, base service.Request, out io.Writer) int {
	ctx, lifecycle := SetupLifecycle(ctx, a.Config.Timeout)
	defer lifecycle.Cleanup()

	levels, err := a.Config.StudyLevels()
	if err != nil {
		fmt.Fprintf(a.ErrWriter, "Study error: %v\n", err)
		return apperrors.ExitErrorConfig
	}
	progressOut := out
	if a.Config.Quiet || a.Config.JSONOutput {
		progressOut = io.Discard
	}

	report, code := study.Run(ctx, a.Service, base, levels, study.Options{OutputPath: a.Config.OutputFile}, progressOut)
	if a.Config.JSONOutput && report != nil {
		if err := writeJSON(out, report); err != nil {
			return apperrors.ExitErrorGeneric
		}
	}
	return code
}

// runSolve orchestrates a single solve or a comparison of linear solvers.
func (a *Application) runSolve(ctx context.Context, base service.Request, name string, out io.Writer) int {
	ctx, lifecycle := SetupLifecycle(ctx, a.Config.Timeout)
	defer lifecycle.Cleanup()

	solvers := cli.SolversToRun(a.Config, a.Factory)

	// Skip verbose output in quiet mode
	if !a.Config.JSONOutput && !a.Config.Quiet {
		cli.PrintExecutionConfig(a.Config, name, out)
		cli.PrintExecutionMode(solvers, out)
	}

	progressOut := out
	if a.Config.Quiet || a.Config.JSONOutput {
		progressOut = io.Discard
	}

	results := orchestration.ExecuteSolves(ctx, a.Service, base, solvers, progressOut)

	if a.Config.JSONOutput {
		return printJSONResults(results, out)
	}

	outputCfg := cli.OutputConfig{
		OutputFile: a.Config.OutputFile,
		Quiet:      a.Config.Quiet,
		Verbose:    a.Config.Verbose,
		Details:    a.Config.Details,
	}
	return a.analyzeResultsWithOutput(results, outputCfg, out)
}

func (a *Application) analyzeResultsWithOutput(results []orchestration.SolveResult, outputCfg cli.OutputConfig, out io.Writer) int {
	if len(results) == 0 {
		fmt.Fprintf(a.ErrWriter, "No linear solver selected.\n")
		return apperrors.ExitErrorConfig
	}
	best := findBestResult(results)

	// A single solve reports its own failure; a comparison summarizes all.
	if len(results) == 1 || outputCfg.Quiet {
		if best == nil {
			res := results[0]
			if res.Report != nil && !outputCfg.Quiet {
				cli.DisplayResult(res.Report, outputCfg.Verbose, outputCfg.Details, out)
			}
			return apperrors.HandleSolveError(res.Err, res.Duration, out, cli.CLIColorProvider{})
		}
		if err := cli.DisplayReportWithConfig(out, best.Report, outputCfg); err != nil {
			fmt.Fprintf(a.ErrWriter, "Error saving report: %v\n", err)
			return apperrors.ExitErrorGeneric
		}
		return apperrors.ExitSuccess
	}

	exitCode := orchestration.AnalyzeComparisonResults(results, a.Config, out)
	if best != nil && exitCode == apperrors.ExitSuccess && outputCfg.OutputFile != "" {
		if err := cli.WriteReportToFile(best.Report, outputCfg); err != nil {
			fmt.Fprintf(a.ErrWriter, "Error saving report: %v\n", err)
			return apperrors.ExitErrorGeneric
		}
		fmt.Fprintf(out, "\n%s✓ Report saved to: %s%s%s\n",
			cli.ColorGreen(), cli.ColorCyan(), outputCfg.OutputFile, cli.ColorReset())
	}
	return exitCode
}

// IsHelpError checks if the error is a help flag error (--help was used).
// This is useful for determining if the application should exit with success
// after displaying help text.
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}

// findBestResult returns the fastest converged solve, or nil.
func findBestResult(results []orchestration.SolveResult) *orchestration.SolveResult {
	var best *orchestration.SolveResult
	for i := range results {
		if results[i].Err == nil && results[i].Report != nil {
			if best == nil || results[i].Duration < best.Duration {
				best = &results[i]
			}
		}
	}
	return best
}

// jsonResult is one solve of a run in JSON format.
type jsonResult struct {
	Solver   string              `json:"solver"`
	Duration string              `json:"duration"`
	Report   *models.SolveReport `json:"report,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// printJSONResults writes the solves of a run as a JSON array. The exit
// code is that of the first failure, or success.
func printJSONResults(results []orchestration.SolveResult, out io.Writer) int {
	output := make([]jsonResult, len(results))
	code := apperrors.ExitSuccess
	for i, res := range results {
		output[i] = jsonResult{
			Solver:   res.Solver,
			Duration: res.Duration.Round(time.Microsecond).String(),
			Report:   res.Report,
		}
		if res.Err != nil {
			output[i].Error = res.Err.Error()
			if code == apperrors.ExitSuccess {
				code = apperrors.ExitCode(res.Err)
			}
		}
	}
	if err := writeJSON(out, output); err != nil {
		return apperrors.ExitErrorGeneric
	}
	return code
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

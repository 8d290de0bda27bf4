// Package config provides the configuration management for the keffcalc
// application. It defines the configuration structure, parses command-line
// arguments and validates the resulting values.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/agbru/keffcalc/internal/eigen"
	apperrors "github.com/agbru/keffcalc/internal/errors"
)

const (
	// EnvPrefix is the prefix of all environment variables read by keffcalc.
	// Environment variables override defaults but not explicit flags.
	EnvPrefix = "KEFFCALC_"
)

// Default configuration values.
const (
	DefaultProblem     = "four-group-cylinder"
	DefaultSolver      = "lu"
	DefaultTolerance   = eigen.DefaultTolerance
	DefaultInitialK    = 1.0
	DefaultInitialFlux = 1.0
	DefaultTimeout     = 5 * time.Minute
	DefaultPort        = "8080"
	// MaxStudyLevels bounds the number of refinement levels of a study.
	MaxStudyLevels = 8
)

// AppConfig aggregates the application's configuration parameters.
type AppConfig struct {
	// Problem is the catalog problem to solve. Ignored when Deck is set.
	Problem string
	// Deck is the path of a YAML problem deck.
	Deck string
	// Solver is a registered linear solver name or "all" to compare them.
	Solver string
	// Tolerance is the relative eigenvalue change below which a run stops.
	Tolerance float64
	// MaxIterations bounds each run; 0 is unbounded.
	MaxIterations int
	InitialK      float64
	InitialFlux   float64
	// Refine adds uniform mesh refinements on top of the problem's own.
	Refine int
	// Study is a comma-separated list of extra refinement levels. A
	// non-empty list runs a refinement study instead of a single solve.
	Study   string
	Timeout time.Duration
	// Verbose prints the flux profile.
	Verbose bool
	// Details prints the relative-change trace and run metadata.
	Details    bool
	JSONOutput bool
	ServerMode bool
	Port       string
	NoColor    bool
	OutputFile string
	// Quiet prints the eigenvalue only.
	Quiet bool
	// List prints the known problems and solvers and exits.
	List bool
	// Completion generates a shell completion script (bash, zsh, fish,
	// powershell).
	Completion string
	// Profile is the number of flux samples per group in reports.
	Profile int
}

// StudyLevels parses the Study list. It returns nil when no study was
// requested.
func (c AppConfig) StudyLevels() ([]int, error) {
	if strings.TrimSpace(c.Study) == "" {
		return nil, nil
	}
	parts := strings.Split(c.Study, ",")
	levels := make([]int, 0, len(parts))
	for _, p := range parts {
		level, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || level < 0 {
			return nil, apperrors.NewConfigError("invalid study level %q: must be a non-negative integer", p)
		}
		if slices.Contains(levels, level) {
			return nil, apperrors.NewConfigError("duplicate study level %d", level)
		}
		levels = append(levels, level)
	}
	if len(levels) > MaxStudyLevels {
		return nil, apperrors.NewConfigError("at most %d study levels are supported, got %d", MaxStudyLevels, len(levels))
	}
	slices.Sort(levels)
	return levels, nil
}

// Validate checks the semantic consistency of the configuration.
//
// Parameters:
//   - availableSolvers: The registered linear solver names.
//
// Returns:
//   - error: A ConfigError if the configuration is invalid, nil otherwise.
func (c AppConfig) Validate(availableSolvers []string) error {
	if c.Timeout <= 0 {
		return apperrors.NewConfigError("timeout value must be strictly positive")
	}
	if !(c.Tolerance > 0) || math.IsInf(c.Tolerance, 0) {
		return apperrors.NewConfigError("tolerance must be finite and strictly positive: %g", c.Tolerance)
	}
	if c.MaxIterations < 0 {
		return apperrors.NewConfigError("iteration budget cannot be negative: %d", c.MaxIterations)
	}
	if !(c.InitialK > 0) || math.IsInf(c.InitialK, 0) {
		return apperrors.NewConfigError("initial eigenvalue must be finite and strictly positive: %g", c.InitialK)
	}
	if math.IsNaN(c.InitialFlux) || math.IsInf(c.InitialFlux, 0) {
		return apperrors.NewConfigError("initial flux must be finite: %g", c.InitialFlux)
	}
	if c.Refine < 0 {
		return apperrors.NewConfigError("refinement count cannot be negative: %d", c.Refine)
	}
	if c.Profile < 0 {
		return apperrors.NewConfigError("profile sample count cannot be negative: %d", c.Profile)
	}
	if c.Solver != "all" && !slices.Contains(availableSolvers, c.Solver) {
		return apperrors.NewConfigError("unrecognized solver: '%s'. Valid solvers are: 'all' or [%s]", c.Solver, strings.Join(availableSolvers, ", "))
	}
	if _, err := c.StudyLevels(); err != nil {
		return err
	}
	return nil
}

// ParseConfig parses the command-line arguments into an AppConfig, applies
// environment overrides for flags not given explicitly and validates the
// result.
//
// Parameters:
//   - programName: The name of the program, used in the usage message.
//   - args: The command-line arguments (typically os.Args[1:]).
//   - errorWriter: Where parsing errors and usage are printed.
//   - availableSolvers: The registered linear solver names.
//
// Returns:
//   - AppConfig: The populated configuration.
//   - error: flag.ErrHelp, a parse error, or a validation error.
func ParseConfig(programName string, args []string, errorWriter io.Writer, availableSolvers []string) (AppConfig, error) {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errorWriter)
	solverHelp := fmt.Sprintf("Linear solver: 'all' to compare, or one of [%s].", strings.Join(availableSolvers, ", "))

	config := AppConfig{}
	fs.StringVar(&config.Problem, "problem", DefaultProblem, "Catalog problem to solve (see -list).")
	fs.StringVar(&config.Deck, "deck", "", "Path of a YAML problem deck (overrides -problem).")
	fs.StringVar(&config.Solver, "solver", DefaultSolver, solverHelp)
	fs.Float64Var(&config.Tolerance, "tol", DefaultTolerance, "Relative eigenvalue change that ends the iteration.")
	fs.IntVar(&config.MaxIterations, "max-iter", 0, "Maximum number of power iterations (0 = unbounded).")
	fs.Float64Var(&config.InitialK, "k0", DefaultInitialK, "Initial eigenvalue estimate.")
	fs.Float64Var(&config.InitialFlux, "flux0", DefaultInitialFlux, "Uniform initial flux in every group.")
	fs.IntVar(&config.Refine, "refine", 0, "Additional uniform mesh refinements.")
	fs.StringVar(&config.Study, "study", "", "Comma-separated refinement levels for a convergence study (e.g. 0,1,2).")
	fs.DurationVar(&config.Timeout, "timeout", DefaultTimeout, "Maximum execution time.")
	fs.BoolVar(&config.Verbose, "v", false, "Display the flux profile of each group.")
	fs.BoolVar(&config.Details, "d", false, "Display the convergence trace and run details.")
	fs.BoolVar(&config.Details, "details", false, "Alias for -d.")
	fs.BoolVar(&config.JSONOutput, "json", false, "Output the report in JSON format.")
	fs.BoolVar(&config.ServerMode, "server", false, "Start in HTTP server mode.")
	fs.StringVar(&config.Port, "port", DefaultPort, "Port to listen on in server mode.")
	fs.BoolVar(&config.NoColor, "no-color", false, "Disable colored output (also respects NO_COLOR env var).")
	fs.StringVar(&config.OutputFile, "output", "", "Output file path for the report.")
	fs.StringVar(&config.OutputFile, "o", "", "Output file path (shorthand).")
	fs.BoolVar(&config.Quiet, "quiet", false, "Quiet mode - print the eigenvalue only.")
	fs.BoolVar(&config.Quiet, "q", false, "Quiet mode (shorthand).")
	fs.BoolVar(&config.List, "list", false, "List the available problems and solvers.")
	fs.StringVar(&config.Completion, "completion", "", "Generate shell completion script (bash, zsh, fish, powershell).")
	fs.IntVar(&config.Profile, "profile", 0, "Number of flux samples per group in the report (0 = none, 21 with -v).")

	setCustomUsage(fs)

	if err := fs.Parse(args); err != nil {
		return AppConfig{}, err
	}
	applyEnvOverrides(&config, fs)

	config.Solver = strings.ToLower(config.Solver)
	if config.Verbose && config.Profile == 0 {
		config.Profile = 21
	}
	if err := config.Validate(availableSolvers); err != nil {
		fmt.Fprintln(errorWriter, "Configuration error:", err)
		fs.Usage()
		return AppConfig{}, errors.Join(errors.New("invalid configuration"), err)
	}
	return config, nil
}

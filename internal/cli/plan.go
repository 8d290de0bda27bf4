package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"

	"github.com/agbru/keffcalc/internal/config"
)

// SolverLister is the part of the solver factory the planner needs.
type SolverLister interface {
	List() []string
	Has(name string) bool
}

// SolversToRun returns the linear solvers a run uses, in sorted order.
// "all" selects every registered solver.
//
// Parameters:
//   - cfg: The application configuration containing the solver selection.
//   - factory: The solver registry.
//
// Returns:
//   - []string: The solver names, empty when the selection is unknown.
func SolversToRun(cfg config.AppConfig, factory SolverLister) []string {
	if cfg.Solver == "all" {
		return factory.List()
	}
	if factory.Has(cfg.Solver) {
		return []string{cfg.Solver}
	}
	return nil
}

// CPUFeatures lists the SIMD extensions the dense kernels can use on this
// machine.
func CPUFeatures() []string {
	var features []string
	switch runtime.GOARCH {
	case "amd64", "386":
		for _, f := range []struct {
			name string
			ok   bool
		}{
			{"sse4.1", cpu.X86.HasSSE41},
			{"avx", cpu.X86.HasAVX},
			{"avx2", cpu.X86.HasAVX2},
			{"fma", cpu.X86.HasFMA},
			{"avx512f", cpu.X86.HasAVX512F},
		} {
			if f.ok {
				features = append(features, f.name)
			}
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			features = append(features, "asimd")
		}
		if cpu.ARM64.HasSVE {
			features = append(features, "sve")
		}
	}
	return features
}

// PrintExecutionConfig displays the problem, tolerance and environment of
// the run.
//
// Parameters:
//   - cfg: The application configuration.
//   - problemName: The resolved problem name (catalog entry or deck).
//   - out: The writer for standard output.
func PrintExecutionConfig(cfg config.AppConfig, problemName string, out io.Writer) {
	writeOut(out, "--- Execution Configuration ---\n")
	writeOut(out, "Solving %s%s%s to a tolerance of %s%g%s with a timeout of %s%s%s.\n",
		ColorMagenta(), problemName, ColorReset(), ColorCyan(), cfg.Tolerance, ColorReset(), ColorYellow(), cfg.Timeout, ColorReset())
	if cfg.MaxIterations > 0 || cfg.Refine > 0 {
		writeOut(out, "Limits: at most %s%d%s iterations, %s%d%s extra refinements.\n",
			ColorCyan(), cfg.MaxIterations, ColorReset(), ColorCyan(), cfg.Refine, ColorReset())
	}
	features := "none"
	if f := CPUFeatures(); len(f) > 0 {
		features = strings.Join(f, " ")
	}
	writeOut(out, "Environment: %s%d%s logical processors, Go %s%s%s, CPU features: %s.\n",
		ColorCyan(), runtime.NumCPU(), ColorReset(), ColorCyan(), runtime.Version(), ColorReset(), features)
}

// PrintExecutionMode displays whether a single solver runs or all of them
// are compared.
func PrintExecutionMode(solvers []string, out io.Writer) {
	var modeDesc string
	if len(solvers) > 1 {
		modeDesc = fmt.Sprintf("Parallel comparison of %d linear solvers", len(solvers))
	} else {
		modeDesc = fmt.Sprintf("Single solve with the %s%s%s linear solver",
			ColorGreen(), solvers[0], ColorReset())
	}
	writeOut(out, "Execution mode: %s.\n", modeDesc)
	writeOut(out, "\n--- Starting Execution ---\n")
}

func writeOut(out io.Writer, format string, a ...any) {
	fmt.Fprintf(out, format, a...)
}

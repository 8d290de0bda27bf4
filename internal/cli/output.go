package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agbru/keffcalc/pkg/models"
)

// OutputConfig holds configuration for report output.
type OutputConfig struct {
	// OutputFile is the path to save the report (empty for no file output).
	// A ".json" suffix selects JSON, anything else a commented text table.
	OutputFile string
	// Quiet prints the eigenvalue only.
	Quiet   bool
	Verbose bool
	Details bool
}

// WriteReportToFile saves a report.
//
// Returns:
//   - error: An error if the file cannot be written.
func WriteReportToFile(report *models.SolveReport, config OutputConfig) error {
	if config.OutputFile == "" {
		return nil
	}

	dir := filepath.Dir(config.OutputFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(config.OutputFile), ".json") {
		enc := json.NewEncoder(file)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return WriteReportText(file, report)
}

// WriteReportText writes a report as a commented header followed by one
// column per group flux profile, suitable for plotting tools.
func WriteReportText(w io.Writer, report *models.SolveReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# k-eigenvalue report\n")
	fmt.Fprintf(&b, "# Generated: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "# Problem: %s\n", report.Problem)
	fmt.Fprintf(&b, "# Solver: %s\n", report.Solver)
	fmt.Fprintf(&b, "# Status: %s\n", report.Status)
	fmt.Fprintf(&b, "# k: %.12f\n", report.K)
	fmt.Fprintf(&b, "# Iterations: %d\n", report.Iterations)
	fmt.Fprintf(&b, "# Relative change: %.6e\n", report.RelativeChange)
	fmt.Fprintf(&b, "# Groups: %d, elements: %d, unknowns: %d\n", report.Groups, report.Elements, report.Degrees)
	fmt.Fprintf(&b, "# Duration: %s\n", report.Duration)
	if report.ReferenceK > 0 {
		fmt.Fprintf(&b, "# Reference k: %.12f (relative error %.3e)\n", report.ReferenceK, report.ReferenceError)
	}

	if len(report.Profiles) > 0 {
		b.WriteString("\n# x")
		for _, p := range report.Profiles {
			fmt.Fprintf(&b, " phi%d", p.Group)
		}
		b.WriteString("\n")
		for i := range report.Profiles[0].X {
			fmt.Fprintf(&b, "%.8e", report.Profiles[0].X[i])
			for _, p := range report.Profiles {
				fmt.Fprintf(&b, " %.8e", p.Flux[i])
			}
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// FormatQuietResult formats the eigenvalue for scripting.
func FormatQuietResult(report *models.SolveReport) string {
	return fmt.Sprintf("%.10f", report.K)
}

// DisplayQuietResult outputs the eigenvalue on a single line.
func DisplayQuietResult(out io.Writer, report *models.SolveReport) {
	fmt.Fprintln(out, FormatQuietResult(report))
}

// DisplayReportWithConfig displays a report with the given output
// configuration and saves it when a file is configured.
//
// Returns:
//   - error: An error if file output fails.
func DisplayReportWithConfig(out io.Writer, report *models.SolveReport, config OutputConfig) error {
	if config.Quiet {
		DisplayQuietResult(out, report)
	} else {
		DisplayResult(report, config.Verbose, config.Details, out)
	}

	if config.OutputFile != "" {
		if err := WriteReportToFile(report, config); err != nil {
			return err
		}
		if !config.Quiet {
			fmt.Fprintf(out, "\n%s✓ Report saved to: %s%s%s\n",
				ColorGreen(), ColorCyan(), config.OutputFile, ColorReset())
		}
	}
	return nil
}

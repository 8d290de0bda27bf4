// Package app provides the core application structure for the keffcalc CLI.
// It handles application lifecycle, mode dispatching, and version management.
package app

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

// Build-time variables set via -ldflags:
//
//	go build -ldflags="-X github.com/agbru/keffcalc/internal/app.Version=v1.2.3 -X github.com/agbru/keffcalc/internal/app.Commit=abc123"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// linalgModule is the dependency whose version is reported alongside ours:
// every eigenvalue goes through its dense kernels.
const linalgModule = "gonum.org/v1/gonum"

// HasVersionFlag reports whether any argument asks for the version, so that
// "keffcalc -server -version" prints it instead of starting the server.
func HasVersionFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--version" || arg == "-version" || arg == "-V" {
			return true
		}
	}
	return false
}

// VersionData is the version information in a form suitable for JSON
// output and the health endpoint.
type VersionData struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Linalg    string `json:"linalg,omitempty"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetVersionInfo returns the current version information. A "dev" version
// falls back to the module version recorded by go install.
func GetVersionInfo() VersionData {
	info := VersionData{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && build.Main.Version != "" && build.Main.Version != "(devel)" {
		info.Version = build.Main.Version
	}
	for _, dep := range build.Deps {
		if dep.Path == linalgModule {
			info.Linalg = dep.Version
		}
	}
	return info
}

// PrintVersion writes the version information to out.
func PrintVersion(out io.Writer) {
	info := GetVersionInfo()
	fmt.Fprintf(out, "keffcalc %s\n", info.Version)
	fmt.Fprintf(out, "  Commit:     %s\n", info.Commit)
	fmt.Fprintf(out, "  Built:      %s\n", info.BuildDate)
	fmt.Fprintf(out, "  Go version: %s\n", info.GoVersion)
	if info.Linalg != "" {
		fmt.Fprintf(out, "  gonum:      %s\n", info.Linalg)
	}
	fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", info.OS, info.Arch)
}

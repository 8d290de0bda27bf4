// Command keffcalc computes the effective multiplication factor of
// one-dimensional multigroup diffusion problems.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/agbru/keffcalc/internal/app"
	apperrors "github.com/agbru/keffcalc/internal/errors"
)

func main() {
	os.Exit(run())
}

func run() int {
	if app.HasVersionFlag(os.Args[1:]) {
		app.PrintVersion(os.Stdout)
		return apperrors.ExitSuccess
	}

	application, err := app.New(os.Args, os.Stderr)
	if err != nil {
		if app.IsHelpError(err) {
			return apperrors.ExitSuccess
		}
		code := apperrors.ExitCode(err)
		if code == apperrors.ExitErrorGeneric {
			// Flag parse errors are already printed by the flag set.
			code = apperrors.ExitErrorConfig
		}
		if code != apperrors.ExitErrorConfig {
			fmt.Fprintln(os.Stderr, err)
		}
		return code
	}
	return application.Run(context.Background(), os.Stdout)
}

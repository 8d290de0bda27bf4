package cli

import apperrors "github.com/agbru/keffcalc/internal/errors"

var _ apperrors.ColorProvider = CLIColorProvider{}

// CLIColorProvider implements apperrors.ColorProvider with the current
// theme, for packages (orchestration, study, app) that print error status.
type CLIColorProvider struct{}

func (c CLIColorProvider) Yellow() string { return ColorYellow() }
func (c CLIColorProvider) Reset() string  { return ColorReset() }

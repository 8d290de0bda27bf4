package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// getEnvString returns the value of EnvPrefix+key, or defaultVal if unset.
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns EnvPrefix+key parsed as int, or defaultVal if unset or
// invalid.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvFloat returns EnvPrefix+key parsed as float64, or defaultVal if
// unset or invalid.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvBool accepts "true", "1", "yes" and "false", "0", "no" in any case.
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}

// getEnvDuration accepts time.ParseDuration formats such as "5m" or "30s".
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// isFlagSet reports whether a flag was given on the command line.
func isFlagSet(fs *flag.FlagSet, names ...string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				found = true
			}
		}
	})
	return found
}

// applyEnvOverrides applies environment values to every setting whose flag
// was not given, so that flags win over the environment and the
// environment wins over defaults.
//
// Supported variables (all prefixed with KEFFCALC_): PROBLEM, DECK, SOLVER,
// TOL, MAX_ITER, K0, FLUX0, REFINE, STUDY, TIMEOUT, PORT, OUTPUT, PROFILE,
// SERVER, JSON, VERBOSE, DETAILS, QUIET, NO_COLOR.
func applyEnvOverrides(config *AppConfig, fs *flag.FlagSet) {
	texts := []struct {
		flags  []string
		key    string
		target *string
	}{
		{[]string{"problem"}, "PROBLEM", &config.Problem},
		{[]string{"deck"}, "DECK", &config.Deck},
		{[]string{"solver"}, "SOLVER", &config.Solver},
		{[]string{"study"}, "STUDY", &config.Study},
		{[]string{"port"}, "PORT", &config.Port},
		{[]string{"output", "o"}, "OUTPUT", &config.OutputFile},
	}
	for _, s := range texts {
		if !isFlagSet(fs, s.flags...) {
			*s.target = getEnvString(s.key, *s.target)
		}
	}

	if !isFlagSet(fs, "tol") {
		config.Tolerance = getEnvFloat("TOL", config.Tolerance)
	}
	if !isFlagSet(fs, "k0") {
		config.InitialK = getEnvFloat("K0", config.InitialK)
	}
	if !isFlagSet(fs, "flux0") {
		config.InitialFlux = getEnvFloat("FLUX0", config.InitialFlux)
	}
	if !isFlagSet(fs, "max-iter") {
		config.MaxIterations = getEnvInt("MAX_ITER", config.MaxIterations)
	}
	if !isFlagSet(fs, "refine") {
		config.Refine = getEnvInt("REFINE", config.Refine)
	}
	if !isFlagSet(fs, "profile") {
		config.Profile = getEnvInt("PROFILE", config.Profile)
	}
	if !isFlagSet(fs, "timeout") {
		config.Timeout = getEnvDuration("TIMEOUT", config.Timeout)
	}

	bools := []struct {
		flags  []string
		key    string
		target *bool
	}{
		{[]string{"server"}, "SERVER", &config.ServerMode},
		{[]string{"json"}, "JSON", &config.JSONOutput},
		{[]string{"v"}, "VERBOSE", &config.Verbose},
		{[]string{"d", "details"}, "DETAILS", &config.Details},
		{[]string{"quiet", "q"}, "QUIET", &config.Quiet},
		{[]string{"no-color"}, "NO_COLOR", &config.NoColor},
	}
	for _, b := range bools {
		if !isFlagSet(fs, b.flags...) {
			*b.target = getEnvBool(b.key, *b.target)
		}
	}
}

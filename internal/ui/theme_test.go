package ui

import (
	"math"
	"testing"
)

func TestSetTheme(t *testing.T) {
	original := GetCurrentTheme()
	defer SetCurrentTheme(original)

	testCases := []struct {
		name     string
		expected Theme
	}{
		{"dark", DarkTheme},
		{"light", LightTheme},
		{"none", NoColorTheme},
		{"unknown", DarkTheme},
		{"", DarkTheme},
	}
	for _, tc := range testCases {
		SetTheme(tc.name)
		if got := GetCurrentTheme().Name; got != tc.expected.Name {
			t.Errorf("SetTheme(%q): got theme %q, want %q", tc.name, got, tc.expected.Name)
		}
	}
}

func TestInitTheme(t *testing.T) {
	original := GetCurrentTheme()
	defer SetCurrentTheme(original)

	t.Run("flag disables colors", func(t *testing.T) {
		InitTheme(true)
		if GetCurrentTheme().Name != "none" {
			t.Errorf("InitTheme(true): got %q", GetCurrentTheme().Name)
		}
	})

	t.Run("NO_COLOR disables colors", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		InitTheme(false)
		if GetCurrentTheme().Name != "none" {
			t.Errorf("InitTheme with NO_COLOR: got %q", GetCurrentTheme().Name)
		}
	})

	t.Run("defaults to dark", func(t *testing.T) {
		SetCurrentTheme(NoColorTheme)
		InitTheme(false)
		if GetCurrentTheme().Name != "dark" && GetCurrentTheme().Name != "none" {
			t.Errorf("InitTheme(false): got %q", GetCurrentTheme().Name)
		}
	})
}

func TestColorFunctionsFollowTheme(t *testing.T) {
	original := GetCurrentTheme()
	defer SetCurrentTheme(original)

	SetCurrentTheme(LightTheme)
	if ColorRed() != LightTheme.Error || ColorGreen() != LightTheme.Success || ColorReset() != LightTheme.Reset {
		t.Error("color functions do not follow the current theme")
	}
	SetCurrentTheme(NoColorTheme)
	for _, c := range []string{ColorRed(), ColorYellow(), ColorBlue(), ColorMagenta(), ColorCyan(), ColorBold()} {
		if c != "" {
			t.Errorf("NoColorTheme produced %q", c)
		}
	}
}

func TestConvergenceColor(t *testing.T) {
	original := GetCurrentTheme()
	defer SetCurrentTheme(original)
	SetCurrentTheme(DarkTheme)

	tests := []struct {
		change, tol float64
		want        string
	}{
		{1e-7, 1e-6, DarkTheme.Success},
		{1e-6, 1e-6, DarkTheme.Warning},
		{5e-5, 1e-6, DarkTheme.Warning},
		{1e-3, 1e-6, DarkTheme.Error},
		{math.Inf(1), 1e-6, DarkTheme.Error},
		{1e-9, 0, DarkTheme.Warning},
	}
	for _, tt := range tests {
		if got := ConvergenceColor(tt.change, tt.tol); got != tt.want {
			t.Errorf("ConvergenceColor(%g, %g) = %q, want %q", tt.change, tt.tol, got, tt.want)
		}
	}
}

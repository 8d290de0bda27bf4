package testutil

import "testing"

func TestStripAnsiCodes(t *testing.T) {
	t.Parallel()
	if got := StripAnsiCodes("\x1b[1m\x1b[32mk\x1b[0m = 1"); got != "k = 1" {
		t.Errorf("StripAnsiCodes() = %q", got)
	}
}

func TestReportValue(t *testing.T) {
	t.Parallel()
	output := "--- Results ---\n" +
		"Multiplication factor k : \x1b[32m1.36446870\x1b[0m\n" +
		"Iterations              : 17 (relative change 4.1e-07)\n" +
		"Reactivity              : 26711.2 pcm\n"

	tests := []struct {
		label string
		want  float64
		ok    bool
	}{
		{"Multiplication factor k", 1.3644687, true},
		{"Iterations", 17, true},
		{"Reactivity", 26711.2, true},
		{"Reference k", 0, false},
	}
	for _, tt := range tests {
		got, ok := ReportFloat(output, tt.label)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ReportFloat(%q) = %v, %v; want %v, %v", tt.label, got, ok, tt.want, tt.ok)
		}
	}
	if v, ok := ReportValue(output, "Iterations"); !ok || v != "17 (relative change 4.1e-07)" {
		t.Errorf("ReportValue() = %q, %v", v, ok)
	}
}

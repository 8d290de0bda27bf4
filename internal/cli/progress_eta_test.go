package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/agbru/keffcalc/internal/eigen"
)

func TestFormatETA(t *testing.T) {
	t.Parallel()
	tests := []struct {
		eta  time.Duration
		want string
	}{
		{0, "calculating..."},
		{-time.Second, "calculating..."},
		{500 * time.Millisecond, "< 1s"},
		{42 * time.Second, "42s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 30*time.Second, "2m30s"},
		{time.Hour, "1h"},
		{time.Hour + 15*time.Minute, "1h15m"},
	}
	for _, tt := range tests {
		if got := FormatETA(tt.eta); got != tt.want {
			t.Errorf("FormatETA(%v) = %q, want %q", tt.eta, got, tt.want)
		}
	}
}

func TestProgressWithETA_NoEstimateAtStart(t *testing.T) {
	t.Parallel()

	p := NewProgressWithETA(1)
	progress, eta := p.UpdateWithETA(0, 0.5)
	if progress != 0.5 {
		t.Errorf("progress = %g", progress)
	}
	if eta != 0 {
		t.Errorf("eta = %v, want 0 within the warm-up window", eta)
	}
	if p.GetETA() != 0 {
		t.Error("GetETA should be 0 before a rate is known")
	}
}

func TestProgressWithETA_Estimate(t *testing.T) {
	t.Parallel()

	p := NewProgressWithETA(2)
	p.startTime = time.Now().Add(-2 * time.Second)
	p.lastUpdate = p.startTime
	_, eta := p.RecordWithETA(eigen.ProgressUpdate{SolveIndex: 0, Value: 0.5})
	// Average 0.25 after two seconds: 6 more seconds at that rate.
	if eta < 5*time.Second || eta > 7*time.Second {
		t.Errorf("eta = %v, want about 6s", eta)
	}

	p.Update(0, 1)
	p.Update(1, 1)
	if p.GetETA() != 0 {
		t.Error("GetETA should be 0 once complete")
	}
}

func TestProgressWithETA_Capped(t *testing.T) {
	t.Parallel()

	p := NewProgressWithETA(1)
	p.Update(0, 0.01)
	p.progressRate = 1e-9
	if got := p.GetETA(); got != 24*time.Hour {
		t.Errorf("GetETA() = %v, want 24h cap", got)
	}
}

func TestProgressSuffix(t *testing.T) {
	t.Parallel()

	single := NewProgressWithETA(1)
	single.Record(eigen.ProgressUpdate{Value: 0.4, Iteration: 7, K: 0.987654321})
	if s := progressSuffix(single, 1); !strings.Contains(s, "Progress:  40.00%") || !strings.Contains(s, "it 7 k=0.987654") {
		t.Errorf("single suffix = %q", s)
	}

	multi := NewProgressWithETA(2)
	multi.Update(0, 1)
	if s := progressSuffix(multi, 2); !strings.Contains(s, "Avg progress:  50.00%") || strings.Contains(s, " it ") {
		t.Errorf("multi suffix = %q", s)
	}
}

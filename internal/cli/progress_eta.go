package cli

import (
	"fmt"
	"time"

	"github.com/agbru/keffcalc/internal/eigen"
)

// ProgressWithETA extends ProgressState with a time-remaining estimate.
// Convergence progress is logarithmic in the relative change, which makes
// its rate roughly constant for a power iteration with a fixed dominance
// ratio.
type ProgressWithETA struct {
	*ProgressState
	startTime    time.Time
	lastUpdate   time.Time
	lastProgress float64
	progressRate float64 // smoothed progress per second
}

// NewProgressWithETA creates a tracker for numSolves solves.
func NewProgressWithETA(numSolves int) *ProgressWithETA {
	now := time.Now()
	return &ProgressWithETA{
		ProgressState: NewProgressState(numSolves),
		startTime:     now,
		lastUpdate:    now,
	}
}

// RecordWithETA stores an update and refreshes the estimate.
func (p *ProgressWithETA) RecordWithETA(update eigen.ProgressUpdate) (progress float64, eta time.Duration) {
	p.Record(update)
	return p.refresh()
}

// UpdateWithETA sets the progress of one solve and refreshes the estimate.
//
// Returns:
//   - progress: The average progress (0.0 to 1.0).
//   - eta: The estimated time remaining, or 0 while there is too little data.
func (p *ProgressWithETA) UpdateWithETA(index int, value float64) (progress float64, eta time.Duration) {
	p.Update(index, value)
	return p.refresh()
}

func (p *ProgressWithETA) refresh() (float64, time.Duration) {
	progress := p.CalculateAverage()
	now := time.Now()
	elapsed := now.Sub(p.startTime)

	if elapsed < 100*time.Millisecond || progress <= 0.001 {
		p.lastUpdate = now
		p.lastProgress = progress
		return progress, 0
	}

	if dt := now.Sub(p.lastUpdate).Seconds(); dt > 0.05 {
		if delta := progress - p.lastProgress; delta > 0 {
			instant := delta / dt
			if p.progressRate > 0 {
				// Exponential smoothing: 70% old rate, 30% new rate.
				p.progressRate = 0.7*p.progressRate + 0.3*instant
			} else {
				p.progressRate = progress / elapsed.Seconds()
			}
		}
		p.lastUpdate = now
		p.lastProgress = progress
	}
	return progress, p.GetETA()
}

// GetETA returns the current estimate without updating progress. It is 0
// when no rate is known yet or everything has converged, and is capped at
// 24 hours.
func (p *ProgressWithETA) GetETA() time.Duration {
	progress := p.CalculateAverage()
	if p.progressRate <= 0 || progress >= 1.0 {
		return 0
	}
	eta := time.Duration((1.0 - progress) / p.progressRate * float64(time.Second))
	return min(eta, 24*time.Hour)
}

// FormatETA formats a duration such as "< 1s", "2m30s" or "1h15m".
func FormatETA(eta time.Duration) string {
	switch {
	case eta <= 0:
		return "calculating..."
	case eta < time.Second:
		return "< 1s"
	case eta < time.Minute:
		return fmt.Sprintf("%ds", int(eta.Seconds()))
	case eta < time.Hour:
		minutes, seconds := int(eta.Minutes()), int(eta.Seconds())%60
		if seconds > 0 {
			return fmt.Sprintf("%dm%ds", minutes, seconds)
		}
		return fmt.Sprintf("%dm", minutes)
	}
	hours, minutes := int(eta.Hours()), int(eta.Minutes())%60
	if minutes > 0 {
		return fmt.Sprintf("%dh%dm", hours, minutes)
	}
	return fmt.Sprintf("%dh", hours)
}

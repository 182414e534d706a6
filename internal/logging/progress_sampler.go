package logging

import "math"

// ProgressSampler decides which ticker updates reach the log. Tickers report
// every interval; the sampler lets a line through when the processing status
// changes, when progress reaches the next step boundary, and once at 100.
type ProgressSampler struct {
	step   float64
	status string
	next   float64
	done   bool
}

// NewProgressSampler returns a sampler that logs every step percent. Steps
// outside (0, 100] fall back to 25.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 || step > 100 {
		step = 25
	}
	return &ProgressSampler{step: step}
}

// ShouldLog reports whether the update for status at percent should be
// logged. A nil sampler logs everything.
func (s *ProgressSampler) ShouldLog(percent float64, status string) bool {
	if s == nil {
		return true
	}
	if status != s.status {
		s.status = status
		s.done = percent >= 100
		s.next = s.boundaryAfter(percent)
		return true
	}
	if percent >= 100 {
		if s.done {
			return false
		}
		s.done = true
		return true
	}
	if percent < s.next {
		return false
	}
	s.next = s.boundaryAfter(percent)
	return true
}

func (s *ProgressSampler) boundaryAfter(percent float64) float64 {
	return (math.Floor(math.Max(percent, 0)/s.step) + 1) * s.step
}

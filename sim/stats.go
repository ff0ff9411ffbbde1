package sim

import "math"

// FrameStats keeps two smoothed frame durations, in milliseconds: a fast
// exponential moving average and the all-time mean.
type FrameStats struct {
	meanDt  float64
	meanDt2 float64
	frames  int
}

// Reset forgets every observed frame.
func (s *FrameStats) Reset() {
	*s = FrameStats{}
}

// Observe folds one frame duration in milliseconds into both estimates.
func (s *FrameStats) Observe(dt float64) {
	alpha := 0.1
	if s.meanDt > 0 {
		alpha = math.Min(0.1, dt/1000)
	}
	s.meanDt = alpha*dt + (1-alpha)*s.meanDt

	s.frames++
	alpha2 := 1 / float64(s.frames)
	s.meanDt2 = alpha2*dt + (1-alpha2)*s.meanDt2
}

// Frames returns the number of observed frames since the last reset.
func (s FrameStats) Frames() int {
	return s.frames
}

// MeanFast returns the fast-reacting frame duration estimate.
func (s FrameStats) MeanFast() float64 {
	return s.meanDt
}

// MeanAll returns the all-time mean frame duration.
func (s FrameStats) MeanAll() float64 {
	return s.meanDt2
}

// CurrFPS is round(1000/meanFast), or 0 before the first frame.
func (s FrameStats) CurrFPS() int {
	return fps(s.meanDt)
}

// AllFPS is round(1000/meanAll), or 0 before the first frame.
func (s FrameStats) AllFPS() int {
	return fps(s.meanDt2)
}

func fps(meanMillis float64) int {
	if meanMillis <= 0 {
		return 0
	}
	return int(math.Round(1000 / meanMillis))
}

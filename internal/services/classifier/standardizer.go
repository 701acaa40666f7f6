package classifier

import "math"

// Standardizer converts raw values of a single feature into z-scores against
// its own rolling window. One instance per feature; never shared.
type Standardizer struct {
	name       string
	stats      *RollingStats
	minHistory int64
	epsilon    float64
	staleZ     bool

	lastZ   float64
	hasLast bool
}

// NewStandardizer creates a standardizer for the named feature.
func NewStandardizer(name string, windowSize, minHistory int, epsilon float64, staleZ bool) *Standardizer {
	return &Standardizer{
		name:       name,
		stats:      NewRollingStats(windowSize),
		minHistory: int64(minHistory),
		epsilon:    epsilon,
		staleZ:     staleZ,
	}
}

// Name returns the feature identifier.
func (s *Standardizer) Name() string { return s.name }

// Warm reports whether the warm-up gate has been passed.
func (s *Standardizer) Warm() bool { return s.stats.Count() >= s.minHistory }

// Observe consumes one period's value. present=false means the upstream value
// is missing: the window and observation count are untouched, and the
// feature is not ready unless the stale-z policy re-emits the previous score.
// NaN/Inf inputs are treated the same as missing at this layer; the caller
// decides whether that escalates to fallback.
func (s *Standardizer) Observe(value float64, present bool) (z float64, ready bool) {
	if !present || math.IsNaN(value) || math.IsInf(value, 0) {
		if s.staleZ && s.hasLast && s.Warm() {
			return s.lastZ, true
		}
		return 0, false
	}

	s.stats.Add(value)
	if !s.Warm() {
		return 0, false
	}

	std := s.stats.Std()
	if std < s.epsilon {
		std = s.epsilon
	}
	z = (value - s.stats.Mean()) / std
	s.lastZ = z
	s.hasLast = true
	return z, true
}

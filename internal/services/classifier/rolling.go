package classifier

import "math"

// RollingStats maintains a FIFO window of the most recent valid observations
// and exposes mean/std over that window. Missing inputs are never inserted.
type RollingStats struct {
	window    []float64
	head      int // next insert position once the ring is full
	filled    bool
	countSeen int64
}

// NewRollingStats creates a window of capacity n. n must be >= 2; the engine
// validates this at construction.
func NewRollingStats(n int) *RollingStats {
	return &RollingStats{window: make([]float64, 0, n)}
}

// Add inserts a valid observation, evicting the oldest when at capacity.
func (r *RollingStats) Add(v float64) {
	if !r.filled {
		r.window = append(r.window, v)
		if len(r.window) == cap(r.window) {
			r.filled = true
		}
	} else {
		r.window[r.head] = v
		r.head = (r.head + 1) % len(r.window)
	}
	r.countSeen++
}

// Count returns the total number of valid observations ever added.
func (r *RollingStats) Count() int64 { return r.countSeen }

// Len returns the current window occupancy.
func (r *RollingStats) Len() int { return len(r.window) }

// Mean returns the arithmetic mean over the current window.
func (r *RollingStats) Mean() float64 {
	if len(r.window) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range r.window {
		sum += v
	}
	return sum / float64(len(r.window))
}

// Std returns the sample standard deviation over the current window.
// A window of one observation has zero deviation.
func (r *RollingStats) Std() float64 {
	n := len(r.window)
	if n < 2 {
		return 0
	}
	mean := r.Mean()
	sum2 := 0.0
	for _, v := range r.window {
		d := v - mean
		sum2 += d * d
	}
	variance := sum2 / float64(n-1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}

// Values returns the window contents oldest-first.
func (r *RollingStats) Values() []float64 {
	out := make([]float64, 0, len(r.window))
	if r.filled {
		out = append(out, r.window[r.head:]...)
		out = append(out, r.window[:r.head]...)
	} else {
		out = append(out, r.window...)
	}
	return out
}

// restore rebuilds the window from an oldest-first sequence and the
// historical observation count. Excess values are dropped from the front.
func (r *RollingStats) restore(values []float64, countSeen int64) {
	if n := cap(r.window); len(values) > n {
		values = values[len(values)-n:]
	}
	r.window = r.window[:0]
	r.head = 0
	r.filled = false
	for _, v := range values {
		r.window = append(r.window, v)
	}
	if len(r.window) == cap(r.window) {
		r.filled = true
	}
	r.countSeen = countSeen
}

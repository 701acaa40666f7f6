package classifier

import "math"

// Mapper converts the available z-scores into a clamped stress probability.
// It is a pure value type: no state, deterministic for identical inputs.
type Mapper struct {
	A        float64
	B        float64
	ClampMin float64
	ClampMax float64
}

// Map combines the ready z-scores (composite score = max) and applies the
// logistic mapping. ok=false means no feature was ready, which the caller
// must treat as "features unavailable", never as probability zero.
func (m Mapper) Map(zs []float64) (p float64, ok bool) {
	if len(zs) == 0 {
		return 0, false
	}
	zMax := zs[0]
	for _, z := range zs[1:] {
		if z > zMax {
			zMax = z
		}
	}
	p = 1.0 / (1.0 + math.Exp(-(m.A*zMax + m.B)))
	if p < m.ClampMin {
		p = m.ClampMin
	}
	if p > m.ClampMax {
		p = m.ClampMax
	}
	return p, true
}

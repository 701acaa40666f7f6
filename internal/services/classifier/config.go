package classifier

import (
	"fmt"

	"RegimeFlow/internal/domain/models"
)

// Params is the full configuration surface of the engine. All values are
// externally supplied; defaults match the calibrated weekly setup.
type Params struct {
	WindowSize   int     // rolling window length per feature
	MinHistory   int     // observations required before a feature is ready
	Epsilon      float64 // floor on rolling std
	SigmoidA     float64
	SigmoidB     float64
	ClampMin     float64
	ClampMax     float64
	ProbEnter    float64
	ProbExit     float64
	ConfirmTicks int
	Critical     []string // features whose absence triggers fallback
	EnableRV     bool     // track the optional realized-vol feature
	StaleZ       bool     // re-emit last z when a warm feature goes missing

	FallbackRegime      models.Regime
	FallbackProbability float64
}

// DefaultParams returns the calibrated weekly defaults.
func DefaultParams() Params {
	return Params{
		WindowSize:          52,
		MinHistory:          52,
		Epsilon:             1e-6,
		SigmoidA:            1.0,
		SigmoidB:            0.0,
		ClampMin:            0.01,
		ClampMax:            0.99,
		ProbEnter:           0.60,
		ProbExit:            0.40,
		ConfirmTicks:        2,
		Critical:            []string{models.FeatureVIX, models.FeatureCorr},
		FallbackRegime:      models.RegimeNormal,
		FallbackProbability: 0.0,
	}
}

// Validate rejects inconsistent configuration before any period is processed.
// This is the only error class that aborts instead of degrading.
func (p Params) Validate() error {
	if p.WindowSize < 2 {
		return fmt.Errorf("window_size must be >= 2, got %d", p.WindowSize)
	}
	if p.MinHistory < 1 {
		return fmt.Errorf("min_history must be >= 1, got %d", p.MinHistory)
	}
	if p.Epsilon <= 0 {
		return fmt.Errorf("epsilon must be > 0, got %g", p.Epsilon)
	}
	if p.ClampMin <= 0 || p.ClampMax >= 1 || p.ClampMin >= p.ClampMax {
		return fmt.Errorf("clamp bounds must satisfy 0 < clamp_min < clamp_max < 1, got [%g, %g]", p.ClampMin, p.ClampMax)
	}
	if p.ProbEnter <= 0 || p.ProbEnter >= 1 {
		return fmt.Errorf("prob_enter must be in (0, 1), got %g", p.ProbEnter)
	}
	if p.ProbExit <= 0 || p.ProbExit >= 1 {
		return fmt.Errorf("prob_exit must be in (0, 1), got %g", p.ProbExit)
	}
	if p.ProbExit >= p.ProbEnter {
		return fmt.Errorf("prob_exit (%g) must be < prob_enter (%g)", p.ProbExit, p.ProbEnter)
	}
	if p.ConfirmTicks < 1 {
		return fmt.Errorf("confirm_ticks must be >= 1, got %d", p.ConfirmTicks)
	}
	if len(p.Critical) == 0 {
		return fmt.Errorf("critical features cannot be empty")
	}
	for _, name := range p.Critical {
		switch name {
		case models.FeatureVIX, models.FeatureCorr, models.FeatureRV:
		default:
			return fmt.Errorf("unknown critical feature %q", name)
		}
		if name == models.FeatureRV && !p.EnableRV {
			return fmt.Errorf("critical feature %q requires enable_rv", name)
		}
	}
	if !p.FallbackRegime.IsValid() {
		return fmt.Errorf("fallback regime %q is not a known regime", p.FallbackRegime)
	}
	return nil
}

// featureNames returns the tracked features in composite evaluation order.
func (p Params) featureNames() []string {
	names := []string{models.FeatureVIX, models.FeatureCorr}
	if p.EnableRV {
		names = append(names, models.FeatureRV)
	}
	return names
}

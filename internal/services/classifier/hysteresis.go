package classifier

import (
	"time"

	"RegimeFlow/internal/domain/models"
)

// State is the mutable record of the hysteresis machine. It is the only
// engine state (together with the rolling windows) that must survive a
// restart for correctness.
type State struct {
	CurrentRegime  models.Regime `json:"current_regime"`
	PreviousRegime models.Regime `json:"previous_regime"`
	// RegimeTimestamp is the time of the most recent transition; zero means
	// the machine has never transitioned.
	RegimeTimestamp time.Time `json:"regime_timestamp"`
	EnterCounter    int       `json:"enter_counter"`
	ExitCounter     int       `json:"exit_counter"`
}

// NewState returns the initial machine state.
func NewState() State {
	return State{CurrentRegime: models.RegimeNormal, PreviousRegime: models.RegimeNormal}
}

// Hysteresis is the sequential decision core: asymmetric enter/exit
// thresholds with consecutive-tick confirmation. Step must be called exactly
// once per period in strictly increasing timestamp order; "consecutive"
// means consecutive calls, not consecutive calendar periods.
type Hysteresis struct {
	probEnter    float64
	probExit     float64
	confirmTicks int
	state        State
}

// NewHysteresis builds the machine in the normal regime.
func NewHysteresis(probEnter, probExit float64, confirmTicks int) *Hysteresis {
	return &Hysteresis{
		probEnter:    probEnter,
		probExit:     probExit,
		confirmTicks: confirmTicks,
		state:        NewState(),
	}
}

// State returns a copy of the current machine state.
func (h *Hysteresis) State() State { return h.state }

// Step consumes one probability and returns the regime decision for that
// period. Only the counter relevant to the current regime is ever non-zero.
func (h *Hysteresis) Step(prob float64, ts time.Time) (regime, previous models.Regime, transitioned bool) {
	s := &h.state

	switch s.CurrentRegime {
	case models.RegimeNormal:
		if prob >= h.probEnter {
			s.EnterCounter++
		} else {
			// no partial credit: confirmation requires an unbroken run
			s.EnterCounter = 0
		}
		if s.EnterCounter == h.confirmTicks {
			s.PreviousRegime = models.RegimeNormal
			s.CurrentRegime = models.RegimeHighVol
			s.RegimeTimestamp = ts
			s.EnterCounter = 0
			s.ExitCounter = 0
			transitioned = true
		}
	case models.RegimeHighVol:
		if prob <= h.probExit {
			s.ExitCounter++
		} else {
			s.ExitCounter = 0
		}
		if s.ExitCounter == h.confirmTicks {
			s.PreviousRegime = models.RegimeHighVol
			s.CurrentRegime = models.RegimeNormal
			s.RegimeTimestamp = ts
			s.EnterCounter = 0
			s.ExitCounter = 0
			transitioned = true
		}
	}

	return s.CurrentRegime, s.PreviousRegime, transitioned
}

// Reset restores the initial state.
func (h *Hysteresis) Reset() { h.state = NewState() }

// restore replaces the machine state, normalizing the irrelevant counter to
// zero so the invariant holds even for hand-edited snapshots.
func (h *Hysteresis) restore(s State) {
	if s.CurrentRegime == models.RegimeNormal {
		s.ExitCounter = 0
	} else {
		s.EnterCounter = 0
	}
	h.state = s
}

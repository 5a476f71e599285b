package algorithms

import "nrgchamp/equipment-control/internal/model"

// PumpKind distinguishes the two hysteresis tables in 
type PumpKind int

const (
	PumpCW PumpKind = iota
	PumpHW
)

// PumpSettings configures a lead/lag-aware pump.
type PumpSettings struct {
	Kind             PumpKind
	OperationSource  string // "outdoor" | "supply" | "space"
	LockoutExempt    bool
	IsLead           bool
	LeadFailed       bool // amps < 1A when commanded on, fault flag, or failover signal
	Speed            float64
}

// PumpResult is the tagged output for a pump.
type PumpResult struct {
	PumpEnable    bool
	PumpSpeed     float64
	IsLead        bool
	LeadLagStatus string
}

// pumpHysteresis applies the per-kind ON/OFF thresholds against the
// outdoor temperature.
func pumpHysteresis(kind PumpKind, outdoor float64, state *model.HysteresisState) {
	switch kind {
	case PumpCW:
		switch {
		case !state.IsOn && outdoor >= 37.5:
			state.IsOn = true
		case state.IsOn && outdoor <= 36:
			state.IsOn = false
		}
	case PumpHW:
		switch {
		case !state.IsOn && outdoor <= 74:
			state.IsOn = true
		case state.IsOn && outdoor >= 75:
			state.IsOn = false
		}
	}
}

// pumpLockout reports whether the pump must stay off regardless of
// hysteresis lockout thresholds.
func pumpLockout(kind PumpKind, outdoor float64, exempt bool) bool {
	if exempt {
		return false
	}
	switch kind {
	case PumpCW:
		return outdoor < 45
	case PumpHW:
		return outdoor > 75
	}
	return false
}

// RunPump runs the pump control loop. `controlTemp` is the outdoor,
// supply, or space temperature selected by settings.OperationSource
// (the selection itself happens in the worker pool).
func RunPump(controlTemp float64, settings PumpSettings, state *model.HysteresisState) PumpResult {
	result := PumpResult{IsLead: settings.IsLead}

	if !settings.IsLead && !settings.LeadFailed {
		result.LeadLagStatus = "standby"
		state.IsOn = false
		return result
	}

	if settings.OperationSource == "outdoor" {
		pumpHysteresis(settings.Kind, controlTemp, state)
	} else {
		state.IsOn = true
	}

	if pumpLockout(settings.Kind, controlTemp, settings.LockoutExempt) {
		state.IsOn = false
	}

	result.PumpEnable = state.IsOn
	if result.PumpEnable {
		speed, _ := clampPosition(settings.Speed)
		result.PumpSpeed = speed
	}
	if settings.IsLead {
		result.LeadLagStatus = "lead"
	} else {
		result.LeadLagStatus = "lag-active"
	}
	return result
}

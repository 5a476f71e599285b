package algorithms

import "nrgchamp/equipment-control/internal/model"

// ComfortBoilerSettings configures the OAR-driven comfort boiler.
// OARSetpoint and LeadLagReason mirror a location's override path as
// explicit fields read once here, never magic keys mutated by a shared
// base algorithm.
type ComfortBoilerSettings struct {
	Enabled  bool
	MinOAT   float64
	MaxOAT   float64
	MinSupply float64
	MaxSupply float64
	Deadband float64
	IsLead   bool

	// OARSetpoint, when non-nil, overrides the computed OAR curve
	// value entirely (a location has already decided the setpoint).
	OARSetpoint *float64
	// LeadLagReason, when non-empty, overrides IsLead's source of
	// truth with a lead/lag-manager decision already made upstream.
	LeadLagReason string
	LeadLagIsLead bool
}

// ComfortBoilerResult is the tagged output for a comfort boiler.
type ComfortBoilerResult struct {
	UnitEnable        bool
	Firing            int
	WaterTempSetpoint float64
	IsLead            bool
}

// oarLinear interpolates linearly between (minOAT, maxSupply) and
// (maxOAT, minSupply), clamping outside the bracket — the OAR curve
// shape used by the comfort boiler, the air handler, and the steam
// bundle.
func oarLinear(outdoor, minOAT, maxOAT, maxSupply, minSupply float64) float64 {
	if outdoor <= minOAT {
		return maxSupply
	}
	if outdoor >= maxOAT {
		return minSupply
	}
	span := maxOAT - minOAT
	if span == 0 {
		return maxSupply
	}
	frac := (outdoor - minOAT) / span
	return maxSupply - frac*(maxSupply-minSupply)
}

// RunBoilerComfort implements the comfort boiler branch:
// OAR curve between minOAT/maxOAT, lockout at/above maxOAT, deadband
// firing around the computed setpoint. It owns its own OAR and
// lead/lag decisions inline and never calls RunBoilerDomestic.
func RunBoilerComfort(outdoorTemp, waterSupplyTemp float64, settings ComfortBoilerSettings, state *model.HysteresisState) ComfortBoilerResult {
	isLead := settings.IsLead
	if settings.LeadLagReason != "" {
		isLead = settings.LeadLagIsLead
	}
	result := ComfortBoilerResult{IsLead: isLead}

	if !settings.Enabled || outdoorTemp >= settings.MaxOAT {
		state.IsOn = false
		return result
	}
	result.UnitEnable = true

	setpoint := settings.MaxSupply
	if settings.OARSetpoint != nil {
		setpoint = *settings.OARSetpoint
	} else {
		setpoint = oarLinear(outdoorTemp, settings.MinOAT, settings.MaxOAT, settings.MaxSupply, settings.MinSupply)
	}
	setpoint, _ = clampSetpoint(setpoint)
	result.WaterTempSetpoint = setpoint

	switch {
	case !state.IsOn && waterSupplyTemp <= setpoint-settings.Deadband:
		state.IsOn = true
	case state.IsOn && waterSupplyTemp >= setpoint+settings.Deadband:
		state.IsOn = false
	}
	if state.IsOn {
		result.Firing = 1
	}
	return result
}

package algorithms

import "nrgchamp/equipment-control/internal/pid"

// AirHandlerSettings configures an air handler.
type AirHandlerSettings struct {
	Enabled           bool
	MinOAT, MaxOAT    float64
	MinSupply, MaxSupply float64
	CoolingDemanded   bool
	DamperMinPosition float64
	FreezestatThreshold float64 // mixed-air temp below which freezestat trips
	HeatingPID        pid.Params
	CoolingPID        pid.Params
	DamperPID         pid.Params
}

// AirHandlerState carries the three PID loops an air handler runs.
type AirHandlerState struct {
	Heating pid.State
	Cooling pid.State
	Damper  pid.State
}

// AirHandlerResult is the tagged output for an air handler.
type AirHandlerResult struct {
	FanEnabled             bool
	FanSpeed               string
	HeatingValvePosition   float64
	CoolingValvePosition   float64
	OutdoorDamperPosition  float64
	SupplyAirTempSetpoint  float64
	FreezestatTripped      bool
}

// RunAirHandler runs the air handler control loop: OAR-based supply
// setpoint, two PID valve loops, economizer-aware damper control,
// freezestat safety override.
func RunAirHandler(outdoorTemp, returnTemp, mixedAirTemp, supplyTemp float64, settings AirHandlerSettings, state *AirHandlerState, dt float64) AirHandlerResult {
	result := AirHandlerResult{FanEnabled: settings.Enabled}
	if !settings.Enabled {
		result.FanSpeed = "off"
		return result
	}

	setpoint := oarLinear(outdoorTemp, settings.MinOAT, settings.MaxOAT, settings.MaxSupply, settings.MinSupply)
	setpoint, _ = clampSetpoint(setpoint)
	result.SupplyAirTempSetpoint = setpoint

	heating := pid.Run(supplyTemp, setpoint, settings.HeatingPID, dt, &state.Heating)
	cooling := pid.Run(supplyTemp, setpoint, settings.CoolingPID, dt, &state.Cooling)
	result.HeatingValvePosition = heating.Output
	result.CoolingValvePosition = cooling.Output

	if mixedAirTemp < settings.FreezestatThreshold {
		result.FreezestatTripped = true
		result.HeatingValvePosition = 100
		result.OutdoorDamperPosition = 0
		result.FanSpeed = fanSpeedFor(0)
		return result
	}

	economizerEligible := outdoorTemp < returnTemp && settings.CoolingDemanded
	if economizerEligible {
		damperOut := pid.Run(mixedAirTemp, setpoint, settings.DamperPID, dt, &state.Damper)
		pos, _ := clampPosition(damperOut.Output)
		if pos < settings.DamperMinPosition {
			pos = settings.DamperMinPosition
		}
		result.OutdoorDamperPosition = pos
	} else {
		min, _ := clampPosition(settings.DamperMinPosition)
		result.OutdoorDamperPosition = min
	}

	maxOutput := result.HeatingValvePosition
	if result.CoolingValvePosition > maxOutput {
		maxOutput = result.CoolingValvePosition
	}
	result.FanSpeed = fanSpeedFor(maxOutput)
	if result.FanSpeed == "off" {
		result.FanSpeed = "low"
	}
	return result
}

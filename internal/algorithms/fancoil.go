package algorithms

import (
	"time"

	"nrgchamp/equipment-control/internal/model"
	"nrgchamp/equipment-control/internal/pid"
	"nrgchamp/equipment-control/internal/schedule"
)

// FanCoilSettings is the configuration surface for a fan coil, decoded
// from the equipment's controls map.
type FanCoilSettings struct {
	Enabled               bool
	TemperatureSource     string // "room" | "supply"
	Setpoint              float64
	Mode                  string // "auto" | "heating" | "cooling"
	OutdoorDamperMode     string // "auto" | "manual"
	OutdoorDamperPosition float64
	HeatingActuatorMode   string // "auto" | "manual"
	HeatingActuatorValue  float64
	CoolingActuatorMode   string // "auto" | "manual"
	CoolingActuatorValue  float64
	HeatingPID            pid.Params
	CoolingPID            pid.Params
	Occupancy             schedule.Weekly
}

// FanCoilState is the persistent PID state for the two loops a fan
// coil may run, keyed by loop name "heating"/"cooling" in C3.
type FanCoilState struct {
	Heating pid.State
	Cooling pid.State
}

// FanCoilResult is the tagged output of RunFanCoil, mapped onto the
// fan-coil allow-list by extractor.go.
type FanCoilResult struct {
	UnitEnable             bool
	FanEnabled             bool
	FanSpeed               string
	HeatingValvePosition   float64
	CoolingValvePosition   float64
	OutdoorDamperPosition  float64
	TemperatureSetpoint    float64
}

// RunFanCoil runs the fan coil control loop. It is a pure function:
// the caller supplies `now` and the occupancy schedule rather than the
// algorithm reading wall-clock time itself.
func RunFanCoil(metrics model.MetricsSnapshot, settings FanCoilSettings, controlTemp float64, state *FanCoilState, now time.Time, dt float64) FanCoilResult {
	result := FanCoilResult{
		UnitEnable:          settings.Enabled,
		TemperatureSetpoint: settings.Setpoint,
	}
	if !settings.Enabled {
		return result
	}

	occupied := settings.Occupancy.IsOccupied(now)
	result.FanEnabled = occupied

	heatingAllowed := settings.Mode == "auto" || settings.Mode == "heating"
	coolingAllowed := settings.Mode == "auto" || settings.Mode == "cooling"

	var heatingOutput, coolingOutput float64

	if settings.HeatingActuatorMode == "manual" {
		heatingOutput, _ = clampPosition(settings.HeatingActuatorValue)
	} else if heatingAllowed {
		out := pid.Run(controlTemp, settings.Setpoint, settings.HeatingPID, dt, &state.Heating)
		heatingOutput = out.Output
	}

	if settings.CoolingActuatorMode == "manual" {
		coolingOutput, _ = clampPosition(settings.CoolingActuatorValue)
	} else if coolingAllowed {
		out := pid.Run(controlTemp, settings.Setpoint, settings.CoolingPID, dt, &state.Cooling)
		coolingOutput = out.Output
	}

	if settings.OutdoorDamperMode == "manual" {
		result.OutdoorDamperPosition, _ = clampPosition(settings.OutdoorDamperPosition)
	} else {
		result.OutdoorDamperPosition = 0
	}

	result.HeatingValvePosition = heatingOutput
	result.CoolingValvePosition = coolingOutput

	if !occupied {
		result.FanSpeed = "off"
		return result
	}
	maxOutput := heatingOutput
	if coolingOutput > maxOutput {
		maxOutput = coolingOutput
	}
	result.FanSpeed = fanSpeedFor(maxOutput)
	return result
}

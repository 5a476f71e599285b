// Package algorithms implements one pure control function per
// (equipment-kind × location-variant). Every Run function takes
// (metrics, settings, controlTemp, state) — or a narrow, explicit
// superset of that tuple when the kind genuinely needs more (occupancy
// time, lead/lag decisions) — and returns a tagged result struct
// instead of a free-form map: the compiler enforces the allow-list,
// not a silently-discarding extractor.
package algorithms

import "nrgchamp/equipment-control/internal/model"

// clampPosition restricts an actuator position to [0,100], reporting
// whether clamping occurred so callers can log a BadInput event.
func clampPosition(v float64) (float64, bool) {
	switch {
	case v < 0:
		return 0, true
	case v > 100:
		return 100, true
	default:
		return v, false
	}
}

// clampSetpoint restricts a temperature setpoint to [50,200]°F.
func clampSetpoint(v float64) (float64, bool) {
	switch {
	case v < 50:
		return 50, true
	case v > 200:
		return 200, true
	default:
		return v, false
	}
}

// Clamped records one field that was coerced into range while
// extracting commands, so the worker pool can log a BadInput event
//
type Clamped struct {
	Field    string
	Original float64
	Clamped  float64
}

// fanSpeedFor maps a 0-100 PID/valve output to the fan coil and air
// handler's discrete fan speed steps. This mapping is not specified
// numerically beyond the four-way enum; thresholds are an
// implementation decision recorded in DESIGN.md.
func fanSpeedFor(output float64) string {
	switch {
	case output <= 0:
		return "off"
	case output < 34:
		return "low"
	case output < 67:
		return "medium"
	default:
		return "high"
	}
}

// EquipmentKind command allow-lists
var AllowList = map[model.EquipmentKind][]string{
	model.KindFanCoil: {
		"unitEnable", "fanEnabled", "fanSpeed", "heatingValvePosition",
		"coolingValvePosition", "outdoorDamperPosition", "temperatureSetpoint",
	},
	model.KindBoilerComfort: {
		"unitEnable", "firing", "waterTempSetpoint", "isLead",
	},
	model.KindBoilerDomestic: {
		"unitEnable", "firing", "waterTempSetpoint", "isLead",
	},
	model.KindPumpHW: {"pumpEnable", "pumpSpeed", "isLead", "leadLagStatus"},
	model.KindPumpCW: {"pumpEnable", "pumpSpeed", "isLead", "leadLagStatus"},
	model.KindChiller: {
		"chillerEnable", "chillerSetpoint", "stage1Enabled", "stage2Enabled", "cwPumpEnable",
	},
	model.KindAirHandler: {
		"fanEnabled", "fanSpeed", "heatingValvePosition", "coolingValvePosition",
		"outdoorDamperPosition", "supplyAirTempSetpoint", "freezestatTripped",
	},
	model.KindSteamBundle: {
		"primaryValvePosition", "secondaryValvePosition", "temperatureSetpoint", "unitEnable",
	},
	model.KindGeothermal: {
		"stage1Enabled", "stage2Enabled", "stage3Enabled", "stage4Enabled", "targetSetpoint", "loopTemp",
	},
}

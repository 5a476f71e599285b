package algorithms

import (
	"fmt"

	"nrgchamp/equipment-control/internal/model"
)

// Extract maps a tagged algorithm result onto the command allow-list
// for its equipment kind, clamping out-of-range numeric fields and
// reporting every clamp so the caller can log a BadInput event. Unlike
// a free-form map, the compiler already enforces which fields exist
// per kind — this function only enforces their ranges.
func Extract(kind model.EquipmentKind, result any) ([]model.CommandValue, []Clamped) {
	switch r := result.(type) {
	case FanCoilResult:
		return extractFanCoil(r)
	case DomesticBoilerResult:
		return extractDomesticBoiler(r)
	case ComfortBoilerResult:
		return extractComfortBoiler(r)
	case PumpResult:
		return extractPump(r)
	case ChillerResult:
		return extractChiller(r)
	case AirHandlerResult:
		return extractAirHandler(r)
	case SteamBundleResult:
		return extractSteamBundle(r)
	case GeothermalResult:
		return extractGeothermal(r)
	default:
		return nil, nil
	}
}

func cv(name string, value any) model.CommandValue {
	return model.CommandValue{Name: name, Value: value}
}

func extractFanCoil(r FanCoilResult) ([]model.CommandValue, []Clamped) {
	var clamps []Clamped
	heating, wasClampedH := clampPosition(r.HeatingValvePosition)
	if wasClampedH {
		clamps = append(clamps, Clamped{"heatingValvePosition", r.HeatingValvePosition, heating})
	}
	cooling, wasClampedC := clampPosition(r.CoolingValvePosition)
	if wasClampedC {
		clamps = append(clamps, Clamped{"coolingValvePosition", r.CoolingValvePosition, cooling})
	}
	damper, wasClampedD := clampPosition(r.OutdoorDamperPosition)
	if wasClampedD {
		clamps = append(clamps, Clamped{"outdoorDamperPosition", r.OutdoorDamperPosition, damper})
	}
	setpoint, wasClampedS := clampSetpoint(r.TemperatureSetpoint)
	if wasClampedS {
		clamps = append(clamps, Clamped{"temperatureSetpoint", r.TemperatureSetpoint, setpoint})
	}
	return []model.CommandValue{
		cv("unitEnable", r.UnitEnable),
		cv("fanEnabled", r.FanEnabled),
		cv("fanSpeed", r.FanSpeed),
		cv("heatingValvePosition", heating),
		cv("coolingValvePosition", cooling),
		cv("outdoorDamperPosition", damper),
		cv("temperatureSetpoint", setpoint),
	}, clamps
}

func extractDomesticBoiler(r DomesticBoilerResult) ([]model.CommandValue, []Clamped) {
	setpoint, wasClamped := clampSetpoint(r.WaterTempSetpoint)
	var clamps []Clamped
	if wasClamped {
		clamps = append(clamps, Clamped{"waterTempSetpoint", r.WaterTempSetpoint, setpoint})
	}
	return []model.CommandValue{
		cv("unitEnable", r.UnitEnable),
		cv("firing", r.Firing),
		cv("waterTempSetpoint", setpoint),
		cv("isLead", r.IsLead),
	}, clamps
}

func extractComfortBoiler(r ComfortBoilerResult) ([]model.CommandValue, []Clamped) {
	setpoint, wasClamped := clampSetpoint(r.WaterTempSetpoint)
	var clamps []Clamped
	if wasClamped {
		clamps = append(clamps, Clamped{"waterTempSetpoint", r.WaterTempSetpoint, setpoint})
	}
	return []model.CommandValue{
		cv("unitEnable", r.UnitEnable),
		cv("firing", r.Firing),
		cv("waterTempSetpoint", setpoint),
		cv("isLead", r.IsLead),
	}, clamps
}

func extractPump(r PumpResult) ([]model.CommandValue, []Clamped) {
	speed, wasClamped := clampPosition(r.PumpSpeed)
	var clamps []Clamped
	if wasClamped {
		clamps = append(clamps, Clamped{"pumpSpeed", r.PumpSpeed, speed})
	}
	return []model.CommandValue{
		cv("pumpEnable", r.PumpEnable),
		cv("pumpSpeed", speed),
		cv("isLead", r.IsLead),
		cv("leadLagStatus", r.LeadLagStatus),
	}, clamps
}

func extractChiller(r ChillerResult) ([]model.CommandValue, []Clamped) {
	setpoint, wasClamped := clampSetpoint(r.ChillerSetpoint)
	var clamps []Clamped
	if wasClamped {
		clamps = append(clamps, Clamped{"chillerSetpoint", r.ChillerSetpoint, setpoint})
	}
	return []model.CommandValue{
		cv("chillerEnable", r.ChillerEnable),
		cv("chillerSetpoint", setpoint),
		cv("stage1Enabled", r.Stage1Enabled),
		cv("stage2Enabled", r.Stage2Enabled),
		cv("cwPumpEnable", r.CWPumpEnable),
	}, clamps
}

func extractAirHandler(r AirHandlerResult) ([]model.CommandValue, []Clamped) {
	var clamps []Clamped
	heating, c1 := clampPosition(r.HeatingValvePosition)
	if c1 {
		clamps = append(clamps, Clamped{"heatingValvePosition", r.HeatingValvePosition, heating})
	}
	cooling, c2 := clampPosition(r.CoolingValvePosition)
	if c2 {
		clamps = append(clamps, Clamped{"coolingValvePosition", r.CoolingValvePosition, cooling})
	}
	damper, c3 := clampPosition(r.OutdoorDamperPosition)
	if c3 {
		clamps = append(clamps, Clamped{"outdoorDamperPosition", r.OutdoorDamperPosition, damper})
	}
	setpoint, c4 := clampSetpoint(r.SupplyAirTempSetpoint)
	if c4 {
		clamps = append(clamps, Clamped{"supplyAirTempSetpoint", r.SupplyAirTempSetpoint, setpoint})
	}
	return []model.CommandValue{
		cv("fanEnabled", r.FanEnabled),
		cv("fanSpeed", r.FanSpeed),
		cv("heatingValvePosition", heating),
		cv("coolingValvePosition", cooling),
		cv("outdoorDamperPosition", damper),
		cv("supplyAirTempSetpoint", setpoint),
		cv("freezestatTripped", r.FreezestatTripped),
	}, clamps
}

func extractSteamBundle(r SteamBundleResult) ([]model.CommandValue, []Clamped) {
	var clamps []Clamped
	primary, c1 := clampPosition(r.PrimaryValvePosition)
	if c1 {
		clamps = append(clamps, Clamped{"primaryValvePosition", r.PrimaryValvePosition, primary})
	}
	secondary, c2 := clampPosition(r.SecondaryValvePosition)
	if c2 {
		clamps = append(clamps, Clamped{"secondaryValvePosition", r.SecondaryValvePosition, secondary})
	}
	setpoint, c3 := clampSetpoint(r.TemperatureSetpoint)
	if c3 {
		clamps = append(clamps, Clamped{"temperatureSetpoint", r.TemperatureSetpoint, setpoint})
	}
	return []model.CommandValue{
		cv("primaryValvePosition", primary),
		cv("secondaryValvePosition", secondary),
		cv("temperatureSetpoint", setpoint),
		cv("unitEnable", r.UnitEnable),
	}, clamps
}

func extractGeothermal(r GeothermalResult) ([]model.CommandValue, []Clamped) {
	return []model.CommandValue{
		cv("stage1Enabled", r.Stage1Enabled),
		cv("stage2Enabled", r.Stage2Enabled),
		cv("stage3Enabled", r.Stage3Enabled),
		cv("stage4Enabled", r.Stage4Enabled),
		cv("targetSetpoint", r.TargetSetpoint),
		cv("loopTemp", r.LoopTemp),
	}, nil
}

// ValidateAllowList returns an error if a kind's extracted commands drift
// from AllowList — a defensive check exercised by tests, not by the
// hot path.
func ValidateAllowList(kind model.EquipmentKind, names []string) error {
	allowed := AllowList[kind]
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	for _, n := range names {
		if _, ok := set[n]; !ok {
			return fmt.Errorf("command %q not in allow-list for kind %s", n, kind)
		}
	}
	return nil
}

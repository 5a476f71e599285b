package algorithms

import "nrgchamp/equipment-control/internal/model"

// DomesticBoilerSettings configures the fixed-setpoint domestic hot
// water boiler. Defaults (135/5/170) are applied by the caller when
// settings are absent.
type DomesticBoilerSettings struct {
	Enabled   bool
	Setpoint  float64
	Deadband  float64
	HighLimit float64
	IsLead    bool
}

// DomesticBoilerResult is the tagged output for a domestic boiler.
type DomesticBoilerResult struct {
	UnitEnable        bool
	Firing            int
	WaterTempSetpoint float64
	IsLead            bool
}

// RunBoilerDomestic implements the domestic boiler
// branch: fixed setpoint, deadband firing, high-limit cutoff, runs
// year-round. It never calls or defers to the comfort variant — the two
// branches are kept fully independent rather than sharing a dispatch
// path.
func RunBoilerDomestic(waterSupplyTemp float64, settings DomesticBoilerSettings, state *model.HysteresisState) DomesticBoilerResult {
	setpoint, _ := clampSetpoint(settings.Setpoint)
	result := DomesticBoilerResult{
		UnitEnable:        settings.Enabled,
		WaterTempSetpoint: setpoint,
		IsLead:            settings.IsLead,
	}
	if !settings.Enabled {
		state.IsOn = false
		result.Firing = 0
		return result
	}
	if waterSupplyTemp >= settings.HighLimit {
		state.IsOn = false
		result.Firing = 0
		return result
	}

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

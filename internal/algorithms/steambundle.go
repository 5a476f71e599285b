package algorithms

import "nrgchamp/equipment-control/internal/pid"

// SteamBundleSettings configures a two-valve steam bundle.
type SteamBundleSettings struct {
	MinOAT, MaxOAT       float64
	MinSupply, MaxSupply float64
	PrimaryValveRatio    float64 // fraction of PID output the primary valve takes first, e.g. 0.6
	HighTempSafety       float64 // default 165
	PumpDependent        bool
	PumpRunning          bool
	PumpAmps             float64
	ValvePID             pid.Params
}

// SteamBundleResult is the tagged output for a steam bundle.
type SteamBundleResult struct {
	UnitEnable             bool
	PrimaryValvePosition   float64
	SecondaryValvePosition float64
	TemperatureSetpoint    float64
}

// RunSteamBundle runs the steam bundle control loop: OAR curve,
// pump-dependency gate, high-temp safety, two-stage valve split.
func RunSteamBundle(outdoorTemp, supplyTemp float64, settings SteamBundleSettings, state *pid.State, dt float64) SteamBundleResult {
	result := SteamBundleResult{}

	if settings.PumpDependent {
		pumpOK := settings.PumpRunning || settings.PumpAmps > 0.5
		if !pumpOK {
			return result
		}
	}

	if supplyTemp >= settings.HighTempSafety {
		return result
	}

	setpoint := oarLinear(outdoorTemp, settings.MinOAT, settings.MaxOAT, settings.MaxSupply, settings.MinSupply)
	setpoint, _ = clampSetpoint(setpoint)
	result.TemperatureSetpoint = setpoint
	result.UnitEnable = true

	out := pid.Run(supplyTemp, setpoint, settings.ValvePID, dt, state)
	total, _ := clampPosition(out.Output)

	primaryCapacity := 100 * settings.PrimaryValveRatio
	if total <= primaryCapacity {
		result.PrimaryValvePosition = total / settings.PrimaryValveRatio
		result.SecondaryValvePosition = 0
	} else {
		result.PrimaryValvePosition = 100
		remaining := total - primaryCapacity
		secondaryCapacity := 100 * (1 - settings.PrimaryValveRatio)
		if secondaryCapacity > 0 {
			result.SecondaryValvePosition = remaining / (1 - settings.PrimaryValveRatio)
		}
	}
	result.PrimaryValvePosition, _ = clampPosition(result.PrimaryValvePosition)
	result.SecondaryValvePosition, _ = clampPosition(result.SecondaryValvePosition)
	return result
}

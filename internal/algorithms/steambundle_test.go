package algorithms

import (
	"testing"

	"nrgchamp/equipment-control/internal/pid"
)

func valvePID() pid.Params {
	return pid.Params{Kp: 10, Ki: 0, Kd: 0, OutputMin: 0, OutputMax: 100, ReverseActing: true, Enabled: true}
}

func TestSteamBundlePumpDependencyGate(t *testing.T) {
	settings := SteamBundleSettings{
		MinOAT: 20, MaxOAT: 65, MinSupply: 180, MaxSupply: 220,
		PrimaryValveRatio: 0.6, HighTempSafety: 165, PumpDependent: true, PumpRunning: false, PumpAmps: 0,
		ValvePID: valvePID(),
	}
	state := &pid.State{}
	result := RunSteamBundle(40, 150, settings, state, 1)
	if result.UnitEnable {
		t.Fatalf("expected unit disabled when dependent pump is not running, got %+v", result)
	}
}

func TestSteamBundleHighTempSafety(t *testing.T) {
	settings := SteamBundleSettings{
		MinOAT: 20, MaxOAT: 65, MinSupply: 180, MaxSupply: 220,
		PrimaryValveRatio: 0.6, HighTempSafety: 165,
		ValvePID: valvePID(),
	}
	state := &pid.State{}
	result := RunSteamBundle(40, 170, settings, state, 1)
	if result.UnitEnable {
		t.Fatalf("expected unit disabled above high-temp safety, got %+v", result)
	}
}

func TestSteamBundleSplitsValveStages(t *testing.T) {
	settings := SteamBundleSettings{
		MinOAT: 20, MaxOAT: 65, MinSupply: 180, MaxSupply: 220,
		PrimaryValveRatio: 0.6, HighTempSafety: 165,
		ValvePID: pid.Params{Kp: 100, Ki: 0, Kd: 0, OutputMin: 0, OutputMax: 100, Enabled: true},
	}
	state := &pid.State{}
	result := RunSteamBundle(20, 100, settings, state, 1) // large error drives output to max
	if result.PrimaryValvePosition != 100 {
		t.Fatalf("expected primary valve fully open once total demand exceeds its capacity, got %v", result.PrimaryValvePosition)
	}
	if result.SecondaryValvePosition <= 0 {
		t.Fatalf("expected secondary valve to pick up remaining demand, got %v", result.SecondaryValvePosition)
	}
}

package algorithms

import (
	"testing"

	"nrgchamp/equipment-control/internal/model"
)

// Scenario 1: comfort-boiler OAR.
func TestComfortBoilerOARAndFiring(t *testing.T) {
	settings := ComfortBoilerSettings{
		Enabled: true, MinOAT: 30, MaxOAT: 75, MinSupply: 80, MaxSupply: 155, Deadband: 5,
	}
	state := &model.HysteresisState{}
	result := RunBoilerComfort(30, 140, settings, state)
	if result.WaterTempSetpoint != 155 {
		t.Fatalf("expected setpoint 155, got %v", result.WaterTempSetpoint)
	}
	if result.Firing != 1 || !result.UnitEnable {
		t.Fatalf("expected firing=1 unitEnable=true, got %+v", result)
	}
}

// Scenario 2: comfort-boiler lockout above maxOAT.
func TestComfortBoilerLockout(t *testing.T) {
	settings := ComfortBoilerSettings{
		Enabled: true, MinOAT: 30, MaxOAT: 75, MinSupply: 80, MaxSupply: 155, Deadband: 5,
	}
	state := &model.HysteresisState{}
	result := RunBoilerComfort(80, 999, settings, state)
	if result.UnitEnable || result.Firing != 0 {
		t.Fatalf("expected lockout with unitEnable=false firing=0, got %+v", result)
	}
}

func TestDomesticBoilerHighLimitCutoff(t *testing.T) {
	settings := DomesticBoilerSettings{Enabled: true, Setpoint: 135, Deadband: 5, HighLimit: 170}
	state := &model.HysteresisState{IsOn: true}
	result := RunBoilerDomestic(172, settings, state)
	if result.Firing != 0 {
		t.Fatalf("expected firing=0 above high limit, got %+v", result)
	}
	if state.IsOn {
		t.Fatalf("expected state to latch off above high limit")
	}
}

func TestDomesticBoilerDeadband(t *testing.T) {
	settings := DomesticBoilerSettings{Enabled: true, Setpoint: 135, Deadband: 5, HighLimit: 170}
	state := &model.HysteresisState{}
	result := RunBoilerDomestic(125, settings, state) // below setpoint-deadband(130)
	if result.Firing != 1 {
		t.Fatalf("expected firing=1 below deadband floor, got %+v", result)
	}
	result = RunBoilerDomestic(132, settings, state) // inside deadband, stays on
	if result.Firing != 1 {
		t.Fatalf("expected firing to remain 1 inside the deadband, got %+v", result)
	}
	result = RunBoilerDomestic(141, settings, state) // above setpoint+deadband(140)
	if result.Firing != 0 {
		t.Fatalf("expected firing=0 above deadband ceiling, got %+v", result)
	}
}

func TestBoilerVariantsNeverCallEachOther(t *testing.T) {
	// RunBoilerDomestic and RunBoilerComfort are independently callable
	// with no shared mutable package state — this test documents that
	// invariant by calling them back-to-back and checking neither
	// result leaks into the other.
	dState := &model.HysteresisState{}
	cState := &model.HysteresisState{}
	d := RunBoilerDomestic(125, DomesticBoilerSettings{Enabled: true, Setpoint: 135, Deadband: 5, HighLimit: 170}, dState)
	c := RunBoilerComfort(30, 140, ComfortBoilerSettings{Enabled: true, MinOAT: 30, MaxOAT: 75, MinSupply: 80, MaxSupply: 155, Deadband: 5}, cState)
	if d.WaterTempSetpoint == c.WaterTempSetpoint && d.WaterTempSetpoint == 0 {
		t.Fatalf("expected both variants to compute independent setpoints")
	}
}

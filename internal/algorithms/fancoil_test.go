package algorithms

import (
	"testing"
	"time"

	"nrgchamp/equipment-control/internal/model"
	"nrgchamp/equipment-control/internal/pid"
	"nrgchamp/equipment-control/internal/schedule"
)

func TestFanCoilDisabledYieldsZeroOutputs(t *testing.T) {
	state := &FanCoilState{}
	settings := FanCoilSettings{Enabled: false, Setpoint: 70}
	result := RunFanCoil(model.NewMetricsSnapshot(), settings, 68, state, time.Now(), 1)
	if result.UnitEnable || result.FanEnabled {
		t.Fatalf("expected disabled unit to produce no enable flags, got %+v", result)
	}
}

func TestFanCoilManualActuatorsPassThrough(t *testing.T) {
	state := &FanCoilState{}
	settings := FanCoilSettings{
		Enabled: true, Mode: "auto", Setpoint: 70,
		HeatingActuatorMode: "manual", HeatingActuatorValue: 42,
		CoolingActuatorMode: "manual", CoolingActuatorValue: 17,
		OutdoorDamperMode: "manual", OutdoorDamperPosition: 10,
		Occupancy: schedule.DefaultWeekly(time.UTC),
	}
	result := RunFanCoil(model.NewMetricsSnapshot(), settings, 68, state, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), 1)
	if result.HeatingValvePosition != 42 || result.CoolingValvePosition != 17 {
		t.Fatalf("expected manual actuator values to pass through, got %+v", result)
	}
	if result.OutdoorDamperPosition != 10 {
		t.Fatalf("expected manual damper position to pass through, got %v", result.OutdoorDamperPosition)
	}
}

func TestFanCoilFanOffWhenUnoccupied(t *testing.T) {
	state := &FanCoilState{}
	var empty schedule.Weekly
	empty.Location = time.UTC
	settings := FanCoilSettings{
		Enabled: true, Mode: "auto", Setpoint: 70,
		HeatingPID: pid.Params{Kp: 5, OutputMin: 0, OutputMax: 100, ReverseActing: true, Enabled: true},
		CoolingPID: pid.Params{Kp: 5, OutputMin: 0, OutputMax: 100, Enabled: true},
		Occupancy: empty, // no windows configured anywhere: always unoccupied
	}
	result := RunFanCoil(model.NewMetricsSnapshot(), settings, 68, state, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), 1)
	if result.FanEnabled {
		t.Fatalf("expected fan disabled while unoccupied")
	}
	if result.FanSpeed != "off" {
		t.Fatalf("expected fan speed off while unoccupied, got %v", result.FanSpeed)
	}
}

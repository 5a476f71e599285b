package algorithms

import (
	"testing"
	"time"

	"nrgchamp/equipment-control/internal/model"
)

// Scenario 6: geothermal staging.
func TestGeothermalStagesUpAndDown(t *testing.T) {
	settings := GeothermalSettings{Setpoint: 45, Deadband: 1.75, StageIncrement: 2.0}
	state := &model.GeothermalState{}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	readings := []float64{47, 49, 51, 53}
	expectedStages := []int{1, 2, 3, 4}
	now := base
	for i, loopTemp := range readings {
		now = now.Add(geothermalMinRuntime + time.Second)
		RunGeothermal(loopTemp, settings, state, now)
		if state.ActiveStages != expectedStages[i] {
			t.Fatalf("after loopTemp=%v: expected activeStages=%d, got %d", loopTemp, expectedStages[i], state.ActiveStages)
		}
	}

	now = now.Add(geothermalMinRuntime + time.Second)
	RunGeothermal(46, settings, state, now)
	if state.ActiveStages != 1 {
		t.Fatalf("expected stages to fall to 1 after deadband, got %d", state.ActiveStages)
	}
}

func TestGeothermalRespectsMinRuntime(t *testing.T) {
	settings := GeothermalSettings{Setpoint: 45, Deadband: 1.75, StageIncrement: 2.0}
	state := &model.GeothermalState{}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	RunGeothermal(47, settings, state, base.Add(geothermalMinRuntime+time.Second))
	if state.ActiveStages != 1 {
		t.Fatalf("expected first stage-up, got %d", state.ActiveStages)
	}
	changedAt := state.StageChangedAt
	RunGeothermal(100, settings, state, changedAt.Add(time.Second)) // well within min runtime
	if state.ActiveStages != 1 {
		t.Fatalf("expected stage count to hold during min-runtime window, got %d", state.ActiveStages)
	}
}

// TestGeothermalRandomizesStartOffsetOnFreshStart asserts a unit
// starting a run from idle persists a freshly picked rotation offset
// in state rather than always starting from stage 1, equalizing wear
// across physical stages over many start cycles.
func TestGeothermalRandomizesStartOffsetOnFreshStart(t *testing.T) {
	settings := GeothermalSettings{Setpoint: 45, Deadband: 1.75, StageIncrement: 2.0}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seenOffsets := map[int]bool{}
	for i := 0; i < 50; i++ {
		state := &model.GeothermalState{}
		RunGeothermal(47, settings, state, base.Add(geothermalMinRuntime+time.Second))
		if state.ActiveStages != 1 {
			t.Fatalf("expected first stage-up, got %d", state.ActiveStages)
		}
		if state.StartOffset < 0 || state.StartOffset >= geothermalMaxStages {
			t.Fatalf("expected StartOffset in [0,%d), got %d", geothermalMaxStages, state.StartOffset)
		}
		seenOffsets[state.StartOffset] = true
	}
	if len(seenOffsets) < 2 {
		t.Fatalf("expected randomized start offsets across fresh starts, only ever saw %v", seenOffsets)
	}
}

// TestGeothermalStartOffsetHoldsWhileActive asserts the rotation offset
// doesn't change again until the unit returns to idle and starts a new
// run — a unit staying active has a stable "first" stage for the
// duration of that run.
func TestGeothermalStartOffsetHoldsWhileActive(t *testing.T) {
	settings := GeothermalSettings{Setpoint: 45, Deadband: 1.75, StageIncrement: 2.0}
	state := &model.GeothermalState{}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	now := base.Add(geothermalMinRuntime + time.Second)
	RunGeothermal(47, settings, state, now)
	firstOffset := state.StartOffset

	now = now.Add(geothermalMinRuntime + time.Second)
	RunGeothermal(49, settings, state, now)
	if state.ActiveStages != 2 {
		t.Fatalf("expected stage-up to 2, got %d", state.ActiveStages)
	}
	if state.StartOffset != firstOffset {
		t.Fatalf("expected StartOffset to hold at %d across a stage-up within the same run, got %d", firstOffset, state.StartOffset)
	}
}

func TestGeothermalStageRotationEquallyDistributes(t *testing.T) {
	settings := GeothermalSettings{Setpoint: 45, Deadband: 1.75, StageIncrement: 2.0, StartOffset: 2}
	state := &model.GeothermalState{ActiveStages: 2, StageChangedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	result := RunGeothermal(48, settings, state, state.StageChangedAt.Add(time.Second)) // within min-runtime, stage count holds
	enabledCount := 0
	for _, v := range []bool{result.Stage1Enabled, result.Stage2Enabled, result.Stage3Enabled, result.Stage4Enabled} {
		if v {
			enabledCount++
		}
	}
	if enabledCount != 2 {
		t.Fatalf("expected exactly 2 stages enabled regardless of offset, got %d", enabledCount)
	}
}

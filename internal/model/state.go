package model

import "time"

// PIDState is the mutable carry-over for one PID loop, keyed by
// (locationId, equipmentId, loopName) in internal/statestore.
type PIDState struct {
	Integral      float64
	PreviousError float64
	LastOutput    float64
}

// HysteresisState is the on/off memory for a hysteresis-controlled
// loop (pumps, geothermal staging).
type HysteresisState struct {
	IsOn bool
}

// GeothermalState additionally tracks active stage count, the
// per-stage minimum-runtime clock, and the randomized stage rotation
// offset picked the last time the unit started a run from idle, so
// wear is equalized across physical stages over many start cycles.
type GeothermalState struct {
	ActiveStages   int
	StageChangedAt time.Time
	StartOffset    int
}

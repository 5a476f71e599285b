package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"nrgchamp/equipment-control/internal/model"
)

// testStore wires a Store around a miniredis instance, grounded on the
// retrieval pack's go-redis-work-queue usage of alicebob/miniredis/v2
// for in-process Redis tests without a real server.
func testStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)

	s, err := New("redis://" + mr.Addr() + "/0")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPIDStateLazyInitAndSharedPointer(t *testing.T) {
	s := testStore(t)
	st := s.PIDState("loc-1", "fc-1", "heating")
	st.Integral = 42

	again := s.PIDState("loc-1", "fc-1", "heating")
	if again.Integral != 42 {
		t.Fatalf("expected same PID state pointer across calls, got %+v", again)
	}

	other := s.PIDState("loc-1", "fc-1", "cooling")
	if other.Integral != 0 {
		t.Fatalf("expected distinct state for a different loop name, got %+v", other)
	}
}

func TestLeadLagRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec, err := s.GetLeadLag(ctx, "grp-missing")
	if err != nil || rec.LeadID != "" {
		t.Fatalf("expected zero-value record for missing key, got %+v, err=%v", rec, err)
	}

	want := LeadLagRecord{LeadID: "pump-1", FailoverCount: 1, RuntimeHoursByMember: map[string]float64{"pump-1": 10}}
	if err := s.SetLeadLag(ctx, "grp-1", want); err != nil {
		t.Fatalf("SetLeadLag: %v", err)
	}
	got, err := s.GetLeadLag(ctx, "grp-1")
	if err != nil {
		t.Fatalf("GetLeadLag: %v", err)
	}
	if got.LeadID != want.LeadID || got.FailoverCount != want.FailoverCount {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestCompareAndSwapLeadAppliesMutation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	result, err := s.CompareAndSwapLead(ctx, "grp-2", func(current LeadLagRecord) LeadLagRecord {
		current.LeadID = "pump-2"
		current.FailoverCount++
		current.LastFailoverAt = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		return current
	})
	if err != nil {
		t.Fatalf("CompareAndSwapLead: %v", err)
	}
	if result.LeadID != "pump-2" || result.FailoverCount != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	persisted, err := s.GetLeadLag(ctx, "grp-2")
	if err != nil {
		t.Fatalf("GetLeadLag: %v", err)
	}
	if persisted.LeadID != "pump-2" {
		t.Fatalf("expected CAS write to persist, got %+v", persisted)
	}
}

func TestSetUIStateAppendsAndTrimsHistory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for i := 0; i < maxCommandHistory+5; i++ {
		entry := model.CommandHistoryEntry{
			Command: "setSetpoint", UserID: "user-1",
			At: time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
		}
		if err := s.SetUIState(ctx, "eq-1", entry, model.Settings{"setpoint": float64(70 + i)}); err != nil {
			t.Fatalf("SetUIState iteration %d: %v", i, err)
		}
	}

	st, err := s.GetUIState(ctx, "eq-1")
	if err != nil {
		t.Fatalf("GetUIState: %v", err)
	}
	if len(st.CommandHistory) != maxCommandHistory {
		t.Fatalf("expected history trimmed to %d entries, got %d", maxCommandHistory, len(st.CommandHistory))
	}
	if st.Command != "setSetpoint" {
		t.Fatalf("expected last command to persist, got %q", st.Command)
	}
}

func TestGetUIStateMissingReturnsZeroValue(t *testing.T) {
	s := testStore(t)
	st, err := s.GetUIState(context.Background(), "eq-missing")
	if err != nil {
		t.Fatalf("GetUIState: %v", err)
	}
	if st.Command != "" || len(st.CommandHistory) != 0 {
		t.Fatalf("expected zero value, got %+v", st)
	}
}

func TestHysteresisStateLazyInitAndSharedPointer(t *testing.T) {
	s := testStore(t)
	st := s.HysteresisState("loc-1", "pump-1")
	st.IsOn = true

	again := s.HysteresisState("loc-1", "pump-1")
	if !again.IsOn {
		t.Fatalf("expected same hysteresis state pointer across calls, got %+v", again)
	}
	other := s.HysteresisState("loc-1", "pump-2")
	if other.IsOn {
		t.Fatalf("expected a distinct equipment to start with its own zero-value state")
	}
}

func TestGeothermalStateLazyInitAndSharedPointer(t *testing.T) {
	s := testStore(t)
	st := s.GeothermalState("loc-1", "geo-1")
	st.ActiveStages = 3

	again := s.GeothermalState("loc-1", "geo-1")
	if again.ActiveStages != 3 {
		t.Fatalf("expected same geothermal state pointer across calls, got %+v", again)
	}
}

package leadlag

import (
	"context"
	"testing"
	"time"

	"nrgchamp/equipment-control/internal/model"
	"nrgchamp/equipment-control/internal/statestore"
)

// fakeDocs is an in-memory stand-in for internal/docstore, grounded on
// the same GroupSource surface internal/docstore.Store exposes.
type fakeDocs struct {
	equipment map[string]model.Equipment
	groups    map[string]model.EquipmentGroup
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{equipment: map[string]model.Equipment{}, groups: map[string]model.EquipmentGroup{}}
}

func (f *fakeDocs) GetEquipment(ctx context.Context, id string) (model.Equipment, error) {
	return f.equipment[id], nil
}

func (f *fakeDocs) GetGroup(ctx context.Context, id string) (model.EquipmentGroup, error) {
	return f.groups[id], nil
}

func (f *fakeDocs) UpsertGroup(ctx context.Context, g model.EquipmentGroup) error {
	f.groups[g.ID] = g
	return nil
}

func testManager(t *testing.T) (*Manager, *fakeDocs, *statestore.Store) {
	t.Helper()
	docs := newFakeDocs()
	ss := testStatestore(t)
	return New(docs, ss, nil), docs, ss
}

func TestResolveUngroupedEquipmentIsAlwaysLead(t *testing.T) {
	m, docs, _ := testManager(t)
	docs.equipment["fc-1"] = model.Equipment{ID: "fc-1"}

	res, err := m.Resolve(context.Background(), "fc-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.IsLead || res.GroupID != "" {
		t.Fatalf("expected ungrouped lead resolution, got %+v", res)
	}
}

func TestResolveGroupedEquipmentReportsLagSiblings(t *testing.T) {
	m, docs, _ := testManager(t)
	docs.equipment["pump-1"] = model.Equipment{ID: "pump-1", GroupID: "grp-1"}
	docs.groups["grp-1"] = model.EquipmentGroup{ID: "grp-1", LeadID: "pump-1", MemberIDs: []string{"pump-1", "pump-2"}}

	res, err := m.Resolve(context.Background(), "pump-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.IsLead || len(res.LagIDs) != 1 || res.LagIDs[0] != "pump-2" {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestCheckHealthDetectsFaultAndLowAmps(t *testing.T) {
	m, _, _ := testManager(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	faulted := model.NewMetricsSnapshot()
	faulted.Values["fault"] = "overtemp"
	if r := m.CheckHealth("grp-a", model.KindPumpCW, faulted, time.Time{}, now); r.OK {
		t.Fatalf("expected fault to be unhealthy")
	}

	lowAmps := model.NewMetricsSnapshot()
	lowAmps.Values["amps"] = 0.2
	commandedOnAt := now.Add(-2 * time.Minute)
	if r := m.CheckHealth("grp-b", model.KindPumpCW, lowAmps, commandedOnAt, now); r.OK {
		t.Fatalf("expected low amps past settling period to be unhealthy")
	}

	withinSettling := m.CheckHealth("grp-c", model.KindPumpCW, lowAmps, now.Add(-5*time.Second), now)
	if !withinSettling.OK {
		t.Fatalf("expected low amps within settling period to be tolerated")
	}
}

func TestCheckHealthTripsBoilerOverSafetyLimitAt172(t *testing.T) {
	m, _, _ := testManager(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	overLimit := model.NewMetricsSnapshot()
	overLimit.Values[model.FieldWaterSupplyTemperature] = 172.0
	if r := m.CheckHealth("grp-boiler-a", model.KindBoilerComfort, overLimit, time.Time{}, now); r.OK {
		t.Fatalf("expected 172F lead boiler supply temp to trip the 170F safety limit")
	}

	underLimit := model.NewMetricsSnapshot()
	underLimit.Values[model.FieldWaterSupplyTemperature] = 168.0
	if r := m.CheckHealth("grp-boiler-b", model.KindBoilerComfort, underLimit, time.Time{}, now); !r.OK {
		t.Fatalf("expected 168F lead boiler supply temp to stay under the safety limit")
	}
}

func TestCheckHealthThrottlesToOncePer30Seconds(t *testing.T) {
	m, _, _ := testManager(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	faulted := model.NewMetricsSnapshot()
	faulted.Values["fault"] = "overtemp"
	first := m.CheckHealth("grp-throttle", model.KindPumpCW, faulted, time.Time{}, now)
	if first.OK {
		t.Fatalf("expected first check to catch the fault")
	}

	healthy := model.NewMetricsSnapshot()
	second := m.CheckHealth("grp-throttle", model.KindPumpCW, healthy, time.Time{}, now.Add(10*time.Second))
	if !second.OK {
		t.Fatalf("expected throttled call within 30s to report OK without re-evaluating")
	}
}

func TestMaybeFailoverRotatesToNextMemberAndWritesLedgerEvent(t *testing.T) {
	m, docs, ss := testManager(t)
	group := model.EquipmentGroup{
		ID: "grp-1", LeadID: "pump-1", MemberIDs: []string{"pump-1", "pump-2"},
		AutoFailover: true,
	}
	docs.groups[group.ID] = group
	ss.SetLeadLag(context.Background(), group.ID, statestore.LeadLagRecord{LeadID: "pump-1"})

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := m.MaybeFailover(context.Background(), group, now, HealthResult{Reason: "amps too low"})
	if err != nil {
		t.Fatalf("MaybeFailover: %v", err)
	}

	rec, _ := ss.GetLeadLag(context.Background(), group.ID)
	if rec.LeadID != "pump-2" || rec.FailoverCount != 1 {
		t.Fatalf("expected failover to pump-2, got %+v", rec)
	}
	if docs.groups[group.ID].LeadID != "pump-2" {
		t.Fatalf("expected document store group to reflect new lead")
	}
}

func TestMaybeRotateNoopsWithoutLeadLagEnabled(t *testing.T) {
	m, docs, ss := testManager(t)
	group := model.EquipmentGroup{ID: "grp-2", LeadID: "boiler-1", MemberIDs: []string{"boiler-1", "boiler-2"}, UseLeadLag: false}
	docs.groups[group.ID] = group

	if err := m.MaybeRotate(context.Background(), group, time.Now()); err != nil {
		t.Fatalf("MaybeRotate: %v", err)
	}
	rec, _ := ss.GetLeadLag(context.Background(), group.ID)
	if rec.LeadID != "" {
		t.Fatalf("expected no rotation to have occurred, got %+v", rec)
	}
}

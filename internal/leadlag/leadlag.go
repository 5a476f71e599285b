// Package leadlag implements the Lead/Lag & Group Manager (C6):
// resolving which equipment is lead, evaluating kind-dependent health
// signals, and rotating or failing over a group's lead member,
// throttled and logged to the time-series store's event ledger.
//
// Grounded on a per-key golang.org/x/time/rate.Limiter behind a
// mutex-guarded map, as in arx-os-arxos's
// core/internal/middleware/rate_limiter.go, for the health-check and
// rotation throttles.
package leadlag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"nrgchamp/equipment-control/internal/model"
	"nrgchamp/equipment-control/internal/statestore"
	"nrgchamp/equipment-control/internal/timeseries"
)

const (
	healthCheckInterval   = 30 * time.Second
	rotationCheckInterval = 5 * time.Minute
	// ampsSettlingPeriod is how long a pump/chiller has to be commanded
	// on before a sub-1A reading is treated as a real fault rather than
	// start-up transient.
	ampsSettlingPeriod = 60 * time.Second
	minAmpsWhenRunning = 1.0
	// boilerSupplyTempSafetyLimit is the supply temperature (°F) at or
	// above which a boiler or steam bundle is considered unsafe to keep
	// leading, triggering failover to lag.
	boilerSupplyTempSafetyLimit = 170.0
)

// GroupSource is the subset of internal/docstore's Store that C6 needs
// to resolve group membership and equipment-to-group mapping.
type GroupSource interface {
	GetEquipment(ctx context.Context, id string) (model.Equipment, error)
	GetGroup(ctx context.Context, id string) (model.EquipmentGroup, error)
	UpsertGroup(ctx context.Context, g model.EquipmentGroup) error
}

// HealthResult is the outcome of one checkHealth call.
type HealthResult struct {
	OK     bool
	Reason string
}

// Manager is the Lead/Lag & Group Manager.
type Manager struct {
	docs  GroupSource
	state *statestore.Store
	ts    *timeseries.Client

	mu               sync.Mutex
	healthLimiters   map[string]*rate.Limiter
	rotationLimiters map[string]*rate.Limiter
}

// New wires a Manager over the document store, state store, and
// time-series client it coordinates across.
func New(docs GroupSource, state *statestore.Store, ts *timeseries.Client) *Manager {
	return &Manager{
		docs:             docs,
		state:            state,
		ts:               ts,
		healthLimiters:   make(map[string]*rate.Limiter),
		rotationLimiters: make(map[string]*rate.Limiter),
	}
}

func (m *Manager) limiterFor(pool map[string]*rate.Limiter, key string, interval time.Duration) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := pool[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(interval), 1)
		pool[key] = l
	}
	return l
}

// Resolve reports where one equipment id stands within its group: its
// group id, whether it is currently lead, and the ids of its lag
// siblings. Equipment with no group returns a zero-value resolution
// with IsLead true (ungrouped equipment always acts as its own lead).
func (m *Manager) Resolve(ctx context.Context, equipmentID string) (model.LeadLagResolution, error) {
	eq, err := m.docs.GetEquipment(ctx, equipmentID)
	if err != nil {
		return model.LeadLagResolution{}, fmt.Errorf("leadlag: resolve %s: %w", equipmentID, err)
	}
	if eq.GroupID == "" {
		return model.LeadLagResolution{IsLead: true}, nil
	}

	group, err := m.docs.GetGroup(ctx, eq.GroupID)
	if err != nil {
		return model.LeadLagResolution{}, fmt.Errorf("leadlag: resolve group %s: %w", eq.GroupID, err)
	}

	rec, err := m.state.GetLeadLag(ctx, group.ID)
	if err != nil {
		return model.LeadLagResolution{}, err
	}
	leadID := rec.LeadID
	if leadID == "" {
		leadID = group.LeadID
	}

	var lagIDs []string
	for _, id := range group.MemberIDs {
		if id != leadID {
			lagIDs = append(lagIDs, id)
		}
	}
	return model.LeadLagResolution{GroupID: group.ID, IsLead: leadID == equipmentID, LagIDs: lagIDs}, nil
}

// CheckHealth evaluates the kind-dependent health signals: supply
// temperature over a safety limit, freezestat, a fault/alarm
// string field, and commanded-on-but-low-amps after a settling period.
// Calls beyond the 30-second-per-group throttle return a healthy result
// (OK true) without re-evaluating; no previous result is cached.
func (m *Manager) CheckHealth(groupID string, kind model.EquipmentKind, metrics model.MetricsSnapshot, commandedOnAt time.Time, now time.Time) HealthResult {
	limiter := m.limiterFor(m.healthLimiters, groupID, healthCheckInterval)
	if !limiter.AllowN(now, 1) {
		return HealthResult{OK: true}
	}

	if alarm, ok := metrics.String("fault"); ok && alarm != "" {
		return HealthResult{Reason: "fault: " + alarm}
	}
	if freeze, ok := metrics.Bool("freezestat"); ok && freeze {
		return HealthResult{Reason: "freezestat tripped"}
	}

	switch kind {
	case model.KindBoilerComfort, model.KindBoilerDomestic, model.KindSteamBundle:
		if temp, ok := metrics.Float(model.FieldWaterSupplyTemperature); ok && temp >= boilerSupplyTempSafetyLimit {
			return HealthResult{Reason: fmt.Sprintf("supply temperature %.1f over safety limit", temp)}
		}
	case model.KindPumpCW, model.KindPumpHW, model.KindChiller:
		if !commandedOnAt.IsZero() && now.Sub(commandedOnAt) >= ampsSettlingPeriod {
			if amps, ok := metrics.Float("amps"); ok && amps < minAmpsWhenRunning {
				return HealthResult{Reason: fmt.Sprintf("commanded on, amps %.2f below minimum", amps)}
			}
		}
	}
	return HealthResult{OK: true}
}

// MaybeRotate swaps the lead to the next member in MemberIDs order if
// the group's changeover interval has elapsed, throttled to once per
// 5 minutes per group. A no-op group (UseLeadLag false, or a single
// member) is never rotated.
func (m *Manager) MaybeRotate(ctx context.Context, group model.EquipmentGroup, now time.Time) error {
	if !group.UseLeadLag || len(group.MemberIDs) < 2 {
		return nil
	}
	limiter := m.limiterFor(m.rotationLimiters, group.ID, rotationCheckInterval)
	if !limiter.AllowN(now, 1) {
		return nil
	}

	rec, err := m.state.GetLeadLag(ctx, group.ID)
	if err != nil {
		return err
	}
	lastChangeover := rec.LastChangeoverAt
	if lastChangeover.IsZero() {
		lastChangeover = group.LastChangeoverAt
	}
	interval := time.Duration(group.ChangeoverIntervalDays) * 24 * time.Hour
	if interval <= 0 || !lastChangeover.IsZero() && now.Sub(lastChangeover) < interval {
		return nil
	}

	currentLead := rec.LeadID
	if currentLead == "" {
		currentLead = group.LeadID
	}
	nextLead := nextMember(group.MemberIDs, currentLead)
	if nextLead == currentLead {
		return nil
	}

	return m.applyLeadChange(ctx, group, nextLead, "scheduled rotation", "rotation", now)
}

// MaybeFailover swaps the lead to the next member in MemberIDs order
// when checkHealth reports the current lead unhealthy and the group
// allows automatic failover. The new lead's own health is not checked.
func (m *Manager) MaybeFailover(ctx context.Context, group model.EquipmentGroup, now time.Time, health HealthResult) error {
	if health.OK || !group.AutoFailover || len(group.MemberIDs) < 2 {
		return nil
	}

	rec, err := m.state.GetLeadLag(ctx, group.ID)
	if err != nil {
		return err
	}
	currentLead := rec.LeadID
	if currentLead == "" {
		currentLead = group.LeadID
	}
	nextLead := nextMember(group.MemberIDs, currentLead)
	if nextLead == currentLead {
		return nil
	}

	return m.applyLeadChange(ctx, group, nextLead, health.Reason, "failover", now)
}

func (m *Manager) applyLeadChange(ctx context.Context, group model.EquipmentGroup, nextLead, reason, eventType string, now time.Time) error {
	_, err := m.state.CompareAndSwapLead(ctx, group.ID, func(current statestore.LeadLagRecord) statestore.LeadLagRecord {
		current.LeadID = nextLead
		if eventType == "rotation" {
			current.LastChangeoverAt = now
		} else {
			current.LastFailoverAt = now
			current.FailoverCount++
		}
		return current
	})
	if err != nil {
		return fmt.Errorf("leadlag: apply lead change for group %s: %w", group.ID, err)
	}

	group.LeadID = nextLead
	if err := m.docs.UpsertGroup(ctx, group); err != nil {
		return fmt.Errorf("leadlag: persist new lead for group %s: %w", group.ID, err)
	}

	if m.ts == nil {
		return nil
	}
	return m.ts.WriteLedgerEvent(ctx, model.LedgerEvent{
		GroupID:   group.ID,
		NewLeadID: nextLead,
		Reason:    reason,
		EventType: eventType,
		Timestamp: now,
	})
}

// nextMember returns the member after current in MemberIDs, wrapping
// around. If current is not found, the first member is returned.
func nextMember(members []string, current string) string {
	if len(members) == 0 {
		return current
	}
	for i, id := range members {
		if id == current {
			return members[(i+1)%len(members)]
		}
	}
	return members[0]
}

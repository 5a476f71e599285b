package docstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"nrgchamp/equipment-control/internal/model"
)

// groupRow is the flat sqlx scan target for the equipment_groups
// table. model.EquipmentGroup carries several fields with db:"-"
// (MemberIDs, RuntimeHoursByMember, ...) because they are packed into
// one JSONB `state` column here rather than given their own columns —
// group rotation state changes shape often enough that a single blob
// beats a migration per new field, matching the same tradeoff
// Equipment.Controls makes.
type groupRow struct {
	ID                     string    `db:"id"`
	Kind                   string    `db:"kind"`
	LeadID                 string    `db:"lead_id"`
	UseLeadLag             bool      `db:"use_lead_lag"`
	AutoFailover           bool      `db:"auto_failover"`
	ChangeoverIntervalDays int       `db:"changeover_interval_days"`
	MemberIDs              model.JSONMap `db:"member_ids"`
	State                  model.JSONMap `db:"state"`
	CreatedAt              time.Time `db:"created_at"`
	UpdatedAt              time.Time `db:"updated_at"`
}

func (r groupRow) toModel() model.EquipmentGroup {
	g := model.EquipmentGroup{
		ID:                     r.ID,
		Kind:                   model.EquipmentKind(r.Kind),
		LeadID:                 r.LeadID,
		UseLeadLag:             r.UseLeadLag,
		AutoFailover:           r.AutoFailover,
		ChangeoverIntervalDays: r.ChangeoverIntervalDays,
		RuntimeHoursByMember:   map[string]float64{},
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
	for k := range r.MemberIDs {
		g.MemberIDs = append(g.MemberIDs, k)
	}
	if v, ok := r.State["lastChangeoverAt"]; ok {
		if s, ok := v.(string); ok {
			g.LastChangeoverAt, _ = time.Parse(time.RFC3339, s)
		}
	}
	if v, ok := r.State["lastFailoverAt"]; ok {
		if s, ok := v.(string); ok {
			g.LastFailoverAt, _ = time.Parse(time.RFC3339, s)
		}
	}
	if v, ok := r.State["failoverCount"].(float64); ok {
		g.FailoverCount = int(v)
	}
	if rh, ok := r.State["runtimeHoursByMember"].(map[string]any); ok {
		for k, v := range rh {
			if f, ok := v.(float64); ok {
				g.RuntimeHoursByMember[k] = f
			}
		}
	}
	return g
}

func fromModel(g model.EquipmentGroup) groupRow {
	members := model.JSONMap{}
	for _, id := range g.MemberIDs {
		members[id] = true
	}
	state := model.JSONMap{
		"failoverCount": float64(g.FailoverCount),
	}
	if !g.LastChangeoverAt.IsZero() {
		state["lastChangeoverAt"] = g.LastChangeoverAt.Format(time.RFC3339)
	}
	if !g.LastFailoverAt.IsZero() {
		state["lastFailoverAt"] = g.LastFailoverAt.Format(time.RFC3339)
	}
	if len(g.RuntimeHoursByMember) > 0 {
		rh := make(map[string]any, len(g.RuntimeHoursByMember))
		for k, v := range g.RuntimeHoursByMember {
			rh[k] = v
		}
		state["runtimeHoursByMember"] = rh
	}
	return groupRow{
		ID: g.ID, Kind: string(g.Kind), LeadID: g.LeadID, UseLeadLag: g.UseLeadLag,
		AutoFailover: g.AutoFailover, ChangeoverIntervalDays: g.ChangeoverIntervalDays,
		MemberIDs: members, State: state,
	}
}

// GetGroup reads one equipment group, serving from the explicitly
// invalidated group cache when present.
func (s *Store) GetGroup(ctx context.Context, id string) (model.EquipmentGroup, error) {
	if g, ok := s.groupCache.get(id); ok {
		return g, nil
	}
	const q = `SELECT id, kind, lead_id, use_lead_lag, auto_failover, changeover_interval_days, member_ids, state, created_at, updated_at
	           FROM equipment_groups WHERE id = $1`
	var row groupRow
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.EquipmentGroup{}, nil
		}
		return model.EquipmentGroup{}, err
	}
	g := row.toModel()
	s.groupCache.set(id, g)
	return g, nil
}

// ListGroups returns every equipment group.
func (s *Store) ListGroups(ctx context.Context) ([]model.EquipmentGroup, error) {
	const q = `SELECT id, kind, lead_id, use_lead_lag, auto_failover, changeover_interval_days, member_ids, state, created_at, updated_at
	           FROM equipment_groups ORDER BY id`
	var rows []groupRow
	if err := s.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	out := make([]model.EquipmentGroup, 0, len(rows))
	for _, r := range rows {
		g := r.toModel()
		s.groupCache.set(g.ID, g)
		out = append(out, g)
	}
	return out, nil
}

// UpsertGroup writes a full group record and invalidates the cache
// entry — called whenever membership or lead changes, an explicit
// invalidation rather than a TTL expiry.
func (s *Store) UpsertGroup(ctx context.Context, g model.EquipmentGroup) error {
	row := fromModel(g)
	const q = `
		INSERT INTO equipment_groups (id, kind, lead_id, use_lead_lag, auto_failover, changeover_interval_days, member_ids, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind, lead_id = EXCLUDED.lead_id, use_lead_lag = EXCLUDED.use_lead_lag,
			auto_failover = EXCLUDED.auto_failover, changeover_interval_days = EXCLUDED.changeover_interval_days,
			member_ids = EXCLUDED.member_ids, state = EXCLUDED.state, updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, q, row.ID, row.Kind, row.LeadID, row.UseLeadLag,
		row.AutoFailover, row.ChangeoverIntervalDays, row.MemberIDs, row.State); err != nil {
		return err
	}
	s.InvalidateGroupCache(g.ID)
	return nil
}

// InvalidateGroupCache drops the cached entry for one group
// immediately, called by internal/leadlag after a CAS'd lead change.
func (s *Store) InvalidateGroupCache(id string) {
	s.groupCache.invalidate(id)
}

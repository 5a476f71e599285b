package docstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"nrgchamp/equipment-control/internal/model"
)

// legacyPlaceholderLocation and legacyPlaceholderKind preserve the
// legacy fallback behavior verbatim: an equipment id seen in the
// time-series store but absent from the document store gets a
// minimal placeholder with these defaults.
const (
	legacyPlaceholderLocation = "4"
	legacyPlaceholderKind     = model.KindFanCoil
)

// GetEquipment reads one equipment record, serving from the 30-second
// cache when fresh. If the id is unknown, it either returns
// model.ErrMissingEquipment (Options.StrictEquipmentLookup) or
// synthesizes the legacy placeholder and queues it for asynchronous
// materialization.
func (s *Store) GetEquipment(ctx context.Context, id string) (model.Equipment, error) {
	if eq, ok := s.equipmentCache.get(id); ok {
		return eq, nil
	}

	const q = `SELECT id, kind, location_id, name, system, control_enabled, group_id, lead, controls, created_at, updated_at
	           FROM equipment WHERE id = $1`
	var eq model.Equipment
	err := s.db.GetContext(ctx, &eq, q, id)
	if err == nil {
		s.equipmentCache.set(id, eq)
		return eq, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Equipment{}, err
	}

	if s.opt.StrictEquipmentLookup {
		return model.Equipment{}, model.ErrMissingEquipment
	}

	placeholder := model.Equipment{
		ID:             id,
		Kind:           legacyPlaceholderKind,
		LocationID:     legacyPlaceholderLocation,
		Name:           id,
		ControlEnabled: false,
		Controls:       model.JSONMap{},
		Placeholder:    true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	s.equipmentCache.set(id, placeholder)
	s.queuePlaceholder(id)
	return placeholder, nil
}

// ListEquipment returns every equipment record, bypassing the
// per-record cache.
func (s *Store) ListEquipment(ctx context.Context) ([]model.Equipment, error) {
	const q = `SELECT id, kind, location_id, name, system, control_enabled, group_id, lead, controls, created_at, updated_at
	           FROM equipment ORDER BY id`
	var out []model.Equipment
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	for _, eq := range out {
		s.equipmentCache.set(eq.ID, eq)
	}
	return out, nil
}

// UpsertEquipment writes a full equipment record, used by the YAML
// seed loader (seedFromFixture).
func (s *Store) UpsertEquipment(ctx context.Context, eq model.Equipment) error {
	const q = `
		INSERT INTO equipment (id, kind, location_id, name, system, control_enabled, group_id, lead, controls, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind, location_id = EXCLUDED.location_id, name = EXCLUDED.name,
			system = EXCLUDED.system, control_enabled = EXCLUDED.control_enabled,
			group_id = EXCLUDED.group_id, lead = EXCLUDED.lead, controls = EXCLUDED.controls,
			updated_at = NOW()`
	_, err := s.db.ExecContext(ctx, q, eq.ID, eq.Kind, eq.LocationID, eq.Name, eq.System,
		eq.ControlEnabled, eq.GroupID, eq.Lead, eq.Controls)
	if err != nil {
		return err
	}
	s.equipmentCache.invalidate(eq.ID)
	return nil
}

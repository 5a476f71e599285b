package docstore

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"nrgchamp/equipment-control/internal/model"
)

// seedFixture is the YAML shape of a local/dev seed file: a small set
// of sample equipment and groups to upsert into an otherwise-empty
// database, grounded on 99souls-ariadne's runtime.go (os.ReadFile +
// yaml.Unmarshal into a typed config struct).
type seedFixture struct {
	Equipment []seedEquipment `yaml:"equipment"`
	Groups    []seedGroup     `yaml:"groups"`
}

type seedEquipment struct {
	ID             string         `yaml:"id"`
	Kind           string         `yaml:"kind"`
	LocationID     string         `yaml:"locationId"`
	Name           string         `yaml:"name"`
	System         string         `yaml:"system"`
	ControlEnabled bool           `yaml:"controlEnabled"`
	GroupID        string         `yaml:"groupId"`
	Controls       map[string]any `yaml:"controls"`
}

type seedGroup struct {
	ID                     string   `yaml:"id"`
	Kind                   string   `yaml:"kind"`
	MemberIDs              []string `yaml:"memberIds"`
	LeadID                 string   `yaml:"leadId"`
	UseLeadLag             bool     `yaml:"useLeadLag"`
	AutoFailover           bool     `yaml:"autoFailover"`
	ChangeoverIntervalDays int      `yaml:"changeoverIntervalDays"`
}

// seedFromFixture reads path (if it exists) and upserts its sample
// equipment and groups, used to bootstrap a fresh local/dev database
// with something to drive a tick against. A missing file is not an
// error — most environments have a real document store already
// populated and never set SeedFixturePath to an existing path.
func (s *Store) seedFromFixture(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("docstore: read seed fixture %s: %w", path, err)
	}

	var fx seedFixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return fmt.Errorf("docstore: parse seed fixture %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, eq := range fx.Equipment {
		rec := model.Equipment{
			ID:             eq.ID,
			Kind:           model.EquipmentKind(eq.Kind),
			LocationID:     eq.LocationID,
			Name:           eq.Name,
			System:         eq.System,
			ControlEnabled: eq.ControlEnabled,
			GroupID:        eq.GroupID,
			Controls:       model.JSONMap(eq.Controls),
		}
		if rec.Controls == nil {
			rec.Controls = model.JSONMap{}
		}
		if err := s.UpsertEquipment(ctx, rec); err != nil {
			return fmt.Errorf("docstore: seed equipment %s: %w", eq.ID, err)
		}
	}

	for _, g := range fx.Groups {
		rec := model.EquipmentGroup{
			ID:                     g.ID,
			Kind:                   model.EquipmentKind(g.Kind),
			MemberIDs:              g.MemberIDs,
			LeadID:                 g.LeadID,
			UseLeadLag:             g.UseLeadLag,
			AutoFailover:           g.AutoFailover,
			ChangeoverIntervalDays: g.ChangeoverIntervalDays,
			RuntimeHoursByMember:   map[string]float64{},
		}
		if err := s.UpsertGroup(ctx, rec); err != nil {
			return fmt.Errorf("docstore: seed group %s: %w", g.ID, err)
		}
	}

	s.lg.Info("docstore_seeded_from_fixture", "path", path, "equipmentCount", len(fx.Equipment), "groupCount", len(fx.Groups))
	return nil
}

// Package model holds the domain types shared across the control plane:
// equipment records, metrics snapshots, control values, and the command
// tuples that flow from an algorithm invocation out to the time-series
// store.
package model

import "time"

// EquipmentKind enumerates the algorithms the orchestrator knows how to
// dispatch to. It is a closed set — an unrecognized kind fails a job
// with ErrUnknownEquipmentKind rather than falling back to a default.
type EquipmentKind string

const (
	KindFanCoil        EquipmentKind = "fan-coil"
	KindBoilerComfort  EquipmentKind = "boiler-comfort"
	KindBoilerDomestic EquipmentKind = "boiler-domestic"
	KindPumpHW         EquipmentKind = "pump-hw"
	KindPumpCW         EquipmentKind = "pump-cw"
	KindChiller        EquipmentKind = "chiller"
	KindAirHandler     EquipmentKind = "air-handler"
	KindSteamBundle    EquipmentKind = "steam-bundle"
	KindGeothermal     EquipmentKind = "geothermal"
)

// Equipment is a stable, long-lived control target. It is created once
// by the document store and only ever mutated afterward — the control
// core never deletes an equipment record.
type Equipment struct {
	ID             string        `db:"id" json:"id"`
	Kind           EquipmentKind `db:"kind" json:"kind"`
	LocationID     string        `db:"location_id" json:"locationId"`
	Name           string        `db:"name" json:"name"`
	System         string        `db:"system" json:"system,omitempty"`
	ControlEnabled bool          `db:"control_enabled" json:"controlEnabled"`
	GroupID        string        `db:"group_id" json:"groupId,omitempty"`
	Lead           *bool         `db:"lead" json:"lead,omitempty"`
	Controls       JSONMap       `db:"controls" json:"controls,omitempty"`
	Placeholder    bool          `db:"-" json:"placeholder,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updatedAt"`
}

// EquipmentGroup is a lead/lag coordination unit. Invariant: LeadID must
// always be present in MemberIDs, and rotation/failover must change it
// atomically (see internal/leadlag).
type EquipmentGroup struct {
	ID                      string        `db:"id" json:"id"`
	Kind                    EquipmentKind `db:"kind" json:"kind"`
	MemberIDs               []string      `db:"-" json:"memberIds"`
	LeadID                  string        `db:"lead_id" json:"leadId"`
	UseLeadLag              bool          `db:"use_lead_lag" json:"useLeadLag"`
	AutoFailover            bool          `db:"auto_failover" json:"autoFailover"`
	ChangeoverIntervalDays  int           `db:"changeover_interval_days" json:"changeoverIntervalDays"`
	LastChangeoverAt        time.Time     `db:"-" json:"lastChangeoverAt,omitempty"`
	RuntimeHoursByMember    map[string]float64 `db:"-" json:"runtimeHoursByMember,omitempty"`
	LastFailoverAt          time.Time     `db:"-" json:"lastFailoverAt,omitempty"`
	FailoverCount           int           `db:"-" json:"failoverCount"`
	CreatedAt               time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt               time.Time     `db:"updated_at" json:"updatedAt"`
}

// LeadLagResolution is what internal/leadlag hands back to a caller
// asking "where does this equipment stand".
type LeadLagResolution struct {
	GroupID string
	IsLead  bool
	LagIDs  []string
}

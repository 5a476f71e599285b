// Package statestore implements the State Store (C3): in-process PID
// state keyed by (locationId, equipmentId, loopName), and Redis-backed
// lead/lag rotation state and equipment UI state, both with a 24-hour
// TTL so restarts preserve rotation and recent commands.
//
// Grounded on arx-os-arxos's core/backend/cache/redis_cache.go and
// internal/infra/cache/redis.go for the go-redis/v9 client shape, cut
// down to the Get/SetEX/CAS surface this store actually needs.
package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"nrgchamp/equipment-control/internal/model"
	"nrgchamp/equipment-control/internal/pid"
)

const leadLagTTL = 24 * time.Hour
const uiStateTTL = 24 * time.Hour

// maxCommandHistory bounds EquipmentUIState.CommandHistory to its last
// N entries.
const maxCommandHistory = 20

// Store is the State Store. PID, hysteresis, and geothermal-stage
// state never leave the process; lead/lag and UI state round-trip
// through Redis as JSON.
type Store struct {
	redis *redis.Client

	pidMu    sync.Mutex
	pidState map[string]*pid.State

	hystMu    sync.Mutex
	hystState map[string]*model.HysteresisState

	geoMu    sync.Mutex
	geoState map[string]*model.GeothermalState
}

// New opens a Redis client against addr (a redis://host:port/db URL)
// and returns a ready Store. In-process state starts empty; it is
// initialized lazily
func New(addr string) (*Store, error) {
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("statestore: parse redis url: %w", err)
	}
	return &Store{
		redis:     redis.NewClient(opt),
		pidState:  make(map[string]*pid.State),
		hystState: make(map[string]*model.HysteresisState),
		geoState:  make(map[string]*model.GeothermalState),
	}, nil
}

// Close releases the Redis connection pool.
func (s *Store) Close() error {
	return s.redis.Close()
}

// Ping verifies Redis connectivity, used by the /health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func pidKey(locationID, equipmentID, loopName string) string {
	return locationID + "|" + equipmentID + "|" + loopName
}

// PIDState returns the carry-over state for one (location, equipment,
// loop) triple, creating a zero-value entry on first access. The
// returned pointer is shared; callers pass it directly to pid.Run.
func (s *Store) PIDState(locationID, equipmentID, loopName string) *pid.State {
	key := pidKey(locationID, equipmentID, loopName)
	s.pidMu.Lock()
	defer s.pidMu.Unlock()
	st, ok := s.pidState[key]
	if !ok {
		st = &pid.State{}
		s.pidState[key] = st
	}
	return st
}

// HysteresisState returns the shared on/off memory for one
// hysteresis-controlled loop (pumps, boiler comfort/domestic staging),
// creating a zero-value entry on first access. The returned pointer is
// shared; callers pass it directly to the algorithm's Run function.
func (s *Store) HysteresisState(locationID, equipmentID string) *model.HysteresisState {
	key := pidKey(locationID, equipmentID, "hysteresis")
	s.hystMu.Lock()
	defer s.hystMu.Unlock()
	st, ok := s.hystState[key]
	if !ok {
		st = &model.HysteresisState{}
		s.hystState[key] = st
	}
	return st
}

// GeothermalState returns the shared stage-count/dwell-clock memory
// for one geothermal unit, creating a zero-value entry on first access.
func (s *Store) GeothermalState(locationID, equipmentID string) *model.GeothermalState {
	key := pidKey(locationID, equipmentID, "geothermal")
	s.geoMu.Lock()
	defer s.geoMu.Unlock()
	st, ok := s.geoState[key]
	if !ok {
		st = &model.GeothermalState{}
		s.geoState[key] = st
	}
	return st
}

func leadLagRedisKey(groupID string) string {
	return "leadlag:" + groupID
}

func uiStateRedisKey(equipmentID string) string {
	return "equipment:" + equipmentID + ":state"
}

// LeadLagRecord is the JSON shape persisted to Redis for one group's
// rotation state. model.EquipmentGroup already carries these fields;
// this is the subset that actually mutates at runtime (membership and
// scheduling config live in internal/docstore instead).
type LeadLagRecord struct {
	LeadID               string             `json:"leadId"`
	LastChangeoverAt     time.Time          `json:"lastChangeoverAt"`
	RuntimeHoursByMember map[string]float64 `json:"runtimeHoursByMember"`
	LastFailoverAt       time.Time          `json:"lastFailoverAt"`
	FailoverCount        int                `json:"failoverCount"`
}

// GetLeadLag reads the persisted rotation state for a group. A missing
// key is not an error: it returns the zero-value record so first-run
// callers can seed it from internal/docstore's static LeadID.
func (s *Store) GetLeadLag(ctx context.Context, groupID string) (LeadLagRecord, error) {
	raw, err := s.redis.Get(ctx, leadLagRedisKey(groupID)).Bytes()
	if err == redis.Nil {
		return LeadLagRecord{}, nil
	}
	if err != nil {
		return LeadLagRecord{}, fmt.Errorf("statestore: get lead/lag %s: %w", groupID, err)
	}
	var rec LeadLagRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return LeadLagRecord{}, fmt.Errorf("statestore: decode lead/lag %s: %w", groupID, err)
	}
	return rec, nil
}

// SetLeadLag writes the full rotation record unconditionally, used
// after a rotation or failover has already been decided.
func (s *Store) SetLeadLag(ctx context.Context, groupID string, rec LeadLagRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("statestore: encode lead/lag %s: %w", groupID, err)
	}
	if err := s.redis.Set(ctx, leadLagRedisKey(groupID), raw, leadLagTTL).Err(); err != nil {
		return fmt.Errorf("statestore: set lead/lag %s: %w", groupID, err)
	}
	return nil
}

// ErrLeadChanged is returned by CompareAndSwapLead when another
// replica mutated the record between read and write.
var ErrLeadChanged = fmt.Errorf("statestore: lead/lag record changed concurrently")

// CompareAndSwapLead atomically swaps the lead member of a group,
// going through a Redis optimistic WATCH transaction even in a
// single-replica deployment — the interface already supports
// horizontal scaling without a later rewrite. mutate receives the
// current record (zero value
// if absent) and returns the next one; returning the same LeadID is a
// no-op write, not an error.
func (s *Store) CompareAndSwapLead(ctx context.Context, groupID string, mutate func(LeadLagRecord) LeadLagRecord) (LeadLagRecord, error) {
	key := leadLagRedisKey(groupID)
	var result LeadLagRecord

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		var current LeadLagRecord
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			if jsonErr := json.Unmarshal(raw, &current); jsonErr != nil {
				return jsonErr
			}
		}

		next := mutate(current)
		encoded, err := json.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, leadLagTTL)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	err := s.redis.Watch(ctx, txf, key)
	if err == redis.TxFailedErr {
		return LeadLagRecord{}, ErrLeadChanged
	}
	if err != nil {
		return LeadLagRecord{}, fmt.Errorf("statestore: cas lead/lag %s: %w", groupID, err)
	}
	return result, nil
}

// GetUIState reads an equipment's UI state. A missing key returns the
// zero value.
func (s *Store) GetUIState(ctx context.Context, equipmentID string) (model.EquipmentUIState, error) {
	raw, err := s.redis.Get(ctx, uiStateRedisKey(equipmentID)).Bytes()
	if err == redis.Nil {
		return model.EquipmentUIState{}, nil
	}
	if err != nil {
		return model.EquipmentUIState{}, fmt.Errorf("statestore: get ui state %s: %w", equipmentID, err)
	}
	var st model.EquipmentUIState
	if err := json.Unmarshal(raw, &st); err != nil {
		return model.EquipmentUIState{}, fmt.Errorf("statestore: decode ui state %s: %w", equipmentID, err)
	}
	return st, nil
}

// SetUIState writes an equipment's UI state, appending one history
// entry and trimming to maxCommandHistory. Called by C9 on apply and
// C10 on UI ingest.
func (s *Store) SetUIState(ctx context.Context, equipmentID string, entry model.CommandHistoryEntry, settings model.Settings) error {
	current, err := s.GetUIState(ctx, equipmentID)
	if err != nil {
		return err
	}

	current.LastModifiedAt = entry.At
	current.LastModifiedBy = entry.UserID
	current.Command = entry.Command
	current.Settings = settings
	current.CommandHistory = append(current.CommandHistory, entry)
	if len(current.CommandHistory) > maxCommandHistory {
		current.CommandHistory = current.CommandHistory[len(current.CommandHistory)-maxCommandHistory:]
	}

	raw, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("statestore: encode ui state %s: %w", equipmentID, err)
	}
	if err := s.redis.Set(ctx, uiStateRedisKey(equipmentID), raw, uiStateTTL).Err(); err != nil {
		return fmt.Errorf("statestore: set ui state %s: %w", equipmentID, err)
	}
	return nil
}

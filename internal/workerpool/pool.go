// Package workerpool implements the Per-Location Worker Pool (C9): one
// logical queue per location, backed by a Kafka topic keyed by
// equipment id, draining into the same per-equipment pipeline the
// Orchestrator's immediate batch runs synchronously.
//
// Grounded on the MAPE service's services/mape/internal/kafkaio/io.go:
// one kafka.Writer per logical destination and one kafka.Reader per
// consumed partition, using github.com/segmentio/kafka-go directly
// rather than a higher-level queue abstraction.
package workerpool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"nrgchamp/equipment-control/internal/algorithms"
	"nrgchamp/equipment-control/internal/config"
	"nrgchamp/equipment-control/internal/leadlag"
	"nrgchamp/equipment-control/internal/model"
	"nrgchamp/equipment-control/internal/normalize"
	"nrgchamp/equipment-control/internal/obsmetrics"
	"nrgchamp/equipment-control/internal/pid"
	"nrgchamp/equipment-control/internal/timeseries"
)

// metricsTable is the measurement the time-series gateway is queried
// against for a fresh equipment reading (step 2).
const metricsTable = "EquipmentMetrics"

// metricsWindow and uiOverrideWindow bound how far back C1 looks for a
// live metrics sample and a still-relevant UI override respectively.
const (
	metricsWindow    = 5 * time.Minute
	uiOverrideWindow = 24 * time.Hour
)

// EquipmentSource is the subset of internal/docstore.Store the worker
// pool needs to refresh an equipment record and look up its group.
type EquipmentSource interface {
	GetEquipment(ctx context.Context, id string) (model.Equipment, error)
	GetGroup(ctx context.Context, id string) (model.EquipmentGroup, error)
}

// MetricsGateway is the subset of internal/timeseries.Client the
// worker pool needs to assemble inputs and emit results.
type MetricsGateway interface {
	QueryRecent(ctx context.Context, db, table, equipmentID, locationID string, window time.Duration) ([]timeseries.Row, error)
	ReadUICommands(ctx context.Context, equipmentID string, window time.Duration) ([]model.UICommand, error)
	WriteCommands(ctx context.Context, batch []model.NeuralCommand) error
}

// StateStore is the subset of internal/statestore.Store the worker
// pool needs to thread PID, hysteresis, and geothermal state across
// ticks, and to publish the equipment's latest UI state after an
// autonomous-loop apply.
type StateStore interface {
	PIDState(locationID, equipmentID, loopName string) *pid.State
	HysteresisState(locationID, equipmentID string) *model.HysteresisState
	GeothermalState(locationID, equipmentID string) *model.GeothermalState
	SetUIState(ctx context.Context, equipmentID string, entry model.CommandHistoryEntry, settings model.Settings) error
}

// LeadLagResolver is the subset of internal/leadlag.Manager the
// worker pool needs to fill in lead/lag-dependent settings and to
// drive group health/rotation/failover alongside normal control.
type LeadLagResolver interface {
	Resolve(ctx context.Context, equipmentID string) (model.LeadLagResolution, error)
	CheckHealth(groupID string, kind model.EquipmentKind, metrics model.MetricsSnapshot, commandedOnAt time.Time, now time.Time) leadlag.HealthResult
	MaybeRotate(ctx context.Context, group model.EquipmentGroup, now time.Time) error
	MaybeFailover(ctx context.Context, group model.EquipmentGroup, now time.Time, health leadlag.HealthResult) error
}

// job is the Kafka message payload for a queued equipment tick. It
// carries only identity — the pool always re-reads the equipment
// record so a queued job never acts on stale controls.
type job struct {
	EquipmentID string `json:"equipmentId"`
	LocationID  string `json:"locationId"`
}

// Pool is the Per-Location Worker Pool. It both runs jobs directly
// (satisfying orchestrator.Runner for the immediate batch) and queues
// them onto per-location Kafka topics (satisfying
// orchestrator.QueueEnqueuer for the remainder).
type Pool struct {
	cfg     *config.AppConfig
	docs    EquipmentSource
	metrics MetricsGateway
	state   StateStore
	leadlag LeadLagResolver
	lg      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	started map[string]bool

	lastTickMu sync.Mutex
	lastTick   map[string]time.Time

	commandedMu sync.Mutex
	commandedOn map[string]time.Time

	stats *obsmetrics.Metrics
}

// SetMetrics attaches the control plane's Prometheus metrics. Optional —
// a Pool with no metrics attached simply skips recording.
func (p *Pool) SetMetrics(m *obsmetrics.Metrics) {
	p.stats = m
}

// New wires a Pool over its collaborators. ctx bounds the lifetime of
// every background consumer goroutine the pool spawns; callers shut
// the pool down by cancelling ctx or calling Close.
func New(ctx context.Context, cfg *config.AppConfig, docs EquipmentSource, metrics MetricsGateway, state StateStore, ll LeadLagResolver, lg *slog.Logger) *Pool {
	if lg == nil {
		lg = slog.Default()
	}
	poolCtx, cancel := context.WithCancel(ctx)
	return &Pool{
		cfg:         cfg,
		docs:        docs,
		metrics:     metrics,
		state:       state,
		leadlag:     ll,
		lg:          lg,
		ctx:         poolCtx,
		cancel:      cancel,
		writers:     make(map[string]*kafka.Writer),
		started:     make(map[string]bool),
		lastTick:    make(map[string]time.Time),
		commandedOn: make(map[string]time.Time),
	}
}

// Close stops every background consumer and closes Kafka clients.
func (p *Pool) Close() {
	p.cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.writers {
		_ = w.Close()
	}
}

func (p *Pool) topicFor(locationID string) string {
	return p.cfg.LocationTopicPref + locationID
}

// Enqueue hands eq to its location's queue, lazily creating the
// writer and a bounded set of consumer goroutines for that location on
// first use, with concurrency tuned per location.
func (p *Pool) Enqueue(ctx context.Context, eq model.Equipment) error {
	p.ensureLocation(eq.LocationID)

	p.mu.Lock()
	w := p.writers[eq.LocationID]
	p.mu.Unlock()

	body, err := json.Marshal(job{EquipmentID: eq.ID, LocationID: eq.LocationID})
	if err != nil {
		return fmt.Errorf("workerpool: encode job: %w", err)
	}
	return w.WriteMessages(ctx, kafka.Message{Key: []byte(eq.ID), Value: body, Time: time.Now()})
}

func (p *Pool) ensureLocation(locationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started[locationID] {
		return
	}
	p.started[locationID] = true

	topic := p.topicFor(locationID)
	p.writers[locationID] = &kafka.Writer{
		Addr:         kafka.TCP(p.cfg.KafkaBrokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	n := p.cfg.ConcurrencyFor(locationID)
	for i := 0; i < n; i++ {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  p.cfg.KafkaBrokers,
			GroupID:  "equipment-control-workers",
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  200 * time.Millisecond,
		})
		go p.consumeLoop(locationID, r)
	}
	p.lg.Info("workerpool_location_started", "locationId", locationID, "topic", topic, "concurrency", n)
}

// consumeLoop drains one reader for as long as the pool is alive. A
// job that fails is logged and committed anyway: on failure the job
// is marked failed but state already committed is retained, with no
// rollback, so a queued job is never retried.
func (p *Pool) consumeLoop(locationID string, r *kafka.Reader) {
	defer r.Close()
	for {
		msg, err := r.FetchMessage(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.lg.Error("workerpool_fetch_failed", "locationId", locationID, "error", err)
			continue
		}

		var j job
		if err := json.Unmarshal(msg.Value, &j); err != nil {
			p.lg.Error("workerpool_bad_job", "locationId", locationID, "error", err)
			_ = r.CommitMessages(p.ctx, msg)
			continue
		}

		runCtx, cancel := context.WithTimeout(p.ctx, p.cfg.AlgorithmDeadline)
		eq, err := p.docs.GetEquipment(runCtx, j.EquipmentID)
		if err == nil {
			err = p.RunEquipment(runCtx, eq)
		}
		cancel()
		if err != nil {
			p.lg.Error("workerpool_job_failed", "equipmentId", j.EquipmentID, "locationId", locationID, "error", err)
		}
		if err := r.CommitMessages(p.ctx, msg); err != nil {
			p.lg.Warn("workerpool_commit_failed", "locationId", locationID, "error", err)
		}
	}
}

func (p *Pool) dtSeconds(equipmentID string, now time.Time) float64 {
	p.lastTickMu.Lock()
	defer p.lastTickMu.Unlock()
	last, ok := p.lastTick[equipmentID]
	p.lastTick[equipmentID] = now
	if !ok {
		return p.cfg.TickInterval.Seconds()
	}
	dt := now.Sub(last).Seconds()
	if dt <= 0 {
		return p.cfg.TickInterval.Seconds()
	}
	return dt
}

// noteCommandedOn records the moment an on/off actuator most recently
// transitioned to commanded-on, used by the lead/lag health check's
// amps-settling window.
func (p *Pool) noteCommandedOn(equipmentID string, wasOn, isOn bool, now time.Time) time.Time {
	p.commandedMu.Lock()
	defer p.commandedMu.Unlock()
	if isOn && !wasOn {
		p.commandedOn[equipmentID] = now
	}
	if !isOn {
		delete(p.commandedOn, equipmentID)
	}
	t, ok := p.commandedOn[equipmentID]
	if !ok {
		return now
	}
	return t
}

// wasCommandedOn reports whether equipmentID was commanded on as of the
// previous call to noteCommandedOn.
func (p *Pool) wasCommandedOn(equipmentID string) bool {
	p.commandedMu.Lock()
	defer p.commandedMu.Unlock()
	_, ok := p.commandedOn[equipmentID]
	return ok
}

// enableCommanded reports whether batch carries a pump or chiller
// enable command set true, the on/off signal internal/leadlag's
// amps-settling check needs for pump/chiller health.
func enableCommanded(batch []model.CommandValue) bool {
	for _, c := range batch {
		if c.Name != "pumpEnable" && c.Name != "chillerEnable" {
			continue
		}
		if on, ok := c.Value.(bool); ok {
			return on
		}
	}
	return false
}

// boolCommand looks up name in batch and reports its bool value.
func boolCommand(batch []model.CommandValue, name string) (bool, bool) {
	for _, c := range batch {
		if c.Name != name {
			continue
		}
		v, ok := c.Value.(bool)
		return v, ok
	}
	return false, false
}

// mergeSettings layers UI-originated overrides over the document
// store's persisted controls, last-write-wins
func mergeSettings(controls model.JSONMap, overrides model.Settings) model.Settings {
	merged := make(model.Settings, len(controls)+len(overrides))
	for k, v := range controls {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

var kindFactoryName = map[model.EquipmentKind]string{
	model.KindFanCoil:        "fan-coil-factory",
	model.KindBoilerComfort:  "comfort-boiler-factory",
	model.KindBoilerDomestic: "domestic-boiler-factory",
	model.KindPumpHW:         "pump-factory",
	model.KindPumpCW:         "pump-factory",
	model.KindChiller:        "chiller-factory",
	model.KindAirHandler:     "air-handler-factory",
	model.KindSteamBundle:    "steam-bundle-factory",
	model.KindGeothermal:     "geothermal-factory",
}

// RunEquipment assembles inputs, invokes the registered algorithm, and
// writes the resulting commands It is the single
// pipeline both the Orchestrator's immediate batch and this pool's
// queued consumers run.
func (p *Pool) RunEquipment(ctx context.Context, eq model.Equipment) (err error) {
	start := time.Now()
	status := "ok"
	defer func() {
		if err != nil {
			status = "error"
		}
		if p.stats != nil {
			p.stats.ObserveEquipmentRun(string(eq.Kind), eq.LocationID, status, time.Since(start))
		}
	}()

	if !algorithms.Supported(eq.Kind) {
		return model.NewControlError(model.KindUnknownEquipment, model.ErrUnknownEquipmentKind)
	}
	now := time.Now()

	rows, err := p.metrics.QueryRecent(ctx, p.cfg.TimeSeriesDBs.Locations, metricsTable, eq.ID, eq.LocationID, metricsWindow)
	if err != nil {
		return err
	}
	raw := map[string]any{}
	if len(rows) > 0 {
		for k, v := range rows[0] {
			raw[k] = v
		}
	}
	snapshot := normalize.Normalize(raw)

	uiCmds, err := p.metrics.ReadUICommands(ctx, eq.ID, uiOverrideWindow)
	if err != nil {
		p.lg.Warn("workerpool_ui_overrides_failed", "equipmentId", eq.ID, "error", err)
		uiCmds = nil
	}
	overrides := model.Settings{}
	for _, c := range uiCmds {
		for k, v := range c.Settings {
			overrides[k] = v
		}
	}
	merged := mergeSettings(eq.Controls, overrides)

	lead, err := p.leadlag.Resolve(ctx, eq.ID)
	if err != nil {
		p.lg.Warn("workerpool_leadlag_resolve_failed", "equipmentId", eq.ID, "error", err)
		lead = model.LeadLagResolution{IsLead: true}
	}

	dt := p.dtSeconds(eq.ID, now)

	result, err := p.invoke(eq, snapshot, merged, lead, now, dt)
	if err != nil {
		return err
	}

	commands, clamps := algorithms.Extract(eq.Kind, result)
	for _, c := range clamps {
		p.lg.Warn("workerpool_value_clamped", "equipmentId", eq.ID, "field", c.Field, "original", c.Original, "clamped", c.Clamped)
	}
	if tripped, ok := boolCommand(commands, "freezestatTripped"); ok && tripped {
		p.lg.Warn("workerpool_freezestat_tripped", "equipmentId", eq.ID, "locationId", eq.LocationID)
	}

	source := kindFactoryName[eq.Kind]
	batch := make([]model.NeuralCommand, 0, len(commands))
	for _, c := range commands {
		batch = append(batch, model.NeuralCommand{
			EquipmentID:   eq.ID,
			LocationID:    eq.LocationID,
			EquipmentKind: eq.Kind,
			CommandName:   c.Name,
			Value:         c.Value,
			Source:        source,
			Status:        "active",
			Timestamp:     now,
		})
	}
	if err := p.metrics.WriteCommands(ctx, batch); err != nil {
		return err
	}

	entry := model.CommandHistoryEntry{Command: source, Settings: merged, At: now}
	if err := p.state.SetUIState(ctx, eq.ID, entry, merged); err != nil {
		p.lg.Warn("workerpool_set_ui_state_failed", "equipmentId", eq.ID, "error", err)
	}

	commandedOnAt := now
	switch eq.Kind {
	case model.KindPumpHW, model.KindPumpCW, model.KindChiller:
		isOn := enableCommanded(commands)
		wasOn := p.wasCommandedOn(eq.ID)
		commandedOnAt = p.noteCommandedOn(eq.ID, wasOn, isOn, now)
	}

	if eq.GroupID != "" {
		p.runGroupMaintenance(ctx, eq, snapshot, commandedOnAt, now)
	}
	return nil
}

// runGroupMaintenance drives C6's health/rotation/failover checks
// alongside ordinary control. Every member of a throttled group calls
// this every tick; internal/leadlag's per-group rate limiters collapse
// the redundant calls to the documented cadence. commandedOnAt is the
// moment this equipment last transitioned to commanded-on, feeding the
// pump/chiller amps-settling health check.
func (p *Pool) runGroupMaintenance(ctx context.Context, eq model.Equipment, snapshot model.MetricsSnapshot, commandedOnAt, now time.Time) {
	group, err := p.docs.GetGroup(ctx, eq.GroupID)
	if err != nil {
		p.lg.Warn("workerpool_group_lookup_failed", "groupId", eq.GroupID, "error", err)
		return
	}
	health := p.leadlag.CheckHealth(eq.GroupID, eq.Kind, snapshot, commandedOnAt, now)
	if err := p.leadlag.MaybeFailover(ctx, group, now, health); err != nil {
		p.lg.Warn("workerpool_failover_failed", "groupId", eq.GroupID, "error", err)
	}
	if err := p.leadlag.MaybeRotate(ctx, group, now); err != nil {
		p.lg.Warn("workerpool_rotation_failed", "groupId", eq.GroupID, "error", err)
	}
}

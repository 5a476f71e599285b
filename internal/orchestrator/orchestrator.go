// Package orchestrator implements the control-loop tick (C8):
// building the working set of equipment to evaluate each cycle,
// prioritizing it, dispatching an immediate batch in parallel, and
// enqueuing the remainder onto per-location queues for the worker pool.
//
// Grounded on the aggregator's epoch_runner.go: a ticker-driven
// loop that never aborts a pass on a single failure, logs a
// start/summary pair per tick, and treats "no work this tick" as a
// normal outcome rather than an error.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"nrgchamp/equipment-control/internal/model"
)

// DocStore is the subset of internal/docstore.Store the orchestrator
// needs to build its working set.
type DocStore interface {
	ListEquipment(ctx context.Context) ([]model.Equipment, error)
}

// MetricsScanner is the subset of internal/timeseries.Client used to
// find equipment whose recent metrics opt into custom logic even when
// the document store record is control-disabled.
type MetricsScanner interface {
	ScanCustomLogicEnabled(ctx context.Context, window time.Duration) ([]string, error)
}

// LeadLagResolver is the subset of internal/leadlag.Manager needed to
// sort lead equipment ahead of lag within a tick (step 2).
type LeadLagResolver interface {
	Resolve(ctx context.Context, equipmentID string) (model.LeadLagResolution, error)
}

// Runner invokes one equipment's full control path (C9's per-job
// pipeline) and reports the outcome. Implemented by internal/workerpool.
type Runner interface {
	RunEquipment(ctx context.Context, eq model.Equipment) error
}

// QueueEnqueuer hands an equipment job to its per-location queue for
// asynchronous processing outside the immediate batch.
type QueueEnqueuer interface {
	Enqueue(ctx context.Context, eq model.Equipment) error
}

// Config tunes one Orchestrator.
type Config struct {
	// InitialBatchSize is the prefix of the sorted working set
	// dispatched synchronously each tick (step 3, default 3).
	InitialBatchSize int
	// PerEquipmentTimeout bounds one Runner.RunEquipment call, default 5s.
	PerEquipmentTimeout time.Duration
	// CustomLogicScanWindow bounds how far back ScanCustomLogicEnabled
	// looks (the metrics snapshot freshness window, 5 minutes).
	CustomLogicScanWindow time.Duration
}

// DefaultConfig returns the orchestrator's default tuning.
func DefaultConfig() Config {
	return Config{InitialBatchSize: 3, PerEquipmentTimeout: 5 * time.Second, CustomLogicScanWindow: 5 * time.Minute}
}

// Status is the per-equipment outcome of one tick.
type Status string

const (
	StatusOK        Status = "ok"
	StatusTimeout   Status = "timeout"
	StatusError     Status = "error"
	StatusSkipped   Status = "skipped-busy"
	StatusEnqueued  Status = "enqueued"
)

// EquipmentOutcome records how one equipment fared in a tick.
type EquipmentOutcome struct {
	EquipmentID string
	LocationID  string
	Status      Status
	Err         error
	Elapsed     time.Duration
}

// TickSummary aggregates one full tick.
type TickSummary struct {
	TotalWorkingSet int
	Dispatched      int
	Enqueued        int
	Results         []EquipmentOutcome
	Elapsed         time.Duration
}

// Orchestrator runs the control-loop tick.
type Orchestrator struct {
	docs     DocStore
	metrics  MetricsScanner
	leadlag  LeadLagResolver
	runner   Runner
	enqueuer QueueEnqueuer
	locks    *Locks
	cfg      Config
	lg       *slog.Logger
}

// New wires an Orchestrator over its collaborators.
func New(docs DocStore, metrics MetricsScanner, leadlag LeadLagResolver, runner Runner, enqueuer QueueEnqueuer, locks *Locks, cfg Config, lg *slog.Logger) *Orchestrator {
	if lg == nil {
		lg = slog.Default()
	}
	if cfg.InitialBatchSize <= 0 {
		cfg.InitialBatchSize = 3
	}
	if cfg.PerEquipmentTimeout <= 0 {
		cfg.PerEquipmentTimeout = 5 * time.Second
	}
	if cfg.CustomLogicScanWindow <= 0 {
		cfg.CustomLogicScanWindow = 5 * time.Minute
	}
	return &Orchestrator{docs: docs, metrics: metrics, leadlag: leadlag, runner: runner, enqueuer: enqueuer, locks: locks, cfg: cfg, lg: lg}
}

// Tick runs one control-loop cycle end to end: builds the working set,
// sorts it, dispatches the immediate batch in parallel, enqueues the
// rest, and returns an aggregate summary. It never returns an error
// for per-equipment failures — those are recorded in TickSummary.Results
// "timeouts, panics, and algorithm errors ... never
// abort the tick".
func (o *Orchestrator) Tick(ctx context.Context) (TickSummary, error) {
	start := time.Now()
	o.lg.Info("tick_start")

	working, err := o.buildWorkingSet(ctx)
	if err != nil {
		return TickSummary{}, err
	}
	sortWorkingSet(ctx, working, o.leadlag)

	batchSize := o.cfg.InitialBatchSize
	if batchSize > len(working) {
		batchSize = len(working)
	}
	batch, rest := working[:batchSize], working[batchSize:]

	results := o.dispatchBatch(ctx, batch)
	for _, eq := range rest {
		outcome := EquipmentOutcome{EquipmentID: eq.ID, LocationID: eq.LocationID}
		if err := o.enqueuer.Enqueue(ctx, eq); err != nil {
			outcome.Status = StatusError
			outcome.Err = err
			o.lg.Error("tick_enqueue_failed", "equipmentId", eq.ID, "error", err)
		} else {
			outcome.Status = StatusEnqueued
		}
		results = append(results, outcome)
	}

	summary := TickSummary{
		TotalWorkingSet: len(working),
		Dispatched:      len(batch),
		Enqueued:        len(rest),
		Results:         results,
		Elapsed:         time.Since(start),
	}
	o.lg.Info("tick_end", "workingSet", summary.TotalWorkingSet, "dispatched", summary.Dispatched,
		"enqueued", summary.Enqueued, "elapsedMs", summary.Elapsed.Milliseconds())
	return summary, nil
}

// buildWorkingSet unions control-enabled equipment with equipment
// whose recent metrics carry customLogicEnabled=true.
func (o *Orchestrator) buildWorkingSet(ctx context.Context) ([]model.Equipment, error) {
	all, err := o.docs.ListEquipment(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Equipment, len(all))
	var working []model.Equipment
	for _, eq := range all {
		byID[eq.ID] = eq
		if eq.ControlEnabled {
			working = append(working, eq)
		}
	}

	extraIDs, err := o.metrics.ScanCustomLogicEnabled(ctx, o.cfg.CustomLogicScanWindow)
	if err != nil {
		o.lg.Warn("tick_custom_logic_scan_failed", "error", err)
		return working, nil
	}
	seen := make(map[string]bool, len(working))
	for _, eq := range working {
		seen[eq.ID] = true
	}
	for _, id := range extraIDs {
		if seen[id] {
			continue
		}
		if eq, ok := byID[id]; ok {
			working = append(working, eq)
			seen[id] = true
		}
	}
	return working, nil
}

// sortWorkingSet prioritizes the working set: boilers first; within
// non-boilers, lead before lag; stable otherwise. A failed lead/lag
// resolution treats the equipment as lead (fail open, same priority as
// ungrouped equipment) rather than aborting the sort.
func sortWorkingSet(ctx context.Context, working []model.Equipment, resolver LeadLagResolver) {
	isLead := make(map[string]bool, len(working))
	for _, eq := range working {
		if isBoiler(eq.Kind) {
			continue
		}
		res, err := resolver.Resolve(ctx, eq.ID)
		isLead[eq.ID] = err != nil || res.IsLead
	}

	sort.SliceStable(working, func(i, j int) bool {
		bi, bj := isBoiler(working[i].Kind), isBoiler(working[j].Kind)
		if bi != bj {
			return bi
		}
		if bi && bj {
			return false
		}
		return isLead[working[i].ID] && !isLead[working[j].ID]
	})
}

func isBoiler(kind model.EquipmentKind) bool {
	return kind == model.KindBoilerComfort || kind == model.KindBoilerDomestic
}

// dispatchBatch runs the immediate batch in parallel, respecting
// per-equipment mutual exclusion and the per-call timeout.
func (o *Orchestrator) dispatchBatch(ctx context.Context, batch []model.Equipment) []EquipmentOutcome {
	results := make([]EquipmentOutcome, len(batch))
	done := make(chan int, len(batch))

	for i, eq := range batch {
		go func(i int, eq model.Equipment) {
			results[i] = o.runOne(ctx, eq)
			done <- i
		}(i, eq)
	}
	for range batch {
		<-done
	}
	return results
}

func (o *Orchestrator) runOne(ctx context.Context, eq model.Equipment) (outcome EquipmentOutcome) {
	outcome = EquipmentOutcome{EquipmentID: eq.ID, LocationID: eq.LocationID}
	start := time.Now()
	defer func() {
		outcome.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			outcome.Status = StatusError
			outcome.Err = panicError{r}
			o.lg.Error("tick_equipment_panic", "equipmentId", eq.ID, "recovered", r)
		}
	}()

	unlock, ok := o.locks.TryLock(eq.ID)
	if !ok {
		outcome.Status = StatusSkipped
		return outcome
	}
	defer unlock()

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.PerEquipmentTimeout)
	defer cancel()

	err := o.runner.RunEquipment(runCtx, eq)
	switch {
	case err == nil:
		outcome.Status = StatusOK
	case runCtx.Err() == context.DeadlineExceeded:
		outcome.Status = StatusTimeout
		outcome.Err = runCtx.Err()
	default:
		outcome.Status = StatusError
		outcome.Err = err
	}
	return outcome
}

type panicError struct{ value any }

func (p panicError) Error() string { return "panic: " + toString(p.value) }

func toString(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	if s, ok := v.(string); ok {
		return s
	}
	return "non-string panic value"
}

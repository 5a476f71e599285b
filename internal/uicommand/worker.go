package uicommand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"nrgchamp/equipment-control/internal/config"
	"nrgchamp/equipment-control/internal/model"
	"nrgchamp/equipment-control/internal/obsmetrics"
)

// concurrency is the UI command queue's fixed worker count: a single
// logical queue (equipment-controls) with five consumers.
const concurrency = 5

// CommandWriter is the subset of internal/timeseries.Client the worker
// needs to record an incoming command and its audit trail.
type CommandWriter interface {
	WriteUICommand(ctx context.Context, cmd model.UICommand) error
	WriteCommands(ctx context.Context, batch []model.NeuralCommand) error
}

// UIStateStore is the subset of internal/statestore.Store the worker
// needs to publish the equipment's latest UI state.
type UIStateStore interface {
	SetUIState(ctx context.Context, equipmentID string, entry model.CommandHistoryEntry, settings model.Settings) error
}

// jobMessage is the Kafka payload published by the HTTP API's command
// endpoint. The job id travels with the message so the worker can
// update the same JobTracker entry the API handed back to the caller.
type jobMessage struct {
	JobID string           `json:"jobId"`
	Cmd   model.UICommand  `json:"command"`
}

// Worker is the UI Command Worker.
type Worker struct {
	cfg     *config.AppConfig
	writer  CommandWriter
	state   UIStateStore
	tracker *JobTracker
	lg      *slog.Logger
	stats   *obsmetrics.Metrics
}

func NewWorker(cfg *config.AppConfig, writer CommandWriter, state UIStateStore, tracker *JobTracker, lg *slog.Logger) *Worker {
	if lg == nil {
		lg = slog.Default()
	}
	return &Worker{cfg: cfg, writer: writer, state: state, tracker: tracker, lg: lg}
}

// SetMetrics attaches the control plane's Prometheus metrics. Optional —
// a Worker with no metrics attached simply skips recording.
func (w *Worker) SetMetrics(m *obsmetrics.Metrics) {
	w.stats = m
}

// Enqueue publishes a UI command onto the queue under jobID, the id
// the caller should poll, registering it as pending in the shared
// tracker first so a near-simultaneous status poll never 404s.
func (w *Worker) Enqueue(ctx context.Context, jobID string, cmd model.UICommand) error {
	w.tracker.Create(jobID)
	body, err := json.Marshal(jobMessage{JobID: jobID, Cmd: cmd})
	if err != nil {
		return fmt.Errorf("uicommand: encode job: %w", err)
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(w.cfg.KafkaBrokers...),
		Topic:        w.cfg.UICommandTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	defer writer.Close()
	return writer.WriteMessages(ctx, kafka.Message{Key: []byte(cmd.EquipmentID), Value: body, Time: time.Now()})
}

// Run starts `concurrency` consumer goroutines and blocks until ctx is
// cancelled, mirroring a ledger consumer's single-reader Run loop
// shape replicated across a fixed pool of readers sharing one
// consumer group.
func (w *Worker) Run(ctx context.Context) {
	for i := 0; i < concurrency; i++ {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  w.cfg.KafkaBrokers,
			GroupID:  "equipment-control-ui-commands",
			Topic:    w.cfg.UICommandTopic,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  200 * time.Millisecond,
		})
		go w.consumeLoop(ctx, r)
	}
}

func (w *Worker) consumeLoop(ctx context.Context, r *kafka.Reader) {
	defer r.Close()
	w.lg.Info("uicommand_worker_started", "topic", w.cfg.UICommandTopic)
	defer w.lg.Info("uicommand_worker_stopped", "topic", w.cfg.UICommandTopic)

	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, kafka.ErrGroupClosed) {
				return
			}
			w.lg.Error("uicommand_fetch_failed", "error", err)
			continue
		}

		var job jobMessage
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			w.lg.Warn("uicommand_decode_failed", "error", err, "offset", msg.Offset)
		} else {
			w.process(ctx, job)
		}

		if err := r.CommitMessages(ctx, msg); err != nil {
			w.lg.Error("uicommand_commit_failed", "error", err)
		}
	}
}

// process drives the three-step command pipeline, advancing the job
// tracker at each checkpoint. A failure at any step marks the job
// failed and stops — steps already committed (e.g. the raw command
// write) are not rolled back
func (w *Worker) process(ctx context.Context, job jobMessage) {
	cmd := job.Cmd
	w.tracker.update(job.JobID, model.JobProcessing, 0, "")

	if err := w.writer.WriteUICommand(ctx, cmd); err != nil {
		w.fail(job.JobID, "write ui command", err)
		return
	}
	w.tracker.update(job.JobID, model.JobProcessing, 40, "")

	entry := model.CommandHistoryEntry{
		Command:  cmd.Command,
		Settings: cmd.Settings,
		At:       time.Now(),
		UserID:   cmd.UserID,
	}
	if err := w.state.SetUIState(ctx, cmd.EquipmentID, entry, cmd.Settings); err != nil {
		w.fail(job.JobID, "update ui state", err)
		return
	}
	w.tracker.update(job.JobID, model.JobProcessing, 70, "")

	if err := w.writer.WriteCommands(ctx, auditBatch(cmd)); err != nil {
		w.fail(job.JobID, "write audit record", err)
		return
	}
	w.tracker.update(job.JobID, model.JobCompleted, 100, "")
	if w.stats != nil {
		w.stats.ObserveJobTerminal("completed")
	}
}

func (w *Worker) fail(jobID, step string, err error) {
	w.lg.Error("uicommand_step_failed", "jobId", jobID, "step", step, "error", err)
	w.tracker.update(jobID, model.JobFailed, 0, fmt.Sprintf("%s: %v", step, err))
	if w.stats != nil {
		w.stats.ObserveJobTerminal("failed")
	}
}

// auditBatch turns a UI command's settings into neural-command audit
// records tagged source=ui-command, so the audit trail carries the
// same bit-exact record shape as algorithm-originated commands.
func auditBatch(cmd model.UICommand) []model.NeuralCommand {
	now := time.Now()
	batch := make([]model.NeuralCommand, 0, len(cmd.Settings)+1)
	batch = append(batch, model.NeuralCommand{
		EquipmentID: cmd.EquipmentID,
		LocationID:  cmd.LocationID,
		CommandName: cmd.Command,
		Value:       true,
		Source:      "ui-command",
		Status:      "active",
		Timestamp:   now,
	})
	for k, v := range cmd.Settings {
		batch = append(batch, model.NeuralCommand{
			EquipmentID: cmd.EquipmentID,
			LocationID:  cmd.LocationID,
			CommandName: k,
			Value:       v,
			Source:      "ui-command",
			Status:      "active",
			Timestamp:   now,
		})
	}
	return batch
}

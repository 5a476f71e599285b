package uicommand

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"nrgchamp/equipment-control/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	written   []model.UICommand
	audited   []model.NeuralCommand
	failWrite bool
	failAudit bool
}

func (f *fakeWriter) WriteUICommand(ctx context.Context, cmd model.UICommand) error {
	if f.failWrite {
		return errors.New("write failed")
	}
	f.written = append(f.written, cmd)
	return nil
}

func (f *fakeWriter) WriteCommands(ctx context.Context, batch []model.NeuralCommand) error {
	if f.failAudit {
		return errors.New("audit failed")
	}
	f.audited = append(f.audited, batch...)
	return nil
}

type fakeUIState struct {
	entries map[string]model.Settings
	failSet bool
}

func (f *fakeUIState) SetUIState(ctx context.Context, equipmentID string, entry model.CommandHistoryEntry, settings model.Settings) error {
	if f.failSet {
		return errors.New("set state failed")
	}
	if f.entries == nil {
		f.entries = map[string]model.Settings{}
	}
	f.entries[equipmentID] = settings
	return nil
}

func TestProcessAdvancesJobThroughAllCheckpoints(t *testing.T) {
	writer := &fakeWriter{}
	state := &fakeUIState{}
	tracker := NewJobTracker()
	w := &Worker{writer: writer, state: state, tracker: tracker, lg: testLogger()}

	cmd := model.UICommand{EquipmentID: "fc-1", LocationID: "loc-1", UserID: "u-1", Command: "setSetpoint", Settings: model.Settings{"setpoint": 72.0}}
	tracker.Create("job-1")
	w.process(context.Background(), jobMessage{JobID: "job-1", Cmd: cmd})

	job, ok := tracker.Get("job-1")
	if !ok {
		t.Fatalf("expected job to be tracked")
	}
	if job.Status != model.JobCompleted || job.Progress != 100 {
		t.Fatalf("expected completed job at 100%%, got %+v", job)
	}
	if len(writer.written) != 1 {
		t.Fatalf("expected ui command written once, got %d", len(writer.written))
	}
	if state.entries["fc-1"]["setpoint"] != 72.0 {
		t.Fatalf("expected ui state updated with setpoint, got %+v", state.entries)
	}
	if len(writer.audited) == 0 {
		t.Fatalf("expected audit records written")
	}
}

func TestProcessFailsJobWhenWriteUICommandErrors(t *testing.T) {
	writer := &fakeWriter{failWrite: true}
	state := &fakeUIState{}
	tracker := NewJobTracker()
	w := &Worker{writer: writer, state: state, tracker: tracker, lg: testLogger()}

	tracker.Create("job-2")
	w.process(context.Background(), jobMessage{JobID: "job-2", Cmd: model.UICommand{EquipmentID: "fc-1"}})

	job, _ := tracker.Get("job-2")
	if job.Status != model.JobFailed {
		t.Fatalf("expected failed job, got %+v", job)
	}
	if len(state.entries) != 0 {
		t.Fatalf("expected ui state never touched after step 1 failure")
	}
}

func TestProcessFailsJobWhenSetUIStateErrors(t *testing.T) {
	writer := &fakeWriter{}
	state := &fakeUIState{failSet: true}
	tracker := NewJobTracker()
	w := &Worker{writer: writer, state: state, tracker: tracker, lg: testLogger()}

	tracker.Create("job-3")
	w.process(context.Background(), jobMessage{JobID: "job-3", Cmd: model.UICommand{EquipmentID: "fc-1"}})

	job, _ := tracker.Get("job-3")
	if job.Status != model.JobFailed || job.Progress != 0 {
		t.Fatalf("expected failed job at step 2, got %+v", job)
	}
	if len(writer.written) != 1 {
		t.Fatalf("expected step 1's write to have already committed despite later failure")
	}
	if len(writer.audited) != 0 {
		t.Fatalf("expected audit step never reached")
	}
}

func TestJobTrackerGetUnknownJobReturnsFalse(t *testing.T) {
	tracker := NewJobTracker()
	_, ok := tracker.Get("missing")
	if ok {
		t.Fatalf("expected unknown job to report not-found")
	}
}

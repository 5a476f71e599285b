package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"nrgchamp/equipment-control/internal/config"
	"nrgchamp/equipment-control/internal/model"
)

type fakeEnqueuer struct {
	lastJobID string
	lastCmd   model.UICommand
	fail      bool
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, jobID string, cmd model.UICommand) error {
	if f.fail {
		return errors.New("enqueue failed")
	}
	f.lastJobID = jobID
	f.lastCmd = cmd
	return nil
}

type fakeJobs struct{ jobs map[string]model.Job }

func (f *fakeJobs) Get(jobID string) (model.Job, bool) {
	j, ok := f.jobs[jobID]
	return j, ok
}

type fakeUIState struct {
	state model.EquipmentUIState
	fail  bool
}

func (f *fakeUIState) GetUIState(ctx context.Context, equipmentID string) (model.EquipmentUIState, error) {
	if f.fail {
		return model.EquipmentUIState{}, errors.New("read failed")
	}
	return f.state, nil
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(ctx context.Context) error { return f.err }

func TestPostCommandReturnsJobID(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	api := New(&config.AppConfig{}, enqueuer, &fakeJobs{jobs: map[string]model.Job{}}, &fakeUIState{}, &fakePinger{}, &fakePinger{})
	router := NewRouter(api)

	body, _ := json.Marshal(map[string]any{"command": "setSetpoint", "settings": map[string]any{"setpoint": 72.0}, "userId": "u-1"})
	req := httptest.NewRequest("POST", "/api/equipment/fc-1/command", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["jobId"] == "" {
		t.Fatalf("expected a job id in response, got %+v", resp)
	}
	if enqueuer.lastCmd.EquipmentID != "fc-1" {
		t.Fatalf("expected equipment id from path to fill empty body field, got %+v", enqueuer.lastCmd)
	}
}

func TestPostCommandBadBodyReturns400(t *testing.T) {
	api := New(&config.AppConfig{}, &fakeEnqueuer{}, &fakeJobs{}, &fakeUIState{}, &fakePinger{}, &fakePinger{})
	router := NewRouter(api)

	req := httptest.NewRequest("POST", "/api/equipment/fc-1/command", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetJobStatusUnknownReturns404(t *testing.T) {
	api := New(&config.AppConfig{}, &fakeEnqueuer{}, &fakeJobs{jobs: map[string]model.Job{}}, &fakeUIState{}, &fakePinger{}, &fakePinger{})
	router := NewRouter(api)

	req := httptest.NewRequest("GET", "/api/equipment/fc-1/status/missing-job", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetJobStatusReturnsTrackedJob(t *testing.T) {
	jobs := &fakeJobs{jobs: map[string]model.Job{"job-1": {ID: "job-1", Status: model.JobProcessing, Progress: 40}}}
	api := New(&config.AppConfig{}, &fakeEnqueuer{}, jobs, &fakeUIState{}, &fakePinger{}, &fakePinger{})
	router := NewRouter(api)

	req := httptest.NewRequest("GET", "/api/equipment/fc-1/status/job-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var job model.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.Progress != 40 || job.Status != model.JobProcessing {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestGetStateReturnsUIState(t *testing.T) {
	state := &fakeUIState{state: model.EquipmentUIState{Command: "setSetpoint"}}
	api := New(&config.AppConfig{}, &fakeEnqueuer{}, &fakeJobs{jobs: map[string]model.Job{}}, state, &fakePinger{}, &fakePinger{})
	router := NewRouter(api)

	req := httptest.NewRequest("GET", "/api/equipment/fc-1/state", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthReportsUnavailableWhenDependencyFails(t *testing.T) {
	api := New(&config.AppConfig{}, &fakeEnqueuer{}, &fakeJobs{jobs: map[string]model.Job{}}, &fakeUIState{}, &fakePinger{err: errors.New("down")}, &fakePinger{})
	router := NewRouter(api)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

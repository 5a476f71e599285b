package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"nrgchamp/equipment-control/internal/config"
	"nrgchamp/equipment-control/internal/model"
)

// Enqueuer is the subset of internal/uicommand.Worker the API needs to
// submit a command and track its job id.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string, cmd model.UICommand) error
}

// JobStatusReader is the subset of internal/uicommand.JobTracker the
// API needs to answer status polls.
type JobStatusReader interface {
	Get(jobID string) (model.Job, bool)
}

// UIStateReader is the subset of internal/statestore.Store the API
// needs to answer state reads.
type UIStateReader interface {
	GetUIState(ctx context.Context, equipmentID string) (model.EquipmentUIState, error)
}

// Pinger is satisfied by every live collaborator the health check
// probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// API holds the Command API's collaborators.
type API struct {
	cfg      *config.AppConfig
	enqueuer Enqueuer
	jobs     JobStatusReader
	uiState  UIStateReader
	docs     Pinger
	cache    Pinger
}

func New(cfg *config.AppConfig, enqueuer Enqueuer, jobs JobStatusReader, uiState UIStateReader, docs, cache Pinger) *API {
	return &API{cfg: cfg, enqueuer: enqueuer, jobs: jobs, uiState: uiState, docs: docs, cache: cache}
}

// commandRequest is the body of POST /api/equipment/{id}/command:
// {equipmentId, command, settings, userId, userName, priority?}.
type commandRequest struct {
	EquipmentID string         `json:"equipmentId"`
	Command     string         `json:"command"`
	Settings    model.Settings `json:"settings"`
	UserID      string         `json:"userId"`
	UserName    string         `json:"userName"`
	Priority    int            `json:"priority"`
}

func (a *API) postCommand(w http.ResponseWriter, r *http.Request) {
	equipmentID := mux.Vars(r)["id"]

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EquipmentID == "" {
		req.EquipmentID = equipmentID
	}

	cmd := model.UICommand{
		EquipmentID: req.EquipmentID,
		Command:     req.Command,
		Settings:    req.Settings,
		UserID:      req.UserID,
		UserName:    req.UserName,
		Priority:    req.Priority,
		EnqueuedAt:  time.Now(),
	}

	jobID := uuid.NewString()
	if err := a.enqueuer.Enqueue(r.Context(), jobID, cmd); err != nil {
		writeError(w, http.StatusServiceUnavailable, "could not enqueue command")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	equipmentID := mux.Vars(r)["id"]
	state, err := a.uiState.GetUIState(r.Context(), equipmentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read equipment state")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (a *API) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	job, ok := a.jobs.Get(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown job id")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	if a.docs != nil {
		if err := a.docs.Ping(ctx); err != nil {
			status["docStore"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if a.cache != nil {
		if err := a.cache.Ping(ctx); err != nil {
			status["cache"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

func (a *API) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if err := a.cfg.ReloadProperties(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Package uicommand implements the UI Command Worker (C10): it drains
// the single `equipment-controls` queue at bounded concurrency and
// carries each command through a three-step, progress-tracked pipeline.
//
// Grounded on the gamification service's
// services/gamification/internal/ingest/ledger_consumer.go — a single
// Kafka reader's Run loop that decodes, processes, logs, and commits
// per message, tolerant of decode errors without aborting the stream.
package uicommand

import (
	"sync"

	"nrgchamp/equipment-control/internal/model"
)

// JobTracker holds in-process status for UI-command jobs, keyed by job
// ID. It is shared between the HTTP API (which creates a job on
// enqueue and reads it back for /status/{jobId}) and the Worker (which
// advances it through the three progress checkpoints), living in one
// process so status is never lost between the two.
type JobTracker struct {
	mu   sync.Mutex
	jobs map[string]model.Job
}

func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]model.Job)}
}

// Create registers a new pending job, called by the HTTP API before it
// publishes the command onto the queue so /status/{jobId} never 404s
// on a job that is merely still in flight.
func (t *JobTracker) Create(jobID string) model.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	job := model.Job{ID: jobID, Status: model.JobPending}
	t.jobs[jobID] = job
	return job
}

// Get returns the current status of jobID and whether it is known at
// all — an unknown job is distinct from one still pending.
func (t *JobTracker) Get(jobID string) (model.Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	return job, ok
}

func (t *JobTracker) update(jobID string, status model.JobStatus, progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job := t.jobs[jobID]
	job.ID = jobID
	job.Status = status
	job.Progress = progress
	job.Message = message
	t.jobs[jobID] = job
}

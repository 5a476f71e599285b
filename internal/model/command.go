package model

import "time"

// NeuralCommand is the record the control core emits for every
// actionable command.
type NeuralCommand struct {
	EquipmentID   string
	LocationID    string
	EquipmentKind EquipmentKind
	CommandName   string
	Value         any
	Source        string
	Status        string
	Timestamp     time.Time
}

// UICommand is an immutable, user-originated override enqueued onto
// the UI command queue (C10). Priority is persisted but does not
// influence queue order — treated as advisory-only.
type UICommand struct {
	EquipmentID string
	LocationID  string
	UserID      string
	UserName    string
	Command     string
	Settings    Settings
	Priority    int
	EnqueuedAt  time.Time
}

// JobStatus is the lifecycle of a UI command as tracked by the Command
// API's status endpoint.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is the status record returned by GET /api/equipment/{id}/status/{jobId}.
type Job struct {
	ID       string
	Status   JobStatus
	Progress int
	Message  string
}

// EquipmentUIState is what C3 holds per equipment under
// "equipment:{id}:state", written by C9 (on apply) and C10 (on UI
// ingest), read by external state-fetch requests.
type EquipmentUIState struct {
	LastModifiedAt time.Time
	LastModifiedBy string
	Settings       Settings
	Command        string
	CommandHistory []CommandHistoryEntry
}

// CommandHistoryEntry is one bounded entry in EquipmentUIState's
// command history.
type CommandHistoryEntry struct {
	Command   string
	Settings  Settings
	At        time.Time
	UserID    string
}

// CommandValue is one (name, value) pair produced by an algorithm's
// extractor before it is batched into a NeuralCommand per equipment.
type CommandValue struct {
	Name  string
	Value any
}

// LedgerEvent is written to the time-series store's ControlCommands
// database whenever lead/lag rotates or fails over.
type LedgerEvent struct {
	GroupID   string
	NewLeadID string
	Reason    string
	EventType string // "failover" | "rotation"
	Timestamp time.Time
}

package model

import "errors"

// ErrorKind enumerates the control-job failure taxonomy. Each control
// job failure is tagged with exactly one of these so the orchestrator
// can apply the matching policy.
type ErrorKind string

const (
	KindTimeout             ErrorKind = "Timeout"
	KindUpstreamUnavailable ErrorKind = "UpstreamUnavailable"
	KindBadInput            ErrorKind = "BadInput"
	KindUnknownEquipment    ErrorKind = "UnknownEquipmentKind"
	KindAlgorithmFault      ErrorKind = "AlgorithmFault"
	KindStateConflict       ErrorKind = "StateConflict"
)

// ControlError wraps an underlying error with the kind the orchestrator
// and worker pool use to decide retry/surface/clamp behavior.
type ControlError struct {
	Kind ErrorKind
	Err  error
}

func (e *ControlError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *ControlError) Unwrap() error { return e.Err }

func NewControlError(kind ErrorKind, err error) *ControlError {
	return &ControlError{Kind: kind, Err: err}
}

// ErrUnknownEquipmentKind fails a job permanently — the worker pool
// never retries it.
var ErrUnknownEquipmentKind = errors.New("unknown equipment kind")

// ErrMissingEquipment is a strict alternative to the legacy
// placeholder-materialization path, opt-in via
// docstore.Options.StrictEquipmentLookup.
var ErrMissingEquipment = errors.New("equipment not found in document store")

// AsControlError extracts the *ControlError carried by err, if any.
func AsControlError(err error) (*ControlError, bool) {
	var ce *ControlError
	ok := errors.As(err, &ce)
	return ce, ok
}

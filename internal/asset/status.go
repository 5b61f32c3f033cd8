// Package asset tracks the lifecycle of computed assets and decides when a downstream
// asset may be recomputed from its upstream dependencies.
//
// # Lifecycle
//
// Every asset carries a Meta record moving through
//
//	INITIALIZED -> MATERIALIZING -> {MATERIALIZING_FAILED | MATERIALIZED}
//	            -> PERSISTING    -> {PERSISTING_FAILED | PERSISTED}
//
// Failure states are not terminal: a later attempt re-enters MATERIALIZING.
//
// # Concurrency
//
// Eligibility is evaluated synchronously. The in-progress check is advisory only: it
// relies on metadata being reloaded from shared storage right before the check and
// gives no atomicity. Two evaluators racing on the same asset can both see it idle.
// Schedulers that need exclusion must single-thread evaluation per asset.
package asset

// Status is the lifecycle state of an asset.
type Status string

// Lifecycle states.
const (
	StatusInitialized         Status = "INITIALIZED"
	StatusMaterializing       Status = "MATERIALIZING"
	StatusMaterializingFailed Status = "MATERIALIZING_FAILED"
	StatusMaterialized        Status = "MATERIALIZED"
	StatusPersisting          Status = "PERSISTING"
	StatusPersistingFailed    Status = "PERSISTING_FAILED"
	StatusPersisted           Status = "PERSISTED"
)

// Statuses lists every lifecycle state in protocol order.
var Statuses = []Status{
	StatusInitialized,
	StatusMaterializing,
	StatusMaterializingFailed,
	StatusMaterialized,
	StatusPersisting,
	StatusPersistingFailed,
	StatusPersisted,
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusInitialized, StatusMaterializing, StatusMaterializingFailed, StatusMaterialized,
		StatusPersisting, StatusPersistingFailed, StatusPersisted:
		return true
	default:
		return false
	}
}

// InProgress reports whether a materialize or persist attempt is underway.
func (s Status) InProgress() bool {
	return s == StatusMaterializing || s == StatusPersisting
}

// Failed reports whether the last attempt ended in an error.
func (s Status) Failed() bool {
	return s == StatusMaterializingFailed || s == StatusPersistingFailed
}

func (s Status) String() string { return string(s) }

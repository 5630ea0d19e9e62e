package loader

import "errors"

// Error taxonomy modeled as sentinel errors rather than a status-code
// enum -- idiomatic Go favors errors.Is/errors.As over a bespoke
// error-code type.
var (
	// ErrConflictingOperationInProgress signals that the config server's
	// view is internally inconsistent (a changed chunk's epoch does not
	// match the payload's epoch) -- surfaced to the caller, never
	// persisted.
	ErrConflictingOperationInProgress = errors.New("loader: conflicting operation in progress")

	// ErrNotMaster is returned by WaitForCollectionFlush when the local
	// node is not primary, or steps down mid-wait.
	ErrNotMaster = errors.New("loader: not master")

	// ErrPrimarySteppedDown is returned when a task's term no longer
	// matches the current term, or the node is no longer primary, at the
	// point it would be scheduled.
	ErrPrimarySteppedDown = errors.New("loader: primary stepped down")

	// ErrInterruptedAtShutdown is returned by operations that observe
	// the loader shutting down.
	ErrInterruptedAtShutdown = errors.New("loader: interrupted at shutdown")

	// ErrRoleNotInitialized is returned by getChunksSince before
	// InitializeReplicaSetRole has been called.
	ErrRoleNotInitialized = errors.New("loader: replica set role not yet initialized")

	// ErrAlreadyInitialized is returned by a second call to
	// InitializeReplicaSetRole.
	ErrAlreadyInitialized = errors.New("loader: replica set role already initialized")
)

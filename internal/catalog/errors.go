package catalog

import "errors"

// ErrIllegalDropAfterFullReload is returned by TaskList.AddTask when a drop
// task is enqueued immediately after a forced full-reload task (one with an
// unset MinQueryVersion). Surfaced as an error rather than a panic, since
// the loader needs to report it to the caller as an operational failure.
var ErrIllegalDropAfterFullReload = errors.New("catalog: cannot enqueue a drop immediately after an unset-minQueryVersion full reload")

// ErrNonContiguousTask is returned by TaskList.AddTask when a non-drop
// task's MinQueryVersion does not chain onto the current back task's
// MaxQueryVersion and is not an explicit full reload.
var ErrNonContiguousTask = errors.New("catalog: task is not contiguous with the current task list tail")

// ErrCollectionNotFound is the sentinel a PersistedReader's
// ReadCollectionEntry returns for a namespace with no persisted row yet.
// Declared here, rather than in internal/store, so the merger can
// recognize it without that package importing internal/store; store.Store
// implementations are expected to return this exact value (or wrap it)
// from ReadCollectionEntry.
var ErrCollectionNotFound = errors.New("catalog: collection entry not found")

package loader

// StaleTermPolicy governs what runTasks does when the front task's
// TermCreated no longer matches the current term.
type StaleTermPolicy int

const (
	// StaleTermAbort leaves the stale task in place and stops the
	// worker without popping it, treating a term mismatch as an
	// interruption rather than a thing to silently clean up. This is
	// the default.
	StaleTermAbort StaleTermPolicy = iota

	// StaleTermSkip pops the stale task without applying it and
	// continues draining the list.
	StaleTermSkip
)

// DefaultMaxWorkers bounds the number of task-draining goroutines a
// Loader runs concurrently, absent an explicit override.
const DefaultMaxWorkers = 6

// Options configures a Loader.
type Options struct {
	// MaxWorkers bounds the number of task-draining goroutines that may
	// run concurrently across all namespaces. Zero selects
	// DefaultMaxWorkers.
	MaxWorkers int

	// StaleTermPolicy selects runTasks' behavior on a term mismatch.
	StaleTermPolicy StaleTermPolicy
}

func (o Options) withDefaults() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}
	return o
}

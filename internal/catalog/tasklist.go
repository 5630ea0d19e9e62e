package catalog

import "sync"

// TaskList is the ordered, per-collection FIFO of pending Tasks. All
// structural methods (AddTask, PopFront, Front, Back, ...) assume the
// caller already holds the lock passed to NewTaskList -- the loader owns
// one process-wide state mutex guarding role, term and every TaskList's
// structure, and TaskList itself does not duplicate that
// locking. Only WaitForActiveTaskCompletion interacts with the lock
// directly, since it must release it across the wait.
type TaskList struct {
	mu    *sync.Mutex
	cond  *sync.Cond
	tasks []Task
}

// NewTaskList creates an empty TaskList whose completion condition variable
// is bound to mu. mu must be the same mutex the caller holds whenever it
// touches this TaskList's structure.
func NewTaskList(mu *sync.Mutex) *TaskList {
	return &TaskList{mu: mu, cond: sync.NewCond(mu)}
}

// Len reports the number of pending tasks.
func (l *TaskList) Len() int { return len(l.tasks) }

// Empty reports whether the list has no pending tasks.
func (l *TaskList) Empty() bool { return len(l.tasks) == 0 }

// Front returns the oldest (currently-executing-or-next) task. Panics if
// the list is empty.
func (l *TaskList) Front() Task { return l.tasks[0] }

// Back returns the newest task. Panics if the list is empty.
func (l *TaskList) Back() Task { return l.tasks[len(l.tasks)-1] }

// At returns the task at position i, counting from the front. Panics if
// out of range. Used by the waiter API to inspect the task immediately
// after the active one.
func (l *TaskList) At(i int) Task { return l.tasks[i] }

// AddTask enqueues t, applying the following coalescing rules:
//   - an empty list always accepts the task;
//   - a drop task must chain onto the current back task's MaxQueryVersion;
//     it discards every pending task except the front (which may currently
//     be executing) and is itself skipped if the front is already a drop;
//   - a non-drop task must chain onto the back task's MaxQueryVersion, or
//     carry an unset MinQueryVersion signaling a forced full reload.
func (l *TaskList) AddTask(t Task) error {
	if len(l.tasks) == 0 {
		l.tasks = append(l.tasks, t)
		return nil
	}

	back := l.tasks[len(l.tasks)-1]

	if t.Dropped {
		if !back.Dropped && !back.MinQueryVersion.IsSet() {
			return ErrIllegalDropAfterFullReload
		}
		if !back.MaxQueryVersion.Equal(t.MinQueryVersion) {
			return ErrNonContiguousTask
		}

		// Discard everything but the front: we can't tell whether the front
		// is currently being executed by a worker, so it must stay intact.
		l.tasks = l.tasks[:1]

		if !l.tasks[0].Dropped {
			l.tasks = append(l.tasks, t)
		}
		return nil
	}

	if !back.MaxQueryVersion.Equal(t.MinQueryVersion) && t.MinQueryVersion.IsSet() {
		return ErrNonContiguousTask
	}

	l.tasks = append(l.tasks, t)
	return nil
}

// PopFront removes the oldest task and wakes every waiter blocked on
// WaitForActiveTaskCompletion.
func (l *TaskList) PopFront() {
	l.tasks = l.tasks[1:]
	l.cond.Broadcast()
}

// WaitForActiveTaskCompletion atomically releases the shared state mutex,
// blocks until the next PopFront, then reacquires it. The caller must hold
// the mutex on entry and will hold it again on return.
func (l *TaskList) WaitForActiveTaskCompletion() {
	l.cond.Wait()
}

// HasTasksFromThisTerm reports whether the newest task was scheduled under
// term. Returns false for an empty list rather than panicking.
func (l *TaskList) HasTasksFromThisTerm(term uint64) bool {
	if len(l.tasks) == 0 {
		return false
	}
	return l.Back().TermCreated == term
}

// HighestVersionEnqueued returns the MaxQueryVersion of the newest task.
// Panics if the list is empty.
func (l *TaskList) HighestVersionEnqueued() ChunkVersion {
	return l.Back().MaxQueryVersion
}

// EnqueuedMetadataForTerm replays every task whose TermCreated equals term,
// in order, into a single CollectionAndChangedChunks: a drop resets the
// accumulator to empty; a task with a different epoch than the accumulator
// replaces it outright; otherwise its changed chunks are appended,
// de-duplicating the boundary chunk when the accumulator's last chunk and
// the task's first chunk carry the same version.
func (l *TaskList) EnqueuedMetadataForTerm(term uint64) CollectionAndChangedChunks {
	var acc CollectionAndChangedChunks

	for _, task := range l.tasks {
		if task.TermCreated != term {
			continue
		}

		if task.Dropped {
			acc = CollectionAndChangedChunks{}
			continue
		}

		if task.Payload.Epoch != acc.Epoch {
			acc = *task.Payload
			continue
		}

		chunks := task.Payload.ChangedChunks
		if len(acc.ChangedChunks) > 0 && len(chunks) > 0 &&
			acc.ChangedChunks[len(acc.ChangedChunks)-1].Version.Equal(chunks[0].Version) {
			chunks = chunks[1:]
		}
		acc.ChangedChunks = append(acc.ChangedChunks, chunks...)
	}

	return acc
}

package catalog

import "sync/atomic"

var taskNumGenerator atomic.Uint64

// nextTaskNum hands out the process-wide monotone task numbers used by the
// waiter API.
func nextTaskNum() uint64 {
	return taskNumGenerator.Add(1) - 1
}

// Task is one atomic "apply this diff" (or "apply this drop") unit of work
// queued against a single collection's TaskList.
type Task struct {
	TaskNum         uint64
	MinQueryVersion ChunkVersion
	MaxQueryVersion ChunkVersion
	TermCreated     uint64
	Payload         *CollectionAndChangedChunks
	Dropped         bool
}

// NewApplyTask builds a non-drop task from a freshly fetched
// CollectionAndChangedChunks. payload.ChangedChunks must be non-empty.
func NewApplyTask(payload CollectionAndChangedChunks, minQueryVersion ChunkVersion, term uint64) Task {
	if payload.Empty() {
		panic("catalog: NewApplyTask requires a non-empty payload")
	}
	return Task{
		TaskNum:         nextTaskNum(),
		MinQueryVersion: minQueryVersion,
		MaxQueryVersion: payload.MaxVersion(),
		TermCreated:     term,
		Payload:         &payload,
		Dropped:         false,
	}
}

// NewDropTask builds a drop task: the collection was found missing upstream
// (NamespaceNotFound) and must be cleared from persistence.
func NewDropTask(minQueryVersion ChunkVersion, term uint64) Task {
	return Task{
		TaskNum:         nextTaskNum(),
		MinQueryVersion: minQueryVersion,
		MaxQueryVersion: UnshardedVersion(),
		TermCreated:     term,
		Dropped:         true,
	}
}

package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/pavandhadge/routingcache/internal/catalog"
	"github.com/pavandhadge/routingcache/internal/upstream"
)

// primaryGetChunksSince fetches from the config server relative to the
// highest version this node already knows about (persisted or enqueued),
// decides whether that requires enqueueing a task, then answers from the
// merged view.
func (l *Loader) primaryGetChunksSince(ctx context.Context, nss string, since catalog.ChunkVersion, term uint64) (catalog.CollectionAndChangedChunks, error) {
	maxLoaderVersion, err := l.maxLoaderVersion(nss, term)
	if err != nil {
		return catalog.CollectionAndChangedChunks{}, err
	}

	payload, fetchErr := l.upstream.GetChunksSince(ctx, nss, maxLoaderVersion)
	switch {
	case errors.Is(fetchErr, upstream.ErrNamespaceNotFound):
		task := catalog.NewDropTask(maxLoaderVersion, term)
		if err := l.ensureMajorityPrimaryAndScheduleTask(ctx, nss, task); err != nil {
			return catalog.CollectionAndChangedChunks{}, err
		}
	case fetchErr != nil:
		return catalog.CollectionAndChangedChunks{}, fmt.Errorf("loader: config loader fetch for %s: %w", nss, fetchErr)
	default:
		if err := l.maybeEnqueueApplyTask(ctx, nss, payload, maxLoaderVersion, term); err != nil {
			return catalog.CollectionAndChangedChunks{}, err
		}
	}

	return l.mergedView(nss, since, term)
}

// maybeEnqueueApplyTask verifies the payload is internally consistent,
// then enqueues only if it tells us something we don't already know (a
// new epoch, or chunks past maxLoaderVersion).
func (l *Loader) maybeEnqueueApplyTask(ctx context.Context, nss string, payload catalog.CollectionAndChangedChunks, maxLoaderVersion catalog.ChunkVersion, term uint64) error {
	if !payload.Empty() && payload.MaxVersion().Epoch != payload.Epoch {
		return ErrConflictingOperationInProgress
	}

	needsApply := payload.Epoch != maxLoaderVersion.Epoch
	if !payload.Empty() && payload.MaxVersion().GreaterOrEqual(maxLoaderVersion) && !payload.MaxVersion().Equal(maxLoaderVersion) {
		needsApply = true
	}
	if !needsApply || payload.Empty() {
		return nil
	}

	task := catalog.NewApplyTask(payload, maxLoaderVersion, term)
	return l.ensureMajorityPrimaryAndScheduleTask(ctx, nss, task)
}

// maxLoaderVersion prefers what's already enqueued this term over what's
// durably persisted, since unapplied tasks already define what this node
// will soon know.
func (l *Loader) maxLoaderVersion(nss string, term uint64) (catalog.ChunkVersion, error) {
	l.mu.Lock()
	tl := l.taskLists[nss]
	hasCurrentTermTasks := tl != nil && tl.HasTasksFromThisTerm(term)
	var enqueuedMax catalog.ChunkVersion
	if hasCurrentTermTasks {
		enqueuedMax = tl.HighestVersionEnqueued()
	}
	l.mu.Unlock()

	if hasCurrentTermTasks {
		return enqueuedMax, nil
	}
	return l.currentPersistedVersion(nss)
}

// ensureMajorityPrimaryAndScheduleTask guards against enqueueing work this
// node is about to lose the authority to perform, via a linearizable-read
// barrier (a majority-acknowledged no-op).
func (l *Loader) ensureMajorityPrimaryAndScheduleTask(ctx context.Context, nss string, task catalog.Task) error {
	if err := l.repl.WaitForMajorityNoOp(ctx); err != nil {
		return fmt.Errorf("loader: majority no-op barrier for %s: %w", nss, err)
	}

	l.mu.Lock()
	if l.role != catalog.RolePrimary || l.term != task.TermCreated {
		l.mu.Unlock()
		return ErrPrimarySteppedDown
	}

	tl, ok := l.taskLists[nss]
	if !ok {
		tl = catalog.NewTaskList(&l.mu)
		l.taskLists[nss] = tl
	}
	wasEmpty := tl.Empty()

	if err := tl.AddTask(task); err != nil {
		l.mu.Unlock()
		return err
	}
	l.mu.Unlock()

	if wasEmpty {
		l.submitWorker(nss)
	}
	return nil
}

// mergedView answers getChunksSince by reconciling whatever is durably
// persisted with whatever this term has enqueued but not yet applied.
func (l *Loader) mergedView(nss string, since catalog.ChunkVersion, term uint64) (catalog.CollectionAndChangedChunks, error) {
	l.mu.Lock()
	tl := l.taskLists[nss]
	l.mu.Unlock()

	return catalog.GetLoaderMetadata(l.store, nss, since, term, tl)
}

// runTasks drains nss's TaskList one task at a time, enforcing the "at
// most one worker per nss" invariant by construction: this function is
// only ever launched from submitWorker when the list transitions from
// empty, and it keeps draining in its own goroutine rather than
// resubmitting.
func (l *Loader) runTasks(nss string) {
	for {
		if l.isShuttingDown() {
			return
		}

		l.mu.Lock()
		tl := l.taskLists[nss]
		if tl == nil || tl.Empty() {
			l.mu.Unlock()
			return
		}
		front := tl.Front()
		currentTerm := l.term
		l.mu.Unlock()

		if front.TermCreated != currentTerm {
			if l.opts.StaleTermPolicy == StaleTermSkip {
				l.mu.Lock()
				tl.PopFront()
				l.mu.Unlock()
				continue
			}
			// StaleTermAbort: leave the task in place; the next
			// getChunksSince or step-up retries scheduling.
			return
		}

		var applyErr error
		if front.Dropped {
			applyErr = l.store.DropChunksAndEntry(nss)
		} else {
			applyErr = l.persistCollectionAndChangedChunks(nss, front.Payload)
		}

		if applyErr != nil {
			if l.isShuttingDown() {
				return
			}
			logTaskFailure(nss, applyErr)
			return
		}

		l.mu.Lock()
		tl.PopFront()
		hasMore := !tl.Empty()
		l.mu.Unlock()

		l.notify.NotifyChanged(nss)

		if !hasMore {
			return
		}
	}
}

// persistCollectionAndChangedChunks brackets the chunk-write burst with a
// two-phase refreshing marker.
func (l *Loader) persistCollectionAndChangedChunks(nss string, payload *catalog.CollectionAndChangedChunks) error {
	entry := catalog.CollectionEntry{
		NSS:              nss,
		UUID:             payload.UUID,
		Epoch:            payload.Epoch,
		ShardKeyPattern:  payload.ShardKeyPattern,
		DefaultCollation: payload.DefaultCollation,
		Unique:           payload.Unique,
	}
	if err := l.store.UpsertCollectionEntry(entry); err != nil {
		return fmt.Errorf("loader: upsert collection entry for %s: %w", nss, err)
	}
	if err := l.store.SetRefreshing(nss, true, nil); err != nil {
		return fmt.Errorf("loader: set refreshing for %s: %w", nss, err)
	}
	if err := l.store.ApplyChunkDiff(nss, payload.ChangedChunks); err != nil {
		return fmt.Errorf("loader: apply chunk diff for %s: %w", nss, err)
	}
	last := payload.MaxVersion()
	if err := l.store.SetRefreshing(nss, false, &last); err != nil {
		return fmt.Errorf("loader: clear refreshing for %s: %w", nss, err)
	}
	return nil
}

// Package loader implements the shard-local routing cache loader state
// machine: the term/role-aware scheduler that fetches chunk deltas from
// the config server, serializes
// them into per-collection task queues, applies them to the persistent
// store under crash-safe markers, and answers "give me all chunks since
// version V" by merging persisted state with in-flight enqueued tasks.
package loader

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/pavandhadge/routingcache/internal/catalog"
	"github.com/pavandhadge/routingcache/internal/dispatch"
	"github.com/pavandhadge/routingcache/internal/replcoord"
	"github.com/pavandhadge/routingcache/internal/store"
	"github.com/pavandhadge/routingcache/internal/upstream"
)

// Loader is the process-wide loader state: role, term, the per-namespace
// task queues, and the collaborators it drives.
type Loader struct {
	opts Options

	mu           sync.Mutex
	role         catalog.Role
	term         uint64
	initialized  bool
	shuttingDown bool
	taskLists    map[string]*catalog.TaskList

	notify   *catalog.NotificationBus
	store    store.Store
	upstream upstream.ConfigLoader
	repl     replcoord.ReplicationCoordinator
	dispatch dispatch.RefreshDispatcher

	sem chan struct{}
}

// New builds a Loader around its four external collaborators: the config
// loader, the storage engine (store.Store), the replication coordinator,
// and the command dispatcher.
func New(st store.Store, cfgLoader upstream.ConfigLoader, repl replcoord.ReplicationCoordinator, disp dispatch.RefreshDispatcher, opts Options) *Loader {
	opts = opts.withDefaults()
	return &Loader{
		opts:      opts,
		taskLists: make(map[string]*catalog.TaskList),
		notify:    catalog.NewNotificationBus(),
		store:     st,
		upstream:  cfgLoader,
		repl:      repl,
		dispatch:  disp,
		sem:       make(chan struct{}, opts.MaxWorkers),
	}
}

// InitializeReplicaSetRole is the one-shot None -> Primary|Secondary
// transition.
func (l *Loader) InitializeReplicaSetRole(isPrimary bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return ErrAlreadyInitialized
	}
	l.initialized = true
	if isPrimary {
		l.role = catalog.RolePrimary
	} else {
		l.role = catalog.RoleSecondary
	}
	return nil
}

// OnStepUp transitions to Primary and increments the term.
func (l *Loader) OnStepUp() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.role = catalog.RolePrimary
	l.term++
}

// OnStepDown transitions to Secondary and increments the term. In-flight
// workers observe the new term on their next loop iteration and stop
// touching tasks created under the old one.
func (l *Loader) OnStepDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.role = catalog.RoleSecondary
	l.term++
}

// NotifyOfCollectionVersionUpdate wakes any secondary reader blocked on nss.
func (l *Loader) NotifyOfCollectionVersionUpdate(nss string) {
	l.notify.NotifyChanged(nss)
}

// CurrentRole reports the loader's role right now.
func (l *Loader) CurrentRole() catalog.Role {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.role
}

// CurrentTerm reports the loader's term right now.
func (l *Loader) CurrentTerm() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.term
}

// GetChunksSince is the top-level dispatcher: it selects the primary or
// secondary path under the role/term lock, then runs the rest of the
// work without holding it.
func (l *Loader) GetChunksSince(ctx context.Context, nss string, since catalog.ChunkVersion) (catalog.CollectionAndChangedChunks, error) {
	l.mu.Lock()
	shuttingDown := l.shuttingDown
	role := l.role
	term := l.term
	l.mu.Unlock()

	if shuttingDown {
		return catalog.CollectionAndChangedChunks{}, ErrInterruptedAtShutdown
	}

	switch role {
	case catalog.RolePrimary:
		return l.primaryGetChunksSince(ctx, nss, since, term)
	case catalog.RoleSecondary:
		return l.secondaryGetChunksSince(ctx, nss, since)
	default:
		return catalog.CollectionAndChangedChunks{}, ErrRoleNotInitialized
	}
}

// RefreshNow implements dispatch.Refresher: the primary-side handler for a
// secondary's forceRoutingTableRefresh RPC. It runs the primary path to
// bring nss up to date and returns the resulting logical operation time.
func (l *Loader) RefreshNow(ctx context.Context, nss string) (int64, error) {
	l.mu.Lock()
	shuttingDown := l.shuttingDown
	role := l.role
	term := l.term
	l.mu.Unlock()

	if shuttingDown {
		return 0, ErrInterruptedAtShutdown
	}
	if role != catalog.RolePrimary {
		return 0, ErrNotMaster
	}

	since, err := l.currentPersistedVersion(nss)
	if err != nil {
		return 0, err
	}

	if _, err := l.primaryGetChunksSince(ctx, nss, since, term); err != nil {
		return 0, err
	}
	if err := l.WaitForCollectionFlush(ctx, nss); err != nil {
		return 0, err
	}

	return l.repl.CurrentOpTime(), nil
}

// WaitForCollectionFlush blocks until every task enqueued for nss as of
// the call has been applied or superseded by a drop.
func (l *Loader) WaitForCollectionFlush(ctx context.Context, nss string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	initialTerm := l.term
	var taskNumToWait *uint64

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.role != catalog.RolePrimary || l.term != initialTerm {
			return ErrNotMaster
		}

		tl, ok := l.taskLists[nss]
		if !ok || tl.Empty() {
			return nil
		}

		if taskNumToWait == nil {
			v := tl.Back().TaskNum
			taskNumToWait = &v
		}

		if front := tl.Front(); front.TaskNum > *taskNumToWait {
			// The task we captured has already popped. That's only success
			// if nothing behind it is a drop still waiting to run: a drop
			// enqueued concurrently coalesces onto the tail (TaskList.AddTask)
			// and can end up sitting at the front, or immediately behind it,
			// without having applied yet -- we have to keep waiting for it.
			switch {
			case front.Dropped:
				v := front.TaskNum
				taskNumToWait = &v
			case tl.Len() > 1 && tl.At(1).Dropped:
				v := tl.At(1).TaskNum
				taskNumToWait = &v
			default:
				return nil
			}
		}

		tl.WaitForActiveTaskCompletion()
	}
}

// Shutdown drains every running worker and marks the loader as shutting
// down, so no further task is scheduled.
func (l *Loader) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	l.shuttingDown = true
	l.mu.Unlock()

	for i := 0; i < l.opts.MaxWorkers; i++ {
		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for i := 0; i < l.opts.MaxWorkers; i++ {
		<-l.sem
	}
	return nil
}

func (l *Loader) isShuttingDown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shuttingDown
}

// currentPersistedVersion returns the collection's durable high-water
// mark, or UnshardedVersion if nothing has ever been persisted for nss.
func (l *Loader) currentPersistedVersion(nss string) (catalog.ChunkVersion, error) {
	entry, err := l.store.ReadCollectionEntry(nss)
	if err != nil {
		if err == store.ErrNotFound {
			return catalog.UnshardedVersion(), nil
		}
		return catalog.ChunkVersion{}, fmt.Errorf("loader: read collection entry for %s: %w", nss, err)
	}
	if entry.LastRefreshedVersion != nil {
		return *entry.LastRefreshedVersion, nil
	}
	return catalog.UnshardedVersion(), nil
}

// submitWorker launches the single drain loop for nss, bounded by the
// loader's worker pool semaphore.
func (l *Loader) submitWorker(nss string) {
	go func() {
		l.sem <- struct{}{}
		defer func() { <-l.sem }()
		l.runTasks(nss)
	}()
}

func logTaskFailure(nss string, err error) {
	log.Printf("loader: applying task for %s failed, leaving it queued for retry: %v", nss, err)
}

// Package upstream declares the ConfigLoader collaborator: the interface
// the loader uses to fetch chunk deltas from the config replica set. The
// wire protocol to the config servers is out of scope here, so this
// package ships only the interface plus an in-memory stand-in used by tests
// and by the example binary.
package upstream

import (
	"context"
	"errors"
	"sync"

	"github.com/pavandhadge/routingcache/internal/catalog"
)

// ErrNamespaceNotFound is returned by GetChunksSince when the config server
// has no record of nss at all, signaling the primary path's drop case.
var ErrNamespaceNotFound = errors.New("upstream: namespace not found")

// ConfigLoader fetches chunk deltas for nss with version >= since, filtered
// to whichever epoch the config server currently has on record for nss.
type ConfigLoader interface {
	GetChunksSince(ctx context.Context, nss string, since catalog.ChunkVersion) (catalog.CollectionAndChangedChunks, error)
}

// StaticConfigLoader is an in-memory ConfigLoader, a fake that answers
// without a network round trip. Tests and the example binary populate it
// directly with the same CollectionAndChangedChunks shape a real config
// server would answer with.
type StaticConfigLoader struct {
	mu         sync.Mutex
	namespaces map[string]catalog.CollectionAndChangedChunks
}

// NewStaticConfigLoader creates an empty loader; use Set to seed namespaces.
func NewStaticConfigLoader() *StaticConfigLoader {
	return &StaticConfigLoader{namespaces: make(map[string]catalog.CollectionAndChangedChunks)}
}

// Set replaces the full authoritative view for nss.
func (l *StaticConfigLoader) Set(nss string, view catalog.CollectionAndChangedChunks) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.namespaces[nss] = view
}

// Drop removes nss, so a subsequent GetChunksSince returns ErrNamespaceNotFound.
func (l *StaticConfigLoader) Drop(nss string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.namespaces, nss)
}

// GetChunksSince returns the portion of nss's current view with version >=
// since, filtered to since's epoch when it matches the stored epoch, or the
// full view when the epoch differs (collection was recreated).
func (l *StaticConfigLoader) GetChunksSince(ctx context.Context, nss string, since catalog.ChunkVersion) (catalog.CollectionAndChangedChunks, error) {
	if err := ctx.Err(); err != nil {
		return catalog.CollectionAndChangedChunks{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	view, ok := l.namespaces[nss]
	if !ok {
		return catalog.CollectionAndChangedChunks{}, ErrNamespaceNotFound
	}

	if view.Epoch != since.Epoch {
		return view, nil
	}

	out := view
	out.ChangedChunks = nil
	for _, c := range view.ChangedChunks {
		if c.Version.GreaterOrEqual(since) {
			out.ChangedChunks = append(out.ChangedChunks, c)
		}
	}
	return out, nil
}

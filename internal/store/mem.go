package store

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pavandhadge/routingcache/internal/catalog"
)

// MemStore is an in-memory Store used by loader tests that would otherwise
// need a real pebble directory on disk -- a double that keeps the same
// contract without disk I/O.
type MemStore struct {
	mu          sync.Mutex
	collections map[string]catalog.CollectionEntry
	chunks      map[string][]catalog.ChunkEntry // keyed by nss, in insertion order
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		collections: make(map[string]catalog.CollectionEntry),
		chunks:      make(map[string][]catalog.ChunkEntry),
	}
}

func (s *MemStore) ReadCollectionEntry(nss string) (catalog.CollectionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.collections[nss]
	if !ok {
		return catalog.CollectionEntry{}, ErrNotFound
	}
	return e.Clone(), nil
}

func (s *MemStore) UpsertCollectionEntry(entry catalog.CollectionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.collections[entry.NSS]
	if !ok {
		s.collections[entry.NSS] = entry.Clone()
		return nil
	}
	// Idempotent upsert: merge the incoming fields but keep the stored
	// Refreshing/LastRefreshedVersion; only SetRefreshing changes those.
	existing.UUID = entry.UUID
	existing.Epoch = entry.Epoch
	existing.ShardKeyPattern = entry.ShardKeyPattern
	existing.DefaultCollation = entry.DefaultCollation
	existing.Unique = entry.Unique
	s.collections[entry.NSS] = existing
	return nil
}

func (s *MemStore) SetRefreshing(nss string, refreshing bool, lastRefreshed *catalog.ChunkVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.collections[nss]
	if !ok {
		return ErrNotFound
	}
	e.Refreshing = refreshing
	if !refreshing {
		if lastRefreshed == nil {
			return ErrNotFound
		}
		v := *lastRefreshed
		e.LastRefreshedVersion = &v
	}
	s.collections[nss] = e
	return nil
}

func (s *MemStore) ReadChunks(nss string, since catalog.ChunkVersion, requiredEpoch uuid.UUID) ([]catalog.ChunkEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.collections[nss]
	if ok && e.Epoch != requiredEpoch {
		return nil, ErrEpochMismatch
	}

	floor := since
	if floor.Epoch != requiredEpoch {
		floor = catalog.ChunkVersion{Epoch: requiredEpoch}
	}

	var out []catalog.ChunkEntry
	for _, c := range s.chunks[nss] {
		if c.Version.Epoch != requiredEpoch {
			continue
		}
		if c.Version.GreaterOrEqual(floor) {
			out = append(out, c.Clone())
		}
	}
	catalog.SortChunksByVersion(out)
	return out, nil
}

func (s *MemStore) ApplyChunkDiff(nss string, newChunks []catalog.ChunkEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.chunks[nss]
	for _, nc := range newChunks {
		filtered := existing[:0:0]
		for _, old := range existing {
			if old.Overlaps(nc) {
				continue
			}
			filtered = append(filtered, old)
		}
		existing = append(filtered, nc.Clone())
	}
	s.chunks[nss] = existing
	return nil
}

func (s *MemStore) DropChunksAndEntry(nss string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, nss)
	delete(s.collections, nss)
	return nil
}

func (s *MemStore) Close() error { return nil }

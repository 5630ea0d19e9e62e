// Package store implements the persistent store interface: the
// shard-local mirror of shard_collections and shard_chunks[nss], backed by
// github.com/cockroachdb/pebble.
package store

import (
	"errors"

	"github.com/google/uuid"
	"github.com/pavandhadge/routingcache/internal/catalog"
)

// ErrNotFound is returned when a collection entry is absent. It is the
// same sentinel internal/catalog's merger recognizes as "nothing persisted
// yet", so a cold Store and a cold merger agree on what "not found" means.
var ErrNotFound = catalog.ErrCollectionNotFound

// ErrEpochMismatch is returned by ReadChunks when the caller's required
// epoch disagrees with the epoch stored for the namespace's chunks.
var ErrEpochMismatch = errors.New("store: chunk epoch mismatch")

// Store is the persistent store interface every shard-local backend implements.
type Store interface {
	// ReadCollectionEntry returns the row for nss, or ErrNotFound.
	ReadCollectionEntry(nss string) (catalog.CollectionEntry, error)

	// UpsertCollectionEntry idempotently creates or updates nss's row.
	UpsertCollectionEntry(entry catalog.CollectionEntry) error

	// SetRefreshing marks nss as currently being refreshed. When refreshing
	// is false, lastRefreshed must be provided and is durably recorded as
	// the collection's LastRefreshedVersion -- a crash-safe two-phase marker.
	SetRefreshing(nss string, refreshing bool, lastRefreshed *catalog.ChunkVersion) error

	// ReadChunks returns the chunks for nss with version >= since, sorted
	// ascending by version. A since from another epoch than requiredEpoch
	// (UnshardedVersion, for one) reads from the start of requiredEpoch.
	// requiredEpoch must match the namespace's current epoch or
	// ErrEpochMismatch is returned.
	ReadChunks(nss string, since catalog.ChunkVersion, requiredEpoch uuid.UUID) ([]catalog.ChunkEntry, error)

	// ApplyChunkDiff upserts newChunks into nss's chunk table. For each new
	// chunk, every existing chunk whose key range intersects it is removed
	// before the new chunk is inserted.
	ApplyChunkDiff(nss string, newChunks []catalog.ChunkEntry) error

	// DropChunksAndEntry removes nss's entire chunk table and its
	// collection entry.
	DropChunksAndEntry(nss string) error

	// Close releases the underlying storage handle.
	Close() error
}

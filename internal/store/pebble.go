package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/pavandhadge/routingcache/internal/catalog"
)

const (
	collectionKeyPrefix = "coll:"
	chunkKeyPrefix      = "chunk:"
)

// PebbleDB is the pebble-backed implementation of Store, stripped down to
// the collection/chunk rows this loader needs -- no vector index, no HNSW
// WAL, just ordered KV with range scans.
type PebbleDB struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

// Options configures the underlying pebble instance.
type Options struct {
	Path     string
	CacheMB  int64
	NoSync   bool // trade fsync-per-write durability for throughput
}

// Open initializes a PebbleDB rooted at opts.Path, creating it if missing.
func Open(opts Options) (*PebbleDB, error) {
	dbOpts := &pebble.Options{}
	if opts.CacheMB > 0 {
		dbOpts.Cache = pebble.NewCache(opts.CacheMB * 1024 * 1024)
	}

	db, err := pebble.Open(opts.Path, dbOpts)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open pebble db at %s: %w", opts.Path, err)
	}

	writeOpts := pebble.Sync
	if opts.NoSync {
		writeOpts = pebble.NoSync
	}

	return &PebbleDB{db: db, writeOpts: writeOpts}, nil
}

func collectionKey(nss string) []byte {
	return []byte(collectionKeyPrefix + nss)
}

func chunkKeyPrefixFor(nss string) []byte {
	return []byte(chunkKeyPrefix + nss + ":")
}

func chunkKey(nss string, minKey []byte) []byte {
	return append(chunkKeyPrefixFor(nss), minKey...)
}

// prefixUpperBound returns the lexicographically least key that is
// strictly greater than every key with prefix p, for use as an exclusive
// pebble.IterOptions.UpperBound / DeleteRange end. Appending a single 0xFF
// byte is NOT sufficient: pebble's default comparer orders keys byte-wise
// with a prefix sorting before any longer key it prefixes, so a chunk key
// of p+[]byte{0xFF,...} would collide with (and be excluded by) that naive
// bound. The correct successor increments the last byte of p that is not
// 0xFF, discarding every trailing 0xFF byte first; if p is all 0xFF (or
// empty), there is no finite successor and the scan must be unbounded.
func prefixUpperBound(p []byte) []byte {
	bound := append([]byte(nil), p...)
	for len(bound) > 0 {
		if bound[len(bound)-1] != 0xFF {
			bound[len(bound)-1]++
			return bound[:len(bound)]
		}
		bound = bound[:len(bound)-1]
	}
	return nil
}

type persistedCollection struct {
	UUID                 *uuid.UUID          `json:"uuid,omitempty"`
	Epoch                uuid.UUID           `json:"epoch"`
	ShardKeyPattern      []byte              `json:"shard_key_pattern,omitempty"`
	DefaultCollation     []byte              `json:"default_collation,omitempty"`
	Unique               bool                `json:"unique"`
	Refreshing           bool                `json:"refreshing"`
	LastRefreshedVersion *catalog.ChunkVersion `json:"last_refreshed_version,omitempty"`
}

func toPersisted(e catalog.CollectionEntry) persistedCollection {
	return persistedCollection{
		UUID:                 e.UUID,
		Epoch:                e.Epoch,
		ShardKeyPattern:      e.ShardKeyPattern,
		DefaultCollation:     e.DefaultCollation,
		Unique:               e.Unique,
		Refreshing:           e.Refreshing,
		LastRefreshedVersion: e.LastRefreshedVersion,
	}
}

func (p persistedCollection) toEntry(nss string) catalog.CollectionEntry {
	return catalog.CollectionEntry{
		NSS:                  nss,
		UUID:                 p.UUID,
		Epoch:                p.Epoch,
		ShardKeyPattern:      p.ShardKeyPattern,
		DefaultCollation:     p.DefaultCollation,
		Unique:               p.Unique,
		Refreshing:           p.Refreshing,
		LastRefreshedVersion: p.LastRefreshedVersion,
	}
}

func (p *PebbleDB) readCollection(nss string) (persistedCollection, error) {
	val, closer, err := p.db.Get(collectionKey(nss))
	if err == pebble.ErrNotFound {
		return persistedCollection{}, ErrNotFound
	}
	if err != nil {
		return persistedCollection{}, fmt.Errorf("store: read collection entry for %s: %w", nss, err)
	}
	defer closer.Close()

	var pc persistedCollection
	if err := json.Unmarshal(val, &pc); err != nil {
		return persistedCollection{}, fmt.Errorf("store: decode collection entry for %s: %w", nss, err)
	}
	return pc, nil
}

func (p *PebbleDB) writeCollection(nss string, pc persistedCollection) error {
	buf, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("store: encode collection entry for %s: %w", nss, err)
	}
	return p.db.Set(collectionKey(nss), buf, p.writeOpts)
}

func (p *PebbleDB) ReadCollectionEntry(nss string) (catalog.CollectionEntry, error) {
	pc, err := p.readCollection(nss)
	if err != nil {
		return catalog.CollectionEntry{}, err
	}
	return pc.toEntry(nss), nil
}

func (p *PebbleDB) UpsertCollectionEntry(entry catalog.CollectionEntry) error {
	existing, err := p.readCollection(entry.NSS)
	if err != nil && err != ErrNotFound {
		return err
	}

	pc := toPersisted(entry)
	// Upsert must not clobber the refreshing marker unless the caller is
	// explicitly flipping it via SetRefreshing.
	pc.Refreshing = existing.Refreshing
	pc.LastRefreshedVersion = existing.LastRefreshedVersion

	return p.writeCollection(entry.NSS, pc)
}

func (p *PebbleDB) SetRefreshing(nss string, refreshing bool, lastRefreshed *catalog.ChunkVersion) error {
	pc, err := p.readCollection(nss)
	if err != nil {
		return err
	}
	pc.Refreshing = refreshing
	if !refreshing {
		if lastRefreshed == nil {
			return fmt.Errorf("store: SetRefreshing(false) for %s requires lastRefreshed", nss)
		}
		v := *lastRefreshed
		pc.LastRefreshedVersion = &v
	}
	return p.writeCollection(nss, pc)
}

func (p *PebbleDB) ReadChunks(nss string, since catalog.ChunkVersion, requiredEpoch uuid.UUID) ([]catalog.ChunkEntry, error) {
	pc, err := p.readCollection(nss)
	if err == nil && pc.Epoch != requiredEpoch {
		return nil, ErrEpochMismatch
	}
	if err != nil && err != ErrNotFound {
		return nil, err
	}

	floor := since
	if floor.Epoch != requiredEpoch {
		floor = catalog.ChunkVersion{Epoch: requiredEpoch}
	}

	prefix := chunkKeyPrefixFor(nss)
	upperBound := prefixUpperBound(prefix)

	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound})
	if err != nil {
		return nil, fmt.Errorf("store: new iterator for %s: %w", nss, err)
	}
	defer iter.Close()

	var out []catalog.ChunkEntry
	for iter.SeekGE(prefix); iter.Valid() && bytes.HasPrefix(iter.Key(), prefix); iter.Next() {
		var ce catalog.ChunkEntry
		if err := json.Unmarshal(iter.Value(), &ce); err != nil {
			return nil, fmt.Errorf("store: decode chunk for %s: %w", nss, err)
		}
		if ce.Version.Epoch != requiredEpoch {
			continue
		}
		if ce.Version.GreaterOrEqual(floor) {
			out = append(out, ce)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	catalog.SortChunksByVersion(out)
	return out, nil
}

func (p *PebbleDB) ApplyChunkDiff(nss string, newChunks []catalog.ChunkEntry) error {
	for _, nc := range newChunks {
		if err := p.removeOverlapping(nss, nc); err != nil {
			return err
		}
		buf, err := json.Marshal(nc)
		if err != nil {
			return fmt.Errorf("store: encode chunk for %s: %w", nss, err)
		}
		if err := p.db.Set(chunkKey(nss, nc.MinKey), buf, p.writeOpts); err != nil {
			return fmt.Errorf("store: write chunk for %s: %w", nss, err)
		}
	}
	return nil
}

// removeOverlapping deletes every persisted chunk for nss whose range
// intersects nc's range, before nc itself is inserted.
func (p *PebbleDB) removeOverlapping(nss string, nc catalog.ChunkEntry) error {
	prefix := chunkKeyPrefixFor(nss)
	upperBound := prefixUpperBound(prefix)

	iter, err := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upperBound})
	if err != nil {
		return err
	}
	defer iter.Close()

	var toDelete [][]byte
	for iter.SeekGE(prefix); iter.Valid() && bytes.HasPrefix(iter.Key(), prefix); iter.Next() {
		var existing catalog.ChunkEntry
		if err := json.Unmarshal(iter.Value(), &existing); err != nil {
			return fmt.Errorf("store: decode chunk for %s: %w", nss, err)
		}
		if existing.Overlaps(nc) {
			toDelete = append(toDelete, append([]byte{}, iter.Key()...))
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}

	for _, k := range toDelete {
		if err := p.db.Delete(k, p.writeOpts); err != nil {
			return fmt.Errorf("store: delete overlapping chunk for %s: %w", nss, err)
		}
	}
	return nil
}

func (p *PebbleDB) DropChunksAndEntry(nss string) error {
	prefix := chunkKeyPrefixFor(nss)
	// prefix always starts with the literal "chunk:" text, so it can never
	// be all 0xFF bytes and prefixUpperBound always returns a real bound
	// here -- DeleteRange has no "open-ended" form, unlike IterOptions.
	upperBound := prefixUpperBound(prefix)
	if err := p.db.DeleteRange(prefix, upperBound, p.writeOpts); err != nil {
		return fmt.Errorf("store: drop chunks for %s: %w", nss, err)
	}
	if err := p.db.Delete(collectionKey(nss), p.writeOpts); err != nil && err != pebble.ErrNotFound {
		return fmt.Errorf("store: drop collection entry for %s: %w", nss, err)
	}
	return nil
}

func (p *PebbleDB) Close() error {
	return p.db.Close()
}

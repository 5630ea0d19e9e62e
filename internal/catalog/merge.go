package catalog

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PersistedReader is the read-only subset of the Persistent Store Interface
// the merger needs. It is declared here, against catalog's own types, so
// that any store.Store value satisfies it structurally without internal/store
// importing internal/catalog's callers -- avoiding an import cycle while
// still letting the loader pass its real store straight through.
type PersistedReader interface {
	ReadCollectionEntry(nss string) (CollectionEntry, error)
	ReadChunks(nss string, since ChunkVersion, requiredEpoch uuid.UUID) ([]ChunkEntry, error)
}

// GetPersistedMetadataSinceVersion reads the collection entry, rewinds to a
// full replay if the caller's epoch is stale, then reads the chunk tail.
// okWhileRefreshing documents the caller's
// intent -- whether it is acceptable for the read to race an in-progress
// apply -- but is not itself interpreted here; callers that care inspect the
// collection entry's Refreshing flag before or after calling this.
func GetPersistedMetadataSinceVersion(reader PersistedReader, nss string, since ChunkVersion, okWhileRefreshing bool) (CollectionAndChangedChunks, error) {
	entry, err := reader.ReadCollectionEntry(nss)
	if errors.Is(err, ErrCollectionNotFound) {
		return CollectionAndChangedChunks{}, nil
	}
	if err != nil {
		return CollectionAndChangedChunks{}, err
	}

	startingVersion := since
	if entry.Epoch != since.Epoch {
		startingVersion = ChunkVersion{Major: 0, Minor: 0, Epoch: entry.Epoch}
	}

	chunks, err := reader.ReadChunks(nss, startingVersion, entry.Epoch)
	if err != nil {
		return CollectionAndChangedChunks{}, fmt.Errorf("catalog: read chunks for %s: %w", nss, err)
	}

	return CollectionAndChangedChunks{
		UUID:             entry.UUID,
		Epoch:            entry.Epoch,
		ShardKeyPattern:  entry.ShardKeyPattern,
		DefaultCollation: entry.DefaultCollation,
		Unique:           entry.Unique,
		ChangedChunks:    chunks,
	}, nil
}

// GetIncompletePersistedMetadataSinceVersion wraps
// GetPersistedMetadataSinceVersion with a race check: after
// reading the chunk tail, the collection entry is re-read, and if its epoch
// has since changed -- a concurrent drop-and-recreate raced this read -- an
// empty result is returned rather than a torn mix of old and new epochs.
func GetIncompletePersistedMetadataSinceVersion(reader PersistedReader, nss string, since ChunkVersion) (CollectionAndChangedChunks, error) {
	result, err := GetPersistedMetadataSinceVersion(reader, nss, since, true)
	if err != nil {
		return CollectionAndChangedChunks{}, err
	}

	after, err := reader.ReadCollectionEntry(nss)
	if err != nil && !errors.Is(err, ErrCollectionNotFound) {
		return CollectionAndChangedChunks{}, err
	}
	var afterEpoch uuid.UUID
	if err == nil {
		afterEpoch = after.Epoch
	}
	if afterEpoch != result.Epoch {
		return CollectionAndChangedChunks{}, nil
	}

	return result, nil
}

// GetLoaderMetadata reconciles
// persisted state for nss as of since with whatever this term has already
// enqueued but not yet applied. taskList may be nil, meaning no TaskList
// exists yet for nss.
func GetLoaderMetadata(reader PersistedReader, nss string, since ChunkVersion, term uint64, taskList *TaskList) (CollectionAndChangedChunks, error) {
	var enqueued CollectionAndChangedChunks
	tasksPresent := false
	if taskList != nil {
		tasksPresent = taskList.HasTasksFromThisTerm(term)
		if tasksPresent {
			enqueued = taskList.EnqueuedMetadataForTerm(term)
		}
	}

	persisted, err := GetIncompletePersistedMetadataSinceVersion(reader, nss, since)
	if err != nil {
		return CollectionAndChangedChunks{}, err
	}

	if !tasksPresent {
		return persisted, nil
	}

	if enqueued.Empty() || persisted.Empty() || enqueued.Epoch != persisted.Epoch {
		return enqueued, nil
	}

	// Overlap pruning: drop every persisted chunk that the enqueued tail
	// will supersede, using the enqueued tail's minimum version as the
	// cut point (versions strictly increase within an epoch, so this is
	// sufficient).
	cut := enqueued.MinVersion()
	merged := persisted
	merged.ChangedChunks = nil
	for _, c := range persisted.ChangedChunks {
		if c.Version.GreaterOrEqual(cut) {
			break
		}
		merged.ChangedChunks = append(merged.ChangedChunks, c)
	}
	merged.ChangedChunks = append(merged.ChangedChunks, enqueued.ChangedChunks...)

	return merged, nil
}

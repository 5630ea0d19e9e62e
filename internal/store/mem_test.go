package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/pavandhadge/routingcache/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreUpsertAndReadCollectionEntry(t *testing.T) {
	s := NewMemStore()
	epoch := uuid.New()

	err := s.UpsertCollectionEntry(catalog.CollectionEntry{NSS: "db.coll", Epoch: epoch, Unique: true})
	require.NoError(t, err)

	entry, err := s.ReadCollectionEntry("db.coll")
	require.NoError(t, err)
	assert.Equal(t, epoch, entry.Epoch)
	assert.True(t, entry.Unique)
}

func TestMemStoreReadCollectionEntryNotFound(t *testing.T) {
	s := NewMemStore()
	_, err := s.ReadCollectionEntry("db.missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreSetRefreshingRequiresLastRefreshedOnClear(t *testing.T) {
	s := NewMemStore()
	epoch := uuid.New()
	require.NoError(t, s.UpsertCollectionEntry(catalog.CollectionEntry{NSS: "db.coll", Epoch: epoch}))

	require.NoError(t, s.SetRefreshing("db.coll", true, nil))
	entry, err := s.ReadCollectionEntry("db.coll")
	require.NoError(t, err)
	assert.True(t, entry.Refreshing)

	err = s.SetRefreshing("db.coll", false, nil)
	assert.Error(t, err)

	v := catalog.ChunkVersion{Major: 1, Epoch: epoch}
	require.NoError(t, s.SetRefreshing("db.coll", false, &v))
	entry, err = s.ReadCollectionEntry("db.coll")
	require.NoError(t, err)
	assert.False(t, entry.Refreshing)
	require.NotNil(t, entry.LastRefreshedVersion)
	assert.Equal(t, v, *entry.LastRefreshedVersion)
}

func TestMemStoreApplyChunkDiffRemovesOverlap(t *testing.T) {
	s := NewMemStore()
	epoch := uuid.New()

	original := catalog.ChunkEntry{MinKey: []byte{0}, MaxKey: []byte{10}, Shard: "shard0", Version: catalog.ChunkVersion{Major: 1, Epoch: epoch}}
	require.NoError(t, s.ApplyChunkDiff("db.coll", []catalog.ChunkEntry{original}))

	replacement := catalog.ChunkEntry{MinKey: []byte{5}, MaxKey: []byte{15}, Shard: "shard1", Version: catalog.ChunkVersion{Major: 2, Epoch: epoch}}
	require.NoError(t, s.ApplyChunkDiff("db.coll", []catalog.ChunkEntry{replacement}))

	chunks, err := s.ReadChunks("db.coll", catalog.UnshardedVersion(), epoch)
	require.NoError(t, err)
	require.Len(t, chunks, 1, "the overlapping original chunk must have been removed")
	assert.Equal(t, "shard1", chunks[0].Shard)
}

func TestMemStoreReadChunksEpochMismatch(t *testing.T) {
	s := NewMemStore()
	epoch := uuid.New()
	require.NoError(t, s.UpsertCollectionEntry(catalog.CollectionEntry{NSS: "db.coll", Epoch: epoch}))

	_, err := s.ReadChunks("db.coll", catalog.UnshardedVersion(), uuid.New())
	assert.ErrorIs(t, err, ErrEpochMismatch)
}

func TestMemStoreDropChunksAndEntry(t *testing.T) {
	s := NewMemStore()
	epoch := uuid.New()
	require.NoError(t, s.UpsertCollectionEntry(catalog.CollectionEntry{NSS: "db.coll", Epoch: epoch}))
	require.NoError(t, s.ApplyChunkDiff("db.coll", []catalog.ChunkEntry{{MinKey: []byte{0}, MaxKey: []byte{1}, Version: catalog.ChunkVersion{Major: 1, Epoch: epoch}}}))

	require.NoError(t, s.DropChunksAndEntry("db.coll"))

	_, err := s.ReadCollectionEntry("db.coll")
	assert.ErrorIs(t, err, ErrNotFound)
}

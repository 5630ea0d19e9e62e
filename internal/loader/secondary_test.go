package loader

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pavandhadge/routingcache/internal/catalog"
	"github.com/pavandhadge/routingcache/internal/store"
	"github.com/pavandhadge/routingcache/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPrimaryAndSecondary wires a primary Loader and a secondary Loader
// around the same backing store, as they would be on two nodes of one
// replica set. The secondary's dispatcher forwards forceRoutingTableRefresh
// straight to the primary's RefreshNow, same as the real gRPC path would
// after a round trip.
func newPrimaryAndSecondary(t *testing.T, cfg *upstream.StaticConfigLoader) (*Loader, *Loader, store.Store) {
	t.Helper()
	st := store.NewMemStore()

	primary := New(st, cfg, &fakeRepl{}, nil, Options{})
	require.NoError(t, primary.InitializeReplicaSetRole(true))

	secondary := New(st, cfg, &fakeRepl{}, &fakeDispatcher{primary: primary}, Options{})
	require.NoError(t, secondary.InitializeReplicaSetRole(false))

	return primary, secondary, st
}

func TestLoaderSecondaryForwardsRefreshAndReadsLocalStore(t *testing.T) {
	cfg := upstream.NewStaticConfigLoader()
	epoch := uuid.New()
	cfg.Set("db.coll", catalog.CollectionAndChangedChunks{
		Epoch:         epoch,
		ChangedChunks: []catalog.ChunkEntry{chunkAt(epoch, 1, 0), chunkAt(epoch, 1, 1)},
	})

	_, secondary, st := newPrimaryAndSecondary(t, cfg)

	ctx := context.Background()
	result, err := secondary.GetChunksSince(ctx, "db.coll", catalog.UnshardedVersion())
	require.NoError(t, err)
	require.Len(t, result.ChangedChunks, 2)
	assert.Equal(t, epoch, result.Epoch)

	entry, err := st.ReadCollectionEntry("db.coll")
	require.NoError(t, err)
	assert.False(t, entry.Refreshing)
}

func TestLoaderSecondaryOnColdNamespaceReturnsEmptyWithoutError(t *testing.T) {
	cfg := upstream.NewStaticConfigLoader()
	cfg.Drop("db.coll")

	_, secondary, _ := newPrimaryAndSecondary(t, cfg)

	result, err := secondary.GetChunksSince(context.Background(), "db.coll", catalog.UnshardedVersion())
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestLoaderSecondaryPropagatesDispatcherFailure(t *testing.T) {
	cfg := upstream.NewStaticConfigLoader()
	boom := assert.AnError

	secondary := New(store.NewMemStore(), cfg, &fakeRepl{}, &fakeDispatcher{err: boom}, Options{})
	require.NoError(t, secondary.InitializeReplicaSetRole(false))

	_, err := secondary.GetChunksSince(context.Background(), "db.coll", catalog.UnshardedVersion())
	assert.Error(t, err)
}

func TestLoaderSecondaryPropagatesWaitUntilOpTimeFailure(t *testing.T) {
	cfg := upstream.NewStaticConfigLoader()
	epoch := uuid.New()
	cfg.Set("db.coll", catalog.CollectionAndChangedChunks{
		Epoch:         epoch,
		ChangedChunks: []catalog.ChunkEntry{chunkAt(epoch, 1, 0)},
	})
	st := store.NewMemStore()

	primary := New(st, cfg, &fakeRepl{}, nil, Options{})
	require.NoError(t, primary.InitializeReplicaSetRole(true))

	boom := assert.AnError
	secondary := New(st, cfg, &fakeRepl{waitErr: boom}, &fakeDispatcher{primary: primary}, Options{})
	require.NoError(t, secondary.InitializeReplicaSetRole(false))

	_, err := secondary.GetChunksSince(context.Background(), "db.coll", catalog.UnshardedVersion())
	assert.ErrorIs(t, err, boom)
}

func TestLoaderSecondaryRetriesWhileRefreshingFlagIsSet(t *testing.T) {
	cfg := upstream.NewStaticConfigLoader()
	epoch := uuid.New()
	nss := "db.coll"
	st := store.NewMemStore()

	require.NoError(t, st.UpsertCollectionEntry(catalog.CollectionEntry{NSS: nss, Epoch: epoch}))
	require.NoError(t, st.SetRefreshing(nss, true, nil))

	secondary := New(st, cfg, &fakeRepl{}, &fakeDispatcher{}, Options{})
	require.NoError(t, secondary.InitializeReplicaSetRole(false))

	done := make(chan struct{})
	go func() {
		defer close(done)
		result, err := secondary.getCompletePersistedMetadataForSecondarySinceVersion(context.Background(), nss, catalog.UnshardedVersion())
		assert.NoError(t, err)
		assert.Equal(t, epoch, result.Epoch)
	}()

	require.NoError(t, st.ApplyChunkDiff(nss, []catalog.ChunkEntry{chunkAt(epoch, 1, 0)}))
	last := catalog.ChunkVersion{Major: 1, Minor: 0, Epoch: epoch}
	require.NoError(t, st.SetRefreshing(nss, false, &last))
	secondary.notify.NotifyChanged(nss)

	<-done
}

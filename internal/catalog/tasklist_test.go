package catalog

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkAt(epoch uuid.UUID, major, minor uint64) ChunkEntry {
	return ChunkEntry{
		MinKey:  []byte{byte(major)},
		MaxKey:  []byte{byte(major) + 1},
		Shard:   "shard0",
		Version: ChunkVersion{Major: major, Minor: minor, Epoch: epoch},
	}
}

func TestTaskListAddTaskContiguous(t *testing.T) {
	var mu sync.Mutex
	tl := NewTaskList(&mu)
	epoch := uuid.New()

	payload1 := CollectionAndChangedChunks{Epoch: epoch, ChangedChunks: []ChunkEntry{chunkAt(epoch, 1, 0)}}
	t1 := NewApplyTask(payload1, UnshardedVersion(), 1)
	require.NoError(t, tl.AddTask(t1))

	payload2 := CollectionAndChangedChunks{Epoch: epoch, ChangedChunks: []ChunkEntry{chunkAt(epoch, 1, 1)}}
	t2 := NewApplyTask(payload2, t1.MaxQueryVersion, 1)
	require.NoError(t, tl.AddTask(t2))

	assert.Equal(t, 2, tl.Len())
}

func TestTaskListAddTaskRejectsNonContiguous(t *testing.T) {
	var mu sync.Mutex
	tl := NewTaskList(&mu)
	epoch := uuid.New()

	payload1 := CollectionAndChangedChunks{Epoch: epoch, ChangedChunks: []ChunkEntry{chunkAt(epoch, 1, 0)}}
	t1 := NewApplyTask(payload1, UnshardedVersion(), 1)
	require.NoError(t, tl.AddTask(t1))

	badPayload := CollectionAndChangedChunks{Epoch: epoch, ChangedChunks: []ChunkEntry{chunkAt(epoch, 9, 0)}}
	bad := NewApplyTask(badPayload, ChunkVersion{Major: 9, Epoch: epoch}, 1)
	assert.ErrorIs(t, tl.AddTask(bad), ErrNonContiguousTask)
}

func TestTaskListDropDiscardsAllButFront(t *testing.T) {
	var mu sync.Mutex
	tl := NewTaskList(&mu)
	epoch := uuid.New()

	payload1 := CollectionAndChangedChunks{Epoch: epoch, ChangedChunks: []ChunkEntry{chunkAt(epoch, 1, 0)}}
	t1 := NewApplyTask(payload1, UnshardedVersion(), 1)
	require.NoError(t, tl.AddTask(t1))

	payload2 := CollectionAndChangedChunks{Epoch: epoch, ChangedChunks: []ChunkEntry{chunkAt(epoch, 1, 1)}}
	t2 := NewApplyTask(payload2, t1.MaxQueryVersion, 1)
	require.NoError(t, tl.AddTask(t2))

	drop := NewDropTask(t2.MaxQueryVersion, 1)
	require.NoError(t, tl.AddTask(drop))

	require.Equal(t, 2, tl.Len())
	assert.Equal(t, t1.TaskNum, tl.Front().TaskNum)
	assert.True(t, tl.Back().Dropped)
}

func TestTaskListDropCoalescesWithExistingFrontDrop(t *testing.T) {
	var mu sync.Mutex
	tl := NewTaskList(&mu)

	drop1 := NewDropTask(UnshardedVersion(), 1)
	require.NoError(t, tl.AddTask(drop1))

	drop2 := NewDropTask(drop1.MaxQueryVersion, 1)
	require.NoError(t, tl.AddTask(drop2))

	assert.Equal(t, 1, tl.Len(), "a drop immediately following a front drop must be coalesced away")
}

func TestTaskListDropAfterFullReloadIsIllegal(t *testing.T) {
	var mu sync.Mutex
	tl := NewTaskList(&mu)
	epoch := uuid.New()

	payload := CollectionAndChangedChunks{Epoch: epoch, ChangedChunks: []ChunkEntry{chunkAt(epoch, 1, 0)}}
	fullReload := NewApplyTask(payload, ChunkVersion{}, 1) // unset MinQueryVersion
	require.NoError(t, tl.AddTask(fullReload))

	drop := NewDropTask(fullReload.MaxQueryVersion, 1)
	assert.ErrorIs(t, tl.AddTask(drop), ErrIllegalDropAfterFullReload)
}

func TestTaskListEnqueuedMetadataForTermSkipsOtherTerms(t *testing.T) {
	var mu sync.Mutex
	tl := NewTaskList(&mu)
	epoch := uuid.New()

	payload1 := CollectionAndChangedChunks{Epoch: epoch, ChangedChunks: []ChunkEntry{chunkAt(epoch, 1, 0)}}
	t1 := NewApplyTask(payload1, UnshardedVersion(), 5)
	require.NoError(t, tl.AddTask(t1))

	payload2 := CollectionAndChangedChunks{Epoch: epoch, ChangedChunks: []ChunkEntry{chunkAt(epoch, 1, 1)}}
	t2 := NewApplyTask(payload2, t1.MaxQueryVersion, 6)
	t2.MinQueryVersion = ChunkVersion{} // forced full reload, allowed to jump terms in this test
	require.NoError(t, tl.AddTask(t2))

	agg := tl.EnqueuedMetadataForTerm(6)
	require.Len(t, agg.ChangedChunks, 1)
	assert.Equal(t, uint64(1), agg.ChangedChunks[0].Version.Major)
	assert.Equal(t, uint64(1), agg.ChangedChunks[0].Version.Minor)
}

func TestTaskListEnqueuedMetadataForTermDedupesBoundary(t *testing.T) {
	var mu sync.Mutex
	tl := NewTaskList(&mu)
	epoch := uuid.New()

	shared := chunkAt(epoch, 1, 1)

	payload1 := CollectionAndChangedChunks{Epoch: epoch, ChangedChunks: []ChunkEntry{chunkAt(epoch, 1, 0), shared}}
	t1 := NewApplyTask(payload1, UnshardedVersion(), 1)
	require.NoError(t, tl.AddTask(t1))

	payload2 := CollectionAndChangedChunks{Epoch: epoch, ChangedChunks: []ChunkEntry{shared, chunkAt(epoch, 1, 2)}}
	t2 := NewApplyTask(payload2, t1.MaxQueryVersion, 1)
	require.NoError(t, tl.AddTask(t2))

	agg := tl.EnqueuedMetadataForTerm(1)
	require.Len(t, agg.ChangedChunks, 3, "the shared boundary chunk must not be duplicated")
}

func TestTaskListHasTasksFromThisTermOnEmptyList(t *testing.T) {
	var mu sync.Mutex
	tl := NewTaskList(&mu)
	assert.False(t, tl.HasTasksFromThisTerm(1))
}

package loader

import (
	"context"

	"github.com/google/uuid"
	"github.com/pavandhadge/routingcache/internal/catalog"
)

func chunkAt(epoch uuid.UUID, major, minor uint64) catalog.ChunkEntry {
	return catalog.ChunkEntry{
		MinKey:  []byte{byte(major), byte(minor)},
		MaxKey:  []byte{byte(major), byte(minor) + 1},
		Shard:   "shard0",
		Version: catalog.ChunkVersion{Major: major, Minor: minor, Epoch: epoch},
	}
}

// fakeRepl is a minimal replcoord.ReplicationCoordinator double. The loader
// never reads CurrentRole/CurrentTerm off its collaborator -- it tracks
// those itself -- so only the two barrier methods and CurrentOpTime matter
// here.
type fakeRepl struct {
	majorityErr error
	waitErr     error
	opTime      int64
}

func (f *fakeRepl) CurrentRole() catalog.Role { return catalog.RoleNone }
func (f *fakeRepl) CurrentTerm() uint64       { return 0 }

func (f *fakeRepl) WaitForMajorityNoOp(ctx context.Context) error {
	return f.majorityErr
}

func (f *fakeRepl) WaitUntilOpTime(ctx context.Context, opTime int64) error {
	return f.waitErr
}

func (f *fakeRepl) CurrentOpTime() int64 { return f.opTime }

// fakeDispatcher routes a secondary's refresh request straight to a
// primary Loader's RefreshNow, standing in for the gRPC round trip.
type fakeDispatcher struct {
	primary *Loader
	err     error
}

func (f *fakeDispatcher) ForceRoutingTableRefresh(ctx context.Context, nss string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.primary.RefreshNow(ctx, nss)
}

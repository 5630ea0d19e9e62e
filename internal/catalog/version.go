// Package catalog implements the shard-local view of the sharding routing
// table: chunk versions, chunk and collection entries, the per-collection
// task queue used to apply incremental diffs, and the merge logic that
// reconciles persisted state with in-flight tasks.
package catalog

import (
	"fmt"

	"github.com/google/uuid"
)

// ZeroEpoch is the epoch used by the UNSHARDED sentinel version.
var ZeroEpoch = uuid.UUID{}

// ChunkVersion identifies a point in a collection's chunk history. Ordering
// by (Major, Minor) is only meaningful when two versions share an Epoch; an
// epoch change means the collection was dropped and recreated and makes the
// two versions incomparable.
type ChunkVersion struct {
	Major uint64
	Minor uint64
	Epoch uuid.UUID
}

// UnshardedVersion is the sentinel version for a collection with no chunk
// metadata at all.
func UnshardedVersion() ChunkVersion {
	return ChunkVersion{Major: 0, Minor: 0, Epoch: ZeroEpoch}
}

// IsSet reports whether v carries an explicit query position, as opposed to
// signaling "full reload" when used as a Task's MinQueryVersion.
func (v ChunkVersion) IsSet() bool {
	return v.Epoch != ZeroEpoch || v.Major != 0 || v.Minor != 0
}

// Equal reports whether two versions are identical in all three fields.
func (v ChunkVersion) Equal(o ChunkVersion) bool {
	return v.Major == o.Major && v.Minor == o.Minor && v.Epoch == o.Epoch
}

// Compare orders v against o. comparable is false whenever the epochs
// differ -- callers must treat that case as "epoch changed", never as a
// stable ordering: comparing versions across differing epochs never
// yields an order the merger can rely on.
func (v ChunkVersion) Compare(o ChunkVersion) (order int, comparable bool) {
	if v.Epoch != o.Epoch {
		return 0, false
	}
	switch {
	case v.Major != o.Major:
		if v.Major < o.Major {
			return -1, true
		}
		return 1, true
	case v.Minor != o.Minor:
		if v.Minor < o.Minor {
			return -1, true
		}
		return 1, true
	default:
		return 0, true
	}
}

// Less reports whether v sorts strictly before o within the same epoch. It
// panics if the epochs differ -- callers must check epochs first, since a
// silent false here would be mistaken for "not less" rather than
// "incomparable".
func (v ChunkVersion) Less(o ChunkVersion) bool {
	order, comparable := v.Compare(o)
	if !comparable {
		panic(fmt.Sprintf("catalog: compared chunk versions across epochs %s and %s", v.Epoch, o.Epoch))
	}
	return order < 0
}

// GreaterOrEqual reports whether v is within the same epoch as o and
// orders at or after it.
func (v ChunkVersion) GreaterOrEqual(o ChunkVersion) bool {
	order, comparable := v.Compare(o)
	return comparable && order >= 0
}

func (v ChunkVersion) String() string {
	return fmt.Sprintf("%d|%d||%s", v.Major, v.Minor, v.Epoch)
}

// Package replcoord declares the replication coordinator collaborator:
// current role, current term, and the two replication barriers the loader
// blocks on (ensureMajorityPrimaryAndScheduleTask's no-op barrier, and the
// secondary path's wait-for-opTime).
package replcoord

import (
	"context"

	"github.com/pavandhadge/routingcache/internal/catalog"
)

// ReplicationCoordinator is the narrow view of replica-set membership and
// replication progress the loader needs.
type ReplicationCoordinator interface {
	// CurrentRole reports this node's role right now.
	CurrentRole() catalog.Role

	// CurrentTerm reports this node's current term.
	CurrentTerm() uint64

	// WaitForMajorityNoOp blocks until a no-op write made at the time of
	// the call has been acknowledged by a majority -- the linearizable
	// read barrier ensureMajorityPrimaryAndScheduleTask relies on to
	// detect an about-to-be-lost primaryship before a task is enqueued.
	WaitForMajorityNoOp(ctx context.Context) error

	// WaitUntilOpTime blocks until the local node has applied operations
	// up to opTime, bounded by ctx's deadline.
	WaitUntilOpTime(ctx context.Context, opTime int64) error

	// CurrentOpTime returns the primary's logical operation time right
	// now, the value a forceRoutingTableRefresh response carries back to
	// the requesting secondary.
	CurrentOpTime() int64
}

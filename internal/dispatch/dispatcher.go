// Package dispatch implements the command dispatcher collaborator: the
// single typed RPC secondaries use to ask the primary to refresh a
// namespace, {forceRoutingTableRefresh: <nss>}. It rides on
// google.golang.org/grpc with a hand-written JSON encoding.Codec instead of
// a protobuf toolchain step.
package dispatch

import (
	"context"
	"time"
)

// DefaultRefreshTimeout is the RPC deadline on a secondary-to-primary
// refresh request. Kept as a constant, and overridable through
// GRPCDispatcher's constructor options.
const DefaultRefreshTimeout = 30 * time.Second

// RefreshDispatcher is the interface a secondary uses to ask the current
// primary to bring a namespace up to date.
type RefreshDispatcher interface {
	// ForceRoutingTableRefresh requests that the primary refresh nss, and
	// returns the primary's logical operation time at completion -- the
	// value the caller then waits for via ReplicationCoordinator.WaitUntilOpTime.
	ForceRoutingTableRefresh(ctx context.Context, nss string) (opTime int64, err error)
}

// Refresher is implemented by whatever runs on the primary side and can
// actually perform the refresh -- the loader itself, in production. Kept
// narrow so this package never imports internal/loader.
type Refresher interface {
	RefreshNow(ctx context.Context, nss string) (opTime int64, err error)
}

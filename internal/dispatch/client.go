package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// GRPCDispatcher is the RefreshDispatcher implementation secondaries use:
// it dials a known set of primary candidates and rediscovers on failure,
// much like any client that tracks a shifting cluster leader.
type GRPCDispatcher struct {
	addrs   []string
	timeout time.Duration

	mu   sync.RWMutex
	conn *grpc.ClientConn
	addr string
}

// NewGRPCDispatcher connects to the first reachable address in addrs,
// treated as the set of known primary candidates.
func NewGRPCDispatcher(addrs []string, timeout time.Duration) (*GRPCDispatcher, error) {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	d := &GRPCDispatcher{addrs: addrs, timeout: timeout}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := d.updatePrimary(ctx); err != nil {
		return nil, fmt.Errorf("dispatch: failed to connect to any primary candidate: %w", err)
	}
	return d, nil
}

func (d *GRPCDispatcher) updatePrimary(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, addr := range d.addrs {
		conn, err := grpc.DialContext(ctx, addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                20 * time.Second,
				Timeout:             5 * time.Second,
				PermitWithoutStream: true,
			}),
			grpc.WithBlock(),
		)
		if err != nil {
			log.Printf("dispatch: failed to dial candidate primary %s: %v", addr, err)
			continue
		}

		if d.conn != nil {
			d.conn.Close()
		}
		d.conn = conn
		d.addr = addr
		return nil
	}

	return fmt.Errorf("no reachable primary candidate among %v", d.addrs)
}

// ForceRoutingTableRefresh implements RefreshDispatcher, retrying once
// against a freshly-discovered primary if the current connection's call
// fails (mirrors sendHeartbeat's single retry-after-leader-update).
func (d *GRPCDispatcher) ForceRoutingTableRefresh(ctx context.Context, nss string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.call(ctx, nss)
	if err != nil {
		log.Printf("dispatch: refresh call failed against %s: %v; rediscovering primary", d.currentAddr(), err)
		if updateErr := d.updatePrimary(ctx); updateErr != nil {
			return 0, fmt.Errorf("dispatch: refresh failed and no new primary found: %w", err)
		}
		resp, err = d.call(ctx, nss)
		if err != nil {
			return 0, fmt.Errorf("dispatch: refresh failed even after primary update: %w", err)
		}
	}

	if resp.Err != "" {
		return 0, fmt.Errorf("dispatch: primary reported refresh error: %s", resp.Err)
	}
	return resp.OpTime, nil
}

func (d *GRPCDispatcher) call(ctx context.Context, nss string) (*forceRefreshResponse, error) {
	d.mu.RLock()
	conn := d.conn
	d.mu.RUnlock()

	req := &forceRefreshRequest{NSS: nss}
	resp := new(forceRefreshResponse)
	if err := conn.Invoke(ctx, forceRefreshPath, req, resp, grpc.ForceCodec(jsonCodec{})); err != nil {
		return nil, err
	}
	return resp, nil
}

func (d *GRPCDispatcher) currentAddr() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.addr
}

// Close releases the underlying connection.
func (d *GRPCDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

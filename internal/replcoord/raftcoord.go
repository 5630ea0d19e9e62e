package replcoord

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/pavandhadge/routingcache/internal/catalog"
)

const (
	retainSnapshotCount = 2
	raftTimeout         = 10 * time.Second
	opTimePollInterval  = 25 * time.Millisecond
)

// Config holds the settings for a single local raft node.
type Config struct {
	NodeID     string
	ListenAddr string
	DataDir    string
	Peers      []string
	Bootstrap  bool
}

// RaftCoordinator is the ReplicationCoordinator backed by
// github.com/hashicorp/raft and github.com/hashicorp/raft-boltdb. Its FSM
// carries no application state of its own, since the loader's only
// dependency on replication is "am I leader, what term, and has the log
// caught up to index N" -- not a replicated collection or worker registry.
type RaftCoordinator struct {
	raft *raft.Raft
	fsm  *noopFSM
}

// NewRaftCoordinator wires up a raft.Raft node: TCP transport, file
// snapshot store, a boltdb-backed log and stable store.
func NewRaftCoordinator(cfg *Config) (*RaftCoordinator, error) {
	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)

	addr, err := net.ResolveTCPAddr("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("replcoord: resolve listen addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.ListenAddr, addr, 3, raftTimeout, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("replcoord: new tcp transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, retainSnapshotCount, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("replcoord: new file snapshot store: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("replcoord: create data dir: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft.db"))
	if err != nil {
		return nil, fmt.Errorf("replcoord: new bolt store: %w", err)
	}

	fsm := &noopFSM{}
	r, err := raft.NewRaft(raftConfig, fsm, logStore, logStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("replcoord: new raft: %w", err)
	}

	if cfg.Bootstrap {
		servers := []raft.Server{{ID: raft.ServerID(cfg.NodeID), Address: transport.LocalAddr()}}
		for _, p := range cfg.Peers {
			servers = append(servers, raft.Server{ID: raft.ServerID(p), Address: raft.ServerAddress(p)})
		}
		r.BootstrapCluster(raft.Configuration{Servers: servers})
	}

	return &RaftCoordinator{raft: r, fsm: fsm}, nil
}

// CurrentRole maps raft's leader/follower/candidate states onto this
// system's Primary/Secondary/None vocabulary.
func (c *RaftCoordinator) CurrentRole() catalog.Role {
	switch c.raft.State() {
	case raft.Leader:
		return catalog.RolePrimary
	case raft.Follower:
		return catalog.RoleSecondary
	default:
		return catalog.RoleNone
	}
}

// CurrentTerm reads raft's current term out of its stats map -- hashicorp's
// public API exposes it only that way.
func (c *RaftCoordinator) CurrentTerm() uint64 {
	termStr := c.raft.Stats()["term"]
	term, err := strconv.ParseUint(termStr, 10, 64)
	if err != nil {
		return 0
	}
	return term
}

// WaitForMajorityNoOp implements the linearizable read barrier the primary
// path needs: raft.Barrier applies a no-op log entry and waits for it to
// commit, which by construction requires a majority to have acknowledged it.
func (c *RaftCoordinator) WaitForMajorityNoOp(ctx context.Context) error {
	timeout := raftTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	done := make(chan error, 1)
	go func() { done <- c.raft.Barrier(timeout).Error() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitUntilOpTime blocks until raft's applied index reaches opTime: log
// index is monotonic and only advances once an entry has been applied to
// the local FSM, making it a usable stand-in for an operation-time barrier.
func (c *RaftCoordinator) WaitUntilOpTime(ctx context.Context, opTime int64) error {
	if opTime < 0 {
		return fmt.Errorf("replcoord: negative opTime %d", opTime)
	}
	target := uint64(opTime)
	ticker := time.NewTicker(opTimePollInterval)
	defer ticker.Stop()

	for {
		if c.raft.AppliedIndex() >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CurrentOpTime exposes raft's last log index as this node's logical
// operation time, usable by callers as the opTime argument to
// WaitUntilOpTime.
func (c *RaftCoordinator) CurrentOpTime() int64 {
	return int64(c.raft.LastIndex())
}

// Shutdown gracefully stops the underlying raft node.
func (c *RaftCoordinator) Shutdown() error {
	return c.raft.Shutdown().Error()
}

// noopFSM is a raft.FSM that carries no state: this coordinator only needs
// raft's leadership/term/log-index machinery, not a replicated data model.
type noopFSM struct{}

func (f *noopFSM) Apply(*raft.Log) interface{} { return nil }

func (f *noopFSM) Snapshot() (raft.FSMSnapshot, error) { return noopSnapshot{}, nil }

func (f *noopFSM) Restore(rc io.ReadCloser) error { return rc.Close() }

type noopSnapshot struct{}

func (noopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }

func (noopSnapshot) Release() {}

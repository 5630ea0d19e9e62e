// This file is the main entry point for an example shard node running the
// routing cache loader: it wires a pebble-backed store, a raft-backed
// replication coordinator, a gRPC refresh dispatcher, and an in-memory
// config loader stand-in together, then serves the refresh RPC. It starts
// in the Primary role when -bootstrap is set (the default), and in the
// Secondary role otherwise.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pavandhadge/routingcache/internal/dispatch"
	"github.com/pavandhadge/routingcache/internal/loader"
	"github.com/pavandhadge/routingcache/internal/replcoord"
	"github.com/pavandhadge/routingcache/internal/store"
	"github.com/pavandhadge/routingcache/internal/upstream"
	"google.golang.org/grpc"
)

func main() {
	var (
		grpcAddr  = flag.String("grpc-addr", "localhost:7090", "gRPC server address for the refresh dispatcher")
		raftAddr  = flag.String("raft-addr", "localhost:7091", "Raft communication address")
		peerAddrs = flag.String("peers", "", "Comma-separated list of raft peer node IDs")
		nodeID    = flag.String("node-id", "node-1", "Local raft node ID")
		dataDir   = flag.String("data-dir", "./shardloader-data", "Parent directory for store and raft data")
		bootstrap = flag.Bool("bootstrap", true, "Bootstrap a single-node raft cluster")
	)
	flag.Parse()

	var peers []string
	if *peerAddrs != "" {
		peers = strings.Split(*peerAddrs, ",")
	}

	if err := os.MkdirAll(*dataDir, 0o750); err != nil {
		log.Fatalf("failed to create data dir: %v", err)
	}

	pebbleDB, err := store.Open(store.Options{Path: *dataDir + "/routingcache"})
	if err != nil {
		log.Fatalf("failed to open pebble store: %v", err)
	}
	defer pebbleDB.Close()

	repl, err := replcoord.NewRaftCoordinator(&replcoord.Config{
		NodeID:     *nodeID,
		ListenAddr: *raftAddr,
		DataDir:    *dataDir,
		Peers:      peers,
		Bootstrap:  *bootstrap,
	})
	if err != nil {
		log.Fatalf("failed to start raft coordinator: %v", err)
	}

	cfgLoader := upstream.NewStaticConfigLoader()

	ld := loader.New(pebbleDB, cfgLoader, repl, nil, loader.Options{})
	if err := ld.InitializeReplicaSetRole(*bootstrap); err != nil {
		log.Fatalf("failed to initialize replica set role: %v", err)
	}

	lis, err := net.Listen("tcp", *grpcAddr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %v", *grpcAddr, err)
	}
	gs := grpc.NewServer()
	dispatch.NewServer(ld).Register(gs)
	log.Printf("routing cache loader gRPC server listening at %v", lis.Addr())

	go func() {
		if err := gs.Serve(lis); err != nil {
			log.Fatalf("shardloader gRPC server exited: %v", err)
		}
	}()

	log.Println("shardloader started. waiting for signals.")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down shardloader.")
	gs.GracefulStop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ld.Shutdown(ctx); err != nil {
		log.Printf("loader shutdown: %v", err)
	}
}

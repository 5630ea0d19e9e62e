package dispatch

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const testBufSize = 1024 * 1024

// fakeRefresher is a minimal Refresher double standing in for the loader.
type fakeRefresher struct {
	opTime int64
	err    error
	nss    string
}

func (f *fakeRefresher) RefreshNow(ctx context.Context, nss string) (int64, error) {
	f.nss = nss
	return f.opTime, f.err
}

// newBufconnServer starts an in-process gRPC server backed by a bufconn
// listener and returns a client connection already forcing the JSON codec,
// plus a cleanup func.
func newBufconnServer(t *testing.T, refresher Refresher) (*grpc.ClientConn, func()) {
	t.Helper()

	lis := bufconn.Listen(testBufSize)
	gs := grpc.NewServer()
	NewServer(refresher).Register(gs)

	go func() {
		_ = gs.Serve(lis)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(ctx, "bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		gs.Stop()
	}
	return conn, cleanup
}

func TestServerRoundTripsForceRoutingTableRefreshOverJSONCodec(t *testing.T) {
	refresher := &fakeRefresher{opTime: 42}
	conn, cleanup := newBufconnServer(t, refresher)
	defer cleanup()

	req := &forceRefreshRequest{NSS: "db.coll"}
	resp := new(forceRefreshResponse)
	err := conn.Invoke(context.Background(), forceRefreshPath, req, resp, grpc.ForceCodec(jsonCodec{}))
	require.NoError(t, err)

	assert.Equal(t, "db.coll", refresher.nss)
	assert.Equal(t, int64(42), resp.OpTime)
	assert.Empty(t, resp.Err)
}

func TestServerReportsRefresherErrorInBodyNotRPCStatus(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("not master")}
	conn, cleanup := newBufconnServer(t, refresher)
	defer cleanup()

	req := &forceRefreshRequest{NSS: "db.coll"}
	resp := new(forceRefreshResponse)
	err := conn.Invoke(context.Background(), forceRefreshPath, req, resp, grpc.ForceCodec(jsonCodec{}))
	require.NoError(t, err, "a refresh failure is carried in the response body, not as an RPC error")
	assert.Equal(t, "not master", resp.Err)
	assert.Zero(t, resp.OpTime)
}

func TestJSONCodecRoundTripsRequestAndResponse(t *testing.T) {
	c := jsonCodec{}

	reqBytes, err := c.Marshal(&forceRefreshRequest{NSS: "db.coll"})
	require.NoError(t, err)
	var req forceRefreshRequest
	require.NoError(t, c.Unmarshal(reqBytes, &req))
	assert.Equal(t, "db.coll", req.NSS)

	respBytes, err := c.Marshal(&forceRefreshResponse{OpTime: 7})
	require.NoError(t, err)
	var resp forceRefreshResponse
	require.NoError(t, c.Unmarshal(respBytes, &resp))
	assert.Equal(t, int64(7), resp.OpTime)
	assert.Equal(t, "json", c.Name())
}

package agraphstore

import (
	"context"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPeer(t *testing.T, nodeID string) (*httptest.Server, *Database[string, string, string]) {
	t.Helper()

	server := httptest.NewUnstartedServer(nil)
	server.Start()

	cfg := Config{
		ServerURL:       server.URL,
		StorePath:       "",
		SyncWithRemotes: 0,
		GossipInterval:  time.Hour,
		RetryInterval:   time.Hour,
		NodeID:          nodeID,
	}

	db, err := Run[string, string, string](context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	server.Config.Handler = db.Endpoint.Router()

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return server, db
}

func TestRemotesAddRemoteIsBidirectional(t *testing.T) {
	selfServer, selfDB := newTestPeer(t, "self")
	peerServer, peerDB := newTestPeer(t, "peer")

	require.NoError(t, selfDB.Remotes.AddRemote(context.Background(), peerServer.URL))

	assert.Contains(t, selfDB.Remotes.KnownPeerURLs(), peerServer.URL)
	assert.Contains(t, peerDB.Remotes.KnownPeerURLs(), selfServer.URL)
}

func TestRemotesReplicateToNUsesAllAvailableWhenFewerThanN(t *testing.T) {
	_, selfDB := newTestPeer(t, "self")
	peerServer, peerDB := newTestPeer(t, "peer")

	require.NoError(t, selfDB.Remotes.AddRemote(context.Background(), peerServer.URL))

	mutation, err := NewAddNode[string, string, string]("self", "a", "hello")
	require.NoError(t, err)

	require.NoError(t, selfDB.Remotes.ReplicateToN(context.Background(), mutation, 5))

	require.Eventually(t, func() bool {
		return peerDB.Graph.HasNode("a")
	}, time.Second, 10*time.Millisecond)
}

func TestRemotesReplicateToNSkipsUnreachablePeers(t *testing.T) {
	_, selfDB := newTestPeer(t, "self")
	peerServer, peerDB := newTestPeer(t, "peer")

	require.NoError(t, selfDB.Remotes.AddRemote(context.Background(), peerServer.URL))

	// A peer address that was never successfully contacted must be treated
	// as unavailable, not sampled, per the "advertised_view" selection
	// invariant. Its gossip handshake is expected to fail; it still ends
	// up in the peer table, just marked unreachable.
	_ = selfDB.Remotes.AddRemote(context.Background(), "http://127.0.0.1:1")

	mutation, err := NewAddNode[string, string, string]("self", "only-reachable", "hello")
	require.NoError(t, err)

	// n exceeds the reachable-peer count (1), so ReplicateToN must fall
	// back to exactly the reachable set and still succeed.
	require.NoError(t, selfDB.Remotes.ReplicateToN(context.Background(), mutation, 5))

	require.Eventually(t, func() bool {
		return peerDB.Graph.HasNode("only-reachable")
	}, time.Second, 10*time.Millisecond)
}

func TestRemotesBroadcastFireForgetReachesAllPeers(t *testing.T) {
	_, selfDB := newTestPeer(t, "self")

	peerServers := make([]*httptest.Server, 3)
	peerDBs := make([]*Database[string, string, string], 3)
	for i := range peerServers {
		peerServers[i], peerDBs[i] = newTestPeer(t, "peer")
	}

	for _, s := range peerServers {
		require.NoError(t, selfDB.Remotes.AddRemote(context.Background(), s.URL))
	}

	mutation, err := NewAddNode[string, string, string]("self", "broadcasted", "hello")
	require.NoError(t, err)

	selfDB.Remotes.BroadcastFireForget(context.Background(), mutation)

	var reached atomic.Int32
	require.Eventually(t, func() bool {
		reached.Store(0)
		for _, db := range peerDBs {
			if db.Graph.HasNode("broadcasted") {
				reached.Add(1)
			}
		}
		return reached.Load() == int32(len(peerDBs))
	}, time.Second, 10*time.Millisecond)
}

package agraphstore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config carries everything needed to start a Database: the instance's own
// advertised address, its seed peers, where to keep its durable log, the
// replication quorum width, and the background timers.
type Config struct {
	ServerURL              string
	InitialRemoteAddresses []string
	StorePath              string
	SyncWithRemotes        int
	NodeID                 string
	GossipInterval         time.Duration
	RetryInterval          time.Duration
}

// DefaultConfig returns a Config with the defaults documented for the
// server binary.
func DefaultConfig() Config {
	return Config{
		ServerURL:       "http://127.0.0.1:8080",
		StorePath:       "./data/agraphstore",
		SyncWithRemotes: 2,
		GossipInterval:  30 * time.Second,
		RetryInterval:   10 * time.Second,
	}
}

// Database is the library's top-level handle: it wires Graph, LogStore,
// MutationsLog, Remotes, and the RpcEndpoint together and owns the
// background gossip/retry goroutines.
type Database[N any, E any, K Key] struct {
	cfg       Config
	log       *zap.Logger
	Graph     *GraphActor[N, E, K]
	LogStore  *LogStore[N, E, K]
	Remotes   *Remotes[N, E, K]
	Mutations *MutationsLog[N, E, K]
	Endpoint  *RpcEndpoint[N, E, K]

	cancel context.CancelFunc
}

// Run starts a Database: opens the log store, connects to seed peers,
// performs startup catch-up, and launches the background gossip/retry
// tickers. The caller is responsible for serving Endpoint.Router() and
// for calling Close when done.
func Run[N any, E any, K Key](ctx context.Context, cfg Config, log *zap.Logger) (*Database[N, E, K], error) {
	if cfg.NodeID == "" {
		cfg.NodeID = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	if cfg.SyncWithRemotes <= 0 {
		cfg.SyncWithRemotes = 2
	}
	if cfg.GossipInterval <= 0 {
		cfg.GossipInterval = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 10 * time.Second
	}

	logStore, err := OpenLogStore[N, E, K](cfg.StorePath)
	if err != nil {
		return nil, err
	}

	graph := NewGraphActor[N, E, K](256)
	remotes := NewRemotes[N, E, K](cfg.ServerURL, log, 256)
	mutations := NewMutationsLog[N, E, K](cfg.NodeID, cfg.SyncWithRemotes, graph, logStore, remotes, log, 256)

	if err := loadCommittedIntoGraph(logStore, graph); err != nil {
		return nil, err
	}

	if err := remotes.InitializePeers(ctx, cfg.InitialRemoteAddresses); err != nil {
		return nil, err
	}

	if err := mutations.InitializeCatchUp(ctx); err != nil {
		log.Warn("initial catch-up did not fully complete", zap.Error(err))
	}

	endpoint := NewRpcEndpoint[N, E, K](cfg.NodeID, mutations, remotes, log)

	runCtx, cancel := context.WithCancel(ctx)

	db := &Database[N, E, K]{
		cfg:       cfg,
		log:       log,
		Graph:     graph,
		LogStore:  logStore,
		Remotes:   remotes,
		Mutations: mutations,
		Endpoint:  endpoint,
		cancel:    cancel,
	}

	go db.runGossipLoop(runCtx)
	go db.runRetryLoop(runCtx)

	return db, nil
}

// Close stops the background loops and every owned actor, and closes the
// log store.
func (db *Database[N, E, K]) Close() error {
	db.cancel()
	db.Mutations.Close()
	db.Remotes.Close()
	db.Graph.Close()
	return db.LogStore.Close()
}

func (db *Database[N, E, K]) runGossipLoop(ctx context.Context) {
	ticker := time.NewTicker(db.cfg.GossipInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.Remotes.SyncRemotes(ctx); err != nil {
				db.log.Warn("gossip round failed", zap.Error(err))
			}
		}
	}
}

func (db *Database[N, E, K]) runRetryLoop(ctx context.Context) {
	ticker := time.NewTicker(db.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			db.Mutations.RetryPending()
		}
	}
}

func loadCommittedIntoGraph[N any, E any, K Key](logStore *LogStore[N, E, K], graph *GraphActor[N, E, K]) error {
	entries, err := logStore.All()
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !entry.Committed {
			continue
		}
		if _, err := graph.Apply(entry.Mutation); err != nil {
			// A prior run's state may already reflect this mutation by
			// construction (e.g. it was the one that created the node
			// in the first place); duplicate application errors here
			// are expected and not fatal to startup.
			continue
		}
	}

	return nil
}

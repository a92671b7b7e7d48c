package agraphstore

import (
	"context"
	"math/rand/v2"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dreamware/agraphstore/internal/actor"
)

// peerEntry is one row of the peer table: a client handle plus this
// instance's own last-observed reachability of that peer (whether the most
// recent direct RPC or gossip exchange with it succeeded).
type peerEntry[N any, E any, K Key] struct {
	client    *PeerClient[N, E, K]
	reachable bool
}

// Remotes owns the peer table and everything peer-facing: broadcast,
// quorum replication, gossip membership exchange, and catch-up log
// fan-out. Like Graph, its state is only ever touched from its own
// mailbox goroutine. Each peer's reachability is tracked alongside its
// client handle; ReplicateToN, BroadcastFireForget, and QueryAllLogs all
// restrict themselves to peers whose last contact succeeded, treating the
// rest as unavailable until a later gossip round or direct call proves
// otherwise.
type Remotes[N any, E any, K Key] struct {
	mailbox *actor.Mailbox
	log     *zap.Logger
	selfURL string
	peers   map[string]*peerEntry[N, E, K]
}

// NewRemotes starts a Remotes actor with an empty peer table.
func NewRemotes[N any, E any, K Key](selfURL string, log *zap.Logger, queueDepth int) *Remotes[N, E, K] {
	return &Remotes[N, E, K]{
		mailbox: actor.NewMailbox(queueDepth),
		log:     log,
		selfURL: selfURL,
		peers:   make(map[string]*peerEntry[N, E, K]),
	}
}

// Close stops the actor's goroutine.
func (r *Remotes[N, E, K]) Close() { r.mailbox.Close() }

// InitializePeers connects to every seed address, performing the first
// gossip exchange with each so the mesh is bidirectional from first
// contact.
func (r *Remotes[N, E, K]) InitializePeers(ctx context.Context, initial []string) error {
	for _, addr := range initial {
		if err := r.AddRemote(ctx, addr); err != nil {
			r.log.Warn("could not connect to initial remote", zap.String("address", addr), zap.Error(err))
		}
	}

	return nil
}

// AddRemote adds url to the peer table (a no-op if already present) and
// performs a gossip exchange with it: our current reachability view is
// sent, its view is merged in, and any peer address it knows that we don't
// is dialed in turn.
func (r *Remotes[N, E, K]) AddRemote(ctx context.Context, url string) error {
	if url == r.selfURL {
		return nil
	}

	_, err := actor.Call(r.mailbox, func() (struct{}, error) {
		if _, exists := r.peers[url]; !exists {
			r.peers[url] = &peerEntry[N, E, K]{client: NewPeerClient[N, E, K](url)}
			r.log.Info("added remote peer", zap.String("peer", url))
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}

	return r.gossipWith(ctx, url)
}

type gossipTarget[N any, E any, K Key] struct {
	client *PeerClient[N, E, K]
	view   map[string]bool
}

// gossipWith performs one bidirectional flat-view exchange against the
// already-registered peer at url, per the single SyncRemotes RPC: send our
// view, merge theirs, dial anything newly discovered.
func (r *Remotes[N, E, K]) gossipWith(ctx context.Context, url string) error {
	target, err := actor.Call(r.mailbox, func() (gossipTarget[N, E, K], error) {
		entry, exists := r.peers[url]
		if !exists {
			return gossipTarget[N, E, K]{}, errors.WithStack(ErrSyncError)
		}
		return gossipTarget[N, E, K]{client: entry.client, view: snapshotReachability(r.peers, r.selfURL)}, nil
	})
	if err != nil {
		return err
	}

	theirView, callErr := target.client.SyncRemotes(ctx, r.selfURL, target.view)
	r.setReachable(url, callErr == nil)
	if callErr != nil {
		return errors.Wrap(ErrSyncError, callErr.Error())
	}

	r.discoverFrom(ctx, url, theirView)

	return nil
}

// discoverFrom dials every peer address present in view that isn't already
// known, besides selfURL and the peer the view came from.
func (r *Remotes[N, E, K]) discoverFrom(ctx context.Context, from string, view map[string]bool) {
	for peerURL := range view {
		if peerURL == r.selfURL || peerURL == from {
			continue
		}

		known, _ := actor.Call(r.mailbox, func() (bool, error) {
			_, exists := r.peers[peerURL]
			return exists, nil
		})
		if known {
			continue
		}

		if err := r.AddRemote(ctx, peerURL); err != nil {
			r.log.Warn("gossip could not add discovered peer", zap.String("peer", peerURL), zap.Error(err))
		}
	}
}

// setReachable records our most recent observation of whether url answered
// successfully, used by ReplicateToN/BroadcastFireForget/QueryAllLogs to
// decide which peers are eligible.
func (r *Remotes[N, E, K]) setReachable(url string, ok bool) {
	_, _ = actor.Call(r.mailbox, func() (struct{}, error) {
		if entry, exists := r.peers[url]; exists {
			entry.reachable = ok
		}
		return struct{}{}, nil
	})
}

// BroadcastFireForget dispatches m to every reachable peer without waiting
// for any reply; failures flip that peer unreachable and are otherwise
// only logged.
func (r *Remotes[N, E, K]) BroadcastFireForget(ctx context.Context, m Mutation[N, E, K]) {
	clients, _ := actor.Call(r.mailbox, func() ([]*PeerClient[N, E, K], error) {
		return reachablePeers(r.peers), nil
	})

	for _, client := range clients {
		go func(c *PeerClient[N, E, K]) {
			err := c.Mutate(ctx, m)
			r.setReachable(c.BaseURL(), err == nil)
			if err != nil {
				r.log.Warn("broadcast to peer failed", zap.String("peer", c.BaseURL()), zap.Error(err))
			}
		}(client)
	}
}

// ReplicateToN synchronously replicates m to n uniformly chosen peers drawn
// only from those whose last contact succeeded — unreachable peers are
// treated as unavailable rather than sampled. Fewer than n reachable peers
// existing is not a failure: every reachable peer is used instead, and the
// call succeeds only if all of them ack.
func (r *Remotes[N, E, K]) ReplicateToN(ctx context.Context, m Mutation[N, E, K], n int) error {
	clients, _ := actor.Call(r.mailbox, func() ([]*PeerClient[N, E, K], error) {
		return reachablePeers(r.peers), nil
	})

	rand.Shuffle(len(clients), func(i, j int) { clients[i], clients[j] = clients[j], clients[i] })

	if n > len(clients) {
		n = len(clients)
	}

	for _, client := range clients[:n] {
		if err := client.Mutate(ctx, m); err != nil {
			r.setReachable(client.BaseURL(), false)
			return errors.Wrapf(ErrSyncError, "replicating to %s: %s", client.BaseURL(), err.Error())
		}
		r.setReachable(client.BaseURL(), true)
	}

	return nil
}

// QueryAllLogs fans QueryLog out to every reachable peer concurrently and
// merges the results deduplicated by hash.
func (r *Remotes[N, E, K]) QueryAllLogs(ctx context.Context) (map[string]Mutation[N, E, K], error) {
	clients, _ := actor.Call(r.mailbox, func() ([]*PeerClient[N, E, K], error) {
		return reachablePeers(r.peers), nil
	})

	type result struct {
		log map[string]Mutation[N, E, K]
		err error
	}

	results := make(chan result, len(clients))

	for _, client := range clients {
		go func(c *PeerClient[N, E, K]) {
			log, err := c.QueryLog(ctx)
			r.setReachable(c.BaseURL(), err == nil)
			results <- result{log: log, err: err}
		}(client)
	}

	merged := make(map[string]Mutation[N, E, K])

	for range clients {
		res := <-results
		if res.err != nil {
			r.log.Warn("querying peer log failed", zap.Error(res.err))
			continue
		}
		for hash, m := range res.log {
			if _, exists := merged[hash]; !exists {
				merged[hash] = m
			}
		}
	}

	return merged, nil
}

// SyncRemotes performs one round of gossip anti-entropy against a randomly
// chosen known peer (reachable or not — a round is also how an
// unreachable peer gets a chance to prove it has recovered), letting
// reachability beliefs and mesh membership converge without a vector
// clock.
func (r *Remotes[N, E, K]) SyncRemotes(ctx context.Context) error {
	urls, _ := actor.Call(r.mailbox, func() ([]string, error) {
		urls := make([]string, 0, len(r.peers))
		for url := range r.peers {
			urls = append(urls, url)
		}
		return urls, nil
	})

	if len(urls) == 0 {
		return nil
	}

	return r.gossipWith(ctx, urls[rand.IntN(len(urls))])
}

// GossipIn handles an incoming gossip exchange from fromAddress carrying
// its flat reachability view: fromAddress is registered reachable (we just
// heard from it, dialing back if it was unknown), any peer address present
// in theirView that this instance doesn't already know is dialed in turn,
// and this instance's own current view is returned.
func (r *Remotes[N, E, K]) GossipIn(ctx context.Context, fromAddress string, theirView map[string]bool) (map[string]bool, error) {
	if fromAddress != r.selfURL {
		isNew, _ := actor.Call(r.mailbox, func() (bool, error) {
			entry, exists := r.peers[fromAddress]
			if !exists {
				r.peers[fromAddress] = &peerEntry[N, E, K]{client: NewPeerClient[N, E, K](fromAddress), reachable: true}
			} else {
				entry.reachable = true
			}
			return !exists, nil
		})

		if isNew {
			r.log.Info("learned new remote via gossip", zap.String("peer", fromAddress))
		}
	}

	r.discoverFrom(ctx, fromAddress, theirView)

	myView, _ := actor.Call(r.mailbox, func() (map[string]bool, error) {
		return snapshotReachability(r.peers, r.selfURL), nil
	})

	return myView, nil
}

// KnownPeerURLs returns the base URLs of every currently known peer,
// regardless of reachability, used to answer a plain peer-listing query.
func (r *Remotes[N, E, K]) KnownPeerURLs() []string {
	urls, _ := actor.Call(r.mailbox, func() ([]string, error) {
		urls := make([]string, 0, len(r.peers))
		for url := range r.peers {
			urls = append(urls, url)
		}
		return urls, nil
	})
	return urls
}

func reachablePeers[N any, E any, K Key](peers map[string]*peerEntry[N, E, K]) []*PeerClient[N, E, K] {
	clients := make([]*PeerClient[N, E, K], 0, len(peers))
	for _, entry := range peers {
		if entry.reachable {
			clients = append(clients, entry.client)
		}
	}
	return clients
}

// snapshotReachability builds the flat_view sent over the wire during
// gossip: every known peer's last-observed reachability, plus selfURL
// mapped to true (an instance always considers itself reachable).
func snapshotReachability[N any, E any, K Key](peers map[string]*peerEntry[N, E, K], selfURL string) map[string]bool {
	view := make(map[string]bool, len(peers)+1)
	for url, entry := range peers {
		view[url] = entry.reachable
	}
	view[selfURL] = true
	return view
}

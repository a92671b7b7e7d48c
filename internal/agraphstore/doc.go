// Package agraphstore implements a replicated, eventually consistent,
// in-memory directed-graph database with a durable write-ahead mutation
// log, generic over caller-supplied node, edge, and key types.
//
// # Overview
//
// Every instance holds the same directed graph in memory and accepts
// mutations either from a local caller or from a peer. Mutations are
// content-hashed so the same change proposed or re-gossiped twice never
// double-applies, durably logged before being applied, and replicated to
// the rest of the mesh through a combination of fire-and-forget broadcast
// and synchronous quorum writes.
//
// # Architecture
//
//	                     RpcEndpoint
//	      /rpc/mutate  /rpc/replicate  /rpc/log  /rpc/peers
//	                         |
//	                  MutationsLog
//	                  (pending log)      propose / commit /
//	                 /      |      \     retry / catch-up
//	                /       |       \
//	           Graph      LogStore    Remotes
//	           actor       (badger)    + PeerClients
//
// # Core Components
//
// Graph: the in-memory adjacency-map graph, serialized through a single
// mailbox goroutine (internal/actor) rather than a mutex, so its state is
// never observed mid-mutation.
//
// LogStore: a Badger key-value database opened with synchronous writes,
// keyed by mutation content hash, the source of truth for both replay at
// startup and catch-up replies to joining peers.
//
// MutationsLog: the orchestrator. Propose is the only fan-out path: append,
// broadcast, quorum-replicate, then commit and apply. Commit durably
// upserts and applies without any further fanout — the originator of a
// mutation owns its propagation — and is what a peer-delivered mutation and
// catch-up replay both go through. InitializeCatchUp and RetryPending
// handle a joining instance reaching parity with the mesh without any
// full-graph snapshot transfer.
//
// Remotes: the peer table plus gossip anti-entropy, fire-and-forget
// broadcast, and synchronous quorum replication (ReplicateToN).
//
// # Replication Model
//
// Every Propose both broadcasts to all reachable peers (do_send, no wait) and
// synchronously replicates to a random quorum of size SyncWithRemotes
// (default 2), matching the original design's "replicate to all AND wait
// for some" approach: broadcast maximizes eventual reach, the quorum write
// gives the caller a durability signal it can act on.
package agraphstore

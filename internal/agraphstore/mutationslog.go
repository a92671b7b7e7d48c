package agraphstore

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/dreamware/agraphstore/internal/actor"
)

// MutationsLog orchestrates proposing, committing, and catching up
// mutations against the Graph, LogStore, and Remotes actors. Its own
// mailbox serializes access to the pending-mutation map; the components it
// delegates to are independently serialized by their own mailboxes.
type MutationsLog[N any, E any, K Key] struct {
	mailbox    *actor.Mailbox
	log        *zap.Logger
	nodeID     string
	syncWithN  int
	graph      *GraphActor[N, E, K]
	logStore   *LogStore[N, E, K]
	remotes    *Remotes[N, E, K]
	pendingLog map[string]Mutation[N, E, K]
}

// NewMutationsLog starts a MutationsLog actor wired to the given
// components. syncWithN is the quorum width used for ReplicateToN.
func NewMutationsLog[N any, E any, K Key](
	nodeID string,
	syncWithN int,
	graph *GraphActor[N, E, K],
	logStore *LogStore[N, E, K],
	remotes *Remotes[N, E, K],
	log *zap.Logger,
	queueDepth int,
) *MutationsLog[N, E, K] {
	return &MutationsLog[N, E, K]{
		mailbox:    actor.NewMailbox(queueDepth),
		log:        log.With(zap.String("node_id", nodeID)),
		nodeID:     nodeID,
		syncWithN:  syncWithN,
		graph:      graph,
		logStore:   logStore,
		remotes:    remotes,
		pendingLog: make(map[string]Mutation[N, E, K]),
	}
}

// Close stops the actor's goroutine.
func (m *MutationsLog[N, E, K]) Close() { m.mailbox.Close() }

// Propose is the local entry point, and the only one that fans out: it
// appends m uncommitted (failing if this hash was already proposed),
// broadcasts it fire-and-forget, then synchronously replicates it to a
// quorum of syncWithN peers. Only once that quorum succeeds does it commit
// the entry and apply it to the Graph — a quorum failure is returned to the
// caller with the entry left uncommitted and pending, never applied, so
// local state never gets ahead of what the mesh has agreed to durably keep.
// The whole sequence runs inside a single actor.Call so that two concurrent
// Proposes can never interleave their steps.
func (m *MutationsLog[N, E, K]) Propose(ctx context.Context, mutation Mutation[N, E, K]) (Response[N, E, K], error) {
	return actor.Call(m.mailbox, func() (Response[N, E, K], error) {
		if err := m.logStore.Append(LogEntry[N, E, K]{Hash: mutation.Hash, Mutation: mutation}); err != nil {
			return Response[N, E, K]{}, err
		}
		m.pendingLog[mutation.Hash] = mutation

		m.remotes.BroadcastFireForget(ctx, mutation)

		if err := m.remotes.ReplicateToN(ctx, mutation, m.syncWithN); err != nil {
			m.log.Warn("quorum replication failed, mutation left pending", zap.String("hash", mutation.Hash), zap.Error(err))
			return Response[N, E, K]{}, err
		}

		resp, err := m.commitLocked(mutation)
		if err != nil {
			return resp, err
		}

		delete(m.pendingLog, mutation.Hash)

		return resp, nil
	})
}

// Commit durably commits mutation (an upsert — this is how a mutation that
// never went through Append, whether peer-delivered or catch-up-replayed,
// lands) and applies it to the Graph, without any further fanout: the
// originator of a mutation owns its propagation, so neither Commit nor the
// RpcEndpoint route bound to it re-broadcasts or re-replicates onward. A
// duplicate-conflict error from the Graph — this mutation landing a second
// time via replay, re-gossip, or reordering — is logged and swallowed
// rather than returned, since the commit above already made it durable; any
// other apply error (e.g. an edge whose endpoint hasn't arrived yet) is
// returned so a caller like InitializeCatchUp/RetryPending can keep it
// pending.
func (m *MutationsLog[N, E, K]) Commit(mutation Mutation[N, E, K]) (Response[N, E, K], error) {
	return actor.Call(m.mailbox, func() (Response[N, E, K], error) {
		return m.commitLocked(mutation)
	})
}

func (m *MutationsLog[N, E, K]) commitLocked(mutation Mutation[N, E, K]) (Response[N, E, K], error) {
	if err := m.logStore.Commit(LogEntry[N, E, K]{Hash: mutation.Hash, Mutation: mutation}); err != nil {
		return Response[N, E, K]{}, err
	}

	resp, err := m.graph.Apply(mutation)
	if err != nil && (errors.Is(err, ErrConflictDuplicateNode) || errors.Is(err, ErrConflictDuplicateEdge)) {
		m.log.Warn("mutation already applied, treating as resolved", zap.String("hash", mutation.Hash))
		return resp, nil
	}

	return resp, err
}

// QueryLog returns every mutation this instance has stored, keyed by hash.
func (m *MutationsLog[N, E, K]) QueryLog() (map[string]Mutation[N, E, K], error) {
	entries, err := m.logStore.All()
	if err != nil {
		return nil, err
	}

	out := make(map[string]Mutation[N, E, K], len(entries))
	for _, e := range entries {
		out[e.Hash] = e.Mutation
	}

	return out, nil
}

// InitializeCatchUp fetches every reachable peer's full log, merges it
// deduplicated by hash, replays it in deterministic hash order, and keeps
// whatever fails to apply (e.g. an edge whose endpoint hasn't landed yet)
// in the pending map for a later retry.
func (m *MutationsLog[N, E, K]) InitializeCatchUp(ctx context.Context) error {
	merged, err := m.remotes.QueryAllLogs(ctx)
	if err != nil {
		return err
	}

	hashes := make([]string, 0, len(merged))
	for hash := range merged {
		hashes = append(hashes, hash)
	}
	slices.Sort(hashes)

	_, err = actor.Call(m.mailbox, func() (struct{}, error) {
		for _, hash := range hashes {
			mutation := merged[hash]

			if _, err := m.commitLocked(mutation); err != nil {
				m.log.Warn("could not apply mutation during catch-up, deferring", zap.String("hash", hash), zap.Error(err))
				m.pendingLog[hash] = mutation
				continue
			}

			delete(m.pendingLog, hash)
		}
		return struct{}{}, nil
	})

	return err
}

// RetryPending re-attempts every pending mutation whose log row is already
// committed (e.g. one that failed to apply during catch-up), dropping
// whichever now apply successfully. A local proposal whose quorum
// replication failed keeps an uncommitted row and is skipped here, so it
// stays pending and unapplied. Call this periodically (see retry_interval)
// so mutations that arrived out of order eventually land.
func (m *MutationsLog[N, E, K]) RetryPending() {
	_, _ = actor.Call(m.mailbox, func() (struct{}, error) {
		for hash, mutation := range m.pendingLog {
			entry, found, err := m.logStore.Get(hash)
			if err != nil || (found && !entry.Committed) {
				continue
			}
			if _, err := m.commitLocked(mutation); err == nil {
				delete(m.pendingLog, hash)
			}
		}
		return struct{}{}, nil
	})
}

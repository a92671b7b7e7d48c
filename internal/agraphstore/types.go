package agraphstore

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Key is the constraint every node/edge-endpoint key type must satisfy:
// comparable so it can index a map, and usable as a CBOR map/array element
// so mutations carrying it can be hashed and sent over the wire.
type Key interface {
	comparable
}

// MutationKind tags which graph operation a Mutation carries out.
type MutationKind uint8

const (
	MutationAddNode MutationKind = iota + 1
	MutationRemoveNode
	MutationAddEdge
	MutationRemoveEdge
)

func (k MutationKind) String() string {
	switch k {
	case MutationAddNode:
		return "add_node"
	case MutationRemoveNode:
		return "remove_node"
	case MutationAddEdge:
		return "add_edge"
	case MutationRemoveEdge:
		return "remove_edge"
	default:
		return "unknown"
	}
}

// Mutation is the single tagged-union wire type every mutating graph
// operation is expressed as. Only the fields relevant to Kind are
// populated; the rest are left zero.
type Mutation[N any, E any, K Key] struct {
	Hash string       `cbor:"hash"`
	Kind MutationKind `cbor:"kind"`
	From K            `cbor:"from"`
	To   K            `cbor:"to"`
	Node N            `cbor:"node"`
	Edge E            `cbor:"edge"`
}

// hashablePayload is the part of a Mutation that participates in its content
// hash. Hash itself is excluded since it is derived from this payload.
type hashablePayload[N any, E any, K Key] struct {
	Kind MutationKind `cbor:"kind"`
	From K            `cbor:"from"`
	To   K            `cbor:"to"`
	Node N            `cbor:"node"`
	Edge E            `cbor:"edge"`
}

var canonicalEncMode = func() cbor.EncMode {
	mode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// ComputeHash derives the content hash for a mutation, prefixed with
// nodeID so structurally identical mutations proposed by two different
// instances remain distinct log entries, while re-gossiping of the exact
// same mutation still collapses onto the same hash for idempotency.
func ComputeHash[N any, E any, K Key](nodeID string, m Mutation[N, E, K]) (string, error) {
	payload := hashablePayload[N, E, K]{
		Kind: m.Kind,
		From: m.From,
		To:   m.To,
		Node: m.Node,
		Edge: m.Edge,
	}

	encoded, err := canonicalEncMode.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(ErrSerde, err.Error())
	}

	digest := sha256.Sum256(encoded)

	return fmt.Sprintf("%s:%x", nodeID, digest), nil
}

// NewAddNode builds an AddNode mutation with its hash already computed.
func NewAddNode[N any, E any, K Key](nodeID string, key K, node N) (Mutation[N, E, K], error) {
	m := Mutation[N, E, K]{Kind: MutationAddNode, From: key, Node: node}
	return withHash(nodeID, m)
}

// NewRemoveNode builds a RemoveNode mutation with its hash already computed.
func NewRemoveNode[N any, E any, K Key](nodeID string, key K) (Mutation[N, E, K], error) {
	m := Mutation[N, E, K]{Kind: MutationRemoveNode, From: key}
	return withHash(nodeID, m)
}

// NewAddEdge builds an AddEdge mutation with its hash already computed.
func NewAddEdge[N any, E any, K Key](nodeID string, from, to K, edge E) (Mutation[N, E, K], error) {
	m := Mutation[N, E, K]{Kind: MutationAddEdge, From: from, To: to, Edge: edge}
	return withHash(nodeID, m)
}

// NewRemoveEdge builds a RemoveEdge mutation with its hash already computed.
func NewRemoveEdge[N any, E any, K Key](nodeID string, from, to K) (Mutation[N, E, K], error) {
	m := Mutation[N, E, K]{Kind: MutationRemoveEdge, From: from, To: to}
	return withHash(nodeID, m)
}

func withHash[N any, E any, K Key](nodeID string, m Mutation[N, E, K]) (Mutation[N, E, K], error) {
	hash, err := ComputeHash[N, E, K](nodeID, m)
	if err != nil {
		return m, err
	}

	m.Hash = hash

	return m, nil
}

// LogEntry is the durable record LogStore persists for every mutation this
// instance has seen, whether proposed locally or received from a peer.
type LogEntry[N any, E any, K Key] struct {
	Hash      string            `cbor:"hash"`
	Mutation  Mutation[N, E, K] `cbor:"mutation"`
	Committed bool              `cbor:"committed"`
}

// Response is the result of applying a Mutation to the Graph, returned to
// whoever proposed or replicated it.
type Response[N any, E any, K Key] struct {
	Node N
	Edge E
}

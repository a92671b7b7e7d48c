package agraphstore

import (
	"github.com/pkg/errors"

	"github.com/dreamware/agraphstore/internal/actor"
)

// Graph is the in-memory directed graph container. It is not safe for
// concurrent use directly; GraphActor serializes access to it through a
// mailbox goroutine so Graph composes with the rest of the actor-based
// components.
type Graph[N any, E any, K Key] struct {
	nodes map[K]N
	out   map[K]map[K]E
	in    map[K]map[K]struct{}
}

// NewGraph returns an empty graph.
func NewGraph[N any, E any, K Key]() *Graph[N, E, K] {
	return &Graph[N, E, K]{
		nodes: make(map[K]N),
		out:   make(map[K]map[K]E),
		in:    make(map[K]map[K]struct{}),
	}
}

func (g *Graph[N, E, K]) addNode(key K, node N) (N, error) {
	if _, exists := g.nodes[key]; exists {
		var zero N
		return zero, errors.WithStack(ErrConflictDuplicateNode)
	}

	g.nodes[key] = node
	g.out[key] = make(map[K]E)
	g.in[key] = make(map[K]struct{})

	return node, nil
}

func (g *Graph[N, E, K]) removeNode(key K) (N, error) {
	node, exists := g.nodes[key]
	if !exists {
		var zero N
		return zero, errors.WithStack(ErrNodeNotFound)
	}

	for to := range g.out[key] {
		delete(g.in[to], key)
	}
	for from := range g.in[key] {
		delete(g.out[from], key)
	}

	delete(g.out, key)
	delete(g.in, key)
	delete(g.nodes, key)

	return node, nil
}

func (g *Graph[N, E, K]) addEdge(from, to K, edge E) (E, error) {
	var zero E

	if _, exists := g.nodes[from]; !exists {
		return zero, errors.WithStack(ErrNodeNotFound)
	}
	if _, exists := g.nodes[to]; !exists {
		return zero, errors.WithStack(ErrNodeNotFound)
	}
	if _, exists := g.out[from][to]; exists {
		return zero, errors.WithStack(ErrConflictDuplicateEdge)
	}

	g.out[from][to] = edge
	g.in[to][from] = struct{}{}

	return edge, nil
}

func (g *Graph[N, E, K]) removeEdge(from, to K) (E, error) {
	var zero E

	edges, exists := g.out[from]
	if !exists {
		return zero, errors.WithStack(ErrEdgeNotFound)
	}

	edge, exists := edges[to]
	if !exists {
		return zero, errors.WithStack(ErrEdgeNotFound)
	}

	delete(g.out[from], to)
	delete(g.in[to], from)

	return edge, nil
}

func (g *Graph[N, E, K]) getNode(key K) (N, error) {
	node, exists := g.nodes[key]
	if !exists {
		var zero N
		return zero, errors.WithStack(ErrNodeNotFound)
	}
	return node, nil
}

func (g *Graph[N, E, K]) hasNode(key K) bool {
	_, exists := g.nodes[key]
	return exists
}

// getNodeIndex returns the handle used to address a node's internal storage
// slot. The reference graph backs nodes with petgraph's StableGraph and
// returns its NodeIndex; this map-backed Graph has no separate slot handle,
// so K itself is the index, returned only after confirming key is present.
func (g *Graph[N, E, K]) getNodeIndex(key K) (K, error) {
	if _, exists := g.nodes[key]; !exists {
		var zero K
		return zero, errors.WithStack(ErrNodeNotFound)
	}
	return key, nil
}

// getGraph returns a full snapshot copy of the graph. It never aliases the
// receiver's maps, matching retainNodes/filterGraph's copy-don't-mutate
// contract.
func (g *Graph[N, E, K]) getGraph() *Graph[N, E, K] {
	result := NewGraph[N, E, K]()

	for key, node := range g.nodes {
		result.nodes[key] = node
		result.out[key] = make(map[K]E, len(g.out[key]))
		result.in[key] = make(map[K]struct{}, len(g.in[key]))
	}

	for from, byTo := range g.out {
		for to, edge := range byTo {
			result.out[from][to] = edge
			result.in[to][from] = struct{}{}
		}
	}

	return result
}

func (g *Graph[N, E, K]) getNodes() []N {
	nodes := make([]N, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	return nodes
}

func (g *Graph[N, E, K]) getEdge(from, to K) (E, error) {
	edges, exists := g.out[from]
	if !exists {
		var zero E
		return zero, errors.WithStack(ErrEdgeNotFound)
	}

	edge, exists := edges[to]
	if !exists {
		var zero E
		return zero, errors.WithStack(ErrEdgeNotFound)
	}

	return edge, nil
}

func (g *Graph[N, E, K]) getEdges() []E {
	edges := make([]E, 0)
	for _, byTo := range g.out {
		for _, e := range byTo {
			edges = append(edges, e)
		}
	}
	return edges
}

func (g *Graph[N, E, K]) getNeighbors(key K) ([]N, error) {
	if _, exists := g.nodes[key]; !exists {
		return nil, errors.WithStack(ErrNodeNotFound)
	}

	neighbors := make([]N, 0, len(g.out[key]))
	for to := range g.out[key] {
		neighbors = append(neighbors, g.nodes[to])
	}

	return neighbors, nil
}

func (g *Graph[N, E, K]) getSourceNodes() []N {
	nodes := make([]N, 0)
	for key, incoming := range g.in {
		if len(incoming) == 0 {
			nodes = append(nodes, g.nodes[key])
		}
	}
	return nodes
}

func (g *Graph[N, E, K]) getSinkNodes() []N {
	nodes := make([]N, 0)
	for key, outgoing := range g.out {
		if len(outgoing) == 0 {
			nodes = append(nodes, g.nodes[key])
		}
	}
	return nodes
}

// retainNodes returns a new Graph containing only the listed keys and the
// edges that connect two retained keys. The receiver is never mutated.
func (g *Graph[N, E, K]) retainNodes(keys []K) *Graph[N, E, K] {
	keep := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		keep[k] = struct{}{}
	}

	result := NewGraph[N, E, K]()

	for key, node := range g.nodes {
		if _, ok := keep[key]; ok {
			result.nodes[key] = node
			result.out[key] = make(map[K]E)
			result.in[key] = make(map[K]struct{})
		}
	}

	for from, byTo := range g.out {
		if _, ok := keep[from]; !ok {
			continue
		}
		for to, edge := range byTo {
			if _, ok := keep[to]; !ok {
				continue
			}
			result.out[from][to] = edge
			result.in[to][from] = struct{}{}
		}
	}

	return result
}

// filterGraph returns a new Graph induced by optional node/edge allow
// lists. A nil list means "no restriction" along that dimension.
func (g *Graph[N, E, K]) filterGraph(includeNodes []N, includeEdges []E, equalNode func(N, N) bool, equalEdge func(E, E) bool) *Graph[N, E, K] {
	nodeAllowed := func(N) bool { return true }
	if includeNodes != nil {
		nodeAllowed = func(n N) bool {
			for _, allowed := range includeNodes {
				if equalNode(n, allowed) {
					return true
				}
			}
			return false
		}
	}

	edgeAllowed := func(E) bool { return true }
	if includeEdges != nil {
		edgeAllowed = func(e E) bool {
			for _, allowed := range includeEdges {
				if equalEdge(e, allowed) {
					return true
				}
			}
			return false
		}
	}

	result := NewGraph[N, E, K]()

	for key, node := range g.nodes {
		if !nodeAllowed(node) {
			continue
		}
		result.nodes[key] = node
		result.out[key] = make(map[K]E)
		result.in[key] = make(map[K]struct{})
	}

	for from, byTo := range g.out {
		if _, ok := result.nodes[from]; !ok {
			continue
		}
		for to, edge := range byTo {
			if _, ok := result.nodes[to]; !ok {
				continue
			}
			if !edgeAllowed(edge) {
				continue
			}
			result.out[from][to] = edge
			result.in[to][from] = struct{}{}
		}
	}

	return result
}

// GraphActor serializes all access to a Graph through a single mailbox
// goroutine, matching the actor-per-component model the rest of
// agraphstore follows.
type GraphActor[N any, E any, K Key] struct {
	mailbox *actor.Mailbox
	graph   *Graph[N, E, K]
}

// NewGraphActor starts a GraphActor around an empty Graph.
func NewGraphActor[N any, E any, K Key](queueDepth int) *GraphActor[N, E, K] {
	return &GraphActor[N, E, K]{
		mailbox: actor.NewMailbox(queueDepth),
		graph:   NewGraph[N, E, K](),
	}
}

// Close stops the actor's goroutine.
func (a *GraphActor[N, E, K]) Close() { a.mailbox.Close() }

// Apply dispatches a Mutation to the matching graph operation and returns
// the Response the caller/RPC layer reports back.
func (a *GraphActor[N, E, K]) Apply(m Mutation[N, E, K]) (Response[N, E, K], error) {
	return actor.Call(a.mailbox, func() (Response[N, E, K], error) {
		switch m.Kind {
		case MutationAddNode:
			node, err := a.graph.addNode(m.From, m.Node)
			return Response[N, E, K]{Node: node}, err
		case MutationRemoveNode:
			node, err := a.graph.removeNode(m.From)
			return Response[N, E, K]{Node: node}, err
		case MutationAddEdge:
			edge, err := a.graph.addEdge(m.From, m.To, m.Edge)
			return Response[N, E, K]{Edge: edge}, err
		case MutationRemoveEdge:
			edge, err := a.graph.removeEdge(m.From, m.To)
			return Response[N, E, K]{Edge: edge}, err
		default:
			return Response[N, E, K]{}, errors.Errorf("agraphstore: unknown mutation kind %v", m.Kind)
		}
	})
}

func (a *GraphActor[N, E, K]) GetNode(key K) (N, error) {
	return actor.Call(a.mailbox, func() (N, error) { return a.graph.getNode(key) })
}

func (a *GraphActor[N, E, K]) HasNode(key K) bool {
	has, _ := actor.Call(a.mailbox, func() (bool, error) { return a.graph.hasNode(key), nil })
	return has
}

// GetNodeIndex returns the handle addressing key's storage slot, or
// ErrNodeNotFound if key is absent. See Graph.getNodeIndex for why this is
// just K in the map-backed implementation.
func (a *GraphActor[N, E, K]) GetNodeIndex(key K) (K, error) {
	return actor.Call(a.mailbox, func() (K, error) { return a.graph.getNodeIndex(key) })
}

// GetGraph returns a full snapshot copy of the graph.
func (a *GraphActor[N, E, K]) GetGraph() *Graph[N, E, K] {
	result, _ := actor.Call(a.mailbox, func() (*Graph[N, E, K], error) { return a.graph.getGraph(), nil })
	return result
}

func (a *GraphActor[N, E, K]) GetNodes() []N {
	nodes, _ := actor.Call(a.mailbox, func() ([]N, error) { return a.graph.getNodes(), nil })
	return nodes
}

func (a *GraphActor[N, E, K]) GetEdge(from, to K) (E, error) {
	return actor.Call(a.mailbox, func() (E, error) { return a.graph.getEdge(from, to) })
}

func (a *GraphActor[N, E, K]) GetEdges() []E {
	edges, _ := actor.Call(a.mailbox, func() ([]E, error) { return a.graph.getEdges(), nil })
	return edges
}

func (a *GraphActor[N, E, K]) GetNeighbors(key K) ([]N, error) {
	return actor.Call(a.mailbox, func() ([]N, error) { return a.graph.getNeighbors(key) })
}

func (a *GraphActor[N, E, K]) GetSourceNodes() []N {
	nodes, _ := actor.Call(a.mailbox, func() ([]N, error) { return a.graph.getSourceNodes(), nil })
	return nodes
}

func (a *GraphActor[N, E, K]) GetSinkNodes() []N {
	nodes, _ := actor.Call(a.mailbox, func() ([]N, error) { return a.graph.getSinkNodes(), nil })
	return nodes
}

func (a *GraphActor[N, E, K]) RetainNodes(keys []K) *Graph[N, E, K] {
	result, _ := actor.Call(a.mailbox, func() (*Graph[N, E, K], error) { return a.graph.retainNodes(keys), nil })
	return result
}

func (a *GraphActor[N, E, K]) FilterGraph(includeNodes []N, includeEdges []E, equalNode func(N, N) bool, equalEdge func(E, E) bool) *Graph[N, E, K] {
	result, _ := actor.Call(a.mailbox, func() (*Graph[N, E, K], error) {
		return a.graph.filterGraph(includeNodes, includeEdges, equalNode, equalEdge), nil
	})
	return result
}

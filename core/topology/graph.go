// Package topology holds the local view of the drone-relay network: an
// undirected multigraph of node ids, each classified as a Drone (may
// relay) or a Server (endpoint only), with edge weights that degrade as
// drops are observed on them. Shortest-path queries restrict
// intermediate hops to drones and feed source routing.
package topology

import (
	"errors"
	"sort"

	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
)

// ErrUnreachable is returned when no path exists between two nodes under
// the current topology, or drone-only-intermediate constraint.
var ErrUnreachable = errors.New("topology: destination unreachable")

type edge struct {
	weight    int
	dropCount int
}

// Graph is the pure topology data structure: no locking, no logging —
// callers needing concurrency safety wrap it (see device/router).
type Graph struct {
	self node.ID
	kind map[node.ID]node.Kind
	adj  map[node.ID]map[node.ID]*edge
}

// New returns a Graph containing only the self node, classified Drone.
func New(self node.ID) *Graph {
	g := &Graph{
		self: self,
		kind: make(map[node.ID]node.Kind),
		adj:  make(map[node.ID]map[node.ID]*edge),
	}
	g.kind[self] = node.Drone
	g.adj[self] = make(map[node.ID]*edge)
	return g
}

func (g *Graph) ensureNode(id node.ID, kind node.Kind) {
	if _, ok := g.kind[id]; !ok {
		g.kind[id] = kind
		g.adj[id] = make(map[node.ID]*edge)
	}
}

// addEdge inserts an undirected edge if absent; existing edges are left
// untouched (their drop count is adjusted elsewhere).
func (g *Graph) addEdge(a, b node.ID) {
	if a == b {
		return
	}
	if _, ok := g.adj[a][b]; !ok {
		g.adj[a][b] = &edge{weight: 1}
		g.adj[b][a] = &edge{weight: 1}
	}
}

// AddNeighbor records id as a directly-adjacent drone, adding an edge
// between it and self.
func (g *Graph) AddNeighbor(id node.ID) {
	g.ensureNode(id, node.Drone)
	g.addEdge(g.self, id)
}

// RemoveNeighbor removes id and every edge incident to it from the
// graph, same as DroneCrashed — a neighbor no longer reachable is no
// different from a crashed drone for routing purposes.
func (g *Graph) RemoveNeighbor(id node.ID) {
	g.DroneCrashed(id)
}

// ServerList returns the ids of every node currently classified Server,
// in ascending order.
func (g *Graph) ServerList() []node.ID {
	var servers []node.ID
	for id, kind := range g.kind {
		if kind == node.Server {
			servers = append(servers, id)
		}
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i] < servers[j] })
	return servers
}

// HandleFloodResponse folds a flood response's path trace into the
// graph: every node in the trace is inserted with its declared kind,
// and an undirected edge is added between each consecutive pair. This
// is idempotent — repeated identical traces do not multiply edges or
// change their weight.
func (g *Graph) HandleFloodResponse(resp wire.FloodResponse) {
	for _, entry := range resp.PathTrace {
		g.ensureNode(entry.Node, entry.Kind)
	}
	for i := 0; i+1 < len(resp.PathTrace); i++ {
		g.addEdge(resp.PathTrace[i].Node, resp.PathTrace[i+1].Node)
	}
}

// DroneCrashed removes id and every edge incident to it.
func (g *Graph) DroneCrashed(id node.ID) {
	if id == g.self {
		return
	}
	for other := range g.adj[id] {
		delete(g.adj[other], id)
	}
	delete(g.adj, id)
	delete(g.kind, id)
}

// DroppedFragment increments the drop count (and therefore the routing
// weight) of the edge between self and nackSrc, if it exists.
func (g *Graph) DroppedFragment(nackSrc node.ID) {
	e, ok := g.adj[g.self][nackSrc]
	if !ok {
		return
	}
	e.dropCount++
	e.weight = 1 + e.dropCount
	if other, ok := g.adj[nackSrc][g.self]; ok {
		other.dropCount = e.dropCount
		other.weight = e.weight
	}
}

// ClearRoutingTable wipes the graph, retaining only the self node.
func (g *Graph) ClearRoutingTable() {
	g.kind = map[node.ID]node.Kind{g.self: node.Drone}
	g.adj = map[node.ID]map[node.ID]*edge{g.self: make(map[node.ID]*edge)}
}

// NodeKind returns the classification of id, if known.
func (g *Graph) NodeKind(id node.ID) (node.Kind, bool) {
	k, ok := g.kind[id]
	return k, ok
}

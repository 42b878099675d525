package topology

import (
	"container/heap"
	"sort"

	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
)

// item is one entry in the Dijkstra frontier.
type item struct {
	node node.ID
	dist int
}

// priorityQueue is a container/heap min-heap over item.dist, with ties
// broken by ascending node id so path selection is deterministic.
type priorityQueue []item

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].dist != pq[j].dist {
		return pq[i].dist < pq[j].dist
	}
	return pq[i].node < pq[j].node
}
func (pq priorityQueue) Swap(i, j int)      { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)        { *pq = append(*pq, x.(item)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	popped := old[n-1]
	*pq = old[:n-1]
	return popped
}

// SourceRoutingHeader computes a shortest source route from self to dest.
// Edge weight is 1+dropCount; every intermediate hop must be a Drone,
// the destination may be of any kind (Drone, Server or Client). Ties among equal-weight
// frontier nodes are broken by ascending node id, making the result
// deterministic. Returns ErrUnreachable if no such path exists.
func (g *Graph) SourceRoutingHeader(dest node.ID) (wire.RoutingHeader, error) {
	if dest == g.self {
		return wire.NewRoutingHeader([]node.ID{g.self}), nil
	}
	if _, ok := g.kind[dest]; !ok {
		return wire.RoutingHeader{}, ErrUnreachable
	}

	dist := map[node.ID]int{g.self: 0}
	prev := map[node.ID]node.ID{}
	visited := map[node.ID]bool{}

	pq := &priorityQueue{{node: g.self, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(item)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true

		if cur.node == dest {
			break
		}

		// Only a Drone may relay further; the destination is allowed to
		// be examined even when it's a Server since it terminates here.
		if cur.node != g.self {
			if kind, ok := g.kind[cur.node]; !ok || kind != node.Drone {
				continue
			}
		}

		neighbors := make([]node.ID, 0, len(g.adj[cur.node]))
		for n := range g.adj[cur.node] {
			neighbors = append(neighbors, n)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			// Servers and clients may only be a final hop, never a relay;
			// skip extending through one unless it is the destination
			// itself.
			if kind, ok := g.kind[next]; ok && kind != node.Drone && next != dest {
				continue
			}
			e := g.adj[cur.node][next]
			nd := cur.dist + e.weight
			if existing, ok := dist[next]; !ok || nd < existing {
				dist[next] = nd
				prev[next] = cur.node
				heap.Push(pq, item{node: next, dist: nd})
			}
		}
	}

	if _, ok := prev[dest]; !ok && dest != g.self {
		return wire.RoutingHeader{}, ErrUnreachable
	}

	var hops []node.ID
	for at := dest; ; {
		hops = append([]node.ID{at}, hops...)
		if at == g.self {
			break
		}
		at = prev[at]
	}
	return wire.NewRoutingHeader(hops), nil
}

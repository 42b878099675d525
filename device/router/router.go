// Package router wraps a core/topology.Graph with the stateful shape
// this client needs at runtime: a guarded flood-id counter, duplicate
// flood-response suppression, and the slog/Config conventions shared by
// every stateful component in this module.
//
// Unlike a relaying drone, this client never forwards flood or data
// packets for anyone else — it only originates FloodRequests, answers
// them when asked, and folds FloodResponses into its topology view.
package router

import (
	"log/slog"
	"sync"

	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/topology"
	"github.com/relaynet/mediaclient/core/wire"
)

// DefaultFloodDedupSize bounds how many (flood_id, initiator) pairs are
// remembered for idempotent FloodResponse handling before the oldest is
// evicted.
const DefaultFloodDedupSize = 256

// Config configures a Router.
type Config struct {
	// SelfID is this node's identity in the topology graph.
	SelfID node.ID

	// FloodDedupSize bounds the flood-response dedup set.
	// Default: DefaultFloodDedupSize.
	FloodDedupSize int

	// Logger for routing events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

type floodKey struct {
	floodID     uint64
	initiatorID node.ID
}

// Router is the stateful façade over a topology.Graph used by the
// client's command and packet handlers.
type Router struct {
	cfg Config
	log *slog.Logger

	mu    sync.RWMutex
	graph *topology.Graph

	nextFloodID uint64

	seenMu    sync.Mutex
	seenOrder []floodKey
	seen      map[floodKey]struct{}
}

// New creates a Router rooted at cfg.SelfID.
func New(cfg Config) *Router {
	if cfg.FloodDedupSize <= 0 {
		cfg.FloodDedupSize = DefaultFloodDedupSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:   cfg,
		log:   logger.WithGroup("router"),
		graph: topology.New(cfg.SelfID),
		seen:  make(map[floodKey]struct{}),
	}
}

// AddNeighbor registers id as directly adjacent to this node.
func (r *Router) AddNeighbor(id node.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph.AddNeighbor(id)
	r.log.Debug("neighbor added", "id", id)
}

// RemoveNeighbor removes id as a neighbor.
func (r *Router) RemoveNeighbor(id node.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph.RemoveNeighbor(id)
	r.log.Debug("neighbor removed", "id", id)
}

// Known reports whether id is currently present in the topology.
func (r *Router) Known(id node.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.graph.NodeKind(id)
	return ok
}

// ServerList returns the ids currently classified Server.
func (r *Router) ServerList() []node.ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.ServerList()
}

// SourceRoutingHeader computes a shortest source route to dest.
func (r *Router) SourceRoutingHeader(dest node.ID) (wire.RoutingHeader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.graph.SourceRoutingHeader(dest)
}

// FloodRequest produces a single FloodRequest packet payload with a
// fresh, monotonically increasing flood id.
func (r *Router) FloodRequest() wire.FloodRequest {
	r.mu.Lock()
	id := r.nextFloodID
	r.nextFloodID++
	r.mu.Unlock()

	return wire.FloodRequest{
		FloodID:     id,
		InitiatorID: r.cfg.SelfID,
		PathTrace:   []wire.PathEntry{{Node: r.cfg.SelfID, Kind: node.Client}},
	}
}

// FloodRequests produces k FloodRequest payloads, each with its own
// fresh flood id.
func (r *Router) FloodRequests(k int) []wire.FloodRequest {
	reqs := make([]wire.FloodRequest, 0, k)
	for i := 0; i < k; i++ {
		reqs = append(reqs, r.FloodRequest())
	}
	return reqs
}

// HandleFloodResponse folds resp into the topology graph, unless an
// identical (flood_id, initiator) pair has already been handled.
func (r *Router) HandleFloodResponse(resp wire.FloodResponse) {
	if len(resp.PathTrace) == 0 {
		return
	}
	key := floodKey{floodID: resp.FloodID, initiatorID: resp.PathTrace[0].Node}
	if !r.markSeen(key) {
		r.log.Debug("duplicate flood response ignored", "flood_id", resp.FloodID)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph.HandleFloodResponse(resp)
}

// markSeen records key if new, evicting the oldest entry once
// cfg.FloodDedupSize is exceeded. Returns true if key was newly seen.
func (r *Router) markSeen(key floodKey) bool {
	r.seenMu.Lock()
	defer r.seenMu.Unlock()

	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	r.seenOrder = append(r.seenOrder, key)
	if len(r.seenOrder) > r.cfg.FloodDedupSize {
		oldest := r.seenOrder[0]
		r.seenOrder = r.seenOrder[1:]
		delete(r.seen, oldest)
	}
	return true
}

// DroneCrashed removes id from the topology.
func (r *Router) DroneCrashed(id node.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph.DroneCrashed(id)
	r.log.Warn("drone crashed", "id", id)
}

// DroppedFragment records a drop observed on the link to nackSrc.
func (r *Router) DroppedFragment(nackSrc node.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph.DroppedFragment(nackSrc)
}

// ClearRoutingTable wipes the topology graph, retaining only self.
func (r *Router) ClearRoutingTable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph.ClearRoutingTable()
	r.log.Info("routing table cleared")
}

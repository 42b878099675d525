package router

import (
	"testing"

	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/topology"
	"github.com/relaynet/mediaclient/core/wire"
)

func TestFloodRequestMonotonicIDs(t *testing.T) {
	r := New(Config{SelfID: 1})
	reqs := r.FloodRequests(3)
	for i, req := range reqs {
		if req.FloodID != uint64(i) {
			t.Fatalf("request %d has flood id %d, want %d", i, req.FloodID, i)
		}
		if req.InitiatorID != node.ID(1) {
			t.Fatalf("request %d has initiator %v, want 1", i, req.InitiatorID)
		}
	}
}

func TestFloodRequestSeedsSelfAsClient(t *testing.T) {
	r := New(Config{SelfID: 1})
	req := r.FloodRequest()
	if len(req.PathTrace) != 1 || req.PathTrace[0].Node != node.ID(1) || req.PathTrace[0].Kind != node.Client {
		t.Fatalf("expected path trace [(1,Client)], got %#v", req.PathTrace)
	}
}

func TestHandleFloodResponseDedup(t *testing.T) {
	r := New(Config{SelfID: 1})
	resp := wire.FloodResponse{
		FloodID: 5,
		PathTrace: []wire.PathEntry{
			{Node: 2, Kind: node.Drone},
			{Node: 1, Kind: node.Drone},
		},
	}

	r.HandleFloodResponse(resp)
	r.HandleFloodResponse(resp)
	r.HandleFloodResponse(resp)

	if _, err := r.SourceRoutingHeader(2); err != nil {
		t.Fatalf("expected node 2 reachable, got %v", err)
	}
}

func TestAddNeighborAndSourceRoutingHeader(t *testing.T) {
	r := New(Config{SelfID: 1})
	r.AddNeighbor(2)

	hdr, err := r.SourceRoutingHeader(2)
	if err != nil {
		t.Fatalf("SourceRoutingHeader: %v", err)
	}
	if len(hdr.Hops) != 2 || hdr.Hops[0] != 1 || hdr.Hops[1] != 2 {
		t.Fatalf("unexpected hops: %v", hdr.Hops)
	}
}

func TestSourceRoutingHeaderUnreachable(t *testing.T) {
	r := New(Config{SelfID: 1})
	if _, err := r.SourceRoutingHeader(9); err != topology.ErrUnreachable {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
}

func TestDroneCrashedAndClearRoutingTable(t *testing.T) {
	r := New(Config{SelfID: 1})
	r.AddNeighbor(2)
	r.DroneCrashed(2)
	if _, err := r.SourceRoutingHeader(2); err != topology.ErrUnreachable {
		t.Fatalf("expected unreachable after crash, got %v", err)
	}

	r.AddNeighbor(3)
	r.ClearRoutingTable()
	if _, err := r.SourceRoutingHeader(3); err != topology.ErrUnreachable {
		t.Fatalf("expected unreachable after clear, got %v", err)
	}
}

func TestFloodDedupEviction(t *testing.T) {
	r := New(Config{SelfID: 1, FloodDedupSize: 2})
	if !r.markSeen(floodKey{floodID: 1, initiatorID: 2}) {
		t.Fatalf("expected first insert to be new")
	}
	if !r.markSeen(floodKey{floodID: 2, initiatorID: 2}) {
		t.Fatalf("expected second insert to be new")
	}
	if !r.markSeen(floodKey{floodID: 3, initiatorID: 2}) {
		t.Fatalf("expected third insert to be new")
	}
	// floodID 1 should have been evicted by now.
	if !r.markSeen(floodKey{floodID: 1, initiatorID: 2}) {
		t.Fatalf("expected evicted key to be treated as new again")
	}
}

package client

import (
	"context"
	"testing"
	"time"

	"github.com/relaynet/mediaclient/control"
	"github.com/relaynet/mediaclient/core/appmsg"
	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
	"github.com/relaynet/mediaclient/transport/inproc"
)

func newTestClient(t *testing.T, self node.ID) (*Client, *inproc.ControlLink, chan *wire.Packet) {
	t.Helper()
	ctrl := inproc.NewControlLink()
	packets := make(chan *wire.Packet, 64)
	c := New(Config{
		SelfID:             self,
		BootSettleDelay:    time.Millisecond,
		RefloodSettleDelay: time.Millisecond,
	}, ctrl, packets)
	return c, ctrl, packets
}

func drainEvent(t *testing.T, ctrl *inproc.ControlLink) control.Event {
	t.Helper()
	select {
	case ev := <-ctrl.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func TestAddSenderEmitsAddedSenderOnce(t *testing.T) {
	c, ctrl, _ := newTestClient(t, 1)
	ch := make(chan *wire.Packet, 4)

	c.handleCommand(control.AddSender{ID: 2, Channel: ch})
	if ev, ok := drainEvent(t, ctrl).(control.AddedSender); !ok || ev.ID != node.ID(2) {
		t.Fatalf("expected AddedSender{2}, got %#v", ev)
	}

	c.handleCommand(control.AddSender{ID: 2, Channel: ch})
	select {
	case ev := <-ctrl.Events():
		t.Fatalf("expected no second AddedSender event, got %#v", ev)
	default:
	}
}

func TestRemoveSenderUnknownWarnsWithoutEvent(t *testing.T) {
	c, ctrl, _ := newTestClient(t, 1)
	c.handleCommand(control.RemoveSender{ID: 99})
	select {
	case ev := <-ctrl.Events():
		t.Fatalf("expected no RemovedSender event for unknown neighbor, got %#v", ev)
	default:
	}
}

func TestHandleFragmentUnexpectedRecipientNacksBack(t *testing.T) {
	c, _, _ := newTestClient(t, 1)
	neighborCh := make(chan *wire.Packet, 4)
	c.addNeighbor(2, neighborCh)

	// Routing header says current hop is node 5, not this client (1).
	pkt := &wire.Packet{
		RoutingHeader: wire.RoutingHeader{Hops: []node.ID{2, 5, 9}, HopIndex: 1},
		SessionID:     7,
		Payload:       wire.MsgFragment{Index: 0, Total: 1, Bytes: []byte("x")},
	}
	c.handlePacket(pkt)

	select {
	case out := <-neighborCh:
		nack, ok := out.Payload.(wire.Nack)
		if !ok || nack.Kind != wire.UnexpectedRecipient {
			t.Fatalf("expected UnexpectedRecipient nack, got %#v", out.Payload)
		}
	default:
		t.Fatalf("expected a nack sent back to neighbor 2")
	}
}

func TestHandleFragmentAcksAndReassembles(t *testing.T) {
	c, ctrl, _ := newTestClient(t, 5)
	neighborCh := make(chan *wire.Packet, 4)
	c.addNeighbor(2, neighborCh)

	msg := appmsg.NewServerMessage(3, 9, 5, appmsg.ServerTypeReply{Kind: appmsg.Media})
	frags, err := c.assembler.FragmentMessage(msg)
	if err != nil {
		t.Fatalf("FragmentMessage: %v", err)
	}
	if len(frags) != 1 {
		t.Fatalf("expected single fragment for a small message, got %d", len(frags))
	}

	pkt := &wire.Packet{
		RoutingHeader: wire.RoutingHeader{Hops: []node.ID{9, 2, 5}, HopIndex: 2},
		SessionID:     3,
		Payload:       frags[0],
	}
	c.handlePacket(pkt)

	select {
	case out := <-neighborCh:
		ack, ok := out.Payload.(wire.Ack)
		if !ok || ack.FragmentIndex != 0 {
			t.Fatalf("expected Ack{0}, got %#v", out.Payload)
		}
	default:
		t.Fatalf("expected an ack sent back to neighbor 2")
	}

	ev := drainEvent(t, ctrl)
	got, ok := ev.(control.ReceivedServerType)
	if !ok || got.Source != node.ID(9) || got.Kind != appmsg.Media {
		t.Fatalf("expected ReceivedServerType{Source:9,Kind:Media}, got %#v", ev)
	}
	if !c.mediaServers.Contains(9) {
		t.Fatalf("expected node 9 registered as a media server")
	}
}

func TestAckRemovesFromCache(t *testing.T) {
	c, _, _ := newTestClient(t, 1)
	neighborCh := make(chan *wire.Packet, 4)
	c.addNeighbor(2, neighborCh)

	header := wire.RoutingHeader{Hops: []node.ID{1, 2, 9}, HopIndex: 0}
	c.dispatchRequest(9, header, appmsg.GetServerType{})
	<-neighborCh // drain the outbound fragment

	ackPkt := &wire.Packet{
		RoutingHeader: wire.RoutingHeader{Hops: []node.ID{9, 2, 1}, HopIndex: 2},
		SessionID:     0,
		Payload:       wire.Ack{FragmentIndex: 0},
	}
	c.handlePacket(ackPkt)

	if c.cache.Len() != 0 {
		t.Fatalf("expected cache empty after ack, has %d entries", c.cache.Len())
	}
}

func TestResendForNackEscalatesPastThresholds(t *testing.T) {
	c, ctrl, _ := newTestClient(t, 1)
	neighborCh := make(chan *wire.Packet, 32)
	c.addNeighbor(2, neighborCh)
	c.router.AddNeighbor(2)
	c.router.HandleFloodResponse(wire.FloodResponse{
		FloodID: 1,
		PathTrace: []wire.PathEntry{
			{Node: 1, Kind: node.Drone},
			{Node: 2, Kind: node.Drone},
			{Node: 9, Kind: node.Server},
		},
	})

	header := wire.RoutingHeader{Hops: []node.ID{1, 2, 9}, HopIndex: 0}
	c.dispatchRequest(9, header, appmsg.GetServerType{})
	<-neighborCh // drain the original fragment send

	// Drive past RetryFloodThreshold (default 5): a flood request must
	// appear among the neighbor's outbound traffic, interleaved with the
	// fragment resends themselves.
	for i := 0; i < 6; i++ {
		c.resendForNack(0, 0, 2)
	}

	sawFlood := false
	for {
		select {
		case pkt := <-neighborCh:
			if _, ok := pkt.Payload.(wire.FloodRequest); ok {
				sawFlood = true
			}
		default:
			goto doneDraining
		}
	}
doneDraining:
	if !sawFlood {
		t.Fatalf("expected a reflood once retry exceeded RetryFloodThreshold")
	}
	_ = ctrl
}

func TestHandleFloodRequestRespondsAlongReversedPath(t *testing.T) {
	c, _, _ := newTestClient(t, 5)
	neighborCh := make(chan *wire.Packet, 4)
	c.addNeighbor(2, neighborCh)

	req := wire.FloodRequest{
		FloodID:     3,
		InitiatorID: 9,
		PathTrace:   []wire.PathEntry{{Node: 9, Kind: node.Drone}, {Node: 2, Kind: node.Drone}},
	}
	pkt := &wire.Packet{Payload: req}
	c.handlePacket(pkt)

	select {
	case out := <-neighborCh:
		resp, ok := out.Payload.(wire.FloodResponse)
		if !ok || resp.FloodID != 3 {
			t.Fatalf("expected FloodResponse{FloodID:3}, got %#v", out.Payload)
		}
		if len(resp.PathTrace) != 3 || resp.PathTrace[2].Node != node.ID(5) || resp.PathTrace[2].Kind != node.Client {
			t.Fatalf("expected path trace to end with (self,Client), got %#v", resp.PathTrace)
		}
		if out.RoutingHeader.HopIndex != 0 {
			t.Fatalf("expected hop index 0, got %d", out.RoutingHeader.HopIndex)
		}
	default:
		t.Fatalf("expected a flood response sent to neighbor 2")
	}
}

// TestHandleFloodRequestS1Fixture reproduces spec scenario S1 exactly:
// client id 128 receiving a 5-drone FloodRequest from initiator 129
// must respond with path_trace ending in (128,Client) and
// hops=[128,5,4,3,2,1,129].
func TestHandleFloodRequestS1Fixture(t *testing.T) {
	c, _, _ := newTestClient(t, 128)
	neighborCh := make(chan *wire.Packet, 4)
	c.addNeighbor(5, neighborCh)

	req := wire.FloodRequest{
		FloodID:     123,
		InitiatorID: 129,
		PathTrace: []wire.PathEntry{
			{Node: 1, Kind: node.Drone},
			{Node: 2, Kind: node.Drone},
			{Node: 3, Kind: node.Drone},
			{Node: 4, Kind: node.Drone},
			{Node: 5, Kind: node.Drone},
		},
	}
	c.handlePacket(&wire.Packet{Payload: req})

	select {
	case out := <-neighborCh:
		resp, ok := out.Payload.(wire.FloodResponse)
		if !ok || resp.FloodID != 123 {
			t.Fatalf("expected FloodResponse{FloodID:123}, got %#v", out.Payload)
		}
		wantTrace := []wire.PathEntry{
			{Node: 1, Kind: node.Drone},
			{Node: 2, Kind: node.Drone},
			{Node: 3, Kind: node.Drone},
			{Node: 4, Kind: node.Drone},
			{Node: 5, Kind: node.Drone},
			{Node: 128, Kind: node.Client},
		}
		if len(resp.PathTrace) != len(wantTrace) {
			t.Fatalf("path trace length = %d, want %d: %#v", len(resp.PathTrace), len(wantTrace), resp.PathTrace)
		}
		for i, want := range wantTrace {
			if resp.PathTrace[i] != want {
				t.Fatalf("path trace[%d] = %#v, want %#v", i, resp.PathTrace[i], want)
			}
		}
		wantHops := []node.ID{128, 5, 4, 3, 2, 1, 129}
		if len(out.RoutingHeader.Hops) != len(wantHops) {
			t.Fatalf("hops = %v, want %v", out.RoutingHeader.Hops, wantHops)
		}
		for i, want := range wantHops {
			if out.RoutingHeader.Hops[i] != want {
				t.Fatalf("hops[%d] = %d, want %d (full: %v)", i, out.RoutingHeader.Hops[i], want, out.RoutingHeader.Hops)
			}
		}
	default:
		t.Fatalf("expected a flood response sent to neighbor 5")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	c, _, _ := newTestClient(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after context cancel")
	}
}

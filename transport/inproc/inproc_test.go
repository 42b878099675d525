package inproc

import (
	"context"
	"testing"
	"time"

	"github.com/relaynet/mediaclient/control"
	"github.com/relaynet/mediaclient/core/node"
	"github.com/relaynet/mediaclient/core/wire"
)

func TestLinkSendAndDeliver(t *testing.T) {
	l := NewLink(node.ID(2))
	received := make(chan *wire.Packet, 1)
	l.SetPacketHandler(func(pkt *wire.Packet) { received <- pkt })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	pkt := &wire.Packet{SessionID: 1}
	l.Deliver(pkt)

	select {
	case got := <-received:
		if got != pkt {
			t.Fatalf("handler received a different packet")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for delivery")
	}

	if err := l.Send(pkt); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case got := <-l.Outbound():
		if got != pkt {
			t.Fatalf("Outbound received a different packet")
		}
	default:
		t.Fatalf("expected packet queued on Outbound")
	}
}

func TestControlLinkSendAndEmit(t *testing.T) {
	c := NewControlLink()
	c.Send(control.InitFlooding{})

	select {
	case cmd := <-c.Commands():
		if _, ok := cmd.(control.InitFlooding); !ok {
			t.Fatalf("unexpected command type %T", cmd)
		}
	default:
		t.Fatalf("expected a queued command")
	}

	c.Emit(control.AddedSender{ID: node.ID(3)})
	select {
	case ev := <-c.Events():
		if added, ok := ev.(control.AddedSender); !ok || added.ID != node.ID(3) {
			t.Fatalf("unexpected event: %#v", ev)
		}
	default:
		t.Fatalf("expected a queued event")
	}
}

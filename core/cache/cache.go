// Package cache holds outbound fragment packets awaiting acknowledgement,
// keyed by (session, fragment index), so a nack can trigger a retry
// without re-fragmenting the original message.
package cache

import (
	"sync"

	"github.com/relaynet/mediaclient/core/wire"
)

// Key identifies one cached fragment packet.
type Key struct {
	Session  uint64
	Fragment uint64
}

// entry pairs a cached packet with how many times it has been retrieved
// via GetValue — every retrieval counts as a resend attempt, not just
// ones triggered by a nack.
type entry struct {
	packet      *wire.Packet
	retrieveCnt uint64
}

// Cache stores pending outbound fragment packets. All operations are
// non-blocking and safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	items map[Key]*entry
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{items: make(map[Key]*entry)}
}

// keyFor derives a Key from a fragment packet. The second return value
// is false if p's payload is not a MsgFragment.
func keyFor(p *wire.Packet) (Key, bool) {
	idx, ok := p.FragmentIndex()
	if !ok {
		return Key{}, false
	}
	if _, isFragment := p.Payload.(wire.MsgFragment); !isFragment {
		return Key{}, false
	}
	return Key{Session: p.SessionID, Fragment: idx}, true
}

// Insert stores p under its (session, fragment) key with a fresh
// retrieve count of 0. A pre-existing entry at the same key is replaced.
// Packets whose payload is not a MsgFragment are ignored.
func (c *Cache) Insert(p *wire.Packet) {
	key, ok := keyFor(p)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = &entry{packet: p}
}

// GetValue bumps the retrieve count of the packet cached at key by one
// and returns the packet with the bumped count, so the first call after
// Insert reports 1 — a caller that looks up a packet is, by convention,
// about to resend it.
// Returns false if nothing is cached at key.
func (c *Cache) GetValue(key Key) (*wire.Packet, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return nil, 0, false
	}
	e.retrieveCnt++
	return e.packet, e.retrieveCnt, true
}

// Peek returns the cached packet at key without affecting its retrieve
// count, for callers that need to inspect a cached packet without
// counting it as a resend attempt.
func (c *Cache) Peek(key Key) (*wire.Packet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return e.packet, true
}

// TakePacket removes and returns the cached packet at key, e.g. once an
// ack has arrived and the fragment no longer needs to be retained.
func (c *Cache) TakePacket(key Key) (*wire.Packet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	delete(c.items, key)
	return e.packet, true
}

// Len reports the number of packets currently cached, mainly for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

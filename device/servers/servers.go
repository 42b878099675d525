// Package servers tracks the subset of discovered nodes known to be
// media servers, and hands them out round-robin so GetMedia requests
// spread across every known media server in a stable order.
package servers

import (
	"sort"
	"sync"

	"github.com/relaynet/mediaclient/core/node"
)

// Set is a thread-safe collection of media-server node ids with
// stable-order round-robin selection.
type Set struct {
	mu   sync.Mutex
	ids  map[node.ID]struct{}
	next int
}

// NewSet returns an empty media-server set.
func NewSet() *Set {
	return &Set{ids: make(map[node.ID]struct{})}
}

// Add records id as a known media server.
func (s *Set) Add(id node.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[id] = struct{}{}
}

// Remove drops id from the set, e.g. once its drone has crashed.
func (s *Set) Remove(id node.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, id)
}

// Contains reports whether id is a known media server.
func (s *Set) Contains(id node.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// sortedLocked returns the set's members in ascending id order, the
// stable iteration order round-robin advances over.
func (s *Set) sortedLocked() []node.ID {
	ids := make([]node.ID, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Next returns the next media server in round-robin order, advancing
// the cursor. Returns false if the set is empty.
func (s *Set) Next() (node.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.sortedLocked()
	if len(ids) == 0 {
		return 0, false
	}
	if s.next >= len(ids) {
		s.next = 0
	}
	id := ids[s.next]
	s.next = (s.next + 1) % len(ids)
	return id, true
}

// Snapshot returns the current members in ascending id order.
func (s *Set) Snapshot() []node.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Len reports the number of known media servers.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

package servers

import "testing"

func TestNextRoundRobinsInStableOrder(t *testing.T) {
	s := NewSet()
	s.Add(5)
	s.Add(2)
	s.Add(8)

	var order []int
	for i := 0; i < 6; i++ {
		id, ok := s.Next()
		if !ok {
			t.Fatalf("expected a media server at iteration %d", i)
		}
		order = append(order, int(id))
	}
	want := []int{2, 5, 8, 2, 5, 8}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestNextEmptySet(t *testing.T) {
	s := NewSet()
	if _, ok := s.Next(); ok {
		t.Fatalf("expected no media server in an empty set")
	}
}

func TestRemoveDropsFromRotation(t *testing.T) {
	s := NewSet()
	s.Add(1)
	s.Add(2)
	s.Remove(1)

	id, ok := s.Next()
	if !ok || id != 2 {
		t.Fatalf("expected only node 2 remaining, got %v ok=%v", id, ok)
	}
}

func TestContains(t *testing.T) {
	s := NewSet()
	s.Add(3)
	if !s.Contains(3) {
		t.Fatalf("expected Contains(3) to be true")
	}
	if s.Contains(4) {
		t.Fatalf("expected Contains(4) to be false")
	}
}

package observer

import (
	"testing"

	"github.com/hazyhaar/cvwatch/domwatch/internal/dom"
)

func TestRegistryStableIDs(t *testing.T) {
	r := NewRegistry()
	a := dom.Element("div")
	b := dom.Element("div")

	idA := r.ID(a)
	if again := r.ID(a); again != idA {
		t.Errorf("ID(a) twice: got %d then %d", idA, again)
	}
	idB := r.ID(b)
	if idA == idB {
		t.Errorf("distinct nodes share id %d", idA)
	}
	if idA != 0 || idB != 1 {
		t.Errorf("first-seen order: got %d, %d, want 0, 1", idA, idB)
	}
	if id, ok := r.Lookup(b); !ok || id != idB {
		t.Errorf("Lookup(b): got %d, %v", id, ok)
	}
	if _, ok := r.Lookup(dom.Element("p")); ok {
		t.Error("Lookup of unseen node: want false")
	}
	if r.ID(nil) != -1 {
		t.Error("ID(nil): want -1")
	}
}

func TestRegistryIDsNeverReused(t *testing.T) {
	r := NewRegistry()
	seen := make(map[int]bool)
	for i := 0; i < 100; i++ {
		id := r.ID(dom.Element("span"))
		if seen[id] {
			t.Fatalf("id %d reused", id)
		}
		seen[id] = true
	}
	if r.Assigned() != 100 {
		t.Errorf("Assigned: got %d, want 100", r.Assigned())
	}
}

package deadlock

import (
	"testing"

	"github.com/vanderheijden86/sokodlex/internal/grid"
)

func trapped(box grid.Pos) *Deadlock {
	avail := room(3, 3)
	return New([]grid.Pos{box}, nil, avail)
}

func TestSetAddFindRemove(t *testing.T) {
	s := NewSet()
	dl := trapped(grid.Pos{Row: 1, Col: 1})
	s.Add(dl)

	found := s.Find([]grid.Pos{{Row: 1, Col: 1}}, nil, nil, nil, grid.Pos{Row: 2, Col: 2})
	if len(found) != 1 || found[0] != dl {
		t.Fatalf("expected to find the newly added deadlock, got %v", found)
	}

	s.Remove(dl)
	found = s.Find([]grid.Pos{{Row: 1, Col: 1}}, nil, nil, nil, grid.Pos{Row: 2, Col: 2})
	if len(found) != 0 {
		t.Fatalf("removed deadlock should not be found, got %v", found)
	}
}

func TestSetAllListsEveryDeadlock(t *testing.T) {
	s := NewSet()
	a := trapped(grid.Pos{Row: 1, Col: 1})
	b := trapped(grid.Pos{Row: 1, Col: 2})
	s.Add(a)
	s.Add(b)

	all := s.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 deadlocks, got %d", len(all))
	}
}

func TestSetFindRespectsSkComponent(t *testing.T) {
	s := NewSet()
	dl := trapped(grid.Pos{Row: 1, Col: 1})
	s.Add(dl)

	// A storekeeper far outside the deadlock's component should not match.
	found := s.Find([]grid.Pos{{Row: 1, Col: 1}}, nil, nil, nil, grid.Pos{Row: 9, Col: 9})
	if len(found) != 0 {
		t.Fatalf("a storekeeper outside sk_component should not match, got %v", found)
	}
}

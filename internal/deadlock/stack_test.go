package deadlock

import (
	"testing"

	"github.com/vanderheijden86/sokodlex/internal/grid"
)

func leaf(box grid.Pos) *Deadlock {
	return New([]grid.Pos{box}, nil, room(3, 3))
}

// TestStackSetDescendantsPromotesTerminalDeadlock covers scenario S1's
// promotion path: a deadlock with no legal moves (zero descendants) has
// nothing to depend on and is promoted to full the moment SetDescendants
// is called.
func TestStackSetDescendantsPromotesTerminalDeadlock(t *testing.T) {
	st := NewStack(nil)
	dl := st.Add(leaf(grid.Pos{Row: 1, Col: 1}), 0)

	result, err := st.SetDescendants(dl, nil, nil)
	if err != nil {
		t.Fatalf("SetDescendants: %v", err)
	}
	if len(result.Promoted) != 1 || result.Promoted[0] != dl {
		t.Fatalf("expected the terminal deadlock to be promoted, got %v", result.Promoted)
	}
	if dl.FullIndex == nil || *dl.FullIndex != 0 {
		t.Fatalf("expected full_index 0, got %v", dl.FullIndex)
	}
	if dl.StackIndex != -1 {
		t.Fatalf("a full deadlock must leave the stack, got stack_index %d", dl.StackIndex)
	}
}

// TestStackSetDescendantsDefersOnShallowerDescendant exercises a deadlock
// whose only recorded descendant still sits on the stack at a shallower
// index: it must not be promoted, only reassigned to that shallower index.
func TestStackSetDescendantsDefersOnShallowerDescendant(t *testing.T) {
	st := NewStack(nil)
	ancestor := st.Add(leaf(grid.Pos{Row: 1, Col: 1}), 0)
	dl := st.Add(leaf(grid.Pos{Row: 2, Col: 2}), 1)

	action := Action{Box: grid.Pos{Row: 2, Col: 2}, Dir: grid.Up}
	result, err := st.SetDescendants(dl, []Action{action}, []*Deadlock{ancestor})
	if err != nil {
		t.Fatalf("SetDescendants: %v", err)
	}
	if len(result.Promoted) != 0 {
		t.Fatalf("a deadlock still reachable from an open ancestor must not promote, got %v", result.Promoted)
	}
	if dl.StackIndex != 0 {
		t.Fatalf("expected stack_index reassigned to the ancestor's depth 0, got %d", dl.StackIndex)
	}
	if dl.FullIndex != nil {
		t.Fatalf("a deferred deadlock must not have a full_index")
	}
	if err := st.CheckCorrect(); err != nil {
		t.Fatalf("CheckCorrect: %v", err)
	}
}

// TestStackSetDescendantsPromotesCycle is a 2-node version of scenario S5: a
// mutual dependency with no path to a shallower stack entry collapses into a
// single promotion, both deadlocks receiving distinct full_index values.
func TestStackSetDescendantsPromotesCycle(t *testing.T) {
	st := NewStack(nil)
	a := st.Add(leaf(grid.Pos{Row: 1, Col: 1}), 1)
	b := st.Add(leaf(grid.Pos{Row: 2, Col: 2}), 2)

	actB := Action{Box: grid.Pos{Row: 2, Col: 2}, Dir: grid.Up}
	if _, err := st.SetDescendants(b, []Action{actB}, []*Deadlock{a}); err != nil {
		t.Fatalf("SetDescendants(b): %v", err)
	}
	if b.StackIndex != 1 {
		t.Fatalf("b should have been reassigned to a's depth 1, got %d", b.StackIndex)
	}

	actA := Action{Box: grid.Pos{Row: 1, Col: 1}, Dir: grid.Down}
	result, err := st.SetDescendants(a, []Action{actA}, []*Deadlock{b})
	if err != nil {
		t.Fatalf("SetDescendants(a): %v", err)
	}
	if len(result.Promoted) != 2 {
		t.Fatalf("expected both deadlocks in the cycle to promote together, got %v", result.Promoted)
	}
	seen := map[*Deadlock]bool{}
	for _, dl := range result.Promoted {
		seen[dl] = true
		if dl.FullIndex == nil {
			t.Fatalf("promoted deadlock missing full_index")
		}
	}
	if !seen[a] || !seen[b] {
		t.Fatalf("expected both a and b among the promoted set")
	}
	if *a.FullIndex == *b.FullIndex {
		t.Fatalf("a and b must receive distinct full_index values")
	}
	if err := st.CheckCorrect(); err != nil {
		t.Fatalf("CheckCorrect: %v", err)
	}
}

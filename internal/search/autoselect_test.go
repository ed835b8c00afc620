package search

import (
	"testing"

	"golang.org/x/exp/rand"

	"github.com/vanderheijden86/sokodlex/internal/grid"
	"github.com/vanderheijden86/sokodlex/internal/movestack"
	"github.com/vanderheijden86/sokodlex/internal/sokostate"
)

func corridor(n int) *grid.Mask {
	m := grid.NewMask(1, n)
	for c := 1; c <= n; c++ {
		m.Set(grid.Pos{Row: 1, Col: c}, true)
	}
	return m
}

// TestAutoSelectSolvesTrivialCorridor drives Step to completion on a
// one-box, one-push level and checks it terminates solved within a small
// step budget.
func TestAutoSelectSolvesTrivialCorridor(t *testing.T) {
	avail := corridor(3)
	storages := grid.NewMask(1, 3)
	storages.Set(grid.Pos{Row: 1, Col: 3}, true)
	boxes := grid.NewMask(1, 3)
	boxes.Set(grid.Pos{Row: 1, Col: 2}, true)

	first := sokostate.New(avail, boxes, avail, storages, grid.Pos{Row: 1, Col: 1}, sokostate.Params{})
	stack, err := movestack.New(first, "", true)
	if err != nil {
		t.Fatalf("movestack.New: %v", err)
	}
	auto := New(stack, nil, rand.New(rand.NewSource(1)))

	solved := false
	for i := 0; i < 1000; i++ {
		if stack.IsSolved() {
			solved = true
			break
		}
		more, err := auto.Step()
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if !more {
			break
		}
	}
	if !solved && !stack.IsSolved() {
		t.Fatalf("expected the trivial corridor to be solved within the step budget")
	}
	if auto.Steps() == 0 {
		t.Fatalf("expected at least one step to have run")
	}
}

// TestAutoSelectIsSolvableMemoizesClearedBoard checks IsSolvable's zero-box
// case: a state with no boxes left is always solvable.
func TestAutoSelectIsSolvableMemoizesClearedBoard(t *testing.T) {
	avail := corridor(3)
	storages := grid.NewMask(1, 3)
	storages.Set(grid.Pos{Row: 1, Col: 3}, true)
	empty := grid.NewMask(1, 3)

	first := sokostate.New(avail, empty, avail, storages, grid.Pos{Row: 1, Col: 1}, sokostate.Params{})
	stack, err := movestack.New(first, "", true)
	if err != nil {
		t.Fatalf("movestack.New: %v", err)
	}
	auto := New(stack, nil, rand.New(rand.NewSource(1)))
	if !auto.IsSolvable(stack) {
		t.Fatalf("a state with no boxes left must be solvable")
	}
}

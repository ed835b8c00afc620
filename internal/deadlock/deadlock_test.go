package deadlock

import (
	"testing"

	"github.com/vanderheijden86/sokodlex/internal/grid"
	"github.com/vanderheijden86/sokodlex/internal/sokostate"
)

func room(h, w int) *grid.Mask {
	m := grid.NewMask(h, w)
	for r := 1; r <= h; r++ {
		for c := 1; c <= w; c++ {
			m.Set(grid.Pos{Row: r, Col: c}, true)
		}
	}
	return m
}

// TestFromStateCorner is scenario S1: a single box trapped in a corner with
// no legal push should produce a deadlock naming exactly the box's position.
func TestFromStateCorner(t *testing.T) {
	avail := grid.NewMask(4, 4)
	for _, p := range []grid.Pos{{1, 1}, {2, 1}, {1, 2}, {3, 1}, {2, 2}} {
		avail.Set(p, true)
	}
	boxes := grid.NewMask(4, 4)
	boxes.Set(grid.Pos{Row: 1, Col: 1}, true)
	storages := grid.NewMask(4, 4)
	storages.Set(grid.Pos{Row: 3, Col: 1}, true)

	state := sokostate.New(avail, boxes, avail, storages, grid.Pos{Row: 2, Col: 2}, sokostate.Params{})
	mask := state.ActionMask(true)
	for _, box := range avail.Positions() {
		for _, d := range grid.Dirs {
			if mask.At(box, d) {
				t.Fatalf("corner position should have no legal push, found %v %v", box, d)
			}
		}
	}

	dl := FromState(state)
	if len(dl.Boxes) != 1 || dl.Boxes[0] != (grid.Pos{Row: 1, Col: 1}) {
		t.Fatalf("deadlock should name exactly the trapped box, got %v", dl.Boxes)
	}
	if !dl.CheckState(state) {
		t.Fatalf("deadlock must describe the state it was built from")
	}
}

func TestCheckStateRejectsDifferentBoxes(t *testing.T) {
	avail := room(3, 3)
	boxes := grid.NewMask(3, 3)
	boxes.Set(grid.Pos{Row: 1, Col: 1}, true)
	storages := grid.NewMask(3, 3)
	storages.Set(grid.Pos{Row: 3, Col: 3}, true)
	state := sokostate.New(avail, boxes, avail, storages, grid.Pos{Row: 2, Col: 2}, sokostate.Params{})
	dl := FromState(state)

	boxes2 := grid.NewMask(3, 3)
	boxes2.Set(grid.Pos{Row: 1, Col: 2}, true)
	state2 := sokostate.New(avail, boxes2, avail, storages, grid.Pos{Row: 2, Col: 2}, sokostate.Params{})
	if dl.CheckState(state2) {
		t.Fatalf("a deadlock for one box configuration should not match a different one")
	}
}

func TestCheckDependenciesRejectsSolvedState(t *testing.T) {
	avail := room(2, 1)
	boxes := grid.NewMask(2, 1)
	boxes.Set(grid.Pos{Row: 2, Col: 1}, true)
	storages := boxes.Clone()
	state := sokostate.New(avail, boxes, avail, storages, grid.Pos{Row: 1, Col: 1}, sokostate.Params{})
	dl := FromState(state)
	dl.Descendants = map[Action]*Deadlock{}
	if err := dl.CheckDependencies(state, true); err == nil {
		t.Fatalf("expected an error: a deadlock cannot describe an already-solved state")
	}
}

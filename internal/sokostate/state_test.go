package sokostate

import (
	"testing"

	"github.com/vanderheijden86/sokodlex/internal/grid"
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

func TestNewComputesSubFullAndStorekeepers(t *testing.T) {
	avail := room(3, 3)
	boxes := grid.NewMask(3, 3)
	boxes.Set(grid.Pos{Row: 2, Col: 2}, true)
	storages := boxes.Clone()

	s := New(avail, boxes, avail, storages, grid.Pos{Row: 1, Col: 1}, Params{})
	if !s.SubFull {
		t.Fatalf("sub_boxes count equals storages count, expected sub_full")
	}
	if !s.Storekeepers.Get(grid.Pos{Row: 1, Col: 1}) {
		t.Fatalf("storekeepers must contain the keeper's own start")
	}
	if s.Storekeepers.Get(grid.Pos{Row: 2, Col: 2}) {
		t.Fatalf("storekeepers must not include a cell occupied by a box")
	}
}

func TestIsSolvedRequiresSubBoxesOnStorages(t *testing.T) {
	avail := room(3, 1)
	storages := grid.NewMask(3, 1)
	storages.Set(grid.Pos{Row: 3, Col: 1}, true)
	boxes := grid.NewMask(3, 1)
	boxes.Set(grid.Pos{Row: 2, Col: 1}, true)

	s := New(avail, boxes, avail, storages, grid.Pos{Row: 1, Col: 1}, Params{})
	if s.IsSolved(nil, nil) {
		t.Fatalf("box not on storage should not be solved")
	}

	boxesSolved := grid.NewMask(3, 1)
	boxesSolved.Set(grid.Pos{Row: 3, Col: 1}, true)
	s2 := New(avail, boxesSolved, avail, storages, grid.Pos{Row: 1, Col: 1}, Params{})
	if !s2.IsSolved(nil, nil) {
		t.Fatalf("box on its storage should be solved")
	}
}

func TestMovePushUpdatesBoxAndKeeper(t *testing.T) {
	avail := room(1, 4)
	storages := grid.NewMask(1, 4)
	storages.Set(grid.Pos{Row: 1, Col: 4}, true)
	boxes := grid.NewMask(1, 4)
	boxes.Set(grid.Pos{Row: 1, Col: 2}, true)

	s := New(avail, boxes, avail, storages, grid.Pos{Row: 1, Col: 1}, Params{})
	mask := s.ActionMask(true)
	if !mask.At(grid.Pos{Row: 1, Col: 2}, grid.Right) {
		t.Fatalf("pushing the box right should be legal")
	}

	next := s.Move(grid.Pos{Row: 1, Col: 2}, grid.Right, true)
	if next.SubBoxes.Get(grid.Pos{Row: 1, Col: 2}) {
		t.Fatalf("box should have moved off its original cell")
	}
	if !next.SubBoxes.Get(grid.Pos{Row: 1, Col: 3}) {
		t.Fatalf("box should now be at the pushed-to cell")
	}
	if next.Storekeeper != (grid.Pos{Row: 1, Col: 2}) {
		t.Fatalf("keeper should follow the box into its old cell, got %v", next.Storekeeper)
	}
}

func TestGeneralizeMustNarrowSubBoxes(t *testing.T) {
	avail := room(2, 2)
	boxes := grid.NewMask(2, 2)
	boxes.Set(grid.Pos{Row: 1, Col: 1}, true)
	storages := boxes.Clone()
	s := New(avail, boxes, avail, storages, grid.Pos{Row: 2, Col: 2}, Params{})

	widerSub := boxes.Clone()
	widerSub.Set(grid.Pos{Row: 1, Col: 2}, true)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected a panic when widening sub_boxes via Generalize")
		}
	}()
	s.Generalize(widerSub, s.SupBoxes, nil)
}

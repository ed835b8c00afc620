package movestack

import (
	"testing"

	"github.com/vanderheijden86/sokodlex/internal/deadlock"
	"github.com/vanderheijden86/sokodlex/internal/grid"
	"github.com/vanderheijden86/sokodlex/internal/sokostate"
)

func corridor(n int) *grid.Mask {
	m := grid.NewMask(1, n)
	for c := 1; c <= n; c++ {
		m.Set(grid.Pos{Row: 1, Col: c}, true)
	}
	return m
}

// TestApplyActionThenUndoRestoresState is invariant 7 from spec.md §8: a
// push followed by an undo leaves every field of the current state bitwise
// unchanged.
func TestApplyActionThenUndoRestoresState(t *testing.T) {
	avail := corridor(4)
	storages := grid.NewMask(1, 4)
	storages.Set(grid.Pos{Row: 1, Col: 4}, true)
	boxes := grid.NewMask(1, 4)
	boxes.Set(grid.Pos{Row: 1, Col: 2}, true)

	first := sokostate.New(avail, boxes, avail, storages, grid.Pos{Row: 1, Col: 1}, sokostate.Params{})
	stack, err := New(first, "", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	before := stack.State().Clone()
	stack.ApplyAction(deadlock.Action{Box: grid.Pos{Row: 1, Col: 2}, Dir: grid.Right}, DefaultAddMoveOptions())
	if stack.CurMoveI != 1 {
		t.Fatalf("expected CurMoveI to advance to 1, got %d", stack.CurMoveI)
	}

	if !stack.Undo() {
		t.Fatalf("Undo should report it moved")
	}
	after := stack.State()
	if !before.SubBoxes.Equal(after.SubBoxes) || !before.SupBoxes.Equal(after.SupBoxes) {
		t.Fatalf("undo did not restore box masks")
	}
	if before.Storekeeper != after.Storekeeper {
		t.Fatalf("undo did not restore storekeeper position")
	}
	if before.SubFull != after.SubFull {
		t.Fatalf("undo did not restore sub_full")
	}
}

// TestSearchReachesSolvedCorridor is scenario S3: a trivially solvable
// one-push level, solved via a single legal action.
func TestSearchReachesSolvedCorridor(t *testing.T) {
	avail := corridor(3)
	storages := grid.NewMask(1, 3)
	storages.Set(grid.Pos{Row: 1, Col: 3}, true)
	boxes := grid.NewMask(1, 3)
	boxes.Set(grid.Pos{Row: 1, Col: 2}, true)

	first := sokostate.New(avail, boxes, avail, storages, grid.Pos{Row: 1, Col: 1}, sokostate.Params{})
	stack, err := New(first, "", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if stack.IsSolved() {
		t.Fatalf("the initial corridor must not already be solved")
	}

	actions, _, free := stack.FindActionsLocks()
	if len(free) == 0 {
		t.Fatalf("expected at least one deadlock-free action, got actions=%v", actions)
	}
	stack.ApplyAction(free[0], DefaultAddMoveOptions())
	if !stack.IsSolved() {
		t.Fatalf("pushing the only box onto its only storage should solve the level")
	}
	if stack.CurMoveI != 1 {
		t.Fatalf("expected exactly one move recorded, got CurMoveI=%d", stack.CurMoveI)
	}
}

// TestDropRedoDiscardsFutureMoves exercises the undo/redo history trim that
// AddMove relies on when a new move is recorded over stale redo history.
func TestDropRedoDiscardsFutureMoves(t *testing.T) {
	avail := corridor(4)
	storages := grid.NewMask(1, 4)
	storages.Set(grid.Pos{Row: 1, Col: 4}, true)
	boxes := grid.NewMask(1, 4)
	boxes.Set(grid.Pos{Row: 1, Col: 2}, true)

	first := sokostate.New(avail, boxes, avail, storages, grid.Pos{Row: 1, Col: 1}, sokostate.Params{})
	stack, err := New(first, "", true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	stack.ApplyAction(deadlock.Action{Box: grid.Pos{Row: 1, Col: 2}, Dir: grid.Right}, DefaultAddMoveOptions())
	stack.Undo()
	if len(stack.Moves) != 1 {
		t.Fatalf("undo should not drop recorded history by itself")
	}

	stack.ApplyAction(deadlock.Action{Box: grid.Pos{Row: 1, Col: 2}, Dir: grid.Right}, DefaultAddMoveOptions())
	if len(stack.Moves) != 1 {
		t.Fatalf("re-applying the same move from an undone position should replace, not append, got %d moves", len(stack.Moves))
	}
}

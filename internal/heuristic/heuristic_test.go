package heuristic

import (
	"testing"

	"golang.org/x/exp/rand"

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

func TestScoreToStoragePrefersPushTowardStorage(t *testing.T) {
	avail := corridor(4)
	storages := grid.NewMask(1, 4)
	storages.Set(grid.Pos{Row: 1, Col: 4}, true)
	boxes := grid.NewMask(1, 4)
	boxes.Set(grid.Pos{Row: 1, Col: 2}, true)

	state := sokostate.New(avail, boxes, avail, storages, grid.Pos{Row: 1, Col: 1}, sokostate.Params{})
	scores := ScoreToStorage(state, true, nil)

	want := deadlock.Action{Box: grid.Pos{Row: 1, Col: 2}, Dir: grid.Right}
	if scores[want] != 2 {
		t.Fatalf("pushing the box toward its storage should score 2, got %d", scores[want])
	}
	away := deadlock.Action{Box: grid.Pos{Row: 1, Col: 2}, Dir: grid.Left}
	if scores[away] != 0 {
		t.Fatalf("pushing the box away from its only storage should score 0, got %d", scores[away])
	}
}

func TestChooseActionAlwaysPicksAProvidedAction(t *testing.T) {
	avail := corridor(4)
	storages := grid.NewMask(1, 4)
	storages.Set(grid.Pos{Row: 1, Col: 4}, true)
	boxes := grid.NewMask(1, 4)
	boxes.Set(grid.Pos{Row: 1, Col: 2}, true)

	state := sokostate.New(avail, boxes, avail, storages, grid.Pos{Row: 1, Col: 1}, sokostate.Params{})
	actions := []deadlock.Action{
		{Box: grid.Pos{Row: 1, Col: 2}, Dir: grid.Right},
		{Box: grid.Pos{Row: 1, Col: 2}, Dir: grid.Left},
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		chosen, err := ChooseAction(state, true, actions, rng)
		if err != nil {
			t.Fatalf("ChooseAction: %v", err)
		}
		if chosen != actions[0] && chosen != actions[1] {
			t.Fatalf("ChooseAction returned an action not in the candidate set: %v", chosen)
		}
	}
}

func TestChooseActionEmptyActionsReturnsZeroValue(t *testing.T) {
	avail := corridor(2)
	boxes := grid.NewMask(1, 2)
	state := sokostate.New(avail, boxes, avail, boxes, grid.Pos{Row: 1, Col: 1}, sokostate.Params{})
	rng := rand.New(rand.NewSource(1))
	chosen, err := ChooseAction(state, true, nil, rng)
	if err != nil {
		t.Fatalf("ChooseAction: %v", err)
	}
	if chosen != (deadlock.Action{}) {
		t.Fatalf("expected the zero action for an empty candidate set, got %v", chosen)
	}
}

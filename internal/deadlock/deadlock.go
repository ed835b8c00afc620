// Package deadlock implements the deadlock store (spec.md §4.2): a single
// proven-dead position, indexed for fast lookup by the boxes it names, and
// the dependency graph that promotes on-stack conjectures to fully proven
// deadlocks once their descendants close a cycle.
//
// Grounded on _examples/original_source/deadlocks.py.
package deadlock

import (
	"fmt"
	"sort"

	"github.com/vanderheijden86/sokodlex/internal/grid"
	"github.com/vanderheijden86/sokodlex/internal/sokostate"
)

// Action identifies a single push/pull action by the box it moves and the
// direction it moves in (deadlocks.py tuples actions as (y, x, d)).
type Action struct {
	Box grid.Pos
	Dir grid.Dir
}

// Deadlock is a claim that, whenever Boxes are all occupied, none of
// NotBoxes is occupied, and the keeper is confined to SkComponent, the
// position cannot be solved.
//
// Exactly one of the three lifecycle states applies at a time:
//   - on stack: StackIndex >= 0, Descendants == nil, FullIndex == nil
//   - off stack (conjectured, with a path back into the stack):
//     StackIndex >= 0, Descendants != nil, FullIndex == nil
//   - full (proven, independent of the stack): StackIndex == -1,
//     FullIndex != nil
type Deadlock struct {
	Boxes       []grid.Pos
	NotBoxes    []grid.Pos
	SkComponent *grid.Mask

	StackIndex  int
	FullIndex   *int
	Descendants map[Action]*Deadlock
}

// New constructs a Deadlock from an already-sorted, deduplicated set of box
// positions, a set of positions proven unoccupied, and the keeper's
// reachable component. StackIndex starts at -1 (not on the stack yet); the
// caller is expected to push it via Stack.Add.
func New(boxes, notBoxes []grid.Pos, skComponent *grid.Mask) *Deadlock {
	return &Deadlock{
		Boxes:       boxes,
		NotBoxes:    notBoxes,
		SkComponent: skComponent,
		StackIndex:  -1,
	}
}

// FromState builds the canonical Deadlock claim for state: every sub-box
// position is named in Boxes, and (unless sub_full) every available cell not
// in sup_boxes is named in NotBoxes (deadlocks.py's deadlock_from_state).
func FromState(state *sokostate.State) *Deadlock {
	boxes := state.SubBoxes.Positions()
	var notBoxes []grid.Pos
	if !state.SubFull {
		notBoxes = state.Available.AndNot(state.SupBoxes).Positions()
	}
	return New(boxes, notBoxes, state.Storekeepers)
}

// CheckSets reports whether this deadlock still applies given boxesSet (the
// positions currently known occupied) and nboxesSet (positions proven
// unoccupied, or nil meaning "no box may be at a not_boxes position"), with
// the keeper confined to storekeeper's component.
func (d *Deadlock) CheckSets(boxesSet map[grid.Pos]struct{}, nboxesSet map[grid.Pos]struct{}, storekeeper grid.Pos) bool {
	for _, box := range d.Boxes {
		if _, ok := boxesSet[box]; !ok {
			return false
		}
	}
	if !d.NBoxesCheckSets(boxesSet, nboxesSet) {
		return false
	}
	return d.SkComponent.Get(storekeeper)
}

// NBoxesCheckSets is the not_boxes half of CheckSets in isolation.
func (d *Deadlock) NBoxesCheckSets(boxesSet map[grid.Pos]struct{}, nboxesSet map[grid.Pos]struct{}) bool {
	if nboxesSet == nil {
		for _, nbox := range d.NotBoxes {
			if _, ok := boxesSet[nbox]; ok {
				return false
			}
		}
		return true
	}
	for _, nbox := range d.NotBoxes {
		if _, ok := nboxesSet[nbox]; !ok {
			return false
		}
	}
	return true
}

// CheckState reports whether this deadlock claim holds of state exactly
// (deadlocks.py's check_state).
func (d *Deadlock) CheckState(state *sokostate.State) bool {
	if state.MultiComponent {
		if !state.Storekeepers.Subset(d.SkComponent) {
			return false
		}
	} else if !d.SkComponent.Get(state.Storekeeper) {
		return false
	}

	if state.SubFull {
		for _, nbox := range d.NotBoxes {
			if state.SubBoxes.Get(nbox) {
				return false
			}
		}
	} else {
		for _, nbox := range d.NotBoxes {
			if state.SupBoxes.Get(nbox) {
				return false
			}
		}
	}

	for _, box := range d.Boxes {
		if !state.SubBoxes.Get(box) {
			return false
		}
	}
	return true
}

// ToSokoState reconstructs the full generalized state this deadlock claims
// is dead, reusing base_state's available/storages masks.
func (d *Deadlock) ToSokoState(baseState *sokostate.State) *sokostate.State {
	subBoxes := grid.NewMask(baseState.Available.Height, baseState.Available.Width)
	for _, box := range d.Boxes {
		subBoxes.Set(box, true)
	}
	supBoxes := baseState.Available.Clone()
	for _, nbox := range d.NotBoxes {
		supBoxes.Set(nbox, false)
	}
	positions := d.SkComponent.Positions()
	if len(positions) == 0 {
		panic("deadlock: sk_component has no reachable cell")
	}
	return sokostate.New(baseState.Available, subBoxes, supBoxes, baseState.Storages, positions[0], sokostate.Params{
		Storekeepers: d.SkComponent,
	})
}

// CheckDependencies verifies that every registered descendant correctly
// describes the state reached by applying its action to this deadlock's
// state, and that the state itself is not already solved (deadlocks.py's
// check_dependencies, used as an internal-consistency assertion rather than
// a hot-path operation).
func (d *Deadlock) CheckDependencies(baseState *sokostate.State, fwMode bool) error {
	state := d.ToSokoState(baseState)
	if state.IsSolved(nil, nil) {
		return fmt.Errorf("deadlock: claimed-dead state is solved")
	}
	mask := state.ActionMask(fwMode)
	for _, box := range state.Available.Positions() {
		for _, dir := range grid.Dirs {
			if !mask.At(box, dir) {
				continue
			}
			action := Action{Box: box, Dir: dir}
			descendant, ok := d.Descendants[action]
			if !ok {
				return fmt.Errorf("deadlock: missing descendant for action %v %v", box, dir)
			}
			state2 := state.Move(box, dir, fwMode)
			if !descendant.CheckState(state2) {
				return fmt.Errorf("deadlock: descendant for action %v %v does not describe the reached state", box, dir)
			}
		}
	}
	return nil
}

func sortedPositions(positions []grid.Pos) []grid.Pos {
	out := append([]grid.Pos(nil), positions...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

func boxesKey(boxes []grid.Pos) string {
	b := make([]byte, 0, len(boxes)*8)
	for _, p := range boxes {
		b = fmt.Appendf(b, "%d,%d;", p.Row, p.Col)
	}
	return string(b)
}

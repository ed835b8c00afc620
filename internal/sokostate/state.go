// Package sokostate implements the generalized dual-mask Sokoban state
// (spec.md §3): a box position can be known exactly (sub_boxes), merely not
// yet ruled out (sup_boxes), or generalized away entirely once sub_full is
// false, with the keeper's reachable region tracked as its own mask.
//
// Grounded on _examples/original_source/soko_state.py.
package sokostate

import (
	"github.com/vanderheijden86/sokodlex/internal/grid"
	"github.com/vanderheijden86/sokodlex/internal/reach"
)

// State is the generalized Sokoban position (soko_state.py's SokoState).
type State struct {
	Available *grid.Mask
	SubBoxes  *grid.Mask
	SupBoxes  *grid.Mask
	Storages  *grid.Mask

	Storekeeper     grid.Pos
	Storekeepers    *grid.Mask
	StorekeeperGoal *grid.Pos

	SubFull        bool
	MultiComponent bool
}

// Params carries the optional constructor arguments soko_state.py's
// __init__ defaults to None and recomputes when omitted.
type Params struct {
	Storekeepers    *grid.Mask
	SubFull         *bool
	StorekeeperGoal *grid.Pos
	MultiComponent  *bool
}

// New builds a State, recomputing Storekeepers/SubFull/MultiComponent from
// the given masks whenever the corresponding Params field is nil.
func New(available, subBoxes, supBoxes, storages *grid.Mask, storekeeper grid.Pos, p Params) *State {
	s := &State{
		Available:       available,
		SubBoxes:        subBoxes,
		SupBoxes:        supBoxes,
		Storages:        storages,
		Storekeeper:     storekeeper,
		StorekeeperGoal: p.StorekeeperGoal,
	}

	if p.Storekeepers != nil {
		s.Storekeepers = p.Storekeepers
	} else {
		s.Storekeepers = reach.Component(available.AndNot(subBoxes), []grid.Pos{storekeeper})
	}

	if p.MultiComponent != nil {
		s.MultiComponent = *p.MultiComponent
	} else {
		positions := s.Storekeepers.Positions()
		if len(positions) == 0 {
			s.MultiComponent = false
		} else {
			sub := reach.Component(s.Storekeepers, positions[:1])
			s.MultiComponent = !sub.Equal(s.Storekeepers)
		}
	}

	if p.SubFull != nil {
		s.SubFull = *p.SubFull
	} else {
		s.SubFull = subBoxes.Count() == storages.Count()
	}

	return s
}

// Clone returns a State equal in every field (masks are treated as
// immutable by the rest of the codebase, so the copy shares them).
func (s *State) Clone() *State {
	multiComponent := s.MultiComponent
	subFull := s.SubFull
	return New(s.Available, s.SubBoxes, s.SupBoxes, s.Storages, s.Storekeeper, Params{
		Storekeepers:    s.Storekeepers,
		SubFull:         &subFull,
		StorekeeperGoal: s.StorekeeperGoal,
		MultiComponent:  &multiComponent,
	})
}

// ActionMask is a per-direction reachability mask: ActionMask[d].Get(p) is
// true when pushing (or, in pull mode, pulling) the box at p in direction d
// is a legal action from this state (soko_state.py's action_mask).
type ActionMask [4]*grid.Mask

// At reports whether the action at (p, d) is legal.
func (a ActionMask) At(p grid.Pos, d grid.Dir) bool {
	return a[d].Get(p)
}

// ActionMask computes the legal push (fwMode=true) or pull (fwMode=false)
// actions available from s.
func (s *State) ActionMask(fwMode bool) ActionMask {
	var out ActionMask
	var notSup *grid.Mask
	if !s.SubFull {
		notSup = s.SupBoxes.Not()
	}
	for _, d := range grid.Dirs {
		hasBox := s.SubBoxes.Clone()
		if !s.SubFull {
			hasBox = hasBox.Or(s.SupBoxes.And(notSup.Shift(d.Op())))
		}
		destAvail := s.Available.AndNot(s.SubBoxes)

		var skReachable, destReachable *grid.Mask
		if fwMode {
			skReachable = s.Storekeepers.Shift(d)
			destReachable = destAvail.Shift(d.Op())
		} else {
			skReachable = s.Storekeepers.Shift(d.Op())
			destReachable = destAvail.Shift(d.Op()).Shift(d.Op())
		}
		out[d] = skReachable.And(destReachable).And(hasBox)
	}
	return out
}

// IsSolved reports whether every sub-box sits on a storage cell, every
// storage cell is covered by a (possibly generalized) box, and, when a
// storekeeper goal is set (dual mode), the keeper can reach it. A nil
// storages/goal pair uses s's own fields (other_goal=None in the original).
func (s *State) IsSolved(storages *grid.Mask, storekeeperGoal *grid.Pos) bool {
	if storages == nil {
		storages = s.Storages
		storekeeperGoal = s.StorekeeperGoal
	}
	if storekeeperGoal != nil && !s.Storekeepers.Get(*storekeeperGoal) {
		return false
	}
	return s.SubBoxes.Subset(storages) && storages.Subset(s.SupBoxes)
}

// Score is a heuristic completeness measure (soko_state.py's score): each
// sub-box on a storage cell counts as a full point, each sup-box on a
// storage cell that is not a sub-box counts as a half point. No search code
// in this module calls it.
func (s *State) Score() float64 {
	return float64(s.SubBoxes.And(s.Storages).Count())/2 + float64(s.SupBoxes.And(s.Storages).Count())/2
}

// Move applies a single push (fwMode=true) or pull (fwMode=false) of the box
// at box in direction d, returning the resulting state. The caller must
// check ActionMask first; Move panics if the action is not legal, mirroring
// the original's bare assertions.
func (s *State) Move(box grid.Pos, d grid.Dir, fwMode bool) *State {
	box2 := d.Shift(box)
	if s.SubBoxes.Get(box2) {
		panic("sokostate: destination already occupied by a known box")
	}
	if !s.Available.Get(box2) {
		panic("sokostate: destination is not available")
	}
	if !(s.SubBoxes.Get(box) || (s.SupBoxes.Get(box) && !s.SupBoxes.Get(box2))) {
		panic("sokostate: no box to move at the source cell")
	}

	var storekeeperN grid.Pos
	if fwMode {
		if !s.Storekeepers.Get(d.Op().Shift(box)) {
			panic("sokostate: keeper cannot reach the push side")
		}
		storekeeperN = box
	} else {
		if !s.Storekeepers.Get(box2) {
			panic("sokostate: keeper cannot reach the pull side")
		}
		storekeeperN = d.Shift(box2)
	}

	subBoxesN := s.SubBoxes.Clone()
	subBoxesN.Set(box, false)
	subBoxesN.Set(box2, true)
	supBoxesN := s.SupBoxes.Clone()
	supBoxesN.Set(box, false)
	supBoxesN.Set(box2, true)

	return New(s.Available, subBoxesN, supBoxesN, s.Storages, storekeeperN, Params{
		StorekeeperGoal: s.StorekeeperGoal,
	})
}

// Generalize widens or narrows the known box masks, recomputing the
// keeper's reachable region unless storekeepers is given explicitly. subBoxes
// must be a subset of s.SubBoxes; unless s.SubFull, s.SupBoxes must be a
// subset of supBoxes (soko_state.py's generalize).
func (s *State) Generalize(subBoxes, supBoxes, storekeepers *grid.Mask) *State {
	if !subBoxes.Subset(s.SubBoxes) {
		panic("sokostate: generalize must narrow sub_boxes, not widen it")
	}
	if !s.SubFull && !s.SupBoxes.Subset(supBoxes) {
		panic("sokostate: generalize must widen sup_boxes once sub_full is false")
	}
	if storekeepers == nil {
		if subBoxes.Equal(s.SubBoxes) {
			storekeepers = s.Storekeepers
		} else {
			storekeepers = reach.Component(s.Available.AndNot(subBoxes), s.Storekeepers.Positions())
		}
	}
	multiComponent := s.MultiComponent
	return New(s.Available, subBoxes, supBoxes, s.Storages, s.Storekeeper, Params{
		Storekeepers:    storekeepers,
		StorekeeperGoal: s.StorekeeperGoal,
		MultiComponent:  &multiComponent,
	})
}

// IsGeneralizedBy reports whether other is a generalization of s: s can be
// reached from other's deadlock claim, i.e. everything s knows, other knows
// at least as loosely (soko_state.py's is_generalized_by).
func (s *State) IsGeneralizedBy(other *State) bool {
	if !other.SubBoxes.Subset(s.SubBoxes) {
		return false
	}
	if !s.SubFull && !s.SupBoxes.Subset(other.SupBoxes) {
		return false
	}
	return s.Storekeepers.Subset(other.Storekeepers)
}

// SetStorekeeper returns a copy of s with the keeper moved to newSk, which
// must already lie within s.Storekeepers.
func (s *State) SetStorekeeper(newSk grid.Pos) *State {
	if !s.Storekeepers.Get(newSk) {
		panic("sokostate: new storekeeper position is unreachable")
	}
	subFull := s.SubFull
	multiComponent := s.MultiComponent
	return New(s.Available, s.SubBoxes, s.SupBoxes, s.Storages, newSk, Params{
		Storekeepers:    s.Storekeepers,
		SubFull:         &subFull,
		StorekeeperGoal: s.StorekeeperGoal,
		MultiComponent:  &multiComponent,
	})
}

// DualAction maps a (box, direction) push action to its dual-mode pull
// equivalent: the box's destination becomes the new subject position, and
// the direction reverses (soko_state.py's dual_action).
func DualAction(box grid.Pos, d grid.Dir) (grid.Pos, grid.Dir) {
	return d.Shift(box), d.Op()
}

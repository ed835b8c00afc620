// Package search implements the auto-select driver (spec.md §4.6): an
// outer loop layered on top of movestack.Stack that adds a bottom-up
// solvability memo, so the search can skip re-exploring a box configuration
// it already proved solvable from some keeper component, and opportunistically
// drops boxes from the generalized state when doing so doesn't revisit known
// territory.
//
// Grounded on _examples/original_source/auto_select.py.
package search

import (
	"sort"

	"golang.org/x/exp/rand"

	"github.com/vanderheijden86/sokodlex/internal/deadlock"
	"github.com/vanderheijden86/sokodlex/internal/grid"
	"github.com/vanderheijden86/sokodlex/internal/movestack"
	"github.com/vanderheijden86/sokodlex/internal/reach"
)

// solvableCandidate is one recorded (boxes, keeper) pair known solvable,
// indexed per contained box and box count (auto_select.py's
// box_size_to_solvable entries, each a (boxes_a, sk) tuple).
type solvableCandidate struct {
	boxes *grid.Mask
	sk    grid.Pos
}

type boxSizeKey struct {
	Box  grid.Pos
	Size int
}

// AutoSelect drives movestack.Stack toward a solution: it takes a free
// action when one exists, otherwise tries to shrink the generalized box set
// by one box (skipping reductions already known solvable), and falls back to
// deadlock-stack promotion only when no free action remains and no box can
// be dropped.
type AutoSelect struct {
	Stack     *movestack.Stack
	Heuristic movestack.Heuristic
	RNG       *rand.Rand

	// Store, if non-nil, receives every strongly connected component this
	// driver promotes to full, appended as soon as SetDescendants reports it
	// (store.go's "each promoted SCC is appended as one block").
	Store *deadlock.Store

	solvableExact map[string]*grid.Mask // boxes key -> union of keeper components proven solvable from
	boxSizeToSolv map[boxSizeKey][]solvableCandidate
	forbidGener   *int
	steps         int
}

// New builds an AutoSelect driver over stack, seeding the solvability memo
// with the solved configuration: a box on every storage is recorded as
// solvable from each keeper component of the board with the storages
// blocked.
func New(stack *movestack.Stack, heuristic movestack.Heuristic, rng *rand.Rand) *AutoSelect {
	a := &AutoSelect{
		Stack:         stack,
		Heuristic:     heuristic,
		RNG:           rng,
		solvableExact: make(map[string]*grid.Mask),
		boxSizeToSolv: make(map[boxSizeKey][]solvableCandidate),
	}

	available := stack.BaseStates[0].Available
	storages := stack.BaseStates[0].Storages
	cleared := available.AndNot(storages)
	for _, part := range reach.Split(cleared) {
		a.addSolvable(storages, part.Pos, part.Mask)
	}
	return a
}

func boxesKey(positions []grid.Pos) string {
	sorted := append([]grid.Pos(nil), positions...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Row != sorted[j].Row {
			return sorted[i].Row < sorted[j].Row
		}
		return sorted[i].Col < sorted[j].Col
	})
	b := make([]byte, 0, len(sorted)*4)
	for _, p := range sorted {
		b = append(b, byte(p.Row), byte(p.Row>>8), byte(p.Col), byte(p.Col>>8))
	}
	return string(b)
}

// addSolvableExact unions sks into the recorded component set for the exact
// box configuration boxes (auto_select.py's add_solvable_exact).
func (a *AutoSelect) addSolvableExact(boxes []grid.Pos, sks *grid.Mask) {
	key := boxesKey(boxes)
	if existing, ok := a.solvableExact[key]; ok {
		a.solvableExact[key] = existing.Or(sks)
		return
	}
	a.solvableExact[key] = sks
}

func (a *AutoSelect) isSolvableExact(boxes []grid.Pos, sk grid.Pos) bool {
	sks, ok := a.solvableExact[boxesKey(boxes)]
	if !ok {
		return false
	}
	return sks.Get(sk)
}

// addSolvable records boxesMask as solvable from sk (with keeper component
// sks), both as an exact entry and, for every box it contains, as a
// candidate for queries with fewer boxes (every size from 1 up to one less
// than its own box count) (auto_select.py's add_solvable).
func (a *AutoSelect) addSolvable(boxesMask *grid.Mask, sk grid.Pos, sks *grid.Mask) {
	boxes := boxesMask.Positions()
	a.addSolvableExact(boxes, sks)
	for _, box := range boxes {
		for size := 1; size < len(boxes); size++ {
			key := boxSizeKey{Box: box, Size: size}
			a.boxSizeToSolv[key] = append(a.boxSizeToSolv[key], solvableCandidate{boxes: boxesMask, sk: sk})
		}
	}
}

// IsSolvable reports whether state's exact box configuration, or a known
// solvable example with more boxes whose box set contains every one of
// state's boxes, already proves state solvable from its current keeper
// component (auto_select.py's is_solvable).
func (a *AutoSelect) IsSolvable(state *movestack.Stack) bool {
	s := state.State()
	boxes := s.SubBoxes.Positions()
	if len(boxes) == 0 {
		return true
	}
	if a.isSolvableExact(boxes, s.Storekeeper) {
		return true
	}

	var best []solvableCandidate
	haveBest := false
	for _, box := range boxes {
		candidates := a.boxSizeToSolv[boxSizeKey{Box: box, Size: len(boxes)}]
		if !haveBest || len(candidates) < len(best) {
			best = candidates
			haveBest = true
		}
	}

	for _, cand := range best {
		if !s.Storekeepers.Get(cand.sk) {
			continue
		}
		allIn := true
		for _, box := range boxes {
			if !cand.boxes.Get(box) {
				allIn = false
				break
			}
		}
		if allIn {
			a.addSolvableExact(boxes, s.Storekeepers)
			return true
		}
	}
	return false
}

// Step performs one unit of auto-select work: undo a locked position, revert
// or record a solved generalization, take a free action, try dropping a box,
// or escalate to deadlock promotion, in that priority order
// (auto_select.py's step). Returns false once the path has backed off the
// start of the stack with nothing left to try.
func (a *AutoSelect) Step() (bool, error) {
	a.steps++
	st := a.Stack

	if st.IsLocked() {
		if a.forbidGener != nil && *a.forbidGener == st.CurMoveI {
			a.forbidGener = nil
		}
		return st.Undo(), nil
	}

	if a.IsSolvable(st) {
		if st.State().SubBoxes.AndNot(st.BaseState().SubBoxes).Count() > 0 ||
			st.BaseState().SubBoxes.AndNot(st.State().SubBoxes).Count() > 0 {
			if err := st.ChangeSubBoxes(st.BaseState().SubBoxes); err != nil {
				return false, err
			}
			return true, nil
		}

		if a.forbidGener != nil && *a.forbidGener == st.CurMoveI {
			a.forbidGener = nil
		}
		if !st.Undo() {
			return false, nil
		}
		a.addSolvable(st.State().SubBoxes, st.State().Storekeeper, st.State().Storekeepers)
		return true, nil
	}

	actions, locks, free := st.FindActionsLocks()
	if len(free) > 0 {
		action, ok, err := st.ChooseAction(a.Heuristic, free)
		if err != nil {
			return false, err
		}
		if ok {
			st.ApplyAction(action, movestack.AddMoveOptions{AutoGeneralize: true, SearchForLock: false})
			return true, nil
		}
	}

	boxes := st.State().SubBoxes.Positions()
	if len(boxes) > 1 && a.forbidGener == nil {
		perm := a.RNG.Perm(len(boxes))
		sk := st.State().Storekeeper
		for _, i := range perm {
			reduced := make([]grid.Pos, 0, len(boxes)-1)
			reduced = append(reduced, boxes[:i]...)
			reduced = append(reduced, boxes[i+1:]...)
			if a.isSolvableExact(reduced, sk) {
				continue
			}
			boxes2 := st.State().SubBoxes.Clone()
			boxes2.Set(boxes[i], false)
			if err := st.ChangeSubBoxes(boxes2); err != nil {
				return false, err
			}
			return true, nil
		}
	}

	result, err := st.Deadlocks.SetDescendants(st.CurLock(), actions, locks)
	if err != nil {
		return false, err
	}
	if a.Store != nil && len(result.Promoted) > 0 {
		if err := a.Store.AppendBlock(result.Promoted); err != nil {
			return false, err
		}
	}
	if err := st.RecheckDeadlocksOnPath(result); err != nil {
		return false, err
	}
	lock := st.CurLock()
	if lock.StackIndex >= 0 {
		idx := lock.StackIndex
		a.forbidGener = &idx
	}
	return true, nil
}

// GeneralizationIsFree reports whether the current lock (if any) has no
// other on-stack deadlock depending on it, meaning the position could be
// re-generalized without orphaning a conjecture that needs it
// (auto_select.py's generalization_is_free).
func (a *AutoSelect) GeneralizationIsFree() bool {
	st := a.Stack
	if st.IsLocked() {
		return true
	}
	return !st.Deadlocks.HasDependents(st.CurLock())
}

// Steps returns the number of Step calls made so far.
func (a *AutoSelect) Steps() int { return a.steps }

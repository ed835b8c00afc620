// Package movestack implements the move stack and search driver (spec.md
// §4.3): the undo/redo history of a single search path, together with the
// generalization bookkeeping that keeps every history entry tagged with the
// deadlock claim (if any) it currently matches.
//
// Grounded on _examples/original_source/move_stack.py.
package movestack

import (
	"fmt"
	"slices"

	"github.com/vanderheijden86/sokodlex/internal/deadlock"
	"github.com/vanderheijden86/sokodlex/internal/grid"
	"github.com/vanderheijden86/sokodlex/internal/reach"
	"github.com/vanderheijden86/sokodlex/internal/sokostate"
)

// Heuristic scores the legal actions available from state, used by
// ChooseAction to pick among several deadlock-free moves.
type Heuristic func(state *sokostate.State, fwMode bool, actions []deadlock.Action) (deadlock.Action, error)

// Stack is the search path: a sequence of exact positions (BaseStates), the
// generalized claim currently associated with each (GenerStates), and the
// deadlock each generalized state matches (StateLocks). CurMoveI is the
// current position within the (possibly longer, if redo is available)
// history.
type Stack struct {
	FwMode bool

	BaseStates  []*sokostate.State
	GenerStates []*sokostate.State
	StateLocks  []*deadlock.Deadlock
	Moves       []deadlock.Action
	CurMoveI    int

	Deadlocks *deadlock.Stack

	// FirstGeneralization is the shallowest move index at which the
	// generalized state stopped being sub_full, or nil if every state on the
	// path so far is still exact.
	FirstGeneralization *int
}

// New starts a fresh search path at firstState, optionally resuming a
// persisted deadlock store from storePath.
func New(firstState *sokostate.State, storePath string, fwMode bool) (*Stack, error) {
	dlStack := deadlock.NewStack(nil)
	if storePath != "" {
		if err := dlStack.LoadFrom(deadlock.NewStore(storePath), firstState); err != nil {
			return nil, err
		}
	}

	lock := dlStack.Set.FindByState(firstState, nil)
	if lock == nil {
		lock = dlStack.Add(deadlock.FromState(firstState), 0)
	}

	return &Stack{
		FwMode:      fwMode,
		BaseStates:  []*sokostate.State{firstState},
		GenerStates: []*sokostate.State{firstState},
		StateLocks:  []*deadlock.Deadlock{lock},
		Deadlocks:   dlStack,
	}, nil
}

// State is the generalized state at the current position.
func (s *Stack) State() *sokostate.State { return s.GenerStates[s.CurMoveI] }

// BaseState is the exact state at the current position.
func (s *Stack) BaseState() *sokostate.State { return s.BaseStates[s.CurMoveI] }

// CurLock is the deadlock claim currently tagging the state at CurMoveI.
func (s *Stack) CurLock() *deadlock.Deadlock { return s.StateLocks[s.CurMoveI] }

// LastAction is the action that led into the current position.
func (s *Stack) LastAction() deadlock.Action { return s.Moves[s.CurMoveI-1] }

// IsOnStart reports whether the path is at its very first position.
func (s *Stack) IsOnStart() bool { return s.CurMoveI == 0 }

// IsOnEnd reports whether redo history is exhausted.
func (s *Stack) IsOnEnd() bool { return s.CurMoveI == len(s.Moves) }

// IsSolved reports whether the current generalized state is solved.
func (s *Stack) IsSolved() bool { return s.State().IsSolved(nil, nil) }

// IsLocked reports whether the current position is tagged by a deadlock
// claim that is not itself pinned at this exact depth — meaning the
// position is dead (or depends on a still-unresolved conjecture elsewhere).
func (s *Stack) IsLocked() bool { return s.CurLock().StackIndex != s.CurMoveI }

// IsLockedFull reports whether the current position is a fully proven
// deadlock (as opposed to merely being off the top of the stack).
func (s *Stack) IsLockedFull() bool { return s.CurLock().StackIndex < 0 }

// DropRedo discards every position beyond the current one, along with any
// deadlock conjectures that existed only to describe that discarded future.
func (s *Stack) DropRedo() {
	if s.FirstGeneralization != nil && *s.FirstGeneralization > s.CurMoveI {
		s.FirstGeneralization = nil
	}

	var toDiscard []*deadlock.Deadlock
	for i := s.CurMoveI + 1; i < len(s.StateLocks); i++ {
		if s.StateLocks[i].StackIndex == i {
			toDiscard = append(toDiscard, s.StateLocks[i])
		}
	}
	s.Deadlocks.Remove(toDiscard)

	s.BaseStates = s.BaseStates[:s.CurMoveI+1]
	s.GenerStates = s.GenerStates[:s.CurMoveI+1]
	s.StateLocks = s.StateLocks[:s.CurMoveI+1]
	s.Moves = s.Moves[:s.CurMoveI]
}

// Generalize replaces the state at the current position with a
// generalization of it, recomputing (or reusing) the deadlock it matches. If
// check is true, state must actually generalize BaseState.
func (s *Stack) Generalize(state *sokostate.State, check bool) error {
	if check && !s.BaseState().IsGeneralizedBy(state) {
		return fmt.Errorf("movestack: state does not generalize the base state at this position")
	}
	if s.CurMoveI < len(s.Moves) {
		s.DropRedo()
	}

	prevLock := s.StateLocks[len(s.StateLocks)-1]
	s.StateLocks = s.StateLocks[:len(s.StateLocks)-1]
	if prevLock.StackIndex == s.CurMoveI {
		s.Deadlocks.Remove([]*deadlock.Deadlock{prevLock})
		prevLock = nil
	}

	prevState := s.GenerStates[len(s.GenerStates)-1]
	s.GenerStates[len(s.GenerStates)-1] = state

	var lock *deadlock.Deadlock
	switch {
	case prevLock == nil:
		lock = s.Deadlocks.Set.FindByState(state, prevState)
	case prevLock.CheckState(state):
		lock = prevLock
	default:
		lock = s.Deadlocks.Set.FindByState(state, nil)
	}
	if lock == nil {
		lock = s.Deadlocks.Add(deadlock.FromState(s.State()), s.CurMoveI)
	}
	s.StateLocks = append(s.StateLocks, lock)

	if s.FirstGeneralization != nil && *s.FirstGeneralization == s.CurMoveI {
		s.FirstGeneralization = nil
	}
	if s.FirstGeneralization == nil && !state.SubFull {
		i := s.CurMoveI
		s.FirstGeneralization = &i
	}
	return nil
}

// ChangeSubBoxes narrows the current state's known boxes to newSubBoxes,
// keeping the keeper position when still reachable.
func (s *Stack) ChangeSubBoxes(newSubBoxes *grid.Mask) error {
	if newSubBoxes.Equal(s.State().SubBoxes) {
		return nil
	}
	state := s.BaseState().Generalize(newSubBoxes, s.State().SupBoxes, nil)
	sk := s.State().Storekeeper
	if state.Storekeepers.Get(sk) {
		state = state.SetStorekeeper(sk)
	}
	return s.Generalize(state, false)
}

// ChangeSupBoxes widens the current state's possible-box mask to
// newSupBoxes.
func (s *Stack) ChangeSupBoxes(newSupBoxes *grid.Mask) error {
	if newSupBoxes.Equal(s.State().SupBoxes) {
		return nil
	}
	if !s.BaseState().SubFull && !s.BaseState().SupBoxes.Subset(newSupBoxes) {
		return fmt.Errorf("movestack: sup_boxes may only grow past the base state")
	}
	state := s.State().Clone()
	state.SupBoxes = newSupBoxes
	return s.Generalize(state, true)
}

// SetStorekeeper moves the keeper within its current reachable component
// without recording a move.
func (s *Stack) SetStorekeeper(newSk grid.Pos) {
	s.GenerStates[s.CurMoveI] = s.GenerStates[s.CurMoveI].SetStorekeeper(newSk)
}

func (s *Stack) setCurMoveI(i int) bool {
	if i < 0 {
		i = 0
	}
	if i > len(s.Moves) {
		i = len(s.Moves)
	}
	if i == s.CurMoveI {
		return false
	}
	s.CurMoveI = i
	return true
}

// Reset jumps back to the start of the path.
func (s *Stack) Reset() bool { return s.setCurMoveI(0) }

// Undo steps one position back.
func (s *Stack) Undo() bool { return s.setCurMoveI(s.CurMoveI - 1) }

// Redo steps one position forward.
func (s *Stack) Redo() bool { return s.setCurMoveI(s.CurMoveI + 1) }

// RedoMax jumps to the furthest recorded position.
func (s *Stack) RedoMax() bool { return s.setCurMoveI(len(s.Moves)) }

// RevertGeneralizations jumps back to the first generalized (non-exact)
// position, if the current position is at or past it.
func (s *Stack) RevertGeneralizations() {
	if s.FirstGeneralization != nil && *s.FirstGeneralization <= s.CurMoveI {
		s.CurMoveI = *s.FirstGeneralization
	}
}

func (s *Stack) addMove(move deadlock.Action, nextState, nextStateGener *sokostate.State, lock *deadlock.Deadlock) {
	if s.CurMoveI != len(s.Moves) {
		panic("movestack: addMove called with pending redo history")
	}
	if nextStateGener == nil {
		nextStateGener = nextState
	}

	s.Moves = append(s.Moves, move)
	s.CurMoveI++

	s.BaseStates = append(s.BaseStates, nextState)
	s.GenerStates = append(s.GenerStates, nextStateGener)
	if lock == nil {
		lock = s.Deadlocks.Add(deadlock.FromState(nextStateGener), s.CurMoveI)
	}
	s.StateLocks = append(s.StateLocks, lock)
	if s.FirstGeneralization == nil && !nextStateGener.SubFull {
		i := s.CurMoveI
		s.FirstGeneralization = &i
	}
}

func (s *Stack) findNextLock(nextState *sokostate.State) *deadlock.Deadlock {
	oriLock := s.CurLock()
	if oriLock.CheckState(nextState) {
		return oriLock
	}

	var oriState *sokostate.State
	cur := s.State()
	if !cur.MultiComponent {
		if nextState.Storekeepers.Get(cur.Storekeeper) || cur.Storekeepers.Get(nextState.Storekeeper) {
			oriState = cur
		}
	}
	if oriState == nil {
		avail := nextState.Available.AndNot(nextState.SubBoxes).AndNot(cur.SubBoxes)
		skIntersect := reach.Component(avail, nextState.Storekeepers.Positions())
		if cur.Storekeepers.Subset(skIntersect) {
			oriState = cur
		}
	}
	return s.Deadlocks.Set.FindByState(nextState, oriState)
}

// AddMoveOptions controls AddMove's generalization and lock-search behavior.
type AddMoveOptions struct {
	AutoGeneralize bool
	SearchForLock  bool
}

// DefaultAddMoveOptions matches move_stack.py's add_move defaults.
func DefaultAddMoveOptions() AddMoveOptions {
	return AddMoveOptions{AutoGeneralize: true, SearchForLock: true}
}

// AddMove records move as having produced nextState, generalizing it (unless
// opts.AutoGeneralize is false) and tagging it with whatever deadlock claim
// (if any) it matches.
func (s *Stack) AddMove(move deadlock.Action, nextState *sokostate.State, opts AddMoveOptions) {
	if s.CurMoveI < len(s.Moves) {
		s.DropRedo()
	}

	var lock *deadlock.Deadlock
	if opts.SearchForLock {
		lock = s.findNextLock(nextState)
	}

	nextStateGener := nextState
	if opts.AutoGeneralize {
		if lock == nil || lock == s.CurLock() {
			newlyKnown := nextState.SubBoxes.AndNot(s.State().SupBoxes).Count() > 0
			newlyLost := s.State().SubBoxes.AndNot(nextState.SubBoxes).Count() > 0
			if !(newlyKnown && newlyLost) {
				nextStateGener = nextState.Generalize(
					nextState.SubBoxes,
					nextState.SupBoxes.Or(s.State().SupBoxes),
					nil,
				)
			}
		} else {
			nextStateGener = lock.ToSokoState(nextState)
			nextStateGener = nextStateGener.SetStorekeeper(nextState.Storekeeper)
		}
	}

	s.addMove(move, nextState, nextStateGener, lock)
}

// ApplyAction performs a single push (or pull, in backward mode) action from
// the current state.
func (s *Stack) ApplyAction(action deadlock.Action, opts AddMoveOptions) {
	next := s.State().Move(action.Box, action.Dir, s.FwMode)
	s.AddMove(action, next, opts)
}

// FindActionsLocks drops any redo history, then enumerates every legal
// action from the current state alongside the deadlock it leads to (nil for
// actions that are currently known safe).
func (s *Stack) FindActionsLocks() (actions []deadlock.Action, locks []*deadlock.Deadlock, free []deadlock.Action) {
	s.DropRedo()

	mask := s.State().ActionMask(s.FwMode)
	for _, box := range s.State().Available.Positions() {
		for _, d := range grid.Dirs {
			if mask.At(box, d) {
				actions = append(actions, deadlock.Action{Box: box, Dir: d})
			}
		}
	}
	locks = s.Deadlocks.Set.FindForActions(s.State(), actions, s.FwMode)
	for i, dl := range locks {
		if dl == nil {
			free = append(free, actions[i])
		}
	}
	return actions, locks, free
}

// ChooseAction selects one action from actions (or, if actions is nil,
// re-derives the legal actions from the current state, returning nil if the
// position is locked) using heuristic to weight the choice, or the first
// action if heuristic is nil.
func (s *Stack) ChooseAction(heuristic Heuristic, actions []deadlock.Action) (deadlock.Action, bool, error) {
	if actions == nil {
		if s.IsLocked() {
			return deadlock.Action{}, false, nil
		}
		_, _, free := s.FindActionsLocks()
		actions = free
	}
	if len(actions) == 0 {
		return deadlock.Action{}, false, nil
	}
	if heuristic == nil {
		return actions[0], true, nil
	}
	action, err := heuristic(s.State(), s.FwMode, actions)
	if err != nil {
		return deadlock.Action{}, false, err
	}
	return action, true, nil
}

// SearchStep performs one unit of DFS search: it undoes while the current
// position is locked, declares failure if it backs all the way to minMove,
// succeeds (returning false) if the current state is already solved,
// applies a free action if one exists, and otherwise promotes the current
// deadlock conjecture by recording its descendants (spec.md §4.3).
func (s *Stack) SearchStep(heuristic Heuristic, minMove int, autoGeneralize bool) (bool, error) {
	for {
		for s.IsLocked() {
			if s.CurMoveI == minMove {
				return false, nil
			}
			s.Undo()
		}

		if s.IsSolved() {
			return false, nil
		}

		actions, locks, free := s.FindActionsLocks()

		if len(free) > 0 {
			action, ok, err := s.ChooseAction(heuristic, free)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, fmt.Errorf("movestack: expected a free action to be available")
			}
			s.ApplyAction(action, AddMoveOptions{AutoGeneralize: autoGeneralize, SearchForLock: false})
			return true, nil
		}

		result, err := s.Deadlocks.SetDescendants(s.CurLock(), actions, locks)
		if err != nil {
			return false, err
		}
		if err := s.recheckDeadlocksOnPath(result); err != nil {
			return false, err
		}
	}
}

// RecheckDeadlocksOnPath re-tags the undo history after result from a
// DeadlockStack.SetDescendants call, exported so drivers other than
// SearchStep (e.g. the auto-select driver, which calls set_descendants
// directly) can invoke the same re-check pass.
func (s *Stack) RecheckDeadlocksOnPath(result deadlock.SetDescendantsResult) error {
	return s.recheckDeadlocksOnPath(result)
}

// recheckDeadlocksOnPath walks the undo history backwards after a deadlock
// promotion, re-tagging any position the new (or revised) deadlocks now
// describe. It never skips a position whose generalized state exactly
// matches a candidate deadlock, even where the original's viability
// shortcut would have: an exact match is always re-checked, because
// correctness of the stored lock matters more than the cost of one extra
// CheckState call (spec.md §8, Open Question on search-path pruning).
func (s *Stack) recheckDeadlocksOnPath(result deadlock.SetDescendantsResult) error {
	var nboxUnion []grid.Pos
	for _, dl := range result.Promoted {
		nboxUnion = append(nboxUnion, dl.NotBoxes...)
	}
	supIntersection := s.State().Available.Clone()
	for _, p := range nboxUnion {
		supIntersection.Set(p, false)
	}

	toCheck := append([]*deadlock.Deadlock(nil), result.PathOrder...)
	var toDiscard []*deadlock.Deadlock
	curViable := false

	for i := s.CurMoveI - 1; i >= 0; i-- {
		if dropNum, ok := result.SizeOfIndex[i]; ok && dropNum > 0 {
			if dropNum > len(toCheck) {
				dropNum = len(toCheck)
			}
			toCheck = toCheck[:len(toCheck)-dropNum]
			if len(toCheck) == 0 {
				return nil
			}
		}

		state := s.GenerStates[i+1]
		base := s.BaseStates[i+1]

		subShrunk := base.SubBoxes.AndNot(state.SubBoxes).Count() > 0
		supGrew := false
		if !state.SubFull {
			supGrew = state.SupBoxes.AndNot(base.SupBoxes).And(supIntersection).Count() > 0
		}
		curViable = curViable || subShrunk || supGrew

		if s.StateLocks[i].StackIndex < 0 {
			continue
		}

		var candidates []*deadlock.Deadlock
		if s.StateLocks[i].StackIndex != i {
			candidates = result.Promoted
		} else {
			candidates = toCheck
		}
		if !curViable {
			exact := deadlock.FromState(s.GenerStates[i])
			if !slices.ContainsFunc(candidates, func(dl *deadlock.Deadlock) bool {
				return slices.Equal(dl.Boxes, exact.Boxes) && slices.Equal(dl.NotBoxes, exact.NotBoxes)
			}) {
				continue
			}
		}

		var found *deadlock.Deadlock
		for _, dl := range candidates {
			if dl.CheckState(s.GenerStates[i]) {
				found = dl
				break
			}
		}
		if found != nil {
			oriLock := s.StateLocks[i]
			if oriLock.StackIndex == i {
				toDiscard = append(toDiscard, oriLock)
			}
			s.StateLocks[i] = found
		} else {
			curViable = false
		}
	}

	s.Deadlocks.Remove(toDiscard)
	return nil
}

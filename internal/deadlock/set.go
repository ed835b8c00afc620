package deadlock

import (
	"sort"

	"github.com/vanderheijden86/sokodlex/internal/grid"
	"github.com/vanderheijden86/sokodlex/internal/sokostate"
)

// sizeKey identifies a box/not-box index bucket by (position, tuple size).
type sizeKey struct {
	Pos  grid.Pos
	Size int
}

// Set indexes deadlocks by the boxes and not_boxes they name, so that given
// a partial state update only the plausibly-affected deadlocks are scanned
// instead of the whole store (deadlocks.py's DeadlockSet).
type Set struct {
	boxDL *digraph[int, *Deadlock] // size-bucket node -> deadlocks it could affect

	boxesToDeadlock map[string][]*Deadlock
	boxToNode       map[sizeKey]int
	nboxToNode      map[sizeKey]int
	lastNode        int
}

// NewSet creates an empty deadlock index.
func NewSet() *Set {
	return &Set{
		boxDL:           newDigraph[int, *Deadlock](),
		boxesToDeadlock: make(map[string][]*Deadlock),
		boxToNode:       make(map[sizeKey]int),
		nboxToNode:      make(map[sizeKey]int),
		lastNode:        -1,
	}
}

func (s *Set) getNode(index map[sizeKey]int, box grid.Pos, size int) int {
	key := sizeKey{box, size}
	if node, ok := index[key]; ok {
		return node
	}
	s.lastNode++
	index[key] = s.lastNode
	s.boxDL.addNodeA(s.lastNode)
	return s.lastNode
}

// Add registers deadlock in the index.
func (s *Set) Add(deadlock *Deadlock) *Deadlock {
	s.boxDL.addNodeB(deadlock)
	key := boxesKey(deadlock.Boxes)
	s.boxesToDeadlock[key] = append(s.boxesToDeadlock[key], deadlock)
	size := len(deadlock.Boxes)
	for _, box := range deadlock.Boxes {
		node := s.getNode(s.boxToNode, box, size)
		s.boxDL.addEdge(node, deadlock)
	}
	for _, nbox := range deadlock.NotBoxes {
		node := s.getNode(s.nboxToNode, nbox, size)
		s.boxDL.addEdge(node, deadlock)
	}
	return deadlock
}

// All returns every deadlock currently indexed, in no particular order, for
// diagnostics and export snapshotting.
func (s *Set) All() []*Deadlock {
	var out []*Deadlock
	for _, list := range s.boxesToDeadlock {
		out = append(out, list...)
	}
	return out
}

// Remove drops deadlock from the index.
func (s *Set) Remove(deadlock *Deadlock) {
	key := boxesKey(deadlock.Boxes)
	list := s.boxesToDeadlock[key]
	for i, dl := range list {
		if dl == deadlock {
			s.boxesToDeadlock[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	s.boxDL.removeNodeB(deadlock)
}

func toSet(positions []grid.Pos) map[grid.Pos]struct{} {
	out := make(map[grid.Pos]struct{}, len(positions))
	for _, p := range positions {
		out[p] = struct{}{}
	}
	return out
}

func binom(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	result := 1
	for i := 0; i < min(k, n-k); i++ {
		result *= n - i
		result /= i + 1
	}
	return result
}

// Find yields every deadlock still consistent with a state update: newBoxes
// are positions newly known occupied, newNBoxes are positions newly proven
// unoccupied, oriBoxes/oriNBoxes are the state's previous such sets, and
// storekeeper is the keeper's position after the update
// (deadlocks.py's find).
func (s *Set) Find(newBoxes, newNBoxes, oriBoxes, oriNBoxes []grid.Pos, storekeeper grid.Pos) []*Deadlock {
	sizeToNodes := make(map[int][]int)
	seenIndex := func(idx map[sizeKey]int, pos grid.Pos) {
		for key, node := range idx {
			if key.Pos == pos {
				sizeToNodes[key.Size] = append(sizeToNodes[key.Size], node)
			}
		}
	}
	for _, box := range newBoxes {
		seenIndex(s.boxToNode, box)
	}
	for _, nbox := range newNBoxes {
		seenIndex(s.nboxToNode, nbox)
	}
	if len(sizeToNodes) == 0 {
		return nil
	}

	boxesSet := toSet(oriBoxes)
	for _, box := range newBoxes {
		boxesSet[box] = struct{}{}
	}
	for _, nbox := range newNBoxes {
		delete(boxesSet, nbox)
	}
	boxesSorted := make([]grid.Pos, 0, len(boxesSet))
	for p := range boxesSet {
		boxesSorted = append(boxesSorted, p)
	}
	boxesSorted = sortedPositions(boxesSorted)
	maxSize := len(boxesSorted)

	var sizes []int
	for size := range sizeToNodes {
		if size <= maxSize {
			sizes = append(sizes, size)
		}
	}
	sort.Ints(sizes)

	var nboxesSet map[grid.Pos]struct{}
	if oriNBoxes != nil {
		nboxesSet = toSet(oriNBoxes)
		for _, nbox := range newNBoxes {
			nboxesSet[nbox] = struct{}{}
		}
		for _, box := range newBoxes {
			delete(nboxesSet, box)
		}
	}

	var out []*Deadlock
	seen := make(map[*Deadlock]struct{})
	emit := func(dl *Deadlock) {
		if _, ok := seen[dl]; ok {
			return
		}
		seen[dl] = struct{}{}
		out = append(out, dl)
	}

	for _, size := range sizes {
		boxNodes := sizeToNodes[size]
		totalCandidates := 0
		for _, node := range boxNodes {
			totalCandidates += len(s.boxDL.neighborsOfA(node))
		}
		if totalCandidates < size*binom(maxSize, size) {
			candidates := make(map[*Deadlock]struct{})
			for _, node := range boxNodes {
				for dl := range s.boxDL.neighborsOfA(node) {
					candidates[dl] = struct{}{}
				}
			}
			for dl := range candidates {
				if dl.CheckSets(boxesSet, nboxesSet, storekeeper) {
					emit(dl)
				}
			}
		} else {
			for _, combo := range combinations(boxesSorted, size) {
				for _, dl := range s.boxesToDeadlock[boxesKey(combo)] {
					if dl.SkComponent.Get(storekeeper) && dl.NBoxesCheckSets(boxesSet, nboxesSet) {
						emit(dl)
					}
				}
			}
		}
	}
	return out
}

// FindOne returns the first deadlock Find would yield that also satisfies
// condition (or the first one at all, if condition is nil), or nil.
func (s *Set) FindOne(newBoxes, newNBoxes, oriBoxes, oriNBoxes []grid.Pos, storekeeper grid.Pos, condition func(*Deadlock) bool) *Deadlock {
	for _, dl := range s.Find(newBoxes, newNBoxes, oriBoxes, oriNBoxes, storekeeper) {
		if condition == nil || condition(dl) {
			return dl
		}
	}
	return nil
}

// FindByState looks up a deadlock matching state, given the state it was
// generalized from (oriState == nil means "nothing is known yet": every
// available cell starts as an unproven non-box).
func (s *Set) FindByState(state, oriState *sokostate.State) *Deadlock {
	subBoxes := state.SubBoxes
	supBoxes := subBoxes
	if !state.SubFull {
		supBoxes = state.SupBoxes
	}

	var oriSubBoxes, oriSupBoxes *grid.Mask
	if oriState == nil {
		oriSubBoxes = grid.NewMask(state.Available.Height, state.Available.Width)
		oriSupBoxes = state.Available
	} else {
		oriSubBoxes = oriState.SubBoxes
		oriSupBoxes = oriSubBoxes
		if !oriState.SubFull {
			oriSupBoxes = oriState.SupBoxes
		}
	}

	oriBoxes := subBoxes.Positions()
	oriNBoxes := supBoxes.Not().And(state.Available).Positions()
	newBoxes := subBoxes.AndNot(oriSubBoxes).Positions()
	newNBoxes := supBoxes.Not().And(oriSupBoxes).Positions()

	storekeeper := state.Storekeeper
	var condition func(*Deadlock) bool
	if state.MultiComponent {
		condition = func(dl *Deadlock) bool { return state.Storekeepers.Subset(dl.SkComponent) }
	}

	return s.FindOne(newBoxes, newNBoxes, oriBoxes, oriNBoxes, storekeeper, condition)
}

// BoxMove names a single box relocation used by FindForBoxMoves: the box
// moves from src to dest, and the keeper ends up approaching dest from skDir.
type BoxMove struct {
	Src, Dest grid.Pos
	SkDir     grid.Dir
}

// FindForBoxMoves looks up, for each candidate box move from state, the
// deadlock (if any) that the resulting position would match.
func (s *Set) FindForBoxMoves(state *sokostate.State, boxMoves []BoxMove) []*Deadlock {
	out := make([]*Deadlock, len(boxMoves))

	if state.MultiComponent {
		for i, mv := range boxMoves {
			subBoxes := state.SubBoxes.Clone()
			supBoxes := state.SupBoxes.Clone()
			subBoxes.Set(mv.Src, false)
			supBoxes.Set(mv.Src, false)
			subBoxes.Set(mv.Dest, true)
			supBoxes.Set(mv.Dest, true)
			subFull := state.SubFull
			state2 := sokostate.New(state.Available, subBoxes, supBoxes, state.Storages, mv.SkDir.Shift(mv.Dest), sokostate.Params{
				SubFull:         &subFull,
				StorekeeperGoal: state.StorekeeperGoal,
			})
			out[i] = s.FindByState(state2, nil)
		}
		return out
	}

	oriBoxes := state.SubBoxes.Positions()
	var oriNBoxes []grid.Pos
	if !state.SubFull {
		oriNBoxes = state.Available.AndNot(state.SupBoxes).Positions()
	}
	for i, mv := range boxMoves {
		storekeeper := mv.SkDir.Shift(mv.Dest)
		out[i] = s.FindOne([]grid.Pos{mv.Dest}, []grid.Pos{mv.Src}, oriBoxes, oriNBoxes, storekeeper, nil)
	}
	return out
}

// FindForActions is FindForBoxMoves expressed in terms of raw push/pull
// actions rather than precomputed BoxMoves (deadlocks.py's
// find_for_actions).
func (s *Set) FindForActions(state *sokostate.State, actions []Action, fwMode bool) []*Deadlock {
	boxMoves := make([]BoxMove, len(actions))
	for i, a := range actions {
		dest := a.Dir.Shift(a.Box)
		skDir := a.Dir
		if fwMode {
			skDir = a.Dir.Op()
		}
		boxMoves[i] = BoxMove{Src: a.Box, Dest: dest, SkDir: skDir}
	}
	return s.FindForBoxMoves(state, boxMoves)
}

func combinations(items []grid.Pos, k int) [][]grid.Pos {
	var out [][]grid.Pos
	n := len(items)
	if k > n {
		return out
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		combo := make([]grid.Pos, k)
		for i, j := range idx {
			combo[i] = items[j]
		}
		out = append(out, combo)

		i := k - 1
		for i >= 0 && idx[i] == i+n-k {
			i--
		}
		if i < 0 {
			break
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
	return out
}

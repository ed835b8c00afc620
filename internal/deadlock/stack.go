package deadlock

import (
	"fmt"
	"sort"

	"github.com/vanderheijden86/sokodlex/internal/sokostate"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Stack owns the conjecture stack and the set index it feeds: every
// deadlock lives in Set, but only Stack can promote one off the stack into a
// fully proven, stack-independent deadlock (deadlocks.py's DeadlockStack).
type Stack struct {
	Set *Set

	dependencies  *digraph[*Deadlock, *Deadlock]
	lastFullIndex int
	replay        *ReplayLog
}

// NewStack creates an empty conjecture stack backed by set (a fresh Set if
// nil).
func NewStack(set *Set) *Stack {
	if set == nil {
		set = NewSet()
	}
	return &Stack{
		Set:           set,
		dependencies:  newDigraph[*Deadlock, *Deadlock](),
		lastFullIndex: -1,
	}
}

// SetReplayLog attaches a debug replay log; when non-nil, every mutating
// call appends a record, and a panic recovered inside SetDescendants flushes
// the log to aid postmortem debugging (deadlocks.py writes bug.log the same
// way, on the same trigger).
func (st *Stack) SetReplayLog(log *ReplayLog) { st.replay = log }

// Add pushes deadlock onto the stack at stackIndex (the search-path depth it
// was conjectured at).
func (st *Stack) Add(deadlock *Deadlock, stackIndex int) *Deadlock {
	if stackIndex < 0 {
		panic("deadlock: stack index must be non-negative")
	}
	deadlock.StackIndex = stackIndex
	st.Set.Add(deadlock)
	st.dependencies.addNodeB(deadlock)
	if st.replay != nil {
		st.replay.Add(deadlock, stackIndex)
	}
	return deadlock
}

// Remove discards deadlocks and every deadlock transitively depending on
// them (deadlocks.py's remove).
func (st *Stack) Remove(deadlocks []*Deadlock) {
	if st.replay != nil {
		st.replay.Remove(deadlocks)
	}
	dependent := closureGeneric(deadlocks, func(dl *Deadlock) []*Deadlock {
		var out []*Deadlock
		for a := range st.dependencies.neighborsOfB(dl) {
			out = append(out, a)
		}
		return out
	})
	for dl := range dependent {
		st.Set.Remove(dl)
		st.dependencies.removeNodeB(dl)
		if dl.Descendants != nil {
			st.dependencies.removeNodeA(dl)
		}
	}
}

// HasDependents reports whether any on-stack deadlock currently depends on
// deadlock (i.e. deadlock has at least one B-side in-edge), used by the
// auto-select driver to decide whether re-generalizing away from deadlock
// would orphan a conjecture (deadlocks.py's dependencies.neighbors_B
// truthiness check in AutoSelect.generalization_is_free).
func (st *Stack) HasDependents(deadlock *Deadlock) bool {
	return len(st.dependencies.neighborsOfB(deadlock)) > 0
}

func (st *Stack) makeFull(deadlock *Deadlock) {
	if deadlock.FullIndex != nil {
		panic("deadlock: already full")
	}
	deadlock.StackIndex = -1
	st.dependencies.removeNodeA(deadlock)
	st.dependencies.removeNodeB(deadlock)
	st.lastFullIndex++
	idx := st.lastFullIndex
	deadlock.FullIndex = &idx
}

// SetDescendantsResult reports what SetDescendants changed: Promoted is the
// set of deadlocks newly proven full (a closed strongly connected
// component), PathOrder lists Promoted followed by every deadlock whose
// stack_index was revised, in the order they should be rechecked along the
// search path, and SizeOfIndex maps a stack index to how many deadlocks were
// reassigned to it.
type SetDescendantsResult struct {
	Promoted     []*Deadlock
	PathOrder    []*Deadlock
	SizeOfIndex  map[int]int
}

// SetDescendants records, for deadlock, the descendant deadlock reached by
// applying each of pushes, then propagates any resulting stack_index
// decrease backwards through the dependency graph, promoting to full any
// deadlock whose dependencies can no longer reach a shallower stack entry
// (deadlocks.py's set_descendants — the SCC-promotion step described in
// spec.md §4.2).
func (st *Stack) SetDescendants(deadlock *Deadlock, pushes []Action, descendants []*Deadlock) (result SetDescendantsResult, err error) {
	if st.replay != nil {
		st.replay.SetDescendants(deadlock, pushes, descendants)
	}
	defer func() {
		if r := recover(); r != nil {
			if st.replay != nil {
				st.replay.Flush()
			}
			err = fmt.Errorf("deadlock: set_descendants failed: %v", r)
		}
	}()

	if deadlock.Descendants != nil {
		panic("descendants already set")
	}
	if len(pushes) != len(descendants) {
		panic("pushes/descendants length mismatch")
	}
	deadlock.Descendants = make(map[Action]*Deadlock, len(pushes))
	for i, push := range pushes {
		deadlock.Descendants[push] = descendants[i]
	}

	st.dependencies.addNodeA(deadlock)
	for _, descendant := range descendants {
		if descendant.StackIndex >= 0 {
			st.dependencies.addEdge(deadlock, descendant)
		}
	}

	toCheck := closureGeneric([]*Deadlock{deadlock}, func(dl *Deadlock) []*Deadlock {
		var out []*Deadlock
		for a := range st.dependencies.neighborsOfB(dl) {
			out = append(out, a)
		}
		return out
	})
	oriStackIndex := deadlock.StackIndex
	for dl := range toCheck {
		if dl.StackIndex != oriStackIndex {
			panic("inconsistent stack index among dependents")
		}
	}

	newStackIndices := make(map[int][]*Deadlock)
	for dl := range toCheck {
		newStackIndex := -1
		for desc := range st.dependencies.neighborsOfA(dl) {
			if desc.StackIndex != oriStackIndex && desc.StackIndex > newStackIndex {
				newStackIndex = desc.StackIndex
			}
		}
		if newStackIndex >= 0 {
			if newStackIndex >= oriStackIndex {
				panic("new stack index must be shallower than the original")
			}
			newStackIndices[newStackIndex] = append(newStackIndices[newStackIndex], dl)
		}
	}

	var orderedLevels []int
	for i := range newStackIndices {
		orderedLevels = append(orderedLevels, i)
	}
	sort.Ints(orderedLevels)

	type stackItem struct {
		dl  *Deadlock
		idx int
	}
	var dfsStack []stackItem
	for _, level := range orderedLevels {
		for _, dl := range newStackIndices[level] {
			dfsStack = append(dfsStack, stackItem{dl, level})
		}
	}

	var toCheckL []*Deadlock
	sizeOfIndex := make(map[int]int)
	for len(dfsStack) > 0 {
		it := dfsStack[len(dfsStack)-1]
		dfsStack = dfsStack[:len(dfsStack)-1]
		if _, ok := toCheck[it.dl]; !ok {
			continue
		}
		toCheckL = append(toCheckL, it.dl)
		sizeOfIndex[it.idx]++
		delete(toCheck, it.dl)
		it.dl.StackIndex = it.idx
		for dl2 := range st.dependencies.neighborsOfB(it.dl) {
			dfsStack = append(dfsStack, stackItem{dl2, it.idx})
		}
	}

	var scc []*Deadlock
	for dl := range toCheck {
		scc = append(scc, dl)
	}
	if len(scc) > 0 {
		for _, dl := range scc {
			st.makeFull(dl)
		}
	}

	for i, j := 0, len(toCheckL)-1; i < j; i, j = i+1, j-1 {
		toCheckL[i], toCheckL[j] = toCheckL[j], toCheckL[i]
	}

	pathOrder := append(append([]*Deadlock(nil), scc...), toCheckL...)
	result = SetDescendantsResult{Promoted: scc, PathOrder: pathOrder, SizeOfIndex: sizeOfIndex}
	return result, nil
}

// LoadFrom populates Set (and advances lastFullIndex) from every deadlock
// persisted in store, without touching the dependency graph: persisted
// deadlocks are always already full and independent of the stack
// (deadlocks.py's DeadlockStack.__init__ file-loading branch).
func (st *Stack) LoadFrom(store *Store, baseState *sokostate.State) error {
	blocks, err := store.Load(baseState)
	if err != nil {
		return err
	}
	for _, block := range blocks {
		for _, dl := range block {
			st.Set.Add(dl)
			if dl.FullIndex != nil && *dl.FullIndex > st.lastFullIndex {
				st.lastFullIndex = *dl.FullIndex
			}
		}
	}
	return nil
}

// CheckCorrect verifies the dependency-graph invariant that every deadlock
// with known descendants has a stack_index equal to the maximum stack_index
// among those descendants (or -1 if none), for test/debug use
// (deadlocks.py's check_correct).
func (st *Stack) CheckCorrect() error {
	for dl := range st.dependencies.neighborsA {
		want := -1
		for desc := range st.dependencies.neighborsOfA(dl) {
			if desc.StackIndex > want {
				want = desc.StackIndex
			}
		}
		if dl.StackIndex != want {
			return fmt.Errorf("deadlock: stack index invariant violated for a deadlock (got %d, want %d)", dl.StackIndex, want)
		}
	}
	return nil
}

// CycleReport summarizes the strongly connected components of the
// dependency graph restricted to deadlocks still on the stack — used as an
// internal-consistency diagnostic: a nontrivial SCC here that SetDescendants
// has not yet promoted indicates a bug, since promotion is supposed to
// collapse every such cycle into a full deadlock.
type CycleReport struct {
	NonTrivialSCCs [][]*Deadlock
}

// DetectNonTrivialSCCs runs Tarjan's algorithm (gonum's topo.TarjanSCC, the
// same diagnostic the teacher's dependency-graph analyzer uses) over the
// current on-stack dependency graph and reports any strongly connected
// component larger than one node.
func (st *Stack) DetectNonTrivialSCCs() CycleReport {
	g := simple.NewDirectedGraph()
	nodeOf := make(map[*Deadlock]int64)
	dlOf := make(map[int64]*Deadlock)
	nextID := func(dl *Deadlock) int64 {
		if id, ok := nodeOf[dl]; ok {
			return id
		}
		n := g.NewNode()
		g.AddNode(n)
		nodeOf[dl] = n.ID()
		dlOf[n.ID()] = dl
		return n.ID()
	}
	for a := range st.dependencies.neighborsA {
		u := nextID(a)
		for b := range st.dependencies.neighborsOfA(a) {
			v := nextID(b)
			g.SetEdge(g.NewEdge(simple.Node(u), simple.Node(v)))
		}
	}

	var report CycleReport
	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) <= 1 {
			continue
		}
		group := make([]*Deadlock, len(scc))
		for i, n := range scc {
			group[i] = dlOf[n.ID()]
		}
		report.NonTrivialSCCs = append(report.NonTrivialSCCs, group)
	}
	return report
}

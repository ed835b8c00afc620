// Package heuristic scores candidate push/pull actions by how directly they
// move a box toward some storage cell, and samples among several
// similarly-scored actions using a seeded categorical distribution so the
// search driver's choices are reproducible across runs.
//
// Grounded on _examples/original_source/heuristic.py.
package heuristic

import (
	"math"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/vanderheijden86/sokodlex/internal/deadlock"
	"github.com/vanderheijden86/sokodlex/internal/grid"
	"github.com/vanderheijden86/sokodlex/internal/reach"
	"github.com/vanderheijden86/sokodlex/internal/sokostate"
)

// ScoreToStorage scores every (box, direction) action from state by whether
// it plausibly makes progress toward some storage cell: 2 if the action
// lies on a path to a storage (either directly, because the box's own
// reachable destinations include a storage reached by first pushing in that
// direction, or because the jump map's reverse search from the storages
// reaches this box's position by the mirrored direction), 0 otherwise
// (heuristic.py's heurictic_to_storage).
func ScoreToStorage(state *sokostate.State, fwMode bool, storages *grid.Mask) map[deadlock.Action]int {
	if storages == nil {
		storages = state.Storages
	}
	curAvail := state.Available.AndNot(state.SubBoxes)
	jumpMap := reach.CreateJumpMap(curAvail)

	var storagesStart []struct {
		Pos grid.Pos
		Dir grid.Dir
	}
	for _, stor := range storages.AndNot(state.SubBoxes).Positions() {
		for _, d := range grid.Dirs {
			var sk grid.Pos
			if fwMode {
				sk = d.Shift(stor)
			} else {
				sk = d.Op().Shift(stor)
			}
			if state.Storekeepers.Get(sk) {
				storagesStart = append(storagesStart, struct {
					Pos grid.Pos
					Dir grid.Dir
				}{stor, d})
			}
		}
	}

	res := make(map[deadlock.Action]int)

	if storagesJumps, ok := reach.FindBoxJumps(jumpMap, curAvail, storagesStart, !fwMode); ok {
		for pos, reached := range storagesJumps.Reached {
			for _, d := range grid.Dirs {
				if reached[d.Op()] {
					res[deadlock.Action{Box: pos, Dir: d}] = 2
				}
			}
		}
	}

	boxJumps := reach.FindAllBoxJumps(curAvail, state.SubBoxes, state.Storekeepers, fwMode, jumpMap)
	for box, jumps := range boxJumps {
		for _, d := range grid.Dirs {
			delete(res, deadlock.Action{Box: box, Dir: d})
		}
		if storages.Get(box) {
			continue
		}
		good := make(map[grid.Dir]bool)
		for dest, reached := range jumps.Reached {
			if !storages.Get(dest) {
				continue
			}
			for _, approach := range grid.Dirs {
				if !reached[approach] {
					continue
				}
				if fd, ok := jumps.FirstDirAt(dest, approach); ok {
					// fd is the keeper side of the first push; a push
					// moves the box away from it, a pull toward it.
					if fwMode {
						fd = fd.Op()
					}
					good[fd] = true
				}
			}
		}
		for d := range good {
			res[deadlock.Action{Box: box, Dir: d}] = 2
		}
	}

	return res
}

// ChooseAction samples among actions, weighting each by exp(score) so
// higher-scoring actions are more likely but nothing is ever ruled out
// entirely, using rng for reproducibility (heuristic.py's np_softmax +
// np_random_categ, called from MoveStack.choose_action).
func ChooseAction(state *sokostate.State, fwMode bool, actions []deadlock.Action, rng *rand.Rand) (deadlock.Action, error) {
	if len(actions) == 0 {
		return deadlock.Action{}, nil
	}
	scores := ScoreToStorage(state, fwMode, nil)
	logits := make([]float64, len(actions))
	maxLogit := math.Inf(-1)
	for i, a := range actions {
		logits[i] = float64(scores[a])
		if logits[i] > maxLogit {
			maxLogit = logits[i]
		}
	}
	weights := make([]float64, len(actions))
	sum := 0.0
	for i, l := range logits {
		weights[i] = math.Exp(l - maxLogit)
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}

	dist := distuv.NewCategorical(weights, rng)
	idx := int(dist.Rand())
	if idx < 0 || idx >= len(actions) {
		idx = len(actions) - 1
	}
	return actions[idx], nil
}

// Package reach implements the reachability kernel: connected-component
// flood fill, shortest keeper path, and the wall-following jump map used to
// enumerate reachable box pushes/pulls without expanding every keeper cell.
//
// Grounded on _examples/original_source/component2d.py.
package reach

import "github.com/vanderheijden86/sokodlex/internal/grid"

// Component computes the 4-connected flood fill of available starting from
// starts (spec.md §4.1 `component`). BFS order, ties broken by insertion
// order of starts then of grid.Dirs, matching the original's deque-based
// traversal.
func Component(available *grid.Mask, starts []grid.Pos) *grid.Mask {
	out := grid.NewMask(available.Height, available.Width)
	queue := append([]grid.Pos(nil), starts...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if out.Get(p) || !available.Get(p) {
			continue
		}
		out.Set(p, true)
		for _, d := range grid.Dirs {
			queue = append(queue, d.Shift(p))
		}
	}
	return out
}

// ComponentDist floods available from starts like Component, but returns the
// BFS distance from the nearest start for each reached cell; unreached cells
// are absent from the map.
func ComponentDist(available *grid.Mask, starts []grid.Pos) map[grid.Pos]int {
	dist := make(map[grid.Pos]int)
	type item struct {
		pos grid.Pos
		d   int
	}
	queue := make([]item, 0, len(starts))
	for _, s := range starts {
		queue = append(queue, item{s, 0})
	}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if _, seen := dist[it.pos]; seen || !available.Get(it.pos) {
			continue
		}
		dist[it.pos] = it.d
		for _, d := range grid.Dirs {
			queue = append(queue, item{d.Shift(it.pos), it.d + 1})
		}
	}
	return dist
}

// Split decomposes component into its maximal connected subcomponents, each
// paired with a representative position, in the order encountered by
// repeatedly flood-filling from the first remaining true cell (row-major).
func Split(component *grid.Mask) []struct {
	Pos  grid.Pos
	Mask *grid.Mask
} {
	var out []struct {
		Pos  grid.Pos
		Mask *grid.Mask
	}
	remaining := component.Clone()
	for remaining.Count() > 0 {
		positions := remaining.Positions()
		p := positions[0]
		sub := Component(remaining, []grid.Pos{p})
		out = append(out, struct {
			Pos  grid.Pos
			Mask *grid.Mask
		}{p, sub})
		remaining = remaining.AndNot(sub)
	}
	return out
}

// FindPath returns the shortest 4-connected keeper path from start to end as
// an ordered sequence of directions, or ok=false if end is unreachable.
func FindPath(available *grid.Mask, start, end grid.Pos) ([]grid.Dir, bool) {
	if start == end {
		return nil, true
	}
	type node struct {
		pos  grid.Pos
		from grid.Pos
		dir  grid.Dir
		has  bool
	}
	visited := map[grid.Pos]node{start: {start, grid.Pos{}, 0, false}}
	queue := []grid.Pos{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if p == end {
			break
		}
		for _, d := range grid.Dirs {
			n := d.Shift(p)
			if !available.Get(n) {
				continue
			}
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = node{n, p, d, true}
			queue = append(queue, n)
		}
	}
	cur, ok := visited[end]
	if !ok {
		return nil, false
	}
	var rev []grid.Dir
	for cur.has {
		rev = append(rev, cur.dir)
		cur = visited[cur.from]
	}
	out := make([]grid.Dir, len(rev))
	for i, d := range rev {
		out[len(rev)-1-i] = d
	}
	return out, true
}

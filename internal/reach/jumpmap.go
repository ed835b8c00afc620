package reach

import "github.com/vanderheijden86/sokodlex/internal/grid"

// JumpMap encodes, for every non-wall cell and every direction, the next
// direction obtained by following the available region with the wall on the
// left (spec.md §4.1). turn[p][d] == -1 means "not yet computed" — only
// reachable during incremental maintenance; CreateJumpMap always leaves it
// fully populated for every available cell.
type JumpMap struct {
	height, width int
	turn          map[grid.Pos]*[4]int
}

func newJumpMap(h, w int) *JumpMap {
	return &JumpMap{height: h, width: w, turn: make(map[grid.Pos]*[4]int)}
}

func (jm *JumpMap) entry(p grid.Pos) *[4]int {
	e, ok := jm.turn[p]
	if !ok {
		e = &[4]int{-1, -1, -1, -1}
		jm.turn[p] = e
	}
	return e
}

// Next returns the wall-following next direction recorded at (p, d), or
// ok=false if unset.
func (jm *JumpMap) Next(p grid.Pos, d grid.Dir) (grid.Dir, bool) {
	e, ok := jm.turn[p]
	if !ok || e[d] < 0 {
		return 0, false
	}
	return grid.Dir(e[d]), true
}

// followLWall walks the available region keeping the wall on the keeper's
// left starting at (startPos, startD), yielding each (pos, dir) visited
// until the cycle returns to its start.
func followLWall(available *grid.Mask, startPos grid.Pos, startD grid.Dir) []struct {
	Pos grid.Pos
	Dir grid.Dir
} {
	var out []struct {
		Pos grid.Pos
		Dir grid.Dir
	}
	pos, d := startPos, startD
	for {
		out = append(out, struct {
			Pos grid.Pos
			Dir grid.Dir
		}{pos, d})
		posN := d.Shift(pos)
		if !available.Get(posN) {
			d = d.TurnRight()
		} else {
			pos = posN
			d = d.TurnLeft()
		}
		if pos == startPos && d == startD {
			break
		}
	}
	return out
}

func updateJumps(jm *JumpMap, seq []struct {
	Pos grid.Pos
	Dir grid.Dir
}) {
	visited := make(map[grid.Pos][]grid.Dir)
	for _, s := range seq {
		visited[s.Pos] = append(visited[s.Pos], s.Dir)
	}
	for pos, ds := range visited {
		e := jm.entry(pos)
		for i, a := range ds {
			b := ds[(i+1)%len(ds)]
			e[a] = int(b)
		}
	}
}

func updateJumpsFromPos(jm *JumpMap, available *grid.Mask, pos grid.Pos, d grid.Dir) {
	updateJumps(jm, followLWall(available, pos, d))
}

// CreateJumpMap builds the jump map for the given available region.
func CreateJumpMap(available *grid.Mask) *JumpMap {
	jm := newJumpMap(available.Height, available.Width)
	for r := 1; r <= available.Height; r++ {
		for c := 1; c <= available.Width; c++ {
			p := grid.Pos{Row: r, Col: c}
			if !available.Get(p) {
				continue
			}
			for _, d := range grid.Dirs {
				if _, ok := jm.Next(p, d); !ok {
					updateJumpsFromPos(jm, available, p, d)
				}
			}
		}
	}
	return jm
}

// AddAvail incrementally extends available and the jump map to include pos,
// at cost proportional to the perimeter of the affected region.
func (jm *JumpMap) AddAvail(pos grid.Pos, available *grid.Mask) {
	available.Set(pos, true)
	for _, d := range grid.Dirs {
		if _, ok := jm.Next(pos, d); !ok {
			updateJumpsFromPos(jm, available, pos, d)
		}
	}
}

// RemoveAvail incrementally retracts pos from available and the jump map.
func (jm *JumpMap) RemoveAvail(pos grid.Pos, available *grid.Mask) {
	available.Set(pos, false)
	delete(jm.turn, pos)
	for _, d := range grid.Dirs {
		posN := d.Shift(pos)
		if available.Get(posN) {
			updateJumpsFromPos(jm, available, posN, d.Op())
		}
	}
}

// availablePullDirs yields the directions available for approaching pos,
// starting at oriD and rotating through the wall-following cycle, until it
// returns to oriD.
func availablePullDirs(jm *JumpMap, pos grid.Pos, oriD grid.Dir) []grid.Dir {
	out := []grid.Dir{oriD}
	d := oriD
	for {
		next, ok := jm.Next(pos, d)
		if !ok {
			break
		}
		d = next.TurnLeft()
		if d == oriD {
			break
		}
		out = append(out, d)
	}
	return out
}

// BoxJumps is the result of enumerating every cell/direction reachable by a
// sequence of pushes (or pulls) from a box's current access positions.
type BoxJumps struct {
	// Reached[p][d] is true if (p, d) was visited.
	Reached map[grid.Pos]*[4]bool
	// FirstDir[p] is the direction used for the very first push that led to p.
	FirstDir map[grid.Pos]grid.Dir
	// LastDir[p] is the direction used for the last push into p.
	LastDir map[grid.Pos]grid.Dir
	// Dist[p] is the number of pushes to reach p.
	Dist map[grid.Pos]int
	// FirstDirOf[p][d] is the starting direction fd of the chain that first
	// reached the exact node (p, d) — finer-grained than FirstDir, which
	// only records the first chain to reach p via any direction.
	FirstDirOf map[jumpNode]grid.Dir

	parent map[jumpNode]jumpNode
	isPush map[jumpNode]bool
}

type jumpNode struct {
	Pos grid.Pos
	Dir grid.Dir
}

// FindBoxJumps enumerates, for each (cell, direction) reachable by a
// sequence of valid pushes (fw=true) or pulls (fw=false) starting from the
// keeper-access positions in starts (each a (box, dir) pair where the
// keeper can reach the push/pull side of box), the first and last direction
// used along the way. Returns ok=false ("no-jump") if nothing is reachable.
func FindBoxJumps(jm *JumpMap, available *grid.Mask, starts []struct {
	Pos grid.Pos
	Dir grid.Dir
}, fw bool) (*BoxJumps, bool) {
	type qitem struct {
		dist int
		pos  grid.Pos
		dir  grid.Dir
		fd   grid.Dir
	}
	res := &BoxJumps{
		Reached:  make(map[grid.Pos]*[4]bool),
		FirstDir: make(map[grid.Pos]grid.Dir),
		LastDir:  make(map[grid.Pos]grid.Dir),
		Dist:       make(map[grid.Pos]int),
		FirstDirOf: make(map[jumpNode]grid.Dir),
		parent:     make(map[jumpNode]jumpNode),
		isPush:     make(map[jumpNode]bool),
	}
	queue := make([]qitem, 0, len(starts))
	for _, s := range starts {
		queue = append(queue, qitem{0, s.Pos, s.Dir, s.Dir})
		res.parent[jumpNode{s.Pos, s.Dir}] = jumpNode{}
		res.isPush[jumpNode{s.Pos, s.Dir}] = false
	}
	any := false
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		reached := res.Reached[it.pos]
		if reached == nil {
			reached = &[4]bool{}
			res.Reached[it.pos] = reached
		}
		if reached[it.dir] {
			continue
		}
		reached[it.dir] = true
		any = true
		res.FirstDirOf[jumpNode{it.pos, it.dir}] = it.fd
		if _, ok := res.LastDir[it.pos]; !ok {
			res.FirstDir[it.pos] = it.fd
			res.LastDir[it.pos] = it.dir
			res.Dist[it.pos] = it.dist
		}

		var posN grid.Pos
		if fw {
			posN = it.dir.Op().Shift(it.pos)
			if !available.Get(posN) {
				continue
			}
		} else {
			posN = it.dir.Shift(it.pos)
			if !available.Get(it.dir.Shift(posN)) {
				continue
			}
		}
		from := jumpNode{it.pos, it.dir}
		for _, dn := range availablePullDirs(jm, posN, it.dir) {
			to := jumpNode{posN, dn}
			if _, seen := res.parent[to]; !seen {
				res.parent[to] = from
				res.isPush[to] = posN != it.pos
			}
			queue = append(queue, qitem{it.dist + 1, posN, dn, it.fd})
		}
	}
	if !any {
		return nil, false
	}
	return res, true
}

// StartSides returns the (box, dir) pairs usable as FindBoxJumps starts for
// a single box: every direction from which component has keeper access to
// the push/pull side of box.
func StartSides(box grid.Pos, component *grid.Mask) []struct {
	Pos grid.Pos
	Dir grid.Dir
} {
	var out []struct {
		Pos grid.Pos
		Dir grid.Dir
	}
	for _, d := range grid.Dirs {
		if component.Get(d.Shift(box)) {
			out = append(out, struct {
				Pos grid.Pos
				Dir grid.Dir
			}{box, d})
		}
	}
	return out
}

// FindAllBoxJumps calls FindBoxJumps for every box present in boxes that has
// at least one keeper-accessible side in component, returning only the
// entries where more than one destination (cell,dir) was reached — a single
// reachable side means the box cannot usefully move.
func FindAllBoxJumps(available, boxes, component *grid.Mask, fw bool, jm *JumpMap) map[grid.Pos]*BoxJumps {
	if jm == nil {
		jm = CreateJumpMap(available)
	}
	out := make(map[grid.Pos]*BoxJumps)
	for _, box := range boxes.Positions() {
		starts := StartSides(box, component)
		if len(starts) == 0 {
			continue
		}
		jm.AddAvail(box, available)
		jumps, ok := FindBoxJumps(jm, available, starts, fw)
		if ok {
			count := 0
			for _, r := range jumps.Reached {
				for _, v := range r {
					if v {
						count++
					}
				}
			}
			if count > 1 {
				out[box] = jumps
			}
		}
		jm.RemoveAvail(box, available)
	}
	return out
}

// FirstDirAt returns the starting direction of the chain that first reached
// the exact node (pos, dir), or ok=false if that node was never reached.
func (b *BoxJumps) FirstDirAt(pos grid.Pos, dir grid.Dir) (grid.Dir, bool) {
	d, ok := b.FirstDirOf[jumpNode{pos, dir}]
	return d, ok
}

// Push is one push/pull action reconstructed by BoxJumpToPushes: the box
// position immediately before the action and the keeper side it was made
// from (a push moves the box in Dir.Op(), a pull moves it in Dir).
type Push struct {
	From grid.Pos
	Dir  grid.Dir
}

// BoxJumpToPushes reconstructs the minimal ordered sequence of pushes that
// reaches dest using direction lastDir as the final approach direction,
// walking the parent chain recorded by the FindBoxJumps call that produced
// jumps.
func BoxJumpToPushes(jumps *BoxJumps, dest grid.Pos, lastDir grid.Dir) []Push {
	var rev []Push
	cur := jumpNode{dest, lastDir}
	for {
		parent, ok := jumps.parent[cur]
		if !ok {
			break
		}
		if parent == (jumpNode{}) && !jumps.isPush[cur] {
			break
		}
		if jumps.isPush[cur] {
			rev = append(rev, Push{From: parent.Pos, Dir: parent.Dir})
		}
		if parent == (jumpNode{}) {
			break
		}
		cur = parent
	}
	out := make([]Push, len(rev))
	for i, p := range rev {
		out[len(rev)-1-i] = p
	}
	return out
}

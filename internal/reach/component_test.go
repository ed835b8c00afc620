package reach

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/sokodlex/internal/grid"
)

func openRoom(h, w int) *grid.Mask {
	m := grid.NewMask(h, w)
	for r := 1; r <= h; r++ {
		for c := 1; c <= w; c++ {
			m.Set(grid.Pos{Row: r, Col: c}, true)
		}
	}
	return m
}

func TestComponentContainsStarts(t *testing.T) {
	avail := openRoom(3, 3)
	comp := Component(avail, []grid.Pos{{Row: 1, Col: 1}, {Row: 3, Col: 3}})
	if !comp.Get(grid.Pos{Row: 1, Col: 1}) || !comp.Get(grid.Pos{Row: 3, Col: 3}) {
		t.Fatalf("component must contain every start position")
	}
}

// TestComponentClosedUnderShift is invariant 8 from spec.md §8: component is
// closed under dir_shift within available. Exercised both as a fixed example
// and as a rapid property over random wall layouts and start sets.
func TestComponentClosedUnderShift(t *testing.T) {
	check := func(avail *grid.Mask, starts []grid.Pos) {
		comp := Component(avail, starts)
		for _, start := range starts {
			if avail.Get(start) && !comp.Get(start) {
				t.Fatalf("component does not contain reachable start %v", start)
			}
		}
		for r := 0; r <= comp.Height+1; r++ {
			for c := 0; c <= comp.Width+1; c++ {
				p := grid.Pos{Row: r, Col: c}
				if !comp.Get(p) {
					continue
				}
				for _, d := range grid.Dirs {
					n := d.Shift(p)
					if avail.Get(n) && !comp.Get(n) {
						t.Fatalf("component not closed under shift: %v -%v-> %v available but unreached", p, d, n)
					}
				}
			}
		}
	}

	avail := openRoom(4, 4)
	avail.Set(grid.Pos{Row: 2, Col: 2}, false)
	check(avail, []grid.Pos{{Row: 1, Col: 1}})

	rapid.Check(t, func(t *rapid.T) {
		h := rapid.IntRange(2, 6).Draw(t, "h")
		w := rapid.IntRange(2, 6).Draw(t, "w")
		avail := grid.NewMask(h, w)
		for r := 1; r <= h; r++ {
			for c := 1; c <= w; c++ {
				blocked := rapid.Bool().Draw(t, "blocked")
				avail.Set(grid.Pos{Row: r, Col: c}, !blocked)
			}
		}
		start := grid.Pos{
			Row: rapid.IntRange(1, h).Draw(t, "startRow"),
			Col: rapid.IntRange(1, w).Draw(t, "startCol"),
		}
		check(avail, []grid.Pos{start})
	})
}

func TestSplitPartitionsDisjointComponents(t *testing.T) {
	m := grid.NewMask(3, 5)
	m.Set(grid.Pos{Row: 1, Col: 1}, true)
	m.Set(grid.Pos{Row: 1, Col: 2}, true)
	m.Set(grid.Pos{Row: 1, Col: 4}, true)

	parts := Split(m)
	if len(parts) != 2 {
		t.Fatalf("expected 2 components, got %d", len(parts))
	}
	total := 0
	for _, p := range parts {
		total += p.Mask.Count()
	}
	if total != m.Count() {
		t.Fatalf("split lost or duplicated cells: total %d, want %d", total, m.Count())
	}
}

func TestFindPathShortest(t *testing.T) {
	avail := openRoom(1, 5)
	path, ok := FindPath(avail, grid.Pos{Row: 1, Col: 1}, grid.Pos{Row: 1, Col: 5})
	if !ok {
		t.Fatalf("expected a path across an open row")
	}
	if len(path) != 4 {
		t.Fatalf("expected a path of length 4, got %d (%v)", len(path), path)
	}
	for _, d := range path {
		if d != grid.Right {
			t.Fatalf("expected every step to be Right, got %v", d)
		}
	}
}

func TestFindPathUnreachable(t *testing.T) {
	avail := grid.NewMask(3, 3)
	avail.Set(grid.Pos{Row: 1, Col: 1}, true)
	avail.Set(grid.Pos{Row: 3, Col: 3}, true)
	_, ok := FindPath(avail, grid.Pos{Row: 1, Col: 1}, grid.Pos{Row: 3, Col: 3})
	if ok {
		t.Fatalf("expected no path between disconnected cells")
	}
}

package grid

import "testing"

func rect(h, w int) *Mask {
	m := NewMask(h, w)
	for r := 1; r <= h; r++ {
		for c := 1; c <= w; c++ {
			m.Set(Pos{r, c}, true)
		}
	}
	return m
}

func TestMaskSetGetBorderNeverWritable(t *testing.T) {
	m := NewMask(3, 3)
	m.Set(Pos{0, 0}, true)
	if m.Get(Pos{0, 0}) {
		t.Fatalf("border cell became set")
	}
}

func TestMaskAndOrAndNot(t *testing.T) {
	a := NewMask(2, 2)
	a.Set(Pos{1, 1}, true)
	a.Set(Pos{1, 2}, true)
	b := NewMask(2, 2)
	b.Set(Pos{1, 2}, true)
	b.Set(Pos{2, 1}, true)

	and := a.And(b)
	if and.Count() != 1 || !and.Get(Pos{1, 2}) {
		t.Fatalf("And: got %v", and.Positions())
	}
	or := a.Or(b)
	if or.Count() != 3 {
		t.Fatalf("Or: want 3 set cells, got %d", or.Count())
	}
	andNot := a.AndNot(b)
	if andNot.Count() != 1 || !andNot.Get(Pos{1, 1}) {
		t.Fatalf("AndNot: got %v", andNot.Positions())
	}
}

func TestMaskSubsetAndEqual(t *testing.T) {
	whole := rect(3, 3)
	half := NewMask(3, 3)
	half.Set(Pos{1, 1}, true)
	if !half.Subset(whole) {
		t.Fatalf("half should be a subset of whole")
	}
	if whole.Subset(half) {
		t.Fatalf("whole should not be a subset of half")
	}
	if !whole.Equal(whole.Clone()) {
		t.Fatalf("a clone should be equal to its source")
	}
}

func TestMaskNotRespectsBorder(t *testing.T) {
	m := NewMask(2, 2)
	not := m.Not()
	if not.Count() != 4 {
		t.Fatalf("Not of an empty 2x2 mask should set all 4 interior cells, got %d", not.Count())
	}
	if not.Get(Pos{0, 0}) {
		t.Fatalf("Not must not set the border")
	}
}

func TestDirOpIsInvolution(t *testing.T) {
	for _, d := range Dirs {
		if d.Op().Op() != d {
			t.Fatalf("Op is not an involution for %v", d)
		}
	}
}

func TestDirCharRoundTrip(t *testing.T) {
	for _, d := range Dirs {
		got, ok := DirFromChar(d.Char())
		if !ok || got != d {
			t.Fatalf("Char/DirFromChar round trip failed for %v", d)
		}
	}
}

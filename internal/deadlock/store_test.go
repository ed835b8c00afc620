package deadlock

import (
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/sokodlex/internal/grid"
	"github.com/vanderheijden86/sokodlex/internal/sokostate"
)

// TestStoreRoundTrip is invariant 5 from spec.md §8: loading the file written
// by AppendBlock reproduces the same set of deadlocks, with identical
// full_index and descendants.
func TestStoreRoundTrip(t *testing.T) {
	avail := room(3, 3)
	storages := grid.NewMask(3, 3)
	storages.Set(grid.Pos{Row: 1, Col: 1}, true)
	baseState := sokostate.New(avail, grid.NewMask(3, 3), avail, storages, grid.Pos{Row: 2, Col: 2}, sokostate.Params{})

	st := NewStack(nil)
	dl := st.Add(leaf(grid.Pos{Row: 1, Col: 1}), 0)
	result, err := st.SetDescendants(dl, nil, nil)
	if err != nil {
		t.Fatalf("SetDescendants: %v", err)
	}
	if len(result.Promoted) != 1 {
		t.Fatalf("expected one promoted deadlock, got %d", len(result.Promoted))
	}

	path := filepath.Join(t.TempDir(), "deadlocks.txt")
	store := NewStore(path)
	if err := store.AppendBlock(result.Promoted); err != nil {
		t.Fatalf("AppendBlock: %v", err)
	}

	blocks, err := store.Load(baseState)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(blocks) != 1 || len(blocks[0]) != 1 {
		t.Fatalf("expected one block of one deadlock, got %v", blocks)
	}
	loaded := blocks[0][0]
	if loaded.FullIndex == nil || *loaded.FullIndex != *dl.FullIndex {
		t.Fatalf("full_index mismatch: got %v, want %v", loaded.FullIndex, dl.FullIndex)
	}
	if len(loaded.Boxes) != 1 || loaded.Boxes[0] != (grid.Pos{Row: 1, Col: 1}) {
		t.Fatalf("boxes mismatch after round trip: got %v", loaded.Boxes)
	}
	if len(loaded.Descendants) != 0 {
		t.Fatalf("a terminal deadlock must not gain descendants on reload")
	}
}

// TestStoreLoadMissingFileIsEmpty matches Load's no-file-yet behavior: a
// store that has never been written to reports no blocks and no error.
func TestStoreLoadMissingFileIsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	avail := room(3, 3)
	baseState := sokostate.New(avail, grid.NewMask(3, 3), avail, avail.Clone(), grid.Pos{Row: 1, Col: 1}, sokostate.Params{})
	blocks, err := store.Load(baseState)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if blocks != nil {
		t.Fatalf("expected no blocks from a missing store file, got %v", blocks)
	}
}

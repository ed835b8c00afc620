package xsb

import (
	"strings"
	"testing"
)

// TestDecodeEncodeRoundTrip is scenario S4: decoding then re-encoding a
// level's lines yields the original characters, modulo trailing-space
// trimming (lines are right-padded to the level's max width on decode).
func TestDecodeEncodeRoundTrip(t *testing.T) {
	lines := []string{
		"#####",
		"#.@$#",
		"#   #",
		"#####",
	}
	lvl, err := DecodeLines(lines)
	if err != nil {
		t.Fatalf("DecodeLines: %v", err)
	}
	got := EncodeLines(lvl)
	if len(got) != len(lines) {
		t.Fatalf("EncodeLines: got %d lines, want %d", len(got), len(lines))
	}
	for i := range lines {
		if strings.TrimRight(got[i], " ") != strings.TrimRight(lines[i], " ") {
			t.Fatalf("line %d: got %q, want %q", i, got[i], lines[i])
		}
	}
}

func TestDecodeRejectsSolvedLevel(t *testing.T) {
	lines := []string{
		"####",
		"#@*#",
		"####",
	}
	if _, err := DecodeLines(lines); err == nil {
		t.Fatalf("expected an error decoding an already-solved level")
	}
}

func TestDecodeRejectsBoxStorageMismatch(t *testing.T) {
	lines := []string{
		"#####",
		"#@$.#",
		"#.  #",
		"#####",
	}
	if _, err := DecodeLines(lines); err == nil {
		t.Fatalf("expected an error when storage count does not match box count")
	}
}

func TestDecodeRejectsNoStorekeeper(t *testing.T) {
	lines := []string{
		"####",
		"#$.#",
		"####",
	}
	if _, err := DecodeLines(lines); err == nil {
		t.Fatalf("expected an error when no storekeeper is present")
	}
}

func TestToStateSubFull(t *testing.T) {
	lvl, err := DecodeLines([]string{"####", "#.@#", "#$ #", "####"})
	if err != nil {
		t.Fatalf("DecodeLines: %v", err)
	}
	state := lvl.ToState()
	if !state.SubFull {
		t.Fatalf("a freshly loaded level's state should be sub_full")
	}
	if !state.SubBoxes.Equal(lvl.Boxes) {
		t.Fatalf("sub_boxes should exactly equal the level's boxes")
	}
}

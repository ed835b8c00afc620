// Package xsb decodes and encodes Sokoban levels in the XSB text format, and
// converts a decoded level into the generalized search state (spec.md §6,
// "XSB level format").
//
// Grounded on _examples/original_source/data_loader.py.
package xsb

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/sokodlex/internal/grid"
	"github.com/vanderheijden86/sokodlex/internal/reach"
	"github.com/vanderheijden86/sokodlex/internal/sokostate"
)

// Level is a decoded Sokoban level: walls, storages and boxes are masks over
// a (Height, Width) interior region padded the same way as every other mask
// in this codebase, and Storekeeper is the keeper's 1-based starting
// position (data_loader.py's SokobanLevel).
type Level struct {
	Height, Width int
	Walls         *grid.Mask
	Storages      *grid.Mask
	Boxes         *grid.Mask
	Storekeeper   grid.Pos
}

// charInfo decodes one XSB character into its (wall, storage, box,
// storekeeper) bit tuple (data_loader.py's char_d).
var charInfo = map[byte][4]bool{
	' ': {false, false, false, false},
	'#': {true, false, false, false},
	'.': {false, true, false, false},
	'$': {false, false, true, false},
	'*': {false, true, true, false},
	'@': {false, false, false, true},
	'+': {false, true, false, true},
}

// ValidChars is the full XSB character alphabet accepted by this decoder.
const ValidChars = " #.$*@+"

// DecodeLines builds a Level from the raw (already trimmed) lines of a
// single XSB level block, padding short lines with spaces
// (data_loader.py's decode_sokoban_level_from_lines).
func DecodeLines(lines []string) (*Level, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("xsb: empty level")
	}
	width := 0
	for _, line := range lines {
		if len(line) > width {
			width = len(line)
		}
	}
	height := len(lines)

	walls := grid.NewMask(height, width)
	storages := grid.NewMask(height, width)
	boxes := grid.NewMask(height, width)
	var storekeeper grid.Pos
	found := false

	for r, line := range lines {
		padded := line + strings.Repeat(" ", width-len(line))
		for c := 0; c < width; c++ {
			info, ok := charInfo[padded[c]]
			if !ok {
				return nil, fmt.Errorf("xsb: invalid character %q at line %d col %d", padded[c], r, c)
			}
			p := grid.Pos{Row: r + 1, Col: c + 1}
			if info[0] {
				walls.Set(p, true)
			}
			if info[1] {
				storages.Set(p, true)
			}
			if info[2] {
				boxes.Set(p, true)
			}
			if info[3] {
				if found {
					return nil, fmt.Errorf("xsb: more than one storekeeper")
				}
				storekeeper = p
				found = true
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("xsb: no storekeeper found")
	}
	if storages.Count() != boxes.Count() {
		return nil, fmt.Errorf("xsb: storage count (%d) does not match box count (%d)", storages.Count(), boxes.Count())
	}
	if storages.Equal(boxes) {
		return nil, fmt.Errorf("xsb: level is already solved (storages equal boxes)")
	}
	if walls.Get(storekeeper) || boxes.Get(storekeeper) {
		return nil, fmt.Errorf("xsb: storekeeper sits on a wall or box")
	}

	return &Level{
		Height:      height,
		Width:       width,
		Walls:       walls,
		Storages:    storages,
		Boxes:       boxes,
		Storekeeper: storekeeper,
	}, nil
}

// EncodeLines renders level back to XSB text lines
// (data_loader.py's encode_sokoban_level_to_lines).
func EncodeLines(level *Level) []string {
	lines := make([]string, level.Height)
	for r := 1; r <= level.Height; r++ {
		var b strings.Builder
		for c := 1; c <= level.Width; c++ {
			p := grid.Pos{Row: r, Col: c}
			wall := level.Walls.Get(p)
			storage := level.Storages.Get(p)
			box := level.Boxes.Get(p)
			sk := p == level.Storekeeper
			b.WriteByte(encodeChar(wall, storage, box, sk))
		}
		lines[r-1] = b.String()
	}
	return lines
}

func encodeChar(wall, storage, box, sk bool) byte {
	for ch, info := range charInfo {
		if info[0] == wall && info[1] == storage && info[2] == box && info[3] == sk {
			return ch
		}
	}
	panic("xsb: no XSB character for the given cell combination")
}

// Available returns the level's non-wall mask.
func (l *Level) Available() *grid.Mask {
	return l.Walls.Not()
}

// ToState builds the standard (non-dual) generalized search state for the
// level: every box position is known exactly (sub_full=true), and the
// available region is fully open to generalization (data_loader.py does not
// define this; grounded on soko_state.py's level_to_state).
func (l *Level) ToState() *sokostate.State {
	available := l.Available()
	subFull := true
	return sokostate.New(available, l.Boxes, available, l.Storages, l.Storekeeper, sokostate.Params{
		SubFull: &subFull,
	})
}

// ToDualState builds the dual-mode state used to search for a path from the
// level's boxes-as-storages toward its storages-as-boxes, with a
// storekeeper goal of reaching the level's original keeper position
// (soko_state.py's level_to_dual_state).
func (l *Level) ToDualState() *sokostate.State {
	available := l.Available()
	storages := l.Boxes
	boxes := l.Storages

	startersIni := grid.NewMask(l.Height, l.Width)
	for _, d := range grid.Dirs {
		startersIni = startersIni.Or(boxes.Shift(d))
	}
	storekeepers := reach.Component(available.AndNot(boxes), startersIni.Positions())

	var bestRep grid.Pos
	bestSize := -1
	for _, part := range reach.Split(storekeepers) {
		if part.Mask.Count() > bestSize {
			bestSize = part.Mask.Count()
			bestRep = part.Pos
		}
	}

	var storekeeper grid.Pos
	found := false
	for _, p := range startersIni.Positions() {
		if reach.Component(storekeepers, []grid.Pos{bestRep}).Get(p) {
			storekeeper = p
			found = true
			break
		}
	}
	if !found {
		panic("xsb: dual level has no reachable starter position")
	}

	sk := l.Storekeeper
	subFull := true
	return sokostate.New(available, boxes, available, storages, storekeeper, sokostate.Params{
		Storekeepers:    storekeepers,
		SubFull:         &subFull,
		StorekeeperGoal: &sk,
	})
}

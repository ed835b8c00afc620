package deadlock

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vanderheijden86/sokodlex/internal/grid"
	"github.com/vanderheijden86/sokodlex/internal/reach"
	"github.com/vanderheijden86/sokodlex/internal/sokostate"
)

// Store persists proven-full deadlocks to an append-only text file (spec.md
// §6): each promoted strongly connected component is appended as one block,
// preceded by a blank line, and never rewritten in place
// (deadlocks.py's set_descendants file-append behavior and
// deadlocks_from_file).
//
// Positions on disk are 0-based; this package's in-memory grid.Pos values
// are always the 1-based border-padded convention, so every read/write
// applies a uniform +1/-1 shift.
type Store struct {
	Path string
}

// NewStore opens (without yet touching) the deadlock file at path.
func NewStore(path string) *Store { return &Store{Path: path} }

// AppendBlock appends one promoted strongly connected component to the
// store file, creating it if necessary.
func (s *Store) AppendBlock(deadlocks []*Deadlock) error {
	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w)
	for _, dl := range deadlocks {
		if err := writeDeadlock(w, dl); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeDeadlock(w *bufio.Writer, dl *Deadlock) error {
	if dl.FullIndex == nil {
		return fmt.Errorf("deadlock: cannot persist a deadlock that is not full")
	}
	fmt.Fprintf(w, "Deadlock %d\n", *dl.FullIndex)

	reps := componentRepresentatives(dl.SkComponent)
	fmt.Fprintf(w, "  Storekeeper: %s\n", joinPositions(reps))
	fmt.Fprintf(w, "  Boxes: %s\n", joinPositions(dl.Boxes))
	fmt.Fprintf(w, "  Blocked: %s\n", joinPositions(dl.NotBoxes))
	for action, desc := range dl.Descendants {
		if desc.FullIndex == nil {
			return fmt.Errorf("deadlock: descendant has not been promoted to full")
		}
		fmt.Fprintf(w, "  Action %d %d %c -> %d\n",
			action.Box.Row-1, action.Box.Col-1, action.Dir.Char(), *desc.FullIndex)
	}
	return nil
}

func componentRepresentatives(m *grid.Mask) []grid.Pos {
	var out []grid.Pos
	for _, part := range reach.Split(m) {
		out = append(out, part.Pos)
	}
	return out
}

func joinPositions(positions []grid.Pos) string {
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = fmt.Sprintf("%d %d", p.Row-1, p.Col-1)
	}
	return strings.Join(parts, ", ")
}

// Load reads every deadlock block from the store file, reconstructing each
// deadlock's keeper-reachable component against baseState.Available with
// that deadlock's own boxes walled off. If the file is corrupted, it is
// renamed to a "<path>_backup" (or "<path>_backupN" if that exists) and Load
// returns a nil, nil result so the caller can continue with an empty store
// (deadlocks_from_file's corruption-recovery rename).
func (s *Store) Load(baseState *sokostate.State) ([][]*Deadlock, error) {
	f, err := os.Open(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	blocks, parseErr := parseDeadlockFile(f, baseState)
	if parseErr == nil {
		return blocks, nil
	}

	f.Close()
	backup := s.Path + "_backup"
	for i := 0; ; i++ {
		if _, err := os.Stat(backup); os.IsNotExist(err) {
			break
		}
		backup = fmt.Sprintf("%s_backup%d", s.Path, i)
	}
	if err := os.Rename(s.Path, backup); err != nil {
		return nil, fmt.Errorf("deadlock: store corrupted (%v) and could not be backed up: %w", parseErr, err)
	}
	return nil, nil
}

type rawAction struct {
	box grid.Pos
	dir grid.Dir
	dst int
}

type rawDeadlock struct {
	index       int
	storekeeper []grid.Pos
	boxes       []grid.Pos
	blocked     []grid.Pos
	actions     []rawAction
}

func parseDeadlockFile(f *os.File, baseState *sokostate.State) ([][]*Deadlock, error) {
	scanner := bufio.NewScanner(f)
	var raws []rawDeadlock

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		index, err := parseHeader(line, "Deadlock")
		if err != nil {
			return nil, err
		}
		if index != len(raws) {
			return nil, fmt.Errorf("deadlock store: out-of-order index %d (expected %d)", index, len(raws))
		}

		storekeeper, err := readPositionsLine(scanner, "Storekeeper")
		if err != nil {
			return nil, err
		}
		boxes, err := readPositionsLine(scanner, "Boxes")
		if err != nil {
			return nil, err
		}
		blocked, err := readPositionsLine(scanner, "Blocked")
		if err != nil {
			return nil, err
		}
		if err := checkPositionsInBounds(baseState.Available, storekeeper, boxes, blocked); err != nil {
			return nil, err
		}

		raw := rawDeadlock{index: index, storekeeper: storekeeper, boxes: boxes, blocked: blocked}
		for scanner.Scan() {
			actionLine := strings.TrimSpace(scanner.Text())
			if actionLine == "" {
				break
			}
			action, err := parseActionLine(actionLine)
			if err != nil {
				return nil, err
			}
			if !baseState.Available.InBounds(action.box) {
				return nil, fmt.Errorf("deadlock store: action position %v out of bounds", action.box)
			}
			raw.actions = append(raw.actions, action)
		}
		raws = append(raws, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	dlList := make([]*Deadlock, len(raws))
	var blocks [][]*Deadlock
	var curBlock []*Deadlock
	maxIndex := 0
	for _, raw := range raws {
		available := baseState.Available.Clone()
		for _, box := range raw.boxes {
			available.Set(box, false)
		}
		skComponent := reach.Component(available, raw.storekeeper)
		dl := New(raw.boxes, raw.blocked, skComponent)
		idx := raw.index
		dl.FullIndex = &idx
		dlList[raw.index] = dl
		curBlock = append(curBlock, dl)

		maxCur := maxIndex
		for _, a := range raw.actions {
			if a.dst > maxCur {
				maxCur = a.dst
			}
		}
		if maxCur > maxIndex {
			maxIndex = maxCur
		}
		if maxIndex == raw.index {
			maxIndex++
			for _, bdl := range curBlock {
				rawForThis := raws[*bdl.FullIndex]
				bdl.Descendants = make(map[Action]*Deadlock, len(rawForThis.actions))
				for _, a := range rawForThis.actions {
					bdl.Descendants[Action{Box: a.box, Dir: a.dir}] = dlList[a.dst]
				}
			}
			blocks = append(blocks, curBlock)
			curBlock = nil
		}
	}
	if len(curBlock) > 0 {
		return nil, fmt.Errorf("deadlock store: truncated file, unterminated block")
	}
	return blocks, nil
}

func parseHeader(line, prefix string) (int, error) {
	rest := strings.TrimPrefix(line, prefix)
	if rest == line {
		return 0, fmt.Errorf("deadlock store: expected %q, got %q", prefix, line)
	}
	return strconv.Atoi(strings.TrimSpace(rest))
}

func readPositionsLine(scanner *bufio.Scanner, label string) ([]grid.Pos, error) {
	if !scanner.Scan() {
		return nil, fmt.Errorf("deadlock store: unexpected end of file reading %q", label)
	}
	line := strings.TrimSpace(scanner.Text())
	prefix := label + ":"
	rest := strings.TrimPrefix(line, prefix)
	if rest == line {
		return nil, fmt.Errorf("deadlock store: expected %q, got %q", prefix, line)
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, nil
	}
	var out []grid.Pos
	for _, chunk := range strings.Split(rest, ",") {
		fields := strings.Fields(chunk)
		if len(fields) != 2 {
			return nil, fmt.Errorf("deadlock store: malformed position %q", chunk)
		}
		r, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, err
		}
		c, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, err
		}
		out = append(out, grid.Pos{Row: r + 1, Col: c + 1})
	}
	return out, nil
}

// checkPositionsInBounds rejects any position a corrupted store file could
// carry that a 0-based-to-1-based shift alone wouldn't catch (a garbage or
// truncated index surviving strconv.Atoi). Without this, parseDeadlockFile
// would hand such a position to available.Set and panic deep inside
// grid.Mask instead of surfacing a parse error Load can recover from via its
// backup-rename path.
func checkPositionsInBounds(available *grid.Mask, groups ...[]grid.Pos) error {
	for _, group := range groups {
		for _, p := range group {
			if !available.InBounds(p) {
				return fmt.Errorf("deadlock store: position %v out of bounds", p)
			}
		}
	}
	return nil
}

func parseActionLine(line string) (rawAction, error) {
	rest := strings.TrimPrefix(line, "Action")
	if rest == line {
		return rawAction{}, fmt.Errorf("deadlock store: expected Action line, got %q", line)
	}
	fields := strings.Fields(rest)
	if len(fields) != 5 || fields[3] != "->" {
		return rawAction{}, fmt.Errorf("deadlock store: malformed action line %q", line)
	}
	r, err := strconv.Atoi(fields[0])
	if err != nil {
		return rawAction{}, err
	}
	c, err := strconv.Atoi(fields[1])
	if err != nil {
		return rawAction{}, err
	}
	if len(fields[2]) != 1 {
		return rawAction{}, fmt.Errorf("deadlock store: malformed direction %q", fields[2])
	}
	dir, ok := grid.DirFromChar(fields[2][0])
	if !ok {
		return rawAction{}, fmt.Errorf("deadlock store: unknown direction char %q", fields[2])
	}
	dst, err := strconv.Atoi(fields[4])
	if err != nil {
		return rawAction{}, err
	}
	return rawAction{box: grid.Pos{Row: r + 1, Col: c + 1}, dir: dir, dst: dst}, nil
}

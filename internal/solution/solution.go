// Package solution writes the move log and action log produced once a
// search path reaches a solved state with no outstanding generalization
// (spec.md §6, "Solution output"): the move log records every box push/pull
// along the path in order, and the action log records the same moves in the
// deadlock store's coordinate/direction wire convention, for external tools
// to replay without depending on this module's in-memory types.
//
// Grounded on the text-writing style of internal/deadlock/store.go; no
// original-source file defines this artifact (sokodlex.py only persists the
// deadlock file), so the layout follows that store's own conventions.
package solution

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vanderheijden86/sokodlex/internal/deadlock"
)

// VarDir returns the directory a level's solution (and any other run
// artifacts) should be written under: var/<levelset>_l<n>.
func VarDir(root, levelSet string, levelIndex int) string {
	return filepath.Join(root, "var", fmt.Sprintf("%s_l%d", levelSet, levelIndex))
}

// Write renders moves (in search order, fwMode indicating push vs. pull) to
// move.log and action.log inside dir, creating dir if necessary.
func Write(dir string, moves []deadlock.Action, fwMode bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("solution: %w", err)
	}
	if err := writeMoveLog(filepath.Join(dir, "move.log"), moves, fwMode); err != nil {
		return err
	}
	return writeActionLog(filepath.Join(dir, "action.log"), moves)
}

func writeMoveLog(path string, moves []deadlock.Action, fwMode bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("solution: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	verb := "push"
	if !fwMode {
		verb = "pull"
	}
	for i, m := range moves {
		fmt.Fprintf(w, "%d: %s box (%d,%d) %s\n", i, verb, m.Box.Row-1, m.Box.Col-1, m.Dir)
	}
	return w.Flush()
}

func writeActionLog(path string, moves []deadlock.Action) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("solution: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, m := range moves {
		fmt.Fprintf(w, "Action %d %d %c\n", m.Box.Row-1, m.Box.Col-1, m.Dir.Char())
	}
	return w.Flush()
}

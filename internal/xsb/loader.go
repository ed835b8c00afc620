package xsb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// LoadFile reads every XSB level stored in fname (windows-1250 encoded, one
// or more blank-line-separated level blocks), treating any line that
// contains a character outside ValidChars as a blank separator line
// (data_loader.py's load_xsb_levels).
func LoadFile(fname string) ([]*Level, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("xsb: %w", err)
	}
	defer f.Close()

	reader := transform.NewReader(f, charmap.Windows1250.NewDecoder())
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var levels []*Level
	var block []string
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		lvl, err := DecodeLines(block)
		block = nil
		if err != nil {
			return fmt.Errorf("xsb: %s: %w", fname, err)
		}
		levels = append(levels, lvl)
		return nil
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n \t")
		if strings.ContainsFunc(line, func(r rune) bool {
			return !strings.ContainsRune(ValidChars, r)
		}) {
			line = ""
		}
		if line != "" {
			block = append(block, line)
			continue
		}
		if err := flush(); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("xsb: %s: %w", fname, err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return levels, nil
}

// LevelFile pairs a level set's source file name with the levels decoded
// from it, preserving the 1-based level numbering XSB files conventionally
// use.
type LevelFile struct {
	Path   string
	Name   string
	Levels []*Level
}

// LoadLevelSet reads every *.xsb file directly inside dir in parallel
// (errgroup), returning one LevelFile per source file sorted by file name so
// that level-set ordering stays reproducible across runs regardless of
// filesystem directory-entry order.
func LoadLevelSet(dir string) ([]LevelFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("xsb: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".xsb") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	results := make([]LevelFile, len(names))
	g := new(errgroup.Group)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			path := filepath.Join(dir, name)
			levels, err := LoadFile(path)
			if err != nil {
				return err
			}
			results[i] = LevelFile{Path: path, Name: name, Levels: levels}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

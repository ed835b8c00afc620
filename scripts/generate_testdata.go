// +build ignore

// generate_testdata.go creates standard XSB test level sets for benchmarking
// and scenario tests.
// Usage: go run scripts/generate_testdata.go
//
// Creates:
//   testdata/levelsets/small.xsb   (10 levels, 6x6 rooms, 1-2 boxes)
//   testdata/levelsets/medium.xsb  (10 levels, 10x10 rooms, 3-4 boxes)
//   testdata/levelsets/large.xsb   (10 levels, 14x14 rooms, 5-6 boxes)
//   testdata/levelsets/huge.xsb    (10 levels, 20x20 rooms, 8-10 boxes)
package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

type datasetSpec struct {
	name     string
	levels   int
	room     int
	minBoxes int
	maxBoxes int
	desc     string
}

var datasets = []datasetSpec{
	{"small", 10, 6, 1, 2, "6x6 rooms with 1-2 boxes"},
	{"medium", 10, 10, 3, 4, "10x10 rooms with 3-4 boxes"},
	{"large", 10, 14, 5, 6, "14x14 rooms with 5-6 boxes"},
	{"huge", 10, 20, 8, 10, "20x20 rooms with 8-10 boxes"},
}

func main() {
	outputDir := "testdata/levelsets"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	for _, ds := range datasets {
		fmt.Printf("Generating %s level set (%s)...\n", ds.name, ds.desc)

		rng := rand.New(rand.NewSource(int64(ds.room*1000 + ds.levels)))
		var sb strings.Builder
		for i := 0; i < ds.levels; i++ {
			nBoxes := ds.minBoxes + rng.Intn(ds.maxBoxes-ds.minBoxes+1)
			sb.WriteString(fmt.Sprintf("; %s level %d\n", ds.name, i+1))
			sb.WriteString(renderLevel(rng, ds.room, nBoxes))
			sb.WriteString("\n")
		}

		outputPath := filepath.Join(outputDir, ds.name+".xsb")
		if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", outputPath, err)
			os.Exit(1)
		}

		fmt.Printf("  Written %s (%d levels, %d bytes)\n", outputPath, ds.levels, sb.Len())
	}

	fmt.Println("\nDone! Test level sets created in", "testdata/levelsets")
}

// renderLevel builds a single XSB level block: a walled room of size x size
// interior cells, with nBoxes boxes placed on distinct open cells, each
// paired with its own storage cell, and the keeper dropped on whatever open
// cell remains.
func renderLevel(rng *rand.Rand, size, nBoxes int) string {
	h, w := size+2, size+2
	grid := make([][]byte, h)
	for r := range grid {
		grid[r] = make([]byte, w)
		for c := range grid[r] {
			if r == 0 || r == h-1 || c == 0 || c == w-1 {
				grid[r][c] = '#'
			} else {
				grid[r][c] = ' '
			}
		}
	}

	var open []struct{ r, c int }
	for r := 1; r < h-1; r++ {
		for c := 1; c < w-1; c++ {
			open = append(open, struct{ r, c int }{r, c})
		}
	}
	rng.Shuffle(len(open), func(i, j int) { open[i], open[j] = open[j], open[i] })

	need := 2*nBoxes + 1
	if need > len(open) {
		need = len(open)
		nBoxes = (need - 1) / 2
	}
	picks := open[:need]

	for i := 0; i < nBoxes; i++ {
		b, s := picks[2*i], picks[2*i+1]
		grid[b.r][b.c] = '$'
		grid[s.r][s.c] = '.'
	}
	sk := picks[need-1]
	grid[sk.r][sk.c] = '@'

	var sb strings.Builder
	for r := 0; r < h; r++ {
		sb.Write(grid[r])
		sb.WriteByte('\n')
	}
	return sb.String()
}

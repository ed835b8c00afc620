// Command sokodlex drives the deadlock-proving search over a configured
// level set: for each level it builds a move stack, runs the auto-select
// driver until the level is solved, the driver stops, or -max-steps is used
// up, and writes the solution files on success. With -export it snapshots
// each level's indexed deadlocks to SQLite; with -watch it keeps watching the
// level set directory and re-runs the whole level set after each change.
//
// Grounded on the teacher's cmd/bw/main.go flag/exit-code conventions.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/exp/rand"

	"github.com/vanderheijden86/sokodlex/internal/config"
	"github.com/vanderheijden86/sokodlex/internal/deadlock"
	"github.com/vanderheijden86/sokodlex/internal/export"
	"github.com/vanderheijden86/sokodlex/internal/heuristic"
	"github.com/vanderheijden86/sokodlex/internal/movestack"
	"github.com/vanderheijden86/sokodlex/internal/search"
	"github.com/vanderheijden86/sokodlex/internal/solution"
	"github.com/vanderheijden86/sokodlex/internal/sokostate"
	"github.com/vanderheijden86/sokodlex/internal/watch"
	"github.com/vanderheijden86/sokodlex/internal/xsb"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (defaults to the XDG config location)")
	levelSetName := flag.String("levelset", "", "Name of the level set to run, from the config's level_sets")
	levelSetPath := flag.String("path", "", "Directory of .xsb files to run, overriding -levelset")
	maxSteps := flag.Int("max-steps", 200000, "Give up on a level after this many auto-select steps")
	exportPath := flag.String("export", "", "If set, write a SQLite snapshot of the run's deadlocks here")
	watchFlag := flag.Bool("watch", false, "Watch the level set directory and re-run on change")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help {
		fmt.Println("Usage: sokodlex [options]")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sokodlex: %v\n", err)
		os.Exit(1)
	}

	dir := *levelSetPath
	levelSetLabel := *levelSetName
	if dir == "" {
		ls := cfg.FindLevelSet(*levelSetName)
		if ls == nil {
			fmt.Fprintf(os.Stderr, "sokodlex: no level set named %q in config, and -path not given\n", *levelSetName)
			os.Exit(1)
		}
		dir = ls.ResolvedPath()
		levelSetLabel = ls.Name
	}
	if levelSetLabel == "" {
		levelSetLabel = filepath.Base(dir)
	}

	if err := run(cfg, dir, levelSetLabel, *maxSteps, *exportPath, *watchFlag); err != nil {
		fmt.Fprintf(os.Stderr, "sokodlex: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func run(cfg config.Config, dir, levelSetLabel string, maxSteps int, exportPath string, watchDir bool) error {
	var snapshotter *export.Snapshotter
	var runID int64
	if exportPath != "" {
		var err error
		snapshotter, err = export.Open(exportPath)
		if err != nil {
			return err
		}
		defer snapshotter.Close()
		runID, err = snapshotter.BeginRun(time.Now())
		if err != nil {
			return err
		}
	}

	if err := runOnce(cfg, dir, levelSetLabel, maxSteps, snapshotter, runID); err != nil {
		return err
	}
	if !watchDir {
		return nil
	}

	w, err := watch.New(dir)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Stop()

	for range w.Changed() {
		fmt.Printf("level set %s changed, re-running\n", dir)
		if err := runOnce(cfg, dir, levelSetLabel, maxSteps, snapshotter, runID); err != nil {
			fmt.Fprintf(os.Stderr, "sokodlex: %v\n", err)
		}
	}
	return nil
}

func runOnce(cfg config.Config, dir, levelSetLabel string, maxSteps int, snapshotter *export.Snapshotter, runID int64) error {
	files, err := xsb.LoadLevelSet(dir)
	if err != nil {
		return fmt.Errorf("loading level set %s: %w", dir, err)
	}

	rng := rand.New(rand.NewSource(cfg.Search.HeuristicSeed))
	heur := func(state *sokostate.State, fwMode bool, actions []deadlock.Action) (deadlock.Action, error) {
		return heuristic.ChooseAction(state, fwMode, actions, rng)
	}

	levelIndex := 0
	for _, lf := range files {
		for _, lvl := range lf.Levels {
			levelIndex++
			start := time.Now()
			solved, moveCount, moves, dls, err := solveLevel(lvl, cfg, levelSetLabel, levelIndex, heur, maxSteps, rng)
			if err != nil {
				return fmt.Errorf("%s level %d: %w", levelSetLabel, levelIndex, err)
			}

			fmt.Printf("%s level %d: solved=%v moves=%d\n", levelSetLabel, levelIndex, solved, moveCount)

			if solved {
				solDir := solution.VarDir(cfg.SolutionDir, levelSetLabel, levelIndex)
				if err := solution.Write(solDir, moves, true); err != nil {
					return fmt.Errorf("%s level %d: writing solution: %w", levelSetLabel, levelIndex, err)
				}
			}

			if snapshotter != nil {
				result := export.LevelResult{
					LevelSet:    levelSetLabel,
					LevelIndex:  levelIndex,
					Width:       lvl.Width,
					Height:      lvl.Height,
					Solved:      solved,
					MoveCount:   moveCount,
					Deadlocks:   dls,
					ElapsedSecs: time.Since(start).Seconds(),
				}
				if err := snapshotter.WriteLevel(runID, result); err != nil {
					return fmt.Errorf("%s level %d: snapshot: %w", levelSetLabel, levelIndex, err)
				}
			}
		}
	}
	return nil
}

// solveLevel drives lvl's move stack with the auto-select wrapper until it
// either reaches a solved position or exhausts maxSteps, returning every
// deadlock left in the index (full ones and still-conjectured ones alike)
// for snapshotting.
func solveLevel(lvl *xsb.Level, cfg config.Config, levelSetLabel string, levelIndex int, heur movestack.Heuristic, maxSteps int, rng *rand.Rand) (solved bool, moveCount int, moves []deadlock.Action, dls []*deadlock.Deadlock, err error) {
	storePath := cfg.Store.Path
	if storePath != "" {
		storePath = filepath.Join(storePath, fmt.Sprintf("%s_l%d", levelSetLabel, levelIndex))
	}

	stack, err := movestack.New(lvl.ToState(), storePath, true)
	if err != nil {
		return false, 0, nil, nil, err
	}

	varDir := solution.VarDir(cfg.SolutionDir, levelSetLabel, levelIndex)
	if err := os.MkdirAll(varDir, 0o755); err != nil {
		return false, 0, nil, nil, fmt.Errorf("creating %s: %w", varDir, err)
	}
	stack.Deadlocks.SetReplayLog(deadlock.NewReplayLog(filepath.Join(varDir, "bug.log")))

	auto := search.New(stack, heur, rng)
	if storePath != "" {
		auto.Store = deadlock.NewStore(storePath)
	}

	for i := 0; i < maxSteps; i++ {
		if stack.IsSolved() && !stack.IsOnStart() {
			break
		}
		ok, stepErr := auto.Step()
		if stepErr != nil {
			return false, 0, nil, nil, stepErr
		}
		if !ok {
			break
		}
	}

	solved = stack.IsSolved()
	if solved {
		moves = append(moves, stack.Moves[:stack.CurMoveI]...)
		moveCount = len(moves)
	}

	dls = stack.Deadlocks.Set.All()
	return solved, moveCount, moves, dls, nil
}

// Command analyze inspects stored game files offline. It replays each game's
// move log and either prints the result (show) or checks that the record is
// one the server could have written (verify).
//
// Game files are the JSON documents written by file persistence, one per game,
// under <data-dir>/games.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/service"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	dirFlag := &cli.StringFlag{
		Name:    "dir",
		Value:   filepath.Join("data", "games"),
		Usage:   "directory scanned when no files are given",
		Sources: cli.EnvVars("TTT_GAMES_DIR"),
	}

	return &cli.Command{
		Name:  "analyze",
		Usage: "replay and check stored tic-tac-toe games",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "print each game's players, moves and final board",
				ArgsUsage: "[game.json...]",
				Flags:     []cli.Flag{dirFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					files, err := gameFiles(cmd)
					if err != nil {
						return err
					}
					for _, f := range files {
						showGame(cmd.Root().Writer, f)
					}
					return nil
				},
			},
			{
				Name:      "verify",
				Usage:     "check that every game replays cleanly and its result matches the board",
				ArgsUsage: "[game.json...]",
				Flags:     []cli.Flag{dirFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					files, err := gameFiles(cmd)
					if err != nil {
						return err
					}

					w := cmd.Root().Writer
					invalid := 0
					for _, f := range files {
						result := validateGame(f)
						if result.Valid {
							fmt.Fprintf(w, "✓ %s\n", result.File)
							continue
						}
						invalid++
						fmt.Fprintf(w, "✗ %s\n", result.File)
						for _, e := range result.Errors {
							fmt.Fprintf(w, "    - %s\n", e)
						}
					}

					fmt.Fprintf(w, "\n%d file(s), %d invalid\n", len(files), invalid)
					if invalid > 0 {
						return fmt.Errorf("%d invalid game file(s)", invalid)
					}
					return nil
				},
			},
		},
	}
}

// gameFiles returns the files named on the command line, or every .json file
// in --dir
func gameFiles(cmd *cli.Command) ([]string, error) {
	if cmd.Args().Len() > 0 {
		return cmd.Args().Slice(), nil
	}

	files, err := filepath.Glob(filepath.Join(cmd.String("dir"), "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func loadGame(path string) (*service.Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	var g service.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &g, nil
}

func showGame(w io.Writer, path string) {
	fmt.Fprintf(w, "\n=== %s ===\n", filepath.Base(path))

	g, err := loadGame(path)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(w, "Game: %s (%s)\n", g.ID, g.Status)
	fmt.Fprintf(w, "X: %s\nO: %s\n", g.Players[0].Name, g.Players[1].Name)
	fmt.Fprintf(w, "Moves: %d\n", len(g.Moves))
	for i, mv := range g.Moves {
		fmt.Fprintf(w, "  %d. %s -> %d\n", i+1, mv.Symbol, mv.Idx)
	}

	state, err := engine.Replay(g.Moves)
	for _, row := range engine.Render(state.Board) {
		fmt.Fprintf(w, "  %s\n", row)
	}
	if err != nil {
		fmt.Fprintf(w, "Replay stopped: %v\n", err)
		return
	}

	fmt.Fprintf(w, "Marks: X=%d O=%d\n", engine.CountMarks(state.Board, engine.X), engine.CountMarks(state.Board, engine.O))
	switch state.Outcome {
	case engine.OutcomeWin:
		fmt.Fprintf(w, "Board: %s wins on %v\n", state.Winner, state.Line)
	case engine.OutcomeDraw:
		fmt.Fprintln(w, "Board: draw")
	default:
		fmt.Fprintf(w, "Board: undecided, %s to move\n", state.Turn)
	}
	if g.Status == service.StatusFinished {
		if g.Winner != nil {
			fmt.Fprintf(w, "Recorded winner: %s\n", *g.Winner)
		} else {
			fmt.Fprintln(w, "Recorded winner: none")
		}
	}
}

package main

import (
	"fmt"
	"path/filepath"

	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/service"
)

// ValidationResult captures the outcome of validating a single file
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateGame loads a game file and checks its record: identities, status,
// the move log replay and the recorded winner against the replayed board.
func validateGame(path string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(path),
		Valid:  true,
		Errors: []string{},
	}
	fail := func(format string, args ...any) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	g, err := loadGame(path)
	if err != nil {
		fail("%v", err)
		return result
	}

	if g.ID == "" {
		fail("Game id is empty")
	}
	if g.RoomID == "" {
		fail("Room id is empty")
	}

	x, o := g.Players[0], g.Players[1]
	if x.IdentityID == "" || o.IdentityID == "" {
		fail("Both players need an identity")
	} else if x.IdentityID == o.IdentityID {
		fail("Players share identity %s", x.IdentityID)
	}

	switch g.Status {
	case service.StatusInProgress, service.StatusFinished:
	case service.StatusWaiting:
		if len(g.Moves) > 0 {
			fail("Waiting game has %d moves", len(g.Moves))
		}
	default:
		fail("Unknown status %q", g.Status)
	}

	if !g.CreatedAt.IsZero() && g.UpdatedAt.Before(g.CreatedAt) {
		fail("Updated %s before created %s", g.UpdatedAt, g.CreatedAt)
	}

	state, err := engine.Replay(g.Moves)
	if err != nil {
		fail("Move log does not replay: %v", err)
		return result
	}

	if g.Winner == nil {
		return result
	}
	if g.Status != service.StatusFinished {
		fail("Winner %s recorded on a %s game", *g.Winner, g.Status)
	}
	if err := state.ConfirmWinner(g.Winner); err != nil {
		fail("Recorded winner %s: %v", *g.Winner, err)
	}
	return result
}

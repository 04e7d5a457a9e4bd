package engine

import "fmt"

// Validate checks a move against the current board without applying it
func (s *State) Validate(mv Move) error {
	if s.Terminal() {
		return ErrGameFinished
	}
	if mv.Idx < 0 || mv.Idx >= BoardSize {
		return fmt.Errorf("%w: %d", ErrCellOutOfRange, mv.Idx)
	}
	if !mv.Symbol.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMark, mv.Symbol)
	}
	if mv.Symbol != s.Turn {
		return fmt.Errorf("%w: %s to play", ErrWrongTurn, s.Turn)
	}
	if mv.NextTurn != mv.Symbol.Opponent() {
		return fmt.Errorf("%w: got %q", ErrBadNextTurn, mv.NextTurn)
	}
	if s.Board[mv.Idx] != Empty {
		return fmt.Errorf("%w: %d", ErrCellOccupied, mv.Idx)
	}
	return nil
}

// OpenCells lists the empty cells in index order
func (s *State) OpenCells() []int {
	if s.Terminal() {
		return nil
	}
	cells := make([]int, 0, BoardSize)
	for i, m := range s.Board {
		if m == Empty {
			cells = append(cells, i)
		}
	}
	return cells
}

// ConfirmWinner checks a claimed result against the board. A nil claim means
// draw; the board must already be decided and show the same result.
func (s *State) ConfirmWinner(claim *Mark) error {
	if !s.Terminal() {
		return ErrNotDecided
	}
	switch s.Outcome {
	case OutcomeDraw:
		if claim != nil && *claim != Empty {
			return fmt.Errorf("%w: board is a draw, claimed %s", ErrWrongResult, *claim)
		}
	case OutcomeWin:
		if claim == nil || *claim != s.Winner {
			return fmt.Errorf("%w: board won by %s", ErrWrongResult, s.Winner)
		}
	}
	return nil
}

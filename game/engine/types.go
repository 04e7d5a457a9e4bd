package engine

import "errors"

// Mark is the symbol a participant places on the board
type Mark string

const (
	Empty Mark = ""
	X     Mark = "X"
	O     Mark = "O"

	// Board geometry
	BoardSize = 9
	RowLength = 3

	// StartingMark moves first on an empty board
	StartingMark = X
)

var (
	ErrCellOutOfRange = errors.New("cell index out of range")
	ErrCellOccupied   = errors.New("cell already occupied")
	ErrInvalidMark    = errors.New("invalid mark")
	ErrWrongTurn      = errors.New("not this mark's turn")
	ErrBadNextTurn    = errors.New("next turn must be the opposing mark")
	ErrGameFinished   = errors.New("board already decided")
	ErrNotDecided     = errors.New("board not decided yet")
	ErrWrongResult    = errors.New("claimed result does not match board")
)

// Valid reports whether m is one of the two playable marks
func (m Mark) Valid() bool {
	return m == X || m == O
}

// Opponent returns the opposing mark, or Empty for an invalid mark
func (m Mark) Opponent() Mark {
	switch m {
	case X:
		return O
	case O:
		return X
	default:
		return Empty
	}
}

// Board is the fixed 3x3 grid, indexed row-major 0..8
type Board [BoardSize]Mark

// Move is a single append-only entry of a game's move log
type Move struct {
	Idx      int  `json:"idx"`
	Symbol   Mark `json:"symbol"`
	NextTurn Mark `json:"nextTurn"`
}

// Outcome describes how a board was decided
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeWin  Outcome = "win"
	OutcomeDraw Outcome = "draw"
)

// State is the board reconstructed from a move log
type State struct {
	Board   Board   `json:"board"`
	Turn    Mark    `json:"turn"`
	Moves   int     `json:"moves"`
	Outcome Outcome `json:"outcome,omitempty"`
	Winner  Mark    `json:"winner,omitempty"`
	Line    []int   `json:"line,omitempty"` // winning triple, when Outcome is win
}

// Terminal reports whether the board has been decided
func (s *State) Terminal() bool {
	return s.Outcome != OutcomeNone
}

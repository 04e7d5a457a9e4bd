package engine

import "fmt"

// NewState returns the state of an empty board
func NewState() State {
	return State{Turn: StartingMark}
}

// Replay reconstructs board state by applying moves strictly in log order.
// Every move is validated exactly as it was when first accepted, so a log that
// replays cleanly is one the server could have produced.
func Replay(moves []Move) (State, error) {
	state := NewState()
	for i, mv := range moves {
		if err := state.Apply(mv); err != nil {
			return state, fmt.Errorf("move %d: %w", i+1, err)
		}
	}
	return state, nil
}

// Apply validates mv against the current state and, when legal, places it and
// recomputes the outcome. The state is left untouched on error.
func (s *State) Apply(mv Move) error {
	if err := s.Validate(mv); err != nil {
		return err
	}

	s.Board[mv.Idx] = mv.Symbol
	s.Moves++
	s.Turn = mv.NextTurn
	s.evaluate()
	return nil
}

// Clone returns a deep copy of the state
func (s State) Clone() State {
	out := s
	if s.Line != nil {
		out.Line = append([]int(nil), s.Line...)
	}
	return out
}

// evaluate recomputes terminal detection from the board alone
func (s *State) evaluate() {
	if winner, line, ok := FindWinner(s.Board); ok {
		s.Outcome = OutcomeWin
		s.Winner = winner
		s.Line = line
		return
	}
	if IsFull(s.Board) {
		s.Outcome = OutcomeDraw
		s.Winner = Empty
		s.Line = nil
	}
}

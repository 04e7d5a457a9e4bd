package engine

import (
	"errors"
	"reflect"
	"testing"
)

// play builds a legal alternating move log starting with X
func play(cells ...int) []Move {
	moves := make([]Move, 0, len(cells))
	mark := StartingMark
	for _, idx := range cells {
		moves = append(moves, Move{Idx: idx, Symbol: mark, NextTurn: mark.Opponent()})
		mark = mark.Opponent()
	}
	return moves
}

func TestReplayEmptyLog(t *testing.T) {
	state, err := Replay(nil)
	if err != nil {
		t.Fatalf("Replay of empty log failed: %v", err)
	}
	if state.Turn != X {
		t.Errorf("Expected X to start, got %q", state.Turn)
	}
	if state.Terminal() {
		t.Error("Empty board must not be terminal")
	}
	if state.Board != (Board{}) {
		t.Error("Expected empty board")
	}
}

func TestReplayDeterminism(t *testing.T) {
	moves := play(4, 0, 8, 2, 1, 7, 6, 3, 5)

	// Apply incrementally and compare against a full replay of each prefix
	live := NewState()
	for i, mv := range moves {
		if err := live.Apply(mv); err != nil {
			t.Fatalf("Apply move %d failed: %v", i, err)
		}

		replayed, err := Replay(moves[:i+1])
		if err != nil {
			t.Fatalf("Replay prefix %d failed: %v", i+1, err)
		}
		if !reflect.DeepEqual(live, replayed) {
			t.Fatalf("Prefix %d diverged: live=%+v replayed=%+v", i+1, live, replayed)
		}
	}
}

func TestReplayWinOnTopRow(t *testing.T) {
	// X: 0,1,2  O: 3,4
	state, err := Replay(play(0, 3, 1, 4, 2))
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if state.Outcome != OutcomeWin {
		t.Fatalf("Expected win, got %q", state.Outcome)
	}
	if state.Winner != X {
		t.Errorf("Expected X to win, got %q", state.Winner)
	}
	if !reflect.DeepEqual(state.Line, []int{0, 1, 2}) {
		t.Errorf("Expected winning line [0 1 2], got %v", state.Line)
	}
}

func TestReplayDraw(t *testing.T) {
	// X O X
	// X O O
	// O X X
	state, err := Replay(play(0, 1, 2, 4, 3, 5, 7, 6, 8))
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if state.Outcome != OutcomeDraw {
		t.Fatalf("Expected draw, got %q (winner %q)", state.Outcome, state.Winner)
	}
	if state.Winner != Empty || state.Line != nil {
		t.Error("Draw must not carry a winner or line")
	}
	if err := state.ConfirmWinner(nil); err != nil {
		t.Errorf("Draw should confirm a nil winner: %v", err)
	}
	x := X
	if err := state.ConfirmWinner(&x); !errors.Is(err, ErrWrongResult) {
		t.Errorf("Expected ErrWrongResult for claimed X on draw, got %v", err)
	}
}

func TestReplayRejectsMoveAfterWin(t *testing.T) {
	moves := append(play(0, 3, 1, 4, 2), Move{Idx: 5, Symbol: O, NextTurn: X})

	_, err := Replay(moves)
	if !errors.Is(err, ErrGameFinished) {
		t.Errorf("Expected ErrGameFinished, got %v", err)
	}
}

func TestReplayTurnFollowsLastMove(t *testing.T) {
	state, err := Replay(play(4))
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if state.Turn != O {
		t.Errorf("Expected O to play after X, got %q", state.Turn)
	}
	if state.Board[4] != X {
		t.Errorf("Expected cell 4 = X, got %q", state.Board[4])
	}
}

func TestConfirmWinnerUndecided(t *testing.T) {
	state, _ := Replay(play(4, 0))
	x := X
	if err := state.ConfirmWinner(&x); !errors.Is(err, ErrNotDecided) {
		t.Errorf("Expected ErrNotDecided, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	state, _ := Replay(play(0, 3, 1, 4, 2))
	clone := state.Clone()
	clone.Line[0] = 7
	clone.Board[8] = O

	if state.Line[0] != 0 || state.Board[8] != Empty {
		t.Error("Clone must not share memory with the original")
	}
}

package engine

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	base, err := Replay(play(4))
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	tests := []struct {
		name string
		move Move
		want error
	}{
		{"legal move", Move{Idx: 0, Symbol: O, NextTurn: X}, nil},
		{"negative index", Move{Idx: -1, Symbol: O, NextTurn: X}, ErrCellOutOfRange},
		{"index past board", Move{Idx: 9, Symbol: O, NextTurn: X}, ErrCellOutOfRange},
		{"occupied cell", Move{Idx: 4, Symbol: O, NextTurn: X}, ErrCellOccupied},
		{"wrong turn", Move{Idx: 0, Symbol: X, NextTurn: O}, ErrWrongTurn},
		{"bad next turn", Move{Idx: 0, Symbol: O, NextTurn: O}, ErrBadNextTurn},
		{"invalid symbol", Move{Idx: 0, Symbol: "Z", NextTurn: X}, ErrInvalidMark},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := base.Validate(tt.move)
			if tt.want == nil {
				if err != nil {
					t.Errorf("Expected move to be legal, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestApplyLeavesStateOnError(t *testing.T) {
	state, _ := Replay(play(4))
	before := state.Clone()

	if err := state.Apply(Move{Idx: 4, Symbol: O, NextTurn: X}); err == nil {
		t.Fatal("Expected error for occupied cell")
	}
	if state.Board != before.Board || state.Turn != before.Turn || state.Moves != before.Moves {
		t.Error("State changed after rejected move")
	}
}

func TestOpenCells(t *testing.T) {
	state, _ := Replay(play(0, 4, 8))
	open := state.OpenCells()

	expected := []int{1, 2, 3, 5, 6, 7}
	if len(open) != len(expected) {
		t.Fatalf("Expected %d open cells, got %d", len(expected), len(open))
	}
	for i := range expected {
		if open[i] != expected[i] {
			t.Errorf("Expected open cell %d at %d, got %d", expected[i], i, open[i])
		}
	}

	finished, _ := Replay(play(0, 3, 1, 4, 2))
	if cells := finished.OpenCells(); cells != nil {
		t.Errorf("Expected no open cells on a decided board, got %v", cells)
	}
}

func TestRender(t *testing.T) {
	state, _ := Replay(play(0, 4, 8))
	rows := Render(state.Board)

	expected := []string{"X..", ".O.", "..X"}
	for i := range expected {
		if rows[i] != expected[i] {
			t.Errorf("Row %d: expected %q, got %q", i, expected[i], rows[i])
		}
	}
	if CountMarks(state.Board, X) != 2 || CountMarks(state.Board, O) != 1 {
		t.Error("CountMarks disagrees with board contents")
	}
}

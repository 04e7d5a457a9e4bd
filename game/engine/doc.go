// Package engine provides the board rules for a two-player tic-tac-toe game.
//
// The engine package implements:
//   - A fixed 9-cell board indexed row-major 0..8
//   - Move validation (range, occupancy, turn order, next-turn mark)
//   - Deterministic replay of an append-only move log
//   - Terminal detection over the 8 winning triples, or a full board draw
//
// Core Types:
//
// Move is one entry of a game's move log. State is the board reconstructed
// from a log, including whose turn it is and, once decided, the outcome.
//
// Usage:
//
//	state, err := engine.Replay(moves)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	if err := state.Apply(engine.Move{Idx: 4, Symbol: engine.X, NextTurn: engine.O}); err != nil {
//		// rejected: the board is unchanged
//	}
//
// Replay:
//
// The server never trusts client-held board state. A resuming participant is
// seeded from the board replayed here, and claimed results are confirmed with
// ConfirmWinner against the same replay.
package engine

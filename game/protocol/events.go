package protocol

import (
	"github.com/wricardo/tictactoe-arena/game/engine"
)

// Kind names an event on the wire
type Kind string

const (
	// client -> server
	KindJoin     Kind = "join"
	KindMove     Kind = "move"
	KindGameOver Kind = "gameOver"
	KindReset    Kind = "reset"

	// server -> client
	KindWaiting              Kind = "waiting"
	KindStartGame            Kind = "startGame"
	KindResumeGame           Kind = "resumeGame"
	KindGameOverSaved        Kind = "gameOverSaved"
	KindOpponentDisconnected Kind = "opponentDisconnected"
	KindError                Kind = "error"

	// never on the wire; raised by the transport
	KindDisconnect Kind = "disconnect"
	KindInvalid    Kind = "invalid"
)

// Inbound is an event received from a connection. The set is closed: only the
// types in this file implement it.
type Inbound interface {
	Kind() Kind
	inbound()
}

// Join asks to be matched, or resumed into an in-progress game
type Join struct {
	Name string `json:"name"`
}

// Move places a mark. Symbol and NextTurn are client-reported and checked
// against the replayed board.
type Move struct {
	Idx      int         `json:"idx"`
	Symbol   engine.Mark `json:"symbol"`
	NextTurn engine.Mark `json:"nextTurn"`
}

// GameOver reports the result the client observed. A nil winner means draw.
type GameOver struct {
	Winner *engine.Mark `json:"winner"`
}

// Reset abandons the current game
type Reset struct{}

// Disconnect is raised by the transport when a connection closes
type Disconnect struct{}

func (Join) Kind() Kind       { return KindJoin }
func (Move) Kind() Kind       { return KindMove }
func (GameOver) Kind() Kind   { return KindGameOver }
func (Reset) Kind() Kind      { return KindReset }
func (Disconnect) Kind() Kind { return KindDisconnect }

func (Join) inbound()       {}
func (Move) inbound()       {}
func (GameOver) inbound()   {}
func (Reset) inbound()      {}
func (Disconnect) inbound() {}

// EngineMove converts the event into a move log entry
func (m Move) EngineMove() engine.Move {
	return engine.Move{Idx: m.Idx, Symbol: m.Symbol, NextTurn: m.NextTurn}
}

// Outbound is an event sent to one connection or broadcast to a room
type Outbound interface {
	Kind() Kind
}

// Waiting tells a player they hold the waiting slot
type Waiting struct{}

// StartGame announces a fresh match to one of its two players
type StartGame struct {
	GameID   string      `json:"gameId"`
	RoomID   string      `json:"roomId"`
	Symbol   engine.Mark `json:"symbol"`
	Opponent string      `json:"opponent"`
}

// ResumeGame restores an in-progress game for a returning player
type ResumeGame struct {
	GameID   string        `json:"gameId"`
	RoomID   string        `json:"roomId"`
	Symbol   engine.Mark   `json:"symbol"`
	Opponent string        `json:"opponent"`
	Board    engine.Board  `json:"board"`
	Turn     engine.Mark   `json:"turn"`
	Moves    []engine.Move `json:"moves"`
}

// MoveMade relays an accepted move to the room
type MoveMade struct {
	Idx      int         `json:"idx"`
	Symbol   engine.Mark `json:"symbol"`
	NextTurn engine.Mark `json:"nextTurn"`
}

// GameOverSaved confirms the recorded result
type GameOverSaved struct {
	Winner *engine.Mark `json:"winner"`
}

// ResetSignal tells the room the game was abandoned
type ResetSignal struct{}

// OpponentDisconnected tells the room a participant's connection dropped
type OpponentDisconnected struct{}

// Error reports a rejected event to its sender
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (Waiting) Kind() Kind              { return KindWaiting }
func (StartGame) Kind() Kind            { return KindStartGame }
func (ResumeGame) Kind() Kind           { return KindResumeGame }
func (MoveMade) Kind() Kind             { return KindMove }
func (GameOverSaved) Kind() Kind        { return KindGameOverSaved }
func (ResetSignal) Kind() Kind          { return KindReset }
func (OpponentDisconnected) Kind() Kind { return KindOpponentDisconnected }
func (Error) Kind() Kind                { return KindError }

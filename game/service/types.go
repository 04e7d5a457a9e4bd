package service

import (
	"time"

	"github.com/wricardo/tictactoe-arena/game/engine"
)

// Status is the lifecycle stage of a game
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in-progress"
	StatusFinished   Status = "finished"
)

// Participant is a registered identity taking part in a game
type Participant struct {
	IdentityID string `json:"id"`
	Name       string `json:"name"`
}

// Game is a durable record of one match between two identities.
// Players[0] plays X and moves first; Players[1] plays O.
type Game struct {
	ID        string         `json:"id"`
	RoomID    string         `json:"roomId"`
	Players   [2]Participant `json:"players"`
	Status    Status         `json:"status"`
	Moves     []engine.Move  `json:"moves"`
	Winner    *engine.Mark   `json:"winner"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy safe to hand out of a lock
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	out := *g
	out.Moves = append([]engine.Move{}, g.Moves...)
	if g.Winner != nil {
		w := *g.Winner
		out.Winner = &w
	}
	return &out
}

// MarkFor returns the mark an identity plays in this game
func (g *Game) MarkFor(identityID string) (engine.Mark, bool) {
	switch identityID {
	case g.Players[0].IdentityID:
		return engine.X, true
	case g.Players[1].IdentityID:
		return engine.O, true
	default:
		return engine.Empty, false
	}
}

// OpponentOf returns the other participant of the game
func (g *Game) OpponentOf(identityID string) (Participant, bool) {
	switch identityID {
	case g.Players[0].IdentityID:
		return g.Players[1], true
	case g.Players[1].IdentityID:
		return g.Players[0], true
	default:
		return Participant{}, false
	}
}

// Has reports whether the identity is one of the two participants
func (g *Game) Has(identityID string) bool {
	_, ok := g.MarkFor(identityID)
	return ok
}

// Snapshot is a game together with the board replayed from its move log
type Snapshot struct {
	Game  *Game        `json:"game"`
	State engine.State `json:"state"`
}

// Ticket is a request to be matched, tied to the connection that made it
type Ticket struct {
	ConnectionID string
	Participant
}

// DirectiveKind tells the router what a join resolved to
type DirectiveKind string

const (
	DirectiveWait   DirectiveKind = "wait"
	DirectiveStart  DirectiveKind = "start"
	DirectiveResume DirectiveKind = "resume"
)

// Directive is the outcome of a join. For a start, First held the waiting
// slot and plays X while Second plays O.
type Directive struct {
	Kind   DirectiveKind
	Game   *Game
	State  engine.State
	First  Ticket
	Second Ticket
}

// Connection is the registry record of a live transport connection
type Connection struct {
	ID         string
	IdentityID string
	Name       string
	GameID     string
	RoomID     string
	Mark       engine.Mark
	OpenedAt   time.Time
}

// Bound reports whether the connection has an identity
func (c Connection) Bound() bool {
	return c.IdentityID != ""
}

// InGame reports whether the connection is attached to a game room
func (c Connection) InGame() bool {
	return c.GameID != ""
}

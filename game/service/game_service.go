package service

import (
	"context"

	"github.com/wricardo/tictactoe-arena/auth"
	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/protocol"
)

// SessionStore owns every game and its move log. The callbacks passed to the
// mutating operations run after the change is durable and before the per-game
// lock is released, so fan-out happens in the same order as the log.
type SessionStore interface {
	CreateSession(ctx context.Context, x, o Participant) (*Game, error)
	AppendMove(ctx context.Context, gameID string, mv engine.Move, then func(*Game, engine.State)) error
	Finish(ctx context.Context, gameID string, winner *engine.Mark, then func(*Game)) error
	Reset(ctx context.Context, gameID string, then func(*Game)) error
	Resume(ctx context.Context, identityID string) (*Snapshot, error)
	Get(ctx context.Context, gameID string) (*Snapshot, error)
	ListForIdentity(ctx context.Context, identityID string) ([]*Game, error)
}

// Matchmaker pairs waiting identities or resumes them into their game
type Matchmaker interface {
	Join(ctx context.Context, t Ticket) (*Directive, error)
	Leave(connectionID string) bool
}

// ConnectionRegistry tracks live connections and what they are bound to
type ConnectionRegistry interface {
	Add(id string) Connection
	Bind(id string, p Participant) error
	Attach(id, gameID, roomID string, mark engine.Mark) error
	Detach(id string) error
	Get(id string) (Connection, bool)
	Remove(id string) (Connection, bool)
	InGame(gameID string) []Connection
}

// IdentityResolver looks up registered identities by name
type IdentityResolver interface {
	LookupByName(ctx context.Context, name string) (*auth.Identity, error)
}

// Emitter delivers events to connections and rooms
type Emitter interface {
	Send(connectionID string, ev protocol.Outbound)
	Broadcast(roomID string, ev protocol.Outbound, except ...string)
	JoinRoom(connectionID, roomID string)
	LeaveRoom(connectionID string)
}

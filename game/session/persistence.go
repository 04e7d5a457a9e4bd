package session

import (
	"context"

	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/service"
)

// Persistence is the durable backing of the Store. Every method must have
// completed its write before returning nil.
type Persistence interface {
	// Create records a new in-progress game with an empty move log
	Create(ctx context.Context, g *service.Game) error

	// AppendMove records mv at position seq of the game's log. seq must equal
	// the number of moves already recorded.
	AppendMove(ctx context.Context, gameID string, seq int, mv engine.Move) error

	// Finish marks the game finished with the given winner (nil for draw or reset)
	Finish(ctx context.Context, gameID string, winner *engine.Mark) error

	// Load returns a game with its full move log, or service.ErrSessionNotFound
	Load(ctx context.Context, gameID string) (*service.Game, error)

	// FindActive returns the newest in-progress game of an identity, or nil
	FindActive(ctx context.Context, identityID string) (*service.Game, error)

	// ListActive returns every in-progress game
	ListActive(ctx context.Context) ([]*service.Game, error)

	// ListForIdentity returns an identity's games, newest first
	ListForIdentity(ctx context.Context, identityID string) ([]*service.Game, error)
}

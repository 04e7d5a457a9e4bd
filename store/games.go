package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/oops"

	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/service"
)

const gameColumns = `id, room_id, player_x, player_x_name, player_o, player_o_name, status, winner, created_at, updated_at`

// GameRepository persists games and their move logs in PostgreSQL
type GameRepository struct {
	pool Pool
	now  func() time.Time
}

// NewGameRepository creates a repository over pool
func NewGameRepository(pool Pool) *GameRepository {
	return &GameRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new game row
func (r *GameRepository) Create(ctx context.Context, g *service.Game) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO games (`+gameColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		g.ID, g.RoomID,
		g.Players[0].IdentityID, g.Players[0].Name,
		g.Players[1].IdentityID, g.Players[1].Name,
		string(g.Status), markArg(g.Winner), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return oops.With("operation", "create game", "game", g.ID).Wrap(err)
	}
	return nil
}

// AppendMove inserts a move at seq and touches the game in one transaction.
// The (game_id, seq) primary key rejects out-of-order or duplicate writes.
func (r *GameRepository) AppendMove(ctx context.Context, gameID string, seq int, mv engine.Move) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.With("operation", "begin append move", "game", gameID).Wrap(err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE games SET updated_at = $2 WHERE id = $1 AND status = 'in-progress'`,
		gameID, r.now())
	if err != nil {
		_ = tx.Rollback(ctx)
		return oops.With("operation", "touch game", "game", gameID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return oops.With("game", gameID).Wrap(service.ErrSessionNotActive)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO game_moves (game_id, seq, idx, symbol, next_turn)
		 VALUES ($1, $2, $3, $4, $5)`,
		gameID, seq, mv.Idx, string(mv.Symbol), string(mv.NextTurn))
	if err != nil {
		_ = tx.Rollback(ctx)
		return oops.With("operation", "insert move", "game", gameID, "seq", seq).Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return oops.With("operation", "commit append move", "game", gameID).Wrap(err)
	}
	return nil
}

// Finish marks a game finished
func (r *GameRepository) Finish(ctx context.Context, gameID string, winner *engine.Mark) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE games SET status = 'finished', winner = $2, updated_at = $3 WHERE id = $1`,
		gameID, markArg(winner), r.now())
	if err != nil {
		return oops.With("operation", "finish game", "game", gameID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("game", gameID).Wrap(service.ErrSessionNotFound)
	}
	return nil
}

// Load returns a game with its move log
func (r *GameRepository) Load(ctx context.Context, gameID string) (*service.Game, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, gameID)
	g, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With("game", gameID).Wrap(service.ErrSessionNotFound)
	}
	if err != nil {
		return nil, oops.With("operation", "load game", "game", gameID).Wrap(err)
	}

	if g.Moves, err = r.moves(ctx, gameID); err != nil {
		return nil, err
	}
	return g, nil
}

// FindActive returns the newest in-progress game of an identity, or nil
func (r *GameRepository) FindActive(ctx context.Context, identityID string) (*service.Game, error) {
	games, err := r.list(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE status = 'in-progress' AND (player_x = $1 OR player_o = $1)
		 ORDER BY created_at DESC LIMIT 1`,
		identityID)
	if err != nil || len(games) == 0 {
		return nil, err
	}
	return games[0], nil
}

// ListActive returns every in-progress game
func (r *GameRepository) ListActive(ctx context.Context) ([]*service.Game, error) {
	return r.list(ctx,
		`SELECT `+gameColumns+` FROM games WHERE status = 'in-progress' ORDER BY created_at DESC`)
}

// ListForIdentity returns an identity's games, newest first
func (r *GameRepository) ListForIdentity(ctx context.Context, identityID string) ([]*service.Game, error) {
	return r.list(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE player_x = $1 OR player_o = $1
		 ORDER BY created_at DESC`,
		identityID)
}

// list runs a game query and attaches each game's moves
func (r *GameRepository) list(ctx context.Context, sql string, args ...any) ([]*service.Game, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, oops.With("operation", "list games").Wrap(err)
	}

	var games []*service.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			rows.Close()
			return nil, oops.With("operation", "scan game row").Wrap(err)
		}
		games = append(games, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate games").Wrap(err)
	}

	for _, g := range games {
		if g.Moves, err = r.moves(ctx, g.ID); err != nil {
			return nil, err
		}
	}
	return games, nil
}

func (r *GameRepository) moves(ctx context.Context, gameID string) ([]engine.Move, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT idx, symbol, next_turn FROM game_moves WHERE game_id = $1 ORDER BY seq`,
		gameID)
	if err != nil {
		return nil, oops.With("operation", "load moves", "game", gameID).Wrap(err)
	}
	defer rows.Close()

	moves := []engine.Move{}
	for rows.Next() {
		var (
			idx              int
			symbol, nextTurn string
		)
		if err := rows.Scan(&idx, &symbol, &nextTurn); err != nil {
			return nil, oops.With("operation", "scan move row", "game", gameID).Wrap(err)
		}
		moves = append(moves, engine.Move{Idx: idx, Symbol: engine.Mark(symbol), NextTurn: engine.Mark(nextTurn)})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate moves", "game", gameID).Wrap(err)
	}
	return moves, nil
}

func scanGame(row pgx.Row) (*service.Game, error) {
	var (
		g      service.Game
		status string
		winner pgtype.Text
	)
	err := row.Scan(&g.ID, &g.RoomID,
		&g.Players[0].IdentityID, &g.Players[0].Name,
		&g.Players[1].IdentityID, &g.Players[1].Name,
		&status, &winner, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.Status = service.Status(status)
	if winner.Valid {
		w := engine.Mark(winner.String)
		g.Winner = &w
	}
	return &g, nil
}

func markArg(m *engine.Mark) any {
	if m == nil {
		return nil
	}
	return string(*m)
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/samber/oops"

	"github.com/wricardo/tictactoe-arena/auth"
	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/protocol"
	"github.com/wricardo/tictactoe-arena/metrics"
)

// Router dispatches inbound connection events to matchmaking and the session
// store, and fans the results out through an Emitter. Handle is called from
// one goroutine per connection; all shared state lives behind the queue, the
// store and the registry.
type Router struct {
	identities IdentityResolver
	queue      Matchmaker
	sessions   SessionStore
	conns      ConnectionRegistry
	emit       Emitter

	metrics    *metrics.Metrics
	logger     *slog.Logger
	nameLookup bool
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithMetrics records event outcomes on m
func WithMetrics(m *metrics.Metrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// WithLogger sets the router's logger
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = l }
}

// WithNameLookup lets unauthenticated connections join by display name alone
func WithNameLookup(enabled bool) RouterOption {
	return func(r *Router) { r.nameLookup = enabled }
}

// NewRouter creates a router over its collaborators
func NewRouter(identities IdentityResolver, queue Matchmaker, sessions SessionStore, conns ConnectionRegistry, emit Emitter, opts ...RouterOption) *Router {
	r := &Router{
		identities: identities,
		queue:      queue,
		sessions:   sessions,
		conns:      conns,
		emit:       emit,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers a new connection, bound to identity when the transport
// authenticated it
func (r *Router) Connect(ctx context.Context, connID string, identity *auth.Identity) {
	r.conns.Add(connID)
	if identity != nil {
		_ = r.conns.Bind(connID, Participant{IdentityID: identity.ID, Name: identity.Name})
	}
	r.metrics.ConnectionOpened()
	r.logger.DebugContext(ctx, "connection opened", "conn", connID, "authenticated", identity != nil)
}

// Disconnect releases everything held by a closed connection
func (r *Router) Disconnect(ctx context.Context, connID string) {
	_ = r.Handle(ctx, connID, protocol.Disconnect{})
}

// Handle dispatches one inbound event. A rejected event is answered with an
// error event to its sender and the error is returned.
func (r *Router) Handle(ctx context.Context, connID string, ev protocol.Inbound) error {
	var err error
	switch ev := ev.(type) {
	case protocol.Join:
		err = r.join(ctx, connID, ev)
	case protocol.Move:
		err = r.move(ctx, connID, ev)
	case protocol.GameOver:
		err = r.gameOver(ctx, connID, ev)
	case protocol.Reset:
		err = r.reset(ctx, connID)
	case protocol.Disconnect:
		r.disconnect(ctx, connID)
		return nil
	default:
		err = oops.With("event", ev.Kind()).Wrap(protocol.ErrUnknownEvent)
	}

	if err != nil {
		r.Reject(ctx, connID, ev.Kind(), err)
	}
	return err
}

// Reject answers a connection with an error event
func (r *Router) Reject(ctx context.Context, connID string, kind protocol.Kind, err error) {
	out := ErrorEvent(err)
	level := slog.LevelWarn
	if out.Code == CodeInternal || out.Code == CodePersistenceFailure {
		level = slog.LevelError
	}
	r.logger.Log(ctx, level, "event rejected", "conn", connID, "event", kind, "code", out.Code, "error", err)
	r.metrics.EventRejected(string(kind), out.Code)
	r.emit.Send(connID, out)
}

func (r *Router) join(ctx context.Context, connID string, ev protocol.Join) error {
	conn, ok := r.conns.Get(connID)
	if !ok {
		return oops.With("conn", connID).Wrap(ErrNotJoined)
	}
	p, err := r.resolve(ctx, conn, ev.Name)
	if err != nil {
		return err
	}

	dir, err := r.queue.Join(ctx, Ticket{ConnectionID: connID, Participant: p})
	if err != nil {
		return err
	}

	switch dir.Kind {
	case DirectiveWait:
		r.emit.Send(connID, protocol.Waiting{})
	case DirectiveResume:
		g := dir.Game
		mark, _ := g.MarkFor(p.IdentityID)
		opp, _ := g.OpponentOf(p.IdentityID)
		r.supersede(ctx, connID, g, p.IdentityID)
		r.attach(ctx, connID, g, mark)
		r.emit.Send(connID, protocol.ResumeGame{
			GameID:   g.ID,
			RoomID:   g.RoomID,
			Symbol:   mark,
			Opponent: opp.Name,
			Board:    dir.State.Board,
			Turn:     dir.State.Turn,
			Moves:    g.Moves,
		})
		r.metrics.GameResumed()
		r.logger.InfoContext(ctx, "game resumed", "game", g.ID, "player", p.Name, "moves", len(g.Moves))
	case DirectiveStart:
		g := dir.Game
		r.attach(ctx, dir.First.ConnectionID, g, engine.X)
		r.attach(ctx, dir.Second.ConnectionID, g, engine.O)
		r.emit.Send(dir.First.ConnectionID, protocol.StartGame{
			GameID: g.ID, RoomID: g.RoomID, Symbol: engine.X, Opponent: dir.Second.Name,
		})
		r.emit.Send(dir.Second.ConnectionID, protocol.StartGame{
			GameID: g.ID, RoomID: g.RoomID, Symbol: engine.O, Opponent: dir.First.Name,
		})
		r.metrics.MatchStarted()
		r.logger.InfoContext(ctx, "game started", "game", g.ID, "x", dir.First.Name, "o", dir.Second.Name)
	}
	return nil
}

// resolve returns the participant a join acts for. An authenticated
// connection keeps its identity; otherwise the name is looked up when allowed.
func (r *Router) resolve(ctx context.Context, conn Connection, name string) (Participant, error) {
	name = strings.TrimSpace(name)
	if conn.Bound() {
		if name != "" && name != conn.Name {
			return Participant{}, oops.With("name", name, "identity", conn.Name).Wrap(ErrIdentityMismatch)
		}
		return Participant{IdentityID: conn.IdentityID, Name: conn.Name}, nil
	}

	if !r.nameLookup {
		return Participant{}, ErrUnauthenticated
	}
	if name == "" {
		return Participant{}, oops.With("name", name).Wrap(ErrIdentityNotFound)
	}
	identity, err := r.identities.LookupByName(ctx, name)
	if errors.Is(err, auth.ErrNotFound) {
		return Participant{}, oops.With("name", name).Wrap(ErrIdentityNotFound)
	}
	if err != nil {
		return Participant{}, oops.With("name", name).Wrapf(err, "lookup identity")
	}

	p := Participant{IdentityID: identity.ID, Name: identity.Name}
	if err := r.conns.Bind(conn.ID, p); err != nil {
		return Participant{}, oops.With("conn", conn.ID).Wrap(ErrNotJoined)
	}
	return p, nil
}

// attach binds a connection to a game's room. The connection may have closed
// since it was queued; its player can still resume later.
func (r *Router) attach(ctx context.Context, connID string, g *Game, mark engine.Mark) {
	if err := r.conns.Attach(connID, g.ID, g.RoomID, mark); err != nil {
		r.logger.DebugContext(ctx, "attach skipped", "conn", connID, "game", g.ID, "error", err)
		return
	}
	r.emit.JoinRoom(connID, g.RoomID)
}

// supersede detaches older connections of the same identity from a game so
// only the resuming connection stays in its room
func (r *Router) supersede(ctx context.Context, connID string, g *Game, identityID string) {
	for _, c := range r.conns.InGame(g.ID) {
		if c.ID == connID || c.IdentityID != identityID {
			continue
		}
		if err := r.conns.Detach(c.ID); err != nil {
			continue
		}
		r.emit.LeaveRoom(c.ID)
		r.logger.InfoContext(ctx, "connection superseded", "conn", c.ID, "by", connID, "game", g.ID)
	}
}

// current returns the game-attached connection an event came from
func (r *Router) current(connID string) (Connection, error) {
	conn, ok := r.conns.Get(connID)
	if !ok || !conn.Bound() {
		return Connection{}, oops.With("conn", connID).Wrap(ErrNotJoined)
	}
	if !conn.InGame() {
		return Connection{}, oops.With("conn", connID).Wrap(ErrNotInSession)
	}
	return conn, nil
}

func (r *Router) move(ctx context.Context, connID string, ev protocol.Move) error {
	conn, err := r.current(connID)
	if err != nil {
		return err
	}

	mv := ev.EngineMove()
	if mv.Symbol != conn.Mark {
		r.metrics.MoveRejected()
		return oops.With("game", conn.GameID, "symbol", mv.Symbol, "plays", conn.Mark).
			Wrapf(ErrIllegalMove, "connection plays %s", conn.Mark)
	}

	err = r.sessions.AppendMove(ctx, conn.GameID, mv, func(g *Game, _ engine.State) {
		r.emit.Broadcast(g.RoomID, protocol.MoveMade{Idx: mv.Idx, Symbol: mv.Symbol, NextTurn: mv.NextTurn})
	})
	if err != nil {
		r.metrics.MoveRejected()
		return err
	}
	r.metrics.MoveAccepted()
	return nil
}

func (r *Router) gameOver(ctx context.Context, connID string, ev protocol.GameOver) error {
	conn, err := r.current(connID)
	if err != nil {
		return err
	}

	return r.sessions.Finish(ctx, conn.GameID, ev.Winner, func(g *Game) {
		r.emit.Broadcast(g.RoomID, protocol.GameOverSaved{Winner: g.Winner})
		r.metrics.GameFinished(outcomeLabel(g.Winner))
		r.logger.InfoContext(ctx, "game finished", "game", g.ID, "winner", outcomeLabel(g.Winner))
	})
}

func (r *Router) reset(ctx context.Context, connID string) error {
	conn, err := r.current(connID)
	if err != nil {
		return err
	}

	return r.sessions.Reset(ctx, conn.GameID, func(g *Game) {
		r.emit.Broadcast(g.RoomID, protocol.ResetSignal{})
		r.metrics.GameFinished("reset")
		r.logger.InfoContext(ctx, "game reset", "game", g.ID, "by", conn.Name)
	})
}

func (r *Router) disconnect(ctx context.Context, connID string) {
	conn, ok := r.conns.Remove(connID)
	if r.queue.Leave(connID) {
		r.logger.DebugContext(ctx, "waiting slot released", "conn", connID)
	}
	r.emit.LeaveRoom(connID)
	if !ok {
		return
	}

	r.metrics.ConnectionClosed()
	if conn.RoomID != "" {
		r.emit.Broadcast(conn.RoomID, protocol.OpponentDisconnected{}, connID)
	}
	r.logger.DebugContext(ctx, "connection closed", "conn", connID, "game", conn.GameID)
}

func outcomeLabel(winner *engine.Mark) string {
	if winner == nil {
		return "draw"
	}
	return string(*winner)
}

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/service"
)

// Store is the authoritative in-memory set of games. Each game carries its own
// lock, which serializes every mutation of that game together with its
// persistence write and the caller's fan-out callback.
type Store struct {
	persistence Persistence
	logger      *slog.Logger
	now         func() time.Time

	mu     sync.RWMutex
	games  map[string]*entry
	active map[string]string // identity id -> in-progress game id
	warm   bool              // LoadActive has run; active is complete
}

type entry struct {
	mu    sync.Mutex
	game  *service.Game
	state engine.State
}

// NewStore creates a store backed by persistence
func NewStore(persistence Persistence, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		persistence: persistence,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		games:       make(map[string]*entry),
		active:      make(map[string]string),
	}
}

// CreateSession starts an in-progress game between two distinct identities.
// x moves first.
func (s *Store) CreateSession(ctx context.Context, x, o service.Participant) (*service.Game, error) {
	if x.IdentityID == "" || o.IdentityID == "" || x.IdentityID == o.IdentityID {
		return nil, oops.With("x", x.IdentityID, "o", o.IdentityID).Wrap(service.ErrSameIdentity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range []service.Participant{x, o} {
		if gameID, busy := s.active[p.IdentityID]; busy {
			return nil, oops.With("identity", p.IdentityID, "game", gameID).Wrap(service.ErrAlreadyInSession)
		}
	}

	now := s.now()
	id := NewGameID()
	g := &service.Game{
		ID:        id,
		RoomID:    RoomID(id),
		Players:   [2]service.Participant{x, o},
		Status:    service.StatusInProgress,
		Moves:     []engine.Move{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.persistence.Create(ctx, g); err != nil {
		return nil, s.persistFailed(ctx, id, "create", err)
	}

	s.games[id] = &entry{game: g, state: engine.NewState()}
	s.active[x.IdentityID] = id
	s.active[o.IdentityID] = id
	return g.Clone(), nil
}

// AppendMove validates mv against the replayed board, persists it, and only
// then appends it and calls then. Nothing is appended or fanned out when
// validation or the durable write fails.
func (s *Store) AppendMove(ctx context.Context, gameID string, mv engine.Move, then func(*service.Game, engine.State)) error {
	e, err := s.entry(ctx, gameID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.Status != service.StatusInProgress {
		return oops.With("game", gameID, "status", e.game.Status).Wrap(service.ErrSessionNotActive)
	}

	next := e.state.Clone()
	if err := next.Apply(mv); err != nil {
		return oops.With("game", gameID, "idx", mv.Idx, "symbol", mv.Symbol).
			Wrapf(service.ErrIllegalMove, "%v", err)
	}

	seq := len(e.game.Moves)
	if err := s.persistence.AppendMove(ctx, gameID, seq, mv); err != nil {
		return s.persistFailed(ctx, gameID, "append move", err)
	}

	e.game.Moves = append(e.game.Moves, mv)
	e.game.UpdatedAt = s.now()
	e.state = next

	if then != nil {
		then(e.game.Clone(), next.Clone())
	}
	return nil
}

// Finish records the result of a decided game. The claimed winner must match
// the replayed board. Finishing an already finished game is a no-op and does
// not call then.
func (s *Store) Finish(ctx context.Context, gameID string, winner *engine.Mark, then func(*service.Game)) error {
	e, err := s.entry(ctx, gameID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.Status == service.StatusFinished {
		return nil
	}

	if err := e.state.ConfirmWinner(winner); err != nil {
		if errors.Is(err, engine.ErrNotDecided) {
			return oops.With("game", gameID, "moves", len(e.game.Moves)).Wrap(service.ErrGameNotOver)
		}
		return oops.With("game", gameID).Wrapf(service.ErrIllegalMove, "%v", err)
	}

	var recorded *engine.Mark
	if e.state.Outcome == engine.OutcomeWin {
		w := e.state.Winner
		recorded = &w
	}
	return s.close(ctx, e, recorded, then)
}

// Reset abandons an in-progress game, leaving it finished without a winner.
// Players must join again to play another game.
func (s *Store) Reset(ctx context.Context, gameID string, then func(*service.Game)) error {
	e, err := s.entry(ctx, gameID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.game.Status != service.StatusInProgress {
		return oops.With("game", gameID, "status", e.game.Status).Wrap(service.ErrSessionNotActive)
	}
	return s.close(ctx, e, nil, then)
}

// close persists the finished status and releases both players. Callers hold e.mu.
func (s *Store) close(ctx context.Context, e *entry, winner *engine.Mark, then func(*service.Game)) error {
	gameID := e.game.ID
	if err := s.persistence.Finish(ctx, gameID, winner); err != nil {
		return s.persistFailed(ctx, gameID, "finish", err)
	}

	e.game.Status = service.StatusFinished
	e.game.Winner = winner
	e.game.UpdatedAt = s.now()

	s.mu.Lock()
	for _, p := range e.game.Players {
		if s.active[p.IdentityID] == gameID {
			delete(s.active, p.IdentityID)
		}
	}
	s.mu.Unlock()

	if then != nil {
		then(e.game.Clone())
	}
	return nil
}

// Resume returns the in-progress game of an identity with its replayed board.
// It returns nil when the identity has no game in progress. Once LoadActive has
// run the in-memory index is authoritative; before that a miss falls back to
// persistence.FindActive, which may scan every stored game.
func (s *Store) Resume(ctx context.Context, identityID string) (*service.Snapshot, error) {
	s.mu.RLock()
	gameID, ok := s.active[identityID]
	e := s.games[gameID]
	warm := s.warm
	s.mu.RUnlock()

	if ok && e != nil {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.game.Status == service.StatusInProgress {
			return &service.Snapshot{Game: e.game.Clone(), State: e.state.Clone()}, nil
		}
		return nil, nil
	}
	if warm {
		return nil, nil
	}

	g, err := s.persistence.FindActive(ctx, identityID)
	if err != nil {
		return nil, oops.With("identity", identityID).Wrapf(err, "find active game")
	}
	if g == nil {
		return nil, nil
	}

	e, err = s.adopt(ctx, g)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game.Status != service.StatusInProgress {
		return nil, nil
	}
	return &service.Snapshot{Game: e.game.Clone(), State: e.state.Clone()}, nil
}

// Get returns a game and its replayed board, reading through to persistence
func (s *Store) Get(ctx context.Context, gameID string) (*service.Snapshot, error) {
	s.mu.RLock()
	e, ok := s.games[gameID]
	s.mu.RUnlock()

	if ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		return &service.Snapshot{Game: e.game.Clone(), State: e.state.Clone()}, nil
	}

	g, err := s.persistence.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	state, err := engine.Replay(g.Moves)
	if err != nil {
		return nil, oops.With("game", gameID).Wrapf(err, "replay move log")
	}
	return &service.Snapshot{Game: g, State: state}, nil
}

// ListForIdentity returns the identity's games from persistence, newest first
func (s *Store) ListForIdentity(ctx context.Context, identityID string) ([]*service.Game, error) {
	return s.persistence.ListForIdentity(ctx, identityID)
}

// LoadActive pulls every in-progress game from persistence into memory and
// returns how many were adopted
func (s *Store) LoadActive(ctx context.Context) (int, error) {
	games, err := s.persistence.ListActive(ctx)
	if err != nil {
		return 0, oops.Wrapf(err, "list active games")
	}

	loaded := 0
	for _, g := range games {
		if _, err := s.adopt(ctx, g); err != nil {
			s.logger.WarnContext(ctx, "skipping unreadable game", "game", g.ID, "error", err)
			continue
		}
		loaded++
	}
	s.mu.Lock()
	s.warm = true
	s.mu.Unlock()
	if loaded > 0 {
		s.logger.InfoContext(ctx, "loaded in-progress games", "count", loaded)
	}
	return loaded, nil
}

// CleanupFinished drops finished games last touched before maxAge from memory.
// They stay readable through persistence.
func (s *Store) CleanupFinished(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.RLock()
	entries := make(map[string]*entry, len(s.games))
	for id, e := range s.games {
		entries[id] = e
	}
	s.mu.RUnlock()

	var stale []string
	for id, e := range entries {
		e.mu.Lock()
		if e.game.Status == service.StatusFinished && e.game.UpdatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
		e.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range stale {
		delete(s.games, id)
	}
	return len(stale)
}

// Count returns the number of games held in memory
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

// entry finds a game in memory, or recovers an in-progress one from persistence
func (s *Store) entry(ctx context.Context, gameID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.games[gameID]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}

	g, err := s.persistence.Load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return s.adopt(ctx, g)
}

// adopt replays a persisted game and installs it, keeping any copy another
// goroutine installed first
func (s *Store) adopt(ctx context.Context, g *service.Game) (*entry, error) {
	state, err := engine.Replay(g.Moves)
	if err != nil {
		return nil, oops.With("game", g.ID).Wrapf(err, "replay move log")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.games[g.ID]; ok {
		return existing, nil
	}
	e := &entry{game: g, state: state}
	s.games[g.ID] = e
	if g.Status == service.StatusInProgress {
		for _, p := range g.Players {
			s.active[p.IdentityID] = g.ID
		}
	}
	s.logger.DebugContext(ctx, "game recovered", "game", g.ID, "moves", len(g.Moves))
	return e, nil
}

func (s *Store) persistFailed(ctx context.Context, gameID, op string, err error) error {
	s.logger.ErrorContext(ctx, "persistence write failed", "game", gameID, "op", op, "error", err)
	return oops.With("game", gameID, "op", op, "cause", err.Error()).Wrap(service.ErrPersistenceFailure)
}

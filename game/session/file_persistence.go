package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/service"
)

// FilePersistence implements Persistence with one JSON file per game
type FilePersistence struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// FileOption configures a FilePersistence
type FileOption func(*FilePersistence)

// WithFileLogger sets the logger used to report unreadable game files
func WithFileLogger(logger *slog.Logger) FileOption {
	return func(fp *FilePersistence) {
		if logger != nil {
			fp.logger = logger
		}
	}
}

// NewFilePersistence creates a file-based persistence layer rooted at dir
func NewFilePersistence(dir string, opts ...FileOption) (*FilePersistence, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create games directory: %w", err)
	}
	fp := &FilePersistence{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(fp)
	}
	return fp, nil
}

// Create writes a new game file
func (fp *FilePersistence) Create(_ context.Context, g *service.Game) error {
	if g == nil {
		return fmt.Errorf("game cannot be nil")
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	if _, err := os.Stat(fp.path(g.ID)); err == nil {
		return oops.With("game", g.ID).Errorf("game already exists")
	}
	return fp.write(g)
}

// AppendMove adds a move to the game's log
func (fp *FilePersistence) AppendMove(_ context.Context, gameID string, seq int, mv engine.Move) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	g, err := fp.read(gameID)
	if err != nil {
		return err
	}
	if seq != len(g.Moves) {
		return oops.With("game", gameID, "seq", seq, "recorded", len(g.Moves)).
			Errorf("move sequence out of order")
	}
	g.Moves = append(g.Moves, mv)
	g.UpdatedAt = time.Now().UTC()
	return fp.write(g)
}

// Finish marks the game finished
func (fp *FilePersistence) Finish(_ context.Context, gameID string, winner *engine.Mark) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	g, err := fp.read(gameID)
	if err != nil {
		return err
	}
	g.Status = service.StatusFinished
	g.Winner = winner
	g.UpdatedAt = time.Now().UTC()
	return fp.write(g)
}

// Load reads a game file
func (fp *FilePersistence) Load(_ context.Context, gameID string) (*service.Game, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.read(gameID)
}

// FindActive returns the newest in-progress game the identity plays in
func (fp *FilePersistence) FindActive(_ context.Context, identityID string) (*service.Game, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	games, err := fp.scan(func(g *service.Game) bool {
		return g.Status == service.StatusInProgress && g.Has(identityID)
	})
	if err != nil || len(games) == 0 {
		return nil, err
	}
	return games[0], nil
}

// ListActive returns all in-progress games
func (fp *FilePersistence) ListActive(_ context.Context) ([]*service.Game, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.scan(func(g *service.Game) bool {
		return g.Status == service.StatusInProgress
	})
}

// ListForIdentity returns every game the identity played, newest first
func (fp *FilePersistence) ListForIdentity(_ context.Context, identityID string) ([]*service.Game, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.scan(func(g *service.Game) bool {
		return g.Has(identityID)
	})
}

// scan reads every game file matching keep, newest first. A file that cannot
// be read or decoded is logged and skipped so one bad file does not hide the
// rest of the directory.
func (fp *FilePersistence) scan(keep func(*service.Game) bool) ([]*service.Game, error) {
	entries, err := os.ReadDir(fp.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read games directory: %w", err)
	}

	var games []*service.Game
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		g, err := fp.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			fp.logger.Warn("skipping unreadable game file", "file", name, "error", err)
			continue
		}
		if keep(g) {
			games = append(games, g)
		}
	}

	sort.SliceStable(games, func(i, j int) bool {
		return games[i].CreatedAt.After(games[j].CreatedAt)
	})
	return games, nil
}

func (fp *FilePersistence) read(gameID string) (*service.Game, error) {
	data, err := os.ReadFile(fp.path(gameID))
	if os.IsNotExist(err) {
		return nil, oops.With("game", gameID).Wrap(service.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read game file: %w", err)
	}

	var g service.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game %s: %w", gameID, err)
	}
	if g.Moves == nil {
		g.Moves = []engine.Move{}
	}
	return &g, nil
}

// write replaces the game file atomically
func (fp *FilePersistence) write(g *service.Game) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal game: %w", err)
	}

	tmp, err := os.CreateTemp(fp.dir, g.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write game file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync game file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close game file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fp.path(g.ID)); err != nil {
		return fmt.Errorf("failed to replace game file: %w", err)
	}
	return nil
}

func (fp *FilePersistence) path(gameID string) string {
	return filepath.Join(fp.dir, fmt.Sprintf("%s.json", filepath.Base(gameID)))
}

package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/service"
)

func newGame(id string, x, o service.Participant, created time.Time) *service.Game {
	return &service.Game{
		ID:        id,
		RoomID:    RoomID(id),
		Players:   [2]service.Participant{x, o},
		Status:    service.StatusInProgress,
		Moves:     []engine.Move{},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestFilePersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fp, err := NewFilePersistence(dir)
	require.NoError(t, err)
	ctx := context.Background()

	g := newGame("g1", alice, bob, time.Now().UTC())
	require.NoError(t, fp.Create(ctx, g))
	assert.FileExists(t, filepath.Join(dir, "g1.json"))

	require.NoError(t, fp.AppendMove(ctx, "g1", 0, mv(4, engine.X)))
	require.NoError(t, fp.AppendMove(ctx, "g1", 1, mv(0, engine.O)))

	loaded, err := fp.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []engine.Move{mv(4, engine.X), mv(0, engine.O)}, loaded.Moves)
	assert.Equal(t, [2]service.Participant{alice, bob}, loaded.Players)

	o := engine.O
	require.NoError(t, fp.Finish(ctx, "g1", &o))
	loaded, err = fp.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, service.StatusFinished, loaded.Status)
	require.NotNil(t, loaded.Winner)
	assert.Equal(t, engine.O, *loaded.Winner)
}

func TestFilePersistenceErrors(t *testing.T) {
	fp, err := NewFilePersistence(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = fp.Load(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	err = fp.AppendMove(ctx, "missing", 0, mv(0, engine.X))
	assert.ErrorIs(t, err, service.ErrSessionNotFound)

	require.NoError(t, fp.Create(ctx, newGame("g1", alice, bob, time.Now())))
	assert.Error(t, fp.Create(ctx, newGame("g1", alice, bob, time.Now())), "duplicate create")

	err = fp.AppendMove(ctx, "g1", 1, mv(0, engine.X))
	assert.Error(t, err, "gap in sequence")
	require.NoError(t, fp.AppendMove(ctx, "g1", 0, mv(0, engine.X)))
	assert.Error(t, fp.AppendMove(ctx, "g1", 0, mv(1, engine.O)), "replayed sequence")
}

func TestFilePersistenceQueries(t *testing.T) {
	dir := t.TempDir()
	fp, err := NewFilePersistence(dir)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, fp.Create(ctx, newGame("old", alice, bob, base)))
	require.NoError(t, fp.Finish(ctx, "old", nil))
	require.NoError(t, fp.Create(ctx, newGame("new", carol, alice, base.Add(time.Hour))))
	require.NoError(t, fp.Create(ctx, newGame("other", bob, carol, base.Add(2*time.Hour))))

	// Stray files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))

	active, err := fp.FindActive(ctx, alice.IdentityID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "new", active.ID)

	none, err := fp.FindActive(ctx, "u-nobody")
	require.NoError(t, err)
	assert.Nil(t, none)

	all, err := fp.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := fp.ListForIdentity(ctx, alice.IdentityID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "new", mine[0].ID)
	assert.Equal(t, "old", mine[1].ID)
}

func TestFilePersistenceSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	fp, err := NewFilePersistence(dir)
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, fp.Create(ctx, newGame("good", alice, bob, base)))
	require.NoError(t, fp.Create(ctx, newGame("later", carol, alice, base.Add(time.Hour))))
	require.NoError(t, fp.Finish(ctx, "later", nil))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))

	active, err := fp.FindActive(ctx, alice.IdentityID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "good", active.ID)

	all, err := fp.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "good", all[0].ID)

	mine, err := fp.ListForIdentity(ctx, alice.IdentityID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "later", mine[0].ID)

	// Direct reads of the bad file still fail
	_, err = fp.Load(ctx, "broken")
	assert.Error(t, err)
}

func TestFilePersistenceMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "games")
	fp, err := NewFilePersistence(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	_, err = fp.ListActive(context.Background())
	assert.Error(t, err)
}

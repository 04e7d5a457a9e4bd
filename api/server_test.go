package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/wricardo/tictactoe-arena/auth"
	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/protocol"
	"github.com/wricardo/tictactoe-arena/game/service"
	"github.com/wricardo/tictactoe-arena/metrics"
	"github.com/wricardo/tictactoe-arena/transport/websocket"
)

// MockGames implements Games for testing
type MockGames struct {
	GetFunc             func(ctx context.Context, gameID string) (*service.Snapshot, error)
	ListForIdentityFunc func(ctx context.Context, identityID string) ([]*service.Game, error)
}

func (m *MockGames) Get(ctx context.Context, gameID string) (*service.Snapshot, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, gameID)
	}
	return nil, oops.With("game", gameID).Wrap(service.ErrSessionNotFound)
}

func (m *MockGames) ListForIdentity(ctx context.Context, identityID string) ([]*service.Game, error) {
	if m.ListForIdentityFunc != nil {
		return m.ListForIdentityFunc(ctx, identityID)
	}
	return nil, nil
}

// nopHandler accepts websocket events without acting on them
type nopHandler struct{}

func (nopHandler) Connect(context.Context, string, *auth.Identity) {}
func (nopHandler) Handle(context.Context, string, protocol.Inbound) error         { return nil }
func (nopHandler) Reject(context.Context, string, protocol.Kind, error) {}
func (nopHandler) Disconnect(context.Context, string) {}

func newAccounts() *auth.Service {
	return auth.NewService(auth.NewMemoryUserRepository(),
		auth.BcryptHasher{Cost: bcrypt.MinCost}, auth.NewTokenIssuer("test-secret", time.Hour))
}

func newTestServer(t *testing.T, games Games, opts ...Option) (*Server, *auth.Service) {
	t.Helper()
	accounts := newAccounts()
	if games == nil {
		games = &MockGames{}
	}
	hub := websocket.NewHub(nil)
	hub.SetHandler(nopHandler{})
	return NewServer(accounts, games, hub, opts...), accounts
}

func do(t *testing.T, s *Server, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func login(t *testing.T, accounts *auth.Service, name string) (string, *auth.Identity) {
	t.Helper()
	ctx := context.Background()
	_, err := accounts.Signup(ctx, name, "pw")
	require.NoError(t, err)
	token, identity, err := accounts.Login(ctx, name, "pw")
	require.NoError(t, err)
	return token, identity
}

func TestSignup(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"created", `{"name":"alice","password":"secret"}`, http.StatusCreated},
		{"duplicate name", `{"name":"alice","password":"other"}`, http.StatusConflict},
		{"missing password", `{"name":"bob"}`, http.StatusBadRequest},
		{"invalid body", `{"name":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/signup", tt.body, "")
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestLogin(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := do(t, s, http.MethodPost, "/api/signup", `{"name":"alice","password":"secret"}`, "")
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, s, http.MethodPost, "/api/login", `{"name":"alice","password":"secret"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string        `json:"token"`
		User  auth.Identity `json:"user"`
	}
	decode(t, w, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "alice", resp.User.Name)

	w = do(t, s, http.MethodPost, "/api/login", `{"name":"alice","password":"wrong"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]string
	decode(t, w, &body)
	assert.Equal(t, "invalid credentials", body["error"])

	w = do(t, s, http.MethodPost, "/api/login", `{"name":"nobody","password":"secret"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListGamesRequiresBearer(t *testing.T) {
	var asked string
	games := &MockGames{
		ListForIdentityFunc: func(_ context.Context, identityID string) ([]*service.Game, error) {
			asked = identityID
			return []*service.Game{{ID: "g2"}, {ID: "g1"}}, nil
		},
	}
	s, accounts := newTestServer(t, games)

	w := do(t, s, http.MethodGet, "/api/games", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, s, http.MethodGet, "/api/games", "", "not-a-token")
	assert.Equal(t, http.StatusForbidden, w.Code)

	token, identity := login(t, accounts, "alice")
	w = do(t, s, http.MethodGet, "/api/games", "", token)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int             `json:"count"`
		Games []*service.Game `json:"games"`
	}
	decode(t, w, &resp)
	assert.Equal(t, identity.ID, asked)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "g2", resp.Games[0].ID)
}

func TestListGamesEmpty(t *testing.T) {
	s, accounts := newTestServer(t, nil)
	token, _ := login(t, accounts, "alice")

	w := do(t, s, http.MethodGet, "/api/games", "", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":0,"games":[]}`, w.Body.String())
}

func TestGetGame(t *testing.T) {
	s, accounts := newTestServer(t, nil)
	aliceToken, alice := login(t, accounts, "alice")
	bobToken, bob := login(t, accounts, "bob")
	carolToken, _ := login(t, accounts, "carol")

	moves := []engine.Move{
		{Idx: 0, Symbol: engine.X, NextTurn: engine.O},
		{Idx: 4, Symbol: engine.O, NextTurn: engine.X},
	}
	state, err := engine.Replay(moves)
	require.NoError(t, err)
	game := &service.Game{
		ID:     "g1",
		RoomID: "room-g1",
		Players: [2]service.Participant{
			{IdentityID: alice.ID, Name: alice.Name},
			{IdentityID: bob.ID, Name: bob.Name},
		},
		Status: service.StatusInProgress,
		Moves:  moves,
	}
	s.games = &MockGames{
		GetFunc: func(_ context.Context, gameID string) (*service.Snapshot, error) {
			if gameID != "g1" {
				return nil, oops.With("game", gameID).Wrap(service.ErrSessionNotFound)
			}
			return &service.Snapshot{Game: game.Clone(), State: state}, nil
		},
	}

	t.Run("participant sees replayed board", func(t *testing.T) {
		for _, token := range []string{aliceToken, bobToken} {
			w := do(t, s, http.MethodGet, "/api/games/g1", "", token)
			require.Equal(t, http.StatusOK, w.Code)

			var view GameView
			decode(t, w, &view)
			assert.Equal(t, "g1", view.ID)
			assert.Len(t, view.Moves, 2)
			assert.Equal(t, engine.X, view.Board[0])
			assert.Equal(t, engine.O, view.Board[4])
			assert.Equal(t, engine.X, view.Turn)
		}
	})

	t.Run("outsider is forbidden", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/api/games/g1", "", carolToken)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown game", func(t *testing.T) {
		w := do(t, s, http.MethodGet, "/api/games/missing", "", aliceToken)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, nil, WithAllowedOrigin("http://localhost:5173"))

	w := do(t, s, http.MethodOptions, "/api/games", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	w = do(t, s, http.MethodPost, "/api/signup", `{"name":"alice","password":"pw"}`, "")
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New()
	m.MatchStarted()
	s, _ := newTestServer(t, nil, WithMetrics(m))

	w := do(t, s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = do(t, s, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tictactoe_matches_total")
}

func TestMCPMount(t *testing.T) {
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	s, _ := newTestServer(t, nil, WithMCP(mcp))

	w := do(t, s, http.MethodPost, "/mcp", `{}`, "")
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestWebSocketAuth(t *testing.T) {
	accounts := newAccounts()
	token, _ := login(t, accounts, "alice")

	tests := []struct {
		name         string
		requireToken bool
		query        string
		status       int
	}{
		{"token required", true, "", http.StatusUnauthorized},
		{"invalid token", true, "?token=garbage", http.StatusUnauthorized},
		{"valid token", true, "?token=" + token, http.StatusSwitchingProtocols},
		{"anonymous allowed", false, "", http.StatusSwitchingProtocols},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := websocket.NewHub(nil)
			hub.SetHandler(nopHandler{})
			ctx, cancel := context.WithCancel(context.Background())
			ran := make(chan struct{})
			go func() {
				hub.Run(ctx)
				close(ran)
			}()

			s := NewServer(accounts, &MockGames{}, hub, WithRequireToken(tt.requireToken))
			srv := httptest.NewServer(s)
			defer func() {
				cancel()
				<-ran
				hub.Wait()
				srv.Close()
			}()

			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + tt.query
			conn, resp, err := gws.DefaultDialer.Dial(url, nil)
			require.NotNil(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusSwitchingProtocols {
				require.NoError(t, err)
				conn.Close()
			} else {
				assert.Error(t, err)
			}
		})
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wricardo/tictactoe-arena/auth"
	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/service"
	"github.com/wricardo/tictactoe-arena/metrics"
	"github.com/wricardo/tictactoe-arena/transport/websocket"
)

// Accounts is the identity surface the API exposes
type Accounts interface {
	Signup(ctx context.Context, name, password string) (*auth.Identity, error)
	Login(ctx context.Context, name, password string) (string, *auth.Identity, error)
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

// Games is the read side of the session store
type Games interface {
	Get(ctx context.Context, gameID string) (*service.Snapshot, error)
	ListForIdentity(ctx context.Context, identityID string) ([]*service.Game, error)
}

type ctxKey int

const identityKey ctxKey = iota

// Server represents the REST API server
type Server struct {
	accounts Accounts
	games    Games
	hub      *websocket.Hub
	router   *mux.Router

	metrics       *metrics.Metrics
	mcp           http.Handler
	logger        *slog.Logger
	allowedOrigin string
	requireToken  bool
}

// Option configures a Server
type Option func(*Server)

// WithMetrics serves m on /metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMCP mounts an MCP handler on /mcp
func WithMCP(h http.Handler) Option {
	return func(s *Server) { s.mcp = h }
}

// WithLogger sets the server's logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithAllowedOrigin sets the origin answered in CORS headers
func WithAllowedOrigin(origin string) Option {
	return func(s *Server) { s.allowedOrigin = origin }
}

// WithRequireToken controls whether websocket upgrades need a bearer token
func WithRequireToken(required bool) Option {
	return func(s *Server) { s.requireToken = required }
}

// NewServer creates a new API server
func NewServer(accounts Accounts, games Games, hub *websocket.Hub, opts ...Option) *Server {
	s := &Server{
		accounts:     accounts,
		games:        games,
		hub:          hub,
		router:       mux.NewRouter(),
		logger:       slog.Default(),
		requireToken: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.cors)

	// Accounts
	api.HandleFunc("/signup", s.handleSignup).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost, http.MethodOptions)

	// Game history, bearer only
	games := api.PathPrefix("/games").Subrouter()
	games.Use(s.bearer)
	games.HandleFunc("", s.handleListGames).Methods(http.MethodGet, http.MethodOptions)
	games.HandleFunc("/{id}", s.handleGetGame).Methods(http.MethodGet, http.MethodOptions)

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	if s.mcp != nil {
		s.router.PathPrefix("/mcp").Handler(s.mcp)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure maps a domain error to its HTTP status
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingFields):
		respondError(w, http.StatusBadRequest, "name and password are required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInvalidToken):
		respondError(w, http.StatusForbidden, "invalid token")
	case errors.Is(err, auth.ErrUserExists):
		respondError(w, http.StatusConflict, "name already taken")
	case errors.Is(err, service.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "game not found")
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// Middleware

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) bearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		identity, err := s.accounts.Authenticate(r.Context(), token)
		if err != nil {
			s.respondFailure(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, identity)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func identityFrom(ctx context.Context) *auth.Identity {
	identity, _ := ctx.Value(identityKey).(*auth.Identity)
	return identity
}

// Account Handlers

type credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	identity, err := s.accounts.Signup(r.Context(), req.Name, req.Password)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "identity registered", "identity", identity.ID, "name", identity.Name)
	respondJSON(w, http.StatusCreated, identity)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, identity, err := s.accounts.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  identity,
	})
}

// Game Handlers

// GameView is a stored game plus the board its move log replays to
type GameView struct {
	*service.Game
	Board   engine.Board   `json:"board"`
	Turn    engine.Mark    `json:"turn"`
	Outcome engine.Outcome `json:"outcome,omitempty"`
	Line    []int          `json:"line,omitempty"`
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())

	games, err := s.games.ListForIdentity(r.Context(), identity.ID)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	if games == nil {
		games = []*service.Game{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(games),
		"games": games,
	})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r.Context())
	gameID := mux.Vars(r)["id"]

	snap, err := s.games.Get(r.Context(), gameID)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	if !snap.Game.Has(identity.ID) {
		respondError(w, http.StatusForbidden, "not a participant of this game")
		return
	}

	respondJSON(w, http.StatusOK, GameView{
		Game:    snap.Game,
		Board:   snap.State.Board,
		Turn:    snap.State.Turn,
		Outcome: snap.State.Outcome,
		Line:    snap.State.Line,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r)
	}

	var identity *auth.Identity
	switch {
	case token != "":
		id, err := s.accounts.Authenticate(r.Context(), token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		identity = id
	case s.requireToken:
		http.Error(w, "token required", http.StatusUnauthorized)
		return
	}

	s.hub.ServeWS(w, r, identity)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

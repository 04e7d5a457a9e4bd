// Command tictactoe-arena runs the realtime tic-tac-toe server.
//
// Commands:
//  1. "serve" – HTTP server exposing the REST API, the websocket game protocol, /metrics and an /mcp endpoint
//  2. "migrate" – applies or rolls back the Postgres schema
//  3. "mcp" – MCP stdio server proxying a running API
//
// Every flag can also be set from the environment, and a .env file in the
// working directory is loaded first.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/samber/oops"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/tictactoe-arena/api"
	"github.com/wricardo/tictactoe-arena/auth"
	"github.com/wricardo/tictactoe-arena/game/matchmaking"
	"github.com/wricardo/tictactoe-arena/game/registry"
	"github.com/wricardo/tictactoe-arena/game/service"
	"github.com/wricardo/tictactoe-arena/game/session"
	"github.com/wricardo/tictactoe-arena/logging"
	"github.com/wricardo/tictactoe-arena/metrics"
	"github.com/wricardo/tictactoe-arena/store"
	"github.com/wricardo/tictactoe-arena/transport/mcp"
	"github.com/wricardo/tictactoe-arena/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "tictactoe-arena"
)

// main loads .env, then runs the command tree until interrupted.
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func databaseURLFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "database-url",
		Usage:    "Postgres connection string; empty uses JSON files under --data-dir",
		Sources:  cli.EnvVars("DATABASE_URL"),
		Required: required,
	}
}

func logFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "log-format", Value: "json", Usage: "json or text", Sources: cli.EnvVars("TTT_LOG_FORMAT")},
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error", Sources: cli.EnvVars("TTT_LOG_LEVEL")},
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    AppName,
		Usage:   "realtime two-player tic-tac-toe server",
		Version: Version,
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			mcpCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "addr", Value: "localhost:3000", Usage: "HTTP listen address", Sources: cli.EnvVars("TTT_ADDR")},
		databaseURLFlag(false),
		&cli.StringFlag{Name: "data-dir", Value: "data", Usage: "directory for file persistence", Sources: cli.EnvVars("TTT_DATA_DIR")},
		&cli.StringFlag{Name: "jwt-secret", Usage: "HMAC secret for session tokens; random when empty", Sources: cli.EnvVars("JWT_SECRET")},
		&cli.DurationFlag{Name: "token-ttl", Value: time.Hour, Usage: "session token lifetime", Sources: cli.EnvVars("TTT_TOKEN_TTL")},
		&cli.StringFlag{Name: "allowed-origin", Value: "http://localhost:5173", Usage: "web client origin for CORS and websocket upgrades", Sources: cli.EnvVars("TTT_ALLOWED_ORIGIN")},
		&cli.BoolFlag{Name: "require-token", Value: true, Usage: "reject websocket connections without a bearer token", Sources: cli.EnvVars("TTT_REQUIRE_TOKEN")},
		&cli.BoolFlag{Name: "auto-migrate", Usage: "apply pending migrations before serving", Sources: cli.EnvVars("TTT_AUTO_MIGRATE")},
		&cli.DurationFlag{Name: "retain-finished", Value: 24 * time.Hour, Usage: "how long finished games stay in memory", Sources: cli.EnvVars("TTT_RETAIN_FINISHED")},
		&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
		&cli.StringFlag{Name: "ngrok-authtoken", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN")},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
	}

	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP and websocket server",
		Flags: append(flags, logFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, err := setupLogging(cmd)
			if err != nil {
				return err
			}
			return runServe(ctx, configFrom(cmd), logger)
		},
	}
}

// serveConfig is the resolved serve configuration
type serveConfig struct {
	Addr           string
	DatabaseURL    string
	DataDir        string
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigin  string
	RequireToken   bool
	AutoMigrate    bool
	RetainFinished time.Duration
	Ngrok          bool
	NgrokAuthtoken string
	NgrokDomain    string
}

func configFrom(cmd *cli.Command) serveConfig {
	return serveConfig{
		Addr:           cmd.String("addr"),
		DatabaseURL:    cmd.String("database-url"),
		DataDir:        cmd.String("data-dir"),
		JWTSecret:      cmd.String("jwt-secret"),
		TokenTTL:       cmd.Duration("token-ttl"),
		AllowedOrigin:  cmd.String("allowed-origin"),
		RequireToken:   cmd.Bool("require-token"),
		AutoMigrate:    cmd.Bool("auto-migrate"),
		RetainFinished: cmd.Duration("retain-finished"),
		Ngrok:          cmd.Bool("ngrok"),
		NgrokAuthtoken: cmd.String("ngrok-authtoken"),
		NgrokDomain:    cmd.String("ngrok-domain"),
	}
}

func setupLogging(cmd *cli.Command) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return nil, err
	}
	return logging.SetDefault(logging.Options{
		Service: AppName,
		Version: Version,
		Format:  cmd.String("log-format"),
		Level:   level,
	}), nil
}

// server is the wired application
type server struct {
	handler http.Handler
	hub     *websocket.Hub
	store   *session.Store
	close   func()
}

// backends returns the identity and game persistence chosen by the config
func backends(ctx context.Context, cfg serveConfig, logger *slog.Logger) (auth.UserRepository, session.Persistence, func(), error) {
	if cfg.DatabaseURL == "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, nil, nil, oops.Wrapf(err, "create data dir")
		}
		games, err := session.NewFilePersistence(filepath.Join(cfg.DataDir, "games"), session.WithFileLogger(logger))
		if err != nil {
			return nil, nil, nil, err
		}
		users, err := auth.OpenFileUserRepository(filepath.Join(cfg.DataDir, "users.json"))
		if err != nil {
			return nil, nil, nil, err
		}
		logger.InfoContext(ctx, "using file persistence", "dir", cfg.DataDir)
		return users, games, func() {}, nil
	}

	if cfg.AutoMigrate {
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			return nil, nil, nil, err
		}
		logger.InfoContext(ctx, "migrations applied")
	}

	pool, err := store.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.InfoContext(ctx, "using postgres persistence")
	return store.NewUserRepository(pool), store.NewGameRepository(pool), pool.Close, nil
}

// buildServer wires every component. The hub is not running yet.
func buildServer(ctx context.Context, cfg serveConfig, logger *slog.Logger) (*server, error) {
	users, games, closeBackends, err := backends(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret = rand.Text()
		logger.WarnContext(ctx, "no jwt secret configured, tokens will not survive a restart")
	}
	accounts := auth.NewService(users, auth.NewBcryptHasher(), auth.NewTokenIssuer(secret, cfg.TokenTTL))

	sessions := session.NewStore(games, logger)
	if _, err := sessions.LoadActive(ctx); err != nil {
		closeBackends()
		return nil, err
	}

	m := metrics.New()
	hub := websocket.NewHub(logger, websocket.WithAllowedOrigins(cfg.AllowedOrigin))
	router := service.NewRouter(
		accounts,
		matchmaking.NewQueue(sessions, logger),
		sessions,
		registry.New(),
		hub,
		service.WithMetrics(m),
		service.WithLogger(logger),
		service.WithNameLookup(!cfg.RequireToken),
	)
	hub.SetHandler(router)

	mcpClient := mcp.NewClient("http://"+cfg.Addr, "")
	handler := api.NewServer(accounts, sessions, hub,
		api.WithMetrics(m),
		api.WithMCP(mcpClient.HTTPHandler()),
		api.WithLogger(logger),
		api.WithAllowedOrigin(cfg.AllowedOrigin),
		api.WithRequireToken(cfg.RequireToken),
	)

	return &server{handler: handler, hub: hub, store: sessions, close: closeBackends}, nil
}

// runServe starts the HTTP server and blocks until ctx is cancelled.
// If ngrok is enabled it also provisions a public tunnel.
func runServe(ctx context.Context, cfg serveConfig, logger *slog.Logger) error {
	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer srv.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go srv.hub.Run(hubCtx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanupRoutine(ctx, srv.store, cfg.RetainFinished, logger)
	}()

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Addr,
			"api", "http://"+cfg.Addr+"/api", "ws", "ws://"+cfg.Addr+"/ws", "mcp", "http://"+cfg.Addr+"/mcp")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if cfg.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, srv.handler, logger)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		logger.Error("HTTP server failed", "error", err)
	}

	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	stopHub()
	srv.hub.Wait()
	wg.Wait()
	logger.Info("server stopped")
	return err
}

// cleanupRoutine periodically drops long-finished games from memory
func cleanupRoutine(ctx context.Context, sessions *session.Store, retain time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := sessions.CleanupFinished(retain); removed > 0 {
				logger.Info("cleaned up finished games", "count", removed, "in_memory", sessions.Count())
			}
		}
	}
}

func runNgrok(ctx context.Context, cfg serveConfig, handler http.Handler, logger *slog.Logger) {
	if cfg.NgrokAuthtoken == "" {
		logger.Warn("ngrok enabled but no auth token provided (use --ngrok-authtoken or NGROK_AUTHTOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuthtoken))
	if err != nil {
		logger.Error("failed to start ngrok tunnel", "error", err)
		return
	}
	defer tun.Close()

	logger.Info("ngrok tunnel established", "url", tun.URL())

	go func() {
		<-ctx.Done()
		tun.Close()
	}()
	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed && ctx.Err() == nil {
		logger.Error("ngrok server error", "error", err)
	}
}

func migrateCommand() *cli.Command {
	withMigrator := func(fn func(*store.Migrator) error) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			m, err := store.NewMigrator(cmd.String("database-url"))
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(m)
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the Postgres schema",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "apply all pending migrations",
				Flags:  []cli.Flag{databaseURLFlag(true)},
				Action: withMigrator(func(m *store.Migrator) error { return m.Up() }),
			},
			{
				Name:   "down",
				Usage:  "roll back every migration",
				Flags:  []cli.Flag{databaseURLFlag(true)},
				Action: withMigrator(func(m *store.Migrator) error { return m.Down() }),
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Flags: []cli.Flag{databaseURLFlag(true)},
				Action: withMigrator(func(m *store.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Printf("version %d (dirty: %t)\n", version, dirty)
					return nil
				}),
			},
		},
	}
}

func migrateUp(databaseURL string) error {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "serve MCP tools over stdio, proxying a running API",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "api-url", Value: "http://localhost:3000", Usage: "base URL of the API", Sources: cli.EnvVars("TTT_API_URL")},
			&cli.StringFlag{Name: "token", Usage: "bearer token for API calls", Sources: cli.EnvVars("TTT_TOKEN")},
		}, logFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := setupLogging(cmd); err != nil {
				return err
			}
			client := mcp.NewClient(cmd.String("api-url"), cmd.String("token"))
			slog.Info("MCP stdio server ready", "api", cmd.String("api-url"))
			return mcpserver.ServeStdio(client.GetMCPServer())
		},
	}
}

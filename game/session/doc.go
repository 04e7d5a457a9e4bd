// Package session stores tic-tac-toe games and their append-only move logs.
//
// Core Types:
//
// Store is the authoritative in-memory set of games. Each game is guarded by
// its own lock; a move is validated against the board replayed from the log,
// written to Persistence, and only then appended and fanned out. Two moves on
// the same game therefore reach persistence and the room in one order.
//
// Persistence is the durable backing. FilePersistence keeps one JSON file per
// game; the store package provides a PostgreSQL implementation.
//
// Recovery:
//
// A game missing from memory is recovered from Persistence by replaying its
// move log, either on demand (Resume, AppendMove) or in bulk at startup
// (LoadActive).
//
// Usage:
//
//	files, err := session.NewFilePersistence("data/games")
//	if err != nil {
//		log.Fatal(err)
//	}
//	store := session.NewStore(files, slog.Default())
//
//	game, err := store.CreateSession(ctx, alice, bob)
//	err = store.AppendMove(ctx, game.ID, engine.Move{Idx: 4, Symbol: engine.X, NextTurn: engine.O},
//		func(g *service.Game, st engine.State) { /* broadcast */ })
package session

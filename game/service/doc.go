// Package service holds the domain types and the event router of the realtime
// game server.
//
// Core Interfaces:
//
// SessionStore owns live games and their move logs. Matchmaker pairs joining
// participants or resumes them into their in-progress game. ConnectionRegistry
// tracks what each open connection is bound to. Emitter delivers outbound
// events to one connection or to a game's room.
//
// Architecture:
//
// The Router sits between a transport and those collaborators. A transport
// calls Connect when a connection opens, Handle for every decoded event and
// Disconnect when it closes. Handle never panics on bad input; every rejected
// event is answered with an error event carrying a stable code from ErrorCode.
//
//	router := service.NewRouter(accounts, queue, store, conns, hub,
//		service.WithMetrics(m), service.WithLogger(logger))
//	router.Connect(ctx, connID, identity)
//	err := router.Handle(ctx, connID, protocol.Move{Idx: 4, Symbol: engine.X, NextTurn: engine.O})
//
// Ordering:
//
// Moves, results and resets for one game are persisted and broadcast under
// that game's lock, so every member of a room sees events in move log order.
// Nothing is broadcast for a mutation that failed to persist.
package service

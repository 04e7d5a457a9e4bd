// Package mcp exposes read-only game inspection tools over the Model Context
// Protocol.
//
// The client holds no game state. Every tool is answered by calling the REST
// API with a bearer token, except render_board, which replays cells locally.
//
// MCP Tools:
//   - list_games: the caller's games, newest first
//   - get_game: one game's move log and replayed board
//   - render_board: draw the board a sequence of cells produces
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer()), using a fixed token
//   - HTTP: client.HTTPHandler(), forwarding each request's bearer token
package mcp

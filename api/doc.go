// Package api provides the HTTP surface around the realtime game server.
//
// Endpoints:
//
// Accounts:
//   - POST /api/signup - Register {name, password}; 400 on missing fields, 409 when taken
//   - POST /api/login - Exchange {name, password} for {token, user}; 401 on bad credentials
//
// Game history (Authorization: Bearer <token>):
//   - GET /api/games - The caller's games, newest first
//   - GET /api/games/{id} - One game with its move log and replayed board;
//     403 for non-participants, 404 when unknown
//
// Realtime:
//   - GET /ws - Websocket upgrade. The token travels as ?token= or a bearer header.
//
// Operations:
//   - GET /healthz - Liveness
//   - GET /metrics - Prometheus exposition
//   - /mcp - MCP tools over streamable HTTP, when mounted
//
// Errors are returned as JSON with an appropriate status code:
//
//	{"error": "error message"}
//
// Missing bearer tokens answer 401; tokens that fail verification answer 403.
package api

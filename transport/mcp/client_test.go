package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/tictactoe-arena/api"
	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/service"
)

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func finishedGame() *service.Game {
	x := engine.X
	return &service.Game{
		ID:     "g1",
		RoomID: "room-g1",
		Players: [2]service.Participant{
			{IdentityID: "a", Name: "alice"},
			{IdentityID: "b", Name: "bob"},
		},
		Status: service.StatusFinished,
		Moves:  MovesFromCells([]int{0, 3, 1, 4, 2}),
		Winner: &x,
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:3000/", "tok")

	assert.Equal(t, "http://localhost:3000", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.GetMCPServer())
}

func TestClient_apiCallSendsToken(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "fixed")
	require.NoError(t, client.apiCall(context.Background(), http.MethodGet, "/api/games", nil, nil))

	ctx := context.WithValue(context.Background(), tokenKey, "caller")
	require.NoError(t, client.apiCall(ctx, http.MethodGet, "/api/games", nil, nil))

	assert.Equal(t, []string{"Bearer fixed", "Bearer caller"}, got)
}

func TestClient_apiCallErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/games/missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"game not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	ctx := context.Background()

	err := client.apiCall(ctx, http.MethodGet, "/api/games/missing", nil, nil)
	require.Error(t, err)
	assert.Equal(t, "game not found", err.Error())

	err = client.apiCall(ctx, http.MethodGet, "/api/games", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error")

	unreachable := NewClient("http://127.0.0.1:1", "")
	assert.Error(t, unreachable.apiCall(ctx, http.MethodGet, "/api/games", nil, nil))
}

func TestHandleListGames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/games", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count": 1,
			"games": []*service.Game{finishedGame()},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok")
	result, err := client.handleListGames(context.Background(), callTool("list_games", map[string]interface{}{}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "1 game(s)")
	assert.Contains(t, text, "alice (X) vs bob (O)")
	assert.Contains(t, text, "X won")
}

func TestHandleGetGame(t *testing.T) {
	game := finishedGame()
	state, err := engine.Replay(game.Moves)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/games/g1" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"game not found"}`))
			return
		}
		json.NewEncoder(w).Encode(api.GameView{
			Game: game, Board: state.Board, Turn: state.Turn, Outcome: state.Outcome, Line: state.Line,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "tok")
	ctx := context.Background()

	result, err := client.handleGetGame(ctx, callTool("get_game", map[string]interface{}{"game_id": "g1"}))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Game g1 (finished)")
	assert.Contains(t, text, "XXX\nOO.\n...")
	assert.Contains(t, text, "Winner: X (cells [0 1 2])")

	result, err = client.handleGetGame(ctx, callTool("get_game", map[string]interface{}{"game_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = client.handleGetGame(ctx, callTool("get_game", map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleRenderBoard(t *testing.T) {
	client := NewClient("http://unused", "")
	ctx := context.Background()

	tests := []struct {
		name    string
		cells   interface{}
		want    string
		isError bool
	}{
		{"empty board", []interface{}{}, "...\n...\n...\nX to move", false},
		{"in progress", []interface{}{4.0, 0.0}, "O..\n.X.\n...\nX to move", false},
		{"open cells", []interface{}{4.0, 0.0}, "Open cells: [1 2 3 5 6 7 8]", false},
		{"draw", []interface{}{0.0, 1.0, 2.0, 4.0, 3.0, 5.0, 7.0, 6.0, 8.0}, "Draw", false},
		{"occupied cell", []interface{}{4.0, 4.0}, "", true},
		{"out of range", []interface{}{9.0}, "", true},
		{"not integers", []interface{}{1.5}, "", true},
		{"not an array", "0,1,2", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := client.handleRenderBoard(ctx, callTool("render_board", map[string]interface{}{"cells": tt.cells}))
			require.NoError(t, err)
			assert.Equal(t, tt.isError, result.IsError)
			if !tt.isError {
				assert.True(t, strings.Contains(resultText(t, result), tt.want), resultText(t, result))
			}
		})
	}
}

func TestHTTPHandler(t *testing.T) {
	var auth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"count":0,"games":[]}`))
	}))
	defer backend.Close()

	client := NewClient(backend.URL, "")
	handler := client.HTTPHandler()

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_games","arguments":{}}}`
	req = httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer caller-token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No games yet.")
	assert.Equal(t, "Bearer caller-token", auth)
}

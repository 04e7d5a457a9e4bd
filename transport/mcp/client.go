package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/tictactoe-arena/api"
	"github.com/wricardo/tictactoe-arena/game/engine"
	"github.com/wricardo/tictactoe-arena/game/service"
)

type ctxKey int

const tokenKey ctxKey = iota

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API. token is the
// bearer used when a call does not carry its own.
func NewClient(baseURL, token string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Tic-Tac-Toe Arena",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Tic-Tac-Toe Arena - MCP Interface

Read-only inspection of the games played by the authenticated account.

AVAILABLE TOOLS:
- list_games: Your games, newest first
- get_game: One game's move log and replayed board
- render_board: Replay a list of cells locally, X first, and draw the board

Cells are numbered 0-8 row by row:
  0 1 2
  3 4 5
  6 7 8`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_games",
		Description: "List the authenticated player's games, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListGames)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_game",
		Description: "Get one game with its move log and the board it replays to",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"game_id": map[string]interface{}{
					"type":        "string",
					"description": "Game ID",
				},
			},
			Required: []string{"game_id"},
		},
	}, c.handleGetGame)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "render_board",
		Description: "Replay cells in order, X first, and draw the resulting board",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"cells": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type":    "integer",
						"minimum": 0,
						"maximum": engine.BoardSize - 1,
					},
					"description": "Cells played in order",
				},
			},
			Required: []string{"cells"},
		},
	}, c.handleRenderBoard)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// HTTPHandler answers JSON-RPC messages posted to it. The caller's bearer
// token is forwarded on the proxied API calls.
func (c *Client) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		ctx := r.Context()
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
			ctx = context.WithValue(ctx, tokenKey, token)
		}
		response := c.mcpServer.HandleMessage(ctx, body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token, _ := ctx.Value(tokenKey).(string)
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleListGames(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count int             `json:"count"`
		Games []*service.Game `json:"games"`
	}
	if err := c.apiCall(ctx, http.MethodGet, "/api/games", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if response.Count == 0 {
		return mcp.NewToolResultText("No games yet."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d game(s):\n", response.Count)
	for _, g := range response.Games {
		b.WriteString(formatGameLine(g))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	gameID, _ := args["game_id"].(string)
	if gameID == "" {
		return mcp.NewToolResultError("game_id is required"), nil
	}

	var view api.GameView
	if err := c.apiCall(ctx, http.MethodGet, "/api/games/"+url.PathEscape(gameID), nil, &view); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGameView(&view)), nil
}

func (c *Client) handleRenderBoard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	raw, ok := args["cells"].([]interface{})
	if !ok {
		return mcp.NewToolResultError("cells must be an array of integers"), nil
	}

	cells := make([]int, 0, len(raw))
	for _, v := range raw {
		n, ok := v.(float64)
		if !ok || n != float64(int(n)) {
			return mcp.NewToolResultError(fmt.Sprintf("cell %v is not an integer", v)), nil
		}
		cells = append(cells, int(n))
	}

	state, err := engine.Replay(MovesFromCells(cells))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatState(&state)), nil
}

// MovesFromCells turns a list of cells into alternating moves starting with X
func MovesFromCells(cells []int) []engine.Move {
	moves := make([]engine.Move, 0, len(cells))
	mark := engine.StartingMark
	for _, idx := range cells {
		moves = append(moves, engine.Move{Idx: idx, Symbol: mark, NextTurn: mark.Opponent()})
		mark = mark.Opponent()
	}
	return moves
}

// Formatting

func formatGameLine(g *service.Game) string {
	result := "in progress"
	if g.Status == service.StatusFinished {
		result = "draw or abandoned"
		if g.Winner != nil {
			result = string(*g.Winner) + " won"
		}
	}
	return fmt.Sprintf("- %s: %s (X) vs %s (O), %d moves, %s, started %s",
		g.ID, g.Players[0].Name, g.Players[1].Name, len(g.Moves), result, g.CreatedAt.Format(time.RFC3339))
}

func formatGameView(v *api.GameView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Game %s (%s)\n", v.ID, v.Status)
	fmt.Fprintf(&b, "X: %s\nO: %s\n", v.Players[0].Name, v.Players[1].Name)
	b.WriteString("\nMoves:\n")
	if len(v.Moves) == 0 {
		b.WriteString("  none\n")
	}
	for i, mv := range v.Moves {
		fmt.Fprintf(&b, "  %d. %s -> %d\n", i+1, mv.Symbol, mv.Idx)
	}

	state := engine.State{Board: v.Board, Turn: v.Turn, Moves: len(v.Moves), Outcome: v.Outcome, Line: v.Line}
	if v.Outcome == engine.OutcomeWin && v.Winner != nil {
		state.Winner = *v.Winner
	}
	b.WriteString("\n")
	b.WriteString(formatState(&state))
	return b.String()
}

func formatState(s *engine.State) string {
	var b strings.Builder
	for _, row := range engine.Render(s.Board) {
		b.WriteString(row)
		b.WriteString("\n")
	}
	switch s.Outcome {
	case engine.OutcomeWin:
		fmt.Fprintf(&b, "Winner: %s (cells %v)\n", s.Winner, s.Line)
	case engine.OutcomeDraw:
		b.WriteString("Draw\n")
	default:
		fmt.Fprintf(&b, "%s to move\n", s.Turn)
		fmt.Fprintf(&b, "Open cells: %v\n", s.OpenCells())
	}
	return b.String()
}

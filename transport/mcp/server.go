package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/wricardo/stop-ultra/game/round"
	"github.com/wricardo/stop-ultra/game/service"
	"github.com/wricardo/stop-ultra/game/session"
)

// Server exposes a single player session as MCP tools
type Server struct {
	game      service.GameClient
	mcpServer *server.MCPServer
	logger    *zap.Logger

	// handlers indexes registered tools by name
	handlers map[string]server.ToolHandlerFunc
}

// NewServer creates an MCP server that drives game
func NewServer(game service.GameClient, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		game:     game,
		logger:   logger,
		handlers: make(map[string]server.ToolHandlerFunc),
	}

	s.initMCPServer()
	return s
}

// initMCPServer initializes the MCP server with all tools
func (s *Server) initMCPServer() {
	s.mcpServer = server.NewMCPServer(
		"Stop Ultra",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Stop Ultra - MCP Interface

You are one player in a multiplayer word game. Each round the moderator spins
for a letter and a category; everyone else races to submit a word in that
category starting with that letter. The moderator picks the best answer and
its author scores a point and moderates the next round.

AVAILABLE TOOLS:
- create_room / join_room / leave_room: room lifecycle
- game_state: what you currently see (players, phase, letter, answers)
- start_game: host only, needs 3 players
- spin, start_round, select_winner, restart_round, continue_game, end_game: moderator
- submit_answer: everyone but the moderator, once per round
- force_end_round: moderator, once the timer is out
- return_to_lobby: host, after the final scores
- game_rules: the full rules

Changes arrive asynchronously: call game_state after acting to see the result.`),
	)

	s.registerTools()
}

func noArgs(name, description string) mcp.Tool {
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	// Room lifecycle
	s.addTool(mcp.Tool{
		Name:        "create_room",
		Description: "Create a new room and join it as host",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"nickname": map[string]interface{}{
					"type":        "string",
					"description": fmt.Sprintf("Your display name (max %d characters)", service.MaxNicknameLength),
				},
			},
			Required: []string{"nickname"},
		},
	}, s.handleCreateRoom)

	s.addTool(mcp.Tool{
		Name:        "join_room",
		Description: "Join an existing room by its code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Room code, e.g. ABCD",
				},
				"nickname": map[string]interface{}{
					"type":        "string",
					"description": fmt.Sprintf("Your display name (max %d characters)", service.MaxNicknameLength),
				},
			},
			Required: []string{"room_id", "nickname"},
		},
	}, s.handleJoinRoom)

	s.addTool(noArgs("leave_room", "Leave the current room"), s.simple(s.game.LeaveRoom, "Left the room."))

	// Observation
	s.addTool(noArgs("game_state", "Get the current room and round state"), s.handleGameState)
	s.addTool(noArgs("game_rules", "Get the complete game rules"), s.handleGameRules)

	// Game flow
	s.addTool(mcp.Tool{
		Name:        "start_game",
		Description: "Start the game (host only, at least 3 players)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"time_limit": map[string]interface{}{
					"type":        "number",
					"enum":        round.TimeLimitOptions,
					"description": "Seconds per round (optional, default 60)",
				},
			},
		},
	}, s.handleStartGame)

	s.addTool(noArgs("spin", "Spin for this round's letter and category (moderator)"), s.simple(s.game.Spin, "Spinning. The letter arrives in a moment."))
	s.addTool(noArgs("start_round", "Start the round once a letter is drawn (moderator)"), s.simple(s.game.StartRound, "Round starting."))

	s.addTool(mcp.Tool{
		Name:        "submit_answer",
		Description: "Submit your word for the current round",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"answer": map[string]interface{}{
					"type":        "string",
					"description": fmt.Sprintf("Your word (max %d characters)", round.MaxAnswerLength),
				},
			},
			Required: []string{"answer"},
		},
	}, s.handleSubmitAnswer)

	s.addTool(noArgs("force_end_round", "End the round and move to evaluation (moderator)"), s.simple(s.game.ForceEndRound, "Round ended."))

	s.addTool(mcp.Tool{
		Name:        "select_winner",
		Description: "Pick the best answer of the round (moderator)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"winner_id": map[string]interface{}{
					"type":        "string",
					"description": "Client id of the answer's author, as listed by game_state",
				},
			},
			Required: []string{"winner_id"},
		},
	}, s.handleSelectWinner)

	s.addTool(noArgs("restart_round", "Discard the answers and replay the round (moderator)"), s.simple(s.game.RestartRound, "Round restarted."))
	s.addTool(noArgs("continue_game", "Go on to the next round (moderator)"), s.simple(s.game.ContinueGame, "Next round."))
	s.addTool(noArgs("end_game", "Finish the game and show final scores (moderator)"), s.simple(s.game.EndGame, "Game over."))
	s.addTool(noArgs("return_to_lobby", "Reset scores and go back to the lobby (host)"), s.simple(s.game.ReturnToLobby, "Back in the lobby."))
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.handlers[tool.Name] = handler
	s.mcpServer.AddTool(tool, handler)
}

// MCPServer returns the underlying MCP server
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves tools over stdin/stdout until the client disconnects
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// simple wraps an argument-free game operation
func (s *Server) simple(op func(context.Context) error, done string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := op(ctx); err != nil {
			return s.toolError(request, err), nil
		}
		return mcp.NewToolResultText(done), nil
	}
}

func (s *Server) toolError(request mcp.CallToolRequest, err error) *mcp.CallToolResult {
	s.logger.Debug("tool failed", zap.String("tool", request.Params.Name), zap.Error(err))
	return mcp.NewToolResultError(err.Error())
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

func (s *Server) handleCreateRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nickname, _ := arguments(request)["nickname"].(string)

	roomID, err := s.game.CreateRoom(ctx, nickname)
	if err != nil {
		return s.toolError(request, err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created room %s. Share the code; the game needs 3 players.", roomID)), nil
}

func (s *Server) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	roomID, _ := args["room_id"].(string)
	nickname, _ := args["nickname"].(string)

	if err := s.game.JoinRoom(ctx, roomID, nickname); err != nil {
		return s.toolError(request, err), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Joined room %s.", strings.ToUpper(strings.TrimSpace(roomID)))), nil
}

func (s *Server) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.game.Snapshot(ctx)
	if err != nil {
		return s.toolError(request, err), nil
	}
	return mcp.NewToolResultText(service.FormatSnapshot(snap)), nil
}

func (s *Server) handleStartGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	timeLimit := 0
	if v, ok := arguments(request)["time_limit"].(float64); ok {
		timeLimit = int(v)
	}

	if err := s.game.StartGame(ctx, timeLimit); err != nil {
		return s.toolError(request, err), nil
	}
	return mcp.NewToolResultText("Game starting."), nil
}

func (s *Server) handleSubmitAnswer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	answer, _ := arguments(request)["answer"].(string)

	if err := s.game.SubmitAnswer(ctx, answer); err != nil {
		return s.toolError(request, err), nil
	}
	return mcp.NewToolResultText("Answer submitted."), nil
}

func (s *Server) handleSelectWinner(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	winnerID, _ := arguments(request)["winner_id"].(string)

	if err := s.game.SelectWinner(ctx, winnerID); err != nil {
		return s.toolError(request, err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Winner: %s.", winnerID)), nil
}

func (s *Server) handleGameRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rules := fmt.Sprintf(`Stop Ultra - Rules

ROOMS:
- A room is identified by a short code. The creator is the host.
- Nicknames are 1 to %d characters.
- Players can only join while the room is in the lobby.

FLOW:
1. LOBBY: the host starts the game once %d or more players are in, choosing
   a time limit of %s seconds.
2. PREPARING: the moderator spins. After a short animation the server draws
   a letter and a category. The moderator then starts the round.
3. PLAYING: every player except the moderator submits one word that fits the
   category and starts with the letter (max %d characters). The round moves
   on once everyone has answered, or when the moderator's timer runs out.
4. EVALUATING: the moderator reads the answers and selects a winner, or
   restarts the round.
5. SCORES: the winner gets a point and becomes the next moderator, who
   continues the game or ends it.
6. FINAL_SCORES: the host returns everyone to the lobby with scores reset.

TIPS:
- Call game_state often; changes from other players are not pushed to you.
- select_winner takes the author's client id, shown next to each answer.`,
		service.MaxNicknameLength, session.MinPlayers, joinInts(round.TimeLimitOptions), round.MaxAnswerLength)

	return mcp.NewToolResultText(rules), nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

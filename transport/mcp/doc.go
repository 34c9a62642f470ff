// Package mcp exposes a Stop Ultra player session to AI agents over the
// Model Context Protocol.
//
// The mcp package implements:
//   - An MCP server wrapping one service.GameClient
//   - Tool definitions for every player action
//   - Plain-text rendering of the mirrored game state
//
// MCP Tools:
//
// Room lifecycle:
//   - create_room: Create a room and join as host
//   - join_room: Join a room by code
//   - leave_room: Leave and return home
//
// Observation:
//   - game_state: Players, phase, letter, category, answers and timer
//   - game_rules: The complete rules
//
// Game flow:
//   - start_game, spin, start_round, submit_answer, force_end_round,
//     select_winner, restart_round, continue_game, end_game,
//     return_to_lobby
//
// Failures, including actions the current phase does not allow, come back as
// tool error results. The session keeps running.
//
// Usage:
//
//	client := service.NewClient(opts)
//	go client.Run(ctx)
//	mcp.NewServer(client, logger).ServeStdio()
package mcp

// Package api provides a local, in-memory Stop Ultra server.
//
// The api package implements:
//   - The Room Registry endpoints the client calls before connecting
//   - The realtime endpoint, backed by a websocket.Hub
//   - The authoritative game rules for every room
//
// Endpoints:
//
// Room Registry:
//   - POST /create-room - Create a room, returns {"room_id": "ABCD"}
//   - POST /check-room - Admit {"room_id", "nickname"}; 404 when the room is
//     unknown, 400 once its game has started. Errors carry {"detail": ...}
//
// Realtime:
//   - GET /ws/{room_id}/{client_id} - WebSocket upgrade
//
// Health:
//   - GET /health
//
// Game Rules:
//
// The first player to JOIN becomes host. Rejoining with the same client id
// keeps the score and host flag and resends the current round. The host
// starts the game once at least three players are in the lobby and moderates
// the first round. The moderator spins for a letter and category, starts the
// round, and picks a winner from the submitted answers; the winner scores a
// point and moderates next. When everyone but the moderator has answered the
// round moves to evaluation on its own.
//
// Every change is broadcast to the room as PLAYER_LIST_UPDATE followed by
// GAME_STATE_UPDATE, whichever apply. Intents that break the rules are
// ignored without a reply.
//
// Usage:
//
//	server := api.NewServer(api.NewRooms(logger), logger)
//	go server.Hub().Run(ctx)
//	http.ListenAndServe(":8000", server)
//
// Rooms live only in memory and are lost on restart.
package api

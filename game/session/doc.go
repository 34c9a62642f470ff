// Package session mirrors the room a client has joined: the room code, the
// local nickname, the player roster and the screen the client is on.
//
// The session package implements:
//   - Session lifecycle (Begin on create/join, Reset on leave)
//   - Wholesale roster replacement from PLAYER_LIST_UPDATE snapshots
//   - Host flag derivation from the latest snapshot
//   - Scoreboard ordering and lobby start rules
//
// Source of Truth:
//
// The server is the only writer of the roster. State never patches a roster
// entry or flips a host flag on its own; every ApplyRosterUpdate replaces the
// previous roster entirely and re-derives IsHost by locating the local client
// id. A snapshot that does not contain the local client (for example a stale
// frame after leaving) leaves the host flag untouched.
//
// Concurrency:
//
// State is not safe for concurrent use. It is owned by the client event loop
// in package service, which is the only goroutine that reads or mutates it.
package session

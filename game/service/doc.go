// Package service provides the player-side session for Stop Ultra.
//
// The service package implements:
//   - The realtime connection lifecycle, including automatic reconnects
//   - Routing of inbound events to the room mirror and the round state machine
//   - Dispatch of player intents, gated by connection and role
//   - Room creation and admission through the Room Registry
//
// Core Interfaces:
//
// GameClient is the surface a UI, the CLI or the MCP server drives.
// Registry is the HTTP admission service. Dialer opens realtime connections.
//
// Architecture:
//
// Client runs a single event loop. Socket frames, closes, dial results,
// timer callbacks and public method calls are all submitted to one inbox and
// processed in arrival order, so the room mirror and the round state need no
// locks. The only waits outside the loop are registry calls and dialing;
// their results come back to the loop as events.
//
// Usage:
//
//	client := service.NewClient(service.Options{
//		Config:   cfg,
//		ClientID: identity.NewStore(cfg.StateDir, logger).GetOrCreate(),
//		Registry: registry.NewClient(cfg.HTTPBaseURL(), time.Duration(cfg.HTTPTimeout), logger),
//		Logger:   logger,
//	})
//	go client.Run(ctx)
//
//	roomID, err := client.CreateRoom(ctx, "Eugenia")
//
// Connection Lifecycle:
//
//	DISCONNECTED → CONNECTING → OPEN → CLOSING_INTENTIONAL → DISCONNECTED
//	                                 ↘ CLOSED_UNEXPECTED → CONNECTING …
//
// Every new connection is tagged with a generation number; events from a
// superseded connection are ignored. An unexpected close while the client is
// visible schedules one reconnect after the configured delay, and becoming
// visible again reconnects immediately. A reconnect always sends JOIN again
// with the same client id and nickname so the server can restore the slot.
//
// Dispatch never queues: an intent sent while not OPEN fails with
// ErrNotConnected, and one the round state forbids fails with
// round.ErrIllegalAction.
package service

// Package protocol defines the wire format spoken between a Stop Ultra client
// and the game server.
//
// The protocol package implements:
//   - The closed set of outbound intents (Action) and their payloads
//   - The closed set of inbound events (PLAYER_LIST_UPDATE, GAME_STATE_UPDATE)
//   - Encoding of intents and decoding of events into typed messages
//
// Message Protocol:
//
// Every websocket frame carries exactly one JSON envelope:
//   - Outgoing: {"action": "SUBMIT_ANSWER", "payload": {"answer": "MANGO"}}
//   - Incoming: {"type": "GAME_STATE_UPDATE", "payload": {"state": "PLAYING", ...}}
//
// Decoding:
//
// Decode returns a Message, a sealed interface implemented by
// PlayerListUpdate and GameStateUpdate. Frames with an unknown type return
// ErrUnknownEvent and malformed frames return ErrMalformed; callers are
// expected to drop both without tearing down the connection.
//
// Game state payloads are partial. GameStateUpdate keeps track of which
// fields were present (and which were an explicit null) so the round
// controller can shallow-merge them onto the previous round data.
package protocol

// Package round implements the client side of the game phase state machine.
//
// Phases:
//
//	LOBBY → PREPARING → PLAYING → EVALUATING → SCORES → PREPARING …
//	                                   │            │
//	                                   └─ END_GAME ─┴→ FINAL_SCORES → LOBBY
//
// The Controller never moves between phases on its own: every transition is
// the result of an authoritative GAME_STATE_UPDATE passed to Apply. A LOBBY
// update clears the round; any other update shallow-merges its fields onto
// the previous round data. Applying the same update twice is a no-op.
//
// Local Timers:
//
// Two timers approximate behavior the server does not drive:
//   - Countdown: entering PLAYING starts a one-second countdown from the
//     round's time limit. When it reaches zero the moderator's client emits
//     FORCE_END_ROUND, once per round.
//   - Spin delay: RequestSpin waits two seconds before emitting SPIN so the
//     moderator's wheel animation has time to play. The letter and category
//     only ever come from the server.
//
// Both timers belong to the phase that started them and are cancelled when
// that phase is left. Timer callbacks are handed to the Post hook so they run
// on the owner's event loop, and a callback that arrives after its timer was
// cancelled is ignored.
//
// Roles:
//
// IsModerator compares the round's moderator_id with the local client id.
// Check gates actions by phase and role. It exists so a UI can hide buttons
// that would be refused; the server remains the authority.
package round

package protocol

// Action is the name of an outbound intent
type Action string

const (
	ActionJoin          Action = "JOIN"
	ActionStartGame     Action = "START_GAME"
	ActionSpin          Action = "SPIN"
	ActionStartRound    Action = "START_ROUND"
	ActionSubmitAnswer  Action = "SUBMIT_ANSWER"
	ActionForceEndRound Action = "FORCE_END_ROUND"
	ActionSelectWinner  Action = "SELECT_WINNER"
	ActionRestartRound  Action = "RESTART_ROUND"
	ActionEndGame       Action = "END_GAME"
	ActionContinueGame  Action = "CONTINUE_GAME"
	ActionReturnToLobby Action = "RETURN_TO_LOBBY"
	ActionLeaveRoom     Action = "LEAVE_ROOM"
)

// Actions lists every intent the server understands
var Actions = []Action{
	ActionJoin,
	ActionStartGame,
	ActionSpin,
	ActionStartRound,
	ActionSubmitAnswer,
	ActionForceEndRound,
	ActionSelectWinner,
	ActionRestartRound,
	ActionEndGame,
	ActionContinueGame,
	ActionReturnToLobby,
	ActionLeaveRoom,
}

// Valid reports whether a is part of the protocol
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// EventType is the name of an inbound event
type EventType string

const (
	EventPlayerListUpdate EventType = "PLAYER_LIST_UPDATE"
	EventGameStateUpdate  EventType = "GAME_STATE_UPDATE"
)

// Phase is one state of the round/game state machine
type Phase string

const (
	PhaseLobby       Phase = "LOBBY"
	PhasePreparing   Phase = "PREPARING"
	PhasePlaying     Phase = "PLAYING"
	PhaseEvaluating  Phase = "EVALUATING"
	PhaseScores      Phase = "SCORES"
	PhaseFinalScores Phase = "FINAL_SCORES"
)

// Valid reports whether p is a known phase
func (p Phase) Valid() bool {
	switch p {
	case PhaseLobby, PhasePreparing, PhasePlaying, PhaseEvaluating, PhaseScores, PhaseFinalScores:
		return true
	}
	return false
}

// Player is one roster entry as mirrored from the server
type Player struct {
	ID          string `json:"id"`
	Nickname    string `json:"nickname"`
	IsHost      bool   `json:"is_host"`
	Score       int    `json:"score"`
	IsModerator bool   `json:"is_moderator,omitempty"`
}

// Answer is a submitted word for the current round
type Answer struct {
	ClientID string `json:"client_id"`
	Nickname string `json:"nickname"`
	Answer   string `json:"answer"`
}

// JoinPayload announces the nickname on every (re)connect
type JoinPayload struct {
	Nickname string `json:"nickname"`
}

// StartGamePayload carries the per-round time limit in seconds
type StartGamePayload struct {
	TimeLimit int `json:"time_limit"`
}

// SubmitAnswerPayload carries a player's word
type SubmitAnswerPayload struct {
	Answer string `json:"answer"`
}

// SelectWinnerPayload names the round winner
type SelectWinnerPayload struct {
	WinnerID string `json:"winner_id"`
}

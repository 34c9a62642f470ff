package service

import (
	"errors"

	"github.com/wricardo/stop-ultra/game/protocol"
	"github.com/wricardo/stop-ultra/game/round"
	"github.com/wricardo/stop-ultra/game/session"
)

var (
	ErrNotConnected    = errors.New("not connected")
	ErrNotJoined       = errors.New("not in a room")
	ErrAlreadyJoined   = errors.New("already in a room")
	ErrInvalidNickname = errors.New("invalid nickname")
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrStopped         = errors.New("client stopped")
)

// MaxNicknameLength is the longest nickname, in runes, a player may pick
const MaxNicknameLength = 12

// ConnectionState is the lifecycle of the realtime connection
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Open
	ClosingIntentional
	ClosedUnexpected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Open:
		return "OPEN"
	case ClosingIntentional:
		return "CLOSING_INTENTIONAL"
	case ClosedUnexpected:
		return "CLOSED_UNEXPECTED"
	default:
		return "DISCONNECTED"
	}
}

// Snapshot is a copy of everything the client mirrors, safe to read outside
// the event loop
type Snapshot struct {
	ClientID   string
	RoomID     string
	Nickname   string
	IsHost     bool
	Screen     session.Screen
	Connection ConnectionState
	Visible    bool
	Players    []protocol.Player

	Phase         protocol.Phase
	Round         int
	View          round.View
	IsModerator   bool
	ModeratorName string
	Remaining     int
	Spinning      bool
	Submitted     bool
	CanStartGame  bool
}

// Notification is a change observed by the event loop
type Notification interface {
	isNotification()
}

type ConnectionChanged struct {
	State ConnectionState
}

type RosterUpdated struct {
	Players []protocol.Player
	IsHost  bool
}

type PhaseChanged struct {
	Phase protocol.Phase
	Round int
}

// RoundUpdated reports new round data without a phase change
type RoundUpdated struct {
	Phase protocol.Phase
}

type CountdownTick struct {
	Remaining int
}

// ReturnedHome fires once the session has been torn down after a leave
type ReturnedHome struct{}

func (ConnectionChanged) isNotification() {}
func (RosterUpdated) isNotification()     {}
func (PhaseChanged) isNotification()      {}
func (RoundUpdated) isNotification()      {}
func (CountdownTick) isNotification()     {}
func (ReturnedHome) isNotification()      {}

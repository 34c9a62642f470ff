package service

import (
	"context"

	"github.com/wricardo/stop-ultra/game/protocol"
	"github.com/wricardo/stop-ultra/transport/websocket"
)

// GameClient defines every operation a player surface can drive
type GameClient interface {
	// Room lifecycle
	CreateRoom(ctx context.Context, nickname string) (string, error)
	JoinRoom(ctx context.Context, roomID, nickname string) error
	LeaveRoom(ctx context.Context) error

	// Intents
	Dispatch(ctx context.Context, action protocol.Action, payload any) error
	StartGame(ctx context.Context, timeLimit int) error
	Spin(ctx context.Context) error
	StartRound(ctx context.Context) error
	SubmitAnswer(ctx context.Context, answer string) error
	ForceEndRound(ctx context.Context) error
	SelectWinner(ctx context.Context, winnerID string) error
	RestartRound(ctx context.Context) error
	EndGame(ctx context.Context) error
	ContinueGame(ctx context.Context) error
	ReturnToLobby(ctx context.Context) error

	// Observation
	Snapshot(ctx context.Context) (*Snapshot, error)
	SetVisible(ctx context.Context, visible bool) error
	Notifications() <-chan Notification
}

// Registry admits players before they open a realtime connection
type Registry interface {
	CreateRoom(ctx context.Context) (string, error)
	CheckRoom(ctx context.Context, roomID, nickname string) error
}

// Conn is an open realtime connection
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Dialer opens a realtime connection. Handler callbacks may run on any
// goroutine.
type Dialer func(ctx context.Context, url string, handler websocket.Handler) (Conn, error)

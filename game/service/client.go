package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/wricardo/stop-ultra/game/config"
	"github.com/wricardo/stop-ultra/game/round"
	"github.com/wricardo/stop-ultra/game/session"
	"github.com/wricardo/stop-ultra/transport/websocket"
)

const (
	inboxSize              = 64
	defaultNotificationCap = 32
)

// Options configures a Client
type Options struct {
	Config   *config.Config
	ClientID string
	Registry Registry

	// Dial defaults to the WebSocket transport
	Dial Dialer

	// Clock defaults to the real clock
	Clock clockwork.Clock

	Logger *zap.Logger

	// NotificationBuffer is the capacity of the Notifications channel
	NotificationBuffer int
}

// Client is the player-side session: it owns the realtime connection, the
// mirrored room state and the round state machine. All of that state lives
// on the goroutine running Run; public methods submit work to it.
type Client struct {
	cfg      *config.Config
	clientID string
	registry Registry
	dial     Dialer
	clock    clockwork.Clock
	logger   *zap.Logger

	inbox         chan func()
	notifications chan Notification
	stopped       chan struct{}

	// Owned by the event loop
	session        *session.State
	round          *round.Controller
	connState      ConnectionState
	conn           Conn
	connGen        int
	dialCancel     context.CancelFunc
	leaving        bool
	visible        bool
	reconnectTimer clockwork.Timer
	reconnectGen   int
}

var _ GameClient = (*Client)(nil)

// NewClient creates a client. Call Run before using it.
func NewClient(opts Options) *Client {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NotificationBuffer <= 0 {
		opts.NotificationBuffer = defaultNotificationCap
	}

	c := &Client{
		cfg:           opts.Config,
		clientID:      opts.ClientID,
		registry:      opts.Registry,
		dial:          opts.Dial,
		clock:         opts.Clock,
		logger:        opts.Logger.With(zap.String("client_id", opts.ClientID)),
		inbox:         make(chan func(), inboxSize),
		notifications: make(chan Notification, opts.NotificationBuffer),
		stopped:       make(chan struct{}),
		session:       session.New(opts.ClientID),
		connState:     Disconnected,
		visible:       true,
	}

	if c.dial == nil {
		c.dial = func(ctx context.Context, url string, handler websocket.Handler) (Conn, error) {
			return websocket.Dial(ctx, url, handler, c.logger)
		}
	}

	c.round = round.NewController(opts.ClientID, round.Options{
		Clock:        opts.Clock,
		SpinDelay:    time.Duration(c.cfg.SpinDelay),
		TickInterval: time.Duration(c.cfg.TickInterval),
		Post:         func(fn func()) { c.post(fn) },
		Emit:         c.send,
		OnTick:       func(remaining int) { c.notify(CountdownTick{Remaining: remaining}) },
		Logger:       c.logger,
	})

	return c
}

// Run processes events until ctx is cancelled. The open connection, if
// any, is closed without a LEAVE_ROOM so the server keeps the player slot.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.stopped)
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-c.inbox:
			fn()
		}
	}
}

// Notifications delivers changes observed by the loop. Notices are dropped
// while the channel is full.
func (c *Client) Notifications() <-chan Notification {
	return c.notifications
}

// post queues fn on the event loop. It reports false once the loop is gone.
func (c *Client) post(fn func()) bool {
	select {
	case c.inbox <- fn:
		return true
	case <-c.stopped:
		return false
	}
}

// do runs fn on the event loop and waits for its result
func (c *Client) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case c.inbox <- func() { reply <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
}

func (c *Client) notify(n Notification) {
	select {
	case c.notifications <- n:
	default:
		c.logger.Debug("notification dropped", zap.String("type", fmt.Sprintf("%T", n)))
	}
}

func (c *Client) shutdown() {
	c.cancelReconnect()
	c.round.Reset()
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	if c.conn != nil {
		c.connGen++
		c.conn.Close()
		c.conn = nil
	}
}

// CreateRoom asks the registry for a new room and enters it as host
func (c *Client) CreateRoom(ctx context.Context, nickname string) (string, error) {
	nickname, err := ValidateNickname(nickname)
	if err != nil {
		return "", err
	}
	if err := c.requireHome(ctx); err != nil {
		return "", err
	}

	roomID, err := c.registry.CreateRoom(ctx)
	if err != nil {
		return "", err
	}

	err = c.do(ctx, func() error {
		return c.enterRoom(roomID, nickname, true)
	})
	if err != nil {
		return "", err
	}
	return session.NormalizeRoomID(roomID), nil
}

// JoinRoom asks the registry to admit nickname into an existing room and
// enters it. Registry refusals are returned unchanged.
func (c *Client) JoinRoom(ctx context.Context, roomID, nickname string) error {
	nickname, err := ValidateNickname(nickname)
	if err != nil {
		return err
	}
	roomID = session.NormalizeRoomID(roomID)
	if roomID == "" {
		return ErrInvalidRoomCode
	}
	if err := c.requireHome(ctx); err != nil {
		return err
	}

	if err := c.registry.CheckRoom(ctx, roomID, nickname); err != nil {
		return err
	}

	return c.do(ctx, func() error {
		return c.enterRoom(roomID, nickname, false)
	})
}

func (c *Client) requireHome(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.session.Joined() {
			return fmt.Errorf("%w: %s", ErrAlreadyJoined, c.session.RoomID())
		}
		return nil
	})
}

func (c *Client) enterRoom(roomID, nickname string, asHost bool) error {
	if c.session.Joined() {
		return fmt.Errorf("%w: %s", ErrAlreadyJoined, c.session.RoomID())
	}
	c.session.Begin(roomID, nickname, asHost)
	c.logger.Info("entering room",
		zap.String("room", c.session.RoomID()),
		zap.String("nickname", nickname),
		zap.Bool("host", asHost))
	c.connect()
	return nil
}

// LeaveRoom tells the server the player is leaving and closes the
// connection. The session is torn down once the close completes.
func (c *Client) LeaveRoom(ctx context.Context) error {
	return c.do(ctx, c.leave)
}

// SetVisible records whether the player can see the client. Becoming
// visible while a room is joined and no connection is up or being made
// triggers one reconnect.
func (c *Client) SetVisible(ctx context.Context, visible bool) error {
	return c.do(ctx, func() error {
		c.setVisible(visible)
		return nil
	})
}

func (c *Client) setVisible(visible bool) {
	c.visible = visible
	if !visible {
		return
	}
	if !c.session.Joined() || c.session.Screen() == session.ScreenHome {
		return
	}
	if c.connState == Open || c.connState == Connecting {
		return
	}
	c.logger.Info("visible again, reconnecting", zap.String("room", c.session.RoomID()))
	c.connect()
}

// Snapshot returns a copy of the mirrored state
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	err := c.do(ctx, func() error {
		snap = c.snapshot()
		return nil
	})
	return snap, err
}

func (c *Client) snapshot() *Snapshot {
	players := c.session.Players()
	fields := c.round.Fields()

	return &Snapshot{
		ClientID:      c.clientID,
		RoomID:        c.session.RoomID(),
		Nickname:      c.session.Nickname(),
		IsHost:        c.session.IsHost(),
		Screen:        c.session.Screen(),
		Connection:    c.connState,
		Visible:       c.visible,
		Players:       players,
		Phase:         c.round.Phase(),
		Round:         c.round.Round(),
		View:          c.round.View(),
		IsModerator:   c.round.IsModerator(),
		ModeratorName: round.ModeratorName(fields.ModeratorID, players),
		Remaining:     c.round.Remaining(),
		Spinning:      c.round.Spinning(),
		Submitted:     c.round.Submitted(),
		CanStartGame:  c.session.CanStartGame(),
	}
}

// ValidateNickname trims a nickname and checks its length
func ValidateNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidNickname)
	}
	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidNickname, MaxNicknameLength)
	}
	return nickname, nil
}

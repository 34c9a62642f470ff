package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/stop-ultra/game/protocol"
	"github.com/wricardo/stop-ultra/game/session"
	"github.com/wricardo/stop-ultra/transport/websocket"
)

func (c *Client) setConnState(state ConnectionState) {
	if c.connState == state {
		return
	}
	c.logger.Debug("connection state",
		zap.Stringer("from", c.connState),
		zap.Stringer("to", state))
	c.connState = state
	c.notify(ConnectionChanged{State: state})
}

// connect opens a fresh connection for the joined room. Events from any
// earlier connection are ignored from here on.
func (c *Client) connect() {
	c.abandonConn()
	c.cancelReconnect()
	c.leaving = false

	c.connGen++
	gen := c.connGen
	c.setConnState(Connecting)

	url := c.cfg.WebSocketURL(c.session.RoomID(), c.clientID)
	handler := websocket.Handler{
		OnMessage: func(data []byte) {
			c.post(func() { c.handleFrame(gen, data) })
		},
		OnClose: func(err error) {
			c.post(func() { c.handleClose(gen, err) })
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.cfg.HTTPTimeout))
	c.dialCancel = cancel

	go func() {
		defer cancel()
		conn, err := c.dial(ctx, url, handler)
		if !c.post(func() { c.handleDialResult(gen, conn, err) }) && conn != nil {
			conn.Close()
		}
	}()
}

// abandonConn drops the current connection without touching the session
func (c *Client) abandonConn() {
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) handleDialResult(gen int, conn Conn, err error) {
	if gen != c.connGen {
		if conn != nil {
			conn.Close()
		}
		return
	}
	c.dialCancel = nil

	if err != nil {
		c.logger.Warn("connection failed", zap.String("room", c.session.RoomID()), zap.Error(err))
		c.closedUnexpectedly()
		return
	}

	c.conn = conn
	c.round.Resync()
	c.setConnState(Open)
	c.logger.Info("connected", zap.String("room", c.session.RoomID()))

	if err := c.send(protocol.ActionJoin, protocol.JoinPayload{Nickname: c.session.Nickname()}); err != nil {
		c.logger.Warn("join not delivered", zap.Error(err))
	}
}

func (c *Client) handleClose(gen int, err error) {
	if gen != c.connGen {
		return
	}
	c.conn = nil

	if c.leaving {
		c.leaving = false
		c.setConnState(Disconnected)
		c.returnHome()
		return
	}

	c.logger.Info("connection lost", zap.String("room", c.session.RoomID()), zap.Error(err))
	c.closedUnexpectedly()
}

func (c *Client) closedUnexpectedly() {
	c.setConnState(ClosedUnexpected)
	c.round.CancelSpin()

	if c.visible && c.session.Joined() {
		c.scheduleReconnect()
		return
	}
	// Nothing will retry until the client is visible again
	c.setConnState(Disconnected)
}

func (c *Client) scheduleReconnect() {
	c.cancelReconnect()

	gen := c.reconnectGen
	delay := time.Duration(c.cfg.ReconnectDelay)
	c.reconnectTimer = c.clock.AfterFunc(delay, func() {
		c.post(func() {
			if gen != c.reconnectGen {
				return
			}
			c.reconnectTimer = nil
			if !c.session.Joined() || c.connState == Open || c.connState == Connecting {
				return
			}
			c.logger.Info("reconnecting", zap.String("room", c.session.RoomID()))
			c.connect()
		})
	})
	c.logger.Debug("reconnect scheduled", zap.Duration("delay", delay))
}

func (c *Client) cancelReconnect() {
	c.reconnectGen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// leave starts an intentional disconnect
func (c *Client) leave() error {
	if !c.session.Joined() {
		return ErrNotJoined
	}
	c.cancelReconnect()

	if c.conn == nil {
		// Nothing to close; supersede any dial still in flight
		c.connGen++
		c.abandonConn()
		c.setConnState(Disconnected)
		c.returnHome()
		return nil
	}

	if c.connState == Open {
		if err := c.send(protocol.ActionLeaveRoom, nil); err != nil {
			c.logger.Warn("leave not delivered", zap.Error(err))
		}
	}
	c.leaving = true
	c.setConnState(ClosingIntentional)
	c.conn.Close()
	return nil
}

func (c *Client) returnHome() {
	c.logger.Info("left room", zap.String("room", c.session.RoomID()))
	c.session.Reset()
	c.round.Reset()
	c.notify(ReturnedHome{})
}

func (c *Client) handleFrame(gen int, data []byte) {
	if gen != c.connGen {
		return
	}

	msg, err := protocol.Decode(data)
	if err != nil {
		c.logger.Debug("dropping frame", zap.Error(err))
		return
	}

	switch m := msg.(type) {
	case protocol.PlayerListUpdate:
		c.session.ApplyRosterUpdate(m.Players)
		c.notify(RosterUpdated{Players: c.session.Players(), IsHost: c.session.IsHost()})

	case protocol.GameStateUpdate:
		changed := c.round.Apply(m)
		if m.State == protocol.PhaseLobby {
			c.session.SetScreen(session.ScreenLobby)
		} else {
			c.session.SetScreen(session.ScreenGame)
		}

		if changed {
			c.notify(PhaseChanged{Phase: c.round.Phase(), Round: c.round.Round()})
		} else {
			c.notify(RoundUpdated{Phase: c.round.Phase()})
		}
	}
}

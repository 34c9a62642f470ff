package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrClosed        = errors.New("connection closed")
	ErrSendQueueFull = errors.New("send queue full")
)

// closeGrace bounds how long Close waits for the peer's close frame
const closeGrace = 2 * time.Second

// Handler receives events from a client connection. Both callbacks run on
// the connection's read goroutine.
type Handler struct {
	OnMessage func(data []byte)

	// OnClose fires exactly once per connection. err is nil after a normal
	// closure.
	OnClose func(err error)
}

// Conn is the client side of a realtime connection
type Conn struct {
	ws      *websocket.Conn
	handler Handler
	logger  *zap.Logger

	send     chan []byte
	closeReq chan struct{}
	done     chan struct{}

	closing   atomic.Bool
	closeOnce sync.Once
	finish    sync.Once
}

// Dial opens a connection and starts its pumps
func Dial(ctx context.Context, url string, handler Handler, logger *zap.Logger) (*Conn, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: writeWait,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	c := &Conn{
		ws:       ws,
		handler:  handler,
		logger:   logger,
		send:     make(chan []byte, sendBufferSize),
		closeReq: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	return c, nil
}

// Send queues a frame without blocking
func (c *Conn) Send(data []byte) error {
	if c.closing.Load() {
		return ErrClosed
	}

	select {
	case <-c.done:
		return ErrClosed
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close flushes queued frames, sends a normal close frame and tears the
// connection down once the peer answers or closeGrace elapses
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		close(c.closeReq)
		time.AfterFunc(closeGrace, func() { c.teardown(nil) })
	})
	return nil
}

// Done is closed once the connection is fully torn down
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) teardown(err error) {
	c.finish.Do(func() {
		close(c.done)
		c.ws.Close()
		if c.handler.OnClose != nil {
			c.handler.OnClose(err)
		}
	})
}

func (c *Conn) readPump() {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				(c.closing.Load() && !websocket.IsUnexpectedCloseError(err)) {
				err = nil
			} else {
				c.logger.Debug("websocket closed", zap.Error(err))
			}
			c.teardown(err)
			return
		}

		if c.handler.OnMessage != nil {
			c.handler.OnMessage(data)
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				c.teardown(err)
				return
			}

		case <-c.closeReq:
			// Flush what was queued before Close so a final intent still
			// reaches the peer
			for drained := false; !drained; {
				select {
				case message := <-c.send:
					if err := c.write(websocket.TextMessage, message); err != nil {
						c.teardown(err)
						return
					}
				default:
					drained = true
				}
			}
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.teardown(err)
				return
			}
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

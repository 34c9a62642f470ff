package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Phones on the LAN load the client from another origin
		return true
	},
}

// RoomHandler receives traffic from clients attached to a Hub
type RoomHandler interface {
	HandleMessage(roomID, clientID string, data []byte)
	HandleDisconnect(roomID, clientID string)
}

// Client represents one server-side WebSocket connection
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	roomID   string
	clientID string
}

type roomFrames struct {
	roomID string
	frames [][]byte
}

type unregisterRequest struct {
	client *Client
	reply  chan bool
}

type kickRequest struct {
	roomID   string
	clientID string
}

type countRequest struct {
	roomID string
	reply  chan int
}

// Hub maintains the set of active clients per room and fans frames out to
// them. Its maps are only touched by the Run loop.
type Hub struct {
	handler RoomHandler
	logger  *zap.Logger

	// Registered clients by room, then by client id
	rooms map[string]map[string]*Client

	broadcast  chan roomFrames
	register   chan *Client
	unregister chan unregisterRequest
	kick       chan kickRequest
	count      chan countRequest
	done       chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub(handler RoomHandler, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		handler:    handler,
		logger:     logger,
		rooms:      make(map[string]map[string]*Client),
		broadcast:  make(chan roomFrames),
		register:   make(chan *Client),
		unregister: make(chan unregisterRequest),
		kick:       make(chan kickRequest),
		count:      make(chan countRequest),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop and blocks until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.registerClient(client)

		case req := <-h.unregister:
			req.reply <- h.unregisterClient(req.client)

		case msg := <-h.broadcast:
			h.broadcastFrames(msg)

		case req := <-h.kick:
			if client, ok := h.rooms[req.roomID][req.clientID]; ok {
				h.unregisterClient(client)
			}

		case req := <-h.count:
			req.reply <- len(h.rooms[req.roomID])
		}
	}
}

// ServeWS upgrades the request and attaches the connection to a room
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, roomID, clientID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		roomID:   roomID,
		clientID: clientID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// BroadcastToRoom queues frames, in order, for every client in a room
func (h *Hub) BroadcastToRoom(roomID string, frames ...[]byte) {
	select {
	case h.broadcast <- roomFrames{roomID: roomID, frames: frames}:
	case <-h.done:
	}
}

// Disconnect closes a client's connection without notifying the handler
func (h *Hub) Disconnect(roomID, clientID string) {
	select {
	case h.kick <- kickRequest{roomID: roomID, clientID: clientID}:
	case <-h.done:
	}
}

// ClientCount returns how many connections a room currently has
func (h *Hub) ClientCount(roomID string) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{roomID: roomID, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// registerClient adds a client to a room, replacing an older connection
// for the same client id
func (h *Hub) registerClient(client *Client) {
	clients := h.rooms[client.roomID]
	if clients == nil {
		clients = make(map[string]*Client)
		h.rooms[client.roomID] = clients
	}
	if old, ok := clients[client.clientID]; ok {
		close(old.send)
	}
	clients[client.clientID] = client

	h.logger.Debug("client registered",
		zap.String("room", client.roomID),
		zap.String("client", client.clientID),
		zap.Int("clients", len(clients)))
}

// unregisterClient removes a client from its room and reports whether it was
// the room's current connection for that id
func (h *Hub) unregisterClient(client *Client) bool {
	clients, ok := h.rooms[client.roomID]
	if !ok || clients[client.clientID] != client {
		return false
	}

	delete(clients, client.clientID)
	close(client.send)

	// Clean up empty rooms
	if len(clients) == 0 {
		delete(h.rooms, client.roomID)
	}

	h.logger.Debug("client unregistered",
		zap.String("room", client.roomID),
		zap.String("client", client.clientID),
		zap.Int("remaining", len(clients)))
	return true
}

func (h *Hub) broadcastFrames(msg roomFrames) {
	for _, client := range h.rooms[msg.roomID] {
		for _, frame := range msg.frames {
			select {
			case client.send <- frame:
			default:
				// Client's send channel is full, drop it
				h.logger.Warn("client too slow, dropping",
					zap.String("room", client.roomID),
					zap.String("client", client.clientID))
				h.unregisterClient(client)
			}
			if h.rooms[msg.roomID][client.clientID] != client {
				break
			}
		}
	}
}

func (h *Hub) closeAll() {
	for _, clients := range h.rooms {
		for _, client := range clients {
			h.unregisterClient(client)
		}
	}
}

// readPump forwards frames from the connection to the room handler
func (c *Client) readPump() {
	defer func() {
		current := false
		reply := make(chan bool, 1)
		select {
		case c.hub.unregister <- unregisterRequest{client: c, reply: reply}:
			current = <-reply
		case <-c.hub.done:
		}
		c.conn.Close()

		if current && c.hub.handler != nil {
			c.hub.handler.HandleDisconnect(c.roomID, c.clientID)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("websocket read error", zap.String("client", c.clientID), zap.Error(err))
			}
			return
		}

		if c.hub.handler != nil {
			c.hub.handler.HandleMessage(c.roomID, c.clientID, data)
		}
	}
}

// writePump pumps frames from the hub to the WebSocket connection, one
// frame per message
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

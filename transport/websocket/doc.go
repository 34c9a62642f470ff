// Package websocket provides the realtime transport for Stop Ultra.
//
// The websocket package implements:
//   - Conn: the client side, one connection per joined room
//   - Hub: the server side, grouping connections by room
//
// Client:
//
// Dial opens a connection to /ws/{room_id}/{client_id} and starts a read
// pump and a write pump. Send never blocks; it fails with ErrSendQueueFull
// when the peer is not keeping up and with ErrClosed after Close. Close
// flushes queued frames before the close frame so a final LEAVE_ROOM is not
// lost. Handler.OnClose fires exactly once per connection.
//
// Server:
//
// The Hub owns every room map inside its Run loop. Inbound frames are handed
// to a RoomHandler from each connection's read goroutine; outbound frames go
// through BroadcastToRoom, which preserves the order of the frames it is
// given. A second connection for the same client id replaces the first one
// without a disconnect notification.
//
// Usage:
//
//	hub := websocket.NewHub(rooms, logger)
//	go hub.Run(ctx)
//	router.HandleFunc("/ws/{room_id}/{client_id}", func(w http.ResponseWriter, r *http.Request) {
//		vars := mux.Vars(r)
//		hub.ServeWS(w, r, vars["room_id"], vars["client_id"])
//	})
//
//	conn, err := websocket.Dial(ctx, wsURL, websocket.Handler{
//		OnMessage: func(data []byte) { ... },
//		OnClose:   func(err error) { ... },
//	}, logger)
//
// Frames are one JSON document per WebSocket message; they are never batched.
package websocket

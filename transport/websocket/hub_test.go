package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

type inbound struct {
	roomID   string
	clientID string
	data     string
}

// recordingHandler captures hub callbacks
type recordingHandler struct {
	messages    chan inbound
	mu          sync.Mutex
	disconnects []string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{messages: make(chan inbound, 16)}
}

func (h *recordingHandler) HandleMessage(roomID, clientID string, data []byte) {
	h.messages <- inbound{roomID, clientID, string(data)}
}

func (h *recordingHandler) HandleDisconnect(roomID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnects = append(h.disconnects, roomID+"/"+clientID)
}

func (h *recordingHandler) disconnected() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.disconnects...)
}

func startHub(t *testing.T, handler RoomHandler) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(handler, nil)
	go hub.Run(ctx)

	router := mux.NewRouter()
	router.HandleFunc("/ws/{room_id}/{client_id}", func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		hub.ServeWS(w, r, vars["room_id"], vars["client_id"])
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub(nil, nil)

	client := &Client{hub: hub, roomID: "ABCD", clientID: "user_a", send: make(chan []byte, 1)}
	hub.registerClient(client)

	if hub.rooms["ABCD"]["user_a"] != client {
		t.Error("Client was not registered in room")
	}
	if !hub.unregisterClient(client) {
		t.Error("Expected current client to unregister")
	}
	if _, exists := hub.rooms["ABCD"]; exists {
		t.Error("Room should have been cleaned up after last client unregistered")
	}
}

func TestHubReplacesClientWithSameID(t *testing.T) {
	hub := NewHub(nil, nil)

	old := &Client{hub: hub, roomID: "ABCD", clientID: "user_a", send: make(chan []byte, 1)}
	fresh := &Client{hub: hub, roomID: "ABCD", clientID: "user_a", send: make(chan []byte, 1)}
	hub.registerClient(old)
	hub.registerClient(fresh)

	if _, ok := <-old.send; ok {
		t.Error("Old client's send channel should be closed")
	}
	if hub.unregisterClient(old) {
		t.Error("Stale client must not unregister its replacement")
	}
	if hub.rooms["ABCD"]["user_a"] != fresh {
		t.Error("Replacement was removed")
	}
}

func TestHubBroadcastKeepsOrder(t *testing.T) {
	hub := NewHub(nil, nil)

	a := &Client{hub: hub, roomID: "ABCD", clientID: "user_a", send: make(chan []byte, 4)}
	other := &Client{hub: hub, roomID: "WXYZ", clientID: "user_b", send: make(chan []byte, 4)}
	hub.registerClient(a)
	hub.registerClient(other)

	hub.broadcastFrames(roomFrames{roomID: "ABCD", frames: [][]byte{[]byte("first"), []byte("second")}})

	if got := string(<-a.send); got != "first" {
		t.Errorf("Expected first frame, got %s", got)
	}
	if got := string(<-a.send); got != "second" {
		t.Errorf("Expected second frame, got %s", got)
	}
	if len(other.send) != 0 {
		t.Error("Frame leaked into another room")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(nil, nil)

	slow := &Client{hub: hub, roomID: "ABCD", clientID: "user_a", send: make(chan []byte, 1)}
	hub.registerClient(slow)

	hub.broadcastFrames(roomFrames{roomID: "ABCD", frames: [][]byte{[]byte("1"), []byte("2"), []byte("3")}})

	if _, exists := hub.rooms["ABCD"]; exists {
		t.Error("Slow client should have been dropped")
	}
}

func TestHubEndToEnd(t *testing.T) {
	handler := newRecordingHandler()
	hub, base := startHub(t, handler)

	received := make(chan string, 4)
	conn, err := Dial(context.Background(), base+"/ws/ABCD/user_a", Handler{
		OnMessage: func(data []byte) { received <- string(data) },
	}, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	waitFor(t, func() bool { return hub.ClientCount("ABCD") == 1 }, "Client never registered")

	if err := conn.Send([]byte(`{"action":"JOIN"}`)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	select {
	case msg := <-handler.messages:
		if msg.roomID != "ABCD" || msg.clientID != "user_a" || msg.data != `{"action":"JOIN"}` {
			t.Errorf("Unexpected inbound: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Hub never delivered the frame")
	}

	hub.BroadcastToRoom("ABCD", []byte("one"), []byte("two"))
	for _, want := range []string{"one", "two"} {
		select {
		case got := <-received:
			if got != want {
				t.Errorf("Expected %s, got %s", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("Frame %s never arrived", want)
		}
	}

	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount("ABCD") == 0 }, "Client never unregistered")
	waitFor(t, func() bool { return len(handler.disconnected()) == 1 }, "Disconnect not reported")
	if got := handler.disconnected()[0]; got != "ABCD/user_a" {
		t.Errorf("Unexpected disconnect %s", got)
	}
}

func TestHubDisconnectIsSilent(t *testing.T) {
	handler := newRecordingHandler()
	hub, base := startHub(t, handler)

	closed := make(chan error, 1)
	_, err := Dial(context.Background(), base+"/ws/ABCD/user_a", Handler{
		OnClose: func(err error) { closed <- err },
	}, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	waitFor(t, func() bool { return hub.ClientCount("ABCD") == 1 }, "Client never registered")

	hub.Disconnect("ABCD", "user_a")

	select {
	case err := <-closed:
		if err != nil {
			t.Errorf("Expected normal closure, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Client was not closed")
	}

	time.Sleep(20 * time.Millisecond)
	if len(handler.disconnected()) != 0 {
		t.Errorf("Kick should not notify the handler: %v", handler.disconnected())
	}
}

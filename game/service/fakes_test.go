package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/stop-ultra/game/protocol"
	"github.com/wricardo/stop-ultra/game/service"
	"github.com/wricardo/stop-ultra/transport/websocket"
)

const localID = "user_abc"

// fakeConn is an in-memory realtime connection
type fakeConn struct {
	url     string
	handler websocket.Handler

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return websocket.ErrClosed
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	go f.handler.OnClose(nil)
	return nil
}

// drop simulates the network going away
func (f *fakeConn) drop() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.handler.OnClose(errors.New("connection reset"))
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) intents(t *testing.T) []protocol.Intent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []protocol.Intent
	for _, data := range f.sent {
		intent, err := protocol.DecodeIntent(data)
		require.NoError(t, err)
		out = append(out, intent)
	}
	return out
}

func (f *fakeConn) actions(t *testing.T) []protocol.Action {
	var out []protocol.Action
	for _, intent := range f.intents(t) {
		out = append(out, intent.Action)
	}
	return out
}

func (f *fakeConn) count(t *testing.T, action protocol.Action) int {
	n := 0
	for _, a := range f.actions(t) {
		if a == action {
			n++
		}
	}
	return n
}

func (f *fakeConn) deliver(t *testing.T, eventType protocol.EventType, payload any) {
	t.Helper()
	data, err := protocol.EncodeEvent(eventType, payload)
	require.NoError(t, err)
	f.handler.OnMessage(data)
}

func (f *fakeConn) roster(t *testing.T, players ...protocol.Player) {
	f.deliver(t, protocol.EventPlayerListUpdate, players)
}

func (f *fakeConn) state(t *testing.T, u protocol.GameStateUpdate) {
	f.deliver(t, protocol.EventGameStateUpdate, u)
}

// fakeDialer hands out fakeConns and records every attempt
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	fail  error
}

func (d *fakeDialer) dial(ctx context.Context, url string, handler websocket.Handler) (service.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	conn := &fakeConn{url: url, handler: handler}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type fakeRegistry struct {
	roomID   string
	checkErr error
	checked  []string
}

func (r *fakeRegistry) CreateRoom(ctx context.Context) (string, error) {
	return r.roomID, nil
}

func (r *fakeRegistry) CheckRoom(ctx context.Context, roomID, nickname string) error {
	r.checked = append(r.checked, roomID+"/"+nickname)
	return r.checkErr
}

type testEnv struct {
	ctx      context.Context
	client   *service.Client
	dialer   *fakeDialer
	registry *fakeRegistry
	clock    clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	env := &testEnv{
		ctx:      ctx,
		dialer:   &fakeDialer{},
		registry: &fakeRegistry{roomID: "7Q2K"},
		clock:    clockwork.NewFakeClock(),
	}
	env.client = service.NewClient(service.Options{
		ClientID:           localID,
		Registry:           env.registry,
		Dial:               env.dialer.dial,
		Clock:              env.clock,
		NotificationBuffer: 256,
	})
	go env.client.Run(ctx)
	return env
}

func (e *testEnv) snapshot(t *testing.T) *service.Snapshot {
	t.Helper()
	snap, err := e.client.Snapshot(e.ctx)
	require.NoError(t, err)
	return snap
}

func (e *testEnv) waitFor(t *testing.T, cond func(*service.Snapshot) bool, msg string) {
	t.Helper()
	require.Eventually(t, func() bool {
		snap, err := e.client.Snapshot(e.ctx)
		return err == nil && cond(snap)
	}, time.Second, 5*time.Millisecond, msg)
}

func (e *testEnv) waitConnection(t *testing.T, state service.ConnectionState) {
	t.Helper()
	e.waitFor(t, func(s *service.Snapshot) bool { return s.Connection == state }, "connection never reached "+state.String())
}

// create enters a room as host and waits for the socket to open
func (e *testEnv) create(t *testing.T, nickname string) *fakeConn {
	t.Helper()
	_, err := e.client.CreateRoom(e.ctx, nickname)
	require.NoError(t, err)
	e.waitConnection(t, service.Open)
	return e.dialer.last()
}

// join enters a room as guest and waits for the socket to open
func (e *testEnv) join(t *testing.T, nickname string) *fakeConn {
	t.Helper()
	require.NoError(t, e.client.JoinRoom(e.ctx, "7q2k", nickname))
	e.waitConnection(t, service.Open)
	return e.dialer.last()
}

func (e *testEnv) waitNotification(t *testing.T, match func(service.Notification) bool, msg string) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case n := <-e.client.Notifications():
			if match(n) {
				return
			}
		case <-deadline:
			t.Fatal(msg)
		}
	}
}

func mustJSON(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcart-io/cartd/internal/config"
	"github.com/smartcart-io/cartd/internal/wire"
)

func testTuning() config.Tuning {
	t := config.DefaultTuning()
	t.ReconnectIntervalMillis = 20
	t.MaxReconnectAttempts = 2
	t.KeepaliveSeconds = 1
	t.HandshakeTimeoutSeconds = 2
	return t
}

// relayServer is a minimal frame endpoint for client tests. It records
// everything the client sends and pushes raw payloads on demand.
type relayServer struct {
	*httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []wire.Message
}

func newRelayServer(t *testing.T) *relayServer {
	t.Helper()
	rs := &relayServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := rs.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		rs.mu.Lock()
		rs.conns = append(rs.conns, conn)
		rs.mu.Unlock()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := wire.Decode(data)
			if err != nil {
				continue
			}
			rs.mu.Lock()
			rs.received = append(rs.received, msg)
			rs.mu.Unlock()
		}
	}))
	t.Cleanup(rs.Server.Close)
	return rs
}

func (rs *relayServer) wsURL() string {
	return "ws" + strings.TrimPrefix(rs.URL, "http")
}

func (rs *relayServer) push(t *testing.T, payload string) {
	t.Helper()
	// The server goroutine registers the connection just after the
	// handshake; wait for it rather than racing.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rs.mu.Lock()
		if len(rs.conns) > 0 {
			conn := rs.conns[len(rs.conns)-1]
			err := conn.WriteMessage(websocket.TextMessage, []byte(payload))
			rs.mu.Unlock()
			require.NoError(t, err)
			return
		}
		rs.mu.Unlock()
		if time.Now().After(deadline) {
			t.Fatal("no client connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (rs *relayServer) frames() []wire.Message {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]wire.Message(nil), rs.received...)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestClient_ConnectAndReceive(t *testing.T) {
	srv := newRelayServer(t)

	inbound := make(chan wire.Message, 8)
	c := NewClient(srv.wsURL(), testTuning(), func(m wire.Message) { inbound <- m })
	defer c.Disconnect()

	require.NoError(t, c.Connect())
	assert.Equal(t, StateOpen, c.State())

	srv.push(t, `{"type":"weight_update","device_id":"lc-1","weight":270,"stable":true,"timestamp":1}`)

	select {
	case msg := <-inbound:
		wu, ok := msg.(wire.WeightUpdate)
		require.True(t, ok)
		assert.Equal(t, "lc-1", wu.DeviceID)
	case <-time.After(2 * time.Second):
		t.Fatal("frame never delivered")
	}
}

func TestClient_MalformedFrameDiscarded(t *testing.T) {
	srv := newRelayServer(t)

	inbound := make(chan wire.Message, 8)
	c := NewClient(srv.wsURL(), testTuning(), func(m wire.Message) { inbound <- m })
	defer c.Disconnect()
	require.NoError(t, c.Connect())

	srv.push(t, `{"type":`) // malformed, must not kill the read loop
	srv.push(t, `{"type":"promo_offer"}`)
	srv.push(t, `{"type":"ping"}`)

	select {
	case msg := <-inbound:
		_, ok := msg.(wire.Ping)
		assert.True(t, ok, "only the valid known frame should arrive")
	case <-time.After(2 * time.Second):
		t.Fatal("valid frame never delivered")
	}
	assert.Empty(t, inbound)
}

func TestClient_SendDeliversFrame(t *testing.T) {
	srv := newRelayServer(t)

	c := NewClient(srv.wsURL(), testTuning(), nil)
	defer c.Disconnect()
	require.NoError(t, c.Connect())

	require.NoError(t, c.Send(wire.WeightUpdate{DeviceID: "lc-1", Weight: 100}))

	waitFor(t, func() bool { return len(srv.frames()) == 1 }, "server never received the frame")
	wu, ok := srv.frames()[0].(wire.WeightUpdate)
	require.True(t, ok)
	assert.Equal(t, "lc-1", wu.DeviceID)
}

func TestClient_SendWhileClosedDropsSilently(t *testing.T) {
	c := NewClient("ws://127.0.0.1:0/ws", testTuning(), nil)

	// No connection was ever made; the frame is dropped, not an error.
	assert.NoError(t, c.Send(wire.Ping{}))
}

func TestClient_FailsAfterReconnectBudget(t *testing.T) {
	// Nothing listens here, so every dial fails.
	c := NewClient("ws://127.0.0.1:1/ws", testTuning(), nil)
	defer c.Disconnect()

	err := c.Connect()
	assert.Error(t, err, "first dial fails")

	waitFor(t, func() bool { return c.State() == StateFailed },
		"client never reached the failed state")
}

func TestClient_RetryRequiresFailedState(t *testing.T) {
	srv := newRelayServer(t)
	c := NewClient(srv.wsURL(), testTuning(), nil)
	defer c.Disconnect()
	require.NoError(t, c.Connect())

	assert.ErrorIs(t, c.Retry(), ErrNotFailed)
}

func TestClient_RetryAfterFailure(t *testing.T) {
	srv := newRelayServer(t)
	srvURL := srv.wsURL()

	// Point at a dead port first to exhaust the budget.
	c := NewClient("ws://127.0.0.1:1/ws", testTuning(), nil)
	defer c.Disconnect()
	_ = c.Connect()
	waitFor(t, func() bool { return c.State() == StateFailed }, "never failed")

	// Manual retry against the live server.
	c.url = srvURL
	require.NoError(t, c.Retry())
	assert.Equal(t, StateOpen, c.State())
}

func TestClient_ReconnectsAfterConnectionLoss(t *testing.T) {
	srv := newRelayServer(t)

	c := NewClient(srv.wsURL(), testTuning(), nil)
	defer c.Disconnect()
	require.NoError(t, c.Connect())

	// Kill the server side; the client should dial again on its own.
	srv.mu.Lock()
	srv.conns[0].Close()
	srv.mu.Unlock()

	waitFor(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return len(srv.conns) >= 2
	}, "client never reconnected")
	waitFor(t, func() bool { return c.State() == StateOpen }, "client never reopened")
}

func TestClient_DisconnectIsIdempotent(t *testing.T) {
	srv := newRelayServer(t)
	c := NewClient(srv.wsURL(), testTuning(), nil)
	require.NoError(t, c.Connect())

	c.Disconnect()
	c.Disconnect()
	assert.Equal(t, StateClosed, c.State())

	// A closed client stays closed; no background redial.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateClosed, c.State())
}

func TestClient_DisconnectCancelsPendingReconnect(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws", testTuning(), nil)
	_ = c.Connect()

	// A reconnect is now pending; Disconnect must cancel it.
	c.Disconnect()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateClosed, c.State())
}

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcart-io/cartd/internal/core/service"
	"github.com/smartcart-io/cartd/internal/wire"
)

func dialWS(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wire.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := wire.Decode(data)
	require.NoError(t, err)
	return msg
}

func postAddItem(t *testing.T, server *httptest.Server, req AddItemHTTPRequest) {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(server.URL+"/api/cart/add-item", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWS_SubscriberReceivesCartUpdates(t *testing.T) {
	router, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	conn := dialWS(t, server, "u1")
	postAddItem(t, server, AddItemHTTPRequest{UserID: "u1", ScanType: "rfid", ScanValue: "RF001", Quantity: 2})

	msg := readFrame(t, conn)
	cu, ok := msg.(wire.CartUpdate)
	require.True(t, ok)
	assert.Equal(t, "u1", cu.UserID)
	assert.Equal(t, "add", cu.Action)
	require.NotNil(t, cu.Item)
	assert.Equal(t, "1", cu.Item.ProductID)
	assert.Equal(t, 2, cu.Item.Quantity)
}

func TestWS_OtherSessionsAreSilent(t *testing.T) {
	router, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	conn := dialWS(t, server, "u2")
	postAddItem(t, server, AddItemHTTPRequest{UserID: "u1", ScanType: "rfid", ScanValue: "RF001"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "frame for u1 must not reach the u2 subscriber")
}

func TestWS_InboundCartUpdateApplies(t *testing.T) {
	router, svc := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	conn := dialWS(t, server, "u1")
	frame := `{"type":"cart_update","action":"add","item":{"product_id":"3","quantity":1},"timestamp":1}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

	// The echo of the applied mutation confirms it landed.
	msg := readFrame(t, conn)
	cu, ok := msg.(wire.CartUpdate)
	require.True(t, ok)
	assert.Equal(t, "u1", cu.UserID, "session is inferred from the path")

	waitForEntries(t, svc, "u1", 1)
}

func TestWS_MalformedAndPingFramesAreTolerated(t *testing.T) {
	router, svc := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	conn := dialWS(t, server, "u1")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	frame := `{"type":"cart_update","action":"add","item":{"product_id":"1","quantity":1}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))

	waitForEntries(t, svc, "u1", 1)
}

func TestWS_BadPathRejected(t *testing.T) {
	router, _ := newTestRouter(t)
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func waitForEntries(t *testing.T, svc *service.CartService, userID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(svc.Snapshot(userID).Entries) == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached %d entries", userID, n)
}

package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/smartcart-io/cartd/internal/core/domain"
	"github.com/smartcart-io/cartd/internal/core/service"
	"github.com/smartcart-io/cartd/internal/hub"
	"github.com/smartcart-io/cartd/internal/obs"
	"github.com/smartcart-io/cartd/internal/wire"
)

// subscriberBuffer bounds the per-connection outbound queue; the hub
// drops frames beyond it instead of blocking.
const subscriberBuffer = 64

// WSHandler upgrades /ws/{user} connections and bridges them to the
// fan-out hub. Inbound cart_update frames are applied to the session;
// everything the session broadcasts is written back out.
type WSHandler struct {
	cartService *service.CartService
	frameHub    *hub.Hub
	upgrader    websocket.Upgrader
}

func NewWSHandler(cartService *service.CartService, frameHub *hub.Hub) *WSHandler {
	return &WSHandler{
		cartService: cartService,
		frameHub:    frameHub,
		upgrader: websocket.Upgrader{
			// The relay serves local hardware adapters and kiosk UIs.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Serve handles GET /ws/{user}.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/ws/")
	if userID == "" || strings.Contains(userID, "/") {
		http.NotFound(w, r)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		obs.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	subID := uuid.NewString()
	frames := make(chan wire.Message, subscriberBuffer)
	if err := h.frameHub.Subscribe(subID, userID, frames); err != nil {
		obs.Logger.Warn("subscribe failed", "error", err)
		conn.Close()
		return
	}
	obs.Logger.Info("subscriber connected", "user_id", userID, "subscriber", subID)

	done := make(chan struct{})
	go h.writePump(conn, frames, done)
	h.readLoop(r.Context(), conn, userID)

	h.frameHub.Unsubscribe(subID)
	close(done)
	conn.Close()
	obs.Logger.Info("subscriber disconnected", "user_id", userID, "subscriber", subID)
}

// writePump serializes broadcast frames onto the connection.
func (h *WSHandler) writePump(conn *websocket.Conn, frames <-chan wire.Message, done <-chan struct{}) {
	for {
		select {
		case msg := <-frames:
			data, err := wire.Encode(msg)
			if err != nil {
				obs.Logger.Warn("encode frame failed", "error", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop applies inbound frames until the connection dies. Malformed
// payloads are logged and skipped, never fatal.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, userID string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := wire.Decode(data)
		if err != nil {
			obs.Logger.Warn("discarding malformed frame", "user_id", userID, "error", err)
			continue
		}

		switch m := msg.(type) {
		case wire.Ping:
			// Keepalive; the frame itself resets intermediary idle timers.
		case wire.CartUpdate:
			if m.UserID == "" {
				m.UserID = userID
			}
			if err := h.cartService.ApplyCartUpdate(ctx, m); err != nil {
				obs.Logger.Warn("cart_update rejected", "user_id", m.UserID, "error", err)
			}
		case wire.WeightUpdate:
			sample := domain.WeightSample{
				DeviceID:  m.DeviceID,
				Grams:     m.Weight,
				Stable:    m.Stable,
				Timestamp: wire.FromUnixSeconds(m.Timestamp),
			}
			if err := h.cartService.UpdateWeight(ctx, sample); err != nil {
				obs.Logger.Warn("weight_update rejected", "device_id", m.DeviceID, "error", err)
			}
		case wire.Unknown:
			obs.Logger.Debug("ignoring unknown frame type", "type", m.Type)
		}
	}
}

package handler

import "net/http"

// NewRouter registers the relay routes and wraps them in the request-id
// and logging middleware.
func NewRouter(httpHandler *HTTPHandler, wsHandler *WSHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/api/cart/add-item", httpHandler.AddItem)
	mux.HandleFunc("/api/cart/", httpHandler.Cart)
	mux.HandleFunc("/api/weight/update", httpHandler.UpdateWeight)
	mux.HandleFunc("/api/weight/tare", httpHandler.Tare)
	mux.HandleFunc("/api/weight/calibrate", httpHandler.Calibrate)
	mux.HandleFunc("/api/device/bind", httpHandler.BindDevice)
	mux.HandleFunc("/ws/", wsHandler.Serve)
	return WithRequestID(WithLogging(mux))
}

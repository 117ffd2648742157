package utility

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// RefreshMessage tells a connected client to reload its data.
const RefreshMessage = "REFRESH"

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Mobile clients do not send a browser Origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub holds one active connection per device.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*websocket.Conn
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*websocket.Conn)}
}

// Register stores conn for deviceID, closing any previous connection.
func (h *Hub) Register(deviceID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[deviceID]; ok && old != conn {
		old.Close()
	}
	h.clients[deviceID] = conn
	log.Info().Str("device_id", deviceID).Msg("WebSocket client connected")
}

// Unregister drops conn if it is still the registered connection for deviceID.
func (h *Hub) Unregister(deviceID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[deviceID]; ok && cur == conn {
		delete(h.clients, deviceID)
		log.Info().Str("device_id", deviceID).Msg("WebSocket client disconnected")
	}
}

// Connected reports whether deviceID has a live connection.
func (h *Hub) Connected(deviceID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[deviceID]
	return ok
}

// Notify pushes a refresh to deviceID if it is connected. Broken connections are removed.
func (h *Hub) Notify(deviceID string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.clients[deviceID]
	if !ok {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(RefreshMessage)); err != nil {
		log.Error().Err(err).Str("device_id", deviceID).Msg("Failed to send WS message, removing client")
		conn.Close()
		delete(h.clients, deviceID)
	}
}

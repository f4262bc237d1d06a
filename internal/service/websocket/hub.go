package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dashcam/internal/dto"
	"dashcam/internal/logger"
	"dashcam/internal/metrics"
)

const (
	broadcastBuffer = 64
	writeWait       = 5 * time.Second
)

// FrameMessage carries a live frame to viewers.
type FrameMessage struct {
	Type   string `json:"type"`
	Camera string `json:"camera"`
	Image  string `json:"image"`
}

// HubService fans frames and alerts out to connected viewers.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// closes every viewer connection.
func (h *HubService) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mutex.Lock()
		for client := range h.clients {
			client.Close()
			delete(h.clients, client)
		}
		h.mutex.Unlock()
		metrics.ConnectedViewers.Set(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			metrics.ConnectedViewers.Set(float64(count))
			h.logger.Info("Client connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			metrics.ConnectedViewers.Set(float64(count))
			h.logger.Info("Client disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.send(message)
		}
	}
}

func (h *HubService) send(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message: %v", err)
			delete(h.clients, client)
			client.Close()
		}
	}
	metrics.ConnectedViewers.Set(float64(len(h.clients)))
}

// Register adds a viewer. It is a no-op once the hub has stopped.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes and closes a viewer.
func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a message for every viewer. Messages are dropped when
// the queue is full so camera ingestion never waits on slow viewers.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

// BroadcastFrame sends a JPEG frame, base64 encoded.
func (h *HubService) BroadcastFrame(image []byte, camera string) bool {
	msg, err := json.Marshal(FrameMessage{
		Type:   "frame",
		Camera: camera,
		Image:  base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		h.logger.Error("Error encoding frame message: %v", err)
		return false
	}
	return h.Broadcast(msg)
}

// BroadcastAlert sends a low-light alert.
func (h *HubService) BroadcastAlert(alert dto.LowLightAlert) bool {
	msg, err := json.Marshal(alert)
	if err != nil {
		h.logger.Error("Error encoding alert: %v", err)
		return false
	}
	return h.Broadcast(msg)
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

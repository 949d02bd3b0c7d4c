// Package viewer broadcasts the annotated stream and status notices to
// browser viewers connected over WebSocket.
package viewer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"facestream/internal/dto"
	"facestream/internal/logger"
	"facestream/internal/metrics"
	"facestream/internal/status"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"
)

const (
	writeWait      = 10 * time.Second
	clientBuffer   = 8
	broadcastQueue = 16
	frameQuality   = 70
)

// Client is one connected viewer.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte
}

type Hub struct {
	sessionID  string
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
	metrics    *metrics.Metrics

	statusMu   sync.Mutex
	lastStatus *dto.ViewerMessage
}

func NewHub(sessionID string, logger *logger.Logger, metrics *metrics.Metrics) *Hub {
	return &Hub{
		sessionID:  sessionID,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    metrics,
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				h.dropLocked(client)
			}
			h.mutex.Unlock()
			h.metrics.SetViewers(0)
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.metrics.SetViewers(count)
			h.logger.Info("Viewer %s connected. Total: %d", client.ID, count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				h.dropLocked(client)
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.metrics.SetViewers(count)
			h.logger.Info("Viewer %s disconnected. Total: %d", client.ID, count)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warning("Viewer %s too slow, disconnecting", client.ID)
					h.dropLocked(client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) dropLocked(client *Client) {
	delete(h.clients, client)
	close(client.send)
}

// Register adds a viewer and starts its writer. The welcome message and the
// latest status are queued before any broadcast.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}

	welcome := dto.ViewerMessage{
		Type:      dto.ViewerMessageWelcome,
		SessionID: h.sessionID,
		ClientID:  client.ID,
		Timestamp: time.Now(),
	}
	if data, err := json.Marshal(welcome); err == nil {
		client.send <- data
	}
	if last := h.LastStatus(); last != nil {
		if data, err := json.Marshal(last); err == nil {
			client.send <- data
		}
	}

	go h.writePump(client)
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
	return client
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every viewer. It never blocks: when the queue
// is full the message is dropped.
func (h *Hub) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Show publishes a rendered frame. Frames are only encoded while someone watches.
func (h *Hub) Show(frame gocv.Mat) {
	if h.ClientCount() == 0 || frame.Empty() {
		return
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), frameQuality})
	if err != nil {
		h.logger.Warning("Failed to encode viewer frame: %v", err)
		return
	}
	defer buf.Close()

	data, err := json.Marshal(dto.ViewerMessage{
		Type:      dto.ViewerMessageFrame,
		Image:     base64.StdEncoding.EncodeToString(buf.GetBytes()),
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Error("Failed to marshal viewer frame: %v", err)
		return
	}
	h.Broadcast(data)
}

// Report forwards a status notice to viewers.
func (h *Hub) Report(s status.Status) {
	msg := dto.ViewerMessage{
		Type:      dto.ViewerMessageStatus,
		Status:    s.Kind.String(),
		Message:   s.Text(),
		SessionID: h.sessionID,
		Timestamp: s.Time,
	}

	h.statusMu.Lock()
	h.lastStatus = &msg
	h.statusMu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to marshal status: %v", err)
		return
	}
	if !h.Broadcast(data) {
		h.logger.Trace("Viewer queue full, status %s dropped", s.Kind)
	}
}

func (h *Hub) LastStatus() *dto.ViewerMessage {
	h.statusMu.Lock()
	defer h.statusMu.Unlock()
	if h.lastStatus == nil {
		return nil
	}
	msg := *h.lastStatus
	return &msg
}

func (h *Hub) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Warning("Error sending to viewer %s: %v", client.ID, err)
			client.conn.Close()
			// Drain until the hub closes the channel.
			for range client.send {
			}
			return
		}
	}
	client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}

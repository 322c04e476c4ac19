package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bookxchange/bookxchange/internal/logger"
	"github.com/bookxchange/bookxchange/internal/models"
)

// Frame types
const (
	FrameTypeIdentify   = "identify"
	FrameTypeNewMessage = "new_message"
)

var log = logger.New("websocket")

// Frame is the JSON envelope exchanged over the socket. Clients send
// identify frames; the server pushes new_message frames.
type Frame struct {
	Type    string          `json:"type"`
	UserID  int64           `json:"userId,omitempty"`
	Message *models.Message `json:"message,omitempty"`
}

// Client represents one websocket connection. A connection is
// anonymous until its identify frame arrives; ConnID distinguishes it
// from any other connection the same user may have opened.
type Client struct {
	ConnID uuid.UUID
	UserID int64 // zero until identified
	Socket *websocket.Conn
	Send   chan []byte
}

// Manager maintains the registry of identified connections, at most
// one per user. It is injected into the message service; delivery
// through it is a best-effort hint, never the record of truth.
type Manager struct {
	clients    map[int64]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.Mutex
}

// NewManager creates a new websocket manager
func NewManager() *Manager {
	return &Manager{
		clients:    make(map[int64]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run services the register and unregister channels. Start it once,
// in its own goroutine.
func (m *Manager) Run() {
	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			// Last-registered wins; a replaced connection stays open
			// but no longer receives pushes.
			m.clients[client.UserID] = client
			log.Info("Client %s identified as user %d", client.ConnID, client.UserID)
			m.mutex.Unlock()
		case client := <-m.unregister:
			m.mutex.Lock()
			// Remove the registry entry only if it is still this
			// connection: a stale close must not evict a newer one.
			if current, ok := m.clients[client.UserID]; ok && current.ConnID == client.ConnID {
				delete(m.clients, client.UserID)
				close(client.Send)
				log.Info("Client %s (user %d) disconnected", client.ConnID, client.UserID)
			}
			m.mutex.Unlock()
		}
	}
}

// NotifyNewMessage pushes a new_message frame to the receiver's
// connection, if one is registered. Implements chat.Notifier.
func (m *Manager) NotifyNewMessage(receiverID int64, msg *models.Message) {
	frame, err := json.Marshal(Frame{Type: FrameTypeNewMessage, Message: msg})
	if err != nil {
		log.Error("Error marshaling new_message frame: %v", err)
		return
	}
	m.sendToUser(receiverID, frame)
}

// sendToUser queues a frame for a user's registered connection.
// Missing or saturated connections drop the frame; the store already
// holds the message.
func (m *Manager) sendToUser(userID int64, frame []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	client, ok := m.clients[userID]
	if !ok {
		log.Debug("User %d not connected, dropping push", userID)
		return
	}

	select {
	case client.Send <- frame:
		log.Debug("Pushed frame to user %d", userID)
	default:
		delete(m.clients, userID)
		close(client.Send)
		log.Warn("Send buffer full for user %d, dropping client %s", userID, client.ConnID)
	}
}

// HandleWebSocket upgrades the request and starts the client pumps.
// No authentication happens here; the connection stays anonymous until
// it identifies in-protocol.
func (m *Manager) HandleWebSocket(c *gin.Context) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// TODO: restrict to ALLOWED_ORIGINS once clients send the header reliably
			return true
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade connection from %s: %v", c.Request.RemoteAddr, err)
		return
	}

	client := &Client{
		ConnID: uuid.New(),
		Socket: conn,
		Send:   make(chan []byte, 256),
	}

	log.Debug("Connection %s opened from %s", client.ConnID, c.Request.RemoteAddr)

	go client.readPump(m)
	go client.writePump()
}

// readPump reads frames until the connection closes. The only inbound
// frame it acts on is identify; everything else is logged and ignored,
// and malformed frames never close the connection.
func (c *Client) readPump(m *Manager) {
	defer func() {
		if c.UserID != 0 {
			m.unregister <- c
		} else {
			close(c.Send)
		}
		c.Socket.Close()
	}()

	c.Socket.SetReadLimit(64 * 1024)
	c.Socket.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Socket.SetPongHandler(func(string) error {
		c.Socket.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error("Error reading from connection %s: %v", c.ConnID, err)
			} else {
				log.Debug("Connection %s closed: %v", c.ConnID, err)
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			log.Warn("Malformed frame on connection %s: %v", c.ConnID, err)
			continue
		}

		switch frame.Type {
		case FrameTypeIdentify:
			if frame.UserID <= 0 {
				log.Warn("Identify frame without userId on connection %s", c.ConnID)
				continue
			}
			if c.UserID != 0 {
				log.Debug("Connection %s already identified as user %d, ignoring", c.ConnID, c.UserID)
				continue
			}
			c.UserID = frame.UserID
			m.register <- c
		default:
			log.Debug("Ignoring frame type %q on connection %s", frame.Type, c.ConnID)
		}
	}
}

// writePump pumps queued frames to the connection and keeps it alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Socket.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			c.Socket.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The manager closed the channel
				c.Socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per websocket message; clients parse each
			// message as a single JSON document.
			if err := c.Socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			c.Socket.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	EventBoardChanged = "board_changed"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// Event is pushed to every open connection of the board's owner. Origin is the
// client id of the writer so that client can skip its own echo.
type Event struct {
	Type   string    `json:"type"`
	Origin string    `json:"origin,omitempty"`
	At     time.Time `json:"at"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub tracks websocket connections per user.
type Hub struct {
	mu      sync.Mutex
	clients map[uint]map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[uint]map[*client]struct{})}
}

// Attach registers conn for userID and blocks until the peer goes away.
func (h *Hub) Attach(userID uint, conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.mu.Unlock()

	log.WithField("user_id", userID).Debug("websocket attached")

	go c.writeLoop()
	c.readLoop()

	h.detach(userID, c)
}

func (h *Hub) detach(userID uint, c *client) {
	h.mu.Lock()
	if conns, ok := h.clients[userID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
	h.mu.Unlock()

	c.close()
	log.WithField("user_id", userID).Debug("websocket detached")
}

// BoardChanged notifies every connection of userID. Slow consumers whose
// buffer is full are disconnected.
func (h *Hub) BoardChanged(userID uint, origin string) {
	message, err := json.Marshal(Event{Type: EventBoardChanged, Origin: origin, At: time.Now().UTC()})
	if err != nil {
		log.WithError(err).Error("failed to marshal board event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients[userID] {
		select {
		case c.send <- message:
		default:
			log.WithField("user_id", userID).Warn("dropping slow websocket client")
			delete(h.clients[userID], c)
			c.close()
		}
	}
}

func (h *Hub) Connections(userID uint) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[userID])
}

func (h *Hub) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.clients {
		for c := range conns {
			c.close()
		}
		delete(h.clients, userID)
	}
}

func (c *client) readLoop() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("websocket read failed")
			}
			return
		}
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// internal/handlers/hub.go
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// client is one player's socket and its ordered outbound queue.
type client struct {
	playerID uuid.UUID
	conn     *websocket.Conn
	send     chan []byte
}

// writePump drains the queue until it is closed.
func (c *client) writePump(logger *logrus.Logger) {
	for data := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			logger.WithError(err).WithField("player_id", c.playerID).Debug("websocket write failed")
			c.conn.CloseNow()
			// drain so senders never see a full buffer from a dead socket
			for range c.send {
			}
			return
		}
	}
}

// hub maintains the set of connected clients keyed by player id. It never
// takes a game lock, so broadcast functions may call it while holding one.
type hub struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*client
	logger  *logrus.Logger
}

func newHub(logger *logrus.Logger) *hub {
	return &hub{clients: make(map[uuid.UUID]*client), logger: logger}
}

// register attaches conn to playerID, closing any previous socket for that player.
func (h *hub) register(playerID uuid.UUID, conn *websocket.Conn) *client {
	c := &client{playerID: playerID, conn: conn, send: make(chan []byte, sendBuffer)}
	go c.writePump(h.logger)

	h.mu.Lock()
	old := h.clients[playerID]
	h.clients[playerID] = c
	if old != nil {
		close(old.send)
	}
	h.mu.Unlock()

	if old != nil {
		go old.conn.Close(ReplacedConnection, "connected from another session")
	}
	return c
}

// unregister removes c. It reports false when a newer socket has already
// taken over the player's seat.
func (h *hub) unregister(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, ok := h.clients[c.playerID]
	if !ok {
		return true
	}
	if cur != c {
		return false
	}
	delete(h.clients, c.playerID)
	close(c.send)
	return true
}

// send queues data for playerID without blocking. A client whose queue is
// full is dropped.
func (h *hub) send(playerID uuid.UUID, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[playerID]
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.WithField("player_id", playerID).Warn("outbound queue full, dropping client")
		delete(h.clients, playerID)
		close(c.send)
		go c.conn.Close(SlowConsumerError, "too slow")
	}
}

package server

import (
	"sync"
	"time"

	"rank-observer/src/models"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

type Client struct {
	hub  *DisplayServer
	conn *websocket.Conn
	send chan interface{}

	mu      sync.RWMutex
	closed  bool
	sources map[string]struct{} // empty means every source
	symbols []string            // empty means every row
}

// -----------------------------------------------------------------------------

// trySend queues a message without blocking, false when full or closed.
func (c *Client) trySend(msg interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// -----------------------------------------------------------------------------

func (c *Client) subscribe(sources, symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sources = make(map[string]struct{}, len(sources))
	for _, s := range sources {
		c.sources[s] = struct{}{}
	}
	c.symbols = append([]string(nil), symbols...)
}

// -----------------------------------------------------------------------------

// view narrows a message to the client's subscription.
// It returns nil when an update carries nothing the client asked for.
func (c *Client) view(msg *models.MLatestData) *models.MLatestData {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.sources) == 0 && len(c.symbols) == 0 {
		return msg
	}

	out := *msg
	out.Tables = make(map[string]*models.MEnrichedTable, len(msg.Tables))
	for name, table := range msg.Tables {
		if len(c.sources) > 0 {
			if _, ok := c.sources[name]; !ok {
				continue
			}
		}
		out.Tables[name] = table.FilterSymbols(c.symbols)
	}

	if msg.Type == "UPDATE" && len(out.Tables) == 0 {
		return nil
	}
	return &out
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Act as a Watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
		c.hub.Logger.Debug("Client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.Logger.Info("WebSocket error: %v", err)
			}
			break
		}
		c.hub.HandleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
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
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.Logger.Info("Write error: %v", err)
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

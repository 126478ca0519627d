package server

import (
	"encoding/json"
	"net/http"
	"time"

	"rank-observer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *DisplayServer) handleWebsockets() {
	for {
		select {
		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.clientCount.Store(int64(len(s.clients)))
			// Send the current tables on connect
			client.trySend(client.view(s.snapshotState("INITIAL")))

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.close()
				s.clientCount.Store(int64(len(s.clients)))
			}

		case message := <-s.broadcast:
			for client := range s.clients {
				view := client.view(message)
				if view == nil {
					continue
				}
				if !client.trySend(view) {
					// Too slow, drop it so the hub never blocks
					delete(s.clients, client)
					client.close()
				}
			}
			s.clientCount.Store(int64(len(s.clients)))

		case <-s.quit:
			for client := range s.clients {
				delete(s.clients, client)
				client.close()
			}
			s.clientCount.Store(0)
			return
		}
	}
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// UpdateTable stores the latest table of its source.
func (s *DisplayServer) UpdateTable(table *models.MEnrichedTable) {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	s.latestState.Tables[table.Source] = table
	s.latestState.Timestamp = time.Now().Unix()
	s.latestState.Type = "UPDATE"
}

// -----------------------------------------------------------------------------

// UpdateMetrics stores the metrics of the last tick.
func (s *DisplayServer) UpdateMetrics(metrics models.MProcessingMetrics) {
	s.stateMutex.Lock()
	s.latestState.ProcessingMetrics = metrics
	s.stateMutex.Unlock()
}

// -----------------------------------------------------------------------------

// Broadcast queues a table for every connected client.
func (s *DisplayServer) Broadcast(table *models.MEnrichedTable) {
	s.stateMutex.RLock()
	metrics := s.latestState.ProcessingMetrics
	s.stateMutex.RUnlock()

	msg := &models.MLatestData{
		Type:              "UPDATE",
		Tables:            map[string]*models.MEnrichedTable{table.Source: table},
		Timestamp:         time.Now().Unix(),
		NextUpdate:        s.nextUpdateUnix(),
		ProcessingMetrics: metrics,
	}

	select {
	case s.broadcast <- msg:
	default:
		s.Logger.Warning("Broadcast queue full, dropping %s tick %d", table.Source, table.Tick)
	}
}

// -----------------------------------------------------------------------------
// Helper Methods
// -----------------------------------------------------------------------------

// snapshotState copies the cached state under the read lock.
func (s *DisplayServer) snapshotState(kind string) *models.MLatestData {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	tables := make(map[string]*models.MEnrichedTable, len(s.latestState.Tables))
	for k, v := range s.latestState.Tables {
		tables[k] = v
	}
	return &models.MLatestData{
		Type:              kind,
		Tables:            tables,
		Timestamp:         s.latestState.Timestamp,
		NextUpdate:        s.nextUpdateUnix(),
		ProcessingMetrics: s.latestState.ProcessingMetrics,
	}
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) nextUpdateUnix() int64 {
	if s.NextUpdate == nil {
		return 0
	}
	next := s.NextUpdate()
	if next.IsZero() {
		return 0
	}
	return next.Unix()
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *DisplayServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		send: make(chan interface{}, 256),
	}

	select {
	case s.register <- client:
	case <-s.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage applies a subscribe command and answers with the
// matching part of the current state.
func (s *DisplayServer) HandleClientMessage(client *Client, message []byte) {
	var cmd models.MSubscribeCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		s.Logger.Info("Failed to parse client command: %v, disconnecting client", err)
		client.conn.Close()
		return
	}

	if cmd.Command != "subscribe" {
		return
	}

	client.subscribe(cmd.Sources, cmd.Symbols)
	response := client.view(s.snapshotState("INITIAL"))

	client.trySend(response)
}

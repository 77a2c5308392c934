package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/metrics"
	"github.com/DE-TOX/AiAgent-Incident-response-bot/internal/models"
)

// WebSocket message types
const (
	MessageTypeIncident  = "incident"
	MessageTypeHeartbeat = "heartbeat"
)

// WSMessage is one frame on the incident event feed.
type WSMessage struct {
	Type      string           `json:"type"`
	Event     string           `json:"event,omitempty"` // "incident.created", "incident.resolved"
	Incident  *models.Incident `json:"incident,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// defaultOrigins are the development origins accepted when no allow
// list is configured.
var defaultOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// newUpgrader builds a websocket upgrader whose origin check honors the
// configured allow list. An empty Origin header (non-browser clients)
// is always accepted; "*" accepts everything.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultOrigins
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// EventHub fans incident lifecycle events out to connected WebSocket
// clients. It satisfies the orchestrator's Publisher contract.
type EventHub struct {
	ctx    context.Context
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan WSMessage
}

func newEventHub(ctx context.Context, logger *zap.Logger) *EventHub {
	return &EventHub{
		ctx:     ctx,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// PublishIncidentEvent broadcasts an incident lifecycle event to every
// connected client. Slow clients are dropped rather than blocking the
// pipeline.
func (h *EventHub) PublishIncidentEvent(eventType string, inc *models.Incident) {
	msg := WSMessage{
		Type:      MessageTypeIncident,
		Event:     eventType,
		Incident:  inc,
		Timestamp: time.Now().UTC(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			h.removeLocked(client)
		}
	}
}

// ClientCount reports how many feed clients are connected.
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *EventHub) add(client *wsClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	metrics.WebSocketConnections.Inc()
}

func (h *EventHub) remove(client *wsClient) {
	h.mu.Lock()
	h.removeLocked(client)
	h.mu.Unlock()
}

// removeLocked requires h.mu held. Closing the connection here matters
// for clients dropped as slow consumers: their read loop is still
// blocked and would otherwise hold the socket open indefinitely.
func (h *EventHub) removeLocked(client *wsClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	client.conn.Close()
	metrics.WebSocketConnections.Dec()
}

// handleWebSocket upgrades the connection and streams incident events
// until the client disconnects or the server shuts down.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := newUpgrader(s.config.Server.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan WSMessage, 16),
	}
	s.hub.add(client)
	s.logger.Info("websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	go s.writeLoop(client)
	s.readLoop(client)
}

// writeLoop pushes hub events and heartbeats to one client.
func (s *Server) writeLoop(client *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg, ok := <-client.send:
			if !ok {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteJSON(msg); err != nil {
				s.hub.remove(client)
				return
			}
			metrics.WebSocketMessagesTotal.WithLabelValues("out").Inc()

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteJSON(WSMessage{Type: MessageTypeHeartbeat, Timestamp: time.Now().UTC()}); err != nil {
				s.hub.remove(client)
				return
			}
		}
	}
}

// readLoop drains client frames so pings and close frames are handled;
// the feed is one-directional otherwise.
func (s *Server) readLoop(client *wsClient) {
	defer func() {
		s.hub.remove(client)
		client.conn.Close()
		s.logger.Info("websocket client disconnected")
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		metrics.WebSocketMessagesTotal.WithLabelValues("in").Inc()
	}
}

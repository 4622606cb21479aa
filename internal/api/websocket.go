// Package api serves the read-only reporting surface: positions,
// metrics, the optimizer leaderboard, Prometheus metrics and a
// websocket stream of equity points and risk alerts.
package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quantdesk/trading-engine/pkg/types"
)

// MessageType labels stream messages.
type MessageType string

const (
	MsgTypeEquity    MessageType = "equity"
	MsgTypeFill      MessageType = "fill"
	MsgTypeRiskAlert MessageType = "risk_alert"
	MsgTypeHeartbeat MessageType = "heartbeat"
)

// StreamMessage is one websocket frame.
type StreamMessage struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Hub fans messages out to every connected websocket client.
type Hub struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	clients map[*client]bool
	done    chan struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub; call Run in a goroutine to enable heartbeats.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]bool),
		done:    make(chan struct{}),
	}
}

// Run sends periodic heartbeats until Stop.
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.send(StreamMessage{Type: MsgTypeHeartbeat, Timestamp: time.Now().UnixMilli()})
		}
	}
}

// Stop ends the heartbeat loop.
func (h *Hub) Stop() {
	close(h.done)
}

// BroadcastEquity streams an equity curve point.
func (h *Hub) BroadcastEquity(point types.EquityCurvePoint) {
	h.broadcast(MsgTypeEquity, point)
}

// BroadcastFill streams a settled fill.
func (h *Hub) BroadcastFill(fill types.Fill) {
	h.broadcast(MsgTypeFill, fill)
}

// Alert streams a risk alert; the hub satisfies the risk.Alerter
// interface so breaches reach subscribers directly.
func (h *Hub) Alert(alert types.RiskAlert) {
	h.broadcast(MsgTypeRiskAlert, alert)
}

func (h *Hub) broadcast(msgType MessageType, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("marshalling stream payload failed", zap.Error(err))
		return
	}
	h.send(StreamMessage{
		Type:      msgType,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (h *Hub) send(msg StreamMessage) {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshalling stream frame failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			// Slow consumer: drop the connection rather than block.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) attach(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, 256)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// writePump copies hub frames to the connection. The stream is one-way;
// inbound frames are read only to detect the close.
func (h *Hub) writePump(c *client) {
	defer h.detach(c)
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer h.detach(c)
	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

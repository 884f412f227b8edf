package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/mathchat/internal/agent"
	"github.com/codefionn/mathchat/internal/consts"
	"github.com/codefionn/mathchat/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = consts.BufferSize64KB
)

// Client represents a WebSocket client
type Client struct {
	ID     string
	hub    *Hub
	conn   *websocket.Conn
	server *Server
	send   chan *WebMessage

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    bool
	runCancel context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, server *Server) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:     generateClientID(),
		hub:    hub,
		conn:   conn,
		server: server,
		send:   make(chan *WebMessage, 256),
		ctx:    ctx,
		cancel: cancel,
	}
}

// enqueue queues msg for the write pump. It reports false when the client is
// gone or too slow to keep up.
func (c *Client) enqueue(msg *WebMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		logger.Warn("Client %s send channel full, dropping message", c.ID)
		return false
	}
}

// close stops pending runs and ends the write pump.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.send)
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error: %v", err)
			}
			break
		}

		var msg WebMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.enqueue(&WebMessage{Type: MessageTypeError, Error: "invalid message: " + err.Error(), Timestamp: time.Now()})
			continue
		}
		c.handleMessage(&msg)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				logger.Debug("Failed to write message to %s: %v", c.ID, err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles incoming messages from the client
func (c *Client) handleMessage(msg *WebMessage) {
	switch msg.Type {
	case MessageTypeAsk:
		c.startRun(msg)

	case MessageTypeEvaluate:
		res := c.server.evaluate(msg.Expression)
		c.enqueue(&WebMessage{
			Type:       MessageTypeResult,
			RequestID:  msg.RequestID,
			Expression: msg.Expression,
			Content:    res.Result,
			Timestamp:  time.Now(),
		})

	case MessageTypeStop:
		c.stopRun()

	case MessageTypeClear:
		c.stopRun()
		if msg.SessionID != "" {
			c.server.sessions.clear(msg.SessionID)
		}
		c.enqueue(&WebMessage{Type: MessageTypeSystem, SessionID: msg.SessionID, Content: "Session cleared", Timestamp: time.Now()})

	default:
		logger.Warn("Unknown message type: %s", msg.Type)
		c.enqueue(&WebMessage{Type: MessageTypeError, RequestID: msg.RequestID, Error: "unknown message type: " + msg.Type, Timestamp: time.Now()})
	}
}

// startRun answers a question in the background, streaming agent events.
// A new question cancels the previous one.
func (c *Client) startRun(msg *WebMessage) {
	c.stopRun()

	ctx, cancel := context.WithCancel(c.ctx)
	c.mu.Lock()
	c.runCancel = cancel
	c.mu.Unlock()

	go func() {
		defer cancel()
		onEvent := func(ev agent.Event) {
			c.enqueue(&WebMessage{Type: MessageTypeEvent, RequestID: msg.RequestID, Event: &ev, Timestamp: time.Now()})
		}
		resp := c.server.ask(ctx, msg.SessionID, msg.Question, onEvent)
		c.enqueue(&WebMessage{
			Type:      MessageTypeAnswer,
			RequestID: msg.RequestID,
			SessionID: resp.SessionID,
			Content:   resp.Answer,
			Steps:     resp.Steps,
			Error:     resp.Error,
			Timestamp: time.Now(),
		})
	}()
}

func (c *Client) stopRun() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runCancel != nil {
		c.runCancel()
		c.runCancel = nil
	}
}

// generateClientID generates a random client ID
func generateClientID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return time.Now().Format("150405.000000")
	}
	return hex.EncodeToString(bytes)
}

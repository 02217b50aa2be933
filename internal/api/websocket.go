package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// WSMessage is an outbound WebSocket frame.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload selects channels. Names, when set, limits
// ChannelStatus events to those mapping entries.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
	Names    []string `json:"names,omitempty"`
}

// wsRequest is an inbound frame; the payload is decoded per type.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Controllers and dashboards on the LAN connect from arbitrary origins.
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn

	// mu guards send against enqueue after shutdown.
	mu     sync.Mutex
	send   chan []byte
	closed bool

	subMu    sync.RWMutex
	channels map[string]struct{}
	names    map[string]struct{}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, wsSendBufferSize),
		channels: make(map[string]struct{}),
	}
	s.hub.register(c)

	pingEvery := time.Duration(s.hub.cfg.PingInterval) * time.Second
	pongWait := time.Duration(s.hub.cfg.PongTimeout) * time.Second
	go c.writeLoop(pingEvery, pongWait)
	go c.readLoop(int64(s.hub.cfg.MaxMessageSize), pingEvery+pongWait)
}

func (c *wsClient) readLoop(limit int64, idle time.Duration) {
	defer c.hub.unregister(c)

	c.conn.SetReadLimit(limit)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(idle)) }
	extend() //nolint:errcheck // read below reports a broken connection
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Application pings count as liveness too.
		extend() //nolint:errcheck // read above reports a broken connection
		c.dispatch(data)
	}
}

func (c *wsClient) writeLoop(pingEvery, writeWait time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write reports failure
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write reports failure
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) dispatch(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if len(req.Payload) == 0 || json.Unmarshal(req.Payload, &sub) != nil {
			c.reply(req.ID, WSTypeError, errorPayload("invalid "+req.Type+" payload"))
			return
		}
		if req.Type == WSTypeSubscribe {
			c.subscribe(req.ID, sub)
		} else {
			c.unsubscribe(req.ID, sub)
		}
	default:
		c.reply(req.ID, WSTypeError, errorPayload("unknown message type: "+req.Type))
	}
}

func (c *wsClient) subscribe(id string, sub WSSubscribePayload) {
	c.subMu.Lock()
	for _, ch := range sub.Channels {
		c.channels[ch] = struct{}{}
	}
	if len(sub.Names) > 0 {
		c.names = make(map[string]struct{}, len(sub.Names))
		for _, n := range sub.Names {
			c.names[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
		}
	}
	names := c.names
	_, wantsStatus := c.channels[ChannelStatus]
	c.subMu.Unlock()

	c.hub.logger.Debug("websocket client subscribed", "channels", sub.Channels, "names", sub.Names)
	c.reply(id, WSTypeResponse, map[string]any{"subscribed": sub.Channels})

	if wantsStatus {
		data, err := encodeEvent(ChannelSnapshot, c.hub.snapshotFor(names))
		if err == nil {
			c.enqueue(data)
		}
	}
}

func (c *wsClient) unsubscribe(id string, sub WSSubscribePayload) {
	c.subMu.Lock()
	for _, ch := range sub.Channels {
		delete(c.channels, ch)
	}
	if len(sub.Names) > 0 {
		c.names = nil
	}
	c.subMu.Unlock()

	c.reply(id, WSTypeResponse, map[string]any{"unsubscribed": sub.Channels})
}

// wants reports whether an event on channel about name should reach the
// client. Name filters only apply to named events.
func (c *wsClient) wants(channel, name string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	if _, ok := c.channels[channel]; !ok {
		return false
	}
	if name == "" || len(c.names) == 0 {
		return true
	}
	_, ok := c.names[name]
	return ok
}

// enqueue queues data without blocking. It returns false when the client
// is gone or its buffer is full.
func (c *wsClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown closes the send queue once; writeLoop then closes the socket.
func (c *wsClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *wsClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err == nil {
		c.enqueue(data)
	}
}

func errorPayload(msg string) map[string]string {
	return map[string]string{"message": msg}
}

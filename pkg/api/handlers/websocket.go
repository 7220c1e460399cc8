package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/softreason/softreason/pkg/api/events"
	"github.com/softreason/softreason/pkg/logger"
)

// WebSocketConfig bounds the /ws/events endpoint. Zero values pick the
// defaults below.
type WebSocketConfig struct {
	AllowedOrigins []string
	MaxConnections int
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration

	// Buffer is the per-connection event backlog. Events beyond it are
	// dropped for that connection only.
	Buffer int
}

func (c *WebSocketConfig) setDefaults() {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 100
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.Buffer <= 0 {
		c.Buffer = 64
	}
}

const maxControlFrame = 4 << 10

// controlMessage changes what a connection receives, e.g.
// {"type":"subscribe","events":["memory.ingested"]}.
type controlMessage struct {
	Type   string   `json:"type"`
	Events []string `json:"events,omitempty"`
}

// WebSocketHandler streams broadcaster events to websocket clients. Each
// connection has its own subscription and type filter.
type WebSocketHandler struct {
	cfg      WebSocketConfig
	events   *events.Broadcaster
	log      logger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	pending int
}

func NewWebSocketHandler(log logger.Logger, b *events.Broadcaster, cfg WebSocketConfig) *WebSocketHandler {
	cfg.setDefaults()
	h := &WebSocketHandler{
		cfg:    cfg,
		events: b,
		log:    logger.OrNop(log),
		conns:  make(map[*websocket.Conn]struct{}),
	}
	origins := append([]string(nil), cfg.AllowedOrigins...)
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		return originAllowed(r, origins)
	}
	return h
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}
	if !h.reserve() {
		http.Error(w, "websocket connection limit reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.release(nil)
		h.log.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	h.track(conn)
	defer h.release(conn)

	sub := h.events.Subscribe(h.cfg.Buffer)
	defer h.events.Unsubscribe(sub)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		h.read(conn, sub.Filter())
	}()
	h.write(conn, sub, readDone)
}

// reserve claims a connection slot before the upgrade so the limit holds
// across concurrent handshakes.
func (h *WebSocketHandler) reserve() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.conns)+h.pending >= h.cfg.MaxConnections {
		return false
	}
	h.pending++
	return true
}

func (h *WebSocketHandler) track(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending--
	h.conns[conn] = struct{}{}
}

// release frees the slot of conn, or of a failed handshake when conn is nil.
func (h *WebSocketHandler) release(conn *websocket.Conn) {
	h.mu.Lock()
	if conn == nil {
		h.pending--
	} else {
		delete(h.conns, conn)
	}
	h.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

// read applies control messages until the connection fails. Pongs push
// the read deadline forward.
func (h *WebSocketHandler) read(conn *websocket.Conn, filter *events.Filter) {
	wait := h.cfg.PingInterval + h.cfg.PongTimeout
	conn.SetReadLimit(maxControlFrame)
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read failed", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}
		var msg controlMessage
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(msg.Type)) {
		case "subscribe":
			filter.Add(msg.Events...)
		case "unsubscribe":
			filter.Remove(msg.Events...)
		}
	}
}

// write is the only writer on conn. It returns when the reader stops, the
// broadcaster closes or a write fails.
func (h *WebSocketHandler) write(conn *websocket.Conn, sub *events.Subscription, readDone <-chan struct{}) {
	ping := time.NewTicker(h.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-readDone:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(h.cfg.WriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

// Connections returns the number of open websocket connections.
func (h *WebSocketHandler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close drops every open connection. Their handlers then unwind on the
// failed read.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		_ = conn.Close()
	}
}

// originAllowed accepts requests without Origin, listed origins, "*" and
// same-host origins.
func originAllowed(r *http.Request, allowed []string) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a = strings.TrimSpace(a); a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

package payments

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Channel is a live connection to a client waiting for a payment result.
type Channel interface {
	Send(ctx context.Context, msg StatusMessage) error
}

// Notifier finds the channel registered for a checkout request id.
type Notifier interface {
	Lookup(checkoutRequestID string) (Channel, bool)
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub maps checkout request ids to websocket connections.
// A newer registration for the same id replaces the older one.
type Hub struct {
	mu       sync.RWMutex
	conns    map[string]*wsChannel
	upgrader websocket.Upgrader
}

// NewHub accepts browsers from the listed origins. With no origins only
// same-origin pages may connect. Clients that send no Origin header are
// not browsers and are always let through.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		conns: make(map[string]*wsChannel),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]struct{}, len(allowedOrigins))
		for _, o := range allowedOrigins {
			allowed[normalizeOrigin(o)] = struct{}{}
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			_, ok := allowed[normalizeOrigin(origin)]
			if !ok {
				log.WithField("origin", origin).Warn("websocket origin rejected")
			}
			return ok
		}
	}
	return h
}

func normalizeOrigin(o string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(o)), "/")
}

type wsChannel struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsChannel) Send(_ context.Context, msg StatusMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsChannel) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (h *Hub) Lookup(id string) (Channel, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.conns[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) register(id string, c *wsChannel) {
	h.mu.Lock()
	old := h.conns[id]
	h.conns[id] = c
	h.mu.Unlock()
	if old != nil {
		_ = old.conn.Close()
	}
}

func (h *Hub) unregister(id string, c *wsChannel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[id] == c {
		delete(h.conns, id)
	}
}

type registerMessage struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
}

// ServeWS: GET /ws
// The client names its checkout request id in the query string or in its
// first message.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	c := &wsChannel{conn: conn}
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	id := r.URL.Query().Get("checkoutRequestId")
	if id == "" {
		var msg registerMessage
		if err := conn.ReadJSON(&msg); err != nil || msg.CheckoutRequestID == "" {
			return
		}
		id = msg.CheckoutRequestID
	}

	h.register(id, c)
	defer h.unregister(id, c)
	log.WithField("checkout", id).Debug("websocket client registered")

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()

	// The read loop only keeps the connection alive and notices when it closes.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

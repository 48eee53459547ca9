// Package stream pushes market updates to WebSocket subscribers.
package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/daszybak/omniverse_markets/internal/schema"
	"github.com/daszybak/omniverse_markets/pkg/hashset"
)

// Wildcard subscribes to every market.
const Wildcard = "*"

const writeTimeout = 10 * time.Second

// ClientMsg is what subscribers send.
type ClientMsg struct {
	Type     string `json:"type"`
	MarketID string `json:"market_id"`
}

// ServerMsg is what the hub sends back.
type ServerMsg struct {
	Type     string          `json:"type"`
	MarketID string          `json:"market_id,omitempty"`
	Provider schema.Provider `json:"provider,omitempty"`
	SyncID   string          `json:"sync_id,omitempty"`
	Market   *schema.Market  `json:"market,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Gauge tracks connected clients.
type Gauge interface {
	StreamClients(delta float64)
}

type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteJSON(v)
}

// Hub tracks subscriptions. subs maps a market ID (or Wildcard) to its
// subscribed connections.
type Hub struct {
	upgrader websocket.Upgrader
	log      *slog.Logger
	gauge    Gauge

	mu   sync.RWMutex
	subs map[string]hashset.Set[*conn]
}

// NewHub accepts connections from any origin. gauge may be nil.
func NewHub(log *slog.Logger, gauge Gauge) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		log:      log.With("component", "stream"),
		gauge:    gauge,
		subs:     make(map[string]hashset.Set[*conn]),
	}
}

// ServeHTTP upgrades the request and reads subscribe, unsubscribe and ping
// messages until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", "error", err)
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()

	if h.gauge != nil {
		h.gauge.StreamClients(1)
		defer h.gauge.StreamClients(-1)
	}
	defer h.drop(c)

	for {
		var msg ClientMsg
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("read failed", "error", err)
			}
			return
		}

		var reply ServerMsg
		switch msg.Type {
		case "subscribe":
			if msg.MarketID == "" {
				reply = ServerMsg{Type: "error", Error: "market_id is required"}
				break
			}
			h.subscribe(c, msg.MarketID)
			reply = ServerMsg{Type: "subscribed", MarketID: msg.MarketID}
		case "unsubscribe":
			h.unsubscribe(c, msg.MarketID)
			reply = ServerMsg{Type: "unsubscribed", MarketID: msg.MarketID}
		case "ping":
			reply = ServerMsg{Type: "pong"}
		default:
			reply = ServerMsg{Type: "error", Error: "unknown message type " + msg.Type}
		}
		if err := c.writeJSON(reply); err != nil {
			return
		}
	}
}

func (h *Hub) subscribe(c *conn, marketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[marketID]; !ok {
		h.subs[marketID] = hashset.NewSet[*conn]()
	}
	h.subs[marketID].Set(c)
}

func (h *Hub) unsubscribe(c *conn, marketID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[marketID]; ok {
		set.Delete(c)
		if len(set) == 0 {
			delete(h.subs, marketID)
		}
	}
}

func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.subs {
		set.Delete(c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
}

// Subscribers counts connections that would receive an update for marketID.
func (h *Hub) Subscribers(marketID string) int {
	return len(h.targets(marketID))
}

func (h *Hub) targets(marketID string) []*conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := hashset.NewSet[*conn]()
	var out []*conn
	for _, key := range []string{marketID, Wildcard} {
		for c := range h.subs[key] {
			if !seen.Has(c) {
				seen.Set(c)
				out = append(out, c)
			}
		}
	}
	return out
}

// MarketSynced sends a market_synced message to everyone subscribed to the
// market or to Wildcard. Write failures drop the connection's subscriptions.
func (h *Hub) MarketSynced(syncID string, m schema.Market) {
	conns := h.targets(m.ID)
	if len(conns) == 0 {
		return
	}

	b, err := json.Marshal(ServerMsg{Type: "market_synced", MarketID: m.ID, Provider: m.Provider, SyncID: syncID, Market: &m})
	if err != nil {
		h.log.Error("couldn't encode update", "market_id", m.ID, "error", err)
		return
	}
	for _, c := range conns {
		c.mu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		err := c.ws.WriteMessage(websocket.TextMessage, b)
		c.mu.Unlock()
		if err != nil {
			h.log.Debug("dropping subscriber", "error", err)
			h.drop(c)
		}
	}
}

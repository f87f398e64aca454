package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seenimoa/investa/internal/pipeline"
	"github.com/seenimoa/investa/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced by the router
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 512
)

// WSMessage is a message sent to WebSocket clients. Ticker is set for
// messages that belong to one report run and drives subscription filtering.
type WSMessage struct {
	Type   string      `json:"type"`
	Ticker string      `json:"ticker,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// wsRequest is a message received from a client.
//
//	{"type":"subscribe","tickers":["NVDA","AAPL"]}
//	{"type":"unsubscribe","tickers":["AAPL"]}  // no tickers clears the filter
//	{"type":"ping"}
type wsRequest struct {
	Type    string   `json:"type"`
	Tickers []string `json:"tickers,omitempty"`
}

// ============================================================
// Hub
// ============================================================

// WSHub fans pipeline progress out to connected clients.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
}

// WSClient is a single WebSocket connection. A client with no subscribed
// tickers receives every run.
type WSClient struct {
	hub  *WSHub
	send chan WSMessage

	mu      sync.Mutex
	tickers map[string]bool
}

// NewWSHub creates a hub. Run must be started before clients register.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
	}
}

// Run starts the hub event loop.
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.wants(msg.Ticker) {
					continue
				}
				select {
				case client.send <- msg:
				default:
					// Slow client; disconnect
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues msg for every interested client. It never blocks;
// messages are dropped when the queue is full.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// Observer returns a pipeline observer that broadcasts every stage event
// under the run's ticker.
func (h *WSHub) Observer() pipeline.Observer {
	return func(e pipeline.Event) {
		h.Broadcast(WSMessage{Type: "pipeline_status", Ticker: e.Ticker, Data: e})
	}
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	h.unregister <- client
}

func newWSClient(hub *WSHub) *WSClient {
	return &WSClient{hub: hub, send: make(chan WSMessage, 256), tickers: map[string]bool{}}
}

// wants reports whether a message for ticker should reach c. Messages
// without a ticker go to everyone.
func (c *WSClient) wants(ticker string) bool {
	if ticker == "" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers) == 0 || c.tickers[models.NormalizeTicker(ticker)]
}

// subscribe adds tickers to the filter and returns the resulting set.
func (c *WSClient) subscribe(tickers []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tickers {
		if t = models.NormalizeTicker(t); t != "" {
			c.tickers[t] = true
		}
	}
	return c.subscribedLocked()
}

// unsubscribe removes tickers from the filter, or clears it when none are given.
func (c *WSClient) unsubscribe(tickers []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(tickers) == 0 {
		c.tickers = map[string]bool{}
	}
	for _, t := range tickers {
		delete(c.tickers, models.NormalizeTicker(t))
	}
	return c.subscribedLocked()
}

func (c *WSClient) subscribedLocked() []string {
	out := make([]string, 0, len(c.tickers))
	for t := range c.tickers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ============================================================
// Connection
// ============================================================

// handleWebSocket upgrades the connection. Clients receive pipeline_status
// events and a report_complete message per run, limited to their
// subscribed tickers when they have any.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := newWSClient(s.wsHub)
	s.wsHub.Register(client)

	go s.wsWritePump(conn, client)
	go s.wsReadPump(conn, client)
}

// wsReadPump handles subscription requests until the connection closes.
func (s *Server) wsReadPump(conn *websocket.Conn, client *WSClient) {
	defer func() {
		client.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			trySend(client, WSMessage{Type: "error", Data: "invalid message"})
			continue
		}

		switch req.Type {
		case "subscribe":
			tickers := client.subscribe(req.Tickers)
			s.logger.Debug().Str("tickers", strings.Join(tickers, ",")).Msg("WebSocket subscribed")
			trySend(client, WSMessage{Type: "subscribed", Data: map[string][]string{"tickers": tickers}})
		case "unsubscribe":
			tickers := client.unsubscribe(req.Tickers)
			trySend(client, WSMessage{Type: "unsubscribed", Data: map[string][]string{"tickers": tickers}})
		case "ping":
			trySend(client, WSMessage{Type: "pong"})
		default:
			trySend(client, WSMessage{Type: "error", Data: "unknown message type " + req.Type})
		}
	}
}

// wsWritePump writes queued messages and keeps the connection alive.
func (s *Server) wsWritePump(conn *websocket.Conn, client *WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug().Err(err).Str("type", msg.Type).Msg("WebSocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues msg for client. The hub may already have closed send after
// dropping a slow client, so a full or closed queue drops the message.
func trySend(client *WSClient, msg WSMessage) {
	defer func() { _ = recover() }()
	select {
	case client.send <- msg:
	default:
	}
}

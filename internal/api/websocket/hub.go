package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	gwebsocket "github.com/gorilla/websocket"

	"sensor-proxy/internal/infra"
	"sensor-proxy/internal/logging"
	"sensor-proxy/internal/server"
)

// Message is the envelope written to subscribers.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts informs to them.
type Hub struct {
	logger   *logging.Logger
	upgrader gwebsocket.Upgrader

	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu    sync.RWMutex
	count int
}

func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: gwebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until the context is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.setCount(len(h.clients))
			infra.WebsocketClientConnected()
			h.logger.Info("websocket: client registered", "client", client.ID, "remote", client.remote())
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("websocket: client unregistered", "client", client.ID)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("websocket: client send buffer full, removing", "client", client.ID)
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setCount(len(h.clients))
	infra.WebsocketClientDisconnected()
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// ClientCount reports the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// BroadcastInform queues an inform for every client. Informs are dropped when the
// hub is not keeping up.
func (h *Hub) BroadcastInform(inform server.Inform) {
	payload, err := json.Marshal(Message{Type: "inform", Payload: inform})
	if err != nil {
		h.logger.Error("websocket: marshal inform", logging.AttachError(err, "inform", inform.Name)...)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.logger.Warn("websocket: broadcast queue full, dropping inform", "inform", inform.Name)
	}
}

// ServeWS upgrades the request and subscribes the connection to informs.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket: upgrade failed", logging.AttachError(err)...)
		return
	}

	client := &Client{ID: uuid.NewString(), hub: h, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.done:
		_ = conn.Close()
		return
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

var _ server.Broadcaster = (*Hub)(nil)

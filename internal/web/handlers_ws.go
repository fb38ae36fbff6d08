package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"zcl-gateway/internal/cluster"
)

const (
	hubQueueSize    = 256
	clientQueueSize = 64
	wsWriteTimeout  = 10 * time.Second
)

// attributeMessage is one frame of the /ws stream.
type attributeMessage struct {
	Type      string        `json:"type"`
	Cluster   clusterView   `json:"cluster"`
	Attribute attributeView `json:"attribute"`
}

type hubFrame struct {
	nwk uint16
	msg attributeMessage
}

// Hub streams attribute updates to WebSocket clients. It is registered as a
// router listener, so AttributeUpdated never blocks: frames are queued and
// dropped when the queue is full.
type Hub struct {
	logger *slog.Logger
	queue  chan hubFrame

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool

	done     chan struct{}
	stopOnce sync.Once
}

// wsClient is one connection. A client with a node filter only receives
// frames for that network address.
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	node   uint16
	filter bool
}

func (c *wsClient) wants(nwk uint16) bool {
	return !c.filter || c.node == nwk
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger.With("component", "ws"),
		queue:   make(chan hubFrame, hubQueueSize),
		clients: make(map[*wsClient]struct{}),
		done:    make(chan struct{}),
	}
}

// add registers c. It reports false once the hub is stopped.
func (h *Hub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug("ws client connected", "clients", len(h.clients))
	return true
}

// remove unregisters c and closes its queue. Unknown clients are ignored.
func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Debug("ws client disconnected", "clients", len(h.clients))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Run delivers queued frames until Stop, then disconnects every client.
func (h *Hub) Run() {
	for {
		select {
		case f := <-h.queue:
			h.deliver(f)
		case <-h.done:
			h.mu.Lock()
			h.closed = true
			for c := range h.clients {
				close(c.send)
			}
			clear(h.clients)
			h.mu.Unlock()
			return
		}
	}
}

// deliver hands f to every interested client. A client whose queue is full
// is dropped.
func (h *Hub) deliver(f hubFrame) {
	data, err := json.Marshal(f.msg)
	if err != nil {
		h.logger.Error("ws marshal", "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(f.nwk) {
			continue
		}
		select {
		case c.send <- data:
		default:
			delete(h.clients, c)
			close(c.send)
			h.logger.Warn("ws client too slow, disconnected", "clients", len(h.clients))
		}
	}
}

func (h *Hub) publish(f hubFrame) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.queue <- f:
	default:
		h.logger.Warn("ws queue full, dropping attribute update", "cluster", f.msg.Cluster.Cluster)
	}
}

// Stop ends Run. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// AttributeUpdated implements cluster.AttributeListener.
func (h *Hub) AttributeUpdated(c *cluster.Cluster, attr cluster.Attribute) {
	h.publish(hubFrame{
		nwk: c.Address().NetworkAddress,
		msg: attributeMessage{
			Type:      "attribute",
			Cluster:   newClusterView(c, false),
			Attribute: newAttributeView(attr),
		},
	})
}

// handleWS upgrades to a WebSocket streaming attribute updates. The optional
// addr query parameter limits the stream to one node.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	client := &wsClient{send: make(chan []byte, clientQueueSize)}
	if addr := r.URL.Query().Get("addr"); addr != "" {
		nwk, err := strconv.ParseUint(addr, 0, 16)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid network address")
			return
		}
		client.node, client.filter = uint16(nwk), true
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.allowedOrigins})
	if err != nil {
		s.logger.Error("ws accept", "err", err)
		return
	}
	conn.SetReadLimit(4096)
	client.conn = conn

	if !s.hub.add(client) {
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}
	go s.wsWriter(client)
	s.wsReader(client)
}

func (s *Server) wsWriter(client *wsClient) {
	for data := range client.send {
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		err := client.conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			return
		}
	}
	client.conn.Close(websocket.StatusNormalClosure, "")
}

// wsReader discards client frames until the connection closes or the hub
// stops.
func (s *Server) wsReader(client *wsClient) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer s.hub.remove(client)
	go func() {
		select {
		case <-s.hub.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	for {
		if _, _, err := client.conn.Read(ctx); err != nil {
			return
		}
	}
}

package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wricardo/tictactoe-arena/auth"
	"github.com/wricardo/tictactoe-arena/game/protocol"
	"github.com/wricardo/tictactoe-arena/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Frames buffered per client before it is considered too slow and dropped.
	sendBuffer = 256
)

// Handler receives connection lifecycle and inbound events. Calls for one
// connection are made from that connection's read goroutine, in order.
type Handler interface {
	Connect(ctx context.Context, connID string, identity *auth.Identity)
	Handle(ctx context.Context, connID string, ev protocol.Inbound) error
	Reject(ctx context.Context, connID string, kind protocol.Kind, err error)
	Disconnect(ctx context.Context, connID string)
}

// Client is one websocket connection
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	id       string
	identity *auth.Identity
	room     string // owned by Hub.Run
}

type membership struct {
	connID string
	roomID string // empty leaves the current room
}

type delivery struct {
	connID string
	roomID string
	except []string
	data   []byte
}

// Hub owns every client and room. All maps are touched only by Run; other
// goroutines talk to it over channels, so deliveries reach clients in the
// order they were handed to the hub.
type Hub struct {
	handler  Handler
	logger   *slog.Logger
	upgrader websocket.Upgrader

	clients map[string]*Client
	rooms   map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	membership chan membership
	outbound   chan *delivery
	done       chan struct{}

	pumps sync.WaitGroup
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithAllowedOrigins restricts browser upgrades to the given origins.
// "*" allows any origin.
func WithAllowedOrigins(origins ...string) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
		}
	}
}

// NewHub creates a hub. SetHandler must be called before Run.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		membership: make(chan membership),
		outbound:   make(chan *delivery),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetHandler installs the event handler
func (h *Hub) SetHandler(handler Handler) {
	h.handler = handler
}

// Run starts the hub's event loop and blocks until ctx is done. On return
// every client has been told to close.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.clients[client.id] = client

		case client := <-h.unregister:
			h.drop(client)

		case m := <-h.membership:
			h.move(m)

		case d := <-h.outbound:
			h.dispatch(d)

		case <-ctx.Done():
			for _, client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

// Wait blocks until every client goroutine has exited
func (h *Hub) Wait() {
	h.pumps.Wait()
}

// ServeWS upgrades the request and attaches the connection to identity,
// which may be nil for unauthenticated connections
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		id:       uuid.NewString(),
		identity: identity,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	ctx := logging.ContextWith(context.Background(), slog.String("conn", client.id))
	h.handler.Connect(ctx, client.id, identity)

	h.pumps.Add(2)
	go client.writePump()
	go client.readPump(ctx)
}

// Send delivers an event to one connection
func (h *Hub) Send(connID string, ev protocol.Outbound) {
	h.deliver(&delivery{connID: connID}, ev)
}

// Broadcast delivers an event to every connection in a room except the listed ones
func (h *Hub) Broadcast(roomID string, ev protocol.Outbound, except ...string) {
	h.deliver(&delivery{roomID: roomID, except: except}, ev)
}

// JoinRoom moves a connection into a room, leaving any previous one
func (h *Hub) JoinRoom(connID, roomID string) {
	select {
	case h.membership <- membership{connID: connID, roomID: roomID}:
	case <-h.done:
	}
}

// LeaveRoom removes a connection from its room
func (h *Hub) LeaveRoom(connID string) {
	h.JoinRoom(connID, "")
}

func (h *Hub) deliver(d *delivery, ev protocol.Outbound) {
	data, err := protocol.Encode(ev)
	if err != nil {
		h.logger.Error("failed to encode event", "event", ev.Kind(), "error", err)
		return
	}
	d.data = data

	select {
	case h.outbound <- d:
	case <-h.done:
	}
}

func (h *Hub) move(m membership) {
	client, ok := h.clients[m.connID]
	if !ok {
		return
	}
	h.leave(client)
	if m.roomID == "" {
		return
	}
	if h.rooms[m.roomID] == nil {
		h.rooms[m.roomID] = make(map[*Client]bool)
	}
	h.rooms[m.roomID][client] = true
	client.room = m.roomID
}

func (h *Hub) leave(client *Client) {
	if client.room == "" {
		return
	}
	if members, ok := h.rooms[client.room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, client.room)
		}
	}
	client.room = ""
}

func (h *Hub) dispatch(d *delivery) {
	if d.connID != "" {
		if client, ok := h.clients[d.connID]; ok {
			h.push(client, d.data)
		}
		return
	}
	for client := range h.rooms[d.roomID] {
		if slices.Contains(d.except, client.id) {
			continue
		}
		h.push(client, d.data)
	}
}

func (h *Hub) push(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		// Client's send buffer is full, drop it
		h.logger.Warn("dropping slow client", "conn", client.id)
		h.drop(client)
	}
}

// drop forgets a client and closes its send channel, which ends its writer
func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client.id]; !ok {
		return
	}
	h.leave(client)
	delete(h.clients, client.id)
	close(client.send)
}

// readPump decodes inbound frames and hands them to the handler
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.handler.Disconnect(ctx, c.id)
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		c.hub.pumps.Done()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WarnContext(ctx, "websocket read error", "error", err)
			}
			return
		}

		ev, err := protocol.DecodeInbound(frame)
		if err != nil {
			c.hub.handler.Reject(ctx, c.id, protocol.KindInvalid, err)
			continue
		}
		_ = c.hub.handler.Handle(ctx, c.id, ev)
	}
}

// writePump pumps frames from the hub to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.hub.pumps.Done()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

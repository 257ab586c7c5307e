package gateway

import (
	"context"
	"sync"

	"stagecast/internal/core/domain"

	"go.uber.org/zap"
)

// socket is the transport half of a connection. gorilla's *websocket.Conn
// satisfies it; tests substitute an in-memory one.
type socket interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const textMessage = 1

// client is one authenticated gateway connection and the rooms it sits in.
type client struct {
	id       string
	user     domain.UserID
	username string

	sock socket

	// writeMu serializes frame writes; the ping loop and room broadcasts
	// share the socket.
	writeMu sync.Mutex

	roomsMu sync.Mutex
	rooms   map[domain.RoomID]struct{}
}

func newClient(id string, user domain.UserID, username string, sock socket) *client {
	return &client{
		id:       id,
		user:     user,
		username: username,
		sock:     sock,
		rooms:    make(map[domain.RoomID]struct{}),
	}
}

func (c *client) send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteMessage(textMessage, frame)
}

func (c *client) trackRoom(room domain.RoomID) {
	c.roomsMu.Lock()
	c.rooms[room] = struct{}{}
	c.roomsMu.Unlock()
}

func (c *client) untrackRoom(room domain.RoomID) {
	c.roomsMu.Lock()
	delete(c.rooms, room)
	c.roomsMu.Unlock()
}

func (c *client) inRoom(room domain.RoomID) bool {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	_, ok := c.rooms[room]
	return ok
}

func (c *client) trackedRooms() []domain.RoomID {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	rooms := make([]domain.RoomID, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// roomBus fans frames out to other gateway nodes. Nil-safe optional.
type roomBus interface {
	Publish(ctx context.Context, room domain.RoomID, frame []byte) error
}

// Hub maps rooms to the local connections sitting in them and fans frames
// out, locally and across nodes when a bus is attached.
type Hub struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[string]*client

	bus    roomBus
	logger *zap.SugaredLogger
}

func NewHub(bus roomBus, logger *zap.SugaredLogger) *Hub {
	return &Hub{
		rooms:  make(map[domain.RoomID]map[string]*client),
		bus:    bus,
		logger: logger,
	}
}

func (h *Hub) Add(room domain.RoomID, c *client) {
	h.mu.Lock()
	conns, ok := h.rooms[room]
	if !ok {
		conns = make(map[string]*client)
		h.rooms[room] = conns
	}
	conns[c.id] = c
	h.mu.Unlock()

	c.trackRoom(room)
}

func (h *Hub) Remove(room domain.RoomID, c *client) {
	h.mu.Lock()
	if conns, ok := h.rooms[room]; ok {
		delete(conns, c.id)
		if len(conns) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	c.untrackRoom(room)
}

// Broadcast sends an event to every local connection in the room except the
// excluded one, then forwards it to other nodes. Write failures are logged
// per connection and never abort the fan-out.
func (h *Hub) Broadcast(ctx context.Context, room domain.RoomID, event string, payload interface{}, excludeConnID string) {
	frame := mustEnvelope(event, payload)
	h.deliverLocal(room, frame, excludeConnID)

	if h.bus != nil {
		if err := h.bus.Publish(ctx, room, frame); err != nil {
			h.logger.Warnw("cross-node fan-out failed", "room", room, "event", event, "error", err)
		}
	}
}

// DeliverRemote replays a frame received from another node to local members.
func (h *Hub) DeliverRemote(room domain.RoomID, frame []byte) {
	h.deliverLocal(room, frame, "")
}

func (h *Hub) deliverLocal(room domain.RoomID, frame []byte, excludeConnID string) {
	h.mu.RLock()
	conns := make([]*client, 0, len(h.rooms[room]))
	for id, c := range h.rooms[room] {
		if id == excludeConnID {
			continue
		}
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.send(frame); err != nil {
			h.logger.Warnw("room frame delivery failed",
				"room", room, "conn_id", c.id, "error", err)
		}
	}
}

// SendTo writes an event to a single connection.
func (h *Hub) SendTo(c *client, event string, payload interface{}) error {
	return c.send(mustEnvelope(event, payload))
}

// ConnsFor returns the local connections a user holds in a room.
func (h *Hub) ConnsFor(room domain.RoomID, user domain.UserID) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*client
	for _, c := range h.rooms[room] {
		if c.user == user {
			out = append(out, c)
		}
	}
	return out
}

// LocalCount reports how many local connections sit in the room.
func (h *Hub) LocalCount(room domain.RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Package realtime implements the room-based pub/sub broker behind the
// engagement push channel. Rooms are named multicast groups: event:<id> for
// event-wide updates (session live state) and session:<id> for session-scoped
// updates (questions, polls). Membership lives only in memory and only for
// the lifetime of a connection.
package realtime

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// ErrNotInitialized is returned when a broadcast is attempted on a hub that
// was not constructed with NewHub. The hub is built once at process start
// and injected everywhere it is needed.
var ErrNotInitialized = errors.New("realtime: hub not initialized")

// EventRoom returns the room name carrying event-wide updates.
func EventRoom(eventID uuid.UUID) string { return "event:" + eventID.String() }

// SessionRoom returns the room name carrying session-scoped updates.
func SessionRoom(sessionID uuid.UUID) string { return "session:" + sessionID.String() }

// Broadcaster is the handler-facing surface of the hub. Delivery is
// fire-and-forget: a failed broadcast never affects a committed write.
type Broadcaster interface {
	Broadcast(room, event string, payload interface{}) error
	RoomCount(room string) int
}

// RoomPublisher publishes a room event to other server instances.
type RoomPublisher interface {
	PublishRoomEvent(room, event string, payload []byte) error
}

// RoomSubscriber subscribes to a room's cross-instance channel and invokes
// handler for incoming events. The returned cancel stops the subscription.
type RoomSubscriber interface {
	SubscribeRoom(room string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains room -> connection membership and fans broadcast messages
// out to every connection currently joined to a room.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]*Client // room -> clientID -> client
	subs    map[string]*roomSub           // cross-instance subscription per room
	logger  *zap.Logger
	pub     RoomPublisher
	sub     RoomSubscriber
	started bool
}

// roomSub tracks one room's cross-instance subscription. cancel stays nil
// while the subscribe is still in flight.
type roomSub struct {
	cancel func()
}

// NewHub creates the hub. pub and sub may be nil, in which case broadcasts
// stay local to this process.
func NewHub(logger *zap.Logger, pub RoomPublisher, sub RoomSubscriber) *Hub {
	return &Hub{
		rooms:   make(map[string]map[string]*Client),
		subs:    make(map[string]*roomSub),
		logger:  logger,
		pub:     pub,
		sub:     sub,
		started: true,
	}
}

// Join adds a client to a room. Joining a room the client already belongs to
// is a no-op. The first member of a room starts the cross-instance
// subscription for it.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	if _, ok := h.rooms[room][c.ID]; ok {
		h.mu.Unlock()
		return
	}
	var pending *roomSub
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
		if h.sub != nil {
			pending = &roomSub{}
			h.subs[room] = pending
		}
	}
	h.rooms[room][c.ID] = c
	c.rooms[room] = struct{}{}
	h.mu.Unlock()

	// The subscribe is network I/O; it must not run under h.mu or a slow
	// Redis would stall every broadcast in the process.
	if pending != nil {
		cancel, err := h.sub.SubscribeRoom(room, func(event string, payload []byte) {
			h.deliverLocal(room, event, json.RawMessage(payload))
		})
		h.mu.Lock()
		switch {
		case err != nil:
			if h.subs[room] == pending {
				delete(h.subs, room)
			}
			h.mu.Unlock()
			h.logger.Warn("room subscribe failed", zap.String("room", room), zap.Error(err))
		case h.subs[room] == pending:
			pending.cancel = cancel
			h.mu.Unlock()
		default:
			// room emptied while the subscribe was in flight
			h.mu.Unlock()
			cancel()
		}
	}
	h.logger.Debug("client joined room",
		zap.String("client_id", c.ID), zap.String("room", room))
}

// Leave removes a client from a room. Leaving a room the client does not
// belong to is a no-op. The last member leaving tears down the
// cross-instance subscription.
func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	h.removeLocked(c, room)
	h.mu.Unlock()
	h.logger.Debug("client left room",
		zap.String("client_id", c.ID), zap.String("room", room))
}

// Disconnect removes a client from every room it joined. Called by the
// transport layer when the connection drops; no explicit leave is required.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	for room := range c.rooms {
		h.removeLocked(c, room)
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID))
}

// removeLocked drops c from room and cleans up empty rooms. Caller holds h.mu.
func (h *Hub) removeLocked(c *Client, room string) {
	m, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(m, c.ID)
	delete(c.rooms, room)
	if len(m) == 0 {
		delete(h.rooms, room)
		if sub, ok := h.subs[room]; ok {
			delete(h.subs, room)
			if sub.cancel != nil {
				sub.cancel()
			}
		}
	}
}

// Broadcast delivers payload under event to every connection currently in
// room, locally and (when a publisher is wired) on other instances.
// At-most-once, best-effort: no persistence, no delivery guarantee beyond
// current membership.
func (h *Hub) Broadcast(room, event string, payload interface{}) error {
	if h == nil || !h.started {
		return ErrNotInitialized
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.deliverLocal(room, event, json.RawMessage(data))
	if h.pub != nil {
		if err := h.pub.PublishRoomEvent(room, event, data); err != nil {
			h.logger.Warn("room publish failed", zap.String("room", room), zap.Error(err))
		}
	}
	return nil
}

// RoomCount returns the number of connections currently in a room.
func (h *Hub) RoomCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// SendToClient sends a message to a single connection (server-emitted errors).
func (h *Hub) SendToClient(c *Client, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- WSMessage{Event: event, Data: data}:
	default:
	}
}

func (h *Hub) deliverLocal(room, event string, data json.RawMessage) {
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[room]
	targets := make([]*Client, 0, len(clients))
	for _, c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- msg:
		default:
			// buffer full, drop for this client
		}
	}
}

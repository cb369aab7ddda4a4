package hub

import (
	"context"
	"log"
	"sync"

	"delivery/internal/domain"
)

// Authorizer decides whether an identity may join an identity-bound
// room. Implemented by the order service, which knows ownership and
// assignment.
type Authorizer interface {
	CanJoinOrderRoom(ctx context.Context, id domain.Identity, orderID string) bool
	CanJoinChatRoom(ctx context.Context, id domain.Identity, orderID string) bool
}

// Presence receives driver connection lifecycle callbacks. Implemented
// by the driver service: connect marks the driver online, disconnect
// forces the online flag false. Disconnect fires on every teardown
// path, graceful or not.
type Presence interface {
	DriverConnected(ctx context.Context, driverID string) (domain.VehicleTier, error)
	DriverDisconnected(ctx context.Context, driverID string)
}

// Inbound handles client-originated messages that touch core state.
// Implemented over the chat and driver services.
type Inbound interface {
	ChatMessage(ctx context.Context, id domain.Identity, orderID, body string) error
	DriverLocation(ctx context.Context, id domain.Identity, orderID string, lat, lng float64) error
}

// Hub maintains the room topology and routes events to exactly the
// right set of subscribers. One instance per process, injected into
// handlers; there is no package-level connection state.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}

	// orderSessions binds at most one driver session to each order.
	orderSessions map[string]*Client

	authorizer Authorizer
	presence   Presence
	inbound    Inbound
}

// New creates a Hub. Collaborators are attached with Wire after the
// services that implement them are constructed.
func New() *Hub {
	return &Hub{
		rooms:         make(map[string]map[*Client]struct{}),
		clients:       make(map[*Client]struct{}),
		orderSessions: make(map[string]*Client),
	}
}

// Wire attaches the hub's collaborators. Called once during process
// wiring, before the first connection is accepted.
func (h *Hub) Wire(authorizer Authorizer, presence Presence, inbound Inbound) {
	h.authorizer = authorizer
	h.presence = presence
	h.inbound = inbound
}

// register admits a client and auto-joins its identity rooms: drivers
// join their personal room and their tier pool.
func (h *Hub) register(ctx context.Context, c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	if c.identity.Role != domain.RoleDriver {
		return
	}

	driverID := c.identity.Subject
	h.join(c, DriverRoom(driverID))

	if h.presence != nil {
		tier, err := h.presence.DriverConnected(ctx, driverID)
		if err != nil {
			log.Printf("hub: driver %s connect callback failed: %v", driverID, err)
			return
		}
		h.join(c, TierPoolRoom(string(tier)))
	}
}

// unregister removes a client from every room and, for drivers, forces
// the offline presence side effect. Idempotent; safe to call from any
// disconnect path.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, known := h.clients[c]
	delete(h.clients, c)
	for room := range c.rooms {
		h.removeLocked(c, room)
	}
	c.rooms = map[string]struct{}{}
	for orderID, session := range h.orderSessions {
		if session == c {
			delete(h.orderSessions, orderID)
		}
	}
	h.mu.Unlock()

	if !known {
		return
	}

	if c.identity.Role == domain.RoleDriver && h.presence != nil {
		// Detached from the connection's context: teardown must run
		// even when the request context is already cancelled.
		h.presence.DriverDisconnected(context.Background(), c.identity.Subject)
	}
}

// join adds a client to a room. Joining a room twice is a no-op.
func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

// leave removes a client from a room. Leaving a room the client is not
// in is a no-op. A driver leaving an order room also releases the
// session binding, so another session may take the order room over.
func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, room)
	delete(c.rooms, room)
	for orderID, session := range h.orderSessions {
		if session == c && OrderRoom(orderID) == room {
			delete(h.orderSessions, orderID)
		}
	}
}

func (h *Hub) removeLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// joinOrderAsDriver binds a driver session to an order room, enforcing
// that at most one driver session is ever bound to an order. The same
// driver reconnecting replaces their previous session; any other driver
// is rejected.
func (h *Hub) joinOrderAsDriver(c *Client, orderID string) bool {
	h.mu.Lock()
	existing, bound := h.orderSessions[orderID]
	if bound && existing != c {
		if existing.identity.Subject != c.identity.Subject {
			h.mu.Unlock()
			return false
		}
		delete(existing.rooms, OrderRoom(orderID))
		h.removeLocked(existing, OrderRoom(orderID))
	}
	h.orderSessions[orderID] = c
	h.mu.Unlock()

	h.join(c, OrderRoom(orderID))
	return true
}

// Broadcast sends an event to every member of a room.
func (h *Hub) Broadcast(room string, event Event) {
	h.broadcast(room, event, nil)
}

// BroadcastExcept sends an event to every member of a room except the
// connections of one subject (used for orderTaken, which the winning
// driver must not receive).
func (h *Hub) BroadcastExcept(room string, event Event, exceptSubject string) {
	h.broadcast(room, event, func(c *Client) bool {
		return c.identity.Subject == exceptSubject
	})
}

func (h *Hub) broadcast(room string, event Event, skip func(*Client) bool) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if skip != nil && skip(c) {
			continue
		}
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.enqueue(event)
	}
}

// RoomSize returns the current membership count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

package hub

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"delivery/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one websocket connection known to the hub. A client may be
// anonymous: it stays connected but every privileged action is rejected
// individually.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity domain.Identity
	send     chan Event

	// rooms is owned by the hub and guarded by the hub mutex.
	rooms map[string]struct{}
}

// Serve admits an upgraded connection with the given identity and runs
// its pumps. It returns immediately; the connection lives on the pump
// goroutines until it drops.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, id domain.Identity) {
	c := &Client{
		hub:      h,
		conn:     conn,
		identity: id,
		send:     make(chan Event, sendBuffer),
		rooms:    make(map[string]struct{}),
	}
	h.register(ctx, c)

	go c.writePump()
	go c.readPump()
}

// enqueue offers an event to the client's send queue. A client that
// cannot drain its queue is dropped rather than allowed to stall the
// broadcast path.
func (c *Client) enqueue(event Event) {
	select {
	case c.send <- event:
	default:
		c.conn.Close()
	}
}

// readPump reads inbound events until the connection drops. The
// deferred unregister is the single teardown point, so the presence
// side effect fires on abrupt drops as well as graceful closes.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("hub: read error: %v", err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			c.reject("malformed event")
			continue
		}
		c.handle(event)
	}
}

// writePump drains the send queue and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle dispatches one inbound event. Privileged actions from an
// anonymous or unauthorized identity are rejected on this connection
// only; the connection itself stays up.
func (c *Client) handle(event Event) {
	ctx := context.Background()

	switch event.Name {
	case eventJoinOrder:
		var p joinPayload
		if !c.decode(event.Data, &p) {
			return
		}
		if c.hub.authorizer == nil || !c.hub.authorizer.CanJoinOrderRoom(ctx, c.identity, p.OrderID) {
			c.reject("not a party to this order")
			return
		}
		if c.identity.Role == domain.RoleDriver {
			if !c.hub.joinOrderAsDriver(c, p.OrderID) {
				c.reject("another driver session is bound to this order")
			}
			return
		}
		c.hub.join(c, OrderRoom(p.OrderID))

	case eventLeaveOrder:
		var p joinPayload
		if !c.decode(event.Data, &p) {
			return
		}
		c.hub.leave(c, OrderRoom(p.OrderID))

	case eventJoinChat:
		var p joinPayload
		if !c.decode(event.Data, &p) {
			return
		}
		if c.hub.authorizer == nil || !c.hub.authorizer.CanJoinChatRoom(ctx, c.identity, p.OrderID) {
			c.reject("not a party to this order")
			return
		}
		c.hub.join(c, ChatRoom(p.OrderID))

	case eventLeaveChat:
		var p joinPayload
		if !c.decode(event.Data, &p) {
			return
		}
		c.hub.leave(c, ChatRoom(p.OrderID))

	case eventChatMessage:
		var p chatPayload
		if !c.decode(event.Data, &p) {
			return
		}
		if c.hub.inbound == nil {
			return
		}
		if err := c.hub.inbound.ChatMessage(ctx, c.identity, p.OrderID, p.Body); err != nil {
			c.reject(err.Error())
		}

	case eventDriverLocation:
		var p locationPayload
		if !c.decode(event.Data, &p) {
			return
		}
		if c.hub.inbound == nil {
			return
		}
		if err := c.hub.inbound.DriverLocation(ctx, c.identity, p.OrderID, p.Lat, p.Lng); err != nil {
			c.reject(err.Error())
		}

	default:
		c.reject("unknown event " + event.Name)
	}
}

func (c *Client) decode(data json.RawMessage, into any) bool {
	if err := json.Unmarshal(data, into); err != nil {
		c.reject("malformed payload")
		return false
	}
	return true
}

func (c *Client) reject(msg string) {
	c.enqueue(NewEvent(EventError, errorPayload{Message: msg}))
}

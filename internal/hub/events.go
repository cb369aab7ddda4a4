package hub

import "encoding/json"

// Event is the wire envelope for everything the hub routes.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Server-to-client event names.
const (
	EventNewOrder           = "newOrder"           // → drivers:<tier>
	EventOrderTaken         = "orderTaken"         // → drivers:<tier>, excluding the winner
	EventDriverAssigned     = "driverAssigned"     // → order:<id>
	EventOrderStatusUpdate  = "orderStatusUpdate"  // → order:<id>
	EventDriverLocation     = "driverLocation"     // → order:<id>
	EventOrderCancelled     = "orderCancelled"     // → driver:<id>
	EventNewMessage         = "newMessage"         // → chat:<orderId>
	EventNoDriversAvailable = "noDriversAvailable" // → order:<id>
	EventError              = "error"              // → single connection
)

// Client-to-server event names.
const (
	eventJoinOrder      = "joinOrder"
	eventLeaveOrder     = "leaveOrder"
	eventJoinChat       = "joinChat"
	eventLeaveChat      = "leaveChat"
	eventChatMessage    = "chatMessage"
	eventDriverLocation = "driverLocation"
)

// NewEvent marshals a payload into an event envelope. Marshal errors can
// only come from unsupported payload types, which is a programming bug,
// so they surface as an empty-data event rather than failing the send.
func NewEvent(name string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{Name: name}
	}
	return Event{Name: name, Data: data}
}

// Room key constructors. Every addressable channel in the system is one
// of these four shapes.

func OrderRoom(orderID string) string   { return "order:" + orderID }
func DriverRoom(driverID string) string { return "driver:" + driverID }
func TierPoolRoom(tier string) string   { return "drivers:" + tier }
func ChatRoom(orderID string) string    { return "chat:" + orderID }

type joinPayload struct {
	OrderID string `json:"order_id"`
}

type chatPayload struct {
	OrderID string `json:"order_id"`
	Body    string `json:"body"`
}

type locationPayload struct {
	OrderID string  `json:"order_id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type errorPayload struct {
	Message string `json:"message"`
}

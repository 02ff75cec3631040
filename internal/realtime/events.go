package realtime

// Subscriber rooms. The empty room means everyone.
const (
	RoomAll     = ""
	RoomCashier = "cashier_room"
	RoomSeller  = "seller_room"
)

// Event names pushed to live subscribers.
const (
	EventNewOrder          = "new_order"
	EventOrderUpdated      = "order_updated"
	EventOrderStatusChange = "order_status_change"
	EventOrderPrinted      = "order_printed"
	EventStockUpdate       = "stock_update"
	EventProductCreated    = "product_created"
	EventProductUpdated    = "product_updated"
	EventProductDeleted    = "product_deleted"
)

// StockChange is one product's quantity movement inside a stock_update event.
type StockChange struct {
	ID       uint   `json:"id"`
	Quantity string `json:"quantity"`
}

// StockUpdatePayload tells subscribers which direction stock moved.
type StockUpdatePayload struct {
	Action string        `json:"action"` // "add" | "subtract"
	Items  []StockChange `json:"items"`
}

// Publisher is the fire-and-forget side channel the services broadcast
// through. Implementations must never block or fail the caller; delivery is
// best effort. Tests inject Nop or a recorder.
type Publisher interface {
	Publish(room, event string, payload any)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(string, string, any) {}

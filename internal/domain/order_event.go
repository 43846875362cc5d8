package domain

// Store-watch push payloads. Each pushed frame is JSON with a type
// discriminator; per-order watch frames carry only {"status": ...}.
const (
	EventNewOrder    = "NEW_ORDER"
	EventOrderUpdate = "ORDER_UPDATE"
)

// StoreEvent is the envelope pushed on the store watch stream. Exactly one
// of Order (NEW_ORDER) or OrderID/OrderStatus (ORDER_UPDATE) is populated.
type StoreEvent struct {
	Type        string `json:"type"`
	Order       *Order `json:"order,omitempty"`
	OrderID     uint64 `json:"order_id,omitempty"`
	OrderStatus string `json:"order_status,omitempty"`
}

// OrderEvent is a frame on the per-order watch stream.
type OrderEvent struct {
	Status string `json:"status"`
}

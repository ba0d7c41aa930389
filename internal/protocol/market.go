package protocol

// ServiceListing is a priced, discoverable service offer. Immutable once
// published except for the withdrawal flag.
type ServiceListing struct {
	ServiceID   string   `json:"service_id"`
	AgentID     string   `json:"agent_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
	Withdrawn   bool     `json:"withdrawn"`
}

// OrderStatus tracks an order through its fulfillment state machine:
//
//	pending  -> accepted | rejected
//	accepted -> fulfilled | cancelled
//	pending  -> cancelled
//
// rejected, fulfilled, and cancelled are terminal.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderAccepted  OrderStatus = "accepted"
	OrderFulfilled OrderStatus = "fulfilled"
	OrderRejected  OrderStatus = "rejected"
	OrderCancelled OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderFulfilled, OrderRejected, OrderCancelled:
		return true
	}
	return false
}

// Order is a buyer's request against a listing. Status transitions are driven
// only by the owning seller, except for buyer cancellation.
type Order struct {
	OrderID      string      `json:"order_id"`
	ServiceID    string      `json:"service_id"`
	BuyerAgentID string      `json:"buyer_agent_id"`
	Params       Params      `json:"params"`
	Status       OrderStatus `json:"status"`
	CreatedAt    string      `json:"created_at"`
	UpdatedAt    string      `json:"updated_at"`
}

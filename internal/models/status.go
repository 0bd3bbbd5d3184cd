package models

// OrderStatus represents the fulfillment status of an order
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// IsValid checks if the order status is valid
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderPending, OrderInProgress, OrderCompleted, OrderDelivered, OrderCancelled:
		return true
	default:
		return false
	}
}

// orderTransitions is the closed set of legal status transitions. The admin
// workflow walks PENDING -> IN_PROGRESS -> COMPLETED, with IN_PROGRESS able
// to fall back to PENDING. DELIVERED and CANCELLED are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderInProgress, OrderCancelled},
	OrderInProgress: {OrderPending, OrderCompleted},
	OrderCompleted:  {OrderDelivered},
	OrderDelivered:  {},
	OrderCancelled:  {},
}

// CanTransition reports whether moving from s to next is legal. Anything not
// in the transition table is rejected.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

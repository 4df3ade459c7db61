package domain

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo allows forward transitions only: new -> processing ->
// completed | cancelled. Cancellation is also reachable straight from new.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusNew:
		return next == OrderStatusProcessing || next == OrderStatusCancelled
	case OrderStatusProcessing:
		return next == OrderStatusCompleted || next == OrderStatusCancelled
	default:
		return false
	}
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// Order is created from a cart snapshot at checkout time. ItemIDs are the
// line item document ids folded into the order.
type Order struct {
	ID             string
	Email          string
	Status         OrderStatus
	Total          Money
	ItemIDs        []string
	IdempotencyKey string
}

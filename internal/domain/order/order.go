// Package order defines the boundary through which reconciled lines are
// attributed to the event organizer that must be paid out.
package order

import "context"

// Info is the organizer attribution for a merchant order.
type Info struct {
	OrderID       string `json:"order_id" bson:"order_id"`
	OrganizerID   string `json:"organizer_id" bson:"organizer_id"`
	OrganizerName string `json:"organizer_name,omitempty" bson:"organizer_name,omitempty"`
	EventID       string `json:"event_id,omitempty" bson:"event_id,omitempty"`
}

// Resolver maps an order ID to its organizer. Resolve returns (nil, nil)
// when the order is unknown; lines with unknown orders are routed to review
// rather than failing the run.
type Resolver interface {
	Resolve(ctx context.Context, orderID string) (*Info, error)
}

// Registry is the persistent order-to-organizer mapping used as a fallback
// when the live ticketing API cannot answer.
type Registry interface {
	GetByOrderID(ctx context.Context, orderID string) (*Info, error)
	Upsert(ctx context.Context, info *Info) error
}

// ErrOrderNotFound indicates the registry has no mapping for the order
type ErrOrderNotFound struct {
	OrderID string
}

func (e ErrOrderNotFound) Error() string {
	return "order not found: " + e.OrderID
}

// Is implements the errors.Is interface for ErrOrderNotFound
func (e ErrOrderNotFound) Is(target error) bool {
	t, ok := target.(ErrOrderNotFound)
	if !ok {
		return false
	}
	if t.OrderID == "" {
		return true
	}
	return e.OrderID == t.OrderID
}

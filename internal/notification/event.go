package notification

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventOrderPlaced    EventType = "order.placed"
	EventOrderDelivered EventType = "order.delivered"
	EventOrderCancelled EventType = "order.cancelled"
)

type Recipient struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
}

type Item struct {
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Event is a rendered order summary handed to notification sinks.
type Event struct {
	ID         uuid.UUID       `json:"event_id"`
	Type       EventType       `json:"type"`
	Recipient  Recipient       `json:"recipient"`
	OrderID    uuid.UUID       `json:"order_id"`
	Amount     decimal.Decimal `json:"amount"`
	Items      []Item          `json:"items"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// ShortOrderID is the customer-facing order reference: the last six
// characters of the id, upper-cased.
func (e Event) ShortOrderID() string {
	id := strings.ReplaceAll(e.OrderID.String(), "-", "")
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return strings.ToUpper(id)
}

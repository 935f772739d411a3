package order

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/identity"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusPaid       OrderStatus = "paid"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// Delivery status labels written by lifecycle operations. Staff may store any
// other free text through UpdateStatus.
const (
	DeliveryInProgress = "In Progress"
	DeliveryCancelled  = "Cancelled"
	DeliveryDelivered  = "Delivered"
)

var AllStatuses = []OrderStatus{
	StatusPending,
	StatusPaid,
	StatusProcessing,
	StatusCompleted,
	StatusDelivered,
	StatusCancelled,
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsValid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

func ParseStatus(raw string) (OrderStatus, error) {
	s := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

type OrderItem struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OrderID     uuid.UUID       `json:"order_id" db:"order_id"`
	ProductID   uuid.UUID       `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Order struct {
	ID             uuid.UUID              `json:"id" db:"id"`
	UserID         uuid.UUID              `json:"user_id" db:"user_id"`
	Status         OrderStatus            `json:"status" db:"status"`
	DeliveryStatus string                 `json:"delivery_status" db:"delivery_status"`
	Items          []OrderItem            `json:"items" db:"-"`
	TotalAmount    decimal.Decimal        `json:"total_amount" db:"total_amount"`
	Address        identity.Address       `json:"address" db:"address"`
	Payment        identity.PaymentMethod `json:"payment" db:"payment"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at" db:"updated_at"`
	DeliveredAt    *time.Time             `json:"delivered_at,omitempty" db:"delivered_at"`
}

func (o *Order) CanBeCancelled() bool {
	return allowedTransitions[o.Status][StatusCancelled]
}

// IsDelivered reports whether either the lifecycle status or the free-text
// delivery label already records a delivery.
func (o *Order) IsDelivered() bool {
	return o.Status == StatusDelivered ||
		strings.Contains(strings.ToLower(o.DeliveryStatus), "deliver")
}

// IsReviewable reports whether the order reached a state in which its
// products may be reviewed.
func (o *Order) IsReviewable() bool {
	for _, v := range []string{string(o.Status), o.DeliveryStatus} {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case string(StatusDelivered), string(StatusCompleted):
			return true
		}
	}
	return false
}

func (o *Order) ContainsProduct(productID uuid.UUID) bool {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

// CalculateTotal sums unit price times quantity and rounds to cents.
func CalculateTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total.Round(2)
}

// OrderSummary is the admin listing row.
type OrderSummary struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	UserName       string          `json:"user_name"`
	UserEmail      string          `json:"user_email"`
	Status         OrderStatus     `json:"status"`
	DeliveryStatus string          `json:"delivery_status"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	ItemsCount     int             `json:"items_count"`
	CreatedAt      time.Time       `json:"created_at"`
}

type LineItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type StatusUpdate struct {
	Status         *OrderStatus
	DeliveryStatus *string
	DeliveredAt    *time.Time
}

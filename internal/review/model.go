package review

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	UserID    uuid.UUID `json:"user_id"`
	OrderID   uuid.UUID `json:"order_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Filled by listing queries only.
	UserName    string `json:"user_name,omitempty"`
	ProductName string `json:"product_name,omitempty"`
}

func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// Aggregate is the product rating summary stored on the products row.
type Aggregate struct {
	Average decimal.Decimal `json:"average"`
	Count   int             `json:"count"`
}

// ComputeAggregate averages the given ratings rounded half away from zero to
// two decimals. No ratings yield a zero aggregate.
func ComputeAggregate(ratings []int) Aggregate {
	if len(ratings) == 0 {
		return Aggregate{Average: decimal.Zero, Count: 0}
	}

	var sum int64
	for _, r := range ratings {
		sum += int64(r)
	}

	count := int64(len(ratings))
	return Aggregate{
		Average: decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(count), 2),
		Count:   len(ratings),
	}
}

type Meta struct {
	Average      decimal.Decimal `json:"average"`
	Count        int             `json:"count"`
	Distribution map[int]int     `json:"distribution"`
}

func NewMeta(ratings []int) Meta {
	agg := ComputeAggregate(ratings)
	dist := make(map[int]int, MaxRating)
	for r := MinRating; r <= MaxRating; r++ {
		dist[r] = 0
	}
	for _, r := range ratings {
		if ValidRating(r) {
			dist[r]++
		}
	}

	return Meta{Average: agg.Average, Count: agg.Count, Distribution: dist}
}

type SubmitInput struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Rating    int
	Comment   string
}

type EditInput struct {
	Rating  *int
	Comment *string
}

package catalog

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Manufacturer string          `json:"manufacturer" db:"manufacturer"`
	Category     string          `json:"category" db:"category"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Rating       decimal.Decimal `json:"rating" db:"rating"`
	ReviewsCount int             `json:"reviews_count" db:"reviews_count"`
	IsDeleted    bool            `json:"is_deleted" db:"is_deleted"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// Quote is the live catalog price of a product at the moment it is read.
type Quote struct {
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
}

package identity

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

type Address struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2"`
	City     string `json:"city"`
	Zip      string `json:"zip"`
}

// PaymentMethod only ever holds the masked card number.
type PaymentMethod struct {
	CardHolderName   string `json:"card_holder_name"`
	MaskedCardNumber string `json:"masked_card_number"`
	Brand            string `json:"brand"`
	Expiry           string `json:"expiry"`
}

type User struct {
	ID        uuid.UUID     `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	Email     string        `json:"email" db:"email"`
	Role      Role          `json:"role" db:"role"`
	Address   Address       `json:"address" db:"address"`
	Payment   PaymentMethod `json:"payment_method" db:"payment_method"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) HasAddress() bool {
	return strings.TrimSpace(u.Address.Line1) != ""
}

func (u *User) HasPaymentMethod() bool {
	return strings.TrimSpace(u.Payment.MaskedCardNumber) != ""
}

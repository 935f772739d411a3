package order

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrPreconditionFailed = errors.New("address and payment method are required to place an order")
	ErrInvalidReference   = errors.New("product is unknown or no longer available")
	ErrInvalidPrice       = errors.New("product price must be greater than zero")
	ErrForbidden          = errors.New("order belongs to another user")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrAlreadyDelivered   = errors.New("order is already delivered")
	ErrInvalidInput       = errors.New("invalid order input")
	ErrInvalidStatus      = errors.New("unknown order status")
)

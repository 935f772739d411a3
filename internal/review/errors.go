package review

import "errors"

var (
	ErrReviewNotFound   = errors.New("review not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrInvalidInput     = errors.New("invalid review input")
	ErrInvalidState     = errors.New("order must be completed or delivered before it can be reviewed")
	ErrInvalidReference = errors.New("product is not part of the order")
	ErrConflict         = errors.New("an active review for this product and order already exists")
	ErrForbidden        = errors.New("review belongs to another user")
)

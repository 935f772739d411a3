package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/identity"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/listing"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/metrics"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/order"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("pharmacy/review")

// OrderReader is the slice of the order ledger reviews depend on.
type OrderReader interface {
	GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error)
}

type ProductReviews struct {
	listing.Page[Review]
	Meta Meta `json:"meta"`
}

type Service interface {
	Submit(ctx context.Context, user *identity.User, in SubmitInput) (*Review, error)
	Edit(ctx context.Context, reviewID uuid.UUID, actingUser *identity.User, in EditInput) (*Review, error)
	Deactivate(ctx context.Context, reviewID uuid.UUID, actingUser *identity.User) error
	Recompute(ctx context.Context, productID uuid.UUID) (Aggregate, error)
	ProductReviews(ctx context.Context, productID uuid.UUID, p listing.Params) (ProductReviews, error)
	ListReviews(ctx context.Context, q listing.ReviewQuery, productID uuid.UUID) (listing.Page[Review], error)
}

type service struct {
	repo   Repository
	orders OrderReader
}

func NewService(repo Repository, orders OrderReader) Service {
	return &service{repo: repo, orders: orders}
}

func (s *service) Submit(ctx context.Context, user *identity.User, in SubmitInput) (*Review, error) {
	ctx, span := tracer.Start(ctx, "review.Submit")
	defer span.End()

	if user == nil {
		return nil, ErrForbidden
	}
	if !ValidRating(in.Rating) {
		return nil, ErrInvalidRating
	}
	if in.OrderID == uuid.Nil || in.ProductID == uuid.Nil {
		return nil, fmt.Errorf("%w: order and product are required", ErrInvalidInput)
	}

	o, err := s.orders.GetOrderByID(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", in.OrderID).Msg("service: failed to fetch order for review")
		return nil, fmt.Errorf("service: failed to fetch order: %w", err)
	}
	if o.UserID != user.ID {
		log.Warn().Stringer("order_id", in.OrderID).Stringer("user_id", user.ID).Msg("service: review attempt on foreign order")
		return nil, ErrOrderNotFound
	}

	if !o.IsReviewable() {
		return nil, ErrInvalidState
	}
	if !o.ContainsProduct(in.ProductID) {
		return nil, ErrInvalidReference
	}

	exists, err := s.repo.HasActive(ctx, user.ID, in.OrderID, in.ProductID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", in.OrderID).Msg("service: failed to check existing review")
		return nil, fmt.Errorf("service: failed to check existing review: %w", err)
	}
	if exists {
		return nil, ErrConflict
	}

	rv := &Review{
		ProductID: in.ProductID,
		UserID:    user.ID,
		OrderID:   in.OrderID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
	}
	if err := s.repo.Create(ctx, rv); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrConflict
		}
		log.Error().Err(err).Stringer("order_id", in.OrderID).Msg("service: failed to create review in repository")
		return nil, fmt.Errorf("service: failed to create review: %w", err)
	}

	log.Info().Stringer("review_id", rv.ID).Stringer("product_id", rv.ProductID).Int("rating", rv.Rating).Msg("service: review submitted")
	s.recomputeAfterWrite(ctx, rv.ProductID)

	return rv, nil
}

func (s *service) Edit(ctx context.Context, reviewID uuid.UUID, actingUser *identity.User, in EditInput) (*Review, error) {
	ctx, span := tracer.Start(ctx, "review.Edit")
	defer span.End()

	if in.Rating == nil && in.Comment == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if in.Rating != nil && !ValidRating(*in.Rating) {
		return nil, ErrInvalidRating
	}

	rv, err := s.activeReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if actingUser == nil || rv.UserID != actingUser.ID {
		return nil, ErrForbidden
	}

	if in.Rating != nil {
		rv.Rating = *in.Rating
	}
	if in.Comment != nil {
		rv.Comment = strings.TrimSpace(*in.Comment)
	}

	if err := s.repo.Update(ctx, rv); err != nil {
		if errors.Is(err, ErrReviewNotFound) {
			return nil, ErrReviewNotFound
		}
		log.Error().Err(err).Stringer("review_id", reviewID).Msg("service: failed to update review in repository")
		return nil, fmt.Errorf("service: failed to update review: %w", err)
	}

	s.recomputeAfterWrite(ctx, rv.ProductID)
	return rv, nil
}

func (s *service) Deactivate(ctx context.Context, reviewID uuid.UUID, actingUser *identity.User) error {
	ctx, span := tracer.Start(ctx, "review.Deactivate")
	defer span.End()

	rv, err := s.activeReview(ctx, reviewID)
	if err != nil {
		return err
	}
	if actingUser == nil || (rv.UserID != actingUser.ID && !actingUser.IsAdmin()) {
		return ErrForbidden
	}

	if err := s.repo.Deactivate(ctx, reviewID); err != nil {
		if errors.Is(err, ErrReviewNotFound) {
			return ErrReviewNotFound
		}
		log.Error().Err(err).Stringer("review_id", reviewID).Msg("service: failed to deactivate review in repository")
		return fmt.Errorf("service: failed to deactivate review: %w", err)
	}

	log.Info().Stringer("review_id", reviewID).Stringer("user_id", actingUser.ID).Msg("service: review deactivated")
	s.recomputeAfterWrite(ctx, rv.ProductID)
	return nil
}

// Recompute rebuilds the product aggregate from every active review.
// Concurrent runs for one product resolve last-write-wins.
func (s *service) Recompute(ctx context.Context, productID uuid.UUID) (Aggregate, error) {
	ratings, err := s.repo.ActiveRatings(ctx, productID)
	if err != nil {
		return Aggregate{}, fmt.Errorf("service: failed to read active ratings: %w", err)
	}

	agg := ComputeAggregate(ratings)
	if err := s.repo.UpdateProductRating(ctx, productID, agg); err != nil {
		return Aggregate{}, fmt.Errorf("service: failed to store rating aggregate: %w", err)
	}

	log.Debug().Stringer("product_id", productID).Stringer("average", agg.Average).Int("count", agg.Count).Msg("service: rating recomputed")
	return agg, nil
}

func (s *service) recomputeAfterWrite(ctx context.Context, productID uuid.UUID) {
	if _, err := s.Recompute(ctx, productID); err != nil {
		metrics.RatingRecomputeFailures.Inc()
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: rating recompute failed after review write")
	}
}

func (s *service) ProductReviews(ctx context.Context, productID uuid.UUID, p listing.Params) (ProductReviews, error) {
	reviews, total, err := s.repo.ListByProduct(ctx, productID, p)
	if err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to list product reviews")
		return ProductReviews{}, fmt.Errorf("service: failed to list product reviews: %w", err)
	}

	ratings, err := s.repo.ActiveRatings(ctx, productID)
	if err != nil {
		log.Error().Err(err).Stringer("product_id", productID).Msg("service: failed to read product ratings")
		return ProductReviews{}, fmt.Errorf("service: failed to read product ratings: %w", err)
	}

	return ProductReviews{
		Page: listing.NewPage(reviews, p, total),
		Meta: NewMeta(ratings),
	}, nil
}

func (s *service) ListReviews(ctx context.Context, q listing.ReviewQuery, productID uuid.UUID) (listing.Page[Review], error) {
	reviews, total, err := s.repo.List(ctx, q, productID)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list reviews")
		return listing.Page[Review]{}, fmt.Errorf("service: failed to list reviews: %w", err)
	}

	return listing.NewPage(reviews, q.Params, total), nil
}

func (s *service) activeReview(ctx context.Context, id uuid.UUID) (*Review, error) {
	rv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReviewNotFound) {
			return nil, ErrReviewNotFound
		}
		log.Error().Err(err).Stringer("review_id", id).Msg("service: failed to fetch review")
		return nil, fmt.Errorf("service: failed to fetch review: %w", err)
	}
	if !rv.IsActive {
		return nil, ErrReviewNotFound
	}
	return rv, nil
}

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/listing"
)

type Service interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, q listing.ProductQuery) (listing.Page[Product], error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		log.Error().Err(err).Stringer("product_id", id).Msg("service: failed to fetch product")
		return nil, fmt.Errorf("service: failed to fetch product: %w", err)
	}

	return p, nil
}

func (s *service) ListProducts(ctx context.Context, q listing.ProductQuery) (listing.Page[Product], error) {
	products, total, err := s.repo.List(ctx, q)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list products")
		return listing.Page[Product]{}, fmt.Errorf("service: failed to list products: %w", err)
	}

	return listing.NewPage(products, q.Params, total), nil
}

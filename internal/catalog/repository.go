package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/listing"
)

var ErrProductNotFound = errors.New("product not found")

// Reader is the catalog snapshot contract consumed at order placement.
type Reader interface {
	// GetPrices returns a quote for every known product among ids, retired
	// products included. Unknown ids are absent from the result.
	GetPrices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Quote, error)
	IsRetired(ctx context.Context, id uuid.UUID) (bool, error)
}

type Repository interface {
	Reader
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context, q listing.ProductQuery) ([]Product, int, error)
}

var productSortColumns = map[listing.ProductSort]string{
	listing.ProductSortName:  "name",
	listing.ProductSortPrice: "price",
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetPrices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Quote, error) {
	quotes := make(map[uuid.UUID]Quote, len(ids))
	if len(ids) == 0 {
		return quotes, nil
	}

	rows, err := r.db.Query(ctx, `SELECT id, name, price FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query product prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q Quote
		if err := rows.Scan(&q.ProductID, &q.Name, &q.Price); err != nil {
			return nil, fmt.Errorf("repository: failed to scan product price: %w", err)
		}
		quotes[q.ProductID] = q
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating product prices: %w", err)
	}

	return quotes, nil
}

func (r *postgresRepository) IsRetired(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.db.QueryRow(ctx, `SELECT is_deleted FROM products WHERE id = $1`, id).Scan(&deleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrProductNotFound
		}
		return false, fmt.Errorf("repository: failed to check product %s: %w", id, err)
	}

	return deleted, nil
}

const productColumns = `id, name, COALESCE(manufacturer, ''), COALESCE(category, ''), price, rating, reviews_count, is_deleted, created_at, updated_at`

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(
		&p.ID,
		&p.Name,
		&p.Manufacturer,
		&p.Category,
		&p.Price,
		&p.Rating,
		&p.ReviewsCount,
		&p.IsDeleted,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("repository: failed to select product %s: %w", id, err)
	}

	return &p, nil
}

func (r *postgresRepository) List(ctx context.Context, q listing.ProductQuery) ([]Product, int, error) {
	var (
		conditions = []string{"is_deleted = false"}
		args       []any
	)

	if q.Search != "" {
		args = append(args, listing.ContainsPattern(q.Search))
		conditions = append(conditions, fmt.Sprintf(`(name ILIKE $%d ESCAPE '\' OR manufacturer ILIKE $%d ESCAPE '\' OR category ILIKE $%d ESCAPE '\')`, len(args), len(args), len(args)))
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count products: %w", err)
	}

	column := productSortColumns[q.SortBy]
	if column == "" {
		column = "name"
	}
	direction := "ASC"
	if q.SortDir == listing.Desc {
		direction = "DESC"
	}

	args = append(args, q.Limit, q.Offset())
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		productColumns, where, column, direction, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]Product, 0, q.Limit)
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: error iterating products: %w", err)
	}

	return products, total, nil
}

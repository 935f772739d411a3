package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/listing"
)

type Repository interface {
	Create(ctx context.Context, r *Review) error
	GetByID(ctx context.Context, id uuid.UUID) (*Review, error)
	HasActive(ctx context.Context, userID, orderID, productID uuid.UUID) (bool, error)
	Update(ctx context.Context, r *Review) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	ActiveRatings(ctx context.Context, productID uuid.UUID) ([]int, error)
	UpdateProductRating(ctx context.Context, productID uuid.UUID, agg Aggregate) error
	ListByProduct(ctx context.Context, productID uuid.UUID, p listing.Params) ([]Review, int, error)
	List(ctx context.Context, q listing.ReviewQuery, productID uuid.UUID) ([]Review, int, error)
}

var reviewSortColumns = map[listing.ReviewSort]string{
	listing.ReviewSortCreatedAt: "r.created_at",
	listing.ReviewSortRating:    "r.rating",
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, rv *Review) error {
	if rv.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate review ID: %w", err)
		}
		rv.ID = id
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO reviews (id, product_id, user_id, order_id, rating, comment, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, $7, $7)
	`
	_, err := r.db.Exec(ctx, query, rv.ID, rv.ProductID, rv.UserID, rv.OrderID, rv.Rating, rv.Comment, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("repository: failed to insert review: %w", err)
	}

	rv.IsActive = true
	rv.CreatedAt = now
	rv.UpdatedAt = now
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Review, error) {
	query := `
		SELECT id, product_id, user_id, order_id, rating, comment, is_active, created_at, updated_at
		FROM reviews
		WHERE id = $1
	`
	var rv Review
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rv.ID,
		&rv.ProductID,
		&rv.UserID,
		&rv.OrderID,
		&rv.Rating,
		&rv.Comment,
		&rv.IsActive,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("repository: failed to select review by id %s: %w", id, err)
	}

	return &rv, nil
}

func (r *postgresRepository) HasActive(ctx context.Context, userID, orderID, productID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reviews
			WHERE user_id = $1 AND order_id = $2 AND product_id = $3 AND is_active
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, orderID, productID).Scan(&exists); err != nil {
		return false, fmt.Errorf("repository: failed to check existing review: %w", err)
	}
	return exists, nil
}

func (r *postgresRepository) Update(ctx context.Context, rv *Review) error {
	now := time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE reviews SET rating = $1, comment = $2, updated_at = $3 WHERE id = $4 AND is_active`,
		rv.Rating, rv.Comment, now, rv.ID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update review %s: %w", rv.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}

	rv.UpdatedAt = now
	return nil
}

func (r *postgresRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE reviews SET is_active = false, updated_at = $1 WHERE id = $2 AND is_active`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to deactivate review %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func (r *postgresRepository) ActiveRatings(ctx context.Context, productID uuid.UUID) ([]int, error) {
	rows, err := r.db.Query(ctx, `SELECT rating FROM reviews WHERE product_id = $1 AND is_active`, productID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query ratings for product %s: %w", productID, err)
	}

	ratings, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, fmt.Errorf("repository: failed to collect ratings for product %s: %w", productID, err)
	}
	return ratings, nil
}

// UpdateProductRating overwrites both aggregate columns in one statement.
func (r *postgresRepository) UpdateProductRating(ctx context.Context, productID uuid.UUID, agg Aggregate) error {
	_, err := r.db.Exec(ctx,
		`UPDATE products SET rating = $1, reviews_count = $2, updated_at = $3 WHERE id = $4`,
		agg.Average, agg.Count, time.Now().UTC(), productID,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to update rating for product %s: %w", productID, err)
	}
	return nil
}

const listColumns = `r.id, r.product_id, r.user_id, r.order_id, r.rating, r.comment, r.is_active, r.created_at, r.updated_at, u.name, p.name`

func scanListed(rows pgx.Rows) ([]Review, error) {
	defer rows.Close()

	reviews := make([]Review, 0)
	for rows.Next() {
		var rv Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ProductID,
			&rv.UserID,
			&rv.OrderID,
			&rv.Rating,
			&rv.Comment,
			&rv.IsActive,
			&rv.CreatedAt,
			&rv.UpdatedAt,
			&rv.UserName,
			&rv.ProductName,
		); err != nil {
			return nil, fmt.Errorf("repository: failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating reviews: %w", err)
	}
	return reviews, nil
}

func (r *postgresRepository) ListByProduct(ctx context.Context, productID uuid.UUID, p listing.Params) ([]Review, int, error) {
	var total int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE product_id = $1 AND is_active`, productID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count reviews for product %s: %w", productID, err)
	}

	query := `
		SELECT ` + listColumns + `
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		JOIN products p ON p.id = r.product_id
		WHERE r.product_id = $1 AND r.is_active
		ORDER BY r.created_at DESC, r.id
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, productID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to list reviews for product %s: %w", productID, err)
	}

	reviews, err := scanListed(rows)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *postgresRepository) List(ctx context.Context, q listing.ReviewQuery, productID uuid.UUID) ([]Review, int, error) {
	var (
		conditions = []string{"r.is_active"}
		args       []any
	)

	if q.Rating != 0 {
		args = append(args, q.Rating)
		conditions = append(conditions, fmt.Sprintf("r.rating = $%d", len(args)))
	}
	if productID != uuid.Nil {
		args = append(args, productID)
		conditions = append(conditions, fmt.Sprintf("r.product_id = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, listing.ContainsPattern(q.Search))
		conditions = append(conditions, fmt.Sprintf(`r.comment ILIKE $%d ESCAPE '\'`, len(args)))
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews r`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count reviews: %w", err)
	}

	column := reviewSortColumns[q.SortBy]
	if column == "" {
		column = "r.created_at"
	}
	direction := "DESC"
	if q.SortDir == listing.Asc {
		direction = "ASC"
	}

	args = append(args, q.Limit, q.Offset())
	query := fmt.Sprintf(`
		SELECT %s
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		JOIN products p ON p.id = r.product_id%s
		ORDER BY %s %s, r.id
		LIMIT $%d OFFSET $%d
	`, listColumns, where, column, direction, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to list reviews: %w", err)
	}

	reviews, err := scanListed(rows)
	if err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

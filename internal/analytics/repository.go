package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type RankKey string

const (
	RankByManufacturer RankKey = "manufacturer"
	RankByProduct      RankKey = "product"
)

var rankExpressions = map[RankKey]string{
	RankByManufacturer: `COALESCE(NULLIF(p.manufacturer, ''), 'Unknown')`,
	RankByProduct:      `COALESCE(NULLIF(p.name, ''), NULLIF(oi.product_name, ''), 'Unknown')`,
}

type Repository interface {
	MonthlyTotals(ctx context.Context, start, end time.Time) ([]MonthTotal, error)
	Revenue(ctx context.Context, key RankKey, start, end time.Time, limit int) ([]RankedRevenue, error)
	CountUsers(ctx context.Context) (int64, error)
	OrdersByStatus(ctx context.Context) ([]StatusCount, error)
	OrderAmounts(ctx context.Context) (OrderAmounts, error)
}

type sqlxRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &sqlxRepository{db: db}
}

func (r *sqlxRepository) MonthlyTotals(ctx context.Context, start, end time.Time) ([]MonthTotal, error) {
	query := `
		SELECT EXTRACT(MONTH FROM created_at AT TIME ZONE 'UTC')::int AS month,
		       COALESCE(SUM(total_amount), 0) AS total
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY 1
	`
	var rows []MonthTotal
	if err := r.db.SelectContext(ctx, &rows, query, start, end); err != nil {
		return nil, fmt.Errorf("repository: failed to aggregate monthly totals: %w", err)
	}
	return rows, nil
}

func (r *sqlxRepository) Revenue(ctx context.Context, key RankKey, start, end time.Time, limit int) ([]RankedRevenue, error) {
	expr, ok := rankExpressions[key]
	if !ok {
		return nil, fmt.Errorf("repository: unknown rank key %q", key)
	}

	query := fmt.Sprintf(`
		SELECT %s AS name,
		       SUM(oi.unit_price * oi.quantity) AS total
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE o.created_at >= $1 AND o.created_at < $2
		GROUP BY 1
		ORDER BY total DESC, name
		LIMIT $3
	`, expr)

	rows := make([]RankedRevenue, 0, limit)
	if err := r.db.SelectContext(ctx, &rows, query, start, end, limit); err != nil {
		return nil, fmt.Errorf("repository: failed to rank revenue by %s: %w", key, err)
	}
	return rows, nil
}

func (r *sqlxRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("repository: failed to count users: %w", err)
	}
	return n, nil
}

func (r *sqlxRepository) OrdersByStatus(ctx context.Context) ([]StatusCount, error) {
	var rows []StatusCount
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM orders GROUP BY status`); err != nil {
		return nil, fmt.Errorf("repository: failed to count orders by status: %w", err)
	}
	return rows, nil
}

func (r *sqlxRepository) OrderAmounts(ctx context.Context) (OrderAmounts, error) {
	var a OrderAmounts
	err := r.db.GetContext(ctx, &a, `SELECT COALESCE(SUM(total_amount), 0) AS total, COUNT(*) AS count FROM orders`)
	if err != nil {
		return OrderAmounts{}, fmt.Errorf("repository: failed to sum order amounts: %w", err)
	}
	return a, nil
}

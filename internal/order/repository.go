package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/listing"
)

type Repository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, upd StatusUpdate) error
	ListOrders(ctx context.Context, q listing.OrderQuery) ([]OrderSummary, int, error)
}

var orderSortColumns = map[listing.OrderSort]string{
	listing.OrderSortCreatedAt: "o.created_at",
	listing.OrderSortAmount:    "o.total_amount",
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// CreateOrder stores the order and its items in one transaction and fills in
// generated ids and timestamps.
func (r *postgresRepository) CreateOrder(ctx context.Context, orderInput *Order) (err error) {
	if orderInput.ID == uuid.Nil {
		genID, genErr := uuid.NewV4()
		if genErr != nil {
			return fmt.Errorf("repository: failed to generate order ID: %w", genErr)
		}
		orderInput.ID = genID
	}
	orderID := orderInput.ID

	tx, beginErr := r.db.Begin(ctx)
	if beginErr != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", beginErr)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Stringer("order_id_attempted", orderID).Msg("Panic recovered during CreateOrder, rolling back")
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				log.Error().Err(rbErr).Stringer("order_id_attempted", orderID).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil {
			log.Warn().Err(err).Stringer("order_id_attempted", orderID).Msg("Transaction for CreateOrder failed, rolling back")
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Stringer("order_id_attempted", orderID).Msg("Failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error().Err(commitErr).Stringer("order_id", orderID).Msg("Failed to commit transaction")
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	createdAt := time.Now().UTC()

	queryOrder := `
		INSERT INTO orders (id, user_id, status, delivery_status, total_amount, address, payment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, queryOrder,
		orderID,
		orderInput.UserID,
		string(orderInput.Status),
		orderInput.DeliveryStatus,
		orderInput.TotalAmount,
		orderInput.Address,
		orderInput.Payment,
		createdAt,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range orderInput.Items {
		item := &orderInput.Items[i]

		itemID, genErr := uuid.NewV4()
		if genErr != nil {
			err = fmt.Errorf("repository: failed to generate order item ID: %w", genErr)
			return err
		}

		_, err = tx.Exec(ctx, queryItem,
			itemID,
			orderID,
			item.ProductID,
			item.ProductName,
			item.Quantity,
			item.UnitPrice,
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", orderID, err)
		}

		item.ID = itemID
		item.OrderID = orderID
		item.CreatedAt = createdAt
	}

	orderInput.CreatedAt = createdAt
	orderInput.UpdatedAt = createdAt

	return nil
}

const orderColumns = `id, user_id, status, delivery_status, total_amount, address, payment, created_at, updated_at, delivered_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(
		&o.ID,
		&o.UserID,
		&o.Status,
		&o.DeliveryStatus,
		&o.TotalAmount,
		&o.Address,
		&o.Payment,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.DeliveredAt,
	)
}

func scanItem(row pgx.Row, item *OrderItem) error {
	return row.Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.ProductName,
		&item.Quantity,
		&item.UnitPrice,
		&item.CreatedAt,
	)
}

func (r *postgresRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	var o Order
	err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID), &o)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", orderID, err)
	}

	queryItems := `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, created_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.Query(ctx, queryItems, orderID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for order id %s: %w", orderID, err)
	}
	defer rows.Close()

	o.Items = make([]OrderItem, 0)
	for rows.Next() {
		var item OrderItem
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for order id %s: %w", orderID, err)
		}
		o.Items = append(o.Items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items for order id %s: %w", orderID, err)
	}

	return &o, nil
}

func (r *postgresRepository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, upd StatusUpdate) error {
	var status *string
	if upd.Status != nil {
		s := string(*upd.Status)
		status = &s
	}

	query := `
		UPDATE orders
		SET status = COALESCE($1, status),
		    delivery_status = COALESCE($2, delivery_status),
		    delivered_at = COALESCE($3, delivered_at),
		    updated_at = $4
		WHERE id = $5
	`
	cmdTag, err := r.db.Exec(ctx, query, status, upd.DeliveryStatus, upd.DeliveredAt, time.Now().UTC(), orderID)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", orderID).Msg("repository: failed to update order status")
		return fmt.Errorf("repository: failed to update order status %s: %w", orderID, err)
	}

	if cmdTag.RowsAffected() == 0 {
		log.Warn().Stringer("order_id", orderID).Msg("repository: order not found for status update")
		return ErrOrderNotFound
	}

	return nil
}

func (r *postgresRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orderRows, err := r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %s: %w", userID, err)
	}
	defer orderRows.Close()

	ordersMap := make(map[uuid.UUID]*Order)
	var orderIDs []uuid.UUID

	for orderRows.Next() {
		var o Order
		if err := scanOrder(orderRows, &o); err != nil {
			return nil, fmt.Errorf("repository: failed scan order for user id %s: %w", userID, err)
		}
		o.Items = make([]OrderItem, 0)
		ordersMap[o.ID] = &o
		orderIDs = append(orderIDs, o.ID)
	}

	if err = orderRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders for user id %s: %w", userID, err)
	}

	if len(orderIDs) == 0 {
		return []Order{}, nil
	}

	queryItems := `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id
	`
	itemRows, err := r.db.Query(ctx, queryItems, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items for user id %s: %w", userID, err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item OrderItem
		if err := scanItem(itemRows, &item); err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item for user id %s: %w", userID, err)
		}

		if o, ok := ordersMap[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}

	if err = itemRows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating order items by user id %s: %w", userID, err)
	}

	result := make([]Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *ordersMap[id])
	}

	return result, nil
}

func (r *postgresRepository) ListOrders(ctx context.Context, q listing.OrderQuery) ([]OrderSummary, int, error) {
	var (
		conditions []string
		args       []any
	)

	if q.Status != "" {
		args = append(args, q.Status)
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, listing.ContainsPattern(q.Search))
		conditions = append(conditions, fmt.Sprintf(`(o.id::text ILIKE $%d ESCAPE '\' OR u.name ILIKE $%d ESCAPE '\' OR u.email ILIKE $%d ESCAPE '\')`, len(args), len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM orders o JOIN users u ON u.id = o.user_id` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count orders: %w", err)
	}

	column := orderSortColumns[q.SortBy]
	if column == "" {
		column = "o.created_at"
	}
	direction := "DESC"
	if q.SortDir == listing.Asc {
		direction = "ASC"
	}

	args = append(args, q.Limit, q.Offset())
	query := fmt.Sprintf(`
		SELECT o.id, o.user_id, u.name, u.email, o.status, o.delivery_status, o.total_amount,
		       (SELECT COUNT(*) FROM order_items oi WHERE oi.order_id = o.id), o.created_at
		FROM orders o
		JOIN users u ON u.id = o.user_id%s
		ORDER BY %s %s, o.id
		LIMIT $%d OFFSET $%d
	`, where, column, direction, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to list orders: %w", err)
	}
	defer rows.Close()

	summaries := make([]OrderSummary, 0, q.Limit)
	for rows.Next() {
		var s OrderSummary
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.UserName,
			&s.UserEmail,
			&s.Status,
			&s.DeliveryStatus,
			&s.TotalAmount,
			&s.ItemsCount,
			&s.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan order summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	return summaries, total, nil
}

package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/identity"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/listing"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/metrics"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/notification"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// allowedTransitions is the regular order lifecycle. Owner cancellation is
// checked against it; staff corrections may step outside it.
var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusPaid:      true,
		StatusCancelled: true,
	},
	StatusPaid: {
		StatusProcessing: true,
		StatusCancelled:  true,
	},
	StatusProcessing: {
		StatusCompleted: true,
		StatusCancelled: true,
	},
	StatusCompleted: {
		StatusDelivered: true,
	},
	StatusDelivered: {},
	StatusCancelled: {},
}

var tracer = otel.Tracer("pharmacy/order")

type Service interface {
	PlaceOrder(ctx context.Context, user *identity.User, items []LineItemInput) (*Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, actingUser *identity.User) (*Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus *OrderStatus, newDeliveryStatus *string) (*Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetUserOrder(ctx context.Context, user *identity.User, id uuid.UUID) (*Order, error)
	GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error)
	ListOrders(ctx context.Context, q listing.OrderQuery) (listing.Page[OrderSummary], error)
}

type service struct {
	orderRepo Repository
	catalog   catalog.Reader
	users     identity.Provider
	notifier  notification.Dispatcher
	now       func() time.Time
}

func NewService(orderRepo Repository, catalogReader catalog.Reader, users identity.Provider, notifier notification.Dispatcher) Service {
	if notifier == nil {
		notifier = notification.NopDispatcher{}
	}

	return &service{
		orderRepo: orderRepo,
		catalog:   catalogReader,
		users:     users,
		notifier:  notifier,
		now:       time.Now,
	}
}

func (s *service) PlaceOrder(ctx context.Context, user *identity.User, items []LineItemInput) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.PlaceOrder")
	defer span.End()

	if user == nil {
		return nil, fmt.Errorf("%w: missing user", ErrInvalidInput)
	}

	if !user.HasAddress() || !user.HasPaymentMethod() {
		log.Warn().Stringer("user_id", user.ID).Msg("service: attempt to place order without address or payment method")
		return nil, ErrPreconditionFailed
	}

	lines, err := mergeLineItems(items)
	if err != nil {
		log.Warn().Err(err).Stringer("user_id", user.ID).Msg("service: rejected order items")
		return nil, err
	}

	productIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		productIDs = append(productIDs, line.ProductID)
	}

	quotes, err := s.catalog.GetPrices(ctx, productIDs)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", user.ID).Msg("service: failed to read catalog prices")
		return nil, fmt.Errorf("service: failed to read catalog prices: %w", err)
	}

	orderItems := make([]OrderItem, 0, len(lines))
	for _, line := range lines {
		quote, ok := quotes[line.ProductID]
		if !ok {
			log.Warn().Stringer("product_id", line.ProductID).Msg("service: order references unknown product")
			return nil, fmt.Errorf("%w: %s", ErrInvalidReference, line.ProductID)
		}

		retired, err := s.catalog.IsRetired(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrInvalidReference, line.ProductID)
			}
			return nil, fmt.Errorf("service: failed to check product %s: %w", line.ProductID, err)
		}
		if retired {
			log.Warn().Stringer("product_id", line.ProductID).Msg("service: order references retired product")
			return nil, fmt.Errorf("%w: %s", ErrInvalidReference, line.ProductID)
		}

		unitPrice := quote.Price.Round(2)
		if !unitPrice.IsPositive() {
			log.Warn().Stringer("product_id", line.ProductID).Stringer("price", quote.Price).Msg("service: product has non-positive price")
			return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, line.ProductID)
		}

		orderItems = append(orderItems, OrderItem{
			ProductID:   line.ProductID,
			ProductName: quote.Name,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
		})
	}

	newOrder := &Order{
		UserID:         user.ID,
		Status:         StatusPaid,
		DeliveryStatus: DeliveryInProgress,
		Items:          orderItems,
		TotalAmount:    CalculateTotal(orderItems),
		Address:        user.Address,
		Payment:        user.Payment,
	}

	if err := s.orderRepo.CreateOrder(ctx, newOrder); err != nil {
		log.Error().Err(err).Stringer("user_id", user.ID).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}

	span.SetAttributes(attribute.String("order.id", newOrder.ID.String()))
	metrics.OrderTransitions.WithLabelValues(StatusPaid.String()).Inc()
	log.Info().
		Stringer("order_id", newOrder.ID).
		Stringer("user_id", user.ID).
		Stringer("total_amount", newOrder.TotalAmount).
		Msg("service: order placed")

	s.notify(ctx, notification.EventOrderPlaced, newOrder, recipientOf(user))

	return newOrder, nil
}

// mergeLineItems validates the requested lines and folds repeated products
// into one line, keeping first-seen order.
func mergeLineItems(items []LineItemInput) ([]LineItemInput, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput)
	}

	index := make(map[uuid.UUID]int, len(items))
	merged := make([]LineItemInput, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, fmt.Errorf("%w: product id cannot be empty", ErrInvalidInput)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity for product %s must be at least 1", ErrInvalidInput, item.ProductID)
		}

		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}

	return merged, nil
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID, actingUser *identity.User) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.CancelOrder")
	defer span.End()

	if actingUser == nil {
		return nil, ErrForbidden
	}

	current, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if current.UserID != actingUser.ID {
		log.Warn().Stringer("order_id", orderID).Stringer("user_id", actingUser.ID).Msg("service: cancel attempt by non-owner")
		return nil, ErrForbidden
	}

	if !current.CanBeCancelled() {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("current_status", current.Status).
			Msg("service: order cannot be cancelled in its current status")
		return nil, fmt.Errorf("%w: cannot cancel order in status %s", ErrInvalidTransition, current.Status)
	}

	status := StatusCancelled
	deliveryStatus := DeliveryCancelled
	if err := s.writeStatus(ctx, current, StatusUpdate{Status: &status, DeliveryStatus: &deliveryStatus}); err != nil {
		return nil, err
	}

	log.Info().Stringer("order_id", orderID).Stringer("user_id", actingUser.ID).Msg("service: order cancelled by owner")
	s.notify(ctx, notification.EventOrderCancelled, current, recipientOf(actingUser))

	return current, nil
}

func (s *service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, newStatus *OrderStatus, newDeliveryStatus *string) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.UpdateOrderStatus")
	defer span.End()

	if newStatus == nil && newDeliveryStatus == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if newStatus != nil && !newStatus.IsValid() {
		return nil, ErrInvalidStatus
	}

	current, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if newStatus != nil && *newStatus != current.Status && !allowedTransitions[current.Status][*newStatus] {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("current_status", current.Status).
			Stringer("new_status", *newStatus).
			Msg("service: manual status correction outside the regular lifecycle")
	}

	if err := s.writeStatus(ctx, current, StatusUpdate{Status: newStatus, DeliveryStatus: newDeliveryStatus}); err != nil {
		return nil, err
	}

	log.Info().
		Stringer("order_id", orderID).
		Stringer("status", current.Status).
		Str("delivery_status", current.DeliveryStatus).
		Msg("service: order status updated by staff")

	return current, nil
}

func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	ctx, span := tracer.Start(ctx, "order.MarkDelivered")
	defer span.End()

	current, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if current.IsDelivered() {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("status", current.Status).
			Str("delivery_status", current.DeliveryStatus).
			Msg("service: order already delivered")
		return nil, ErrAlreadyDelivered
	}
	if current.Status == StatusCancelled {
		log.Warn().Stringer("order_id", orderID).Msg("service: cancelled order cannot be delivered")
		return nil, fmt.Errorf("%w: cannot deliver order in status %s", ErrInvalidTransition, current.Status)
	}

	status := StatusDelivered
	deliveryStatus := DeliveryDelivered
	deliveredAt := s.now().UTC()
	upd := StatusUpdate{Status: &status, DeliveryStatus: &deliveryStatus, DeliveredAt: &deliveredAt}
	if err := s.writeStatus(ctx, current, upd); err != nil {
		return nil, err
	}

	log.Info().Stringer("order_id", orderID).Msg("service: order marked delivered")

	recipient := notification.Recipient{UserID: current.UserID}
	owner, err := s.users.GetByID(ctx, current.UserID)
	if err != nil {
		log.Warn().Err(err).Stringer("order_id", orderID).Stringer("user_id", current.UserID).Msg("service: failed to load order owner for notification")
	} else {
		recipient = recipientOf(owner)
	}
	s.notify(ctx, notification.EventOrderDelivered, current, recipient)

	return current, nil
}

func (s *service) GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.getOrder(ctx, id)
}

func (s *service) GetUserOrder(ctx context.Context, user *identity.User, id uuid.UUID) (*Order, error) {
	o, err := s.getOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if user == nil || o.UserID != user.ID {
		return nil, ErrOrderNotFound
	}

	return o, nil
}

func (s *service) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", userID).Msg("service: failed to fetch user orders in repository")
		return nil, fmt.Errorf("service: failed to fetch user orders: %w", err)
	}

	return orders, nil
}

func (s *service) ListOrders(ctx context.Context, q listing.OrderQuery) (listing.Page[OrderSummary], error) {
	if q.Status != "" && !OrderStatus(q.Status).IsValid() {
		q.Status = ""
	}

	summaries, total, err := s.orderRepo.ListOrders(ctx, q)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list orders in repository")
		return listing.Page[OrderSummary]{}, fmt.Errorf("service: failed to list orders: %w", err)
	}

	return listing.NewPage(summaries, q.Params, total), nil
}

func (s *service) getOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", id).Msg("service: order not found by id")
			return nil, ErrOrderNotFound
		}

		log.Error().Err(err).Stringer("order_id", id).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}

	return o, nil
}

// writeStatus persists upd and applies it to o. The write is not conditional
// on the status read earlier, so concurrent writers resolve last-write-wins.
func (s *service) writeStatus(ctx context.Context, o *Order, upd StatusUpdate) error {
	if err := s.orderRepo.UpdateOrderStatus(ctx, o.ID, upd); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			log.Warn().Err(err).Stringer("order_id", o.ID).Msg("service: order disappeared during status update")
			return ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: failed to update order status in repository")
		return fmt.Errorf("service: failed to update order status: %w", err)
	}

	if upd.Status != nil {
		o.Status = *upd.Status
		metrics.OrderTransitions.WithLabelValues(o.Status.String()).Inc()
	}
	if upd.DeliveryStatus != nil {
		o.DeliveryStatus = *upd.DeliveryStatus
	}
	if upd.DeliveredAt != nil {
		deliveredAt := *upd.DeliveredAt
		o.DeliveredAt = &deliveredAt
	}
	o.UpdatedAt = s.now().UTC()

	return nil
}

func recipientOf(u *identity.User) notification.Recipient {
	return notification.Recipient{UserID: u.ID, Email: u.Email, Name: u.Name}
}

func (s *service) notify(ctx context.Context, eventType notification.EventType, o *Order, recipient notification.Recipient) {
	eventID, err := uuid.NewV4()
	if err != nil {
		log.Warn().Err(err).Msg("service: failed to generate notification id")
	}

	items := make([]notification.Item, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, notification.Item{
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	s.notifier.Dispatch(ctx, notification.Event{
		ID:         eventID,
		Type:       eventType,
		Recipient:  recipient,
		OrderID:    o.ID,
		Amount:     o.TotalAmount,
		Items:      items,
		OccurredAt: s.now().UTC(),
	})
}

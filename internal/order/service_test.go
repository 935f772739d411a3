package order_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/catalog"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/identity"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/listing"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/notification"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/order"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) GetOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, upd order.StatusUpdate) error {
	args := m.Called(ctx, orderID, upd)
	return args.Error(0)
}

func (m *MockOrderRepository) ListOrders(ctx context.Context, q listing.OrderQuery) ([]order.OrderSummary, int, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]order.OrderSummary), args.Int(1), args.Error(2)
}

type MockCatalogReader struct {
	mock.Mock
}

func (m *MockCatalogReader) GetPrices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Quote, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]catalog.Quote), args.Error(1)
}

func (m *MockCatalogReader) IsRetired(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockUserProvider struct {
	mock.Mock
}

func (m *MockUserProvider) GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notification.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, e notification.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

func (d *recordingDispatcher) types() []notification.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]notification.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

// memoryRepository keeps orders in a map so lifecycle sequences can be
// exercised end to end.
type memoryRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]order.Order
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{orders: make(map[uuid.UUID]order.Order)}
}

func (r *memoryRepository) CreateOrder(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o.ID = uuid.Must(uuid.NewV4())
	stored := *o
	stored.Items = append([]order.OrderItem(nil), o.Items...)
	r.orders[o.ID] = stored
	return nil
}

func (r *memoryRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return &o, nil
}

func (r *memoryRepository) GetOrdersByUserID(context.Context, uuid.UUID) ([]order.Order, error) {
	return nil, errors.New("not implemented")
}

func (r *memoryRepository) UpdateOrderStatus(_ context.Context, id uuid.UUID, upd order.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	if upd.Status != nil {
		o.Status = *upd.Status
	}
	if upd.DeliveryStatus != nil {
		o.DeliveryStatus = *upd.DeliveryStatus
	}
	if upd.DeliveredAt != nil {
		o.DeliveredAt = upd.DeliveredAt
	}
	r.orders[id] = o
	return nil
}

func (r *memoryRepository) ListOrders(context.Context, listing.OrderQuery) ([]order.OrderSummary, int, error) {
	return nil, 0, errors.New("not implemented")
}

func (r *memoryRepository) setStatus(id uuid.UUID, status order.OrderStatus, delivery string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := r.orders[id]
	o.Status = status
	o.DeliveryStatus = delivery
	r.orders[id] = o
}

func newCustomer() *identity.User {
	return &identity.User{
		ID:    uuid.Must(uuid.NewV4()),
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Role:  identity.RoleUser,
		Address: identity.Address{
			FullName: "Jane Doe",
			Phone:    "+1 555 0100",
			Line1:    "1 Main St",
			City:     "Springfield",
			Zip:      "12345",
		},
		Payment: identity.PaymentMethod{
			CardHolderName:   "JANE DOE",
			MaskedCardNumber: "**** **** **** 4242",
			Brand:            "visa",
			Expiry:           "12/29",
		},
	}
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestOrderService_PlaceOrder_SnapshotsPricesAndTotal(t *testing.T) {
	repo := newMemoryRepository()
	reader := new(MockCatalogReader)
	dispatcher := &recordingDispatcher{}
	svc := order.NewService(repo, reader, new(MockUserProvider), dispatcher)

	user := newCustomer()
	productA := uuid.Must(uuid.NewV4())
	productB := uuid.Must(uuid.NewV4())

	reader.On("GetPrices", mock.Anything, []uuid.UUID{productA, productB}).Return(map[uuid.UUID]catalog.Quote{
		productA: {ProductID: productA, Name: "Aspirin", Price: price("5")},
		productB: {ProductID: productB, Name: "Bandage", Price: price("3")},
	}, nil).Once()
	reader.On("IsRetired", mock.Anything, productA).Return(false, nil).Once()
	reader.On("IsRetired", mock.Anything, productB).Return(false, nil).Once()

	placed, err := svc.PlaceOrder(context.Background(), user, []order.LineItemInput{
		{ProductID: productA, Quantity: 2},
		{ProductID: productB, Quantity: 1},
	})
	require.NoError(t, err)

	assert.True(t, placed.TotalAmount.Equal(price("13.00")), "total = %s", placed.TotalAmount)
	assert.Equal(t, "13.00", placed.TotalAmount.StringFixed(2))
	assert.Equal(t, order.StatusPaid, placed.Status)
	assert.Equal(t, order.DeliveryInProgress, placed.DeliveryStatus)
	assert.Empty(t, cmp.Diff(user.Address, placed.Address))
	assert.Empty(t, cmp.Diff(user.Payment, placed.Payment))
	require.Len(t, placed.Items, 2)
	assert.Equal(t, "Aspirin", placed.Items[0].ProductName)

	// A later catalog price change never reaches the stored order.
	stored, err := repo.GetOrderByID(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalAmount.Equal(order.CalculateTotal(stored.Items)))
	assert.True(t, stored.Items[0].UnitPrice.Equal(price("5")))

	assert.Equal(t, []notification.EventType{notification.EventOrderPlaced}, dispatcher.types())
	reader.AssertExpectations(t)
}

func TestOrderService_PlaceOrder_MergesDuplicateLines(t *testing.T) {
	repo := newMemoryRepository()
	reader := new(MockCatalogReader)
	svc := order.NewService(repo, reader, new(MockUserProvider), nil)

	productA := uuid.Must(uuid.NewV4())
	reader.On("GetPrices", mock.Anything, []uuid.UUID{productA}).Return(map[uuid.UUID]catalog.Quote{
		productA: {ProductID: productA, Name: "Aspirin", Price: price("1.10")},
	}, nil).Once()
	reader.On("IsRetired", mock.Anything, productA).Return(false, nil).Once()

	placed, err := svc.PlaceOrder(context.Background(), newCustomer(), []order.LineItemInput{
		{ProductID: productA, Quantity: 1},
		{ProductID: productA, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, placed.Items, 1)
	assert.Equal(t, 3, placed.Items[0].Quantity)
	assert.Equal(t, "3.30", placed.TotalAmount.StringFixed(2))
}

func TestOrderService_PlaceOrder_Failures(t *testing.T) {
	productA := uuid.Must(uuid.NewV4())
	items := []order.LineItemInput{{ProductID: productA, Quantity: 1}}

	tests := []struct {
		name      string
		user      func() *identity.User
		items     []order.LineItemInput
		setup     func(r *MockCatalogReader)
		wantErrIs error
	}{
		{
			name: "missing address",
			user: func() *identity.User {
				u := newCustomer()
				u.Address = identity.Address{}
				return u
			},
			items:     items,
			wantErrIs: order.ErrPreconditionFailed,
		},
		{
			name: "missing payment method",
			user: func() *identity.User {
				u := newCustomer()
				u.Payment.MaskedCardNumber = ""
				return u
			},
			items:     items,
			wantErrIs: order.ErrPreconditionFailed,
		},
		{
			name:      "no items",
			user:      newCustomer,
			items:     nil,
			wantErrIs: order.ErrInvalidInput,
		},
		{
			name:      "zero quantity",
			user:      newCustomer,
			items:     []order.LineItemInput{{ProductID: productA, Quantity: 0}},
			wantErrIs: order.ErrInvalidInput,
		},
		{
			name:  "unknown product",
			user:  newCustomer,
			items: items,
			setup: func(r *MockCatalogReader) {
				r.On("GetPrices", mock.Anything, mock.Anything).Return(map[uuid.UUID]catalog.Quote{}, nil)
			},
			wantErrIs: order.ErrInvalidReference,
		},
		{
			name:  "retired product",
			user:  newCustomer,
			items: items,
			setup: func(r *MockCatalogReader) {
				r.On("GetPrices", mock.Anything, mock.Anything).Return(map[uuid.UUID]catalog.Quote{
					productA: {ProductID: productA, Price: price("2")},
				}, nil)
				r.On("IsRetired", mock.Anything, productA).Return(true, nil)
			},
			wantErrIs: order.ErrInvalidReference,
		},
		{
			name:  "zero price",
			user:  newCustomer,
			items: items,
			setup: func(r *MockCatalogReader) {
				r.On("GetPrices", mock.Anything, mock.Anything).Return(map[uuid.UUID]catalog.Quote{
					productA: {ProductID: productA, Price: decimal.Zero},
				}, nil)
				r.On("IsRetired", mock.Anything, productA).Return(false, nil)
			},
			wantErrIs: order.ErrInvalidPrice,
		},
		{
			name:  "negative price",
			user:  newCustomer,
			items: items,
			setup: func(r *MockCatalogReader) {
				r.On("GetPrices", mock.Anything, mock.Anything).Return(map[uuid.UUID]catalog.Quote{
					productA: {ProductID: productA, Price: price("-1.50")},
				}, nil)
				r.On("IsRetired", mock.Anything, productA).Return(false, nil)
			},
			wantErrIs: order.ErrInvalidPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockOrderRepository)
			reader := new(MockCatalogReader)
			dispatcher := &recordingDispatcher{}
			if tt.setup != nil {
				tt.setup(reader)
			}
			svc := order.NewService(repo, reader, new(MockUserProvider), dispatcher)

			placed, err := svc.PlaceOrder(context.Background(), tt.user(), tt.items)
			require.ErrorIs(t, err, tt.wantErrIs)
			assert.Nil(t, placed)
			assert.Empty(t, dispatcher.types())
			repo.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestOrderService_PlaceOrder_RepositoryFailureEmitsNothing(t *testing.T) {
	repo := new(MockOrderRepository)
	reader := new(MockCatalogReader)
	dispatcher := &recordingDispatcher{}
	svc := order.NewService(repo, reader, new(MockUserProvider), dispatcher)

	productA := uuid.Must(uuid.NewV4())
	reader.On("GetPrices", mock.Anything, mock.Anything).Return(map[uuid.UUID]catalog.Quote{
		productA: {ProductID: productA, Price: price("2")},
	}, nil)
	reader.On("IsRetired", mock.Anything, productA).Return(false, nil)
	repo.On("CreateOrder", mock.Anything, mock.AnythingOfType("*order.Order")).Return(errors.New("connection refused")).Once()

	_, err := svc.PlaceOrder(context.Background(), newCustomer(), []order.LineItemInput{{ProductID: productA, Quantity: 1}})
	require.Error(t, err)
	assert.Empty(t, dispatcher.types())
	repo.AssertExpectations(t)
}

func placeTestOrder(t *testing.T, svc order.Service, reader *MockCatalogReader, user *identity.User) *order.Order {
	t.Helper()
	productID := uuid.Must(uuid.NewV4())
	reader.On("GetPrices", mock.Anything, []uuid.UUID{productID}).Return(map[uuid.UUID]catalog.Quote{
		productID: {ProductID: productID, Name: "Vitamin C", Price: price("9.99")},
	}, nil).Once()
	reader.On("IsRetired", mock.Anything, productID).Return(false, nil).Once()

	placed, err := svc.PlaceOrder(context.Background(), user, []order.LineItemInput{{ProductID: productID, Quantity: 1}})
	require.NoError(t, err)
	return placed
}

func TestOrderService_CancelOrder(t *testing.T) {
	tests := []struct {
		name       string
		status     order.OrderStatus
		wantErrIs  error
		wantStatus order.OrderStatus
	}{
		{name: "pending", status: order.StatusPending, wantStatus: order.StatusCancelled},
		{name: "paid", status: order.StatusPaid, wantStatus: order.StatusCancelled},
		{name: "processing", status: order.StatusProcessing, wantStatus: order.StatusCancelled},
		{name: "completed", status: order.StatusCompleted, wantErrIs: order.ErrInvalidTransition},
		{name: "delivered", status: order.StatusDelivered, wantErrIs: order.ErrInvalidTransition},
		{name: "cancelled", status: order.StatusCancelled, wantErrIs: order.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepository()
			reader := new(MockCatalogReader)
			dispatcher := &recordingDispatcher{}
			svc := order.NewService(repo, reader, new(MockUserProvider), dispatcher)

			user := newCustomer()
			placed := placeTestOrder(t, svc, reader, user)
			repo.setStatus(placed.ID, tt.status, order.DeliveryInProgress)

			cancelled, err := svc.CancelOrder(context.Background(), placed.ID, user)
			if tt.wantErrIs != nil {
				require.ErrorIs(t, err, tt.wantErrIs)
				assert.Equal(t, []notification.EventType{notification.EventOrderPlaced}, dispatcher.types())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, cancelled.Status)
			assert.Equal(t, order.DeliveryCancelled, cancelled.DeliveryStatus)
			assert.Equal(t, []notification.EventType{notification.EventOrderPlaced, notification.EventOrderCancelled}, dispatcher.types())
		})
	}
}

func TestOrderService_CancelOrder_Twice(t *testing.T) {
	repo := newMemoryRepository()
	reader := new(MockCatalogReader)
	dispatcher := &recordingDispatcher{}
	svc := order.NewService(repo, reader, new(MockUserProvider), dispatcher)

	user := newCustomer()
	placed := placeTestOrder(t, svc, reader, user)
	repo.setStatus(placed.ID, order.StatusProcessing, order.DeliveryInProgress)

	cancelled, err := svc.CancelOrder(context.Background(), placed.ID, user)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)
	assert.Equal(t, "Cancelled", cancelled.DeliveryStatus)

	_, err = svc.CancelOrder(context.Background(), placed.ID, user)
	require.ErrorIs(t, err, order.ErrInvalidTransition)

	assert.Equal(t, []notification.EventType{
		notification.EventOrderPlaced,
		notification.EventOrderCancelled,
	}, dispatcher.types(), "second cancel must not notify again")
}

func TestOrderService_CancelOrder_NotOwner(t *testing.T) {
	repo := newMemoryRepository()
	reader := new(MockCatalogReader)
	svc := order.NewService(repo, reader, new(MockUserProvider), nil)

	placed := placeTestOrder(t, svc, reader, newCustomer())

	_, err := svc.CancelOrder(context.Background(), placed.ID, newCustomer())
	require.ErrorIs(t, err, order.ErrForbidden)

	stored, err := repo.GetOrderByID(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPaid, stored.Status)
}

func TestOrderService_CancelOrder_NotFound(t *testing.T) {
	svc := order.NewService(newMemoryRepository(), new(MockCatalogReader), new(MockUserProvider), nil)

	_, err := svc.CancelOrder(context.Background(), uuid.Must(uuid.NewV4()), newCustomer())
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestOrderService_MarkDelivered(t *testing.T) {
	repo := newMemoryRepository()
	reader := new(MockCatalogReader)
	users := new(MockUserProvider)
	dispatcher := &recordingDispatcher{}
	svc := order.NewService(repo, reader, users, dispatcher)

	user := newCustomer()
	placed := placeTestOrder(t, svc, reader, user)
	users.On("GetByID", mock.Anything, user.ID).Return(user, nil).Once()

	delivered, err := svc.MarkDelivered(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, delivered.Status)
	assert.Equal(t, order.DeliveryDelivered, delivered.DeliveryStatus)
	require.NotNil(t, delivered.DeliveredAt)

	_, err = svc.MarkDelivered(context.Background(), placed.ID)
	require.ErrorIs(t, err, order.ErrAlreadyDelivered)

	assert.Equal(t, []notification.EventType{
		notification.EventOrderPlaced,
		notification.EventOrderDelivered,
	}, dispatcher.types())

	dispatcher.mu.Lock()
	assert.Equal(t, "jane@example.com", dispatcher.events[1].Recipient.Email)
	dispatcher.mu.Unlock()
	users.AssertExpectations(t)
}

func TestOrderService_MarkDelivered_DeliveryLabelAlreadySet(t *testing.T) {
	repo := newMemoryRepository()
	reader := new(MockCatalogReader)
	svc := order.NewService(repo, reader, new(MockUserProvider), nil)

	placed := placeTestOrder(t, svc, reader, newCustomer())
	repo.setStatus(placed.ID, order.StatusProcessing, "Delivered to neighbour")

	_, err := svc.MarkDelivered(context.Background(), placed.ID)
	require.ErrorIs(t, err, order.ErrAlreadyDelivered)
}

func TestOrderService_MarkDelivered_CancelledOrderStaysCancelled(t *testing.T) {
	repo := newMemoryRepository()
	reader := new(MockCatalogReader)
	users := new(MockUserProvider)
	dispatcher := &recordingDispatcher{}
	svc := order.NewService(repo, reader, users, dispatcher)

	user := newCustomer()
	placed := placeTestOrder(t, svc, reader, user)
	_, err := svc.CancelOrder(context.Background(), placed.ID, user)
	require.NoError(t, err)

	_, err = svc.MarkDelivered(context.Background(), placed.ID)
	require.ErrorIs(t, err, order.ErrInvalidTransition)

	stored, err := svc.GetOrderByID(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, stored.Status)
	assert.Equal(t, order.DeliveryCancelled, stored.DeliveryStatus)
	assert.Nil(t, stored.DeliveredAt)
	assert.Equal(t, []notification.EventType{
		notification.EventOrderPlaced,
		notification.EventOrderCancelled,
	}, dispatcher.types())
	users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestOrderService_MarkDelivered_OwnerLookupFailureIsNotFatal(t *testing.T) {
	repo := newMemoryRepository()
	reader := new(MockCatalogReader)
	users := new(MockUserProvider)
	dispatcher := &recordingDispatcher{}
	svc := order.NewService(repo, reader, users, dispatcher)

	user := newCustomer()
	placed := placeTestOrder(t, svc, reader, user)
	users.On("GetByID", mock.Anything, user.ID).Return(nil, identity.ErrUserNotFound).Once()

	delivered, err := svc.MarkDelivered(context.Background(), placed.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, delivered.Status)
	assert.Len(t, dispatcher.types(), 2)
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	orderID := uuid.Must(uuid.NewV4())
	completed := order.StatusCompleted
	bogus := order.OrderStatus("shipped")
	label := "Out for delivery"

	t.Run("assigns fields unconditionally", func(t *testing.T) {
		repo := new(MockOrderRepository)
		svc := order.NewService(repo, new(MockCatalogReader), new(MockUserProvider), nil)

		current := &order.Order{ID: orderID, Status: order.StatusCancelled, DeliveryStatus: order.DeliveryCancelled}
		repo.On("GetOrderByID", mock.Anything, orderID).Return(current, nil).Once()
		repo.On("UpdateOrderStatus", mock.Anything, orderID, order.StatusUpdate{Status: &completed, DeliveryStatus: &label}).Return(nil).Once()

		updated, err := svc.UpdateOrderStatus(context.Background(), orderID, &completed, &label)
		require.NoError(t, err)
		assert.Equal(t, order.StatusCompleted, updated.Status)
		assert.Equal(t, label, updated.DeliveryStatus)
		repo.AssertExpectations(t)
	})

	t.Run("delivery status only", func(t *testing.T) {
		repo := new(MockOrderRepository)
		svc := order.NewService(repo, new(MockCatalogReader), new(MockUserProvider), nil)

		current := &order.Order{ID: orderID, Status: order.StatusPaid, DeliveryStatus: order.DeliveryInProgress}
		repo.On("GetOrderByID", mock.Anything, orderID).Return(current, nil).Once()
		repo.On("UpdateOrderStatus", mock.Anything, orderID, order.StatusUpdate{DeliveryStatus: &label}).Return(nil).Once()

		updated, err := svc.UpdateOrderStatus(context.Background(), orderID, nil, &label)
		require.NoError(t, err)
		assert.Equal(t, order.StatusPaid, updated.Status)
		assert.Equal(t, label, updated.DeliveryStatus)
		repo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(MockOrderRepository)
		svc := order.NewService(repo, new(MockCatalogReader), new(MockUserProvider), nil)

		repo.On("GetOrderByID", mock.Anything, orderID).Return(nil, order.ErrOrderNotFound).Once()

		_, err := svc.UpdateOrderStatus(context.Background(), orderID, &completed, nil)
		require.ErrorIs(t, err, order.ErrOrderNotFound)
		repo.AssertNotCalled(t, "UpdateOrderStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown status rejected before any read", func(t *testing.T) {
		repo := new(MockOrderRepository)
		svc := order.NewService(repo, new(MockCatalogReader), new(MockUserProvider), nil)

		_, err := svc.UpdateOrderStatus(context.Background(), orderID, &bogus, nil)
		require.ErrorIs(t, err, order.ErrInvalidStatus)
		repo.AssertNotCalled(t, "GetOrderByID", mock.Anything, mock.Anything)
	})

	t.Run("nothing to update", func(t *testing.T) {
		svc := order.NewService(new(MockOrderRepository), new(MockCatalogReader), new(MockUserProvider), nil)

		_, err := svc.UpdateOrderStatus(context.Background(), orderID, nil, nil)
		require.ErrorIs(t, err, order.ErrInvalidInput)
	})
}

func TestOrderService_GetUserOrder_ScopedToOwner(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := order.NewService(repo, new(MockCatalogReader), new(MockUserProvider), nil)

	owner := newCustomer()
	stranger := newCustomer()
	orderID := uuid.Must(uuid.NewV4())
	stored := &order.Order{ID: orderID, UserID: owner.ID, Status: order.StatusPaid}

	repo.On("GetOrderByID", mock.Anything, orderID).Return(stored, nil).Twice()

	got, err := svc.GetUserOrder(context.Background(), owner, orderID)
	require.NoError(t, err)
	assert.Equal(t, orderID, got.ID)

	_, err = svc.GetUserOrder(context.Background(), stranger, orderID)
	require.ErrorIs(t, err, order.ErrOrderNotFound)
	repo.AssertExpectations(t)
}

func TestOrderService_ListOrders(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := order.NewService(repo, new(MockCatalogReader), new(MockUserProvider), nil)

	q := listing.NewOrderQuery(listing.Request{Status: "nonsense", Page: 4})
	expectedQuery := q
	expectedQuery.Status = ""

	repo.On("ListOrders", mock.Anything, expectedQuery).Return(nil, 25, nil).Once()

	page, err := svc.ListOrders(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 4, page.Page)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 25, page.TotalItems)
	assert.Empty(t, page.Items)
	repo.AssertExpectations(t)
}

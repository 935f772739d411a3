package analytics_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/analytics"
)

type MockAnalyticsRepository struct {
	mock.Mock
}

func (m *MockAnalyticsRepository) MonthlyTotals(ctx context.Context, start, end time.Time) ([]analytics.MonthTotal, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analytics.MonthTotal), args.Error(1)
}

func (m *MockAnalyticsRepository) Revenue(ctx context.Context, key analytics.RankKey, start, end time.Time, limit int) ([]analytics.RankedRevenue, error) {
	args := m.Called(ctx, key, start, end, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analytics.RankedRevenue), args.Error(1)
}

func (m *MockAnalyticsRepository) CountUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAnalyticsRepository) OrdersByStatus(ctx context.Context) ([]analytics.StatusCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]analytics.StatusCount), args.Error(1)
}

func (m *MockAnalyticsRepository) OrderAmounts(ctx context.Context) (analytics.OrderAmounts, error) {
	args := m.Called(ctx)
	return args.Get(0).(analytics.OrderAmounts), args.Error(1)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMonthlyEarnings(t *testing.T) {
	repo := new(MockAnalyticsRepository)
	svc := analytics.NewService(repo)

	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	repo.On("MonthlyTotals", mock.Anything, start, end).Return([]analytics.MonthTotal{
		{Month: 1, Total: dec("10.005")},
		{Month: 3, Total: dec("20.10")},
		{Month: 12, Total: dec("0.333")},
		{Month: 13, Total: dec("999")},
	}, nil).Once()

	got, err := svc.MonthlyEarnings(context.Background(), 2024)
	require.NoError(t, err)

	require.Len(t, got.MonthlyTotals, 12)
	assert.Equal(t, 2024, got.Year)
	assert.Equal(t, "10.01", got.MonthlyTotals[0].StringFixed(2))
	assert.True(t, got.MonthlyTotals[1].IsZero())
	assert.Equal(t, "20.10", got.MonthlyTotals[2].StringFixed(2))
	assert.Equal(t, "0.33", got.MonthlyTotals[11].StringFixed(2))

	sum := decimal.Zero
	for _, m := range got.MonthlyTotals {
		sum = sum.Add(m)
	}
	assert.True(t, sum.Equal(got.Total), "total %s != sum %s", got.Total, sum)
	assert.Equal(t, "30.44", got.Total.StringFixed(2))
	repo.AssertExpectations(t)
}

func TestMonthlyEarnings_EmptyYear(t *testing.T) {
	repo := new(MockAnalyticsRepository)
	svc := analytics.NewService(repo)
	repo.On("MonthlyTotals", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Once()

	got, err := svc.MonthlyEarnings(context.Background(), 2020)
	require.NoError(t, err)
	require.Len(t, got.MonthlyTotals, 12)
	for _, m := range got.MonthlyTotals {
		assert.True(t, m.IsZero())
	}
	assert.True(t, got.Total.IsZero())
}

func TestMonthlyEarnings_InvalidYear(t *testing.T) {
	svc := analytics.NewService(new(MockAnalyticsRepository))

	_, err := svc.MonthlyEarnings(context.Background(), 0)
	require.ErrorIs(t, err, analytics.ErrInvalidPeriod)
}

func TestTopRankings(t *testing.T) {
	tests := []struct {
		name      string
		call      func(analytics.Service) ([]analytics.RankedRevenue, error)
		key       analytics.RankKey
		wantLimit int
	}{
		{
			name: "manufacturers default limit",
			call: func(s analytics.Service) ([]analytics.RankedRevenue, error) {
				return s.TopManufacturers(context.Background(), 2024, 2, 0)
			},
			key:       analytics.RankByManufacturer,
			wantLimit: 10,
		},
		{
			name: "medicines clamped limit",
			call: func(s analytics.Service) ([]analytics.RankedRevenue, error) {
				return s.TopMedicines(context.Background(), 2024, 2, 5000)
			},
			key:       analytics.RankByProduct,
			wantLimit: 100,
		},
	}

	start := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAnalyticsRepository)
			svc := analytics.NewService(repo)

			repo.On("Revenue", mock.Anything, tt.key, start, end, tt.wantLimit).Return([]analytics.RankedRevenue{
				{Name: "Acme", Total: dec("100.456")},
				{Name: "", Total: dec("3")},
			}, nil).Once()

			got, err := tt.call(svc)
			require.NoError(t, err)

			want := []analytics.RankedRevenue{
				{Name: "Acme", Total: dec("100.46")},
				{Name: analytics.UnknownKey, Total: dec("3")},
			}
			if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })); diff != "" {
				t.Errorf("ranking mismatch (-want +got):\n%s", diff)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestTopRankings_InvalidMonth(t *testing.T) {
	svc := analytics.NewService(new(MockAnalyticsRepository))

	_, err := svc.TopManufacturers(context.Background(), 2024, 13, 10)
	require.ErrorIs(t, err, analytics.ErrInvalidPeriod)
}

func TestDashboardStats(t *testing.T) {
	repo := new(MockAnalyticsRepository)
	svc := analytics.NewService(repo)

	repo.On("CountUsers", mock.Anything).Return(int64(7), nil).Once()
	repo.On("OrdersByStatus", mock.Anything).Return([]analytics.StatusCount{
		{Status: "paid", Count: 2},
		{Status: "cancelled", Count: 1},
	}, nil).Once()
	repo.On("OrderAmounts", mock.Anything).Return(analytics.OrderAmounts{Total: dec("10.00"), Count: 3}, nil).Once()

	stats, err := svc.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.Users)
	assert.Equal(t, int64(3), stats.Orders.Total)
	assert.Equal(t, map[string]int64{"paid": 2, "cancelled": 1}, stats.Orders.ByStatus)
	assert.Equal(t, "3.33", stats.MeanOrderAmount.StringFixed(2))
	assert.Equal(t, "10.00", stats.TotalOrderAmount.StringFixed(2))
}

func TestDashboardStats_NoOrders(t *testing.T) {
	repo := new(MockAnalyticsRepository)
	svc := analytics.NewService(repo)

	repo.On("CountUsers", mock.Anything).Return(int64(0), nil)
	repo.On("OrdersByStatus", mock.Anything).Return([]analytics.StatusCount{}, nil)
	repo.On("OrderAmounts", mock.Anything).Return(analytics.OrderAmounts{Total: decimal.Zero}, nil)

	stats, err := svc.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.MeanOrderAmount.IsZero())
	assert.Equal(t, int64(0), stats.Orders.Total)
}

func TestDashboardStats_CounterFailure(t *testing.T) {
	repo := new(MockAnalyticsRepository)
	svc := analytics.NewService(repo)

	repo.On("CountUsers", mock.Anything).Return(int64(0), errors.New("boom"))
	repo.On("OrdersByStatus", mock.Anything).Return([]analytics.StatusCount{}, nil).Maybe()
	repo.On("OrderAmounts", mock.Anything).Return(analytics.OrderAmounts{}, nil).Maybe()

	_, err := svc.DashboardStats(context.Background())
	require.Error(t, err)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	getErr  error
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.entries[key]
	if !ok {
		return nil, analytics.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.sets++
	return nil
}

func TestCachedService_ReadThrough(t *testing.T) {
	repo := new(MockAnalyticsRepository)
	cache := newMemoryCache()
	svc := analytics.NewCachedService(analytics.NewService(repo), cache, time.Minute)

	repo.On("MonthlyTotals", mock.Anything, mock.Anything, mock.Anything).Return([]analytics.MonthTotal{
		{Month: 5, Total: dec("42.50")},
	}, nil).Once()

	first, err := svc.MonthlyEarnings(context.Background(), 2023)
	require.NoError(t, err)
	second, err := svc.MonthlyEarnings(context.Background(), 2023)
	require.NoError(t, err)

	assert.True(t, first.Total.Equal(second.Total))
	assert.True(t, second.MonthlyTotals[4].Equal(dec("42.50")))
	assert.Equal(t, 1, cache.sets)
	repo.AssertExpectations(t)
}

func TestCachedService_CacheFailureFallsBack(t *testing.T) {
	repo := new(MockAnalyticsRepository)
	cache := newMemoryCache()
	cache.getErr = errors.New("redis: connection refused")
	svc := analytics.NewCachedService(analytics.NewService(repo), cache, time.Minute)

	repo.On("Revenue", mock.Anything, analytics.RankByManufacturer, mock.Anything, mock.Anything, 10).
		Return([]analytics.RankedRevenue{{Name: "Acme", Total: dec("1")}}, nil).Twice()

	for i := 0; i < 2; i++ {
		got, err := svc.TopManufacturers(context.Background(), 2024, 1, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
	}
	repo.AssertExpectations(t)
}

func TestCachedService_ErrorsAreNotCached(t *testing.T) {
	repo := new(MockAnalyticsRepository)
	cache := newMemoryCache()
	svc := analytics.NewCachedService(analytics.NewService(repo), cache, time.Minute)

	_, err := svc.MonthlyEarnings(context.Background(), -1)
	require.ErrorIs(t, err, analytics.ErrInvalidPeriod)
	assert.Equal(t, 0, cache.sets)
}

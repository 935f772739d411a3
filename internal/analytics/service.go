package analytics

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type Service interface {
	MonthlyEarnings(ctx context.Context, year int) (MonthlyEarnings, error)
	TopManufacturers(ctx context.Context, year, month, limit int) ([]RankedRevenue, error)
	TopMedicines(ctx context.Context, year, month, limit int) ([]RankedRevenue, error)
	DashboardStats(ctx context.Context) (DashboardStats, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func validYear(year int) bool {
	return year >= 1 && year <= 9999
}

// MonthlyEarnings buckets order totals by UTC creation month. Every order in
// the window counts, whatever its status.
func (s *service) MonthlyEarnings(ctx context.Context, year int) (MonthlyEarnings, error) {
	if !validYear(year) {
		return MonthlyEarnings{}, fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}

	start, end := YearWindow(year)
	rows, err := s.repo.MonthlyTotals(ctx, start, end)
	if err != nil {
		log.Error().Err(err).Int("year", year).Msg("service: failed to aggregate monthly earnings")
		return MonthlyEarnings{}, fmt.Errorf("service: failed to aggregate monthly earnings: %w", err)
	}

	months := make([]decimal.Decimal, 12)
	for i := range months {
		months[i] = decimal.Zero
	}
	for _, row := range rows {
		if row.Month < 1 || row.Month > 12 {
			continue
		}
		months[row.Month-1] = row.Total.Round(2)
	}

	total := decimal.Zero
	for _, m := range months {
		total = total.Add(m)
	}

	return MonthlyEarnings{Year: year, MonthlyTotals: months, Total: total.Round(2)}, nil
}

func (s *service) TopManufacturers(ctx context.Context, year, month, limit int) ([]RankedRevenue, error) {
	return s.top(ctx, RankByManufacturer, year, month, limit)
}

func (s *service) TopMedicines(ctx context.Context, year, month, limit int) ([]RankedRevenue, error) {
	return s.top(ctx, RankByProduct, year, month, limit)
}

func (s *service) top(ctx context.Context, key RankKey, year, month, limit int) ([]RankedRevenue, error) {
	if !validYear(year) || month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d-%02d", ErrInvalidPeriod, year, month)
	}

	start, end := MonthWindow(year, month)
	rows, err := s.repo.Revenue(ctx, key, start, end, ClampLimit(limit))
	if err != nil {
		log.Error().Err(err).Str("key", string(key)).Int("year", year).Int("month", month).Msg("service: failed to rank revenue")
		return nil, fmt.Errorf("service: failed to rank revenue: %w", err)
	}

	ranked := make([]RankedRevenue, 0, len(rows))
	for _, row := range rows {
		name := row.Name
		if name == "" {
			name = UnknownKey
		}
		ranked = append(ranked, RankedRevenue{Name: name, Total: row.Total.Round(2)})
	}

	return ranked, nil
}

func (s *service) DashboardStats(ctx context.Context) (DashboardStats, error) {
	var (
		users    int64
		statuses []StatusCount
		amounts  OrderAmounts
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.repo.CountUsers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		statuses, err = s.repo.OrdersByStatus(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		amounts, err = s.repo.OrderAmounts(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("service: failed to compute dashboard stats")
		return DashboardStats{}, fmt.Errorf("service: failed to compute dashboard stats: %w", err)
	}

	stats := DashboardStats{
		Users: users,
		Orders: OrderStats{
			ByStatus: make(map[string]int64, len(statuses)),
		},
		TotalOrderAmount: amounts.Total.Round(2),
		MeanOrderAmount:  decimal.Zero,
	}
	for _, sc := range statuses {
		stats.Orders.ByStatus[sc.Status] = sc.Count
		stats.Orders.Total += sc.Count
	}
	if amounts.Count > 0 {
		stats.MeanOrderAmount = amounts.Total.DivRound(decimal.NewFromInt(amounts.Count), 2)
	}

	return stats, nil
}

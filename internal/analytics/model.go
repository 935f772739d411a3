package analytics

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultTopLimit = 10
	MaxTopLimit     = 100

	UnknownKey = "Unknown"
)

var ErrInvalidPeriod = errors.New("invalid analytics period")

type MonthlyEarnings struct {
	Year          int               `json:"year"`
	MonthlyTotals []decimal.Decimal `json:"monthlyTotals"`
	Total         decimal.Decimal   `json:"total"`
}

type RankedRevenue struct {
	Name  string          `json:"name" db:"name"`
	Total decimal.Decimal `json:"total" db:"total"`
}

type OrderStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"byStatus"`
}

type DashboardStats struct {
	Users            int64           `json:"users"`
	Orders           OrderStats      `json:"orders"`
	TotalOrderAmount decimal.Decimal `json:"totalOrderAmount"`
	MeanOrderAmount  decimal.Decimal `json:"meanOrderAmount"`
}

type MonthTotal struct {
	Month int             `db:"month"`
	Total decimal.Decimal `db:"total"`
}

type StatusCount struct {
	Status string `db:"status"`
	Count  int64  `db:"count"`
}

type OrderAmounts struct {
	Total decimal.Decimal `db:"total"`
	Count int64           `db:"count"`
}

// YearWindow is [Jan 1 year, Jan 1 year+1) in UTC.
func YearWindow(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}

func MonthWindow(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return DefaultTopLimit
	case limit > MaxTopLimit:
		return MaxTopLimit
	default:
		return limit
	}
}

package listing

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	MaxLimit = 200
	// MaxPage keeps (page-1)*limit well inside int64.
	MaxPage = math.MaxInt32

	DefaultOrderLimit   = 10
	DefaultReviewLimit  = 10
	DefaultProductLimit = 20

	MinSearchLength       = 3
	MinReviewSearchLength = 2
)

type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

type OrderSort string

const (
	OrderSortCreatedAt OrderSort = "createdAt"
	OrderSortAmount    OrderSort = "amount"
)

type ReviewSort string

const (
	ReviewSortCreatedAt ReviewSort = "createdAt"
	ReviewSortRating    ReviewSort = "rating"
)

type ProductSort string

const (
	ProductSortName  ProductSort = "name"
	ProductSortPrice ProductSort = "price"
)

// Request is the raw, untrusted listing input as it arrives from a caller.
type Request struct {
	Page    int
	Limit   int
	Search  string
	Status  string
	Rating  int
	SortBy  string
	SortDir string
}

func FromValues(v url.Values) Request {
	return Request{
		Page:    atoi(v.Get("page")),
		Limit:   atoi(v.Get("limit")),
		Search:  v.Get("search"),
		Status:  v.Get("status"),
		Rating:  atoi(v.Get("rating")),
		SortBy:  v.Get("sortBy"),
		SortDir: v.Get("sortDir"),
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

type Params struct {
	Page   int
	Limit  int
	Search string
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

func newParams(r Request, defaultLimit, minSearch int) Params {
	page := r.Page
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}

	limit := r.Limit
	switch {
	case limit < 1:
		limit = defaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	search := strings.TrimSpace(r.Search)
	if utf8.RuneCountInString(search) < minSearch {
		search = ""
	}

	return Params{Page: page, Limit: limit, Search: search}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns a search term into an ILIKE pattern that matches it
// literally. Queries must use ESCAPE '\'.
func ContainsPattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

func parseDirection(raw string, fallback SortDirection) SortDirection {
	switch SortDirection(strings.ToLower(strings.TrimSpace(raw))) {
	case Asc:
		return Asc
	case Desc:
		return Desc
	default:
		return fallback
	}
}

type OrderQuery struct {
	Params
	Status  string
	SortBy  OrderSort
	SortDir SortDirection
}

func NewOrderQuery(r Request) OrderQuery {
	q := OrderQuery{
		Params:  newParams(r, DefaultOrderLimit, MinSearchLength),
		Status:  strings.ToLower(strings.TrimSpace(r.Status)),
		SortBy:  OrderSortCreatedAt,
		SortDir: parseDirection(r.SortDir, Desc),
	}
	if q.Status == "all" {
		q.Status = ""
	}

	switch OrderSort(r.SortBy) {
	case OrderSortAmount:
		q.SortBy = OrderSortAmount
	case OrderSortCreatedAt:
	default:
		// Unknown keys fall back to the default ordering as a whole.
		q.SortDir = Desc
	}

	return q
}

type ReviewQuery struct {
	Params
	Rating  int
	SortBy  ReviewSort
	SortDir SortDirection
}

func NewReviewQuery(r Request) ReviewQuery {
	q := ReviewQuery{
		Params:  newParams(r, DefaultReviewLimit, MinReviewSearchLength),
		SortBy:  ReviewSortCreatedAt,
		SortDir: parseDirection(r.SortDir, Desc),
	}
	if r.Rating >= 1 && r.Rating <= 5 {
		q.Rating = r.Rating
	}

	switch ReviewSort(r.SortBy) {
	case ReviewSortRating:
		q.SortBy = ReviewSortRating
	case ReviewSortCreatedAt:
	default:
		q.SortDir = Desc
	}

	return q
}

type ProductQuery struct {
	Params
	SortBy  ProductSort
	SortDir SortDirection
}

func NewProductQuery(r Request) ProductQuery {
	q := ProductQuery{
		Params:  newParams(r, DefaultProductLimit, MinSearchLength),
		SortBy:  ProductSortName,
		SortDir: parseDirection(r.SortDir, Asc),
	}

	switch ProductSort(r.SortBy) {
	case ProductSortPrice:
		q.SortBy = ProductSortPrice
	case ProductSortName:
	default:
		q.SortDir = Asc
	}

	return q
}

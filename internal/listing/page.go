package listing

type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
	TotalItems int `json:"totalItems"`
}

// NewPage builds the response envelope. Items is never nil so it always
// serializes as an array.
func NewPage[T any](items []T, p Params, totalItems int) Page[T] {
	if items == nil {
		items = []T{}
	}

	return Page[T]{
		Items:      items,
		Page:       p.Page,
		TotalPages: TotalPages(totalItems, p.Limit),
		TotalItems: totalItems,
	}
}

func TotalPages(totalItems, limit int) int {
	if limit < 1 || totalItems <= 0 {
		return 1
	}

	pages := (totalItems + limit - 1) / limit
	if pages < 1 {
		return 1
	}
	return pages
}

// Map converts the items of a page while keeping its paging metadata.
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	items := make([]U, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, fn(item))
	}

	return Page[U]{
		Items:      items,
		Page:       p.Page,
		TotalPages: p.TotalPages,
		TotalItems: p.TotalItems,
	}
}

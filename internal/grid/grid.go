package grid

import (
	"github.com/example/b2b-storefront/internal/domain/product"
)

type SortBy string

const (
	SortDefault   SortBy = "default"
	SortPriceAsc  SortBy = "price_asc"
	SortPriceDesc SortBy = "price_desc"
	SortNameAsc   SortBy = "name_asc"
	SortRating    SortBy = "rating"
)

func (s SortBy) Valid() bool {
	switch s {
	case SortDefault, SortPriceAsc, SortPriceDesc, SortNameAsc, SortRating:
		return true
	}
	return false
}

type StockFilter string

const (
	StockAll       StockFilter = "all"
	StockAvailable StockFilter = "available"
	StockLow       StockFilter = "low_stock"
)

func (f StockFilter) Valid() bool {
	switch f {
	case StockAll, StockAvailable, StockLow:
		return true
	}
	return false
}

// MinItemsPerPage is the floor applied to any requested page size.
const MinItemsPerPage = 144

// State is the presentation-only grid state.
type State struct {
	SortBy       SortBy      `json:"sortBy"`
	ItemsPerPage int         `json:"itemsPerPage"`
	CurrentPage  int         `json:"currentPage"`
	StockFilter  StockFilter `json:"stockFilter"`
}

func DefaultState() State {
	return State{
		SortBy:       SortDefault,
		ItemsPerPage: MinItemsPerPage,
		CurrentPage:  1,
		StockFilter:  StockAll,
	}
}

// Normalize replaces invalid enums with defaults, raises the page size to
// the floor and keeps the page at 1 or above.
func (s State) Normalize() State {
	if !s.SortBy.Valid() {
		s.SortBy = SortDefault
	}
	if !s.StockFilter.Valid() {
		s.StockFilter = StockAll
	}
	if s.ItemsPerPage < MinItemsPerPage {
		s.ItemsPerPage = MinItemsPerPage
	}
	if s.CurrentPage < 1 {
		s.CurrentPage = 1
	}
	return s
}

// TotalPages is ceil(total/perPage), never below 1.
func TotalPages(total, perPage int) int {
	if perPage < 1 {
		perPage = MinItemsPerPage
	}
	if total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

// ClampPage keeps a page inside [1, totalPages]. A page past the end resets
// to 1 rather than to the last page.
func ClampPage(page, total, perPage int) int {
	if page < 1 || page > TotalPages(total, perPage) {
		return 1
	}
	return page
}

// FilterStock applies the stock bucket.
func FilterStock(products []product.Product, f StockFilter) []product.Product {
	if f == StockAll || !f.Valid() {
		return products
	}
	out := make([]product.Product, 0, len(products))
	for _, p := range products {
		switch f {
		case StockAvailable:
			if p.Stock > 1 {
				out = append(out, p)
			}
		case StockLow:
			if p.Stock <= 1 {
				out = append(out, p)
			}
		}
	}
	return out
}

// Paginate returns the slice for a 1-based page.
func Paginate(products []product.Product, page, perPage int) []product.Product {
	start := (page - 1) * perPage
	if start < 0 || start >= len(products) {
		return []product.Product{}
	}
	end := start + perPage
	if end > len(products) {
		end = len(products)
	}
	return products[start:end]
}

// Page is one rendered page of the grid.
type Page struct {
	Items        []product.Product `json:"items"`
	TotalItems   int               `json:"totalItems"`
	TotalPages   int               `json:"totalPages"`
	CurrentPage  int               `json:"currentPage"`
	ItemsPerPage int               `json:"itemsPerPage"`
}

// Apply runs sort, stock filter and pagination. It returns the page and the
// state with its page clamped to the filtered total.
func Apply(products []product.Product, s State) (Page, State) {
	s = s.Normalize()
	sorted := Sort(products, s.SortBy)
	filtered := FilterStock(sorted, s.StockFilter)

	s.CurrentPage = ClampPage(s.CurrentPage, len(filtered), s.ItemsPerPage)
	return Page{
		Items:        Paginate(filtered, s.CurrentPage, s.ItemsPerPage),
		TotalItems:   len(filtered),
		TotalPages:   TotalPages(len(filtered), s.ItemsPerPage),
		CurrentPage:  s.CurrentPage,
		ItemsPerPage: s.ItemsPerPage,
	}, s
}

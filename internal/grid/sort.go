package grid

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/example/b2b-storefront/internal/domain/product"
)

var classificationRank = map[string]int{"A": 0, "B": 1, "C": 2}

func rank(p product.Product) int {
	if r, ok := classificationRank[p.Classification()]; ok {
		return r
	}
	return len(classificationRank)
}

// Sort returns a sorted copy; the input slice is left untouched.
// Ties keep their input order.
func Sort(products []product.Product, by SortBy) []product.Product {
	out := make([]product.Product, len(products))
	copy(out, products)

	switch by {
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].PriceValue() < out[j].PriceValue() })
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].PriceValue() > out[j].PriceValue() })
	case SortNameAsc:
		// Collators carry internal buffers and are not safe to share.
		c := collate.New(language.Spanish, collate.IgnoreCase)
		sort.SliceStable(out, func(i, j int) bool { return c.CompareString(out[i].Name, out[j].Name) < 0 })
	case SortRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	default:
		sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) < rank(out[j]) })
	}
	return out
}

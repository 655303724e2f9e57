package cart

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Tier is a volume discount: Percent off once the post-promo subtotal
// reaches MinSubtotal.
type Tier struct {
	MinSubtotal decimal.Decimal `json:"minSubtotal"`
	Percent     decimal.Decimal `json:"percent"`
}

// CompanyTotals are the amounts of one company's order.
type CompanyTotals struct {
	CompanyID    string          `json:"empresaId"`
	Items        int             `json:"items"`
	Gross        decimal.Decimal `json:"gross"`
	Discount     decimal.Decimal `json:"discount"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TierDiscount decimal.Decimal `json:"tierDiscount"`
	Taxable      decimal.Decimal `json:"taxable"`
	IVA          decimal.Decimal `json:"iva"`
	Total        decimal.Decimal `json:"total"`
}

// Totals computes per-company totals. ivaPct is a percentage (15 = 15%).
// Tiers may be in any order; the highest reached tier applies.
func (c *Cart) Totals(ivaPct decimal.Decimal, tiers []Tier) []CompanyTotals {
	byCompany := make(map[string]*CompanyTotals)
	for _, l := range c.Lines {
		t, ok := byCompany[l.CompanyID]
		if !ok {
			t = &CompanyTotals{CompanyID: l.CompanyID}
			byCompany[l.CompanyID] = t
		}
		t.Items += l.Quantity
		t.Gross = t.Gross.Add(l.Gross())
		t.Discount = t.Discount.Add(l.PromoDiscount())
	}

	out := make([]CompanyTotals, 0, len(byCompany))
	for _, t := range byCompany {
		t.Subtotal = t.Gross.Sub(t.Discount)
		if pct, ok := tierFor(t.Subtotal, tiers); ok {
			t.TierDiscount = t.Subtotal.Mul(pct).Div(hundred).Round(2)
		}
		t.Taxable = t.Subtotal.Sub(t.TierDiscount)
		t.IVA = t.Taxable.Mul(ivaPct).Div(hundred).Round(2)
		t.Total = t.Taxable.Add(t.IVA).Round(2)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompanyID < out[j].CompanyID })
	return out
}

func tierFor(subtotal decimal.Decimal, tiers []Tier) (decimal.Decimal, bool) {
	var best *Tier
	for i := range tiers {
		t := &tiers[i]
		if subtotal.LessThan(t.MinSubtotal) {
			continue
		}
		if best == nil || t.MinSubtotal.GreaterThan(best.MinSubtotal) {
			best = t
		}
	}
	if best == nil {
		return decimal.Zero, false
	}
	return best.Percent, true
}

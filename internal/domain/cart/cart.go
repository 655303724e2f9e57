package cart

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/example/b2b-storefront/internal/domain/product"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInsufficientStock = errors.New("quantity exceeds available stock")
	ErrNoPrice           = errors.New("product has no price")
	ErrInvalidProduct    = errors.New("product_id and empresa_id are required")
	ErrLineNotFound      = errors.New("cart line not found")
	ErrNothingToCheckout = errors.New("no cart lines for company")
)

var hundred = decimal.NewFromInt(100)

// Line is one product in the cart. Price and discount are captured when the
// product is added.
type Line struct {
	ProductID string          `json:"productId"`
	CompanyID string          `json:"empresaId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Discount  decimal.Decimal `json:"discount"`
	Stock     int             `json:"stock"`
}

// Gross is price times quantity.
func (l Line) Gross() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// PromoDiscount is the line's percentage discount applied to Gross.
func (l Line) PromoDiscount() decimal.Decimal {
	return l.Gross().Mul(l.Discount).Div(hundred)
}

// Cart holds lines for any number of companies; lines are grouped by
// CompanyID only when totals are computed.
type Cart struct {
	UserID string `json:"userId"`
	Lines  []Line `json:"lines"`
}

func New(userID string) *Cart {
	return &Cart{UserID: userID, Lines: []Line{}}
}

// Add puts qty units of p in the cart, merging with an existing line.
func (c *Cart) Add(p product.Product, companyID string, qty int) error {
	if p.ID == "" || companyID == "" {
		return ErrInvalidProduct
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if !p.HasPrice() {
		return ErrNoPrice
	}

	idx := c.find(companyID, p.ID)
	total := qty
	if idx >= 0 {
		total += c.Lines[idx].Quantity
	}
	if total > p.Stock {
		return ErrInsufficientStock
	}

	line := Line{
		ProductID: p.ID,
		CompanyID: companyID,
		Name:      p.Name,
		Quantity:  total,
		Price:     decimal.NewFromFloat(p.PriceValue()),
		Discount:  decimal.NewFromFloat(p.Discount),
		Stock:     p.Stock,
	}
	if idx >= 0 {
		c.Lines[idx] = line
		return nil
	}
	c.Lines = append(c.Lines, line)
	return nil
}

func (c *Cart) UpdateQuantity(companyID, productID string, qty int) error {
	idx := c.find(companyID, productID)
	if idx < 0 {
		return ErrLineNotFound
	}
	if qty < 1 {
		return ErrInvalidQuantity
	}
	if qty > c.Lines[idx].Stock {
		return ErrInsufficientStock
	}
	c.Lines[idx].Quantity = qty
	return nil
}

func (c *Cart) Remove(companyID, productID string) error {
	idx := c.find(companyID, productID)
	if idx < 0 {
		return ErrLineNotFound
	}
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	return nil
}

func (c *Cart) Clear() {
	c.Lines = []Line{}
}

// Checkout removes and returns every line of one company.
func (c *Cart) Checkout(companyID string) ([]Line, error) {
	var taken, kept []Line
	for _, l := range c.Lines {
		if l.CompanyID == companyID {
			taken = append(taken, l)
		} else {
			kept = append(kept, l)
		}
	}
	if len(taken) == 0 {
		return nil, ErrNothingToCheckout
	}
	if kept == nil {
		kept = []Line{}
	}
	c.Lines = kept
	return taken, nil
}

// Companies returns the distinct company ids in the cart, sorted.
func (c *Cart) Companies() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range c.Lines {
		if !seen[l.CompanyID] {
			seen[l.CompanyID] = true
			out = append(out, l.CompanyID)
		}
	}
	sort.Strings(out)
	return out
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Clone returns a deep copy.
func (c *Cart) Clone() *Cart {
	lines := make([]Line, len(c.Lines))
	copy(lines, c.Lines)
	return &Cart{UserID: c.UserID, Lines: lines}
}

func (c *Cart) find(companyID, productID string) int {
	for i, l := range c.Lines {
		if l.CompanyID == companyID && l.ProductID == productID {
			return i
		}
	}
	return -1
}

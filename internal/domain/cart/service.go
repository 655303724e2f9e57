package cart

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/example/b2b-storefront/internal/domain/product"
)

// Service owns one cart per user. Every mutation is handed to the syncer.
type Service struct {
	syncer *Syncer
	tiers  []Tier

	mu    sync.Mutex
	carts map[string]*Cart
}

// NewService builds the cart service. syncer may be nil.
func NewService(syncer *Syncer, tiers []Tier) *Service {
	return &Service{
		syncer: syncer,
		tiers:  tiers,
		carts:  make(map[string]*Cart),
	}
}

// Get returns a copy of the user's cart, restoring the fallback snapshot
// the first time a user is seen.
func (s *Service) Get(ctx context.Context, userID string) *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, userID).Clone()
}

func (s *Service) AddItem(ctx context.Context, userID string, p product.Product, companyID string, qty int) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.Add(p, companyID, qty)
	})
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, companyID, productID string, qty int) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.UpdateQuantity(companyID, productID, qty)
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, companyID, productID string) (*Cart, error) {
	return s.mutate(ctx, userID, func(c *Cart) error {
		return c.Remove(companyID, productID)
	})
}

func (s *Service) Clear(ctx context.Context, userID string) *Cart {
	c, _ := s.mutate(ctx, userID, func(c *Cart) error {
		c.Clear()
		return nil
	})
	return c
}

// Checkout takes one company's lines out of the cart.
func (s *Service) Checkout(ctx context.Context, userID, companyID string) ([]Line, *Cart, error) {
	var taken []Line
	c, err := s.mutate(ctx, userID, func(c *Cart) error {
		lines, err := c.Checkout(companyID)
		taken = lines
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return taken, c, nil
}

func (s *Service) Tiers() []Tier {
	return s.tiers
}

// Totals computes per-company totals with the service's volume tiers.
func (s *Service) Totals(ctx context.Context, userID string, ivaPct decimal.Decimal) []CompanyTotals {
	return s.Get(ctx, userID).Totals(ivaPct, s.tiers)
}

func (s *Service) mutate(ctx context.Context, userID string, fn func(*Cart) error) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.load(ctx, userID)
	if err := fn(c); err != nil {
		return nil, err
	}
	if s.syncer != nil {
		s.syncer.Schedule(userID, c.Lines)
	}
	return c.Clone(), nil
}

func (s *Service) load(ctx context.Context, userID string) *Cart {
	if c, ok := s.carts[userID]; ok {
		return c
	}
	c := New(userID)
	if s.syncer != nil {
		if lines, ok := s.syncer.LoadFallback(ctx, userID); ok && lines != nil {
			c.Lines = lines
		}
	}
	s.carts[userID] = c
	return c
}

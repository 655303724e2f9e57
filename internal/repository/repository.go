package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/example/b2b-storefront/internal/backend"
	"github.com/example/b2b-storefront/internal/domain/product"
)

var (
	// ErrSuperseded marks a response that arrived after a newer request for
	// the same scope was issued. Callers discard it.
	ErrSuperseded = errors.New("response superseded by a newer request")
)

// Status is the load state shown to the user. The four values are never
// collapsed into one another.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// StatusOf maps a finished load to its status.
func StatusOf(products []product.Product, err error) Status {
	if err != nil {
		return StatusError
	}
	if len(products) == 0 {
		return StatusEmpty
	}
	return StatusReady
}

// Source is the upstream product backend.
type Source interface {
	GetProductos(ctx context.Context, field, value string) ([]product.Product, error)
	Search(ctx context.Context, term string) ([]product.Product, error)
	GetProductoByCodigo(ctx context.Context, code, empresaID string) (product.Product, error)
}

const (
	companyField        = "empresa"
	defaultFetchTimeout = 30 * time.Second
)

type entry struct {
	products  []product.Product
	fetchedAt time.Time
}

// Repository caches company catalogs and enforces that only the latest
// request of a scope (a session, a search box) gets to see its response.
type Repository struct {
	source       Source
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	cache   map[string]entry
	current map[string]string
	// tokens holds the last backend token that loaded each company.
	tokens map[string]string
}

func New(source Source, ttl time.Duration) *Repository {
	return &Repository{
		source:       source,
		ttl:          ttl,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
		cache:        make(map[string]entry),
		current:      make(map[string]string),
		tokens:       make(map[string]string),
	}
}

// LoadCompany returns the catalog of one company. A fresh cache entry is
// served without a backend call. On backend failure a stale entry is served
// instead of the error.
func (r *Repository) LoadCompany(ctx context.Context, scope, empresaID string) ([]product.Product, error) {
	token := r.begin(scope)

	if products, ok := r.cached(empresaID, true); ok {
		return products, r.finish(scope, token)
	}

	products, err := r.fetchCompany(ctx, empresaID)
	if err != nil {
		stale, ok := r.cached(empresaID, false)
		if !ok {
			if supErr := r.finish(scope, token); supErr != nil {
				return nil, supErr
			}
			return nil, err
		}
		log.Printf("[Repository] Serving cached catalog for %s after error: %v", empresaID, err)
		products = stale
	}
	if err := r.finish(scope, token); err != nil {
		log.Printf("[Repository] Discarded superseded catalog response for scope %s", scope)
		return nil, err
	}
	return products, nil
}

// Search runs a free-text search. Only the newest search of a scope
// returns results; older ones get ErrSuperseded.
func (r *Repository) Search(ctx context.Context, scope, term string) ([]product.Product, error) {
	token := r.begin(scope)
	products, err := r.source.Search(ctx, term)
	if supErr := r.finish(scope, token); supErr != nil {
		log.Printf("[Repository] Discarded superseded search %q for scope %s", term, scope)
		return nil, supErr
	}
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}
	return products, nil
}

// GetByCode looks a product up in the cached catalog first.
func (r *Repository) GetByCode(ctx context.Context, code, empresaID string) (product.Product, error) {
	if products, ok := r.cached(empresaID, false); ok {
		for _, p := range products {
			if p.ID == code {
				return p, nil
			}
		}
	}
	return r.source.GetProductoByCodigo(ctx, code, empresaID)
}

// Invalidate drops one company, or every company when empresaID is "".
func (r *Repository) Invalidate(empresaID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if empresaID == "" {
		r.cache = make(map[string]entry)
		return
	}
	delete(r.cache, empresaID)
}

// Companies lists the companies currently cached.
func (r *Repository) Companies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.cache))
	for id := range r.cache {
		out = append(out, id)
	}
	return out
}

// Refresh re-fetches a company and replaces its entry on success. Without a
// backend token in ctx, the last token that loaded the company is used.
func (r *Repository) Refresh(ctx context.Context, empresaID string) error {
	_, err := r.fetchCompany(ctx, empresaID)
	return err
}

// fetchCompany shares one backend call among concurrent callers. The call
// runs detached from the first caller, so a cancelled caller only stops
// waiting for it.
func (r *Repository) fetchCompany(ctx context.Context, empresaID string) ([]product.Product, error) {
	ctx = r.withCompanyToken(ctx, empresaID)
	ch := r.group.DoChan(empresaID, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
		defer cancel()
		products, err := r.source.GetProductos(fetchCtx, companyField, empresaID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[empresaID] = entry{products: products, fetchedAt: r.now()}
		r.mu.Unlock()
		return products, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", empresaID, res.Err)
		}
		return res.Val.([]product.Product), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("load catalog %s: %w", empresaID, ctx.Err())
	}
}

func (r *Repository) withCompanyToken(ctx context.Context, empresaID string) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tok := backend.TokenFrom(ctx); tok != "" {
		r.tokens[empresaID] = tok
		return ctx
	}
	if tok := r.tokens[empresaID]; tok != "" {
		return backend.WithToken(ctx, tok)
	}
	return ctx
}

func (r *Repository) cached(empresaID string, freshOnly bool) ([]product.Product, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[empresaID]
	if !ok {
		return nil, false
	}
	if freshOnly && r.ttl > 0 && r.now().Sub(e.fetchedAt) > r.ttl {
		return nil, false
	}
	return e.products, true
}

func (r *Repository) begin(scope string) string {
	token := uuid.NewString()
	r.mu.Lock()
	r.current[scope] = token
	r.mu.Unlock()
	return token
}

func (r *Repository) finish(scope, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current[scope] != token {
		return ErrSuperseded
	}
	delete(r.current, scope)
	return nil
}

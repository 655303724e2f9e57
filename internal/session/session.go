package session

import (
	"context"
	"errors"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/example/b2b-storefront/internal/catalog"
	"github.com/example/b2b-storefront/internal/domain/product"
	"github.com/example/b2b-storefront/internal/grid"
	"github.com/example/b2b-storefront/internal/persistence"
	"github.com/example/b2b-storefront/internal/repository"
)

// View is everything a client needs to render the catalog screen.
type View struct {
	SessionID string            `json:"sessionId"`
	EmpresaID string            `json:"empresaId"`
	Status    repository.Status `json:"status"`
	Error     string            `json:"error,omitempty"`
	Flow      catalog.View      `json:"flow"`
	State     catalog.State     `json:"state"`
	Grid      grid.State        `json:"grid"`
	Page      grid.Page         `json:"page"`
	// Query is the canonical URL query the client should replace its own with.
	Query    string `json:"query"`
	ScrollTo string `json:"scrollTo,omitempty"`
}

// Session is one user's browse of one company catalog. All methods are safe
// for concurrent use.
type Session struct {
	ID        string
	UserID    string
	EmpresaID string

	mu         sync.Mutex
	token      string
	engine     *catalog.Engine
	loc        *persistence.MemoryLocation
	bridge     *persistence.Bridge
	grid       grid.State
	lastViewed *persistence.LastViewed
	states     *persistence.StateStore
	status     repository.Status
	loadErr    string
	touchedAt  time.Time
	now        func() time.Time
	loaded     chan struct{}
	loadedOnce sync.Once
}

func (s *Session) namespace() string {
	return s.UserID + ":" + s.EmpresaID
}

// Wait blocks until the first catalog load finished or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) Status() repository.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) SelectLine(ctx context.Context, line string) {
	s.mutate(ctx, func(e *catalog.Engine) { e.SelectLine(line) })
}

func (s *Session) SelectFilterValue(ctx context.Context, value string) {
	s.mutate(ctx, func(e *catalog.Engine) { e.SelectFilterValue(value) })
}

func (s *Session) GoToPreviousStep(ctx context.Context) {
	s.mutate(ctx, func(e *catalog.Engine) { e.GoToPreviousStep() })
}

func (s *Session) GoToFilterStep(ctx context.Context, stepID string) {
	s.mutate(ctx, func(e *catalog.Engine) { e.GoToFilterStep(stepID) })
}

func (s *Session) ApplyAdditionalFilter(ctx context.Context, key, value string) {
	s.mutate(ctx, func(e *catalog.Engine) { e.ApplyAdditionalFilter(key, value) })
}

func (s *Session) ClearAdditionalFilter(ctx context.Context, key string) {
	s.mutate(ctx, func(e *catalog.Engine) { e.ClearAdditionalFilter(key) })
}

func (s *Session) HandleSearchChange(ctx context.Context, query string) {
	s.mutate(ctx, func(e *catalog.Engine) { e.HandleSearchChange(query) })
}

// RecordViewed remembers the product the user opened from the grid.
func (s *Session) RecordViewed(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = s.now()
	s.lastViewed.Record(ctx, productID)
}

// View renders the session. Grid params in query are treated as a URL
// change made by the client.
func (s *Session) View(ctx context.Context, query url.Values) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = s.now()

	if persistence.HasGridParams(query) {
		q := s.loc.Query()
		persistence.MergeGrid(q, query)
		s.loc.Navigate(q)
		if state, changed := s.bridge.OnURLChange(); changed {
			s.grid = state
		}
	}

	// Until a load settles the product list is empty, so clamping would
	// throw away a requested page such as page=2 from a shared link.
	flow := s.engine.View()
	page, clamped := grid.Apply(flow.FilteredProducts, s.grid)
	settled := s.status == repository.StatusReady || s.status == repository.StatusEmpty
	if settled {
		s.grid = clamped
		s.bridge.OnStateChange(clamped)
	}

	v := View{
		SessionID: s.ID,
		EmpresaID: s.EmpresaID,
		Status:    s.status,
		Error:     s.loadErr,
		Flow:      flow,
		State:     s.engine.State(),
		Grid:      s.grid,
		Page:      page,
		Query:     s.loc.Query().Encode(),
	}
	if page.Items == nil {
		v.Page.Items = []product.Product{}
	}
	if !settled {
		return v
	}
	if id, ok := s.lastViewed.ScrollTarget(ctx); ok {
		v.ScrollTo = id
	}
	return v
}

// mutate applies one engine operation, resets the page when the filter
// combination changed and persists the new flow state.
func (s *Session) mutate(ctx context.Context, fn func(*catalog.Engine)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = s.now()

	fn(s.engine)

	st := s.engine.State()
	hash := persistence.FiltersHash(st.SelectedLine, st.SelectedValues, st.SearchQuery)
	if s.lastViewed.SetFilters(ctx, hash) {
		s.grid.CurrentPage = 1
	}
	s.persist(ctx)
}

func (s *Session) persist(ctx context.Context) {
	q := s.loc.Query()
	persistence.EncodeFlow(s.engine.State(), q)
	s.loc.Replace(q)
	s.states.Save(ctx, s.namespace(), s.engine.Snapshot(s.now()))
}

func (s *Session) applyLoad(products []product.Product, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status = repository.StatusError
		s.loadErr = err.Error()
		return
	}
	s.engine.SetProducts(products)
	s.status = repository.StatusOf(products, nil)
	s.loadErr = ""
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.touchedAt)
}

func isSuperseded(err error) bool {
	return errors.Is(err, repository.ErrSuperseded)
}

func logLoad(s *Session, products []product.Product, err error) {
	if err != nil {
		log.Printf("[Catalog] Load failed for session %s (empresa %s): %v", s.ID, s.EmpresaID, err)
		return
	}
	log.Printf("[Catalog] Loaded %d products for session %s (empresa %s)", len(products), s.ID, s.EmpresaID)
}

package session

import (
	"context"
	"errors"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/b2b-storefront/internal/backend"
	"github.com/example/b2b-storefront/internal/catalog"
	"github.com/example/b2b-storefront/internal/domain/product"
	"github.com/example/b2b-storefront/internal/grid"
	"github.com/example/b2b-storefront/internal/infrastructure/store"
	"github.com/example/b2b-storefront/internal/persistence"
	"github.com/example/b2b-storefront/internal/repository"
)

var ErrSessionNotFound = errors.New("catalog session not found")

// Loader fetches a company catalog on behalf of a scope.
type Loader interface {
	LoadCompany(ctx context.Context, scope, empresaID string) ([]product.Product, error)
}

// Manager creates and tracks catalog sessions.
type Manager struct {
	cfg         *catalog.Config
	loader      Loader
	kv          store.KVStore
	states      *persistence.StateStore
	loadTimeout time.Duration
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg *catalog.Config, loader Loader, kv store.KVStore, loadTimeout time.Duration) *Manager {
	return &Manager{
		cfg:         cfg,
		loader:      loader,
		kv:          kv,
		states:      persistence.NewStateStore(kv),
		loadTimeout: loadTimeout,
		now:         time.Now,
		sessions:    make(map[string]*Session),
	}
}

// Create opens a session for userID on empresaID. Flow state is restored
// from flow params in query when present, otherwise from the last saved
// state of the same user and company. The catalog loads in the background.
func (m *Manager) Create(ctx context.Context, userID, empresaID string, query url.Values) *Session {
	loc := persistence.NewMemoryLocation(query)
	bridge := persistence.NewBridge(loc, grid.DefaultState())

	s := &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		EmpresaID:  empresaID,
		token:      backend.TokenFrom(ctx),
		engine:     catalog.NewEngine(m.cfg, nil),
		loc:        loc,
		bridge:     bridge,
		lastViewed: persistence.NewLastViewed(m.kv),
		states:     m.states,
		status:     repository.StatusLoading,
		now:        m.now,
		touchedAt:  m.now(),
		loaded:     make(chan struct{}),
	}
	s.grid = bridge.Mount()

	switch {
	case persistence.HasFlowParams(query):
		s.engine.Restore(persistence.DecodeFlow(query))
	default:
		if snap, ok := m.states.Load(ctx, s.namespace()); ok {
			s.engine.Restore(snap)
		}
	}
	st := s.engine.State()
	s.lastViewed.SetFilters(ctx, persistence.FiltersHash(st.SelectedLine, st.SelectedValues, st.SearchQuery))
	s.persist(ctx)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	go m.load(s)
	return s
}

// Get returns the session if it exists and belongs to userID.
func (m *Manager) Get(id, userID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Reload fetches the session's catalog again, for example after an error.
// The backend token of ctx replaces the one captured at creation.
func (m *Manager) Reload(ctx context.Context, id, userID string) error {
	s, err := m.Get(id, userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.status = repository.StatusLoading
	if tok := backend.TokenFrom(ctx); tok != "" {
		s.token = tok
	}
	s.mu.Unlock()
	go m.load(s)
	return nil
}

func (m *Manager) Delete(id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions idle for longer than maxIdle. Their flow state stays
// saved and is restored by the next Create for the same user and company.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.idleSince(now) > maxIdle {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[Catalog] Swept %d idle sessions", removed)
	}
	return removed
}

// load runs detached from the creating request, so it carries the user's
// backend token instead of the request context.
func (m *Manager) load(s *Session) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	ctx, cancel := context.WithTimeout(backend.WithToken(context.Background(), token), m.loadTimeout)
	defer cancel()

	products, err := m.loader.LoadCompany(ctx, s.ID, s.EmpresaID)
	if isSuperseded(err) {
		return
	}
	logLoad(s, products, err)
	s.applyLoad(products, err)

	s.loadedOnce.Do(func() { close(s.loaded) })
}

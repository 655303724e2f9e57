package cart

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/example/b2b-storefront/internal/infrastructure/store"
)

const FallbackKeyPrefix = "cart:"

// Sink receives debounced cart snapshots.
type Sink interface {
	Sync(ctx context.Context, userID string, lines []Line) error
}

type pendingSync struct {
	timer *time.Timer
	lines []Line
	gen   uint64
}

// userSend serializes the sends of one user. lastGen is the newest
// snapshot sent, older ones are dropped.
type userSend struct {
	mu      sync.Mutex
	lastGen uint64
}

// Syncer collapses rapid cart edits per user into one trailing-edge sync.
// Every flush also writes the snapshot to the key-value store as a local
// fallback. Failures are logged, never returned.
type Syncer struct {
	sink    Sink
	kv      store.KVStore
	delay   time.Duration
	timeout time.Duration

	mu       sync.Mutex
	pending  map[string]*pendingSync
	users    map[string]*userSend
	gen      uint64
	inflight sync.WaitGroup
}

// NewSyncer builds a syncer. sink may be nil, in which case only the
// fallback snapshot is written.
func NewSyncer(sink Sink, kv store.KVStore, delay time.Duration) *Syncer {
	return &Syncer{
		sink:    sink,
		kv:      kv,
		delay:   delay,
		timeout: 5 * time.Second,
		pending: make(map[string]*pendingSync),
		users:   make(map[string]*userSend),
	}
}

// Schedule queues lines as the latest snapshot of userID and restarts the
// user's debounce timer.
func (s *Syncer) Schedule(userID string, lines []Line) {
	snapshot := make([]Line, len(lines))
	copy(snapshot, lines)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	gen := s.gen
	if p, ok := s.pending[userID]; ok {
		p.timer.Stop()
	}
	s.pending[userID] = &pendingSync{
		lines: snapshot,
		gen:   gen,
		timer: time.AfterFunc(s.delay, func() { s.fire(userID, gen) }),
	}
}

// Pending reports how many users have an unsent snapshot.
func (s *Syncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush sends every pending snapshot now and waits for timer sends already
// running. Used on shutdown.
func (s *Syncer) Flush(ctx context.Context) {
	s.mu.Lock()
	pending := s.pending
	s.pending = make(map[string]*pendingSync)
	s.mu.Unlock()

	for userID, p := range pending {
		p.timer.Stop()
		s.send(ctx, userID, p.gen, p.lines)
	}
	s.inflight.Wait()
}

// LoadFallback reads the last snapshot written for userID.
func (s *Syncer) LoadFallback(ctx context.Context, userID string) ([]Line, bool) {
	raw, ok, err := s.kv.Get(ctx, FallbackKeyPrefix+userID)
	if err != nil {
		log.Printf("[Cart] Failed to read fallback cart for %s: %v", userID, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var lines []Line
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		log.Printf("[Cart] Discarding corrupt fallback cart for %s: %v", userID, err)
		return nil, false
	}
	return lines, true
}

func (s *Syncer) fire(userID string, gen uint64) {
	s.mu.Lock()
	p, ok := s.pending[userID]
	if !ok || p.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, userID)
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.send(ctx, userID, p.gen, p.lines)
}

func (s *Syncer) userState(userID string) *userSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		u = &userSend{}
		s.users[userID] = u
	}
	return u
}

func (s *Syncer) send(ctx context.Context, userID string, gen uint64, lines []Line) {
	u := s.userState(userID)
	u.mu.Lock()
	defer u.mu.Unlock()
	if gen < u.lastGen {
		return
	}
	u.lastGen = gen

	if data, err := json.Marshal(lines); err != nil {
		log.Printf("[Cart] Failed to encode cart for %s: %v", userID, err)
	} else if err := s.kv.Set(ctx, FallbackKeyPrefix+userID, string(data)); err != nil {
		log.Printf("[Cart] Failed to save fallback cart for %s: %v", userID, err)
	}

	if s.sink == nil {
		return
	}
	if err := s.sink.Sync(ctx, userID, lines); err != nil {
		log.Printf("[Cart] Sync failed for %s, fallback snapshot kept: %v", userID, err)
		return
	}
	log.Printf("[Cart] Synced cart for %s (%d lines)", userID, len(lines))
}

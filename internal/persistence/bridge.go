package persistence

import (
	"net/url"
	"sync"

	"github.com/example/b2b-storefront/internal/grid"
)

// Origin tags who performed the last write to the shared URL.
type Origin int

const (
	OriginNone Origin = iota
	OriginSelf
	OriginExternal
)

func (o Origin) String() string {
	switch o {
	case OriginSelf:
		return "self"
	case OriginExternal:
		return "external"
	}
	return "none"
}

// Location is the URL the bridge mirrors grid state into.
type Location interface {
	Query() url.Values
	// Replace rewrites the query without adding a history entry.
	Replace(v url.Values)
}

// Bridge keeps a grid.State and a Location in sync. It is the single writer
// of the grid params: a state change write is skipped when that state was
// itself just read from the URL, and a URL change equal to the last synced
// query is recognised as self-originated and ignored.
type Bridge struct {
	loc      Location
	defaults grid.State

	state           grid.State
	lastSynced      string
	lastWriteOrigin Origin
}

func NewBridge(loc Location, defaults grid.State) *Bridge {
	return &Bridge{
		loc:      loc,
		defaults: defaults.Normalize(),
		state:    defaults.Normalize(),
	}
}

// Mount hydrates from the URL. A URL without grid params is seeded with the
// defaults, and a non-canonical one (limit below the floor, missing params)
// is rewritten, both through Replace.
func (b *Bridge) Mount() grid.State {
	q := b.loc.Query()
	if !HasGridParams(q) {
		b.state = b.defaults
		b.write(b.state)
		return b.state
	}
	b.hydrate(q)
	return b.state
}

// OnStateChange mirrors a local state change into the URL. It reports
// whether the URL was rewritten.
func (b *Bridge) OnStateChange(s grid.State) bool {
	s = s.Normalize()
	if b.lastWriteOrigin == OriginExternal && s == b.state {
		b.lastWriteOrigin = OriginNone
		return false
	}
	b.state = s
	return b.write(s)
}

// OnURLChange re-hydrates from the URL. It reports false when the URL
// matches the last synced query.
func (b *Bridge) OnURLChange() (grid.State, bool) {
	q := b.loc.Query()
	if gridQuery(q) == b.lastSynced {
		return b.state, false
	}
	b.hydrate(q)
	return b.state, true
}

func (b *Bridge) State() grid.State {
	return b.state
}

func (b *Bridge) LastWriteOrigin() Origin {
	return b.lastWriteOrigin
}

// hydrate reads q as an external write, then rewrites the URL only if q was
// not in canonical form.
func (b *Bridge) hydrate(q url.Values) {
	b.state = DecodeGrid(q, b.defaults)
	b.lastSynced = gridQuery(q)
	b.lastWriteOrigin = OriginExternal
	b.write(b.state)
}

func (b *Bridge) write(s grid.State) bool {
	q := b.loc.Query()
	EncodeGrid(s, q)
	canon := gridQuery(q)
	if canon == b.lastSynced {
		return false
	}
	b.lastSynced = canon
	b.lastWriteOrigin = OriginSelf
	b.loc.Replace(q)
	return true
}

// MemoryLocation is a Location held in memory. Navigate models an external
// URL change such as browser back or a pasted link.
type MemoryLocation struct {
	mu       sync.Mutex
	values   url.Values
	replaces int
}

func NewMemoryLocation(initial url.Values) *MemoryLocation {
	return &MemoryLocation{values: cloneValues(initial)}
}

func (l *MemoryLocation) Query() url.Values {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneValues(l.values)
}

func (l *MemoryLocation) Replace(v url.Values) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values = cloneValues(v)
	l.replaces++
}

func (l *MemoryLocation) Navigate(v url.Values) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values = cloneValues(v)
}

// Replaces counts Replace calls.
func (l *MemoryLocation) Replaces() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replaces
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}

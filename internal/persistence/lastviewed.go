package persistence

import (
	"context"
	"encoding/hex"
	"log"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/example/b2b-storefront/internal/infrastructure/store"
)

const LastProductKeyPrefix = "productGrid_lastProduct_"

// FiltersHash identifies a filter combination. Map order does not matter.
func FiltersHash(line string, values map[string]string, search string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(line)
	b.WriteByte(0)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(values[k])
		b.WriteByte(0)
	}
	b.WriteString(strings.TrimSpace(strings.ToLower(search)))

	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])[:16]
}

// LastViewed remembers the product last opened under the current filter
// combination so the grid can scroll back to it exactly once.
type LastViewed struct {
	kv      store.KVStore
	hash    string
	pending bool
}

func NewLastViewed(kv store.KVStore) *LastViewed {
	return &LastViewed{kv: kv}
}

func (l *LastViewed) Hash() string {
	return l.hash
}

// SetFilters switches to a new filter combination, dropping the entry of the
// previous one. It reports whether the combination changed. The first
// combination is armed so an entry stored by an earlier session is restored.
func (l *LastViewed) SetFilters(ctx context.Context, hash string) bool {
	if hash == l.hash {
		return false
	}
	first := l.hash == ""
	if !first {
		if err := l.kv.Delete(ctx, LastProductKeyPrefix+l.hash); err != nil {
			log.Printf("[Persistence] Failed to clear last viewed product: %v", err)
		}
	}
	l.hash = hash
	l.pending = first && hash != ""
	return true
}

// Record stores the product the user opened and arms the scroll target.
func (l *LastViewed) Record(ctx context.Context, productID string) {
	if l.hash == "" || productID == "" {
		return
	}
	if err := l.kv.Set(ctx, LastProductKeyPrefix+l.hash, productID); err != nil {
		log.Printf("[Persistence] Failed to record last viewed product: %v", err)
		return
	}
	l.pending = true
}

// ScrollTarget returns the recorded product once, then clears it.
func (l *LastViewed) ScrollTarget(ctx context.Context) (string, bool) {
	if !l.pending {
		return "", false
	}
	l.pending = false

	key := LastProductKeyPrefix + l.hash
	id, ok, err := l.kv.Get(ctx, key)
	if err != nil {
		log.Printf("[Persistence] Failed to read last viewed product: %v", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	if err := l.kv.Delete(ctx, key); err != nil {
		log.Printf("[Persistence] Failed to clear last viewed product: %v", err)
	}
	return id, true
}

package persistence

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/b2b-storefront/internal/catalog"
	"github.com/example/b2b-storefront/internal/infrastructure/store"
)

const CatalogStateKeyPrefix = "catalogState:"

// StateStore saves catalog snapshots in a KVStore. Storage failures are
// logged and reported as "nothing persisted"; they never reach the caller.
type StateStore struct {
	kv store.KVStore
}

func NewStateStore(kv store.KVStore) *StateStore {
	return &StateStore{kv: kv}
}

func (s *StateStore) Save(ctx context.Context, namespace string, snap catalog.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[Persistence] Failed to encode catalog state %s: %v", namespace, err)
		return
	}
	if err := s.kv.Set(ctx, CatalogStateKeyPrefix+namespace, string(data)); err != nil {
		log.Printf("[Persistence] Failed to save catalog state %s: %v", namespace, err)
	}
}

// Load returns the saved snapshot. A missing, unreadable or corrupt entry
// yields false.
func (s *StateStore) Load(ctx context.Context, namespace string) (catalog.Snapshot, bool) {
	raw, ok, err := s.kv.Get(ctx, CatalogStateKeyPrefix+namespace)
	if err != nil {
		log.Printf("[Persistence] Failed to load catalog state %s: %v", namespace, err)
		return catalog.Snapshot{}, false
	}
	if !ok {
		return catalog.Snapshot{}, false
	}
	var snap catalog.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		log.Printf("[Persistence] Discarding corrupt catalog state %s: %v", namespace, err)
		return catalog.Snapshot{}, false
	}
	if snap.SelectedValues == nil {
		snap.SelectedValues = make(map[string]string)
	}
	return snap, true
}

func (s *StateStore) Clear(ctx context.Context, namespace string) {
	if err := s.kv.Delete(ctx, CatalogStateKeyPrefix+namespace); err != nil {
		log.Printf("[Persistence] Failed to clear catalog state %s: %v", namespace, err)
	}
}

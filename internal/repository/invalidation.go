package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
)

// CatalogChanged is published upstream when a company's catalog changes.
// An empty EmpresaID invalidates every company.
type CatalogChanged struct {
	EmpresaID string `json:"empresaId"`
}

// HandleCatalogChanged decodes a CatalogChanged message and drops the
// matching cache entries. Its signature fits kafka.MessageHandler.
func (r *Repository) HandleCatalogChanged(ctx context.Context, key, value []byte) error {
	var event CatalogChanged
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to decode catalog change: %w", err)
	}
	if event.EmpresaID == "" {
		event.EmpresaID = string(key)
	}
	r.Invalidate(event.EmpresaID)
	if event.EmpresaID == "" {
		log.Printf("[Repository] Invalidated every cached catalog")
	} else {
		log.Printf("[Repository] Invalidated catalog %s", event.EmpresaID)
	}
	return nil
}

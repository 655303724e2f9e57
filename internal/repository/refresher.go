package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/b2b-storefront/internal/backend"
)

// Refresher re-fetches every cached company catalog on a cron schedule.
type Refresher struct {
	repo    *Repository
	cron    *cron.Cron
	timeout time.Duration
	token   string
}

// NewRefresher schedules RunOnce. token is a service token sent to the
// backend; when empty each company reuses the last token that loaded it.
func NewRefresher(repo *Repository, schedule string, timeout time.Duration, token string) (*Refresher, error) {
	r := &Refresher{repo: repo, cron: cron.New(), timeout: timeout, token: token}
	if _, err := r.cron.AddFunc(schedule, r.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Refresher) Start() {
	r.cron.Start()
	log.Printf("[Repository] Catalog refresher started")
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce refreshes every cached company. A failed company keeps its
// previous entry.
func (r *Refresher) RunOnce() {
	companies := r.repo.Companies()
	refreshed := 0
	for _, id := range companies {
		ctx, cancel := context.WithTimeout(r.context(), r.timeout)
		err := r.repo.Refresh(ctx, id)
		cancel()
		if err != nil {
			log.Printf("[Repository] Refresh failed for %s: %v", id, err)
			continue
		}
		refreshed++
	}
	if len(companies) > 0 {
		log.Printf("[Repository] Refreshed %d/%d catalogs", refreshed, len(companies))
	}
}

func (r *Refresher) context() context.Context {
	if r.token == "" {
		return context.Background()
	}
	return backend.WithToken(context.Background(), r.token)
}

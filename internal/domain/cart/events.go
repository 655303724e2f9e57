package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const EventCartSynced = "CartSynced"

// CartSynced carries the full cart of a user after a burst of edits.
type CartSynced struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	Lines     []Line    `json:"lines"`
	SyncedAt  time.Time `json:"synced_at"`
}

// Publisher is satisfied by the Kafka producer.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// EventSink publishes cart snapshots as CartSynced events keyed by user, so
// every snapshot of one user lands on the same partition in order.
type EventSink struct {
	pub Publisher
}

func NewEventSink(pub Publisher) *EventSink {
	return &EventSink{pub: pub}
}

func (s *EventSink) Sync(ctx context.Context, userID string, lines []Line) error {
	event := CartSynced{
		EventID:   uuid.NewString(),
		EventType: EventCartSynced,
		UserID:    userID,
		Lines:     lines,
		SyncedAt:  time.Now(),
	}
	return s.pub.Publish(ctx, userID, event)
}

// Package notify fans booking change events out to live clients, a message
// broker and a chat channel.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Event types emitted after a successful mutation.
const (
	ReservationCreated             = "reservation.created"
	ReservationCancelled           = "reservation.cancelled"
	ReservationOccurrenceCancelled = "reservation.occurrence_cancelled"
	ClassCreated                   = "class.created"
	ClassUpdated                   = "class.updated"
	ClassToggled                   = "class.toggled"
	ClassDeleted                   = "class.deleted"
)

// Event describes one change to a room's occupation.
type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	RoomID     string         `json:"room_id,omitempty"`
	RoomSlug   string         `json:"room_slug,omitempty"`
	ResourceID string         `json:"resource_id"`
	ActorID    string         `json:"actor_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher delivers events to one destination.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event Event) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Fanout publishes to every configured destination and joins their errors.
type Fanout struct {
	publishers []Publisher
	logger     *slog.Logger
}

// NewFanout builds a Fanout, skipping nil publishers.
func NewFanout(logger *slog.Logger, publishers ...Publisher) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fanout{logger: logger}
	for _, p := range publishers {
		if p != nil {
			f.publishers = append(f.publishers, p)
		}
	}
	return f
}

// Len reports how many destinations are attached.
func (f *Fanout) Len() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// Publish delivers event to every destination. A failing destination does not
// stop delivery to the others.
func (f *Fanout) Publish(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, event); err != nil {
			f.logger.WarnContext(ctx, "event delivery failed", "event_type", event.Type, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

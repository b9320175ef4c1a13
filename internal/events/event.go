// Package events publishes testimonial lifecycle events to in-process subscribers and Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TypeTestimonialCreated       = "testimonial.created"
	TypeTestimonialStatusChanged = "testimonial.status_changed"
	TypeTestimonialDeleted       = "testimonial.deleted"

	eventSource = "testimonial_svc"
)

// Event is the envelope every lifecycle notification travels in.
type Event struct {
	ID            string    `json:"event_id"`
	Type          string    `json:"event_type"`
	ProjectID     string    `json:"project_id"`
	TestimonialID string    `json:"testimonial_id"`
	Status        string    `json:"status,omitempty"`
	Source        string    `json:"source"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEvent stamps a fresh envelope.
func NewEvent(eventType string, projectID string, testimonialID string, status string) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		ProjectID:     projectID,
		TestimonialID: testimonialID,
		Status:        status,
		Source:        eventSource,
		OccurredAt:    time.Now().UTC(),
	}
}

func (event Event) Marshal() ([]byte, error) {
	return json.Marshal(event)
}

// Publisher delivers lifecycle events after the originating write committed.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error {
	return nil
}

// NoopPublisher discards every event.
func NoopPublisher() Publisher {
	return noopPublisher{}
}

// ResolvePublisher substitutes the no-op publisher for nil.
func ResolvePublisher(publisher Publisher) Publisher {
	if publisher == nil {
		return noopPublisher{}
	}
	return publisher
}

// MultiPublisher fans one event out to several publishers and reports the first failure.
type MultiPublisher []Publisher

func (publishers MultiPublisher) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, publisher := range publishers {
		if publisher == nil {
			continue
		}
		if err := publisher.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishBestEffort publishes and logs failures; the originating write is never undone.
func PublishBestEffort(ctx context.Context, publisher Publisher, logger *zap.Logger, event Event) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil && logger != nil {
		logger.Warn("publish_event_failed",
			zap.Error(err),
			zap.String("event_type", event.Type),
			zap.String("project_id", event.ProjectID),
			zap.String("testimonial_id", event.TestimonialID),
		)
	}
}

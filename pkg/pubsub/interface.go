package pubsub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event represents a message published to the event bus.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent creates a new event stamped with now.
func NewEvent(eventType, roomID string, payload interface{}, now time.Time) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RoomID:    roomID,
		Payload:   data,
		Timestamp: now.UTC(),
	}, nil
}

// Publisher publishes events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, *Event) error { return nil }

func (NopPublisher) Close() error { return nil }

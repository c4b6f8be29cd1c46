// Package events publishes room events to the configured bus.
package events

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-rooms/pkg/log"
	"github.com/weiawesome/wes-io-rooms/pkg/pubsub"
)

// Emitter builds room events and hands them to a publisher. Publishing is
// best effort: a failure is logged and never fails the caller's operation.
type Emitter struct {
	publisher pubsub.Publisher
	now       func() time.Time
}

// NewEmitter creates an emitter. A nil publisher drops every event.
func NewEmitter(publisher pubsub.Publisher, now func() time.Time) *Emitter {
	if publisher == nil {
		publisher = pubsub.NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &Emitter{publisher: publisher, now: now}
}

// Emit publishes an event of eventType on the room's channel.
func (e *Emitter) Emit(ctx context.Context, eventType, room string, payload interface{}) {
	l := log.Ctx(ctx)

	event, err := pubsub.NewEvent(eventType, room, payload, e.now())
	if err != nil {
		l.Error().Err(err).Str("event_type", eventType).Str(log.FieldRoom, room).Msg("failed to build room event")
		return
	}

	if err := e.publisher.Publish(ctx, pubsub.RoomEventsChannel(room), event); err != nil {
		l.Warn().Err(err).Str("event_type", eventType).Str(log.FieldRoom, room).Msg("failed to publish room event")
		return
	}
	l.Debug().Str("event_type", eventType).Str(log.FieldRoom, room).Str("event_id", event.ID).Msg("room event published")
}

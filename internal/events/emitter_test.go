package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-rooms/internal/events"
	"github.com/weiawesome/wes-io-rooms/pkg/pubsub"
)

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	events   []*pubsub.Event
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, event *pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.channels = append(p.channels, channel)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestEmitPublishesOnRoomChannel(t *testing.T) {
	pub := &recordingPublisher{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := events.NewEmitter(pub, func() time.Time { return now })

	e.Emit(context.Background(), pubsub.EventHostAssigned, "abc123", pubsub.HostAssignedPayload{Host: "U1"})

	require.Len(t, pub.events, 1)
	assert.Equal(t, "rooms:room:abc123:events", pub.channels[0])
	ev := pub.events[0]
	assert.Equal(t, pubsub.EventHostAssigned, ev.Type)
	assert.Equal(t, "abc123", ev.RoomID)
	assert.True(t, ev.Timestamp.Equal(now))
	assert.NotEmpty(t, ev.ID)

	var payload pubsub.HostAssignedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, "U1", payload.Host)
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bus down")}
	e := events.NewEmitter(pub, nil)

	assert.NotPanics(t, func() {
		e.Emit(context.Background(), pubsub.EventBan, "abc123", pubsub.ModerationPayload{Target: "U2", By: "U1"})
	})
	assert.Empty(t, pub.events)
}

func TestNilPublisherDrops(t *testing.T) {
	e := events.NewEmitter(nil, nil)
	assert.NotPanics(t, func() {
		e.Emit(context.Background(), pubsub.EventUnban, "abc123", pubsub.ModerationPayload{Target: "U2"})
	})
}

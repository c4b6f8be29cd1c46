package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelToTopicAndKey(t *testing.T) {
	topic, key, err := channelToTopicAndKey(RoomEventsChannel("abc123"))
	require.NoError(t, err)
	assert.Equal(t, TopicRoomEvents, topic)
	assert.Equal(t, "abc123", key)

	_, _, err = channelToTopicAndKey("rooms:abc123:events")
	assert.Error(t, err)
}

func TestNewPublisherNone(t *testing.T) {
	p, err := NewPublisher(Config{Driver: DriverNone})
	require.NoError(t, err)
	assert.NoError(t, p.Publish(context.Background(), RoomEventsChannel("r"), &Event{}))
	assert.NoError(t, p.Close())

	_, err = NewPublisher(Config{Driver: "nats"})
	assert.Error(t, err)
}

func TestRedisPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	sub := client.PSubscribe(ctx, "rooms:room:*:events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	bus := NewRedisPubSubFromClient(client)
	evt, err := NewEvent(EventBan, "abc123", ModerationPayload{Target: "U2", By: "U1"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, RoomEventsChannel("abc123"), evt))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, "rooms:room:abc123:events", msg.Channel)

		var got Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, EventBan, got.Type)
		assert.Equal(t, "abc123", got.RoomID)
		assert.Equal(t, evt.ID, got.ID)

		var p ModerationPayload
		require.NoError(t, json.Unmarshal(got.Payload, &p))
		assert.Equal(t, "U2", p.Target)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	// A wrapped client stays open.
	require.NoError(t, bus.Close())
	assert.NoError(t, client.Ping(ctx).Err())
}

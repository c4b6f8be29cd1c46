package pubsub

import (
	"fmt"
	"strings"
)

// Channel naming conventions.
const (
	// ChannelRoomEvents carries coordinator events for one room.
	ChannelRoomEvents = "rooms:room:%s:events"
)

// Event types published on a room channel.
const (
	EventHostAssigned      = "room.host_assigned"
	EventSessionReset      = "room.session_reset"
	EventVisibilityChanged = "room.visibility_changed"
	EventReactionSent      = "reaction.sent"
	EventBan               = "moderation.ban"
	EventUnban             = "moderation.unban"
)

// RoomEventsChannel returns the channel name for a room's events.
func RoomEventsChannel(room string) string {
	return fmt.Sprintf(ChannelRoomEvents, room)
}

// channelToTopicAndKey converts a Redis-style channel to a Kafka topic and message key.
//
//	"rooms:room:abc123:events" → topic: "rooms-events", key: "abc123"
func channelToTopicAndKey(channel string) (topic, key string, err error) {
	// Expected format: {prefix}:room:{room}:{suffix}
	parts := strings.Split(channel, ":")
	if len(parts) != 4 || parts[1] != "room" || parts[2] == "" {
		return "", "", fmt.Errorf("invalid channel format: %s", channel)
	}
	topic = parts[0] + "-" + strings.ReplaceAll(parts[3], "_", "-")
	return topic, parts[2], nil
}

// Event payloads.

// HostAssignedPayload is sent when a room receives its host.
type HostAssignedPayload struct {
	Host string `json:"host"`
}

// SessionResetPayload is sent when a fresh host session clears reactions.
type SessionResetPayload struct {
	Host string `json:"host"`
}

// VisibilityChangedPayload is sent when the host toggles listing visibility.
type VisibilityChangedPayload struct {
	IsPublic bool `json:"is_public"`
}

// ReactionSentPayload carries the per-kind totals after a reaction.
type ReactionSentPayload struct {
	Identity string           `json:"identity"`
	Kind     string           `json:"kind"`
	Summary  map[string]int64 `json:"summary"`
}

// ModerationPayload is sent on ban and unban. Consumers use it to deliver
// the soft-kick signal on the media data channel.
type ModerationPayload struct {
	Target string `json:"target"`
	By     string `json:"by"`
}

package domain

import "time"

// Presence records that an identity was recently seen in a room.
type Presence struct {
	RoomName    string    `json:"room"`
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
}

// HeartbeatRequest refreshes the caller's presence.
type HeartbeatRequest struct {
	DisplayName string `json:"display_name"`
}

// ViewerCountRequest selects the look-back window in seconds.
type ViewerCountRequest struct {
	WithinSec  int `form:"within_sec"`
	IntervalMs int `form:"interval_ms"`
}

// ViewerCount is the polling representation of a count.
type ViewerCount struct {
	Room      string `json:"room"`
	Viewers   int    `json:"viewers"`
	WindowSec int    `json:"window_sec"`
}

// ReadyEvent is the first event of a live count stream.
type ReadyEvent struct {
	Ready bool `json:"ready"`
}

// CountEvent carries the current viewer count.
type CountEvent struct {
	Viewers int `json:"viewers"`
}

package domain

import (
	"time"
)

// Role is the effective capability granted to a participant.
type Role string

const (
	RoleHost   Role = "host"
	RoleViewer Role = "viewer"
)

// Room is a live-audio room. A room has at most one host for its lifetime.
type Room struct {
	Name         string    `json:"name"`
	DisplayTitle string    `json:"display_title"`
	HostIdentity string    `json:"host_identity,omitempty"`
	IsPublic     bool      `json:"is_public"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PlaceholderRoom describes a room that has not been persisted yet.
func PlaceholderRoom(name string) *Room {
	return &Room{Name: name, IsPublic: true}
}

// HasHost reports whether a host has been assigned.
func (r *Room) HasHost() bool {
	return r != nil && r.HostIdentity != ""
}

// IsHost reports whether identity is the room's host.
func (r *Room) IsHost(identity string) bool {
	return r.HasHost() && identity != "" && r.HostIdentity == identity
}

// TokenRequest asks for a capability token. Publish defaults to true.
type TokenRequest struct {
	Room    string `json:"room" form:"room" binding:"required"`
	Publish *bool  `json:"publish" form:"publish"`
}

// WantsPublish reports whether the caller requested the host role.
func (r *TokenRequest) WantsPublish() bool {
	return r.Publish == nil || *r.Publish
}

// TokenResult is the outcome of a token request.
type TokenResult struct {
	Token        string    `json:"token"`
	Room         string    `json:"room"`
	Role         Role      `json:"role"`
	CanPublish   bool      `json:"can_publish"`
	FreshSession bool      `json:"fresh_session"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RoomInfo describes a room from the caller's point of view.
type RoomInfo struct {
	Name                 string `json:"name"`
	Exists               bool   `json:"exists"`
	HasHost              bool   `json:"has_host"`
	HostIdentity         string `json:"host_identity,omitempty"`
	IsHost               bool   `json:"is_host"`
	IsPublic             bool   `json:"is_public"`
	DisplayTitle         string `json:"display_title"`
	HeartbeatIntervalSec int    `json:"heartbeat_interval_sec"`
}

// Listing visibility filters.
const (
	VisibilityPublic = "public"
	VisibilityAll    = "all"
)

// ListRoomsRequest filters the room listing.
type ListRoomsRequest struct {
	Visibility string `form:"visibility"`
	OnlyLive   bool   `form:"only_live"`
	WithinSec  int    `form:"within_sec"`
}

// RoomListing is one entry of the room listing.
type RoomListing struct {
	Name         string `json:"name"`
	DisplayTitle string `json:"display_title"`
	IsPublic     bool   `json:"is_public"`
	HostIdentity string `json:"host_identity,omitempty"`
	HostOnline   bool   `json:"host_online"`
	ViewerCount  int    `json:"viewer_count"`
}

// ListRoomsResponse is the room listing.
type ListRoomsResponse struct {
	Rooms     []RoomListing `json:"rooms"`
	WindowSec int           `json:"window_sec"`
}

// CreateRoomRequest creates a room with a generated name.
type CreateRoomRequest struct {
	DisplayTitle string `json:"display_title"`
	IsPublic     *bool  `json:"is_public"`
}

// SetVisibilityRequest toggles listing visibility.
type SetVisibilityRequest struct {
	IsPublic *bool `json:"is_public" binding:"required"`
}

// MonitorSnapshot summarises live activity across public rooms.
type MonitorSnapshot struct {
	Rooms         []RoomListing `json:"rooms"`
	RoomCount     int           `json:"room_count"`
	TotalViewers  int           `json:"total_viewers"`
	ActiveStreams int64         `json:"active_streams"`
	WindowSec     int           `json:"window_sec"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

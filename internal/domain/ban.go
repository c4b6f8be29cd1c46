package domain

import "time"

// Ban blocks an identity from obtaining new tokens for a room.
type Ban struct {
	RoomName  string    `json:"room"`
	Identity  string    `json:"identity"`
	BannedBy  string    `json:"banned_by"`
	CreatedAt time.Time `json:"created_at"`
}

// BanRequest names the identity to ban.
type BanRequest struct {
	Identity string `json:"identity" binding:"required"`
}

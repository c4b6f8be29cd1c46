package domain

import (
	"time"
)

// RoomModel is the GORM model for rooms table.
// HostIdentity is NULL until the first publisher claims the room.
type RoomModel struct {
	Name         string    `gorm:"type:varchar(128);primaryKey"`
	DisplayTitle string    `gorm:"type:varchar(128);not null;default:''"`
	HostIdentity *string   `gorm:"type:varchar(191);index"`
	IsPublic     bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// ToDomain converts RoomModel to domain Room.
func (m *RoomModel) ToDomain() *Room {
	r := &Room{
		Name:         m.Name,
		DisplayTitle: m.DisplayTitle,
		IsPublic:     m.IsPublic,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if m.HostIdentity != nil {
		r.HostIdentity = *m.HostIdentity
	}
	return r
}

// RoomToModel converts domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	m := &RoomModel{
		Name:         r.Name,
		DisplayTitle: r.DisplayTitle,
		IsPublic:     r.IsPublic,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.HostIdentity != "" {
		host := r.HostIdentity
		m.HostIdentity = &host
	}
	return m
}

// PresenceModel is the GORM model for presence table.
type PresenceModel struct {
	RoomName    string    `gorm:"type:varchar(128);primaryKey"`
	Identity    string    `gorm:"type:varchar(191);primaryKey"`
	DisplayName string    `gorm:"type:varchar(64);not null;default:''"`
	LastSeen    time.Time `gorm:"index;not null"`
}

// TableName specifies the table name for PresenceModel.
func (PresenceModel) TableName() string {
	return "presence"
}

// ToDomain converts PresenceModel to domain Presence.
func (m *PresenceModel) ToDomain() *Presence {
	return &Presence{
		RoomName:    m.RoomName,
		Identity:    m.Identity,
		DisplayName: m.DisplayName,
		LastSeen:    m.LastSeen,
	}
}

// ReactionEventModel is one row of the reaction ledger.
type ReactionEventModel struct {
	ID        string    `gorm:"type:char(26);primaryKey"`
	RoomName  string    `gorm:"type:varchar(128);index;not null"`
	Identity  string    `gorm:"type:varchar(191);not null"`
	Kind      string    `gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for ReactionEventModel.
func (ReactionEventModel) TableName() string {
	return "reaction_events"
}

// ReactionAggregateModel holds the running count per (room, kind).
type ReactionAggregateModel struct {
	RoomName string `gorm:"type:varchar(128);primaryKey"`
	Kind     string `gorm:"type:varchar(16);primaryKey"`
	Count    int64  `gorm:"not null;default:0"`
}

// TableName specifies the table name for ReactionAggregateModel.
func (ReactionAggregateModel) TableName() string {
	return "reaction_aggregates"
}

// BanModel is the GORM model for bans table.
type BanModel struct {
	RoomName  string    `gorm:"type:varchar(128);primaryKey"`
	Identity  string    `gorm:"type:varchar(191);primaryKey"`
	BannedBy  string    `gorm:"type:varchar(191);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for BanModel.
func (BanModel) TableName() string {
	return "bans"
}

// ToDomain converts BanModel to domain Ban.
func (m *BanModel) ToDomain() *Ban {
	return &Ban{
		RoomName:  m.RoomName,
		Identity:  m.Identity,
		BannedBy:  m.BannedBy,
		CreatedAt: m.CreatedAt,
	}
}

// Models lists every table for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&RoomModel{},
		&PresenceModel{},
		&ReactionEventModel{},
		&ReactionAggregateModel{},
		&BanModel{},
	}
}

package models

import (
	"time"
)

// Membership roles
const (
	TeamRoleCaptain = "captain"
	TeamRolePlayer  = "player"
)

// Team is a named roster owned by its captain. JoinCode is the invite secret
// handed out by the captain; it is unique across all teams.
type Team struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	Name       string `gorm:"not null;index" json:"name"`
	Tag        string `gorm:"type:varchar(8)" json:"tag,omitempty"`
	CaptainID  string `gorm:"type:uuid;not null;index" json:"captain_id"`
	MaxPlayers int    `gorm:"default:4" json:"max_players"`
	JoinCode   string `gorm:"uniqueIndex;type:varchar(12);not null" json:"join_code,omitempty"`
	LogoURL    string `json:"logo_url,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Members []TeamMembership `json:"members,omitempty" gorm:"foreignKey:TeamID"`

	// Calculated (not stored)
	MemberCount int64 `json:"member_count,omitempty" gorm:"-"`
}

// TeamMembership links a user to a team. Invariants: a user holds at most one
// membership per team; exactly one membership per team has the captain role.
type TeamMembership struct {
	ID       string    `gorm:"primaryKey;type:uuid" json:"id"`
	TeamID   string    `gorm:"type:uuid;not null;index:idx_team_user,unique" json:"team_id"`
	UserID   string    `gorm:"type:uuid;not null;index:idx_team_user,unique" json:"user_id"`
	Role     string    `gorm:"type:varchar(16);default:'player'" json:"role"`
	JoinedAt time.Time `json:"joined_at" gorm:"autoCreateTime"`
}

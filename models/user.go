package models

import (
	"time"

	"gorm.io/gorm"
)

// KYC verification states (application-level validated strings)
const (
	KYCStatusPending  = "pending"
	KYCStatusVerified = "verified"
	KYCStatusRejected = "rejected"
)

// User is the local record for a gateway identity. The wallet balance is never
// stored here — it is always the fold of the user's wallet_transactions.
type User struct {
	ID        string  `gorm:"primaryKey;type:uuid" json:"id"`
	Username  string  `gorm:"index;not null" json:"username"`
	Email     string  `json:"email,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`

	KYCStatus string `gorm:"type:varchar(16);default:'pending'" json:"kyc_status"`
	IsAdmin   bool   `gorm:"default:false" json:"is_admin"`
	IsBanned  bool   `gorm:"default:false" json:"is_banned"`

	BanReason string     `json:"ban_reason,omitempty"`
	BannedAt  *time.Time `json:"banned_at,omitempty"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Actor is the authenticated identity attached by the gateway middleware.
// The core trusts it and performs no credential checks beyond the admin flag.
type Actor struct {
	UserID  string
	IsAdmin bool
}

func ValidKYCStatus(s string) bool {
	switch s {
	case KYCStatusPending, KYCStatusVerified, KYCStatusRejected:
		return true
	}
	return false
}

// RemoteProfile mirrors the identity provider's public profile payload.
// Used by the sync worker to upsert local users.
type RemoteProfile struct {
	ExternalID string     `json:"external_id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	AvatarURL  *string    `json:"avatar_url"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at"`
}

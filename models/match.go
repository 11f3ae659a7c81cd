package models

import (
	"time"
)

// Match states
const (
	MatchStatusScheduled = "scheduled"
	MatchStatusLive      = "live"
	MatchStatusCompleted = "completed"
)

// Report verification states
const (
	ReportStatusPending  = "pending"
	ReportStatusApproved = "approved"
	ReportStatusRejected = "rejected"
)

// Match is a single round of play inside a tournament. Winner fields are
// denormalized for display; WinnerID points at a user or a team.
type Match struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID string `gorm:"type:uuid;not null;index" json:"tournament_id"`
	Sequence     int    `gorm:"not null" json:"sequence"`
	Status       string `gorm:"type:varchar(16);default:'scheduled'" json:"status"`

	WinnerID   *string `gorm:"type:uuid" json:"winner_id,omitempty"`
	WinnerName string  `json:"winner_name,omitempty"`

	// Results is an optional JSON payload set when the match completes,
	// e.g. {"room_code":"FF-1234","map":"Bermuda"}
	Results string `gorm:"type:jsonb" json:"results,omitempty"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// MatchReport is a participant-submitted outcome claim. It affects nothing
// until an admin verifies it; approval may trigger a prize payout.
type MatchReport struct {
	ID            string `gorm:"primaryKey;type:uuid" json:"id"`
	MatchID       string `gorm:"type:uuid;not null;index:idx_match_participant,unique" json:"match_id"`
	ParticipantID string `gorm:"type:uuid;not null;index:idx_match_participant,unique" json:"participant_id"`
	ReporterID    string `gorm:"type:uuid;not null;index" json:"reporter_id"`

	Kills     int `json:"kills"`
	Placement int `json:"placement"`
	Points    int `json:"points"`

	EvidenceURL string `json:"evidence_url,omitempty"`

	VerificationStatus string     `gorm:"type:varchar(16);default:'pending';index" json:"verification_status"`
	ReviewedByID       *string    `gorm:"type:uuid" json:"reviewed_by_id,omitempty"`
	ReviewNotes        string     `json:"review_notes,omitempty"`
	ReviewedAt         *time.Time `json:"reviewed_at,omitempty"`

	SubmittedAt time.Time `json:"submitted_at" gorm:"autoCreateTime"`
}

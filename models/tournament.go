package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Tournament lifecycle states
const (
	TournamentStatusUpcoming  = "upcoming"
	TournamentStatusLive      = "live"
	TournamentStatusCompleted = "completed"
	TournamentStatusCancelled = "cancelled"
)

// Participant payment states
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Tournament is a capacity-gated, fee-gated competition.
// CurrentParticipants is maintained only by the registration/settlement
// transactions and always equals the count of participants with payment
// status 'paid'.
type Tournament struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"not null" json:"name"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Game        string `json:"game,omitempty"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Rules       string `gorm:"type:text" json:"rules,omitempty"`
	BannerURL   string `json:"banner_url,omitempty"`

	EntryFee  decimal.Decimal `gorm:"type:numeric(18,2)" json:"entry_fee"`
	PrizePool decimal.Decimal `gorm:"type:numeric(18,2)" json:"prize_pool"`

	MaxParticipants     int `gorm:"not null" json:"max_participants"`
	CurrentParticipants int `gorm:"default:0" json:"current_participants"`

	// TeamSize 1 = solo; >1 = team tournament, registered by team captains
	TeamSize int `gorm:"default:1" json:"team_size"`

	StartTime            time.Time  `gorm:"not null" json:"start_time"`
	RegistrationDeadline time.Time  `gorm:"not null" json:"registration_deadline"`
	EndTime              *time.Time `json:"end_time,omitempty"`

	Status string `gorm:"type:varchar(16);default:'upcoming';index" json:"status"`

	// PrizeDistribution is an ordered JSON array of payout shares,
	// e.g. [{"placement":1,"share":"0.5"},{"placement":2,"share":"0.3"}]
	PrizeDistribution string `gorm:"type:jsonb" json:"prize_distribution,omitempty"`

	CreatedByID string `gorm:"type:uuid" json:"created_by_id"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Participants []TournamentParticipant `json:"participants,omitempty" gorm:"foreignKey:TournamentID"`

	// Calculated (not stored)
	AvailableSlots int `json:"available_slots,omitempty" gorm:"-"`
}

// PrizeSlot maps a final placement to its share of the prize pool.
type PrizeSlot struct {
	Placement int             `json:"placement"`
	Share     decimal.Decimal `json:"share"`
}

// DecodePrizeDistribution parses the stored JSON distribution. An empty
// column means no automatic payouts.
func (t *Tournament) DecodePrizeDistribution() ([]PrizeSlot, error) {
	if t.PrizeDistribution == "" {
		return nil, nil
	}
	var slots []PrizeSlot
	if err := json.Unmarshal([]byte(t.PrizeDistribution), &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// PrizeForPlacement returns the payout for a placement, or zero when the
// distribution assigns it nothing.
func (t *Tournament) PrizeForPlacement(placement int) (decimal.Decimal, error) {
	slots, err := t.DecodePrizeDistribution()
	if err != nil {
		return decimal.Zero, err
	}
	for _, s := range slots {
		if s.Placement == placement {
			return t.PrizePool.Mul(s.Share).Round(2), nil
		}
	}
	return decimal.Zero, nil
}

// TournamentParticipant links a tournament to either a user or a team
// (exactly one of UserID/TeamID is set) together with the payment state of
// its entry fee.
type TournamentParticipant struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"id"`
	TournamentID string  `gorm:"type:uuid;not null;index" json:"tournament_id"`
	UserID       *string `gorm:"type:uuid;index" json:"user_id,omitempty"`
	TeamID       *string `gorm:"type:uuid;index" json:"team_id,omitempty"`

	PaymentStatus string `gorm:"type:varchar(16);default:'pending';index" json:"payment_status"`

	// EntryTransactionID links the pending entry_fee debit created at
	// registration; empty for free tournaments.
	EntryTransactionID *string `gorm:"type:uuid;index" json:"entry_transaction_id,omitempty"`

	RegisteredAt time.Time  `json:"registered_at" gorm:"autoCreateTime"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
}

func ValidTournamentStatus(s string) bool {
	switch s {
	case TournamentStatusUpcoming, TournamentStatusLive, TournamentStatusCompleted, TournamentStatusCancelled:
		return true
	}
	return false
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TxTypeDeposit         = "deposit"
	TxTypeEntryFee        = "entry_fee"
	TxTypePrize           = "prize"
	TxTypeRefund          = "refund"
	TxTypeAdminAdjustment = "admin_adjustment"
)

// Transaction states
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// WalletTransaction is one row of the append-only ledger. Amounts are signed:
// credits positive, debits negative. Rows are never mutated except for the
// pending → completed/failed settlement flip; corrections are new rows
// (refunds) referencing the original via ReversesID.
type WalletTransaction struct {
	ID     string          `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string          `gorm:"type:uuid;not null;index" json:"user_id"`
	Amount decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Type   string          `gorm:"type:varchar(24);not null;index" json:"type"`
	Status string          `gorm:"type:varchar(16);default:'pending';index" json:"status"`

	TournamentID  *string `gorm:"type:uuid;index" json:"tournament_id,omitempty"`
	ParticipantID *string `gorm:"type:uuid;index" json:"participant_id,omitempty"`

	// PrizeReportID is set on prize credits. The unique index is the backstop
	// that makes payouts idempotent per approved report.
	PrizeReportID *string `gorm:"type:uuid;uniqueIndex" json:"prize_report_id,omitempty"`

	// ReversesID links a refund to the transaction it reverses.
	ReversesID *string `gorm:"type:uuid;uniqueIndex" json:"reverses_id,omitempty"`

	// AdminID and Reason are required on admin adjustments and refunds.
	AdminID *string `gorm:"type:uuid;index" json:"admin_id,omitempty"`
	Reason  string  `json:"reason,omitempty"`

	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

func ValidTxType(t string) bool {
	switch t {
	case TxTypeDeposit, TxTypeEntryFee, TxTypePrize, TxTypeRefund, TxTypeAdminAdjustment:
		return true
	}
	return false
}

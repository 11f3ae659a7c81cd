package services

import (
	"errors"
	"log"
	"time"

	"firefight-arena/events"
	"firefight-arena/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletService struct {
	DB  *gorm.DB
	Hub *events.Hub
}

func NewWalletService(db *gorm.DB, hub *events.Hub) *WalletService {
	return &WalletService{DB: db, Hub: hub}
}

// lockForUpdate adds a row lock on engines that need one. SQLite serializes
// writers on its own and rejects FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// TxMeta carries the optional linkage fields of a ledger row.
type TxMeta struct {
	TournamentID  *string
	ParticipantID *string
	PrizeReportID *string
	AdminID       *string
	Reason        string
}

func (m TxMeta) apply(txn *models.WalletTransaction) {
	txn.TournamentID = m.TournamentID
	txn.ParticipantID = m.ParticipantID
	txn.PrizeReportID = m.PrizeReportID
	txn.AdminID = m.AdminID
	txn.Reason = m.Reason
}

// SettledBalance folds the user's completed transactions. The ledger is the
// source of truth; no balance column exists anywhere.
func (s *WalletService) SettledBalance(userID string) (decimal.Decimal, error) {
	return s.settledBalance(s.DB, userID)
}

func (s *WalletService) settledBalance(db *gorm.DB, userID string) (decimal.Decimal, error) {
	var txns []models.WalletTransaction
	if err := db.Select("amount").
		Where("user_id = ? AND status = ?", userID, models.TxStatusCompleted).
		Find(&txns).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, t := range txns {
		sum = sum.Add(t.Amount)
	}
	return sum, nil
}

// AvailableBalance is the settled balance minus funds reserved by pending
// debits. Pending credits (unconfirmed deposits) never count.
func (s *WalletService) AvailableBalance(userID string) (decimal.Decimal, error) {
	return s.availableBalance(s.DB, userID)
}

func (s *WalletService) availableBalance(db *gorm.DB, userID string) (decimal.Decimal, error) {
	settled, err := s.settledBalance(db, userID)
	if err != nil {
		return decimal.Zero, err
	}
	var pending []models.WalletTransaction
	if err := db.Select("amount").
		Where("user_id = ? AND status = ? AND amount < 0", userID, models.TxStatusPending).
		Find(&pending).Error; err != nil {
		return decimal.Zero, err
	}
	for _, t := range pending {
		settled = settled.Add(t.Amount)
	}
	return settled, nil
}

// Credit appends a completed positive transaction. db may be an open
// transaction handle so credits join wider atomic scopes.
func (s *WalletService) Credit(db *gorm.DB, userID string, amount decimal.Decimal, txType string, meta TxMeta) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, Validationf("credit amount must be positive")
	}
	if !models.ValidTxType(txType) {
		return nil, Validationf("unknown transaction type %q", txType)
	}
	now := time.Now()
	txn := &models.WalletTransaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Type:      txType,
		Status:    models.TxStatusCompleted,
		SettledAt: &now,
	}
	meta.apply(txn)
	if err := db.Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// Debit appends a pending negative transaction reserving amount against the
// available balance. Settlement (ConfirmPayment/FailPayment) flips it.
// Fails with ErrInsufficientFunds before writing anything.
func (s *WalletService) Debit(db *gorm.DB, userID string, amount decimal.Decimal, txType string, meta TxMeta) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, Validationf("debit amount must be positive")
	}
	if !models.ValidTxType(txType) {
		return nil, Validationf("unknown transaction type %q", txType)
	}
	var user models.User
	if err := lockForUpdate(db).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("user %s not found", userID)
		}
		return nil, err
	}
	available, err := s.availableBalance(db, userID)
	if err != nil {
		return nil, err
	}
	if available.LessThan(amount) {
		return nil, ErrInsufficientFunds
	}
	txn := &models.WalletTransaction{
		ID:     uuid.NewString(),
		UserID: userID,
		Amount: amount.Neg(),
		Type:   txType,
		Status: models.TxStatusPending,
	}
	meta.apply(txn)
	if err := db.Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// AdminAdjust appends a signed, completed adjustment. Admin-only, requires a
// reason, and may not drive the settled balance negative.
func (s *WalletService) AdminAdjust(actor models.Actor, userID string, amount decimal.Decimal, reason string) (*models.WalletTransaction, error) {
	if !actor.IsAdmin {
		return nil, ErrUnauthorized
	}
	if reason == "" {
		return nil, Validationf("adjustment reason is required")
	}
	if amount.IsZero() {
		return nil, Validationf("adjustment amount must be non-zero")
	}
	var txn *models.WalletTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := lockForUpdate(tx).First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("user %s not found", userID)
			}
			return err
		}
		if amount.IsNegative() {
			available, err := s.availableBalance(tx, userID)
			if err != nil {
				return err
			}
			if available.LessThan(amount.Neg()) {
				return ErrInsufficientFunds
			}
		}
		now := time.Now()
		txn = &models.WalletTransaction{
			ID:        uuid.NewString(),
			UserID:    userID,
			Amount:    amount,
			Type:      models.TxTypeAdminAdjustment,
			Status:    models.TxStatusCompleted,
			AdminID:   &actor.UserID,
			Reason:    reason,
			SettledAt: &now,
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[wallet] admin %s adjusted user %s by %s: %s", actor.UserID, userID, amount.StringFixed(2), reason)
	return txn, nil
}

// Refund reverses a completed transaction by appending an equal-and-opposite
// completed row referencing it. The original is never mutated or deleted.
func (s *WalletService) Refund(actor models.Actor, transactionID, reason string) (*models.WalletTransaction, error) {
	if !actor.IsAdmin {
		return nil, ErrUnauthorized
	}
	var refund *models.WalletTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		refund, err = s.refundInTx(tx, transactionID, &actor.UserID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[wallet] admin %s refunded transaction %s: %s", actor.UserID, transactionID, reason)
	return refund, nil
}

// refundInTx is the shared reversal path, also used by participant
// withdrawal. Must run inside an open transaction.
func (s *WalletService) refundInTx(tx *gorm.DB, transactionID string, adminID *string, reason string) (*models.WalletTransaction, error) {
	var original models.WalletTransaction
	if err := lockForUpdate(tx).First(&original, "id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("transaction %s not found", transactionID)
		}
		return nil, err
	}
	if original.Status != models.TxStatusCompleted {
		return nil, Validationf("only completed transactions can be refunded")
	}
	var count int64
	if err := tx.Model(&models.WalletTransaction{}).
		Where("reverses_id = ?", original.ID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, Validationf("transaction %s was already refunded", original.ID)
	}
	if original.Amount.IsPositive() {
		// Refunding a credit debits the wallet; it must not overdraw.
		available, err := s.availableBalance(tx, original.UserID)
		if err != nil {
			return nil, err
		}
		if available.LessThan(original.Amount) {
			return nil, ErrInsufficientFunds
		}
	}
	now := time.Now()
	refund := &models.WalletTransaction{
		ID:            uuid.NewString(),
		UserID:        original.UserID,
		Amount:        original.Amount.Neg(),
		Type:          models.TxTypeRefund,
		Status:        models.TxStatusCompleted,
		TournamentID:  original.TournamentID,
		ParticipantID: original.ParticipantID,
		ReversesID:    &original.ID,
		AdminID:       adminID,
		Reason:        reason,
		SettledAt:     &now,
	}
	if err := tx.Create(refund).Error; err != nil {
		return nil, err
	}
	return refund, nil
}

// RequestDeposit appends a pending positive deposit. The payment processor
// callback settles it; until then it counts toward nothing.
func (s *WalletService) RequestDeposit(actor models.Actor, amount decimal.Decimal) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, Validationf("deposit amount must be positive")
	}
	txn := &models.WalletTransaction{
		ID:     uuid.NewString(),
		UserID: actor.UserID,
		Amount: amount,
		Type:   models.TxTypeDeposit,
		Status: models.TxStatusPending,
	}
	if err := s.DB.Create(txn).Error; err != nil {
		return nil, err
	}
	return txn, nil
}

// ConfirmPayment is the settlement point reachable from the payment
// processor callback. It flips the transaction to completed and, for entry
// fees, marks the participant paid and claims its capacity slot in the same
// transaction.
func (s *WalletService) ConfirmPayment(transactionID string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&txn, "id = ?", transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("transaction %s not found", transactionID)
			}
			return err
		}
		if txn.Status != models.TxStatusPending {
			return Validationf("transaction %s is not pending", transactionID)
		}
		now := time.Now()
		if err := tx.Model(&models.WalletTransaction{}).
			Where("id = ? AND status = ?", txn.ID, models.TxStatusPending).
			Updates(map[string]interface{}{
				"status":     models.TxStatusCompleted,
				"settled_at": now,
			}).Error; err != nil {
			return err
		}
		txn.Status = models.TxStatusCompleted
		txn.SettledAt = &now
		if txn.Type == models.TxTypeEntryFee && txn.ParticipantID != nil {
			if err := settleParticipantPaid(tx, *txn.ParticipantID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Hub.Publish(events.PaymentReceived, fiber.Map{
		"transaction_id": txn.ID,
		"user_id":        txn.UserID,
		"type":           txn.Type,
		"amount":         txn.Amount,
	})
	return &txn, nil
}

// FailPayment marks a pending transaction failed. A pending debit never
// settled, so failing it releases the reservation with nothing to reverse;
// the linked participant is failed alongside it.
func (s *WalletService) FailPayment(transactionID string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&txn, "id = ?", transactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("transaction %s not found", transactionID)
			}
			return err
		}
		if txn.Status != models.TxStatusPending {
			return Validationf("transaction %s is not pending", transactionID)
		}
		if err := tx.Model(&models.WalletTransaction{}).
			Where("id = ? AND status = ?", txn.ID, models.TxStatusPending).
			Update("status", models.TxStatusFailed).Error; err != nil {
			return err
		}
		txn.Status = models.TxStatusFailed
		if txn.Type == models.TxTypeEntryFee && txn.ParticipantID != nil {
			if err := tx.Model(&models.TournamentParticipant{}).
				Where("id = ? AND payment_status = ?", *txn.ParticipantID, models.PaymentStatusPending).
				Update("payment_status", models.PaymentStatusFailed).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// settleParticipantPaid flips a pending participant to paid and claims its
// capacity slot with a guarded conditional increment. A lost guard means a
// concurrent settlement already filled the tournament.
func settleParticipantPaid(tx *gorm.DB, participantID string, now time.Time) error {
	var p models.TournamentParticipant
	if err := lockForUpdate(tx).First(&p, "id = ?", participantID).Error; err != nil {
		return err
	}
	if p.PaymentStatus != models.PaymentStatusPending {
		return Validationf("participant %s is not pending", participantID)
	}
	res := tx.Model(&models.Tournament{}).
		Where("id = ? AND current_participants < max_participants", p.TournamentID).
		Update("current_participants", gorm.Expr("current_participants + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCapacityExceeded
	}
	return tx.Model(&models.TournamentParticipant{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"payment_status": models.PaymentStatusPaid,
			"paid_at":        now,
		}).Error
}

// --- Fiber handlers ---

// GetWallet returns settled and available balances for the caller.
func (s *WalletService) GetWallet(c *fiber.Ctx) error {
	actor := actorFromCtx(c)
	settled, err := s.SettledBalance(actor.UserID)
	if err != nil {
		return respondError(c, err)
	}
	available, err := s.AvailableBalance(actor.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id":           actor.UserID,
		"settled_balance":   settled,
		"available_balance": available,
	})
}

// GetTransactions lists the caller's ledger, newest first.
func (s *WalletService) GetTransactions(c *fiber.Ctx) error {
	actor := actorFromCtx(c)
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txns []models.WalletTransaction
	if err := s.DB.Where("user_id = ?", actor.UserID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(txns)
}

// Deposit creates a pending deposit to be settled by the payment callback.
func (s *WalletService) Deposit(c *fiber.Ctx) error {
	type Req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	txn, err := s.RequestDeposit(actorFromCtx(c), req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(txn)
}

// AdjustWallet is the admin adjustment endpoint.
func (s *WalletService) AdjustWallet(c *fiber.Ctx) error {
	type Req struct {
		Amount decimal.Decimal `json:"amount"`
		Reason string          `json:"reason"`
	}
	userID := c.Params("user_id")
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	txn, err := s.AdminAdjust(actorFromCtx(c), userID, req.Amount, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(txn)
}

// RefundTransaction is the admin reversal endpoint.
func (s *WalletService) RefundTransaction(c *fiber.Ctx) error {
	type Req struct {
		Reason string `json:"reason"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	refund, err := s.Refund(actorFromCtx(c), c.Params("id"), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(refund)
}

// ConfirmPaymentCallback and FailPaymentCallback are the only mutation
// points reachable from the payment processor.
func (s *WalletService) ConfirmPaymentCallback(c *fiber.Ctx) error {
	txn, err := s.ConfirmPayment(c.Params("transaction_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(txn)
}

func (s *WalletService) FailPaymentCallback(c *fiber.Ctx) error {
	txn, err := s.FailPayment(c.Params("transaction_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(txn)
}

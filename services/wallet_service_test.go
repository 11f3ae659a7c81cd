package services

import (
	"errors"
	"testing"

	"firefight-arena/models"
)

func TestSettledBalanceFoldsCompletedOnly(t *testing.T) {
	wallet, db := newTestWallet(t)
	user := createTestUser(t, db, "alice")

	fundUser(t, wallet, user.ID, "100.00")
	fundUser(t, wallet, user.ID, "25.50")

	// A pending deposit must not count toward anything.
	if _, err := wallet.RequestDeposit(actorFor(user), dec("500")); err != nil {
		t.Fatalf("RequestDeposit: %v", err)
	}

	settled, err := wallet.SettledBalance(user.ID)
	if err != nil {
		t.Fatalf("SettledBalance: %v", err)
	}
	if !settled.Equal(dec("125.50")) {
		t.Fatalf("settled balance = %s, want 125.50", settled)
	}

	available, err := wallet.AvailableBalance(user.ID)
	if err != nil {
		t.Fatalf("AvailableBalance: %v", err)
	}
	if !available.Equal(dec("125.50")) {
		t.Fatalf("available balance = %s, want 125.50", available)
	}
}

func TestDebitReservesAgainstAvailable(t *testing.T) {
	wallet, db := newTestWallet(t)
	user := createTestUser(t, db, "bob")
	fundUser(t, wallet, user.ID, "100")

	txn, err := wallet.Debit(db, user.ID, dec("60"), models.TxTypeEntryFee, TxMeta{})
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if txn.Status != models.TxStatusPending {
		t.Fatalf("debit status = %s, want pending", txn.Status)
	}
	if !txn.Amount.Equal(dec("-60")) {
		t.Fatalf("debit amount = %s, want -60", txn.Amount)
	}

	// Settled stays untouched until settlement; available shrinks now.
	settled, _ := wallet.SettledBalance(user.ID)
	if !settled.Equal(dec("100")) {
		t.Fatalf("settled = %s, want 100", settled)
	}
	available, _ := wallet.AvailableBalance(user.ID)
	if !available.Equal(dec("40")) {
		t.Fatalf("available = %s, want 40", available)
	}

	// A second debit past the reservation must fail and write nothing.
	if _, err := wallet.Debit(db, user.ID, dec("50"), models.TxTypeEntryFee, TxMeta{}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraw debit err = %v, want ErrInsufficientFunds", err)
	}
	if n := countRows(t, db, &models.WalletTransaction{}, "user_id = ?", user.ID); n != 2 {
		t.Fatalf("ledger rows = %d, want 2 (failed debit must not write)", n)
	}
}

func TestConfirmPaymentSettlesDeposit(t *testing.T) {
	wallet, db := newTestWallet(t)
	user := createTestUser(t, db, "carol")

	txn, err := wallet.RequestDeposit(actorFor(user), dec("75"))
	if err != nil {
		t.Fatalf("RequestDeposit: %v", err)
	}

	settled, err := wallet.ConfirmPayment(txn.ID)
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if settled.Status != models.TxStatusCompleted {
		t.Fatalf("status = %s, want completed", settled.Status)
	}
	if settled.SettledAt == nil {
		t.Fatal("SettledAt not set on confirmation")
	}

	balance, _ := wallet.SettledBalance(user.ID)
	if !balance.Equal(dec("75")) {
		t.Fatalf("settled balance = %s, want 75", balance)
	}

	// Confirming twice must refuse: the transaction is no longer pending.
	if _, err := wallet.ConfirmPayment(txn.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("second confirm err = %v, want validation error", err)
	}
}

func TestFailPaymentReleasesReservation(t *testing.T) {
	wallet, db := newTestWallet(t)
	user := createTestUser(t, db, "dave")
	fundUser(t, wallet, user.ID, "100")

	txn, err := wallet.Debit(db, user.ID, dec("100"), models.TxTypeEntryFee, TxMeta{})
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	available, _ := wallet.AvailableBalance(user.ID)
	if !available.IsZero() {
		t.Fatalf("available = %s, want 0 while reserved", available)
	}

	if _, err := wallet.FailPayment(txn.ID); err != nil {
		t.Fatalf("FailPayment: %v", err)
	}
	available, _ = wallet.AvailableBalance(user.ID)
	if !available.Equal(dec("100")) {
		t.Fatalf("available = %s, want 100 after release", available)
	}
	settled, _ := wallet.SettledBalance(user.ID)
	if !settled.Equal(dec("100")) {
		t.Fatalf("settled = %s, want 100 (failed debit never settles)", settled)
	}
}

func TestRefundReversesOnce(t *testing.T) {
	wallet, db := newTestWallet(t)
	admin := createTestAdmin(t, db, "admin")
	user := createTestUser(t, db, "erin")
	fundUser(t, wallet, user.ID, "80")

	var original models.WalletTransaction
	if err := db.First(&original, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("load original: %v", err)
	}

	refund, err := wallet.Refund(actorFor(admin), original.ID, "support ticket 4411")
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if !refund.Amount.Equal(dec("-80")) {
		t.Fatalf("refund amount = %s, want -80", refund.Amount)
	}
	if refund.ReversesID == nil || *refund.ReversesID != original.ID {
		t.Fatal("refund does not reference the original transaction")
	}

	balance, _ := wallet.SettledBalance(user.ID)
	if !balance.IsZero() {
		t.Fatalf("balance = %s, want 0 after reversal", balance)
	}

	// The original is append-only history; a second reversal must refuse.
	if _, err := wallet.Refund(actorFor(admin), original.ID, "again"); !errors.Is(err, ErrValidation) {
		t.Fatalf("double refund err = %v, want validation error", err)
	}
	var reloaded models.WalletTransaction
	if err := db.First(&reloaded, "id = ?", original.ID).Error; err != nil {
		t.Fatalf("reload original: %v", err)
	}
	if reloaded.Status != models.TxStatusCompleted || !reloaded.Amount.Equal(dec("80")) {
		t.Fatal("original transaction was mutated by the refund")
	}
}

func TestRefundCreditRefusesOverdraw(t *testing.T) {
	wallet, db := newTestWallet(t)
	admin := createTestAdmin(t, db, "admin")
	user := createTestUser(t, db, "frank")
	fundUser(t, wallet, user.ID, "50")

	var deposit models.WalletTransaction
	if err := db.First(&deposit, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("load deposit: %v", err)
	}

	// Spend most of it, settled: reversing the 50 credit would overdraw.
	if _, err := wallet.AdminAdjust(actorFor(admin), user.ID, dec("-40"), "manual correction"); err != nil {
		t.Fatalf("AdminAdjust: %v", err)
	}
	if _, err := wallet.Refund(actorFor(admin), deposit.ID, "chargeback"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("refund err = %v, want ErrInsufficientFunds", err)
	}
}

func TestAdminAdjustGuards(t *testing.T) {
	wallet, db := newTestWallet(t)
	admin := createTestAdmin(t, db, "admin")
	user := createTestUser(t, db, "grace")

	if _, err := wallet.AdminAdjust(actorFor(user), user.ID, dec("10"), "nope"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin adjust err = %v, want ErrUnauthorized", err)
	}
	if _, err := wallet.AdminAdjust(actorFor(admin), user.ID, dec("10"), ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing reason err = %v, want validation error", err)
	}
	if _, err := wallet.AdminAdjust(actorFor(admin), user.ID, dec("-10"), "claw back"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraw adjust err = %v, want ErrInsufficientFunds", err)
	}

	txn, err := wallet.AdminAdjust(actorFor(admin), user.ID, dec("15"), "goodwill credit")
	if err != nil {
		t.Fatalf("AdminAdjust: %v", err)
	}
	if txn.AdminID == nil || *txn.AdminID != admin.ID {
		t.Fatal("adjustment does not record the acting admin")
	}
	balance, _ := wallet.SettledBalance(user.ID)
	if !balance.Equal(dec("15")) {
		t.Fatalf("balance = %s, want 15", balance)
	}
}

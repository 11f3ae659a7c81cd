package services

import (
	"errors"
	"testing"

	"firefight-arena/events"
	"firefight-arena/models"
)

func TestEnsureUserUpserts(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)

	first, err := svc.EnsureUser("u-1", "alice", "alice@example.com", false)
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if first.Username != "alice" || first.KYCStatus != models.KYCStatusPending {
		t.Fatalf("first touch = %q/%q, want alice/pending", first.Username, first.KYCStatus)
	}

	// A repeat touch refreshes the profile without a second row.
	second, err := svc.EnsureUser("u-1", "alice2", "alice2@example.com", true)
	if err != nil {
		t.Fatalf("EnsureUser repeat: %v", err)
	}
	if second.Username != "alice2" || !second.IsAdmin {
		t.Fatalf("repeat touch = %q admin=%t, want alice2/true", second.Username, second.IsAdmin)
	}
	if n := countRows(t, db, &models.User{}, "id = ?", "u-1"); n != 1 {
		t.Fatalf("user rows = %d, want 1", n)
	}
}

func TestSetBannedRequiresReason(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	admin := createTestAdmin(t, db, "admin")
	user := createTestUser(t, db, "bob")

	if _, err := svc.SetBanned(actorFor(user), user.ID, true, "x"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-admin ban err = %v, want ErrUnauthorized", err)
	}
	if _, err := svc.SetBanned(actorFor(admin), user.ID, true, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing reason err = %v, want validation error", err)
	}

	if _, err := svc.SetBanned(actorFor(admin), user.ID, true, "cheating"); err != nil {
		t.Fatalf("SetBanned: %v", err)
	}
	var banned models.User
	db.First(&banned, "id = ?", user.ID)
	if !banned.IsBanned || banned.BanReason != "cheating" || banned.BannedAt == nil {
		t.Fatalf("ban not recorded: %+v", banned)
	}

	// Unbanning clears the audit fields.
	if _, err := svc.SetBanned(actorFor(admin), user.ID, false, ""); err != nil {
		t.Fatalf("unban: %v", err)
	}
	// Read into a fresh struct: gorm leaves pointer fields from a previous
	// scan untouched when the column is NULL.
	var unbanned models.User
	db.First(&unbanned, "id = ?", user.ID)
	if unbanned.IsBanned || unbanned.BanReason != "" || unbanned.BannedAt != nil {
		t.Fatalf("unban incomplete: %+v", unbanned)
	}
}

func TestBannedUserCannotRegister(t *testing.T) {
	db := newTestDB(t)
	hub := events.NewHub()
	wallet := NewWalletService(db, hub)
	tournaments := NewTournamentService(db, wallet, hub)
	users := NewUserService(db)
	admin := createTestAdmin(t, db, "admin")
	user := createTestUser(t, db, "mallory")
	tour := createTestTournament(t, db, tournamentOpts{})

	if _, err := users.SetBanned(actorFor(admin), user.ID, true, "fraud"); err != nil {
		t.Fatalf("SetBanned: %v", err)
	}
	if _, err := tournaments.RegisterParticipant(tour.ID, actorFor(user), nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("banned register err = %v, want ErrUnauthorized", err)
	}
}

func TestSetKYCStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewUserService(db)
	admin := createTestAdmin(t, db, "admin")
	user := createTestUser(t, db, "carol")

	if _, err := svc.SetKYCStatus(actorFor(admin), user.ID, "maybe"); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad status err = %v, want validation error", err)
	}
	if _, err := svc.SetKYCStatus(actorFor(admin), user.ID, models.KYCStatusVerified); err != nil {
		t.Fatalf("SetKYCStatus: %v", err)
	}
	var verified models.User
	db.First(&verified, "id = ?", user.ID)
	if verified.KYCStatus != models.KYCStatusVerified {
		t.Fatalf("kyc status = %s, want verified", verified.KYCStatus)
	}
}

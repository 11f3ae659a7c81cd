package services

import (
	"errors"
	"strings"
	"testing"

	"firefight-arena/models"
)

func TestCreateTeamMakesActorCaptain(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)
	captain := createTestUser(t, db, "alice")

	team, err := svc.CreateTeam(actorFor(captain), "  Night Owls  ", "nöcturnal", 4)
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if team.Name != "Night Owls" {
		t.Fatalf("name = %q, want trimmed", team.Name)
	}
	if team.CaptainID != captain.ID {
		t.Fatal("captain not set")
	}
	if !strings.HasPrefix(team.JoinCode, "FF-") || len(team.JoinCode) != 11 {
		t.Fatalf("join code = %q, want FF- prefix + 8 chars", team.JoinCode)
	}
	// Transliterated, uppercased, capped at 8.
	if team.Tag != "NOCTURNA" {
		t.Fatalf("tag = %q, want NOCTURNA", team.Tag)
	}

	var membership models.TeamMembership
	if err := db.First(&membership, "team_id = ? AND user_id = ?", team.ID, captain.ID).Error; err != nil {
		t.Fatalf("captain membership missing: %v", err)
	}
	if membership.Role != models.TeamRoleCaptain {
		t.Fatalf("role = %s, want captain", membership.Role)
	}
}

func TestJoinTeamByCode(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)
	captain := createTestUser(t, db, "cap")
	joiner := createTestUser(t, db, "joiner")

	team, err := svc.CreateTeam(actorFor(captain), "Wraiths", "wr", 2)
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	// Codes are matched case-insensitively and trimmed.
	if _, err := svc.JoinTeam(actorFor(joiner), "  "+strings.ToLower(team.JoinCode)+" "); err != nil {
		t.Fatalf("JoinTeam: %v", err)
	}
	if _, err := svc.JoinTeam(actorFor(joiner), team.JoinCode); !errors.Is(err, ErrValidation) {
		t.Fatalf("rejoin err = %v, want validation error", err)
	}

	// MaxPlayers 2 is now reached (captain + joiner).
	third := createTestUser(t, db, "third")
	if _, err := svc.JoinTeam(actorFor(third), team.JoinCode); !errors.Is(err, ErrValidation) {
		t.Fatalf("full team join err = %v, want validation error", err)
	}
	if _, err := svc.JoinTeam(actorFor(third), "FF-NOPE1234"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bad code err = %v, want ErrNotFound", err)
	}
}

func TestCaptainCannotLeave(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)
	captain := createTestUser(t, db, "cap")
	player := createTestUser(t, db, "player")

	team, _ := svc.CreateTeam(actorFor(captain), "Owls", "", 4)
	if _, err := svc.JoinTeam(actorFor(player), team.JoinCode); err != nil {
		t.Fatalf("JoinTeam: %v", err)
	}

	if err := svc.LeaveTeam(actorFor(captain), team.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("captain leave err = %v, want validation error", err)
	}
	if err := svc.LeaveTeam(actorFor(player), team.ID); err != nil {
		t.Fatalf("player leave: %v", err)
	}
	if n := countRows(t, db, &models.TeamMembership{}, "team_id = ?", team.ID); n != 1 {
		t.Fatalf("memberships = %d, want 1", n)
	}
}

func TestTransferCaptaincyFlipsBothRoles(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)
	captain := createTestUser(t, db, "cap")
	successor := createTestUser(t, db, "successor")
	outsider := createTestUser(t, db, "outsider")

	team, _ := svc.CreateTeam(actorFor(captain), "Owls", "", 4)
	if _, err := svc.JoinTeam(actorFor(successor), team.JoinCode); err != nil {
		t.Fatalf("JoinTeam: %v", err)
	}

	if err := svc.TransferCaptaincy(actorFor(successor), team.ID, successor.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-captain transfer err = %v, want ErrUnauthorized", err)
	}
	if err := svc.TransferCaptaincy(actorFor(captain), team.ID, outsider.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("non-member successor err = %v, want ErrNotFound", err)
	}
	if err := svc.TransferCaptaincy(actorFor(captain), team.ID, successor.ID); err != nil {
		t.Fatalf("TransferCaptaincy: %v", err)
	}

	var reloaded models.Team
	db.First(&reloaded, "id = ?", team.ID)
	if reloaded.CaptainID != successor.ID {
		t.Fatal("team captain pointer not updated")
	}
	if n := countRows(t, db, &models.TeamMembership{}, "team_id = ? AND role = ?", team.ID, models.TeamRoleCaptain); n != 1 {
		t.Fatalf("captain memberships = %d, want exactly 1", n)
	}
	// The old captain can now leave.
	if err := svc.LeaveTeam(actorFor(captain), team.ID); err != nil {
		t.Fatalf("old captain leave: %v", err)
	}
}

func TestDeleteTeamCascadesAndGuards(t *testing.T) {
	db := newTestDB(t)
	svc := NewTeamService(db)
	captain := createTestUser(t, db, "cap")
	player := createTestUser(t, db, "player")

	team, _ := svc.CreateTeam(actorFor(captain), "Owls", "", 4)
	if _, err := svc.JoinTeam(actorFor(player), team.JoinCode); err != nil {
		t.Fatalf("JoinTeam: %v", err)
	}

	if err := svc.DeleteTeam(actorFor(player), team.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("non-captain delete err = %v, want ErrUnauthorized", err)
	}

	// An active tournament entry blocks deletion.
	tour := createTestTournament(t, db, tournamentOpts{TeamSize: 4})
	entry := models.TournamentParticipant{
		ID:            "entry-1",
		TournamentID:  tour.ID,
		TeamID:        &team.ID,
		PaymentStatus: models.PaymentStatusPaid,
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("seed entry: %v", err)
	}
	if err := svc.DeleteTeam(actorFor(captain), team.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("delete with entry err = %v, want validation error", err)
	}

	if err := db.Model(&entry).Update("payment_status", models.PaymentStatusRefunded).Error; err != nil {
		t.Fatalf("settle entry: %v", err)
	}
	if err := svc.DeleteTeam(actorFor(captain), team.ID); err != nil {
		t.Fatalf("DeleteTeam: %v", err)
	}
	if n := countRows(t, db, &models.TeamMembership{}, "team_id = ?", team.ID); n != 0 {
		t.Fatalf("memberships = %d, want 0 after cascade", n)
	}
	if n := countRows(t, db, &models.Team{}, "id = ?", team.ID); n != 0 {
		t.Fatalf("team rows = %d, want 0", n)
	}
}

package services

import (
	"fmt"
	"testing"
	"time"

	"firefight-arena/events"
	"firefight-arena/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory database per test. cache=shared keeps
// every connection of the pool on the same database, and the busy timeout
// lets concurrent writers wait instead of erroring.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// One connection serializes writers at the pool, so concurrent test
	// goroutines contend on the domain guards instead of on SQLite locks.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMembership{},
		&models.Tournament{},
		&models.TournamentParticipant{},
		&models.Match{},
		&models.MatchReport{},
		&models.WalletTransaction{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newTestWallet(t *testing.T) (*WalletService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewWalletService(db, events.NewHub()), db
}

func createTestUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	u := models.User{
		ID:       uuid.NewString(),
		Username: username,
		Email:    username + "@example.com",
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}

func createTestAdmin(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	u := createTestUser(t, db, username)
	if err := db.Model(&models.User{}).Where("id = ?", u.ID).Update("is_admin", true).Error; err != nil {
		t.Fatalf("failed to promote admin %s: %v", username, err)
	}
	u.IsAdmin = true
	return u
}

// fundUser seeds a settled deposit so debits have something to draw on.
func fundUser(t *testing.T, wallet *WalletService, userID string, amount string) {
	t.Helper()
	if _, err := wallet.Credit(wallet.DB, userID, dec(amount), models.TxTypeDeposit, TxMeta{}); err != nil {
		t.Fatalf("failed to fund user %s: %v", userID, err)
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func actorFor(u models.User) models.Actor {
	return models.Actor{UserID: u.ID, IsAdmin: u.IsAdmin}
}

type tournamentOpts struct {
	EntryFee          string
	PrizePool         string
	MaxParticipants   int
	TeamSize          int
	Status            string
	Deadline          time.Time
	PrizeDistribution string
}

func createTestTournament(t *testing.T, db *gorm.DB, opts tournamentOpts) models.Tournament {
	t.Helper()
	if opts.EntryFee == "" {
		opts.EntryFee = "0"
	}
	if opts.PrizePool == "" {
		opts.PrizePool = "0"
	}
	if opts.MaxParticipants == 0 {
		opts.MaxParticipants = 16
	}
	if opts.TeamSize == 0 {
		opts.TeamSize = 1
	}
	if opts.Status == "" {
		opts.Status = models.TournamentStatusUpcoming
	}
	if opts.Deadline.IsZero() {
		opts.Deadline = time.Now().Add(24 * time.Hour)
	}
	tour := models.Tournament{
		ID:                   uuid.NewString(),
		Name:                 "Friday Firefight",
		Slug:                 "friday-firefight-" + uuid.NewString()[:8],
		EntryFee:             dec(opts.EntryFee),
		PrizePool:            dec(opts.PrizePool),
		MaxParticipants:      opts.MaxParticipants,
		TeamSize:             opts.TeamSize,
		StartTime:            opts.Deadline.Add(time.Hour),
		RegistrationDeadline: opts.Deadline,
		Status:               opts.Status,
		PrizeDistribution:    opts.PrizeDistribution,
	}
	if err := db.Create(&tour).Error; err != nil {
		t.Fatalf("failed to create tournament: %v", err)
	}
	return tour
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

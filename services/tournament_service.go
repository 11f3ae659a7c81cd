package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"firefight-arena/events"
	"firefight-arena/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TournamentService struct {
	DB     *gorm.DB
	Wallet *WalletService
	Hub    *events.Hub
}

func NewTournamentService(db *gorm.DB, wallet *WalletService, hub *events.Hub) *TournamentService {
	return &TournamentService{DB: db, Wallet: wallet, Hub: hub}
}

// RegisterParticipant admits a user (or a team, registered by its captain)
// into a tournament. The capacity re-check, the participant insert and the
// entry-fee debit run in one transaction; any failure rolls all of it back,
// so a lost slot never leaves a dangling debit.
func (s *TournamentService) RegisterParticipant(tournamentID string, actor models.Actor, teamID *string) (*models.TournamentParticipant, error) {
	var user models.User
	if err := s.DB.First(&user, "id = ?", actor.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundf("user %s not found", actor.UserID)
		}
		return nil, err
	}
	if user.IsBanned {
		return nil, ErrUnauthorized
	}

	var participant *models.TournamentParticipant
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var tournament models.Tournament
		if err := lockForUpdate(tx).First(&tournament, "id = ?", tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("tournament %s not found", tournamentID)
			}
			return err
		}
		if tournament.Status != models.TournamentStatusUpcoming {
			return ErrRegistrationClosed
		}
		if !time.Now().Before(tournament.RegistrationDeadline) {
			return ErrRegistrationClosed
		}

		if tournament.TeamSize > 1 {
			if teamID == nil {
				return Validationf("team_id is required for a team tournament")
			}
			var team models.Team
			if err := tx.First(&team, "id = ?", *teamID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return NotFoundf("team %s not found", *teamID)
				}
				return err
			}
			if team.CaptainID != actor.UserID {
				return ErrUnauthorized
			}
		} else if teamID != nil {
			return Validationf("solo tournament does not accept team registrations")
		}

		// Duplicate gate: any non-failed record for this actor blocks.
		dup := tx.Model(&models.TournamentParticipant{}).
			Where("tournament_id = ? AND payment_status <> ?", tournamentID, models.PaymentStatusFailed)
		if teamID != nil {
			dup = dup.Where("team_id = ?", *teamID)
		} else {
			dup = dup.Where("user_id = ?", actor.UserID)
		}
		var existing int64
		if err := dup.Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateRegistration
		}

		// Commit-time capacity check: pending registrations hold their slot,
		// counted inside the same transaction as the insert.
		var reserved int64
		if err := tx.Model(&models.TournamentParticipant{}).
			Where("tournament_id = ? AND payment_status IN ?",
				tournamentID, []string{models.PaymentStatusPending, models.PaymentStatusPaid}).
			Count(&reserved).Error; err != nil {
			return err
		}
		if reserved >= int64(tournament.MaxParticipants) {
			return ErrCapacityExceeded
		}

		participant = &models.TournamentParticipant{
			ID:            uuid.NewString(),
			TournamentID:  tournamentID,
			PaymentStatus: models.PaymentStatusPending,
		}
		if teamID != nil {
			participant.TeamID = teamID
		} else {
			uid := actor.UserID
			participant.UserID = &uid
		}

		if tournament.EntryFee.IsPositive() {
			if err := tx.Create(participant).Error; err != nil {
				return err
			}
			txn, err := s.Wallet.Debit(tx, actor.UserID, tournament.EntryFee, models.TxTypeEntryFee, TxMeta{
				TournamentID:  &tournament.ID,
				ParticipantID: &participant.ID,
			})
			if err != nil {
				return err
			}
			participant.EntryTransactionID = &txn.ID
			return tx.Model(&models.TournamentParticipant{}).
				Where("id = ?", participant.ID).
				Update("entry_transaction_id", txn.ID).Error
		}

		// Free tournament: no wallet step, paid immediately, slot claimed now.
		now := time.Now()
		participant.PaymentStatus = models.PaymentStatusPaid
		participant.PaidAt = &now
		if err := tx.Create(participant).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Tournament{}).
			Where("id = ? AND current_participants < max_participants", tournamentID).
			Update("current_participants", gorm.Expr("current_participants + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCapacityExceeded
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// WithdrawParticipant backs an actor out before the tournament starts. Paid
// entries get a refund row reversing the entry fee and release their slot;
// pending entries are failed together with their debit.
func (s *TournamentService) WithdrawParticipant(tournamentID string, actor models.Actor) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var tournament models.Tournament
		if err := lockForUpdate(tx).First(&tournament, "id = ?", tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("tournament %s not found", tournamentID)
			}
			return err
		}
		if tournament.Status != models.TournamentStatusUpcoming {
			return ErrRegistrationClosed
		}
		var p models.TournamentParticipant
		q := tx.Where("tournament_id = ? AND payment_status IN ?",
			tournamentID, []string{models.PaymentStatusPending, models.PaymentStatusPaid})
		q = q.Where("user_id = ? OR team_id IN (?)", actor.UserID,
			tx.Model(&models.Team{}).Select("id").Where("captain_id = ?", actor.UserID))
		if err := q.First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("no active registration for this tournament")
			}
			return err
		}

		switch p.PaymentStatus {
		case models.PaymentStatusPaid:
			if p.EntryTransactionID != nil {
				if _, err := s.Wallet.refundInTx(tx, *p.EntryTransactionID, nil, "participant withdrawal"); err != nil {
					return err
				}
			}
			res := tx.Model(&models.Tournament{}).
				Where("id = ? AND current_participants > 0", tournamentID).
				Update("current_participants", gorm.Expr("current_participants - 1"))
			if res.Error != nil {
				return res.Error
			}
			return tx.Model(&models.TournamentParticipant{}).
				Where("id = ?", p.ID).
				Update("payment_status", models.PaymentStatusRefunded).Error
		case models.PaymentStatusPending:
			if p.EntryTransactionID != nil {
				if err := tx.Model(&models.WalletTransaction{}).
					Where("id = ? AND status = ?", *p.EntryTransactionID, models.TxStatusPending).
					Update("status", models.TxStatusFailed).Error; err != nil {
					return err
				}
			}
			return tx.Model(&models.TournamentParticipant{}).
				Where("id = ?", p.ID).
				Update("payment_status", models.PaymentStatusFailed).Error
		}
		return nil
	})
}

// CancelTournament cancels and unwinds the money: paid entries are refunded,
// pending entries failed, all inside one transaction.
func (s *TournamentService) CancelTournament(tournamentID string, actor models.Actor) error {
	if !actor.IsAdmin {
		return ErrUnauthorized
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var tournament models.Tournament
		if err := lockForUpdate(tx).First(&tournament, "id = ?", tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("tournament %s not found", tournamentID)
			}
			return err
		}
		if tournament.Status == models.TournamentStatusCompleted || tournament.Status == models.TournamentStatusCancelled {
			return Validationf("tournament %s is already %s", tournamentID, tournament.Status)
		}
		var participants []models.TournamentParticipant
		if err := tx.Where("tournament_id = ? AND payment_status IN ?",
			tournamentID, []string{models.PaymentStatusPending, models.PaymentStatusPaid}).
			Find(&participants).Error; err != nil {
			return err
		}
		for _, p := range participants {
			switch p.PaymentStatus {
			case models.PaymentStatusPaid:
				if p.EntryTransactionID != nil {
					if _, err := s.Wallet.refundInTx(tx, *p.EntryTransactionID, &actor.UserID, "tournament cancelled"); err != nil {
						return err
					}
				}
				if err := tx.Model(&models.TournamentParticipant{}).
					Where("id = ?", p.ID).
					Update("payment_status", models.PaymentStatusRefunded).Error; err != nil {
					return err
				}
			case models.PaymentStatusPending:
				if p.EntryTransactionID != nil {
					if err := tx.Model(&models.WalletTransaction{}).
						Where("id = ? AND status = ?", *p.EntryTransactionID, models.TxStatusPending).
						Update("status", models.TxStatusFailed).Error; err != nil {
						return err
					}
				}
				if err := tx.Model(&models.TournamentParticipant{}).
					Where("id = ?", p.ID).
					Update("payment_status", models.PaymentStatusFailed).Error; err != nil {
					return err
				}
			}
		}
		return tx.Model(&models.Tournament{}).
			Where("id = ?", tournamentID).
			Updates(map[string]interface{}{
				"status":               models.TournamentStatusCancelled,
				"current_participants": 0,
			}).Error
	})
}

// MarkLive transitions an upcoming tournament to live and announces it.
func (s *TournamentService) MarkLive(tournamentID string) error {
	res := s.DB.Model(&models.Tournament{}).
		Where("id = ? AND status = ?", tournamentID, models.TournamentStatusUpcoming).
		Update("status", models.TournamentStatusLive)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Validationf("tournament %s is not upcoming", tournamentID)
	}
	s.Hub.Publish(events.TournamentStarted, fiber.Map{"tournament_id": tournamentID})
	return nil
}

// MarkCompleted transitions a live tournament to completed.
func (s *TournamentService) MarkCompleted(tournamentID string) error {
	res := s.DB.Model(&models.Tournament{}).
		Where("id = ? AND status = ?", tournamentID, models.TournamentStatusLive).
		Update("status", models.TournamentStatusCompleted)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return Validationf("tournament %s is not live", tournamentID)
	}
	return nil
}

func validatePrizeDistribution(raw string) error {
	t := models.Tournament{PrizeDistribution: raw}
	slots, err := t.DecodePrizeDistribution()
	if err != nil {
		return Validationf("prize_distribution is not valid JSON: %v", err)
	}
	total := decimal.Zero
	seen := map[int]bool{}
	for _, s := range slots {
		if s.Placement <= 0 {
			return Validationf("prize placement must be positive")
		}
		if seen[s.Placement] {
			return Validationf("duplicate prize placement %d", s.Placement)
		}
		seen[s.Placement] = true
		if s.Share.IsNegative() {
			return Validationf("prize share must not be negative")
		}
		total = total.Add(s.Share)
	}
	if total.GreaterThan(decimal.NewFromInt(1)) {
		return Validationf("prize shares sum to more than the pool")
	}
	return nil
}

// --- Fiber handlers ---

type tournamentReq struct {
	Name                 string          `json:"name"`
	Game                 string          `json:"game"`
	Description          string          `json:"description"`
	Rules                string          `json:"rules"`
	BannerURL            string          `json:"banner_url"`
	EntryFee             decimal.Decimal `json:"entry_fee"`
	PrizePool            decimal.Decimal `json:"prize_pool"`
	MaxParticipants      int             `json:"max_participants"`
	TeamSize             int             `json:"team_size"`
	StartTime            time.Time       `json:"start_time"`
	RegistrationDeadline *time.Time      `json:"registration_deadline"`
	EndTime              *time.Time      `json:"end_time"`
	PrizeDistribution    string          `json:"prize_distribution"`
}

// CreateTournament is admin-only; new tournaments always start upcoming.
func (s *TournamentService) CreateTournament(c *fiber.Ctx) error {
	actor := actorFromCtx(c)
	if !actor.IsAdmin {
		return respondError(c, ErrUnauthorized)
	}
	var req tournamentReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	if strings.TrimSpace(req.Name) == "" {
		return respondError(c, Validationf("name is required"))
	}
	if req.MaxParticipants <= 0 {
		return respondError(c, Validationf("max_participants must be positive"))
	}
	if req.EntryFee.IsNegative() || req.PrizePool.IsNegative() {
		return respondError(c, Validationf("entry_fee and prize_pool must not be negative"))
	}
	if req.StartTime.IsZero() {
		return respondError(c, Validationf("start_time is required"))
	}
	if req.TeamSize <= 0 {
		req.TeamSize = 1
	}
	deadline := req.StartTime
	if req.RegistrationDeadline != nil {
		deadline = *req.RegistrationDeadline
	}
	if deadline.After(req.StartTime) {
		return respondError(c, Validationf("registration_deadline must not be after start_time"))
	}
	if req.PrizeDistribution != "" {
		if err := validatePrizeDistribution(req.PrizeDistribution); err != nil {
			return respondError(c, err)
		}
	}

	tournament := &models.Tournament{
		ID:                   uuid.NewString(),
		Name:                 strings.TrimSpace(req.Name),
		Slug:                 fmt.Sprintf("%s-%.8s", slug.Make(req.Name), uuid.NewString()),
		Game:                 req.Game,
		Description:          req.Description,
		Rules:                req.Rules,
		BannerURL:            req.BannerURL,
		EntryFee:             req.EntryFee,
		PrizePool:            req.PrizePool,
		MaxParticipants:      req.MaxParticipants,
		TeamSize:             req.TeamSize,
		StartTime:            req.StartTime,
		RegistrationDeadline: deadline,
		EndTime:              req.EndTime,
		Status:               models.TournamentStatusUpcoming,
		PrizeDistribution:    req.PrizeDistribution,
		CreatedByID:          actor.UserID,
	}
	if err := s.DB.Create(tournament).Error; err != nil {
		return respondError(c, err)
	}
	s.Hub.Publish(events.TournamentCreated, fiber.Map{
		"tournament_id": tournament.ID,
		"name":          tournament.Name,
		"entry_fee":     tournament.EntryFee,
		"start_time":    tournament.StartTime,
	})
	return c.Status(201).JSON(tournament)
}

// GetAllTournaments lists tournaments, optionally filtered by status.
func (s *TournamentService) GetAllTournaments(c *fiber.Ctx) error {
	status := c.Query("status")
	db := s.DB.Order("start_time ASC")
	if status != "" {
		if !models.ValidTournamentStatus(status) {
			return respondError(c, Validationf("unknown status %q", status))
		}
		db = db.Where("status = ?", status)
	}
	var tournaments []models.Tournament
	if err := db.Find(&tournaments).Error; err != nil {
		return respondError(c, err)
	}
	for i := range tournaments {
		tournaments[i].AvailableSlots = tournaments[i].MaxParticipants - tournaments[i].CurrentParticipants
	}
	return c.JSON(tournaments)
}

// GetTournamentByID returns one tournament with its participants.
func (s *TournamentService) GetTournamentByID(c *fiber.Ctx) error {
	var tournament models.Tournament
	if err := s.DB.
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("registered_at ASC")
		}).
		First(&tournament, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, NotFoundf("tournament not found"))
		}
		return respondError(c, err)
	}
	tournament.AvailableSlots = tournament.MaxParticipants - tournament.CurrentParticipants
	return c.JSON(tournament)
}

// UpdateTournament edits descriptive fields of an upcoming tournament.
// Money and capacity fields are frozen once anyone has registered.
func (s *TournamentService) UpdateTournament(c *fiber.Ctx) error {
	actor := actorFromCtx(c)
	if !actor.IsAdmin {
		return respondError(c, ErrUnauthorized)
	}
	var req tournamentReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	id := c.Params("id")
	var tournament models.Tournament
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&tournament, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("tournament not found")
			}
			return err
		}
		if tournament.Status != models.TournamentStatusUpcoming {
			return Validationf("only upcoming tournaments can be edited")
		}
		updates := map[string]interface{}{
			"description": req.Description,
			"rules":       req.Rules,
			"banner_url":  req.BannerURL,
			"game":        req.Game,
		}
		if strings.TrimSpace(req.Name) != "" {
			updates["name"] = strings.TrimSpace(req.Name)
		}
		var registered int64
		if err := tx.Model(&models.TournamentParticipant{}).
			Where("tournament_id = ? AND payment_status <> ?", id, models.PaymentStatusFailed).
			Count(&registered).Error; err != nil {
			return err
		}
		if registered == 0 {
			if req.MaxParticipants > 0 {
				updates["max_participants"] = req.MaxParticipants
			}
			if !req.EntryFee.IsNegative() {
				updates["entry_fee"] = req.EntryFee
			}
			if !req.PrizePool.IsNegative() {
				updates["prize_pool"] = req.PrizePool
			}
			if req.PrizeDistribution != "" {
				if err := validatePrizeDistribution(req.PrizeDistribution); err != nil {
					return err
				}
				updates["prize_distribution"] = req.PrizeDistribution
			}
			if !req.StartTime.IsZero() {
				updates["start_time"] = req.StartTime
			}
			if req.RegistrationDeadline != nil {
				updates["registration_deadline"] = *req.RegistrationDeadline
			}
		}
		if req.EndTime != nil {
			updates["end_time"] = *req.EndTime
		}
		return tx.Model(&tournament).Updates(updates).Error
	})
	if err != nil {
		return respondError(c, err)
	}
	s.DB.First(&tournament, "id = ?", id)
	return c.JSON(tournament)
}

// UpdateTournamentStatus drives manual lifecycle transitions.
func (s *TournamentService) UpdateTournamentStatus(c *fiber.Ctx) error {
	actor := actorFromCtx(c)
	if !actor.IsAdmin {
		return respondError(c, ErrUnauthorized)
	}
	type Req struct {
		Status string `json:"status"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	id := c.Params("id")
	var err error
	switch req.Status {
	case models.TournamentStatusLive:
		err = s.MarkLive(id)
	case models.TournamentStatusCompleted:
		err = s.MarkCompleted(id)
	case models.TournamentStatusCancelled:
		err = s.CancelTournament(id, actor)
	default:
		err = Validationf("unsupported status transition to %q", req.Status)
	}
	if err != nil {
		return respondError(c, err)
	}
	var tournament models.Tournament
	s.DB.First(&tournament, "id = ?", id)
	return c.JSON(tournament)
}

// DeleteTournament removes a cancelled tournament and its rows.
func (s *TournamentService) DeleteTournament(c *fiber.Ctx) error {
	actor := actorFromCtx(c)
	if !actor.IsAdmin {
		return respondError(c, ErrUnauthorized)
	}
	id := c.Params("id")
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var tournament models.Tournament
		if err := tx.First(&tournament, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("tournament not found")
			}
			return err
		}
		if tournament.Status != models.TournamentStatusCancelled {
			return Validationf("cancel the tournament before deleting it")
		}
		if err := tx.Where("match_id IN (?)",
			tx.Model(&models.Match{}).Select("id").Where("tournament_id = ?", id)).
			Delete(&models.MatchReport{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tournament_id = ?", id).Delete(&models.Match{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tournament_id = ?", id).Delete(&models.TournamentParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Tournament{}, "id = ?", id).Error
	})
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("[tournament] admin %s deleted tournament %s", actor.UserID, id)
	return c.JSON(fiber.Map{"message": "tournament deleted"})
}

// Register is the registration endpoint for the authenticated actor.
func (s *TournamentService) Register(c *fiber.Ctx) error {
	type Req struct {
		TeamID *string `json:"team_id"`
	}
	var req Req
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
		}
	}
	participant, err := s.RegisterParticipant(c.Params("id"), actorFromCtx(c), req.TeamID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(participant)
}

// Withdraw backs the caller out of an upcoming tournament.
func (s *TournamentService) Withdraw(c *fiber.Ctx) error {
	if err := s.WithdrawParticipant(c.Params("id"), actorFromCtx(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "withdrawn"})
}

// GetParticipants lists a tournament's participants, newest last.
func (s *TournamentService) GetParticipants(c *fiber.Ctx) error {
	var participants []models.TournamentParticipant
	if err := s.DB.Where("tournament_id = ?", c.Params("id")).
		Order("registered_at ASC").
		Find(&participants).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(participants)
}

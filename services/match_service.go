package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"firefight-arena/events"
	"firefight-arena/models"
	"firefight-arena/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Verification decisions
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

type MatchService struct {
	DB     *gorm.DB
	Wallet *WalletService
	Hub    *events.Hub
}

func NewMatchService(db *gorm.DB, wallet *WalletService, hub *events.Hub) *MatchService {
	return &MatchService{DB: db, Wallet: wallet, Hub: hub}
}

// CreateMatch appends a match to a tournament with the next sequence number.
func (s *MatchService) CreateMatch(tournamentID string, actor models.Actor, scheduledAt *time.Time) (*models.Match, error) {
	if !actor.IsAdmin {
		return nil, ErrUnauthorized
	}
	var match *models.Match
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var tournament models.Tournament
		if err := tx.First(&tournament, "id = ?", tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("tournament %s not found", tournamentID)
			}
			return err
		}
		if tournament.Status == models.TournamentStatusCancelled || tournament.Status == models.TournamentStatusCompleted {
			return Validationf("tournament %s is %s", tournamentID, tournament.Status)
		}
		var maxSeq int64
		row := tx.Model(&models.Match{}).
			Where("tournament_id = ?", tournamentID).
			Select("COALESCE(MAX(sequence), 0)").
			Row()
		if err := row.Scan(&maxSeq); err != nil {
			return err
		}
		match = &models.Match{
			ID:           uuid.NewString(),
			TournamentID: tournamentID,
			Sequence:     int(maxSeq) + 1,
			Status:       models.MatchStatusScheduled,
			ScheduledAt:  scheduledAt,
		}
		return tx.Create(match).Error
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// CompleteMatch records the outcome and announces it. Winner fields are
// display metadata; payouts only ever flow through verified reports.
func (s *MatchService) CompleteMatch(matchID string, actor models.Actor, winnerID *string, winnerName, results string) (*models.Match, error) {
	if !actor.IsAdmin {
		return nil, ErrUnauthorized
	}
	var match models.Match
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&match, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("match %s not found", matchID)
			}
			return err
		}
		if match.Status == models.MatchStatusCompleted {
			return Validationf("match %s is already completed", matchID)
		}
		updates := map[string]interface{}{
			"status":      models.MatchStatusCompleted,
			"winner_name": winnerName,
			"results":     results,
		}
		if winnerID != nil {
			updates["winner_id"] = *winnerID
		}
		if err := tx.Model(&match).Updates(updates).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Hub.Publish(events.MatchResult, fiber.Map{
		"match_id":      match.ID,
		"tournament_id": match.TournamentID,
		"winner_id":     winnerID,
		"winner_name":   winnerName,
	})
	return &match, nil
}

// SubmitReport queues a participant's outcome claim for admin verification.
// It touches no standings and no wallets.
func (s *MatchService) SubmitReport(matchID string, actor models.Actor, kills, placement, points int, evidenceURL string) (*models.MatchReport, error) {
	if kills < 0 || points < 0 {
		return nil, Validationf("kills and points must not be negative")
	}
	if placement <= 0 {
		return nil, Validationf("placement must be positive")
	}
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

	var report *models.MatchReport
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var match models.Match
		if err := tx.First(&match, "id = ?", matchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("match %s not found", matchID)
			}
			return err
		}
		participant, err := s.participantFor(tx, match.TournamentID, actor.UserID)
		if err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&models.MatchReport{}).
			Where("match_id = ? AND participant_id = ?", matchID, participant.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return Validationf("a report for this match was already submitted")
		}
		report = &models.MatchReport{
			ID:                 uuid.NewString(),
			MatchID:            matchID,
			ParticipantID:      participant.ID,
			ReporterID:         actor.UserID,
			Kills:              kills,
			Placement:          placement,
			Points:             points,
			EvidenceURL:        evidenceURL,
			VerificationStatus: models.ReportStatusPending,
		}
		return tx.Create(report).Error
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// participantFor resolves the paid participant the actor reports for:
// their own entry, or an entry of a team they captain.
func (s *MatchService) participantFor(tx *gorm.DB, tournamentID, userID string) (*models.TournamentParticipant, error) {
	var p models.TournamentParticipant
	err := tx.Where("tournament_id = ? AND payment_status = ?", tournamentID, models.PaymentStatusPaid).
		Where("user_id = ? OR team_id IN (?)", userID,
			tx.Model(&models.Team{}).Select("id").Where("captain_id = ?", userID)).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	return &p, nil
}

// VerifyReport is the admin decision point. Approval may credit a prize;
// the already-paid check and the credit run in one transaction, and the
// unique index on prize_report_id backstops the race between two approvals.
func (s *MatchService) VerifyReport(reportID string, actor models.Actor, decision, notes string) (*models.MatchReport, error) {
	if !actor.IsAdmin {
		return nil, ErrUnauthorized
	}
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, Validationf("decision must be %q or %q", DecisionApprove, DecisionReject)
	}

	var report models.MatchReport
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&report, "id = ?", reportID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("report %s not found", reportID)
			}
			return err
		}
		if report.VerificationStatus != models.ReportStatusPending {
			return ErrAlreadyVerified
		}
		now := time.Now()
		status := models.ReportStatusRejected
		if decision == DecisionApprove {
			status = models.ReportStatusApproved
		}
		if err := tx.Model(&models.MatchReport{}).
			Where("id = ? AND verification_status = ?", report.ID, models.ReportStatusPending).
			Updates(map[string]interface{}{
				"verification_status": status,
				"reviewed_by_id":      actor.UserID,
				"review_notes":        notes,
				"reviewed_at":         now,
			}).Error; err != nil {
			return err
		}
		report.VerificationStatus = status
		report.ReviewedByID = &actor.UserID
		report.ReviewNotes = notes
		report.ReviewedAt = &now

		if decision != DecisionApprove {
			return nil
		}
		return s.payPrize(tx, &report)
	})
	if err != nil {
		return nil, err
	}
	if report.VerificationStatus == models.ReportStatusApproved {
		s.Hub.Publish(events.MatchResult, fiber.Map{
			"match_id":  report.MatchID,
			"report_id": report.ID,
			"placement": report.Placement,
			"kills":     report.Kills,
		})
	}
	return &report, nil
}

// payPrize credits the payout assigned to the report's placement, once.
// Approving the same report again finds the existing prize row and pays
// nothing.
func (s *MatchService) payPrize(tx *gorm.DB, report *models.MatchReport) error {
	var match models.Match
	if err := tx.First(&match, "id = ?", report.MatchID).Error; err != nil {
		return err
	}
	var tournament models.Tournament
	if err := tx.First(&tournament, "id = ?", match.TournamentID).Error; err != nil {
		return err
	}
	prize, err := tournament.PrizeForPlacement(report.Placement)
	if err != nil {
		return err
	}
	if !prize.IsPositive() {
		return nil
	}
	var paid int64
	if err := tx.Model(&models.WalletTransaction{}).
		Where("prize_report_id = ?", report.ID).
		Count(&paid).Error; err != nil {
		return err
	}
	if paid > 0 {
		return nil
	}
	var participant models.TournamentParticipant
	if err := tx.First(&participant, "id = ?", report.ParticipantID).Error; err != nil {
		return err
	}
	payee := ""
	if participant.UserID != nil {
		payee = *participant.UserID
	} else if participant.TeamID != nil {
		var team models.Team
		if err := tx.First(&team, "id = ?", *participant.TeamID).Error; err != nil {
			return err
		}
		payee = team.CaptainID
	}
	if payee == "" {
		return Validationf("participant %s has no payout user", participant.ID)
	}
	_, err = s.Wallet.Credit(tx, payee, prize, models.TxTypePrize, TxMeta{
		TournamentID:  &tournament.ID,
		ParticipantID: &participant.ID,
		PrizeReportID: &report.ID,
	})
	if err == nil {
		log.Printf("[match] prize %s paid to %s for report %s (placement %d)",
			prize.StringFixed(2), payee, report.ID, report.Placement)
	}
	return err
}

// --- Fiber handlers ---

func (s *MatchService) CreateMatchHandler(c *fiber.Ctx) error {
	type Req struct {
		ScheduledAt *time.Time `json:"scheduled_at"`
	}
	var req Req
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
		}
	}
	match, err := s.CreateMatch(c.Params("id"), actorFromCtx(c), req.ScheduledAt)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(match)
}

func (s *MatchService) GetTournamentMatches(c *fiber.Ctx) error {
	var matches []models.Match
	if err := s.DB.Where("tournament_id = ?", c.Params("id")).
		Order("sequence ASC").
		Find(&matches).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(matches)
}

func (s *MatchService) CompleteMatchHandler(c *fiber.Ctx) error {
	type Req struct {
		WinnerID   *string `json:"winner_id"`
		WinnerName string  `json:"winner_name"`
		Results    string  `json:"results"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	match, err := s.CompleteMatch(c.Params("match_id"), actorFromCtx(c), req.WinnerID, req.WinnerName, req.Results)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(match)
}

// SubmitReportHandler accepts multipart form data so players can attach a
// screenshot as evidence; the file lands in R2 and only its URL is stored.
func (s *MatchService) SubmitReportHandler(c *fiber.Ctx) error {
	kills, errKills := parseFormInt(c, "kills")
	placement, errPlacement := parseFormInt(c, "placement")
	points, errPoints := parseFormInt(c, "points")
	if errKills != nil || errPlacement != nil || errPoints != nil {
		return respondError(c, Validationf("kills, placement and points must be integers"))
	}

	evidenceURL := ""
	if file, err := c.FormFile("evidence"); err == nil && file.Size > 0 {
		ext := filepath.Ext(file.Filename)
		if ext == "" {
			ext = ".png"
		}
		key := fmt.Sprintf("reports/%s/%s%s", c.Params("match_id"), uuid.NewString(), ext)
		url, err := utils.UploadFileToR2(file, key)
		if err != nil {
			log.Printf("❌ [match] evidence upload failed: %v", err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to upload evidence", "code": "INTERNAL"})
		}
		evidenceURL = url
	}

	report, err := s.SubmitReport(c.Params("match_id"), actorFromCtx(c), kills, placement, points, evidenceURL)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(report)
}

// VerifyReportHandler is the admin review endpoint.
func (s *MatchService) VerifyReportHandler(c *fiber.Ctx) error {
	type Req struct {
		Decision string `json:"decision"`
		Notes    string `json:"notes"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	report, err := s.VerifyReport(c.Params("id"), actorFromCtx(c), req.Decision, req.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

// GetPendingReports is the admin review queue, oldest first.
func (s *MatchService) GetPendingReports(c *fiber.Ctx) error {
	var reports []models.MatchReport
	if err := s.DB.Where("verification_status = ?", models.ReportStatusPending).
		Order("submitted_at ASC").
		Find(&reports).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(reports)
}

// GetMyReports lists the caller's submitted reports.
func (s *MatchService) GetMyReports(c *fiber.Ctx) error {
	actor := actorFromCtx(c)
	var reports []models.MatchReport
	if err := s.DB.Where("reporter_id = ?", actor.UserID).
		Order("submitted_at DESC").
		Find(&reports).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(reports)
}

package services

import (
	"errors"
	"strings"

	"firefight-arena/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/unidecode"
	"gorm.io/gorm"
)

type TeamService struct {
	DB *gorm.DB
}

func NewTeamService(db *gorm.DB) *TeamService {
	return &TeamService{DB: db}
}

// newJoinCode derives a short invite code. Uniqueness is enforced by the
// column index; collisions surface as a retryable insert error.
func newJoinCode() string {
	return "FF-" + strings.ToUpper(uuid.NewString()[:8])
}

// normalizeTag transliterates and uppercases a clan tag, capped at 8 chars.
func normalizeTag(tag string) string {
	t := strings.ToUpper(strings.TrimSpace(unidecode.Unidecode(tag)))
	if len(t) > 8 {
		t = t[:8]
	}
	return t
}

// CreateTeam makes the actor captain of a new team. The team row and the
// captain membership are created together.
func (s *TeamService) CreateTeam(actor models.Actor, name, tag string, maxPlayers int) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Validationf("team name is required")
	}
	if maxPlayers <= 0 {
		maxPlayers = 4
	}
	team := &models.Team{
		ID:         uuid.NewString(),
		Name:       name,
		Tag:        normalizeTag(tag),
		CaptainID:  actor.UserID,
		MaxPlayers: maxPlayers,
		JoinCode:   newJoinCode(),
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(team).Error; err != nil {
			return err
		}
		return tx.Create(&models.TeamMembership{
			ID:     uuid.NewString(),
			TeamID: team.ID,
			UserID: actor.UserID,
			Role:   models.TeamRoleCaptain,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return team, nil
}

// JoinTeam adds the actor as a player via the team's join code.
func (s *TeamService) JoinTeam(actor models.Actor, joinCode string) (*models.Team, error) {
	var team models.Team
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&team, "join_code = ?", strings.ToUpper(strings.TrimSpace(joinCode))).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("no team with that join code")
			}
			return err
		}
		var existing int64
		if err := tx.Model(&models.TeamMembership{}).
			Where("team_id = ? AND user_id = ?", team.ID, actor.UserID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return Validationf("already a member of this team")
		}
		var members int64
		if err := tx.Model(&models.TeamMembership{}).
			Where("team_id = ?", team.ID).
			Count(&members).Error; err != nil {
			return err
		}
		if members >= int64(team.MaxPlayers) {
			return Validationf("team is full")
		}
		return tx.Create(&models.TeamMembership{
			ID:     uuid.NewString(),
			TeamID: team.ID,
			UserID: actor.UserID,
			Role:   models.TeamRolePlayer,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// LeaveTeam removes the actor's membership. The captain cannot leave;
// they must transfer the captaincy or delete the team.
func (s *TeamService) LeaveTeam(actor models.Actor, teamID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var membership models.TeamMembership
		if err := tx.First(&membership, "team_id = ? AND user_id = ?", teamID, actor.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("not a member of this team")
			}
			return err
		}
		if membership.Role == models.TeamRoleCaptain {
			return Validationf("captain must transfer captaincy or delete the team")
		}
		return tx.Delete(&membership).Error
	})
}

// TransferCaptaincy hands the team to another member. Both membership roles
// and the team's captain pointer flip in one transaction, so there is never
// more or less than one captain.
func (s *TeamService) TransferCaptaincy(actor models.Actor, teamID, newCaptainID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := lockForUpdate(tx).First(&team, "id = ?", teamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("team %s not found", teamID)
			}
			return err
		}
		if team.CaptainID != actor.UserID {
			return ErrUnauthorized
		}
		if newCaptainID == actor.UserID {
			return Validationf("already the captain")
		}
		var successor models.TeamMembership
		if err := tx.First(&successor, "team_id = ? AND user_id = ?", teamID, newCaptainID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("new captain is not a team member")
			}
			return err
		}
		if err := tx.Model(&models.TeamMembership{}).
			Where("team_id = ? AND user_id = ?", teamID, actor.UserID).
			Update("role", models.TeamRolePlayer).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.TeamMembership{}).
			Where("id = ?", successor.ID).
			Update("role", models.TeamRoleCaptain).Error; err != nil {
			return err
		}
		return tx.Model(&models.Team{}).
			Where("id = ?", teamID).
			Update("captain_id", newCaptainID).Error
	})
}

// DeleteTeam destroys the team and cascades its memberships. Captain only;
// blocked while the team holds an active tournament entry.
func (s *TeamService) DeleteTeam(actor models.Actor, teamID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var team models.Team
		if err := tx.First(&team, "id = ?", teamID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFoundf("team %s not found", teamID)
			}
			return err
		}
		if team.CaptainID != actor.UserID {
			return ErrUnauthorized
		}
		var active int64
		if err := tx.Model(&models.TournamentParticipant{}).
			Where("team_id = ? AND payment_status IN ?",
				teamID, []string{models.PaymentStatusPending, models.PaymentStatusPaid}).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return Validationf("team has active tournament registrations")
		}
		if err := tx.Where("team_id = ?", teamID).Delete(&models.TeamMembership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Team{}, "id = ?", teamID).Error
	})
}

// --- Fiber handlers ---

func (s *TeamService) CreateTeamHandler(c *fiber.Ctx) error {
	type Req struct {
		Name       string `json:"name"`
		Tag        string `json:"tag"`
		MaxPlayers int    `json:"max_players"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	team, err := s.CreateTeam(actorFromCtx(c), req.Name, req.Tag, req.MaxPlayers)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(team)
}

func (s *TeamService) JoinTeamHandler(c *fiber.Ctx) error {
	type Req struct {
		JoinCode string `json:"join_code"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	team, err := s.JoinTeam(actorFromCtx(c), req.JoinCode)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(team)
}

func (s *TeamService) LeaveTeamHandler(c *fiber.Ctx) error {
	if err := s.LeaveTeam(actorFromCtx(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "left team"})
}

func (s *TeamService) TransferCaptaincyHandler(c *fiber.Ctx) error {
	type Req struct {
		NewCaptainID string `json:"new_captain_id"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "code": "VALIDATION"})
	}
	if err := s.TransferCaptaincy(actorFromCtx(c), c.Params("id"), req.NewCaptainID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "captaincy transferred"})
}

func (s *TeamService) DeleteTeamHandler(c *fiber.Ctx) error {
	if err := s.DeleteTeam(actorFromCtx(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "team deleted"})
}

// GetTeam returns a team with its roster. The join code is only shown to
// the captain.
func (s *TeamService) GetTeam(c *fiber.Ctx) error {
	var team models.Team
	if err := s.DB.Preload("Members").First(&team, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, NotFoundf("team not found"))
		}
		return respondError(c, err)
	}
	team.MemberCount = int64(len(team.Members))
	if actorFromCtx(c).UserID != team.CaptainID {
		team.JoinCode = ""
	}
	return c.JSON(team)
}

// GetMyTeams lists teams the caller belongs to.
func (s *TeamService) GetMyTeams(c *fiber.Ctx) error {
	actor := actorFromCtx(c)
	var teams []models.Team
	if err := s.DB.
		Where("id IN (?)", s.DB.Model(&models.TeamMembership{}).Select("team_id").Where("user_id = ?", actor.UserID)).
		Find(&teams).Error; err != nil {
		return respondError(c, err)
	}
	for i := range teams {
		if teams[i].CaptainID != actor.UserID {
			teams[i].JoinCode = ""
		}
	}
	return c.JSON(teams)
}
